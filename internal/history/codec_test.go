package history

import (
	"errors"
	"testing"
	"time"
)

type order struct {
	ID    string  `json:"id" msgpack:"id"`
	Total float64 `json:"total" msgpack:"total"`
}

func TestCodecs(t *testing.T) {
	src := NewStore[order](10, WithClock(stepClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Minute)))
	src.Append(order{ID: "a", Total: 1.5})
	src.Append(order{ID: "b", Total: 20})

	for _, name := range []string{CodecNameJSON, CodecNameMsgpack} {
		t.Run(name, func(t *testing.T) {
			c, err := CodecByName(name)
			if err != nil {
				t.Fatal(err)
			}

			data, err := Encode(c, src.Records())
			if err != nil {
				t.Fatal(err)
			}
			got, err := Decode[order](c, data)
			if err != nil {
				t.Fatal(err)
			}

			want := src.Records()
			if len(got) != len(want) {
				t.Fatalf("expected %d records, got %d", len(want), len(got))
			}
			for i := range want {
				if got[i].Seq != want[i].Seq || got[i].ID != want[i].ID || got[i].Payload != want[i].Payload {
					t.Errorf("record %d: expected %+v, got %+v", i, want[i], got[i])
				}
				if !got[i].Timestamp.Equal(want[i].Timestamp) {
					t.Errorf("record %d: timestamp %v != %v", i, got[i].Timestamp, want[i].Timestamp)
				}
			}
		})
	}
}

func TestCodecByName_Unknown(t *testing.T) {
	if _, err := CodecByName("xml"); !errors.Is(err, ErrUnknownCodec) {
		t.Errorf("expected ErrUnknownCodec, got %v", err)
	}
}

func TestDecode_Garbage(t *testing.T) {
	if _, err := Decode[order](JSONCodec{}, []byte("{")); err == nil {
		t.Error("expected a decode error")
	}
}
