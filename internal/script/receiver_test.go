package script

import (
	"context"
	"errors"
	"testing"

	"github.com/dshills/signals/internal/signal"
)

type order struct {
	ID    string  `json:"id"`
	Total float64 `json:"total"`
}

const orderScript = `
seen = {}
function record(o) table.insert(seen, o.id) end
function large(o) return o.total > 100 end
function check(o)
    if o.total < 0 then return "negative total" end
    if o.total == 0 then return false end
    return true
end
function count() return #seen end
`

func newOrderEngine(t *testing.T) *Engine {
	t.Helper()
	e := New()
	t.Cleanup(e.Close)
	if err := e.DoString(orderScript); err != nil {
		t.Fatal(err)
	}
	return e
}

func TestConnect_WithPredicate(t *testing.T) {
	e := newOrderEngine(t)
	sig := signal.New[order]("order_placed")

	if err := Connect(e, sig, "record", "large"); err != nil {
		t.Fatal(err)
	}

	sig.Send(context.Background(), order{ID: "small", Total: 5})
	sig.Send(context.Background(), order{ID: "big", Total: 500})

	results, err := e.Call(context.Background(), "count")
	if err != nil {
		t.Fatal(err)
	}
	if results[0] != int64(1) {
		t.Errorf("expected one recorded order, got %v", results[0])
	}
}

func TestConnect_MissingFunction(t *testing.T) {
	e := newOrderEngine(t)
	sig := signal.New[order]("order_placed")

	if err := Connect(e, sig, "nope", ""); !errors.Is(err, ErrFunctionNotFound) {
		t.Errorf("expected ErrFunctionNotFound, got %v", err)
	}
	if err := Connect(e, sig, "record", "nope"); !errors.Is(err, ErrFunctionNotFound) {
		t.Errorf("expected ErrFunctionNotFound, got %v", err)
	}
	if sig.ReceiverCount() != 0 {
		t.Errorf("expected no receivers, got %d", sig.ReceiverCount())
	}
}

func TestReceiver_Results(t *testing.T) {
	e := newOrderEngine(t)
	r := Receiver[order](e, "check")

	if err := r(context.Background(), order{Total: 10}); err != nil {
		t.Errorf("expected success, got %v", err)
	}
	if err := r(context.Background(), order{Total: 0}); !errors.Is(err, ErrRejected) {
		t.Errorf("expected ErrRejected for false, got %v", err)
	}
	err := r(context.Background(), order{Total: -1})
	if !errors.Is(err, ErrRejected) || err.Error() != "lua check: lua receiver rejected payload: negative total" {
		t.Errorf("unexpected error %v", err)
	}
}

func TestReceiver_FailureIsReceiverError(t *testing.T) {
	e := newOrderEngine(t)
	sig := signal.New[order]("order_placed")
	sig.Connect(Receiver[order](e, "check"))

	_, err := sig.Send(context.Background(), order{Total: -5})
	var re *signal.ReceiverError
	if !errors.As(err, &re) {
		t.Fatalf("expected ReceiverError, got %v", err)
	}
	if !errors.Is(err, ErrRejected) {
		t.Errorf("expected ErrRejected in chain, got %v", err)
	}
}

func TestPredicate_Failure(t *testing.T) {
	e := newOrderEngine(t)
	if err := e.DoString(`function broken(o) error("bad") end`); err != nil {
		t.Fatal(err)
	}
	if Predicate[order](e, "broken")(order{}) {
		t.Error("expected a failing predicate to reject")
	}
	if Predicate[order](e, "missing")(order{}) {
		t.Error("expected a missing predicate to reject")
	}
}
