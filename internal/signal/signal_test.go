package signal

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/signals/internal/signal/dispatch"
)

type order struct {
	ID    int
	Total float64
}

type userService struct{}

type billingService struct{}

// recorder collects receiver labels in the order they ran.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) receiver(label string, err error) ReceiverFunc[order] {
	return func(ctx context.Context, o order) error {
		r.mu.Lock()
		r.calls = append(r.calls, label)
		r.mu.Unlock()
		return err
	}
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSignal_PriorityOrdering(t *testing.T) {
	s := New[order]("order_placed")
	rec := &recorder{}

	s.ConnectWithPriority(rec.receiver("p0", nil), 0)
	s.ConnectWithPriority(rec.receiver("p10", nil), 10)
	s.ConnectWithPriority(rec.receiver("p5", nil), 5)
	s.ConnectWithPriority(rec.receiver("p10-second", nil), 10)

	if _, err := s.Send(context.Background(), order{ID: 1}); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}

	want := []string{"p10", "p10-second", "p5", "p0"}
	if got := rec.got(); !equalStrings(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSignal_DispatchKeyIdempotent(t *testing.T) {
	s := New[order]("order_placed")
	rec := &recorder{}

	if err := s.ConnectWithOptions(rec.receiver("first", nil), NoSender, "audit", 0); err != nil {
		t.Fatal(err)
	}
	if err := s.ConnectWithOptions(rec.receiver("second", nil), NoSender, "audit", 0); err != nil {
		t.Fatal(err)
	}

	if s.ReceiverCount() != 1 {
		t.Fatalf("expected 1 receiver, got %d", s.ReceiverCount())
	}

	s.Send(context.Background(), order{})
	if got := rec.got(); !equalStrings(got, []string{"second"}) {
		t.Errorf("expected only the replacement to run, got %v", got)
	}
}

func TestSignal_SenderFiltering(t *testing.T) {
	s := New[order]("order_placed")
	rec := &recorder{}

	s.ConnectWithOptions(rec.receiver("users", nil), SenderOf[userService](), "", 0)
	s.ConnectWithOptions(rec.receiver("billing", nil), SenderOf[billingService](), "", 0)
	s.Connect(rec.receiver("any", nil))

	tests := []struct {
		name   string
		sender SenderType
		want   []string
	}{
		{"no sender", NoSender, []string{"any"}},
		{"user service", SenderOf[userService](), []string{"users", "any"}},
		{"billing service", SenderOf[billingService](), []string{"billing", "any"}},
		{"sender from value", SenderFor(billingService{}), []string{"billing", "any"}},
		{"unrelated sender", SenderOf[int](), []string{"any"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec.mu.Lock()
			rec.calls = nil
			rec.mu.Unlock()

			if _, err := s.SendWithSender(context.Background(), order{}, tt.sender); err != nil {
				t.Fatalf("SendWithSender() failed: %v", err)
			}
			if got := rec.got(); !equalStrings(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSignal_FailFast(t *testing.T) {
	s := New[order]("order_placed")
	rec := &recorder{}
	boom := errors.New("boom")

	s.ConnectWithPriority(rec.receiver("first", nil), 3)
	s.ConnectWithPriority(rec.receiver("failing", boom), 2)
	s.ConnectWithPriority(rec.receiver("never", nil), 1)

	outcomes, err := s.Send(context.Background(), order{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected error to wrap boom, got %v", err)
	}
	var re *ReceiverError
	if !errors.As(err, &re) {
		t.Fatalf("expected *ReceiverError, got %T", err)
	}
	if re.Signal != "order_placed" {
		t.Errorf("expected signal name order_placed, got %q", re.Signal)
	}
	if len(outcomes) != 2 {
		t.Errorf("expected 2 outcomes, got %d", len(outcomes))
	}
	if got := rec.got(); !equalStrings(got, []string{"first", "failing"}) {
		t.Errorf("expected first and failing to run, got %v", got)
	}
}

func TestSignal_SendRobust(t *testing.T) {
	s := New[order]("order_placed")
	rec := &recorder{}
	boom := errors.New("boom")

	s.ConnectWithPriority(rec.receiver("a", nil), 3)
	s.ConnectWithPriority(rec.receiver("b", boom), 2)
	s.ConnectWithPriority(rec.receiver("c", nil), 1)

	outcomes := s.SendRobust(context.Background(), order{}, NoSender)
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}

	failed := 0
	for _, o := range outcomes {
		if o.Failed() {
			failed++
			if !errors.Is(o.Err, boom) {
				t.Errorf("expected boom, got %v", o.Err)
			}
		}
	}
	if failed != 1 {
		t.Errorf("expected 1 failure, got %d", failed)
	}
	if got := rec.got(); !equalStrings(got, []string{"a", "b", "c"}) {
		t.Errorf("expected all receivers to run, got %v", got)
	}
}

func TestSignal_PredicateGating(t *testing.T) {
	s := New[order]("order_placed")
	var ran atomic.Int32

	s.ConnectIf(func(ctx context.Context, o order) error {
		ran.Add(1)
		return nil
	}, func(o order) bool { return o.Total > 100 })

	s.Send(context.Background(), order{Total: 50})
	if ran.Load() != 0 {
		t.Errorf("expected receiver to be skipped, ran %d times", ran.Load())
	}

	s.Send(context.Background(), order{Total: 150})
	if ran.Load() != 1 {
		t.Errorf("expected receiver to run once, ran %d times", ran.Load())
	}

	if got := s.Metrics().ReceiverExecutions; got != 1 {
		t.Errorf("expected 1 execution recorded, got %d", got)
	}
}

func TestSignal_PanickingPredicateSkips(t *testing.T) {
	s := New[order]("order_placed")
	s.ConnectIf(func(ctx context.Context, o order) error {
		t.Error("receiver should not run")
		return nil
	}, func(o order) bool { panic("bad predicate") })

	outcomes, err := s.Send(context.Background(), order{})
	if err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	if len(outcomes) != 0 {
		t.Errorf("expected no outcomes, got %d", len(outcomes))
	}
}

func TestSignal_ReceiverPanicIsolated(t *testing.T) {
	s := New[order]("order_placed")
	rec := &recorder{}

	s.ConnectWithPriority(func(ctx context.Context, o order) error {
		panic("receiver exploded")
	}, 10)
	s.ConnectWithPriority(rec.receiver("after", nil), 0)

	outcomes := s.SendRobust(context.Background(), order{}, NoSender)
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if !outcomes[0].Panicked() {
		t.Error("expected first outcome to be a panic")
	}
	if !errors.Is(outcomes[0].Err, ErrReceiverPanic) {
		t.Errorf("expected ErrReceiverPanic, got %v", outcomes[0].Err)
	}
	if got := rec.got(); !equalStrings(got, []string{"after"}) {
		t.Errorf("expected later receiver to run, got %v", got)
	}

	m := s.Metrics()
	if m.Panics != 1 || m.FailedExecutions != 1 {
		t.Errorf("expected 1 panic and 1 failure, got %+v", m)
	}

	_, err := s.Send(context.Background(), order{})
	if !errors.Is(err, ErrReceiverPanic) {
		t.Errorf("expected fail-fast send to report the panic, got %v", err)
	}
}

func TestSignal_Disconnect(t *testing.T) {
	s := New[order]("order_placed")
	rec := &recorder{}

	s.ConnectWithOptions(rec.receiver("keyed", nil), NoSender, "keyed", 0)
	s.Connect(rec.receiver("anon", nil))

	if s.Disconnect("missing") {
		t.Error("expected Disconnect of an unknown key to return false")
	}
	if s.Disconnect("") {
		t.Error("expected Disconnect of an empty key to return false")
	}
	if !s.Disconnect("keyed") {
		t.Error("expected Disconnect to return true")
	}
	if s.ReceiverCount() != 1 {
		t.Errorf("expected 1 receiver left, got %d", s.ReceiverCount())
	}

	s.Send(context.Background(), order{})
	if got := rec.got(); !equalStrings(got, []string{"anon"}) {
		t.Errorf("expected only anon to run, got %v", got)
	}

	s.DisconnectAll()
	if s.HasReceivers() {
		t.Error("expected no receivers after DisconnectAll")
	}
}

func TestSignal_NilReceiver(t *testing.T) {
	s := New[order]("order_placed")

	err := s.Connect(nil)
	var re *RegistrationError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RegistrationError, got %v", err)
	}
	if !errors.Is(err, ErrNilReceiver) {
		t.Errorf("expected ErrNilReceiver, got %v", err)
	}
}

func TestSignal_RequireReceivers(t *testing.T) {
	s := New[order]("order_placed", WithRequireReceivers())

	_, err := s.Send(context.Background(), order{})
	if !errors.Is(err, ErrNoReceivers) {
		t.Errorf("expected ErrNoReceivers, got %v", err)
	}

	if outcomes := s.SendRobust(context.Background(), order{}, NoSender); len(outcomes) != 0 {
		t.Errorf("expected no outcomes, got %d", len(outcomes))
	}

	plain := New[order]("order_placed")
	if _, err := plain.Send(context.Background(), order{}); err != nil {
		t.Errorf("expected no error without receivers, got %v", err)
	}
}

func TestSignal_SnapshotAtSendStart(t *testing.T) {
	s := New[order]("order_placed")
	var late atomic.Int32

	s.ConnectWithPriority(func(ctx context.Context, o order) error {
		return s.Connect(func(ctx context.Context, o order) error {
			late.Add(1)
			return nil
		})
	}, 10)

	s.Send(context.Background(), order{})
	if late.Load() != 0 {
		t.Errorf("expected receiver connected mid-send to wait for the next send, ran %d", late.Load())
	}

	s.Send(context.Background(), order{})
	if late.Load() != 1 {
		t.Errorf("expected 1 run on the second send, got %d", late.Load())
	}
}

func TestSignal_Receive(t *testing.T) {
	s := New[order]("order_placed")
	rec := &recorder{}

	err := Receive(s, rec.receiver("declared", nil),
		WithSender[userService](),
		WithDispatchKey("declared"),
		WithPriority(PriorityHigh),
		When(func(o order) bool { return o.ID > 0 }),
	)
	if err != nil {
		t.Fatalf("Receive() failed: %v", err)
	}

	refs := s.Receivers()
	if len(refs) != 1 {
		t.Fatalf("expected 1 receiver, got %d", len(refs))
	}
	if refs[0].DispatchKey != "declared" || refs[0].Priority != PriorityHigh {
		t.Errorf("unexpected receiver ref %+v", refs[0])
	}
	if refs[0].Sender != SenderOf[userService]() {
		t.Errorf("expected userService sender, got %v", refs[0].Sender)
	}

	s.SendWithSender(context.Background(), order{ID: 0}, SenderOf[userService]())
	s.SendWithSender(context.Background(), order{ID: 1}, SenderOf[userService]())
	if got := rec.got(); !equalStrings(got, []string{"declared"}) {
		t.Errorf("expected one run, got %v", got)
	}
}

func TestSignal_ReceiveTypeMismatch(t *testing.T) {
	s := New[order]("order_placed")
	err := Receive(s, func(ctx context.Context, o order) error { return nil },
		When(func(n int) bool { return true }))
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestSignal_SendAsync(t *testing.T) {
	s := New[order]("order_placed")
	var ran atomic.Int32

	s.Connect(func(ctx context.Context, o order) error {
		ran.Add(1)
		return nil
	})

	for i := 0; i < 5; i++ {
		if err := s.SendAsync(context.Background(), order{ID: i}); err != nil {
			t.Fatalf("SendAsync() failed: %v", err)
		}
	}
	s.WaitAsync()

	if ran.Load() != 5 {
		t.Errorf("expected 5 runs, got %d", ran.Load())
	}
}

func TestSignal_SendAsyncIgnoresCancel(t *testing.T) {
	s := New[order]("order_placed")
	done := make(chan error, 1)

	s.Connect(func(ctx context.Context, o order) error {
		done <- ctx.Err()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.SendAsync(ctx, order{}); err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected receiver context to be detached, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("async receiver did not run")
	}
}

func TestSignal_SendAsyncFailureHandler(t *testing.T) {
	s := New[order]("order_placed")
	boom := errors.New("boom")
	s.Connect(func(ctx context.Context, o order) error { return boom })

	failures := make(chan Outcome, 1)
	s.OnAsyncFailure(func(ctx context.Context, o order, out Outcome) {
		failures <- out
	})

	if err := s.SendAsync(context.Background(), order{ID: 7}); err != nil {
		t.Fatal(err)
	}

	select {
	case out := <-failures:
		if !errors.Is(out.Err, boom) {
			t.Errorf("expected boom, got %v", out.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("failure handler was not called")
	}
}

func TestSignal_SendAsyncPoolBackpressure(t *testing.T) {
	pool := dispatch.NewPool(dispatch.WithQueueSize(1), dispatch.WithWorkerCount(1))
	if err := pool.Start(); err != nil {
		t.Fatal(err)
	}
	defer pool.Stop(context.Background())

	s := New[order]("order_placed", WithPool(pool))
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	s.Connect(func(ctx context.Context, o order) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	})

	if err := s.SendAsync(context.Background(), order{}); err != nil {
		t.Fatal(err)
	}
	<-started
	if err := s.SendAsync(context.Background(), order{}); err != nil {
		t.Fatalf("expected queued send, got %v", err)
	}

	err := s.SendAsync(context.Background(), order{})
	if !errors.Is(err, dispatch.ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}

	close(release)
	s.WaitAsync()
}

func TestSignal_Redeliver(t *testing.T) {
	s := New[order]("order_placed")
	attempts := 0
	s.ConnectWithOptions(func(ctx context.Context, o order) error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	}, NoSender, "flaky", 0)

	outcomes := s.SendRobust(context.Background(), order{}, NoSender)
	if len(outcomes) != 1 || !outcomes[0].Failed() {
		t.Fatalf("expected one failed outcome, got %+v", outcomes)
	}

	o, err := s.Redeliver(context.Background(), order{}, outcomes[0].Receiver.ID)
	if err != nil {
		t.Fatalf("Redeliver() failed: %v", err)
	}
	if o.Failed() {
		t.Error("expected redelivery to succeed")
	}

	_, err = s.Redeliver(context.Background(), order{}, "missing")
	if !errors.Is(err, ErrReceiverNotFound) {
		t.Errorf("expected ErrReceiverNotFound, got %v", err)
	}
}

func TestSignal_ConcurrentSendAndConnect(t *testing.T) {
	s := New[order]("order_placed")
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.ConnectWithOptions(func(ctx context.Context, o order) error { return nil },
				NoSender, fmt.Sprintf("k%d", i%3), i)
		}(i)
		go func() {
			defer wg.Done()
			s.Send(context.Background(), order{})
		}()
	}
	wg.Wait()

	if s.ReceiverCount() != 3 {
		t.Errorf("expected 3 keyed receivers, got %d", s.ReceiverCount())
	}
}

func TestSignal_Metadata(t *testing.T) {
	s := New[order]("order_placed")
	alias := s

	s.Metadata().Set("owner", "billing")
	v, ok := MetadataValue[string](alias.Metadata(), "owner")
	if !ok || v != "billing" {
		t.Errorf("expected billing, got %q (%v)", v, ok)
	}
	if _, ok := MetadataValue[int](s.Metadata(), "owner"); ok {
		t.Error("expected type mismatch to report false")
	}
	if !s.Metadata().Delete("owner") || s.Metadata().Has("owner") {
		t.Error("expected owner to be deleted")
	}
}

func TestSignal_ReceiveWithSenderType(t *testing.T) {
	s := New[order]("order_billed")
	rec := &recorder{}

	if err := Receive(s, rec.receiver("billing", nil), WithSenderType(SenderFor(billingService{}))); err != nil {
		t.Fatalf("Receive() failed: %v", err)
	}

	s.SendWithSender(context.Background(), order{ID: 1}, SenderOf[userService]())
	s.Send(context.Background(), order{ID: 2})
	s.SendWithSender(context.Background(), order{ID: 3}, SenderOf[billingService]())

	if got := rec.got(); !equalStrings(got, []string{"billing"}) {
		t.Errorf("expected only the billing send to run, got %v", got)
	}
}

// cacheOwner is a weak receiver owner large enough to avoid the tiny
// allocator, so it is collected as soon as it is unreachable.
type cacheOwner struct {
	name string
	buf  [64]byte
}

func TestConnectWeak_RunsWhileOwnerAlive(t *testing.T) {
	s := New[order]("order_cached")
	owner := &cacheOwner{name: "cache"}
	var seen []string

	err := ConnectWeak(s, owner, func(ctx context.Context, o *cacheOwner, p order) error {
		seen = append(seen, fmt.Sprintf("%s:%d", o.name, p.ID))
		return nil
	}, WithDispatchKey("cache"), WithPriority(PriorityHigh))
	if err != nil {
		t.Fatalf("ConnectWeak() failed: %v", err)
	}

	s.Send(context.Background(), order{ID: 7})
	if !equalStrings(seen, []string{"cache:7"}) {
		t.Errorf("unexpected calls %v", seen)
	}
	if !s.HasReceivers() || s.ClearDeadReceivers() != 0 {
		t.Error("live weak receiver must not be pruned")
	}
	if !s.Disconnect("cache") {
		t.Error("weak receiver should disconnect by dispatch key")
	}
	runtime.KeepAlive(owner)
}

func TestConnectWeak_PrunedAfterOwnerCollected(t *testing.T) {
	s := New[order]("order_cached")
	var calls atomic.Int32
	s.Connect(func(ctx context.Context, o order) error { return nil })

	func() {
		owner := &cacheOwner{name: "cache"}
		if err := ConnectWeak(s, owner, func(ctx context.Context, o *cacheOwner, p order) error {
			calls.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("ConnectWeak() failed: %v", err)
		}
		s.Send(context.Background(), order{ID: 1})
		runtime.KeepAlive(owner)
	}()
	if calls.Load() != 1 {
		t.Fatalf("expected 1 call while owner alive, got %d", calls.Load())
	}

	removed := 0
	for i := 0; i < 20 && removed == 0; i++ {
		runtime.GC()
		removed = s.ClearDeadReceivers()
		if removed == 0 {
			time.Sleep(10 * time.Millisecond)
		}
	}
	if removed != 1 {
		t.Fatalf("expected 1 dead receiver removed, got %d", removed)
	}
	if s.ReceiverCount() != 1 || !s.HasReceivers() {
		t.Errorf("strong receiver should remain, count=%d", s.ReceiverCount())
	}

	outcomes, _ := s.Send(context.Background(), order{ID: 2})
	if len(outcomes) != 1 || calls.Load() != 1 {
		t.Errorf("dead weak receiver ran: outcomes=%d calls=%d", len(outcomes), calls.Load())
	}
}

func TestConnectWeak_InvalidArguments(t *testing.T) {
	s := New[order]("order_cached")
	fn := func(ctx context.Context, o *cacheOwner, p order) error { return nil }

	if err := ConnectWeak[order, cacheOwner](s, nil, fn); !errors.Is(err, ErrNilReceiver) {
		t.Errorf("expected ErrNilReceiver for nil owner, got %v", err)
	}
	if err := ConnectWeak[order, cacheOwner](nil, &cacheOwner{}, fn); !errors.Is(err, ErrNilSignal) {
		t.Errorf("expected ErrNilSignal, got %v", err)
	}
	if err := ConnectWeak(s, &cacheOwner{}, fn, When(func(n int) bool { return true })); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
}
