package worker

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"titus/internal/amqp"
	"titus/internal/core"
	"titus/internal/services"
)

type fakeReloader struct {
	calls atomic.Int32
	err   error
}

func (r *fakeReloader) Reload(context.Context) (*services.Dataset, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return &services.Dataset{Table: core.NewTable(nil, nil), Fingerprint: "abc"}, nil
}

type fakeConsumer struct {
	msgs []*amqp.RefreshRequestMessage
	errs []error
	err  error
}

func (c *fakeConsumer) ConsumeRefreshRequests(ctx context.Context, handler func(context.Context, *amqp.RefreshRequestMessage) error) error {
	for _, m := range c.msgs {
		c.errs = append(c.errs, handler(ctx, m))
	}
	if c.err != nil {
		return c.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestHandleRefreshRequest(t *testing.T) {
	r := &fakeReloader{}
	w := NewRefreshWorker(r, nil, 0, nil)
	if err := w.HandleRefreshRequest(context.Background(), amqp.NewRefreshRequestMessage("manual", "test")); err != nil {
		t.Fatalf("HandleRefreshRequest() error = %v", err)
	}

	r.err = errors.New("sheet unavailable")
	if err := w.HandleRefreshRequest(context.Background(), amqp.NewRefreshRequestMessage("manual", "test")); err == nil {
		t.Error("expected error to requeue the message")
	}
}

func TestRunConsumesUntilCancelled(t *testing.T) {
	r := &fakeReloader{}
	c := &fakeConsumer{msgs: []*amqp.RefreshRequestMessage{amqp.NewRefreshRequestMessage("a", ""), amqp.NewRefreshRequestMessage("b", "")}}
	w := NewRefreshWorker(r, c, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for r.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("reload called %d times, want 3", r.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestRunReportsConsumerFailure(t *testing.T) {
	w := NewRefreshWorker(&fakeReloader{err: errors.New("no data")}, &fakeConsumer{err: errors.New("access refused")}, 0, nil)
	err := w.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "access refused") {
		t.Fatalf("Run() error = %v, want consumer failure", err)
	}
}

func TestRunOnInterval(t *testing.T) {
	r := &fakeReloader{}
	w := NewRefreshWorker(r, nil, 5*time.Millisecond, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if r.calls.Load() < 2 {
		t.Errorf("reload called %d times, want startup plus scheduled", r.calls.Load())
	}
}
