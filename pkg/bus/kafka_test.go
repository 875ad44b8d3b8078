package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"

	"github.com/mahaj/lionsphere/pkg/logging"
)

type fakeReader struct {
	mu    sync.Mutex
	queue []any // kafka.Message or error
	reads int
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	r.reads++
	if len(r.queue) == 0 {
		r.mu.Unlock()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	next := r.queue[0]
	r.queue = r.queue[1:]
	r.mu.Unlock()

	if err, ok := next.(error); ok {
		return kafka.Message{}, err
	}
	return next.(kafka.Message), nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumeHandlesAndSkips(t *testing.T) {
	r := &fakeReader{queue: []any{
		kafka.Message{Value: []byte("a")},
		errors.New("broker gone"),
		kafka.Message{Value: []byte("bad")},
		kafka.Message{Value: []byte("b")},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	var got []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		Consume(ctx, r, func(_ context.Context, v []byte) error {
			got = append(got, string(v))
			if string(v) == "b" {
				cancel()
			}
			if string(v) == "bad" {
				return errors.New("cannot decode")
			}
			return nil
		}, time.Millisecond, logging.Discard())
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consume did not stop")
	}
	assert.Equal(t, []string{"a", "bad", "b"}, got)
}

func TestConsumeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		Consume(ctx, &fakeReader{}, func(context.Context, []byte) error { return nil }, time.Second, logging.Discard())
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consume did not stop")
	}
}
