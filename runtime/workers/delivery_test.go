package workers

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pairlink/domain/event"
	"pairlink/runtime"
)

type recordingSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (s *recordingSink) Consume(ctx context.Context, e event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Events() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Event(nil), s.events...)
}

func Test_Delivery_Pushes_To_Registered_Sinks_Only(t *testing.T) {
	req := require.New(t)
	router := runtime.NewRouter(slog.Default(), 16)
	sink := &recordingSink{}
	router.Register("s1", sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = NewDelivery(slog.Default(), router, time.Second).Run(ctx)
	}()

	// One target is live, the other disconnected before delivery
	router.ToSessions([]string{"s1", "gone"}, event.UserIsOnline{Username: "alice"})

	req.Eventually(func() bool {
		return len(sink.Events()) == 1
	}, time.Second, 10*time.Millisecond)
	req.Equal(event.NameUserIsOnline, sink.Events()[0].EventName())
}

func Test_Delivery_Keeps_Emission_Order(t *testing.T) {
	req := require.New(t)
	router := runtime.NewRouter(slog.Default(), 16)
	sink := &recordingSink{}
	router.Register("s1", sink)

	router.ToSession("s1", event.UserIsOnline{Username: "alice"})
	router.ToSession("s1", event.NewMessageAlert{SenderUsername: "bob"})
	router.ToSession("s1", event.UserIsOffline{Username: "alice"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = NewDelivery(slog.Default(), router, time.Second).Run(ctx)
	}()

	req.Eventually(func() bool {
		return len(sink.Events()) == 3
	}, time.Second, 10*time.Millisecond)

	events := sink.Events()
	req.Equal(event.NameUserIsOnline, events[0].EventName())
	req.Equal(event.NameNewMessageAlert, events[1].EventName())
	req.Equal(event.NameUserIsOffline, events[2].EventName())
}

func Test_Supervisor_Restarts_Panicking_Worker(t *testing.T) {
	req := require.New(t)

	var mu sync.Mutex
	runs := 0
	worker := workerFunc(func(ctx context.Context) error {
		mu.Lock()
		runs++
		crashed := runs == 1
		mu.Unlock()
		if crashed {
			panic("boom")
		}
		<-ctx.Done()
		return nil
	})

	sup := NewSupervisor(slog.Default())
	sup.Add(worker)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	req.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return runs >= 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

type workerFunc func(ctx context.Context) error

func (f workerFunc) Run(ctx context.Context) error { return f(ctx) }
