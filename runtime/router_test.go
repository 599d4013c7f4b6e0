package runtime

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"pairlink/domain"
	"pairlink/domain/event"
)

type Sink struct{}

func (s Sink) Consume(ctx context.Context, e event.Event) error {
	return nil
}

func drain(t *testing.T, router *Router) []Envelope {
	t.Helper()
	var envelopes []Envelope
	for {
		select {
		case env := <-router.Outbound():
			envelopes = append(envelopes, env)
		default:
			return envelopes
		}
	}
}

func Test_Router_ToSession_Queues_One_Envelope(t *testing.T) {
	req := require.New(t)
	router := NewRouter(slog.Default(), 16)

	router.ToSession("s1", event.UserIsOnline{Username: "alice"})

	envelopes := drain(t, router)
	req.Len(envelopes, 1)
	req.Equal([]string{"s1"}, envelopes[0].SessionIDs)
	req.Equal(event.NameUserIsOnline, envelopes[0].Event.EventName())
}

func Test_Router_ToGroup_Targets_Joined_Sessions(t *testing.T) {
	req := require.New(t)
	router := NewRouter(slog.Default(), 16)

	group := domain.NewGroup("alice-bob")
	group.Add(domain.Connection{SessionID: "s1", Username: "alice"})
	group.Add(domain.Connection{SessionID: "s2", Username: "bob"})

	router.ToGroup(group, event.GroupUpdated{Group: group})

	envelopes := drain(t, router)
	req.Len(envelopes, 1)
	req.ElementsMatch([]string{"s1", "s2"}, envelopes[0].SessionIDs)
}

func Test_Router_ToGroup_Empty_Group_Emits_Nothing(t *testing.T) {
	req := require.New(t)
	router := NewRouter(slog.Default(), 16)

	router.ToGroup(domain.NewGroup("alice-bob"), event.GroupUpdated{})

	req.Empty(drain(t, router))
}

func Test_Router_ToAllExcept_Skips_Caller(t *testing.T) {
	req := require.New(t)
	router := NewRouter(slog.Default(), 16)

	router.Register("s1", Sink{})
	router.Register("s2", Sink{})
	router.Register("s3", Sink{})

	router.ToAllExcept("s2", event.UserIsOffline{Username: "bob"})

	envelopes := drain(t, router)
	req.Len(envelopes, 1)
	req.ElementsMatch([]string{"s1", "s3"}, envelopes[0].SessionIDs)
}

func Test_Router_Unregister_Removes_Sink(t *testing.T) {
	req := require.New(t)
	router := NewRouter(slog.Default(), 16)

	router.Register("s1", Sink{})
	_, ok := router.Sink("s1")
	req.True(ok)

	router.Unregister("s1")
	_, ok = router.Sink("s1")
	req.False(ok)
}

func Test_Router_Full_Channel_Drops(t *testing.T) {
	req := require.New(t)
	router := NewRouter(slog.Default(), 1)

	router.ToSession("s1", event.UserIsOnline{Username: "alice"})
	// Channel is full: the second emission is dropped, not blocked
	router.ToSession("s1", event.UserIsOffline{Username: "alice"})

	envelopes := drain(t, router)
	req.Len(envelopes, 1)
	req.Equal(event.NameUserIsOnline, envelopes[0].Event.EventName())
}
