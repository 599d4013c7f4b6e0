package e2e

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"pairlink/domain/event"
	"pairlink/ws"
)

type testMessagingSuite struct {
	BaseWsSuite
}

func TestMessagingSuite(t *testing.T) {
	suite.Run(t, &testMessagingSuite{})
}

func (s *testMessagingSuite) TestFullMessagingFlow() {
	var alice, bob *wsSession

	// --- STEP 1: ALICE OPENS THE THREAD WITH BOB ---
	s.Run("Step 1: Alice connects and gets snapshot, group and empty thread", func() {
		alice = s.Dial("Alice joins the thread with Bob", "alice", "bob")

		var snapshot event.OnlineUsers
		s.Decode(s.WaitFor(alice, event.NameOnlineUsers), &snapshot)
		s.Require().Contains(snapshot.Usernames, "alice")

		var joined event.GroupUpdated
		s.Decode(s.WaitFor(alice, event.NameGroupUpdated), &joined)
		s.Require().Equal("alice-bob", joined.Group.Name)
		s.Require().Len(joined.Group.Connections, 1)

		var thread event.MessageThread
		s.Decode(s.WaitFor(alice, event.NameMessageThread), &thread)
		s.Require().Empty(thread.Messages)
	})

	// --- STEP 2: BOB JOINS THE SAME THREAD ---
	s.Run("Step 2: Bob connects, Alice is notified on both channels", func() {
		bob = s.Dial("Bob joins the thread with Alice", "bob", "alice")

		var online event.UserIsOnline
		s.Decode(s.WaitFor(alice, event.NameUserIsOnline), &online)
		s.Require().Equal("bob", online.Username)

		var snapshot event.OnlineUsers
		s.Decode(s.WaitFor(bob, event.NameOnlineUsers), &snapshot)
		s.Require().ElementsMatch([]string{"alice", "bob"}, snapshot.Usernames)

		// Both sides of the pair observe the membership change
		var joined event.GroupUpdated
		s.Decode(s.WaitFor(bob, event.NameGroupUpdated), &joined)
		s.Require().Len(joined.Group.Connections, 2)
		s.Decode(s.WaitFor(alice, event.NameGroupUpdated), &joined)
		s.Require().Len(joined.Group.Connections, 2)

		var thread event.MessageThread
		s.Decode(s.WaitFor(bob, event.NameMessageThread), &thread)
		s.Require().Empty(thread.Messages)
	})

	// --- STEP 3: SEND WHILE THE RECIPIENT IS VIEWING ---
	s.Run("Step 3: Message to a viewing recipient is born read, no alert", func() {
		s.SendFrame(alice, map[string]string{
			"type":              ws.MsgTypeSendMessage,
			"recipientUsername": "bob",
			"content":           "ready for coffee?",
		})

		var pushed event.NewMessage
		s.Decode(s.WaitFor(bob, event.NameNewMessage), &pushed)
		s.Require().Equal("alice", pushed.Message.SenderUsername)
		s.Require().Equal("ready for coffee?", pushed.Message.Content)
		s.Require().NotNil(pushed.Message.ReadAt, "recipient was viewing, message must be born read")

		s.Decode(s.WaitFor(alice, event.NameNewMessage), &pushed)
		s.Require().NotNil(pushed.Message.ReadAt)

		s.ExpectSilence(bob, event.NameNewMessageAlert, 300*time.Millisecond)
	})

	// --- STEP 4: BOB LEAVES ---
	s.Run("Step 4: Bob disconnects, Alice sees the leave then the offline transition", func() {
		s.Require().NoError(bob.conn.Close())

		var left event.GroupUpdated
		s.Decode(s.WaitFor(alice, event.NameGroupUpdated), &left)
		s.Require().Len(left.Group.Connections, 1)
		s.Require().Equal("alice", left.Group.Connections[0].Username)

		var offline event.UserIsOffline
		s.Decode(s.WaitFor(alice, event.NameUserIsOffline), &offline)
		s.Require().Equal("bob", offline.Username)
	})

	// --- STEP 5: SEND TO AN OFFLINE RECIPIENT ---
	s.Run("Step 5: Message to an offline recipient stays unread", func() {
		s.SendFrame(alice, map[string]string{
			"type":              ws.MsgTypeSendMessage,
			"recipientUsername": "bob",
			"content":           "see you tomorrow then",
		})

		var pushed event.NewMessage
		s.Decode(s.WaitFor(alice, event.NameNewMessage), &pushed)
		s.Require().Nil(pushed.Message.ReadAt)
	})

	// --- STEP 6: BOB COMES BACK ---
	s.Run("Step 6: Rejoining delivers the full thread with everything marked read", func() {
		bob = s.Dial("Bob rejoins the thread with Alice", "bob", "alice")

		var thread event.MessageThread
		s.Decode(s.WaitFor(bob, event.NameMessageThread), &thread)
		s.Require().Len(thread.Messages, 2)
		s.Require().Equal("ready for coffee?", thread.Messages[0].Content)
		s.Require().Equal("see you tomorrow then", thread.Messages[1].Content)
		for _, msg := range thread.Messages {
			s.Require().NotNil(msg.ReadAt, "joining the thread must settle every unread message")
		}
	})
}

func (s *testMessagingSuite) TestAlertReachesNonViewingRecipient() {
	alice := s.Dial("Alice joins the thread with Bob", "alice", "bob")
	s.WaitFor(alice, event.NameMessageThread)

	// Carol is online, but viewing her conversation with Bob
	carol := s.Dial("Carol joins the thread with Bob", "carol", "bob")
	s.WaitFor(carol, event.NameMessageThread)

	s.SendFrame(alice, map[string]string{
		"type":              ws.MsgTypeSendMessage,
		"recipientUsername": "carol",
		"content":           "are you free tonight?",
	})

	// The content never leaves the thread, only the identity summary does
	var alert event.NewMessageAlert
	s.Decode(s.WaitFor(carol, event.NameNewMessageAlert), &alert)
	s.Require().Equal("alice", alert.SenderUsername)
	s.Require().Equal("Alice", alert.SenderDisplayName)
	s.ExpectSilence(carol, event.NameNewMessage, 300*time.Millisecond)
}

func (s *testMessagingSuite) TestInvalidSendsEchoErrorsToCallerOnly() {
	alice := s.Dial("Alice joins the thread with Bob", "alice", "bob")
	s.WaitFor(alice, event.NameMessageThread)
	bob := s.Dial("Bob joins the thread with Alice", "bob", "alice")
	s.WaitFor(bob, event.NameMessageThread)

	s.Run("Messaging yourself is rejected", func() {
		s.SendFrame(alice, map[string]string{
			"type":              ws.MsgTypeSendMessage,
			"recipientUsername": "Alice",
			"content":           "note to self",
		})
		s.WaitFor(alice, ws.MsgTypeError)
		s.ExpectSilence(bob, event.NameNewMessage, 300*time.Millisecond)
	})

	s.Run("Unknown recipient is rejected", func() {
		s.SendFrame(alice, map[string]string{
			"type":              ws.MsgTypeSendMessage,
			"recipientUsername": "mallory",
			"content":           "anyone there?",
		})
		s.WaitFor(alice, ws.MsgTypeError)
	})

	s.Run("Empty content is rejected", func() {
		s.SendFrame(alice, map[string]string{
			"type":              ws.MsgTypeSendMessage,
			"recipientUsername": "bob",
			"content":           "   ",
		})
		s.WaitFor(alice, ws.MsgTypeError)
		s.ExpectSilence(bob, event.NameNewMessage, 300*time.Millisecond)
	})
}

func (s *testMessagingSuite) TestRejectsMissingToken() {
	resp, err := s.server.Client().Get(s.server.URL + "/ws?user=bob")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(401, resp.StatusCode)
}
