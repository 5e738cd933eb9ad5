package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rentdesk/realtime/internal/auth"
	"github.com/rentdesk/realtime/internal/database"
	"github.com/rentdesk/realtime/internal/registry"
	"github.com/rentdesk/realtime/internal/rooms"
	"github.com/rentdesk/realtime/internal/stats"
	"github.com/rentdesk/realtime/internal/testutil"
	"github.com/rentdesk/realtime/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type fakeVerifier struct {
	claims auth.Claims
	err    error
	delay  time.Duration
}

func (f *fakeVerifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return auth.Claims{}, ctx.Err()
		}
	}
	return f.claims, f.err
}

// newTestGateway creates a Gateway with fresh in-memory state for each test.
func newTestGateway(t *testing.T, repo database.Repository, verifier auth.TokenVerifier) *Gateway {
	t.Helper()

	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Times(5)
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()

	g, err := NewGateway(testutil.TestLogger(t), repo, verifier,
		registry.NewSessionRegistry(), rooms.NewRoster(), su, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("failed to create test gateway: %v", err)
	}
	return g
}

var testClientSeq int

// newTestClient builds a client without a transport; handlers only ever
// touch the send channel.
func newTestClient(t *testing.T, g *Gateway, user *types.User) *Client {
	t.Helper()

	testClientSeq++
	c := &Client{
		id:      fmt.Sprintf("test-conn-%d", testClientSeq),
		gateway: g,
		log:     testutil.TestLogger(t),
		user:    user,
		send:    make(chan *ServerMessage, 16),
		stop:    make(chan struct{}),
	}
	g.addClient(c)
	if user != nil {
		g.registry.Register(user.Id, c.id)
		g.roster.Join(c.id, rooms.UserRoom(user.Id))
	}
	return c
}

func receive(t *testing.T, c *Client) *ServerMessage {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message: %+v", msg)
	default:
	}
}

var (
	tenant = types.User{Id: "7c5a9f7e-0001-4a5e-8b3f-000000000001", Name: "alice", Role: types.RoleTenant}
	owner  = types.User{Id: "7c5a9f7e-0002-4a5e-8b3f-000000000002", Name: "bob", Role: types.RoleOwner}
	third  = types.User{Id: "7c5a9f7e-0003-4a5e-8b3f-000000000003", Name: "carol", Role: types.RoleServiceProvider}
)

func TestHandleAuthenticate(t *testing.T) {
	t.Run("tenant authenticates and joins inbox room", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetUserById", tenant.Id).Return(tenant, nil).Once()
		db.On("UnreadCount", tenant.Id).Return(3, nil).Once()

		g := newTestGateway(t, db, &fakeVerifier{claims: auth.Claims{UserId: tenant.Id, Role: tenant.Role}})
		c := newTestClient(t, g, nil)

		g.dispatch(&ClientMessage{
			BaseMessage:  BaseMessage{Id: 1},
			Authenticate: &Authenticate{Token: "token"},
			client:       c,
		})

		msg := receive(t, c)
		assert.NotNil(t, msg.Authenticated, "expected authenticated event")
		assert.Equal(t, tenant, msg.Authenticated.User, "expected the resolved user")
		assert.Equal(t, 3, msg.Authenticated.UnreadCount, "expected unread count")
		assert.Equal(t, 1, msg.Id, "expected the request id echoed back")

		assert.True(t, g.registry.IsOnline(tenant.Id), "expected session registered")
		assert.ElementsMatch(t, []string{c.id}, g.roster.MembersOf(rooms.UserRoom(tenant.Id)),
			"expected connection in personal inbox room")
	})

	t.Run("owner connections are bootstrapped into property rooms", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetUserById", owner.Id).Return(owner, nil).Once()
		db.On("ListOwnedProperties", owner.Id).Return([]string{"p1", "p2"}, nil).Once()
		db.On("UnreadCount", owner.Id).Return(0, nil).Once()

		g := newTestGateway(t, db, &fakeVerifier{claims: auth.Claims{UserId: owner.Id, Role: owner.Role}})
		c := newTestClient(t, g, nil)

		g.dispatch(&ClientMessage{
			Authenticate: &Authenticate{Token: "token"},
			client:       c,
		})

		msg := receive(t, c)
		assert.NotNil(t, msg.Authenticated, "expected authenticated event")
		assert.ElementsMatch(t, []string{c.id}, g.roster.MembersOf(rooms.PropertyRoom("p1")))
		assert.ElementsMatch(t, []string{c.id}, g.roster.MembersOf(rooms.PropertyRoom("p2")))
	})

	t.Run("invalid token leaves connection open and unauthenticated", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)

		g := newTestGateway(t, db, &fakeVerifier{err: auth.ErrInvalidToken})
		c := newTestClient(t, g, nil)

		g.dispatch(&ClientMessage{
			BaseMessage:  BaseMessage{Id: 2},
			Authenticate: &Authenticate{Token: "bad"},
			client:       c,
		})

		msg := receive(t, c)
		assert.NotNil(t, msg.Response, "expected error response")
		assert.Equal(t, 401, msg.Response.ResponseCode)
		assert.Equal(t, "authentication failed", msg.Response.Error)
		assert.Nil(t, c.user, "expected connection to stay unauthenticated")
		assert.False(t, g.registry.IsOnline(tenant.Id), "expected no session")
	})

	t.Run("expired token prompts re-authentication", func(t *testing.T) {
		g := newTestGateway(t, &database.MockRepository{}, &fakeVerifier{err: auth.ErrExpiredToken})
		c := newTestClient(t, g, nil)

		g.dispatch(&ClientMessage{
			Authenticate: &Authenticate{Token: "stale"},
			client:       c,
		})

		msg := receive(t, c)
		assert.Equal(t, 401, msg.Response.ResponseCode)
		assert.Equal(t, "token expired", msg.Response.Error)
	})

	t.Run("verifier timeout rejects without disconnecting", func(t *testing.T) {
		g := newTestGateway(t, &database.MockRepository{},
			&fakeVerifier{claims: auth.Claims{UserId: tenant.Id}, delay: time.Second})
		c := newTestClient(t, g, nil)

		g.dispatch(&ClientMessage{
			Authenticate: &Authenticate{Token: "slow"},
			client:       c,
		})

		msg := receive(t, c)
		assert.Equal(t, 401, msg.Response.ResponseCode)
		assert.Nil(t, c.user, "expected connection to stay unauthenticated")
	})

	t.Run("unknown user rejects", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetUserById", tenant.Id).Return(types.User{}, sql.ErrNoRows).Once()

		g := newTestGateway(t, db, &fakeVerifier{claims: auth.Claims{UserId: tenant.Id}})
		c := newTestClient(t, g, nil)

		g.dispatch(&ClientMessage{
			Authenticate: &Authenticate{Token: "token"},
			client:       c,
		})

		msg := receive(t, c)
		assert.Equal(t, 401, msg.Response.ResponseCode)
	})

	t.Run("re-authentication is rejected", func(t *testing.T) {
		g := newTestGateway(t, &database.MockRepository{}, &fakeVerifier{})
		c := newTestClient(t, g, &tenant)

		g.dispatch(&ClientMessage{
			BaseMessage:  BaseMessage{Id: 3},
			Authenticate: &Authenticate{Token: "token"},
			client:       c,
		})

		msg := receive(t, c)
		assert.Equal(t, 400, msg.Response.ResponseCode)
		assert.Equal(t, "already authenticated", msg.Response.Error)
	})
}

func TestDispatchRequiresAuthentication(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)

	g := newTestGateway(t, db, &fakeVerifier{})
	c := newTestClient(t, g, nil)

	g.dispatch(&ClientMessage{
		BaseMessage: BaseMessage{Id: 1},
		Publish:     &Publish{ReceiverId: tenant.Id, Body: "hi"},
		client:      c,
	})

	msg := receive(t, c)
	assert.Equal(t, 401, msg.Response.ResponseCode, "expected authentication error")
	db.AssertNotCalled(t, "CreateMessage", mock.Anything)
}

func TestHandlePublish(t *testing.T) {
	savedFor := func(params database.CreateMessageParams) types.ChatMessage {
		return types.ChatMessage{
			Id:            "2d1e9a44-aaaa-4bbb-8ccc-000000000001",
			SenderId:      params.SenderId,
			ReceiverId:    params.ReceiverId,
			PropertyId:    params.PropertyId,
			MaintenanceId: params.MaintenanceId,
			Body:          params.Body,
			Kind:          params.Kind,
			CreatedAt:     Now(),
		}
	}

	t.Run("direct message reaches the receiver", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetUserById", owner.Id).Return(owner, nil).Once()
		params := database.CreateMessageParams{
			SenderId: tenant.Id, ReceiverId: owner.Id, Body: "hi", Kind: types.KindText,
		}
		db.On("CreateMessage", params).Return(savedFor(params), nil).Once()

		g := newTestGateway(t, db, &fakeVerifier{})
		sender := newTestClient(t, g, &tenant)
		receiver := newTestClient(t, g, &owner)

		g.dispatch(&ClientMessage{
			BaseMessage: BaseMessage{Id: 7},
			Publish:     &Publish{ReceiverId: owner.Id, Body: "hi"},
			client:      sender,
		})

		ack := receive(t, sender)
		assert.NotNil(t, ack.MessageSent, "expected message_sent ack to sender")
		assert.Equal(t, "hi", ack.MessageSent.Body)
		assert.Equal(t, 7, ack.Id, "expected ack to carry the request id")

		delivered := receive(t, receiver)
		assert.NotNil(t, delivered.NewMessage, "expected new_message to receiver")
		assert.Equal(t, "hi", delivered.NewMessage.Body)
		assert.Equal(t, tenant.Id, delivered.NewMessage.SenderId)

		assertNoMessage(t, receiver)
	})

	t.Run("every receiver connection gets the message", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetUserById", owner.Id).Return(owner, nil).Once()
		db.On("CreateMessage", mock.Anything).Return(savedFor(database.CreateMessageParams{
			SenderId: tenant.Id, ReceiverId: owner.Id, Body: "hi", Kind: types.KindText,
		}), nil).Once()

		g := newTestGateway(t, db, &fakeVerifier{})
		sender := newTestClient(t, g, &tenant)
		tab1 := newTestClient(t, g, &owner)
		tab2 := newTestClient(t, g, &owner)

		g.dispatch(&ClientMessage{
			Publish: &Publish{ReceiverId: owner.Id, Body: "hi"},
			client:  sender,
		})

		receive(t, sender)
		assert.NotNil(t, receive(t, tab1).NewMessage, "expected delivery to first tab")
		assert.NotNil(t, receive(t, tab2).NewMessage, "expected delivery to second tab")
	})

	t.Run("maintenance association broadcasts to the request room", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetUserById", owner.Id).Return(owner, nil).Once()
		db.On("CreateMessage", mock.Anything).Return(savedFor(database.CreateMessageParams{
			SenderId: tenant.Id, ReceiverId: owner.Id, Body: "leaky tap", Kind: types.KindText, MaintenanceId: "m1",
		}), nil).Once()

		g := newTestGateway(t, db, &fakeVerifier{})
		sender := newTestClient(t, g, &tenant)
		receiver := newTestClient(t, g, &owner)
		watcher := newTestClient(t, g, &third)
		g.roster.Join(watcher.id, rooms.MaintenanceRoom("m1"))

		g.dispatch(&ClientMessage{
			Publish: &Publish{ReceiverId: owner.Id, Body: "leaky tap", MaintenanceId: "m1"},
			client:  sender,
		})

		receive(t, sender)
		assert.NotNil(t, receive(t, receiver).NewMessage, "expected direct delivery")

		broadcast := receive(t, watcher)
		assert.NotNil(t, broadcast.NewMessage, "expected room broadcast to watcher")
		assert.Equal(t, "leaky tap", broadcast.NewMessage.Body)
	})

	t.Run("offline receiver is a no-op, not an error", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetUserById", owner.Id).Return(owner, nil).Once()
		db.On("CreateMessage", mock.Anything).Return(savedFor(database.CreateMessageParams{
			SenderId: tenant.Id, ReceiverId: owner.Id, Body: "hi", Kind: types.KindText,
		}), nil).Once()

		g := newTestGateway(t, db, &fakeVerifier{})
		sender := newTestClient(t, g, &tenant)

		g.dispatch(&ClientMessage{
			Publish: &Publish{ReceiverId: owner.Id, Body: "hi"},
			client:  sender,
		})

		ack := receive(t, sender)
		assert.NotNil(t, ack.MessageSent, "expected ack even when receiver is offline")
		assertNoMessage(t, sender)
	})

	t.Run("persistence failure aborts fan-out", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetUserById", owner.Id).Return(owner, nil).Once()
		db.On("CreateMessage", mock.Anything).Return(types.ChatMessage{}, errors.New("connection reset")).Once()

		g := newTestGateway(t, db, &fakeVerifier{})
		sender := newTestClient(t, g, &tenant)
		receiver := newTestClient(t, g, &owner)

		g.dispatch(&ClientMessage{
			BaseMessage: BaseMessage{Id: 4},
			Publish:     &Publish{ReceiverId: owner.Id, Body: "hi"},
			client:      sender,
		})

		msg := receive(t, sender)
		assert.Equal(t, 500, msg.Response.ResponseCode)
		assert.Equal(t, "failed to send message", msg.Response.Error)
		assertNoMessage(t, receiver)
	})

	t.Run("validation failures have no side effects", func(t *testing.T) {
		longBody := make([]byte, maxBodyLen+1)
		for i := range longBody {
			longBody[i] = 'a'
		}

		testCases := []struct {
			name      string
			publish   *Publish
			wantError string
		}{
			{
				name:      "empty body",
				publish:   &Publish{ReceiverId: owner.Id, Body: ""},
				wantError: "empty message body",
			},
			{
				name:      "body too long",
				publish:   &Publish{ReceiverId: owner.Id, Body: string(longBody)},
				wantError: "message body too long",
			},
			{
				name:      "missing receiver",
				publish:   &Publish{Body: "hi"},
				wantError: "missing receiver",
			},
			{
				name:      "unknown kind",
				publish:   &Publish{ReceiverId: owner.Id, Body: "hi", Kind: "carrier-pigeon"},
				wantError: "unknown message kind",
			},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				db := &database.MockRepository{}
				db.On("GetUserById", mock.Anything).Return(owner, nil).Maybe()

				g := newTestGateway(t, db, &fakeVerifier{})
				sender := newTestClient(t, g, &tenant)

				g.dispatch(&ClientMessage{
					Publish: tc.publish,
					client:  sender,
				})

				msg := receive(t, sender)
				assert.Equal(t, 400, msg.Response.ResponseCode)
				assert.Equal(t, tc.wantError, msg.Response.Error)
				db.AssertNotCalled(t, "CreateMessage", mock.Anything)
			})
		}
	})

	t.Run("unknown receiver is rejected before persisting", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetUserById", "nobody").Return(types.User{}, sql.ErrNoRows).Once()

		g := newTestGateway(t, db, &fakeVerifier{})
		sender := newTestClient(t, g, &tenant)

		g.dispatch(&ClientMessage{
			Publish: &Publish{ReceiverId: "nobody", Body: "hi"},
			client:  sender,
		})

		msg := receive(t, sender)
		assert.Equal(t, 400, msg.Response.ResponseCode)
		assert.Equal(t, "unknown receiver", msg.Response.Error)
		db.AssertNotCalled(t, "CreateMessage", mock.Anything)
	})
}

func TestHandleTyping(t *testing.T) {
	t.Run("typing indicator is forwarded to receiver connections", func(t *testing.T) {
		g := newTestGateway(t, &database.MockRepository{}, &fakeVerifier{})
		sender := newTestClient(t, g, &tenant)
		tab1 := newTestClient(t, g, &owner)
		tab2 := newTestClient(t, g, &owner)

		g.dispatch(&ClientMessage{
			Typing: &Typing{ReceiverId: owner.Id, Typing: true},
			client: sender,
		})

		for _, c := range []*Client{tab1, tab2} {
			msg := receive(t, c)
			assert.NotNil(t, msg.UserTyping, "expected user_typing event")
			assert.Equal(t, tenant.Id, msg.UserTyping.UserId)
			assert.True(t, msg.UserTyping.Typing)
		}

		assertNoMessage(t, sender)
	})

	t.Run("offline receiver drops the indicator silently", func(t *testing.T) {
		g := newTestGateway(t, &database.MockRepository{}, &fakeVerifier{})
		sender := newTestClient(t, g, &tenant)

		g.dispatch(&ClientMessage{
			Typing: &Typing{ReceiverId: owner.Id, Typing: true},
			client: sender,
		})

		assertNoMessage(t, sender)
	})
}

func TestHandleRead(t *testing.T) {
	t.Run("marks messages read and notifies the sender", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("MarkMessagesRead", owner.Id, tenant.Id).Return(2, nil).Once()

		g := newTestGateway(t, db, &fakeVerifier{})
		reader := newTestClient(t, g, &tenant)
		senderConn := newTestClient(t, g, &owner)

		g.dispatch(&ClientMessage{
			BaseMessage: BaseMessage{Id: 5},
			Read:        &Read{SenderId: owner.Id},
			client:      reader,
		})

		ack := receive(t, reader)
		assert.Equal(t, 200, ack.Response.ResponseCode)
		assert.Equal(t, 2, ack.Response.Data["count"])

		notice := receive(t, senderConn)
		assert.NotNil(t, notice.MessagesRead, "expected messages_read event")
		assert.Equal(t, tenant.Id, notice.MessagesRead.ReaderId)
		assert.Equal(t, 2, notice.MessagesRead.Count)
	})

	t.Run("repeated mark read reports zero newly affected", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("MarkMessagesRead", owner.Id, tenant.Id).Return(2, nil).Once()
		db.On("MarkMessagesRead", owner.Id, tenant.Id).Return(0, nil).Once()

		g := newTestGateway(t, db, &fakeVerifier{})
		reader := newTestClient(t, g, &tenant)

		for _, want := range []int{2, 0} {
			g.dispatch(&ClientMessage{
				Read:   &Read{SenderId: owner.Id},
				client: reader,
			})
			ack := receive(t, reader)
			assert.Equal(t, want, ack.Response.Data["count"], "expected affected count %d", want)
		}
	})

	t.Run("store failure surfaces an internal error", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("MarkMessagesRead", owner.Id, tenant.Id).Return(0, errors.New("db down")).Once()

		g := newTestGateway(t, db, &fakeVerifier{})
		reader := newTestClient(t, g, &tenant)

		g.dispatch(&ClientMessage{
			Read:   &Read{SenderId: owner.Id},
			client: reader,
		})

		msg := receive(t, reader)
		assert.Equal(t, 500, msg.Response.ResponseCode)
	})
}

func TestHandleJoinLeave(t *testing.T) {
	t.Run("own user room", func(t *testing.T) {
		g := newTestGateway(t, &database.MockRepository{}, &fakeVerifier{})
		c := newTestClient(t, g, &tenant)

		g.dispatch(&ClientMessage{
			Join:   &Join{RoomId: rooms.UserRoom(tenant.Id)},
			client: c,
		})

		msg := receive(t, c)
		assert.Equal(t, 200, msg.Response.ResponseCode)
	})

	t.Run("another user's inbox room is forbidden", func(t *testing.T) {
		g := newTestGateway(t, &database.MockRepository{}, &fakeVerifier{})
		c := newTestClient(t, g, &tenant)

		g.dispatch(&ClientMessage{
			Join:   &Join{RoomId: rooms.UserRoom(owner.Id)},
			client: c,
		})

		msg := receive(t, c)
		assert.Equal(t, 403, msg.Response.ResponseCode)
		assert.Empty(t, g.roster.MembersOf(rooms.UserRoom(owner.Id)), "expected no membership")
	})

	t.Run("property room requires association", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("IsPropertyMember", tenant.Id, "p1").Return(true, nil).Once()
		db.On("IsPropertyMember", tenant.Id, "p2").Return(false, nil).Once()

		g := newTestGateway(t, db, &fakeVerifier{})
		c := newTestClient(t, g, &tenant)

		g.dispatch(&ClientMessage{
			Join:   &Join{RoomId: rooms.PropertyRoom("p1")},
			client: c,
		})
		assert.Equal(t, 200, receive(t, c).Response.ResponseCode)
		assert.ElementsMatch(t, []string{c.id}, g.roster.MembersOf(rooms.PropertyRoom("p1")))

		g.dispatch(&ClientMessage{
			Join:   &Join{RoomId: rooms.PropertyRoom("p2")},
			client: c,
		})
		assert.Equal(t, 403, receive(t, c).Response.ResponseCode)
	})

	t.Run("maintenance room requires participation", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("IsMaintenanceParticipant", tenant.Id, "m1").Return(true, nil).Once()

		g := newTestGateway(t, db, &fakeVerifier{})
		c := newTestClient(t, g, &tenant)

		g.dispatch(&ClientMessage{
			Join:   &Join{RoomId: rooms.MaintenanceRoom("m1")},
			client: c,
		})
		assert.Equal(t, 200, receive(t, c).Response.ResponseCode)
	})

	t.Run("authorization lookup failure is an internal error", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("IsPropertyMember", tenant.Id, "p1").Return(false, errors.New("db down")).Once()

		g := newTestGateway(t, db, &fakeVerifier{})
		c := newTestClient(t, g, &tenant)

		g.dispatch(&ClientMessage{
			Join:   &Join{RoomId: rooms.PropertyRoom("p1")},
			client: c,
		})
		assert.Equal(t, 500, receive(t, c).Response.ResponseCode)
	})

	t.Run("malformed room name is rejected", func(t *testing.T) {
		g := newTestGateway(t, &database.MockRepository{}, &fakeVerifier{})
		c := newTestClient(t, g, &tenant)

		g.dispatch(&ClientMessage{
			Join:   &Join{RoomId: "lobby"},
			client: c,
		})
		assert.Equal(t, 400, receive(t, c).Response.ResponseCode)
	})

	t.Run("leave removes membership", func(t *testing.T) {
		g := newTestGateway(t, &database.MockRepository{}, &fakeVerifier{})
		c := newTestClient(t, g, &tenant)
		g.roster.Join(c.id, rooms.MaintenanceRoom("m1"))

		g.dispatch(&ClientMessage{
			Leave:  &Leave{RoomId: rooms.MaintenanceRoom("m1")},
			client: c,
		})

		assert.Equal(t, 200, receive(t, c).Response.ResponseCode)
		assert.Empty(t, g.roster.MembersOf(rooms.MaintenanceRoom("m1")), "expected membership removed")
	})
}

func TestDisconnect(t *testing.T) {
	t.Run("teardown retires the connection everywhere", func(t *testing.T) {
		g := newTestGateway(t, &database.MockRepository{}, &fakeVerifier{})
		c := newTestClient(t, g, &tenant)
		g.roster.Join(c.id, rooms.MaintenanceRoom("m1"))

		g.disconnect(c)

		assert.False(t, g.registry.IsOnline(tenant.Id), "expected user offline")
		assert.Empty(t, g.roster.RoomsOf(c.id), "expected connection out of all rooms")
		assert.Empty(t, g.roster.MembersOf(rooms.MaintenanceRoom("m1")))
		assert.Nil(t, g.client(c.id), "expected client removed from map")
	})

	t.Run("unauthenticated disconnect is clean", func(t *testing.T) {
		g := newTestGateway(t, &database.MockRepository{}, &fakeVerifier{})
		c := newTestClient(t, g, nil)

		g.disconnect(c)

		assert.Nil(t, g.client(c.id), "expected client removed from map")
	})

	t.Run("send after disconnect is a no-op", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetUserById", owner.Id).Return(owner, nil).Once()
		db.On("CreateMessage", mock.Anything).Return(types.ChatMessage{
			Id: "2d1e9a44-aaaa-4bbb-8ccc-000000000002", SenderId: tenant.Id,
			ReceiverId: owner.Id, Body: "hi", Kind: types.KindText, CreatedAt: Now(),
		}, nil).Once()

		g := newTestGateway(t, db, &fakeVerifier{})
		sender := newTestClient(t, g, &tenant)
		receiver := newTestClient(t, g, &owner)

		g.disconnect(receiver)

		g.dispatch(&ClientMessage{
			Publish: &Publish{ReceiverId: owner.Id, Body: "hi"},
			client:  sender,
		})

		ack := receive(t, sender)
		assert.NotNil(t, ack.MessageSent, "expected ack despite receiver having disconnected")
		assertNoMessage(t, receiver)
	})
}
