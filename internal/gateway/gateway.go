package gateway

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rentdesk/realtime/internal/auth"
	"github.com/rentdesk/realtime/internal/database"
	"github.com/rentdesk/realtime/internal/registry"
	"github.com/rentdesk/realtime/internal/rooms"
	"github.com/rentdesk/realtime/internal/stats"
	"github.com/rentdesk/realtime/internal/types"
)

const maxBodyLen = 4096

// Gateway orchestrates the realtime layer: it authenticates connections,
// wires them into the session registry and room roster, validates and
// persists inbound chat events, and fans events out to the right sessions.
//
// Handlers run on the reader goroutine of the connection that produced the
// event, so a single connection's events are processed in order. Fan-out to
// other connections only ever enqueues onto their buffered send channels.
type Gateway struct {
	log         *log.Logger
	repo        database.Repository
	verifier    auth.TokenVerifier
	registry    *registry.SessionRegistry
	roster      *rooms.Roster
	stats       stats.StatsProvider
	authTimeout time.Duration

	clientsLock sync.RWMutex
	clients     map[string]*Client
}

func NewGateway(logger *log.Logger, repo database.Repository, verifier auth.TokenVerifier,
	reg *registry.SessionRegistry, roster *rooms.Roster, sp stats.StatsProvider,
	authTimeout time.Duration) (*Gateway, error) {

	g := &Gateway{
		log:         logger,
		repo:        repo,
		verifier:    verifier,
		registry:    reg,
		roster:      roster,
		stats:       sp,
		authTimeout: authTimeout,
		clients:     make(map[string]*Client),
	}

	for _, name := range []string{
		stats.NumConnections,
		stats.NumSessions,
		stats.MessagesSent,
		stats.MessagesFailed,
		stats.NotificationsPushed,
	} {
		sp.RegisterMetric(name)
	}

	return g, nil
}

// HandleConnection adopts an upgraded websocket connection and starts its
// read and write pumps. The connection is unauthenticated until it completes
// an authenticate event.
func (g *Gateway) HandleConnection(conn *websocket.Conn) error {
	c, err := newClient(conn, g, g.log)
	if err != nil {
		return err
	}

	g.addClient(c)
	g.stats.Incr(stats.NumConnections)

	go c.Write()
	go c.Read()

	return nil
}

func (g *Gateway) addClient(c *Client) {
	g.clientsLock.Lock()
	defer g.clientsLock.Unlock()
	g.clients[c.id] = c
}

func (g *Gateway) removeClient(connId string) {
	g.clientsLock.Lock()
	defer g.clientsLock.Unlock()
	delete(g.clients, connId)
}

func (g *Gateway) client(connId string) *Client {
	g.clientsLock.RLock()
	defer g.clientsLock.RUnlock()
	return g.clients[connId]
}

func (g *Gateway) dispatch(msg *ClientMessage) {
	c := msg.client

	if msg.Authenticate != nil {
		g.handleAuthenticate(msg)
		return
	}

	if c.user == nil {
		c.queueMessage(ErrNotAuthenticated(msg.Id))
		return
	}

	switch {
	case msg.Publish != nil:
		g.handlePublish(msg)
	case msg.Typing != nil:
		g.handleTyping(msg)
	case msg.Read != nil:
		g.handleRead(msg)
	case msg.Join != nil:
		g.handleJoin(msg)
	case msg.Leave != nil:
		g.handleLeave(msg)
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

func (g *Gateway) handleAuthenticate(msg *ClientMessage) {
	c := msg.client
	if c.user != nil {
		c.queueMessage(ErrValidation(msg.Id, "already authenticated"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.authTimeout)
	defer cancel()

	claims, err := g.verifyToken(ctx, msg.Authenticate.Token)
	if err != nil {
		g.log.Printf("authentication failed for connection %q: %v", c.id, err)
		reason := "authentication failed"
		if errors.Is(err, auth.ErrExpiredToken) {
			// the client should obtain a fresh token and retry
			reason = "token expired"
		}
		c.queueMessage(ErrAuthFailed(msg.Id, reason))
		return
	}

	user, err := g.repo.GetUserById(claims.UserId)
	if err != nil {
		g.log.Printf("resolve user %q: %v", claims.UserId, err)
		c.queueMessage(ErrAuthFailed(msg.Id, "authentication failed"))
		return
	}

	c.user = &user
	g.registry.Register(user.Id, c.id)
	g.stats.Incr(stats.NumSessions)
	g.roster.Join(c.id, rooms.UserRoom(user.Id))

	g.bootstrapRooms(c)

	unread, err := g.repo.UnreadCount(user.Id)
	if err != nil {
		g.log.Printf("unread count for %q: %v", user.Id, err)
	}

	c.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{
			Id:        msg.Id,
			Timestamp: Now(),
		},
		Authenticated: &Authenticated{
			User:        user,
			UnreadCount: unread,
		},
	})
}

// verifyToken bounds the verifier call so a stalled external verifier leaves
// the connection unauthenticated instead of wedging its reader goroutine.
func (g *Gateway) verifyToken(ctx context.Context, token string) (auth.Claims, error) {
	type result struct {
		claims auth.Claims
		err    error
	}

	resCh := make(chan result, 1)
	go func() {
		claims, err := g.verifier.Verify(ctx, token)
		resCh <- result{claims: claims, err: err}
	}()

	select {
	case res := <-resCh:
		return res.claims, res.err
	case <-ctx.Done():
		return auth.Claims{}, ctx.Err()
	}
}

// bootstrapRooms joins owner connections to a room per owned property. Kept
// separate from authentication so the two concerns stay independently
// testable; a lookup failure leaves the session authenticated.
func (g *Gateway) bootstrapRooms(c *Client) {
	if c.user.Role != types.RoleOwner {
		return
	}

	propertyIds, err := g.repo.ListOwnedProperties(c.user.Id)
	if err != nil {
		g.log.Printf("list owned properties for %q: %v", c.user.Id, err)
		return
	}

	for _, propertyId := range propertyIds {
		g.roster.Join(c.id, rooms.PropertyRoom(propertyId))
	}
}

func (g *Gateway) handlePublish(msg *ClientMessage) {
	c := msg.client
	pub := msg.Publish

	if pub.Body == "" {
		c.queueMessage(ErrValidation(msg.Id, "empty message body"))
		return
	}
	if len(pub.Body) > maxBodyLen {
		c.queueMessage(ErrValidation(msg.Id, "message body too long"))
		return
	}
	if pub.ReceiverId == "" {
		c.queueMessage(ErrValidation(msg.Id, "missing receiver"))
		return
	}

	kind := pub.Kind
	if kind == "" {
		kind = types.KindText
	}
	if !kind.Valid() {
		c.queueMessage(ErrValidation(msg.Id, "unknown message kind"))
		return
	}

	if _, err := g.repo.GetUserById(pub.ReceiverId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.queueMessage(ErrValidation(msg.Id, "unknown receiver"))
		} else {
			g.log.Printf("resolve receiver %q: %v", pub.ReceiverId, err)
			c.queueMessage(ErrInternalError(msg.Id))
		}
		return
	}

	saved, err := g.repo.CreateMessage(database.CreateMessageParams{
		SenderId:      c.user.Id,
		ReceiverId:    pub.ReceiverId,
		PropertyId:    pub.PropertyId,
		MaintenanceId: pub.MaintenanceId,
		Body:          pub.Body,
		Kind:          kind,
	})
	if err != nil {
		g.log.Println("error saving message:", err)
		g.stats.Incr(stats.MessagesFailed)
		c.queueMessage(ErrMessageFailed(msg.Id))
		return
	}

	g.stats.Incr(stats.MessagesSent)

	// ack to the sender first, then deliver to every receiver session
	c.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{
			Id:        msg.Id,
			Timestamp: saved.CreatedAt,
		},
		MessageSent: &saved,
	})

	g.sendToUser(pub.ReceiverId, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: saved.CreatedAt,
		},
		NewMessage: &saved,
	})

	// a message tied to a maintenance request is also broadcast to anyone
	// watching that thread; the receiver may see it twice and the client
	// deduplicates by message id
	if pub.MaintenanceId != "" {
		g.broadcastToRoom(rooms.MaintenanceRoom(pub.MaintenanceId), &ServerMessage{
			BaseMessage: BaseMessage{
				Timestamp: saved.CreatedAt,
			},
			NewMessage: &saved,
		}, c)
	}
}

func (g *Gateway) handleTyping(msg *ClientMessage) {
	c := msg.client
	if msg.Typing.ReceiverId == "" {
		return
	}

	// fire and forget: an offline receiver simply means nothing to do
	g.sendToUser(msg.Typing.ReceiverId, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		UserTyping: &UserTyping{
			UserId: c.user.Id,
			Typing: msg.Typing.Typing,
		},
	})
}

func (g *Gateway) handleRead(msg *ClientMessage) {
	c := msg.client
	if msg.Read.SenderId == "" {
		c.queueMessage(ErrValidation(msg.Id, "missing sender"))
		return
	}

	count, err := g.repo.MarkMessagesRead(msg.Read.SenderId, c.user.Id)
	if err != nil {
		g.log.Println("MarkMessagesRead:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	c.queueMessage(NoErrOK(msg.Id, map[string]any{"count": count}))

	g.sendToUser(msg.Read.SenderId, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		MessagesRead: &MessagesRead{
			ReaderId: c.user.Id,
			Count:    count,
		},
	})
}

func (g *Gateway) handleJoin(msg *ClientMessage) {
	c := msg.client

	kind, id, ok := rooms.Parse(msg.Join.RoomId)
	if !ok {
		c.queueMessage(ErrValidation(msg.Id, "unknown room"))
		return
	}

	allowed, err := g.authorizeRoom(c, kind, id)
	if err != nil {
		g.log.Printf("authorize room %q for %q: %v", msg.Join.RoomId, c.user.Id, err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}
	if !allowed {
		c.queueMessage(ErrForbidden(msg.Id))
		return
	}

	g.roster.Join(c.id, msg.Join.RoomId)
	c.queueMessage(NoErrOK(msg.Id, nil))
}

func (g *Gateway) authorizeRoom(c *Client, kind rooms.Kind, id string) (bool, error) {
	switch kind {
	case rooms.KindUser:
		return id == c.user.Id, nil
	case rooms.KindProperty:
		return g.repo.IsPropertyMember(c.user.Id, id)
	case rooms.KindMaintenance:
		return g.repo.IsMaintenanceParticipant(c.user.Id, id)
	}
	return false, nil
}

func (g *Gateway) handleLeave(msg *ClientMessage) {
	c := msg.client

	if _, _, ok := rooms.Parse(msg.Leave.RoomId); !ok {
		c.queueMessage(ErrValidation(msg.Id, "unknown room"))
		return
	}

	g.roster.Leave(c.id, msg.Leave.RoomId)
	c.queueMessage(NoErrOK(msg.Id, nil))
}

// disconnect retires a connection: room cleanup, then presence cleanup, then
// the client map entry. Fan-out racing against teardown either reaches the
// send channel before it stops draining or misses the client entirely;
// neither outcome is an error.
func (g *Gateway) disconnect(c *Client) {
	g.roster.LeaveAll(c.id)
	if c.user != nil {
		g.registry.Unregister(c.id)
		g.stats.Decr(stats.NumSessions)
	}
	g.removeClient(c.id)
	g.stats.Decr(stats.NumConnections)
}

// sendToUser queues msg on every live connection of userId and reports how
// many connections accepted it. Zero is not an error; the user is offline.
func (g *Gateway) sendToUser(userId string, msg *ServerMessage) int {
	delivered := 0
	for _, connId := range g.registry.ConnectionsFor(userId) {
		if c := g.client(connId); c != nil {
			if c.queueMessage(msg) {
				delivered++
			}
		}
	}
	return delivered
}

func (g *Gateway) broadcastToRoom(room string, msg *ServerMessage, skip *Client) int {
	delivered := 0
	for _, connId := range g.roster.MembersOf(room) {
		c := g.client(connId)
		if c == nil || c == skip {
			continue
		}
		if c.queueMessage(msg) {
			delivered++
		}
	}
	return delivered
}

// Shutdown stops every client and waits for their teardown to finish or the
// context to expire.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.clientsLock.RLock()
	for _, c := range g.clients {
		c.stopClient()
		if c.conn != nil {
			c.conn.Close()
		}
	}
	g.clientsLock.RUnlock()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			g.clientsLock.RLock()
			remaining := len(g.clients)
			g.clientsLock.RUnlock()
			if remaining == 0 {
				return nil
			}
		}
	}
}
