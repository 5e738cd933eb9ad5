package gateway

import (
	"fmt"
	"log"
	"time"

	"github.com/rentdesk/realtime/internal/rooms"
	"github.com/rentdesk/realtime/internal/stats"
	"github.com/rentdesk/realtime/internal/types"
)

// Bridge is how the rest of the platform pushes already-persisted facts into
// the realtime layer. It never retries and never fails because a recipient
// is offline: the durable record stays queryable either way.
type Bridge struct {
	gateway *Gateway
	log     *log.Logger
}

func NewBridge(gw *Gateway, logger *log.Logger) *Bridge {
	return &Bridge{
		gateway: gw,
		log:     logger,
	}
}

// Push delivers a notification to every live session of its target user.
// The notification must already exist in the store; this only transports it.
func (b *Bridge) Push(n *types.Notification) error {
	if n == nil || n.UserId == "" {
		return fmt.Errorf("notification has no target user")
	}

	delivered := b.gateway.sendToUser(n.UserId, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Notification: n,
	})

	b.gateway.stats.Incr(stats.NotificationsPushed)

	if delivered == 0 {
		b.log.Printf("user %q offline, notification %q not delivered live", n.UserId, n.Id)
	}

	return nil
}

// MaintenanceUpdate broadcasts a status change to everyone watching the
// request's room.
func (b *Bridge) MaintenanceUpdate(requestId, status string, updatedAt time.Time) {
	b.gateway.broadcastToRoom(rooms.MaintenanceRoom(requestId), &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		MaintenanceUpdate: &MaintenanceUpdate{
			RequestId: requestId,
			Status:    status,
			UpdatedAt: updatedAt,
		},
	}, nil)
}
