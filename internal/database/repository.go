package database

import (
	"github.com/rentdesk/realtime/internal/types"
)

// Repository is the narrow slice of the platform's data layer the realtime
// service depends on. Schema ownership and all other CRUD stays with the
// main application.
type Repository interface {
	Ping() error
	GetUserById(id string) (types.User, error)
	ListOwnedProperties(ownerId string) ([]string, error)
	IsPropertyMember(userId, propertyId string) (bool, error)
	IsMaintenanceParticipant(userId, requestId string) (bool, error)
	CreateMessage(params CreateMessageParams) (types.ChatMessage, error)
	MarkMessagesRead(senderId, receiverId string) (int, error)
	UnreadCount(userId string) (int, error)
	GetConversation(userId, partnerId string, limit int) ([]types.ChatMessage, error)
	GetNotifications(userId string, unreadOnly bool, limit, offset int) ([]types.Notification, error)
}
