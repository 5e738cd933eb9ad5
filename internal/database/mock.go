package database

import (
	"github.com/rentdesk/realtime/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepository) GetUserById(id string) (types.User, error) {
	args := m.Called(id)
	return args.Get(0).(types.User), args.Error(1)
}

func (m *MockRepository) ListOwnedProperties(ownerId string) ([]string, error) {
	args := m.Called(ownerId)
	if ids, ok := args.Get(0).([]string); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) IsPropertyMember(userId, propertyId string) (bool, error) {
	args := m.Called(userId, propertyId)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) IsMaintenanceParticipant(userId, requestId string) (bool, error) {
	args := m.Called(userId, requestId)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) CreateMessage(params CreateMessageParams) (types.ChatMessage, error) {
	args := m.Called(params)
	return args.Get(0).(types.ChatMessage), args.Error(1)
}

func (m *MockRepository) MarkMessagesRead(senderId, receiverId string) (int, error) {
	args := m.Called(senderId, receiverId)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) UnreadCount(userId string) (int, error) {
	args := m.Called(userId)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) GetConversation(userId, partnerId string, limit int) ([]types.ChatMessage, error) {
	args := m.Called(userId, partnerId, limit)
	if msgs, ok := args.Get(0).([]types.ChatMessage); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) GetNotifications(userId string, unreadOnly bool, limit, offset int) ([]types.Notification, error) {
	args := m.Called(userId, unreadOnly, limit, offset)
	if ns, ok := args.Get(0).([]types.Notification); ok {
		return ns, args.Error(1)
	}
	return nil, args.Error(1)
}
