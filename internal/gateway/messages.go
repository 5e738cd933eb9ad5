package gateway

import (
	"net/http"
	"time"

	"github.com/rentdesk/realtime/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the envelope for every inbound event. Exactly one of the
// event fields is set; anything else is rejected as malformed.
type ClientMessage struct {
	BaseMessage
	Authenticate *Authenticate `json:"authenticate,omitempty"`
	Publish      *Publish      `json:"publish,omitempty"`
	Typing       *Typing       `json:"typing,omitempty"`
	Read         *Read         `json:"read,omitempty"`
	Join         *Join         `json:"join,omitempty"`
	Leave        *Leave        `json:"leave,omitempty"`
	client       *Client       `json:"-"`
}

type Authenticate struct {
	Token string `json:"token"`
}

// Publish is a direct message to another user, optionally tied to a property
// or a maintenance request. A maintenance association additionally fans the
// message out to that request's room.
type Publish struct {
	ReceiverId    string            `json:"receiver_id"`
	Body          string            `json:"body"`
	Kind          types.MessageKind `json:"kind,omitempty"`
	PropertyId    string            `json:"property_id,omitempty"`
	MaintenanceId string            `json:"maintenance_request_id,omitempty"`
}

type Typing struct {
	ReceiverId string `json:"receiver_id"`
	Typing     bool   `json:"typing"`
}

type Read struct {
	SenderId string `json:"sender_id"`
}

type Join struct {
	RoomId string `json:"room_id"`
}

type Leave struct {
	RoomId string `json:"room_id"`
}

// ServerMessage is the envelope for every outbound event.
type ServerMessage struct {
	BaseMessage
	Response          *Response           `json:"response,omitempty"`
	Authenticated     *Authenticated      `json:"authenticated,omitempty"`
	NewMessage        *types.ChatMessage  `json:"new_message,omitempty"`
	MessageSent       *types.ChatMessage  `json:"message_sent,omitempty"`
	UserTyping        *UserTyping         `json:"user_typing,omitempty"`
	MessagesRead      *MessagesRead       `json:"messages_read,omitempty"`
	Notification      *types.Notification `json:"notification,omitempty"`
	MaintenanceUpdate *MaintenanceUpdate  `json:"maintenance_update,omitempty"`
}

type Response struct {
	ResponseCode int            `json:"response_code"`
	Error        string         `json:"error,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

type Authenticated struct {
	User        types.User `json:"user"`
	UnreadCount int        `json:"unread_count"`
}

type UserTyping struct {
	UserId string `json:"user_id"`
	Typing bool   `json:"typing"`
}

type MessagesRead struct {
	ReaderId string `json:"reader_id"`
	Count    int    `json:"count"`
}

type MaintenanceUpdate struct {
	RequestId string    `json:"request_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func ErrNotAuthenticated(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusUnauthorized,
			Error:        "not authenticated",
		},
	}
}

func ErrAuthFailed(id int, reason string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusUnauthorized,
			Error:        reason,
		},
	}
}

func ErrForbidden(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusForbidden,
			Error:        "forbidden",
		},
	}
}

func ErrValidation(id int, reason string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        reason,
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func ErrMessageFailed(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "failed to send message",
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
