package types

import (
	"time"
)

type Role string

const (
	RoleTenant          Role = "tenant"
	RoleOwner           Role = "owner"
	RoleServiceProvider Role = "service_provider"
)

type User struct {
	Id           string    `json:"id"`
	Name         string    `json:"name"`
	EmailAddress string    `json:"email_address,omitempty"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type MessageKind string

const (
	KindText     MessageKind = "text"
	KindImage    MessageKind = "image"
	KindDocument MessageKind = "document"
	KindLocation MessageKind = "location"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindDocument, KindLocation:
		return true
	}
	return false
}

type ChatMessage struct {
	Id            string      `json:"id"`
	SenderId      string      `json:"sender_id"`
	ReceiverId    string      `json:"receiver_id,omitempty"`
	PropertyId    string      `json:"property_id,omitempty"`
	MaintenanceId string      `json:"maintenance_request_id,omitempty"`
	Body          string      `json:"body"`
	Kind          MessageKind `json:"kind"`
	Read          bool        `json:"read"`
	ReadAt        *time.Time  `json:"read_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type NotificationCategory string

const (
	CategoryMaintenanceNew       NotificationCategory = "maintenance_new"
	CategoryMaintenanceUpdate    NotificationCategory = "maintenance_update"
	CategoryMaintenanceAssigned  NotificationCategory = "maintenance_assigned"
	CategoryMaintenanceCompleted NotificationCategory = "maintenance_completed"
	CategoryChatMessage          NotificationCategory = "chat_message"
	CategoryRentDue              NotificationCategory = "rent_due"
	CategoryRentOverdue          NotificationCategory = "rent_overdue"
	CategoryRentPaid             NotificationCategory = "rent_paid"
	CategoryTenantInvitation     NotificationCategory = "tenant_invitation"
	CategoryTenantRegistered     NotificationCategory = "tenant_registered"
)

type Notification struct {
	Id            string               `json:"id"`
	UserId        string               `json:"user_id"`
	Category      NotificationCategory `json:"category"`
	Title         string               `json:"title"`
	Body          string               `json:"body"`
	Data          map[string]any       `json:"data,omitempty"`
	PropertyId    string               `json:"property_id,omitempty"`
	MaintenanceId string               `json:"maintenance_request_id,omitempty"`
	Priority      Priority             `json:"priority"`
	Read          bool                 `json:"read"`
	ReadAt        *time.Time           `json:"read_at,omitempty"`
	ExpiresAt     *time.Time           `json:"expires_at,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}
