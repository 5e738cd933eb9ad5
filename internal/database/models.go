package database

import "github.com/rentdesk/realtime/internal/types"

type CreateMessageParams struct {
	SenderId      string
	ReceiverId    string
	PropertyId    string
	MaintenanceId string
	Body          string
	Kind          types.MessageKind
}
