package database

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rentdesk/realtime/internal/types"
)

func (db *PgRepository) GetUserById(id string) (types.User, error) {
	row := db.conn.QueryRow(
		"SELECT user_id, name, email, user_type FROM users "+
			"WHERE user_id = $1 LIMIT 1",
		id,
	)

	var user types.User
	err := row.Scan(
		&user.Id,
		&user.Name,
		&user.EmailAddress,
		&user.Role,
	)

	return user, err
}

func (db *PgRepository) ListOwnedProperties(ownerId string) ([]string, error) {
	rows, err := db.conn.Query(
		"SELECT property_id FROM properties WHERE owner_id = $1",
		ownerId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (db *PgRepository) IsPropertyMember(userId, propertyId string) (bool, error) {
	row := db.conn.QueryRow(
		"SELECT EXISTS ("+
			"SELECT 1 FROM properties WHERE property_id = $2 AND owner_id = $1 "+
			"UNION "+
			"SELECT 1 FROM property_tenants WHERE property_id = $2 AND tenant_id = $1"+
			")",
		userId,
		propertyId,
	)

	var member bool
	err := row.Scan(&member)

	return member, err
}

func (db *PgRepository) IsMaintenanceParticipant(userId, requestId string) (bool, error) {
	row := db.conn.QueryRow(
		"SELECT EXISTS ("+
			"SELECT 1 FROM maintenance_requests m "+
			"LEFT JOIN properties p ON p.property_id = m.property_id "+
			"WHERE m.request_id = $2 "+
			"AND (m.tenant_id = $1 OR m.assigned_to = $1 OR p.owner_id = $1)"+
			")",
		userId,
		requestId,
	)

	var participant bool
	err := row.Scan(&participant)

	return participant, err
}

func (db *PgRepository) CreateMessage(params CreateMessageParams) (types.ChatMessage, error) {
	msg := types.ChatMessage{
		Id:            uuid.NewString(),
		SenderId:      params.SenderId,
		ReceiverId:    params.ReceiverId,
		PropertyId:    params.PropertyId,
		MaintenanceId: params.MaintenanceId,
		Body:          params.Body,
		Kind:          params.Kind,
	}

	row := db.conn.QueryRow(
		"INSERT INTO chats (chat_id, sender_id, receiver_id, property_id, maintenance_request_id, message, message_type, is_read, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8) RETURNING created_at",
		msg.Id,
		msg.SenderId,
		msg.ReceiverId,
		nullString(msg.PropertyId),
		nullString(msg.MaintenanceId),
		msg.Body,
		msg.Kind,
		time.Now().UTC(),
	)

	err := row.Scan(&msg.CreatedAt)

	return msg, err
}

func (db *PgRepository) MarkMessagesRead(senderId, receiverId string) (int, error) {
	res, err := db.conn.Exec(
		"UPDATE chats SET is_read = TRUE, read_at = $3 "+
			"WHERE sender_id = $1 AND receiver_id = $2 AND is_read = FALSE",
		senderId,
		receiverId,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, err
	}

	count, err := res.RowsAffected()
	return int(count), err
}

func (db *PgRepository) UnreadCount(userId string) (int, error) {
	row := db.conn.QueryRow(
		"SELECT COUNT(*) FROM chats WHERE receiver_id = $1 AND is_read = FALSE",
		userId,
	)

	var count int
	err := row.Scan(&count)

	return count, err
}

func (db *PgRepository) GetConversation(userId, partnerId string, limit int) ([]types.ChatMessage, error) {
	rows, err := db.conn.Query(
		"SELECT chat_id, sender_id, receiver_id, property_id, maintenance_request_id, message, message_type, is_read, read_at, created_at "+
			"FROM chats "+
			"WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1) "+
			"ORDER BY created_at DESC LIMIT $3",
		userId,
		partnerId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []types.ChatMessage
	for rows.Next() {
		var msg types.ChatMessage
		var propertyId, maintenanceId sql.NullString
		var readAt sql.NullTime
		if err := rows.Scan(
			&msg.Id,
			&msg.SenderId,
			&msg.ReceiverId,
			&propertyId,
			&maintenanceId,
			&msg.Body,
			&msg.Kind,
			&msg.Read,
			&readAt,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}

		msg.PropertyId = propertyId.String
		msg.MaintenanceId = maintenanceId.String
		if readAt.Valid {
			msg.ReadAt = &readAt.Time
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (db *PgRepository) GetNotifications(userId string, unreadOnly bool, limit, offset int) ([]types.Notification, error) {
	query := "SELECT notification_id, user_id, type, title, message, data, property_id, maintenance_request_id, priority, is_read, read_at, expires_at, created_at " +
		"FROM notifications WHERE user_id = $1 "
	if unreadOnly {
		query += "AND is_read = FALSE "
	}
	query += "ORDER BY created_at DESC LIMIT $2 OFFSET $3"

	rows, err := db.conn.Query(query, userId, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []types.Notification
	for rows.Next() {
		var n types.Notification
		var data []byte
		var propertyId, maintenanceId sql.NullString
		var readAt, expiresAt sql.NullTime
		if err := rows.Scan(
			&n.Id,
			&n.UserId,
			&n.Category,
			&n.Title,
			&n.Body,
			&data,
			&propertyId,
			&maintenanceId,
			&n.Priority,
			&n.Read,
			&readAt,
			&expiresAt,
			&n.CreatedAt,
		); err != nil {
			return nil, err
		}

		if len(data) > 0 {
			if err := json.Unmarshal(data, &n.Data); err != nil {
				return nil, err
			}
		}
		n.PropertyId = propertyId.String
		n.MaintenanceId = maintenanceId.String
		if readAt.Valid {
			n.ReadAt = &readAt.Time
		}
		if expiresAt.Valid {
			n.ExpiresAt = &expiresAt.Time
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
