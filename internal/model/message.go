package model

import (
	"context"
	"database/sql"
	"time"
)

// Message 라이브 채팅에서 캡처한 메시지
type Message struct {
	ID             int64
	MessageID      int64
	ChatID         int64
	SenderID       int64
	SenderName     string
	SenderUsername *string
	Text           string
	SentAt         time.Time
}

type MessageData struct {
	MessageID      int64
	ChatID         int64
	SenderID       int64
	SenderName     string
	SenderUsername *string
	Text           string
	SentAt         time.Time
}

type MessageModel struct {
	db *sql.DB
}

func NewMessageModel(db *sql.DB) *MessageModel {
	return &MessageModel{db: db}
}

// Create 메시지 저장. 같은 채팅의 같은 메시지는 한 번만 저장된다.
func (m *MessageModel) Create(ctx context.Context, data *MessageData) error {
	var username sql.NullString
	if data.SenderUsername != nil {
		username = sql.NullString{String: *data.SenderUsername, Valid: true}
	}
	_, err := m.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO messages (message_id, chat_id, sender_id, sender_name, sender_username, text, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		data.MessageID, data.ChatID, data.SenderID, data.SenderName, username, data.Text, data.SentAt.Unix())
	return err
}

// GetByDateRangeAndChat 시간 구간 [startTime, endTime) 안의 메시지, 보낸 시각 순
func (m *MessageModel) GetByDateRangeAndChat(ctx context.Context, chatID int64, startTime, endTime time.Time) ([]*Message, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, message_id, chat_id, sender_id, sender_name, sender_username, text, sent_at
		FROM messages WHERE chat_id = ? AND sent_at >= ? AND sent_at < ? ORDER BY sent_at, message_id`,
		chatID, startTime.Unix(), endTime.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]*Message, 0)
	for rows.Next() {
		var (
			msg      Message
			username sql.NullString
			sentAt   int64
		)
		err := rows.Scan(&msg.ID, &msg.MessageID, &msg.ChatID, &msg.SenderID, &msg.SenderName,
			&username, &msg.Text, &sentAt)
		if err != nil {
			return nil, err
		}
		if username.Valid {
			msg.SenderUsername = &username.String
		}
		msg.SentAt = time.Unix(sentAt, 0)
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

// GetChatIDsByDateRange 시간 구간 안에 메시지가 있는 채팅 ID
func (m *MessageModel) GetChatIDsByDateRange(ctx context.Context, startTime, endTime time.Time) ([]int64, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT DISTINCT chat_id FROM messages WHERE sent_at >= ? AND sent_at < ? ORDER BY chat_id`,
		startTime.Unix(), endTime.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chatIDs := make([]int64, 0)
	for rows.Next() {
		var chatID int64
		if err := rows.Scan(&chatID); err != nil {
			return nil, err
		}
		chatIDs = append(chatIDs, chatID)
	}
	return chatIDs, rows.Err()
}

// DeleteBefore 기준 시각 이전 메시지 삭제
func (m *MessageModel) DeleteBefore(ctx context.Context, cutoffDate time.Time) (int, error) {
	res, err := m.db.ExecContext(ctx, `DELETE FROM messages WHERE sent_at < ?`, cutoffDate.Unix())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
