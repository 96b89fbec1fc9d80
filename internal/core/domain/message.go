package domain

import (
	"errors"
	"strings"
	"time"
)

var ErrEmptyMessage = errors.New("message content cannot be empty")

// ChatMessage is relayed to the whole room and never stored.
type ChatMessage struct {
	ID         MessageID
	RoomID     RoomID
	SenderID   UserID
	SenderName string
	Content    string
	SentAt     time.Time
}

func NewChatMessage(s Session, content string, now time.Time) (*ChatMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}
	return &ChatMessage{
		ID:         NewMessageID(),
		RoomID:     s.RoomID,
		SenderID:   s.UserID,
		SenderName: s.Name,
		Content:    content,
		SentAt:     now,
	}, nil
}
