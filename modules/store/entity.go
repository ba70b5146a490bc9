package store

import (
	"time"

	domain "github.com/example/helpdesk-chat-relay/domain/chat"
)

// ChatMessage is the persisted form of a chat message.
type ChatMessage struct {
	Seq       uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	ID        string    `gorm:"uniqueIndex;size:36;not null" json:"id"`
	Sender    string    `gorm:"size:50;not null;index" json:"sender"`
	Recipient string    `gorm:"size:50;not null;index" json:"recipient"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
}

// TableName returns the table name for ChatMessage model.
func (ChatMessage) TableName() string {
	return "chat_messages"
}

func fromDomain(msg domain.Message) *ChatMessage {
	return &ChatMessage{
		ID:        msg.ID,
		Sender:    msg.Sender,
		Recipient: msg.Recipient,
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
	}
}

func (m *ChatMessage) toDomain() domain.Message {
	return domain.Message{
		ID:        m.ID,
		Sender:    m.Sender,
		Recipient: m.Recipient,
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
	}
}
