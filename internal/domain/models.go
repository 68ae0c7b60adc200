// Package domain holds the GORM models shared by the store, repo, search
// and service layers: the knowledge base (kb.go) and the chat log.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Chat is a user's conversation with the assistant. Chats created without
// a title get "New chat" and are retitled from their first prompt.
type Chat struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_chats"`
	Title     string         `json:"title"      gorm:"type:varchar(255);not null;default:'New chat'"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

func (Chat) TableName() string { return "chats" }

// Message is one turn of a chat. Role is "user" or "assistant".
//
// Source and Score are set on assistant turns only: Source names the path
// that produced the reply and Score is the best chunk score of a retrieval
// answer.
type Message struct {
	ID        string         `json:"id"               gorm:"type:char(36);primaryKey"`
	ChatID    string         `json:"chat_id"          gorm:"type:char(36);not null;index:idx_chat_msgs,priority:1"`
	Role      string         `json:"role"             gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content   string         `json:"content"          gorm:"type:text;not null"`
	Source    string         `json:"source,omitempty" gorm:"type:varchar(32)"`
	Score     *float64       `json:"score,omitempty"`
	CreatedAt time.Time      `json:"created_at"       gorm:"index:idx_chat_msgs,priority:2"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"                gorm:"index"`

	// Deleting a chat removes its messages.
	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Message) TableName() string { return "messages" }
