package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-kb-retrieval/internal/domain"
)

// ErrNotFound reports a missing chat-log row. Knowledge-base lookups use
// store.ErrNotFound.
var ErrNotFound = gorm.ErrRecordNotFound

// ownedChat scopes a query to the chat id belonging to userID.
func ownedChat(id, userID string) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("id = ? AND user_id = ?", id, userID)
	}
}

// window applies offset/limit paging.
func window(offset, limit int) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		return q.Offset(offset).Limit(limit)
	}
}

// CreateChat opens a chat for userID. An empty title is stored as the
// column default so the first prompt can retitle it.
func CreateChat(ctx context.Context, db *gorm.DB, userID, title string) (*domain.Chat, error) {
	now := time.Now().UTC()
	c := &domain.Chat{ID: uuid.NewString(), UserID: userID, Title: title, CreatedAt: now, UpdatedAt: now}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

func CountChats(ctx context.Context, db *gorm.DB, userID string) (n int64, err error) {
	err = db.WithContext(ctx).Model(&domain.Chat{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

// ListChatsPage returns userID's chats, newest first.
func ListChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, error) {
	var out []domain.Chat
	err := db.WithContext(ctx).
		Scopes(window(offset, limit)).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// GetChat loads a chat only if userID owns it; otherwise ErrNotFound.
func GetChat(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Chat, error) {
	c := new(domain.Chat)
	if err := db.WithContext(ctx).Scopes(ownedChat(id, userID)).Take(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateChatTitle renames userID's chat and bumps its UpdatedAt, which the
// chat list ETag tracks.
func UpdateChatTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error {
	res := db.WithContext(ctx).Model(&domain.Chat{}).Scopes(ownedChat(id, userID)).Update("title", title)
	switch {
	case res.Error != nil:
		return res.Error
	case res.RowsAffected == 0:
		return ErrNotFound
	}
	return nil
}
