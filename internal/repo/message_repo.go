package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-kb-retrieval/internal/domain"
)

// CreateMessage appends a message to chatID. source names the answer path
// of assistant messages ("capital", "who_is", "retrieval", "fallback") and
// score is the best chunk score of retrieval answers.
func CreateMessage(ctx context.Context, db *gorm.DB, chatID, role, content, source string, score *float64) (*domain.Message, error) {
	m := &domain.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		Source:    source,
		Score:     score,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

func CountMessages(ctx context.Context, db *gorm.DB, chatID string) (n int64, err error) {
	err = db.WithContext(ctx).Model(&domain.Message{}).Where("chat_id = ?", chatID).Count(&n).Error
	return n, err
}

// ListMessagesPage returns a window of chatID's messages, oldest first.
// Equal timestamps tie-break on id so pages never overlap.
func ListMessagesPage(ctx context.Context, db *gorm.DB, chatID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Scopes(window(offset, limit)).
		Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}
