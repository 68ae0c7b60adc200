package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-kb-retrieval/internal/domain"
	"github.com/tbourn/go-kb-retrieval/internal/repo"
	"github.com/tbourn/go-kb-retrieval/internal/utils"
)

// ChatRepo is the persistence contract of ChatService.
type ChatRepo interface {
	CreateChat(ctx context.Context, db *gorm.DB, userID, title string) (*domain.Chat, error)
	GetChat(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Chat, error)
	UpdateChatTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error
	CountChats(ctx context.Context, db *gorm.DB, userID string) (int64, error)
	ListChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, error)
	ChatsStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error)
}

// GormChatRepo implements ChatRepo with the repo package.
type GormChatRepo struct{}

func (GormChatRepo) CreateChat(ctx context.Context, db *gorm.DB, userID, title string) (*domain.Chat, error) {
	return repo.CreateChat(ctx, db, userID, title)
}

func (GormChatRepo) GetChat(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Chat, error) {
	return repo.GetChat(ctx, db, id, userID)
}

func (GormChatRepo) UpdateChatTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error {
	return repo.UpdateChatTitle(ctx, db, id, userID, title)
}

func (GormChatRepo) CountChats(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountChats(ctx, db, userID)
}

func (GormChatRepo) ListChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, error) {
	return repo.ListChatsPage(ctx, db, userID, offset, limit)
}

func (GormChatRepo) ChatsStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error) {
	return repo.ChatsStats(ctx, db, userID)
}

// ChatService manages the chats a user holds with the assistant. Automatic
// titles are set by MessageService on the first prompt.
type ChatService struct {
	DB   *gorm.DB
	Repo ChatRepo

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
}

// NewChatService returns a ChatService with the default title limit.
func NewChatService(db *gorm.DB, r ChatRepo) *ChatService {
	return &ChatService{DB: db, Repo: r, TitleMaxLen: defaultTitleMaxLen}
}

// Create opens a chat for userID. A blank title becomes "New chat".
func (s *ChatService) Create(ctx context.Context, userID, title string) (*domain.Chat, error) {
	title = normalizeTitle(title)
	if title == "" {
		title = defaultTitleNew
	}
	return s.Repo.CreateChat(ctx, s.DB, userID, clipRunes(title, s.TitleMaxLen))
}

// ListPage returns one page of the user's chats, newest first, and the total.
func (s *ChatService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Chat, int64, error) {
	offset, limit := utils.PageBounds(page, pageSize)

	total, err := s.Repo.CountChats(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Chat{}, 0, nil
	}
	items, err := s.Repo.ListChatsPage(ctx, s.DB, userID, offset, limit)
	return items, total, err
}

// UpdateTitle renames a chat owned by userID. A blank title becomes "Untitled".
func (s *ChatService) UpdateTitle(ctx context.Context, userID, chatID, title string) error {
	title = normalizeTitle(title)
	if title == "" {
		title = defaultTitleUntitled
	}
	if _, err := s.Repo.GetChat(ctx, s.DB, chatID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChatNotFound
		}
		return err
	}
	return s.Repo.UpdateChatTitle(ctx, s.DB, chatID, userID, clipRunes(title, s.TitleMaxLen))
}

// Version identifies the current state of the user's chat list. It changes
// whenever a chat is created or renamed.
func (s *ChatService) Version(ctx context.Context, userID string) (string, error) {
	n, last, err := s.Repo.ChatsStats(ctx, s.DB, userID)
	if err != nil {
		return "", err
	}
	return listVersion("chats", userID, n, last), nil
}

func listVersion(kind, owner string, count int64, last *time.Time) string {
	var ts int64
	if last != nil {
		ts = last.Unix()
	}
	return fmt.Sprintf("%s:%s:%d:%d", kind, owner, count, ts)
}
