package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-kb-retrieval/internal/domain"
	"github.com/tbourn/go-kb-retrieval/internal/matchers"
	"github.com/tbourn/go-kb-retrieval/internal/observability"
	"github.com/tbourn/go-kb-retrieval/internal/repo"
	"github.com/tbourn/go-kb-retrieval/internal/search"
	"github.com/tbourn/go-kb-retrieval/internal/utils"
)

const (
	roleUser      = "user"
	roleAssistant = "assistant"
)

// Answer sources recorded on assistant messages.
const (
	SourceRetrieval = "retrieval"
	SourceFallback  = "fallback"
)

// defaultMaxPromptRunes is reported by PromptLimit when no limit is set.
const defaultMaxPromptRunes = 4000

// FallbackReply is the answer when nothing in the library matches.
const FallbackReply = "I don't have that in my library yet."

// Retriever is the query side of RetrievalService.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]search.Hit, error)
}

// MessageService answers prompts inside a chat and keeps the message log.
// A reply comes from the first of: a pattern capability (capital-of,
// who-is), a synthesis over retrieved chunks, or FallbackReply.
type MessageService struct {
	DB        *gorm.DB
	Retriever Retriever
	Patterns  matchers.Chain
	TopK      int

	// Optional guards
	MaxPromptRunes int
	MaxReplyRunes  int

	// Title generation
	TitleLocale language.Tag
	TitleMaxLen int

	Log zerolog.Logger
}

// Answer validates prompt, checks the chat belongs to userID, builds a reply
// and stores the prompt and the reply in one transaction. The chat is
// retitled from the prompt while it still has a placeholder title.
func (s *MessageService) Answer(ctx context.Context, userID, chatID, prompt string) (*domain.Message, error) {
	ctx, span := observability.Tracer("services").Start(ctx, "MessageService.Answer",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(prompt) > s.MaxPromptRunes {
		return nil, ErrTooLong
	}

	chat, err := repo.GetChat(ctx, s.DB, chatID, userID)
	if err != nil {
		return nil, ErrChatNotFound
	}

	reply, source, score := s.reply(ctx, prompt)
	if s.MaxReplyRunes > 0 && utf8.RuneCountInString(reply) > s.MaxReplyRunes {
		reply = string([]rune(reply)[:s.MaxReplyRunes])
	}
	span.SetAttributes(attribute.String("reply.source", source))

	var out *domain.Message
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.CreateMessage(ctx, tx, chatID, roleUser, prompt, "", nil); err != nil {
			return err
		}
		m, err := repo.CreateMessage(ctx, tx, chatID, roleAssistant, reply, source, score)
		if err != nil {
			return err
		}
		out = m

		if isPlaceholderTitle(chat.Title) {
			if t := titleFromPrompt(prompt, s.TitleLocale); t != "" {
				if err := repo.UpdateChatTitle(ctx, tx, chatID, userID, clipRunes(t, s.TitleMaxLen)); err != nil {
					s.Log.Warn().Err(err).Str("chat_id", chatID).Msg("auto title failed")
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// reply picks the answer for prompt and reports which path produced it.
// score is the best hit score for retrieval answers and nil otherwise.
func (s *MessageService) reply(ctx context.Context, prompt string) (string, string, *float64) {
	if m, ok := s.Patterns.First(prompt); ok {
		return m.Answer, string(m.Kind), nil
	}
	if s.Retriever == nil {
		return FallbackReply, SourceFallback, nil
	}

	hits, err := s.Retriever.Retrieve(ctx, prompt, s.TopK)
	if err != nil {
		s.Log.Warn().Err(err).Msg("retrieval failed; falling back")
		return FallbackReply, SourceFallback, nil
	}
	if answer := Synthesize(prompt, hits); answer != "" {
		score := hits[0].Score
		return answer, SourceRetrieval, &score
	}
	return FallbackReply, SourceFallback, nil
}

// ListPage returns one page of a chat's messages, oldest first, and the total.
func (s *MessageService) ListPage(ctx context.Context, userID, chatID string, page, pageSize int) ([]domain.Message, int64, error) {
	ctx, span := observability.Tracer("services").Start(ctx, "MessageService.ListPage",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if _, err := repo.GetChat(ctx, s.DB, chatID, userID); err != nil {
		return nil, 0, ErrChatNotFound
	}

	total, err := repo.CountMessages(ctx, s.DB, chatID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}
	offset, limit := utils.PageBounds(page, pageSize)
	items, err := repo.ListMessagesPage(ctx, s.DB, chatID, offset, limit)
	return items, total, err
}

// PromptLimit is the longest prompt, in runes, the transport should accept.
func (s *MessageService) PromptLimit() int {
	if s.MaxPromptRunes > 0 {
		return s.MaxPromptRunes
	}
	return defaultMaxPromptRunes
}

// Version identifies the current state of a chat's message log. It returns
// ErrChatNotFound when userID does not own chatID.
func (s *MessageService) Version(ctx context.Context, userID, chatID string) (string, error) {
	if _, err := repo.GetChat(ctx, s.DB, chatID, userID); err != nil {
		return "", ErrChatNotFound
	}
	n, last, err := repo.MessagesStats(ctx, s.DB, chatID)
	if err != nil {
		return "", err
	}
	return listVersion("messages", chatID, n, last), nil
}
