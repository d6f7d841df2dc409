// Package bot implements the chat command surface independent of any
// particular messaging transport.
package bot

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"shortlink-bot/internal/domain"
	"shortlink-bot/internal/metrics"
	"shortlink-bot/internal/ratelimit"
	"shortlink-bot/internal/service"
)

// Messenger delivers replies to a conversation
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error
}

// Shortener is the subset of service.Shortener the bot drives
type Shortener interface {
	Shorten(ctx context.Context, rawURL string, owner domain.Owner) (*domain.Record, error)
	RecordOwnerClick(ctx context.Context, ownerID int64, shortURL, source string) (*domain.Record, error)
	ProviderStatus() []service.ProviderStatus
	ResetFailed() int
	Fallbacks() int64
}

// Assembler is the subset of service.Assembler the bot drives
type Assembler interface {
	Links(ctx context.Context, ownerID int64) []*domain.Record
	ComputeStats(ctx context.Context, ownerID int64) domain.Stats
	GlobalStats(ctx context.Context) (domain.GlobalStats, error)
	ExportSnapshot(ctx context.Context, ownerID *int64) (*service.Snapshot, error)
	ImportSnapshot(ctx context.Context, ownerID int64, blob []byte) (service.ImportResult, error)
}

// Message is one inbound text message
type Message struct {
	ChatID   int64
	UserID   int64
	UserName string
	Text     string
}

// Document is one inbound file.
// ReplyToImport is set by transports that can tell the file answers an /import prompt.
type Document struct {
	ChatID        int64
	UserID        int64
	UserName      string
	FileName      string
	Data          []byte
	ReplyToImport bool
}

// importWindow bounds how long an /import prompt stays armed
const importWindow = 10 * time.Minute

// Bot routes inbound messages to commands and the shortener
type Bot struct {
	messenger Messenger
	shortener Shortener
	assembler Assembler
	limiter   ratelimit.Limiter
	ownerID   int64
	logger    *slog.Logger
	now       func() time.Time

	mu             sync.Mutex
	pendingImports map[int64]time.Time
}

// New creates a bot. limiter may be nil to disable per-user limits;
// ownerID 0 disables operator commands.
func New(messenger Messenger, shortener Shortener, assembler Assembler, limiter ratelimit.Limiter, ownerID int64, logger *slog.Logger) *Bot {
	return &Bot{
		messenger:      messenger,
		shortener:      shortener,
		assembler:      assembler,
		limiter:        limiter,
		ownerID:        ownerID,
		logger:         logger.With("component", "bot"),
		now:            time.Now,
		pendingImports: make(map[int64]time.Time),
	}
}

// HandleText processes a command or a URL to shorten
func (b *Bot) HandleText(ctx context.Context, msg Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	if !b.allow(ctx, msg.ChatID, msg.UserID) {
		return
	}

	if strings.HasPrefix(text, "/") {
		name, args := parseCommand(text)
		b.dispatch(ctx, name, args, msg)
		return
	}

	b.handleShorten(ctx, msg, text)
}

// HandleDocument restores a snapshot when the file answers an /import prompt
func (b *Bot) HandleDocument(ctx context.Context, doc Document) {
	if !b.allow(ctx, doc.ChatID, doc.UserID) {
		return
	}
	if !doc.ReplyToImport && !b.consumeImport(doc.UserID) {
		b.reply(ctx, doc.ChatID, msgImportFirst)
		return
	}
	b.clearImport(doc.UserID)
	metrics.RecordBotCommand("import_document")

	result, err := b.assembler.ImportSnapshot(ctx, doc.UserID, doc.Data)
	if err != nil {
		b.logger.Warn("snapshot restore failed",
			"user_id", doc.UserID,
			"file", doc.FileName,
			"error", err,
		)
		b.reply(ctx, doc.ChatID, msgRestoreFailed)
		return
	}

	b.logger.Info("snapshot restored",
		"user_id", doc.UserID,
		"records", result.Records,
		"clicks", result.Clicks,
		"skipped", result.Skipped,
	)
	b.reply(ctx, doc.ChatID, formatImport(result))
}

func (b *Bot) allow(ctx context.Context, chatID, userID int64) bool {
	if b.limiter == nil {
		return true
	}

	allowed, _, resetAt, err := b.limiter.Allow(ctx, userKey(userID))
	if err != nil {
		b.logger.Warn("rate limiter unavailable, allowing message", "user_id", userID, "error", err)
		return true
	}
	if !allowed {
		metrics.RecordRateLimited("bot")
		b.reply(ctx, chatID, formatRateLimited(resetAt.Sub(b.now())))
		return false
	}

	metrics.RecordRateLimitAllowed("bot")
	return true
}

func (b *Bot) isOperator(userID int64) bool {
	return b.ownerID != 0 && userID == b.ownerID
}

func (b *Bot) armImport(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingImports[userID] = b.now().Add(importWindow)
}

func (b *Bot) consumeImport(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	deadline, ok := b.pendingImports[userID]
	if !ok {
		return false
	}
	delete(b.pendingImports, userID)
	return b.now().Before(deadline)
}

func (b *Bot) clearImport(userID int64) {
	b.mu.Lock()
	delete(b.pendingImports, userID)
	b.mu.Unlock()
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.messenger.SendText(ctx, chatID, text); err != nil {
		b.logger.Error("failed to send reply", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) replyDocument(ctx context.Context, chatID int64, snap *service.Snapshot, caption string) {
	if err := b.messenger.SendDocument(ctx, chatID, snap.Filename, snap.Data, caption); err != nil {
		b.logger.Error("failed to send document", "chat_id", chatID, "file", snap.Filename, "error", err)
		b.reply(ctx, chatID, msgExportFailed)
	}
}
