// Package telegram connects the bot to the Telegram Bot API
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"shortlink-bot/internal/bot"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MaxDocumentSize is the largest upload the Bot API lets bots download
const MaxDocumentSize = 20 << 20

var ErrDocumentTooLarge = errors.New("document too large")

// API is the part of tgbotapi.BotAPI the transport uses
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetFileDirectURL(fileID string) (string, error)
}

// Handler receives inbound messages
type Handler interface {
	HandleText(ctx context.Context, msg bot.Message)
	HandleDocument(ctx context.Context, doc bot.Document)
}

// Transport long-polls for updates and sends replies
type Transport struct {
	api         API
	httpClient  *http.Client
	logger      *slog.Logger
	pollTimeout int
}

// Connect authenticates against the Bot API with token
func Connect(token string, debug bool, logger *slog.Logger) (*Transport, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	api.Debug = debug

	logger.Info("telegram bot authorized", "username", api.Self.UserName)
	return NewTransport(api, logger), nil
}

func NewTransport(api API, logger *slog.Logger) *Transport {
	return &Transport{
		api:         api,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      logger.With("component", "telegram"),
		pollTimeout: 60,
	}
}

// Run dispatches updates to h until ctx is cancelled, then waits for
// in-flight handlers to return
func (t *Transport) Run(ctx context.Context, h Handler) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = t.pollTimeout
	updates := t.api.GetUpdatesChan(cfg)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			wg.Add(1)
			go func(m *tgbotapi.Message) {
				defer wg.Done()
				t.handleMessage(ctx, h, m)
			}(update.Message)
		}
	}
}

func (t *Transport) handleMessage(ctx context.Context, h Handler, m *tgbotapi.Message) {
	if m.Chat == nil || m.From == nil {
		return
	}

	if m.Document != nil {
		data, err := t.download(ctx, m.Document)
		if err != nil {
			t.logger.Warn("failed to download document",
				"chat_id", m.Chat.ID,
				"file", m.Document.FileName,
				"error", err,
			)
			_ = t.SendText(ctx, m.Chat.ID, "❌ Could not download that file. Backups must be under 20 MB.")
			return
		}
		h.HandleDocument(ctx, bot.Document{
			ChatID:        m.Chat.ID,
			UserID:        m.From.ID,
			UserName:      displayName(m.From),
			FileName:      m.Document.FileName,
			Data:          data,
			ReplyToImport: isImportReply(m),
		})
		return
	}

	h.HandleText(ctx, bot.Message{
		ChatID:   m.Chat.ID,
		UserID:   m.From.ID,
		UserName: displayName(m.From),
		Text:     m.Text,
	})
}

func (t *Transport) download(ctx context.Context, doc *tgbotapi.Document) ([]byte, error) {
	if doc.FileSize > MaxDocumentSize {
		return nil, ErrDocumentTooLarge
	}

	url, err := t.api.GetFileDirectURL(doc.FileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDocumentSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxDocumentSize {
		return nil, ErrDocumentTooLarge
	}
	return data, nil
}

// SendText implements bot.Messenger
func (t *Transport) SendText(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendDocument implements bot.Messenger and backup.DocumentSender
func (t *Transport) SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	doc.Caption = caption
	if _, err := t.api.Send(doc); err != nil {
		return fmt.Errorf("failed to send document: %w", err)
	}
	return nil
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// isImportReply reports whether m answers an /import command or the bot's
// prompt that follows it
func isImportReply(m *tgbotapi.Message) bool {
	parent := m.ReplyToMessage
	if parent == nil {
		return false
	}
	if strings.HasPrefix(parent.Text, "/import") {
		return true
	}
	return parent.From != nil && parent.From.IsBot && parent.Text == bot.ImportPrompt
}

var _ bot.Messenger = (*Transport)(nil)
