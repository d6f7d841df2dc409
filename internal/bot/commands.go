package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"shortlink-bot/internal/domain"
	"shortlink-bot/internal/metrics"
	"shortlink-bot/internal/repository"
	"shortlink-bot/internal/service"
	"shortlink-bot/pkg/validator"
)

type commandFunc func(b *Bot, ctx context.Context, args string, msg Message)

type command struct {
	run      commandFunc
	operator bool
}

var commands = map[string]command{
	"start":          {run: (*Bot).cmdStart},
	"help":           {run: (*Bot).cmdHelp},
	"stats":          {run: (*Bot).cmdStats},
	"mylinks":        {run: (*Bot).cmdMyLinks},
	"click":          {run: (*Bot).cmdClick},
	"export":         {run: (*Bot).cmdExport},
	"import":         {run: (*Bot).cmdImport},
	"providers":      {run: (*Bot).cmdProviders},
	"backup":         {run: (*Bot).cmdBackup, operator: true},
	"resetproviders": {run: (*Bot).cmdResetProviders, operator: true},
	"globalstats":    {run: (*Bot).cmdGlobalStats, operator: true},
}

// parseCommand splits "/cmd@botname args" into ("cmd", "args")
func parseCommand(text string) (string, string) {
	text = strings.TrimPrefix(text, "/")
	name, args, _ := strings.Cut(text, " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name), strings.TrimSpace(args)
}

func (b *Bot) dispatch(ctx context.Context, name, args string, msg Message) {
	cmd, ok := commands[name]
	if !ok || (cmd.operator && !b.isOperator(msg.UserID)) {
		metrics.RecordBotCommand("unknown")
		b.reply(ctx, msg.ChatID, msgUnknownCommand)
		return
	}

	metrics.RecordBotCommand(name)
	b.logger.Debug("command received", "command", name, "user_id", msg.UserID)
	cmd.run(b, ctx, args, msg)
}

func (b *Bot) handleShorten(ctx context.Context, msg Message, text string) {
	owner := domain.Owner{ID: msg.UserID, Name: msg.UserName}

	rec, err := b.shortener.Shorten(ctx, text, owner)
	if err != nil {
		if validator.IsValidationError(err) {
			b.reply(ctx, msg.ChatID, msgInvalidURL)
			return
		}
		b.logger.Error("shortening failed", "user_id", msg.UserID, "error", err)
		b.reply(ctx, msg.ChatID, formatError(err))
		return
	}

	b.reply(ctx, msg.ChatID, formatShortened(rec))
}

func (b *Bot) cmdStart(ctx context.Context, _ string, msg Message) {
	b.reply(ctx, msg.ChatID, msgWelcome)
}

func (b *Bot) cmdHelp(ctx context.Context, _ string, msg Message) {
	b.reply(ctx, msg.ChatID, helpText(b.isOperator(msg.UserID)))
}

func (b *Bot) cmdStats(ctx context.Context, _ string, msg Message) {
	stats := b.assembler.ComputeStats(ctx, msg.UserID)
	b.reply(ctx, msg.ChatID, formatStats(stats))
}

func (b *Bot) cmdMyLinks(ctx context.Context, args string, msg Message) {
	limit := defaultLinksLimit
	if args != "" {
		if n, err := strconv.Atoi(args); err == nil && n > 0 {
			limit = min(n, maxLinksLimit)
		}
	}
	b.reply(ctx, msg.ChatID, formatLinks(b.assembler.Links(ctx, msg.UserID), limit))
}

func (b *Bot) cmdClick(ctx context.Context, args string, msg Message) {
	if args == "" {
		b.reply(ctx, msg.ChatID, msgClickUsage)
		return
	}

	rec, err := b.shortener.RecordOwnerClick(ctx, msg.UserID, args, domain.SourceSimulated)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			b.reply(ctx, msg.ChatID, msgLinkNotFound)
			return
		}
		b.logger.Warn("click failed", "short_url", args, "error", err)
		b.reply(ctx, msg.ChatID, formatError(err))
		return
	}

	b.reply(ctx, msg.ChatID, formatClick(rec))
}

func (b *Bot) cmdExport(ctx context.Context, _ string, msg Message) {
	ownerID := msg.UserID
	snap, err := b.assembler.ExportSnapshot(ctx, &ownerID)
	if err != nil {
		b.logger.Error("export failed", "user_id", msg.UserID, "error", err)
		b.reply(ctx, msg.ChatID, msgExportFailed)
		return
	}
	b.replyDocument(ctx, msg.ChatID, snap, formatExportCaption(snap))
}

func (b *Bot) cmdImport(ctx context.Context, _ string, msg Message) {
	b.armImport(msg.UserID)
	b.reply(ctx, msg.ChatID, ImportPrompt)
}

func (b *Bot) cmdProviders(ctx context.Context, _ string, msg Message) {
	b.reply(ctx, msg.ChatID, formatProviders(b.shortener.ProviderStatus(), b.shortener.Fallbacks()))
}

func (b *Bot) cmdBackup(ctx context.Context, _ string, msg Message) {
	snap, err := b.assembler.ExportSnapshot(ctx, nil)
	if err != nil {
		b.logger.Error("manual backup failed", "error", err)
		b.reply(ctx, msg.ChatID, msgExportFailed)
		return
	}
	b.replyDocument(ctx, msg.ChatID, snap, formatExportCaption(snap))
}

func (b *Bot) cmdResetProviders(ctx context.Context, _ string, msg Message) {
	n := b.shortener.ResetFailed()
	b.logger.Info("failed providers reset", "count", n)
	b.reply(ctx, msg.ChatID, formatReset(n))
}

func (b *Bot) cmdGlobalStats(ctx context.Context, _ string, msg Message) {
	stats, err := b.assembler.GlobalStats(ctx)
	if err != nil {
		b.logger.Error("global stats failed", "error", err)
		b.reply(ctx, msg.ChatID, formatError(err))
		return
	}
	b.reply(ctx, msg.ChatID, formatGlobalStats(stats))
}

var _ Shortener = (*service.Shortener)(nil)
var _ Assembler = (*service.Assembler)(nil)
