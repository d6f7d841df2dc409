package backup

import (
	"context"
	"fmt"

	"shortlink-bot/internal/service"
)

// DocumentSender delivers a file to a chat
type DocumentSender interface {
	SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error
}

// NotifySink sends each archive to the operator's chat
type NotifySink struct {
	sender DocumentSender
	chatID int64
}

func NewNotifySink(sender DocumentSender, chatID int64) *NotifySink {
	return &NotifySink{sender: sender, chatID: chatID}
}

func (n *NotifySink) Name() string { return "notify" }

func (n *NotifySink) Put(ctx context.Context, snap *service.Snapshot) error {
	caption := fmt.Sprintf("🗄 Automatic backup: %d links, %d clicks", snap.Records, snap.Clicks)
	return n.sender.SendDocument(ctx, n.chatID, snap.Filename, snap.Data, caption)
}
