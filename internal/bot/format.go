package bot

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"shortlink-bot/internal/domain"
	"shortlink-bot/internal/service"
)

const (
	defaultLinksLimit = 10
	maxLinksLimit     = 50
)

const (
	msgWelcome        = "Hello! Send me a URL and I will shorten it for you.\nType /help to see everything I can do."
	msgInvalidURL     = "❌ Please send a valid URL (including http:// or https://)."
	msgUnknownCommand = "🤔 Unknown command. Type /help for the list of commands."
	msgClickUsage     = "Usage: /click <short_url>"
	msgLinkNotFound   = "❌ I don't know that short link. Check /mylinks for yours."
	msgExportFailed   = "❌ Could not create the backup right now. Please try again later."
	msgImportFirst    = "📎 To restore a backup, send /import first and then the file."
	msgRestoreFailed  = "❌ Restoration failed: the file is not a valid backup."
	msgNoLinks        = "You have not shortened any links yet. Send me a URL to get started."
)

// ImportPrompt is the bot's answer to /import. Transports treat a document
// replying to it like one replying to the /import command itself.
const ImportPrompt = "📥 Send me a backup .zip file as a reply to restore your links."

func helpText(operator bool) string {
	var sb strings.Builder
	sb.WriteString("Send me any URL and I will shorten it.\n\n")
	sb.WriteString("/stats - your link statistics\n")
	sb.WriteString("/mylinks [n] - your most recent links\n")
	sb.WriteString("/click <short_url> - register a click on a link\n")
	sb.WriteString("/export - download a backup of your links\n")
	sb.WriteString("/import - restore links from a backup file\n")
	sb.WriteString("/providers - shortening service status\n")
	if operator {
		sb.WriteString("\nOperator:\n")
		sb.WriteString("/backup - export every owner's links\n")
		sb.WriteString("/resetproviders - retry services marked as failed\n")
		sb.WriteString("/globalstats - totals across all owners\n")
	}
	return sb.String()
}

func formatShortened(rec *domain.Record) string {
	text := "✅ Here is your shortened URL:\n" + rec.ShortURL
	if rec.IsFallback() {
		text += "\n\n⚠️ Shortening services are unavailable, this is a locally generated link."
	}
	if !rec.IsPersisted() {
		text += "\n\n⚠️ Storage is unavailable, this link will not appear in your stats."
	}
	return text
}

func formatError(err error) string {
	return fmt.Sprintf("❌ An error occurred: %v", err)
}

func formatRateLimited(wait time.Duration) string {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("⏳ Too many requests. Please wait %d seconds.", secs)
}

func formatStats(s domain.Stats) string {
	if s.TotalURLs == 0 {
		return "📊 " + msgNoLinks
	}

	var sb strings.Builder
	sb.WriteString("📊 Your statistics\n\n")
	fmt.Fprintf(&sb, "Links: %d\n", s.TotalURLs)
	fmt.Fprintf(&sb, "Clicks: %d\n", s.TotalClicks)
	fmt.Fprintf(&sb, "Average clicks per link: %.2f\n", s.AverageClicks)
	writeDistribution(&sb, s.ProviderDistribution)
	if s.TopRecord != nil {
		fmt.Fprintf(&sb, "\n🏆 Top link: %s (%d clicks)\n%s", s.TopRecord.ShortURL, s.TopRecord.Clicks, s.TopRecord.OriginalURL)
	}
	return sb.String()
}

func formatGlobalStats(s domain.GlobalStats) string {
	var sb strings.Builder
	sb.WriteString("🌍 Global statistics\n\n")
	fmt.Fprintf(&sb, "Owners: %d\n", s.Owners)
	fmt.Fprintf(&sb, "Links: %d\n", s.TotalURLs)
	fmt.Fprintf(&sb, "Clicks: %d\n", s.TotalClicks)
	fmt.Fprintf(&sb, "Average clicks per link: %.2f\n", s.AverageClicks)
	writeDistribution(&sb, s.ProviderDistribution)
	return sb.String()
}

func writeDistribution(sb *strings.Builder, dist map[string]int) {
	if len(dist) == 0 {
		return
	}
	names := make([]string, 0, len(dist))
	for name := range dist {
		names = append(names, name)
	}
	sort.Strings(names)

	sb.WriteString("\nBy service:\n")
	for _, name := range names {
		fmt.Fprintf(sb, "• %s: %d\n", name, dist[name])
	}
}

func formatLinks(records []*domain.Record, limit int) string {
	if len(records) == 0 {
		return msgNoLinks
	}

	shown := records
	if len(shown) > limit {
		shown = shown[:limit]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔗 Your links (%d of %d)\n", len(shown), len(records))
	for i, rec := range shown {
		fmt.Fprintf(&sb, "\n%d. %s\n   %s\n   %d clicks · %s · %s",
			i+1, rec.ShortURL, rec.OriginalURL, rec.Clicks, rec.Provider, rec.CreatedAt.Format("2006-01-02"))
	}
	return sb.String()
}

func formatClick(rec *domain.Record) string {
	return fmt.Sprintf("👆 Click recorded for %s\nTotal clicks: %d", rec.ShortURL, rec.Clicks)
}

func formatExportCaption(snap *service.Snapshot) string {
	return fmt.Sprintf("💾 Backup: %d links, %d clicks", snap.Records, snap.Clicks)
}

func formatImport(r service.ImportResult) string {
	text := fmt.Sprintf("✅ Restored %d links and %d clicks.", r.Records, r.Clicks)
	if r.Skipped > 0 {
		text += fmt.Sprintf("\n⚠️ Skipped %d invalid entries.", r.Skipped)
	}
	return text
}

func formatProviders(statuses []service.ProviderStatus, fallbacks int64) string {
	var sb strings.Builder
	sb.WriteString("🛠 Shortening services\n")
	for _, st := range statuses {
		mark := "🟢"
		if st.Failed {
			mark = "🔴"
		}
		fmt.Fprintf(&sb, "\n%s %s: %d links", mark, st.Name, st.Successes)
	}
	fmt.Fprintf(&sb, "\n\nLocal fallbacks: %d", fallbacks)
	return sb.String()
}

func formatReset(n int) string {
	if n == 0 {
		return "All shortening services are already active."
	}
	return fmt.Sprintf("♻️ Re-enabled %d shortening services.", n)
}

func userKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}
