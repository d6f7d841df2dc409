package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"shortlink-bot/internal/domain"
	"shortlink-bot/internal/events"
	"shortlink-bot/internal/metrics"
	"shortlink-bot/internal/repository"
	"shortlink-bot/pkg/validator"
)

const (
	// ScopeAll marks a snapshot of every owner
	ScopeAll = "all"

	snapshotTimeLayout = "20060102_150405"
	maxSnapshotEntry   = 64 << 20
)

// Snapshot is an exported archive ready to send or store
type Snapshot struct {
	Filename string
	Data     []byte
	Records  int
	Clicks   int
}

type ImportResult struct {
	Records int `json:"records"`
	Clicks  int `json:"clicks"`
	Skipped int `json:"skipped"`
}

// snapshotDocument is the single JSON entry inside the archive
type snapshotDocument struct {
	OwnerID       snapshotScope        `json:"owner_id"`
	BackupCreated time.Time            `json:"backup_created"`
	URLsCount     int                  `json:"urls_count"`
	ClicksCount   int                  `json:"clicks_count"`
	URLs          []*domain.Record     `json:"urls"`
	Clicks        []*domain.ClickEvent `json:"clicks"`
}

// snapshotScope is an owner id or ScopeAll; numeric ids are accepted on read
type snapshotScope string

func (s *snapshotScope) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = snapshotScope(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = snapshotScope(n.String())
	return nil
}

// Assembler computes statistics and moves records in and out of snapshots
type Assembler struct {
	store     repository.RecordStore
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewAssembler(store repository.RecordStore, publisher events.Publisher, logger *slog.Logger) *Assembler {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Assembler{
		store:     store,
		publisher: publisher,
		logger:    logger.With("component", "assembler"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Links returns an owner's records, newest first.
// A store failure yields an empty list.
func (a *Assembler) Links(ctx context.Context, ownerID int64) []*domain.Record {
	records, err := a.store.FindByOwner(ctx, ownerID)
	if err != nil {
		metrics.RecordStoreError("find_by_owner")
		a.logger.Warn("failed to load owner records", "owner_id", ownerID, "error", err)
		return nil
	}
	return records
}

func (a *Assembler) ComputeStats(ctx context.Context, ownerID int64) domain.Stats {
	stats := aggregate(a.Links(ctx, ownerID))
	stats.OwnerID = ownerID
	return stats
}

// GlobalStats aggregates every owner's records
func (a *Assembler) GlobalStats(ctx context.Context) (domain.GlobalStats, error) {
	records, err := a.store.ListAll(ctx)
	if err != nil {
		metrics.RecordStoreError("list_all")
		return domain.GlobalStats{}, fmt.Errorf("failed to list records: %w", err)
	}

	owners := make(map[int64]struct{})
	for _, r := range records {
		owners[r.OwnerID] = struct{}{}
	}
	return domain.GlobalStats{Stats: aggregate(records), Owners: len(owners)}, nil
}

func aggregate(records []*domain.Record) domain.Stats {
	stats := domain.Stats{
		ProviderDistribution: make(map[string]int),
	}
	for _, r := range records {
		stats.TotalURLs++
		stats.TotalClicks += r.Clicks
		stats.ProviderDistribution[r.Provider]++
		if r.Clicks > 0 && (stats.TopRecord == nil || r.Clicks > stats.TopRecord.Clicks) {
			stats.TopRecord = r
		}
	}
	if stats.TotalURLs > 0 {
		stats.AverageClicks = float64(stats.TotalClicks) / float64(stats.TotalURLs)
	}
	return stats
}

// ExportSnapshot archives one owner's records, or every record when ownerID is nil
func (a *Assembler) ExportSnapshot(ctx context.Context, ownerID *int64) (snap *Snapshot, err error) {
	defer func() { metrics.RecordSnapshot("export", err) }()

	scope := ScopeAll
	var records []*domain.Record
	if ownerID != nil {
		scope = strconv.FormatInt(*ownerID, 10)
		records, err = a.store.FindByOwner(ctx, *ownerID)
	} else {
		records, err = a.store.ListAll(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	if records == nil {
		records = []*domain.Record{}
	}

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	clicks, err := a.store.FindClicks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load click events: %w", err)
	}
	if clicks == nil {
		clicks = []*domain.ClickEvent{}
	}

	created := a.now()
	stamp := created.Format(snapshotTimeLayout)
	doc := snapshotDocument{
		OwnerID:       snapshotScope(scope),
		BackupCreated: created,
		URLsCount:     len(records),
		ClicksCount:   len(clicks),
		URLs:          records,
		Clicks:        clicks,
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     fmt.Sprintf("backup_%s_%s.json", scope, stamp),
		Method:   zip.Deflate,
		Modified: created,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create archive entry: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return nil, fmt.Errorf("failed to write archive entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close archive: %w", err)
	}

	a.logger.Info("snapshot exported", "scope", scope, "urls", len(records), "clicks", len(clicks))

	return &Snapshot{
		Filename: fmt.Sprintf("shortlinks_backup_%s_%s.zip", scope, stamp),
		Data:     buf.Bytes(),
		Records:  len(records),
		Clicks:   len(clicks),
	}, nil
}

// ImportSnapshot restores an archive for ownerID.
// Every record is re-owned by ownerID and stamped with the restore time;
// click events are re-inserted against the restored record ids.
func (a *Assembler) ImportSnapshot(ctx context.Context, ownerID int64, blob []byte) (result ImportResult, err error) {
	defer func() { metrics.RecordSnapshot("import", err) }()

	doc, err := readSnapshot(blob)
	if err != nil {
		return result, err
	}

	restoredAt := a.now()
	ids := make(map[string]string, len(doc.URLs))

	for _, rec := range doc.URLs {
		if rec == nil || validator.ValidateShortURL(rec.ShortURL) != nil {
			result.Skipped++
			continue
		}
		oldID := rec.ID
		rec.OwnerID = ownerID
		rec.RestoredAt = &restoredAt
		if rec.Clicks < 0 {
			rec.Clicks = 0
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = restoredAt
		}

		id, err := a.store.UpsertByShortURLAndOwner(ctx, rec)
		if err != nil {
			metrics.RecordStoreError("upsert")
			return result, fmt.Errorf("failed to restore record %s: %w", rec.ShortURL, err)
		}
		ids[oldID] = id
		result.Records++
	}

	for _, ev := range doc.Clicks {
		if ev == nil {
			continue
		}
		newID, ok := ids[ev.RecordID]
		if !ok {
			result.Skipped++
			continue
		}
		ev.RecordID = newID
		if err := a.store.UpsertClickEvent(ctx, ev); err != nil {
			metrics.RecordStoreError("upsert_click_event")
			return result, fmt.Errorf("failed to restore click event: %w", err)
		}
		result.Clicks++
	}

	a.logger.Info("snapshot imported",
		"owner_id", ownerID,
		"records", result.Records,
		"clicks", result.Clicks,
		"skipped", result.Skipped,
	)
	if err := a.publisher.Publish(ctx, events.SubjectRestored, events.LinkEvent{
		OwnerID:    ownerID,
		Clicks:     int64(result.Clicks),
		Persisted:  true,
		OccurredAt: restoredAt,
	}); err != nil {
		a.logger.Warn("failed to publish event", "subject", events.SubjectRestored, "error", err)
	}

	return result, nil
}

// readSnapshot opens the archive and decodes its first JSON entry
func readSnapshot(blob []byte) (*snapshotDocument, error) {
	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a zip archive: %v", ErrInvalidSnapshot, err)
	}

	var entry *zip.File
	for _, f := range zr.File {
		if !f.FileInfo().IsDir() && strings.EqualFold(path.Ext(f.Name), ".json") {
			entry = f
			break
		}
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: no json document in archive", ErrInvalidSnapshot)
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxSnapshotEntry))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return &doc, nil
}
