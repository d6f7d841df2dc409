package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"shortlink-bot/internal/service"
)

const archivePrefix = "shortlinks_backup_"

// DirSink writes archives to a local directory and keeps only the newest ones
type DirSink struct {
	dir  string
	keep int
}

func NewDirSink(dir string, keep int) *DirSink {
	if keep < 1 {
		keep = 1
	}
	return &DirSink{dir: dir, keep: keep}
}

func (d *DirSink) Name() string { return "dir" }

func (d *DirSink) Put(ctx context.Context, snap *service.Snapshot) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create backup dir: %w", err)
	}

	final := filepath.Join(d.dir, filepath.Base(snap.Filename))
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, snap.Data, 0o600); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move backup into place: %w", err)
	}

	return d.prune()
}

// prune removes the oldest archives beyond keep.
// Names embed a sortable timestamp, so lexical order is age order within a scope.
func (d *DirSink) prune() error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	var archives []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, ".zip") {
			continue
		}
		archives = append(archives, name)
	}
	if len(archives) <= d.keep {
		return nil
	}

	sort.Strings(archives)
	for _, name := range archives[:len(archives)-d.keep] {
		if err := os.Remove(filepath.Join(d.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove old backup %s: %w", name, err)
		}
	}
	return nil
}
