package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SnapshotExt is the file extension of catalog snapshots.
const SnapshotExt = ".db"

// SnapshotInfo describes one snapshot file.
type SnapshotInfo struct {
	Path     string
	Name     string
	Size     int64
	ModTime  time.Time
	Checksum string
	Sets     int
	Cards    int
}

// DefaultSnapshotDir is the "backups" directory next to the database file.
func DefaultSnapshotDir(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), "backups")
}

// Snapshot writes a consistent copy of the catalog into dir with VACUUM INTO
// and verifies it. An empty name gets a UTC timestamp. Snapshots are taken
// while ingestion may be writing; SQLite serializes the copy against writers.
func (db *DB) Snapshot(ctx context.Context, dir, name string) (*SnapshotInfo, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if name == "" {
		name = "catalog_" + time.Now().UTC().Format("20060102_150405")
	}
	path := filepath.Join(dir, strings.TrimSuffix(name, SnapshotExt)+SnapshotExt)

	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("snapshot already exists: %s", path)
	}

	if _, err := db.conn.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}

	info, err := InspectSnapshot(ctx, path)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("snapshot verification failed: %w", err)
	}
	return info, nil
}

// InspectSnapshot opens a snapshot read-only and reports its contents. A file
// that is not a migrated catalog database is an error.
func InspectSnapshot(ctx context.Context, path string) (*SnapshotInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat snapshot: %w", err)
	}

	conn, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer func() { _ = conn.Close() }()

	info := &SnapshotInfo{
		Path:    path,
		Name:    filepath.Base(path),
		Size:    stat.Size(),
		ModTime: stat.ModTime(),
	}

	var check string
	if err := conn.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&check); err != nil {
		return nil, fmt.Errorf("failed to check snapshot: %w", err)
	}
	if check != "ok" {
		return nil, fmt.Errorf("snapshot is corrupt: %s", check)
	}

	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM sets").Scan(&info.Sets); err != nil {
		return nil, fmt.Errorf("snapshot has no catalog: %w", err)
	}
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM cards").Scan(&info.Cards); err != nil {
		return nil, fmt.Errorf("snapshot has no catalog: %w", err)
	}

	if info.Checksum, err = fileChecksum(path); err != nil {
		return nil, fmt.Errorf("failed to checksum snapshot: %w", err)
	}
	return info, nil
}

// ListSnapshots returns the snapshots in dir, newest first. A missing
// directory holds no snapshots. Files that fail inspection are skipped.
func ListSnapshots(ctx context.Context, dir string) ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []SnapshotInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	snapshots := []SnapshotInfo{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != SnapshotExt {
			continue
		}
		info, err := InspectSnapshot(ctx, filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		snapshots = append(snapshots, *info)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].ModTime.After(snapshots[j].ModTime)
	})
	return snapshots, nil
}

// fileChecksum calculates the SHA-256 checksum of a file.
func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
