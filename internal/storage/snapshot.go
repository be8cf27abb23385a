package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/tool_router/internal/history"
)

// ErrNoSnapshot is returned by Latest when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

// SnapshotStore abstracts DB queries for testability.
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, row snapshotRow) error
	LatestSnapshot(ctx context.Context) (*snapshotRow, error)
}

type snapshotRow struct {
	ID      string
	TakenAt time.Time
	Tools   int
	Records int
	Payload []byte
}

// sqlSnapshotStore is the real implementation using *sql.DB.
type sqlSnapshotStore struct {
	db *sql.DB
}

func (s *sqlSnapshotStore) InsertSnapshot(ctx context.Context, row snapshotRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_router_snapshots (id, taken_at, tool_count, usage_count, payload)
		VALUES ($1, $2, $3, $4, $5)
	`, row.ID, row.TakenAt, row.Tools, row.Records, row.Payload)
	return err
}

func (s *sqlSnapshotStore) LatestSnapshot(ctx context.Context) (*snapshotRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, taken_at, tool_count, usage_count, payload
		FROM tool_router_snapshots
		ORDER BY taken_at DESC
		LIMIT 1
	`)

	var r snapshotRow
	if err := row.Scan(&r.ID, &r.TakenAt, &r.Tools, &r.Records, &r.Payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSnapshot
		}
		return nil, err
	}
	return &r, nil
}

// Snapshot is a stored export. Payload is the JSON-encoded ToolDataExport.
type Snapshot struct {
	ID      string          `json:"id"`
	TakenAt time.Time       `json:"taken_at"`
	Tools   int             `json:"tool_count"`
	Records int             `json:"usage_count"`
	Payload json.RawMessage `json:"payload"`
}

// SnapshotArchive persists router exports to the tool_router_snapshots table.
type SnapshotArchive struct {
	store  SnapshotStore
	logger *zap.Logger
}

// NewPostgresSnapshotArchive creates an archive backed by db.
func NewPostgresSnapshotArchive(db *sql.DB, logger *zap.Logger) *SnapshotArchive {
	return &SnapshotArchive{
		store:  &sqlSnapshotStore{db: db},
		logger: logger,
	}
}

// NewSnapshotArchiveWithStore creates an archive with a custom store (for testing).
func NewSnapshotArchiveWithStore(store SnapshotStore, logger *zap.Logger) *SnapshotArchive {
	return &SnapshotArchive{store: store, logger: logger}
}

// Save stores export and returns the new snapshot's id.
func (a *SnapshotArchive) Save(ctx context.Context, export history.ToolDataExport) (string, error) {
	payload, err := json.Marshal(export)
	if err != nil {
		return "", fmt.Errorf("Save: encode export: %w", err)
	}

	row := snapshotRow{
		ID:      uuid.New().String(),
		TakenAt: export.ExportedAt,
		Tools:   len(export.Tools),
		Records: len(export.UsageHistory),
		Payload: payload,
	}
	if row.TakenAt.IsZero() {
		row.TakenAt = time.Now()
	}
	if err := a.store.InsertSnapshot(ctx, row); err != nil {
		return "", fmt.Errorf("Save: %w", err)
	}

	a.logger.Info("snapshot saved",
		zap.String("snapshot_id", row.ID),
		zap.Int("tools", row.Tools),
		zap.Int("usage_records", row.Records),
		zap.Int("bytes", len(payload)),
	)
	return row.ID, nil
}

// Latest returns the most recent snapshot.
func (a *SnapshotArchive) Latest(ctx context.Context) (*Snapshot, error) {
	row, err := a.store.LatestSnapshot(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			return nil, err
		}
		return nil, fmt.Errorf("Latest: %w", err)
	}
	return &Snapshot{
		ID:      row.ID,
		TakenAt: row.TakenAt,
		Tools:   row.Tools,
		Records: row.Records,
		Payload: row.Payload,
	}, nil
}
