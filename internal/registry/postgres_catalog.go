package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/triage-ai/palisade/services/tool_router/internal/config"
)

// CatalogStore abstracts DB queries for testability.
type CatalogStore interface {
	ListRemoteTools(ctx context.Context) ([]catalogRow, error)
}

type catalogRow struct {
	ID              string
	Name            string
	Description     sql.NullString
	Category        string
	Complexity      string
	Capabilities    string // JSONB array as string
	RequiredContext string
	OptimalContext  string
	Target          string
	Method          string
	ParameterSchema sql.NullString
}

// sqlCatalogStore is the real implementation using *sql.DB.
type sqlCatalogStore struct {
	db *sql.DB
}

func (s *sqlCatalogStore) ListRemoteTools(ctx context.Context) ([]catalogRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, category, complexity,
		       capabilities, required_context, optimal_context,
		       target, method, parameter_schema
		FROM remote_tools
		WHERE enabled
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalogRow
	for rows.Next() {
		var r catalogRow
		if err := rows.Scan(
			&r.ID, &r.Name, &r.Description, &r.Category, &r.Complexity,
			&r.Capabilities, &r.RequiredContext, &r.OptimalContext,
			&r.Target, &r.Method, &r.ParameterSchema,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PostgresCatalog reads remote tool declarations from the remote_tools
// table. Its output has the same shape as the remote_tools section of the
// YAML config.
type PostgresCatalog struct {
	store  CatalogStore
	logger *zap.Logger
}

// NewPostgresCatalog creates a catalog backed by db.
func NewPostgresCatalog(db *sql.DB, logger *zap.Logger) *PostgresCatalog {
	return &PostgresCatalog{store: &sqlCatalogStore{db: db}, logger: logger}
}

// newPostgresCatalogWithStore creates a catalog with a custom store (for testing).
func newPostgresCatalogWithStore(store CatalogStore, logger *zap.Logger) *PostgresCatalog {
	return &PostgresCatalog{store: store, logger: logger}
}

// Load returns every enabled declaration. Rows that fail to parse are
// logged and skipped.
func (c *PostgresCatalog) Load(ctx context.Context) ([]config.RemoteTool, error) {
	rows, err := c.store.ListRemoteTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}

	out := make([]config.RemoteTool, 0, len(rows))
	for i := range rows {
		rt, err := parseCatalogRow(&rows[i])
		if err != nil {
			c.logger.Warn("skipping remote tool row",
				zap.String("tool_id", rows[i].ID),
				zap.Error(err),
			)
			continue
		}
		out = append(out, rt)
	}
	return out, nil
}

func parseCatalogRow(row *catalogRow) (config.RemoteTool, error) {
	rt := config.RemoteTool{
		ID:         row.ID,
		Name:       row.Name,
		Category:   row.Category,
		Complexity: row.Complexity,
		Target:     row.Target,
		Method:     row.Method,
	}

	if row.Description.Valid {
		rt.Description = row.Description.String
	}

	for _, col := range []struct {
		name string
		raw  string
		dst  *[]string
	}{
		{"capabilities", row.Capabilities, &rt.Capabilities},
		{"required_context", row.RequiredContext, &rt.RequiredContext},
		{"optimal_context", row.OptimalContext, &rt.OptimalContext},
	} {
		if col.raw == "" || col.raw == "[]" {
			continue
		}
		if err := json.Unmarshal([]byte(col.raw), col.dst); err != nil {
			return config.RemoteTool{}, fmt.Errorf("parseCatalogRow: %s: %w", col.name, err)
		}
	}

	if row.ParameterSchema.Valid && row.ParameterSchema.String != "" {
		var schema map[string]any
		if err := json.Unmarshal([]byte(row.ParameterSchema.String), &schema); err != nil {
			return config.RemoteTool{}, fmt.Errorf("parseCatalogRow: parameter_schema: %w", err)
		}
		rt.Schema = schema
	}

	return rt, nil
}
