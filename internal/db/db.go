// Package db fronts the relational catalog of detected builds, their deploy
// log, and their assets. All mutations run inside explicit transactions.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/slice/havoc/internal/discord"
	"github.com/slice/havoc/internal/scrape"
)

const schema = `
CREATE TABLE IF NOT EXISTS builds (
	build_id TEXT PRIMARY KEY,
	build_number INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS build_deploys (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	build_id TEXT NOT NULL REFERENCES builds(build_id),
	branch TEXT NOT NULL,
	detected_at INTEGER NOT NULL DEFAULT (CAST(strftime('%s','now') AS INTEGER) * 1000)
);
CREATE INDEX IF NOT EXISTS idx_build_deploys_branch ON build_deploys(branch, detected_at DESC);

CREATE TABLE IF NOT EXISTS assets (
	name TEXT PRIMARY KEY,
	surface INTEGER NOT NULL,
	surface_script_type TEXT,
	script_chunk_id INTEGER
);

CREATE TABLE IF NOT EXISTS build_assets (
	build_id TEXT NOT NULL REFERENCES builds(build_id),
	asset_name TEXT NOT NULL REFERENCES assets(name),
	PRIMARY KEY (build_id, asset_name)
);
`

// Store wraps the connection pool. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the catalog at path and applies the schema.
// Foreign key enforcement is switched on for every pooled connection.
func Open(path string, maxConns int) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Check runs a trivial query through the pool, for health endpoints.
func (s *Store) Check(ctx context.Context) (int, error) {
	var two int
	if err := s.db.QueryRowContext(ctx, "SELECT 1 + 1").Scan(&two); err != nil {
		return 0, fmt.Errorf("database check: %w", err)
	}
	return two, nil
}

// LastKnownHash returns the hash of the most recent deploy recorded for the
// branch, or ok=false when the branch has no deploys yet.
func (s *Store) LastKnownHash(ctx context.Context, branch discord.Branch) (string, bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT build_id
		FROM build_deploys
		WHERE branch = ?
		ORDER BY detected_at DESC, id DESC
		LIMIT 1`,
		string(branch),
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query last known hash: %w", err)
	}
	return hash, true, nil
}

// RecordDeploy logs an observation of the build being live on the branch,
// inserting the build row first if it isn't catalogued yet.
func (s *Store) RecordDeploy(ctx context.Context, build discord.Build, branch discord.Branch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin deploy transaction: %w", err)
	}
	defer tx.Rollback()

	slog.Debug("inserting build",
		"number", build.Number, "hash", build.Manifest.Hash, "branch", branch)

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO builds (build_id, build_number) VALUES (?, ?)
		ON CONFLICT DO NOTHING`,
		build.Manifest.Hash, build.Number,
	); err != nil {
		return fmt.Errorf("insert build: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO build_deploys (build_id, branch) VALUES (?, ?)`,
		build.Manifest.Hash, string(branch),
	); err != nil {
		return fmt.Errorf("insert deploy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit deploy: %w", err)
	}
	return nil
}

// IsBuildCatalogued reports whether the build hash is already present.
func (s *Store) IsBuildCatalogued(ctx context.Context, hash string) (bool, error) {
	var found string
	err := s.db.QueryRowContext(ctx,
		"SELECT build_id FROM builds WHERE build_id = ?", hash,
	).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query catalogued build: %w", err)
	}
	return true, nil
}

// CatalogAssets records the build's surface stylesheets, its chunk loader's
// script chunks, and its surface scripts (annotated with their inferred
// roles) in one transaction. The build must already be recorded.
func (s *Store) CatalogAssets(ctx context.Context, build discord.Build, chunks []scrape.ChunkAsset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stylesheet := range discord.FilterByType(build.Manifest.Assets, discord.AssetCss) {
		if err := insertAsset(ctx, tx, stylesheet, surfaceKind(), nil); err != nil {
			return err
		}
		if err := associateAsset(ctx, tx, build, stylesheet); err != nil {
			return err
		}
	}

	for _, chunk := range chunks {
		chunkID := chunk.ChunkID
		if err := insertAsset(ctx, tx, chunk.Asset, deepKind(), &chunkID); err != nil {
			return err
		}
		if err := associateAsset(ctx, tx, build, chunk.Asset); err != nil {
			return err
		}
	}

	scripts := discord.FilterByType(build.Manifest.Assets, discord.AssetJs)
	for i, script := range scripts {
		kind := surfaceKind()
		if role, ok := discord.RoleForIndex(i, len(scripts)); ok {
			kind = surfaceScriptKind(role)
		}
		if err := insertAsset(ctx, tx, script, kind, nil); err != nil {
			return err
		}
		if err := associateAsset(ctx, tx, build, script); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog: %w", err)
	}
	return nil
}

// assetKind annotates how an asset was discovered.
type assetKind struct {
	surface    bool
	scriptType sql.NullString
}

func surfaceKind() assetKind {
	return assetKind{surface: true}
}

func deepKind() assetKind {
	return assetKind{surface: false}
}

func surfaceScriptKind(role discord.RootScript) assetKind {
	return assetKind{surface: true, scriptType: sql.NullString{String: role.Column(), Valid: true}}
}

func insertAsset(ctx context.Context, tx *sql.Tx, asset discord.Asset, kind assetKind, chunkID *uint32) error {
	slog.Debug("inserting asset",
		"asset", asset.Filename(), "surface", kind.surface, "script_type", kind.scriptType.String)

	var chunk sql.NullInt64
	if chunkID != nil {
		chunk = sql.NullInt64{Int64: int64(*chunkID), Valid: true}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO assets (name, surface, surface_script_type, script_chunk_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		asset.Filename(), kind.surface, kind.scriptType, chunk,
	); err != nil {
		return fmt.Errorf("insert asset %s: %w", asset.Filename(), err)
	}
	return nil
}

func associateAsset(ctx context.Context, tx *sql.Tx, build discord.Build, asset discord.Asset) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO build_assets (build_id, asset_name) VALUES (?, ?)
		ON CONFLICT DO NOTHING`,
		build.Manifest.Hash, asset.Filename(),
	); err != nil {
		return fmt.Errorf("associate asset %s: %w", asset.Filename(), err)
	}
	return nil
}
