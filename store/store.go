// Package store implements the engine's ambient, optional persistence layer:
// a durable mirror of workspace state the in-memory driver.Driver otherwise
// loses on restart (file hashes, reindex diffs, diagnostic-run history, and
// which files contributed to a merged types.TypeDecl). Grounded on the
// teacher's db/sqlite.go (Connect/Migrate shape, the libsql-vs-local-file
// DSN branch) and models/models.go (gorm model conventions, TableName
// overrides), generalized from the teacher's Stage/Apply/Session workflow
// bookkeeping to this engine's reindex/diagnostic bookkeeping.
package store

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	glebarez "github.com/glebarez/sqlite"
	libsql "github.com/tursodatabase/libsql-client-go/libsql"
	"gorm.io/datatypes"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oxhq/emmylua-core/diagnostics"
	"github.com/oxhq/emmylua-core/types"
	"github.com/oxhq/emmylua-core/vfs"
)

// Store is the durable workspace mirror. It holds its own *gorm.DB rather
// than sharing the driver's locking discipline: every write here is a
// best-effort append performed after a batch already landed in memory, so a
// slow or failing store write must never block (or roll back) the
// in-memory driver state it's mirroring.
type Store struct {
	db *gorm.DB
}

// Connect opens dsn and runs migrations, matching the teacher's
// db.Connect(dsn, debug) signature and its two-dialector branch: a local
// file path uses glebarez/sqlite (a pure-Go, CGO-free sqlite driver, the
// right default for a CLI/LSP process that shouldn't need a C toolchain to
// build), while a libsql://, http://, or https:// DSN uses gorm.io/driver/
// sqlite over a tursodatabase/libsql-client-go connector for a shared
// remote workspace store — the exact branch the teacher's isURL/Connect
// pair implements, ported unchanged since it already covers this engine's
// same two deployment shapes.
func Connect(dsn string, debug bool) (*Store, error) {
	if !isRemoteDSN(dsn) {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create database directory: %w", err)
			}
		}
	}

	gcfg := &gorm.Config{}
	if debug {
		gcfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var (
		dialector gorm.Dialector
		conn      *sql.DB
	)
	if isRemoteDSN(dsn) {
		var (
			connector driver.Connector
			err       error
		)
		if token := os.Getenv("EMMYLUA_LIBSQL_AUTH_TOKEN"); token != "" {
			connector, err = libsql.NewConnector(dsn, libsql.WithAuthToken(token))
		} else {
			connector, err = libsql.NewConnector(dsn)
		}
		if err != nil {
			return nil, fmt.Errorf("store: create libsql connector: %w", err)
		}
		conn = sql.OpenDB(connector)
		dialector = gormsqlite.New(gormsqlite.Config{
			DriverName: "libsql",
			Conn:       conn,
			DSN:        dsn,
		})
	} else {
		dialector = glebarez.Open(dsn)
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Exec("PRAGMA foreign_keys = ON")
	}

	if err := db.AutoMigrate(
		&FileSnapshot{},
		&ChangeLogEntry{},
		&DiagnosticRun{},
		&TypeDeclContribution{},
	); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

func isRemoteDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "http://") || strings.HasPrefix(dsn, "https://") || strings.HasPrefix(dsn, "libsql")
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordBatch persists the outcome of one driver.AddOrUpdateFiles call: a
// FileSnapshot upsert for every updated file (its current hash) and a
// ChangeLogEntry for every file whose text actually changed (res.Diffs only
// carries entries for edits to a file that already existed, matching
// vfs.VFS.Apply's own "only diff on an edit, not a fresh open" rule).
func (s *Store) RecordBatch(batchID string, v *vfs.VFS, updated []vfs.FileId, diffs map[vfs.FileId]string) error {
	now := time.Now()
	for _, id := range updated {
		f, ok := v.File(id)
		if !ok {
			continue
		}
		snap := FileSnapshot{URI: f.URI, Hash: f.Hash, UpdatedAt: now}
		if err := s.db.Save(&snap).Error; err != nil {
			return fmt.Errorf("store: save file snapshot %s: %w", f.URI, err)
		}
		if diff, ok := diffs[id]; ok && diff != "" {
			entry := ChangeLogEntry{
				ID:         uuid.NewString(),
				BatchID:    batchID,
				FileURI:    f.URI,
				Diff:       diff,
				RecordedAt: now,
			}
			if err := s.db.Create(&entry).Error; err != nil {
				return fmt.Errorf("store: record change log entry for %s: %w", f.URI, err)
			}
		}
	}
	return nil
}

// RemoveFiles drops a removed file's snapshot; its change-log history is
// kept (an append-only audit trail outlives the file it describes).
func (s *Store) RemoveFiles(uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	return s.db.Where("uri IN ?", uris).Delete(&FileSnapshot{}).Error
}

// RecordDiagnosticRun persists one DiagnoseFile call's per-code counts, each
// with a small sample of the actual messages that fired.
func (s *Store) RecordDiagnosticRun(fileURI string, diags []diagnostics.Diagnostic) error {
	counts := map[string]int{}
	samples := map[string][]string{}
	const maxSample = 3
	for _, d := range diags {
		counts[d.Code]++
		if len(samples[d.Code]) < maxSample {
			samples[d.Code] = append(samples[d.Code], d.Message)
		}
	}
	now := time.Now()
	for code, count := range counts {
		sampleJSON, err := json.Marshal(samples[code])
		if err != nil {
			return fmt.Errorf("store: marshal diagnostic sample for %s: %w", code, err)
		}
		run := DiagnosticRun{
			ID:      uuid.NewString(),
			FileURI: fileURI,
			Code:    code,
			Count:   count,
			Sample:  datatypes.JSON(sampleJSON),
			RanAt:   now,
		}
		if err := s.db.Create(&run).Error; err != nil {
			return fmt.Errorf("store: record diagnostic run for %s: %w", fileURI, err)
		}
	}
	return nil
}

// RecordTypeDeclContributions upserts one TypeDeclContribution row per
// (TypeDeclId, file) pair reachable from typeIx, mirroring the set of files
// types.TypeDecl.Files already tracks in memory.
func (s *Store) RecordTypeDeclContributions(typeIx *types.Index, v *vfs.VFS) error {
	now := time.Now()
	for _, decl := range typeIx.All() {
		for file := range decl.Files {
			uri, ok := v.URI(file)
			if !ok {
				continue
			}
			contrib := TypeDeclContribution{TypeDeclID: string(decl.Id), FileURI: uri, RecordedAt: now}
			err := s.db.Where("type_decl_id = ? AND file_uri = ?", contrib.TypeDeclID, contrib.FileURI).
				Assign(TypeDeclContribution{RecordedAt: now}).
				FirstOrCreate(&contrib).Error
			if err != nil {
				return fmt.Errorf("store: record type decl contribution %s/%s: %w", contrib.TypeDeclID, contrib.FileURI, err)
			}
		}
	}
	return nil
}

// KnownFiles returns every file URI the store has a snapshot for, letting a
// restarted engine tell which files it previously indexed without a full
// workspace walk.
func (s *Store) KnownFiles() ([]FileSnapshot, error) {
	var snaps []FileSnapshot
	if err := s.db.Find(&snaps).Error; err != nil {
		return nil, fmt.Errorf("store: list known files: %w", err)
	}
	return snaps, nil
}
