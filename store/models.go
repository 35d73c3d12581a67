package store

import (
	"time"

	"gorm.io/datatypes"
)

// FileSnapshot is the durable mirror of one vfs.File's identity: the hash
// lets a restarted engine tell, without re-reading content, whether a file
// it already indexed has changed on disk since the last run.
type FileSnapshot struct {
	URI       string `gorm:"primaryKey;type:varchar(1024)"`
	Hash      string `gorm:"type:varchar(64);index"`
	UpdatedAt time.Time
}

func (FileSnapshot) TableName() string { return "file_snapshots" }

// ChangeLogEntry is one durable record of a vfs.ApplyResult diff, keyed by
// the driver.ReindexBatch.ID that produced it — the workspace's append-only
// edit history, grounded on the teacher's Stage/Apply audit trail but
// recording a reindex's diff rather than a pending code transformation.
type ChangeLogEntry struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	BatchID    string `gorm:"type:varchar(36);index"`
	FileURI    string `gorm:"type:varchar(1024);index"`
	Diff       string `gorm:"type:text"`
	RecordedAt time.Time
}

func (ChangeLogEntry) TableName() string { return "change_log_entries" }

// DiagnosticRun is a durable summary of one DiagnoseFile call: the count per
// diagnostic code, not the full Diagnostic list (ranges are only meaningful
// against the in-memory tree of the run that produced them, not worth
// persisting), so repeated runs let a caller graph a code's count over time.
type DiagnosticRun struct {
	ID      string `gorm:"primaryKey;type:varchar(36)"`
	FileURI string `gorm:"type:varchar(1024);index"`
	Code    string `gorm:"type:varchar(64);index"`
	Count   int
	// Sample holds the first few messages for this code in this run, for a
	// caller that wants a glance at what fired without re-running the
	// checker — the teacher's own JSONB columns (ConfidenceFactors,
	// TargetQuery) play the same "small structured extra, not worth its own
	// table" role.
	Sample datatypes.JSON `gorm:"type:jsonb"`
	RanAt  time.Time
}

func (DiagnosticRun) TableName() string { return "diagnostic_runs" }

// TypeDeclContribution records that a given file contributed to the merged
// cross-file types.TypeDecl named TypeDeclID — a durable mirror of
// types.TypeDecl.Files, which the in-memory Index keeps only for the
// lifetime of the process, so a workspace-wide "which files declare class X"
// query survives a restart without a full reindex.
type TypeDeclContribution struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	TypeDeclID string `gorm:"type:varchar(512);uniqueIndex:idx_type_decl_file"`
	FileURI    string `gorm:"type:varchar(1024);uniqueIndex:idx_type_decl_file"`
	RecordedAt time.Time
}

func (TypeDeclContribution) TableName() string { return "type_decl_contributions" }
