package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/emmylua-core/diagnostics"
	"github.com/oxhq/emmylua-core/types"
	"github.com/oxhq/emmylua-core/vfs"
)

func TestConnectMemory(t *testing.T) {
	s, err := Connect(":memory:", false)
	require.NoError(t, err)
	require.NotNil(t, s)
	defer s.Close()

	for _, table := range []string{"file_snapshots", "change_log_entries", "diagnostic_runs", "type_decl_contributions"} {
		assert.True(t, s.db.Migrator().HasTable(table), "table %s should exist", table)
	}
}

func TestIsRemoteDSN(t *testing.T) {
	tests := []struct {
		dsn      string
		expected bool
	}{
		{"http://example.com", true},
		{"https://example.com", true},
		{"libsql://test.turso.io", true},
		{"/path/to/db.sqlite", false},
		{":memory:", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, isRemoteDSN(tt.dsn), "dsn=%q", tt.dsn)
	}
}

func TestRecordBatchSnapshotsAndChangeLog(t *testing.T) {
	s, err := Connect(":memory:", false)
	require.NoError(t, err)
	defer s.Close()

	v := vfs.New()
	src1 := "local x = 1\n"
	res := v.Apply([]vfs.Change{{URI: "file:///a.lua", Text: &src1}})
	require.NoError(t, s.RecordBatch("batch-1", v, res.Updated, res.Diffs))

	snaps, err := s.KnownFiles()
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "file:///a.lua", snaps[0].URI)

	var changeCount int64
	require.NoError(t, s.db.Model(&ChangeLogEntry{}).Count(&changeCount).Error)
	assert.Zero(t, changeCount, "first write of a file has nothing to diff against")

	src2 := "local x = 2\n"
	res2 := v.Apply([]vfs.Change{{URI: "file:///a.lua", Text: &src2}})
	require.NoError(t, s.RecordBatch("batch-2", v, res2.Updated, res2.Diffs))

	require.NoError(t, s.db.Model(&ChangeLogEntry{}).Count(&changeCount).Error)
	assert.Equal(t, int64(1), changeCount)
}

func TestRemoveFilesDropsSnapshot(t *testing.T) {
	s, err := Connect(":memory:", false)
	require.NoError(t, err)
	defer s.Close()

	v := vfs.New()
	src := "local x = 1\n"
	res := v.Apply([]vfs.Change{{URI: "file:///a.lua", Text: &src}})
	require.NoError(t, s.RecordBatch("batch-1", v, res.Updated, res.Diffs))

	require.NoError(t, s.RemoveFiles([]string{"file:///a.lua"}))
	snaps, err := s.KnownFiles()
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestRecordDiagnosticRun(t *testing.T) {
	s, err := Connect(":memory:", false)
	require.NoError(t, err)
	defer s.Close()

	diags := []diagnostics.Diagnostic{
		{Code: "undefined-global", Message: "x"},
		{Code: "undefined-global", Message: "y"},
		{Code: "duplicate-index", Message: "z"},
	}
	require.NoError(t, s.RecordDiagnosticRun("file:///a.lua", diags))

	var runs []DiagnosticRun
	require.NoError(t, s.db.Where("file_uri = ?", "file:///a.lua").Find(&runs).Error)
	require.Len(t, runs, 2)

	counts := map[string]int{}
	for _, r := range runs {
		counts[r.Code] = r.Count
	}
	assert.Equal(t, 2, counts["undefined-global"])
	assert.Equal(t, 1, counts["duplicate-index"])
}

func TestRecordTypeDeclContributions(t *testing.T) {
	s, err := Connect(":memory:", false)
	require.NoError(t, err)
	defer s.Close()

	v := vfs.New()
	src := "local x = 1\n"
	res := v.Apply([]vfs.Change{{URI: "file:///a.lua", Text: &src}})
	file := res.Updated[0]

	typeIx := types.NewIndex()
	typeIx.RegisterClass("Foo", file, nil, nil)

	require.NoError(t, s.RecordTypeDeclContributions(typeIx, v))

	var contribs []TypeDeclContribution
	require.NoError(t, s.db.Find(&contribs).Error)
	require.Len(t, contribs, 1)
	assert.Equal(t, "Foo", contribs[0].TypeDeclID)
	assert.Equal(t, "file:///a.lua", contribs[0].FileURI)

	// recording again must not duplicate the (type, file) pair.
	require.NoError(t, s.RecordTypeDeclContributions(typeIx, v))
	require.NoError(t, s.db.Find(&contribs).Error)
	assert.Len(t, contribs, 1)
}
