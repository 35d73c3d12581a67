package vfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestApplyAssignsStableIds(t *testing.T) {
	v := New()

	res := v.Apply([]Change{
		{URI: "file:///a.lua", Text: strPtr("local a = 1")},
		{URI: "file:///b.lua", Text: strPtr("local b = 2")},
	})
	require.Len(t, res.Updated, 2)

	idA, ok := v.GetFileId("file:///a.lua")
	require.True(t, ok)

	// Re-applying an edit to the same URI must keep the same FileId.
	res2 := v.Apply([]Change{
		{URI: "file:///a.lua", Text: strPtr("local a = 2")},
	})
	require.Len(t, res2.Updated, 1)
	require.Equal(t, idA, res2.Updated[0])

	text, ok := v.Text(idA)
	require.True(t, ok)
	require.Equal(t, "local a = 2", text)
}

func TestApplyRemoveDropsFile(t *testing.T) {
	v := New()
	v.Apply([]Change{{URI: "file:///a.lua", Text: strPtr("x = 1")}})
	id, ok := v.GetFileId("file:///a.lua")
	require.True(t, ok)

	res := v.Apply([]Change{{URI: "file:///a.lua", Text: nil}})
	require.Equal(t, []FileId{id}, res.Removed)

	_, ok = v.GetFileId("file:///a.lua")
	require.False(t, ok)
	_, ok = v.Text(id)
	require.False(t, ok)
}

func TestRemoveThenAddEqualsFreshAdd(t *testing.T) {
	v1 := New()
	v1.Apply([]Change{{URI: "file:///a.lua", Text: strPtr("local a = 1")}})
	v1.Apply([]Change{{URI: "file:///a.lua", Text: nil}})
	v1.Apply([]Change{{URI: "file:///a.lua", Text: strPtr("local a = 2")}})
	text1, _ := v1.Text(mustId(t, v1, "file:///a.lua"))

	v2 := New()
	v2.Apply([]Change{{URI: "file:///a.lua", Text: strPtr("local a = 2")}})
	text2, _ := v2.Text(mustId(t, v2, "file:///a.lua"))

	require.Equal(t, text2, text1)
}

func mustId(t *testing.T, v *VFS, uri string) FileId {
	t.Helper()
	id, ok := v.GetFileId(uri)
	require.True(t, ok)
	return id
}

func TestOffsetPositionRoundTrip(t *testing.T) {
	v := New()
	v.Apply([]Change{{URI: "file:///a.lua", Text: strPtr("local a = 1\nlocal b = 2\n")}})
	id := mustId(t, v, "file:///a.lua")

	pos, ok := v.OffsetToPosition(id, 12)
	require.True(t, ok)
	require.Equal(t, Position{Line: 1, Column: 0}, pos)

	off, ok := v.PositionToOffset(id, pos)
	require.True(t, ok)
	require.Equal(t, 12, off)
}

func TestApplyBatchOrderingWithinBatch(t *testing.T) {
	v := New()
	// Within one batch, a later edit to the same URI wins.
	res := v.Apply([]Change{
		{URI: "file:///a.lua", Text: strPtr("local a = 1")},
		{URI: "file:///a.lua", Text: strPtr("local a = 2")},
	})
	require.Len(t, res.Updated, 1)
	id := res.Updated[0]
	text, _ := v.Text(id)
	require.Equal(t, "local a = 2", text)
}
