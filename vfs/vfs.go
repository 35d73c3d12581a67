// Package vfs owns file text and identity for the engine (spec component B).
// Files are identified by an opaque FileId stable for the lifetime of the
// session; the VFS maps FileId <-> URI and FileId -> line index so that every
// other component can translate between byte offsets and LSP positions
// without re-scanning source text.
package vfs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/rs/zerolog/log"
)

// FileId is an opaque, session-stable identifier for a source file.
// Never reuse a FileId: once a file is removed its id is retired, matching
// the invariant that removing a file drops exactly the data it contributed.
type FileId uint32

// Invalid is the zero value, never assigned to a real file.
const Invalid FileId = 0

// File is the VFS's record for one source file.
type File struct {
	Id    FileId
	URI   string
	Text  string
	Hash  string
	lines []int // byte offset of the start of each line
}

// Change describes one incoming edit batch entry: Text == nil means the file
// was removed (or was never opened and should be dropped from the index).
type Change struct {
	URI  string
	Text *string
}

// VFS is the single-writer, multi-reader owner of file text.
type VFS struct {
	mu      sync.RWMutex
	byURI   map[string]FileId
	files   map[FileId]*File
	nextId  FileId
}

// New creates an empty VFS.
func New() *VFS {
	return &VFS{
		byURI: make(map[string]FileId),
		files: make(map[FileId]*File),
	}
}

// GetFileId returns the FileId for uri, if the file is currently known.
func (v *VFS) GetFileId(uri string) (FileId, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	id, ok := v.byURI[uri]
	return id, ok
}

// URI returns the URI for a FileId, if live.
func (v *VFS) URI(id FileId) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	f, ok := v.files[id]
	if !ok {
		return "", false
	}
	return f.URI, true
}

// Text returns the current text for a FileId, if live.
func (v *VFS) Text(id FileId) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	f, ok := v.files[id]
	if !ok {
		return "", false
	}
	return f.Text, true
}

// File returns a shallow copy of the File record, if live.
func (v *VFS) File(id FileId) (File, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	f, ok := v.files[id]
	if !ok {
		return File{}, false
	}
	return *f, true
}

// ApplyResult reports, for one Change batch, which files were updated (new
// or edited) and which were removed, plus a unified diff per updated file
// for the change-log (store package).
type ApplyResult struct {
	Updated []FileId
	Removed []FileId
	Diffs   map[FileId]string
}

// Apply applies a batch of changes atomically with respect to readers: the
// write lock is held only for the duration of this call, and later entries
// in the same batch observe the effects of earlier ones (§5 ordering
// guarantee).
func (v *VFS) Apply(changes []Change) ApplyResult {
	v.mu.Lock()
	defer v.mu.Unlock()

	result := ApplyResult{Diffs: make(map[FileId]string)}
	for _, ch := range changes {
		if ch.Text == nil {
			if id, ok := v.byURI[ch.URI]; ok {
				delete(v.byURI, ch.URI)
				delete(v.files, id)
				result.Removed = append(result.Removed, id)
			}
			continue
		}

		id, existed := v.byURI[ch.URI]
		var oldText string
		if existed {
			oldText = v.files[id].Text
		} else {
			v.nextId++
			id = v.nextId
			v.byURI[ch.URI] = id
		}

		f := &File{Id: id, URI: ch.URI, Text: *ch.Text}
		f.Hash = hashText(*ch.Text)
		f.lines = computeLineStarts(*ch.Text)
		v.files[id] = f

		result.Updated = append(result.Updated, id)
		if existed && oldText != *ch.Text {
			result.Diffs[id] = unifiedDiff(ch.URI, oldText, *ch.Text)
		}
	}

	sort.Slice(result.Updated, func(i, j int) bool { return result.Updated[i] < result.Updated[j] })
	var uniq []FileId
	for _, id := range result.Updated {
		if len(uniq) == 0 || uniq[len(uniq)-1] != id {
			uniq = append(uniq, id)
		}
	}
	result.Updated = uniq
	sort.Slice(result.Removed, func(i, j int) bool { return result.Removed[i] < result.Removed[j] })
	log.Debug().Int("updated", len(result.Updated)).Int("removed", len(result.Removed)).Msg("vfs applied change batch")
	return result
}

// AllFiles returns the ids of every currently live file, sorted.
func (v *VFS) AllFiles() []FileId {
	v.mu.RLock()
	defer v.mu.RUnlock()
	ids := make([]FileId, 0, len(v.files))
	for id := range v.files {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Position is a 0-based line/column pair (column counted in UTF-16 code
// units would belong to the LSP translation layer; here we count bytes,
// which is what the CST and inference engine operate on internally).
type Position struct {
	Line   int
	Column int
}

// OffsetToPosition converts a byte offset into a line/column pair.
func (v *VFS) OffsetToPosition(id FileId, offset int) (Position, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	f, ok := v.files[id]
	if !ok {
		return Position{}, false
	}
	return offsetToPosition(f.lines, offset), true
}

// PositionToOffset converts a line/column pair back into a byte offset.
func (v *VFS) PositionToOffset(id FileId, pos Position) (int, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	f, ok := v.files[id]
	if !ok {
		return 0, false
	}
	if pos.Line < 0 || pos.Line >= len(f.lines) {
		return 0, false
	}
	return f.lines[pos.Line] + pos.Column, true
}

func computeLineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func offsetToPosition(lines []int, offset int) Position {
	// binary search for the last line start <= offset
	lo, hi := 0, len(lines)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if lines[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return Position{Line: lo, Column: offset - lines[lo]}
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func unifiedDiff(name, a, b string) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: fmt.Sprintf("%s (before)", name),
		ToFile:   fmt.Sprintf("%s (after)", name),
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return text
}
