// Package module implements spec component E: mapping Lua require paths to
// FileIds and back, and tracking each module's export type and visibility.
// The directory is named module_ (trailing underscore) so it doesn't shadow
// the go.mod "module" directive when grepped alongside it; the package
// itself is just "module".
package module

import (
	"strings"

	"github.com/oxhq/emmylua-core/types"
	"github.com/oxhq/emmylua-core/vfs"
)

// Path is a dotted require path, e.g. "mygame.entities.player" for a file
// required as require("mygame.entities.player").
type Path string

// Entry is one module's registration: its file of origin, the type of
// whatever it `return`s (its export type), and whether that export is
// itself marked private via a doc visibility tag. Namespace and
// ExportRestricted come from the module file's own `---@namespace`/
// `---@module` and `---@export namespace` tags (spec §9 Open Question c):
// when ExportRestricted is set, a caller may only `require` this module if
// its own enclosing namespace shares Namespace as a textual prefix.
type Entry struct {
	Path             Path
	File             vfs.FileId
	Export           *types.Type
	Private          bool
	Namespace        string
	ExportRestricted bool
}

// Index maps require paths to files and back (component E). A given file
// may be reachable under more than one path (e.g. both a root-relative and
// a package_dirs-relative form), so FileOf returns every path.
type Index struct {
	byPath map[Path]*Entry
	byFile map[vfs.FileId][]Path
}

func NewIndex() *Index {
	return &Index{byPath: map[Path]*Entry{}, byFile: map[vfs.FileId][]Path{}}
}

// Register associates path with file, replacing any previous registration
// for that exact path (a reindex of the same file re-registers its path with
// a fresh Entry).
func (ix *Index) Register(path Path, file vfs.FileId, export *types.Type, private bool) {
	ix.byPath[path] = &Entry{Path: path, File: file, Export: export, Private: private}
	paths := ix.byFile[file]
	for _, p := range paths {
		if p == path {
			return
		}
	}
	ix.byFile[file] = append(paths, path)
}

// Resolve looks up a module by require path.
func (ix *Index) Resolve(path Path) (*Entry, bool) {
	e, ok := ix.byPath[path]
	return e, ok
}

// SetExportPolicy records file's declared namespace and export restriction
// against every path currently registered for it, called once doc-tag
// extraction has read the file's `---@namespace`/`---@module`/`---@export`
// tags (module.Register itself runs before those tags are known, off of the
// file's path alone).
func (ix *Index) SetExportPolicy(file vfs.FileId, namespace string, restricted bool) {
	for _, p := range ix.byFile[file] {
		if e, ok := ix.byPath[p]; ok {
			e.Namespace = namespace
			e.ExportRestricted = restricted
		}
	}
}

// NamespaceOf returns the declared namespace of any module path registered
// for file, for a checker that needs the caller side of a require-visibility
// check (every path for one file shares the same namespace, so the first is
// enough).
func (ix *Index) NamespaceOf(file vfs.FileId) (string, bool) {
	paths := ix.byFile[file]
	if len(paths) == 0 {
		return "", false
	}
	e, ok := ix.byPath[paths[0]]
	if !ok {
		return "", false
	}
	return e.Namespace, true
}

// PathsForFile returns every require path currently registered for file.
func (ix *Index) PathsForFile(file vfs.FileId) []Path {
	return ix.byFile[file]
}

// RemoveFile drops every path registered for file (spec §3 lifecycle: a
// file's contributions disappear exactly when it is removed).
func (ix *Index) RemoveFile(file vfs.FileId) {
	for _, p := range ix.byFile[file] {
		delete(ix.byPath, p)
	}
	delete(ix.byFile, file)
}

// FromFilePath derives a candidate require path from a workspace-relative
// file path using the slash/dot convention Lua's `package.path` resolution
// follows: directory separators become dots, a .lua extension is dropped,
// and a trailing "/init.lua" collapses to its containing directory's path
// (the require("pkg") convention — a pkg/init.lua file is required as
// "pkg", mirroring Lua's package.path searching pkg/init.lua after pkg.lua).
func FromFilePath(rel string) Path {
	rel = strings.TrimSuffix(rel, ".lua")
	rel = strings.TrimSuffix(rel, "/init")
	rel = strings.ReplaceAll(rel, "/", ".")
	return Path(rel)
}
