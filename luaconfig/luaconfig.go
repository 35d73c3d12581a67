// Package luaconfig implements spec component M: the optional ConfigTable/
// Bean overlay that treats certain class hierarchies as table-format data
// and validates literal table data against the constraints their doc tags
// declare. Grounded on the original implementation's
// compilation/analyzer/luaconfig/mod.rs (a two-phase pass: first gather
// type-level facts like primary keys, then walk data files) and
// semantic/shared/luaconfig.rs (the ConfigTable/Bean name matchers).
package luaconfig

import "github.com/oxhq/emmylua-core/types"

// ConfigTableName and BeanName are the two well-known base class names this
// overlay recognizes, matching semantic/shared/luaconfig.rs's ConfigTable/
// Bean singletons exactly (name-based matching, not structural).
const (
	ConfigTableName = types.TypeDeclId("ConfigTable")
	BeanName        = types.TypeDeclId("Bean")
)

// IsSubclassOf reports whether id's supertype chain reaches target,
// depth-first over TypeDecl.Supers with a visited set against cycles (a
// malformed `---@class A: B` / `---@class B: A` pair shouldn't infinite
// loop the checker).
func IsSubclassOf(ix *types.Index, id, target types.TypeDeclId) bool {
	if id == target {
		return true
	}
	return subclassOf(ix, id, target, map[types.TypeDeclId]bool{})
}

func subclassOf(ix *types.Index, id, target types.TypeDeclId, seen map[types.TypeDeclId]bool) bool {
	if seen[id] {
		return false
	}
	seen[id] = true
	d := ix.Resolve(id)
	if d == nil {
		return false
	}
	for _, s := range d.Supers {
		if s == target || subclassOf(ix, s, target, seen) {
			return true
		}
	}
	return false
}

// IsConfigTable reports whether id names a class that is ConfigTable itself
// or a subclass of it.
func IsConfigTable(ix *types.Index, id types.TypeDeclId) bool {
	return IsSubclassOf(ix, id, ConfigTableName)
}

// IsBean reports whether id names a class that is Bean itself or a
// subclass of it.
func IsBean(ix *types.Index, id types.TypeDeclId) bool {
	return IsSubclassOf(ix, id, BeanName)
}

// rowKeyFieldNames are the two doc-tag spellings a ConfigTable's row-type
// declaration can take: `---@field [int] Item` / `---@field [string] Item`
// (the parsed field name is the literal bracket text, since docparser.go's
// parseFieldTag tokenizes a field name whitespace-delimited, brackets and
// all).
var rowKeyFieldNames = []string{"[int]", "[string]"}

// RowType resolves a ConfigTable subclass's declared row (Bean) type: the
// `[int]`/`[string]`-keyed field every ConfigTable row-table declares,
// mirroring the original's `[Item]`-indexed ConfigTable convention (a
// ConfigTable is a map or array of one Bean row type, never a mix).
func RowType(ix *types.Index, tableId types.TypeDeclId) (types.TypeDeclId, bool) {
	d := ix.Resolve(tableId)
	if d == nil {
		return "", false
	}
	for _, key := range rowKeyFieldNames {
		if ft, ok := d.Fields[types.StringKey(key)]; ok && ft != nil {
			if ft.Kind == types.KRef || ft.Kind == types.KDef {
				return ft.DeclId, true
			}
		}
	}
	return "", false
}
