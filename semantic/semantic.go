// Package semantic implements spec component J: a per-file, read-only
// facade bundling vfs (B), decl (C), types (D/H), property (F), and infer
// (I) behind the §6.1 query API, grounded on the teacher's
// providers/contract.go Provider interface (Query/Transform/Validate/Stats)
// as the model for a narrow, stable facade type.
package semantic

import (
	"github.com/oxhq/emmylua-core/config"
	"github.com/oxhq/emmylua-core/decl"
	"github.com/oxhq/emmylua-core/infer"
	"github.com/oxhq/emmylua-core/property"
	"github.com/oxhq/emmylua-core/syntax"
	"github.com/oxhq/emmylua-core/types"
	"github.com/oxhq/emmylua-core/vfs"
)

// DeclLevel controls how far find_decl/is_reference_to follows a reference
// before stopping, matching EmmyLua's "go to definition vs go to type
// definition" distinction.
type DeclLevel int

const (
	LevelDecl DeclLevel = iota // the decl/member/type-decl site itself
	LevelType                  // the type of whatever the decl resolves to
)

// Model is the read-only per-file facade. It never mutates file, decl,
// type, or property state; Model.Refresh on the driver is what rebuilds and
// swaps the underlying indexes after an edit.
type Model struct {
	File       vfs.FileId
	VFS        *vfs.VFS
	Decls      *decl.Index
	TypeIx     *types.Index
	Properties *property.Index
	InferCtx   *infer.Context
	Config     config.Config
}

// NewModel assembles a Model for one file's already-built component indexes.
func NewModel(file vfs.FileId, v *vfs.VFS, decls *decl.Index, typeIx *types.Index, props *property.Index, inferCtx *infer.Context, cfg config.Config) *Model {
	return &Model{File: file, VFS: v, Decls: decls, TypeIx: typeIx, Properties: props, InferCtx: inferCtx, Config: cfg}
}

// TypeOf is `type_of(syntax)`: the inferred or narrowed type of an
// expression node.
func (m *Model) TypeOf(e *syntax.Node) *types.Type {
	if m.InferCtx == nil {
		return types.Unknown()
	}
	return infer.InferExpr(m.InferCtx, e, nil)
}

// InferCall is `infer_call(call, expected?)`: the return type of a call
// expression, threading an expected type through for bidirectional
// resolution of table-constructor/function-literal arguments.
func (m *Model) InferCall(call *syntax.Node, expected *types.Type) *types.Type {
	if m.InferCtx == nil || call == nil || call.Kind != syntax.NCallExpr {
		return types.Unknown()
	}
	return infer.InferExpr(m.InferCtx, call, expected)
}

// FindDecl is `find_decl(node, LevelDecl)`: resolves a bare-name expression
// node to the Decl it references, or nil if it's a global or unresolved.
func (m *Model) FindDecl(nameExpr *syntax.Node) *decl.Decl {
	if m.InferCtx == nil {
		return nil
	}
	id, ok := m.InferCtx.Resolve(nameExpr)
	if !ok {
		return nil
	}
	for _, d := range m.Decls.Decls {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// FindTypeDecl is `find_decl(node, LevelType)`: resolves a bare-name
// expression to the TypeDecl its inferred type names, following alias
// unfolding — "go to type definition" rather than "go to decl site".
func (m *Model) FindTypeDecl(nameExpr *syntax.Node) *types.TypeDecl {
	if m.InferCtx == nil || m.TypeIx == nil {
		return nil
	}
	resolve := func(id types.TypeDeclId) *types.TypeDecl { return m.TypeIx.Resolve(id) }
	t := types.UnfoldAlias(infer.InferExpr(m.InferCtx, nameExpr, nil), resolve)
	if t == nil || (t.Kind != types.KRef && t.Kind != types.KDef) {
		return nil
	}
	return m.TypeIx.Resolve(t.DeclId)
}

// IsReferenceToDecl is `is_reference_to(node, semantic_id, LevelDecl)`:
// reports whether nameExpr resolves to the given DeclId.
func (m *Model) IsReferenceToDecl(nameExpr *syntax.Node, target decl.DeclId) bool {
	if m.InferCtx == nil {
		return false
	}
	id, ok := m.InferCtx.Resolve(nameExpr)
	return ok && id == target
}

// IsReferenceToTypeDecl is `is_reference_to(node, semantic_id, LevelType)`:
// reports whether nameExpr's inferred type is (or unfolds to) a reference to
// the given TypeDeclId, e.g. "this expression, typed as this class".
func (m *Model) IsReferenceToTypeDecl(nameExpr *syntax.Node, target types.TypeDeclId) bool {
	if m.InferCtx == nil {
		return false
	}
	resolve := func(id types.TypeDeclId) *types.TypeDecl { return m.TypeIx.Resolve(id) }
	t := types.UnfoldAlias(infer.InferExpr(m.InferCtx, nameExpr, nil), resolve)
	return t != nil && (t.Kind == types.KRef || t.Kind == types.KDef) && t.DeclId == target
}

// MemberInfoMap is `member_info_map(type)`: every field name reachable on t,
// resolved through alias-unfolding and the supertype chain, each paired with
// its Property (visibility/deprecation/attributes) if one was recorded.
func (m *Model) MemberInfoMap(t *types.Type) map[string]MemberInfo {
	out := map[string]MemberInfo{}
	m.collectMembers(t, out, map[types.TypeDeclId]bool{})
	return out
}

// MemberInfo pairs a member's type with whatever Property metadata (F) was
// attached to it.
type MemberInfo struct {
	Type     *types.Type
	Property property.Property
}

func (m *Model) collectMembers(t *types.Type, out map[string]MemberInfo, seen map[types.TypeDeclId]bool) {
	if t == nil {
		return
	}
	resolve := func(id types.TypeDeclId) *types.TypeDecl { return m.TypeIx.Resolve(id) }
	t = types.UnfoldAlias(t, resolve)

	switch t.Kind {
	case types.KUnion:
		for _, e := range t.Elems {
			m.collectMembers(e, out, seen)
		}
	case types.KRef, types.KDef:
		if seen[t.DeclId] {
			return
		}
		seen[t.DeclId] = true
		d := m.TypeIx.Resolve(t.DeclId)
		if d == nil {
			return
		}
		for key, ft := range d.Fields {
			if key.Kind != types.KeyString {
				continue
			}
			if _, exists := out[key.Name]; !exists {
				info := MemberInfo{Type: ft}
				if m.Properties != nil {
					info.Property = m.Properties.Get(property.SemanticId{Kind: property.IdMember, Named: key.Name})
				}
				out[key.Name] = info
			}
		}
		for _, super := range d.Supers {
			m.collectMembers(types.Ref(super), out, seen)
		}
	case types.KTableConst, types.KObject:
		for key, ft := range t.Fields {
			if key.Kind != types.KeyString {
				continue
			}
			if _, exists := out[key.Name]; !exists {
				out[key.Name] = MemberInfo{Type: ft}
			}
		}
	}
}

// GetDocument returns the file's current text, the `get_document()` query.
func (m *Model) GetDocument() (string, bool) {
	if m.VFS == nil {
		return "", false
	}
	return m.VFS.Text(m.File)
}

// GetRoot returns the file's parsed CST root, the `get_root()` query. The
// caller is responsible for having parsed/cached the tree; Model doesn't
// own parsing (that's the driver's job on reindex).
func (m *Model) GetRoot(tree *syntax.Tree) *syntax.Node {
	if tree == nil {
		return nil
	}
	return tree.Root
}

// GetEmmyrc returns the effective configuration in force for this file's
// workspace, the `get_emmyrc()` query.
func (m *Model) GetEmmyrc() config.Config { return m.Config }
