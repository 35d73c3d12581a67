package flow

import (
	"testing"

	"github.com/oxhq/emmylua-core/decl"
	"github.com/oxhq/emmylua-core/syntax"
	"github.com/oxhq/emmylua-core/types"
	"github.com/oxhq/emmylua-core/vfs"
	"github.com/stretchr/testify/require"
)

// firstIfCond parses src and returns the condition expression of its first
// if-statement's first clause.
func firstIfCond(t *testing.T, src string) (*syntax.Node, *decl.Index) {
	t.Helper()
	tree := syntax.Parse(src, syntax.DefaultConfig())
	require.Empty(t, tree.Errors)
	idx := decl.Build(vfs.FileId(1), tree)

	var ifStmt *syntax.Node
	var walk func(n *syntax.Node)
	walk = func(n *syntax.Node) {
		if n == nil || ifStmt != nil {
			return
		}
		if n.Kind == syntax.NIfStmt {
			ifStmt = n
			return
		}
		for _, c := range n.NodeChildren() {
			walk(c)
		}
	}
	walk(tree.Root)
	require.NotNil(t, ifStmt)

	clause := ifStmt.NodeChildren()[0]
	cond := clause.NodeChildren()[0]
	return cond, idx
}

// byName resolves a bare NNameExpr by text against the file's top-level
// decls, good enough for these single-scope fixtures.
func byName(idx *decl.Index) ResolveName {
	return func(n *syntax.Node) (decl.DeclId, bool) {
		toks := n.Tokens()
		if len(toks) != 1 {
			return 0, false
		}
		name := toks[0].Text()
		for _, d := range idx.Decls {
			if d.Name == name {
				return d.ID, true
			}
		}
		return 0, false
	}
}

func TestExtractPredicateBareName(t *testing.T) {
	cond, idx := firstIfCond(t, "local x = nil\nif x then end\n")
	p := ExtractPredicate(cond, byName(idx))
	require.Len(t, p.Then, 1)
	require.Len(t, p.Else, 1)
	for _, r := range p.Then {
		require.Equal(t, RTruthy, r.Kind)
	}
	for _, r := range p.Else {
		require.Equal(t, RFalsy, r.Kind)
	}
}

func TestExtractPredicateNegation(t *testing.T) {
	cond, idx := firstIfCond(t, "local x = nil\nif not x then end\n")
	p := ExtractPredicate(cond, byName(idx))
	for _, r := range p.Then {
		require.Equal(t, RFalsy, r.Kind)
	}
	for _, r := range p.Else {
		require.Equal(t, RTruthy, r.Kind)
	}
}

func TestExtractPredicateTypeCall(t *testing.T) {
	cond, idx := firstIfCond(t, "local x = nil\nif type(x) == \"string\" then end\n")
	p := ExtractPredicate(cond, byName(idx))
	require.Len(t, p.Then, 1)
	for _, r := range p.Then {
		require.Equal(t, RReplace, r.Kind)
		require.Equal(t, types.KString, r.Type.Kind)
	}
	for _, r := range p.Else {
		require.Equal(t, RSubtract, r.Kind)
	}
}

func TestExtractPredicateTypeCallNotEqual(t *testing.T) {
	condEq, idx := firstIfCond(t, "local x = nil\nif type(x) ~= \"string\" then end\n")
	p := ExtractPredicate(condEq, byName(idx))
	for _, r := range p.Then {
		require.Equal(t, RSubtract, r.Kind)
	}
	for _, r := range p.Else {
		require.Equal(t, RReplace, r.Kind)
	}
}

func TestExtractPredicateNameLiteralEquality(t *testing.T) {
	cond, idx := firstIfCond(t, "local x = nil\nif x == nil then end\n")
	p := ExtractPredicate(cond, byName(idx))
	for _, r := range p.Then {
		require.Equal(t, RReplace, r.Kind)
		require.Equal(t, types.KNil, r.Type.Kind)
	}
}

func TestExtractPredicateAndCombinesThen(t *testing.T) {
	cond, idx := firstIfCond(t, "local x = nil\nlocal y = nil\nif x and y then end\n")
	p := ExtractPredicate(cond, byName(idx))
	require.Len(t, p.Then, 2)
}

func TestFlowStatePushPopOverride(t *testing.T) {
	fs := NewFlowState()
	id := decl.DeclId(1)
	_, ok := fs.Current(id)
	require.False(t, ok)

	fs.Push()
	fs.Override(id, types.String())
	got, ok := fs.Current(id)
	require.True(t, ok)
	require.Equal(t, types.KString, got.Kind)

	fs.Pop()
	_, ok = fs.Current(id)
	require.False(t, ok)
}

func TestRefinementApplyTruthyRemovesNilAndFalse(t *testing.T) {
	base := types.Union(types.Nil(), types.BoolConst(false), types.String())
	r := Refinement{Kind: RTruthy}
	out := r.Apply(base, func(types.TypeDeclId) *types.TypeDecl { return nil })
	require.Equal(t, types.KString, out.Kind)
}
