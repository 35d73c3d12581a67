package decl

import (
	"testing"

	"github.com/oxhq/emmylua-core/syntax"
	"github.com/oxhq/emmylua-core/vfs"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, src string) *Index {
	t.Helper()
	tree := syntax.Parse(src, syntax.DefaultConfig())
	require.Empty(t, tree.Errors)
	return Build(vfs.FileId(1), tree)
}

func TestLocalDeclAndRead(t *testing.T) {
	idx := build(t, "local a = 1\nlocal b = a + 1\n")
	require.Len(t, idx.Decls, 2)
	require.Equal(t, "a", idx.Decls[0].Name)
	require.Equal(t, KindLocal, idx.Decls[0].Kind)

	refs := idx.LocalRefs[idx.Decls[0].ID]
	require.Len(t, refs, 1)
	require.False(t, refs[0].IsWrite)
}

func TestLocalNotVisibleInOwnInitializer(t *testing.T) {
	// "local x = x" — the RHS x refers to an outer/global x, not the new local.
	idx := build(t, "local x = x\n")
	require.Len(t, idx.Decls, 1)
	require.Empty(t, idx.LocalRefs[idx.Decls[0].ID])
	require.Contains(t, idx.GlobalRefs, "x")
}

func TestLocalFunctionSelfRecursion(t *testing.T) {
	idx := build(t, "local function fact(n) if n < 2 then return 1 end return n * fact(n - 1) end\n")
	var fact *Decl
	for _, d := range idx.Decls {
		if d.Name == "fact" && d.Kind == KindLocal {
			fact = d
		}
	}
	require.NotNil(t, fact)
	require.Len(t, idx.LocalRefs[fact.ID], 1)
	require.Empty(t, idx.GlobalRefs["fact"])
}

func TestParamNotFlaggedAsRedefinition(t *testing.T) {
	// a = function(a) return a end -- outer `a` is a global write, inner
	// `a` is an independent param decl in the function's own scope.
	idx := build(t, "a = function(a) return a end\n")
	var outer, param *Decl
	for _, d := range idx.Decls {
		if d.Kind == KindParam {
			param = d
		}
	}
	require.NotNil(t, param)
	require.Nil(t, outer) // no local/global Decl is created for a bare global write
	require.Contains(t, idx.GlobalRefs, "a")
	refs := idx.LocalRefs[param.ID]
	require.Len(t, refs, 1)
	require.False(t, refs[0].IsWrite)
}

func TestForNumericScope(t *testing.T) {
	idx := build(t, "for i = 1, 10 do print(i) end\n")
	require.Len(t, idx.Decls, 1)
	require.Equal(t, KindForRange, idx.Decls[0].Kind)
	require.Len(t, idx.LocalRefs[idx.Decls[0].ID], 1)
	require.Contains(t, idx.GlobalRefs, "print")
}

func TestForNumericScopeRecordsBounds(t *testing.T) {
	idx := build(t, "for i = 1, 10, 2 do print(i) end\n")
	require.Len(t, idx.Decls, 1)
	require.Len(t, idx.Decls[0].ForBounds, 3)
}

func TestForNumericScopeNoStepBounds(t *testing.T) {
	idx := build(t, "for i = 1, 10 do print(i) end\n")
	require.Len(t, idx.Decls[0].ForBounds, 2)
}

func TestForInScope(t *testing.T) {
	idx := build(t, "for k, v in pairs(t) do print(k, v) end\n")
	names := map[string]bool{}
	for _, d := range idx.Decls {
		if d.Kind == KindForRange {
			names[d.Name] = true
			require.Equal(t, AttribIterConst, d.Attrib)
		}
	}
	require.True(t, names["k"])
	require.True(t, names["v"])
	require.Contains(t, idx.GlobalRefs, "pairs")
	require.Contains(t, idx.GlobalRefs, "t")
}

func TestMemberReferences(t *testing.T) {
	idx := build(t, "local p = {}\np.name = \"hi\"\nlocal n = p[\"name\"]\n")
	require.Contains(t, idx.MemberRefs, "name")
	require.GreaterOrEqual(t, len(idx.MemberRefs["name"]), 2)
}

func TestShadowingCreatesDistinctDecls(t *testing.T) {
	idx := build(t, "local x = 1\ndo local x = 2\nprint(x)\nend\nprint(x)\n")
	var decls []*Decl
	for _, d := range idx.Decls {
		if d.Name == "x" {
			decls = append(decls, d)
		}
	}
	require.Len(t, decls, 2)
	require.Len(t, idx.LocalRefs[decls[0].ID], 1) // outer print(x)
	require.Len(t, idx.LocalRefs[decls[1].ID], 1) // inner print(x)
}

func TestConstAttribute(t *testing.T) {
	idx := build(t, "local x <const> = 1\n")
	require.Len(t, idx.Decls, 1)
	require.Equal(t, AttribConst, idx.Decls[0].Attrib)
}
