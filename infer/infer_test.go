package infer

import (
	"testing"

	"github.com/oxhq/emmylua-core/decl"
	"github.com/oxhq/emmylua-core/syntax"
	"github.com/oxhq/emmylua-core/types"
	"github.com/oxhq/emmylua-core/vfs"
	"github.com/stretchr/testify/require"
)

// setup parses src, builds its decl index, and wires a name-by-text
// resolver good enough for these single-scope fixtures.
func setup(t *testing.T, src string) (*Context, *syntax.Tree) {
	t.Helper()
	tree := syntax.Parse(src, syntax.DefaultConfig())
	require.Empty(t, tree.Errors)
	idx := decl.Build(vfs.FileId(1), tree)
	typeIx := types.NewIndex()

	resolve := func(n *syntax.Node) (decl.DeclId, bool) {
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
	return NewContext(vfs.FileId(1), idx, typeIx, nil, resolve), tree
}

// findFirstOfKind returns the first node of kind in a depth-first walk of n
// (used to pluck out a test target).
func findFirstOfKind(n *syntax.Node, kind syntax.NodeKind) *syntax.Node {
	if n == nil {
		return nil
	}
	if n.Kind == kind {
		return n
	}
	for _, c := range n.NodeChildren() {
		if f := findFirstOfKind(c, kind); f != nil {
			return f
		}
	}
	return nil
}

func TestInferIntegerLiteral(t *testing.T) {
	ctx, tree := setup(t, "local a = 1\n")
	lit := findFirstOfKind(tree.Root, syntax.NLiteralExpr)
	require.NotNil(t, lit)
	require.Equal(t, types.KInteger, InferExpr(ctx, lit, nil).Kind)
}

func TestInferFloatLiteral(t *testing.T) {
	ctx, tree := setup(t, "local a = 1.5\n")
	lit := findFirstOfKind(tree.Root, syntax.NLiteralExpr)
	require.Equal(t, types.KNumber, InferExpr(ctx, lit, nil).Kind)
}

func TestInferStringLiteral(t *testing.T) {
	ctx, tree := setup(t, "local a = \"hi\"\n")
	lit := findFirstOfKind(tree.Root, syntax.NLiteralExpr)
	got := InferExpr(ctx, lit, nil)
	require.Equal(t, types.KStringConst, got.Kind)
	require.Equal(t, "hi", got.StrVal)
}

func TestInferArithmeticBothInteger(t *testing.T) {
	ctx, tree := setup(t, "local a = 1 + 2\n")
	bin := findFirstOfKind(tree.Root, syntax.NBinExpr)
	require.Equal(t, types.KInteger, InferExpr(ctx, bin, nil).Kind)
}

func TestInferDivisionAlwaysFloat(t *testing.T) {
	ctx, tree := setup(t, "local a = 4 / 2\n")
	bin := findFirstOfKind(tree.Root, syntax.NBinExpr)
	require.Equal(t, types.KNumber, InferExpr(ctx, bin, nil).Kind)
}

func TestInferConcatIsString(t *testing.T) {
	ctx, tree := setup(t, "local a = \"x\" .. \"y\"\n")
	bin := findFirstOfKind(tree.Root, syntax.NBinExpr)
	require.Equal(t, types.KString, InferExpr(ctx, bin, nil).Kind)
}

func TestInferComparisonIsBoolean(t *testing.T) {
	ctx, tree := setup(t, "local a = 1 < 2\n")
	bin := findFirstOfKind(tree.Root, syntax.NBinExpr)
	require.Equal(t, types.KBoolean, InferExpr(ctx, bin, nil).Kind)
}

func TestInferNotIsBoolean(t *testing.T) {
	ctx, tree := setup(t, "local a = not nil\n")
	un := findFirstOfKind(tree.Root, syntax.NUnExpr)
	require.Equal(t, types.KBoolean, InferExpr(ctx, un, nil).Kind)
}

func TestInferNameFromInitializer(t *testing.T) {
	ctx, tree := setup(t, "local a = 1\nlocal b = a\n")
	names := collectNodesOfKind(tree.Root, syntax.NNameExpr)
	// last NNameExpr read is the "a" on the RHS of "local b = a"
	var rhsA *syntax.Node
	for _, n := range names {
		if n.Tokens()[0].Text() == "a" {
			rhsA = n
		}
	}
	require.NotNil(t, rhsA)
	require.Equal(t, types.KInteger, InferExpr(ctx, rhsA, nil).Kind)
}

func TestInferNumericForVarAllIntegerBoundsIsInteger(t *testing.T) {
	ctx, tree := setup(t, "for i = 1, 10, 2 do local x = i end\n")
	names := collectNodesOfKind(tree.Root, syntax.NNameExpr)
	var rhsI *syntax.Node
	for _, n := range names {
		if n.Tokens()[0].Text() == "i" {
			rhsI = n
		}
	}
	require.NotNil(t, rhsI)
	require.Equal(t, types.KInteger, InferExpr(ctx, rhsI, nil).Kind)
}

func TestInferNumericForVarFloatStopIsNumber(t *testing.T) {
	ctx, tree := setup(t, "for i = 1, 10.5 do local x = i end\n")
	names := collectNodesOfKind(tree.Root, syntax.NNameExpr)
	var rhsI *syntax.Node
	for _, n := range names {
		if n.Tokens()[0].Text() == "i" {
			rhsI = n
		}
	}
	require.NotNil(t, rhsI)
	require.Equal(t, types.KNumber, InferExpr(ctx, rhsI, nil).Kind)
}

func TestInferTableConstructorFields(t *testing.T) {
	ctx, tree := setup(t, "local t = {1, 2, name = \"a\"}\n")
	tc := findFirstOfKind(tree.Root, syntax.NTableConstructor)
	got := InferExpr(ctx, tc, nil)
	require.Equal(t, types.KTableConst, got.Kind)
	require.Contains(t, got.Fields, types.IntKey(1))
	require.Contains(t, got.Fields, types.StringKey("name"))
}

func TestInferCacheMemoizes(t *testing.T) {
	ctx, tree := setup(t, "local a = 1 + 2\n")
	bin := findFirstOfKind(tree.Root, syntax.NBinExpr)
	InferExpr(ctx, bin, nil)
	_, misses := ctx.Cache.Stats()
	// the binary expression and its two literal operands are each inferred
	// through the cache once.
	require.Equal(t, int64(3), misses)
	InferExpr(ctx, bin, nil)
	hits, _ := ctx.Cache.Stats()
	require.Equal(t, int64(1), hits)
}

func TestInferCacheManagerEvictsOldest(t *testing.T) {
	m := NewInferCacheManager(2)
	c1 := m.Get(vfs.FileId(1))
	m.Get(vfs.FileId(2))
	m.Get(vfs.FileId(3)) // evicts file 1

	c1Again := m.Get(vfs.FileId(1))
	require.NotSame(t, c1, c1Again)
}

// TestInferUnpackFlattensVariadicAheadOfFixedReturn exercises spec §8
// scenario 5: unpack's (variadic any, integer) signature flattens across
// four assignment targets as (any, integer, nil, nil) — the variadic isn't
// unpack's trailing return, so it contributes once at its own slot rather
// than repeating.
func TestInferUnpackFlattensVariadicAheadOfFixedReturn(t *testing.T) {
	ctx, tree := setup(t, "local t = {}\nlocal a, b, c, d = unpack(t)\n")
	names := collectNodesOfKind(tree.Root, syntax.NNameExpr)
	byText := map[string]*syntax.Node{}
	for _, n := range names {
		txt := n.Tokens()[0].Text()
		if _, seen := byText[txt]; !seen {
			byText[txt] = n
		}
	}
	require.Equal(t, types.KAny, InferExpr(ctx, byText["a"], nil).Kind)
	require.Equal(t, types.KInteger, InferExpr(ctx, byText["b"], nil).Kind)
	require.Equal(t, types.KNil, InferExpr(ctx, byText["c"], nil).Kind)
	require.Equal(t, types.KNil, InferExpr(ctx, byText["d"], nil).Kind)
}

// TestInferPcallSplicesCalleeReturnAfterBoolean exercises spec §8 scenario
// 9: pcall(string.rep, "a", 1000000000) types as (boolean, string) — the
// leading boolean plus string.rep's own recognized return type spliced in.
func TestInferPcallSplicesCalleeReturnAfterBoolean(t *testing.T) {
	ctx, tree := setup(t, `local ok, b = pcall(string.rep, "a", 1000000000)`+"\n")
	names := collectNodesOfKind(tree.Root, syntax.NNameExpr)
	byText := map[string]*syntax.Node{}
	for _, n := range names {
		txt := n.Tokens()[0].Text()
		if _, seen := byText[txt]; !seen {
			byText[txt] = n
		}
	}
	require.Equal(t, types.KBoolean, InferExpr(ctx, byText["ok"], nil).Kind)
	require.Equal(t, types.KString, InferExpr(ctx, byText["b"], nil).Kind)
}

func collectNodesOfKind(n *syntax.Node, kind syntax.NodeKind) []*syntax.Node {
	var out []*syntax.Node
	var walk func(n *syntax.Node)
	walk = func(n *syntax.Node) {
		if n == nil {
			return
		}
		if n.Kind == kind {
			out = append(out, n)
		}
		for _, c := range n.NodeChildren() {
			walk(c)
		}
	}
	walk(n)
	return out
}
