package semantic

import (
	"testing"

	"github.com/oxhq/emmylua-core/config"
	"github.com/oxhq/emmylua-core/decl"
	"github.com/oxhq/emmylua-core/infer"
	"github.com/oxhq/emmylua-core/property"
	"github.com/oxhq/emmylua-core/syntax"
	"github.com/oxhq/emmylua-core/types"
	"github.com/oxhq/emmylua-core/vfs"
	"github.com/stretchr/testify/require"
)

func buildModel(t *testing.T, src string) (*Model, *syntax.Tree) {
	t.Helper()
	v := vfs.New()
	res := v.Apply([]vfs.Change{{URI: "file:///a.lua", Text: &src}})
	file := res.Updated[0]

	tree := syntax.Parse(src, syntax.DefaultConfig())
	require.Empty(t, tree.Errors)
	idx := decl.Build(file, tree)
	typeIx := types.NewIndex()
	props := property.NewIndex()

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
	ctx := infer.NewContext(file, idx, typeIx, nil, resolve)
	m := NewModel(file, v, idx, typeIx, props, ctx, config.Default())
	return m, tree
}

func findKind(n *syntax.Node, kind syntax.NodeKind) *syntax.Node {
	if n == nil {
		return nil
	}
	if n.Kind == kind {
		return n
	}
	for _, c := range n.NodeChildren() {
		if f := findKind(c, kind); f != nil {
			return f
		}
	}
	return nil
}

func TestModelTypeOf(t *testing.T) {
	m, tree := buildModel(t, "local a = 1 + 2\n")
	bin := findKind(tree.Root, syntax.NBinExpr)
	got := m.TypeOf(bin)
	require.Equal(t, types.KInteger, got.Kind)
}

func TestModelFindDecl(t *testing.T) {
	m, tree := buildModel(t, "local a = 1\nlocal b = a\n")
	names := []*syntax.Node{}
	var walk func(n *syntax.Node)
	walk = func(n *syntax.Node) {
		if n.Kind == syntax.NNameExpr {
			names = append(names, n)
		}
		for _, c := range n.NodeChildren() {
			walk(c)
		}
	}
	walk(tree.Root)

	var rhsA *syntax.Node
	for _, n := range names {
		if n.Tokens()[0].Text() == "a" {
			rhsA = n
		}
	}
	require.NotNil(t, rhsA)
	d := m.FindDecl(rhsA)
	require.NotNil(t, d)
	require.Equal(t, "a", d.Name)
}

func TestModelGetDocumentAndEmmyrc(t *testing.T) {
	m, _ := buildModel(t, "local a = 1\n")
	text, ok := m.GetDocument()
	require.True(t, ok)
	require.Equal(t, "local a = 1\n", text)
	require.Equal(t, config.Lua54, m.GetEmmyrc().Runtime.Version)
}

func TestModelMemberInfoMapOnClass(t *testing.T) {
	m, _ := buildModel(t, "local a = 1\n")
	id := types.TypeDeclId("Player")
	m.TypeIx.RegisterClass(id, m.File, nil, nil)
	m.TypeIx.SetField(id, types.StringKey("health"), types.Integer(), false)
	m.Properties.SetReadOnly(property.SemanticId{Kind: property.IdMember, Named: "health"})

	info := m.MemberInfoMap(types.Ref(id))
	require.Contains(t, info, "health")
	require.Equal(t, types.KInteger, info["health"].Type.Kind)
	require.True(t, info["health"].Property.Features.ReadOnly)
}
