package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxhq/emmylua-core/config"
	"github.com/oxhq/emmylua-core/diagnostics"
	"github.com/oxhq/emmylua-core/infer"
	"github.com/oxhq/emmylua-core/property"
	"github.com/oxhq/emmylua-core/syntax"
	"github.com/oxhq/emmylua-core/types"
	"github.com/oxhq/emmylua-core/vfs"
)

// findNameRefs collects every bare-name expression node in tree whose text
// is name.
func findNameRefs(n *syntax.Node, name string, out *[]*syntax.Node) {
	if n == nil {
		return
	}
	if n.Kind == syntax.NNameExpr {
		if toks := n.Tokens(); len(toks) == 1 && toks[0].Text() == name {
			*out = append(*out, n)
		}
	}
	for _, c := range n.NodeChildren() {
		findNameRefs(c, name, out)
	}
}

func text(s string) *string { return &s }

func TestAddOrUpdateFilesBuildsModel(t *testing.T) {
	d := New(config.Default())
	batch := d.AddOrUpdateFiles(context.Background(), []vfs.Change{
		{URI: "file:///a.lua", Text: text("local x = 1\n")},
	})
	require.Len(t, batch.Updated, 1)
	require.NotEmpty(t, batch.ID)

	model, ok := d.SemanticModel(batch.Updated[0])
	require.True(t, ok)
	require.NotNil(t, model)
}

func TestRemoveFilesDropsContributions(t *testing.T) {
	d := New(config.Default())
	batch := d.AddOrUpdateFiles(context.Background(), []vfs.Change{
		{URI: "file:///a.lua", Text: text("---@class Foo\nlocal Foo = {}\n")},
	})
	file := batch.Updated[0]
	require.NotNil(t, d.typeIx.Resolve("Foo"))

	d.RemoveFiles([]string{"file:///a.lua"})
	_, ok := d.SemanticModel(file)
	require.False(t, ok)
	require.Nil(t, d.typeIx.Resolve("Foo"))
}

func TestClassAndFieldExtraction(t *testing.T) {
	d := New(config.Default())
	src := "---@class Animal\n---@field name string\n---@field age integer\nlocal Animal = {}\n"
	batch := d.AddOrUpdateFiles(context.Background(), []vfs.Change{{URI: "file:///a.lua", Text: text(src)}})
	_ = batch

	td := d.typeIx.Resolve("Animal")
	require.NotNil(t, td)
	require.Equal(t, types.DeclClass, td.Kind)
	nameField := td.Fields[types.StringKey("name")]
	require.NotNil(t, nameField)
	require.Equal(t, types.KString, nameField.Kind)
	ageField := td.Fields[types.StringKey("age")]
	require.NotNil(t, ageField)
	require.Equal(t, types.KInteger, ageField.Kind)
}

func TestAliasExtraction(t *testing.T) {
	d := New(config.Default())
	src := "---@alias Direction \"up\"|\"down\"\nlocal x = 1\n"
	d.AddOrUpdateFiles(context.Background(), []vfs.Change{{URI: "file:///a.lua", Text: text(src)}})

	td := d.typeIx.Resolve("Direction")
	require.NotNil(t, td)
	require.Equal(t, types.DeclAlias, td.Kind)
	require.NotNil(t, td.AliasOf)
	require.Equal(t, types.KUnion, td.AliasOf.Kind)
}

func TestEnumExtraction(t *testing.T) {
	d := New(config.Default())
	src := "---@enum Color\nlocal Color = { Red = 1, Green = 2 }\n"
	d.AddOrUpdateFiles(context.Background(), []vfs.Change{{URI: "file:///a.lua", Text: text(src)}})

	td := d.typeIx.Resolve("Color")
	require.NotNil(t, td)
	require.Equal(t, types.DeclEnum, td.Kind)
	require.Len(t, td.Variants, 2)
}

func TestFunctionDocSignatureAnnotation(t *testing.T) {
	d := New(config.Default())
	src := "---@param a integer\n---@param b string\n---@return boolean\nlocal function f(a, b)\n  return true\nend\nlocal g = f\n"
	batch := d.AddOrUpdateFiles(context.Background(), []vfs.Change{{URI: "file:///a.lua", Text: text(src)}})
	file := batch.Updated[0]

	st := d.files[file]
	require.NotNil(t, st)
	tree, ok := d.Tree(file)
	require.True(t, ok)

	var refs []*syntax.Node
	findNameRefs(tree.Root, "f", &refs)
	require.NotEmpty(t, refs)

	typ := infer.InferExpr(st.inferCtx, refs[len(refs)-1], nil)
	require.Equal(t, types.KDocFunction, typ.Kind)
	require.Len(t, typ.Elems, 2)
	require.Equal(t, types.KInteger, typ.Elems[0].Kind)
	require.Equal(t, types.KString, typ.Elems[1].Kind)
	require.Equal(t, types.KBoolean, typ.Inner.Kind)
}

func TestDeprecatedPropertyExtraction(t *testing.T) {
	d := New(config.Default())
	src := "---@deprecated use g instead\nlocal function f()\nend\n"
	batch := d.AddOrUpdateFiles(context.Background(), []vfs.Change{{URI: "file:///a.lua", Text: text(src)}})
	file := batch.Updated[0]
	st := d.files[file]

	var fID uint32
	for _, dd := range st.decls.Decls {
		if dd.Name == "f" {
			fID = uint32(dd.ID)
		}
	}
	p := d.props.Get(property.SemanticId{Kind: property.IdDecl, Local: fID})
	require.Equal(t, property.DeprecatedWithMessage, p.Deprecation)
	require.Equal(t, "use g instead", p.DeprecationMsg)
}

func TestDiagnoseFileOverDriver(t *testing.T) {
	d := New(config.Default())
	batch := d.AddOrUpdateFiles(context.Background(), []vfs.Change{
		{URI: "file:///a.lua", Text: text("local x <const> = 1\nx = 2\n")},
	})
	ds, ok := d.DiagnoseFile(batch.Updated[0])
	require.True(t, ok)
	found := false
	for _, diag := range ds {
		if diag.Code == "local-const-reassign" {
			found = true
		}
	}
	require.True(t, found)
}

func TestDiagnoseFileAccessInvisible(t *testing.T) {
	d := New(config.Default())
	src := `
---@class Account
---@field private balance number
local Account = {}

function Account:deposit(n)
  self.balance = self.balance + n
end

---@type Account
local acct = Account

function useAccount()
  return acct.balance
end
`
	batch := d.AddOrUpdateFiles(context.Background(), []vfs.Change{{URI: "file:///a.lua", Text: text(src)}})
	ds, ok := d.DiagnoseFile(batch.Updated[0])
	require.True(t, ok)
	found := false
	for _, diag := range ds {
		if diag.Code == "access-invisible" {
			found = true
		}
	}
	require.True(t, found)
}

func TestDiagnoseFileRequireModuleNotVisible(t *testing.T) {
	d := New(config.Default())
	d.AddOrUpdateFiles(context.Background(), []vfs.Change{
		{URI: "file://internal/secret.lua", Text: text("---@namespace internal\n---@export namespace\nreturn {}\n")},
		{URI: "file://caller.lua", Text: text("local s = require(\"internal.secret\")\n")},
	})
	callerBatch := d.AddOrUpdateFiles(context.Background(), []vfs.Change{
		{URI: "file://caller.lua", Text: text("local s = require(\"internal.secret\")\n")},
	})
	ds, ok := d.DiagnoseFile(callerBatch.Updated[0])
	require.True(t, ok)
	found := false
	for _, diag := range ds {
		if diag.Code == "require-module-not-visible" {
			found = true
		}
	}
	require.True(t, found)
}

func TestGlobalsSynthesis(t *testing.T) {
	d := New(config.Default())
	d.AddOrUpdateFiles(context.Background(), []vfs.Change{
		{URI: "file:///a.lua", Text: text("Shared = 1\n")},
	})
	globals := d.Globals()
	_, ok := globals["Shared"]
	require.True(t, ok)
}

func TestScopeResolverDistinguishesShadowedLocals(t *testing.T) {
	d := New(config.Default())
	src := "local x = 1\ndo\n  local x = 2\n  print(x)\nend\nprint(x)\n"
	batch := d.AddOrUpdateFiles(context.Background(), []vfs.Change{{URI: "file:///a.lua", Text: text(src)}})
	file := batch.Updated[0]
	tree, ok := d.Tree(file)
	require.True(t, ok)

	// Only the two print(x) call-argument sites are genuine references; the
	// two `local x = ...` declaration sites are also NNameExpr nodes (decl
	// names are wrapped the same way call args are) and would resolve to
	// themselves, so they're excluded by only walking into NCallExpr args.
	var argRefs []*syntax.Node
	var walk func(n *syntax.Node)
	walk = func(n *syntax.Node) {
		if n == nil {
			return
		}
		if n.Kind == syntax.NCallExpr {
			for _, c := range n.NodeChildren() {
				if c.Kind == syntax.NExprList {
					argRefs = append(argRefs, c.NodeChildren()...)
				}
			}
		}
		for _, c := range n.NodeChildren() {
			walk(c)
		}
	}
	walk(tree.Root)

	st := d.files[file]
	require.Len(t, argRefs, 2)

	var ids []uint32
	for _, ne := range argRefs {
		toks := ne.Tokens()
		if len(toks) == 1 && toks[0].Text() == "x" {
			id, ok := st.inferCtx.Resolve(ne)
			require.True(t, ok)
			ids = append(ids, uint32(id))
		}
	}
	require.Len(t, ids, 2)
	require.NotEqual(t, ids[0], ids[1])
}

func hasDiagnosticCode(ds []diagnostics.Diagnostic, code string) bool {
	for _, d := range ds {
		if d.Code == code {
			return true
		}
	}
	return false
}

// TestFlowNarrowingOrDefaultSuppressesNeedCheckNil exercises spec §8
// scenario 1's shape: `a = a or {}` narrows a from a table|nil union to a
// non-nil table, so the later `a.field` access must not be flagged.
func TestFlowNarrowingOrDefaultSuppressesNeedCheckNil(t *testing.T) {
	d := New(config.Default())
	src := "local function cond() return true end\n" +
		"local a = cond() and {} or nil\n" +
		"a = a or {}\n" +
		"local ok = a.field\n"
	batch := d.AddOrUpdateFiles(context.Background(), []vfs.Change{{URI: "file:///a.lua", Text: text(src)}})
	ds, ok := d.DiagnoseFile(batch.Updated[0])
	require.True(t, ok)
	require.False(t, hasDiagnosticCode(ds, "need-check-nil"))
}

// TestFlowNarrowingAbsentReassignmentStillFiresNeedCheckNil is the contrast
// case: without the `a = a or {}` reassignment, `a` stays table|nil at the
// `a.field` access, so need-check-nil still fires — confirming the
// suppression above comes from narrowing, not from the fixture's type
// being non-nilable to begin with.
func TestFlowNarrowingAbsentReassignmentStillFiresNeedCheckNil(t *testing.T) {
	d := New(config.Default())
	src := "local function cond() return true end\n" +
		"local a = cond() and {} or nil\n" +
		"local ok = a.field\n"
	batch := d.AddOrUpdateFiles(context.Background(), []vfs.Change{{URI: "file:///a.lua", Text: text(src)}})
	ds, ok := d.DiagnoseFile(batch.Updated[0])
	require.True(t, ok)
	require.True(t, hasDiagnosticCode(ds, "need-check-nil"))
}

// TestFlowNarrowingIfTruthyGuardSuppressesNeedCheckNil exercises spec §8
// scenario-1-shaped narrowing via a plain `if x then ... end` truthy guard
// rather than a reassignment.
func TestFlowNarrowingIfTruthyGuardSuppressesNeedCheckNil(t *testing.T) {
	d := New(config.Default())
	src := "local function cond() return true end\n" +
		"local x = cond() and {} or nil\n" +
		"if x then\n" +
		"  local ok = x.field\n" +
		"end\n"
	batch := d.AddOrUpdateFiles(context.Background(), []vfs.Change{{URI: "file:///a.lua", Text: text(src)}})
	ds, ok := d.DiagnoseFile(batch.Updated[0])
	require.True(t, ok)
	require.False(t, hasDiagnosticCode(ds, "need-check-nil"))
}

// TestFlowNarrowingTypeCallEqualitySuppressesNeedCheckNil exercises spec
// §8 scenario 2's `type(x) == "kind"` guard form.
func TestFlowNarrowingTypeCallEqualitySuppressesNeedCheckNil(t *testing.T) {
	d := New(config.Default())
	src := "local function cond() return true end\n" +
		"local x = cond() and {} or nil\n" +
		`if type(x) == "table" then` + "\n" +
		"  local ok = x.field\n" +
		"end\n"
	batch := d.AddOrUpdateFiles(context.Background(), []vfs.Change{{URI: "file:///a.lua", Text: text(src)}})
	ds, ok := d.DiagnoseFile(batch.Updated[0])
	require.True(t, ok)
	require.False(t, hasDiagnosticCode(ds, "need-check-nil"))
}

// TestFlowNarrowingElseBranchStaysNilable confirms the else branch of an
// `if x then ... else ... end` does NOT inherit the then-branch's
// truthy-narrowing — x is narrowed to its falsy part there, which still
// includes nil, so need-check-nil fires.
func TestFlowNarrowingElseBranchStaysNilable(t *testing.T) {
	d := New(config.Default())
	src := "local function cond() return true end\n" +
		"local x = cond() and {} or nil\n" +
		"if x then\n" +
		"  local a = 1\n" +
		"else\n" +
		"  local ok = x.field\n" +
		"end\n"
	batch := d.AddOrUpdateFiles(context.Background(), []vfs.Change{{URI: "file:///a.lua", Text: text(src)}})
	ds, ok := d.DiagnoseFile(batch.Updated[0])
	require.True(t, ok)
	require.True(t, hasDiagnosticCode(ds, "need-check-nil"))
}
