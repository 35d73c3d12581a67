package diagnostics

import (
	"testing"

	"github.com/oxhq/emmylua-core/config"
	"github.com/oxhq/emmylua-core/decl"
	"github.com/oxhq/emmylua-core/infer"
	"github.com/oxhq/emmylua-core/property"
	"github.com/oxhq/emmylua-core/semantic"
	"github.com/oxhq/emmylua-core/syntax"
	"github.com/oxhq/emmylua-core/types"
	"github.com/oxhq/emmylua-core/vfs"
	"github.com/stretchr/testify/require"
)

func buildContext(t *testing.T, src string) *Context {
	t.Helper()
	v := vfs.New()
	res := v.Apply([]vfs.Change{{URI: "file:///a.lua", Text: &src}})
	file := res.Updated[0]

	tree := syntax.Parse(src, syntax.DefaultConfig())
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
	inferCtx := infer.NewContext(file, idx, typeIx, nil, resolve)
	model := semantic.NewModel(file, v, idx, typeIx, props, inferCtx, config.Default())
	return &Context{Model: model, Tree: tree}
}

func TestLocalConstReassignChecker(t *testing.T) {
	ctx := buildContext(t, "local x <const> = 1\nx = 2\n")
	ds := localConstReassignChecker().Check(ctx)
	require.Len(t, ds, 1)
}

func TestIterVariableReassignChecker(t *testing.T) {
	ctx := buildContext(t, "for k, v in pairs({}) do\n  k = 1\nend\n")
	ds := iterVariableReassignChecker().Check(ctx)
	require.Len(t, ds, 1)
}

func TestRedefinedLocalChecker(t *testing.T) {
	ctx := buildContext(t, "local a = 1\ndo\n  local a = 2\nend\n")
	ds := redefinedLocalChecker().Check(ctx)
	require.Len(t, ds, 1)
}

func TestUnbalancedAssignmentsChecker(t *testing.T) {
	ctx := buildContext(t, "a, b, c = 1\n")
	ds := unbalancedAssignmentsChecker().Check(ctx)
	require.Len(t, ds, 1)
}

func TestDuplicateRequireChecker(t *testing.T) {
	ctx := buildContext(t, "local a = require(\"mod\")\nlocal b = require(\"mod\")\n")
	ds := duplicateRequireChecker().Check(ctx)
	require.Len(t, ds, 1)
}

func TestDuplicateIndexChecker(t *testing.T) {
	ctx := buildContext(t, "local t = { x = 1, x = 2 }\n")
	ds := duplicateIndexChecker().Check(ctx)
	require.Len(t, ds, 1)
}

func TestUnnecessaryAssertChecker(t *testing.T) {
	ctx := buildContext(t, "assert(1)\n")
	ds := unnecessaryAssertChecker().Check(ctx)
	require.Len(t, ds, 1)
}

func TestUnnecessaryIfChecker(t *testing.T) {
	ctx := buildContext(t, "if nil then\nend\n")
	ds := unnecessaryIfChecker().Check(ctx)
	require.Len(t, ds, 1)
}

func TestUndefinedGlobalChecker(t *testing.T) {
	ctx := buildContext(t, "print(notDefinedAnywhere)\n")
	ds := undefinedGlobalChecker().Check(ctx)
	require.Len(t, ds, 1)
	require.Contains(t, ds[0].Message, "notDefinedAnywhere")
}

func TestReadOnlyChecker(t *testing.T) {
	ctx := buildContext(t, "local x = 1\nx = 2\n")
	ctx.Model.Properties.SetReadOnly(property.SemanticId{Kind: property.IdDecl, Local: uint32(ctx.Model.Decls.Decls[0].ID)})
	ds := readOnlyChecker().Check(ctx)
	require.Len(t, ds, 1)
}

func TestDeprecatedChecker(t *testing.T) {
	ctx := buildContext(t, "local x = 1\nlocal y = x\n")
	ctx.Model.Properties.SetDeprecated(property.SemanticId{Kind: property.IdDecl, Local: uint32(ctx.Model.Decls.Decls[0].ID)}, "use z instead")
	ds := deprecatedChecker().Check(ctx)
	require.Len(t, ds, 1)
	require.Contains(t, ds[0].Message, "use z instead")
}

func TestCircleDocClassChecker(t *testing.T) {
	ctx := buildContext(t, "local x = 1\n")
	ctx.Model.TypeIx.RegisterClass("A", ctx.Model.File, nil, []types.TypeDeclId{"B"})
	ctx.Model.TypeIx.RegisterClass("B", ctx.Model.File, nil, []types.TypeDeclId{"A"})
	ds := circleDocClassChecker().Check(ctx)
	require.NotEmpty(t, ds)
}

func TestUnknownDocTagChecker(t *testing.T) {
	ctx := buildContext(t, "---@bogusTag hello\nlocal x = 1\n")
	ds := unknownDocTagChecker().Check(ctx)
	require.Len(t, ds, 1)
}

func TestSuppressionFileLevelDirective(t *testing.T) {
	src := "---@diagnostic disable: need-check-nil\nlocal x = 1\n"
	ctx := buildContext(t, src)
	s := ParseSuppressionDirectives(ctx.Tree, ctx.Model.VFS, ctx.Model.File)
	require.False(t, s.Allows("need-check-nil", 5))
	require.True(t, s.Allows("other-code", 5))
}

func TestSuppressionNextLineDirective(t *testing.T) {
	src := "local x = 1\n---@diagnostic disable-next-line: undefined-global\nprint(y)\n"
	ctx := buildContext(t, src)
	s := ParseSuppressionDirectives(ctx.Tree, ctx.Model.VFS, ctx.Model.File)
	// the directive is on line 1 (0-based), so it suppresses line 2.
	require.False(t, s.Allows("undefined-global", 2))
	require.True(t, s.Allows("undefined-global", 0))
}

func TestDiagnoseFileRespectsSuppression(t *testing.T) {
	src := "---@diagnostic disable: local-const-reassign\nlocal x <const> = 1\nx = 2\n"
	ctx := buildContext(t, src)
	reg := NewRegistry()
	reg.Register(localConstReassignChecker())
	s := ParseSuppressionDirectives(ctx.Tree, ctx.Model.VFS, ctx.Model.File)
	ds := DiagnoseFile(reg, ctx, s)
	require.Empty(t, ds)
}

func TestDiagnoseFileOrdersByPosition(t *testing.T) {
	src := "local a <const> = 1\na = 2\nlocal b <const> = 3\nb = 4\n"
	ctx := buildContext(t, src)
	reg := NewRegistry()
	reg.Register(localConstReassignChecker())
	ds := DiagnoseFile(reg, ctx, nil)
	require.Len(t, ds, 2)
	require.LessOrEqual(t, ds[0].Range.Start, ds[1].Range.Start)
}

func TestUndefinedDocParamChecker(t *testing.T) {
	src := "---@param a integer\n---@param missing string\nlocal function f(a)\nend\n"
	ctx := buildContext(t, src)
	ds := undefinedDocParamChecker().Check(ctx)
	require.Len(t, ds, 1)
	require.Contains(t, ds[0].Message, "missing")
}

func TestUndefinedDocParamCheckerAllowsVararg(t *testing.T) {
	src := "---@param ... any\nlocal function f(...)\nend\n"
	ctx := buildContext(t, src)
	ds := undefinedDocParamChecker().Check(ctx)
	require.Empty(t, ds)
}

func TestDuplicateDocFieldChecker(t *testing.T) {
	src := "---@class Account\n---@field balance number\n---@field balance string\nlocal Account = {}\n"
	ctx := buildContext(t, src)
	ds := duplicateDocFieldChecker().Check(ctx)
	require.Len(t, ds, 1)
	require.Contains(t, ds[0].Message, "balance")
}

func TestDuplicateDocFieldCheckerAllowsSameType(t *testing.T) {
	src := "---@class Account\n---@field balance number\n---@field balance number\nlocal Account = {}\n"
	ctx := buildContext(t, src)
	ds := duplicateDocFieldChecker().Check(ctx)
	require.Empty(t, ds)
}

func TestAwaitInSyncDormantByDefault(t *testing.T) {
	reg := DefaultRegistry()
	ctx := buildContext(t, "local x = 1\n")
	ds := DiagnoseFile(reg, ctx, nil)
	for _, d := range ds {
		require.NotEqual(t, "await-in-sync", d.Code)
	}
}
