package syntax

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLexerRoundTrip(t *testing.T) {
	src := "local a = 1 -- comment\nlocal b = \"hi\"\n"
	toks, errs := NewLexer(src, DefaultConfig()).Tokenize()
	require.Empty(t, errs)

	var rebuilt string
	for _, tok := range toks {
		rebuilt += tok.Leading + tok.Text
	}
	require.Equal(t, src, rebuilt)
}

func TestParseChunkRoundTrip(t *testing.T) {
	src := `local a = 1
if a > 0 then
  print(a)
else
  print(-a)
end
`
	tree := Parse(src, DefaultConfig())
	require.Empty(t, tree.Errors)
	require.Equal(t, src, Render(tree.Root))
}

func TestParseFunctionAndCall(t *testing.T) {
	src := `function M.foo(a, b) return a + b end
local r = M.foo(1, 2)
`
	tree := Parse(src, DefaultConfig())
	require.Empty(t, tree.Errors)
	require.Equal(t, src, Render(tree.Root))

	block := tree.Root.FirstChildOfKind(NBlock)
	require.NotNil(t, block)
	funcStmts := block.ChildrenOfKind(NFunctionStmt)
	require.Len(t, funcStmts, 1)
}

func TestParseDocClassAndField(t *testing.T) {
	src := `---@class Player : Entity
---@field name string
---@field health integer
local Player = {}
`
	tree := Parse(src, DefaultConfig())
	require.Empty(t, tree.Errors)
	require.Equal(t, src, Render(tree.Root))

	block := tree.Root.FirstChildOfKind(NBlock)
	stmts := block.NodeChildren()
	require.NotEmpty(t, stmts)
	local := stmts[len(stmts)-1]
	doc := local.FirstChildOfKind(NDocBlock)
	require.NotNil(t, doc)

	classTags := doc.ChildrenOfKind(NDocTagClass)
	require.Len(t, classTags, 1)
	fieldTags := doc.ChildrenOfKind(NDocTagField)
	require.Len(t, fieldTags, 2)
}

func TestParseDocParamAndReturnFunction(t *testing.T) {
	src := `---@param x integer
---@param y string?
---@return boolean ok
local function check(x, y) return true end
`
	tree := Parse(src, DefaultConfig())
	require.Empty(t, tree.Errors)

	block := tree.Root.FirstChildOfKind(NBlock)
	stmts := block.NodeChildren()
	local := stmts[len(stmts)-1]
	require.Equal(t, NLocalFunctionStmt, local.Kind)
	doc := local.FirstChildOfKind(NDocBlock)
	require.NotNil(t, doc)
	require.Len(t, doc.ChildrenOfKind(NDocTagParam), 2)
	require.Len(t, doc.ChildrenOfKind(NDocTagReturn), 1)
}

func TestParseDocBlockRoundTrip(t *testing.T) {
	src := `---@class Player : Entity
---@field name string
---@field health integer
---@param x integer
---@param y string?
---@return boolean ok
local function check(x, y) return true end
`
	tree := Parse(src, DefaultConfig())
	require.Empty(t, tree.Errors)
	require.Equal(t, src, Render(tree.Root))
}

func TestParseDocFunctionType(t *testing.T) {
	n := parseDocType("fun(a: integer, ...: string): boolean, string")
	require.Equal(t, NDocTypeFunction, n.Kind)
	params := n.FirstChildOfKind(NParamList)
	require.NotNil(t, params)
	require.Len(t, params.ChildrenOfKind(NDocTagParam), 2)
	rets := n.FirstChildOfKind(NDocTagReturn)
	require.NotNil(t, rets)
}

func TestParseDocUnionAndNullable(t *testing.T) {
	n := parseDocType("string|nil")
	require.Equal(t, NDocTypeUnion, n.Kind)

	n2 := parseDocType("table?")
	require.Equal(t, NDocTypeNullable, n2.Kind)
}

func TestTokenAtOffset(t *testing.T) {
	src := "local abc = 1\n"
	tree := Parse(src, DefaultConfig())
	_, tok := TokenAtOffset(tree.Root, 6)
	require.NotNil(t, tok)
	require.Equal(t, "abc", tok.Text())
}
