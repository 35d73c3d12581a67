package luaconfig

import (
	"strings"

	"github.com/oxhq/emmylua-core/syntax"
	"github.com/oxhq/emmylua-core/types"
)

// Literal is one `---@type TbX local x = {...}` (or `x = {...}`) statement
// whose declared type is a ConfigTable subclass with a resolvable row type —
// the table-format data the original's index_data::index_file pass walks.
type Literal struct {
	TableId types.TypeDeclId
	RowId   types.TypeDeclId
	Table   *syntax.Node
}

// Discover walks tree for every doc-bearing statement carrying a bare
// `---@type Name` tag whose Name resolves, via ix, to a ConfigTable
// subclass with a declared `[int]`/`[string]` row type, and whose
// initializer is a table constructor.
func Discover(root *syntax.Node, ix *types.Index) []Literal {
	var out []Literal
	var walk func(n *syntax.Node)
	walk = func(n *syntax.Node) {
		if n == nil {
			return
		}
		if isDocBearingStmt(n.Kind) {
			if cs := n.Children; len(cs) > 0 {
				if block, ok := cs[0].(*syntax.Node); ok && block.Kind == syntax.NDocBlock {
					if lit, ok := literalFromBlock(block, n, ix); ok {
						out = append(out, lit)
					}
				}
			}
		}
		for _, c := range n.NodeChildren() {
			walk(c)
		}
	}
	walk(root)
	return out
}

func isDocBearingStmt(k syntax.NodeKind) bool {
	switch k {
	case syntax.NLocalStmt, syntax.NAssignStmt:
		return true
	default:
		return false
	}
}

func literalFromBlock(block, stmt *syntax.Node, ix *types.Index) (Literal, bool) {
	var typeName string
	for _, tag := range block.NodeChildren() {
		if tag.Kind == syntax.NDocTagType {
			if toks := tag.Tokens(); len(toks) > 0 {
				typeName = strings.TrimSpace(toks[0].Text())
			}
		}
	}
	if typeName == "" {
		return Literal{}, false
	}
	tableId := types.TypeDeclId(typeName)
	if !IsConfigTable(ix, tableId) {
		return Literal{}, false
	}
	rowId, ok := RowType(ix, tableId)
	if !ok {
		return Literal{}, false
	}
	tbl := initializerTable(stmt)
	if tbl == nil {
		return Literal{}, false
	}
	return Literal{TableId: tableId, RowId: rowId, Table: tbl}, true
}

// initializerTable finds the table-constructor initializer of a local/assign
// statement, mirroring driver/doctags.go's enumTableOf for the same shape.
func initializerTable(stmt *syntax.Node) *syntax.Node {
	for _, c := range stmt.NodeChildren() {
		if c.Kind == syntax.NExprList {
			if es := c.NodeChildren(); len(es) > 0 && es[0].Kind == syntax.NTableConstructor {
				return es[0]
			}
		}
	}
	return nil
}

// Row is one data row of a ConfigTable literal: Key is non-nil only for a
// map-style `[expr] = {...}` entry.
type Row struct {
	Key  *syntax.Node
	Body *syntax.Node
}

// Rows collects every row of a ConfigTable table constructor, covering both
// the array-style (`{ {...}, {...} }`) and map-style (`{ [1] = {...} }`)
// forms a ConfigTable literal can take.
func Rows(tbl *syntax.Node) []Row {
	var out []Row
	for _, f := range tbl.NodeChildren() {
		switch f.Kind {
		case syntax.NTableFieldItem:
			if cs := f.NodeChildren(); len(cs) > 0 {
				out = append(out, Row{Body: cs[0]})
			}
		case syntax.NTableFieldIndexed:
			if cs := f.NodeChildren(); len(cs) == 2 {
				out = append(out, Row{Key: cs[0], Body: cs[1]})
			}
		}
	}
	return out
}

// FieldValue finds the value expression of a named field within one row's
// table constructor (the row itself must be a table constructor — a row
// whose body isn't one, e.g. a bare reference, carries no inline field
// data to validate).
func FieldValue(row *syntax.Node, name string) *syntax.Node {
	if row == nil || row.Kind != syntax.NTableConstructor {
		return nil
	}
	for _, f := range row.NodeChildren() {
		if f.Kind != syntax.NTableFieldNamed {
			continue
		}
		toks := f.Tokens()
		if len(toks) == 0 || toks[0].Text() != name {
			continue
		}
		if cs := f.NodeChildren(); len(cs) > 0 {
			return cs[0]
		}
	}
	return nil
}

// LiteralKey renders a literal expression's value as a dedup/lookup key
// (its raw source text, quotes stripped for strings), or "" if e isn't a
// checkable literal — the same restriction the original's
// is_checkable_literal_key applies, expressed over raw tokens instead of
// inferred types since this package does its own syntax-level reading
// rather than running full type inference.
func LiteralKey(e *syntax.Node) string {
	if e == nil || e.Kind != syntax.NLiteralExpr {
		return ""
	}
	toks := e.Tokens()
	if len(toks) == 0 {
		return ""
	}
	tok := toks[0]
	switch tok.Kind() {
	case syntax.TokString, syntax.TokLongString:
		return unquote(tok.Text())
	case syntax.TokNumber, syntax.TokTrue, syntax.TokFalse:
		return tok.Text()
	default:
		return ""
	}
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
