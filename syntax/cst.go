package syntax

// NodeKind tags every non-terminal in the concrete syntax tree.
type NodeKind int

const (
	NChunk NodeKind = iota
	NBlock
	NLocalStmt
	NAssignStmt
	NCallStmt
	NDoStmt
	NWhileStmt
	NRepeatStmt
	NIfStmt
	NIfClause
	NForNumericStmt
	NForInStmt
	NFunctionStmt
	NLocalFunctionStmt
	NReturnStmt
	NBreakStmt
	NGotoStmt
	NLabelStmt
	NEmptyStmt

	NNameExpr
	NIndexExpr  // a[b]
	NMemberExpr // a.b or a:b
	NCallExpr
	NBinExpr
	NUnExpr
	NParenExpr
	NFunctionExpr
	NVarargExpr
	NLiteralExpr
	NTableConstructor
	NTableFieldNamed   // name = expr
	NTableFieldIndexed // [expr] = expr
	NTableFieldItem    // expr
	NParamList
	NNameList
	NExprList
	NVarList
	NFuncName // dotted/colon function name path

	// doc comment block + tags
	NDocBlock
	NDocTagClass
	NDocTagField
	NDocTagParam
	NDocTagReturn
	NDocTagReturnCast
	NDocTagType
	NDocTagAlias
	NDocTagEnum
	NDocTagGeneric
	NDocTagOverload
	NDocTagCast
	NDocTagDiagnostic
	NDocTagDeprecated
	NDocTagNodiscard
	NDocTagAsync
	NDocTagModule
	NDocTagNamespace
	NDocTagUsing
	NDocTagSee
	NDocTagSource
	NDocTagVersion
	NDocTagVisibility // package/private/protected/internal/public
	NDocTagReadonly
	NDocTagOperator
	NDocTagAttributeDef // @attribute Name(params)
	NDocTagAttributeUse // @[name(args)]
	NDocTagRegion
	NDocTagEndregion
	NDocTagLanguage
	NDocTagMeta
	NDocTagExport
	NDocTagUnknown

	// doc type-expression nodes
	NDocTypeName
	NDocTypeGeneric
	NDocTypeArray
	NDocTypeTuple
	NDocTypeObject
	NDocTypeFunction
	NDocTypeUnion
	NDocTypeIntersection
	NDocTypeStringTemplate
	NDocTypeLiteral
	NDocTypeVariadic
	NDocTypeNullable // T?

	NError
)

// Element is either a *Node or a *Token, forming the lossless tree.
type Element interface {
	isElement()
	Range() (int, int)
}

// Node is a non-terminal CST node. Children are kept in source order and may
// mix Node and Token elements, which is what makes the tree lossless: every
// token (and via Leading, every byte of whitespace/comment) appears exactly
// once somewhere in the tree.
type Node struct {
	Kind     NodeKind
	Children []Element
	parent   *Node
}

func (n *Node) isElement() {}

// Range returns the byte range spanned by this node's children.
func (n *Node) Range() (int, int) {
	if len(n.Children) == 0 {
		return 0, 0
	}
	s, _ := n.Children[0].Range()
	_, e := n.Children[len(n.Children)-1].Range()
	return s, e
}

// Parent returns the immediate parent, or nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Ancestors returns parent, grandparent, ... up to (and including) the root.
func (n *Node) Ancestors() []*Node {
	var out []*Node
	for p := n.parent; p != nil; p = p.parent {
		out = append(out, p)
	}
	return out
}

// Add appends a child element and wires up its parent pointer.
func (n *Node) Add(e Element) {
	switch v := e.(type) {
	case *Node:
		v.parent = n
	case *TokenNode:
		v.parent = n
	}
	n.Children = append(n.Children, e)
}

// NodeChildren returns only the *Node children, in order.
func (n *Node) NodeChildren() []*Node {
	var out []*Node
	for _, c := range n.Children {
		if nd, ok := c.(*Node); ok {
			out = append(out, nd)
		}
	}
	return out
}

// Tokens returns only the *TokenNode children, in order.
func (n *Node) Tokens() []*TokenNode {
	var out []*TokenNode
	for _, c := range n.Children {
		if tk, ok := c.(*TokenNode); ok {
			out = append(out, tk)
		}
	}
	return out
}

// FirstChildOfKind returns the first child Node with the given kind.
func (n *Node) FirstChildOfKind(k NodeKind) *Node {
	for _, c := range n.NodeChildren() {
		if c.Kind == k {
			return c
		}
	}
	return nil
}

// ChildrenOfKind returns every direct child Node with the given kind.
func (n *Node) ChildrenOfKind(k NodeKind) []*Node {
	var out []*Node
	for _, c := range n.NodeChildren() {
		if c.Kind == k {
			out = append(out, c)
		}
	}
	return out
}

// TokenNode wraps a lexed Token as a tree leaf.
type TokenNode struct {
	Tok    Token
	parent *Node
}

func (t *TokenNode) isElement()            {}
func (t *TokenNode) Range() (int, int)     { return t.Tok.Start, t.Tok.End }
func (t *TokenNode) Parent() *Node         { return t.parent }
func (t *TokenNode) Text() string          { return t.Tok.Text }
func (t *TokenNode) Kind() TokKind         { return t.Tok.Kind }

// Tree is the result of parsing one file: the root Chunk node plus every
// error encountered along the way. Parsing never aborts: the tree is
// best-effort even in the presence of errors (spec §3, §7).
type Tree struct {
	Root   *Node
	Errors []Error
}

// TokenAtOffset finds the deepest node/token pair whose range contains
// offset, walking down from root. Returns nil if offset is out of range.
func TokenAtOffset(root *Node, offset int) (*Node, *TokenNode) {
	var walk func(n *Node) (*Node, *TokenNode)
	walk = func(n *Node) (*Node, *TokenNode) {
		for _, c := range n.Children {
			s, e := c.Range()
			if offset < s || offset > e {
				continue
			}
			switch v := c.(type) {
			case *Node:
				if inner, tok := walk(v); tok != nil {
					return inner, tok
				}
				return v, nil
			case *TokenNode:
				return n, v
			}
		}
		return nil, nil
	}
	return walk(root)
}

// Render reconstructs the exact source text from the tree (lossless
// round-trip check used in tests).
func Render(e Element) string {
	switch v := e.(type) {
	case *Node:
		var sb []byte
		for _, c := range v.Children {
			sb = append(sb, Render(c)...)
		}
		return string(sb)
	case *TokenNode:
		if v.Tok.Synthetic {
			return ""
		}
		return v.Tok.Leading + v.Tok.Text
	}
	return ""
}
