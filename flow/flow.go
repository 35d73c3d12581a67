// Package flow implements spec component G: per-closure assignment tracking
// and narrowing-predicate extraction, threaded through inference as a
// mutable FlowState stack of (decl, overridden type) pairs rather than by
// rewriting the CST or cloning decls (spec §4.G).
package flow

import (
	"github.com/oxhq/emmylua-core/decl"
	"github.com/oxhq/emmylua-core/syntax"
	"github.com/oxhq/emmylua-core/types"
)

// RefinementKind tags how a Refinement changes a decl's current type.
type RefinementKind int

const (
	RNone RefinementKind = iota
	RTruthy            // remove nil and the false boolean constant
	RFalsy             // narrow to exactly nil-or-false
	RReplace           // replace outright (type(x)=='s', @cast x T, x == literal)
	RSubtract          // remove a specific type (the complement of a Replace)
)

// Refinement is one narrowing to apply to a decl's current type on entry to
// a branch.
type Refinement struct {
	Kind RefinementKind
	Type *types.Type // payload for RReplace / RSubtract
}

// Apply computes the narrowed type. resolve is passed through to the type
// algebra for alias unfolding during subtraction.
func (r Refinement) Apply(base *types.Type, resolve func(types.TypeDeclId) *types.TypeDecl) *types.Type {
	switch r.Kind {
	case RTruthy:
		t := types.Subtract(base, types.Nil(), resolve)
		if t == nil {
			return nil
		}
		elems := []*types.Type{t}
		if t.Kind == types.KUnion {
			elems = t.Elems
		}
		var kept []*types.Type
		for _, e := range elems {
			if e.Kind != types.KBooleanConst || e.BoolVal {
				kept = append(kept, e)
			}
		}
		return types.Union(kept...)
	case RFalsy:
		return types.Union(types.Nil(), types.BoolConst(false))
	case RReplace:
		return r.Type
	case RSubtract:
		return types.Subtract(base, r.Type, resolve)
	default:
		return base
	}
}

// FlowState is a stack of (DeclId -> overridden type) frames: push on
// entering a branch, pop on leaving. A decl with no entry in any frame keeps
// whatever type inference would otherwise assign it.
type FlowState struct {
	frames []map[decl.DeclId]*types.Type
}

func NewFlowState() *FlowState { return &FlowState{} }

func (f *FlowState) Push() { f.frames = append(f.frames, map[decl.DeclId]*types.Type{}) }

func (f *FlowState) Pop() {
	if len(f.frames) > 0 {
		f.frames = f.frames[:len(f.frames)-1]
	}
}

// Depth reports how many frames are currently pushed, for tests/assertions.
func (f *FlowState) Depth() int { return len(f.frames) }

// Override records a narrowed type for id in the current (topmost) frame. If
// no frame is pushed yet, one is created implicitly.
func (f *FlowState) Override(id decl.DeclId, t *types.Type) {
	if len(f.frames) == 0 {
		f.Push()
	}
	f.frames[len(f.frames)-1][id] = t
}

// Current returns the innermost override for id, if any frame has one.
func (f *FlowState) Current(id decl.DeclId) (*types.Type, bool) {
	for i := len(f.frames) - 1; i >= 0; i-- {
		if t, ok := f.frames[i][id]; ok {
			return t, true
		}
	}
	return nil, false
}

// Predicate is the pair of narrowings a boolean-valued expression implies
// about whichever decls it tests, one map for the then/truthy path and one
// for the else/falsy path.
type Predicate struct {
	Then map[decl.DeclId]Refinement
	Else map[decl.DeclId]Refinement
}

func newPredicate() Predicate {
	return Predicate{Then: map[decl.DeclId]Refinement{}, Else: map[decl.DeclId]Refinement{}}
}

// merge folds b's entries into a, b taking precedence on conflicts (used
// when combining a compound condition's sub-predicates).
func merge(a, b Predicate) Predicate {
	for k, v := range b.Then {
		a.Then[k] = v
	}
	for k, v := range b.Else {
		a.Else[k] = v
	}
	return a
}

// ResolveName looks a bare-name expression node up to the decl it
// references, or reports false (global or unresolved).
type ResolveName func(nameExpr *syntax.Node) (decl.DeclId, bool)

// ExtractPredicate derives the then/else narrowings implied by a boolean
// condition expression, per spec §4.G's guard-predicate rules. Unrecognized
// shapes yield an empty Predicate (no narrowing), which is always safe.
func ExtractPredicate(cond *syntax.Node, resolve ResolveName) Predicate {
	return extract(cond, resolve)
}

func extract(cond *syntax.Node, resolve ResolveName) Predicate {
	if cond == nil {
		return newPredicate()
	}
	switch cond.Kind {
	case syntax.NParenExpr:
		cs := cond.Children
		if len(cs) > 1 {
			if inner, ok := cs[1].(*syntax.Node); ok {
				return extract(inner, resolve)
			}
		}
	case syntax.NNameExpr:
		if id, ok := resolve(cond); ok {
			p := newPredicate()
			p.Then[id] = Refinement{Kind: RTruthy}
			p.Else[id] = Refinement{Kind: RFalsy}
			return p
		}
	case syntax.NUnExpr:
		cs := cond.Children
		if len(cs) >= 2 {
			if op, ok := cs[0].(*syntax.TokenNode); ok && op.Kind() == syntax.TokNot {
				if operand, ok := cs[1].(*syntax.Node); ok {
					inner := extract(operand, resolve)
					return Predicate{Then: inner.Else, Else: inner.Then}
				}
			}
		}
	case syntax.NBinExpr:
		return extractBin(cond, resolve)
	}
	return newPredicate()
}

func extractBin(n *syntax.Node, resolve ResolveName) Predicate {
	cs := n.Children
	if len(cs) != 3 {
		return newPredicate()
	}
	left, _ := cs[0].(*syntax.Node)
	opTok, _ := cs[1].(*syntax.TokenNode)
	right, _ := cs[2].(*syntax.Node)
	if left == nil || opTok == nil || right == nil {
		return newPredicate()
	}

	switch opTok.Kind() {
	case syntax.TokAnd:
		// x and y: then-branch requires both; the falsy-x/y(type) union is an
		// inference-level concern, not a narrowing one, so only the
		// then-side is combined here.
		lp := extract(left, resolve)
		rp := extract(right, resolve)
		p := newPredicate()
		for k, v := range lp.Then {
			p.Then[k] = v
		}
		for k, v := range rp.Then {
			p.Then[k] = v
		}
		return p
	case syntax.TokOr:
		lp := extract(left, resolve)
		rp := extract(right, resolve)
		p := newPredicate()
		for k, v := range lp.Else {
			p.Else[k] = v
		}
		for k, v := range rp.Else {
			p.Else[k] = v
		}
		return p
	case syntax.TokEq, syntax.TokNe:
		p := equalityPredicate(left, right, resolve)
		if opTok.Kind() == syntax.TokNe {
			p = Predicate{Then: p.Else, Else: p.Then}
		}
		return p
	}
	return newPredicate()
}

// equalityPredicate handles both `type(x) == "kind"` and `x == literal`.
func equalityPredicate(left, right *syntax.Node, resolve ResolveName) Predicate {
	if id, lit, ok := typeCallEquality(left, right, resolve); ok {
		p := newPredicate()
		p.Then[id] = Refinement{Kind: RReplace, Type: literalKindToType(lit)}
		p.Else[id] = Refinement{Kind: RSubtract, Type: literalKindToType(lit)}
		return p
	}
	if id, lit, ok := nameLiteralEquality(left, right, resolve); ok {
		p := newPredicate()
		p.Then[id] = Refinement{Kind: RReplace, Type: lit}
		p.Else[id] = Refinement{Kind: RSubtract, Type: lit}
		return p
	}
	return newPredicate()
}

// typeCallEquality matches `type(x) == "string"` (in either operand order)
// and returns x's DeclId and the matched kind string.
func typeCallEquality(left, right *syntax.Node, resolve ResolveName) (decl.DeclId, string, bool) {
	call, str := matchTypeCall(left), matchStringLiteral(right)
	if call == nil {
		call, str = matchTypeCall(right), matchStringLiteral(left)
	}
	if call == nil || str == "" {
		return 0, "", false
	}
	if id, ok := resolve(call); ok {
		return id, str, true
	}
	return 0, "", false
}

// matchTypeCall returns the argument name-expr of a `type(x)` call, or nil.
func matchTypeCall(n *syntax.Node) *syntax.Node {
	if n == nil || n.Kind != syntax.NCallExpr {
		return nil
	}
	cs := n.Children
	if len(cs) != 2 {
		return nil
	}
	callee, _ := cs[0].(*syntax.Node)
	args, _ := cs[1].(*syntax.Node)
	if callee == nil || callee.Kind != syntax.NNameExpr || args == nil {
		return nil
	}
	toks := callee.Tokens()
	if len(toks) != 1 || toks[0].Text() != "type" {
		return nil
	}
	argNodes := args.NodeChildren()
	if len(argNodes) != 1 || argNodes[0].Kind != syntax.NNameExpr {
		return nil
	}
	return argNodes[0]
}

func matchStringLiteral(n *syntax.Node) string {
	if n == nil || n.Kind != syntax.NLiteralExpr {
		return ""
	}
	toks := n.Tokens()
	if len(toks) != 1 || toks[0].Kind() != syntax.TokString {
		return ""
	}
	s := toks[0].Text()
	if len(s) >= 2 {
		return s[1 : len(s)-1]
	}
	return s
}

// nameLiteralEquality matches `x == <literal>` in either operand order.
func nameLiteralEquality(left, right *syntax.Node, resolve ResolveName) (decl.DeclId, *types.Type, bool) {
	if left != nil && left.Kind == syntax.NNameExpr && right != nil && right.Kind == syntax.NLiteralExpr {
		if id, ok := resolve(left); ok {
			return id, literalExprType(right), true
		}
	}
	if right != nil && right.Kind == syntax.NNameExpr && left != nil && left.Kind == syntax.NLiteralExpr {
		if id, ok := resolve(right); ok {
			return id, literalExprType(left), true
		}
	}
	return 0, nil, false
}

func literalExprType(n *syntax.Node) *types.Type {
	toks := n.Tokens()
	if len(toks) != 1 {
		return types.Unknown()
	}
	t := toks[0]
	switch t.Kind() {
	case syntax.TokNil:
		return types.Nil()
	case syntax.TokTrue:
		return types.BoolConst(true)
	case syntax.TokFalse:
		return types.BoolConst(false)
	case syntax.TokString, syntax.TokLongString:
		return types.StrConst(unquote(t.Text()))
	case syntax.TokNumber:
		return types.Number()
	}
	return types.Unknown()
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}

// literalKindToType maps a type()-returned kind string to its primitive.
func literalKindToType(kind string) *types.Type {
	switch kind {
	case "nil":
		return types.Nil()
	case "boolean":
		return types.Boolean()
	case "number":
		return types.Number()
	case "string":
		return types.String()
	case "function":
		return &types.Type{Kind: types.KFunctionKind}
	case "table":
		return types.Table()
	case "thread":
		return types.Thread()
	case "userdata":
		return types.Userdata()
	}
	return types.Unknown()
}
