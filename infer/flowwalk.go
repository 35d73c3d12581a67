package infer

import (
	"github.com/oxhq/emmylua-core/decl"
	"github.com/oxhq/emmylua-core/flow"
	"github.com/oxhq/emmylua-core/syntax"
	"github.com/oxhq/emmylua-core/types"
)

// RunFlowWalk performs a single eager statement-level pass over root (a
// chunk node) that pushes/pops ctx.Flow frames on branch and function-body
// entry/exit and applies flow.ExtractPredicate's narrowings, so that by the
// time a diagnostics checker or a query-surface call invokes InferExpr on a
// name inside a narrowed branch, ctx.Cache already holds the narrowed
// result (spec §4.G, §8 scenarios 1-4). Mirrors decl.Build's own
// CST-walk shape (same statement dispatch, same child-index conventions)
// since both walk the same grammar.
func RunFlowWalk(ctx *Context, root *syntax.Node) {
	if root == nil {
		return
	}
	block := root.FirstChildOfKind(syntax.NBlock)
	walkBlockFlow(ctx, block)
}

func flowLogicalChildren(n *syntax.Node) []syntax.Element {
	cs := n.Children
	if len(cs) > 0 {
		if nd, ok := cs[0].(*syntax.Node); ok && nd.Kind == syntax.NDocBlock {
			return cs[1:]
		}
	}
	return cs
}

func flowNodeAt(cs []syntax.Element, i int) *syntax.Node {
	if i < 0 || i >= len(cs) {
		return nil
	}
	n, _ := cs[i].(*syntax.Node)
	return n
}

func flowTokenAt(cs []syntax.Element, i int) *syntax.TokenNode {
	if i < 0 || i >= len(cs) {
		return nil
	}
	t, _ := cs[i].(*syntax.TokenNode)
	return t
}

func walkBlockFlow(ctx *Context, block *syntax.Node) {
	if block == nil {
		return
	}
	for _, c := range block.NodeChildren() {
		walkStmtFlow(ctx, c)
	}
}

func walkStmtFlow(ctx *Context, n *syntax.Node) {
	cs := flowLogicalChildren(n)
	switch n.Kind {
	case syntax.NLocalStmt:
		walkLocalStmtFlow(ctx, cs)
	case syntax.NAssignStmt:
		walkAssignStmtFlow(ctx, cs)
	case syntax.NCallStmt:
		if e := flowNodeAt(cs, 0); e != nil {
			InferExpr(ctx, e, nil)
			walkExprForNestedFunctionsFlow(ctx, e)
		}
	case syntax.NDoStmt:
		ctx.Flow.Push()
		walkBlockFlow(ctx, flowNodeAt(cs, 1))
		ctx.Flow.Pop()
	case syntax.NWhileStmt:
		if e := flowNodeAt(cs, 1); e != nil {
			InferExpr(ctx, e, nil)
			walkExprForNestedFunctionsFlow(ctx, e)
		}
		ctx.Flow.Push()
		if e := flowNodeAt(cs, 1); e != nil {
			pred := flow.ExtractPredicate(e, flow.ResolveName(ctx.Resolve))
			for id, r := range pred.Then {
				applyOverride(ctx, id, r)
			}
		}
		walkBlockFlow(ctx, flowNodeAt(cs, 3))
		ctx.Flow.Pop()
	case syntax.NRepeatStmt:
		ctx.Flow.Push()
		walkBlockFlow(ctx, flowNodeAt(cs, 1))
		if e := flowNodeAt(cs, 3); e != nil {
			InferExpr(ctx, e, nil)
			walkExprForNestedFunctionsFlow(ctx, e)
		}
		ctx.Flow.Pop()
	case syntax.NIfStmt:
		walkIfStmtFlow(ctx, cs)
	case syntax.NForNumericStmt:
		walkForNumericFlow(ctx, cs)
	case syntax.NForInStmt:
		walkForInFlow(ctx, cs)
	case syntax.NFunctionStmt:
		walkFunctionBodyFlow(ctx, flowNodeAt(cs, 2))
	case syntax.NLocalFunctionStmt:
		walkFunctionBodyFlow(ctx, flowNodeAt(cs, 3))
	case syntax.NReturnStmt:
		if el := flowNodeAt(cs, 1); el != nil && el.Kind == syntax.NExprList {
			for _, e := range el.NodeChildren() {
				InferExpr(ctx, e, nil)
				walkExprForNestedFunctionsFlow(ctx, e)
			}
		}
	}
}

func walkLocalStmtFlow(ctx *Context, cs []syntax.Element) {
	exprs := flowNodeAt(cs, 3)
	if exprs == nil || exprs.Kind != syntax.NExprList {
		return
	}
	for _, e := range exprs.NodeChildren() {
		InferExpr(ctx, e, nil)
		walkExprForNestedFunctionsFlow(ctx, e)
	}
}

// walkAssignStmtFlow records each plain-name assignment target's new value
// as a flow-state override — an assignment segment in spec §4.G's sense —
// consuming the same rawMultiValueType/flattenReturns flatten machinery
// infer.go builds for a fresh `local` declaration, since a reassignment has
// no Decl of its own to attach a FlattenSource to.
func walkAssignStmtFlow(ctx *Context, cs []syntax.Element) {
	vars := flowNodeAt(cs, 0)
	exprsList := flowNodeAt(cs, 2)
	if vars == nil {
		return
	}
	varNodes := vars.NodeChildren()
	var exprNodes []*syntax.Node
	if exprsList != nil {
		exprNodes = exprsList.NodeChildren()
	}
	for _, e := range exprNodes {
		InferExpr(ctx, e, nil)
		walkExprForNestedFunctionsFlow(ctx, e)
	}
	trailing := trailingFlowMultiValueExpr(exprNodes)
	for i, v := range varNodes {
		walkExprForNestedFunctionsFlow(ctx, v)
		if v.Kind != syntax.NNameExpr {
			InferExpr(ctx, v, nil) // index/member assignment target: not flow-tracked
			continue
		}
		id, ok := ctx.Resolve(v)
		if !ok {
			continue // global write: not flow-tracked, component K's concern
		}
		switch {
		case i < len(exprNodes):
			ctx.Flow.Override(id, InferExpr(ctx, exprNodes[i], nil))
		case trailing != nil:
			ctx.Flow.Override(id, flattenedValueAt(ctx, trailing, i-(len(exprNodes)-1)))
		default:
			ctx.Flow.Override(id, types.Nil())
		}
	}
}

// trailingFlowMultiValueExpr is walkAssignStmtFlow's counterpart to
// decl.trailingMultiValueExpr, operating on already-typed *syntax.Node
// slices instead of syntax.Element ones.
func trailingFlowMultiValueExpr(exprs []*syntax.Node) *syntax.Node {
	if len(exprs) == 0 {
		return nil
	}
	last := exprs[len(exprs)-1]
	if last == nil {
		return nil
	}
	switch last.Kind {
	case syntax.NCallExpr, syntax.NVarargExpr:
		return last
	case syntax.NMemberExpr:
		if len(last.NodeChildren()) >= 2 {
			return last
		}
	}
	return nil
}

// walkIfStmtFlow narrows each clause's block by its own condition's
// Then-refinement plus every earlier sibling condition's Else-refinement
// (an elseif/else branch is only reached when all prior conditions were
// false), each scoped to a frame popped on leaving the clause.
func walkIfStmtFlow(ctx *Context, cs []syntax.Element) {
	elseRefinements := map[decl.DeclId]flow.Refinement{}
	for _, c := range cs {
		clause, ok := c.(*syntax.Node)
		if !ok || clause.Kind != syntax.NIfClause {
			continue
		}
		var cond *syntax.Node
		var block *syntax.Node
		if nd := clause.FirstChildOfKind(syntax.NBlock); nd != nil {
			block = nd
		}
		for _, e := range clause.Children {
			if n, ok := e.(*syntax.Node); ok && n.Kind != syntax.NBlock {
				cond = n
				break
			}
		}

		ctx.Flow.Push()
		for id, r := range elseRefinements {
			applyOverride(ctx, id, r)
		}
		if cond != nil {
			InferExpr(ctx, cond, nil)
			walkExprForNestedFunctionsFlow(ctx, cond)
			pred := flow.ExtractPredicate(cond, flow.ResolveName(ctx.Resolve))
			for id, r := range pred.Then {
				applyOverride(ctx, id, r)
			}
			for id, r := range pred.Else {
				elseRefinements[id] = r
			}
		}
		walkBlockFlow(ctx, block)
		ctx.Flow.Pop()
	}
}

func walkForNumericFlow(ctx *Context, cs []syntax.Element) {
	start := flowNodeAt(cs, 3)
	stop := flowNodeAt(cs, 5)
	var step *syntax.Node
	blockIdx := 7
	if t := flowTokenAt(cs, 6); t != nil && t.Kind() == syntax.TokComma {
		step = flowNodeAt(cs, 7)
		blockIdx = 9
	}
	for _, e := range []*syntax.Node{start, stop, step} {
		if e != nil {
			InferExpr(ctx, e, nil)
			walkExprForNestedFunctionsFlow(ctx, e)
		}
	}
	ctx.Flow.Push()
	walkBlockFlow(ctx, flowNodeAt(cs, blockIdx))
	ctx.Flow.Pop()
}

func walkForInFlow(ctx *Context, cs []syntax.Element) {
	exprs := flowNodeAt(cs, 3)
	var block *syntax.Node
	for _, c := range cs {
		if n, ok := c.(*syntax.Node); ok && n.Kind == syntax.NBlock {
			block = n
		}
	}
	if exprs != nil {
		for _, e := range exprs.NodeChildren() {
			InferExpr(ctx, e, nil)
			walkExprForNestedFunctionsFlow(ctx, e)
		}
	}
	ctx.Flow.Push()
	walkBlockFlow(ctx, block)
	ctx.Flow.Pop()
}

// walkFunctionBodyFlow isolates a function body's assignment segments in
// their own frame so a closure's reassignments of a captured upvalue don't
// leak as unconditional narrowing into the enclosing segment (the closure
// may never run, or may run many times).
func walkFunctionBodyFlow(ctx *Context, sig *syntax.Node) {
	if sig == nil {
		return
	}
	ctx.Flow.Push()
	walkBlockFlow(ctx, sig.FirstChildOfKind(syntax.NBlock))
	ctx.Flow.Pop()
}

// walkExprForNestedFunctionsFlow recurses into n purely to find nested
// function-literal bodies to run walkFunctionBodyFlow over: InferExpr
// itself never recurses into a function expression's statements (it only
// assigns the literal a bare callable type), so without this walk a
// closure's own if/assignment narrowing would never get visited at all.
func walkExprForNestedFunctionsFlow(ctx *Context, n *syntax.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case syntax.NFunctionExpr:
		cs := n.Children
		walkFunctionBodyFlow(ctx, flowNodeAt(cs, 1))
	case syntax.NCallExpr:
		cs := n.Children
		walkExprForNestedFunctionsFlow(ctx, flowNodeAt(cs, 0))
		if args := flowNodeAt(cs, 1); args != nil {
			for _, a := range args.NodeChildren() {
				walkExprForNestedFunctionsFlow(ctx, a)
			}
		}
	case syntax.NMemberExpr:
		cs := n.Children
		walkExprForNestedFunctionsFlow(ctx, flowNodeAt(cs, 0))
		if args := flowNodeAt(cs, 3); args != nil {
			for _, a := range args.NodeChildren() {
				walkExprForNestedFunctionsFlow(ctx, a)
			}
		}
	case syntax.NIndexExpr:
		cs := n.Children
		walkExprForNestedFunctionsFlow(ctx, flowNodeAt(cs, 0))
		walkExprForNestedFunctionsFlow(ctx, flowNodeAt(cs, 2))
	case syntax.NBinExpr:
		cs := n.Children
		walkExprForNestedFunctionsFlow(ctx, flowNodeAt(cs, 0))
		walkExprForNestedFunctionsFlow(ctx, flowNodeAt(cs, 2))
	case syntax.NUnExpr:
		cs := n.Children
		walkExprForNestedFunctionsFlow(ctx, flowNodeAt(cs, 1))
	case syntax.NParenExpr:
		cs := n.Children
		walkExprForNestedFunctionsFlow(ctx, flowNodeAt(cs, 1))
	case syntax.NTableConstructor:
		for _, c := range n.NodeChildren() {
			fcs := flowLogicalChildren(c)
			for _, e := range fcs {
				if en, ok := e.(*syntax.Node); ok {
					walkExprForNestedFunctionsFlow(ctx, en)
				}
			}
		}
	}
}
