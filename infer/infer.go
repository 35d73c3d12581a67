// Package infer implements spec component I: bidirectional expression
// typing, a per-file InferCache, and an InferCacheManager that bounds memory
// across many open files by file-LRU eviction, grounded on the teacher's
// providers/base/cache.go ASTCache (same sync.Map + atomic hit/miss/eviction
// counters, swapped from a content-hash key to a syntax-node key).
package infer

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/oxhq/emmylua-core/decl"
	"github.com/oxhq/emmylua-core/flow"
	"github.com/oxhq/emmylua-core/module_"
	"github.com/oxhq/emmylua-core/syntax"
	"github.com/oxhq/emmylua-core/types"
	"github.com/oxhq/emmylua-core/vfs"
)

// InferCache memoizes infer_expr results for one file, keyed by syntax
// element identity. Concurrent-safe so diagnostic passes over one file can
// run reads from multiple goroutines while a rare write races in.
type InferCache struct {
	data     sync.Map // syntax.Element -> *types.Type
	hits     atomic.Int64
	misses   atomic.Int64
}

func NewInferCache() *InferCache { return &InferCache{} }

func (c *InferCache) Get(e syntax.Element) (*types.Type, bool) {
	if v, ok := c.data.Load(e); ok {
		c.hits.Add(1)
		return v.(*types.Type), true
	}
	c.misses.Add(1)
	return nil, false
}

func (c *InferCache) Set(e syntax.Element, t *types.Type) { c.data.Store(e, t) }

// Invalidate drops every memoized result, used when the owning file's CST
// changes (spec §3 lifecycle: "Inferred types are cached per file and
// invalidated as a whole when their owning file's CST changes").
func (c *InferCache) Invalidate() { c.data = sync.Map{} }

func (c *InferCache) Stats() (hits, misses int64) { return c.hits.Load(), c.misses.Load() }

// InferCacheManager composes per-file InferCaches for multi-file passes
// (the diagnostic runner walking many files) while bounding memory: caches
// for files not recently touched are evicted once maxFiles is exceeded.
type InferCacheManager struct {
	mu       sync.Mutex
	maxFiles int
	order    *list.List // front = most recently used
	elems    map[vfs.FileId]*list.Element
	caches   map[vfs.FileId]*InferCache
	evictions atomic.Int64
}

func NewInferCacheManager(maxFiles int) *InferCacheManager {
	if maxFiles <= 0 {
		maxFiles = 128
	}
	return &InferCacheManager{
		maxFiles: maxFiles,
		order:    list.New(),
		elems:    map[vfs.FileId]*list.Element{},
		caches:   map[vfs.FileId]*InferCache{},
	}
}

// Get returns (creating if absent) the cache for file, marking it
// most-recently-used.
func (m *InferCacheManager) Get(file vfs.FileId) *InferCache {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.elems[file]; ok {
		m.order.MoveToFront(el)
		return m.caches[file]
	}

	c := NewInferCache()
	m.caches[file] = c
	m.elems[file] = m.order.PushFront(file)

	for m.order.Len() > m.maxFiles {
		back := m.order.Back()
		if back == nil {
			break
		}
		victim := back.Value.(vfs.FileId)
		m.order.Remove(back)
		delete(m.elems, victim)
		delete(m.caches, victim)
		m.evictions.Add(1)
	}
	return c
}

// Invalidate drops and forgets the cache for file, e.g. because the file was
// removed from the VFS.
func (m *InferCacheManager) Invalidate(file vfs.FileId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.elems[file]; ok {
		m.order.Remove(el)
		delete(m.elems, file)
		delete(m.caches, file)
	}
}

// Resolver looks a bare-name expression up to the decl it references.
type Resolver func(nameExpr *syntax.Node) (decl.DeclId, bool)

// Context threads everything infer_expr needs for one file: the decl/type/
// module indexes, the active narrowing state, and the memoization cache.
type Context struct {
	File    vfs.FileId
	Decls   *decl.Index
	TypeIx  *types.Index
	Modules *module.Index
	Flow    *flow.FlowState
	Cache   *InferCache
	Resolve Resolver

	declByID  map[decl.DeclId]*decl.Decl
	declTypes map[decl.DeclId]*types.Type // lazily inferred/annotated decl types
}

func NewContext(file vfs.FileId, decls *decl.Index, typeIx *types.Index, modules *module.Index, resolve Resolver) *Context {
	byID := make(map[decl.DeclId]*decl.Decl, len(decls.Decls))
	for _, d := range decls.Decls {
		byID[d.ID] = d
	}
	return &Context{
		File:      file,
		Decls:     decls,
		TypeIx:    typeIx,
		Modules:   modules,
		Flow:      flow.NewFlowState(),
		Cache:     NewInferCache(),
		Resolve:   resolve,
		declByID:  byID,
		declTypes: map[decl.DeclId]*types.Type{},
	}
}

func (ctx *Context) resolveTypeDecl(id types.TypeDeclId) *types.TypeDecl {
	if ctx.TypeIx == nil {
		return nil
	}
	return ctx.TypeIx.Resolve(id)
}

// AnnotateDecl records an explicit (doc-derived) type for a decl, taking
// precedence over inference from its initializer.
func (ctx *Context) AnnotateDecl(id decl.DeclId, t *types.Type) { ctx.declTypes[id] = t }

// InferExpr is the bidirectional entry point (spec §4.I): infer_expr(e,
// expected?). expected is only passed through parenthesised expressions to
// their inner expression and is not otherwise read; it never forces a type
// the expression's own shape contradicts.
func InferExpr(ctx *Context, e *syntax.Node, expected *types.Type) *types.Type {
	if e == nil {
		return types.Unknown()
	}
	if cached, ok := ctx.Cache.Get(e); ok {
		return cached
	}
	t := inferUncached(ctx, e, expected)
	if t == nil {
		t = types.Unknown()
	}
	ctx.Cache.Set(e, t)
	return t
}

func inferUncached(ctx *Context, e *syntax.Node, expected *types.Type) *types.Type {
	switch e.Kind {
	case syntax.NLiteralExpr:
		return inferLiteral(e)
	case syntax.NNameExpr:
		return inferName(ctx, e)
	case syntax.NParenExpr:
		for _, c := range e.NodeChildren() {
			return InferExpr(ctx, c, expected)
		}
		return types.Unknown()
	case syntax.NBinExpr:
		return inferBinExpr(ctx, e)
	case syntax.NUnExpr:
		return inferUnExpr(ctx, e)
	case syntax.NCallExpr:
		return inferCallExpr(ctx, e)
	case syntax.NMemberExpr:
		return inferMemberExpr(ctx, e)
	case syntax.NIndexExpr:
		return inferIndexExpr(ctx, e)
	case syntax.NTableConstructor:
		return inferTableConstructor(ctx, e)
	case syntax.NFunctionExpr:
		return docFunctionFor(e)
	case syntax.NVarargExpr:
		return types.Unknown()
	}
	return types.Unknown()
}

func inferLiteral(e *syntax.Node) *types.Type {
	toks := e.Tokens()
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
		return numberLiteralType(t.Text())
	}
	return types.Unknown()
}

// numberLiteralType distinguishes an integer-looking numeral from a float
// one by surface form, matching Lua 5.3+'s subtype rule (a literal with a
// decimal point, exponent, or hex-float marker is a float).
func numberLiteralType(text string) *types.Type {
	for _, r := range text {
		if r == '.' || r == 'e' || r == 'E' || r == 'p' || r == 'P' {
			return types.Number()
		}
	}
	return types.Integer()
}

func inferName(ctx *Context, e *syntax.Node) *types.Type {
	id, ok := ctx.Resolve(e)
	if !ok {
		return types.Unknown() // global: component K's undefined-global checker owns this, not infer
	}
	return declType(ctx, id)
}

// declType resolves id's current type: a flow-narrowed override active in
// the innermost pushed frame takes precedence (component G's narrowing),
// else the explicit annotation or the type inferred from its declaration
// site (numeric for-loop bounds, a flattened multi-value source, or a plain
// initializer).
func declType(ctx *Context, id decl.DeclId) *types.Type {
	if t, ok := ctx.Flow.Current(id); ok {
		return t
	}
	if t, ok := ctx.declTypes[id]; ok {
		return t
	}
	d := ctx.declByID[id]
	if d == nil {
		return types.Unknown()
	}
	// Break self-referential inference (e.g. a param with no annotation) by
	// memoizing Unknown before recursing into the initializer.
	ctx.declTypes[id] = types.Unknown()
	var t *types.Type
	switch {
	case d.Kind == decl.KindForRange && len(d.ForBounds) > 0:
		t = numericForRangeType(ctx, d.ForBounds)
	case d.FlattenSource != nil:
		t = flattenedValueAt(ctx, d.FlattenSource, d.FlattenIndex)
	case d.Init != nil:
		if initNode, ok := d.Init.(*syntax.Node); ok && initNode != nil {
			t = InferExpr(ctx, initNode, nil)
		} else {
			t = types.Unknown()
		}
	default:
		t = types.Unknown()
	}
	ctx.declTypes[id] = t
	return t
}

// applyOverride narrows id's current type by r and records the result as a
// flow-state override in the innermost pushed frame (component G).
func applyOverride(ctx *Context, id decl.DeclId, r flow.Refinement) {
	base := declType(ctx, id)
	ctx.Flow.Override(id, r.Apply(base, ctx.resolveTypeDecl))
}

// numericForRangeType types a numeric for-loop's control variable per Lua
// 5.4's coercion rule: integer if every bound (start, stop, and step when
// present) is integer-valued, number as soon as one bound is a float.
func numericForRangeType(ctx *Context, bounds []syntax.Element) *types.Type {
	allInt := true
	for _, b := range bounds {
		bn, ok := b.(*syntax.Node)
		if !ok || bn == nil {
			return types.Number()
		}
		bt := InferExpr(ctx, bn, nil)
		if !isIntegerType(bt) {
			allInt = false
		}
	}
	if allInt {
		return types.Integer()
	}
	return types.Number()
}

func isIntegerType(t *types.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case types.KInteger, types.KIntegerConst, types.KDocIntegerConst:
		return true
	}
	return false
}

var arithOps = map[syntax.TokKind]bool{
	syntax.TokPlus: true, syntax.TokMinus: true, syntax.TokStar: true,
	syntax.TokSlash: true, syntax.TokDSlash: true, syntax.TokPercent: true,
	syntax.TokCaret: true,
}

var compareOps = map[syntax.TokKind]bool{
	syntax.TokLt: true, syntax.TokGt: true, syntax.TokLe: true,
	syntax.TokGe: true, syntax.TokEq: true, syntax.TokNe: true,
}

func inferBinExpr(ctx *Context, n *syntax.Node) *types.Type {
	cs := n.Children
	if len(cs) != 3 {
		return types.Unknown()
	}
	left, _ := cs[0].(*syntax.Node)
	opTok, _ := cs[1].(*syntax.TokenNode)
	right, _ := cs[2].(*syntax.Node)
	if left == nil || opTok == nil || right == nil {
		return types.Unknown()
	}
	op := opTok.Kind()

	switch {
	case op == syntax.TokAnd:
		lt := InferExpr(ctx, left, nil)
		// The right operand only evaluates once the left one is truthy, so it
		// sees left's Then-narrowing (spec §8 and/or scenario), scoped to a
		// pushed frame popped right after — narrowing from inside one operand
		// must not leak past the whole `and` expression.
		pred := flow.ExtractPredicate(left, flow.ResolveName(ctx.Resolve))
		ctx.Flow.Push()
		for id, r := range pred.Then {
			applyOverride(ctx, id, r)
		}
		rt := InferExpr(ctx, right, nil)
		ctx.Flow.Pop()
		return types.Union(falsyProjection(lt), rt)
	case op == syntax.TokOr:
		lt := InferExpr(ctx, left, nil)
		// Dually, the right operand of `or` only evaluates when left is
		// falsy, so it sees left's Else-narrowing.
		pred := flow.ExtractPredicate(left, flow.ResolveName(ctx.Resolve))
		ctx.Flow.Push()
		for id, r := range pred.Else {
			applyOverride(ctx, id, r)
		}
		rt := InferExpr(ctx, right, nil)
		ctx.Flow.Pop()
		return types.Union(truthyProjection(ctx, lt), rt)
	case op == syntax.TokDDot:
		InferExpr(ctx, left, nil)
		InferExpr(ctx, right, nil)
		return types.String()
	case compareOps[op]:
		InferExpr(ctx, left, nil)
		InferExpr(ctx, right, nil)
		return types.Boolean()
	case arithOps[op]:
		lt := InferExpr(ctx, left, nil)
		rt := InferExpr(ctx, right, nil)
		return arithResult(op, lt, rt)
	}
	return types.Unknown()
}

func arithResult(op syntax.TokKind, l, r *types.Type) *types.Type {
	// Division and exponentiation always yield a float in Lua 5.3+.
	if op == syntax.TokSlash || op == syntax.TokCaret {
		return types.Number()
	}
	if isIntegerish(l) && isIntegerish(r) {
		return types.Integer()
	}
	return types.Number()
}

func isIntegerish(t *types.Type) bool {
	return t != nil && (t.Kind == types.KInteger || t.Kind == types.KIntegerConst)
}

func inferUnExpr(ctx *Context, n *syntax.Node) *types.Type {
	cs := n.Children
	if len(cs) != 2 {
		return types.Unknown()
	}
	opTok, _ := cs[0].(*syntax.TokenNode)
	operand, _ := cs[1].(*syntax.Node)
	if opTok == nil || operand == nil {
		return types.Unknown()
	}
	switch opTok.Kind() {
	case syntax.TokNot:
		InferExpr(ctx, operand, nil)
		return types.Boolean()
	case syntax.TokHash, syntax.TokTilde:
		InferExpr(ctx, operand, nil)
		return types.Integer()
	case syntax.TokMinus:
		t := InferExpr(ctx, operand, nil)
		if isIntegerish(t) {
			return types.Integer()
		}
		return types.Number()
	}
	return types.Unknown()
}

// truthyProjection removes nil and the false constant from t.
func truthyProjection(ctx *Context, t *types.Type) *types.Type {
	return types.Subtract(types.Subtract(t, types.Nil(), ctx.resolveTypeDecl), types.BoolConst(false), ctx.resolveTypeDecl)
}

// falsyProjection is the dual: the only values an `and`/`or` short-circuit
// can carry through are nil or false, regardless of the operand's static
// type (matching the same approximation used by flow.RFalsy).
func falsyProjection(t *types.Type) *types.Type {
	return types.Union(types.Nil(), types.BoolConst(false))
}

// inferCallExpr resolves a call expression's single-value type: the first
// element of its full (possibly multi-valued) return, the projection every
// non-trailing consumer of a call wants (spec §9's "truncates interior
// ones"). Overload selection narrows among `---@overload` alternatives
// registered on the callee's decl by scoring argument/parameter subtyping;
// ties favor the main signature.
func inferCallExpr(ctx *Context, n *syntax.Node) *types.Type {
	return firstValueOf(rawCallReturnType(ctx, n))
}

// rawCallReturnType computes the full, uncollapsed return type of a call —
// a KTuple/KVariadic when the callee's signature (or a recognized builtin)
// models more than one return value, else a plain single type. Consumers
// that sit at a multi-value-producing position (the assignment-boundary
// "flatten" operation, a trailing call argument) read this directly instead
// of going through InferExpr's single-value projection.
func rawCallReturnType(ctx *Context, n *syntax.Node) *types.Type {
	cs := n.Children
	if len(cs) != 2 {
		return types.Unknown()
	}
	callee, _ := cs[0].(*syntax.Node)
	argsNode, _ := cs[1].(*syntax.Node)
	if callee == nil {
		return types.Unknown()
	}
	var argNodes []*syntax.Node
	if argsNode != nil {
		argNodes = argsNode.NodeChildren()
	}
	if bt, ok := builtinCallReturnType(ctx, callee, argNodes); ok {
		return bt
	}
	calleeType := InferExpr(ctx, callee, nil)
	args := flattenCallArgs(ctx, argsNode)
	sig := selectOverload(ctx, calleeType, args)
	if sig == nil || sig.Inner == nil {
		return types.Unknown()
	}
	return sig.Inner
}

// rawMemberCallReturnType is rawCallReturnType's counterpart for the
// colon-method-call form, which the parser folds into an NMemberExpr rather
// than wrapping in an NCallExpr (see inferMemberExpr).
func rawMemberCallReturnType(ctx *Context, n *syntax.Node) *types.Type {
	cs := n.NodeChildren()
	if len(cs) < 2 {
		return types.Unknown()
	}
	recv := cs[0]
	recvType := InferExpr(ctx, recv, nil)
	name := memberNameOf(n)
	if name == "" {
		return types.Unknown()
	}
	memberType := lookupMember(ctx, recvType, name, map[types.TypeDeclId]bool{})
	args := flattenCallArgs(ctx, cs[1])
	sig := selectOverload(ctx, memberType, args)
	if sig == nil || sig.Inner == nil {
		return types.Unknown()
	}
	return sig.Inner
}

// rawMultiValueType is the uncollapsed return type of any expression that
// can sit in a multi-value-producing position: a call (direct or
// colon-method), a vararg spread, or (falling through) an ordinary
// single-valued expression.
func rawMultiValueType(ctx *Context, n *syntax.Node) *types.Type {
	switch n.Kind {
	case syntax.NCallExpr:
		return rawCallReturnType(ctx, n)
	case syntax.NMemberExpr:
		if len(n.NodeChildren()) >= 2 {
			return rawMemberCallReturnType(ctx, n)
		}
		return InferExpr(ctx, n, nil)
	case syntax.NVarargExpr:
		return &types.Type{Kind: types.KVariadic, Inner: types.Unknown()}
	default:
		return InferExpr(ctx, n, nil)
	}
}

// firstValueOf collapses a (possibly multi-valued) type down to the single
// value a non-trailing consumer sees: a tuple's first element (recursively,
// since that element may itself be a nested variadic), a variadic's inner
// type, or the type itself.
func firstValueOf(t *types.Type) *types.Type {
	if t == nil {
		return types.Unknown()
	}
	switch t.Kind {
	case types.KTuple:
		if len(t.Elems) == 0 {
			return types.Nil()
		}
		return firstValueOf(t.Elems[0])
	case types.KVariadic:
		return t.Inner
	default:
		return t
	}
}

// flattenReturns spreads a (possibly multi-valued) return type across n
// assignment/argument slots, per spec §9's flatten operation: a tuple
// entry that isn't the tuple's last element contributes exactly one value
// at its own position (even if that entry is itself a KVariadic — i.e. a
// variadic declared ahead of a later fixed return only occupies its own
// slot); only a trailing variadic (the tuple's last entry, or a bare
// KVariadic with no tuple at all) repeats to fill every slot beyond it.
// Slots past the end of a non-variadic-terminated tuple are nil, matching
// Lua's "excess names get nil" assignment rule.
func flattenReturns(t *types.Type, n int) []*types.Type {
	out := make([]*types.Type, n)
	if t == nil {
		for i := range out {
			out[i] = types.Unknown()
		}
		return out
	}
	switch t.Kind {
	case types.KTuple:
		last := len(t.Elems) - 1
		for i := 0; i < n; i++ {
			switch {
			case i < len(t.Elems):
				e := t.Elems[i]
				if e != nil && e.Kind == types.KVariadic {
					out[i] = e.Inner
				} else {
					out[i] = e
				}
			case last >= 0 && t.Elems[last] != nil && t.Elems[last].Kind == types.KVariadic:
				out[i] = t.Elems[last].Inner
			default:
				out[i] = types.Nil()
			}
		}
	case types.KVariadic:
		for i := range out {
			out[i] = t.Inner
		}
	default:
		for i := range out {
			if i == 0 {
				out[i] = t
			} else {
				out[i] = types.Nil()
			}
		}
	}
	return out
}

// flattenedValueAt resolves one excess name's value in a `local a, b, c =
// f()`-shaped declaration: src is the trailing multi-valued expression,
// idx is this name's 0-based position in its flattened return list.
func flattenedValueAt(ctx *Context, src syntax.Element, idx int) *types.Type {
	srcNode, ok := src.(*syntax.Node)
	if !ok || srcNode == nil {
		return types.Unknown()
	}
	vals := flattenReturns(rawMultiValueType(ctx, srcNode), idx+1)
	return vals[idx]
}

// builtinBareName returns the bare identifier a call expression's callee
// resolves to, textually — used to recognize global stdlib functions whose
// return shape this engine models directly rather than via a doc signature.
func builtinBareName(callee *syntax.Node) (string, bool) {
	if callee == nil || callee.Kind != syntax.NNameExpr {
		return "", false
	}
	toks := callee.Tokens()
	if len(toks) != 1 {
		return "", false
	}
	return toks[0].Text(), true
}

// builtinCallReturnType models the specific multi-return shapes spec §4.I
// calls out by name for `pcall`/`xpcall`/`assert`/`unpack`/`pairs`, none of
// which has a Lua-source signature this engine could otherwise index.
func builtinCallReturnType(ctx *Context, callee *syntax.Node, argNodes []*syntax.Node) (*types.Type, bool) {
	name, ok := builtinBareName(callee)
	if !ok {
		return nil, false
	}
	switch name {
	case "pcall", "xpcall":
		elems := []*types.Type{types.Boolean()}
		if len(argNodes) > 0 {
			elems = append(elems, calleeReturnElems(ctx, argNodes[0])...)
		}
		return &types.Type{Kind: types.KTuple, Elems: elems}, true

	case "assert":
		// assert(v, ...) returns all of its arguments unchanged when v is
		// truthy; the statically-falsy case is diagnostics' concern
		// (unnecessary-assert), not infer's.
		if len(argNodes) == 0 {
			return types.Unknown(), true
		}
		elems := make([]*types.Type, len(argNodes))
		for i, a := range argNodes {
			elems[i] = InferExpr(ctx, a, nil)
		}
		return &types.Type{Kind: types.KTuple, Elems: elems}, true

	case "unpack":
		// (---@return any ...; ---@return integer offset): the variadic
		// isn't the tuple's last entry, so it contributes exactly one `any`
		// at its own slot, then `integer`, then nil beyond that.
		return &types.Type{Kind: types.KTuple, Elems: []*types.Type{
			{Kind: types.KVariadic, Inner: types.Any()},
			types.Integer(),
		}}, true

	case "pairs":
		tType := types.Unknown()
		if len(argNodes) > 0 {
			tType = InferExpr(ctx, argNodes[0], nil)
		}
		return &types.Type{Kind: types.KTuple, Elems: []*types.Type{
			{Kind: types.KFunctionKind},
			tType,
			types.Nil(),
		}}, true
	}
	return nil, false
}

// calleeReturnElems resolves fn's own return shape as a flat element list,
// for splicing the rest of a pcall/xpcall call's return tuple after the
// leading boolean. Falls back to a small recognized-stdlib-function table
// for members like string.rep that this engine has no doc signature for.
func calleeReturnElems(ctx *Context, fn *syntax.Node) []*types.Type {
	if t, ok := stdlibReturnType(fn); ok {
		return []*types.Type{t}
	}
	fnType := InferExpr(ctx, fn, nil)
	for _, cand := range candidateSignatures(fnType) {
		if cand.Inner == nil {
			continue
		}
		if cand.Inner.Kind == types.KTuple {
			return cand.Inner.Elems
		}
		return []*types.Type{cand.Inner}
	}
	return nil
}

// stdlibStringReturns/stdlibIntegerReturns name the handful of `string.*`
// members whose result type spec scenarios (pcall(string.rep, ...) among
// them) need, since this engine doesn't load the Lua stdlib's own meta
// signatures the way a real workspace's bundled .lua meta files would.
var stdlibStringReturns = map[string]bool{
	"rep": true, "sub": true, "upper": true, "lower": true, "format": true,
	"gsub": true, "char": true, "reverse": true,
}

var stdlibIntegerReturns = map[string]bool{
	"len": true, "byte": true, "find": true,
}

// stdlibReturnType recognizes a `string.<member>` dotted callee and returns
// its known result type.
func stdlibReturnType(fn *syntax.Node) (*types.Type, bool) {
	if fn == nil || fn.Kind != syntax.NMemberExpr {
		return nil, false
	}
	cs := fn.Children
	if len(cs) < 3 {
		return nil, false
	}
	base, _ := cs[0].(*syntax.Node)
	nameTok, _ := cs[2].(*syntax.TokenNode)
	if base == nil || nameTok == nil || base.Kind != syntax.NNameExpr {
		return nil, false
	}
	baseToks := base.Tokens()
	if len(baseToks) != 1 || baseToks[0].Text() != "string" {
		return nil, false
	}
	member := nameTok.Text()
	if stdlibStringReturns[member] {
		return types.String(), true
	}
	if stdlibIntegerReturns[member] {
		return types.Integer(), true
	}
	return nil, false
}

// flattenCallArgs infers each argument expression's type; a trailing call,
// colon-method call, or vararg spread contributes its full flattened return
// list (spec §9's "preserves trailing variadics"), while every interior
// argument is truncated to its single-value projection ("truncates interior
// ones").
func flattenCallArgs(ctx *Context, argsNode *syntax.Node) []*types.Type {
	if argsNode == nil {
		return nil
	}
	cs := argsNode.NodeChildren()
	if len(cs) == 0 {
		return nil
	}
	out := make([]*types.Type, 0, len(cs))
	for i, c := range cs {
		if i == len(cs)-1 {
			out = append(out, flattenTrailingArg(ctx, c)...)
			continue
		}
		out = append(out, InferExpr(ctx, c, nil))
	}
	return out
}

// flattenTrailingArg spreads a trailing call/colon-call/vararg argument's
// full multi-value return across the argument list instead of truncating it
// to one value.
func flattenTrailingArg(ctx *Context, e *syntax.Node) []*types.Type {
	isSpreadable := e.Kind == syntax.NCallExpr || e.Kind == syntax.NVarargExpr ||
		(e.Kind == syntax.NMemberExpr && len(e.NodeChildren()) >= 2)
	if !isSpreadable {
		return []*types.Type{InferExpr(ctx, e, nil)}
	}
	full := rawMultiValueType(ctx, e)
	if full == nil {
		return []*types.Type{types.Unknown()}
	}
	switch full.Kind {
	case types.KTuple:
		if len(full.Elems) == 0 {
			return nil
		}
		return flattenReturns(full, len(full.Elems))
	case types.KVariadic:
		return []*types.Type{full.Inner}
	default:
		return []*types.Type{full}
	}
}

// selectOverload scores calleeType (and any sibling KDocFunction overloads
// folded into a union by the doc parser) against args by per-parameter
// subtyping, picking the highest-scoring signature; ties break toward the
// first (declaration-order) candidate, matching the main-signature-first
// convention the doc parser uses when assembling overload unions.
func selectOverload(ctx *Context, calleeType *types.Type, args []*types.Type) *types.Type {
	candidates := candidateSignatures(calleeType)
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	bestScore := -1
	for _, cand := range candidates {
		score := scoreSignature(ctx, cand, args)
		if score > bestScore {
			bestScore = score
			best = cand
		}
	}
	return best
}

func candidateSignatures(t *types.Type) []*types.Type {
	if t == nil {
		return nil
	}
	if t.Kind == types.KUnion {
		var out []*types.Type
		for _, e := range t.Elems {
			out = append(out, candidateSignatures(e)...)
		}
		return out
	}
	if t.Kind == types.KDocFunction {
		return []*types.Type{t}
	}
	return nil
}

func scoreSignature(ctx *Context, sig *types.Type, args []*types.Type) int {
	score := 0
	if len(sig.Elems) == len(args) {
		score += 10 // arity match
	}
	for i, param := range sig.Elems {
		if i >= len(args) {
			break
		}
		if types.Subtype(args[i], param, ctx.resolveTypeDecl) {
			score++
		}
	}
	return score
}

// docFunctionFor gives an anonymous `function(...) ... end` expression a
// bare-function callable type with no parameters or returns recorded; such a
// type contributes no candidate signature to overload scoring.
func docFunctionFor(n *syntax.Node) *types.Type {
	return &types.Type{Kind: types.KFunctionKind}
}

// inferMemberExpr handles both the dot-access form (`obj.field`, one
// NodeChildren: [obj]) and the colon-method-call form, which the parser
// folds the call arguments into the same NMemberExpr node for (`obj:m(...)`,
// NodeChildren: [obj, argsNode]) rather than wrapping it in an NCallExpr.
func inferMemberExpr(ctx *Context, n *syntax.Node) *types.Type {
	cs := n.NodeChildren()
	if len(cs) < 1 {
		return types.Unknown()
	}
	recv := cs[0]
	recvType := InferExpr(ctx, recv, nil)
	name := memberNameOf(n)
	if name == "" {
		return types.Unknown()
	}
	memberType := lookupMember(ctx, recvType, name, map[types.TypeDeclId]bool{})

	if len(cs) < 2 {
		return memberType
	}
	// Colon-call form: single-value projection of its (possibly
	// multi-valued) return, the same truncation rawCallReturnType's callers
	// get for a direct call.
	return firstValueOf(rawMemberCallReturnType(ctx, n))
}

func inferIndexExpr(ctx *Context, n *syntax.Node) *types.Type {
	cs := n.NodeChildren()
	if len(cs) < 2 {
		return types.Unknown()
	}
	recv := cs[0]
	keyExpr := cs[1]
	recvType := InferExpr(ctx, recv, nil)
	keyType := InferExpr(ctx, keyExpr, nil)
	if keyType != nil && keyType.Kind == types.KStringConst {
		return lookupMember(ctx, recvType, keyType.StrVal, map[types.TypeDeclId]bool{})
	}
	if recvType != nil && recvType.Kind == types.KArray {
		return recvType.Inner
	}
	return types.Unknown()
}

// memberNameOf extracts the trailing `.name`/`:name` token text of a member
// expression; the dot-form has 3 children (recv, dot, name) and the
// colon-method-call form folds its argument node into the same NMemberExpr
// after the name, so only the direct member-name token is needed here.
func memberNameOf(n *syntax.Node) string {
	toks := n.Tokens()
	if len(toks) == 0 {
		return ""
	}
	last := toks[len(toks)-1]
	if last.Kind() == syntax.TokName {
		return last.Text()
	}
	return ""
}

// lookupMember resolves member name on t: unfolds aliases, walks a nominal
// type's supertype chain depth-first (deduplicated via seen), and
// distributes over unions by unioning each branch's successful lookup
// (spec §4.I).
func lookupMember(ctx *Context, t *types.Type, name string, seen map[types.TypeDeclId]bool) *types.Type {
	if t == nil {
		return types.Unknown()
	}
	// Strip nil for lookup purposes; whether the access was actually safe is
	// a diagnostics-layer (component K) concern, not infer's.
	t = types.Subtract(t, types.Nil(), ctx.resolveTypeDecl)

	if t.Kind == types.KUnion {
		var results []*types.Type
		for _, e := range t.Elems {
			results = append(results, lookupMember(ctx, e, name, seen))
		}
		return types.Union(results...)
	}
	if t.Kind == types.KRef || t.Kind == types.KDef {
		t = types.UnfoldAlias(t, ctx.resolveTypeDecl)
		if t.Kind == types.KRef || t.Kind == types.KDef {
			return lookupClassMember(ctx, t.DeclId, name, seen)
		}
		return lookupMember(ctx, t, name, seen)
	}
	if t.Kind == types.KTableConst || t.Kind == types.KObject {
		if t.Fields != nil {
			if f, ok := t.Fields[types.StringKey(name)]; ok {
				return f
			}
		}
	}
	return types.Unknown()
}

func lookupClassMember(ctx *Context, id types.TypeDeclId, name string, seen map[types.TypeDeclId]bool) *types.Type {
	if seen[id] {
		return types.Unknown()
	}
	seen[id] = true
	d := ctx.resolveTypeDecl(id)
	if d == nil {
		return types.Unknown()
	}
	if d.Fields != nil {
		if f, ok := d.Fields[types.StringKey(name)]; ok {
			return f
		}
	}
	for _, super := range d.Supers {
		if t := lookupClassMember(ctx, super, name, seen); t != nil && t.Kind != types.KUnknown {
			return t
		}
	}
	return types.Unknown()
}

// inferTableConstructor assigns positional entries increasing integer keys,
// `[k] = v` entries a static string key when k is a string literal (an
// integer literal key infers as plain integer and records no entry), and
// `name = v` entries a string key, matching the table constructor's own field-kind split in
// parser.go's parseTableConstructor.
func inferTableConstructor(ctx *Context, n *syntax.Node) *types.Type {
	fields := map[types.Key]*types.Type{}
	nextIdx := int64(1)
	for _, c := range n.NodeChildren() {
		fcs := skipLeadingDoc(c.NodeChildren())
		switch c.Kind {
		case syntax.NTableFieldItem:
			if len(fcs) < 1 {
				continue
			}
			fields[types.IntKey(nextIdx)] = InferExpr(ctx, fcs[0], nil)
			nextIdx++
		case syntax.NTableFieldNamed:
			toks := c.Tokens()
			if len(toks) == 0 || len(fcs) < 1 {
				continue
			}
			fields[types.StringKey(toks[0].Text())] = InferExpr(ctx, fcs[len(fcs)-1], nil)
		case syntax.NTableFieldIndexed:
			if len(fcs) < 2 {
				continue
			}
			keyType := InferExpr(ctx, fcs[0], nil)
			valType := InferExpr(ctx, fcs[1], nil)
			if keyType != nil && keyType.Kind == types.KStringConst {
				fields[types.StringKey(keyType.StrVal)] = valType
			} else if keyType != nil && keyType.Kind == types.KIntegerConst {
				fields[types.IntKey(keyType.IntVal)] = valType
			}
		}
	}
	return &types.Type{Kind: types.KTableConst, Fields: fields, SyntaxOrigin: 0}
}

// skipLeadingDoc drops a leading NDocBlock from a NodeChildren() result, the
// same table-constructor-field doc-comment adjustment decl.logicalChildren
// makes for statement children.
func skipLeadingDoc(cs []*syntax.Node) []*syntax.Node {
	if len(cs) > 0 && cs[0].Kind == syntax.NDocBlock {
		return cs[1:]
	}
	return cs
}

func unquote(s string) string {
	if len(s) >= 2 {
		c := s[0]
		if (c == '"' || c == '\'') && s[len(s)-1] == c {
			return s[1 : len(s)-1]
		}
	}
	return s
}
