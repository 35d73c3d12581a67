// Package decl builds the per-file declaration, scope, and reference index
// described by spec component C: a post-parse walk over one file's CST that
// produces a scope tree, the Decl set it introduces, and three reference
// tables (local, global, member).
package decl

import (
	"github.com/oxhq/emmylua-core/syntax"
	"github.com/oxhq/emmylua-core/vfs"
)

// DeclId identifies one Decl within a single file's Index. Ids are only
// stable within one build of the index; a reindex assigns fresh ids.
type DeclId uint32

// DeclKind distinguishes the four decl-introducing syntactic positions.
type DeclKind int

const (
	KindLocal DeclKind = iota
	KindParam
	// KindGlobal is never produced by Build: per spec §4.C, globals are
	// resolved across files at query time, not index time. A per-file Index
	// only ever records global name occurrences in GlobalRefs; a synthetic
	// KindGlobal Decl (one per name, first writer wins) is the driver's job
	// once every file's indexes are available.
	KindGlobal
	KindForRange
)

// LocalAttrib records the Lua 5.4 <const>/<close> attribute, or the implicit
// const-ness of a generic-for loop variable.
type LocalAttrib int

const (
	AttribNone LocalAttrib = iota
	AttribConst
	AttribClose
	AttribIterConst
)

// Decl is one name-introducing site: a local, a parameter, a global write
// (first assignment to an undeclared name at top level), or a for-range
// variable.
type Decl struct {
	ID         DeclId
	Kind       DeclKind
	File       vfs.FileId
	Name       string
	NameStart  int
	NameEnd    int
	Attrib     LocalAttrib
	Scope      *Scope
	Init       syntax.Element // initializer expression syntax id, nil if none
	Signature  *syntax.Node   // for Param: the NParamList node that owns it
	ParamIndex int            // for Param: 0-based position

	// ForBounds holds a numeric for-loop's start/stop/step expressions, in
	// that order (step omitted if the loop didn't write one), for the
	// KindForRange decl that owns the loop's control variable. infer uses
	// these to type the control variable integer/number per Lua 5.4's
	// numeric-for coercion rule rather than leaving it Unknown. Nil for every
	// other DeclKind and for generic-for (KindForRange from walkForIn).
	ForBounds []syntax.Element

	// FlattenSource is the trailing call/vararg expression of a `local a, b,
	// c = ...` statement whose name list outruns its expression list, e.g.
	// `local a, b, c, d = unpack(t)`. Set only on the excess names beyond the
	// expression list's own length (a name aligned 1:1 with an expression
	// keeps using Init instead); FlattenIndex is this name's 0-based position
	// in the source's flattened multi-value return list. Nil for every decl
	// whose value comes from its own dedicated initializer expression.
	FlattenSource syntax.Element
	FlattenIndex  int
}

// ScopeKind distinguishes the chunk-root scope from function and block
// scopes. Loop scopes are a Block scope whose first entries are the
// loop-control decls (for-range variables), ahead of the body.
type ScopeKind int

const (
	ScopeChunk ScopeKind = iota
	ScopeFunction
	ScopeBlock
)

// ScopeChild is one entry in a Scope's ordered child list: either a nested
// scope or a decl introduced directly in this scope, in source order.
type ScopeChild struct {
	Decl  *Decl
	Child *Scope
}

// Scope is one lexical scope. Children are kept in source order, mixing
// child scopes and decls — mirroring the CST's own Node/Token mixing — so a
// scope's structure can be walked top to bottom to recover declaration
// order.
type Scope struct {
	Kind     ScopeKind
	Parent   *Scope
	Node     *syntax.Node
	Children []ScopeChild
}

func (s *Scope) addDecl(d *Decl) { s.Children = append(s.Children, ScopeChild{Decl: d}) }
func (s *Scope) addChild(c *Scope) {
	c.Parent = s
	s.Children = append(s.Children, ScopeChild{Child: c})
}

// Decls returns only the direct-child decls of this scope, in source order.
func (s *Scope) Decls() []*Decl {
	var out []*Decl
	for _, c := range s.Children {
		if c.Decl != nil {
			out = append(out, c.Decl)
		}
	}
	return out
}

// Ref is one occurrence of a name or member key that resolves (or might
// resolve) to a decl or member.
type Ref struct {
	Start   int
	End     int
	IsWrite bool
}

// Index is the complete per-file decl/scope/reference index (component C).
type Index struct {
	File       vfs.FileId
	Root       *Scope
	Decls      []*Decl
	LocalRefs  map[DeclId][]Ref
	GlobalRefs map[string][]Ref
	MemberRefs map[string][]Ref
}

// builder threads the mutable state of one Build walk: the index under
// construction, the next decl id, and a stack of name->decl frames mirroring
// the scope stack (innermost frame last).
type builder struct {
	idx    *Index
	nextID DeclId
	frames []map[string]*Decl
}

// Build walks tree for file and produces its decl/scope/reference index.
func Build(file vfs.FileId, tree *syntax.Tree) *Index {
	b := &builder{
		idx: &Index{
			File:       file,
			LocalRefs:  map[DeclId][]Ref{},
			GlobalRefs: map[string][]Ref{},
			MemberRefs: map[string][]Ref{},
		},
	}
	chunk := tree.Root
	block := chunk.FirstChildOfKind(syntax.NBlock)
	root := &Scope{Kind: ScopeChunk, Node: block}
	b.idx.Root = root
	b.pushFrame(root)
	b.walkBlock(block, root)
	b.popFrame()
	return b.idx
}

func (b *builder) pushFrame(*Scope) { b.frames = append(b.frames, map[string]*Decl{}) }
func (b *builder) popFrame()        { b.frames = b.frames[:len(b.frames)-1] }

func (b *builder) declareName(name string, d *Decl) {
	b.frames[len(b.frames)-1][name] = d
}

// lookup resolves name against the frame stack, innermost first.
func (b *builder) lookup(name string) *Decl {
	for i := len(b.frames) - 1; i >= 0; i-- {
		if d, ok := b.frames[i][name]; ok {
			return d
		}
	}
	return nil
}

func (b *builder) newDecl(kind DeclKind, name string, start, end int, scope *Scope) *Decl {
	d := &Decl{ID: b.nextID, Kind: kind, File: b.idx.File, Name: name, NameStart: start, NameEnd: end, Scope: scope}
	b.nextID++
	b.idx.Decls = append(b.idx.Decls, d)
	return d
}

// recordNameUse resolves a bare name occurrence (not itself a decl site) and
// files it into LocalRefs or GlobalRefs.
func (b *builder) recordNameUse(name string, start, end int, isWrite bool) {
	ref := Ref{Start: start, End: end, IsWrite: isWrite}
	if d := b.lookup(name); d != nil {
		b.idx.LocalRefs[d.ID] = append(b.idx.LocalRefs[d.ID], ref)
		return
	}
	b.idx.GlobalRefs[name] = append(b.idx.GlobalRefs[name], ref)
}

func (b *builder) recordMemberUse(key string, start, end int, isWrite bool) {
	b.idx.MemberRefs[key] = append(b.idx.MemberRefs[key], Ref{Start: start, End: end, IsWrite: isWrite})
}

// logicalChildren strips a leading NDocBlock (attached by the parser's
// attachDoc) so positional matching below doesn't need to special-case it.
func logicalChildren(n *syntax.Node) []syntax.Element {
	cs := n.Children
	if len(cs) > 0 {
		if nd, ok := cs[0].(*syntax.Node); ok && nd.Kind == syntax.NDocBlock {
			return cs[1:]
		}
	}
	return cs
}

func nodeAt(cs []syntax.Element, i int) *syntax.Node {
	if i < 0 || i >= len(cs) {
		return nil
	}
	n, _ := cs[i].(*syntax.Node)
	return n
}

func tokenAt(cs []syntax.Element, i int) *syntax.TokenNode {
	if i < 0 || i >= len(cs) {
		return nil
	}
	t, _ := cs[i].(*syntax.TokenNode)
	return t
}

func (b *builder) walkBlock(block *syntax.Node, scope *Scope) {
	if block == nil {
		return
	}
	for _, c := range block.NodeChildren() {
		b.walkStmt(c, scope)
	}
}

func (b *builder) walkStmt(n *syntax.Node, scope *Scope) {
	cs := logicalChildren(n)
	switch n.Kind {
	case syntax.NLocalStmt:
		b.walkLocalStmt(n, cs, scope)
	case syntax.NLocalFunctionStmt:
		b.walkLocalFunctionStmt(n, cs, scope)
	case syntax.NAssignStmt:
		b.walkAssignStmt(cs, scope)
	case syntax.NCallStmt:
		if e := nodeAt(cs, 0); e != nil {
			b.walkExpr(e, scope, false)
		}
	case syntax.NDoStmt:
		inner := &Scope{Kind: ScopeBlock, Node: nodeAt(cs, 1)}
		scope.addChild(inner)
		b.pushFrame(inner)
		b.walkBlock(nodeAt(cs, 1), inner)
		b.popFrame()
	case syntax.NWhileStmt:
		if e := nodeAt(cs, 1); e != nil {
			b.walkExpr(e, scope, false)
		}
		inner := &Scope{Kind: ScopeBlock, Node: nodeAt(cs, 3)}
		scope.addChild(inner)
		b.pushFrame(inner)
		b.walkBlock(nodeAt(cs, 3), inner)
		b.popFrame()
	case syntax.NRepeatStmt:
		inner := &Scope{Kind: ScopeBlock, Node: nodeAt(cs, 1)}
		scope.addChild(inner)
		b.pushFrame(inner)
		b.walkBlock(nodeAt(cs, 1), inner)
		// the until-condition is evaluated inside the loop body's scope:
		// "repeat local x = f() until x" is valid Lua.
		if e := nodeAt(cs, 3); e != nil {
			b.walkExpr(e, scope, false)
		}
		b.popFrame()
	case syntax.NIfStmt:
		b.walkIfStmt(cs, scope)
	case syntax.NForNumericStmt:
		b.walkForNumeric(n, cs, scope)
	case syntax.NForInStmt:
		b.walkForIn(cs, scope)
	case syntax.NFunctionStmt:
		b.walkFunctionStmt(cs, scope)
	case syntax.NReturnStmt:
		if el := nodeAt(cs, 1); el != nil && el.Kind == syntax.NExprList {
			for _, e := range el.NodeChildren() {
				b.walkExpr(e, scope, false)
			}
		}
	case syntax.NBreakStmt, syntax.NGotoStmt, syntax.NLabelStmt, syntax.NEmptyStmt:
		// no decls or references
	}
}

func (b *builder) walkLocalStmt(n *syntax.Node, cs []syntax.Element, scope *Scope) {
	names := nodeAt(cs, 1)
	var exprs *syntax.Node
	if el := nodeAt(cs, 3); el != nil && el.Kind == syntax.NExprList {
		exprs = el
	}
	var initExprs []syntax.Element
	if exprs != nil {
		for _, e := range exprs.NodeChildren() {
			initExprs = append(initExprs, e)
			b.walkExpr(e, scope, false)
		}
	}
	if names == nil {
		return
	}
	nameNodes := names.ChildrenOfKind(syntax.NNameExpr)
	trailing := trailingMultiValueExpr(initExprs)
	for i, nn := range nameNodes {
		tok := firstToken(nn)
		if tok == nil {
			continue
		}
		attrib := AttribNone
		attribToks := nn.Tokens()
		for _, t := range attribToks {
			switch t.Text() {
			case "const":
				attrib = AttribConst
			case "close":
				attrib = AttribClose
			}
		}
		d := b.newDecl(KindLocal, tok.Text(), tok.Tok.Start, tok.Tok.End, scope)
		d.Attrib = attrib
		switch {
		case i < len(initExprs):
			d.Init = initExprs[i]
		case trailing != nil:
			d.FlattenSource = trailing
			d.FlattenIndex = i - (len(initExprs) - 1)
		}
		scope.addDecl(d)
		b.declareName(d.Name, d)
	}
}

// trailingMultiValueExpr returns exprs' last element if it is syntactically
// capable of producing more than one value — a direct or colon-method call,
// or a vararg spread — so names beyond exprs' own length can pull from its
// flattened return list instead of staying Unknown (spec §4.I / §9's
// assignment-boundary "flatten" operation).
func trailingMultiValueExpr(exprs []syntax.Element) syntax.Element {
	if len(exprs) == 0 {
		return nil
	}
	last, ok := exprs[len(exprs)-1].(*syntax.Node)
	if !ok || last == nil {
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

// walkLocalFunctionStmt declares the function's own name before walking its
// body, matching Lua's "local function f" self-recursion rule, then
// declares parameters in the function's own scope.
func (b *builder) walkLocalFunctionStmt(n *syntax.Node, cs []syntax.Element, scope *Scope) {
	nameTok := tokenAt(cs, 2)
	if nameTok == nil {
		return
	}
	d := b.newDecl(KindLocal, nameTok.Text(), nameTok.Tok.Start, nameTok.Tok.End, scope)
	scope.addDecl(d)
	b.declareName(d.Name, d)

	sig := nodeAt(cs, 3)
	b.walkFunctionBody(sig, scope)
}

func (b *builder) walkFunctionStmt(cs []syntax.Element, scope *Scope) {
	fname := nodeAt(cs, 1)
	if fname != nil {
		b.walkFuncName(fname, scope)
	}
	sig := nodeAt(cs, 2)
	b.walkFunctionBody(sig, scope)
}

// walkFuncName resolves/records the leading name of a (possibly dotted)
// function name path as a reference; trailing .field/:method segments are
// member references, not name references.
func (b *builder) walkFuncName(fname *syntax.Node, scope *Scope) {
	toks := fname.Tokens()
	if len(toks) == 0 {
		return
	}
	first := toks[0]
	b.recordNameUse(first.Text(), first.Tok.Start, first.Tok.End, len(toks) == 1)
	for _, t := range toks[1:] {
		if t.Kind() == syntax.TokName {
			b.recordMemberUse(t.Text(), t.Tok.Start, t.Tok.End, false)
		}
	}
}

// walkFunctionBody opens a new function scope, declares its parameters, and
// walks its block. sig is the NParamList node produced by parseFunctionBody,
// whose children are [ "(", name, ",", name, ..., ")", Block, "end" ] with an
// optional trailing "..." before ")".
func (b *builder) walkFunctionBody(sig *syntax.Node, scope *Scope) {
	if sig == nil {
		return
	}
	fn := &Scope{Kind: ScopeFunction, Node: sig}
	scope.addChild(fn)
	b.pushFrame(fn)

	idx := 0
	for _, c := range sig.Children {
		if t, ok := c.(*syntax.TokenNode); ok && t.Kind() == syntax.TokName {
			d := b.newDecl(KindParam, t.Text(), t.Tok.Start, t.Tok.End, fn)
			d.Signature = sig
			d.ParamIndex = idx
			idx++
			fn.addDecl(d)
			b.declareName(d.Name, d)
		}
	}

	block := sig.FirstChildOfKind(syntax.NBlock)
	b.walkBlock(block, fn)
	b.popFrame()
}

func (b *builder) walkIfStmt(cs []syntax.Element, scope *Scope) {
	for _, c := range cs {
		clause, ok := c.(*syntax.Node)
		if !ok || clause.Kind != syntax.NIfClause {
			continue
		}
		cc := clause.Children
		// "else" clause: [ "else", Block ]; others: [ cond?, "then", Block ]
		// (the first clause attached directly under NIfStmt carries no leading
		// keyword token of its own, just [cond, "then", block]).
		var cond syntax.Element
		var block *syntax.Node
		if nd := clause.FirstChildOfKind(syntax.NBlock); nd != nil {
			block = nd
		}
		for _, e := range cc {
			if n, ok := e.(*syntax.Node); ok && n.Kind != syntax.NBlock {
				cond = n
				break
			}
		}
		if cond != nil {
			if en, ok := cond.(*syntax.Node); ok {
				b.walkExpr(en, scope, false)
			}
		}
		inner := &Scope{Kind: ScopeBlock, Node: block}
		scope.addChild(inner)
		b.pushFrame(inner)
		b.walkBlock(block, inner)
		b.popFrame()
	}
}

func (b *builder) walkForNumeric(n *syntax.Node, cs []syntax.Element, scope *Scope) {
	varTok := tokenAt(cs, 1)
	start := nodeAt(cs, 3)
	stop := nodeAt(cs, 5)
	var step *syntax.Node
	blockIdx := 7
	if tokenAt(cs, 6) != nil && tokenAt(cs, 6).Kind() == syntax.TokComma {
		step = nodeAt(cs, 7)
		blockIdx = 9
	}
	if start != nil {
		b.walkExpr(start, scope, false)
	}
	if stop != nil {
		b.walkExpr(stop, scope, false)
	}
	if step != nil {
		b.walkExpr(step, scope, false)
	}
	inner := &Scope{Kind: ScopeBlock, Node: nodeAt(cs, blockIdx)}
	scope.addChild(inner)
	b.pushFrame(inner)
	if varTok != nil {
		d := b.newDecl(KindForRange, varTok.Text(), varTok.Tok.Start, varTok.Tok.End, inner)
		if start != nil {
			d.ForBounds = append(d.ForBounds, start)
		}
		if stop != nil {
			d.ForBounds = append(d.ForBounds, stop)
		}
		if step != nil {
			d.ForBounds = append(d.ForBounds, step)
		}
		inner.addDecl(d)
		b.declareName(d.Name, d)
	}
	b.walkBlock(nodeAt(cs, blockIdx), inner)
	b.popFrame()
}

func (b *builder) walkForIn(cs []syntax.Element, scope *Scope) {
	names := nodeAt(cs, 1)
	exprs := nodeAt(cs, 3)
	var block *syntax.Node
	for _, c := range cs {
		if n, ok := c.(*syntax.Node); ok && n.Kind == syntax.NBlock {
			block = n
		}
	}
	if exprs != nil {
		for _, e := range exprs.NodeChildren() {
			b.walkExpr(e, scope, false)
		}
	}
	inner := &Scope{Kind: ScopeBlock, Node: block}
	scope.addChild(inner)
	b.pushFrame(inner)
	if names != nil {
		for _, t := range names.Tokens() {
			if t.Kind() != syntax.TokName {
				continue
			}
			d := b.newDecl(KindForRange, t.Text(), t.Tok.Start, t.Tok.End, inner)
			d.Attrib = AttribIterConst
			inner.addDecl(d)
			b.declareName(d.Name, d)
		}
	}
	b.walkBlock(block, inner)
	b.popFrame()
}

func (b *builder) walkAssignStmt(cs []syntax.Element, scope *Scope) {
	vars := nodeAt(cs, 0)
	exprs := nodeAt(cs, 2)
	if vars != nil {
		for _, v := range vars.NodeChildren() {
			b.walkExpr(v, scope, true)
		}
	}
	if exprs != nil {
		for _, e := range exprs.NodeChildren() {
			b.walkExpr(e, scope, false)
		}
	}
}

// walkExpr walks an expression subtree, recording name/member references.
// isWrite marks the outermost target of an assignment (the LHS of `a = ...`
// or `a.b = ...`); nested subexpressions (e.g. the index inside `a[i] = ...`)
// are always reads.
func (b *builder) walkExpr(n *syntax.Node, scope *Scope, isWrite bool) {
	if n == nil {
		return
	}
	switch n.Kind {
	case syntax.NNameExpr:
		tok := firstToken(n)
		if tok != nil {
			b.recordNameUse(tok.Text(), tok.Tok.Start, tok.Tok.End, isWrite)
		}
	case syntax.NIndexExpr:
		cs := n.Children
		base := nodeAt(cs, 0)
		keyExpr := nodeAt(cs, 2)
		b.walkExpr(base, scope, false)
		if keyExpr != nil {
			b.walkExpr(keyExpr, scope, false)
			if keyExpr.Kind == syntax.NLiteralExpr {
				if lt := firstToken(keyExpr); lt != nil && lt.Kind() == syntax.TokString {
					b.recordMemberUse(unquote(lt.Text()), lt.Tok.Start, lt.Tok.End, isWrite)
				}
			}
		}
	case syntax.NMemberExpr:
		cs := n.Children
		base := nodeAt(cs, 0)
		b.walkExpr(base, scope, false)
		if nameTok := tokenAt(cs, 2); nameTok != nil {
			b.recordMemberUse(nameTok.Text(), nameTok.Tok.Start, nameTok.Tok.End, isWrite)
		}
		// method-call form a:m(...) carries a trailing NExprList call-args node
		if args := nodeAt(cs, 3); args != nil {
			for _, a := range args.NodeChildren() {
				b.walkExpr(a, scope, false)
			}
		}
	case syntax.NCallExpr:
		cs := n.Children
		callee := nodeAt(cs, 0)
		b.walkExpr(callee, scope, false)
		if args := nodeAt(cs, 1); args != nil {
			for _, a := range args.NodeChildren() {
				b.walkExpr(a, scope, false)
			}
		}
	case syntax.NBinExpr:
		cs := n.Children
		b.walkExpr(nodeAt(cs, 0), scope, false)
		b.walkExpr(nodeAt(cs, 2), scope, false)
	case syntax.NUnExpr:
		cs := n.Children
		b.walkExpr(nodeAt(cs, 1), scope, false)
	case syntax.NParenExpr:
		cs := n.Children
		b.walkExpr(nodeAt(cs, 1), scope, false)
	case syntax.NFunctionExpr:
		cs := n.Children
		b.walkFunctionBody(nodeAt(cs, 1), scope)
	case syntax.NTableConstructor:
		b.walkTableConstructor(n, scope)
	case syntax.NVarargExpr, syntax.NLiteralExpr, syntax.NError:
		// terminal, no further references
	}
}

func (b *builder) walkTableConstructor(n *syntax.Node, scope *Scope) {
	for _, c := range n.NodeChildren() {
		cs := logicalChildren(c)
		switch c.Kind {
		case syntax.NTableFieldNamed:
			if nameTok := tokenAt(cs, 0); nameTok != nil {
				b.recordMemberUse(nameTok.Text(), nameTok.Tok.Start, nameTok.Tok.End, true)
			}
			if v := nodeAt(cs, 2); v != nil {
				b.walkExpr(v, scope, false)
			}
		case syntax.NTableFieldIndexed:
			if keyExpr := nodeAt(cs, 1); keyExpr != nil {
				b.walkExpr(keyExpr, scope, false)
				if keyExpr.Kind == syntax.NLiteralExpr {
					if lt := firstToken(keyExpr); lt != nil && lt.Kind() == syntax.TokString {
						b.recordMemberUse(unquote(lt.Text()), lt.Tok.Start, lt.Tok.End, true)
					}
				}
			}
			if v := nodeAt(cs, 4); v != nil {
				b.walkExpr(v, scope, false)
			}
		case syntax.NTableFieldItem:
			if v := nodeAt(cs, 0); v != nil {
				b.walkExpr(v, scope, false)
			}
		}
	}
}

func firstToken(n *syntax.Node) *syntax.TokenNode {
	toks := n.Tokens()
	if len(toks) == 0 {
		return nil
	}
	return toks[0]
}

// unquote strips the surrounding quote characters from a lexed string
// literal's raw text; used to turn "name"/'name' into the bare member key.
func unquote(s string) string {
	if len(s) >= 2 {
		c := s[0]
		if (c == '"' || c == '\'') && s[len(s)-1] == c {
			return s[1 : len(s)-1]
		}
	}
	return s
}
