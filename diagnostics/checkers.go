package diagnostics

import (
	"fmt"
	"strings"

	"github.com/oxhq/emmylua-core/config"
	"github.com/oxhq/emmylua-core/decl"
	"github.com/oxhq/emmylua-core/infer"
	module "github.com/oxhq/emmylua-core/module_"
	"github.com/oxhq/emmylua-core/property"
	"github.com/oxhq/emmylua-core/syntax"
	"github.com/oxhq/emmylua-core/types"
)

// walk collects every node matching kind anywhere under root, depth-first.
func walk(root *syntax.Node, kind syntax.NodeKind, out *[]*syntax.Node) {
	if root == nil {
		return
	}
	if root.Kind == kind {
		*out = append(*out, root)
	}
	for _, c := range root.NodeChildren() {
		walk(c, kind, out)
	}
}

func collect(root *syntax.Node, kind syntax.NodeKind) []*syntax.Node {
	var out []*syntax.Node
	walk(root, kind, &out)
	return out
}

func firstToken(n *syntax.Node) *syntax.TokenNode {
	toks := n.Tokens()
	if len(toks) == 0 {
		return nil
	}
	return toks[0]
}

// stmtChildren strips a leading NDocBlock from a statement's children, the
// same adjustment decl.logicalChildren makes, so positional indexing below
// doesn't need to special-case a doc-commented statement.
func stmtChildren(n *syntax.Node) []syntax.Element {
	cs := n.Children
	if len(cs) > 0 {
		if nd, ok := cs[0].(*syntax.Node); ok && nd.Kind == syntax.NDocBlock {
			return cs[1:]
		}
	}
	return cs
}

// skipLeadingDocNodes drops a leading NDocBlock from a NodeChildren() result,
// the same table-constructor-field adjustment infer.skipLeadingDoc makes.
func skipLeadingDocNodes(cs []*syntax.Node) []*syntax.Node {
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

// containsNil reports whether t is, or (as a union) includes, nil.
func containsNil(t *types.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case types.KNil:
		return true
	case types.KUnion:
		for _, e := range t.Elems {
			if containsNil(e) {
				return true
			}
		}
	}
	return false
}

// isStaticallyTruthy reports whether every value t can hold is truthy
// (never nil nor false), so a narrowing check against it is statically
// redundant.
func isStaticallyTruthy(t *types.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case types.KNil:
		return false
	case types.KBooleanConst:
		return t.BoolVal
	case types.KAny, types.KUnknown, types.KBoolean:
		return false
	case types.KUnion:
		if len(t.Elems) == 0 {
			return false
		}
		for _, e := range t.Elems {
			if !isStaticallyTruthy(e) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// isStaticallyFalsy reports whether every value t can hold is falsy (nil or
// false).
func isStaticallyFalsy(t *types.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case types.KNil:
		return true
	case types.KBooleanConst:
		return !t.BoolVal
	case types.KUnion:
		if len(t.Elems) == 0 {
			return false
		}
		for _, e := range t.Elems {
			if !isStaticallyFalsy(e) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ---- need-check-nil ----

// needCheckNilChecker flags member and index access on an expression whose
// static type includes nil, without the member/index access itself
// narrowing it away first. Calls and arithmetic operands are not checked.
func needCheckNilChecker() Checker {
	return newChecker("need-check-nil", SeverityWarning, func(ctx *Context) []Diagnostic {
		var out []Diagnostic
		for _, n := range collect(ctx.Tree.Root, syntax.NMemberExpr) {
			base, _ := n.Children[0].(*syntax.Node)
			if base == nil {
				continue
			}
			t := infer.InferExpr(ctx.Model.InferCtx, base, nil)
			if containsNil(t) {
				start, end := base.Range()
				out = append(out, Diagnostic{Range: Range{Start: start, End: end}, Message: "value may be nil here"})
			}
		}
		for _, n := range collect(ctx.Tree.Root, syntax.NIndexExpr) {
			base, _ := n.Children[0].(*syntax.Node)
			if base == nil {
				continue
			}
			t := infer.InferExpr(ctx.Model.InferCtx, base, nil)
			if containsNil(t) {
				start, end := base.Range()
				out = append(out, Diagnostic{Range: Range{Start: start, End: end}, Message: "value may be nil here"})
			}
		}
		return out
	})
}

// ---- unnecessary-assert ----

func unnecessaryAssertChecker() Checker {
	return newChecker("unnecessary-assert", SeverityHint, func(ctx *Context) []Diagnostic {
		var out []Diagnostic
		for _, n := range collect(ctx.Tree.Root, syntax.NCallExpr) {
			callee, _ := n.Children[0].(*syntax.Node)
			if callee == nil || callee.Kind != syntax.NNameExpr {
				continue
			}
			if tok := firstToken(callee); tok == nil || tok.Text() != "assert" {
				continue
			}
			args, _ := n.Children[1].(*syntax.Node)
			if args == nil {
				continue
			}
			argExprs := args.NodeChildren()
			if len(argExprs) == 0 {
				continue
			}
			t := infer.InferExpr(ctx.Model.InferCtx, argExprs[0], nil)
			switch {
			case isStaticallyTruthy(t):
				start, end := n.Range()
				out = append(out, Diagnostic{Range: Range{Start: start, End: end}, Message: "assertion is always true"})
			case isStaticallyFalsy(t):
				start, end := n.Range()
				out = append(out, Diagnostic{Range: Range{Start: start, End: end}, Message: "assertion is statically false; prefer error() instead"})
			}
		}
		return out
	})
}

// ---- unnecessary-if ----

func unnecessaryIfChecker() Checker {
	return newChecker("unnecessary-if", SeverityHint, func(ctx *Context) []Diagnostic {
		var out []Diagnostic
		for _, n := range collect(ctx.Tree.Root, syntax.NIfClause) {
			var cond *syntax.Node
			for _, e := range n.Children {
				if c, ok := e.(*syntax.Node); ok && c.Kind != syntax.NBlock {
					cond = c
					break
				}
			}
			if cond == nil {
				continue
			}
			t := infer.InferExpr(ctx.Model.InferCtx, cond, nil)
			if isStaticallyTruthy(t) || isStaticallyFalsy(t) {
				start, end := cond.Range()
				out = append(out, Diagnostic{Range: Range{Start: start, End: end}, Message: "condition is always " + truthWord(t)})
			}
		}
		return out
	})
}

func truthWord(t *types.Type) string {
	if isStaticallyTruthy(t) {
		return "true"
	}
	return "false"
}

// ---- unbalanced-assignments ----

func unbalancedAssignmentsChecker() Checker {
	return newChecker("unbalanced-assignments", SeverityWarning, func(ctx *Context) []Diagnostic {
		var out []Diagnostic
		for _, n := range collect(ctx.Tree.Root, syntax.NAssignStmt) {
			cs := stmtChildren(n)
			if len(cs) < 3 {
				continue
			}
			vars, _ := cs[0].(*syntax.Node)
			exprs, _ := cs[2].(*syntax.Node)
			if vars == nil || exprs == nil {
				continue
			}
			nv := len(vars.NodeChildren())
			exprList := exprs.NodeChildren()
			ne := len(exprList)
			if ne == 0 || ne >= nv {
				continue
			}
			if trailingExpandsValues(ctx, exprList[ne-1]) {
				continue
			}
			start, end := n.Range()
			out = append(out, Diagnostic{
				Range:   Range{Start: start, End: end},
				Message: fmt.Sprintf("%d variables but only %d values", nv, ne),
			})
		}
		return out
	})
}

// trailingExpandsValues reports whether the last RHS expression can by
// itself supply more values than its single syntactic position suggests: a
// call (direct or colon-method, either of which may return multiple
// values), a vararg spread, or an expression whose static type is an
// Instance (a setmetatable-constructed object whose field count isn't
// knowable from its own shape) — any of which makes a raw RHS-expression
// count an unreliable signal of value count, per the "excluding trailing
// multi-valued calls and Instance base types" rule.
func trailingExpandsValues(ctx *Context, last *syntax.Node) bool {
	if last == nil {
		return false
	}
	if last.Kind == syntax.NCallExpr || last.Kind == syntax.NVarargExpr {
		return true
	}
	if last.Kind == syntax.NMemberExpr && len(last.NodeChildren()) >= 2 {
		return true // colon-method-call form, e.g. `obj:m(...)`
	}
	t := infer.InferExpr(ctx.Model.InferCtx, last, nil)
	return t != nil && t.Kind == types.KInstance
}

// ---- undefined-global ----

var builtinGlobals = map[string]bool{
	"print": true, "pairs": true, "ipairs": true, "next": true, "type": true,
	"tostring": true, "tonumber": true, "pcall": true, "xpcall": true,
	"error": true, "assert": true, "setmetatable": true, "getmetatable": true,
	"rawget": true, "rawset": true, "rawequal": true, "rawlen": true,
	"select": true, "unpack": true, "require": true, "_G": true,
	"_VERSION": true, "collectgarbage": true, "load": true, "loadstring": true,
	"dofile": true, "table": true, "string": true, "math": true, "os": true,
	"io": true, "coroutine": true, "utf8": true, "debug": true,
}

func undefinedGlobalChecker() Checker {
	return newChecker("undefined-global", SeverityWarning, func(ctx *Context) []Diagnostic {
		var out []Diagnostic
		cfg := ctx.Model.GetEmmyrc()
		allowed := map[string]bool{}
		for _, g := range cfg.Diagnostics.Globals {
			allowed[g] = true
		}
		for name, refs := range ctx.Model.Decls.GlobalRefs {
			if builtinGlobals[name] || allowed[name] {
				continue
			}
			written := false
			for _, r := range refs {
				if r.IsWrite {
					written = true
					break
				}
			}
			if written {
				continue
			}
			for _, r := range refs {
				out = append(out, Diagnostic{
					Range:   Range{Start: r.Start, End: r.End},
					Message: fmt.Sprintf("undefined global %q", name),
				})
			}
		}
		return out
	})
}

// ---- deprecated ----

func deprecatedChecker() Checker {
	return newChecker("deprecated", SeverityHint, func(ctx *Context) []Diagnostic {
		var out []Diagnostic
		if ctx.Model.Properties == nil {
			return out
		}
		for _, d := range ctx.Model.Decls.Decls {
			p := ctx.Model.Properties.Get(property.SemanticId{Kind: property.IdDecl, Local: uint32(d.ID)})
			if p.Deprecation == property.NotDeprecated {
				continue
			}
			for _, r := range ctx.Model.Decls.LocalRefs[d.ID] {
				msg := "reference to a deprecated symbol"
				if p.DeprecationMsg != "" {
					msg += ": " + p.DeprecationMsg
				}
				out = append(out, Diagnostic{Range: Range{Start: r.Start, End: r.End}, Message: msg})
			}
		}
		for key, refs := range ctx.Model.Decls.MemberRefs {
			p := ctx.Model.Properties.Get(property.SemanticId{Kind: property.IdMember, Named: key})
			if p.Deprecation == property.NotDeprecated {
				continue
			}
			for _, r := range refs {
				out = append(out, Diagnostic{Range: Range{Start: r.Start, End: r.End}, Message: "reference to a deprecated member " + key})
			}
		}
		return out
	})
}

// ---- read-only ----

func readOnlyChecker() Checker {
	return newChecker("read-only", SeverityError, func(ctx *Context) []Diagnostic {
		var out []Diagnostic
		if ctx.Model.Properties == nil {
			return out
		}
		for _, d := range ctx.Model.Decls.Decls {
			p := ctx.Model.Properties.Get(property.SemanticId{Kind: property.IdDecl, Local: uint32(d.ID)})
			if !p.Features.ReadOnly {
				continue
			}
			for _, r := range ctx.Model.Decls.LocalRefs[d.ID] {
				if r.IsWrite {
					out = append(out, Diagnostic{Range: Range{Start: r.Start, End: r.End}, Message: "cannot assign to a read-only " + d.Name})
				}
			}
		}
		for key, refs := range ctx.Model.Decls.MemberRefs {
			p := ctx.Model.Properties.Get(property.SemanticId{Kind: property.IdMember, Named: key})
			if !p.Features.ReadOnly {
				continue
			}
			for _, r := range refs {
				if r.IsWrite {
					out = append(out, Diagnostic{Range: Range{Start: r.Start, End: r.End}, Message: "cannot assign to read-only field " + key})
				}
			}
		}
		return out
	})
}

// ---- local-const-reassign ----

func localConstReassignChecker() Checker {
	return newChecker("local-const-reassign", SeverityError, func(ctx *Context) []Diagnostic {
		var out []Diagnostic
		for _, d := range ctx.Model.Decls.Decls {
			if d.Attrib != decl.AttribConst && d.Attrib != decl.AttribClose {
				continue
			}
			for _, r := range ctx.Model.Decls.LocalRefs[d.ID] {
				if r.IsWrite {
					out = append(out, Diagnostic{Range: Range{Start: r.Start, End: r.End}, Message: "cannot assign to const variable " + d.Name})
				}
			}
		}
		return out
	})
}

// ---- iter-variable-reassign ----

func iterVariableReassignChecker() Checker {
	return newChecker("iter-variable-reassign", SeverityError, func(ctx *Context) []Diagnostic {
		var out []Diagnostic
		for _, d := range ctx.Model.Decls.Decls {
			if d.Attrib != decl.AttribIterConst {
				continue
			}
			for _, r := range ctx.Model.Decls.LocalRefs[d.ID] {
				if r.IsWrite {
					out = append(out, Diagnostic{Range: Range{Start: r.Start, End: r.End}, Message: "cannot assign to for-in loop variable " + d.Name})
				}
			}
		}
		return out
	})
}

// ---- redefined-local ----

func redefinedLocalChecker() Checker {
	return newChecker("redefined-local", SeverityHint, func(ctx *Context) []Diagnostic {
		var out []Diagnostic
		var walkScope func(s *decl.Scope, seen map[string]bool)
		walkScope = func(s *decl.Scope, seen map[string]bool) {
			if s == nil {
				return
			}
			local := map[string]bool{}
			for k, v := range seen {
				local[k] = v
			}
			for _, c := range s.Children {
				if c.Decl != nil {
					if c.Decl.Name != "_" && local[c.Decl.Name] {
						out = append(out, Diagnostic{
							Range:   Range{Start: c.Decl.NameStart, End: c.Decl.NameEnd},
							Message: "local " + c.Decl.Name + " shadows an outer declaration of the same name",
						})
					}
					local[c.Decl.Name] = true
				}
				if c.Child != nil {
					walkScope(c.Child, local)
				}
			}
		}
		walkScope(ctx.Model.Decls.Root, map[string]bool{})
		return out
	})
}

// ---- duplicate-index ----

func duplicateIndexChecker() Checker {
	return newChecker("duplicate-index", SeverityWarning, func(ctx *Context) []Diagnostic {
		var out []Diagnostic
		for _, tc := range collect(ctx.Tree.Root, syntax.NTableConstructor) {
			seen := map[string]bool{}
			for _, f := range tc.NodeChildren() {
				var keyTok *syntax.TokenNode
				switch f.Kind {
				case syntax.NTableFieldNamed:
					toks := f.Tokens()
					if len(toks) > 0 {
						keyTok = toks[0]
					}
				case syntax.NTableFieldIndexed:
					cs := skipLeadingDocNodes(f.NodeChildren())
					if len(cs) > 0 && cs[0].Kind == syntax.NLiteralExpr {
						if t := firstToken(cs[0]); t != nil && t.Kind() == syntax.TokString {
							keyTok = t
						}
					}
				}
				if keyTok == nil {
					continue
				}
				key := unquote(keyTok.Text())
				if seen[key] {
					out = append(out, Diagnostic{
						Range:   Range{Start: keyTok.Tok.Start, End: keyTok.Tok.End},
						Message: fmt.Sprintf("duplicate table key %q", key),
					})
					continue
				}
				seen[key] = true
			}
		}
		return out
	})
}

// ---- duplicate-require ----

// duplicateRequireChecker flags a require() call on a module path already
// required elsewhere in the file. Approximated at file granularity rather
// than per overlapping block scope.
func duplicateRequireChecker() Checker {
	return newChecker("duplicate-require", SeverityWarning, func(ctx *Context) []Diagnostic {
		var out []Diagnostic
		seen := map[string]bool{}
		for _, n := range collect(ctx.Tree.Root, syntax.NCallExpr) {
			callee, _ := n.Children[0].(*syntax.Node)
			if callee == nil || callee.Kind != syntax.NNameExpr {
				continue
			}
			if tok := firstToken(callee); tok == nil || tok.Text() != "require" {
				continue
			}
			args, _ := n.Children[1].(*syntax.Node)
			if args == nil {
				continue
			}
			argExprs := args.NodeChildren()
			if len(argExprs) == 0 || argExprs[0].Kind != syntax.NLiteralExpr {
				continue
			}
			tok := firstToken(argExprs[0])
			if tok == nil || tok.Kind() != syntax.TokString {
				continue
			}
			path := unquote(tok.Text())
			if seen[path] {
				start, end := n.Range()
				out = append(out, Diagnostic{Range: Range{Start: start, End: end}, Message: fmt.Sprintf("module %q already required", path)})
				continue
			}
			seen[path] = true
		}
		return out
	})
}

// ---- circle-doc-class ----

func circleDocClassChecker() Checker {
	return newChecker("circle-doc-class", SeverityError, func(ctx *Context) []Diagnostic {
		var out []Diagnostic
		if ctx.Model.TypeIx == nil {
			return out
		}
		for _, d := range ctx.Model.TypeIx.All() {
			if inheritanceCycle(d.Id, d.Supers, ctx.Model.TypeIx, map[types.TypeDeclId]bool{}) {
				out = append(out, Diagnostic{Message: fmt.Sprintf("class %q participates in an inheritance cycle", d.Id)})
			}
		}
		return out
	})
}

func inheritanceCycle(root types.TypeDeclId, supers []types.TypeDeclId, ix *types.Index, seen map[types.TypeDeclId]bool) bool {
	for _, s := range supers {
		if s == root {
			return true
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		if sd := ix.Resolve(s); sd != nil && inheritanceCycle(root, sd.Supers, ix, seen) {
			return true
		}
	}
	return false
}

// ---- unknown-doc-tag ----

func unknownDocTagChecker() Checker {
	return newChecker("unknown-doc-tag", SeverityWarning, func(ctx *Context) []Diagnostic {
		var out []Diagnostic
		cfg := ctx.Model.GetEmmyrc()
		for _, n := range collect(ctx.Tree.Root, syntax.NDocTagUnknown) {
			toks := n.Tokens()
			if len(toks) < 2 {
				continue
			}
			head := toks[1].Text()
			if cfg.IsKnownTag(head) {
				continue
			}
			start, end := n.Range()
			out = append(out, Diagnostic{Range: Range{Start: start, End: end}, Message: fmt.Sprintf("unknown doc tag @%s", head)})
		}
		return out
	})
}

// ---- discard-returns ----

func discardReturnsChecker() Checker {
	return newChecker("discard-returns", SeverityWarning, func(ctx *Context) []Diagnostic {
		var out []Diagnostic
		if ctx.Model.Properties == nil {
			return out
		}
		for _, n := range collect(ctx.Tree.Root, syntax.NCallStmt) {
			cs := stmtChildren(n)
			if len(cs) == 0 {
				continue
			}
			call, _ := cs[0].(*syntax.Node)
			if call == nil || call.Kind != syntax.NCallExpr {
				continue
			}
			callee, _ := call.Children[0].(*syntax.Node)
			if callee == nil || callee.Kind != syntax.NNameExpr {
				continue
			}
			d := ctx.Model.FindDecl(callee)
			if d == nil {
				continue
			}
			p := ctx.Model.Properties.Get(property.SemanticId{Kind: property.IdDecl, Local: uint32(d.ID)})
			if !p.Features.NoDiscard {
				continue
			}
			start, end := call.Range()
			out = append(out, Diagnostic{Range: Range{Start: start, End: end}, Message: "return value of " + d.Name + " must not be discarded"})
		}
		return out
	})
}

// ---- global-in-non-module ----

// globalInNonModuleChecker flags implicit-global writes in a file carrying
// a ---@module tag: module files are expected to export via return, not via
// implicit globals.
func globalInNonModuleChecker() Checker {
	return newChecker("global-in-non-module", SeverityHint, func(ctx *Context) []Diagnostic {
		var out []Diagnostic
		if len(collect(ctx.Tree.Root, syntax.NDocTagModule)) == 0 {
			return out
		}
		for name, refs := range ctx.Model.Decls.GlobalRefs {
			if builtinGlobals[name] {
				continue
			}
			for _, r := range refs {
				if r.IsWrite {
					out = append(out, Diagnostic{Range: Range{Start: r.Start, End: r.End}, Message: "implicit global " + name + " in a @module file"})
				}
			}
		}
		return out
	})
}

// ---- access-invisible ----

// accessInvisibleChecker flags a member access whose declared private or
// protected visibility isn't satisfied by the access site's enclosing
// method (package and internal visibility are never flagged), or whose @version condition excludes the configured
// runtime level. Member properties are keyed globally by field name (the
// same simplification deprecatedChecker/readOnlyChecker already make, since
// property.Index doesn't carry per-owner member keys), so "owner" here is
// the static type of the receiver expression at the access site rather than
// a lookup against the declaring class specifically.
func accessInvisibleChecker() Checker {
	return newChecker("access-invisible", SeverityWarning, func(ctx *Context) []Diagnostic {
		var out []Diagnostic
		if ctx.Model.Properties == nil || ctx.Model.TypeIx == nil {
			return out
		}
		cfg := ctx.Model.GetEmmyrc()
		var walkNode func(n *syntax.Node, enclosing types.TypeDeclId, have bool)
		walkNode = func(n *syntax.Node, enclosing types.TypeDeclId, have bool) {
			if n == nil {
				return
			}
			nextEnclosing, nextHave := enclosing, have
			if n.Kind == syntax.NFunctionStmt {
				if recv, ok := methodReceiver(n); ok {
					nextEnclosing, nextHave = recv, true
				}
			}
			if n.Kind == syntax.NMemberExpr {
				if d, ok := checkMemberAccess(ctx, n, enclosing, have, cfg); ok {
					out = append(out, d)
				}
			}
			for _, c := range n.NodeChildren() {
				walkNode(c, nextEnclosing, nextHave)
			}
		}
		walkNode(ctx.Tree.Root, "", false)
		return out
	})
}

// methodReceiver reads a `function Class:method(...)`/`function
// Class.method(...)` statement's receiver class name off its NFuncName head
// token, the same dotted/colon path decl.walkFuncName resolves as a
// reference; a bare `function f()` (no dot/colon) has no receiver.
func methodReceiver(stmt *syntax.Node) (types.TypeDeclId, bool) {
	for _, c := range stmtChildren(stmt) {
		n, ok := c.(*syntax.Node)
		if !ok || n.Kind != syntax.NFuncName {
			continue
		}
		toks := n.Tokens()
		if len(toks) < 2 {
			return "", false
		}
		return types.TypeDeclId(toks[0].Text()), true
	}
	return "", false
}

func checkMemberAccess(ctx *Context, n *syntax.Node, enclosing types.TypeDeclId, have bool, cfg config.Config) (Diagnostic, bool) {
	cs := n.Children
	if len(cs) < 3 {
		return Diagnostic{}, false
	}
	base, _ := cs[0].(*syntax.Node)
	nameTok, _ := cs[2].(*syntax.TokenNode)
	if base == nil || nameTok == nil {
		return Diagnostic{}, false
	}
	resolve := func(id types.TypeDeclId) *types.TypeDecl { return ctx.Model.TypeIx.Resolve(id) }
	recvType := types.UnfoldAlias(ctx.Model.TypeOf(base), resolve)
	if recvType == nil || (recvType.Kind != types.KRef && recvType.Kind != types.KDef) {
		return Diagnostic{}, false
	}
	owner := recvType.DeclId
	fieldName := nameTok.Text()
	p := ctx.Model.Properties.Get(property.SemanticId{Kind: property.IdMember, Named: fieldName})
	start, end := nameTok.Range()

	if p.Version != nil && !versionAllowed(p.Version, cfg) {
		return Diagnostic{Range: Range{Start: start, End: end}, Message: fmt.Sprintf("member %q is not available for runtime version %s", fieldName, cfg.Runtime.Version)}, true
	}

	switch p.Visibility {
	case property.Private:
		if have && enclosing == owner {
			return Diagnostic{}, false
		}
	case property.Protected:
		if have && (enclosing == owner || isSubclassOf(ctx.Model.TypeIx, enclosing, owner)) {
			return Diagnostic{}, false
		}
	default:
		// Public, Package, and Internal are not cross-scope restricted by a
		// single-file checker pass: Package/Internal visibility is a
		// workspace-scoped concept this pass has no module boundary to test
		// against (it only ever sees one file's own methods), so within one
		// file's access sites they are never violated.
		return Diagnostic{}, false
	}
	return Diagnostic{Range: Range{Start: start, End: end}, Message: fmt.Sprintf("member %q of %s is not visible here", fieldName, owner)}, true
}

func versionAllowed(v *property.VersionCondition, cfg config.Config) bool {
	if len(v.Levels) == 0 {
		return true
	}
	for _, lvl := range v.Levels {
		if lvl == string(cfg.Runtime.Version) {
			return true
		}
	}
	return false
}

func isSubclassOf(ix *types.Index, id, target types.TypeDeclId) bool {
	return subclassOfDiag(ix, id, target, map[types.TypeDeclId]bool{})
}

func subclassOfDiag(ix *types.Index, id, target types.TypeDeclId, seen map[types.TypeDeclId]bool) bool {
	if id == target {
		return true
	}
	if seen[id] {
		return false
	}
	seen[id] = true
	d := ix.Resolve(id)
	if d == nil {
		return false
	}
	for _, s := range d.Supers {
		if subclassOfDiag(ix, s, target, seen) {
			return true
		}
	}
	return false
}

// ---- undefined-doc-param ----

// undefinedDocParamChecker flags a `---@param name` tag whose name doesn't
// match any parameter of the doc-commented statement's function signature.
func undefinedDocParamChecker() Checker {
	return newChecker("undefined-doc-param", SeverityWarning, func(ctx *Context) []Diagnostic {
		var out []Diagnostic
		var walkNode func(n *syntax.Node)
		walkNode = func(n *syntax.Node) {
			if n == nil {
				return
			}
			if cs := n.Children; len(cs) > 0 {
				if block, ok := cs[0].(*syntax.Node); ok && block.Kind == syntax.NDocBlock {
					out = append(out, checkDocParams(block, n)...)
				}
			}
			for _, c := range n.NodeChildren() {
				walkNode(c)
			}
		}
		walkNode(ctx.Tree.Root)
		return out
	})
}

func checkDocParams(block, stmt *syntax.Node) []Diagnostic {
	var paramTags []*syntax.Node
	for _, tag := range block.NodeChildren() {
		if tag.Kind == syntax.NDocTagParam {
			paramTags = append(paramTags, tag)
		}
	}
	if len(paramTags) == 0 {
		return nil
	}
	names := signatureParamNames(stmt)
	if names == nil {
		return nil
	}
	var out []Diagnostic
	for _, tag := range paramTags {
		toks := tag.Tokens()
		if len(toks) == 0 {
			continue
		}
		name := toks[0].Text()
		if name == "..." || names[name] {
			continue
		}
		start, end := tag.Range()
		out = append(out, Diagnostic{Range: Range{Start: start, End: end}, Message: fmt.Sprintf("@param %q does not match any parameter of this function", name)})
	}
	return out
}

// signatureParamNames finds stmt's function signature — direct for a
// function statement/local-function, or nested in its initializer for
// `local f = function(...) end` / `f = function(...) end` — and returns the
// set of its declared parameter names, or nil if stmt has no function
// signature to check a doc param list against.
func signatureParamNames(stmt *syntax.Node) map[string]bool {
	sig := findSignature(stmt)
	if sig == nil {
		return nil
	}
	names := map[string]bool{}
	for _, c := range sig.Children {
		if t, ok := c.(*syntax.TokenNode); ok && t.Kind() == syntax.TokName {
			names[t.Text()] = true
		}
	}
	return names
}

func findSignature(stmt *syntax.Node) *syntax.Node {
	switch stmt.Kind {
	case syntax.NFunctionStmt, syntax.NLocalFunctionStmt:
		for _, c := range stmtChildren(stmt) {
			if n, ok := c.(*syntax.Node); ok && n.Kind == syntax.NParamList {
				return n
			}
		}
	case syntax.NLocalStmt, syntax.NAssignStmt:
		for _, c := range stmtChildren(stmt) {
			el, ok := c.(*syntax.Node)
			if !ok || el.Kind != syntax.NExprList {
				continue
			}
			for _, e := range el.NodeChildren() {
				if e.Kind != syntax.NFunctionExpr {
					continue
				}
				for _, fc := range e.Children {
					if pn, ok := fc.(*syntax.Node); ok && pn.Kind == syntax.NParamList {
						return pn
					}
				}
			}
		}
	}
	return nil
}

// ---- duplicate-doc-field ----

// duplicateDocFieldChecker flags a class whose doc comment declares the same
// field name twice with differing declared-type source text within one doc
// block — a copy-paste mistake of two `---@field` lines for the same name.
func duplicateDocFieldChecker() Checker {
	return newChecker("duplicate-doc-field", SeverityWarning, func(ctx *Context) []Diagnostic {
		var out []Diagnostic
		text, _ := ctx.Model.GetDocument()
		for _, block := range collect(ctx.Tree.Root, syntax.NDocBlock) {
			out = append(out, checkDuplicateFields(block, text)...)
		}
		return out
	})
}

func checkDuplicateFields(block *syntax.Node, text string) []Diagnostic {
	seen := map[string]string{}
	var out []Diagnostic
	for _, tag := range block.NodeChildren() {
		if tag.Kind != syntax.NDocTagField {
			continue
		}
		toks := tag.Tokens()
		idx := 0
		if idx < len(toks) && strings.HasPrefix(toks[idx].Text(), "visibility:") {
			idx++
		}
		if idx >= len(toks) {
			continue
		}
		name := toks[idx].Text()
		typeText := ""
		if tc := tag.NodeChildren(); len(tc) > 0 {
			var walk func(n *syntax.Node)
			walk = func(n *syntax.Node) {
				for _, c := range n.Children {
					switch v := c.(type) {
					case *syntax.TokenNode:
						typeText += v.Text()
					case *syntax.Node:
						walk(v)
					}
				}
			}
			walk(tc[0])
		}
		if prev, ok := seen[name]; ok {
			if prev != typeText {
				start, end := tag.Range()
				out = append(out, Diagnostic{Range: Range{Start: start, End: end}, Message: fmt.Sprintf("field %q already declared with a different type", name)})
			}
			continue
		}
		seen[name] = typeText
	}
	return out
}

// ---- require-module-not-visible ----

// requireModuleNotVisibleChecker flags a `require(path)` call whose target
// module restricted itself via `---@export namespace` when the calling
// file's own enclosing `---@namespace`/`---@module` doesn't share the
// target's namespace as a textual prefix (spec §9 Open Question c).
func requireModuleNotVisibleChecker() Checker {
	return newChecker("require-module-not-visible", SeverityError, func(ctx *Context) []Diagnostic {
		var out []Diagnostic
		if ctx.ModuleIx == nil {
			return out
		}
		callerNs, _ := ctx.ModuleIx.NamespaceOf(ctx.Model.File)
		for _, n := range collect(ctx.Tree.Root, syntax.NCallExpr) {
			callee, _ := n.Children[0].(*syntax.Node)
			if callee == nil || callee.Kind != syntax.NNameExpr {
				continue
			}
			if tok := firstToken(callee); tok == nil || tok.Text() != "require" {
				continue
			}
			args, _ := n.Children[1].(*syntax.Node)
			if args == nil {
				continue
			}
			argExprs := args.NodeChildren()
			if len(argExprs) == 0 || argExprs[0].Kind != syntax.NLiteralExpr {
				continue
			}
			pathTok := firstToken(argExprs[0])
			if pathTok == nil || pathTok.Kind() != syntax.TokString {
				continue
			}
			path := unquote(pathTok.Text())
			entry, ok := ctx.ModuleIx.Resolve(module.Path(path))
			if !ok || !entry.ExportRestricted {
				continue
			}
			if entry.Namespace != "" && strings.HasPrefix(callerNs, entry.Namespace) {
				continue
			}
			start, end := n.Range()
			out = append(out, Diagnostic{Range: Range{Start: start, End: end}, Message: fmt.Sprintf("module %q restricts require to namespace %q", path, entry.Namespace)})
		}
		return out
	})
}

// ---- await-in-sync (dormant) ----

// awaitInSyncChecker is registered dormant per the spec §9 Open Question
// decision recorded in DESIGN.md: async/await is a documentation-only
// convention with no runtime coroutine tracking in this engine, so the
// check function reports nothing, even when a workspace enables the
// checker via diagnostics.enables.
func awaitInSyncChecker() Checker {
	return newChecker("await-in-sync", SeverityWarning, func(ctx *Context) []Diagnostic {
		return nil
	})
}
