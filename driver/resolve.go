package driver

import (
	"github.com/oxhq/emmylua-core/decl"
	"github.com/oxhq/emmylua-core/syntax"
)

// newScopeResolver builds a real lexically-scoped infer.Resolver over idx's
// scope tree: it descends from the root to the innermost scope enclosing a
// reference's position, then walks outward through parent scopes looking
// for a decl with a matching name, stopping at the first (innermost) match —
// ordinary lexical shadowing. This replaces the name-anywhere-in-the-file
// matching the package-level tests use as a fixture shortcut (see e.g.
// infer_test.go's setup) with the real thing, since a Driver spans whole
// files where two unrelated locals can share a name in different scopes.
func newScopeResolver(idx *decl.Index) func(n *syntax.Node) (decl.DeclId, bool) {
	return func(n *syntax.Node) (decl.DeclId, bool) {
		toks := n.Tokens()
		if len(toks) != 1 {
			return 0, false
		}
		name := toks[0].Text()
		start, _ := n.Range()
		scope := enclosingScope(idx.Root, start)
		return lookupName(scope, name)
	}
}

// enclosingScope descends idx's scope tree to the innermost child scope
// whose owning node's range contains pos, falling back to root if pos lies
// outside every child (shouldn't happen for a position drawn from the same
// tree the scopes were built from, but a reference passed from a stale tree
// should degrade to "resolve nothing found" rather than panic).
func enclosingScope(root *decl.Scope, pos int) *decl.Scope {
	best := root
	for {
		advanced := false
		for _, c := range best.Children {
			if c.Child == nil || c.Child.Node == nil {
				continue
			}
			start, end := c.Child.Node.Range()
			if pos >= start && pos < end {
				best = c.Child
				advanced = true
				break
			}
		}
		if !advanced {
			return best
		}
	}
}

// lookupName finds the nearest-enclosing-scope decl named name, preferring
// the last one declared within a given scope (source-order shadowing of a
// repeated local name in the same block).
func lookupName(scope *decl.Scope, name string) (decl.DeclId, bool) {
	for s := scope; s != nil; s = s.Parent {
		var found *decl.Decl
		for _, c := range s.Children {
			if c.Decl != nil && c.Decl.Name == name {
				found = c.Decl
			}
		}
		if found != nil {
			return found.ID, true
		}
	}
	return 0, false
}
