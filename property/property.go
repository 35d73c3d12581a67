// Package property implements spec component F: visibility, deprecation,
// attribute uses, decl feature flags, and version guards attached to any
// semantic id (decl, member, type decl, or signature).
package property

import "github.com/oxhq/emmylua-core/types"

// Visibility mirrors EmmyLua's doc visibility tags.
type Visibility int

const (
	Public Visibility = iota
	Protected
	Private
	Internal
	Package
)

// DeprecationKind distinguishes a bare @deprecated from one carrying a
// migration message.
type DeprecationKind int

const (
	NotDeprecated DeprecationKind = iota
	Deprecated
	DeprecatedWithMessage
)

// AttributeUse is one `@[name(args)]` application: a name plus its
// positional argument list, each argument optionally named and optionally
// typed.
type AttributeUse struct {
	Name string
	Args []AttributeArg
}

type AttributeArg struct {
	Name string // empty if positional
	Type *types.Type
}

// VersionCondition gates a decl to a runtime version range, as set by
// `---@version 5.3, 5.4` (inclusive list of accepted levels represented as
// opaque strings here; the syntax layer already validated the tokens).
type VersionCondition struct {
	Levels []string
}

// FeatureFlags are small boolean decl properties that don't warrant their
// own tag-specific type.
type FeatureFlags struct {
	ReadOnly  bool
	NoDiscard bool
	Async     bool
}

// Property is the full metadata record attachable to any semantic id.
type Property struct {
	Visibility      Visibility
	Deprecation     DeprecationKind
	DeprecationMsg  string
	AttributeUses   []AttributeUse
	Features        FeatureFlags
	Version         *VersionCondition

	// SeeRefs and Source carry the informational `---@see`/`---@source`
	// cross-reference tags through to an external hover layer; this engine
	// never renders them itself (hover rendering is a non-goal), it only
	// records them.
	SeeRefs []string
	Source  string
}

// SemanticId is any id a Property can attach to: a decl id, member key, type
// decl id, or signature id, disambiguated by Kind. Defined here (rather than
// importing decl/types/infer, which would create an import cycle with
// property) as a small tagged union of the id spaces those packages own.
type SemanticId struct {
	Kind  SemanticIdKind
	Local uint32 // DeclId, cast by callers
	Named string // TypeDeclId / member key / signature key, cast by callers
}

type SemanticIdKind int

const (
	IdDecl SemanticIdKind = iota
	IdMember
	IdTypeDecl
	IdSignature
)

// Index attaches zero-or-one Property per SemanticId. Most ids carry no
// property at all; Get returns the zero Property (Visibility: Public,
// Deprecation: NotDeprecated) for ids with none recorded, matching the
// "absence of a doc tag means default visibility" rule.
type Index struct {
	props map[SemanticId]*Property
}

func NewIndex() *Index { return &Index{props: map[SemanticId]*Property{}} }

func (ix *Index) Get(id SemanticId) Property {
	if p := ix.props[id]; p != nil {
		return *p
	}
	return Property{Visibility: Public}
}

// Set replaces the whole Property for id.
func (ix *Index) Set(id SemanticId, p Property) {
	cp := p
	ix.props[id] = &cp
}

// ensure returns the mutable record for id, creating a default one if
// absent, for the incremental Add* setters below.
func (ix *Index) ensure(id SemanticId) *Property {
	if p, ok := ix.props[id]; ok {
		return p
	}
	p := &Property{Visibility: Public}
	ix.props[id] = p
	return p
}

func (ix *Index) SetVisibility(id SemanticId, v Visibility) { ix.ensure(id).Visibility = v }

func (ix *Index) SetDeprecated(id SemanticId, msg string) {
	p := ix.ensure(id)
	if msg == "" {
		p.Deprecation = Deprecated
		return
	}
	p.Deprecation = DeprecatedWithMessage
	p.DeprecationMsg = msg
}

func (ix *Index) AddAttributeUse(id SemanticId, use AttributeUse) {
	p := ix.ensure(id)
	p.AttributeUses = append(p.AttributeUses, use)
}

func (ix *Index) SetReadOnly(id SemanticId)  { ix.ensure(id).Features.ReadOnly = true }
func (ix *Index) SetNoDiscard(id SemanticId) { ix.ensure(id).Features.NoDiscard = true }
func (ix *Index) SetAsync(id SemanticId)     { ix.ensure(id).Features.Async = true }

func (ix *Index) SetVersion(id SemanticId, levels []string) {
	ix.ensure(id).Version = &VersionCondition{Levels: levels}
}

func (ix *Index) AddSeeRef(id SemanticId, ref string) {
	p := ix.ensure(id)
	p.SeeRefs = append(p.SeeRefs, ref)
}

func (ix *Index) SetSource(id SemanticId, src string) { ix.ensure(id).Source = src }

// RemoveFile drops every property whose SemanticId belongs to file. Decl and
// member ids don't carry their owning FileId directly in this package (to
// avoid importing decl/vfs), so callers (the driver) must pass the decl ids
// they're about to drop explicitly.
func (ix *Index) RemoveIds(ids []SemanticId) {
	for _, id := range ids {
		delete(ix.props, id)
	}
}
