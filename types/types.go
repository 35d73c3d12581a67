// Package types implements spec components D (Type Decl Index) and H (Type
// algebra): the Type algebraic sum, the union/intersection/subtract/subtype
// operations over it, and the cross-file TypeDecl registry.
package types

import (
	"sort"
	"strings"

	"github.com/oxhq/emmylua-core/vfs"
)

// Kind tags a Type's variant.
type Kind int

const (
	KNil Kind = iota
	KBoolean
	KInteger
	KNumber
	KString
	KThread
	KUserdata
	KIO
	KFunction
	KTable
	KAny
	KUnknown
	KNever

	KIntegerConst
	KFloatConst
	KStringConst
	KBooleanConst

	KDocIntegerConst
	KDocStringConst
	KDocBooleanConst

	KTuple
	KArray
	KObject
	KTableConst
	KTableGeneric

	KRef   // first-class reference to an instance of a named type decl
	KDef   // the type decl itself, used where the class is first-class
	KGeneric

	KDocFunction
	KSignature
	KFunctionKind // a bare, unsignatured callable ("function")

	KUnion
	KMultiLineUnion
	KIntersection
	KAttributed
	KInstance
	KVariadic

	KLanguage
	KDocAttribute
)

// Type is the algebraic sum described by spec §3. Only the fields relevant
// to a Type's Kind are populated; the rest are zero.
type Type struct {
	Kind Kind

	// primitives/literals
	IntVal   int64
	FloatVal float64
	StrVal   string
	BoolVal  bool

	// structural
	Elems   []*Type          // Tuple, Union, Intersection, TableGeneric args
	Fields  map[Key]*Type    // Object
	SyntaxOrigin int         // TableConst / Instance: originating syntax position
	Inner   *Type            // Array elem, Variadic inner, Attributed base, Instance base

	// nominal
	DeclId   TypeDeclId // Ref, Def, Generic base
	Generics []*Type    // Generic args

	// doc-only / attribute
	AttrName string
	AttrArgs []*Type
}

// Key is an Object/Member key: integer index, string name, or computed
// (none of the above — represented by KindNone with no payload).
type Key struct {
	Kind KeyKind
	Int  int64
	Name string
}

type KeyKind int

const (
	KeyNone KeyKind = iota
	KeyInt
	KeyString
	KeyComputed
)

func StringKey(s string) Key { return Key{Kind: KeyString, Name: s} }
func IntKey(i int64) Key     { return Key{Kind: KeyInt, Int: i} }

// Convenience singleton constructors for primitives, matching the teacher's
// preference for small value-returning helpers over exported global vars
// that callers could mutate.
func Nil() *Type     { return &Type{Kind: KNil} }
func Boolean() *Type { return &Type{Kind: KBoolean} }
func Integer() *Type { return &Type{Kind: KInteger} }
func Number() *Type  { return &Type{Kind: KNumber} }
func String() *Type  { return &Type{Kind: KString} }
func Thread() *Type  { return &Type{Kind: KThread} }
func Userdata() *Type{ return &Type{Kind: KUserdata} }
func Table() *Type   { return &Type{Kind: KTable} }
func Any() *Type     { return &Type{Kind: KAny} }
func Unknown() *Type { return &Type{Kind: KUnknown} }
func Never() *Type   { return &Type{Kind: KNever} }

func IntConst(i int64) *Type    { return &Type{Kind: KIntegerConst, IntVal: i} }
func FloatConst(f float64) *Type { return &Type{Kind: KFloatConst, FloatVal: f} }
func StrConst(s string) *Type   { return &Type{Kind: KStringConst, StrVal: s} }
func BoolConst(b bool) *Type    { return &Type{Kind: KBooleanConst, BoolVal: b} }

func Ref(id TypeDeclId) *Type { return &Type{Kind: KRef, DeclId: id} }
func Def(id TypeDeclId) *Type { return &Type{Kind: KDef, DeclId: id} }

// isPrimitive reports whether k is one of the base (non-const, non-combinator)
// value-category primitives that constants collapse into.
func isPrimitive(k Kind) bool {
	switch k {
	case KNil, KBoolean, KInteger, KNumber, KString, KThread, KUserdata, KIO, KFunction, KTable, KAny, KUnknown, KNever:
		return true
	}
	return false
}

// constBase returns the primitive Kind a literal constant collapses into
// when absorbed by its own primitive in a union (spec §4.H).
func constBase(k Kind) (Kind, bool) {
	switch k {
	case KIntegerConst, KDocIntegerConst:
		return KInteger, true
	case KFloatConst:
		return KNumber, true
	case KStringConst, KDocStringConst:
		return KString, true
	case KBooleanConst, KDocBooleanConst:
		return KBoolean, true
	}
	return 0, false
}

// structuralEqual is the "structural equality" union-dedup uses: same kind,
// same literal payload, or same DeclId for nominal refs, recursively for
// combinators. It is not a subtype check.
func structuralEqual(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KIntegerConst, KDocIntegerConst:
		return a.IntVal == b.IntVal
	case KFloatConst:
		return a.FloatVal == b.FloatVal
	case KStringConst, KDocStringConst:
		return a.StrVal == b.StrVal
	case KBooleanConst, KDocBooleanConst:
		return a.BoolVal == b.BoolVal
	case KRef, KDef:
		return a.DeclId == b.DeclId
	case KGeneric:
		if a.DeclId != b.DeclId || len(a.Generics) != len(b.Generics) {
			return false
		}
		for i := range a.Generics {
			if !structuralEqual(a.Generics[i], b.Generics[i]) {
				return false
			}
		}
		return true
	case KArray, KVariadic:
		return structuralEqual(a.Inner, b.Inner)
	case KTuple, KTableGeneric:
		if len(a.Elems) != len(b.Elems) {
			return false
		}
		for i := range a.Elems {
			if !structuralEqual(a.Elems[i], b.Elems[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Union implements spec §4.H's union contract: Any annihilates, Never
// absorbs, Unknown is identity on the left and erased on the right,
// primitives absorb their own constants, nominal refs dedupe by TypeDeclId,
// and nested unions flatten.
func Union(ts ...*Type) *Type {
	var flat []*Type
	var flatten func(*Type)
	flatten = func(t *Type) {
		if t == nil {
			return
		}
		if t.Kind == KUnion {
			for _, e := range t.Elems {
				flatten(e)
			}
			return
		}
		flat = append(flat, t)
	}
	for _, t := range ts {
		flatten(t)
	}

	for _, t := range flat {
		if t.Kind == KAny {
			return Any()
		}
	}

	var kept []*Type
	for _, t := range flat {
		if t.Kind == KNever {
			continue
		}
		kept = append(kept, t)
	}
	if len(kept) == 0 {
		return Never()
	}
	flat = kept

	// Unknown is identity on the left: if the only other operand position is
	// itself Unknown it stays; otherwise an Unknown mixed with anything
	// concrete is erased (T).
	hasUnknown := false
	var nonUnknown []*Type
	for _, t := range flat {
		if t.Kind == KUnknown {
			hasUnknown = true
			continue
		}
		nonUnknown = append(nonUnknown, t)
	}
	if len(nonUnknown) == 0 {
		if hasUnknown {
			return Unknown()
		}
		return Never()
	}
	flat = nonUnknown

	// primitives absorb their own constants
	basesPresent := map[Kind]bool{}
	for _, t := range flat {
		if isPrimitive(t.Kind) {
			basesPresent[t.Kind] = true
		}
	}
	var absorbed []*Type
	for _, t := range flat {
		if base, ok := constBase(t.Kind); ok && basesPresent[base] {
			continue
		}
		absorbed = append(absorbed, t)
	}
	flat = absorbed

	// equal boolean constants collapse; differing ones collapse to boolean
	trueCount, falseCount := 0, 0
	var withoutBoolConst []*Type
	for _, t := range flat {
		if t.Kind == KBooleanConst {
			if t.BoolVal {
				trueCount++
			} else {
				falseCount++
			}
			continue
		}
		withoutBoolConst = append(withoutBoolConst, t)
	}
	if trueCount > 0 && falseCount > 0 {
		withoutBoolConst = append(withoutBoolConst, Boolean())
	} else if trueCount > 0 {
		withoutBoolConst = append(withoutBoolConst, BoolConst(true))
	} else if falseCount > 0 {
		withoutBoolConst = append(withoutBoolConst, BoolConst(false))
	}
	flat = withoutBoolConst

	// dedup by structural equality, with Ref deduped by TypeDeclId
	var out []*Type
	for _, t := range flat {
		dup := false
		for _, o := range out {
			if structuralEqual(t, o) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, t)
		}
	}

	if len(out) == 1 {
		return out[0]
	}
	return &Type{Kind: KUnion, Elems: out}
}

// Subtract implements T \ U per spec §4.H.
func Subtract(t, u *Type, resolve func(TypeDeclId) *TypeDecl) *Type {
	if t == nil || u == nil {
		return t
	}
	if t.Kind == KUnion {
		var survivors []*Type
		for _, e := range t.Elems {
			s := Subtract(e, u, resolve)
			if s.Kind != KNever {
				survivors = append(survivors, s)
			}
		}
		return Union(survivors...)
	}
	if structuralEqual(t, u) {
		if base, ok := constBase(t.Kind); ok {
			return &Type{Kind: base}
		}
		return Never()
	}
	if isPrimitive(u.Kind) {
		if base, ok := constBase(t.Kind); ok && base == u.Kind {
			return Never()
		}
		if t.Kind == u.Kind {
			return Never()
		}
	}
	if t.Kind == KTable && u.Kind == KRef {
		if resolve != nil {
			if decl := resolve(u.DeclId); decl != nil && decl.Kind == DeclAlias && decl.AliasOf != nil {
				return Subtract(t, decl.AliasOf, resolve)
			}
		}
	}
	if t.Kind == KUserdata && u.Kind == KRef {
		return t // userdata-tagged refs are preserved against subtraction
	}
	return t
}

// Subtype reports whether t is a subtype of u (t <: u), given a resolver for
// nominal supertype chains and alias unfolding.
func Subtype(t, u *Type, resolve func(TypeDeclId) *TypeDecl) bool {
	if t == nil || u == nil {
		return false
	}
	if u.Kind == KAny || t.Kind == KNever {
		return true
	}
	if t.Kind == KAny {
		return u.Kind == KAny || u.Kind == KUnknown
	}
	if base, ok := constBase(t.Kind); ok && isPrimitive(u.Kind) && base == u.Kind {
		return true
	}
	if structuralEqual(t, u) {
		return true
	}
	if t.Kind == KUnion {
		for _, e := range t.Elems {
			if !Subtype(e, u, resolve) {
				return false
			}
		}
		return true
	}
	if u.Kind == KUnion {
		for _, e := range u.Elems {
			if Subtype(t, e, resolve) {
				return true
			}
		}
		return false
	}
	if t.Kind == KTuple && u.Kind == KTuple {
		if len(t.Elems) != len(u.Elems) {
			return false
		}
		for i := range t.Elems {
			if !Subtype(t.Elems[i], u.Elems[i], resolve) {
				return false
			}
		}
		return true
	}
	if t.Kind == KArray && u.Kind == KArray {
		return Subtype(t.Inner, u.Inner, resolve)
	}
	if t.Kind == KDocFunction && u.Kind == KDocFunction {
		if len(t.Elems) != len(u.Elems) {
			return false
		}
		// parameter contravariance
		for i := range t.Elems {
			if !Subtype(u.Elems[i], t.Elems[i], resolve) {
				return false
			}
		}
		// return covariance
		return Subtype(t.Inner, u.Inner, resolve)
	}
	if (t.Kind == KRef || t.Kind == KDef) && (u.Kind == KRef || u.Kind == KDef) {
		if t.DeclId == u.DeclId {
			return true
		}
		if resolve == nil {
			return false
		}
		return subtypeNominal(t.DeclId, u.DeclId, resolve, map[TypeDeclId]bool{})
	}
	return false
}

func subtypeNominal(id, target TypeDeclId, resolve func(TypeDeclId) *TypeDecl, seen map[TypeDeclId]bool) bool {
	if seen[id] {
		return false
	}
	seen[id] = true
	decl := resolve(id)
	if decl == nil {
		return false
	}
	for _, s := range decl.Supers {
		if s == target {
			return true
		}
		if subtypeNominal(s, target, resolve, seen) {
			return true
		}
	}
	return false
}

// UnfoldAlias repeatedly replaces alias refs with their origin type, up to a
// cycle-detection bound; a cycle collapses to Any per spec's alias invariant.
func UnfoldAlias(t *Type, resolve func(TypeDeclId) *TypeDecl) *Type {
	seen := map[TypeDeclId]bool{}
	for t != nil && t.Kind == KRef {
		decl := resolve(t.DeclId)
		if decl == nil || decl.Kind != DeclAlias || decl.AliasOf == nil {
			return t
		}
		if seen[t.DeclId] {
			return Any()
		}
		seen[t.DeclId] = true
		t = decl.AliasOf
	}
	return t
}

// TypeDeclId uniquely identifies a TypeDecl by its full dotted name (spec
// §3 invariant: "A TypeDeclId is uniquely identified by its full-dotted
// name").
type TypeDeclId string

type DeclKind int

const (
	DeclClass DeclKind = iota
	DeclAlias
	DeclEnum
	DeclAttribute
)

// GenericParam is one generic parameter on a class/alias/function.
type GenericParam struct {
	Name       string
	Constraint *Type
}

type EnumVariant struct {
	Name  string
	Value *Type // nil if the variant has no explicit value
}

// TypeDecl is the merged, cross-file record for one full-dotted name (spec
// §4.D). Fields/supers accumulate as more files contribute to the same name.
type TypeDecl struct {
	Id       TypeDeclId
	Kind     DeclKind
	Generics []GenericParam
	Supers   []TypeDeclId
	Fields   map[Key]*Type
	Files    map[vfs.FileId]bool

	AliasOf  *Type // DeclAlias only
	EnumKey  bool  // DeclEnum registered with the `Name: T` form
	EnumPartial bool
	Variants []EnumVariant

	AttrParams []GenericParam // DeclAttribute only
}

// Index is the cross-file TypeDecl registry (component D).
type Index struct {
	decls map[TypeDeclId]*TypeDecl
}

func NewIndex() *Index { return &Index{decls: map[TypeDeclId]*TypeDecl{}} }

func (ix *Index) Resolve(id TypeDeclId) *TypeDecl { return ix.decls[id] }

func (ix *Index) All() []*TypeDecl {
	out := make([]*TypeDecl, 0, len(ix.decls))
	for _, d := range ix.decls {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

// RegisterClass registers or merges a class decl: first declaration wins for
// Kind, supertypes are unioned+deduplicated, and the first non-empty generic
// list is kept. Fields are not merged here: SetField adds them, and an
// existing field keeps its type unless SetField is called with override.
func (ix *Index) RegisterClass(id TypeDeclId, file vfs.FileId, generics []GenericParam, supers []TypeDeclId) *TypeDecl {
	d := ix.getOrCreate(id, DeclClass, file)
	for _, s := range supers {
		if !containsId(d.Supers, s) {
			d.Supers = append(d.Supers, s)
		}
	}
	if len(d.Generics) == 0 {
		d.Generics = generics
	}
	return d
}

func (ix *Index) RegisterAlias(id TypeDeclId, file vfs.FileId, origin *Type) *TypeDecl {
	d := ix.getOrCreate(id, DeclAlias, file)
	if d.AliasOf == nil {
		d.AliasOf = origin
	}
	return d
}

func (ix *Index) RegisterEnum(id TypeDeclId, file vfs.FileId, keyed, partial bool, variants []EnumVariant) *TypeDecl {
	d := ix.getOrCreate(id, DeclEnum, file)
	d.EnumKey = d.EnumKey || keyed
	d.EnumPartial = d.EnumPartial || partial
	d.Variants = append(d.Variants, variants...)
	return d
}

func (ix *Index) RegisterAttribute(id TypeDeclId, file vfs.FileId, params []GenericParam) *TypeDecl {
	d := ix.getOrCreate(id, DeclAttribute, file)
	if len(d.AttrParams) == 0 {
		d.AttrParams = params
	}
	return d
}

// SetField adds or overwrites a field on a type decl. override controls
// code-vs-doc precedence for an already-present field (the
// strict.meta_override_file_define Open Question, pinned in DESIGN.md): when
// override is true the new type wins even if a field already exists.
func (ix *Index) SetField(id TypeDeclId, key Key, t *Type, override bool) {
	d := ix.decls[id]
	if d == nil {
		return
	}
	if d.Fields == nil {
		d.Fields = map[Key]*Type{}
	}
	if _, exists := d.Fields[key]; exists && !override {
		return
	}
	d.Fields[key] = t
}

// RemoveFile drops every contribution file made to this index, deleting any
// TypeDecl left with no remaining file-of-origin (spec §3 lifecycle: "Type
// decls outlive individual files if any other file still references them").
func (ix *Index) RemoveFile(file vfs.FileId) {
	for id, d := range ix.decls {
		delete(d.Files, file)
		if len(d.Files) == 0 {
			delete(ix.decls, id)
		}
	}
}

func (ix *Index) getOrCreate(id TypeDeclId, kind DeclKind, file vfs.FileId) *TypeDecl {
	d, ok := ix.decls[id]
	if !ok {
		d = &TypeDecl{Id: id, Kind: kind, Fields: map[Key]*Type{}, Files: map[vfs.FileId]bool{}}
		ix.decls[id] = d
	}
	d.Files[file] = true
	return d
}

func containsId(xs []TypeDeclId, x TypeDeclId) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// DottedName joins namespace segments into a TypeDeclId the way @namespace
// and @class Name paths are composed (e.g. "mygame" + "Player" ->
// "mygame.Player").
func DottedName(parts ...string) TypeDeclId {
	return TypeDeclId(strings.Join(parts, "."))
}
