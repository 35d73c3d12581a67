package luaconfig

import (
	"fmt"
	"strconv"

	"github.com/oxhq/emmylua-core/diagnostics"
	"github.com/oxhq/emmylua-core/property"
	"github.com/oxhq/emmylua-core/syntax"
	"github.com/oxhq/emmylua-core/types"
)

// RegisterCheckers adds every LuaConfig overlay checker this package
// implements into r, matching the original's check_luaconfig dispatch
// (duplicate_primary_key / invalid_index_field / invalid_ref) plus two more
// this port adds real logic for (duplicate_index_value, which the original
// splits out of its generic duplicate-key check for config-domain
// messaging, and invalid_flags_enum_value, grounded on
// attribute/flags_enum_value.rs), plus the v.range/v.set/v.size validator
// family (attributes/v_size.rs, attributes/v_set.rs,
// diagnostic/checker/luaconfig/attribute/vrange_signature.rs,
// diagnostic/checker/luaconfig/data_validator/*.rs). The original validates
// those attributes against any attributed container generic
// (`array<[v.set(...)] int>`); this port has no attributed-generic-container
// type of its own, so the three validators are scoped down to a Bean field's
// own declared value, read back against actual ConfigTable row data the same
// way invalid-ref already does — see DESIGN.md.
func RegisterCheckers(r *diagnostics.Registry) {
	r.Register(&duplicatePrimaryKeyChecker{})
	r.Register(&invalidIndexFieldChecker{})
	r.Register(&invalidRefChecker{})
	r.Register(&duplicateIndexValueChecker{})
	r.Register(&invalidFlagsEnumValueChecker{})
	r.Register(&invalidRangeSignatureChecker{})
	r.Register(&invalidRangeValueChecker{})
	r.Register(&invalidSetSignatureChecker{})
	r.Register(&invalidSetValueChecker{})
	r.Register(&duplicateSetElementChecker{})
	r.Register(&invalidSizeSignatureChecker{})
	r.Register(&invalidSizeValueChecker{})
}

// findAttr returns the first AttributeUse named name, case-sensitively
// (EmmyLua attribute names like "t.index"/"v.ref" are dotted identifiers,
// not doc keywords, so no normalization is applied).
func findAttr(uses []property.AttributeUse, name string) *property.AttributeUse {
	for i := range uses {
		if uses[i].Name == name {
			return &uses[i]
		}
	}
	return nil
}

// stringArg reads use's first argument (named "values"/"size"/etc. or
// bare positional) as a string, unwrapping the StrConst/DocStringConst
// literal type parseAttributeUse built it as.
func stringArg(use *property.AttributeUse) (string, bool) {
	if use == nil || len(use.Args) == 0 {
		return "", false
	}
	t := use.Args[0].Type
	if t == nil {
		return "", false
	}
	switch t.Kind {
	case types.KStringConst, types.KDocStringConst:
		return t.StrVal, true
	default:
		return "", false
	}
}

// ---- duplicate-primary-key ----

// duplicatePrimaryKeyChecker flags a ConfigTable literal with two or more
// rows sharing the same primary-key field value, where the primary key is
// the field named by the table class's `---@[t.index("field")]` attribute.
// Grounded on compilation/analyzer/luaconfig/mod.rs's "collect ConfigTable
// primary key fields" phase, read back against the literal data instead of
// just recorded.
type duplicatePrimaryKeyChecker struct{}

func (*duplicatePrimaryKeyChecker) Code() string { return "duplicate-primary-key" }
func (*duplicatePrimaryKeyChecker) DefaultSeverity() diagnostics.Severity {
	return diagnostics.SeverityError
}

func (*duplicatePrimaryKeyChecker) Check(ctx *diagnostics.Context) []diagnostics.Diagnostic {
	var out []diagnostics.Diagnostic
	for _, lit := range Discover(ctx.Tree.Root, ctx.Model.TypeIx) {
		keyField, ok := primaryKeyField(ctx.Model.Properties, lit.TableId)
		if !ok {
			continue
		}
		seen := map[string]bool{}
		for _, row := range Rows(lit.Table) {
			val := FieldValue(row.Body, keyField)
			key := LiteralKey(val)
			if key == "" {
				continue
			}
			if seen[key] {
				start, end := row.Body.Range()
				out = append(out, diagnostics.Diagnostic{
					Range:   diagnostics.Range{Start: start, End: end},
					Message: fmt.Sprintf("duplicate primary key value %q for %s.%s", key, lit.TableId, keyField),
				})
				continue
			}
			seen[key] = true
		}
	}
	return out
}

// ---- invalid-index-field ----

// invalidIndexFieldChecker flags a ConfigTable class whose `t.index`
// attribute names a field the row Bean doesn't declare.
type invalidIndexFieldChecker struct{}

func (*invalidIndexFieldChecker) Code() string { return "invalid-index-field" }
func (*invalidIndexFieldChecker) DefaultSeverity() diagnostics.Severity {
	return diagnostics.SeverityError
}

func (*invalidIndexFieldChecker) Check(ctx *diagnostics.Context) []diagnostics.Diagnostic {
	var out []diagnostics.Diagnostic
	for _, lit := range Discover(ctx.Tree.Root, ctx.Model.TypeIx) {
		attrs := ctx.Model.Properties.Get(property.SemanticId{Kind: property.IdTypeDecl, Named: string(lit.TableId)}).AttributeUses
		idxAttr := findAttr(attrs, "t.index")
		if idxAttr == nil {
			continue
		}
		keyField, ok := stringArg(idxAttr)
		if !ok {
			continue
		}
		rowDecl := ctx.Model.TypeIx.Resolve(lit.RowId)
		if rowDecl == nil {
			continue
		}
		if _, exists := rowDecl.Fields[types.StringKey(keyField)]; !exists {
			start, end := lit.Table.Range()
			out = append(out, diagnostics.Diagnostic{
				Range:   diagnostics.Range{Start: start, End: end},
				Message: fmt.Sprintf("t.index(%q) names a field %s doesn't declare", keyField, lit.RowId),
			})
		}
	}
	return out
}

// primaryKeyField resolves a ConfigTable class's declared primary-key field
// name from its t.index attribute.
func primaryKeyField(props *property.Index, tableId types.TypeDeclId) (string, bool) {
	attrs := props.Get(property.SemanticId{Kind: property.IdTypeDecl, Named: string(tableId)}).AttributeUses
	return stringArg(findAttr(attrs, "t.index"))
}

// ---- invalid-ref ----

// invalidRefChecker flags a Bean field's `---@[v.ref("TbTarget")]` value
// that doesn't match any primary-key value found in TbTarget's own data
// literal elsewhere in the same file — the map-table cross-reference
// original's invalid_ref.rs validates.
type invalidRefChecker struct{}

func (*invalidRefChecker) Code() string { return "invalid-ref" }
func (*invalidRefChecker) DefaultSeverity() diagnostics.Severity { return diagnostics.SeverityError }

func (*invalidRefChecker) Check(ctx *diagnostics.Context) []diagnostics.Diagnostic {
	literals := Discover(ctx.Tree.Root, ctx.Model.TypeIx)
	var out []diagnostics.Diagnostic
	for _, lit := range literals {
		rowDecl := ctx.Model.TypeIx.Resolve(lit.RowId)
		if rowDecl == nil {
			continue
		}
		for key := range rowDecl.Fields {
			if key.Kind != types.KeyString {
				continue
			}
			fieldName := key.Name
			attrs := ctx.Model.Properties.Get(property.SemanticId{Kind: property.IdMember, Named: fieldName}).AttributeUses
			refAttr := findAttr(attrs, "v.ref")
			if refAttr == nil {
				continue
			}
			targetName, ok := stringArg(refAttr)
			if !ok {
				continue
			}
			validKeys, found := primaryKeyValues(ctx.Model.Properties, literals, types.TypeDeclId(targetName))
			if !found {
				continue
			}
			for _, row := range Rows(lit.Table) {
				val := FieldValue(row.Body, fieldName)
				key := LiteralKey(val)
				if key == "" || validKeys[key] {
					continue
				}
				start, end := val.Range()
				out = append(out, diagnostics.Diagnostic{
					Range:   diagnostics.Range{Start: start, End: end},
					Message: fmt.Sprintf("%q is not a primary key of %s", key, targetName),
				})
			}
		}
	}
	return out
}

// primaryKeyValues gathers the set of primary-key field values present in
// target's own data literal(s), using target's own t.index attribute to
// find the key field, or (nil, false) if target has no data literal in this
// file (nothing to cross-check against) or declares no primary key.
func primaryKeyValues(props *property.Index, literals []Literal, target types.TypeDeclId) (map[string]bool, bool) {
	keyField, ok := primaryKeyField(props, target)
	if !ok {
		return nil, false
	}
	found := false
	out := map[string]bool{}
	for _, lit := range literals {
		if lit.TableId != target {
			continue
		}
		found = true
		for _, row := range Rows(lit.Table) {
			if v := FieldValue(row.Body, keyField); v != nil {
				if k := LiteralKey(v); k != "" {
					out[k] = true
				}
			}
		}
	}
	return out, found
}

// ---- duplicate-index-value ----

// duplicateIndexValueChecker flags a ConfigTable map literal
// (`{ [1] = {...}, [1] = {...} }`) with two rows sharing the same explicit
// index key — the config-domain counterpart of the generic duplicate-index
// checker, scoped to ConfigTable literals so its message can name the
// table.
type duplicateIndexValueChecker struct{}

func (*duplicateIndexValueChecker) Code() string { return "duplicate-index-value" }
func (*duplicateIndexValueChecker) DefaultSeverity() diagnostics.Severity {
	return diagnostics.SeverityError
}

func (*duplicateIndexValueChecker) Check(ctx *diagnostics.Context) []diagnostics.Diagnostic {
	var out []diagnostics.Diagnostic
	for _, lit := range Discover(ctx.Tree.Root, ctx.Model.TypeIx) {
		seen := map[string]bool{}
		for _, row := range Rows(lit.Table) {
			if row.Key == nil {
				continue
			}
			key := LiteralKey(row.Key)
			if key == "" {
				continue
			}
			if seen[key] {
				start, end := row.Key.Range()
				out = append(out, diagnostics.Diagnostic{
					Range:   diagnostics.Range{Start: start, End: end},
					Message: fmt.Sprintf("duplicate index value %q in %s", key, lit.TableId),
				})
				continue
			}
			seen[key] = true
		}
	}
	return out
}

// ---- invalid-flags-enum-value ----

// invalidFlagsEnumValueChecker flags a `---@[flags]`-attributed enum whose
// declared integer variant values aren't all powers of two (a zero value is
// allowed — it is the common "none" flag), grounded on
// attribute/flags_enum_value.rs.
type invalidFlagsEnumValueChecker struct{}

func (*invalidFlagsEnumValueChecker) Code() string { return "invalid-flags-enum-value" }
func (*invalidFlagsEnumValueChecker) DefaultSeverity() diagnostics.Severity {
	return diagnostics.SeverityWarning
}

func (*invalidFlagsEnumValueChecker) Check(ctx *diagnostics.Context) []diagnostics.Diagnostic {
	var out []diagnostics.Diagnostic
	var walk func(n *syntax.Node)
	walk = func(n *syntax.Node) {
		if n == nil {
			return
		}
		if n.Kind == syntax.NLocalStmt || n.Kind == syntax.NAssignStmt {
			if cs := n.Children; len(cs) > 0 {
				if block, ok := cs[0].(*syntax.Node); ok && block.Kind == syntax.NDocBlock {
					out = append(out, checkFlagsEnumBlock(ctx, block, n)...)
				}
			}
		}
		for _, c := range n.NodeChildren() {
			walk(c)
		}
	}
	walk(ctx.Tree.Root)
	return out
}

func checkFlagsEnumBlock(ctx *diagnostics.Context, block, stmt *syntax.Node) []diagnostics.Diagnostic {
	var enumName string
	for _, tag := range block.NodeChildren() {
		if tag.Kind == syntax.NDocTagEnum {
			if toks := tag.Tokens(); len(toks) > 0 {
				name := toks[0].Text()
				if i := indexOfColon(name); i >= 0 {
					name = name[:i]
				}
				enumName = trimSpaceASCII(name)
			}
		}
	}
	if enumName == "" {
		return nil
	}
	attrs := ctx.Model.Properties.Get(property.SemanticId{Kind: property.IdTypeDecl, Named: enumName}).AttributeUses
	if findAttr(attrs, "flags") == nil {
		return nil
	}
	tbl := initializerTable(stmt)
	if tbl == nil {
		return nil
	}
	var out []diagnostics.Diagnostic
	for _, f := range tbl.NodeChildren() {
		if f.Kind != syntax.NTableFieldNamed {
			continue
		}
		toks := f.Tokens()
		cs := f.NodeChildren()
		if len(toks) == 0 || len(cs) == 0 {
			continue
		}
		v := LiteralKey(cs[0])
		if v == "" {
			continue
		}
		iv, ok := parseDecInt(v)
		if !ok || iv == 0 {
			continue
		}
		if iv&(iv-1) != 0 {
			start, end := cs[0].Range()
			out = append(out, diagnostics.Diagnostic{
				Range:   diagnostics.Range{Start: start, End: end},
				Message: fmt.Sprintf("flags enum %s field %s value %d must be a power of two", enumName, toks[0].Text(), iv),
			})
		}
	}
	return out
}

func indexOfColon(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return i
		}
	}
	return -1
}

func trimSpaceASCII(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}

func parseDecInt(s string) (int64, bool) {
	neg := false
	i := 0
	if len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		i = 1
	}
	if i >= len(s) {
		return 0, false
	}
	var v int64
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
		v = v*10 + int64(s[i]-'0')
	}
	if neg {
		v = -v
	}
	return v, true
}

// numericArg reads an AttributeArg's literal as a float64, accepting either
// an integer or float const (the two numeric literal kinds
// driver/doctags.go's parseAttrLiteral can produce).
func numericArg(a property.AttributeArg) (float64, bool) {
	if a.Type == nil {
		return 0, false
	}
	switch a.Type.Kind {
	case types.KIntegerConst, types.KDocIntegerConst:
		return float64(a.Type.IntVal), true
	case types.KFloatConst:
		return a.Type.FloatVal, true
	default:
		return 0, false
	}
}

// numericLiteral reads a data-literal expression node's value as a float64.
func numericLiteral(e *syntax.Node) (float64, bool) {
	if e == nil || e.Kind != syntax.NLiteralExpr {
		return 0, false
	}
	toks := e.Tokens()
	if len(toks) == 0 || toks[0].Kind() != syntax.TokNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(toks[0].Text(), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// attrArgKey renders an attribute argument's literal value as a dedup/lookup
// key the same way LiteralKey does for a data-literal node, so a v.set
// attribute's declared values and a row's actual field value compare equal
// when they denote the same int or string.
func attrArgKey(t *types.Type) (string, bool) {
	if t == nil {
		return "", false
	}
	switch t.Kind {
	case types.KIntegerConst, types.KDocIntegerConst:
		return strconv.FormatInt(t.IntVal, 10), true
	case types.KStringConst, types.KDocStringConst:
		return t.StrVal, true
	default:
		return "", false
	}
}

// rangeFields walks every discovered ConfigTable literal's row Beans,
// calling fn once per (literal, field) pair that carries an attribute named
// attrName — shared iteration shape for the v.range/v.set/v.size signature
// and value checkers below, each of which needs the same "every Bean field
// of every literal" walk (a field's signature is re-checked once per literal
// using it, same as invalid-index-field's own per-literal check above).
func rangeFields(ctx *diagnostics.Context, attrName string, fn func(lit Literal, fieldName string, attr *property.AttributeUse)) {
	for _, lit := range Discover(ctx.Tree.Root, ctx.Model.TypeIx) {
		rowDecl := ctx.Model.TypeIx.Resolve(lit.RowId)
		if rowDecl == nil {
			continue
		}
		for key := range rowDecl.Fields {
			if key.Kind != types.KeyString {
				continue
			}
			fieldName := key.Name
			attrs := ctx.Model.Properties.Get(property.SemanticId{Kind: property.IdMember, Named: fieldName}).AttributeUses
			attr := findAttr(attrs, attrName)
			if attr == nil {
				continue
			}
			fn(lit, fieldName, attr)
		}
	}
}

// ---- invalid-range-signature / invalid-range-value ----

// rangeSpec is a parsed v.range(n) (an exact value) or v.range(min, max)
// (a closed interval) attribute, grounded on attributes/v_size.rs's
// RangeSpec — this port carries min/max inline rather than as a shared type
// since nothing else here needs one.
type rangeSpec struct {
	min, max float64
}

func (r rangeSpec) contains(v float64) bool { return v >= r.min && v <= r.max }

// parseRangeSpec validates a v.range attribute's own declared arguments: one
// or two numeric literals, with min <= max when both are given.
func parseRangeSpec(use *property.AttributeUse) (rangeSpec, bool) {
	if use == nil || len(use.Args) == 0 || len(use.Args) > 2 {
		return rangeSpec{}, false
	}
	vals := make([]float64, 0, len(use.Args))
	for _, a := range use.Args {
		v, ok := numericArg(a)
		if !ok {
			return rangeSpec{}, false
		}
		vals = append(vals, v)
	}
	if len(vals) == 1 {
		return rangeSpec{min: vals[0], max: vals[0]}, true
	}
	if vals[0] > vals[1] {
		return rangeSpec{}, false
	}
	return rangeSpec{min: vals[0], max: vals[1]}, true
}

// invalidRangeSignatureChecker flags a v.range attribute whose own arguments
// don't parse as a valid rangeSpec, grounded on
// diagnostic/checker/luaconfig/attribute/vrange_signature.rs.
type invalidRangeSignatureChecker struct{}

func (*invalidRangeSignatureChecker) Code() string { return "invalid-range-signature" }
func (*invalidRangeSignatureChecker) DefaultSeverity() diagnostics.Severity {
	return diagnostics.SeverityError
}

func (*invalidRangeSignatureChecker) Check(ctx *diagnostics.Context) []diagnostics.Diagnostic {
	var out []diagnostics.Diagnostic
	rangeFields(ctx, "v.range", func(lit Literal, fieldName string, attr *property.AttributeUse) {
		if _, ok := parseRangeSpec(attr); ok {
			return
		}
		start, end := lit.Table.Range()
		out = append(out, diagnostics.Diagnostic{
			Range:   diagnostics.Range{Start: start, End: end},
			Message: fmt.Sprintf("v.range on %s.%s must take one or two numeric bounds with min <= max", lit.RowId, fieldName),
		})
	})
	return out
}

// invalidRangeValueChecker flags a Bean field's actual data value falling
// outside its declared v.range bounds, grounded on
// diagnostic/checker/luaconfig/data_validator's size/range value checks.
type invalidRangeValueChecker struct{}

func (*invalidRangeValueChecker) Code() string { return "invalid-range-value" }
func (*invalidRangeValueChecker) DefaultSeverity() diagnostics.Severity {
	return diagnostics.SeverityError
}

func (*invalidRangeValueChecker) Check(ctx *diagnostics.Context) []diagnostics.Diagnostic {
	var out []diagnostics.Diagnostic
	rangeFields(ctx, "v.range", func(lit Literal, fieldName string, attr *property.AttributeUse) {
		spec, ok := parseRangeSpec(attr)
		if !ok {
			return
		}
		for _, row := range Rows(lit.Table) {
			val := FieldValue(row.Body, fieldName)
			v, ok := numericLiteral(val)
			if !ok {
				continue
			}
			if spec.contains(v) {
				continue
			}
			start, end := val.Range()
			out = append(out, diagnostics.Diagnostic{
				Range:   diagnostics.Range{Start: start, End: end},
				Message: fmt.Sprintf("%v is out of range [%v, %v] for %s.%s", v, spec.min, spec.max, lit.RowId, fieldName),
			})
		}
	})
	return out
}

// ---- invalid-set-signature / invalid-set-value / duplicate-set-element ----

// setSpec is a parsed v.set(a, b, c, ...) attribute: the set of literal int
// or string values a Bean field's data is restricted to, grounded on
// attributes/v_set.rs's SetSpec.
type setSpec struct {
	values map[string]bool
}

// parseSetSpec validates a v.set attribute's own declared arguments: one or
// more literal int/string values (an empty list or a non-literal argument is
// a malformed signature).
func parseSetSpec(use *property.AttributeUse) (setSpec, bool) {
	if use == nil || len(use.Args) == 0 {
		return setSpec{}, false
	}
	values := map[string]bool{}
	for _, a := range use.Args {
		k, ok := attrArgKey(a.Type)
		if !ok {
			return setSpec{}, false
		}
		values[k] = true
	}
	return setSpec{values: values}, true
}

// invalidSetSignatureChecker flags a v.set attribute whose own arguments
// don't parse as a valid setSpec, grounded on
// diagnostic/checker/luaconfig/attribute/vset_signature.rs.
type invalidSetSignatureChecker struct{}

func (*invalidSetSignatureChecker) Code() string { return "invalid-set-signature" }
func (*invalidSetSignatureChecker) DefaultSeverity() diagnostics.Severity {
	return diagnostics.SeverityError
}

func (*invalidSetSignatureChecker) Check(ctx *diagnostics.Context) []diagnostics.Diagnostic {
	var out []diagnostics.Diagnostic
	rangeFields(ctx, "v.set", func(lit Literal, fieldName string, attr *property.AttributeUse) {
		if _, ok := parseSetSpec(attr); ok {
			return
		}
		start, end := lit.Table.Range()
		out = append(out, diagnostics.Diagnostic{
			Range:   diagnostics.Range{Start: start, End: end},
			Message: fmt.Sprintf("v.set on %s.%s must list one or more literal int or string values", lit.RowId, fieldName),
		})
	})
	return out
}

// invalidSetValueChecker flags a Bean field's actual data value not present
// in its declared v.set values, grounded on
// diagnostic/checker/luaconfig/data_validator/duplicate_set_element.rs's
// sibling value-membership check.
type invalidSetValueChecker struct{}

func (*invalidSetValueChecker) Code() string { return "invalid-set-value" }
func (*invalidSetValueChecker) DefaultSeverity() diagnostics.Severity {
	return diagnostics.SeverityError
}

func (*invalidSetValueChecker) Check(ctx *diagnostics.Context) []diagnostics.Diagnostic {
	var out []diagnostics.Diagnostic
	rangeFields(ctx, "v.set", func(lit Literal, fieldName string, attr *property.AttributeUse) {
		spec, ok := parseSetSpec(attr)
		if !ok {
			return
		}
		for _, row := range Rows(lit.Table) {
			val := FieldValue(row.Body, fieldName)
			k := LiteralKey(val)
			if k == "" || spec.values[k] {
				continue
			}
			start, end := val.Range()
			out = append(out, diagnostics.Diagnostic{
				Range:   diagnostics.Range{Start: start, End: end},
				Message: fmt.Sprintf("%q is not one of the declared v.set values for %s.%s", k, lit.RowId, fieldName),
			})
		}
	})
	return out
}

// duplicateSetElementChecker flags a v.set attribute whose own declared
// value list repeats the same value twice, grounded on
// diagnostic/checker/luaconfig/data_validator/duplicate_set_element.rs (the
// original checks a table literal assigned to a `set<T>` generic for
// repeated elements; this port checks the v.set attribute's own declaration
// instead, since this port's type algebra has no attributed set<T> generic
// of its own — see DESIGN.md).
type duplicateSetElementChecker struct{}

func (*duplicateSetElementChecker) Code() string { return "duplicate-set-element" }
func (*duplicateSetElementChecker) DefaultSeverity() diagnostics.Severity {
	return diagnostics.SeverityWarning
}

func (*duplicateSetElementChecker) Check(ctx *diagnostics.Context) []diagnostics.Diagnostic {
	var out []diagnostics.Diagnostic
	rangeFields(ctx, "v.set", func(lit Literal, fieldName string, attr *property.AttributeUse) {
		seen := map[string]bool{}
		for _, a := range attr.Args {
			k, ok := attrArgKey(a.Type)
			if !ok {
				continue
			}
			if !seen[k] {
				seen[k] = true
				continue
			}
			start, end := lit.Table.Range()
			out = append(out, diagnostics.Diagnostic{
				Range:   diagnostics.Range{Start: start, End: end},
				Message: fmt.Sprintf("v.set on %s.%s lists %q more than once", lit.RowId, fieldName, k),
			})
		}
	})
	return out
}

// ---- invalid-size-signature / invalid-size-value ----

// sizeSpec is a parsed v.size(n) (an exact count) or v.size(min, max) (a
// closed count interval) attribute, grounded on attributes/v_size.rs's
// SizeSpec — min/max must be non-negative integers, the same constraint
// validate_size_range applies.
type sizeSpec struct {
	min, max int64
}

func (s sizeSpec) contains(n int64) bool { return n >= s.min && n <= s.max }

func parseSizeSpec(use *property.AttributeUse) (sizeSpec, bool) {
	if use == nil || len(use.Args) == 0 || len(use.Args) > 2 {
		return sizeSpec{}, false
	}
	vals := make([]int64, 0, len(use.Args))
	for _, a := range use.Args {
		if a.Type == nil {
			return sizeSpec{}, false
		}
		switch a.Type.Kind {
		case types.KIntegerConst, types.KDocIntegerConst:
			if a.Type.IntVal < 0 {
				return sizeSpec{}, false
			}
			vals = append(vals, a.Type.IntVal)
		default:
			return sizeSpec{}, false
		}
	}
	if len(vals) == 1 {
		return sizeSpec{min: vals[0], max: vals[0]}, true
	}
	if vals[0] > vals[1] {
		return sizeSpec{}, false
	}
	return sizeSpec{min: vals[0], max: vals[1]}, true
}

// invalidSizeSignatureChecker flags a v.size attribute whose own arguments
// don't parse as a valid sizeSpec.
type invalidSizeSignatureChecker struct{}

func (*invalidSizeSignatureChecker) Code() string { return "invalid-size-signature" }
func (*invalidSizeSignatureChecker) DefaultSeverity() diagnostics.Severity {
	return diagnostics.SeverityError
}

func (*invalidSizeSignatureChecker) Check(ctx *diagnostics.Context) []diagnostics.Diagnostic {
	var out []diagnostics.Diagnostic
	rangeFields(ctx, "v.size", func(lit Literal, fieldName string, attr *property.AttributeUse) {
		if _, ok := parseSizeSpec(attr); ok {
			return
		}
		start, end := lit.Table.Range()
		out = append(out, diagnostics.Diagnostic{
			Range:   diagnostics.Range{Start: start, End: end},
			Message: fmt.Sprintf("v.size on %s.%s must take one or two non-negative integer bounds with min <= max", lit.RowId, fieldName),
		})
	})
	return out
}

// invalidSizeValueChecker flags a Bean field whose own table-constructor
// value has an element count outside its declared v.size bounds, grounded
// on diagnostic/checker/luaconfig/data_validator/invalid_size_value.rs
// (scoped to a Bean field's own nested table value rather than the original's
// attributed array<T>/map<K,V> container types — see DESIGN.md).
type invalidSizeValueChecker struct{}

func (*invalidSizeValueChecker) Code() string { return "invalid-size-value" }
func (*invalidSizeValueChecker) DefaultSeverity() diagnostics.Severity {
	return diagnostics.SeverityError
}

func (*invalidSizeValueChecker) Check(ctx *diagnostics.Context) []diagnostics.Diagnostic {
	var out []diagnostics.Diagnostic
	rangeFields(ctx, "v.size", func(lit Literal, fieldName string, attr *property.AttributeUse) {
		spec, ok := parseSizeSpec(attr)
		if !ok {
			return
		}
		for _, row := range Rows(lit.Table) {
			val := FieldValue(row.Body, fieldName)
			if val == nil || val.Kind != syntax.NTableConstructor {
				continue
			}
			n := int64(len(val.NodeChildren()))
			if spec.contains(n) {
				continue
			}
			start, end := val.Range()
			out = append(out, diagnostics.Diagnostic{
				Range:   diagnostics.Range{Start: start, End: end},
				Message: fmt.Sprintf("container size %d is out of range [%d, %d] for %s.%s", n, spec.min, spec.max, lit.RowId, fieldName),
			})
		}
	})
	return out
}
