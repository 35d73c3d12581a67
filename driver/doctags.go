package driver

import (
	"strconv"
	"strings"

	"github.com/oxhq/emmylua-core/decl"
	"github.com/oxhq/emmylua-core/infer"
	"github.com/oxhq/emmylua-core/property"
	"github.com/oxhq/emmylua-core/syntax"
	"github.com/oxhq/emmylua-core/types"
	"github.com/oxhq/emmylua-core/vfs"
)

// docPrimitives maps a bare ---@type name to its primitive Type constructor,
// matching the names EmmyLua's own stdlib meta files use.
var docPrimitives = map[string]func() *types.Type{
	"nil":      types.Nil,
	"boolean":  types.Boolean,
	"bool":     types.Boolean,
	"integer":  types.Integer,
	"int":      types.Integer,
	"number":   types.Number,
	"string":   types.String,
	"thread":   types.Thread,
	"userdata": types.Userdata,
	"table":    types.Table,
	"any":      types.Any,
	"unknown":  types.Unknown,
	"function": func() *types.Type { return &types.Type{Kind: types.KFunctionKind} },
}

// resolveDocType converts one syntax/doctype.go type-expression subtree into
// a types.Type, mirroring the docTypeParser grammar node-by-node. Unrecognized
// or malformed nodes fall back to types.Unknown rather than panicking, since
// a doc comment typo should degrade gracefully, not break the whole file's
// semantic model.
func resolveDocType(n *syntax.Node) *types.Type {
	if n == nil {
		return types.Unknown()
	}
	switch n.Kind {
	case syntax.NDocTypeName:
		toks := n.Tokens()
		if len(toks) == 0 {
			return types.Unknown()
		}
		name := toks[0].Text()
		if ctor, ok := docPrimitives[name]; ok {
			return ctor()
		}
		return types.Ref(types.TypeDeclId(name))

	case syntax.NDocTypeNullable:
		cs := n.NodeChildren()
		if len(cs) == 0 {
			return types.Nil()
		}
		return types.Union(resolveDocType(cs[0]), types.Nil())

	case syntax.NDocTypeArray:
		cs := n.NodeChildren()
		if len(cs) == 0 {
			return &types.Type{Kind: types.KArray, Inner: types.Unknown()}
		}
		return &types.Type{Kind: types.KArray, Inner: resolveDocType(cs[0])}

	case syntax.NDocTypeUnion:
		cs := n.NodeChildren()
		elems := make([]*types.Type, 0, len(cs))
		for _, c := range cs {
			elems = append(elems, resolveDocType(c))
		}
		return types.Union(elems...)

	case syntax.NDocTypeIntersection:
		cs := n.NodeChildren()
		elems := make([]*types.Type, 0, len(cs))
		for _, c := range cs {
			elems = append(elems, resolveDocType(c))
		}
		return &types.Type{Kind: types.KIntersection, Elems: elems}

	case syntax.NDocTypeGeneric:
		toks := n.Tokens()
		if len(toks) == 0 {
			return types.Unknown()
		}
		base := toks[0].Text()
		cs := n.NodeChildren()
		args := make([]*types.Type, 0, len(cs))
		for _, c := range cs {
			args = append(args, resolveDocType(c))
		}
		return &types.Type{Kind: types.KGeneric, DeclId: types.TypeDeclId(base), Generics: args}

	case syntax.NDocTypeLiteral:
		toks := n.Tokens()
		if len(toks) == 0 {
			return types.Unknown()
		}
		tok := toks[0]
		if tok.Kind() == syntax.DocString {
			return &types.Type{Kind: types.KDocStringConst, StrVal: unquoteDocString(tok.Text())}
		}
		// DocNumber: no KDocFloatConst exists in the Kind enum, so a literal
		// carrying a decimal point widens to the bare KNumber primitive
		// rather than being misrepresented as an integer constant.
		text := tok.Text()
		if strings.Contains(text, ".") {
			return types.Number()
		}
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return &types.Type{Kind: types.KDocIntegerConst, IntVal: i}
		}
		return types.Number()

	case syntax.NDocTypeVariadic:
		cs := n.NodeChildren()
		if len(cs) == 0 {
			return &types.Type{Kind: types.KVariadic, Inner: types.Any()}
		}
		return &types.Type{Kind: types.KVariadic, Inner: resolveDocType(cs[0])}

	case syntax.NDocTypeTuple:
		cs := n.NodeChildren()
		elems := make([]*types.Type, 0, len(cs))
		for _, c := range cs {
			elems = append(elems, resolveDocType(c))
		}
		return &types.Type{Kind: types.KTuple, Elems: elems}

	case syntax.NDocTypeStringTemplate:
		return types.String()

	case syntax.NDocTypeFunction:
		cs := n.NodeChildren()
		if len(cs) == 0 {
			return &types.Type{Kind: types.KDocFunction}
		}
		var params []*types.Type
		for _, p := range cs[0].NodeChildren() {
			if pc := p.NodeChildren(); len(pc) > 0 {
				params = append(params, resolveDocType(pc[0]))
			} else {
				params = append(params, types.Any())
			}
		}
		ret := types.Unknown()
		if len(cs) > 1 {
			if rc := cs[1].NodeChildren(); len(rc) > 0 {
				ret = resolveDocType(rc[0])
			}
		}
		return &types.Type{Kind: types.KDocFunction, Elems: params, Inner: ret}

	default:
		return types.Unknown()
	}
}

func unquoteDocString(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// visibilityFromTag maps one of the @public/@private/@protected/@package/
// @internal head keywords (stashed as NDocTagVisibility's second token by
// docparser.dispatchTag) to its property.Visibility value.
func visibilityFromTag(head string) property.Visibility {
	switch head {
	case "private":
		return property.Private
	case "protected":
		return property.Protected
	case "internal":
		return property.Internal
	case "package":
		return property.Package
	default:
		return property.Public
	}
}

// extraction is the per-file outcome of walking a parsed tree for doc tags;
// it records every property SemanticId written so a later reindex of the
// same file can clean them up before re-extracting (property.Index has no
// per-file RemoveFile the way types.Index and module_.Index do, since it
// doesn't carry file ownership on each id — see property.Index.RemoveIds).
type extraction struct {
	propIds []property.SemanticId

	// Namespace and ExportRestricted carry the file's own `---@namespace`/
	// `---@module` and `---@export namespace` tags (if any) out to the
	// driver, which hands them to module_.Index.SetExportPolicy once this
	// file's own require path is known.
	Namespace        string
	ExportRestricted bool
}

// extractDocTags walks tree for ---@class/@alias/@enum/@field/@param/@return
// and decl-feature tags (@deprecated/@readonly/@nodiscard/@async/@version/
// visibility), registering class/alias/enum declarations into typeIx,
// setting class fields, attaching properties, and annotating named function
// decls' inferred type with a real signature built from their doc block
// instead of infer.docFunctionFor's bare-arity stub. This is the one
// extraction pass nothing in syntax/decl/types/property/infer performs on
// its own; driver is where it belongs, since every other component is a
// pure per-file read over an already-built index, and this pass is what
// populates two of those indexes (types, property) from a third (syntax)
// in the first place.
func extractDocTags(file vfs.FileId, tree *syntax.Tree, idx *decl.Index, typeIx *types.Index, props *property.Index, inferCtx *infer.Context) *extraction {
	ex := &extraction{}
	if tree == nil || tree.Root == nil {
		return ex
	}
	var walk func(n *syntax.Node)
	walk = func(n *syntax.Node) {
		if n == nil {
			return
		}
		if isDocBearingStmt(n.Kind) {
			if cs := n.Children; len(cs) > 0 {
				if block, ok := cs[0].(*syntax.Node); ok && block.Kind == syntax.NDocBlock {
					processDocBlock(ex, block, n, file, idx, typeIx, props, inferCtx)
				}
			}
		}
		for _, c := range n.NodeChildren() {
			walk(c)
		}
	}
	walk(tree.Root)
	return ex
}

func isDocBearingStmt(k syntax.NodeKind) bool {
	switch k {
	case syntax.NLocalStmt, syntax.NLocalFunctionStmt, syntax.NAssignStmt, syntax.NFunctionStmt, syntax.NReturnStmt:
		return true
	default:
		return false
	}
}

func processDocBlock(ex *extraction, block, stmt *syntax.Node, file vfs.FileId, idx *decl.Index, typeIx *types.Index, props *property.Index, inferCtx *infer.Context) {
	tags := block.NodeChildren()

	var classId types.TypeDeclId
	var haveClass bool
	var params []*types.Type
	var ret *types.Type
	haveSignature := false
	var pendingAttrs []property.AttributeUse

	targetID, haveTarget := primaryDeclID(stmt, idx)
	var target property.SemanticId
	if haveTarget {
		target = property.SemanticId{Kind: property.IdDecl, Local: uint32(targetID)}
	}

	for _, tag := range tags {
		switch tag.Kind {
		case syntax.NDocTagClass:
			classId, haveClass = registerClassTag(tag, file, typeIx)
			if haveClass && len(pendingAttrs) > 0 {
				id := property.SemanticId{Kind: property.IdTypeDecl, Named: string(classId)}
				for _, use := range pendingAttrs {
					props.AddAttributeUse(id, use)
				}
				ex.propIds = append(ex.propIds, id)
				pendingAttrs = nil
			}

		case syntax.NDocTagField:
			if haveClass {
				fieldName, ok := setFieldTag(tag, classId, file, typeIx, props, ex)
				if ok && len(pendingAttrs) > 0 {
					id := property.SemanticId{Kind: property.IdMember, Named: fieldName}
					for _, use := range pendingAttrs {
						props.AddAttributeUse(id, use)
					}
					ex.propIds = append(ex.propIds, id)
					pendingAttrs = nil
				}
			}

		case syntax.NDocTagAttributeUse:
			if toks := tag.Tokens(); len(toks) > 0 {
				pendingAttrs = append(pendingAttrs, parseAttributeUse(toks[0].Text()))
			}

		case syntax.NDocTagAttributeDef:
			if toks := tag.Tokens(); len(toks) > 0 {
				registerAttributeDefTag(toks[0].Text(), file, typeIx)
			}

		case syntax.NDocTagAlias:
			registerAliasTag(tag, file, typeIx)

		case syntax.NDocTagEnum:
			registerEnumTag(tag, stmt, file, typeIx)
			if len(pendingAttrs) > 0 {
				if name, ok := enumTagName(tag); ok {
					id := property.SemanticId{Kind: property.IdTypeDecl, Named: name}
					for _, use := range pendingAttrs {
						props.AddAttributeUse(id, use)
					}
					ex.propIds = append(ex.propIds, id)
				}
				pendingAttrs = nil
			}

		case syntax.NDocTagParam:
			haveSignature = true
			toks := tag.Tokens()
			pt := types.Any()
			if tc := tag.NodeChildren(); len(tc) > 0 {
				pt = resolveDocType(tc[0])
			}
			if len(toks) > 1 && toks[1].Kind() == syntax.DocQuestion {
				pt = types.Union(pt, types.Nil())
			}
			params = append(params, pt)

		case syntax.NDocTagReturn:
			haveSignature = true
			if rc := tag.NodeChildren(); len(rc) > 0 {
				// parseReturnTag wraps each entry's type as the first
				// NodeChild of a synthetic NDocTypeName "entry" node.
				if first := rc[0].NodeChildren(); len(first) > 0 {
					ret = resolveDocType(first[0])
				}
			}

		case syntax.NDocTagDeprecated:
			if haveTarget {
				msg := ""
				if toks := tag.Tokens(); len(toks) > 0 {
					msg = toks[0].Text()
				}
				props.SetDeprecated(target, msg)
				ex.propIds = append(ex.propIds, target)
			}

		case syntax.NDocTagReadonly:
			if haveTarget {
				props.SetReadOnly(target)
				ex.propIds = append(ex.propIds, target)
			}

		case syntax.NDocTagSee:
			if haveTarget {
				if toks := tag.Tokens(); len(toks) > 0 {
					props.AddSeeRef(target, strings.TrimSpace(toks[0].Text()))
					ex.propIds = append(ex.propIds, target)
				}
			}

		case syntax.NDocTagSource:
			if haveTarget {
				if toks := tag.Tokens(); len(toks) > 0 {
					props.SetSource(target, strings.TrimSpace(toks[0].Text()))
					ex.propIds = append(ex.propIds, target)
				}
			}

		case syntax.NDocTagNodiscard:
			if haveTarget {
				props.SetNoDiscard(target)
				ex.propIds = append(ex.propIds, target)
			}

		case syntax.NDocTagAsync:
			if haveTarget {
				props.SetAsync(target)
				ex.propIds = append(ex.propIds, target)
			}

		case syntax.NDocTagVisibility:
			if haveTarget {
				toks := tag.Tokens()
				head := ""
				if len(toks) > 1 {
					head = toks[1].Text()
				}
				props.SetVisibility(target, visibilityFromTag(head))
				ex.propIds = append(ex.propIds, target)
			}

		case syntax.NDocTagNamespace, syntax.NDocTagModule:
			if toks := tag.Tokens(); len(toks) > 0 {
				ex.Namespace = strings.TrimSpace(toks[0].Text())
			}

		case syntax.NDocTagExport:
			if toks := tag.Tokens(); len(toks) > 0 && strings.TrimSpace(toks[0].Text()) == "namespace" {
				ex.ExportRestricted = true
			}

		case syntax.NDocTagVersion:
			if haveTarget {
				toks := tag.Tokens()
				if len(toks) > 0 {
					var levels []string
					for _, p := range strings.Split(toks[0].Text(), ",") {
						if p = strings.TrimSpace(p); p != "" {
							levels = append(levels, p)
						}
					}
					props.SetVersion(target, levels)
					ex.propIds = append(ex.propIds, target)
				}
			}
		}
	}

	if haveSignature && haveTarget && inferCtx != nil {
		if ret == nil {
			ret = types.Unknown()
		}
		inferCtx.AnnotateDecl(targetID, &types.Type{Kind: types.KDocFunction, Elems: params, Inner: ret})
	}
}

func registerClassTag(tag *syntax.Node, file vfs.FileId, typeIx *types.Index) (types.TypeDeclId, bool) {
	toks := tag.Tokens()
	if len(toks) == 0 {
		return "", false
	}
	name := types.TypeDeclId(toks[0].Text())
	var generics []types.GenericParam
	var supers []types.TypeDeclId
	for _, c := range tag.NodeChildren() {
		switch c.Kind {
		case syntax.NDocTagGeneric:
			if gt := c.Tokens(); len(gt) > 0 {
				generics = append(generics, types.GenericParam{Name: gt[0].Text()})
			}
		case syntax.NDocTypeName:
			if st := c.Tokens(); len(st) > 0 {
				supers = append(supers, types.TypeDeclId(st[0].Text()))
			}
		}
	}
	typeIx.RegisterClass(name, file, generics, supers)
	return name, true
}

func setFieldTag(tag *syntax.Node, classId types.TypeDeclId, file vfs.FileId, typeIx *types.Index, props *property.Index, ex *extraction) (string, bool) {
	toks := tag.Tokens()
	idx := 0
	visibility := ""
	if idx < len(toks) && strings.HasPrefix(toks[idx].Text(), "visibility:") {
		visibility = strings.TrimPrefix(toks[idx].Text(), "visibility:")
		idx++
	}
	if idx >= len(toks) {
		return "", false
	}
	fieldName := toks[idx].Text()
	ft := types.Any()
	if tc := tag.NodeChildren(); len(tc) > 0 {
		ft = resolveDocType(tc[0])
	}
	typeIx.SetField(classId, types.StringKey(fieldName), ft, true)
	if visibility != "" {
		id := property.SemanticId{Kind: property.IdMember, Named: fieldName}
		props.SetVisibility(id, visibilityFromTag(visibility))
		ex.propIds = append(ex.propIds, id)
	}
	return fieldName, true
}

// parseAttributeUse parses one `@[name(args)]` tag's raw tail text (e.g.
// `v.ref("TbItem")` or `t.index("id")`) into a property.AttributeUse. Each
// argument is either `name = value` or a bare positional value; a value is
// read as a quoted string, an int/float literal, true/false, or (falling
// back) the raw text as a string constant, mirroring the small literal
// grammar `---@[...]` attribute arguments actually use in practice.
func parseAttributeUse(text string) property.AttributeUse {
	text = strings.TrimSpace(text)
	name := text
	argsText := ""
	if i := strings.IndexByte(text, '('); i >= 0 {
		name = strings.TrimSpace(text[:i])
		if j := strings.LastIndexByte(text, ')'); j > i {
			argsText = text[i+1 : j]
		}
	}
	var args []property.AttributeArg
	for _, raw := range strings.Split(argsText, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		argName := ""
		val := raw
		if eq := strings.IndexByte(raw, '='); eq >= 0 && !strings.ContainsAny(raw[:eq], `"'`) {
			argName = strings.TrimSpace(raw[:eq])
			val = strings.TrimSpace(raw[eq+1:])
		}
		args = append(args, property.AttributeArg{Name: argName, Type: parseAttrLiteral(val)})
	}
	return property.AttributeUse{Name: name, Args: args}
}

func parseAttrLiteral(val string) *types.Type {
	if len(val) >= 2 && (val[0] == '"' && val[len(val)-1] == '"' || val[0] == '\'' && val[len(val)-1] == '\'') {
		return types.StrConst(unquoteDocString(val))
	}
	if val == "true" {
		return types.BoolConst(true)
	}
	if val == "false" {
		return types.BoolConst(false)
	}
	if i, err := strconv.ParseInt(val, 10, 64); err == nil {
		return types.IntConst(i)
	}
	if f, err := strconv.ParseFloat(val, 64); err == nil {
		return types.FloatConst(f)
	}
	return types.StrConst(val)
}

// registerAttributeDefTag parses an `@attribute Name(params)` tag's raw tail
// text into typeIx's DeclAttribute registry, recording each parameter name
// (types aren't recoverable from this unstructured tail without re-running
// the doc type parser over arbitrary substrings, so params carry names only —
// enough for a checker to report the attribute's declared arity).
func registerAttributeDefTag(text string, file vfs.FileId, typeIx *types.Index) {
	text = strings.TrimSpace(text)
	name := text
	paramsText := ""
	if i := strings.IndexByte(text, '('); i >= 0 {
		name = strings.TrimSpace(text[:i])
		if j := strings.LastIndexByte(text, ')'); j > i {
			paramsText = text[i+1 : j]
		}
	}
	var params []types.GenericParam
	for _, raw := range strings.Split(paramsText, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		params = append(params, types.GenericParam{Name: strings.Fields(raw)[0]})
	}
	if name == "" {
		return
	}
	typeIx.RegisterAttribute(types.TypeDeclId(name), file, params)
}

func registerAliasTag(tag *syntax.Node, file vfs.FileId, typeIx *types.Index) {
	toks := tag.Tokens()
	if len(toks) == 0 {
		return
	}
	name := types.TypeDeclId(toks[0].Text())
	var origin *types.Type
	if tc := tag.NodeChildren(); len(tc) > 0 {
		origin = resolveDocType(tc[0])
	}
	typeIx.RegisterAlias(name, file, origin)
}

// registerEnumTag parses the "---@enum Name" tag's unstructured tail text
// (dispatchTag stores @enum as a bare leaf, not a structured node, since its
// variants live in the table constructor the tag decorates, not the tag
// itself) and pulls variant names from that table constructor when the
// decorated statement is a single-name local/assign with one.
func registerEnumTag(tag *syntax.Node, stmt *syntax.Node, file vfs.FileId, typeIx *types.Index) {
	toks := tag.Tokens()
	if len(toks) == 0 {
		return
	}
	tail := strings.TrimSpace(toks[0].Text())
	partial := false
	if strings.HasPrefix(tail, "(partial)") {
		partial = true
		tail = strings.TrimSpace(strings.TrimPrefix(tail, "(partial)"))
	}
	parts := strings.SplitN(tail, ":", 2)
	name := types.TypeDeclId(strings.TrimSpace(parts[0]))
	keyed := len(parts) > 1 && strings.TrimSpace(parts[1]) != ""

	var variants []types.EnumVariant
	if tbl := enumTableOf(stmt); tbl != nil {
		for _, f := range tbl.NodeChildren() {
			if f.Kind != syntax.NTableFieldNamed {
				continue
			}
			ftoks := f.Tokens()
			if len(ftoks) == 0 {
				continue
			}
			variants = append(variants, types.EnumVariant{Name: ftoks[0].Text()})
		}
	}
	typeIx.RegisterEnum(name, file, keyed, partial, variants)
}

// enumTagName extracts just the declared name from an "---@enum Name" tag's
// raw tail text, the same parsing registerEnumTag does minus the
// variant/keyed bookkeeping, for attribute-use attachment.
func enumTagName(tag *syntax.Node) (string, bool) {
	toks := tag.Tokens()
	if len(toks) == 0 {
		return "", false
	}
	tail := strings.TrimSpace(toks[0].Text())
	tail = strings.TrimSpace(strings.TrimPrefix(tail, "(partial)"))
	parts := strings.SplitN(tail, ":", 2)
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return "", false
	}
	return name, true
}

// enumTableOf finds the table-constructor initializer of the local/assign
// statement an ---@enum tag decorates.
func enumTableOf(stmt *syntax.Node) *syntax.Node {
	if stmt == nil {
		return nil
	}
	switch stmt.Kind {
	case syntax.NLocalStmt, syntax.NAssignStmt:
		for _, c := range stmt.NodeChildren() {
			if c.Kind == syntax.NExprList {
				if es := c.NodeChildren(); len(es) > 0 && es[0].Kind == syntax.NTableConstructor {
					return es[0]
				}
			}
		}
	}
	return nil
}

// primaryDeclID finds the Decl a doc-bearing statement directly introduces:
// the function name for a local-function statement, the first name for a
// local statement, or the decl a bare-name assignment target already
// resolves to. Dotted function names (`function M.foo() end`) and dotted
// assignment targets introduce no Decl at all (decl.Build only tracks
// locals/params/for-range), so those are left unannotated — a function
// exposed as a class member's documented signature is deferred to a future
// pass once property gains a per-class-member signature slot.
func primaryDeclID(stmt *syntax.Node, idx *decl.Index) (decl.DeclId, bool) {
	switch stmt.Kind {
	case syntax.NLocalFunctionStmt:
		cs := stmt.Children
		if len(cs) > 0 {
			if _, ok := cs[0].(*syntax.Node); ok {
				cs = cs[1:]
			}
		}
		if tok, ok := tokenAt(cs, 2); ok {
			return declAtExact(idx, tok.Text(), tok.Tok.Start)
		}

	case syntax.NLocalStmt:
		cs := stmt.Children
		if len(cs) > 0 {
			if _, ok := cs[0].(*syntax.Node); ok {
				cs = cs[1:]
			}
		}
		if names, ok := nodeAt(cs, 1); ok {
			if nn := names.ChildrenOfKind(syntax.NNameExpr); len(nn) > 0 {
				if tok := firstTok(nn[0]); tok != nil {
					return declAtExact(idx, tok.Text(), tok.Tok.Start)
				}
			}
		}

	case syntax.NAssignStmt:
		cs := stmt.Children
		if len(cs) > 0 {
			if _, ok := cs[0].(*syntax.Node); ok {
				cs = cs[1:]
			}
		}
		if vars, ok := nodeAt(cs, 0); ok {
			if vn := vars.NodeChildren(); len(vn) > 0 && vn[0].Kind == syntax.NNameExpr {
				toks := vn[0].Tokens()
				if len(toks) == 1 {
					// a plain reassignment target: resolve by name among
					// every decl in the file sharing that name; the first
					// such decl in idx.Decls is used, so shadowing within
					// one file is not distinguished.
					for _, d := range idx.Decls {
						if d.Name == toks[0].Text() {
							return d.ID, true
						}
					}
				}
			}
		}
	}
	return 0, false
}

func declAtExact(idx *decl.Index, name string, start int) (decl.DeclId, bool) {
	for _, d := range idx.Decls {
		if d.Name == name && d.NameStart == start {
			return d.ID, true
		}
	}
	return 0, false
}

func tokenAt(cs []syntax.Element, i int) (*syntax.TokenNode, bool) {
	if i < 0 || i >= len(cs) {
		return nil, false
	}
	t, ok := cs[i].(*syntax.TokenNode)
	return t, ok
}

func nodeAt(cs []syntax.Element, i int) (*syntax.Node, bool) {
	if i < 0 || i >= len(cs) {
		return nil, false
	}
	n, ok := cs[i].(*syntax.Node)
	return n, ok
}

func firstTok(n *syntax.Node) *syntax.TokenNode {
	toks := n.Tokens()
	if len(toks) == 0 {
		return nil
	}
	return toks[0]
}
