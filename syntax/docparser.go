package syntax

import "strings"

// parseDocComment turns one TokDocComment token's text into a tag Node (or
// nil if the line carries no recognized @tag — e.g. a bare description
// line). Only the first @tag on the line is honored; EmmyLua doc lines
// carry at most one tag head per line.
func parseDocComment(tok Token) *Node {
	body := stripCommentDelimiters(tok.Text)
	at := strings.IndexByte(body, '@')
	if at < 0 {
		return nil
	}
	rest := body[at+1:]
	head, tail := splitTagHead(rest)
	return dispatchTag(head, tail)
}

// stripCommentDelimiters removes the "---" / "--" / "--[[" ... "]]" wrapper
// around a comment's text, leaving just its inner content.
func stripCommentDelimiters(text string) string {
	s := strings.TrimPrefix(text, "--")
	if strings.HasPrefix(s, "[") {
		// long bracket form: --[=*[ ... ]=*]
		i := 0
		for i < len(s) && s[i] == '=' {
			i++
		}
		if i < len(s) && s[i] == '[' {
			s = s[i+1:]
			if idx := strings.LastIndex(s, "]"); idx >= 0 {
				// trim the closing ]=*]
				j := idx
				for j > 0 && s[j-1] == '=' {
					j--
				}
				if j > 0 && s[j-1] == ']' {
					j--
				}
				s = s[:j]
			}
			return strings.TrimSpace(s)
		}
	}
	s = strings.TrimPrefix(s, "-")
	return strings.TrimSpace(s)
}

// splitTagHead splits "param name string description..." into
// ("param", "name string description...").
func splitTagHead(s string) (string, string) {
	i := 0
	for i < len(s) && (isIdentByte(s[i]) || s[i] == '[') {
		if s[i] == '[' { // @[attribute-use(args)] form: head is the bracketed content
			end := strings.IndexByte(s, ']')
			if end < 0 {
				end = len(s)
			}
			return "[attribute-use]", s[1:end] + strings.TrimPrefix(s[min(end+1, len(s)):], "")
		}
		i++
	}
	head := s[:i]
	tail := strings.TrimSpace(s[i:])
	return head, tail
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '-' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// fields is a tiny helper splitting on runs of whitespace, like strings.Fields
// but keeping a cap on the number of splits (the remainder becomes free text).
func splitN(s string, n int) []string {
	return strings.SplitN(strings.TrimSpace(s), " ", n)
}

func fieldsTrim(s string) []string {
	return strings.Fields(s)
}

// dispatchTag builds the tag-specific Node for a recognized (or unknown)
// doc-tag head. Each tag's own text fields are stored as DocText leaf
// tokens so downstream components (types, property, flow) can read them
// back without re-lexing.
func dispatchTag(head, tail string) *Node {
	leaf := func(kind NodeKind, text string) *Node {
		n := &Node{Kind: kind}
		n.Add(&TokenNode{Tok: Token{Kind: DocText, Text: text, Synthetic: true}})
		return n
	}

	switch head {
	case "class":
		return parseClassTag(tail)
	case "field":
		return parseFieldTag(tail)
	case "param":
		return parseParamTag(tail)
	case "return":
		return parseReturnTag(tail)
	case "return_cast":
		return leaf(NDocTagReturnCast, tail)
	case "type":
		return leaf(NDocTagType, tail)
	case "alias":
		return parseAliasTag(tail)
	case "enum":
		return leaf(NDocTagEnum, tail)
	case "generic":
		return leaf(NDocTagGeneric, tail)
	case "overload":
		return leaf(NDocTagOverload, tail)
	case "cast":
		return leaf(NDocTagCast, tail)
	case "diagnostic":
		return leaf(NDocTagDiagnostic, tail)
	case "deprecated":
		return leaf(NDocTagDeprecated, tail)
	case "nodiscard":
		return leaf(NDocTagNodiscard, tail)
	case "async":
		return leaf(NDocTagAsync, tail)
	case "module":
		return leaf(NDocTagModule, tail)
	case "namespace":
		return leaf(NDocTagNamespace, tail)
	case "using":
		return leaf(NDocTagUsing, tail)
	case "see":
		return leaf(NDocTagSee, tail)
	case "source":
		return leaf(NDocTagSource, tail)
	case "version":
		return leaf(NDocTagVersion, tail)
	case "package", "private", "protected", "internal", "public":
		n := leaf(NDocTagVisibility, tail)
		n.Add(&TokenNode{Tok: Token{Kind: DocName, Text: head, Synthetic: true}})
		return n
	case "export":
		return leaf(NDocTagExport, tail)
	case "readonly":
		return leaf(NDocTagReadonly, tail)
	case "operator":
		return leaf(NDocTagOperator, tail)
	case "diagnostic_macro", "meta":
		return leaf(NDocTagMeta, tail)
	case "attribute":
		return leaf(NDocTagAttributeDef, tail)
	case "[attribute-use]":
		return leaf(NDocTagAttributeUse, tail)
	case "region":
		return leaf(NDocTagRegion, tail)
	case "endregion":
		return leaf(NDocTagEndregion, tail)
	case "language":
		return leaf(NDocTagLanguage, tail)
	default:
		n := leaf(NDocTagUnknown, tail)
		n.Add(&TokenNode{Tok: Token{Kind: DocName, Text: head, Synthetic: true}})
		return n
	}
}

// parseClassTag parses "Name[: Super1, Super2]" or "Name<T, U>[: Super]".
func parseClassTag(tail string) *Node {
	n := &Node{Kind: NDocTagClass}
	name, rest, _ := strings.Cut(tail, ":")
	name = strings.TrimSpace(name)
	genName, generics := splitGenericParams(name)
	n.Add(&TokenNode{Tok: Token{Kind: DocName, Text: genName, Synthetic: true}})
	for _, g := range generics {
		gn := &Node{Kind: NDocTagGeneric}
		gn.Add(&TokenNode{Tok: Token{Kind: DocName, Text: g, Synthetic: true}})
		n.Add(gn)
	}
	if supers := strings.TrimSpace(rest); supers != "" {
		for _, s := range strings.Split(supers, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			sn := &Node{Kind: NDocTypeName}
			sn.Add(&TokenNode{Tok: Token{Kind: DocName, Text: s, Synthetic: true}})
			n.Add(sn)
		}
	}
	return n
}

// splitGenericParams splits "Name<T, U: Bound>" into ("Name", ["T", "U: Bound"]).
func splitGenericParams(s string) (string, []string) {
	open := strings.IndexByte(s, '<')
	if open < 0 || !strings.HasSuffix(s, ">") {
		return s, nil
	}
	base := s[:open]
	inner := s[open+1 : len(s)-1]
	var params []string
	for _, p := range strings.Split(inner, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			params = append(params, p)
		}
	}
	return base, params
}

// parseFieldTag parses "[public|private|...] name type description...",
// "[public] [key: string] type" keyed form, or "(partial) name type".
func parseFieldTag(tail string) *Node {
	n := &Node{Kind: NDocTagField}
	parts := fieldsTrim(tail)
	idx := 0
	if idx < len(parts) {
		switch parts[idx] {
		case "public", "private", "protected", "package", "internal":
			n.Add(&TokenNode{Tok: Token{Kind: DocName, Text: "visibility:" + parts[idx], Synthetic: true}})
			idx++
		}
	}
	if idx < len(parts) {
		n.Add(&TokenNode{Tok: Token{Kind: DocName, Text: parts[idx], Synthetic: true}})
		idx++
	}
	if idx < len(parts) {
		n.Add(parseDocType(parts[idx]))
		idx++
	}
	if idx < len(parts) {
		n.Add(&TokenNode{Tok: Token{Kind: DocText, Text: strings.Join(parts[idx:], " "), Synthetic: true}})
	}
	return n
}

// parseParamTag parses "name [optional-marker?] type description...".
func parseParamTag(tail string) *Node {
	n := &Node{Kind: NDocTagParam}
	parts := fieldsTrim(tail)
	if len(parts) == 0 {
		return n
	}
	name := parts[0]
	optional := strings.HasSuffix(name, "?")
	name = strings.TrimSuffix(name, "?")
	n.Add(&TokenNode{Tok: Token{Kind: DocName, Text: name, Synthetic: true}})
	if optional {
		n.Add(&TokenNode{Tok: Token{Kind: DocQuestion, Text: "?", Synthetic: true}})
	}
	if len(parts) > 1 {
		n.Add(parseDocType(parts[1]))
	}
	if len(parts) > 2 {
		n.Add(&TokenNode{Tok: Token{Kind: DocText, Text: strings.Join(parts[2:], " "), Synthetic: true}})
	}
	return n
}

// parseReturnTag parses "type [name] description..." (possibly a
// comma-separated list for multiple returns on one line).
func parseReturnTag(tail string) *Node {
	n := &Node{Kind: NDocTagReturn}
	for _, piece := range strings.Split(tail, ",") {
		parts := fieldsTrim(piece)
		if len(parts) == 0 {
			continue
		}
		entry := &Node{Kind: NDocTypeName} // wrapper entry; first child is the type
		entry.Add(parseDocType(parts[0]))
		if len(parts) > 1 {
			entry.Add(&TokenNode{Tok: Token{Kind: DocName, Text: parts[1], Synthetic: true}})
		}
		n.Add(entry)
	}
	return n
}

func parseAliasTag(tail string) *Node {
	n := &Node{Kind: NDocTagAlias}
	parts := fieldsTrim(tail)
	if len(parts) > 0 {
		n.Add(&TokenNode{Tok: Token{Kind: DocName, Text: parts[0], Synthetic: true}})
	}
	if len(parts) > 1 {
		n.Add(parseDocType(strings.Join(parts[1:], " ")))
	}
	return n
}
