package syntax

import "strings"

// docTypeLexer tokenizes the text of a single doc type-expression, e.g.
// `fun(a: integer, ...: string): boolean, string`.
type docTypeLexer struct {
	s   string
	pos int
}

type docTypeTok struct {
	kind TokKind
	text string
}

func (l *docTypeLexer) skipSpace() {
	for l.pos < len(l.s) && l.s[l.pos] == ' ' {
		l.pos++
	}
}

func (l *docTypeLexer) peek() docTypeTok {
	save := l.pos
	t := l.next()
	l.pos = save
	return t
}

func (l *docTypeLexer) next() docTypeTok {
	l.skipSpace()
	if l.pos >= len(l.s) {
		return docTypeTok{kind: TokEOF}
	}
	c := l.s[l.pos]
	switch c {
	case '<':
		l.pos++
		return docTypeTok{kind: DocLAngle, text: "<"}
	case '>':
		l.pos++
		return docTypeTok{kind: DocRAngle, text: ">"}
	case '(':
		l.pos++
		return docTypeTok{kind: DocLParen, text: "("}
	case ')':
		l.pos++
		return docTypeTok{kind: DocRParen, text: ")"}
	case '[':
		l.pos++
		return docTypeTok{kind: DocLBracket, text: "["}
	case ']':
		l.pos++
		return docTypeTok{kind: DocRBracket, text: "]"}
	case ',':
		l.pos++
		return docTypeTok{kind: DocComma, text: ","}
	case ':':
		l.pos++
		return docTypeTok{kind: DocColon, text: ":"}
	case '?':
		l.pos++
		return docTypeTok{kind: DocQuestion, text: "?"}
	case '|':
		l.pos++
		return docTypeTok{kind: DocPipe, text: "|"}
	case '&':
		l.pos++
		return docTypeTok{kind: DocAmp, text: "&"}
	case '`':
		start := l.pos
		l.pos++
		for l.pos < len(l.s) && l.s[l.pos] != '`' {
			l.pos++
		}
		if l.pos < len(l.s) {
			l.pos++
		}
		return docTypeTok{kind: DocBacktick, text: l.s[start:l.pos]}
	case '.':
		if strings.HasPrefix(l.s[l.pos:], "...") {
			l.pos += 3
			return docTypeTok{kind: DocEllipsis, text: "..."}
		}
	case '"', '\'':
		start := l.pos
		quote := c
		l.pos++
		for l.pos < len(l.s) && l.s[l.pos] != quote {
			l.pos++
		}
		if l.pos < len(l.s) {
			l.pos++
		}
		return docTypeTok{kind: DocString, text: l.s[start:l.pos]}
	}
	if c == '-' || isDigit(c) {
		start := l.pos
		l.pos++
		for l.pos < len(l.s) && (isDigit(l.s[l.pos]) || l.s[l.pos] == '.') {
			l.pos++
		}
		return docTypeTok{kind: DocNumber, text: l.s[start:l.pos]}
	}
	if isNameStart(c) {
		start := l.pos
		for l.pos < len(l.s) && (isNameCont(l.s[l.pos]) || l.s[l.pos] == '.') {
			l.pos++
		}
		return docTypeTok{kind: DocName, text: l.s[start:l.pos]}
	}
	// unknown byte: consume and return as error-ish name token
	start := l.pos
	l.pos++
	return docTypeTok{kind: DocName, text: l.s[start:l.pos]}
}

// docTypeParser is a small recursive-descent parser for doc type
// expressions: union (|) is lowest precedence, then intersection (&), then
// postfix array/nullable, then primary (named ref, generic, tuple, function,
// object literal via table ref, string template, literal).
type docTypeParser struct {
	lx   *docTypeLexer
	toks []docTypeTok
	pos  int
}

// parseDocType parses one type-expression string into its CST subtree. Used
// both directly (e.g. ---@type T) and recursively for nested positions
// (function params/returns, generic args, tuple elements).
func parseDocType(s string) *Node {
	lx := &docTypeLexer{s: s}
	var toks []docTypeTok
	for {
		t := lx.next()
		toks = append(toks, t)
		if t.kind == TokEOF {
			break
		}
	}
	p := &docTypeParser{toks: toks}
	return p.parseUnion()
}

func (p *docTypeParser) cur() docTypeTok { return p.toks[p.pos] }
func (p *docTypeParser) bump() docTypeTok {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}
func (p *docTypeParser) at(k TokKind) bool { return p.cur().kind == k }

func (p *docTypeParser) parseUnion() *Node {
	first := p.parseIntersection()
	if !p.at(DocPipe) {
		return first
	}
	n := &Node{Kind: NDocTypeUnion}
	n.Add(first)
	for p.at(DocPipe) {
		p.bump()
		n.Add(p.parseIntersection())
	}
	return n
}

func (p *docTypeParser) parseIntersection() *Node {
	first := p.parsePostfix()
	if !p.at(DocAmp) {
		return first
	}
	n := &Node{Kind: NDocTypeIntersection}
	n.Add(first)
	for p.at(DocAmp) {
		p.bump()
		n.Add(p.parsePostfix())
	}
	return n
}

func (p *docTypeParser) parsePostfix() *Node {
	base := p.parsePrimary()
	for {
		switch {
		case p.at(DocLBracket) && p.toksAhead(1).kind == DocRBracket:
			p.bump()
			p.bump()
			n := &Node{Kind: NDocTypeArray}
			n.Add(base)
			base = n
		case p.at(DocQuestion):
			p.bump()
			n := &Node{Kind: NDocTypeNullable}
			n.Add(base)
			base = n
		default:
			return base
		}
	}
}

func (p *docTypeParser) toksAhead(n int) docTypeTok {
	i := p.pos + n
	if i >= len(p.toks) {
		return docTypeTok{kind: TokEOF}
	}
	return p.toks[i]
}

func (p *docTypeParser) parsePrimary() *Node {
	t := p.cur()
	switch t.kind {
	case DocBacktick:
		n := &Node{Kind: NDocTypeStringTemplate}
		n.Add(&TokenNode{Tok: Token{Kind: DocBacktick, Text: t.text, Synthetic: true}})
		p.bump()
		return n
	case DocString, DocNumber:
		n := &Node{Kind: NDocTypeLiteral}
		n.Add(&TokenNode{Tok: Token{Kind: t.kind, Text: t.text, Synthetic: true}})
		p.bump()
		return n
	case DocEllipsis:
		p.bump()
		inner := &Node{Kind: NDocTypeName}
		if p.at(DocColon) {
			p.bump()
			inner = p.parsePostfix()
		}
		n := &Node{Kind: NDocTypeVariadic}
		n.Add(inner)
		return n
	case DocLBracket:
		p.bump()
		n := &Node{Kind: NDocTypeTuple}
		for !p.at(DocRBracket) && !p.at(TokEOF) {
			n.Add(p.parseUnion())
			if p.at(DocComma) {
				p.bump()
				continue
			}
			break
		}
		if p.at(DocRBracket) {
			p.bump()
		}
		return n
	case DocName:
		name := t.text
		p.bump()
		if name == "fun" && p.at(DocLParen) {
			return p.parseFunctionType()
		}
		if p.at(DocLAngle) {
			p.bump()
			n := &Node{Kind: NDocTypeGeneric}
			n.Add(&TokenNode{Tok: Token{Kind: DocName, Text: name, Synthetic: true}})
			for !p.at(DocRAngle) && !p.at(TokEOF) {
				n.Add(p.parseUnion())
				if p.at(DocComma) {
					p.bump()
					continue
				}
				break
			}
			if p.at(DocRAngle) {
				p.bump()
			}
			return n
		}
		n := &Node{Kind: NDocTypeName}
		n.Add(&TokenNode{Tok: Token{Kind: DocName, Text: name, Synthetic: true}})
		return n
	default:
		n := &Node{Kind: NDocTypeName}
		n.Add(&TokenNode{Tok: Token{Kind: DocName, Text: "unknown", Synthetic: true}})
		return n
	}
}

// parseFunctionType parses "fun(a: T, ...: U): R, S" after "fun" has been consumed.
func (p *docTypeParser) parseFunctionType() *Node {
	n := &Node{Kind: NDocTypeFunction}
	p.bump() // (
	params := &Node{Kind: NParamList}
	for !p.at(DocRParen) && !p.at(TokEOF) {
		param := &Node{Kind: NDocTagParam}
		if p.at(DocName) || p.at(DocEllipsis) {
			nameTok := p.bump()
			param.Add(&TokenNode{Tok: Token{Kind: nameTok.kind, Text: nameTok.text, Synthetic: true}})
		}
		if p.at(DocColon) {
			p.bump()
			param.Add(p.parseUnion())
		}
		params.Add(param)
		if p.at(DocComma) {
			p.bump()
			continue
		}
		break
	}
	if p.at(DocRParen) {
		p.bump()
	}
	n.Add(params)
	if p.at(DocColon) {
		p.bump()
		rets := &Node{Kind: NDocTagReturn}
		rets.Add(p.parseUnion())
		for p.at(DocComma) {
			p.bump()
			rets.Add(p.parseUnion())
		}
		n.Add(rets)
	}
	return n
}
