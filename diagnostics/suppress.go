package diagnostics

import (
	"strings"

	"github.com/oxhq/emmylua-core/syntax"
	"github.com/oxhq/emmylua-core/vfs"
)

// Suppression is the file-level and line-level half of the four-layer
// suppression model; the global-disable and project-opt-in layers live in
// config.Diagnostics and are applied directly in DiagnoseFile.
type Suppression struct {
	fileDisabled map[string]bool
	lineDisabled map[int]map[string]bool
}

func newSuppression() *Suppression {
	return &Suppression{fileDisabled: map[string]bool{}, lineDisabled: map[int]map[string]bool{}}
}

// allCode is the sentinel recorded when a directive names no codes, e.g.
// a bare "---@diagnostic disable" with nothing after the colon.
const allCode = "*"

func (s *Suppression) disableFile(codes []string) {
	if len(codes) == 0 {
		s.fileDisabled[allCode] = true
		return
	}
	for _, c := range codes {
		s.fileDisabled[c] = true
	}
}

func (s *Suppression) enableFile(codes []string) {
	if len(codes) == 0 {
		delete(s.fileDisabled, allCode)
		return
	}
	for _, c := range codes {
		delete(s.fileDisabled, c)
	}
}

func (s *Suppression) disableLine(line int, codes []string) {
	m := s.lineDisabled[line]
	if m == nil {
		m = map[string]bool{}
		s.lineDisabled[line] = m
	}
	if len(codes) == 0 {
		m[allCode] = true
		return
	}
	for _, c := range codes {
		m[c] = true
	}
}

// Allows reports whether code may be reported at line (0-based, matching
// vfs.Position.Line).
func (s *Suppression) Allows(code string, line int) bool {
	if s.fileDisabled[allCode] || s.fileDisabled[code] {
		return false
	}
	if m, ok := s.lineDisabled[line]; ok {
		if m[allCode] || m[code] {
			return false
		}
	}
	return true
}

// ParseSuppressionDirectives walks tree for ---@diagnostic tags and builds
// the Suppression they describe.
//
// A parsed NDocTagDiagnostic node carries only synthetic, position-less
// sub-tokens (dispatchTag's leaf() helper stamps DocText tokens with no real
// offset). Its real source position is recovered from the raw TokDocComment
// token collectDoc() placed immediately before it as a sibling in the
// enclosing NDocBlock's Children: collectDoc adds the raw token, then the
// parsed tag node, for every doc-comment line in the block.
func ParseSuppressionDirectives(tree *syntax.Tree, v *vfs.VFS, file vfs.FileId) *Suppression {
	s := newSuppression()
	var walk func(n *syntax.Node)
	walk = func(n *syntax.Node) {
		if n == nil {
			return
		}
		if n.Kind == syntax.NDocBlock {
			cs := n.Children
			for i, c := range cs {
				tagNode, ok := c.(*syntax.Node)
				if !ok || tagNode.Kind != syntax.NDocTagDiagnostic {
					continue
				}
				toks := tagNode.Tokens()
				if len(toks) == 0 {
					continue
				}
				action, codes := parseDiagnosticDirective(toks[0].Text())
				rawStart := 0
				if i > 0 {
					if raw, ok := cs[i-1].(*syntax.TokenNode); ok {
						rawStart = raw.Tok.Start
					}
				}
				pos, _ := v.OffsetToPosition(file, rawStart)
				switch action {
				case "disable":
					s.disableFile(codes)
				case "enable":
					s.enableFile(codes)
				case "disable-line":
					s.disableLine(pos.Line, codes)
				case "disable-next-line":
					s.disableLine(pos.Line+1, codes)
				}
			}
		}
		for _, c := range n.NodeChildren() {
			walk(c)
		}
	}
	if tree != nil {
		walk(tree.Root)
	}
	return s
}

// parseDiagnosticDirective splits a ---@diagnostic tag's tail text
// ("disable: need-check-nil, unused-local") into its action keyword and
// comma-separated code list.
func parseDiagnosticDirective(tail string) (action string, codes []string) {
	tail = strings.TrimSpace(tail)
	parts := strings.SplitN(tail, ":", 2)
	action = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		for _, c := range strings.Split(parts[1], ",") {
			c = strings.TrimSpace(c)
			if c != "" {
				codes = append(codes, c)
			}
		}
	}
	return action, codes
}
