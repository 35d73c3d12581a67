// Package diagnostics implements spec component K: a registry of Checker
// values run over a semantic.Model, plus the four-layer suppression model
// (global disable, project-level opt-in, file-level and line-level
// ---@diagnostic directives).
//
// The Registry shape is grounded on the teacher's providers/contract.go
// Registry (register/get/list by key), generalized from language-keyed to
// code-keyed.
package diagnostics

import (
	"sort"

	module "github.com/oxhq/emmylua-core/module_"
	"github.com/oxhq/emmylua-core/semantic"
	"github.com/oxhq/emmylua-core/syntax"
	"github.com/rs/zerolog/log"
)

// Severity mirrors the LSP DiagnosticSeverity levels the core hands a
// driver/LSP layer to render.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInformation
	SeverityHint
)

// Range is a byte-offset span into the file the diagnostic was raised
// against; translation to line/column is the caller's job via vfs.
type Range struct {
	Start int
	End   int
}

// Diagnostic is one finding.
type Diagnostic struct {
	Code     string
	Severity Severity
	Range    Range
	Message  string
}

// Context is what a Checker runs over: a per-file semantic Model plus its
// parsed tree (Model doesn't own the tree, per semantic.Model.GetRoot).
// ModuleIx is the cross-file require-path index (component E), carried
// separately from Model since Model is scoped to component B+C+D+F+H+I and
// never grew a component-E field of its own; only require-module-not-visible
// needs it.
type Context struct {
	Model    *semantic.Model
	Tree     *syntax.Tree
	ModuleIx *module.Index
}

// Checker is one diagnostic rule.
type Checker interface {
	Code() string
	DefaultSeverity() Severity
	Check(ctx *Context) []Diagnostic
}

// CheckFunc adapts a plain function to a Checker, the way http.HandlerFunc
// adapts a function to http.Handler — most checkers here are stateless rules
// with no need for a dedicated type.
type CheckFunc func(ctx *Context) []Diagnostic

type ruleChecker struct {
	code     string
	severity Severity
	fn       CheckFunc
}

func (r *ruleChecker) Code() string             { return r.code }
func (r *ruleChecker) DefaultSeverity() Severity { return r.severity }
func (r *ruleChecker) Check(ctx *Context) []Diagnostic {
	return r.fn(ctx)
}

func newChecker(code string, sev Severity, fn CheckFunc) Checker {
	return &ruleChecker{code: code, severity: sev, fn: fn}
}

// Registry holds every known Checker, keyed by code. Dormant checkers are
// registered but excluded from DiagnoseFile unless explicitly enabled
// (config.Diagnostics.Enables), matching the await-in-sync Open Question
// decision recorded in DESIGN.md.
type Registry struct {
	checkers map[string]Checker
	dormant  map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{checkers: map[string]Checker{}, dormant: map[string]bool{}}
}

func (r *Registry) Register(c Checker) {
	r.checkers[c.Code()] = c
}

func (r *Registry) RegisterDormant(c Checker) {
	r.checkers[c.Code()] = c
	r.dormant[c.Code()] = true
}

func (r *Registry) Get(code string) (Checker, bool) {
	c, ok := r.checkers[code]
	return c, ok
}

func (r *Registry) List() []string {
	out := make([]string, 0, len(r.checkers))
	for code := range r.checkers {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// DefaultRegistry returns a Registry with every built-in checker this
// package implements, registered under its spec §4.K code.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(needCheckNilChecker())
	r.Register(unnecessaryAssertChecker())
	r.Register(unnecessaryIfChecker())
	r.Register(unbalancedAssignmentsChecker())
	r.Register(undefinedGlobalChecker())
	r.Register(deprecatedChecker())
	r.Register(readOnlyChecker())
	r.Register(localConstReassignChecker())
	r.Register(iterVariableReassignChecker())
	r.Register(redefinedLocalChecker())
	r.Register(duplicateIndexChecker())
	r.Register(duplicateRequireChecker())
	r.Register(circleDocClassChecker())
	r.Register(unknownDocTagChecker())
	r.Register(discardReturnsChecker())
	r.Register(globalInNonModuleChecker())
	r.Register(accessInvisibleChecker())
	r.Register(undefinedDocParamChecker())
	r.Register(duplicateDocFieldChecker())
	r.Register(requireModuleNotVisibleChecker())
	r.RegisterDormant(awaitInSyncChecker())
	return r
}

// DiagnoseFile runs every enabled, non-suppressed checker in r over ctx and
// returns the resulting diagnostics sorted by position.
func DiagnoseFile(r *Registry, ctx *Context, suppress *Suppression) []Diagnostic {
	cfg := ctx.Model.GetEmmyrc()
	disabled := map[string]bool{}
	for _, code := range cfg.Diagnostics.Disable {
		disabled[code] = true
	}
	enabled := map[string]bool{}
	for _, code := range cfg.Diagnostics.Enables {
		enabled[code] = true
	}

	var out []Diagnostic
	for _, code := range r.List() {
		checker, _ := r.Get(code)
		if r.dormant[code] && !enabled[code] {
			continue
		}
		if disabled[code] {
			continue
		}
		sev := checker.DefaultSeverity()
		if s, ok := cfg.Diagnostics.Severity[code]; ok {
			sev = parseSeverity(s)
		}
		for _, d := range checker.Check(ctx) {
			d.Code = code
			d.Severity = sev
			if suppress != nil {
				line := 0
				if ctx.Model.VFS != nil {
					if pos, ok := ctx.Model.VFS.OffsetToPosition(ctx.Model.File, d.Range.Start); ok {
						line = pos.Line
					}
				}
				if !suppress.Allows(code, line) {
					continue
				}
			}
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Range.Start < out[j].Range.Start })
	log.Debug().Int("file", int(ctx.Model.File)).Int("count", len(out)).Msg("diagnostics run complete")
	return out
}

func parseSeverity(s string) Severity {
	switch s {
	case "error":
		return SeverityError
	case "warning":
		return SeverityWarning
	case "information", "info":
		return SeverityInformation
	case "hint":
		return SeverityHint
	default:
		return SeverityWarning
	}
}
