// Package config loads and represents the engine's `.emmyrc.json`/
// `.luarc.json` configuration schema (spec §6.3), grounded on the teacher's
// internal/config/config.go env-overrides-over-defaults pattern (here
// layered on top of a JSON file instead of being purely env-driven, since
// the schema is a structured document rather than a handful of scalars).
package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// RuntimeVersion selects the Lua language level that gates keyword/operator
// availability in the lexer/parser (spec §4.A).
type RuntimeVersion string

const (
	Lua51  RuntimeVersion = "5.1"
	Lua52  RuntimeVersion = "5.2"
	Lua53  RuntimeVersion = "5.3"
	Lua54  RuntimeVersion = "5.4"
	Lua55  RuntimeVersion = "5.5"
	LuaJIT RuntimeVersion = "LuaJIT"
)

type Runtime struct {
	Version             RuntimeVersion `json:"version"`
	NonstandardSymbol   bool           `json:"nonstandardSymbol"`
	Extensions          []string       `json:"extensions"`
	RequireLikeFunction []string       `json:"requireLikeFunction"`
}

// ModuleMapRule rewrites a file path into a require-module name via regex
// substitution, for workspaces whose directory layout doesn't match their
// require() convention.
type ModuleMapRule struct {
	Pattern string `json:"pattern"`
	Replace string `json:"replace"`
}

type Workspace struct {
	IgnoreDir      []string        `json:"ignoreDir"`
	IgnoreGlobs    []string        `json:"ignoreGlobs"`
	Library        []string        `json:"library"`
	PackageDirs    []string        `json:"packageDirs"`
	WorkspaceRoots []string        `json:"workspaceRoots"`
	Encoding       string          `json:"encoding"`
	ModuleMap      []ModuleMapRule `json:"moduleMap"`
}

type Diagnostics struct {
	Disable      []string          `json:"disable"`
	Enables      []string          `json:"enables"`
	Severity     map[string]string `json:"severity"`
	Globals      []string          `json:"globals"`
	GlobalsRegex []string          `json:"globalsRegex"`
}

// Strict toggles stricter inference variants, each an Open Question spec
// §9 leaves to the implementation; decisions are recorded in DESIGN.md.
type Strict struct {
	RequirePath               bool `json:"requirePath"`
	TypeCall                  bool `json:"typeCall"`
	ArrayIndex                bool `json:"arrayIndex"`
	MetaOverrideFileDefine    bool `json:"metaOverrideFileDefine"`
	DocBaseConstMatchBaseType bool `json:"docBaseConstMatchBaseType"`
	RequireExportGlobal       bool `json:"requireExportGlobal"`
}

type Doc struct {
	Syntax          string   `json:"syntax"`
	KnownTags       []string `json:"knownTags"`
	PrivateName     []string `json:"privateName"`
	RstPrimaryDomain string  `json:"rstPrimaryDomain"`
	RstDefaultRole  string   `json:"rstDefaultRole"`
}

// Config is the full structured record the core observes from
// .emmyrc.json/.luarc.json. Feature-toggle groups consumed only by the LSP
// layer (completion, hover, inlayHint, ...) are out of scope for the core
// engine and are not modeled here.
type Config struct {
	Runtime     Runtime     `json:"runtime"`
	Workspace   Workspace   `json:"workspace"`
	Diagnostics Diagnostics `json:"diagnostics"`
	Strict      Strict      `json:"strict"`
	Doc         Doc         `json:"doc"`
}

// Default returns the engine's built-in defaults, applied before any file or
// environment overrides.
func Default() Config {
	return Config{
		Runtime: Runtime{Version: Lua54},
		Workspace: Workspace{
			IgnoreDir: []string{".git", "node_modules"},
			Encoding:  "utf-8",
		},
		Doc: Doc{
			Syntax: "markdown",
		},
	}
}

// LoadFile reads and merges a .emmyrc.json/.luarc.json document over
// Default(); a missing file is not an error (the caller gets pure defaults).
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnvOverrides loads a workspace-root .env file (if present, ignored if
// absent) via godotenv and layers a small set of env-var overrides onto cfg,
// mirroring the teacher's internal/config.LoadConfig env-precedence pattern.
func ApplyEnvOverrides(cfg Config, envFile string) Config {
	_ = godotenv.Load(envFile) // missing .env is not an error

	if v := os.Getenv("EMMYLUA_RUNTIME_VERSION"); v != "" {
		cfg.Runtime.Version = RuntimeVersion(v)
	}
	if v := os.Getenv("EMMYLUA_DIAGNOSTICS_DISABLE"); v != "" {
		cfg.Diagnostics.Disable = append(cfg.Diagnostics.Disable, splitCSV(v)...)
	}
	if v := os.Getenv("EMMYLUA_WORKSPACE_LIBRARY"); v != "" {
		cfg.Workspace.Library = append(cfg.Workspace.Library, splitCSV(v)...)
	}
	return cfg
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsKnownTag reports whether tag is in the configured known-tags set, or is
// one of the built-in tags spec §6.4 always recognizes. Used by the
// unknown-doc-tag checker.
func (c Config) IsKnownTag(tag string) bool {
	for _, t := range builtinTags {
		if t == tag {
			return true
		}
	}
	for _, t := range c.Doc.KnownTags {
		if t == tag {
			return true
		}
	}
	return false
}

var builtinTags = []string{
	"class", "alias", "enum", "field", "param", "return", "return_cast",
	"generic", "type", "cast", "overload", "async", "nodiscard", "deprecated",
	"meta", "module", "namespace", "using", "see", "source", "version",
	"package", "private", "protected", "internal", "public", "export",
	"readonly", "operator", "diagnostic", "language", "attribute", "region",
	"endregion",
}
