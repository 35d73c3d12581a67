// Command emmylua-cli is the command-line front end for the core analysis
// engine: analyze/diagnose/query subcommands over the driver, plus
// serve-mcp to hand the same engine off to an MCP tool server, grounded on
// the teacher's cmd/morfx/main.go flag/usage structure but translated from
// pflag-only parsing to cobra (the teacher already depends on
// github.com/spf13/cobra in go.mod even though cmd/morfx/main.go itself
// only used pflag directly).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/oxhq/emmylua-core/diagnostics"
	"github.com/oxhq/emmylua-core/driver"
	"github.com/oxhq/emmylua-core/engine"
	"github.com/oxhq/emmylua-core/mcpserver"
	"github.com/oxhq/emmylua-core/types"
)

var (
	flagConfig          string
	flagEnvFile         string
	flagStoreDSN        string
	flagStoreDebug      bool
	flagVerbose         bool
	flagEnableLuaconfig bool
	flagJSON            bool
)

func main() {
	root := &cobra.Command{
		Use:   "emmylua-cli",
		Short: "Core analysis engine for the EmmyLua language server",
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", ".emmyrc.json/.luarc.json path")
	root.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "path to a .env file for runtime overrides")
	root.PersistentFlags().StringVar(&flagStoreDSN, "store", "", "gorm DSN for the optional persistence layer")
	root.PersistentFlags().BoolVar(&flagStoreDebug, "store-debug", false, "log store SQL statements")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&flagEnableLuaconfig, "enable-luaconfig", false, "register the optional LuaConfig overlay checkers")
	root.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "emit machine-readable JSON output")

	root.AddCommand(analyzeCmd(), diagnoseCmd(), queryCmd(), serveMCPCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openEngine assembles a fresh engine.Engine from the persistent flags,
// matching the teacher's buildConfigFromFlags-then-cli.NewRunner sequence.
func openEngine() (*engine.Engine, error) {
	if flagVerbose {
		driver.SetLogLevel(zerolog.DebugLevel)
	} else {
		driver.SetLogLevel(zerolog.InfoLevel)
	}
	return engine.Open(engine.Options{
		ConfigPath:      flagConfig,
		EnvFile:         flagEnvFile,
		StoreDSN:        flagStoreDSN,
		StoreDebug:      flagStoreDebug,
		EnableLuaconfig: flagEnableLuaconfig,
	})
}

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <file...>",
		Short: "Index one or more Lua files and report a summary",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			ids, err := eng.LoadFiles(context.Background(), args)
			if err != nil {
				return err
			}

			decls := eng.Driver.AllTypeDecls()
			globals := eng.Driver.Globals()
			summary := map[string]any{
				"files_indexed": len(ids),
				"type_decls":    len(decls),
				"globals":       len(globals),
			}
			return printJSONOrLine(summary, fmt.Sprintf(
				"indexed %d file(s): %d type decl(s), %d global write(s)",
				len(ids), len(decls), len(globals)))
		},
	}
}

type diagnosticFinding struct {
	File     string `json:"file"`
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Message  string `json:"message"`
}

func diagnoseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose <file...>",
		Short: "Run every enabled diagnostic checker over one or more files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			ids, err := eng.LoadFiles(context.Background(), args)
			if err != nil {
				return err
			}

			var findings []diagnosticFinding
			for i, id := range ids {
				diags, err := eng.Diagnose(id)
				if err != nil {
					return err
				}
				for _, d := range diags {
					pos, _ := eng.Driver.VFS().OffsetToPosition(id, d.Range.Start)
					findings = append(findings, diagnosticFinding{
						File:     args[i],
						Code:     d.Code,
						Severity: severityName(d.Severity),
						Line:     pos.Line + 1,
						Column:   pos.Column + 1,
						Message:  d.Message,
					})
				}
			}

			if flagJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(findings)
			}
			for _, f := range findings {
				fmt.Printf("%s:%d:%d: %s [%s] %s\n", f.File, f.Line, f.Column, f.Severity, f.Code, f.Message)
			}
			if len(findings) == 0 {
				fmt.Println("no diagnostics")
			}
			return nil
		},
	}
}

func queryCmd() *cobra.Command {
	var typeName string
	cmd := &cobra.Command{
		Use:   "query <file...> --type <TypeDeclName>",
		Short: "Load files and report member_info_map for a named type decl",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if typeName == "" {
				return fmt.Errorf("query requires --type")
			}
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			if _, err := eng.LoadFiles(context.Background(), args); err != nil {
				return err
			}

			decl := eng.Driver.ResolveTypeDecl(types.TypeDeclId(typeName))
			if decl == nil {
				return fmt.Errorf("no type decl named %q", typeName)
			}
			fields := make([]string, 0, len(decl.Fields))
			for key := range decl.Fields {
				fields = append(fields, key.Name)
			}
			result := map[string]any{
				"type_name": typeName,
				"supers":    decl.Supers,
				"fields":    fields,
			}
			return printJSONOrLine(result, fmt.Sprintf(
				"%s: %d field(s), %d super(s)", typeName, len(fields), len(decl.Supers)))
		},
	}
	cmd.Flags().StringVar(&typeName, "type", "", "dotted TypeDecl name to resolve (required)")
	return cmd
}

func serveMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve the query API as an MCP tool server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()
			return mcpserver.Serve(mcpserver.New(eng))
		},
	}
}

func printJSONOrLine(v any, line string) error {
	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	fmt.Println(line)
	return nil
}

func severityName(s diagnostics.Severity) string {
	switch s {
	case diagnostics.SeverityError:
		return "error"
	case diagnostics.SeverityWarning:
		return "warning"
	case diagnostics.SeverityInformation:
		return "information"
	case diagnostics.SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}
