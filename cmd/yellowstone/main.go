package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/rysweet/yellowstone"
	"github.com/rysweet/yellowstone/kql"
	"github.com/rysweet/yellowstone/parser"
	"github.com/rysweet/yellowstone/schema"
	"github.com/rysweet/yellowstone/tokenizer"
)

// Context represents the global context for commands
type Context struct {
	Config  string
	Verbose bool
}

// TranslateCmd translates one query to KQL
type TranslateCmd struct {
	Query    string `arg:"" optional:"" help:"Query text; reads stdin when omitted"`
	Schema   string `help:"Schema mapping file" short:"s"`
	Estimate bool   `help:"Print complexity estimate and cost instead of translating"`
	JSON     bool   `help:"Emit the result as JSON" name:"json"`
}

// Run executes the translate command
func (cmd *TranslateCmd) Run(ctx *Context) error {
	config, err := yellowstone.LoadConfig(ctx.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	color.NoColor = color.NoColor || !config.Output.Color

	queryText := cmd.Query
	if queryText == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read query from stdin: %w", err)
		}
		queryText = string(data)
	}

	if cmd.Estimate {
		q, err := parser.Parse(queryText)
		if err != nil {
			return err
		}
		c := parser.EstimateComplexity(q)
		fmt.Printf("hops: %d\n", c.Hops)
		fmt.Printf("variable-length segments: %d\n", c.VariableLengthHops)
		fmt.Printf("unbounded segments: %d\n", c.UnboundedHops)
		fmt.Printf("aggregation: %t\n", c.HasAggregation)
		fmt.Printf("path function: %t\n", c.HasPathFunction)
		fmt.Printf("optional match: %t\n", c.HasOptionalMatch)
		fmt.Printf("estimated cost: %.1f\n", yellowstone.EstimateCost(c))
		return nil
	}

	schemaPath := cmd.Schema
	if schemaPath == "" {
		schemaPath = config.SchemaPath
	}
	mapping, err := schema.Load(schemaPath)
	if err != nil {
		return err
	}

	result, err := yellowstone.Translate(queryText, mapping, config.Options()...)
	if err != nil {
		return err
	}

	if config.Translation.MinConfidence > 0 && result.Confidence < config.Translation.MinConfidence {
		return fmt.Errorf("%w: confidence %.2f below configured minimum %.2f",
			kql.ErrUnsupportedConstruct, result.Confidence, config.Translation.MinConfidence)
	}

	if cmd.JSON || config.Output.Format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"query":          result.Query,
			"strategy":       result.Strategy,
			"confidence":     result.Confidence,
			"warnings":       result.Warnings,
			"estimated_cost": result.EstimatedCost,
		})
	}

	// Warnings go to stderr so the emitted KQL on stdout stays pipeable.
	for _, w := range result.Warnings {
		color.New(color.FgYellow).Fprintf(os.Stderr, "warning [%s]: %s\n", w.Code, w.Message)
	}
	if ctx.Verbose {
		color.New(color.FgCyan).Fprintf(os.Stderr, "strategy: %s  confidence: %.2f  cost: %.1f\n",
			result.Strategy, result.Confidence, result.EstimatedCost)
	}
	fmt.Println(result.Query)

	return nil
}

// SchemaCmd groups schema subcommands
type SchemaCmd struct {
	Validate SchemaValidateCmd `cmd:"" help:"Validate a schema mapping file"`
}

// SchemaValidateCmd validates a schema document and prints a summary
type SchemaValidateCmd struct {
	Path string `arg:"" help:"Schema mapping file"`
}

// Run executes the schema validate command
func (cmd *SchemaValidateCmd) Run(ctx *Context) error {
	mapping, err := schema.Load(cmd.Path)
	if err != nil {
		color.Red("invalid: %v", err)
		return err
	}

	labels := mapping.Labels()
	relTypes := mapping.RelationshipTypes()
	sort.Strings(labels)
	sort.Strings(relTypes)

	color.Green("%s is valid", cmd.Path)
	fmt.Printf("node labels (%d): %s\n", len(labels), strings.Join(labels, ", "))
	fmt.Printf("relationship types (%d): %s\n", len(relTypes), strings.Join(relTypes, ", "))

	return nil
}

// BatchCmd translates every .cypher file in a directory
type BatchCmd struct {
	Dir      string `arg:"" optional:"" help:"Directory of .cypher files; defaults to input_dir from config"`
	Schema   string `help:"Schema mapping file" short:"s"`
	Parallel int    `help:"Number of parallel workers" default:"0"`
}

// Run executes the batch command
func (cmd *BatchCmd) Run(ctx *Context) error {
	config, err := yellowstone.LoadConfig(ctx.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	color.NoColor = color.NoColor || !config.Output.Color

	dir := cmd.Dir
	if dir == "" {
		dir = config.InputDir
	}
	schemaPath := cmd.Schema
	if schemaPath == "" {
		schemaPath = config.SchemaPath
	}

	mapping, err := schema.Load(schemaPath)
	if err != nil {
		return err
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.cypher"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		color.Yellow("no .cypher files found in %s", dir)
		return nil
	}
	sort.Strings(files)

	parallel := cmd.Parallel
	if parallel <= 0 {
		parallel = config.Batch.Parallelism
	}

	opts := config.Options()

	var (
		mu       sync.Mutex
		failures []string
	)

	var g errgroup.Group
	g.SetLimit(parallel)

	for _, file := range files {
		g.Go(func() error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}

			result, err := yellowstone.Translate(string(data), mapping, opts...)
			if err != nil {
				mu.Lock()
				failures = append(failures, fmt.Sprintf("%s: %v", file, err))
				mu.Unlock()
				return nil
			}

			out := strings.TrimSuffix(file, filepath.Ext(file)) + ".kql"
			if err := os.WriteFile(out, []byte(result.Query+"\n"), 0o644); err != nil {
				return err
			}

			if ctx.Verbose {
				color.Blue("%s -> %s (confidence %.2f)", file, out, result.Confidence)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	sort.Strings(failures)
	for _, f := range failures {
		color.Red("failed: %s", f)
	}

	ok := len(files) - len(failures)
	if len(failures) > 0 {
		color.Yellow("translated %d of %d files (%d failed)", ok, len(files), len(failures))
		return fmt.Errorf("%d of %d translations failed", len(failures), len(files))
	}
	color.Green("translated %d files", ok)

	return nil
}

// VersionCmd represents the version command
type VersionCmd struct{}

// Run executes the version command
func (cmd *VersionCmd) Run() error {
	fmt.Println("yellowstone v0.1.0")
	return nil
}

var CLI struct {
	Config    string       `help:"Configuration file path" default:"yellowstone.yaml"`
	Verbose   bool         `help:"Enable verbose output" short:"v"`
	Translate TranslateCmd `cmd:"" help:"Translate a query to KQL"`
	Schema    SchemaCmd    `cmd:"" help:"Schema mapping operations"`
	Batch     BatchCmd     `cmd:"" help:"Translate every .cypher file in a directory"`
	Version   VersionCmd   `cmd:"" help:"Show version information"`
}

// exitCode maps error classes to distinct process exit codes so scripts
// can tell a bad query from a bad schema.
func exitCode(err error) int {
	switch {
	case errors.Is(err, tokenizer.ErrUnexpectedCharacter),
		errors.Is(err, tokenizer.ErrUnterminatedString),
		errors.Is(err, tokenizer.ErrInvalidNumber):
		return 2
	case errors.Is(err, parser.ErrSyntax),
		errors.Is(err, parser.ErrNestingTooDeep),
		errors.Is(err, parser.ErrUnsupportedClause):
		return 3
	case errors.Is(err, schema.ErrInvalidDocument),
		errors.Is(err, schema.ErrResolution):
		return 4
	case errors.Is(err, parser.ErrInvalidConstraint):
		return 5
	case errors.Is(err, kql.ErrUnsupportedConstruct):
		return 6
	case errors.Is(err, kql.ErrAssemblyValidation):
		return 7
	default:
		return 1
	}
}

func main() {
	ctx := kong.Parse(&CLI)

	appCtx := &Context{
		Config:  CLI.Config,
		Verbose: CLI.Verbose,
	}

	err := ctx.Run(appCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
