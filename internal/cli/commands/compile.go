package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sievelang/sieve/internal/cli/config"
	"github.com/sievelang/sieve/internal/cli/ui"
	"github.com/sievelang/sieve/internal/compiler"
	"github.com/sievelang/sieve/internal/compiler/cerr"
	"github.com/sievelang/sieve/internal/compiler/clock"
)

var (
	compileSchemaPath string
)

// NewCompileCommand creates the compile command
func NewCompileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile [file]",
		Short: "Compile a query against a field schema",
		Long: `Compile reads a query from a file (or stdin, with no arguments) and
prints the emitted Elasticsearch-shaped query document, or a structured
error if the query does not parse against the configured schema.`,
		Example: `  # Compile a query stored in a file
  sieve compile query.txt

  # Compile a query piped over stdin
  echo 'active:true AND created.gt:7 days ago' | sieve compile

  # Use an explicit schema file instead of sieve.yml's configured source
  sieve compile query.txt --schema ./schema.json`,
		RunE: runCompile,
	}

	cmd.Flags().StringVar(&compileSchemaPath, "schema", "", "Path to a JSON schema file (default: from sieve.yml)")

	return cmd
}

func runCompile(cmd *cobra.Command, args []string) error {
	var input []byte
	var err error
	if len(args) > 0 {
		input, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
	} else {
		input, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
	}

	schemaPath := compileSchemaPath
	if schemaPath == "" {
		cfg, cfgErr := config.Load()
		if cfgErr == nil && cfg.Schema.Path != "" {
			schemaPath = cfg.Schema.Path
		} else {
			schemaPath = "sieve-schema.json"
		}
	}

	cfg, err := loadSchemaFile(schemaPath)
	if err != nil {
		return err
	}

	doc, err := compiler.Compile(string(input), *cfg, clock.System{})
	if err != nil {
		message := err.Error()
		var suggestions []string
		if ii, ok := cerr.AsInvalidInput(err); ok {
			message = ii.Error()
			if ii.Near != "" {
				names := make([]string, 0, len(cfg.AllFields()))
				for name := range cfg.AllFields() {
					names = append(names, name)
				}
				suggestions = ui.FindSimilar(ii.Near, names, nil)
			}
		}
		fmt.Fprint(cmd.ErrOrStderr(), ui.CompileError(message, suggestions, false))
		return fmt.Errorf("compilation failed")
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(doc))
	return nil
}
