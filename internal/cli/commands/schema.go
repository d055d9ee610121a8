package commands

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sievelang/sieve/internal/cli/ui"
	"github.com/sievelang/sieve/internal/compiler/schema"
)

var schemaFilePath string

// NewSchemaCommand creates the schema command and its subcommands
func NewSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage the field-classification schema used by compile",
	}

	cmd.PersistentFlags().StringVar(&schemaFilePath, "file", "sieve-schema.json", "Path to the schema file")

	cmd.AddCommand(newSchemaAddFieldCommand())
	cmd.AddCommand(newSchemaListCommand())

	return cmd
}

func newSchemaAddFieldCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add-field",
		Short: "Interactively add a field to the schema",
		Long: `add-field walks through naming a field and choosing its Kind (bool,
date, float, int, ip, literal, ngram, custom), then appends it to the
configured schema file so the compiler's typed-term dispatch can see it.`,
		RunE: runSchemaAddField,
	}
}

func runSchemaAddField(cmd *cobra.Command, args []string) error {
	successColor := color.New(color.FgGreen, color.Bold)

	cfg, err := loadSchemaFile(schemaFilePath)
	if err != nil {
		// A missing schema file just means this is the first field added.
		cfg = schema.New("")
	}

	var answers struct {
		Name string
		Kind string
	}

	questions := []*survey.Question{
		{
			Name:     "Name",
			Prompt:   &survey.Input{Message: "Field name:"},
			Validate: survey.Required,
		},
		{
			Name: "Kind",
			Prompt: &survey.Select{
				Message: "Field kind:",
				Options: []string{"bool", "date", "float", "int", "ip", "literal", "ngram", "custom"},
				Default: "literal",
			},
		},
	}

	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	setOrDefault := func() error {
		var makeDefault bool
		prompt := &survey.Confirm{
			Message: fmt.Sprintf("Make %q the default (bareword) field?", answers.Name),
			Default: false,
		}
		if err := survey.AskOne(prompt, &makeDefault); err != nil {
			return err
		}
		if makeDefault {
			cfg.DefaultField = answers.Name
		}
		return nil
	}

	if existing, ok := cfg.KindOf(answers.Name); ok {
		fmt.Fprint(cmd.ErrOrStderr(), ui.SchemaChangeError(
			fmt.Sprintf("field %q is already classified as %s", answers.Name, existing),
			fmt.Sprintf("the requested %s classification was not applied", answers.Kind),
			nil,
			false,
		))
		return fmt.Errorf("field already classified")
	}

	if close := closestFieldName(cfg, answers.Name); close != "" {
		var proceed bool
		prompt := &survey.Confirm{
			Message: fmt.Sprintf("%q is close to the existing field %q — add it anyway?", answers.Name, close),
			Default: false,
		}
		if err := survey.AskOne(prompt, &proceed); err != nil {
			return err
		}
		if !proceed {
			return fmt.Errorf("aborted: likely duplicate of %q", close)
		}
	}

	switch answers.Kind {
	case "bool":
		cfg.BoolFields[answers.Name] = struct{}{}
	case "date":
		cfg.DateFields[answers.Name] = struct{}{}
	case "float":
		cfg.FloatFields[answers.Name] = struct{}{}
	case "int":
		cfg.IntFields[answers.Name] = struct{}{}
	case "ip":
		cfg.IPFields[answers.Name] = struct{}{}
	case "literal":
		cfg.LiteralFields[answers.Name] = struct{}{}
	case "ngram":
		cfg.NgramFields[answers.Name] = struct{}{}
	case "custom":
		cfg.CustomFields[answers.Name] = struct{}{}
	}

	if err := setOrDefault(); err != nil {
		return err
	}

	err = ui.WithSpinner(cmd.OutOrStdout(), fmt.Sprintf("writing %s", schemaFilePath), false, func() error {
		return saveSchemaFile(schemaFilePath, cfg)
	})
	if err != nil {
		return err
	}

	successColor.Printf("Added field %q (%s) to %s\n", answers.Name, answers.Kind, schemaFilePath)
	return nil
}

// closestFieldName returns an already-configured field name within fuzzy
// matching distance of name, or "" if none is close enough to be a likely
// typo of an existing field.
func closestFieldName(cfg *schema.Config, name string) string {
	all := cfg.AllFields()
	candidates := make([]string, 0, len(all))
	for existing := range all {
		candidates = append(candidates, existing)
	}
	return ui.FindBestMatch(name, candidates, &ui.FuzzyMatchOptions{MaxDistance: 2})
}

func newSchemaListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured fields and their kinds",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSchemaFile(schemaFilePath)
			if err != nil {
				return err
			}

			table := ui.NewFieldTable(cmd.OutOrStdout(), false)
			kinds := []schema.Kind{schema.Bool, schema.Date, schema.Float, schema.Int, schema.IP, schema.Literal, schema.Ngram, schema.Custom}
			for _, k := range kinds {
				for name := range cfg.FieldsOf(k) {
					table.AddField(name, k.String(), name == cfg.DefaultField)
				}
			}
			table.Render()
			return nil
		},
	}
}
