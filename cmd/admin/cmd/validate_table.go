package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/weldcfg/configurator/internal/applicability"
)

var validateTableCmd = &cobra.Command{
	Use:   "validate-table <file.yaml>",
	Short: "Validate an Applicability Table YAML file before rollout",
	Long: `Decodes the file the same way the ConfigMap-backed loader
decodes applicability.yaml, then checks it for the mistakes that would
otherwise surface only once a power source is selected in production:
duplicate power source GINs and empty rows.

Exit codes:
  0: file is valid
  1: file could not be read or decoded
  2: decoded but failed validation
`,
	Args: cobra.ExactArgs(1),
	RunE: runValidateTable,
}

func runValidateTable(cmd *cobra.Command, args []string) error {
	path := args[0]
	raw, err := os.ReadFile(path)
	if err != nil {
		os.Exit(1)
		return fmt.Errorf("read %s: %w", path, err)
	}

	var entries []applicability.Entry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		os.Exit(1)
		return fmt.Errorf("decode %s: %w", path, err)
	}

	problems := validateEntries(entries)
	if len(problems) > 0 {
		for _, p := range problems {
			cmd.PrintErrln("  -", p)
		}
		os.Exit(2)
		return fmt.Errorf("%d problem(s) found in %s", len(problems), path)
	}

	cmd.Printf("%s: %d row(s), all valid\n", path, len(entries))
	return nil
}

// validateEntries checks the constraints the loader (internal/applicability)
// silently tolerates but an operator would want surfaced before rollout:
// every row needs a non-empty power source GIN, and no GIN should appear
// twice (the loader's map-based Reload would silently let the later row
// win, masking the earlier one).
func validateEntries(entries []applicability.Entry) []string {
	var problems []string
	seen := make(map[string]int, len(entries))
	for i, e := range entries {
		if e.PowerSourceGIN == "" {
			problems = append(problems, fmt.Sprintf("row %d: empty power_source_gin", i))
			continue
		}
		if firstIdx, ok := seen[e.PowerSourceGIN]; ok {
			problems = append(problems, fmt.Sprintf("row %d: duplicate power_source_gin %q (first seen at row %d)", i, e.PowerSourceGIN, firstIdx))
			continue
		}
		seen[e.PowerSourceGIN] = i
	}
	return problems
}
