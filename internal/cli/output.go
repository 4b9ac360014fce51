package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// render writes v as indented JSON with -o json, otherwise the text lines.
func render(cmd *cobra.Command, opts *rootOptions, v any, text ...string) error {
	out := cmd.OutOrStdout()
	switch opts.output {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "text", "":
		return writeLines(out, text)
	default:
		return fmt.Errorf("unknown output format %q", opts.output)
	}
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
