package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/vvka-141/polingest/internal/ingest"
	"github.com/vvka-141/polingest/internal/worker"
)

// Output formats accepted by --output.
const (
	outputAuto  = "auto"
	outputTable = "table"
	outputJSON  = "json"
)

var (
	colorPrimary   = lipgloss.Color("39")  // Blue
	colorSecondary = lipgloss.Color("245") // Gray
	colorSuccess   = lipgloss.Color("34")  // Green
	colorWarning   = lipgloss.Color("214") // Orange

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorSecondary).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	borderStyle  = lipgloss.NewStyle().Foreground(colorSecondary)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
)

// styledOutput reports whether stdout is a human-facing terminal.
// CI and NO_COLOR force plain output.
func styledOutput() bool {
	if os.Getenv("CI") != "" || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func resolveOutput(format string) (string, error) {
	switch format {
	case "", outputAuto:
		if styledOutput() {
			return outputTable, nil
		}
		return outputJSON, nil
	case outputTable, outputJSON:
		return format, nil
	default:
		return "", fmt.Errorf("invalid argument %q for --output: want auto, table or json", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeResult(w io.Writer, res worker.Result, format string) error {
	if format == outputJSON {
		return writeJSON(w, res.Message())
	}
	if res.Err != nil {
		return nil
	}
	return renderSummary(w, res.Path, res.Summary)
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func renderSummary(w io.Writer, path string, sum *ingest.Summary) error {
	itoa := strconv.Itoa

	entities := newTable("KIND", "EXISTING", "CREATED", "DUPLICATES", "INVALID")
	for _, k := range sum.Kinds() {
		entities.Row(k.Kind, itoa(k.Counts.Existing), itoa(k.Counts.Created), itoa(k.Counts.Duplicates), itoa(k.Counts.Invalid))
	}

	p := sum.Policies
	policies := newTable("STAGED", "CREATED", "DUPLICATES", "EXISTING", "IN-BATCH", "UNRESOLVED", "INVALID")
	policies.Row(itoa(p.Staged), itoa(p.Created), itoa(p.Duplicates),
		itoa(p.SkippedExisting), itoa(p.SkippedDuplicate), itoa(p.SkippedUnresolved), itoa(p.SkippedInvalid))

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s: %d rows in %s (run %s)", path, sum.Rows, time.Duration(sum.Duration).Round(time.Millisecond), sum.RunID)))
	fmt.Fprintln(w, entities.Render())
	fmt.Fprintln(w, titleStyle.Render("Policies"))
	fmt.Fprintln(w, policies.Render())

	if len(sum.Skipped) == 0 {
		fmt.Fprintln(w, successStyle.Render("✓ every row produced a policy"))
		return nil
	}

	skipped := newTable("ROW", "LINE", "POLICY", "REASON", "DETAIL")
	for _, s := range sum.Skipped {
		detail := s.Detail
		if len(s.Missing) > 0 {
			detail = fmt.Sprintf("missing %v", s.Missing)
		}
		skipped.Row(itoa(s.Row), itoa(s.Line), s.PolicyNumber, string(s.Reason), detail)
	}
	fmt.Fprintln(w, warningStyle.Render(fmt.Sprintf("%d row(s) skipped", len(sum.Skipped))))
	fmt.Fprintln(w, skipped.Render())
	return nil
}
