package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/jvm-linkage/checker/internal/config"
)

// ErrUnknownFormat is returned when Format is asked to render a format
// it does not recognize.
var ErrUnknownFormat = errors.New("unknown report format")

// Formatter renders a Report into one of the supported output formats.
type Formatter struct{}

// NewFormatter returns a Formatter. It carries no state; every method
// is a pure function of its arguments.
func NewFormatter() *Formatter {
	return &Formatter{}
}

// Format renders report in the requested format.
func (f *Formatter) Format(r Report, format config.OutputFormat) (string, error) {
	switch format {
	case config.FormatText:
		return formatText(r), nil
	case config.FormatJSON:
		payload, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return "", err
		}
		return string(payload) + "\n", nil
	case config.FormatDot:
		return formatDot(r), nil
	case config.FormatSARIF:
		return formatSARIF(r)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

func formatText(r Report) string {
	var buffer bytes.Buffer
	fmt.Fprintf(&buffer, "Linkage check: %d classpath entries, %d unselected alternatives\n",
		r.Classpath.EntryCount, r.Classpath.UnselectedCount)
	fmt.Fprintf(&buffer, "Findings: %d\n", r.Summary.TotalFindings)

	if len(r.Summary.ByKind) > 0 {
		buffer.WriteString("\nBy kind:\n")
		for _, k := range sortedKeys(r.Summary.ByKind) {
			fmt.Fprintf(&buffer, "- %s: %d\n", k, r.Summary.ByKind[k])
		}
	}
	if len(r.Summary.ByCause) > 0 {
		buffer.WriteString("\nBy cause:\n")
		for _, k := range sortedKeys(r.Summary.ByCause) {
			fmt.Fprintf(&buffer, "- %s: %d\n", k, r.Summary.ByCause[k])
		}
	}

	if len(r.Findings) == 0 {
		buffer.WriteString("\nNo linkage problems found.\n")
		return buffer.String()
	}

	buffer.WriteString("\n")
	writer := tabwriter.NewWriter(&buffer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(writer, "KIND\tSOURCE\tSYMBOL\tCAUSE\tDETAIL")
	for _, finding := range r.Findings {
		fmt.Fprintln(writer, formatTextRow(finding))
	}
	writer.Flush()

	if len(r.Warnings) > 0 {
		buffer.WriteString("\nWarnings:\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&buffer, "- %s\n", w)
		}
	}

	return buffer.String()
}

func formatTextRow(f Finding) string {
	detail := f.CauseDetail
	if detail == "" {
		detail = f.Detail
	}
	return fmt.Sprintf("%s\t%s\t%s\t%s\t%s", f.Kind, f.SourceClass, f.Symbol, f.Cause, detail)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatDot renders the findings as a Graphviz digraph: one edge per
// finding, from the source class to the referenced symbol's owner,
// labelled with the problem kind. There is no third-party Graphviz
// emitter in the dependency pack, and the format is line-oriented
// text trivially built with fmt, so this stays on the standard
// library rather than pulling in an unused dependency for it.
func formatDot(r Report) string {
	var buffer bytes.Buffer
	buffer.WriteString("digraph linkage {\n")
	buffer.WriteString("  rankdir=LR;\n")
	seenNodes := make(map[string]struct{})
	node := func(name string) string {
		if _, ok := seenNodes[name]; !ok {
			seenNodes[name] = struct{}{}
			fmt.Fprintf(&buffer, "  %q;\n", name)
		}
		return name
	}
	for _, f := range r.Findings {
		owner := f.Symbol
		if idx := strings.IndexAny(f.Symbol, "#"); idx >= 0 {
			owner = f.Symbol[:idx]
		}
		node(f.SourceClass)
		node(owner)
		fmt.Fprintf(&buffer, "  %q -> %q [label=%q];\n", f.SourceClass, owner, f.Kind)
	}
	buffer.WriteString("}\n")
	return buffer.String()
}
