package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"panelctl/internal/api"
)

// OutputFormat represents the output format for CLI commands
type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

// ParseOutputFormat validates a --output value. Empty selects table.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputFormatTable:
		return OutputFormatTable, nil
	case OutputFormatJSON:
		return OutputFormatJSON, nil
	case OutputFormatYAML:
		return OutputFormatYAML, nil
	}
	return "", fmt.Errorf("unsupported output format: %s (want table, json or yaml)", s)
}

// PrinterOptions contains options for output formatting
type PrinterOptions struct {
	Format OutputFormat
	// NoColor disables ANSI colors in table output.
	NoColor bool
}

// Printer renders command results
type Printer struct {
	out     io.Writer
	options PrinterOptions
	now     func() time.Time
}

// NewPrinter creates a printer writing to out
func NewPrinter(out io.Writer, options PrinterOptions) *Printer {
	if options.Format == "" {
		options.Format = OutputFormatTable
	}
	return &Printer{out: out, options: options, now: time.Now}
}

type serviceList struct {
	Services []api.ServiceRecord `json:"services" yaml:"services"`
	Total    int                 `json:"total" yaml:"total"`
}

// Services prints the service list. at is when the list was fetched.
func (p *Printer) Services(services []api.ServiceRecord, at time.Time) error {
	switch p.options.Format {
	case OutputFormatJSON:
		return p.json(serviceList{Services: nonNil(services), Total: len(services)})
	case OutputFormatYAML:
		return p.yaml(serviceList{Services: nonNil(services), Total: len(services)})
	}

	if len(services) == 0 {
		fmt.Fprintln(p.out, p.color(text.FgYellow, "No services found"))
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		p.color(text.FgHiCyan, "UNIT"),
		p.color(text.FgHiCyan, "STATE"),
		p.color(text.FgHiCyan, "SUB"),
		p.color(text.FgHiCyan, "ENABLED"),
		p.color(text.FgHiCyan, "DESCRIPTION"),
	})
	for _, s := range services {
		t.AppendRow(table.Row{
			s.Unit,
			p.formatState(s.ActiveState),
			s.SubState,
			orDash(s.UnitFileState),
			formatDescription(s.Description),
		})
	}
	t.Render()

	fmt.Fprintf(p.out, "\n%s %d services, updated %s\n",
		p.color(text.FgHiBlue, "Total:"), len(services), humanize.RelTime(at, p.now(), "ago", "from now"))
	return nil
}

// Outcome prints the result of a lifecycle action.
func (p *Printer) Outcome(outcome api.ActionOutcome) error {
	switch p.options.Format {
	case OutputFormatJSON:
		return p.json(outcome)
	case OutputFormatYAML:
		return p.yaml(outcome)
	}

	if outcome.OK {
		fmt.Fprintln(p.out, p.color(text.FgGreen, "✅ "+outcome.Summary()))
	} else {
		fmt.Fprintln(p.out, p.color(text.FgRed, "❌ "+outcome.Summary()))
	}
	if s := strings.TrimSpace(outcome.Stdout); s != "" {
		fmt.Fprintln(p.out, s)
	}
	if s := strings.TrimSpace(outcome.Stderr); s != "" && s != outcome.Error {
		fmt.Fprintln(p.out, p.color(text.FgHiBlack, s))
	}
	return nil
}

func (p *Printer) json(v interface{}) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *Printer) yaml(v interface{}) error {
	enc := yaml.NewEncoder(p.out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to convert to YAML: %w", err)
	}
	return enc.Close()
}

func (p *Printer) color(c text.Color, s string) string {
	if p.options.NoColor {
		return s
	}
	return c.Sprint(s)
}

// formatState formats an active state with icons
func (p *Printer) formatState(state api.ActiveState) string {
	switch state {
	case api.StateActive:
		return p.color(text.FgGreen, "🟢 "+string(state))
	case api.StateFailed:
		return p.color(text.FgRed, "🔴 "+string(state))
	case api.StateInactive:
		return p.color(text.FgHiBlack, "⚪ "+string(state))
	default:
		if state.IsTransitional() {
			return p.color(text.FgYellow, "🟡 "+string(state))
		}
		return string(state)
	}
}

func formatDescription(desc string) string {
	if len(desc) <= 50 {
		return desc
	}
	return desc[:45] + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func nonNil(services []api.ServiceRecord) []api.ServiceRecord {
	if services == nil {
		return []api.ServiceRecord{}
	}
	return services
}
