// Package render prints run reports, operation lists and identifier snapshots as a table or as
// JSON, YAML or TOML.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/reident/reident/backup"
	"github.com/reident/reident/host"
	"github.com/reident/reident/identity"
	"github.com/reident/reident/operations"
)

// Format is an output format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTOML  Format = "toml"
)

// Formats lists every supported format.
var Formats = []Format{FormatTable, FormatJSON, FormatYAML, FormatTOML}

// ParseFormat converts s into a Format. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatYAML, FormatTOML:
		return f, nil
	default:
		return "", fmt.Errorf("invalid output format %q: must be one of %v", s, Formats)
	}
}

// Printer writes values to w in one format.
type Printer struct {
	w      io.Writer
	format Format
	colors palette
}

// NewPrinter returns a Printer. useColor only affects the table format.
func NewPrinter(w io.Writer, format Format, useColor bool) *Printer {
	return &Printer{w: w, format: format, colors: newPalette(useColor)}
}

// OperationInfo describes a registered operation.
type OperationInfo struct {
	ID             string               `json:"id" yaml:"id" toml:"id"`
	Version        string               `json:"version" yaml:"version" toml:"version"`
	Risk           operations.RiskLevel `json:"risk" yaml:"risk" toml:"risk"`
	RequiresReboot bool                 `json:"requires_reboot" yaml:"requires_reboot" toml:"requires_reboot"`
	Restorable     bool                 `json:"restorable" yaml:"restorable" toml:"restorable"`
	Description    string               `json:"description" yaml:"description" toml:"description"`
}

// Describe returns the OperationInfo of each op.
func Describe(ops []*operations.Operation) []OperationInfo {
	out := make([]OperationInfo, len(ops))
	for i, op := range ops {
		out[i] = OperationInfo{
			ID:             op.ID(),
			Version:        op.Version(),
			Risk:           op.Risk(),
			RequiresReboot: op.NeedsReboot(),
			Restorable:     op.CanRestore(),
			Description:    op.Description(),
		}
	}

	return out
}

type reportDoc struct {
	Run     operations.RunReport `json:"run" yaml:"run" toml:"run"`
	Summary operations.Summary   `json:"summary" yaml:"summary" toml:"summary"`
}

// Report prints a finished run followed by its summary.
func (p *Printer) Report(r operations.RunReport) error {
	summary := operations.Summarize(r)
	if p.format != FormatTable {
		return p.encode(reportDoc{Run: r, Summary: summary})
	}

	rows := make([][]string, 0, len(r.Results))
	for _, res := range r.Results {
		rows = append(rows, []string{res.OperationID, p.colors.status(res.Status), res.Detail})
	}
	p.table([]string{"Operation", "Status", "Detail"}, rows)

	fmt.Fprintf(p.w, "Run %s %s: %d succeeded, %d failed, %d skipped\n",
		r.RunID, r.Status, summary.Succeeded, summary.Failed, summary.Skipped)
	if summary.RequiresReboot {
		fmt.Fprintln(p.w, p.colors.warn.Sprint("Reboot required for all changes to take effect."))
	}

	return nil
}

// Operations prints the given operations.
func (p *Printer) Operations(ops []*operations.Operation) error {
	infos := Describe(ops)
	if p.format != FormatTable {
		return p.encode(struct {
			Operations []OperationInfo `json:"operations" yaml:"operations" toml:"operations"`
		}{infos})
	}

	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{
			info.ID, info.Version, p.colors.risk(info.Risk), strconv.FormatBool(info.RequiresReboot), info.Description,
		})
	}
	p.table([]string{"Operation", "Version", "Risk", "Reboot", "Description"}, rows)

	return nil
}

// Identifiers prints an identifier snapshot.
func (p *Printer) Identifiers(ids identity.Identifiers) error {
	if p.format != FormatTable {
		return p.encode(ids)
	}

	p.table(nil, [][]string{
		{"Interface", orUnknown(ids.Interface)},
		{"MAC address", orUnknown(ids.MACAddress)},
		{"Machine ID", orUnknown(ids.MachineID)},
		{"Filesystem UUID", orUnknown(ids.FilesystemUUID)},
		{"Hostname", orUnknown(ids.Hostname)},
		{"Platform", platform(ids.Platform)},
		{"Virtualization", orNone(ids.Platform.Virtualization)},
	})

	return nil
}

// Restore prints the outcome of a restore.
func (p *Printer) Restore(results []backup.RestoreResult) error {
	if p.format != FormatTable {
		return p.encode(struct {
			Restored []backup.RestoreResult `json:"restored" yaml:"restored" toml:"restored"`
		}{results})
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{r.OperationName, r.PriorValue, p.colors.status(r.Status), r.Detail})
	}
	p.table([]string{"Operation", "Prior value", "Status", "Detail"}, rows)

	return nil
}

func (p *Printer) table(header []string, rows [][]string) {
	table := tablewriter.NewWriter(p.w)
	table.SetAutoWrapText(false)
	if len(header) > 0 {
		table.SetHeader(header)
	}
	table.AppendBulk(rows)
	table.Render()
}

func (p *Printer) encode(v any) error {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")

		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}

		return enc.Close()
	case FormatTOML:
		return toml.NewEncoder(p.w).Encode(v)
	default:
		return fmt.Errorf("unsupported output format %q", p.format)
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}

	return s
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}

	return s
}

func platform(p host.Platform) string {
	name := strings.TrimSpace(p.Distribution + " " + p.Version)
	switch {
	case name == "" && p.Kernel == "":
		return orUnknown(p.OS)
	case p.Kernel == "":
		return name
	case name == "":
		return p.OS + " " + p.Kernel
	default:
		return name + " (" + p.Kernel + ")"
	}
}

// palette holds the colors used in tables and progress lines.
type palette struct {
	ok, fail, skip, warn *color.Color
}

func newPalette(enabled bool) palette {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}

		return c
	}

	return palette{
		ok:   mk(color.FgGreen),
		fail: mk(color.FgRed, color.Bold),
		skip: mk(color.FgYellow),
		warn: mk(color.FgYellow, color.Bold),
	}
}

func (c palette) status(s operations.Status) string {
	switch s {
	case operations.StatusSuccess:
		return c.ok.Sprint(s)
	case operations.StatusFailed:
		return c.fail.Sprint(s)
	default:
		return c.skip.Sprint(s)
	}
}

func (c palette) risk(r operations.RiskLevel) string {
	switch r {
	case operations.RiskHigh:
		return c.fail.Sprint(r)
	case operations.RiskMedium:
		return c.skip.Sprint(r)
	default:
		return c.ok.Sprint(r)
	}
}
