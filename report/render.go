package report

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/yairfalse/azruntime/inventory"
)

// EmptyMessage is printed by the table renderer when there are no rows.
const EmptyMessage = "No VMs found"

var header = []string{"VM name", "Subscription", "ResourceGroup", "Size", "Location", "Status", "TimeInState"}

// Renderer writes ordered rows to w.
type Renderer interface {
	Render(w io.Writer, rows []inventory.Row) error
}

// NewRenderer returns the renderer for format: table, json or csv.
func NewRenderer(format string, colored bool) (Renderer, error) {
	switch format {
	case "table", "":
		return &TableRenderer{Palette: DefaultPalette, Color: colored}, nil
	case "json":
		return JSONRenderer{}, nil
	case "csv":
		return CSVRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// UseColor resolves a color mode (auto, always, never) for f. Auto colors
// only terminals.
func UseColor(mode string, f *os.File) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return IsTerminal(f)
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

func fields(r inventory.Row) []string {
	return []string{
		r.VM.Name,
		r.VM.Subscription.Name(),
		r.VM.ResourceGroup,
		r.VM.Size,
		r.VM.Location,
		r.Status,
		r.Duration.Text,
	}
}

// TableRenderer prints an aligned table with one color per row.
type TableRenderer struct {
	Palette Palette
	Color   bool
}

// Render implements Renderer.
func (t *TableRenderer) Render(w io.Writer, rows []inventory.Row) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, EmptyMessage)
		return err
	}

	// Align first, then color whole lines so escape codes do not skew the
	// column widths.
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	writeTabbed(tw, header)
	for _, r := range rows {
		writeTabbed(tw, fields(r))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	sc := bufio.NewScanner(&buf)
	line := 0
	for sc.Scan() {
		text := sc.Text()
		if line > 0 && t.Color {
			c := t.Palette.Color(rows[line-1].Duration.Severity)
			c.EnableColor()
			text = c.Sprint(text)
		}
		if _, err := fmt.Fprintln(w, text); err != nil {
			return err
		}
		line++
	}
	return sc.Err()
}

// A table cell must not break a line or a column, or lines stop mapping to
// rows one to one.
var cellReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")

func writeTabbed(w io.Writer, cols []string) {
	for i, c := range cols {
		if i > 0 {
			_, _ = io.WriteString(w, "\t")
		}
		_, _ = io.WriteString(w, cellReplacer.Replace(c))
	}
	_, _ = io.WriteString(w, "\n")
}

// JSONRenderer prints rows as an indented JSON array.
type JSONRenderer struct{}

type jsonRow struct {
	Name          string `json:"name"`
	ID            string `json:"id"`
	Subscription  string `json:"subscription"`
	ResourceGroup string `json:"resource_group"`
	Size          string `json:"size"`
	Location      string `json:"location"`
	Status        string `json:"status"`
	TimeInState   string `json:"time_in_state"`
	Severity      string `json:"severity"`
	Tier          int    `json:"tier"`
	Error         string `json:"error,omitempty"`
}

// Render implements Renderer.
func (JSONRenderer) Render(w io.Writer, rows []inventory.Row) error {
	out := make([]jsonRow, 0, len(rows))
	for _, r := range rows {
		jr := jsonRow{
			Name:          r.VM.Name,
			ID:            r.VM.ID,
			Subscription:  r.VM.Subscription.Name(),
			ResourceGroup: r.VM.ResourceGroup,
			Size:          r.VM.Size,
			Location:      r.VM.Location,
			Status:        r.Status,
			TimeInState:   r.Duration.Text,
			Severity:      r.Duration.Severity.Lineage.String(),
			Tier:          r.Duration.Severity.Tier,
		}
		if r.Err != nil {
			jr.Error = r.Err.Error()
		}
		out = append(out, jr)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// CSVRenderer prints a header line and one record per row.
type CSVRenderer struct{}

// Render implements Renderer.
func (CSVRenderer) Render(w io.Writer, rows []inventory.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(fields(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
