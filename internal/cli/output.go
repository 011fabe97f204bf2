package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mt5-bridge/internal/orders"
	"mt5-bridge/internal/tools"
)

// Color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorWhite  = "\033[37m"
	ColorBold   = "\033[1m"
	ColorDim    = "\033[2m"
)

var attributes = map[string]color.Attribute{
	ColorReset:  color.Reset,
	ColorRed:    color.FgRed,
	ColorGreen:  color.FgGreen,
	ColorYellow: color.FgYellow,
	ColorCyan:   color.FgCyan,
	ColorWhite:  color.FgWhite,
	ColorBold:   color.Bold,
	ColorDim:    color.Faint,
}

// Output formats selected with --output.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Output handles formatted output for the CLI.
type Output struct {
	writer       io.Writer
	format       string
	colorEnabled bool
}

// NewOutput creates a new Output instance. --json wins over --output.
func NewOutput(cmd *cobra.Command) *Output {
	format, _ := cmd.Flags().GetString("output")
	if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
		format = FormatJSON
	}
	format = strings.ToLower(format)
	if format == "" {
		format = FormatTable
	}
	return &Output{
		writer:       cmd.OutOrStdout(),
		format:       format,
		colorEnabled: format == FormatTable && isTerminal(cmd.OutOrStdout()),
	}
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.format == FormatJSON
}

// IsStructured reports whether output is JSON or YAML.
func (o *Output) IsStructured() bool {
	return o.format == FormatJSON || o.format == FormatYAML
}

// JSON outputs data as JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// YAML outputs data as YAML with the keys the JSON encoding uses.
func (o *Output) YAML(data interface{}) error {
	generic, err := toGeneric(data)
	if err != nil {
		return err
	}
	encoder := yaml.NewEncoder(o.writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(generic); err != nil {
		return err
	}
	return encoder.Close()
}

// Structured writes data in the selected structured format.
func (o *Output) Structured(data interface{}) error {
	if o.format == FormatYAML {
		return o.YAML(data)
	}
	return o.JSON(data)
}

func toGeneric(data interface{}) (interface{}, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return generic, nil
}

// Println prints a message with newline.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Success prints a success message in green.
func (o *Output) Success(format string, args ...interface{}) {
	o.colored(ColorGreen, format, args...)
}

// Error prints an error message in red.
func (o *Output) Error(format string, args ...interface{}) {
	o.colored(ColorRed, format, args...)
}

// Warning prints a warning message in yellow.
func (o *Output) Warning(format string, args ...interface{}) {
	o.colored(ColorYellow, format, args...)
}

// Info prints an info message in cyan.
func (o *Output) Info(format string, args ...interface{}) {
	o.colored(ColorCyan, format, args...)
}

// Bold prints a bold message.
func (o *Output) Bold(format string, args ...interface{}) {
	o.colored(ColorBold, format, args...)
}

// Dim prints a dimmed message.
func (o *Output) Dim(format string, args ...interface{}) {
	o.colored(ColorDim, format, args...)
}

// paint returns a printer for code that honours the output's colour mode.
func (o *Output) paint(code string) *color.Color {
	c := color.New(attributes[code])
	if o.colorEnabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func (o *Output) colored(code, format string, args ...interface{}) {
	o.paint(code).Fprintln(o.writer, fmt.Sprintf(format, args...))
}

// ColoredString returns a colored string without newline.
func (o *Output) ColoredString(code, text string) string {
	return o.paint(code).Sprint(text)
}

// FormatProfit formats a profit with sign and colour.
func (o *Output) FormatProfit(profit float64, currency string) string {
	color := ColorWhite
	if profit > 0 {
		color = ColorGreen
	} else if profit < 0 {
		color = ColorRed
	}
	return o.ColoredString(color, FormatSigned(profit, currency))
}

// Tool renders a tool result in the selected format. Failed trade results
// are printed and returned as errors so the exit status reflects them.
func (o *Output) Tool(out *tools.Output) error {
	if o.IsStructured() {
		data := out.Data
		if data == nil {
			data = []interface{}{}
		}
		if err := o.Structured(data); err != nil {
			return err
		}
		return resultErr(out)
	}

	switch out.Format {
	case tools.FormatCSV:
		return o.csvTable(out.Content)
	case tools.FormatJSON:
		if res, ok := out.Data.(*orders.Result); ok {
			return o.result(res)
		}
		return o.keyValues(out.Data)
	default:
		o.Println(out.Content)
		return nil
	}
}

func resultErr(out *tools.Output) error {
	if !out.IsError {
		return nil
	}
	if res, ok := out.Data.(*orders.Result); ok {
		return res.Err()
	}
	return fmt.Errorf("%s", out.Content)
}

func (o *Output) result(res *orders.Result) error {
	if !res.Success {
		o.Error("✗ %s", res.Message)
		return res.Err()
	}
	o.Success("✓ %s", res.Message)
	return nil
}

func (o *Output) csvTable(content string) error {
	if strings.TrimSpace(content) == "" {
		o.Dim("No records")
		return nil
	}
	records, err := csv.NewReader(strings.NewReader(content)).ReadAll()
	if err != nil {
		return fmt.Errorf("reading table: %w", err)
	}
	headers := records[0]
	table := NewTable(o, headers...)
	for _, row := range records[1:] {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = TruncateString(cell, maxCellWidth)
			if i < len(headers) && headers[i] == "profit" {
				if v, err := strconv.ParseFloat(cell, 64); err == nil {
					cells[i] = o.FormatProfit(v, "")
				}
			}
		}
		table.AddRow(cells...)
	}
	table.Render()
	return nil
}

func (o *Output) keyValues(data interface{}) error {
	generic, err := toGeneric(data)
	if err != nil {
		return err
	}
	switch v := generic.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		width := 0
		for k := range v {
			keys = append(keys, k)
			if len(k) > width {
				width = len(k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			o.Printf("  %s  %v\n", PadRight(k+":", width+1), scalar(v[k]))
		}
	case []interface{}:
		if len(v) == 0 {
			o.Dim("No records")
		}
		for _, item := range v {
			o.Println(scalar(item))
		}
	default:
		o.Println(scalar(v))
	}
	return nil
}

func scalar(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case float64:
		return FormatNumber(x)
	case string:
		return x
	default:
		raw, _ := json.Marshal(x)
		return string(raw)
	}
}

// maxCellWidth caps table cells; longer values are cut with an ellipsis.
const maxCellWidth = 40

// Table represents a simple table for output.
type Table struct {
	headers []string
	rows    [][]string
	output  *Output
}

// NewTable creates a new table.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{
		headers: headers,
		rows:    make([][]string, 0),
		output:  output,
	}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render renders the table.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(stripANSI(h))
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				if n := len(stripANSI(cell)); n > widths[i] {
					widths[i] = n
				}
			}
		}
	}

	t.printRow(t.headers, widths, true)
	t.printSeparator(widths)
	for _, row := range t.rows {
		t.printRow(row, widths, false)
	}
}

func (t *Table) printRow(cells []string, widths []int, isHeader bool) {
	var parts []string
	for i, cell := range cells {
		if i < len(widths) {
			padding := widths[i] - len(stripANSI(cell))
			if padding < 0 {
				padding = 0
			}
			padded := cell + strings.Repeat(" ", padding)
			if !isHeader && isNumeric(stripANSI(cell)) {
				padded = strings.Repeat(" ", padding) + cell
			}
			if isHeader {
				padded = t.output.ColoredString(ColorBold, padded)
			}
			parts = append(parts, padded)
		}
	}
	t.output.Println(strings.TrimRight(strings.Join(parts, "  "), " "))
}

func (t *Table) printSeparator(widths []int) {
	var parts []string
	for _, w := range widths {
		parts = append(parts, strings.Repeat("-", w))
	}
	t.output.Println(t.output.ColoredString(ColorDim, strings.Join(parts, "  ")))
}

// isNumeric reports whether a table cell holds a number, possibly grouped
// with commas and signed.
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	return err == nil
}

// stripANSI removes the colour codes this package emits.
func stripANSI(s string) string {
	for _, esc := range []string{
		ColorReset, ColorRed, ColorGreen, ColorYellow,
		ColorCyan, ColorWhite, ColorBold, ColorDim,
	} {
		s = strings.ReplaceAll(s, esc, "")
	}
	return s
}
