package output

import (
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/jhaxce/subdive/pkg/core"
)

// Writer handles output to console and file
type Writer struct {
	console   io.Writer
	file      *os.File
	formatter *Formatter
	plain     *Formatter // file output never carries color codes
	quiet     bool

	headers map[reflect.Type]bool
}

// NewWriter creates a new output writer. console receives results unless
// quiet; outputFile, when set, receives every result.
func NewWriter(console io.Writer, outputFile string, formatter *Formatter, quiet bool) (*Writer, error) {
	w := &Writer{
		console:   console,
		formatter: formatter,
		plain:     NewFormatter(formatter.format, false),
		quiet:     quiet,
		headers:   make(map[reflect.Type]bool),
	}

	if outputFile != "" {
		file, err := os.Create(outputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file: %w", err)
		}
		w.file = file
	}

	return w, nil
}

// WriteSection writes a listing heading (text format, console only)
func (w *Writer) WriteSection(title string, count int) {
	if w.quiet || w.formatter.format != core.FormatText {
		return
	}
	fmt.Fprintln(w.console, w.formatter.FormatSection(title, count))
}

// WriteResult writes a single result
func (w *Writer) WriteResult(v any) {
	if w.formatter.format == core.FormatCSV {
		w.writeCSVHeader(v)
	}

	if !w.quiet {
		fmt.Fprintln(w.console, w.formatter.Format(v))
	}
	if w.file != nil {
		fmt.Fprintln(w.file, w.plain.Format(v))
	}
}

// writeCSVHeader emits the header the first time a result kind is written
func (w *Writer) writeCSVHeader(v any) {
	t := reflect.TypeOf(v)
	if _, ok := v.(WildcardResolution); ok {
		t = reflect.TypeOf(core.Resolution{})
	}
	if w.headers[t] {
		return
	}
	w.headers[t] = true

	header := CSVHeader(v)
	if header == "" {
		return
	}
	if !w.quiet {
		fmt.Fprintln(w.console, header)
	}
	if w.file != nil {
		fmt.Fprintln(w.file, header)
	}
}

// WriteSummary writes an operation summary to the console
func (w *Writer) WriteSummary(line string) {
	if w.quiet || w.formatter.format == core.FormatCSV {
		return
	}
	fmt.Fprintln(w.console, line)
}

// Close closes the output file
func (w *Writer) Close() error {
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

// WriteAll writes every item as a result
func WriteAll[T any](w *Writer, items []T) {
	for _, item := range items {
		w.WriteResult(item)
	}
}
