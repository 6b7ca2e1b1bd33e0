// Package output provides result formatting functionality
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/jhaxce/subdive/pkg/core"
	"github.com/jhaxce/subdive/pkg/rdap"
	"github.com/jhaxce/subdive/pkg/runner"
)

// CSVSeparator separates CSV fields
const CSVSeparator = "|"

// WildcardResolution is a resolution flagged as lying inside a wildcard zone
type WildcardResolution struct {
	core.Resolution
}

// Formatter renders results in text, JSON lines or CSV
type Formatter struct {
	format core.OutputFormat

	red     *color.Color
	green   *color.Color
	yellow  *color.Color
	cyan    *color.Color
	magenta *color.Color
	bold    *color.Color
}

// NewFormatter creates a new result formatter
func NewFormatter(format core.OutputFormat, useColors bool) *Formatter {
	f := &Formatter{
		format:  format,
		red:     color.New(color.FgRed),
		green:   color.New(color.FgGreen),
		yellow:  color.New(color.FgYellow),
		cyan:    color.New(color.FgCyan),
		magenta: color.New(color.FgMagenta),
		bold:    color.New(color.Bold),
	}

	for _, c := range []*color.Color{f.red, f.green, f.yellow, f.cyan, f.magenta, f.bold} {
		if useColors {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return f
}

// Format renders a single result. Unknown values render with %v.
func (f *Formatter) Format(v any) string {
	switch f.format {
	case core.FormatJSON:
		if w, ok := v.(WildcardResolution); ok {
			r := w.Resolution
			r.Wildcard = true
			v = r
		}
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf(`{"error":%q}`, err.Error())
		}
		return string(data)
	case core.FormatCSV:
		return csvRow(csvFields(v))
	default:
		return f.formatText(v)
	}
}

// CSVHeader returns the CSV header line for the kind of v, "" if unknown
func CSVHeader(v any) string {
	var cols []string
	switch v.(type) {
	case core.Resolution, WildcardResolution:
		cols = []string{"hostname", "address", "context", "wildcard"}
	case core.ReverseRecord:
		cols = []string{"hostname", "address"}
	case core.OpenPort:
		cols = []string{"address", "port", "secured"}
	case core.WildcardRecord:
		cols = []string{"subdomain", "domain", "address", "timestamp"}
	case core.ASNRecord:
		cols = []string{"asn", "prefix", "description"}
	case core.NetworkRecord:
		cols = []string{"cidr", "name"}
	case *rdap.DomainInfo:
		cols = []string{"domain", "registrar", "registrant", "created", "expires", "name_servers"}
	default:
		return ""
	}
	return csvRow(cols)
}

// csvRow encodes one record, quoting fields that contain the separator
func csvRow(fields []string) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	w.Comma = rune(CSVSeparator[0])
	if err := w.Write(fields); err != nil {
		return strings.Join(fields, CSVSeparator)
	}
	w.Flush()
	return strings.TrimSuffix(sb.String(), "\n")
}

func csvFields(v any) []string {
	switch r := v.(type) {
	case core.Resolution:
		return []string{r.Hostname, r.Address, r.Context, strconv.FormatBool(r.Wildcard)}
	case WildcardResolution:
		return []string{r.Hostname, r.Address, r.Context, "true"}
	case core.ReverseRecord:
		return []string{r.Hostname, r.Address}
	case core.OpenPort:
		return []string{r.Address, strconv.Itoa(r.Port), strconv.FormatBool(r.Secured)}
	case core.WildcardRecord:
		return []string{r.Subdomain, r.Domain, r.Address, strconv.FormatInt(r.Timestamp, 10)}
	case core.ASNRecord:
		return []string{r.ASN, r.Prefix, r.Description}
	case core.NetworkRecord:
		return []string{r.CIDR, r.Name}
	case *rdap.DomainInfo:
		return []string{r.Domain, r.Registrar, r.Registrant, r.CreatedDate, r.ExpirationDate, strings.Join(r.NameServers, ",")}
	default:
		return []string{fmt.Sprint(v)}
	}
}

func (f *Formatter) formatText(v any) string {
	switch r := v.(type) {
	case core.Resolution:
		return fmt.Sprintf("  \\__ %s (%s)", f.cyan.Sprint(r.Hostname), f.yellow.Sprint(r.Address))
	case WildcardResolution:
		return fmt.Sprintf("  \\__ %s (%s)", f.cyan.Sprint(r.Hostname), f.red.Sprint(r.Address))
	case core.ReverseRecord:
		return fmt.Sprintf("  \\__ %s (%s)", f.cyan.Sprint(r.Hostname), f.yellow.Sprint(r.Address))
	case core.OpenPort:
		scheme := "http"
		if r.Secured {
			scheme = "https"
		}
		return fmt.Sprintf("  \\__ %s:%s (%s)", f.cyan.Sprint(r.Address), f.green.Sprint(r.Port), f.yellow.Sprint(scheme))
	case core.WildcardRecord:
		return fmt.Sprintf("  \\__ %s.%s ==> %s", f.red.Sprint("*"), f.cyan.Sprint(r.Zone()), f.red.Sprint(r.Address))
	case core.ASNRecord:
		return fmt.Sprintf("  \\__ %s %s (%s)", f.magenta.Sprint("AS"+r.ASN), f.cyan.Sprint(r.Prefix), r.Description)
	case core.NetworkRecord:
		return fmt.Sprintf("  \\__ %s (%s)", f.cyan.Sprint(r.CIDR), r.Name)
	case *rdap.DomainInfo:
		return f.formatDomainInfo(r)
	default:
		return fmt.Sprint(v)
	}
}

func (f *Formatter) formatDomainInfo(info *rdap.DomainInfo) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "  \\__ %s %s\n", f.yellow.Sprint("Domain:"), f.cyan.Sprint(info.Domain))
	fmt.Fprintf(&sb, "  \\__ %s %s\n", f.yellow.Sprint("Registrar:"), info.Registrar)
	if info.Registrant != "" {
		fmt.Fprintf(&sb, "  \\__ %s %s\n", f.yellow.Sprint("Registrant:"), info.Registrant)
	}
	if info.CreatedDate != "" {
		fmt.Fprintf(&sb, "  \\__ %s %s\n", f.yellow.Sprint("Created:"), info.CreatedDate)
	}
	if info.ExpirationDate != "" {
		fmt.Fprintf(&sb, "  \\__ %s %s\n", f.yellow.Sprint("Expires:"), info.ExpirationDate)
	}
	for _, ns := range info.NameServers {
		fmt.Fprintf(&sb, "  \\__ %s %s\n", f.yellow.Sprint("Name server:"), f.cyan.Sprint(ns))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// FormatSection formats the heading printed before a result listing
func (f *Formatter) FormatSection(title string, count int) string {
	return fmt.Sprintf("%s %s", f.yellow.Sprintf("[*]-%s:", title), f.cyan.Sprint(count))
}

// FormatSummary formats the run statistics of an operation
func (f *Formatter) FormatSummary(operation string, stats runner.Stats) string {
	if f.format == core.FormatJSON {
		data, _ := json.Marshal(struct {
			Operation string `json:"operation"`
			runner.Stats
		}{operation, stats})
		return string(data)
	}

	return fmt.Sprintf("%s %s of %s (%s failed, %s chunk(s))",
		f.bold.Sprintf("[+] %s:", operation),
		f.green.Sprint(stats.Succeeded),
		f.bold.Sprint(stats.Total),
		f.red.Sprint(stats.Failed),
		f.cyan.Sprint(stats.Chunks),
	)
}
