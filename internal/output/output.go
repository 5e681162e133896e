// Package output renders zone and record listings for the command line.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/fatih/color"
	"go.yaml.in/yaml/v3"

	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/dns"
)

// Output styles.
const (
	StyleSimple = "simple"
	StylePlain  = "plain"
	StyleGithub = "github"
	StyleGrid   = "grid"
	StyleTSV    = "tsv"
	StyleJSON   = "json"
	StyleYAML   = "yaml"
)

// Styles lists every supported style; StyleSimple is the default.
var Styles = []string{StyleSimple, StylePlain, StyleGithub, StyleGrid, StyleTSV, StyleJSON, StyleYAML}

// ValidStyle reports whether style is one of Styles.
func ValidStyle(style string) bool {
	return slices.Contains(Styles, style)
}

var header = color.New(color.Bold, color.FgCyan)

// Zones writes a zone listing.
func Zones(w io.Writer, style string, zones []dns.Zone) error {
	if zones == nil {
		zones = []dns.Zone{}
	}
	rows := make([][]string, 0, len(zones))
	for _, z := range zones {
		rows = append(rows, []string{z.Domain, z.ID})
	}
	return render(w, style, []string{"domain", "id"}, rows, zones)
}

// Records writes a record listing.
func Records(w io.Writer, style string, records []dns.Record) error {
	if records == nil {
		records = []dns.Record{}
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.Name, r.ID, string(r.Type), r.Target, strconv.Itoa(r.TTL)})
	}
	return render(w, style, []string{"name", "id", "type", "target", "ttl"}, rows, records)
}

func render(w io.Writer, style string, headers []string, rows [][]string, data any) error {
	switch style {
	case StyleJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "    ")
		return enc.Encode(data)
	case StyleYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	case StylePlain, StyleTSV:
		return tabular(w, style, headers, rows)
	case StyleSimple, StyleGithub, StyleGrid, "":
		return bordered(w, style, headers, rows)
	default:
		return fmt.Errorf("unknown output style %q (want one of %s)", style, strings.Join(Styles, ", "))
	}
}

// tabular writes unbordered columns: aligned for plain, tab separated for tsv.
func tabular(w io.Writer, style string, headers []string, rows [][]string) error {
	if style == StyleTSV {
		for _, row := range append([][]string{headers}, rows...) {
			if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
				return err
			}
		}
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// bordered writes a table with a header row. Widths are computed before
// coloring, since escape sequences would skew any width measurement.
func bordered(w io.Writer, style string, headers []string, rows [][]string) error {
	widths := make([]int, len(headers))
	for _, row := range append([][]string{headers}, rows...) {
		for i, cell := range row {
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}

	pad := func(cell string, i int) string {
		return cell + strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell))
	}
	line := func(cells []string, colorize bool) string {
		out := make([]string, len(cells))
		for i, c := range cells {
			out[i] = pad(c, i)
			if colorize {
				out[i] = header.Sprint(out[i])
			}
		}
		switch style {
		case StyleGithub, StyleGrid:
			return "| " + strings.Join(out, " | ") + " |"
		default:
			return strings.Join(out, "  ")
		}
	}
	rule := func(fill, edge, join string) string {
		parts := make([]string, len(widths))
		for i, n := range widths {
			parts[i] = strings.Repeat(fill, n)
		}
		if style == StyleSimple || style == "" {
			return strings.Join(parts, "  ")
		}
		return edge + fill + strings.Join(parts, fill+join+fill) + fill + edge
	}

	var b strings.Builder
	switch style {
	case StyleGrid:
		b.WriteString(rule("-", "+", "+") + "\n")
		b.WriteString(line(headers, true) + "\n")
		b.WriteString(rule("=", "+", "+") + "\n")
		for _, row := range rows {
			b.WriteString(line(row, false) + "\n")
			b.WriteString(rule("-", "+", "+") + "\n")
		}
	case StyleGithub:
		b.WriteString(line(headers, true) + "\n")
		b.WriteString(rule("-", "|", "|") + "\n")
		for _, row := range rows {
			b.WriteString(line(row, false) + "\n")
		}
	default:
		b.WriteString(line(headers, true) + "\n")
		b.WriteString(rule("-", "", "") + "\n")
		for _, row := range rows {
			b.WriteString(line(row, false) + "\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
