// Package report renders import results and playlists for terminals and
// machine consumers.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"trackmatch-srv/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Format selects an output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat accepts table, json and yaml (yml), case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// WriteResult renders an import result. The table form prints the summary
// followed by the unmatched sample with each row's best candidate.
func WriteResult(w io.Writer, res *models.ImportResult, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, res)
	case FormatYAML:
		return writeYAML(w, res)
	}

	if err := WriteSummary(w, res); err != nil {
		return err
	}
	if len(res.UnmatchedSample) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(res.UnmatchedSample))
	for i, missing := range res.UnmatchedSample {
		best, score := "-", ""
		if len(missing.Candidates) > 0 {
			c := missing.Candidates[0]
			best = fmt.Sprintf("%s - %s [%s]", c.Artist, c.Title, c.TrackKey)
			score = strconv.FormatFloat(c.Score, 'f', 2, 64)
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), missing.Title, missing.Artist, best, score})
	}
	_, err := fmt.Fprintln(w, renderTable(
		[]string{"#", "Title", "Artist", "Best candidate", "Score"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight},
	))
	return err
}

// WriteSummary prints the counters of a result, colored when w is a terminal.
func WriteSummary(w io.Writer, res *models.ImportResult) error {
	ok := color.New(color.FgGreen, color.Bold)
	warn := color.New(color.FgYellow)
	faint := color.New(color.Faint)

	lines := []struct {
		c     *color.Color
		label string
		value string
	}{
		{nil, "Playlist", fmt.Sprintf("%s (#%d)", res.PlaylistName, res.PlaylistID)},
		{faint, "Mode", res.MatchingMode},
		{nil, "Source rows", strconv.Itoa(res.SourceCount)},
		{ok, "Added", strconv.Itoa(res.MatchedCount)},
		{nil, "Fuzzy", strconv.Itoa(res.FuzzyMatchedCount)},
		{faint, "Already present", strconv.Itoa(res.DuplicatesSkipped)},
		{warn, "Unmatched", strconv.Itoa(res.UnmatchedCount)},
	}
	for _, l := range lines {
		value := l.value
		if l.c != nil {
			value = l.c.Sprint(value)
		}
		if _, err := fmt.Fprintf(w, "%-16s %s\n", l.label+":", value); err != nil {
			return err
		}
	}
	return nil
}

// PlaylistView is a playlist with its ordered items resolved against the
// catalog where possible.
type PlaylistView struct {
	Playlist models.Playlist    `json:"playlist"`
	Items    []PlaylistViewItem `json:"items"`
}

type PlaylistViewItem struct {
	models.PlaylistItem
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
}

// WritePlaylist renders one playlist and its membership.
func WritePlaylist(w io.Writer, view PlaylistView, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, view)
	case FormatYAML:
		return writeYAML(w, view)
	}

	if _, err := fmt.Fprintf(w, "%s (#%d)\n", view.Playlist.Name, view.Playlist.ID); err != nil {
		return err
	}
	if len(view.Items) == 0 {
		_, err := fmt.Fprintln(w, "Playlist is empty")
		return err
	}
	rows := make([][]string, 0, len(view.Items))
	for _, item := range view.Items {
		rows = append(rows, []string{strconv.Itoa(item.SortOrder), item.TrackKey, item.Title, item.Artist})
	}
	_, err := fmt.Fprintln(w, renderTable(
		[]string{"Order", "Track", "Title", "Artist"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
	))
	return err
}

// WritePlaylists renders a playlist listing.
func WritePlaylists(w io.Writer, playlists []models.Playlist, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, playlists)
	case FormatYAML:
		return writeYAML(w, playlists)
	}

	if len(playlists) == 0 {
		_, err := fmt.Fprintln(w, "No playlists")
		return err
	}
	rows := make([][]string, 0, len(playlists))
	for _, p := range playlists {
		rows = append(rows, []string{strconv.FormatInt(p.ID, 10), p.Name, p.Icon, p.Color, strconv.Itoa(p.SortOrder)})
	}
	_, err := fmt.Fprintln(w, renderTable(
		[]string{"ID", "Name", "Icon", "Color", "Order"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight},
	))
	return err
}

// WriteKeyValues renders label/value pairs as a two-column table.
func WriteKeyValues(w io.Writer, headers [2]string, pairs [][2]string) error {
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{p[0], p[1]})
	}
	_, err := fmt.Fprintln(w, renderTable(headers[:], rows, []columnAlignment{alignLeft, alignRight}))
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML goes through the JSON encoding so YAML keys follow the json tags
// and field order of the models.
func writeYAML(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return fmt.Errorf("convert to yaml: %w", err)
	}
	resetStyle(&node)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// resetStyle drops the flow style inherited from JSON input so the output is
// block YAML.
func resetStyle(n *yaml.Node) {
	if n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode {
		n.Style = 0
	}
	if n.Kind == yaml.ScalarNode && n.Style == yaml.DoubleQuotedStyle {
		n.Style = 0
	}
	for _, child := range n.Content {
		resetStyle(child)
	}
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
