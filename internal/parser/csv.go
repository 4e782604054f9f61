package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"trackmatch-srv/internal/catalog"
	"trackmatch-srv/internal/models"
)

var (
	// ErrUnparseable means no row could be recovered and the reader reported
	// errors.
	ErrUnparseable = errors.New("input is not tabular data")
	// ErrNoRows means the input parsed but held no usable row. ParseCSV
	// itself never returns it; callers that need rows decide.
	ErrNoRows = errors.New("input contains no rows")
)

type column int

const (
	colNone column = iota
	colTitle
	colArtist
	colISRC
	colURI
)

// canonical header mapping
var headerAliases = map[string]column{
	"title":       colTitle,
	"track":       colTitle,
	"track_title": colTitle,
	"track_name":  colTitle,
	"song":        colTitle,
	"song_title":  colTitle,
	"song_name":   colTitle,
	"name":        colTitle,

	"artist":        colArtist,
	"artists":       colArtist,
	"artist_s":      colArtist,
	"artist_name":   colArtist,
	"artist_names":  colArtist,
	"artist_name_s": colArtist,
	"album_artist":  colArtist,
	"performer":     colArtist,
	"band":          colArtist,

	"isrc":       colISRC,
	"track_isrc": colISRC,
	"isrc_code":  colISRC,

	"spotify":           colURI,
	"spotify_uri":       colURI,
	"spotify_track_uri": colURI,
	"spotify_id":        colURI,
	"spotify_url":       colURI,
	"track_uri":         colURI,
	"track_id":          colURI,
	"uri":               colURI,
	"url":               colURI,
}

var (
	headerCleaner = regexp.MustCompile(`[^a-z0-9]+`)
	spotifyURI    = regexp.MustCompile(`^spotify:track:([A-Za-z0-9]{22})$`)
	spotifyURL    = regexp.MustCompile(`^https?://open\.spotify\.com/(?:intl-[a-z-]+/)?track/([A-Za-z0-9]{22})`)
	spotifyBareID = regexp.MustCompile(`^[A-Za-z0-9]{22}$`)
)

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
	return strings.Trim(headerCleaner.ReplaceAllString(s, "_"), "_")
}

// ParseCSV reads delimited text into source rows. A recognizable title header
// selects header-based parsing; otherwise every line is parsed positionally.
// Rows without a title are dropped, as are malformed lines; the input only
// fails as a whole when nothing parsed and the reader reported errors. Empty
// and header-only input both yield no rows and no error.
func ParseCSV(r io.Reader) ([]models.SourceRow, error) {
	br := bufio.NewReader(r)
	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(br)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		records   [][]string
		parseErrs []error
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				parseErrs = append(parseErrs, err)
				continue
			}
			return nil, fmt.Errorf("read csv: %w", err)
		}
		records = append(records, record)
	}

	var rows []models.SourceRow
	if len(records) > 0 {
		if columns, ok := detectHeader(records[0]); ok {
			rows = parseWithHeader(columns, records[1:])
		} else {
			rows = parsePositional(records)
		}
	}
	if len(rows) == 0 && len(parseErrs) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, errors.Join(parseErrs...))
	}
	return rows, nil
}

// sniffDelimiter picks the most frequent of comma, semicolon and tab on the
// first line.
func sniffDelimiter(br *bufio.Reader) rune {
	line, _ := br.Peek(4096)
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func detectHeader(record []string) (map[int]column, bool) {
	columns := make(map[int]column)
	seen := make(map[column]bool)
	for i, h := range record {
		c, ok := headerAliases[normalizeHeader(h)]
		if !ok || seen[c] {
			continue
		}
		columns[i] = c
		seen[c] = true
	}
	return columns, seen[colTitle]
}

func parseWithHeader(columns map[int]column, records [][]string) []models.SourceRow {
	rows := make([]models.SourceRow, 0, len(records))
	for _, record := range records {
		var row models.SourceRow
		for i, v := range record {
			val := strings.TrimSpace(v)
			if val == "" {
				continue
			}
			switch columns[i] {
			case colTitle:
				row.Title = val
			case colArtist:
				row.Artist = val
			case colISRC:
				row.ISRC = catalog.NormalizeISRC(val)
			case colURI:
				if id := SpotifyTrackID(val); id != "" {
					row.SourceID = id
					row.Type = "spotify"
				}
			}
		}
		if row.Title == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func parsePositional(records [][]string) []models.SourceRow {
	rows := make([]models.SourceRow, 0, len(records))
	for _, record := range records {
		cells := make([]string, len(record))
		for i, v := range record {
			cells[i] = strings.TrimSpace(v)
		}

		var row models.SourceRow
		titleAt := 0
		if id := linkedTrackID(cell(cells, 0)); id != "" {
			row.SourceID, row.Type = id, "spotify"
			titleAt = 1
		}
		row.Title = cell(cells, titleAt)
		row.Artist = cell(cells, titleAt+1)

		for i := titleAt + 2; i < len(cells) && row.SourceID == ""; i++ {
			if id := linkedTrackID(cells[i]); id != "" {
				row.SourceID, row.Type = id, "spotify"
			}
		}
		for i, c := range cells {
			if i == titleAt {
				continue
			}
			if isrc := catalog.NormalizeISRC(c); isrc != "" {
				row.ISRC = isrc
				break
			}
		}

		if row.Title == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// SpotifyTrackID extracts a track id from a spotify URI, open.spotify.com
// URL or bare base62 id.
func SpotifyTrackID(s string) string {
	if id := linkedTrackID(s); id != "" {
		return id
	}
	if spotifyBareID.MatchString(s) && !isAllDigits(s) {
		return s
	}
	return ""
}

// linkedTrackID only accepts the URI and URL forms. Positional cells carry no
// header, and a bare id is indistinguishable from a 22-letter word.
func linkedTrackID(s string) string {
	if m := spotifyURI.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if m := spotifyURL.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func cell(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}
