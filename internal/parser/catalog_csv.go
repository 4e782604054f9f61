package parser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"trackmatch-srv/internal/catalog"
	"trackmatch-srv/internal/models"
)

var catalogColumns = map[string]string{
	"release_id": "release_id",
	"release":    "release_id",
	"track_id":   "track_id",
	"track_key":  "track_key",
	"title":      "title",
	"track":      "title",
	"artist":     "artist",
	"side":       "side",
	"position":   "position",
	"isrc":       "isrc",
}

// ParseCatalogCSV reads an inventory export. The header must name either
// track_key or both release_id and track_id, plus title. Unlike ParseCSV it
// is strict: any bad line fails the whole file.
func ParseCatalogCSV(r io.Reader) ([]models.CatalogEntry, error) {
	br := bufio.NewReader(r)
	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(br)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	index := make(map[string]int)
	for i, h := range header {
		if name, ok := catalogColumns[normalizeHeader(h)]; ok {
			if _, dup := index[name]; !dup {
				index[name] = i
			}
		}
	}
	_, hasKey := index["track_key"]
	_, hasRelease := index["release_id"]
	_, hasTrack := index["track_id"]
	if _, ok := index["title"]; !ok || !(hasKey || (hasRelease && hasTrack)) {
		return nil, fmt.Errorf("%w: catalog header needs title and track_key or release_id,track_id", ErrUnparseable)
	}

	get := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var entries []models.CatalogEntry
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		line, _ := reader.FieldPos(0)

		entry := models.CatalogEntry{
			TrackKey: get(record, "track_key"),
			Title:    get(record, "title"),
			Artist:   get(record, "artist"),
			Side:     get(record, "side"),
			Position: get(record, "position"),
			ISRC:     catalog.NormalizeISRC(get(record, "isrc")),
		}
		if entry.TrackKey == "" {
			release, err := strconv.ParseInt(get(record, "release_id"), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad release id: %w", line, err)
			}
			track := get(record, "track_id")
			if track == "" {
				return nil, fmt.Errorf("line %d: missing track id", line)
			}
			entry.TrackKey = models.MakeTrackKey(release, track)
		} else if _, _, err := models.SplitTrackKey(entry.TrackKey); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if entry.Title == "" {
			return nil, fmt.Errorf("line %d: missing title", line)
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return nil, ErrNoRows
	}
	return entries, nil
}
