package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"webtoonhub/pkg/models"
)

var csvHeader = []string{
	"id", "title", "genre", "author", "episode_count", "episodes", "access",
	"cover_image_url", "detail_url", "score", "subscriber_count", "summary",
	"first_seen_at", "last_updated_at",
}

func writeCSV(out io.Writer, list []models.Comic) error {
	w := csv.NewWriter(out)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, c := range list {
		if err := w.Write([]string{
			c.ID,
			c.Title,
			c.Genre,
			c.Author,
			strconv.Itoa(c.EpisodeCount),
			c.EpisodesLabel,
			c.AccessNote,
			c.CoverImageURL,
			c.DetailURL,
			c.Score,
			c.SubscriberCount,
			c.Summary,
			formatTime(c.FirstSeenAt),
			formatTime(c.LastUpdatedAt),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// readCSV parses rows by header name, so columns may come in any order.
// Rows without an id are skipped. The episodes column is ignored; the label
// is always derived from episode_count.
func readCSV(in io.Reader) ([]models.Comic, error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	var out []models.Comic
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		id := valueAt(header, row, "id")
		if id == "" {
			continue
		}

		c := models.Comic{
			ID:              id,
			Title:           valueAt(header, row, "title"),
			Genre:           valueAt(header, row, "genre"),
			Author:          valueAt(header, row, "author"),
			AccessNote:      valueAt(header, row, "access"),
			CoverImageURL:   valueAt(header, row, "cover_image_url"),
			DetailURL:       valueAt(header, row, "detail_url"),
			Score:           valueAt(header, row, "score"),
			SubscriberCount: valueAt(header, row, "subscriber_count"),
			Summary:         valueAt(header, row, "summary"),
		}
		if raw := valueAt(header, row, "episode_count"); raw != "" {
			if c.EpisodeCount, err = strconv.Atoi(raw); err != nil {
				return nil, fmt.Errorf("parse episode_count for %s: %w", id, err)
			}
		}
		c.EpisodesLabel = models.EpisodesLabel(c.EpisodeCount)
		if c.FirstSeenAt, err = parseTime(valueAt(header, row, "first_seen_at")); err != nil {
			return nil, fmt.Errorf("parse first_seen_at for %s: %w", id, err)
		}
		if c.LastUpdatedAt, err = parseTime(valueAt(header, row, "last_updated_at")); err != nil {
			return nil, fmt.Errorf("parse last_updated_at for %s: %w", id, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
