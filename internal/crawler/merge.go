package crawler

import (
	"strings"
	"time"

	"webtoonhub/internal/extract"
	"webtoonhub/pkg/models"
)

// buildRecord turns a listing item, its detail page and a fresh episode
// count into the record to store. Conflict rules against the stored record:
//
// - Title, genre, author and access note always come from this visit.
// - Author falls back to models.UnknownAuthor, access to models.AccessFree.
// - The episodes label is always derived from the count.
// - FirstSeenAt is copied from the stored record; a new record gets now.
// - LastUpdatedAt is now.
// - Cover and the optional extras keep their stored value when this visit
//   did not find one.
func buildRecord(id string, item extract.ListingItem, d extract.Detail, count int, existing *models.Comic, now time.Time) models.Comic {
	rec := models.Comic{
		ID:              id,
		Title:           strings.TrimSpace(item.Title),
		Genre:           strings.TrimSpace(item.Genre),
		Author:          strings.TrimSpace(d.Author),
		EpisodeCount:    count,
		EpisodesLabel:   models.EpisodesLabel(count),
		AccessNote:      d.AccessNote,
		CoverImageURL:   d.CoverImageURL,
		DetailURL:       item.DetailURL,
		Score:           d.Score,
		SubscriberCount: d.SubscriberCount,
		Summary:         d.Summary,
		FirstSeenAt:     now,
		LastUpdatedAt:   now,
	}
	applyDefaults(&rec)
	if existing != nil {
		keepStored(&rec, existing)
	}
	return rec
}

// Merge folds a record from outside the crawl, such as an import, into the
// stored one under the crawl's invariants: FirstSeenAt never moves, the
// episode count never goes down and the label always matches it. Fields the
// incoming record leaves empty keep their stored value. A zero LastUpdatedAt
// becomes now, and a new record without FirstSeenAt is first seen then.
func Merge(existing *models.Comic, in models.Comic, now time.Time) models.Comic {
	rec := in
	rec.ID = strings.TrimSpace(in.ID)
	rec.Title = strings.TrimSpace(in.Title)
	rec.Genre = strings.TrimSpace(in.Genre)
	rec.Author = strings.TrimSpace(in.Author)
	rec.EpisodeCount = max(in.EpisodeCount, 0)
	if rec.LastUpdatedAt.IsZero() {
		rec.LastUpdatedAt = now
	}

	if existing == nil {
		if rec.FirstSeenAt.IsZero() {
			rec.FirstSeenAt = rec.LastUpdatedAt
		}
	} else {
		rec.Title = firstNonEmpty(rec.Title, existing.Title)
		rec.Genre = firstNonEmpty(rec.Genre, existing.Genre)
		rec.Author = firstNonEmpty(rec.Author, existing.Author)
		rec.AccessNote = firstNonEmpty(rec.AccessNote, existing.AccessNote)
		rec.DetailURL = firstNonEmpty(rec.DetailURL, existing.DetailURL)
		rec.EpisodeCount = max(rec.EpisodeCount, existing.EpisodeCount)
		keepStored(&rec, existing)
	}
	rec.EpisodesLabel = models.EpisodesLabel(rec.EpisodeCount)
	applyDefaults(&rec)
	return rec
}

func applyDefaults(rec *models.Comic) {
	if rec.Author == "" {
		rec.Author = models.UnknownAuthor
	}
	if rec.AccessNote == "" {
		rec.AccessNote = models.AccessFree
	}
}

// keepStored carries FirstSeenAt over and keeps the stored cover and extras
// where rec has none.
func keepStored(rec *models.Comic, existing *models.Comic) {
	rec.FirstSeenAt = existing.FirstSeenAt
	rec.CoverImageURL = firstNonEmpty(rec.CoverImageURL, existing.CoverImageURL)
	rec.Score = firstNonEmpty(rec.Score, existing.Score)
	rec.SubscriberCount = firstNonEmpty(rec.SubscriberCount, existing.SubscriberCount)
	rec.Summary = firstNonEmpty(rec.Summary, existing.Summary)
}

// classify compares a fresh count with the stored record. A count that went
// down is unchanged; the stored count never decreases.
func classify(existing *models.Comic, count int) Classification {
	switch {
	case existing == nil:
		return ClassNew
	case count > existing.EpisodeCount:
		return ClassUpdated
	default:
		return ClassUnchanged
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
