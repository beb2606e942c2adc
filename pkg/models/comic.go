package models

import (
	"fmt"
	"time"
)

// Access notes as shown to readers. A title is free unless its detail page
// carries the in-app gating marker.
const (
	AccessFree  = "已完結，可免費看完整話數!"
	AccessGated = "已完結，需要追漫券"
)

// UnknownAuthor is stored when the detail page has no author node.
const UnknownAuthor = "未知"

// Comic is one tracked title in the mirrored catalog.
//
// FirstSeenAt is written once, when the title is first inserted, and is
// carried over verbatim on every later update. LastUpdatedAt moves on every
// write; titles found unchanged during a crawl are not written at all.
type Comic struct {
	ID              string    `json:"id"`                         // remote title_no
	Title           string    `json:"title"`                      // display title
	Genre           string    `json:"genre"`                      // display genre
	Author          string    `json:"author"`                     // joined author names
	EpisodeCount    int       `json:"episode_count"`              // latest episode ordinal
	EpisodesLabel   string    `json:"episodes"`                   // "共 N 話"
	AccessNote      string    `json:"access"`                     // AccessFree or AccessGated
	CoverImageURL   string    `json:"cover_image_url"`            // absolute or empty
	DetailURL       string    `json:"detail_url"`                 // absolute list page URL
	Score           string    `json:"score,omitempty"`            // star average, as displayed
	SubscriberCount string    `json:"subscriber_count,omitempty"` // as displayed, e.g. "12.3萬"
	Summary         string    `json:"summary,omitempty"`          // synopsis
	FirstSeenAt     time.Time `json:"first_seen_at"`
	LastUpdatedAt   time.Time `json:"last_updated_at"`
}

// EpisodesLabel renders the human readable episode count.
func EpisodesLabel(n int) string {
	return fmt.Sprintf("共 %d 話", n)
}

// IsFree reports whether every episode can be read without tickets.
func (c Comic) IsFree() bool {
	return c.AccessNote == AccessFree
}
