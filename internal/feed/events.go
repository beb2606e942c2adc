package feed

import (
	"time"

	"webtoonhub/pkg/models"
)

const (
	TypeWelcome    = "welcome"
	TypeSubscribed = "subscribed"
	TypeNew        = "comic.new"
	TypeUpdated    = "comic.updated"

	// typeSubscribe is the only message a TCP subscriber sends.
	typeSubscribe = "subscribe"
)

// ChangeEvent is one line of the feed.
type ChangeEvent struct {
	Type         string    `json:"type"`
	ComicID      string    `json:"comic_id"`
	Title        string    `json:"title"`
	Genre        string    `json:"genre,omitempty"`
	EpisodeCount int       `json:"episode_count"`
	DetailURL    string    `json:"detail_url,omitempty"`
	At           time.Time `json:"at"`
}

// Welcome is the first line on every connection.
type Welcome struct {
	Type      string `json:"type"`
	Transport string `json:"transport"`
	Replay    int    `json:"replay"`
}

// SubscribeRequest replaces a TCP subscriber's filter, e.g.
// {"type":"subscribe","types":["comic.new"],"genre":"奇幻"}.
type SubscribeRequest struct {
	Type string `json:"type"`
	Filter
}

// Subscribed acknowledges a SubscribeRequest.
type Subscribed struct {
	Type string `json:"type"`
	Filter
}

func changeEvent(c models.Comic, isNew bool) ChangeEvent {
	typ := TypeUpdated
	if isNew {
		typ = TypeNew
	}
	return ChangeEvent{
		Type:         typ,
		ComicID:      c.ID,
		Title:        c.Title,
		Genre:        c.Genre,
		EpisodeCount: c.EpisodeCount,
		DetailURL:    c.DetailURL,
		At:           c.LastUpdatedAt,
	}
}
