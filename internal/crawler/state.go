package crawler

import "fmt"

// State is where a crawl currently is.
type State int

const (
	StateInitializing State = iota
	StateResolvingPageCount
	StateScanningPage
	StateProcessingItem
	StateCheckpointing
	StateCompleted
	StateFailed
	StateCancelled
)

var stateNames = [...]string{
	StateInitializing:       "initializing",
	StateResolvingPageCount: "resolving_page_count",
	StateScanningPage:       "scanning_page",
	StateProcessingItem:     "processing_item",
	StateCheckpointing:      "checkpointing",
	StateCompleted:          "completed",
	StateFailed:             "failed",
	StateCancelled:          "cancelled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Terminal reports whether a crawl in s has ended.
func (s State) Terminal() bool { return s >= StateCompleted }

// Status is a snapshot of a crawl in flight. Page is set from
// StateScanningPage on, ComicID only while processing an item.
type Status struct {
	RunID   string `json:"run_id"`
	State   State  `json:"state"`
	Page    int    `json:"page,omitempty"`
	ComicID string `json:"comic_id,omitempty"`
}

// Classification is the outcome of reconciling one listing item.
type Classification string

const (
	ClassNew       Classification = "NEW"
	ClassUpdated   Classification = "UPDATED"
	ClassUnchanged Classification = "UNCHANGED"
)

func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown crawl state %q", b)
}
