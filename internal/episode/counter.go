// Package episode derives the latest episode ordinal of a title from its
// detail page.
package episode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrUnparseable means the episode list exists but its markers could not be
// read. It is distinct from a page with no episode list, which counts as 0.
var ErrUnparseable = errors.New("episode list unparseable")

const (
	listSelector = "ul#_listUl"
	itemSelector = "li"
)

// Page is a fetched detail page.
type Page struct {
	URL  string
	HTML []byte
}

// Counter returns the latest episode ordinal of a detail page.
type Counter interface {
	Name() string
	Count(ctx context.Context, page Page) (int, error)
}

// New returns the counter registered under name. The browser strategy is
// built separately because it owns a browser process.
func New(name string) (Counter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "attribute":
		return AttributeCounter{}, nil
	case "items":
		return ItemCounter{}, nil
	case "label":
		return LabelCounter{}, nil
	default:
		return nil, fmt.Errorf("unknown episode strategy %q", name)
	}
}

func episodeList(html []byte) (*goquery.Selection, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse detail html: %w", err)
	}
	return doc.Find(listSelector).First(), nil
}

// AttributeCounter reads data-episode-no off the newest (first) item of the
// episode list. When the newest item carries no attribute it falls back to
// counting items.
type AttributeCounter struct{}

func (AttributeCounter) Name() string { return "attribute" }

func (AttributeCounter) Count(_ context.Context, page Page) (int, error) {
	list, err := episodeList(page.HTML)
	if err != nil {
		return 0, err
	}
	if list.Length() == 0 {
		return 0, nil
	}

	newest := list.Find("li._episodeItem").First()
	if newest.Length() == 0 {
		newest = list.Find(itemSelector).First()
	}
	raw, ok := newest.Attr("data-episode-no")
	if !ok {
		return list.Find(itemSelector).Length(), nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: data-episode-no %q", ErrUnparseable, raw)
	}
	return n, nil
}

// ItemCounter counts every item of the episode list.
type ItemCounter struct{}

func (ItemCounter) Name() string { return "items" }

func (ItemCounter) Count(_ context.Context, page Page) (int, error) {
	list, err := episodeList(page.HTML)
	if err != nil {
		return 0, err
	}
	return list.Find(itemSelector).Length(), nil
}

// LabelCounter takes the highest "#N" label of the episode list. Items
// without a readable label are ignored.
type LabelCounter struct{}

func (LabelCounter) Name() string { return "label" }

func (LabelCounter) Count(_ context.Context, page Page) (int, error) {
	list, err := episodeList(page.HTML)
	if err != nil {
		return 0, err
	}
	highest := 0
	list.Find(itemSelector).Each(func(_ int, li *goquery.Selection) {
		tx := strings.TrimSpace(li.Find("span.tx").First().Text())
		if !strings.HasPrefix(tx, "#") {
			return
		}
		n, err := strconv.Atoi(strings.TrimPrefix(tx, "#"))
		if err == nil && n > highest {
			highest = n
		}
	})
	return highest, nil
}
