// Package extract turns webtoons listing and detail markup into structured
// fields. Nothing here performs I/O.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"webtoonhub/pkg/models"
)

// GatedMarker appears on detail pages whose later episodes are app-only.
const GatedMarker = "在APP可以閱讀更多話次"

// ExtractionError reports a listing item whose structural anchor is missing.
type ExtractionError struct {
	Index int    // position of the item on the listing page
	Field string // "title" or "href"
	Title string // title text when it was found
}

func (e *ExtractionError) Error() string {
	if e.Title != "" {
		return fmt.Sprintf("listing item %d (%s): missing %s", e.Index, e.Title, e.Field)
	}
	return fmt.Sprintf("listing item %d: missing %s", e.Index, e.Field)
}

// ListingItem is what a catalog listing says about one title.
type ListingItem struct {
	Title     string
	DetailURL string
	Genre     string
}

// ListingEntry holds either an item or the reason it could not be read.
type ListingEntry struct {
	Item ListingItem
	Err  error
}

// Detail is the optional metadata scraped from a title's list page.
type Detail struct {
	CoverImageURL   string
	Author          string
	AccessNote      string
	Score           string
	SubscriberCount string
	Summary         string
}

var (
	listingSelectors = []string{"a.link._originals_title_a", "ul.daily_card li a"}
	coverSelectors   = []string{".detail_header .thmb img", ".thmb img", "img"}
)

// ParseListing reads every title anchor on a listing page. Relative links
// are resolved against base.
func ParseListing(body []byte, base *url.URL) ([]ListingEntry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	var anchors *goquery.Selection
	for _, sel := range listingSelectors {
		anchors = doc.Find(sel)
		if anchors.Length() > 0 {
			break
		}
	}

	entries := make([]ListingEntry, 0, anchors.Length())
	anchors.Each(func(i int, s *goquery.Selection) {
		entries = append(entries, parseListingItem(i, s, base))
	})
	return entries, nil
}

func parseListingItem(i int, s *goquery.Selection, base *url.URL) ListingEntry {
	titleNode := s.Find(".title").First()
	if titleNode.Length() == 0 {
		titleNode = s.Find(".subj").First()
	}
	if titleNode.Length() == 0 {
		return ListingEntry{Err: &ExtractionError{Index: i, Field: "title"}}
	}
	title := strings.TrimSpace(titleNode.Text())

	href, ok := s.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return ListingEntry{Err: &ExtractionError{Index: i, Field: "href", Title: title}}
	}

	return ListingEntry{Item: ListingItem{
		Title:     title,
		DetailURL: Absolute(base, href),
		Genre:     strings.TrimSpace(s.Find(".genre").First().Text()),
	}}
}

// ParseDetail extracts the optional fields of a detail page. Missing nodes
// leave their field empty; callers apply defaults.
func ParseDetail(body []byte, base *url.URL) (Detail, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Detail{}, fmt.Errorf("parse detail html: %w", err)
	}

	var d Detail
	for _, sel := range coverSelectors {
		if src := doc.Find(sel).First().AttrOr("src", ""); src != "" {
			d.CoverImageURL = Absolute(base, src)
			break
		}
	}

	author := doc.Find(".author").First()
	if links := author.Find("a"); links.Length() > 0 {
		names := make([]string, 0, links.Length())
		links.Each(func(_ int, a *goquery.Selection) {
			if n := strings.TrimSpace(a.Text()); n != "" {
				names = append(names, n)
			}
		})
		d.Author = strings.Join(names, " ")
	} else {
		d.Author = strings.TrimSpace(author.Text())
	}

	d.AccessNote = ClassifyAccess(doc.Text())
	d.Score = strings.TrimSpace(doc.Find("#_starScoreAverage").First().Text())
	doc.Find("ul.grade_area li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		if li.Find("span.ico_subscribe").Length() == 0 {
			return true
		}
		d.SubscriberCount = strings.TrimSpace(li.Find("em.cnt").First().Text())
		return false
	})
	d.Summary = strings.TrimSpace(doc.Find("p.summary").First().Text())

	return d, nil
}

// ClassifyAccess maps page text to an access note.
func ClassifyAccess(pageText string) string {
	if strings.Contains(pageText, GatedMarker) {
		return models.AccessGated
	}
	return models.AccessFree
}

// MaxPage returns the highest page number in the listing's pagination
// control, or 1 when there is none.
func MaxPage(body []byte) int {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 1
	}
	highest := 1
	doc.Find("div.paginate > a").Each(func(_ int, a *goquery.Selection) {
		p, err := strconv.Atoi(strings.TrimSpace(a.Text()))
		if err == nil && p > highest {
			highest = p
		}
	})
	return highest
}

var idPatterns = []*regexp.Regexp{
	regexp.MustCompile(`title_no=(\d+)`),
	regexp.MustCompile(`/list\?title_no=(\d+)`),
	regexp.MustCompile(`/(\d+)/?$`),
}

// ResolveID parses the remote title id out of a detail URL.
func ResolveID(detailURL string) (string, bool) {
	for _, re := range idPatterns {
		if m := re.FindStringSubmatch(detailURL); len(m) == 2 {
			return m[1], true
		}
	}
	return "", false
}

// Absolute resolves ref against base. Protocol-relative and root-relative
// references are handled; unparsable refs are returned unchanged.
func Absolute(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if u.IsAbs() {
		return u.String()
	}
	if base == nil {
		if strings.HasPrefix(ref, "//") {
			return "https:" + ref
		}
		return ref
	}
	return base.ResolveReference(u).String()
}
