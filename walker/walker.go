// Package walker discovers listing URLs from paginated index pages.
package walker

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"

	"imovelscan/config"
	"imovelscan/models"
)

// Fetcher retrieves raw HTML for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// PageCursor tracks the position inside the current search path. The total
// page count is discovered lazily from the first index page and stays zero
// when the site does not expose it.
type PageCursor struct {
	Page       int
	TotalPages int
}

var (
	totalResultsRe = regexp.MustCompile(`(?i)(\d+)\s*(?:im[óo]veis|resultados?|results?)`)
	perPageRe      = regexp.MustCompile(`(?i)(\d+)\s*(?:por\s*p[áa]gina|per\s*page)`)
)

var skipHrefPrefixes = []string{"javascript:", "mailto:", "tel:", "#", "whatsapp"}

// Walker yields listing URLs page by page across the configured search
// paths, in on-page order, deduplicated across the whole walk.
type Walker struct {
	fetch     Fetcher
	base      *url.URL
	paths     []string
	pageParam string

	pathIdx    int
	pathStart  int
	cursor     PageCursor
	globalPage int
	startPage  int

	discovered bool
	firstIndex bool
	done       bool

	buffer     []string
	hasBuffer  bool
	seen       *lru.Cache[string, struct{}]
}

// New builds a walker over cfg's base URL and search paths.
func New(fetch Fetcher, cfg *config.Config) (*Walker, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	seen, err := lru.New[string, struct{}](cfg.SeenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create seen cache: %w", err)
	}

	return &Walker{
		fetch:      fetch,
		base:       base,
		paths:      cfg.SearchPaths,
		pageParam:  cfg.PageParam,
		firstIndex: true,
		seen:       seen,
	}, nil
}

// SetStartPage makes the walker resume after the given global page ordinal.
// Pages up to and including it are not re-fetched when the derived totals
// allow skipping them.
func (w *Walker) SetStartPage(page int) {
	if page > 0 {
		w.startPage = page
	}
}

// Page returns the global ordinal of the last successfully processed index
// page, counted across all search paths.
func (w *Walker) Page() int {
	return w.globalPage
}

// Cursor returns the position within the current search path.
func (w *Walker) Cursor() PageCursor {
	return w.cursor
}

// Discover fetches the first index page and derives the page count, priming
// the walker so the first Next call is served from the buffered links.
func (w *Walker) Discover(ctx context.Context) (PageCursor, error) {
	if w.done || w.discovered {
		return w.cursor, nil
	}
	urls, err := w.step(ctx)
	if err != nil {
		return PageCursor{}, err
	}
	if urls != nil {
		w.buffer = urls
		w.hasBuffer = true
	}
	return w.cursor, nil
}

// Next returns the listing URLs of the next index page in on-page order.
// It returns (nil, nil) once the walk is complete. A non-nil empty slice
// means the page held only already-seen listings.
func (w *Walker) Next(ctx context.Context) ([]string, error) {
	if w.hasBuffer {
		urls := w.buffer
		w.buffer = nil
		w.hasBuffer = false
		return urls, nil
	}
	return w.step(ctx)
}

func (w *Walker) step(ctx context.Context) ([]string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if w.done {
			return nil, nil
		}
		if !w.discovered {
			urls, skipped, err := w.discoverPath(ctx)
			if err != nil {
				return nil, err
			}
			if skipped {
				continue
			}
			return urls, nil
		}

		if w.cursor.TotalPages > 0 && w.cursor.Page >= w.cursor.TotalPages {
			w.advancePath()
			continue
		}

		next := w.cursor.Page + 1

		// Resume fast-forward: jump over pages the checkpoint already covers.
		if w.cursor.TotalPages > 0 && w.pathStart+next <= w.startPage {
			last := w.startPage - w.pathStart
			if last >= w.cursor.TotalPages {
				w.globalPage = w.pathStart + w.cursor.TotalPages
				w.advancePath()
				continue
			}
			w.cursor.Page = last
			w.globalPage = w.pathStart + last
			continue
		}

		pageURL := w.pageURL(next)
		html, err := w.fetch.Fetch(ctx, pageURL)
		if err != nil {
			return nil, err
		}

		links, err := w.parseLinks(html)
		if err != nil {
			return nil, err
		}
		if len(links) == 0 {
			// Derived total was wrong or the site shrank mid-walk.
			slog.Debug("index page empty before derived total, stopping path",
				slog.String("path", w.paths[w.pathIdx]),
				slog.Int("page", next),
			)
			w.advancePath()
			continue
		}

		w.cursor.Page = next
		w.globalPage = w.pathStart + next
		return w.dedupe(links), nil
	}
}

// discoverPath fetches page 1 of the current search path. The skipped return
// tells the caller to keep looping (empty path, or page already covered by a
// resume with nothing to yield is still returned as an empty slice).
func (w *Walker) discoverPath(ctx context.Context) (urls []string, skipped bool, err error) {
	pageURL := w.pageURL(1)
	html, err := w.fetch.Fetch(ctx, pageURL)
	if err != nil {
		return nil, false, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false, fmt.Errorf("parse index page %s: %w", pageURL, err)
	}

	links := w.extractLinks(doc)
	if len(links) == 0 {
		if w.firstIndex {
			return nil, false, &StructureChangedError{URL: pageURL, Reason: "no listing links on first index page"}
		}
		slog.Debug("search path yielded no listings", slog.String("path", w.paths[w.pathIdx]))
		w.advancePath()
		return nil, true, nil
	}
	w.firstIndex = false

	w.cursor = PageCursor{Page: 1, TotalPages: deriveTotalPages(doc, len(links))}
	w.discovered = true
	w.globalPage = w.pathStart + 1

	deduped := w.dedupe(links)
	if w.globalPage <= w.startPage {
		// Page already captured in a previous run; links stay marked as seen.
		return []string{}, false, nil
	}
	return deduped, false, nil
}

func (w *Walker) advancePath() {
	w.pathIdx++
	w.pathStart = w.globalPage
	w.discovered = false
	w.cursor = PageCursor{}
	if w.pathIdx >= len(w.paths) {
		w.done = true
	}
}

func (w *Walker) pageURL(page int) string {
	u := *w.base
	u.Path = strings.TrimSuffix(u.Path, "/") + w.paths[w.pathIdx]
	q := u.Query()
	q.Set(w.pageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

func (w *Walker) parseLinks(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse index page: %w", err)
	}
	return w.extractLinks(doc), nil
}

// extractLinks returns absolute listing URLs in document order.
func (w *Walker) extractLinks(doc *goquery.Document) []string {
	var links []string
	doc.Find("a[href*='imovel']").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		lower := strings.ToLower(href)
		for _, prefix := range skipHrefPrefixes {
			if strings.Contains(lower, prefix) {
				return
			}
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		links = append(links, w.base.ResolveReference(ref).String())
	})
	return links
}

func (w *Walker) dedupe(links []string) []string {
	urls := make([]string, 0, len(links))
	for _, link := range links {
		key := models.NormalizeURL(link)
		if _, dup := w.seen.Get(key); dup {
			continue
		}
		w.seen.Add(key, struct{}{})
		urls = append(urls, link)
	}
	return urls
}

// deriveTotalPages reads "N imóveis" and "M por página" header shapes from
// the index page. Page size falls back to the on-page link count; zero means
// the total could not be derived and the walk relies on the empty-page stop.
func deriveTotalPages(doc *goquery.Document, linksOnPage int) int {
	text := doc.Text()

	total := 0
	if m := totalResultsRe.FindStringSubmatch(text); m != nil {
		total, _ = strconv.Atoi(m[1])
	}
	if total <= 0 {
		return 0
	}

	perPage := 0
	if m := perPageRe.FindStringSubmatch(text); m != nil {
		perPage, _ = strconv.Atoi(m[1])
	}
	if perPage <= 0 {
		perPage = linksOnPage
	}
	if perPage <= 0 {
		return 0
	}

	return (total + perPage - 1) / perPage
}
