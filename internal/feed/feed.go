package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	neturl "net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"curio/internal/httpclient"
)

const (
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	acceptHeader = "application/rss+xml, application/xml, application/atom+xml"
)

var (
	// ErrBadURL marks a URL that is rejected before any network attempt.
	ErrBadURL = errors.New("invalid feed URL")
	// ErrFetch marks an unreachable feed (transport failure or HTTP error status).
	ErrFetch = errors.New("failed to fetch feed")
	// ErrParse marks content that was retrieved but is not valid RSS/Atom.
	ErrParse = errors.New("failed to parse feed")
)

// Article is one normalized entry retrieved from a feed at fetch time.
// Articles are never persisted; a refetch replaces the prior set.
type Article struct {
	Title          string `json:"title"`
	Link           string `json:"link"`
	PubDate        string `json:"pubDate"`
	ContentSnippet string `json:"contentSnippet"`
	GUID           string `json:"guid"`
}

// Info is the metadata returned by a successful validation.
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
	Items       int    `json:"items"`
}

// Fetcher retrieves raw feed content over HTTP and hands the text to gofeed.
// Fetching and parsing are separate steps so a transport failure surfaces
// apart from a feed-syntax failure.
type Fetcher struct {
	client *httpclient.Client
	parser *gofeed.Parser
	now    func() time.Time
}

// NewFetcher constructs a fetcher with the given network timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: httpclient.New(timeout, map[string]string{
			"Accept":     acceptHeader,
			"User-Agent": userAgent,
		}),
		parser: gofeed.NewParser(),
		now:    time.Now,
	}
}

// Fetch retrieves feedURL and normalizes its items into Articles.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]Article, error) {
	if err := checkURL(feedURL); err != nil {
		return nil, err
	}
	parsed, err := f.retrieve(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	articles := make([]Article, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		if it == nil {
			continue
		}
		articles = append(articles, f.normalize(it))
	}
	return articles, nil
}

// Validate checks that feedURL is well-formed and resolves to a parseable
// feed, returning its metadata. A malformed URL is rejected before any
// network attempt.
func (f *Fetcher) Validate(ctx context.Context, feedURL string) (Info, error) {
	if err := checkURL(feedURL); err != nil {
		return Info{}, err
	}
	parsed, err := f.retrieve(ctx, feedURL)
	if err != nil {
		return Info{}, err
	}
	info := Info{
		Title:       firstNonEmpty(parsed.Title, "Untitled Feed"),
		Description: parsed.Description,
		Link:        firstNonEmpty(parsed.Link, feedURL),
		Items:       len(parsed.Items),
	}
	return info, nil
}

func (f *Fetcher) retrieve(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	resp, err := f.client.Get(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP status %d", ErrFetch, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	parsed, err := f.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return parsed, nil
}

// normalize applies the per-field fallback chains, each field defaulted
// independently.
func (f *Fetcher) normalize(it *gofeed.Item) Article {
	pubDate := firstNonEmpty(it.Published, it.Updated)
	if pubDate == "" && it.PublishedParsed != nil {
		pubDate = it.PublishedParsed.UTC().Format(time.RFC3339)
	}
	if pubDate == "" {
		pubDate = f.now().UTC().Format(time.RFC3339)
	}

	guid := firstNonEmpty(it.GUID, it.Link)
	if guid == "" {
		guid = uuid.NewString()
	}

	return Article{
		Title:          firstNonEmpty(it.Title, "Untitled"),
		Link:           firstNonEmpty(it.Link, "#"),
		PubDate:        pubDate,
		ContentSnippet: htmlToText(firstNonEmpty(it.Description, it.Content)),
		GUID:           guid,
	}
}

func checkURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: empty URL", ErrBadURL)
	}
	u, err := neturl.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: not an absolute URL: %s", ErrBadURL, raw)
	}
	return nil
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// htmlToText converts a small HTML fragment into plain text by walking the
// node tree and concatenating text nodes with minimal whitespace
// normalization.
func htmlToText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	n, err := html.Parse(strings.NewReader(s))
	if err != nil || n == nil {
		// If parsing fails, fall back to a naive strip of angle-bracket tags.
		out := regexp.MustCompile(`<[^>]+>`).ReplaceAllString(s, " ")
		return strings.Join(strings.Fields(out), " ")
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			t := strings.TrimSpace(n.Data)
			if t != "" {
				if b.Len() > 0 {
					b.WriteString(" ")
				}
				b.WriteString(t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
