package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Feed is one subscribed source, keyed by its URL.
type Feed struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

var (
	// ErrInvalid marks a malformed or missing url/title on a mutation.
	ErrInvalid = errors.New("invalid feed")
	// ErrDuplicate marks an add whose url is already subscribed.
	ErrDuplicate = errors.New("feed already exists")
	// ErrNotFound marks a remove whose url is not subscribed.
	ErrNotFound = errors.New("feed not found")
	// ErrUnavailable marks an unreadable or unwritable backing document.
	ErrUnavailable = errors.New("feed storage unavailable")
)

// FileStore keeps the subscription list in a single JSON document. The
// document is read wholesale and rewritten wholesale on every mutation;
// there is no locking, so concurrent writers can lose updates. Acceptable
// for a single interactive user and a list of tens of feeds.
type FileStore struct {
	Path string
}

// Open prepares a store at path, creating the parent directory and seeding
// an empty document when none exists yet.
func Open(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrUnavailable)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(path, []byte("[]\n"), 0o644); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return &FileStore{Path: path}, nil
}

// List returns the full subscription list.
func (s *FileStore) List() ([]Feed, error) {
	return s.load()
}

// Add validates the candidate, rejects duplicates against the current
// snapshot, then appends and rewrites the document.
func (s *FileStore) Add(feedURL, title string) (Feed, error) {
	feedURL = strings.TrimSpace(feedURL)
	title = strings.TrimSpace(title)
	if feedURL == "" || title == "" {
		return Feed{}, fmt.Errorf("%w: url and title are required", ErrInvalid)
	}
	if err := checkURL(feedURL); err != nil {
		return Feed{}, err
	}

	feeds, err := s.load()
	if err != nil {
		return Feed{}, err
	}
	for _, f := range feeds {
		// Exact string match only; no normalization of scheme case,
		// trailing slashes, or query order.
		if f.URL == feedURL {
			return Feed{}, fmt.Errorf("%w: %s", ErrDuplicate, feedURL)
		}
	}

	feed := Feed{URL: feedURL, Title: title}
	feeds = append(feeds, feed)
	if err := s.save(feeds); err != nil {
		return Feed{}, err
	}
	return feed, nil
}

// Remove deletes the entry keyed by feedURL and returns it.
func (s *FileStore) Remove(feedURL string) (Feed, error) {
	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return Feed{}, fmt.Errorf("%w: url is required", ErrInvalid)
	}

	feeds, err := s.load()
	if err != nil {
		return Feed{}, err
	}
	for i, f := range feeds {
		if f.URL == feedURL {
			removed := f
			feeds = append(feeds[:i], feeds[i+1:]...)
			if err := s.save(feeds); err != nil {
				return Feed{}, err
			}
			return removed, nil
		}
	}
	return Feed{}, fmt.Errorf("%w: %s", ErrNotFound, feedURL)
}

func (s *FileStore) load() ([]Feed, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var feeds []Feed
	if err := json.Unmarshal(b, &feeds); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if feeds == nil {
		feeds = []Feed{}
	}
	return feeds, nil
}

func (s *FileStore) save(feeds []Feed) error {
	b, err := json.MarshalIndent(feeds, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := os.WriteFile(s.Path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: not an absolute URL: %s", ErrInvalid, raw)
	}
	return nil
}
