package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator"

	"curio/internal/ai"
	"curio/internal/feed"
	"curio/internal/store"
)

// Server wires the feed store, the fetcher, and the AI assistant behind the
// JSON API consumed by the reader UI. Each request is handled independently;
// there is no shared mutable state beyond the backing document.
type Server struct {
	Store           *store.FileStore
	Fetcher         *feed.Fetcher
	Assistant       *ai.Assistant
	Logger          *slog.Logger
	ArticlesPerFeed int

	validate *validator.Validate
}

func NewServer(st *store.FileStore, f *feed.Fetcher, assistant *ai.Assistant, logger *slog.Logger, articlesPerFeed int) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if articlesPerFeed <= 0 {
		articlesPerFeed = 20
	}
	return &Server{
		Store:           st,
		Fetcher:         f,
		Assistant:       assistant,
		Logger:          logger,
		ArticlesPerFeed: articlesPerFeed,
		validate:        validator.New(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /feeds", s.listFeeds)
	mux.HandleFunc("POST /feeds", s.addFeed)
	mux.HandleFunc("DELETE /feeds", s.removeFeed)
	mux.HandleFunc("POST /validate-feed", s.validateFeed)
	mux.HandleFunc("GET /articles", s.listArticles)
	mux.HandleFunc("POST /summary", s.summary)
	mux.HandleFunc("POST /analyze", s.analyze)
	mux.HandleFunc("POST /recommend", s.recommend)
	return mux
}

type addFeedRequest struct {
	URL   string `json:"url" validate:"required"`
	Title string `json:"title" validate:"required"`
}

type removeFeedRequest struct {
	URL string `json:"url" validate:"required"`
}

type validateFeedRequest struct {
	URL string `json:"url" validate:"required"`
}

type articleTextRequest struct {
	Title          string `json:"title" validate:"required"`
	ContentSnippet string `json:"contentSnippet"`
}

type recommendRequest struct {
	ArticleID       string `json:"articleId" validate:"required"`
	UserPreferences any    `json:"userPreferences"`
	RecentlyRead    any    `json:"recentlyRead"`
}

func (s *Server) listFeeds(w http.ResponseWriter, r *http.Request) {
	feeds, err := s.Store.List()
	if err != nil {
		s.fail(w, r, err, "Failed to read feeds")
		return
	}
	writeJSON(w, http.StatusOK, feeds)
}

func (s *Server) addFeed(w http.ResponseWriter, r *http.Request) {
	var req addFeedRequest
	if !s.decode(w, r, &req) {
		return
	}
	created, err := s.Store.Add(req.URL, req.Title)
	if err != nil {
		s.fail(w, r, err, "Failed to add feed")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) removeFeed(w http.ResponseWriter, r *http.Request) {
	var req removeFeedRequest
	if !s.decode(w, r, &req) {
		return
	}
	removed, err := s.Store.Remove(req.URL)
	if err != nil {
		s.fail(w, r, err, "Failed to remove feed")
		return
	}
	writeJSON(w, http.StatusOK, removed)
}

func (s *Server) validateFeed(w http.ResponseWriter, r *http.Request) {
	var req validateFeedRequest
	if !s.decode(w, r, &req) {
		return
	}
	info, err := s.Fetcher.Validate(r.Context(), req.URL)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"title":       info.Title,
			"description": info.Description,
			"link":        info.Link,
			"items":       info.Items,
			"isValid":     true,
		})
	case errors.Is(err, feed.ErrBadURL):
		writeError(w, http.StatusBadRequest, "Invalid URL format")
	case errors.Is(err, feed.ErrParse), errors.Is(err, feed.ErrFetch):
		s.Logger.Warn("feed validation failed", "url", req.URL, "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "Could not parse RSS feed from this URL. Please check the URL and try again.",
			"isValid": false,
		})
	default:
		s.fail(w, r, err, "Failed to validate feed")
	}
}

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	feedURL := r.URL.Query().Get("feedUrl")
	if feedURL == "" {
		writeError(w, http.StatusBadRequest, "Feed URL is required")
		return
	}
	articles, err := s.Fetcher.Fetch(r.Context(), feedURL)
	if err != nil {
		if errors.Is(err, feed.ErrBadURL) {
			writeError(w, http.StatusBadRequest, "Invalid URL format")
			return
		}
		s.Logger.Error("error fetching feed", "url", feedURL, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch feed")
		return
	}
	writeJSON(w, http.StatusOK, articles)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	var req articleTextRequest
	if !s.decode(w, r, &req) {
		return
	}
	summary, err := s.Assistant.Summarize(r.Context(), req.Title, req.ContentSnippet)
	if err != nil {
		if errors.Is(err, ai.ErrNoOutput) {
			s.Logger.Error("summary generation returned nothing", "title", req.Title)
			writeError(w, http.StatusInternalServerError, "No summary generated")
			return
		}
		s.fail(w, r, err, "Failed to generate summary")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req articleTextRequest
	if !s.decode(w, r, &req) {
		return
	}
	analysis, err := s.Assistant.Analyze(r.Context(), req.Title, req.ContentSnippet)
	if err != nil {
		if errors.Is(err, ai.ErrNoOutput) {
			writeError(w, http.StatusInternalServerError, "No analysis generated")
			return
		}
		if errors.Is(err, ai.ErrBadOutput) {
			s.Logger.Error("analysis output unparseable", "title", req.Title, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to parse analysis")
			return
		}
		s.fail(w, r, err, "Failed to analyze article")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) recommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if !s.decode(w, r, &req) {
		return
	}

	catalog, articles, err := s.buildCatalog(r.Context())
	if err != nil {
		s.fail(w, r, err, "Failed to load articles")
		return
	}

	current := ai.Candidate{ID: req.ArticleID, Title: "Unknown Article"}
	for _, c := range catalog {
		if c.ID == req.ArticleID {
			current = c
			break
		}
	}

	rec, err := s.Assistant.Recommend(r.Context(), current, req.UserPreferences, req.RecentlyRead, catalog)
	if err != nil {
		if errors.Is(err, ai.ErrNoOutput) {
			writeError(w, http.StatusInternalServerError, "No recommendations generated")
			return
		}
		if errors.Is(err, ai.ErrBadOutput) {
			s.Logger.Error("recommendation output unparseable", "articleId", req.ArticleID, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to parse recommendations")
			return
		}
		s.fail(w, r, err, "Failed to generate recommendations")
		return
	}

	recommended := make([]feed.Article, 0, len(rec.RecommendedArticles))
	wanted := make(map[string]struct{}, len(rec.RecommendedArticles))
	for _, id := range rec.RecommendedArticles {
		wanted[id] = struct{}{}
	}
	for _, a := range articles {
		if _, ok := wanted[a.GUID]; ok {
			recommended = append(recommended, a)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"recommendations": rec.Raw,
		"articles":        recommended,
	})
}

// buildCatalog fetches articles from every subscribed feed to give the
// recommendation prompt its candidate pool. Feeds that fail to fetch are
// skipped rather than failing the whole request.
func (s *Server) buildCatalog(ctx context.Context) ([]ai.Candidate, []feed.Article, error) {
	feeds, err := s.Store.List()
	if err != nil {
		return nil, nil, err
	}
	var catalog []ai.Candidate
	var all []feed.Article
	for _, f := range feeds {
		articles, err := s.Fetcher.Fetch(ctx, f.URL)
		if err != nil {
			s.Logger.Warn("skipping feed for recommendations", "url", f.URL, "error", err)
			continue
		}
		if len(articles) > s.ArticlesPerFeed {
			articles = articles[:s.ArticlesPerFeed]
		}
		for _, a := range articles {
			catalog = append(catalog, ai.Candidate{ID: a.GUID, Title: a.Title, Snippet: a.ContentSnippet})
		}
		all = append(all, articles...)
	}
	return catalog, all, nil
}

// decode reads and validates a JSON request body, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "Request body must be valid JSON")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Missing or invalid request fields")
		return false
	}
	return true
}

// fail maps an internal error onto the HTTP taxonomy. Diagnostic detail is
// logged server-side; only the generic message crosses the boundary.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrInvalid):
		status, msg = http.StatusBadRequest, "Invalid feed URL or missing fields"
	case errors.Is(err, store.ErrDuplicate):
		status, msg = http.StatusConflict, "Feed already exists"
	case errors.Is(err, store.ErrNotFound):
		status, msg = http.StatusNotFound, "Feed not found"
	}
	if status >= http.StatusInternalServerError {
		s.Logger.Error(msg, "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		s.Logger.Warn(msg, "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, status, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
