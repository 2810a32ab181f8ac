package mcpserver

import (
	"context"
	"time"

	mcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"curio/internal/ai"
	"curio/internal/config"
	"curio/internal/feed"
	"curio/internal/store"
)

type ListFeedsParams struct{}

type FetchArticlesParams struct {
	URL   string `json:"url"`
	Limit *int   `json:"limit,omitempty"`
}

type SummarizeParams struct {
	Title          string `json:"title"`
	ContentSnippet string `json:"content_snippet,omitempty"`
}

// Run exposes the reader's feeds, articles, and summarizer as MCP tools on
// stdio, so an LLM client can browse subscriptions directly.
func Run(ctx context.Context) error {
	appCfg, err := config.LoadAppConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(appCfg.FeedsPath)
	if err != nil {
		return err
	}
	fetcher := feed.NewFetcher(time.Duration(appCfg.FetchTimeoutSec) * time.Second)
	assistant := ai.NewAssistant(ai.NewClient(appCfg.AIConf))

	server := mcp.NewServer(&mcp.Implementation{Name: "curio", Version: "v1.0.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{Name: "list_feeds", Description: "List subscribed RSS/Atom feeds"},
		func(ctx context.Context, req *mcp.CallToolRequest, p ListFeedsParams) (*mcp.CallToolResult, any, error) {
			feeds, err := st.List()
			if err != nil {
				return nil, map[string]any{
					"ok":      false,
					"message": "Failed reading the subscription list",
					"error":   err.Error(),
				}, nil
			}
			return nil, map[string]any{"count": len(feeds), "feeds": feeds}, nil
		})

	mcp.AddTool(server, &mcp.Tool{Name: "fetch_articles", Description: "Fetch and normalize articles from a feed URL"},
		func(ctx context.Context, req *mcp.CallToolRequest, p FetchArticlesParams) (*mcp.CallToolResult, any, error) {
			articles, err := fetcher.Fetch(ctx, p.URL)
			if err != nil {
				return nil, map[string]any{
					"ok":      false,
					"message": "Failed fetching the feed",
					"error":   err.Error(),
					"url":     p.URL,
				}, nil
			}
			if p.Limit != nil && *p.Limit > 0 && len(articles) > *p.Limit {
				articles = articles[:*p.Limit]
			}
			return nil, map[string]any{"count": len(articles), "articles": articles}, nil
		})

	mcp.AddTool(server, &mcp.Tool{Name: "summarize_article", Description: "Summarize an article title and snippet"},
		func(ctx context.Context, req *mcp.CallToolRequest, p SummarizeParams) (*mcp.CallToolResult, any, error) {
			summary, err := assistant.Summarize(ctx, p.Title, p.ContentSnippet)
			if err != nil {
				return nil, map[string]any{
					"ok":      false,
					"message": "Failed generating a summary",
					"error":   err.Error(),
				}, nil
			}
			return nil, map[string]any{"summary": summary}, nil
		})

	return server.Run(ctx, &mcp.StdioTransport{})
}
