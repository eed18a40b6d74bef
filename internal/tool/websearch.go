package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gosuda/deepsearch/internal/search"
)

// WebSearchName is the name the model uses to call web search.
const WebSearchName = "searchWeb"

// DefaultSearchResults is the number of results requested per search.
const DefaultSearchResults = 10

// Searcher runs a web search.
type Searcher interface {
	Search(ctx context.Context, query string, num int) ([]search.Result, error)
}

// WebResult is one search hit as returned to the model.
type WebResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

var webSearchParameters = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"minLength": 1,
			"description": "The query to search the web for"
		}
	},
	"required": ["query"],
	"additionalProperties": false
}`)

type webSearchArgs struct {
	Query string `json:"query"`
}

// NewWebSearch declares the searchWeb tool backed by s. num <= 0 selects
// DefaultSearchResults.
func NewWebSearch(s Searcher, num int) Definition {
	if num <= 0 {
		num = DefaultSearchResults
	}

	return Definition{
		Name:        WebSearchName,
		Description: "Search the web for current information. Returns a list of results with title, link and snippet.",
		Parameters:  webSearchParameters,
		Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args webSearchArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArguments, WebSearchName, err)
			}

			query := strings.TrimSpace(args.Query)
			if query == "" {
				return nil, fmt.Errorf("%w: %s: query is blank", ErrInvalidArguments, WebSearchName)
			}

			results, err := s.Search(ctx, query, num)
			if err != nil {
				return nil, err
			}

			out := make([]WebResult, 0, len(results))
			for _, r := range results {
				out = append(out, WebResult{Title: r.Title, Link: r.Link, Snippet: r.Snippet})
			}
			return out, nil
		},
	}
}
