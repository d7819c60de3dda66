package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/voiceboard/agent/contract"
)

const maxSearchResponseBytes = 1 << 20

var ErrMissingSearchKey = fmt.Errorf("%w: SERPER_API_KEY is not set", contractx.ErrConfigurationMissing)

type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type serperResponse struct {
	AnswerBox *struct {
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
	} `json:"answerBox"`
	KnowledgeGraph *struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"knowledgeGraph"`
	Organic []SearchResult `json:"organic"`
}

func (c *Catalog) executeSearchInternet(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return errorResult(tool, err), nil
	}

	text, err := c.Search(ctx, query)
	if err != nil {
		log.Warn().Err(err).Str("tool", tool).Str("query", query).Msg("search failed")
		return errorResult(tool, err), nil
	}
	return contractx.ToolResult{Tool: tool, Result: text}, nil
}

// Search queries Serper and formats the top results as plain text.
func (c *Catalog) Search(ctx context.Context, query string) (string, error) {
	if !c.HasSearchKey() {
		return "", ErrMissingSearchKey
	}

	body, err := json.Marshal(serperRequest{Q: query, Num: c.cfg.MaxResults})
	if err != nil {
		return "", fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SerperURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("X-API-KEY", strings.TrimSpace(c.cfg.SerperAPIKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search provider returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed serperResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}

	log.Debug().Str("query", query).Int("results", len(parsed.Organic)).Msg("search completed")
	return formatSearch(query, parsed, c.cfg.MaxResults), nil
}

func formatSearch(query string, resp serperResponse, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for: %s\n", query)

	if resp.AnswerBox != nil {
		if answer := firstNonEmpty(resp.AnswerBox.Answer, resp.AnswerBox.Snippet); answer != "" {
			fmt.Fprintf(&b, "\nAnswer: %s\n", answer)
		}
	}
	if kg := resp.KnowledgeGraph; kg != nil && kg.Title != "" {
		fmt.Fprintf(&b, "\nAbout %s: %s\n", kg.Title, kg.Description)
	}

	results := resp.Organic
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	if len(results) == 0 {
		b.WriteString("\nNo results found.\n")
		return b.String()
	}
	for i, r := range results {
		fmt.Fprintf(&b, "\n%d. %s\n   Link: %s\n", i+1, r.Title, r.Link)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   Snippet: %s\n", r.Snippet)
		}
	}
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
