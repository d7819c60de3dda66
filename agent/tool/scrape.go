package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/voiceboard/agent/contract"
	"golang.org/x/net/html"
)

const (
	maxPageBytes      = 2 << 20
	maxPassages       = 5
	scrapeUserAgent   = "Mozilla/5.0 (compatible; voiceboard/1.0)"
	truncatedSentinel = "\n\n[...truncated...]"
)

var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t\r\f\v]+`)
)

func (c *Catalog) executeScrapeWebsite(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
	target, err := stringArg(args, "website_url")
	if err != nil {
		return errorResult(tool, err), nil
	}

	text, err := c.Scrape(ctx, target)
	if err != nil {
		log.Warn().Err(err).Str("tool", tool).Str("url", target).Msg("scrape failed")
		return errorResult(tool, err), nil
	}
	return contractx.ToolResult{Tool: tool, Result: truncate(text, c.cfg.MaxContentChars)}, nil
}

func (c *Catalog) executeSearchWebsite(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
	target, err := stringArg(args, "website_url")
	if err != nil {
		return errorResult(tool, err), nil
	}
	query, err := stringArg(args, "search_query")
	if err != nil {
		return errorResult(tool, err), nil
	}

	text, err := c.Scrape(ctx, target)
	if err != nil {
		log.Warn().Err(err).Str("tool", tool).Str("url", target).Msg("website search failed")
		return errorResult(tool, err), nil
	}

	passages := relevantPassages(text, query, maxPassages)
	if len(passages) == 0 {
		return contractx.ToolResult{
			Tool:   tool,
			Result: fmt.Sprintf("No passages on %s mention %q.", target, query),
		}, nil
	}
	return contractx.ToolResult{
		Tool:   tool,
		Result: truncate(strings.Join(passages, "\n\n"), c.cfg.MaxContentChars),
	}, nil
}

// Scrape fetches a page and returns its readable text.
func (c *Catalog) Scrape(ctx context.Context, target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid url %q", target)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", scrapeUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: HTTP %d", u, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", u, err)
	}

	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "text/plain") || strings.Contains(ct, "text/markdown") {
		return cleanText(string(body)), nil
	}
	return htmlToText(string(body))
}

func htmlToText(content string) (string, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	var b strings.Builder
	extractText(doc, &b, 0)
	return cleanText(b.String()), nil
}

func extractText(n *html.Node, b *strings.Builder, depth int) {
	if depth > 64 {
		return
	}
	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			b.WriteString(text)
			b.WriteByte(' ')
		}
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "iframe", "svg", "nav", "footer", "header", "form":
			return
		case "p", "div", "section", "article", "li", "br", "tr",
			"h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "title":
			defer b.WriteString("\n\n")
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		extractText(child, b, depth+1)
	}
}

func cleanText(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(multiSpacePattern.ReplaceAllString(line, " "))
	}
	out := multiNewlinePattern.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(out)
}

// relevantPassages ranks paragraphs by how many distinct query terms they
// contain and returns the best ones in page order.
func relevantPassages(text, query string, limit int) []string {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil
	}

	type scored struct {
		idx   int
		score int
		text  string
	}
	var hits []scored
	for i, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		lower := strings.ToLower(para)
		score := 0
		for _, term := range terms {
			if strings.Contains(lower, term) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{idx: i, score: score, text: para})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].idx < hits[j].idx })

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.text)
	}
	return out
}

func queryTerms(query string) []string {
	seen := map[string]struct{}{}
	var terms []string
	for _, f := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
	}) {
		if len(f) < 3 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncatedSentinel
}
