package tool

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/voiceboard/agent/contract"
)

const (
	ToolSearchInternet = "search_internet"
	ToolScrapeWebsite  = "scrape_website"
	ToolSearchWebsite  = "search_website"
)

type Config struct {
	SerperAPIKey    string        `envconfig:"SERPER_API_KEY"`
	SerperURL       string        `envconfig:"SERPER_URL" default:"https://google.serper.dev/search"`
	Timeout         time.Duration `envconfig:"TOOL_TIMEOUT" default:"30s"`
	MaxResults      int           `envconfig:"SEARCH_MAX_RESULTS" default:"5"`
	MaxContentChars int           `envconfig:"SCRAPE_MAX_CHARS" default:"8000"`
}

type Executor func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error)

type Option func(*Catalog)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Catalog) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// Catalog owns the research tools and hands out per-agent subsets.
type Catalog struct {
	cfg        Config
	httpClient *http.Client
}

func NewCatalog(cfg Config, opts ...Option) *Catalog {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.MaxContentChars <= 0 {
		cfg.MaxContentChars = 8000
	}
	if strings.TrimSpace(cfg.SerperURL) == "" {
		cfg.SerperURL = "https://google.serper.dev/search"
	}

	c := &Catalog{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// HasSearchKey reports whether the search provider credential is set.
func (c *Catalog) HasSearchKey() bool {
	return strings.TrimSpace(c.cfg.SerperAPIKey) != ""
}

// BuildForAgent returns the tool schemas an agent may call and an executor
// restricted to those tools.
func (c *Catalog) BuildForAgent(role contractx.Role, names []string) ([]*schema.ToolInfo, Executor, error) {
	infos := make([]*schema.ToolInfo, 0, len(names))
	allowed := make(map[string]struct{}, len(names))
	for _, name := range names {
		info := infoFor(name)
		if info == nil {
			return nil, nil, fmt.Errorf("%w: unknown tool %q for agent=%s", contractx.ErrValidation, name, role)
		}
		infos = append(infos, info)
		allowed[name] = struct{}{}
	}
	return infos, c.NewExecutor(role, allowed), nil
}

func (c *Catalog) NewExecutor(role contractx.Role, allowed map[string]struct{}) Executor {
	fallback := DefaultExecutor(role)
	return func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
		if _, ok := allowed[tool]; !ok {
			return fallback(ctx, tool, args)
		}
		switch tool {
		case ToolSearchInternet:
			return c.executeSearchInternet(ctx, tool, args)
		case ToolScrapeWebsite:
			return c.executeScrapeWebsite(ctx, tool, args)
		case ToolSearchWebsite:
			return c.executeSearchWebsite(ctx, tool, args)
		default:
			return fallback(ctx, tool, args)
		}
	}
}

func DefaultExecutor(role contractx.Role) Executor {
	return func(ctx context.Context, tool string, _ map[string]any) (contractx.ToolResult, error) {
		return contractx.ToolResult{
			Tool:  tool,
			Error: fmt.Sprintf("tool=%s is unavailable for agent=%s", tool, role),
		}, nil
	}
}

func infoFor(name string) *schema.ToolInfo {
	switch name {
	case ToolSearchInternet:
		return &schema.ToolInfo{
			Name: ToolSearchInternet,
			Desc: "Search the internet and return the top results with titles, links and snippets.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {Type: schema.String, Desc: "Search query", Required: true},
			}),
		}
	case ToolScrapeWebsite:
		return &schema.ToolInfo{
			Name: ToolScrapeWebsite,
			Desc: "Fetch a web page and return its readable text content.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"website_url": {Type: schema.String, Desc: "Absolute URL of the page", Required: true},
			}),
		}
	case ToolSearchWebsite:
		return &schema.ToolInfo{
			Name: ToolSearchWebsite,
			Desc: "Search inside one web page and return the passages most relevant to a query.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"website_url":  {Type: schema.String, Desc: "Absolute URL of the page", Required: true},
				"search_query": {Type: schema.String, Desc: "What to look for on the page", Required: true},
			}),
		}
	default:
		return nil
	}
}

func stringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%s is required", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%s is empty", key)
	}
	return s, nil
}

func errorResult(tool string, err error) contractx.ToolResult {
	return contractx.ToolResult{Tool: tool, Error: err.Error()}
}
