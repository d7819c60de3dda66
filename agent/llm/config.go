package llm

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	contractx "github.com/tanpawarit/voiceboard/agent/contract"
	openrouterx "github.com/tanpawarit/voiceboard/pkg/openrouter"
)

const DefaultEvaluatorModel = "openai/gpt-4o-mini"

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" default:"openai/gpt-4o-mini"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.7"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true" default:"voiceboard"`
	ExcludeReasoning   bool          `envconfig:"EXCLUDE_REASONING" split_words:"true" default:"false"`

	ResearchModel           string  `envconfig:"RESEARCH_MODEL" split_words:"true"`
	ConversationModel       string  `envconfig:"CONVERSATION_MODEL" split_words:"true"`
	ResearchTemperature     float32 `envconfig:"RESEARCH_TEMPERATURE" split_words:"true" default:"-1"`
	ConversationTemperature float32 `envconfig:"CONVERSATION_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: LLM_API_KEY is not set", contractx.ErrConfigurationMissing)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the model settings for one agent role. Research
// roles (persona identification and voice research) share one override,
// the conversation role has its own.
func (c Config) OpenRouterFor(role contractx.Role) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch role {
	case contractx.RolePersonaIdentifier, contractx.RoleVoiceResearcher:
		if v := strings.TrimSpace(c.ResearchModel); v != "" {
			modelName = v
		}
		if c.ResearchTemperature >= 0 {
			temp = c.ResearchTemperature
		}
	case contractx.RolePersonaConversant:
		if v := strings.TrimSpace(c.ConversationModel); v != "" {
			modelName = v
		}
		if c.ConversationTemperature >= 0 {
			temp = c.ConversationTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
		ExcludeReasoning:   c.ExcludeReasoning,
	}
}

// Evaluator returns client settings for the model that scores task outputs.
// OpenRouter needs vendor-qualified model ids, so a bare name such as
// "gpt-4o-mini" is sent as "openai/gpt-4o-mini" there.
func (c Config) Evaluator(model string) openrouterx.Config {
	cfg := c.OpenRouterFor("")
	cfg.Model = DefaultEvaluatorModel
	if m := strings.TrimSpace(model); m != "" {
		cfg.Model = m
	}
	if isOpenRouter(cfg.BaseURL) && !strings.Contains(cfg.Model, "/") {
		cfg.Model = "openai/" + cfg.Model
	}
	return cfg
}

func isOpenRouter(baseURL string) bool {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), "openrouter.ai")
}
