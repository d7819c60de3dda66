package contract

import "strings"

type Role string

const (
	RolePersonaIdentifier Role = "persona_identifier"
	RoleVoiceResearcher   Role = "voice_researcher"
	RolePersonaConversant Role = "persona_conversation_agent"
)

// Persona is a simulated business counterpart. ID is a slug of Name.
type Persona struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Summary string `json:"summary,omitempty"`
	Voice   string `json:"voice,omitempty"`
}

// NewPersona builds a persona whose ID is derived from its display name.
func NewPersona(name, summary string) Persona {
	name = strings.TrimSpace(name)
	return Persona{
		ID:      Slug(name),
		Name:    name,
		Summary: strings.TrimSpace(summary),
	}
}

// Slug lowercases s and joins its alphanumeric runs with dashes.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Pipeline input parameter names. These are also the template variables of
// the task definitions.
const (
	ParamStartupIdea         = "startup_idea"
	ParamSelectedPersonaName = "selected_persona_name"
	ParamUserMessage         = "user_message"
	ParamUserResponse        = "user_response"
	ParamConversationHistory = "conversation_history"
)

type DiscoveryInput struct {
	StartupIdea string `json:"startup_idea"`
}

func (in DiscoveryInput) Params() map[string]string {
	return map[string]string{
		ParamStartupIdea: in.StartupIdea,
	}
}

type ConversationInput struct {
	SelectedPersonaName string `json:"selected_persona_name"`
	UserMessage         string `json:"user_message"`
	StartupIdea         string `json:"startup_idea"`
}

func (in ConversationInput) Params() map[string]string {
	return map[string]string{
		ParamSelectedPersonaName: in.SelectedPersonaName,
		ParamUserMessage:         in.UserMessage,
		ParamStartupIdea:         in.StartupIdea,
	}
}

type FollowUpInput struct {
	SelectedPersonaName string `json:"selected_persona_name"`
	UserResponse        string `json:"user_response"`
	ConversationHistory string `json:"conversation_history"`
}

func (in FollowUpInput) Params() map[string]string {
	return map[string]string{
		ParamSelectedPersonaName: in.SelectedPersonaName,
		ParamUserResponse:        in.UserResponse,
		ParamConversationHistory: in.ConversationHistory,
	}
}

// Result is what a pipeline call hands back. Callers only read Raw.
type Result struct {
	Raw       string `json:"raw"`
	KickoffID string `json:"kickoff_id,omitempty"`
}

type DiscoveryResult struct {
	Result
	Personas []Persona `json:"personas"`
}

type ToolRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

type ToolResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}
