package pipeline

import (
	"encoding/json"
	"strings"

	contractx "github.com/tanpawarit/voiceboard/agent/contract"
)

const maxJSONProbes = 32

// DefaultPersonas is the menu offered when discovery output cannot be parsed.
func DefaultPersonas() []contractx.Persona {
	return []contractx.Persona{
		contractx.NewPersona("Kevin O'Leary", "Direct, money-focused investor feedback"),
		contractx.NewPersona("Barbara Corcoran", "Market reality and execution challenges"),
		contractx.NewPersona("Mark Cuban", "Scalability and competitive analysis"),
		contractx.NewPersona("Reid Hoffman", "Network effects and platform strategy"),
		contractx.NewPersona("Sara Blakely", "Customer validation and bootstrapping"),
	}
}

type personaJSON struct {
	Name        string `json:"name"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Why         string `json:"why_critical"`
	Voice       string `json:"voice"`
	Style       string `json:"speaking_style"`
}

// ParsePersonas returns the personas found in the first output that holds a
// JSON array of personas or an object with a "personas" array. Markdown code
// fences and surrounding prose are tolerated.
func ParsePersonas(outputs ...string) ([]contractx.Persona, bool) {
	for _, out := range outputs {
		if personas := parseOne(out); len(personas) > 0 {
			return personas, true
		}
	}
	return nil, false
}

func parseOne(text string) []contractx.Persona {
	text = stripFences(text)
	probes := 0
	for i := 0; i < len(text) && probes < maxJSONProbes; i++ {
		if text[i] != '[' && text[i] != '{' {
			continue
		}
		probes++
		if personas := decodeAt(text[i:]); len(personas) > 0 {
			return personas
		}
	}
	return nil
}

func decodeAt(text string) []contractx.Persona {
	var raw json.RawMessage
	if err := json.NewDecoder(strings.NewReader(text)).Decode(&raw); err != nil {
		return nil
	}

	var list []personaJSON
	if err := json.Unmarshal(raw, &list); err != nil {
		var wrapped struct {
			Personas []personaJSON `json:"personas"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil
		}
		list = wrapped.Personas
	}
	return toPersonas(list)
}

func toPersonas(list []personaJSON) []contractx.Persona {
	seen := make(map[string]struct{}, len(list))
	out := make([]contractx.Persona, 0, len(list))
	for _, item := range list {
		p := contractx.NewPersona(item.Name, firstNonBlank(item.Summary, item.Description, item.Why))
		if p.Name == "" || p.ID == "" {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		p.Voice = firstNonBlank(item.Voice, item.Style)
		out = append(out, p)
	}
	return out
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.Contains(text, "```") {
		return text
	}
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
