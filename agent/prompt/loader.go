package prompt

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	contractx "github.com/tanpawarit/voiceboard/agent/contract"
	"gopkg.in/yaml.v3"
)

var (
	//go:embed template/agents.yaml
	agentsRaw string

	//go:embed template/tasks.yaml
	tasksRaw string
)

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

type AgentDef struct {
	Role      contractx.Role `yaml:"-"`
	Title     string         `yaml:"role"`
	Goal      string         `yaml:"goal"`
	Backstory string         `yaml:"backstory"`
	Tools     []string       `yaml:"tools"`
}

// SystemPrompt renders the agent's identity as a system message.
func (a AgentDef) SystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are ")
	b.WriteString(strings.TrimSpace(a.Title))
	b.WriteString(".\n")
	if goal := strings.TrimSpace(a.Goal); goal != "" {
		b.WriteString("Your goal: ")
		b.WriteString(goal)
		b.WriteString("\n")
	}
	if story := strings.TrimSpace(a.Backstory); story != "" {
		b.WriteString("Background: ")
		b.WriteString(story)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

type TaskDef struct {
	Name           string         `yaml:"-"`
	Agent          contractx.Role `yaml:"agent"`
	Description    string         `yaml:"description"`
	ExpectedOutput string         `yaml:"expected_output"`
	Context        []string       `yaml:"context"`
}

// Variables lists the template variables the task needs, sorted.
func (t TaskDef) Variables() []string {
	seen := map[string]struct{}{}
	for _, text := range []string{t.Description, t.ExpectedOutput} {
		for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
			seen[m[1]] = struct{}{}
		}
	}
	vars := make([]string, 0, len(seen))
	for v := range seen {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}

// PromptSet holds the parsed agent and task definitions.
type PromptSet struct {
	Agents map[contractx.Role]AgentDef
	Tasks  map[string]TaskDef
}

// LoadPromptSet parses the embedded definitions.
func LoadPromptSet() (PromptSet, error) {
	return Parse([]byte(agentsRaw), []byte(tasksRaw))
}

func Parse(agentsYAML, tasksYAML []byte) (PromptSet, error) {
	var agents map[string]AgentDef
	if err := yaml.Unmarshal(agentsYAML, &agents); err != nil {
		return PromptSet{}, fmt.Errorf("%w: parse agents: %v", contractx.ErrPromptMissing, err)
	}
	var tasks map[string]TaskDef
	if err := yaml.Unmarshal(tasksYAML, &tasks); err != nil {
		return PromptSet{}, fmt.Errorf("%w: parse tasks: %v", contractx.ErrPromptMissing, err)
	}

	set := PromptSet{
		Agents: make(map[contractx.Role]AgentDef, len(agents)),
		Tasks:  make(map[string]TaskDef, len(tasks)),
	}
	for name, def := range agents {
		def.Role = contractx.Role(name)
		set.Agents[def.Role] = def
	}
	for name, def := range tasks {
		def.Name = name
		if _, ok := set.Agents[def.Agent]; !ok {
			return PromptSet{}, fmt.Errorf("%w: task %s references unknown agent %q", contractx.ErrPromptMissing, name, def.Agent)
		}
		set.Tasks[name] = def
	}
	for name, def := range set.Tasks {
		for _, dep := range def.Context {
			if _, ok := set.Tasks[dep]; !ok {
				return PromptSet{}, fmt.Errorf("%w: task %s context %q is undefined", contractx.ErrPromptMissing, name, dep)
			}
		}
	}
	return set, nil
}

func (p PromptSet) Agent(role contractx.Role) (AgentDef, error) {
	def, ok := p.Agents[role]
	if !ok {
		return AgentDef{}, fmt.Errorf("%w: agent %s", contractx.ErrPromptMissing, role)
	}
	return def, nil
}

func (p PromptSet) Task(name string) (TaskDef, error) {
	def, ok := p.Tasks[name]
	if !ok {
		return TaskDef{}, fmt.Errorf("%w: task %s", contractx.ErrPromptMissing, name)
	}
	return def, nil
}
