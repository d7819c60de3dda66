package crew

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/voiceboard/agent/contract"
	promptx "github.com/tanpawarit/voiceboard/agent/prompt"
	toolx "github.com/tanpawarit/voiceboard/agent/tool"
)

const (
	DefaultMaxIterations = 8

	finalAnswerNudge = "You have used every available tool call. Give your best final answer now using what you already know, without calling tools."
)

// AgentConfig describes one crew member.
type AgentConfig struct {
	Definition    promptx.AgentDef
	Model         einomodel.ToolCallingChatModel
	Tools         *toolx.Catalog
	MaxIterations int
	Guidance      []string
}

// Agent answers rendered task prompts, calling its tools until the model
// produces a final answer or the iteration budget runs out.
type Agent struct {
	role          contractx.Role
	systemPrompt  string
	model         einomodel.ToolCallingChatModel
	toolModel     einomodel.ToolCallingChatModel
	executor      toolx.Executor
	maxIterations int

	runner compose.Runnable[map[string]any, string]
}

var _ contractx.Agent = (*Agent)(nil)

func NewAgent(ctx context.Context, cfg AgentConfig) (*Agent, error) {
	role := cfg.Definition.Role
	if cfg.Model == nil {
		return nil, fmt.Errorf("%w: chat model is required for agent=%s", contractx.ErrValidation, role)
	}

	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	a := &Agent{
		role:          role,
		systemPrompt:  withGuidance(cfg.Definition.SystemPrompt(), cfg.Guidance),
		model:         cfg.Model,
		toolModel:     cfg.Model,
		executor:      toolx.DefaultExecutor(role),
		maxIterations: maxIterations,
	}

	if len(cfg.Definition.Tools) > 0 {
		if cfg.Tools == nil {
			return nil, fmt.Errorf("%w: tool catalog is required for agent=%s", contractx.ErrValidation, role)
		}
		infos, executor, err := cfg.Tools.BuildForAgent(role, cfg.Definition.Tools)
		if err != nil {
			return nil, err
		}
		toolModel, err := cfg.Model.WithTools(infos)
		if err != nil {
			return nil, fmt.Errorf("%w: bind tools for agent=%s: %v", contractx.ErrModelInvoke, role, err)
		}
		a.toolModel = toolModel
		a.executor = executor
	}

	runner, err := compileAgentGraph(ctx, a.react)
	if err != nil {
		return nil, fmt.Errorf("%w: compile agent graph for agent=%s: %v", contractx.ErrModelInvoke, role, err)
	}
	a.runner = runner

	return a, nil
}

func (a *Agent) Role() contractx.Role {
	return a.role
}

func (a *Agent) Execute(ctx context.Context, taskPrompt string) (string, error) {
	if strings.TrimSpace(taskPrompt) == "" {
		return "", fmt.Errorf("%w: task prompt is empty", contractx.ErrValidation)
	}
	return a.runner.Invoke(ctx, map[string]any{
		"system": a.systemPrompt,
		"task":   taskPrompt,
	})
}

func compileAgentGraph(
	ctx context.Context,
	loop func(context.Context, []*schema.Message) (string, error),
) (compose.Runnable[map[string]any, string], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{task}"),
	)

	graph := compose.NewGraph[map[string]any, string]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add agent prompt node: %w", err)
	}
	if err := graph.AddLambdaNode("react", compose.InvokableLambda(loop)); err != nil {
		return nil, fmt.Errorf("add agent react node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add agent edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "react"); err != nil {
		return nil, fmt.Errorf("add agent edge prompt->react: %w", err)
	}
	if err := graph.AddEdge("react", compose.END); err != nil {
		return nil, fmt.Errorf("add agent edge react->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("crew.agent_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile agent graph: %w", err)
	}
	return runner, nil
}

func (a *Agent) react(ctx context.Context, msgs []*schema.Message) (string, error) {
	history := append([]*schema.Message(nil), msgs...)

	for i := 0; i < a.maxIterations; i++ {
		msg, err := a.toolModel.Generate(ctx, history)
		if err != nil {
			return "", fmt.Errorf("%w: agent=%s step=%d: %v", contractx.ErrModelInvoke, a.role, i, err)
		}
		if msg == nil {
			return "", fmt.Errorf("%w: agent=%s returned no message", contractx.ErrSchemaViolation, a.role)
		}
		if len(msg.ToolCalls) == 0 {
			return finalContent(a.role, msg)
		}

		history = append(history, msg)
		for _, call := range msg.ToolCalls {
			history = append(history, a.runTool(ctx, call))
		}
	}

	log.Warn().Str("agent", string(a.role)).Int("max_iterations", a.maxIterations).Msg("tool budget exhausted, forcing final answer")

	history = append(history, schema.UserMessage(finalAnswerNudge))
	msg, err := a.model.Generate(ctx, history)
	if err != nil {
		return "", fmt.Errorf("%w: agent=%s final answer: %v", contractx.ErrModelInvoke, a.role, err)
	}
	if msg == nil {
		return "", fmt.Errorf("%w: agent=%s returned no message", contractx.ErrSchemaViolation, a.role)
	}
	return finalContent(a.role, msg)
}

func (a *Agent) runTool(ctx context.Context, call schema.ToolCall) *schema.Message {
	req, err := toToolRequest(call)
	var result contractx.ToolResult
	if err != nil {
		result = contractx.ToolResult{Tool: call.Function.Name, Error: err.Error()}
	} else {
		result, err = a.executor(ctx, req.Tool, req.Args)
		if err != nil {
			result = contractx.ToolResult{Tool: req.Tool, Error: err.Error()}
		}
	}

	log.Debug().
		Str("agent", string(a.role)).
		Str("tool", result.Tool).
		Bool("failed", result.Error != "").
		Msg("tool call executed")

	payload, err := json.Marshal(result)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"tool":%q,"error":"unencodable tool result"}`, result.Tool))
	}
	return schema.ToolMessage(string(payload), call.ID)
}

func toToolRequest(call schema.ToolCall) (contractx.ToolRequest, error) {
	tool := strings.TrimSpace(call.Function.Name)
	if tool == "" {
		return contractx.ToolRequest{}, fmt.Errorf("%w: tool call name is empty", contractx.ErrSchemaViolation)
	}

	args := map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return contractx.ToolRequest{}, fmt.Errorf("%w: invalid tool args for tool=%s: %v", contractx.ErrSchemaViolation, tool, err)
		}
	}
	return contractx.ToolRequest{Tool: tool, Args: args}, nil
}

func finalContent(role contractx.Role, msg *schema.Message) (string, error) {
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return "", fmt.Errorf("%w: agent=%s final answer is empty", contractx.ErrSchemaViolation, role)
	}
	return content, nil
}

func withGuidance(systemPrompt string, guidance []string) string {
	if len(guidance) == 0 {
		return systemPrompt
	}
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nApply these lessons from earlier human feedback:")
	for _, g := range guidance {
		b.WriteString("\n- ")
		b.WriteString(g)
	}
	return b.String()
}
