package pipeline

import (
	"context"

	contractx "github.com/tanpawarit/voiceboard/agent/contract"
)

type CheckStatus string

const (
	CheckPass CheckStatus = "pass"
	CheckWarn CheckStatus = "warn"
	CheckFail CheckStatus = "fail"
)

type CheckResult struct {
	Name   string
	Status CheckStatus
	Detail string
}

var checkedRoles = []struct {
	role  contractx.Role
	label string
}{
	{contractx.RolePersonaIdentifier, "Persona identifier agent"},
	{contractx.RoleVoiceResearcher, "Voice researcher agent"},
	{contractx.RolePersonaConversant, "Conversation agent"},
}

// Check verifies configuration and builds every agent without running any
// task. It never returns an error; failures are reported per check.
func (p *Pipeline) Check(ctx context.Context) []CheckResult {
	var results []CheckResult

	switch {
	case p.tools == nil:
		results = append(results, CheckResult{Name: "SERPER_API_KEY", Status: CheckWarn, Detail: "no tool catalog configured"})
	case p.tools.HasSearchKey():
		results = append(results, CheckResult{Name: "SERPER_API_KEY", Status: CheckPass, Detail: "found"})
	default:
		results = append(results, CheckResult{
			Name:   "SERPER_API_KEY",
			Status: CheckWarn,
			Detail: "not found in environment; set it in .env for full functionality",
		})
	}

	for _, c := range checkedRoles {
		if _, err := p.registry.Agent(ctx, c.role); err != nil {
			results = append(results, CheckResult{Name: c.label, Status: CheckFail, Detail: err.Error()})
			continue
		}
		results = append(results, CheckResult{Name: c.label, Status: CheckPass, Detail: "created"})
	}

	for _, crew := range []string{CrewDiscovery, CrewConversation, CrewFollowUp} {
		if _, err := p.Crew(ctx, crew); err != nil {
			results = append(results, CheckResult{Name: crew + " crew", Status: CheckFail, Detail: err.Error()})
		}
	}
	return results
}

// Passed reports whether no check failed.
func Passed(results []CheckResult) bool {
	for _, r := range results {
		if r.Status == CheckFail {
			return false
		}
	}
	return true
}
