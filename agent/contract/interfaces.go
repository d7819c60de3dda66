package contract

import "context"

// Pipeline is the agent collaborator the session controller delegates to.
// Every call is blocking and stateless across calls.
type Pipeline interface {
	Discover(ctx context.Context, in DiscoveryInput) (DiscoveryResult, error)
	Converse(ctx context.Context, in ConversationInput) (Result, error)
	FollowUp(ctx context.Context, in FollowUpInput) (Result, error)
}

// Agent executes one rendered task prompt and returns its final answer.
type Agent interface {
	Role() Role
	Execute(ctx context.Context, taskPrompt string) (string, error)
}
