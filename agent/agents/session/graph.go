package session

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	nodex "github.com/tanpawarit/voiceboard/agent/nodes/session"
)

func (c *Controller) compileTurnGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_turn",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateTurn(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_turn: %w", err)
	}

	if err := graph.AddLambdaNode(nodex.ShapeFirstTurn,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.DelegateFirstTurn(ctx, in, c.pipeline)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.ShapeFirstTurn, err)
	}

	if err := graph.AddLambdaNode(nodex.ShapeFollowUp,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.DelegateFollowUp(ctx, in, c.pipeline)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.ShapeFollowUp, err)
	}

	if err := graph.AddLambdaNode("finalize_turn",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeTurn(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_turn: %w", err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.GraphState) (string, error) {
			return nodex.ChooseShape(in)
		},
		map[string]bool{
			nodex.ShapeFirstTurn: true,
			nodex.ShapeFollowUp:  true,
		},
	)
	if err := graph.AddBranch("validate_turn", branch); err != nil {
		return nil, fmt.Errorf("add turn branch: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_turn"},
		{nodex.ShapeFirstTurn, "finalize_turn"},
		{nodex.ShapeFollowUp, "finalize_turn"},
		{"finalize_turn", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("session.run_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile turn graph: %w", err)
	}
	return runner, nil
}
