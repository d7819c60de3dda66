package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	sessionx "github.com/tanpawarit/voiceboard/agent/agents/session"
	contractx "github.com/tanpawarit/voiceboard/agent/contract"
	statex "github.com/tanpawarit/voiceboard/agent/state"
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	personaStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	userStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
)

// errQuit ends the interactive session from any prompt.
var errQuit = errors.New("quit")

func isQuit(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quit", "exit", "q":
		return true
	}
	return false
}

func runInteractive(ctx context.Context, a *app) int {
	board, err := a.loadBoard(ctx, true)
	if err != nil {
		return a.fail("Failed to start", err)
	}
	ctrl, err := sessionx.New(board)
	if err != nil {
		return a.fail("Failed to start", err)
	}

	fmt.Fprintln(a.out, titleStyle.Render("🎤 Voiceboard: pitch your idea to the people most likely to tear it apart"))
	fmt.Fprintln(a.out, mutedStyle.Render("Type 'quit' at any prompt to leave."))
	fmt.Fprintln(a.out)

	s, candidates, err := a.discover(ctx, ctrl)
	if err != nil {
		return a.goodbye()
	}

	persona, err := a.choosePersona(ctrl, candidates)
	if err != nil {
		return a.goodbye()
	}
	if err := s.ChoosePersona(persona); err != nil {
		return a.fail("Persona selection failed", err)
	}
	fmt.Fprintf(a.out, "\n🎭 You are now talking to %s. Make your pitch.\n\n", personaStyle.Render(persona.Name))

	a.converse(ctx, ctrl, s)
	s.End()
	return a.goodbye()
}

// discover asks for an idea until discovery succeeds or the user quits.
func (a *app) discover(ctx context.Context, ctrl *sessionx.Controller) (*statex.Session, []contractx.Persona, error) {
	for {
		idea, ok := a.readLine(userStyle.Render("💡 Describe your startup idea: "))
		if !ok || isQuit(idea) {
			return nil, nil, errQuit
		}
		if strings.TrimSpace(idea) == "" {
			fmt.Fprintln(a.out, errorStyle.Render("Please enter a startup idea."))
			continue
		}

		fmt.Fprintln(a.out, mutedStyle.Render("\n🔎 Researching who would be most critical of this idea..."))
		s, candidates, err := ctrl.StartSession(ctx, idea)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			fmt.Fprintf(a.out, "❌ %v\n", err)
			fmt.Fprintln(a.out, "Please try again.")
			continue
		}
		return s, candidates, nil
	}
}

func (a *app) choosePersona(ctrl *sessionx.Controller, candidates []contractx.Persona) (contractx.Persona, error) {
	fmt.Fprintln(a.out)
	printPersonas(a.out, candidates)

	line, ok := a.readLine(userStyle.Render(fmt.Sprintf("\n👉 Choose a persona (1-%d): ", max(len(candidates), 1))))
	if !ok || isQuit(line) {
		return contractx.Persona{}, errQuit
	}
	choice, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		choice = 0
	}
	return ctrl.SelectPersona(candidates, choice), nil
}

// converse runs turns until the user quits or input ends. A failed turn is
// reported and the loop continues.
func (a *app) converse(ctx context.Context, ctrl *sessionx.Controller, s *statex.Session) {
	for {
		if ctx.Err() != nil {
			return
		}
		line, ok := a.readLine(userStyle.Render("You: "))
		if !ok || isQuit(line) {
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		turn, err := ctrl.RunTurn(ctx, s, line)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fmt.Fprintf(a.out, "❌ %v\n\n", err)
			continue
		}
		fmt.Fprintf(a.out, "\n%s %s\n\n", personaStyle.Render(s.Persona.Name+":"), turn.Text)
	}
}

func (a *app) goodbye() int {
	fmt.Fprintln(a.out, "\n👋 Thanks for pitching. Good luck!")
	return exitOK
}
