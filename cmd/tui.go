package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/fitlink/internal/shared"
	"github.com/desertthunder/fitlink/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for account linking.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	store, closeStore, err := r.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/fitlink-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	orch, err := r.buildOrchestrator(store)
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, orch)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
