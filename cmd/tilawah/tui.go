package main

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tilawah/internal/tui"
)

var resumeLast bool

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Full-screen chapter browser and player (default)",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func init() {
	rootCmd.Flags().BoolVar(&resumeLast, "resume", false, "reopen the last chapter")
	tuiCmd.Flags().BoolVar(&resumeLast, "resume", false, "reopen the last chapter")
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	eng, stop, err := startEngine(ctx)
	if err != nil {
		return err
	}
	defer stop()

	if resumeLast {
		if n, ok := deps.LastChapter(ctx); ok {
			if err := eng.Open(ctx, n); err != nil {
				deps.Log.Warn("resume last chapter", zap.Int("chapter", n), zap.Error(err))
			}
		}
	}

	uiCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	p := tea.NewProgram(tui.New(uiCtx, eng), tea.WithAltScreen(), tea.WithContext(uiCtx))
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
