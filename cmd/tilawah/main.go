/*
 * Copyright (c) 2025 Hardiyanto Y -Ebiet.
 * This software is part of the HDX Tilawah project.
 * This code is provided "as is", without warranty of any kind.
 */

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"tilawah/internal/app"
	"tilawah/pkg/spec"
)

const (
	app_name           = "Tilawah"
	developer_title    = "Developer Hardiyanto"
	developer_subtitle = "Build 18/10/2026 Ebiet Version"
)

var (
	configPath string
	verbose    bool
	noCache    bool

	deps *app.App
)

var rootCmd = &cobra.Command{
	Use:   "tilawah",
	Short: "Browse the Quran and listen to its recitation verse by verse",
	Long: `tilawah fetches chapters from the alquran.cloud API, shows their
verses with a translation and plays the recitation one verse at a time or
the whole chapter in sequence.

Run without arguments to start the interactive terminal UI.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		opts := app.Options{ConfigPath: configPath, Verbose: verbose, NoCache: noCache}
		if cmd == cmd.Root() || cmd.Name() == "tui" {
			// keep the full-screen UI clean
			opts.LogFile = filepath.Join(os.TempDir(), "tilawah-tui.log")
		}
		a, err := app.New(opts)
		if err != nil {
			return err
		}
		deps = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if deps != nil {
			_ = deps.Close()
		}
	},
	RunE: runTUI,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s V.%d.%d\n", app_name, spec.VersionMajor, spec.VersionMinor)
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", developer_title, developer_subtitle)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/tilawah/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "bypass the chapter cache")

	rootCmd.AddCommand(versionCmd, listCmd, showCmd, playCmd, shellCmd, exportCmd, tuiCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
