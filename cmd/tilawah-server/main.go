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
	"syscall"

	"github.com/spf13/cobra"

	"tilawah/internal/app"
	"tilawah/pkg/spec"
)

var (
	configPath string
	verbose    bool
	noCache    bool
	resumeLast bool
	httpAddr   string
	socketPath string
	mdnsOn     bool
)

var rootCmd = &cobra.Command{
	Use:   "tilawah-server",
	Short: "Headless verse player controlled over a unix socket",
	Long: `tilawah-server owns the sound card and one playback engine. Clients
control it with line commands over a unix socket (see tilawah-client) and
can watch it over HTTP and a websocket stream.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	Version:      fmt.Sprintf("%d.%d", spec.VersionMajor, spec.VersionMinor),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(app.Options{ConfigPath: configPath, Verbose: verbose, NoCache: noCache})
		if err != nil {
			return err
		}
		defer a.Close()

		if cmd.Flags().Changed("http") {
			a.Config.Server.HTTPAddr = httpAddr
		}
		if cmd.Flags().Changed("socket") {
			a.Config.Server.Socket = socketPath
		}
		if cmd.Flags().Changed("mdns") {
			a.Config.Server.MDNS = mdnsOn
		}
		return serve(cmd.Context(), a, resumeLast)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/tilawah/config.yaml)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the chapter cache")
	rootCmd.Flags().BoolVar(&resumeLast, "resume", false, "reopen the last chapter on start")
	rootCmd.Flags().StringVar(&httpAddr, "http", "", "HTTP listen address, empty to disable")
	rootCmd.Flags().StringVar(&socketPath, "socket", spec.SocketFile, "control socket path")
	rootCmd.Flags().BoolVar(&mdnsOn, "mdns", false, "advertise the HTTP view over mDNS")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
