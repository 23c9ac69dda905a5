/*
 * Copyright (c) 2025 Hardiyanto Y -Ebiet.
 * This software is part of the HDX Tilawah project.
 * This code is provided "as is", without warranty of any kind.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"tilawah/internal/engine"
	"tilawah/internal/ipc"
	"tilawah/pkg/spec"
)

const (
	app_name           = "Tilawah-Client"
	developer_title    = "Developer Hardiyanto"
	developer_subtitle = "Build 18/10/2026 Ebiet Version"
)

var (
	socketPath string
	oneShot    []string
)

var verbs = []string{
	"ABOUT", "PING", "WHOAMI", "STATUS", "LIST-CHAPTERS", "SHOW",
	"OPEN", "PLAY-CHAPTER", "PLAY-VERSE", "TOGGLE", "PAUSE", "RESUME", "STOP", "BACK",
	"TRANSLATION", "RECITER", "QUIT",
}

var rootCmd = &cobra.Command{
	Use:          "tilawah-client",
	Short:        "Interactive client for tilawah-server",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := ipc.Dial(ctx, socketPath)
		if err != nil {
			return err
		}
		defer c.Close()

		if len(oneShot) > 0 {
			return runBatch(ctx, c, cmd.OutOrStdout(), oneShot)
		}
		return runInteractive(ctx, c)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&socketPath, "socket", "s", spec.SocketFile, "server control socket")
	rootCmd.Flags().StringArrayVarP(&oneShot, "command", "c", nil, "send a command and exit (repeatable)")
}

// runBatch sends each line in order and stops at the first error reply.
func runBatch(ctx context.Context, c *ipc.Client, w io.Writer, lines []string) error {
	for _, line := range lines {
		reply, err := c.Send(ctx, line)
		if reply != "" {
			fmt.Fprintln(w, reply)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func runInteractive(ctx context.Context, c *ipc.Client) error {
	items := make([]readline.PrefixCompleterInterface, len(verbs))
	for i, v := range verbs {
		items[i] = readline.PcItem(v)
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:       "tilawah> ",
		AutoComplete: readline.NewPrefixCompleter(items...),
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Fprintf(rl.Stdout(), "\n%s V.%d.%d\n", app_name, spec.VersionMajor, spec.VersionMinor)
	fmt.Fprintf(rl.Stdout(), "%s %s\n", developer_title, developer_subtitle)
	fmt.Fprintln(rl.Stdout(), "Type a command, press Enter")
	fmt.Fprintln(rl.Stdout(), `Type "QUIT" to exit`)
	fmt.Fprintln(rl.Stdout())

	go func() {
		var last string
		for snap := range c.Events() {
			if line := describe(snap); line != last {
				fmt.Fprintln(rl.Stdout(), "EVENT:", line)
				last = line
			}
		}
	}()

	for {
		line, err := rl.Readline()
		if err != nil {
			// EOF or interrupt
			fmt.Fprintln(rl.Stdout(), "Bye.")
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "QUIT") {
			fmt.Fprintln(rl.Stdout(), "Bye.")
			return nil
		}
		reply, err := c.Send(ctx, line)
		if errors.Is(err, ipc.ErrClosed) {
			fmt.Fprintln(rl.Stdout(), "SOCKET CLOSED")
			return err
		}
		fmt.Fprintln(rl.Stdout(), "RECV:", reply)
	}
}

// describe condenses a snapshot into one line for the event feed.
func describe(s engine.Snapshot) string {
	if s.Summary == nil {
		if s.Loading != 0 {
			return fmt.Sprintf("loading chapter %d", s.Loading)
		}
		return "no chapter"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d. %s %s", s.Summary.Number, s.Summary.EnglishName, s.Mode)
	if s.Paused {
		sb.WriteString(" paused")
	}
	if s.Verse != nil {
		fmt.Fprintf(&sb, " verse %d", s.Verse.NumberInSurah)
	}
	if s.Error != "" {
		sb.WriteString(" error: " + s.Error)
	}
	return sb.String()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
