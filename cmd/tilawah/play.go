package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"tilawah/internal/alquran"
	"tilawah/internal/engine"
	"tilawah/internal/playback"
)

// startEngine opens the sound card and runs an engine until the returned
// stop function is called.
func startEngine(ctx context.Context) (*engine.Engine, func(), error) {
	out, err := deps.OpenOutput()
	if err != nil {
		return nil, nil, err
	}
	eng, spk := deps.NewEngine(out, true)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = eng.Run(ctx)
	}()
	stop := func() {
		cancel()
		<-done
		spk.Close()
	}
	return eng, stop, nil
}

// openChapter opens n, tolerating a missing translation.
func openChapter(ctx context.Context, eng *engine.Engine, w io.Writer, n int) error {
	err := eng.Open(ctx, n)
	if errors.Is(err, alquran.ErrTranslationUnavailable) {
		fmt.Fprintf(w, "warning: %v\n", err)
		return nil
	}
	return err
}

var playCmd = &cobra.Command{
	Use:   "play <chapter> [verse]",
	Short: "Play a whole chapter, or a single verse of it",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		nums := make([]int, len(args))
		for i, a := range args {
			n, err := strconv.Atoi(a)
			if err != nil {
				return fmt.Errorf("%q: not a number", a)
			}
			nums[i] = n
		}

		ctx := cmd.Context()
		eng, stop, err := startEngine(ctx)
		if err != nil {
			return err
		}
		defer stop()

		w := cmd.OutOrStdout()
		if err := openChapter(ctx, eng, w, nums[0]); err != nil {
			return err
		}
		snaps := eng.Subscribe(ctx)
		if len(nums) == 2 {
			err = eng.PlayVerse(ctx, nums[1])
		} else {
			err = eng.PlayChapter(ctx)
		}
		if err != nil {
			return err
		}
		return follow(ctx, eng, snaps, w)
	},
}

// follow prints each verse as it starts and returns once playback is back
// to idle. An interrupt stops playback.
func follow(ctx context.Context, eng *engine.Engine, snaps <-chan engine.Snapshot, w io.Writer) error {
	var last int
	started := false
	for {
		select {
		case <-ctx.Done():
			_ = eng.Stop(context.Background())
			fmt.Fprintln(w, "\nstopped")
			return nil
		case s, ok := <-snaps:
			if !ok {
				return nil
			}
			if s.Verse != nil && s.Verse.ID != last {
				last = s.Verse.ID
				started = true
				fmt.Fprintln(w, verseLine(s))
			}
			if s.Mode != playback.ModeIdle {
				started = true
				continue
			}
			if started {
				if s.Error != "" {
					return errors.New(s.Error)
				}
				return nil
			}
		}
	}
}

func verseLine(s engine.Snapshot) string {
	line := fmt.Sprintf("▶ %d:%d  %s", s.Chapter, s.Verse.NumberInSurah, s.Verse.Text)
	if !s.Verse.TranslationPending() {
		line += "\n    " + s.Verse.Translation
	}
	return line
}
