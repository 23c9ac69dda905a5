package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"tilawah/internal/engine"
	"tilawah/internal/quran"
	"tilawah/internal/tui"
	"tilawah/pkg/spec"
)

// shellEngine is what the shell drives; *engine.Engine satisfies it.
type shellEngine interface {
	tui.Player
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Snapshot() engine.Snapshot
}

var copyText = clipboard.WriteAll

var errQuit = errors.New("quit")

const shellHelp = `commands:
  list [term]        list chapters
  open <n>           open chapter n
  play               play the open chapter from its first verse
  verse <n>          play verse n alone
  toggle | pause | resume | stop
  back               close the chapter
  translation <ed>   switch translation edition
  reciter <ed>       switch recitation edition
  copy [n]           copy verse n (default: the active verse)
  status             print the current state
  quit`

func shellCompleter() *readline.PrefixCompleter {
	var translations, reciters []readline.PrefixCompleterInterface
	for _, e := range quran.TranslationEditions {
		translations = append(translations, readline.PcItem(e.Code))
	}
	for _, e := range quran.AudioEditions {
		reciters = append(reciters, readline.PcItem(e.Code))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("list"),
		readline.PcItem("open"),
		readline.PcItem("play"),
		readline.PcItem("verse"),
		readline.PcItem("toggle"),
		readline.PcItem("pause"),
		readline.PcItem("resume"),
		readline.PcItem("stop"),
		readline.PcItem("back"),
		readline.PcItem("translation", translations...),
		readline.PcItem("reciter", reciters...),
		readline.PcItem("copy"),
		readline.PcItem("status"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive prompt for browsing and playing chapters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, stop, err := startEngine(ctx)
		if err != nil {
			return err
		}
		defer stop()

		rl, err := readline.NewEx(&readline.Config{
			Prompt:          "tilawah> ",
			AutoComplete:    shellCompleter(),
			InterruptPrompt: "^C",
			EOFPrompt:       "quit",
		})
		if err != nil {
			return err
		}
		defer rl.Close()

		fmt.Fprintf(rl.Stdout(), "\n%s V.%d.%d\n", app_name, spec.VersionMajor, spec.VersionMinor)
		fmt.Fprintln(rl.Stdout(), `Type "help" for commands`)

		// announce verses as playback moves on
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			var last int
			var lastErr string
			for s := range eng.Subscribe(watchCtx) {
				id := 0
				if s.Verse != nil {
					id = s.Verse.ID
				}
				if id != 0 && id != last {
					fmt.Fprintln(rl.Stdout(), verseLine(s))
				}
				last = id
				if s.Error != "" && s.Error != lastErr {
					fmt.Fprintln(rl.Stderr(), "error:", s.Error)
				}
				lastErr = s.Error
			}
		}()

		for {
			line, err := rl.Readline()
			if errors.Is(err, readline.ErrInterrupt) {
				_ = eng.Stop(ctx)
				continue
			}
			if err != nil {
				return nil
			}
			if err := shellExec(ctx, eng, rl.Stdout(), line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				fmt.Fprintln(rl.Stderr(), "error:", err)
			}
		}
	},
}

func verseArg(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%q: expected a positive number", arg)
	}
	return n, nil
}

// shellExec runs one shell line.
func shellExec(ctx context.Context, eng shellEngine, w io.Writer, line string) error {
	verb, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(verb) {
	case "":
		return nil
	case "help", "?":
		fmt.Fprintln(w, shellHelp)
		return nil
	case "quit", "exit":
		return errQuit
	case "list":
		list, err := eng.ListChapters(ctx, arg)
		if err != nil {
			return err
		}
		for _, c := range list {
			fmt.Fprintf(w, "%3d. %-18s %s (%d)\n", c.Number, c.EnglishName, c.EnglishNameTranslation, c.NumberOfAyahs)
		}
		if len(list) == 0 {
			fmt.Fprintln(w, "No chapter matches")
		}
		return nil
	case "open":
		n, err := verseArg(arg)
		if err != nil {
			return err
		}
		if err := eng.Open(ctx, n); err != nil && eng.Chapter() == nil {
			return err
		} else if err != nil {
			fmt.Fprintln(w, "warning:", err)
		}
		fmt.Fprintln(w, "opened", eng.Chapter())
		return nil
	case "play":
		return eng.PlayChapter(ctx)
	case "verse":
		n, err := verseArg(arg)
		if err != nil {
			return err
		}
		return eng.PlayVerse(ctx, n)
	case "toggle":
		return eng.TogglePause(ctx)
	case "pause":
		return eng.Pause(ctx)
	case "resume":
		return eng.Resume(ctx)
	case "stop":
		return eng.Stop(ctx)
	case "back":
		return eng.Back(ctx)
	case "translation":
		if arg == "" {
			return errors.New("translation: edition required")
		}
		return eng.SetTranslation(ctx, arg)
	case "reciter":
		if arg == "" {
			return errors.New("reciter: edition required")
		}
		return eng.SetReciter(ctx, arg)
	case "copy":
		return copyVerse(eng, w, arg)
	case "status":
		printStatus(w, eng.Snapshot())
		return nil
	}
	return fmt.Errorf("unknown command %q (try help)", verb)
}

func copyVerse(eng shellEngine, w io.Writer, arg string) error {
	ch := eng.Chapter()
	if ch == nil {
		return errors.New("copy: no chapter open")
	}
	var v quran.Verse
	if arg == "" {
		s := eng.Snapshot()
		if s.Verse == nil {
			return errors.New("copy: no active verse")
		}
		v = *s.Verse
	} else {
		n, err := verseArg(arg)
		if err != nil {
			return err
		}
		var ok bool
		if v, ok = ch.VerseByNumber(n); !ok {
			return fmt.Errorf("copy: chapter %d has no verse %d", ch.Number, n)
		}
	}
	text := v.Text
	if !v.TranslationPending() {
		text += "\n" + v.Translation
	}
	text += fmt.Sprintf("\n(%s %d:%d)", ch.EnglishName, ch.Number, v.NumberInSurah)
	if err := copyText(text); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	fmt.Fprintf(w, "copied %d:%d\n", ch.Number, v.NumberInSurah)
	return nil
}

func printStatus(w io.Writer, s engine.Snapshot) {
	if s.Summary == nil {
		fmt.Fprintln(w, "no chapter open")
	} else {
		fmt.Fprintf(w, "chapter:  %d. %s\n", s.Summary.Number, s.Summary.EnglishName)
	}
	state := s.Mode.String()
	if s.Paused {
		state += " (paused)"
	}
	fmt.Fprintf(w, "state:    %s %.0f%%\n", state, s.Progress)
	if s.Verse != nil {
		fmt.Fprintf(w, "verse:    %d\n", s.Verse.NumberInSurah)
	}
	fmt.Fprintf(w, "reciter:  %s\nlanguage: %s\n", s.Reciter, s.Language)
	if s.TranslationPending {
		fmt.Fprintln(w, "translation pending")
	}
	if s.Error != "" {
		fmt.Fprintf(w, "error:    %s\n", s.Error)
	}
}
