package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tilawah/internal/alquran"
	"tilawah/internal/quran"
)

var (
	showFrom        int
	showTo          int
	showPlain       bool
	showTranslation string
	showWidth       int
)

var showCmd = &cobra.Command{
	Use:   "show <chapter>",
	Short: "Print a chapter's verses with their translation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("chapter %q: not a number", args[0])
		}
		ed := deps.Config.Editions
		if showTranslation != "" {
			ed.Translation = showTranslation
		}
		ch, err := deps.Provider.Chapter(cmd.Context(), n, ed)
		if err != nil && (ch == nil || !errors.Is(err, alquran.ErrTranslationUnavailable)) {
			return err
		}
		if err != nil {
			deps.Log.Warn("showing chapter without translation", zap.Int("chapter", n), zap.Error(err))
		}

		md, err := chapterMarkdown(ch, showFrom, showTo)
		if err != nil {
			return err
		}
		if showPlain {
			_, err = fmt.Fprint(cmd.OutOrStdout(), md)
			return err
		}
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(showWidth))
		if err != nil {
			return err
		}
		out, err := r.Render(md)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	},
}

func init() {
	showCmd.Flags().IntVar(&showFrom, "from", 1, "first verse")
	showCmd.Flags().IntVar(&showTo, "to", 0, "last verse (default: end of chapter)")
	showCmd.Flags().BoolVar(&showPlain, "plain", false, "print markdown without rendering")
	showCmd.Flags().StringVarP(&showTranslation, "translation", "t", "", "translation edition, e.g. fr.hamidullah")
	showCmd.Flags().IntVar(&showWidth, "width", 80, "wrap width")
}

// verseRange clamps [from, to] to the chapter; to <= 0 means the last verse.
func verseRange(ch *quran.Chapter, from, to int) (int, int, error) {
	if to <= 0 || to > ch.Len() {
		to = ch.Len()
	}
	if from < 1 {
		from = 1
	}
	if from > to {
		return 0, 0, fmt.Errorf("verse range %d-%d is outside chapter %d (1-%d)", from, to, ch.Number, ch.Len())
	}
	return from, to, nil
}

func chapterMarkdown(ch *quran.Chapter, from, to int) (string, error) {
	from, to, err := verseRange(ch, from, to)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %d. %s (%s)\n\n", ch.Number, ch.EnglishName, ch.Name)
	fmt.Fprintf(&sb, "*%s* · %s · %d verses · %s\n\n", ch.EnglishNameTranslation, ch.RevelationType,
		ch.Len(), quran.LanguageName(ch.TranslationEdition))
	for _, v := range ch.Verses[from-1 : to] {
		fmt.Fprintf(&sb, "**%d.** %s\n\n", v.NumberInSurah, v.Text)
		if v.TranslationPending() {
			sb.WriteString("> _translation unavailable_\n\n")
		} else {
			fmt.Fprintf(&sb, "> %s\n\n", v.Translation)
		}
	}
	return sb.String(), nil
}
