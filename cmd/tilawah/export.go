package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/faiface/beep"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tilawah/internal/alquran"
	"tilawah/internal/audio"
	"tilawah/pkg/audioengine"
)

var (
	exportOut  string
	exportFrom int
	exportTo   int
	exportGap  time.Duration
)

var exportCmd = &cobra.Command{
	Use:   "export <chapter>",
	Short: "Write a chapter's recitation to a single WAV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("chapter %q: not a number", args[0])
		}
		ch, err := deps.Provider.Chapter(ctx, n, deps.Config.Editions)
		if err != nil && (ch == nil || !errors.Is(err, alquran.ErrTranslationUnavailable)) {
			return err
		}
		from, to, err := verseRange(ch, exportFrom, exportTo)
		if err != nil {
			return err
		}
		urls := make([]string, 0, to-from+1)
		for _, v := range ch.Verses[from-1 : to] {
			urls = append(urls, v.Audio)
		}

		out := exportOut
		if out == "" {
			out = fmt.Sprintf("%03d-%s.wav", ch.Number, ch.EnglishName)
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}

		stdout := cmd.OutOrStdout()
		fmt.Fprintf(stdout, "\n[START] %s, verses %d-%d (%s)\n", ch, from, to, deps.Config.Editions.Audio)
		bar := NewProgress(stdout, "EXPORT", "verses", len(urls))
		res, err := audio.Export(ctx, f, urls, audio.ExportOptions{
			Rate:       beep.SampleRate(deps.Config.Audio.SampleRate),
			Volume:     deps.Config.Audio.Volume,
			Gap:        exportGap,
			HTTPClient: deps.HTTP,
			Progress:   func(done, _ int) { bar.Set(done) },
		})
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(out)
			return fmt.Errorf("export %s: %w", out, err)
		}

		sum, err := fingerprint(out)
		if err != nil {
			deps.Log.Warn("fingerprint", zap.String("file", out), zap.Error(err))
		}
		fmt.Fprintf(stdout, "[SUCCESS] %s\n", filepath.Clean(out))
		fmt.Fprintf(stdout, "  verses:   %d\n  duration: %s\n  peak:     %.1f dBFS\n  rms:      %.4f\n",
			res.Clips, res.Duration.Round(time.Millisecond), res.PeakDB, res.RMS)
		if sum != "" {
			fmt.Fprintf(stdout, "  blake3:   %s\n", sum)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "output file (default NNN-Name.wav)")
	exportCmd.Flags().IntVar(&exportFrom, "from", 1, "first verse")
	exportCmd.Flags().IntVar(&exportTo, "to", 0, "last verse (default: end of chapter)")
	exportCmd.Flags().DurationVar(&exportGap, "gap", 500*time.Millisecond, "silence between verses")
}

func fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return audioengine.Fingerprint(f)
}
