package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"tilawah/internal/quran"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list [term]",
	Short: "List chapters, optionally filtered by name or number",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, err := deps.Provider.ListChapters(cmd.Context())
		if err != nil {
			return err
		}
		chapters := quran.Filter(all, strings.Join(args, ""))
		if listJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(chapters)
		}
		return printChapters(cmd.OutOrStdout(), chapters)
	},
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON")
}

func printChapters(w io.Writer, chapters []quran.ChapterSummary) error {
	if len(chapters) == 0 {
		_, err := fmt.Fprintln(w, "No chapter matches")
		return err
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "Name", "Meaning", "Arabic", "Verses", "Revealed")
	for _, c := range chapters {
		t.Row(strconv.Itoa(c.Number), c.EnglishName, c.EnglishNameTranslation, c.Name,
			strconv.Itoa(c.NumberOfAyahs), c.RevelationType)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}
