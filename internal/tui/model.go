package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tilawah/internal/engine"
	"tilawah/internal/quran"
)

// Player is the part of the engine the terminal UI drives.
type Player interface {
	Open(ctx context.Context, number int) error
	Back(ctx context.Context) error
	PlayChapter(ctx context.Context) error
	PlayVerse(ctx context.Context, n int) error
	TogglePause(ctx context.Context) error
	Stop(ctx context.Context) error
	SetTranslation(ctx context.Context, edition string) error
	SetReciter(ctx context.Context, edition string) error
	ListChapters(ctx context.Context, term string) ([]quran.ChapterSummary, error)
	Chapter() *quran.Chapter
	Subscribe(ctx context.Context) <-chan engine.Snapshot
}

type page int

const (
	pageList page = iota
	pageDetail
)

type chaptersMsg struct {
	list []quran.ChapterSummary
	err  error
}

type snapshotMsg engine.Snapshot

type streamEndMsg struct{}

type openedMsg struct {
	number int
	err    error
}

type resultMsg struct {
	action string
	err    error
}

// Model is the root bubbletea model: a searchable chapter list and a
// chapter detail page with the verse player.
type Model struct {
	ctx    context.Context
	player Player
	snaps  <-chan engine.Snapshot
	styles Styles
	copy   func(string) error

	page   page
	width  int
	height int

	search   textinput.Model
	chapters []quran.ChapterSummary
	filtered []quran.ChapterSummary
	listPos  int

	chapter  *quran.Chapter
	opening  int
	cursor   int
	lines    []int // first viewport line of each verse
	viewport viewport.Model
	progress progress.Model
	snap     engine.Snapshot

	status string
	err    string
}

// New builds the model. The snapshot subscription lives as long as ctx.
func New(ctx context.Context, p Player) Model {
	ti := textinput.New()
	ti.Placeholder = "search chapters"
	ti.Prompt = "/ "
	ti.CharLimit = 64
	ti.Focus()

	m := Model{
		ctx:      ctx,
		player:   p,
		snaps:    p.Subscribe(ctx),
		styles:   DefaultStyles(),
		copy:     clipboard.WriteAll,
		search:   ti,
		viewport: viewport.New(80, 20),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		width:    80,
		height:   24,
	}
	if ch := p.Chapter(); ch != nil {
		m.page = pageDetail
		m.chapter = ch
		m.search.Blur()
		m.render()
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadChapters(), m.waitSnapshot(), textinput.Blink)
}

func (m Model) loadChapters() tea.Cmd {
	return func() tea.Msg {
		list, err := m.player.ListChapters(m.ctx, "")
		return chaptersMsg{list: list, err: err}
	}
}

func (m Model) waitSnapshot() tea.Cmd {
	snaps := m.snaps
	return func() tea.Msg {
		s, ok := <-snaps
		if !ok {
			return streamEndMsg{}
		}
		return snapshotMsg(s)
	}
}

// run executes a blocking player call off the update loop.
func (m Model) run(action string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return resultMsg{action: action, err: fn(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)
		return m, nil

	case chaptersMsg:
		if msg.err != nil {
			m.err = msg.err.Error()
			return m, nil
		}
		m.chapters = msg.list
		m.applyFilter()
		return m, nil

	case snapshotMsg:
		m.applySnapshot(engine.Snapshot(msg))
		return m, m.waitSnapshot()

	case streamEndMsg:
		return m, tea.Quit

	case openedMsg:
		return m.opened(msg)

	case resultMsg:
		if msg.err != nil {
			m.err = fmt.Sprintf("%s: %v", msg.action, msg.err)
		}
		return m, nil

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.page == pageList {
			return m.updateList(msg)
		}
		return m.updateDetail(msg)
	}

	if m.page == pageList {
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyUp:
		if m.listPos > 0 {
			m.listPos--
		}
		return m, nil
	case tea.KeyDown:
		if m.listPos < len(m.filtered)-1 {
			m.listPos++
		}
		return m, nil
	case tea.KeyEsc:
		m.search.SetValue("")
		m.applyFilter()
		return m, nil
	case tea.KeyEnter:
		if len(m.filtered) == 0 {
			return m, nil
		}
		return m.open(m.filtered[m.listPos].Number)
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m Model) open(number int) (tea.Model, tea.Cmd) {
	m.page = pageDetail
	m.opening = number
	m.chapter = nil
	m.cursor = 0
	m.err = ""
	m.status = ""
	m.search.Blur()
	m.render()

	ctx, p := m.ctx, m.player
	return m, func() tea.Msg {
		return openedMsg{number: number, err: p.Open(ctx, number)}
	}
}

func (m Model) opened(msg openedMsg) (tea.Model, tea.Cmd) {
	if msg.number != m.opening {
		return m, nil
	}
	m.opening = 0
	ch := m.player.Chapter()
	if ch == nil || ch.Number != msg.number {
		if m.page == pageDetail {
			m.page = pageList
			m.search.Focus()
		}
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.err = msg.err.Error()
		}
		return m, nil
	}
	m.chapter = ch
	if msg.err != nil {
		m.err = msg.err.Error()
	}
	m.render()
	return m, nil
}

func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.player
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc":
		m.page = pageList
		m.chapter = nil
		m.opening = 0
		m.err = ""
		m.search.Focus()
		return m, m.run("back", p.Back)
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.render()
		}
		return m, nil
	case "down", "j":
		if m.cursor < m.chapter.Len()-1 {
			m.cursor++
			m.render()
		}
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.chapter == nil {
		return m, nil
	}
	m.err = ""
	switch msg.String() {
	case " ":
		return m, m.run("toggle", p.TogglePause)
	case "p":
		return m, m.run("play chapter", p.PlayChapter)
	case "enter":
		n := m.cursor + 1
		return m, m.run("play verse", func(ctx context.Context) error { return p.PlayVerse(ctx, n) })
	case "s":
		return m, m.run("stop", p.Stop)
	case "t":
		next := quran.NextEdition(quran.TranslationEditions, m.snap.Editions.Translation)
		m.status = "Translation: " + next.Label
		return m, m.run("translation", func(ctx context.Context) error { return p.SetTranslation(ctx, next.Code) })
	case "r":
		next := quran.NextEdition(quran.AudioEditions, m.snap.Editions.Audio)
		m.status = "Reciter: " + next.Label
		return m, m.run("reciter", func(ctx context.Context) error { return p.SetReciter(ctx, next.Code) })
	case "c":
		v, ok := m.chapter.VerseByNumber(m.cursor + 1)
		if !ok {
			return m, nil
		}
		if err := m.copy(verseClip(m.chapter, v)); err != nil {
			m.err = "copy: " + err.Error()
		} else {
			m.status = fmt.Sprintf("Copied %d:%d", m.chapter.Number, v.NumberInSurah)
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) applySnapshot(s engine.Snapshot) {
	prev := m.snap
	m.snap = s

	if m.page == pageDetail && m.chapter != nil {
		if ch := m.player.Chapter(); ch != nil && ch != m.chapter && ch.Number == m.chapter.Number {
			m.chapter = ch
		}
	}
	if s.Verse != nil && (prev.Verse == nil || prev.Verse.ID != s.Verse.ID) && m.chapter != nil {
		if i := m.chapter.IndexOf(*s.Verse); i >= 0 {
			m.cursor = i
		}
	}
	if s.Error != "" && s.Error != prev.Error {
		m.err = s.Error
	}
	m.render()
}

func (m *Model) applyFilter() {
	m.filtered = quran.Filter(m.chapters, m.search.Value())
	if m.listPos >= len(m.filtered) {
		m.listPos = max(0, len(m.filtered)-1)
	}
}

func (m *Model) setSize(w, h int) {
	m.width, m.height = w, h
	m.viewport.Width = w
	m.viewport.Height = max(1, h-6) // header, progress, status, help
	m.progress.Width = max(10, w-24)
	m.search.Width = max(10, w-4)
	m.render()
}

// render rebuilds the verse viewport and keeps the cursor verse in view.
func (m *Model) render() {
	if m.chapter == nil {
		m.lines = nil
		m.viewport.SetContent("")
		return
	}

	var active int
	if m.snap.Verse != nil && m.snap.Summary != nil && m.snap.Summary.Number == m.chapter.Number {
		active = m.snap.Verse.ID
	}

	// wrap width, less the cursor marker
	width := max(10, m.viewport.Width-2)

	var sb strings.Builder
	m.lines = make([]int, 0, len(m.chapter.Verses))
	line, cursorHeight := 0, 1
	for i, v := range m.chapter.Verses {
		m.lines = append(m.lines, line)

		marker := "  "
		if i == m.cursor {
			marker = m.styles.Cursor.Render("▸ ")
		}
		style := m.styles.Verse
		if v.ID == active {
			style = m.styles.ActiveVerse
		}
		text := lipgloss.JoinHorizontal(lipgloss.Top, marker,
			style.Width(width).Render(fmt.Sprintf("%d. %s", v.NumberInSurah, v.Text)))
		var trans string
		if v.TranslationPending() {
			trans = m.styles.Pending.Width(width).Render("Loading translation...")
		} else {
			trans = m.styles.Translation.Width(width).Render(v.Translation)
		}
		sb.WriteString(text + "\n" + trans + "\n\n")

		h := lipgloss.Height(text) + lipgloss.Height(trans)
		if i == m.cursor {
			cursorHeight = h
		}
		line += h + 1
	}
	m.viewport.SetContent(sb.String())

	if m.cursor < len(m.lines) {
		top := m.lines[m.cursor]
		if top < m.viewport.YOffset || top+cursorHeight > m.viewport.YOffset+m.viewport.Height {
			m.viewport.SetYOffset(top)
		}
	}
}

func (m Model) View() string {
	if m.page == pageList {
		return m.listView()
	}
	return m.detailView()
}

func (m Model) listView() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Tilawah") + "\n")
	sb.WriteString(m.search.View() + "\n\n")

	rows := max(1, m.height-6)
	start := 0
	if m.listPos >= rows {
		start = m.listPos - rows + 1
	}
	switch {
	case m.chapters == nil && m.err == "":
		sb.WriteString(m.styles.Label.Render("Loading chapters...") + "\n")
	case len(m.filtered) == 0 && m.chapters != nil:
		sb.WriteString(m.styles.Label.Render("No chapter matches") + "\n")
	}
	for i := start; i < len(m.filtered) && i < start+rows; i++ {
		c := m.filtered[i]
		row := fmt.Sprintf("%3d. %-18s %-24s %3d verses", c.Number, c.EnglishName, c.EnglishNameTranslation, c.NumberOfAyahs)
		if i == m.listPos {
			sb.WriteString(m.styles.Selected.Render("> "+row) + "\n")
		} else {
			sb.WriteString(m.styles.Item.Render(row) + "\n")
		}
	}
	if m.err != "" {
		sb.WriteString("\n" + m.styles.Error.Render(m.err) + "\n")
	}
	sb.WriteString("\n" + m.styles.Help.Render("↑/↓ move • enter open • esc clear • ctrl+c quit"))
	return sb.String()
}

func (m Model) detailView() string {
	var sb strings.Builder
	if m.chapter == nil {
		sb.WriteString(m.styles.Title.Render(fmt.Sprintf("Chapter %d", m.opening)) + "\n")
		if m.err != "" {
			sb.WriteString(m.styles.Error.Render(m.err) + "\n")
		} else {
			sb.WriteString(m.styles.Label.Render("Loading chapter...") + "\n")
		}
		sb.WriteString(m.styles.Help.Render("esc back"))
		return sb.String()
	}

	sb.WriteString(m.styles.Title.Render(fmt.Sprintf("%d. %s  %s", m.chapter.Number, m.chapter.EnglishName, m.chapter.Name)))
	sb.WriteString("  " + m.styles.Label.Render(fmt.Sprintf("Reciter: %s • Language: %s", m.snap.Reciter, m.snap.Language)) + "\n")
	sb.WriteString(m.viewport.View() + "\n")

	state := "Stopped"
	switch {
	case m.snap.Paused:
		state = "Paused"
	case m.snap.Playing && m.snap.WholeChapter:
		state = "Playing chapter"
	case m.snap.Playing:
		state = "Playing verse"
	}
	if m.snap.Verse != nil {
		state += fmt.Sprintf(" %d:%d", m.chapter.Number, m.snap.Verse.NumberInSurah)
	}
	sb.WriteString(m.progress.ViewAs(m.snap.Progress/100) + " " + m.styles.Label.Render(state) + "\n")

	switch {
	case m.err != "":
		sb.WriteString(m.styles.Error.Render(m.err) + "\n")
	case m.status != "":
		sb.WriteString(m.styles.Label.Render(m.status) + "\n")
	default:
		sb.WriteString("\n")
	}
	sb.WriteString(m.styles.Help.Render("space pause • p play chapter • enter play verse • s stop • t translation • r reciter • c copy • esc back • q quit"))
	return sb.String()
}

func verseClip(ch *quran.Chapter, v quran.Verse) string {
	var sb strings.Builder
	sb.WriteString(v.Text)
	if !v.TranslationPending() {
		sb.WriteString("\n" + v.Translation)
	}
	fmt.Fprintf(&sb, "\n(%s %d:%d)", ch.EnglishName, ch.Number, v.NumberInSurah)
	return sb.String()
}
