// Package tui is a terminal front end for a reader session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/japaniel/readerer/pkg/readerer"
	"github.com/japaniel/readerer/pkg/session"
	"github.com/japaniel/readerer/pkg/vocab"
)

// chrome is the number of lines used by the header and footer.
const chrome = 3

type lookupMsg struct {
	sel session.Selection
	err error
}

type exportMsg struct {
	path string
	err  error
}

// Model is the bubbletea model of the reader.
type Model struct {
	ctx  context.Context
	sess *session.Session
	doc  *session.Document

	words  []int
	cursor int

	viewport viewport.Model
	spinner  spinner.Model

	loading   bool
	selection *session.Selection
	showVocab bool
	vocabSel  int
	status    string
	err       error

	exportDir string
	width     int
	height    int
}

// New returns a model over the document currently loaded in sess.
// Exports are written to exportDir.
func New(ctx context.Context, sess *session.Session, exportDir string) (Model, error) {
	doc, err := sess.Document()
	if err != nil {
		return Model{}, err
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:       ctx,
		sess:      sess,
		doc:       doc,
		words:     clickable(doc.Segments),
		viewport:  viewport.New(80, 24-chrome),
		spinner:   sp,
		exportDir: exportDir,
		width:     80,
		height:    24,
	}
	m.refresh()
	return m, nil
}

// Run shows the reader until the user quits or ctx is done.
func Run(ctx context.Context, sess *session.Session, exportDir string) error {
	m, err := New(ctx, sess, exportDir)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chrome-m.panelHeight(), 1)
		m.refresh()
		return m, nil

	case lookupMsg:
		if errors.Is(msg.err, session.ErrSuperseded) {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.selection = &msg.sel
		m.status = ""
		m.resize()
		return m, nil

	case exportMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.status = "exported " + msg.path
		}
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "esc":
		if m.showVocab {
			m.showVocab = false
		} else {
			m.selection = nil
		}
		m.resize()
		return m, nil

	case "v":
		m.showVocab = !m.showVocab
		m.vocabSel = 0
		m.resize()
		return m, nil

	case "e":
		return m, m.export()
	}

	if m.showVocab {
		return m.handleVocabKey(msg)
	}

	switch msg.String() {
	case "right", "l", "tab":
		m.move(1)
	case "left", "h", "shift+tab":
		m.move(-1)
	case "down", "j":
		m.viewport.ScrollDown(1)
	case "up", "k":
		m.viewport.ScrollUp(1)
	case "enter":
		if len(m.words) == 0 {
			return m, nil
		}
		m.loading = true
		m.selection = nil
		return m, tea.Batch(m.spinner.Tick, m.lookup())
	case "a":
		m.confirm()
		m.refresh()
	}
	return m, nil
}

func (m Model) handleVocabKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	entries := m.sess.Vocabulary()
	switch msg.String() {
	case "down", "j":
		if m.vocabSel < len(entries)-1 {
			m.vocabSel++
		}
	case "up", "k":
		if m.vocabSel > 0 {
			m.vocabSel--
		}
	case "d", "delete", "backspace":
		if m.vocabSel < len(entries) {
			word := entries[m.vocabSel].Word
			if m.sess.Remove(word) {
				m.status = "removed " + word
			}
			if m.vocabSel > 0 && m.vocabSel >= len(entries)-1 {
				m.vocabSel--
			}
			m.refresh()
		}
	}
	m.resize()
	return m, nil
}

func (m *Model) move(delta int) {
	if len(m.words) == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.words)-1)
	m.refresh()
}

func (m Model) current() (readerer.Segment, bool) {
	if len(m.words) == 0 {
		return readerer.Segment{}, false
	}
	return m.doc.Segments[m.words[m.cursor]], true
}

func (m Model) lookup() tea.Cmd {
	seg, _ := m.current()
	ctx, sess := m.ctx, m.sess
	return func() tea.Msg {
		sel, err := sess.LookupAt(ctx, seg.Start)
		return lookupMsg{sel: sel, err: err}
	}
}

func (m *Model) confirm() {
	if m.selection == nil {
		m.status = "press enter to look up a word first"
		return
	}
	entry, added, err := m.sess.Confirm(*m.selection)
	switch {
	case err != nil:
		m.err = err
	case added:
		m.status = "saved " + entry.Word
	default:
		m.status = entry.Word + " is already saved"
	}
}

func (m Model) export() tea.Cmd {
	sess, dir := m.sess, m.exportDir
	return func() tea.Msg {
		file, ok := sess.ExportVocabularyCSV()
		if !ok {
			return exportMsg{err: errors.New("vocabulary is empty")}
		}
		path := filepath.Join(dir, file.Name)
		if err := os.WriteFile(path, file.Body, 0o644); err != nil {
			return exportMsg{err: fmt.Errorf("write %s: %w", path, err)}
		}
		return exportMsg{path: path}
	}
}

func (m Model) panelHeight() int {
	if m.showVocab {
		return min(m.sess.VocabularyCount(), 8) + 3
	}
	if m.selection != nil || m.loading {
		return 6
	}
	return 0
}

func (m *Model) resize() {
	m.viewport.Height = max(m.height-chrome-m.panelHeight(), 1)
	m.refresh()
}

// refresh re-renders the text and keeps the cursor word on screen.
func (m *Model) refresh() {
	cursorSeg := -1
	if len(m.words) > 0 {
		cursorSeg = m.words[m.cursor]
	}
	lines, line := layout(m.doc.Segments, m.viewport.Width, cursorSeg, m.renderSegment)
	m.viewport.SetContent(strings.Join(lines, "\n"))

	if line < 0 {
		return
	}
	if line < m.viewport.YOffset {
		m.viewport.SetYOffset(line)
	} else if line >= m.viewport.YOffset+m.viewport.Height {
		m.viewport.SetYOffset(line - m.viewport.Height + 1)
	}
}

func (m Model) renderSegment(i int, seg readerer.Segment) string {
	if len(m.words) > 0 && i == m.words[m.cursor] {
		return cursorStyle.Render(seg.Text)
	}
	if m.sess.IsSaved(seg.CleanWord()) {
		return savedStyle.Render(seg.Text)
	}
	return seg.Text
}

func (m Model) View() string {
	var sb strings.Builder

	title := m.doc.Title
	if title == "" {
		title = "Untitled"
	}
	header := titleStyle.Render(title) + statusStyle.Render(fmt.Sprintf("%s · %s", m.doc.Format, m.doc.Language))
	if n := m.sess.VocabularyCount(); n > 0 {
		header += " " + badgeStyle.Render(fmt.Sprintf("%d saved", n))
	}
	sb.WriteString(header)
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")

	if panel := m.panel(); panel != "" {
		sb.WriteString(panel)
		sb.WriteString("\n")
	}

	switch {
	case m.err != nil:
		sb.WriteString(errorStyle.Render(m.err.Error()))
	case m.status != "":
		sb.WriteString(statusStyle.Render(m.status))
	default:
		sb.WriteString(m.controls())
	}
	return sb.String()
}

func (m Model) controls() string {
	if m.showVocab {
		return controlsStyle.Render("↑/↓: select  d: delete  e: export  v/esc: back  q: quit")
	}
	return controlsStyle.Render("←/→: word  ↑/↓: scroll  enter: define  a: save  v: vocabulary  e: export  q: quit")
}

func (m Model) panel() string {
	width := max(m.width-4, 10)
	switch {
	case m.showVocab:
		return panelStyle.Width(width).Render(m.vocabView())
	case m.loading:
		seg, _ := m.current()
		return panelStyle.Width(width).Render(m.spinner.View() + " Looking up " + wordStyle.Render(seg.CleanWord()) + "...")
	case m.selection != nil:
		sel := m.selection
		var b strings.Builder
		b.WriteString(wordStyle.Render(sel.Word))
		if sel.Saved {
			b.WriteString(" " + savedStyle.Render("saved"))
		}
		b.WriteString("\n" + sel.Definition)
		if sel.Sentence != "" {
			b.WriteString("\n" + sentenceStyle.Render(vocab.CreateCloze(sel.Sentence, sel.Word)))
		}
		return panelStyle.Width(width).Render(b.String())
	}
	return ""
}

func (m Model) vocabView() string {
	entries := m.sess.Vocabulary()
	if len(entries) == 0 {
		return "No saved words yet."
	}
	var b strings.Builder
	b.WriteString(wordStyle.Render(fmt.Sprintf("Vocabulary (%d)", len(entries))))
	start := 0
	if m.vocabSel >= 8 {
		start = m.vocabSel - 7
	}
	for i := start; i < len(entries) && i < start+8; i++ {
		e := entries[i]
		line := fmt.Sprintf("%s  %s", e.Word, truncate(e.Definition, 60))
		if i == m.vocabSel {
			line = cursorStyle.Render(line)
		}
		b.WriteString("\n" + line)
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
