package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mcp-tool-shop/code-covered/internal/gaps"
)

// keyMap defines keybindings for the interactive TUI.
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Quit     key.Binding
	Help     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Quit, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Quit, k.Help},
	}
}

var defaultKeyMap = keyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("^/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("v/j", "down")),
	PageUp:   key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
	PageDown: key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

// Styles for the TUI.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			MarginBottom(1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	tuiHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	tuiBorderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("63"))

	tuiCriticalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	tuiHighStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	tuiMediumStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

// gapsModel is the Bubble Tea model for browsing gap suggestions.
type gapsModel struct {
	result   *gaps.Result
	viewport viewport.Model
	help     help.Model
	keys     keyMap
	ready    bool
	content  string
}

func newGapsModel(res *gaps.Result) gapsModel {
	h := help.New()
	content := renderGapsContent(res)
	return gapsModel{
		result:  res,
		help:    h,
		keys:    defaultKeyMap,
		content: content,
	}
}

func renderGapsContent(res *gaps.Result) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(
		fmt.Sprintf("Coverage Gaps: %.1f%% covered, %d suggestion(s) in %d file(s)",
			res.Stats.CoveragePercent, len(res.Suggestions), res.Stats.FilesWithGaps)))
	sb.WriteString("\n\n")

	for _, path := range suggestionFiles(res.Suggestions) {
		sb.WriteString(tuiHeaderStyle.Render(fmt.Sprintf("=== %s ===", path)))
		sb.WriteString("\n")

		rows := make([][]string, 0)
		var templates []gaps.Suggestion
		for _, s := range res.Suggestions {
			if s.SourceFile != path {
				continue
			}
			desc := s.Description
			if len(desc) > 40 {
				desc = desc[:37] + "..."
			}
			rows = append(rows, []string{
				string(s.Priority),
				fmt.Sprintf("%d-%d", s.StartLine, s.EndLine),
				desc,
			})
			templates = append(templates, s)
		}

		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(tuiBorderStyle).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return tuiHeaderStyle
				}
				if col == 0 && row >= 0 && row < len(rows) {
					switch gaps.Tier(rows[row][0]) {
					case gaps.TierCritical:
						return tuiCriticalStyle
					case gaps.TierHigh:
						return tuiHighStyle
					case gaps.TierMedium:
						return tuiMediumStyle
					}
				}
				return lipgloss.NewStyle()
			}).
			Headers("PRIORITY", "LINES", "DESCRIPTION").
			Rows(rows...)

		sb.WriteString(t.String())
		sb.WriteString("\n\n")

		for _, s := range templates {
			sb.WriteString(statusStyle.Render(fmt.Sprintf("--- %s (%s) ---", s.TestName, s.TestFile)))
			sb.WriteString("\n")
			if len(s.SetupHints) > 0 {
				sb.WriteString(statusStyle.Render("Hints: " + strings.Join(s.SetupHints, "; ")))
				sb.WriteString("\n")
			}
			sb.WriteString(s.CodeTemplate)
			sb.WriteString("\n")
		}
	}

	if len(res.Warnings) > 0 {
		sb.WriteString(tuiHeaderStyle.Render("=== Warnings ==="))
		sb.WriteString("\n")
		for _, w := range res.Warnings {
			sb.WriteString(statusStyle.Render("  " + w))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func suggestionFiles(suggestions []gaps.Suggestion) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range suggestions {
		if !seen[s.SourceFile] {
			seen[s.SourceFile] = true
			out = append(out, s.SourceFile)
		}
	}
	return out
}

func (m gapsModel) Init() tea.Cmd {
	return nil
}

func (m gapsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		headerHeight := 0
		footerHeight := 2
		verticalMargin := headerHeight + footerHeight

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-verticalMargin)
			m.viewport.SetContent(m.content)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - verticalMargin
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m gapsModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	footer := statusStyle.Render(
		fmt.Sprintf(" %3.f%% ", m.viewport.ScrollPercent()*100)) +
		" " + m.help.View(m.keys)

	return m.viewport.View() + "\n" + footer
}

// runInteractiveGaps launches the Bubble Tea TUI for browsing gap
// suggestions and their templates.
func runInteractiveGaps(res *gaps.Result) error {
	model := newGapsModel(res)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
