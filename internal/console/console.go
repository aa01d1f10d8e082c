// Package console is a terminal client that plays a Game in-process.
package console

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cory-johannsen/destiny/internal/game/event"
	"github.com/cory-johannsen/destiny/internal/gameserver"
)

// EventBuffer is the console's bus subscription buffer.
const EventBuffer = 128

const intro = `Destiny World. Type "start [difficulty] [name]" to begin, "help" for commands.`

var helpLines = []string{
	"start [easy|normal|hard|nightmare] [name]   begin a night",
	"engage                                      face the killer",
	"hide [spot]  attack [weapon]  escape [route] (no argument lists options)",
	"psychology [tactic] [words]                 analyse or manipulate the killer",
	"respond <hide|attack|flee|negotiate|join|psychology> [words]",
	"say <words>  choose <id> [words]  talk <npc>",
	"travel <location>  save [slot]  load [slot]",
	"pause  resume  status  report  reset  end  quit",
}

type line struct {
	text string
	kind lineKind
}

// eventMsg carries one bus event into Update.
type eventMsg event.Event

// Model is the Bubble Tea model of the console.
type Model struct {
	game   *gameserver.Game
	events <-chan event.Event

	viewport viewport.Model
	input    textinput.Model
	lines    []line

	width    int
	height   int
	ready    bool
	quitting bool
}

// New creates a console model reading game events from events.
//
// Precondition: game must be non-nil; events may be nil to ignore the bus.
func New(game *gameserver.Game, events <-chan event.Event) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 256
	ti.PromptStyle = styleInputPrompt
	return Model{
		game:   game,
		events: events,
		input:  ti,
		lines:  []line{{text: intro}, {}},
	}
}

// Run plays game in the terminal until the player quits.
func Run(game *gameserver.Game) error {
	events, cancel := game.Bus().Channel(EventBuffer)
	defer cancel()
	_, err := tea.NewProgram(New(game, events), tea.WithAltScreen()).Run()
	return err
}

// Init starts the cursor blink and the event pump.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForEvent())
}

func (m Model) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

// Update handles key presses, resizes and bus events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		vpHeight := max(1, m.height-2)
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.KeyMap = viewportKeyMap()
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			return m.submit()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case eventMsg:
		for _, text := range RenderEvent(event.Event(msg)) {
			m.lines = append(m.lines, line{text: text, kind: kindEvent})
		}
		m.refresh()
		return m, m.waitForEvent()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit runs the typed line.
func (m Model) submit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")
	if input == "" {
		return m, nil
	}
	m.lines = append(m.lines, line{text: "> " + input, kind: kindInput})

	switch strings.ToLower(input) {
	case "quit", "exit":
		m.quitting = true
		return m, tea.Quit
	case "help":
		for _, h := range helpLines {
			m.lines = append(m.lines, line{text: h})
		}
		m.lines = append(m.lines, line{})
		m.refresh()
		return m, nil
	}

	a, err := ParseCommand(input)
	if err == nil {
		var out gameserver.Outcome
		out, err = m.game.Act(context.Background(), a)
		if err == nil {
			for _, text := range Render(out) {
				m.lines = append(m.lines, line{text: text})
			}
		}
	}
	if err != nil {
		m.lines = append(m.lines, line{text: err.Error(), kind: kindError})
	}
	m.lines = append(m.lines, line{})
	m.refresh()
	return m, nil
}

// Transcript returns the unstyled output so far.
func (m Model) Transcript() []string {
	out := make([]string, len(m.lines))
	for i, l := range m.lines {
		out[i] = l.text
	}
	return out
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	width := max(10, m.width)
	styled := make([]string, 0, len(m.lines))
	for _, l := range m.lines {
		if l.text == "" {
			styled = append(styled, "")
			continue
		}
		styled = append(styled, render(lipgloss.NewStyle().Width(width).Render(l.text), l.kind))
	}
	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

// View renders the transcript, the status bar and the prompt.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}
	return m.viewport.View() + "\n" + m.statusBar() + "\n" + m.input.View()
}

func (m Model) statusBar() string {
	s := m.game.Status()
	left := fmt.Sprintf(" %s | %s | HP %d | Stress %d", s.Game.Phase, s.Game.Player.Location, s.Game.Player.Health, s.Game.Player.Stress)
	right := fmt.Sprintf("Wanted %d ", s.Game.WantedLevel)
	if s.Killer.CountdownActive {
		right = fmt.Sprintf("Killer %s | %s ", s.Killer.State, countdown(s.Killer.CountdownSeconds))
	}
	gap := max(1, m.width-lipgloss.Width(left)-lipgloss.Width(right))
	return styleStatusBar.Render(left + strings.Repeat(" ", gap) + right)
}

// viewportKeyMap leaves only paging keys to the viewport.
func viewportKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Up:           key.NewBinding(key.WithDisabled()),
		Down:         key.NewBinding(key.WithDisabled()),
	}
}
