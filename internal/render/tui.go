// SPDX-License-Identifier: MIT
package render

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	applog "wavviz/internal/log"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	greenStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	redStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E0443E"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

var barChars = []rune(" ▁▂▃▄▅▆▇█")

type keyMap struct {
	Pause  key.Binding
	Escape key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Pause:  key.NewBinding(key.WithKeys(" ", "space")),
	Escape: key.NewBinding(key.WithKeys("esc")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c")),
}

type barsMsg BarsFrame
type waveMsg WaveFrame

// chrome is the number of terminal rows taken by title and help lines.
const chrome = 2

// TUI draws frames in the terminal with bubbletea and turns key presses into
// session events. It is both a Renderer and an Input.
type TUI struct {
	program *tea.Program
	events  chan Event

	started   atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	err       error
}

var (
	_ Renderer = (*TUI)(nil)
	_ Input    = (*TUI)(nil)
)

// NewTUI creates a terminal renderer titled title. Extra options are passed
// to the bubbletea program.
func NewTUI(title string, opts ...tea.ProgramOption) *TUI {
	t := &TUI{
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
	m := newTUIModel(title, t.emit)
	t.program = tea.NewProgram(m, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)
	return t
}

// Start runs the bubbletea program in the background. When the program
// exits for any reason an EventClose is emitted.
func (t *TUI) Start() {
	t.startOnce.Do(func() {
		t.started.Store(true)
		go func() {
			defer close(t.done)
			if _, err := t.program.Run(); err != nil {
				applog.Errorf("TUI: Program exited with error: %v", err)
				t.err = err
			}
			t.emit(EventClose)
		}()
	})
}

func (t *TUI) Events() <-chan Event { return t.events }

// emit never blocks; an event is dropped when the session is not reading.
func (t *TUI) emit(ev Event) {
	select {
	case t.events <- ev:
	default:
		applog.Debugf("TUI: Dropped %s event", ev)
	}
}

// DrawBars queues a copy of f for the next repaint. Frames drawn before
// Start are dropped.
func (t *TUI) DrawBars(f BarsFrame) error {
	if !t.started.Load() {
		return nil
	}
	t.program.Send(barsMsg(f.Clone()))
	return nil
}

// DrawWave queues a copy of f for the next repaint.
func (t *TUI) DrawWave(f WaveFrame) error {
	if !t.started.Load() {
		return nil
	}
	t.program.Send(waveMsg(f.Clone()))
	return nil
}

// Close quits the program and waits for the terminal to be restored.
func (t *TUI) Close() error {
	var err error
	t.closeOnce.Do(func() {
		if !t.started.Load() {
			return
		}
		t.program.Quit()
		select {
		case <-t.done:
			err = t.err
		case <-time.After(2 * time.Second):
			applog.Warnf("TUI: Timed out waiting for program to exit")
		}
	})
	return err
}

// tuiModel is the bubbletea model behind TUI. Frames arrive as messages,
// keys leave through emit.
type tuiModel struct {
	title         string
	emit          func(Event)
	width, height int

	wave    bool
	bars    BarsFrame
	waveF   WaveFrame
	springs springField
}

func newTUIModel(title string, emit func(Event)) tuiModel {
	return tuiModel{
		title:   title,
		emit:    emit,
		springs: newSpringField(60, 6.0, 0.9),
	}
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.emit(EventClose)
			return m, tea.Quit
		case key.Matches(msg, keys.Escape):
			m.emit(EventEscape)
		case key.Matches(msg, keys.Pause):
			m.emit(EventTogglePause)
		}

	case barsMsg:
		m.wave = false
		m.bars = BarsFrame(msg)
		m.springs.resize(len(m.bars.Bars))
		for i, b := range m.bars.Bars {
			m.springs.step(i, b.Height)
		}

	case waveMsg:
		m.wave = true
		m.waveF = WaveFrame(msg)
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	rows := max(m.height-chrome, 1)
	var body, status string
	if m.wave {
		body = m.renderWave(m.width, rows)
		status = statusLine(m.waveF.Offset, m.waveF.Duration, m.waveF.Paused)
	} else {
		body = m.renderBars(m.width, rows)
		status = statusLine(m.bars.Offset, m.bars.Duration, m.bars.Paused)
	}

	help := helpStyle.Render("space: pause/resume • esc: close • q: quit")
	return fmt.Sprintf("%s %s\n%s\n%s", titleStyle.Render(m.title), status, body, help)
}

func statusLine(offset, duration time.Duration, paused bool) string {
	s := fmt.Sprintf("%s / %s", offset.Truncate(time.Second), duration.Truncate(time.Second))
	if paused {
		s += " (paused)"
	}
	return helpStyle.Render(s)
}

// renderBars squeezes every bar of the frame across cols terminal columns.
// Heights are scaled from surface pixels to rows and smoothed by a spring.
func (m tuiModel) renderBars(cols, rows int) string {
	f := m.bars
	n := len(f.Bars)
	if n == 0 || f.Height <= 0 {
		return strings.Repeat("\n", rows-1)
	}

	levels := make([]float64, cols)
	colors := make([]Color, cols)
	for c := range cols {
		i := c * n / cols
		h := f.Bars[i].Height
		if i < len(m.springs.pos) {
			h = max(m.springs.pos[i], 0)
		}
		levels[c] = h / float64(f.Height) * float64(rows)
		colors[c] = f.Bars[i].Color
	}

	lines := make([]string, rows)
	var green, red strings.Builder
	for row := range rows {
		var line strings.Builder
		fromBottom := float64(rows - 1 - row)
		for c := range cols {
			idx := 0
			if levels[c] > fromBottom+1 {
				idx = len(barChars) - 1
			} else if levels[c] > fromBottom {
				idx = int((levels[c] - fromBottom) * float64(len(barChars)-1))
			}
			// Runs of the same color are styled together.
			if colors[c] == Red {
				flushRun(&line, &green, greenStyle)
				red.WriteRune(barChars[idx])
			} else {
				flushRun(&line, &red, redStyle)
				green.WriteRune(barChars[idx])
			}
		}
		flushRun(&line, &green, greenStyle)
		flushRun(&line, &red, redStyle)
		lines[row] = line.String()
	}
	return strings.Join(lines, "\n")
}

func flushRun(line, run *strings.Builder, style lipgloss.Style) {
	if run.Len() == 0 {
		return
	}
	line.WriteString(style.Render(run.String()))
	run.Reset()
}

// renderWave plots the trace into a character grid the size of the terminal
// with the timeline and seek marker on the last row.
func (m tuiModel) renderWave(cols, rows int) string {
	f := m.waveF
	if f.TextureWidth <= 0 || f.TextureHeight <= 0 || rows < 2 {
		return strings.Repeat("\n", rows-1)
	}

	plotRows := rows - 1
	grid := make([][]rune, plotRows)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", cols))
	}
	for _, p := range f.Trace {
		c := p.X * cols / f.TextureWidth
		r := p.Y * plotRows / f.TextureHeight
		if c < 0 || c >= cols || r < 0 || r >= plotRows {
			continue
		}
		ch := '•'
		if p.Alpha < 128 {
			ch = '·'
		}
		grid[r][c] = ch
	}

	lines := make([]string, 0, rows)
	for _, g := range grid {
		lines = append(lines, greenStyle.Render(string(g)))
	}

	timeline := []rune(strings.Repeat("─", cols))
	if f.TimelineWidth > 0 {
		c := (f.Seek.X - f.Timeline.X) * (cols - 1) / f.TimelineWidth
		c = min(max(c, 0), cols-1)
		timeline[c] = '●'
	}
	lines = append(lines, greenStyle.Render(string(timeline)))
	return strings.Join(lines, "\n")
}

// springField smooths bar heights between frames.
type springField struct {
	spring harmonica.Spring
	pos    []float64
	vel    []float64
}

func newSpringField(fps int, frequency, damping float64) springField {
	return springField{spring: harmonica.NewSpring(harmonica.FPS(fps), frequency, damping)}
}

func (s *springField) resize(n int) {
	if len(s.pos) == n {
		return
	}
	s.pos = make([]float64, n)
	s.vel = make([]float64, n)
}

func (s *springField) step(i int, target float64) float64 {
	p, v := s.spring.Update(s.pos[i], s.vel[i], target)
	s.pos[i] = p
	s.vel[i] = v
	return p
}
