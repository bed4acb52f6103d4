// Package tui provides a Bubble Tea terminal user interface for lecturecast.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lecturecast/lecturecast/internal/catalog"
	"github.com/lecturecast/lecturecast/internal/config"
	"github.com/lecturecast/lecturecast/internal/download"
	"github.com/lecturecast/lecturecast/internal/model"
	"github.com/lecturecast/lecturecast/internal/playback"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F8B500"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)
)

// View identifies the focused pane.
type View int

const (
	ViewLibrary View = iota
	ViewDownloads
)

// sleepSteps are the sleep timer presets cycled by the t key.
var sleepSteps = []int{0, 15, 30, 60}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	session  *playback.Session
	manager  *download.Manager
	catalog  *catalog.Client
	settings *config.Settings

	spinner  spinner.Model
	progress progress.Model

	view     View
	lectures []model.LectureRef
	cursor   int
	playback playback.State
	records  []download.Record
	sleepIdx int
	err      error

	states      <-chan playback.State
	events      <-chan download.Event
	unsubStates func()
	unsubEvents func()

	width  int
	height int
}

// NewModel creates the TUI model bound to the shared session and
// download manager.
func NewModel(settings *config.Settings, session *playback.Session, manager *download.Manager, cat *catalog.Client) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	states, unsubStates := session.Subscribe()
	events, unsubEvents := manager.Subscribe()

	return Model{
		session:     session,
		manager:     manager,
		catalog:     cat,
		settings:    settings,
		spinner:     sp,
		progress:    prog,
		playback:    session.Snapshot(),
		records:     manager.Downloads(),
		states:      states,
		events:      events,
		unsubStates: unsubStates,
		unsubEvents: unsubEvents,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.loadLectures(),
		m.waitForState(),
		m.waitForEvent(),
		m.tick(),
	)
}

// Message types
type (
	// LecturesMsg delivers the catalog listing.
	LecturesMsg struct {
		Lectures []model.LectureRef
		Err      error
	}

	// StateMsg carries a playback state snapshot.
	StateMsg struct {
		State playback.State
		OK    bool
	}

	// EventMsg carries a download event.
	EventMsg struct {
		Event download.Event
		OK    bool
	}

	// TickMsg refreshes the clock and sleep timer display.
	TickMsg struct{}
)

// loadLectures fetches the catalog listing in the background.
func (m Model) loadLectures() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		lectures, err := m.catalog.Lectures(ctx)
		return LecturesMsg{Lectures: lectures, Err: err}
	}
}

// waitForState blocks on the session's state channel.
func (m Model) waitForState() tea.Cmd {
	return func() tea.Msg {
		state, ok := <-m.states
		return StateMsg{State: state, OK: ok}
	}
}

// waitForEvent blocks on the manager's event channel.
func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		return EventMsg{Event: ev, OK: ok}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case LecturesMsg:
		if msg.Err != nil {
			m.err = msg.Err
		} else {
			m.lectures = msg.Lectures
			m.err = nil
		}

	case StateMsg:
		if msg.OK {
			m.playback = msg.State
			cmds = append(cmds, m.waitForState())
		}

	case EventMsg:
		if msg.OK {
			m.records = m.manager.Downloads()
			cmds = append(cmds, m.waitForEvent())
		}

	case TickMsg:
		cmds = append(cmds, m.tick())

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.unsubStates()
		m.unsubEvents()
		return m, tea.Quit

	case "tab":
		if m.view == ViewLibrary {
			m.view = ViewDownloads
		} else {
			m.view = ViewLibrary
		}
		m.cursor = 0

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < m.listLength()-1 {
			m.cursor++
		}

	case "enter":
		if m.view == ViewLibrary && m.cursor < len(m.lectures) {
			m.session.SetQueue(m.lectures, m.cursor)
		}
		if m.view == ViewDownloads && m.cursor < len(m.records) {
			m.session.SetLecture(m.records[m.cursor].Lecture)
		}

	case " ":
		m.session.TogglePlayPause()

	case "n":
		m.session.PlayNext()

	case "b":
		m.session.PlayPrevious()

	case "left":
		m.session.SeekTo(m.playback.PositionSeconds - 15)

	case "right":
		m.session.SeekTo(m.playback.PositionSeconds + 15)

	case "s":
		m.session.ToggleShuffle()

	case "r":
		m.session.CycleRepeatMode()

	case "+", "=":
		m.stepRate(1)

	case "-":
		m.stepRate(-1)

	case "t":
		m.sleepIdx = (m.sleepIdx + 1) % len(sleepSteps)
		m.session.Sleep().Set(sleepSteps[m.sleepIdx])

	case "d":
		if m.view == ViewLibrary && m.cursor < len(m.lectures) {
			if err := m.manager.StartDownload(m.lectures[m.cursor]); err != nil {
				m.err = err
			}
		}

	case "x":
		if m.view == ViewDownloads && m.cursor < len(m.records) {
			m.manager.CancelDownload(m.records[m.cursor].LectureID())
		}

	case "delete", "backspace":
		if m.view == ViewDownloads && m.cursor < len(m.records) {
			if err := m.manager.DeleteDownload(m.records[m.cursor].LectureID()); err != nil {
				m.err = err
			}
			m.records = m.manager.Downloads()
			if m.cursor >= len(m.records) && m.cursor > 0 {
				m.cursor--
			}
		}
	}

	return m, nil
}

func (m *Model) stepRate(direction int) {
	current := 0
	for i, rate := range playback.Rates {
		if rate == m.playback.Rate {
			current = i
			break
		}
	}
	next := current + direction
	if next < 0 || next >= len(playback.Rates) {
		return
	}
	if err := m.session.SetPlaybackRate(playback.Rates[next]); err != nil {
		m.err = err
	}
}

func (m Model) listLength() int {
	if m.view == ViewDownloads {
		return len(m.records)
	}
	return len(m.lectures)
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("🎧 Lecturecast"))
	b.WriteString("\n")

	switch m.view {
	case ViewLibrary:
		b.WriteString(m.viewLibrary())
	case ViewDownloads:
		b.WriteString(m.viewDownloads())
	}

	b.WriteString("\n")
	b.WriteString(m.viewPlayer())

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("✗ " + m.err.Error()))
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewLibrary() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Library"))
	b.WriteString("\n")

	if len(m.lectures) == 0 {
		b.WriteString(m.spinner.View())
		b.WriteString(dimStyle.Render(" loading catalog..."))
		b.WriteString("\n")
		return b.String()
	}

	for i, lecture := range m.lectures {
		line := fmt.Sprintf("%s · %s (%s)",
			lecture.Title, lecture.SpeakerName, model.FormatClock(lecture.DurationSeconds))
		if m.manager.IsDownloaded(lecture.ID) {
			line += " ⬇"
		}
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) viewDownloads() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render(fmt.Sprintf(
		"Downloads · %s used", download.FormatBytes(m.manager.TotalStorageUsed()))))
	b.WriteString("\n")

	if len(m.records) == 0 {
		b.WriteString(dimStyle.Render("  nothing downloaded yet"))
		b.WriteString("\n")
		return b.String()
	}

	for i, rec := range m.records {
		line := fmt.Sprintf("%s · %s", rec.Lecture.Title, m.renderRecordStatus(rec))
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) renderRecordStatus(rec download.Record) string {
	switch rec.Status {
	case download.StatusDownloading:
		if rec.TotalBytes > 0 {
			return warningStyle.Render(fmt.Sprintf("%s of %s",
				download.FormatBytes(rec.BytesDownloaded), download.FormatBytes(rec.TotalBytes)))
		}
		return warningStyle.Render(download.FormatBytes(rec.BytesDownloaded))
	case download.StatusQueued:
		return dimStyle.Render("queued")
	case download.StatusCompleted:
		return successStyle.Render("✓ " + download.FormatBytes(rec.BytesDownloaded))
	case download.StatusFailed:
		return errorStyle.Render("failed: " + rec.Error)
	case download.StatusCanceled:
		return dimStyle.Render("canceled")
	}
	return string(rec.Status)
}

func (m Model) viewPlayer() string {
	var b strings.Builder

	current, ok := m.playback.Current()
	if !ok {
		return boxStyle.Render(dimStyle.Render("nothing playing"))
	}

	b.WriteString(fmt.Sprintf("%s · %s\n", current.Title, current.SpeakerName))

	var percent float64
	if m.playback.DurationSeconds > 0 {
		percent = m.playback.PositionSeconds / m.playback.DurationSeconds
	}
	b.WriteString(m.progress.ViewAs(percent))
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf("%s / %s · %s · %.2gx",
		model.FormatClock(m.playback.PositionSeconds),
		model.FormatClock(m.playback.DurationSeconds),
		m.renderStatus(),
		m.playback.Rate,
	)))

	var modes []string
	if m.playback.Shuffle {
		modes = append(modes, "shuffle")
	}
	if m.playback.Repeat != playback.RepeatOff {
		modes = append(modes, "repeat "+m.playback.Repeat.String())
	}
	if remaining, armed := m.session.Sleep().Remaining(); armed {
		modes = append(modes, fmt.Sprintf("sleep %s", model.FormatClock(float64(remaining))))
	}
	if len(modes) > 0 {
		b.WriteString(dimStyle.Render("  " + strings.Join(modes, " · ")))
	}

	if m.playback.Status == playback.StatusError && m.playback.LastError != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("✗ " + m.playback.LastError.Error()))
	}

	return boxStyle.Render(b.String())
}

func (m Model) renderStatus() string {
	switch m.playback.Status {
	case playback.StatusLoading:
		return m.spinner.View() + "loading"
	case playback.StatusBuffering:
		return m.spinner.View() + "buffering"
	default:
		return m.playback.Status.String()
	}
}

func (m Model) getHelpText() string {
	base := "space: play/pause • n/b: next/prev • ←/→: seek • s: shuffle • r: repeat • +/-: rate • t: sleep"
	if m.view == ViewLibrary {
		return base + " • d: download • tab: downloads • q: quit"
	}
	return base + " • x: cancel • del: delete • tab: library • q: quit"
}

// Run starts the TUI application.
func Run(settings *config.Settings, session *playback.Session, manager *download.Manager, cat *catalog.Client) error {
	p := tea.NewProgram(NewModel(settings, session, manager, cat), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
