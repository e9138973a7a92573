package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/clipforge/internal/models"
	"github.com/raphaelgruber/clipforge/internal/notify"
	"github.com/raphaelgruber/clipforge/internal/pipeline"
	"github.com/raphaelgruber/clipforge/internal/service"
)

const (
	redrawInterval = time.Second
	logRows        = 6
)

// Theme holds the color scheme for the watch view.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
	Accent  lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
	Accent:  lipgloss.Color("#FFAF00"), // amber
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) headerStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
}

func (t Theme) stateStyle(s pipeline.State) lipgloss.Style {
	switch s {
	case pipeline.StateDone:
		return t.completedStyle()
	case pipeline.StateFailed:
		return t.errorStyle()
	case pipeline.StateRunning:
		return t.statusStyle()
	case pipeline.StateBlocked:
		return t.hintStyle()
	default:
		return lipgloss.NewStyle()
	}
}

// tickMsg redraws elapsed times and expires notices.
type tickMsg time.Time

// viewMsg carries a new workspace state.
type viewMsg service.View

// noticesMsg carries the active notices.
type noticesMsg []notify.Notice

// actionDoneMsg reports the outcome of a command started from the view.
type actionDoneMsg struct {
	what string
	err  error
}

// watchModel is the bubbletea model for the live stage board.
type watchModel struct {
	ctx       context.Context
	svc       *services
	views     <-chan service.View
	notes     <-chan []notify.Notice
	view      service.View
	notices   []notify.Notice
	cursor    int
	collapsed bool
	progress  progress.Model
	theme     Theme
	now       time.Time
	quitting  bool
}

func newWatchModel(ctx context.Context, svc *services, views <-chan service.View, notes <-chan []notify.Notice, collapsed bool) watchModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(20),
	)

	m := watchModel{
		ctx:       ctx,
		svc:       svc,
		views:     views,
		notes:     notes,
		view:      svc.workspace.View(),
		collapsed: collapsed,
		progress:  prog,
		theme:     defaultTheme,
		now:       time.Now(),
	}
	m.cursor = m.indexOf(m.view.SelectedID)
	return m
}

// Init starts listening for workspace changes and the redraw timer.
func (m watchModel) Init() tea.Cmd {
	return tea.Batch(
		waitFor(m.views, func(v service.View) tea.Msg { return viewMsg(v) }),
		waitFor(m.notes, func(n []notify.Notice) tea.Msg { return noticesMsg(n) }),
		tickCmd(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return m.handleKey(msg.String())

	case viewMsg:
		m.view = service.View(msg)
		if m.cursor >= len(m.view.Ideas) {
			m.cursor = max(0, len(m.view.Ideas)-1)
		}
		return m, waitFor(m.views, func(v service.View) tea.Msg { return viewMsg(v) })

	case noticesMsg:
		m.notices = msg
		return m, waitFor(m.notes, func(n []notify.Notice) tea.Msg { return noticesMsg(n) })

	case tickMsg:
		m.now = time.Time(msg)
		m.notices = m.svc.notices.Active()
		return m, tickCmd()

	case actionDoneMsg:
		if msg.err != nil {
			m.svc.notices.Push(notify.LevelError, fmt.Sprintf("%s: %v", msg.what, msg.err))
		}
		return m, nil

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m watchModel) handleKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.view.Ideas)-1 {
			m.cursor++
		}
	case "enter":
		if m.cursor < len(m.view.Ideas) {
			ideaID := m.view.Ideas[m.cursor].ID
			return m, m.run("select "+ideaID, func(ctx context.Context) error {
				return m.svc.workspace.Select(ctx, ideaID)
			})
		}
	case "r":
		m.svc.workspace.Kick()
	case "l":
		m.collapsed = !m.collapsed
		collapsed, projectID := m.collapsed, m.view.ProjectID
		return m, m.run("save log view", func(ctx context.Context) error {
			return m.svc.bookmarks.SetLogsCollapsed(ctx, projectID, collapsed)
		})
	case "1", "2", "3", "4", "5", "6":
		return m, m.invokeStage(int(key[0] - '1'))
	}
	return m, nil
}

// invokeStage runs the board action of stage i of the selected idea, if enabled.
func (m watchModel) invokeStage(i int) tea.Cmd {
	if m.view.SelectedID == "" || i >= len(pipeline.Stages) {
		return nil
	}
	board, ok := m.svc.generation.Board(m.view.SelectedID)
	if !ok {
		return nil
	}
	st := pipeline.Stages[i]
	action := board.Stage(st).Action
	if action.Disabled || action.Invoke == nil {
		m.svc.notices.Push(notify.LevelWarning, fmt.Sprintf("%s: %s", st, action.Reason))
		return nil
	}
	return func() tea.Msg {
		// Failures are reported through the notice center.
		_ = action.Invoke(m.ctx)
		return actionDoneMsg{what: string(st)}
	}
}

func (m watchModel) run(what string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{what: what, err: fn(m.ctx)}
	}
}

// View renders the watch display.
func (m watchModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m watchModel) renderContent() string {
	if m.quitting {
		return m.theme.hintStyle().Render("Stopped watching. Running jobs continue on the server.\n")
	}

	var b strings.Builder
	b.WriteString(m.theme.headerStyle().Render("clipforge · project "+m.view.ProjectID) + "\n")
	if m.view.Waiting {
		elapsed := m.now.Sub(m.svc.workspace.WaitingSince()).Truncate(time.Second)
		b.WriteString(m.theme.statusStyle().Render(fmt.Sprintf("Generating ideas... %s", elapsed)) + "\n")
	}
	b.WriteString("\n")

	m.renderIdeas(&b)
	m.renderBoard(&b)
	m.renderLogs(&b)
	m.renderNotices(&b)

	b.WriteString("\n" + m.theme.hintStyle().Render("↑/↓ move · enter select · 1-6 run stage · r refresh · l logs · q quit") + "\n")
	return b.String()
}

func (m watchModel) renderIdeas(b *strings.Builder) {
	b.WriteString(m.theme.headerStyle().Render("IDEAS") + "\n")
	if !m.view.Loaded {
		b.WriteString("  Loading...\n\n")
		return
	}
	if len(m.view.Ideas) == 0 {
		b.WriteString("  No ideas yet\n\n")
		return
	}
	for i, idea := range m.view.Ideas {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		marker := " "
		if idea.ID == m.view.SelectedID {
			marker = "*"
		}
		status := m.theme.statusStyle().Render(fmt.Sprintf("%-10s", idea.Status))
		fmt.Fprintf(b, "%s%s %-10s %s %s\n", cursor, marker, truncate(idea.ID, 10), status, truncate(idea.Topic, 50))
	}
	b.WriteString("\n")
}

func (m watchModel) renderBoard(b *strings.Builder) {
	if m.view.SelectedID == "" {
		return
	}
	board, ok := m.svc.generation.Board(m.view.SelectedID)
	if !ok {
		return
	}
	title := "STAGES " + m.view.SelectedID
	if m.view.Detail != nil && m.view.Detail.Topic != "" {
		title += " · " + truncate(m.view.Detail.Topic, 40)
	}
	b.WriteString(m.theme.headerStyle().Render(title) + "\n")

	for i, v := range board.Stages {
		state := m.theme.stateStyle(v.State).Render(fmt.Sprintf("%-8s", v.State))
		line := fmt.Sprintf(" %d %-13s %s %-24s %s", i+1, v.Stage, state, v.StatusLabel, actionText(v.Action))
		if v.Stage.IsAsset() && v.Facts.Total > 0 {
			pct := float64(v.Facts.Succeeded) / float64(v.Facts.Total)
			line += fmt.Sprintf("  %s %d/%d", m.progress.ViewAs(pct), v.Facts.Succeeded, v.Facts.Total)
		}
		b.WriteString(line + "\n")
		if v.State == pipeline.StateFailed && v.Facts.LatestError != "" {
			b.WriteString("     " + m.theme.errorStyle().Render(truncate(v.Facts.LatestError, 80)) + "\n")
		}
	}
	b.WriteString("\n")
}

func (m watchModel) renderLogs(b *strings.Builder) {
	header := "RUN LOG"
	if m.collapsed {
		b.WriteString(m.theme.headerStyle().Render(header+" (collapsed)") + "\n")
		stats := m.svc.workspace.Stats().Total
		fmt.Fprintf(b, "  %d runs · %d ok · %d failed · %d active\n\n", stats.Count, stats.Succeeded, stats.Failed, stats.Active)
		return
	}
	b.WriteString(m.theme.headerStyle().Render(header) + "\n")
	logs := m.view.RunLogs
	if len(logs) > logRows {
		logs = logs[:logRows]
	}
	if len(logs) == 0 {
		b.WriteString("  No runs yet\n")
	}
	for _, l := range logs {
		style := m.theme.statusStyle()
		switch l.Status {
		case models.StatusSucceeded:
			style = m.theme.completedStyle()
		case models.StatusFailed:
			style = m.theme.errorStyle()
		}
		fmt.Fprintf(b, "  %s %-13s %s %s\n",
			l.CreatedAt.Local().Format("15:04:05"), l.Operation,
			style.Render(fmt.Sprintf("%-10s", l.Status)), models.Deref(l.IdeaID))
	}
	b.WriteString("\n")
}

func (m watchModel) renderNotices(b *strings.Builder) {
	for _, n := range m.notices {
		switch n.Level {
		case notify.LevelError:
			b.WriteString(m.theme.errorStyle().Render("✗ "+n.Message) + "\n")
		case notify.LevelSuccess:
			b.WriteString(m.theme.completedStyle().Render("✓ "+n.Message) + "\n")
		default:
			b.WriteString(m.theme.statusStyle().Render("• "+n.Message) + "\n")
		}
	}
}

func (m watchModel) indexOf(ideaID string) int {
	for i, idea := range m.view.Ideas {
		if idea.ID == ideaID {
			return i
		}
	}
	return 0
}

// waitFor turns the next value of ch into a message. A closed channel
// yields no message.
func waitFor[T any](ch <-chan T, wrap func(T) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return nil
		}
		return wrap(v)
	}
}

// tickCmd returns a command that sends a tick after the redraw interval.
func tickCmd() tea.Cmd {
	return tea.Tick(redrawInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// runWatchUI runs the interactive board until the user quits.
func runWatchUI(ctx context.Context, svc *services, collapsed bool) error {
	views, cancelViews := svc.workspace.Subscribe()
	defer cancelViews()
	notes, cancelNotes := svc.notices.Subscribe()
	defer cancelNotes()

	model := newWatchModel(ctx, svc, views, notes, collapsed)
	p := tea.NewProgram(model)

	stop := context.AfterFunc(ctx, p.Quit)
	defer stop()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("watch UI error: %w", err)
	}
	return nil
}
