// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog"

	"github.com/jeranaias/scribe-tui/internal/api"
	"github.com/jeranaias/scribe-tui/internal/config"
	"github.com/jeranaias/scribe-tui/internal/model"
	"github.com/jeranaias/scribe-tui/internal/report"
	"github.com/jeranaias/scribe-tui/internal/run"
	"github.com/jeranaias/scribe-tui/internal/session"
	"github.com/jeranaias/scribe-tui/internal/ui/components"
	"github.com/jeranaias/scribe-tui/internal/ui/styles"
)

// Model is the Bubble Tea model for the chat view.
type Model struct {
	// Styling
	theme *styles.Theme

	// Dimensions
	width  int
	height int

	// Collaborators
	cfg      *config.Config
	client   *api.Client
	coord    *session.Coordinator
	consumer *run.Consumer
	store    *report.Store
	log      zerolog.Logger

	// Cache view
	snapshot    model.Snapshot
	moreHistory bool

	// Run view
	runState     model.RunState
	runActive    bool
	reconnecting bool
	lastEventID  int64

	// Active SSE subscription
	streamCancel context.CancelFunc
	streamEvents <-chan model.RunEvent
	streamErrs   <-chan error

	// Report view
	report     *report.Report
	showReport bool

	// Conversation list pane data
	conversations []model.Conversation
	conversation  model.Conversation

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spin     spinner.Model
	keyMap   KeyMap
	runLine  components.RunLine
	statBar  components.StatusBar
	banner   components.ErrorBanner
	repPane  components.ReportPane

	// Markdown rendering (nil disables glamour)
	renderer *glamour.TermRenderer
}

// New creates the chat model wired to its collaborators.
func New(cfg *config.Config, theme *styles.Theme, client *api.Client, coord *session.Coordinator, consumer *run.Consumer, store *report.Store, log zerolog.Logger) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask for a report..."
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 12,
	}
	sp.Style = theme.Spinner

	var renderer *glamour.TermRenderer
	if cfg.UI.RenderMarkdown {
		// Fixed wrap keeps rendering deterministic across resizes; the
		// viewport handles final layout.
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
		if err == nil {
			renderer = r
		}
	}

	return Model{
		theme:    theme,
		cfg:      cfg,
		client:   client,
		coord:    coord,
		consumer: consumer,
		store:    store,
		log:      log,
		viewport: vp,
		input:    ti,
		spin:     sp,
		keyMap:   DefaultKeyMap(),
		runLine:  components.NewRunLine(theme),
		statBar:  components.NewStatusBar(theme),
		banner:   components.NewErrorBanner(theme),
		repPane:  components.NewReportPane(theme),
		renderer: renderer,
	}
}

// SetConversation records the active conversation's metadata for display.
func (m *Model) SetConversation(conv model.Conversation) {
	m.conversation = conv
}

// Init starts the initial data loads.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		loadHistoryCmd(m.coord),
		listConversationsCmd(m.client),
		loadReportCmd(m.store, m.coord.ConversationID()),
	)
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case SnapshotMsg:
		m.snapshot = msg.Snapshot
		m.moreHistory = model.NextCursor(msg.Snapshot) != nil
		m.refreshViewport()
		return m, nil

	case HistoryLoadedMsg:
		if msg.Err != nil {
			m.banner = m.banner.With("Load failed", msg.Err.Error(), false)
		}
		return m, nil

	case OlderLoadedMsg:
		if msg.Err != nil {
			m.banner = m.banner.With("Load failed", msg.Err.Error(), false)
		}
		m.moreHistory = msg.More
		return m, nil

	case SendFinishedMsg:
		return m.handleSendFinished(msg)

	case RunStartedMsg:
		return m.startRun(msg.RunID)

	case RunEventsMsg:
		return m.handleRunEvents(msg)

	case RunStreamClosedMsg:
		return m.handleStreamClosed(msg)

	case ReconnectTickMsg:
		return m.handleReconnectTick(msg)

	case RunUpdatedMsg:
		entered := msg.State.Status == model.RunFailed && m.runState.Status != model.RunFailed
		m.runState = msg.State
		if entered && msg.State.Err != "" {
			m.banner = m.banner.With("Run failed", msg.State.Err, false)
		}
		return m, nil

	case RunClearedMsg:
		m.runActive = false
		m.reconnecting = false
		m.runState = model.RunState{}
		return m, nil

	case RunUnsubscribeMsg:
		m.teardownStream()
		return m, nil

	case RunCanceledMsg:
		if msg.Err != nil {
			m.banner = m.banner.With("Cancel failed", msg.Err.Error(), false)
		}
		return m, nil

	case RunRetriedMsg:
		if msg.Err != nil {
			m.banner = m.banner.With("Retry failed", msg.Err.Error(), false)
			return m, nil
		}
		return m.startRun(msg.Run.ID)

	case ReportSectionsMsg:
		return m.handleReportSections(msg)

	case ReportSavedMsg:
		if msg.Err != nil {
			m.log.Warn().Err(msg.Err).Msg("report save failed")
		}
		return m, nil

	case ReportClearedMsg:
		if msg.Err != nil {
			m.log.Warn().Err(msg.Err).Msg("report clear failed")
		}
		return m, nil

	case ExportDoneMsg:
		if msg.Err != nil {
			m.banner = m.banner.With("Export failed", msg.Err.Error(), false)
		}
		return m, nil

	case ConversationsInvalidatedMsg:
		return m, listConversationsCmd(m.client)

	case ConversationsMsg:
		if msg.Err == nil {
			m.conversations = msg.Conversations
		}
		return m, nil

	case ErrorMsg:
		m.banner = m.banner.With(msg.Title, msg.Message, msg.CanRetry)
		return m, nil

	case ErrorDismissMsg:
		m.banner = m.banner.With("", "", false)
		return m, nil

	case ConfigReloadedMsg:
		m.cfg = msg.Config
		return m, nil

	case spinner.TickMsg:
		if !m.runActive {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	// Everything else goes to the focused components.
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		m.teardownStream()
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Send):
		return m.submit()

	case key.Matches(msg, m.keyMap.Cancel):
		if m.banner.IsSet() {
			m.banner = m.banner.With("", "", false)
			return m, nil
		}
		if m.runActive && !m.runState.Status.Terminal() {
			m.consumer.MarkStopping()
			return m, cancelRunCmd(m.client, m.runState.RunID)
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Retry):
		if m.runState.Err != "" && m.runState.RunID != "" {
			m.banner = m.banner.With("", "", false)
			return m, retryRunCmd(m.client, m.runState.RunID)
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Export):
		if m.report != nil && !m.report.IsEmpty() {
			return m, exportReportCmd(m.report, m.cfg.Report.ExportDir)
		}
		return m, nil

	case key.Matches(msg, m.keyMap.ToggleReport):
		m.showReport = !m.showReport
		return m, nil

	case key.Matches(msg, m.keyMap.ClearReport):
		if m.report != nil && !m.report.IsEmpty() {
			m.report.Clear()
			m.showReport = false
			return m, clearReportCmd(m.store, m.coord.ConversationID())
		}
		return m, nil

	case key.Matches(msg, m.keyMap.LoadOlder):
		if m.moreHistory {
			return m, loadOlderCmd(m.coord)
		}
		return m, nil

	case key.Matches(msg, m.keyMap.ScrollUp), key.Matches(msg, m.keyMap.ScrollDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.coord.SetDraft(m.input.Value())
	return m, cmd
}

// submit starts an optimistic send for the current input text. The draft is
// kept in the coordinator so a rolled-back send can restore it.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if text == "" {
		return m, nil
	}

	m.coord.SetDraft(text)
	m.input.Reset()
	m.banner = m.banner.With("", "", false)

	opts := session.SendOptions{
		Provider:      m.cfg.Send.Provider,
		Model:         m.cfg.Send.Model,
		ForcePipeline: m.cfg.Send.ForcePipeline,
	}
	return m, sendCmd(m.coord, text, opts)
}

func (m Model) handleSendFinished(msg SendFinishedMsg) (tea.Model, tea.Cmd) {
	res := msg.Result
	switch res.State {
	case session.SendRolledBack:
		// The placeholder is gone and the draft survived; put it back in the
		// input so Enter retries.
		m.input.SetValue(m.coord.Draft())
		m.input.CursorEnd()
		errText := "request failed"
		if res.Err != nil {
			errText = res.Err.Error()
		}
		m.banner = m.banner.With("Send failed", errText, true)

	case session.SendCommitted:
		if res.Replayed {
			m.log.Debug().Msg("send deduplicated by server")
		}
	}
	return m, nil
}

// =============================================================================
// RUN LIFECYCLE
// =============================================================================

// startRun begins consuming a new run: reset the consumer, open the SSE
// subscription from event zero, and start the spinner.
func (m Model) startRun(runID string) (tea.Model, tea.Cmd) {
	m.teardownStream()

	m.runState = m.consumer.Begin(runID)
	m.runActive = true
	m.reconnecting = false
	m.lastEventID = 0

	cmd := m.subscribe(runID, 0)
	return m, tea.Batch(cmd, m.spin.Tick)
}

// subscribe opens the event feed and returns the command that waits on it.
func (m *Model) subscribe(runID string, afterID int64) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.streamCancel = cancel
	events, errs := m.client.StreamRunEvents(ctx, runID, afterID)
	m.streamEvents = events
	m.streamErrs = errs
	return waitForEventsCmd(runID, events, errs)
}

func (m Model) handleRunEvents(msg RunEventsMsg) (tea.Model, tea.Cmd) {
	if !m.runActive || msg.RunID != m.runState.RunID {
		return m, nil
	}
	m.reconnecting = false
	for _, ev := range msg.Events {
		if ev.ID > m.lastEventID {
			m.lastEventID = ev.ID
		}
	}
	return m, tea.Batch(
		handleBatchCmd(m.consumer, msg.Events),
		waitForEventsCmd(msg.RunID, m.streamEvents, m.streamErrs),
	)
}

func (m Model) handleStreamClosed(msg RunStreamClosedMsg) (tea.Model, tea.Cmd) {
	if !m.runActive || msg.RunID != m.runState.RunID {
		return m, nil
	}
	if msg.Err == nil {
		// Clean close: the terminal event already went through the consumer.
		return m, nil
	}
	if msg.LastEventID > m.lastEventID {
		m.lastEventID = msg.LastEventID
	}
	m.reconnecting = true
	m.log.Warn().Err(msg.Err).Str("run_id", msg.RunID).Msg("event stream dropped")
	return m, tea.Batch(
		channelErrorCmd(m.consumer, msg.Err),
		reconnectTickCmd(msg.RunID),
	)
}

func (m Model) handleReconnectTick(msg ReconnectTickMsg) (tea.Model, tea.Cmd) {
	if !m.runActive || msg.RunID != m.runState.RunID {
		return m, nil
	}
	// The fallback poll may have already resolved the run.
	if m.consumer.Phase() == run.PhaseTerminal {
		m.reconnecting = false
		return m, nil
	}
	return m, m.subscribe(msg.RunID, m.lastEventID)
}

// teardownStream cancels the SSE subscription if one is open.
func (m *Model) teardownStream() {
	if m.streamCancel != nil {
		m.streamCancel()
		m.streamCancel = nil
	}
	m.streamEvents = nil
	m.streamErrs = nil
}

// handleReportSections accumulates sections into the conversation's report.
// The report survives across runs; each successful run appends to it, and the
// store row mirrors the full accumulated document.
func (m Model) handleReportSections(msg ReportSectionsMsg) (tea.Model, tea.Cmd) {
	if m.report == nil {
		m.report = report.New(m.conversation.GetTitle())
	}
	m.report.Append(msg.Sections)
	m.showReport = true
	return m, saveReportCmd(m.store, m.coord.ConversationID(), m.report)
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)

	contentWidth := m.width
	if m.sidebarVisible() {
		contentWidth -= sidebarWidth
	}
	m.viewport.Width = contentWidth
	m.viewport.Height = m.contentHeight()
	m.input.Width = m.width - 6

	m.refreshViewport()
	return m, nil
}

// contentHeight is the vertical space left for the message list after the
// header, run line, input area, and status bar.
func (m Model) contentHeight() int {
	h := m.height - 6
	if m.banner.IsSet() {
		h -= 5
	}
	if h < 3 {
		h = 3
	}
	return h
}

func (m Model) sidebarVisible() bool {
	return m.theme.GetLayoutMode() == styles.LayoutWide && len(m.conversations) > 0 && !m.cfg.UI.CompactMode
}

// refreshViewport re-renders the message list, keeping the view pinned to the
// bottom when it already was.
func (m *Model) refreshViewport() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderMessages())
	if atBottom {
		m.viewport.GotoBottom()
	}
}
