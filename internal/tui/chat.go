package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nomadai/concierge/internal/agent"
	apperrors "github.com/nomadai/concierge/internal/errors"
	"github.com/nomadai/concierge/internal/llmtypes"
	"github.com/nomadai/concierge/internal/metrics"
)

// Turner is the part of the agent the chat UI drives
type Turner interface {
	HandleTurn(ctx context.Context, req agent.TurnRequest) (*agent.TurnResult, error)
	Reset(sessionID string) bool
	Catalog() []llmtypes.ToolDefinition
	Stats() metrics.Snapshot
}

// entryKind tags a transcript line
type entryKind int

const (
	entryGuest entryKind = iota
	entryAssistant
	entryNotice
	entryError
)

type entry struct {
	kind entryKind
	text string
	meta string
}

// replyMsg delivers the result of a turn
type replyMsg struct {
	result *agent.TurnResult
	err    error
}

// ChatOptions configures a ChatModel
type ChatOptions struct {
	SessionID     string
	AssistantName string
	Language      string
}

// ChatModel is an interactive text chat with the concierge
type ChatModel struct {
	turner    Turner
	sessionID string
	assistant string
	language  string

	input   textinput.Model
	spinner spinner.Model
	entries []entry
	waiting bool
	width   int
	height  int

	Quitting bool
}

// NewChatModel creates a chat model for one session
func NewChatModel(turner Turner, opts ChatOptions) ChatModel {
	if opts.AssistantName == "" {
		opts.AssistantName = "Concierge"
	}

	input := textinput.New()
	input.Placeholder = "Ask about the hotel, order room service, plan a day out..."
	input.CharLimit = agent.DefaultMaxMessageBytes
	input.Prompt = "› "
	input.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(StyleSpinner))

	return ChatModel{
		turner:    turner,
		sessionID: opts.SessionID,
		assistant: opts.AssistantName,
		language:  opts.Language,
		input:     input,
		spinner:   sp,
		entries: []entry{{
			kind: entryNotice,
			text: fmt.Sprintf("Hello! I'm %s. Type /help for commands.", opts.AssistantName),
		}},
	}
}

// Init starts the cursor blinking
func (m ChatModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages
func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 4
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.Quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}

	case replyMsg:
		m.waiting = false
		if msg.err != nil {
			m.entries = append(m.entries, entry{kind: entryError, text: describeError(msg.err)})
			return m, nil
		}
		m.entries = append(m.entries, entry{
			kind: entryAssistant,
			text: msg.result.Answer,
			meta: turnMeta(msg.result),
		})
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input line as a turn or runs a slash command
func (m ChatModel) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.waiting {
		return m, nil
	}
	m.input.Reset()

	if strings.HasPrefix(text, "/") {
		return m.command(text)
	}

	m.entries = append(m.entries, entry{kind: entryGuest, text: text})
	m.waiting = true
	return m, tea.Batch(m.spinner.Tick, m.ask(text))
}

// ask runs one turn off the UI goroutine
func (m ChatModel) ask(text string) tea.Cmd {
	turner, req := m.turner, agent.TurnRequest{
		SessionID: m.sessionID,
		Message:   text,
		Language:  m.language,
		Channel:   "cli",
	}
	return func() tea.Msg {
		res, err := turner.HandleTurn(context.Background(), req)
		return replyMsg{result: res, err: err}
	}
}

func (m ChatModel) command(line string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		m.Quitting = true
		return m, tea.Quit
	case "/reset":
		m.turner.Reset(m.sessionID)
		m.entries = append(m.entries, entry{kind: entryNotice, text: "Conversation reset."})
	case "/tools":
		m.entries = append(m.entries, entry{kind: entryNotice, text: describeTools(m.turner.Catalog())})
	case "/stats":
		m.entries = append(m.entries, entry{kind: entryNotice, text: describeStats(m.turner.Stats())})
	case "/help":
		m.entries = append(m.entries, entry{kind: entryNotice, text: helpText})
	default:
		m.entries = append(m.entries, entry{kind: entryError, text: fmt.Sprintf("Unknown command %s. Type /help.", fields[0])})
	}
	return m, nil
}

const helpText = `Commands:
  /reset   start a new conversation
  /tools   list what I can do
  /stats   show service counters
  /quit    leave the chat`

// View renders the UI
func (m ChatModel) View() string {
	if m.Quitting {
		return "Goodbye!\n"
	}

	var b strings.Builder
	b.WriteString(StyleTitle.Render(fmt.Sprintf(" %s · session %s ", m.assistant, shortID(m.sessionID))))
	b.WriteString("\n\n")

	for _, e := range m.visibleEntries() {
		b.WriteString(m.renderEntry(e))
		b.WriteString("\n")
	}

	if m.waiting {
		b.WriteString(m.spinner.View() + StyleMuted.Render(" thinking...") + "\n")
	}
	b.WriteString("\n" + m.input.View() + "\n")
	b.WriteString(StyleMuted.Render("Enter: send  |  /help: commands  |  Esc: quit"))
	return b.String() + "\n"
}

// visibleEntries keeps the transcript within the window height
func (m ChatModel) visibleEntries() []entry {
	if m.height <= 0 {
		return m.entries
	}
	budget := m.height - 6
	var lines int
	start := len(m.entries)
	for start > 0 {
		n := strings.Count(m.entries[start-1].text, "\n") + 2
		if lines+n > budget && start < len(m.entries) {
			break
		}
		lines += n
		start--
	}
	return m.entries[start:]
}

func (m ChatModel) renderEntry(e entry) string {
	switch e.kind {
	case entryGuest:
		return StyleGuest.Render("You") + "\n" + StyleText.Render(e.text) + "\n"
	case entryAssistant:
		header := StyleAssistant.Render(m.assistant)
		if e.meta != "" {
			header += " " + StyleMuted.Render(e.meta)
		}
		return header + "\n" + StyleText.Render(e.text) + "\n"
	case entryError:
		return StyleError.Render(IconError+" ") + e.text + "\n"
	default:
		return StyleMuted.Render(e.text) + "\n"
	}
}

func turnMeta(r *agent.TurnResult) string {
	switch {
	case r.CacheHit:
		return "(cached)"
	case r.Exhausted:
		return fmt.Sprintf("(best effort after %d steps)", r.Iterations)
	case r.ToolCalls > 0:
		return fmt.Sprintf("(%d tool calls)", r.ToolCalls)
	}
	return ""
}

func describeError(err error) string {
	switch apperrors.KindOf(err) {
	case apperrors.KindRateLimited:
		return "Too many messages. Please wait a moment and try again."
	case apperrors.KindInvalidRequest:
		if ce, ok := apperrors.AsConciergeError(err); ok {
			return "Invalid message: " + ce.Message
		}
	case apperrors.KindDependencyUnavailable:
		return "The assistant is temporarily unavailable. Please try again."
	}
	return "Something went wrong: " + err.Error()
}

func describeTools(catalog []llmtypes.ToolDefinition) string {
	var b strings.Builder
	b.WriteString("Available tools:")
	for _, def := range catalog {
		summary := def.Description
		if i := strings.Index(summary, ". "); i > 0 {
			summary = summary[:i+1]
		}
		fmt.Fprintf(&b, "\n  %s %s: %s", IconBullet, def.Name, summary)
	}
	return b.String()
}

func describeStats(s metrics.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Uptime %.0fs, %d active sessions\n", s.UptimeSeconds, s.ActiveSessions)
	fmt.Fprintf(&b, "Requests: %s\n", formatCounts(s.Requests))
	fmt.Fprintf(&b, "Errors: %s\n", formatCounts(s.Errors))
	fmt.Fprintf(&b, "Cache: %d hits, %d misses (%.0f%%)\n", s.Cache.Hits, s.Cache.Misses, s.Cache.HitRate*100)
	fmt.Fprintf(&b, "Loop exhausted: %d", s.LoopExhausted)

	deps := make([]string, 0, len(s.Latency))
	for dep := range s.Latency {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	for _, dep := range deps {
		l := s.Latency[dep]
		fmt.Fprintf(&b, "\n  %s %s: avg %.0fms over %d calls, %d failed", IconArrow, dep, l.AvgMs, l.Calls, l.Failures)
	}
	return b.String()
}

func formatCounts(counts map[string]int64) string {
	if len(counts) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
