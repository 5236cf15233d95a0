// Package tui implements the terminal chat client for the assistant API.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rmpassist/rmp-assistant/internal/models"
)

// Greeting is the assistant message every conversation starts with.
const Greeting = "Hi! I'm the Rate My Professor support assistant. How can I help you today?"

const (
	urlCommand    = "/url"
	readChunkSize = 4096
)

// API is the TUI-facing subset of the assistant HTTP API.
type API interface {
	OpenChat(ctx context.Context, messages []models.Message) (io.ReadCloser, error)
	SubmitURL(ctx context.Context, pageURL string) (int, error)
}

type (
	streamOpenedMsg struct{ body io.ReadCloser }
	fragmentMsg     struct{ text string }
	streamEndedMsg  struct{ err error }
	submittedMsg    struct {
		url   string
		count int
		err   error
	}
)

// Model is the Bubble Tea model for the chat client.
type Model struct {
	api       API
	ctx       context.Context
	logger    *slog.Logger
	input     textinput.Model
	viewport  viewport.Model
	messages  []models.Message
	body      io.ReadCloser
	streaming bool
	status    string
	ready     bool
}

// New creates a chat model. ctx bounds every API call; logger receives errors, which are not
// shown in the UI.
func New(ctx context.Context, api API, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about professors, or /url <review page>"
	ti.Focus()

	return Model{
		api:      api,
		ctx:      ctx,
		logger:   logger,
		input:    ti,
		viewport: viewport.New(0, 0),
		messages: []models.Message{{Role: models.RoleAssistant, Content: Greeting}},
		status:   "Enter to send, Ctrl+C to quit.",
	}
}

// Messages returns the conversation shown in the UI.
func (m Model) Messages() []models.Message { return m.messages }

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and API events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := conversationBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-ch)
		m.refresh()

		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			m.closeBody()

			return m, tea.Quit
		}

		if msg.Type == tea.KeyEnter {
			return m.submit()
		}
	case streamOpenedMsg:
		m.body = msg.body

		return m, readChunk(m.body)
	case fragmentMsg:
		last := &m.messages[len(m.messages)-1]
		last.Content += msg.text
		m.refresh()

		return m, readChunk(m.body)
	case streamEndedMsg:
		if msg.err != nil {
			m.logger.Error("chat request failed", "error", msg.err)
		}

		m.closeBody()
		m.streaming = false
		m.refresh()

		return m, nil
	case submittedMsg:
		if msg.err != nil {
			m.logger.Error("submit url failed", "url", msg.url, "error", msg.err)

			return m, nil
		}

		m.status = fmt.Sprintf("Stored %d professor record(s) from %s", msg.count, msg.url)

		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

// submit sends the input line as a chat turn, or as a page to ingest when it starts with /url.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	if rest, ok := strings.CutPrefix(text, urlCommand); ok && (rest == "" || rest[0] == ' ') {
		pageURL := strings.TrimSpace(rest)
		if pageURL == "" {
			return m, nil
		}

		m.input.SetValue("")

		return m, submitURL(m.ctx, m.api, pageURL)
	}

	if m.streaming {
		return m, nil
	}

	m.input.SetValue("")
	m.messages = append(m.messages,
		models.Message{Role: models.RoleUser, Content: text},
		models.Message{Role: models.RoleAssistant, Content: ""},
	)
	m.streaming = true
	m.refresh()

	// The trailing empty assistant message is the placeholder being streamed into.
	history := make([]models.Message, len(m.messages)-1)
	copy(history, m.messages)

	return m, openChat(m.ctx, m.api, history)
}

func (m *Model) closeBody() {
	if m.body != nil {
		_ = m.body.Close()
		m.body = nil
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderConversation(m.messages, m.viewport.Width))
	m.viewport.GotoBottom()
}

// View renders the conversation, input box and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := lipgloss.NewStyle().Bold(true).Render("Rate My Professor Assistant")
	conversation := conversationBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)

	return header + "\n" + conversation + "\n" + input + "\n" + status
}

func renderConversation(messages []models.Message, width int) string {
	var b strings.Builder

	wrap := lipgloss.NewStyle().Width(max(10, width-2))

	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}

		switch msg.Role {
		case models.RoleUser:
			b.WriteString(userLabelStyle.Render("You"))
		default:
			b.WriteString(assistantLabelStyle.Render("Assistant"))
		}

		b.WriteString("\n")
		b.WriteString(wrap.Render(msg.Content))
	}

	return b.String()
}

func openChat(ctx context.Context, api API, history []models.Message) tea.Cmd {
	return func() tea.Msg {
		body, err := api.OpenChat(ctx, history)
		if err != nil {
			return streamEndedMsg{err: err}
		}

		return streamOpenedMsg{body: body}
	}
}

// readChunk reads the next piece of the streamed answer.
func readChunk(body io.Reader) tea.Cmd {
	return func() tea.Msg {
		buf := make([]byte, readChunkSize)

		n, err := body.Read(buf)
		if n > 0 {
			return fragmentMsg{text: string(buf[:n])}
		}

		if err == nil {
			return fragmentMsg{}
		}

		if errors.Is(err, io.EOF) {
			return streamEndedMsg{}
		}

		return streamEndedMsg{err: err}
	}
}

func submitURL(ctx context.Context, api API, pageURL string) tea.Cmd {
	return func() tea.Msg {
		count, err := api.SubmitURL(ctx, pageURL)

		return submittedMsg{url: pageURL, count: count, err: err}
	}
}

var (
	conversationBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle        = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userLabelStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantLabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
)
