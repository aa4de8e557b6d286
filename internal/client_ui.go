package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"quickchat/internal/storage"
)

// TUIModel holds the bubbletea state for the chat client: the input box, the
// message log, the online list, and the websocket connection.
type TUIModel struct {
	textInput     textinput.Model
	messages      []storage.Message
	notices       []string
	online        []string
	serverURL     string
	username      string
	websocketConn *websocket.Conn
	writeMutex    sync.Mutex
	isConnected   bool
	connectionErr error
	mode          clientMode
}

// bubbletea messages for asynchronous events.
type (
	connectedMsg     struct{}
	incomingMsg      Event
	historyMsg       []storage.Message
	errorMsg         error
	connectFailedMsg struct{ err error }
	reconnectMsg     struct{}
	uploadedMsg      uploadResponse
	uploadFailedMsg  struct{ err error }
)

type clientMode int

const (
	modeNamePrompt clientMode = iota
	modeChat
)

var (
	appTitleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).Padding(0, 1)
	chatHeaderStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("109")).MarginTop(1)
	connectedStyle     = statusStyle.Copy().Foreground(lipgloss.Color("42")).Bold(true)
	connectingStyle    = statusStyle.Copy().Foreground(lipgloss.Color("178")).Italic(true)
	errorStyle         = statusStyle.Copy().Foreground(lipgloss.Color("196")).Bold(true)
	onlineStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	messageBoxStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(1, 2).MarginTop(1)
	inputBoxStyle      = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1).MarginTop(1)
	timestampStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	usernameStyle      = lipgloss.NewStyle().Bold(true)
	activeUserStyle    = usernameStyle.Copy().Foreground(lipgloss.Color("213"))
	fileLinkStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("45")).Underline(true)
	systemMessageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	hintStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).MarginTop(1)
)

// NewTUIModel builds a chat client model pointed at the server's /ws URL.
func NewTUIModel(serverURL, username string) *TUIModel {
	input := textinput.New()
	input.CharLimit = 0
	input.Focus()

	model := &TUIModel{
		textInput: input,
		messages:  make([]storage.Message, 0, 64),
		serverURL: serverURL,
		username:  username,
	}
	if username == "" {
		model.mode = modeNamePrompt
		input.Placeholder = "Enter display name…"
		input.Prompt = "name> "
	} else {
		model.mode = modeChat
		input.Placeholder = "Type a message…"
		input.Prompt = "> "
	}
	model.textInput = input
	return model
}

// RunClient starts the terminal client event loop.
func RunClient(serverURL, username string) error {
	program := tea.NewProgram(NewTUIModel(serverURL, username))
	_, err := program.Run()
	return err
}

func (model *TUIModel) Init() tea.Cmd {
	if model.mode == modeChat {
		return model.connectCmd()
	}
	return nil
}

func (model *TUIModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch typedMessage := message.(type) {
	case tea.KeyMsg:
		if typedMessage.Type == tea.KeyCtrlC || typedMessage.Type == tea.KeyEsc {
			model.closeConn()
			return model, tea.Quit
		}
		switch model.mode {
		case modeNamePrompt:
			if typedMessage.Type == tea.KeyEnter {
				trimmed := strings.TrimSpace(model.textInput.Value())
				if trimmed == "" {
					model.notices = append(model.notices, "Display name cannot be empty.")
					return model, nil
				}
				model.username = trimmed
				model.mode = modeChat
				model.textInput.SetValue("")
				model.textInput.Placeholder = "Type a message…"
				model.textInput.Prompt = "> "
				return model, model.connectCmd()
			}
			var cmd tea.Cmd
			model.textInput, cmd = model.textInput.Update(typedMessage)
			return model, cmd
		case modeChat:
			if typedMessage.Type == tea.KeyEnter {
				return model.handleChatInput()
			}
			var cmd tea.Cmd
			model.textInput, cmd = model.textInput.Update(typedMessage)
			return model, cmd
		}

	case connectedMsg:
		model.isConnected = true
		model.connectionErr = nil
		if err := model.writeEvent(EventRegisterUser, registerPayload{Username: model.username}); err != nil {
			return model, func() tea.Msg { return errorMsg(err) }
		}
		return model, tea.Batch(model.readOnceCmd(), model.historyCmd())

	case historyMsg:
		// history replaces whatever arrived before it; live events append after.
		model.messages = append([]storage.Message(typedMessage), model.messages...)
		return model, nil

	case incomingMsg:
		model.applyEvent(Event(typedMessage))
		return model, model.readOnceCmd()

	case uploadedMsg:
		fileURL := typedMessage.FileURL
		fileType := typedMessage.FileType
		if err := model.writeEvent(EventSendMessage, sendPayload{FileURL: &fileURL, FileType: &fileType}); err != nil {
			return model, func() tea.Msg { return errorMsg(err) }
		}
		return model, nil

	case uploadFailedMsg:
		model.notices = append(model.notices, fmt.Sprintf("Upload failed: %v", typedMessage.err))
		return model, nil

	case errorMsg:
		model.connectionErr = typedMessage
		return model, tea.Quit

	case connectFailedMsg:
		model.connectionErr = typedMessage.err
		if model.mode == modeChat {
			return model, model.scheduleReconnect()
		}
		return model, nil

	case reconnectMsg:
		if model.mode == modeChat && !model.isConnected {
			return model, model.connectCmd()
		}
		return model, nil
	}
	return model, nil
}

func (model *TUIModel) handleChatInput() (tea.Model, tea.Cmd) {
	trimmed := strings.TrimSpace(model.textInput.Value())
	if trimmed == "" {
		return model, nil
	}
	model.textInput.SetValue("")

	if strings.HasPrefix(trimmed, "/") {
		fields := strings.Fields(trimmed)
		switch strings.ToLower(fields[0]) {
		case "/quit", "/exit":
			model.closeConn()
			return model, tea.Quit
		case "/clear":
			if err := model.writeEvent(EventClearChat, nil); err != nil {
				return model, func() tea.Msg { return errorMsg(err) }
			}
			return model, nil
		case "/upload":
			if len(fields) < 2 {
				model.notices = append(model.notices, "Usage: /upload <path>")
				return model, nil
			}
			return model, model.uploadCmd(strings.TrimSpace(strings.TrimPrefix(trimmed, fields[0])))
		default:
			model.notices = append(model.notices, "Unknown command: "+fields[0])
			return model, nil
		}
	}

	if !model.isConnected {
		model.notices = append(model.notices, "Not connected yet.")
		return model, nil
	}
	if err := model.writeEvent(EventSendMessage, sendPayload{Content: trimmed}); err != nil {
		return model, func() tea.Msg { return errorMsg(err) }
	}
	return model, nil
}

// applyEvent folds a server event into the model.
func (model *TUIModel) applyEvent(event Event) {
	switch event.Event {
	case EventReceiveMessage:
		if len(event.Data) > 0 && event.Data[0] == '[' {
			// an empty list means the chat was cleared.
			model.messages = model.messages[:0]
			model.notices = append(model.notices, "Chat history cleared.")
			return
		}
		var message storage.Message
		if err := json.Unmarshal(event.Data, &message); err == nil {
			model.messages = append(model.messages, message)
		}
	case EventUserConnected, EventUserDisconnected:
		var names []string
		if err := json.Unmarshal(event.Data, &names); err == nil {
			model.online = names
		}
	case EventError:
		var payload errorPayload
		if err := json.Unmarshal(event.Data, &payload); err == nil {
			model.notices = append(model.notices, "Server error: "+payload.Message)
		}
	}
}

func (model *TUIModel) View() string {
	if model.mode == modeNamePrompt {
		sections := []string{
			appTitleStyle.Render("QuickChat"),
			hintStyle.Render("Enter the name others will see, then press Enter."),
		}
		if notices := model.renderNotices(); notices != "" {
			sections = append(sections, notices)
		}
		sections = append(sections, inputBoxStyle.Render(model.textInput.View()))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}
	return model.renderChatView()
}

func (model *TUIModel) renderChatView() string {
	header := chatHeaderStyle.Render(fmt.Sprintf("QuickChat · %s · %s", model.username, model.serverURL))

	var statusLine string
	switch {
	case model.connectionErr != nil:
		statusLine = errorStyle.Render("Connection error: " + model.connectionErr.Error())
	case model.isConnected:
		statusLine = connectedStyle.Render("Connected")
	default:
		statusLine = connectingStyle.Render("Connecting…")
	}

	onlineLine := onlineStyle.Render("Online: " + strings.Join(model.online, ", "))

	var messageLines []string
	for _, message := range model.messages {
		messageLines = append(messageLines, model.renderMessage(message))
	}
	if len(messageLines) == 0 {
		messageLines = append(messageLines, systemMessageStyle.Render("No messages yet. Say hi and start the conversation."))
	}

	sections := []string{header, statusLine, onlineLine}
	if notices := model.renderNotices(); notices != "" {
		sections = append(sections, notices)
	}
	sections = append(sections,
		messageBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, messageLines...)),
		inputBoxStyle.Render(model.textInput.View()),
		hintStyle.Render("Commands: /upload <path>, /clear, /quit"),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (model *TUIModel) renderMessage(message storage.Message) string {
	timestamp := timestampStyle.Render(fmt.Sprintf("[%s]", message.Timestamp.Local().Format("15:04:05")))

	nameStyle := usernameStyle
	if message.Sender == model.username {
		nameStyle = activeUserStyle
	}
	name := nameStyle.Render(message.Sender)

	body := message.Content
	if message.FileURL != nil {
		link := fileLinkStyle.Render(*message.FileURL)
		if body == "" {
			body = link
		} else {
			body = body + " " + link
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, timestamp, " ", name, ": ", body)
}

func (model *TUIModel) renderNotices() string {
	if len(model.notices) == 0 {
		return ""
	}
	styled := make([]string, 0, len(model.notices))
	for _, notice := range model.notices {
		styled = append(styled, systemMessageStyle.Render(notice))
	}
	return lipgloss.JoinVertical(lipgloss.Left, styled...)
}

// connectCmd dials the websocket URL and reports the outcome.
func (model *TUIModel) connectCmd() tea.Cmd {
	return func() tea.Msg {
		conn, _, err := websocket.DefaultDialer.Dial(model.serverURL, http.Header{})
		if err != nil {
			return connectFailedMsg{err: err}
		}
		model.websocketConn = conn
		return connectedMsg{}
	}
}

// readOnceCmd reads a single event frame; scheduled repeatedly to keep reading.
func (model *TUIModel) readOnceCmd() tea.Cmd {
	return func() tea.Msg {
		if model.websocketConn == nil {
			return errorMsg(fmt.Errorf("websocket not connected"))
		}
		for {
			messageType, payload, err := model.websocketConn.ReadMessage()
			if err != nil {
				return errorMsg(err)
			}
			if messageType != websocket.TextMessage {
				continue
			}
			var event Event
			if err := json.Unmarshal(payload, &event); err != nil {
				return errorMsg(fmt.Errorf("malformed server frame: %w", err))
			}
			return incomingMsg(event)
		}
	}
}

// historyCmd fetches the persisted message history over HTTP.
func (model *TUIModel) historyCmd() tea.Cmd {
	return func() tea.Msg {
		base, err := httpBaseFromWSURL(model.serverURL)
		if err != nil {
			return nil
		}
		messages, err := fetchHistory(base)
		if err != nil {
			return nil
		}
		return historyMsg(messages)
	}
}

// uploadCmd pushes a local file to /upload; on success the update loop sends
// a sendMessage event referencing the returned url.
func (model *TUIModel) uploadCmd(path string) tea.Cmd {
	return func() tea.Msg {
		if _, err := os.Stat(path); err != nil {
			return uploadFailedMsg{err: err}
		}
		base, err := httpBaseFromWSURL(model.serverURL)
		if err != nil {
			return uploadFailedMsg{err: err}
		}
		resp, err := uploadFile(base, path)
		if err != nil {
			return uploadFailedMsg{err: err}
		}
		return uploadedMsg(resp)
	}
}

func (model *TUIModel) scheduleReconnect() tea.Cmd {
	const retryDelay = 2 * time.Second
	return tea.Tick(retryDelay, func(time.Time) tea.Msg {
		return reconnectMsg{}
	})
}

func (model *TUIModel) writeEvent(name string, payload interface{}) error {
	if model.websocketConn == nil {
		return fmt.Errorf("websocket not connected")
	}
	frame, err := encodeEvent(name, payload)
	if err != nil {
		return err
	}
	model.writeMutex.Lock()
	defer model.writeMutex.Unlock()
	return model.websocketConn.WriteMessage(websocket.TextMessage, frame)
}

func (model *TUIModel) closeConn() {
	if model.websocketConn != nil {
		_ = model.websocketConn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = model.websocketConn.Close()
	}
}
