package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/dialogue-engine/pkg/queue"
	"github.com/jwebster45206/dialogue-engine/pkg/script"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
	"github.com/muesli/reflow/wordwrap"
)

const PlaceHolderText = "Enter to continue, a number to choose, /help for commands"

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config        *ConsoleConfig
	client        *http.Client
	session       *state.SessionState
	options       []script.Option
	over          bool
	speakerColors map[string]string
	notes         []string
	actionLog     []string
	actionTotal   int
	chatViewport  viewport.Model
	metaViewport  viewport.Model
	textarea      textarea.Model
	ready         bool
	width         int
	height        int
	err           error
	loading       bool

	// Script selection state
	showScriptModal bool
	scripts         []ScriptInfo
	selectedScript  int
	loadingScripts  bool

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int
}

type sessionOpMsg struct {
	resp *SessionResponse
	err  error
}

type sessionRefreshMsg struct {
	resp *SessionResponse
	err  error
}

type scriptsLoadedMsg struct {
	scripts []ScriptInfo
	err     error
}

type sessionCreatedMsg struct {
	resp *SessionResponse
	err  error
}

type speakerColorsMsg struct {
	colors map[string]string
}

type actionsMsg struct {
	actions []*queue.ActionEvent
	err     error
}

type varsSetMsg struct {
	session *state.SessionState
	err     error
}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		config:          cfg,
		client:          client,
		textarea:        ta,
		chatViewport:    chatVp,
		metaViewport:    metaVp,
		ready:           false,
		showScriptModal: true,
		loadingScripts:  true,
		selectedScript:  0,
	}
}

func (m *ConsoleUI) writeMetadata() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("SESSION") + "\n\n")

	if m.session == nil {
		content.WriteString("No session yet.\n")
		return content.String()
	}

	content.WriteString("Session ID:\n")
	content.WriteString(m.session.ID.String()[:8] + "...\n\n")

	content.WriteString("Script:\n")
	content.WriteString(m.session.Script + "\n\n")

	content.WriteString("Node:\n")
	if m.session.NodeTitle != "" {
		content.WriteString(fmt.Sprintf("%s (line %d)\n\n", m.session.NodeTitle, m.session.Cursor+1))
	} else {
		content.WriteString("none\n\n")
	}

	content.WriteString("Status:\n")
	content.WriteString(m.session.Status + "\n\n")

	if len(m.session.Vars) > 0 {
		content.WriteString("Variables:\n")
		for k, v := range m.session.Vars {
			content.WriteString(fmt.Sprintf("• %s: %s\n", k, v))
		}
	} else {
		content.WriteString("Variables:\nNone set\n")
	}
	content.WriteString("\n")

	content.WriteString(fmt.Sprintf("Actions dispatched: %d\n", m.actionTotal))
	for _, a := range m.actionLog {
		content.WriteString("• " + a + "\n")
	}
	content.WriteString("\n")

	content.WriteString("Commands:\n")
	content.WriteString("• Ctrl+C: Quit\n")
	content.WriteString("• Enter: Continue\n")
	content.WriteString("• 1..9: Choose option\n")
	content.WriteString("• Ctrl+Y: Copy transcript\n")
	content.WriteString("• /help: Help\n")
	content.WriteString("• /vars: Variables\n")
	content.WriteString("• /set: Set a variable\n")

	return content.String()
}

// writeChatContent rebuilds the chat panel from the session transcript for
// the current viewport width
func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6 // Account for left(3) + right(3) padding

	var content strings.Builder
	content.WriteString(titleStyle.Render("DIALOGUE ENGINE") + "\n\n")
	content.WriteString("Press Enter to advance the conversation.\n")
	content.WriteString("Type an option number to choose a reply.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", chatWidth-6)) + "\n\n")

	if m.session != nil {
		for _, entry := range m.session.Transcript {
			switch entry.Kind {
			case "line":
				if entry.Line != nil {
					content.WriteString(m.formatLine(entry.Line, chatWidth) + "\n\n")
				}
			case "choice":
				content.WriteString(userStyle.Render("You: ") + entry.Choice + "\n\n")
			case "ended":
				content.WriteString(separatorStyle.Render(strings.Repeat("─", chatWidth-6)) + "\n")
				content.WriteString(narratorStyle.Render("The conversation is over.") + "\n\n")
			}
		}
	}

	if !m.over && len(m.options) > 0 {
		for i, opt := range m.options {
			content.WriteString(userStyle.Render(fmt.Sprintf("  %d. %s", i+1, opt.Key)) + "\n")
		}
		content.WriteString(promptStyle.Render("Type a number and press Enter to choose.") + "\n\n")
	}

	for _, note := range m.notes {
		content.WriteString(note)
	}

	// If currently loading, add the progress bar
	if m.loading {
		content.WriteString(m.renderProgressBar())
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

// formatLine renders one displayed line with the speaker prefix styled and
// the text wrapped. Replacement variables are filled at display time, so
// earlier lines pick up later var changes on redraw.
func (m *ConsoleUI) formatLine(lv *state.LineView, width int) string {
	var vars map[string]string
	if m.session != nil {
		vars = m.session.Vars
	}
	text := script.ReplaceVars(lv.Line.Text, vars)

	if text == "" {
		return promptStyle.Render("(choose a reply)")
	}

	if lv.Line.Speaker == "" {
		return narratorStyle.Render(wordwrap.String(text, width))
	}

	prefix := lv.Line.Speaker + ": "
	wrapped := wordwrap.String(text, width-len(prefix))
	return m.speakerStyleFor(lv.Line.Speaker).Render(lv.Line.Speaker+":") + " " + wrapped
}

// speakerStyleFor returns the style for a speaker prefix, using the color
// hint from the speaker roster when one matches the display name.
func (m *ConsoleUI) speakerStyleFor(name string) lipgloss.Style {
	if color, ok := m.speakerColors[name]; ok {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
	}
	for n, color := range m.speakerColors {
		if strings.EqualFold(n, name) {
			return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
		}
	}
	return speakerStyle
}

// plainTranscript renders the transcript without styling for the clipboard.
func (m *ConsoleUI) plainTranscript() string {
	if m.session == nil {
		return ""
	}
	var b strings.Builder
	for _, entry := range m.session.Transcript {
		switch entry.Kind {
		case "line":
			if entry.Line == nil {
				continue
			}
			text := script.ReplaceVars(entry.Line.Line.Text, m.session.Vars)
			if entry.Line.Line.Speaker != "" {
				b.WriteString(entry.Line.Line.Speaker + ": " + text + "\n")
			} else {
				b.WriteString(text + "\n")
			}
		case "choice":
			b.WriteString("> " + entry.Choice + "\n")
		case "ended":
			b.WriteString("(conversation over)\n")
		}
	}
	return b.String()
}

func (m ConsoleUI) Init() tea.Cmd {
	if m.showScriptModal {
		return tea.Batch(m.loadScripts(), m.loadColors())
	}
	return textarea.Blink
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Handle script modal first
	if m.showScriptModal {
		return m.updateScriptModal(msg)
	}

	// Handle quit modal second
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		// Pass all mouse events to the chat viewport for scrolling and text
		// selection; the component ignores events outside its bounds
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)

		m.textarea, tiCmd = m.textarea.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)

		return m, tea.Batch(tiCmd, vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		chatWidth := int(float64(m.width)*0.75) - 4
		metaWidth := m.width - chatWidth - 6

		// Update viewport dimensions
		m.chatViewport.Width = chatWidth - 2
		m.chatViewport.Height = m.height - 7
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.textarea.SetWidth(chatWidth - 4)

		if !m.ready {
			m.ready = true
		}
		// Reformat all content for the new width
		m.writeChatContent()
		m.metaViewport.SetContent(m.writeMetadata())

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil

		case tea.KeyCtrlY:
			if err := clipboard.WriteAll(m.plainTranscript()); err != nil {
				m.notes = append(m.notes, errorStyle.Render("Copy failed: "+err.Error())+"\n\n")
			} else {
				m.notes = append(m.notes, loadingStyle.Render("Transcript copied to clipboard.")+"\n\n")
			}
			m.writeChatContent()
			return m, nil

		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}

			input := strings.TrimSpace(m.textarea.Value())

			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}

			if m.over {
				return m, nil
			}

			if input == "" {
				m.textarea.Reset()
				m.loading = true
				m.progressTick = 0
				m.notes = nil
				m.writeChatContent()
				return m, tea.Batch(m.continueConversation(), progressTick())
			}

			destination, ok := m.resolveChoice(input)
			if !ok {
				m.textarea.Reset()
				m.notes = append(m.notes, errorStyle.Render("No such option: "+input)+"\n\n")
				m.writeChatContent()
				return m, nil
			}

			m.textarea.Reset()
			m.loading = true
			m.progressTick = 0
			m.notes = nil
			m.writeChatContent()
			return m, tea.Batch(m.chooseDestination(destination), progressTick())
		}

	case sessionOpMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			m.notes = append(m.notes, errorStyle.Render("Error: "+msg.err.Error())+"\n\n")
			m.writeChatContent()
			return m, nil
		}
		m.applySessionResponse(msg.resp)
		m.writeChatContent()
		m.metaViewport.SetContent(m.writeMetadata())
		return m, m.fetchActions()

	case sessionRefreshMsg:
		if msg.err == nil && msg.resp != nil && msg.resp.Session != nil {
			m.session = msg.resp.Session
		}
		m.notes = append(m.notes, m.renderVarsNote())
		m.writeChatContent()
		m.metaViewport.SetContent(m.writeMetadata())

	case varsSetMsg:
		if msg.err != nil {
			m.notes = append(m.notes, errorStyle.Render("Error: "+msg.err.Error())+"\n\n")
		} else {
			if m.session != nil && msg.session != nil {
				m.session.Vars = msg.session.Vars
			}
			m.metaViewport.SetContent(m.writeMetadata())
		}
		m.writeChatContent()

	case actionsMsg:
		if msg.err == nil && len(msg.actions) > 0 {
			for _, a := range msg.actions {
				m.actionTotal++
				note := a.Tag
				if a.Param != "" {
					note = fmt.Sprintf("%s(%s)", a.Tag, a.Param)
				}
				m.actionLog = append(m.actionLog, note)
			}
			if len(m.actionLog) > 5 {
				m.actionLog = m.actionLog[len(m.actionLog)-5:]
			}
			m.metaViewport.SetContent(m.writeMetadata())
		}

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()
			return m, progressTick()
		}
	}

	// Update components for non-mouse events
	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

// resolveChoice maps typed input to an option destination. Numbers index
// the option list; anything else matches option labels case-insensitively.
func (m ConsoleUI) resolveChoice(input string) (string, bool) {
	if n, err := strconv.Atoi(input); err == nil {
		if n >= 1 && n <= len(m.options) {
			return m.options[n-1].Destination, true
		}
		return "", false
	}
	for _, opt := range m.options {
		if strings.EqualFold(opt.Key, input) {
			return opt.Destination, true
		}
	}
	return "", false
}

func (m *ConsoleUI) applySessionResponse(resp *SessionResponse) {
	m.session = resp.Session
	m.options = nil
	if resp.Line != nil {
		m.options = resp.Line.Line.Options
	}
	if resp.Ended || (resp.Session != nil && resp.Session.Status == state.StatusEnded) {
		m.over = true
	}
}

func (m *ConsoleUI) renderVarsNote() string {
	var varsText strings.Builder
	varsText.WriteString(titleStyle.Render("Variables:") + "\n")
	if m.session == nil || len(m.session.Vars) == 0 {
		varsText.WriteString("No variables are set.\n")
	} else {
		for k, v := range m.session.Vars {
			varsText.WriteString(fmt.Sprintf("• %s = %s\n", k, v))
		}
	}
	varsText.WriteString("\n")
	return varsText.String()
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(input)
	cmd := strings.ToLower(fields[0])

	switch cmd {
	case "/help":
		helpText := `
Commands:
• /help - Show this help
• /vars - Show session variables
• /set <name> <value> - Set a replacement variable
• Ctrl+Y - Copy the transcript
• Ctrl+C - Quit

How to play:
• Press Enter to advance the conversation
• Type an option number (or its label) to choose a reply
• Variables fill {placeholders} in displayed lines
`
		m.notes = append(m.notes, titleStyle.Render("Help:")+helpText+"\n")
		m.writeChatContent()

	case "/vars":
		m.textarea.Reset()
		if m.session == nil {
			m.notes = append(m.notes, m.renderVarsNote())
			m.writeChatContent()
			return m, nil
		}
		return m, m.refreshSession()

	case "/set":
		if len(fields) < 3 {
			m.notes = append(m.notes, errorStyle.Render("Usage: /set <name> <value>")+"\n\n")
			m.writeChatContent()
			break
		}
		name := fields[1]
		value := strings.Join(fields[2:], " ")
		m.textarea.Reset()
		return m, m.setVar(name, value)
	}

	m.textarea.Reset()
	return m, nil
}

func (m ConsoleUI) continueConversation() tea.Cmd {
	return func() tea.Msg {
		resp, err := continueSession(m.client, m.config.APIBaseURL, m.session.ID)
		return sessionOpMsg{resp, err}
	}
}

func (m ConsoleUI) chooseDestination(destination string) tea.Cmd {
	return func() tea.Msg {
		resp, err := chooseOption(m.client, m.config.APIBaseURL, m.session.ID, destination)
		return sessionOpMsg{resp, err}
	}
}

func (m ConsoleUI) refreshSession() tea.Cmd {
	return func() tea.Msg {
		resp, err := getSession(m.client, m.config.APIBaseURL, m.session.ID)
		return sessionRefreshMsg{resp, err}
	}
}

func (m ConsoleUI) setVar(name, value string) tea.Cmd {
	return func() tea.Msg {
		st, err := putVars(m.client, m.config.APIBaseURL, m.session.ID, map[string]string{name: value})
		return varsSetMsg{st, err}
	}
}

func (m ConsoleUI) fetchActions() tea.Cmd {
	return func() tea.Msg {
		if m.session == nil {
			return actionsMsg{nil, nil}
		}
		actions, err := drainActions(m.client, m.config.APIBaseURL, m.session.ID)
		return actionsMsg{actions, err}
	}
}

func (m ConsoleUI) loadScripts() tea.Cmd {
	return func() tea.Msg {
		files, err := listScripts(m.client, m.config.APIBaseURL)
		if err != nil {
			return scriptsLoadedMsg{nil, err}
		}
		infos := make([]ScriptInfo, 0, len(files))
		for _, f := range files {
			info, err := getScriptSummary(m.client, m.config.APIBaseURL, f)
			if err != nil {
				infos = append(infos, ScriptInfo{Script: f})
				continue
			}
			infos = append(infos, *info)
		}
		return scriptsLoadedMsg{infos, nil}
	}
}

func (m ConsoleUI) loadColors() tea.Cmd {
	return func() tea.Msg {
		colors, err := loadSpeakerColors(m.client, m.config.APIBaseURL)
		if err != nil {
			return speakerColorsMsg{nil}
		}
		return speakerColorsMsg{colors}
	}
}

func (m ConsoleUI) createSessionFromScript(scriptFile string) tea.Cmd {
	return func() tea.Msg {
		resp, err := createSession(m.client, m.config.APIBaseURL, scriptFile)
		return sessionCreatedMsg{resp, err}
	}
}

func (m ConsoleUI) updateScriptModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case scriptsLoadedMsg:
		m.loadingScripts = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.scripts = msg.scripts
		}

	case speakerColorsMsg:
		m.speakerColors = msg.colors

	case sessionCreatedMsg:
		// Regardless of outcome, we're no longer in the create loading phase
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.applySessionResponse(msg.resp)
		m.showScriptModal = false
		// Set up viewport dimensions now that we have a session
		if m.width > 0 && m.height > 0 {
			chatWidth := int(float64(m.width)*0.75) - 4
			metaWidth := m.width - chatWidth - 6
			m.chatViewport.Width = chatWidth - 2
			m.chatViewport.Height = m.height - 7
			m.metaViewport.Width = metaWidth - 2
			m.metaViewport.Height = m.height - 4
			m.textarea.SetWidth(chatWidth - 4)
		}
		m.writeChatContent()
		m.metaViewport.SetContent(m.writeMetadata())
		m.textarea.Focus() // Ensure textarea gets focus when modal closes
		m.ready = true
		return m, tea.Batch(textarea.Blink, m.fetchActions())

	case tea.KeyMsg:
		if m.loadingScripts {
			if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
				return m, tea.Quit
			}
			return m, nil
		}

		if m.err != nil {
			if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
				return m, tea.Quit
			}
			return m, nil
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyUp:
			if m.selectedScript > 0 {
				m.selectedScript--
			}
		case tea.KeyDown:
			if m.selectedScript < len(m.scripts)-1 {
				m.selectedScript++
			}
		case tea.KeyEnter:
			if len(m.scripts) > 0 {
				scriptFile := m.scripts[m.selectedScript].Script
				m.loading = true
				return m, m.createSessionFromScript(scriptFile)
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m, m.endAndQuit()
		default:
			switch msg.String() {
			case "y", "Y":
				return m, m.endAndQuit()
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

// endAndQuit finishes the session server-side before quitting, so the
// stored session is cleaned up rather than left to expire.
func (m ConsoleUI) endAndQuit() tea.Cmd {
	return func() tea.Msg {
		if m.session != nil {
			_ = endSession(m.client, m.config.APIBaseURL, m.session.ID)
		}
		return tea.Quit()
	}
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("End Conversation?"))
	content.WriteString("\n\n")
	content.WriteString("Quitting finishes the session and deletes it.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	// Create the modal
	modal := modalStyle.Width(50).Render(content.String())

	// Center the modal
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderScriptModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	if m.loadingScripts {
		content.WriteString(modalTitleStyle.Render("Loading Scripts..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Please wait while we fetch available scripts..."))
	} else if m.err != nil {
		content.WriteString(modalTitleStyle.Render("Error"))
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(fmt.Sprintf("Failed to load scripts: %v", m.err)))
		content.WriteString("\n\n")
		content.WriteString("Press Ctrl+C to exit")
	} else if m.loading {
		content.WriteString(modalTitleStyle.Render("Starting Conversation..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Setting up your session..."))
	} else {
		content.WriteString(modalTitleStyle.Render("Select a Script"))
		content.WriteString("\n\n")

		for i, info := range m.scripts {
			label := info.Script
			if info.NodeCount > 0 {
				label = fmt.Sprintf("%s (%d nodes, %d lines)", info.Script, info.NodeCount, info.LineCount)
			}
			if len(info.Issues) > 0 {
				label += " ⚠"
			}
			if i == m.selectedScript {
				content.WriteString(modalSelectedItemStyle.Render("▶ " + label))
			} else {
				content.WriteString(modalItemStyle.Render("  " + label))
			}
			content.WriteString("\n")
		}

		content.WriteString("\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))
	}

	// Create the modal
	modal := modalStyle.Width(60).Render(content.String())

	// Center the modal
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showScriptModal {
		return m.renderScriptModal()
	}

	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"", // Add empty line for spacing
			separatorStyle.Render(strings.Repeat("─", chatWidth-4)),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	// Usable content width: viewport width minus padding used elsewhere
	usable := m.chatViewport.Width - 6
	if usable <= 0 {
		usable = 30 // fallback before sizing
	}

	// Clamp bar width to a sensible range
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓") // Blinking effect at the progress point
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
