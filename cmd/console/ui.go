package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"adventure-engine/pkg/story"
)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config *ConsoleConfig
	client *http.Client

	sessionID  string
	storySlug  string
	storyTitle string
	language   string

	history   []story.Message
	current   *story.Step
	stepNo    int
	preloaded map[int]*story.Step

	viewport viewport.Model
	ready    bool
	width    int
	height   int
	err      error
	loading  bool
	copied   bool

	// Story selection state
	showStoryModal bool
	stories        []homepageItem
	selectedStory  int
	loadingStories bool

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int
}

type storiesLoadedMsg struct {
	stories []homepageItem
	err     error
}

type stepMsg struct {
	response *stepResponse
	choice   int
	err      error
}

type preloadMsg struct {
	response *preloadResponse
	err      error
}

type progressTickMsg struct{}

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	optionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	preloadedMarkStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("114")) // light green

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	separatorStyle = lipgloss.NewStyle().
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

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client) ConsoleUI {
	vp := viewport.New(60, 20)
	vp.MouseWheelEnabled = true

	return ConsoleUI{
		config:         cfg,
		client:         client,
		language:       cfg.Language,
		viewport:       vp,
		showStoryModal: true,
		loadingStories: true,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return m.loadStories()
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showStoryModal {
		return m.updateStoryModal(msg)
	}
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var vpCmd tea.Cmd

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.viewport, vpCmd = m.viewport.Update(msg)
		return m, vpCmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = m.width - 6
		m.viewport.Height = m.height - 4
		m.ready = true
		m.writeStoryContent()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.showQuitModal = true
			return m, nil
		case "1", "2", "3":
			if m.loading || m.current == nil {
				return m, nil
			}
			choice := int(msg.String()[0] - '0')
			return m.choose(choice)
		case "r":
			if m.loading {
				return m, nil
			}
			m.loading = true
			m.progressTick = 0
			m.err = nil
			return m, tea.Batch(m.startStory(m.storySlug, m.storyTitle), progressTick())
		case "n":
			m.showStoryModal = true
			m.loadingStories = true
			m.err = nil
			m.current = nil
			m.history = nil
			m.preloaded = nil
			return m, m.loadStories()
		case "c":
			m.copied = clipboard.WriteAll(m.transcript()) == nil
			m.writeStoryContent()
			return m, nil
		}

	case stepMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			m.writeStoryContent()
			return m, nil
		}
		m.err = nil
		m.copied = false
		m.applyStep(msg.response, msg.choice)
		m.writeStoryContent()
		return m, m.preloadNext()

	case preloadMsg:
		if msg.err == nil && msg.response != nil {
			m.preloaded = msg.response.PreloadedSteps
			m.writeStoryContent()
		}

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeStoryContent()
			return m, progressTick()
		}
	}

	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, vpCmd
}

// choose advances the story. A preloaded step is applied instantly with no
// network call; otherwise the choice goes to the API.
func (m ConsoleUI) choose(choice int) (tea.Model, tea.Cmd) {
	if step, ok := m.preloaded[choice]; ok && step != nil {
		raw, err := json.Marshal(step)
		if err == nil {
			m.history = append(m.history,
				story.ChoiceMessage(choice),
				story.Message{Role: story.RoleAssistant, Content: string(raw)})
			m.current = step
			m.stepNo++
			m.preloaded = nil
			m.copied = false
			m.writeStoryContent()
			return m, m.preloadNext()
		}
	}

	m.loading = true
	m.progressTick = 0
	return m, tea.Batch(m.sendChoice(choice), progressTick())
}

// applyStep folds a step response into the client-held conversation. The
// short continuation branch returns an empty history; in that case the
// transcript is extended locally so replay and preload keep working.
func (m *ConsoleUI) applyStep(resp *stepResponse, choice int) {
	if choice > 0 && len(resp.ConversationHistory) == 0 {
		raw, err := json.Marshal(resp.CurrentStep)
		if err == nil {
			m.history = append(m.history,
				story.ChoiceMessage(choice),
				story.Message{Role: story.RoleAssistant, Content: string(raw)})
		}
	} else {
		m.history = resp.ConversationHistory
	}

	m.sessionID = resp.SessionID
	m.current = resp.CurrentStep
	m.stepNo = resp.Step
	m.preloaded = nil
}

// transcript renders the play-through as plain text for the clipboard.
func (m ConsoleUI) transcript() string {
	var sb strings.Builder
	sb.WriteString(m.storyTitle + "\n\n")
	for _, msg := range m.history {
		if msg.Role == story.RoleAssistant {
			if step, err := story.ParseStep(msg.Content); err == nil {
				sb.WriteString(step.Description + "\n\n")
			}
		} else if strings.HasPrefix(msg.Content, story.ChoicePrefix) {
			sb.WriteString("> " + msg.Content + "\n\n")
		}
	}
	return sb.String()
}

// writeStoryContent rebuilds the viewport for the current width.
func (m *ConsoleUI) writeStoryContent() {
	width := m.viewport.Width - 2
	if width < 20 {
		width = 20
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render(strings.ToUpper(m.storyTitle)) + "\n")
	content.WriteString(promptStyle.Render(fmt.Sprintf("language: %s  step: %d", story.LanguageName(m.language), m.stepNo)) + "\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")

	for _, msg := range m.history {
		switch msg.Role {
		case story.RoleAssistant:
			if step, err := story.ParseStep(msg.Content); err == nil {
				content.WriteString(narratorStyle.Render(wordwrap.String(step.Description, width)) + "\n\n")
			}
		case story.RoleUser:
			if strings.HasPrefix(msg.Content, story.ChoicePrefix) {
				content.WriteString(choiceStyle.Render("> "+msg.Content) + "\n\n")
			}
		}
	}

	if m.loading {
		content.WriteString(m.renderProgressBar() + "\n")
	} else if m.current != nil {
		for i, opt := range m.current.Options {
			marker := "  "
			if _, ok := m.preloaded[i+1]; ok {
				marker = preloadedMarkStyle.Render("● ")
			}
			line := fmt.Sprintf("%d. %s", i+1, opt)
			content.WriteString(marker + optionStyle.Render(wordwrap.String(line, width-2)) + "\n")
		}
		content.WriteString("\n")
		help := "Press 1-3 to choose • r restart • n new story • c copy transcript • q quit"
		if m.copied {
			help = "Transcript copied to clipboard"
		}
		content.WriteString(promptStyle.Render(help) + "\n")
	}

	if m.err != nil {
		content.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n")
	}

	m.viewport.SetContent(content.String())
	m.viewport.GotoBottom()
}

func (m ConsoleUI) startStory(slug, title string) tea.Cmd {
	return func() tea.Msg {
		resp, err := requestStep(m.client, m.config.APIBaseURL, stepRequest{
			SessionID:    m.sessionID,
			StoryName:    slug,
			Language:     m.language,
			ForceRestart: true,
		})
		return stepMsg{response: resp, err: err}
	}
}

func (m ConsoleUI) sendChoice(choice int) tea.Cmd {
	history := m.history
	return func() tea.Msg {
		resp, err := requestStep(m.client, m.config.APIBaseURL, stepRequest{
			SessionID:           m.sessionID,
			StoryName:           m.storySlug,
			Language:            m.language,
			Choice:              choice,
			ConversationHistory: history,
		})
		return stepMsg{response: resp, choice: choice, err: err}
	}
}

func (m ConsoleUI) preloadNext() tea.Cmd {
	history := m.history
	return func() tea.Msg {
		resp, err := requestPreload(m.client, m.config.APIBaseURL, preloadRequest{
			SessionID:           m.sessionID,
			StoryName:           m.storySlug,
			Language:            m.language,
			ConversationHistory: history,
			Choices:             []int{1, 2, 3},
		})
		return preloadMsg{response: resp, err: err}
	}
}

func (m ConsoleUI) loadStories() tea.Cmd {
	return func() tea.Msg {
		stories, err := listStories(m.client, m.config.APIBaseURL, m.language)
		return storiesLoadedMsg{stories, err}
	}
}

func (m ConsoleUI) updateStoryModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = m.width - 6
		m.viewport.Height = m.height - 4

	case storiesLoadedMsg:
		m.loadingStories = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.stories = msg.stories
			if m.selectedStory >= len(m.stories) {
				m.selectedStory = 0
			}
		}

	case stepMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.showStoryModal = false
		m.applyStep(msg.response, 0)
		m.writeStoryContent()
		return m, m.preloadNext()

	case tea.KeyMsg:
		if m.loadingStories || m.loading {
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		}

		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.showQuitModal = true
			return m, nil
		case "up":
			if m.selectedStory > 0 {
				m.selectedStory--
			}
		case "down":
			if m.selectedStory < len(m.stories)-1 {
				m.selectedStory++
			}
		case "l":
			m.language = nextLanguage(m.language)
			m.loadingStories = true
			return m, m.loadStories()
		case "enter":
			if len(m.stories) > 0 {
				selected := m.stories[m.selectedStory]
				m.storySlug = selected.Slug
				m.storyTitle = selected.Title
				m.loading = true
				m.progressTick = 0
				return m, m.startStory(selected.Slug, selected.Title)
			}
		}
	}

	return m, nil
}

func nextLanguage(current string) string {
	for i, code := range story.SupportedLanguages {
		if code == current {
			return story.SupportedLanguages[(i+1)%len(story.SupportedLanguages)]
		}
	}
	return story.DefaultLanguage
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "y", "Y", "enter":
			return m, tea.Quit
		case "n", "N", "esc":
			m.showQuitModal = false
			return m, nil
		}
	}

	return m, nil
}

func (m ConsoleUI) renderStoryModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	switch {
	case m.loadingStories:
		content.WriteString(modalTitleStyle.Render("Loading Stories..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Please wait while we fetch available stories..."))
	case m.err != nil:
		content.WriteString(modalTitleStyle.Render("Error"))
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(fmt.Sprintf("Failed to load stories: %v", m.err)))
		content.WriteString("\n\n")
		content.WriteString("Press Ctrl+C to exit")
	case m.loading:
		content.WriteString(modalTitleStyle.Render("Starting Story..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Setting up your adventure..."))
	default:
		content.WriteString(modalTitleStyle.Render("Select a Story"))
		content.WriteString("\n")
		content.WriteString(promptStyle.Render(fmt.Sprintf("language: %s", story.LanguageName(m.language))))
		content.WriteString("\n\n")

		if len(m.stories) == 0 {
			content.WriteString("No stories available.")
			content.WriteString("\n")
		}
		for i, s := range m.stories {
			label := s.Title
			if s.Description != "" {
				label = fmt.Sprintf("%s — %s", s.Title, s.Description)
			}
			if i == m.selectedStory {
				content.WriteString(modalSelectedItemStyle.Render(fmt.Sprintf("▶ %s", label)))
			} else {
				content.WriteString(modalItemStyle.Render(fmt.Sprintf("  %s", label)))
			}
			content.WriteString("\n")
		}

		content.WriteString("\n")
		content.WriteString(promptStyle.Render("↑/↓ navigate • Enter select • l language • Ctrl+C exit"))
	}

	modal := modalStyle.Width(64).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("Are you sure you want to leave your adventure?")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showStoryModal {
		return m.renderStoryModal()
	}
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	panel := lipgloss.NewStyle().
		PaddingTop(1).
		PaddingLeft(3).
		PaddingRight(3).
		Width(m.width).
		Height(m.height - 1).
		Render(m.viewport.View())
	return panel
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	usable := m.viewport.Width - 6
	if usable <= 0 {
		usable = 30
	}
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
			bar.WriteString("▓")
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
