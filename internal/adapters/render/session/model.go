package session

import (
	"errors"
	"io"

	"github.com/bnema/stellar-site/internal/application"
	tea "github.com/charmbracelet/bubbletea"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

type renderReadyMsg struct{}

type model struct {
	statuses []application.SessionStatus
	opts     RenderOptions
	styles   styles
	output   string
}

func newModel(statuses []application.SessionStatus, opts RenderOptions) model {
	return model{
		statuses: statuses,
		opts:     opts,
		styles:   newStyles(),
	}
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg {
		return renderReadyMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case renderReadyMsg:
		m.output = renderView(m.statuses, m.opts, m.styles)
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m model) View() string {
	return m.output
}

// Render lays out the stored sessions of one or more visitors.
func Render(statuses []application.SessionStatus, opts RenderOptions) (string, error) {
	p := tea.NewProgram(
		newModel(statuses, opts),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)

	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	rendered, ok := finalModel.(model)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}

	return rendered.View(), nil
}
