package main

import (
	"fmt"
	"io"

	"github.com/ashureev/handoff-chat/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

var (
	userLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	assistantLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("42"))

	warningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	infoStyle = lipgloss.NewStyle().
			Faint(true)
)

type renderer struct {
	w     io.Writer
	plain bool
}

func newRenderer(w io.Writer, plain bool) *renderer {
	return &renderer{w: w, plain: plain}
}

func (r *renderer) style(s lipgloss.Style, text string) string {
	if r.plain {
		return text
	}
	return s.Render(text)
}

// Transcript prints the visible messages of a conversation.
func (r *renderer) Transcript(msgs []domain.Message) {
	for _, m := range msgs {
		r.Message(m)
	}
}

func (r *renderer) Message(m domain.Message) {
	label := "Assistant"
	style := assistantLabelStyle
	if m.Role == domain.RoleUser {
		label = "You"
		style = userLabelStyle
	}
	fmt.Fprintf(r.w, "%s %s\n", r.style(style, label+":"), m.Content)
}

func (r *renderer) Warning(text string) {
	if r.plain {
		fmt.Fprintf(r.w, "! %s\n", text)
		return
	}
	fmt.Fprintln(r.w, warningStyle.Render(text))
}

func (r *renderer) Error(text string) {
	fmt.Fprintln(r.w, r.style(errorStyle, text))
}

func (r *renderer) Info(text string) {
	fmt.Fprintln(r.w, r.style(infoStyle, text))
}

func (r *renderer) Prompt() {
	fmt.Fprint(r.w, r.style(userLabelStyle, "> "))
}

func (r *renderer) Newline() {
	fmt.Fprintln(r.w)
}
