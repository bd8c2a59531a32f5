package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"book-companion/internal/client"
	"book-companion/internal/domain"
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("141")).Bold(true)
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	answerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).PaddingLeft(2)
)

// printer writes each new turn once and a waiting marker while a reply is pending.
type printer struct {
	out     io.Writer
	printed int
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out}
}

func (p *printer) welcome() {
	fmt.Fprintln(p.out, titleStyle.Render("Amity Profess - your book companion"))
	fmt.Fprintln(p.out, hintStyle.Render("Ask me anything about the book. Try one of these (type its number):"))
	for i, q := range client.ExampleQuestions {
		fmt.Fprintf(p.out, "  %d. %s\n", i+1, q)
	}
	fmt.Fprintln(p.out)
}

func (p *printer) render(s client.Snapshot) {
	for ; p.printed < len(s.Turns); p.printed++ {
		t := s.Turns[p.printed]
		if t.Role == domain.RoleUser {
			fmt.Fprintf(p.out, "%s %s\n", userStyle.Render("you>"), t.Content)
			continue
		}
		fmt.Fprintf(p.out, "\n%s\n\n", answerStyle.Render(t.Content))
	}
	if s.State == client.StateAwaiting {
		fmt.Fprintln(p.out, hintStyle.Render("thinking..."))
	}
}
