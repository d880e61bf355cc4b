package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"eventbot/internal/config"
	"eventbot/internal/domain"
	"eventbot/internal/service"
	"eventbot/internal/session"
)

type fakeAnswerer struct{ answer domain.Answer }

func (f fakeAnswerer) AnswerObserved(_ context.Context, _ string, observe service.Observer) domain.Answer {
	if observe != nil {
		observe(service.StageRetrieving)
		observe(service.StageGenerating)
		observe(service.StageDone)
	}
	return f.answer
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"\x1b[31mred\x1b[0m", "red"},
		{"bell\x07 and\rreturn", "bell andreturn"},
		{"line one\nline two\tend", "line one\nline two\tend"},
		{"\x1b]0;title\x07after", "after"},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderTranscriptShowsTimingsOnlyForAnswers(t *testing.T) {
	turns := []domain.Turn{
		{Role: domain.RoleAssistant, Answer: domain.Answer{Kind: domain.Greeting, Text: config.DefaultGreeting}},
		{Role: domain.RoleUser, Question: "When is lunch?"},
		{Role: domain.RoleAssistant, Answer: domain.Answer{
			Kind:    domain.TimedAnswer,
			Text:    "Lunch is at 1 PM.",
			Timings: domain.Timings{Retrieval: 120 * time.Millisecond, Generation: 1500 * time.Millisecond},
		}},
	}
	out := RenderTranscript(turns, 0)
	for _, want := range []string{"1. Agenda", "6. Details of lunch at the venue", "When is lunch?", "Lunch is at 1 PM.", "Vector DB: 0.12s | LLM: 1.50s"} {
		if !strings.Contains(out, want) {
			t.Errorf("transcript missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "Vector DB:") != 1 {
		t.Errorf("greeting must not carry timings:\n%s", out)
	}
}

func TestModelAsksAndRendersAnswer(t *testing.T) {
	sess := session.New(fakeAnswerer{answer: domain.Answer{
		Kind:    domain.TimedAnswer,
		Text:    "The keynote starts at 9:30 AM.",
		Timings: domain.Timings{Retrieval: time.Second, Generation: 2 * time.Second},
	}}, "Hello!")
	m := New(context.Background(), sess, "Event Bot", "")

	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	m = next.(Model)
	if !strings.Contains(m.View(), "Hello!") {
		t.Fatalf("greeting not rendered:\n%s", m.View())
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("When is the keynote?")})
	m = next.(Model)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if cmd == nil || !m.busy {
		t.Fatal("enter should start a query")
	}
	if !strings.Contains(m.View(), service.StageRetrieving.String()) {
		t.Errorf("status should show retrieval stage:\n%s", m.View())
	}

	stages := make(chan service.Stage, 3)
	msg := m.ask("When is the keynote?", stages)()
	next, _ = m.Update(msg)
	m = next.(Model)
	if m.busy {
		t.Error("model should be idle after the answer")
	}
	view := m.View()
	for _, want := range []string{"When is the keynote?", "The keynote starts at 9:30 AM.", "Vector DB: 1.00s | LLM: 2.00s"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if n := len(sess.Turns()); n != 3 {
		t.Errorf("expected 3 turns, got %d", n)
	}
}

func TestEnterIgnoredWhileBusyOrEmpty(t *testing.T) {
	sess := session.New(fakeAnswerer{}, "Hello!")
	m := New(context.Background(), sess, "Event Bot", "")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	m = next.(Model)

	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Error("empty input should not start a query")
	}
	m.busy = true
	m.input.SetValue("again")
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Error("enter while busy should be ignored")
	}
}
