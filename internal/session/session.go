// Package session holds the conversation of one chat user.
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"eventbot/internal/domain"
	"eventbot/internal/service"
)

// Answerer produces assistant answers; *service.QueryService implements it.
type Answerer interface {
	AnswerObserved(ctx context.Context, question string, observe service.Observer) domain.Answer
}

// Session is an ordered, append-only transcript that starts with the
// greeting. It lives as long as the chat and is never persisted.
type Session struct {
	ID       string
	answerer Answerer

	mu    sync.Mutex
	turns []domain.Turn
}

func New(answerer Answerer, greeting string) *Session {
	return &Session{
		ID:       uuid.NewString(),
		answerer: answerer,
		turns: []domain.Turn{{
			Role:   domain.RoleAssistant,
			Answer: domain.Answer{Kind: domain.Greeting, Text: greeting},
		}},
	}
}

// Ask records the question, answers it and records the answer. A failed
// answer is recorded like any other; the session stays usable.
func (s *Session) Ask(ctx context.Context, question string, observe service.Observer) domain.Answer {
	s.append(domain.Turn{Role: domain.RoleUser, Question: question})
	ans := s.answerer.AnswerObserved(ctx, question, observe)
	s.append(domain.Turn{Role: domain.RoleAssistant, Answer: ans})
	return ans
}

// Turns returns a copy of the transcript.
func (s *Session) Turns() []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Turn(nil), s.turns...)
}

func (s *Session) append(t domain.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
}
