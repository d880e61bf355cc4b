package domain

import (
	"fmt"
	"time"
)

// AnswerKind tags the variant of an assistant answer.
type AnswerKind int

const (
	Greeting AnswerKind = iota
	TimedAnswer
	ErrorAnswer
)

// Timings holds the wall-clock duration of each query phase.
type Timings struct {
	Retrieval  time.Duration
	Generation time.Duration
}

// Answer is the content of an assistant turn. Greetings carry no timings;
// timed and error answers always do, even when a phase never ran.
type Answer struct {
	Kind    AnswerKind
	Text    string
	Timings Timings
}

// HasTimings reports whether the answer came out of the query pipeline.
func (a Answer) HasTimings() bool { return a.Kind != Greeting }

// TimingLine renders the timings the way the chat surface shows them.
func (a Answer) TimingLine() string {
	if !a.HasTimings() {
		return ""
	}
	return fmt.Sprintf("Vector DB: %.2fs | LLM: %.2fs",
		a.Timings.Retrieval.Seconds(), a.Timings.Generation.Seconds())
}

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry in a session transcript.
type Turn struct {
	Role     Role
	Question string // set for user turns
	Answer   Answer // set for assistant turns
}
