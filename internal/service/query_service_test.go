package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"eventbot/internal/config"
	"eventbot/internal/domain"
	embopenai "eventbot/internal/embedding/openai"
	genopenai "eventbot/internal/generator/openai"
	"eventbot/internal/postprocess"
	"eventbot/internal/prompt"
	"eventbot/internal/provider"
	"eventbot/internal/provider/providertest"
	"eventbot/internal/retriever"
	"eventbot/internal/vectorstore"
	"eventbot/internal/vectorstore/memory"
)

const decline = "I'm sorry, I don't have that specific information about the event."

var eventChunks = []string{
	"Lunch will be provided to all participants in the Cafeteria on the 5th floor between 1:00 PM and 2:00 PM IST.",
	"Washrooms are located next to the elevators on every floor.",
	"The agenda starts with registration at 9:00 AM followed by the keynote.",
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func clients(t *testing.T, srv *providertest.Server) (*embopenai.Client, *genopenai.Client) {
	t.Helper()
	p := provider.New(config.ProviderConfig{BaseURL: srv.BaseURL(), TimeoutSecs: 5}, "test-key")
	emb, err := embopenai.NewClient(p, embopenai.Config{Model: "embed-test", BatchSize: 16}, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	gen, err := genopenai.NewClient(p, genopenai.Config{Model: "chat-test"})
	if err != nil {
		t.Fatal(err)
	}
	return emb, gen
}

func eventIndex(t *testing.T, texts []string) *memory.Storage {
	t.Helper()
	s := memory.NewStorage()
	recs := make([]domain.IndexRecord, len(texts))
	for i, text := range texts {
		recs[i] = domain.IndexRecord{
			Chunk:  domain.Chunk{Source: "event.pdf", Seq: i, Part: i, Text: text},
			Vector: providertest.HashEmbedding(text),
		}
	}
	if err := s.BulkLoad(context.Background(), recs, domain.IndexMeta{EmbeddingModel: "embed-test"}); err != nil {
		t.Fatal(err)
	}
	return s
}

func newQuery(t *testing.T, srv *providertest.Server, idx vectorstore.Index) *QueryService {
	t.Helper()
	emb, gen := clients(t, srv)
	pb, err := prompt.Load("")
	if err != nil {
		t.Fatal(err)
	}
	post, err := postprocess.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return NewQueryService(retriever.New(emb, idx, 5, ""), pb, gen, post, quietLogger())
}

func TestLunchQuestionEndToEnd(t *testing.T) {
	srv := providertest.NewServer(t)
	srv.ChatFunc = func(string) string {
		return "Lunch will be provided to all participants in the Cafeteria on the 5th floor from 1:00 PM to 2:00 PM. " +
			"Make sure you have finished check-in, and a volunteer can give you directions."
	}
	q := newQuery(t, srv, eventIndex(t, eventChunks))

	ans := q.Answer(context.Background(), "Where is lunch served?")
	if ans.Kind != domain.TimedAnswer {
		t.Fatalf("expected timed answer, got %v: %s", ans.Kind, ans.Text)
	}
	want := "Regarding lunch:\n\n" +
		"• Lunch will be provided to all participants who have checked in at the venue.\n" +
		"• It will be served in the Cafeteria on the 5th floor between 1:00 PM and 2:00 PM IST.\n" +
		"• Please ensure you've completed the check-in process at the registration desk to be eligible.\n" +
		"• Feel free to ask a volunteer if you need directions to the cafeteria."
	if ans.Text != want {
		t.Errorf("unexpected answer:\n%s", ans.Text)
	}
	if ans.Timings.Retrieval <= 0 || ans.Timings.Generation <= 0 {
		t.Errorf("timings not recorded: %+v", ans.Timings)
	}

	prompts := srv.Prompts()
	if len(prompts) != 1 {
		t.Fatalf("expected one generation call, got %d", len(prompts))
	}
	if !strings.Contains(prompts[0], eventChunks[0]) {
		t.Error("lunch chunk missing from prompt context")
	}
	if !strings.Contains(prompts[0], "Where is lunch served?") {
		t.Error("question missing from prompt")
	}
	if strings.Count(prompts[0], retriever.DefaultSeparator) != len(eventChunks)-1 {
		t.Error("chunks not joined with the separator")
	}
}

func TestEmptyContextDeclinePassesThrough(t *testing.T) {
	srv := providertest.NewServer(t)
	srv.ChatFunc = func(string) string { return decline }
	q := newQuery(t, srv, memory.NewStorage())

	ans := q.Answer(context.Background(), "What is the wifi password?")
	if ans.Kind != domain.TimedAnswer || ans.Text != decline {
		t.Fatalf("decline altered: %v %q", ans.Kind, ans.Text)
	}
	if p := srv.Prompts()[0]; !strings.Contains(p, "Context information about the event:\n\n--------") {
		t.Error("expected an empty context block")
	}
}

func TestEmbeddingFailureBecomesErrorAnswer(t *testing.T) {
	srv := providertest.NewServer(t)
	srv.EmbedStatus = http.StatusUnauthorized
	q := newQuery(t, srv, eventIndex(t, eventChunks))

	ans := q.Answer(context.Background(), "When is lunch?")
	if ans.Kind != domain.ErrorAnswer {
		t.Fatalf("expected error answer, got %v", ans.Kind)
	}
	if !strings.HasPrefix(ans.Text, "An error occurred: ") || !strings.Contains(ans.Text, "authentication failed") {
		t.Errorf("unexpected error text %q", ans.Text)
	}
	if ans.Timings.Generation != 0 {
		t.Error("generation never ran")
	}
	if _, chat := srv.Calls(); chat != 0 {
		t.Errorf("generation should not be called, got %d calls", chat)
	}
}

func TestGenerationFailureKeepsRetrievalTiming(t *testing.T) {
	srv := providertest.NewServer(t)
	srv.ChatStatus = http.StatusTooManyRequests
	q := newQuery(t, srv, eventIndex(t, eventChunks))

	ans := q.Answer(context.Background(), "When is lunch?")
	if ans.Kind != domain.ErrorAnswer || !strings.Contains(ans.Text, "rate limited") {
		t.Fatalf("unexpected answer %v %q", ans.Kind, ans.Text)
	}
	if ans.Timings.Retrieval <= 0 || ans.Timings.Generation <= 0 {
		t.Errorf("accumulated timings lost: %+v", ans.Timings)
	}
	if !ans.HasTimings() {
		t.Error("error answers report timings")
	}
}

func TestObserverSeesStagesInOrder(t *testing.T) {
	srv := providertest.NewServer(t)
	q := newQuery(t, srv, eventIndex(t, eventChunks))
	var stages []Stage
	q.AnswerObserved(context.Background(), "agenda?", func(s Stage) { stages = append(stages, s) })
	want := []Stage{StageRetrieving, StageGenerating, StageDone}
	if len(stages) != len(want) {
		t.Fatalf("stages %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("stages %v, want %v", stages, want)
		}
	}
}
