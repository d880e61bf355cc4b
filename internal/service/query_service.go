package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"eventbot/internal/domain"
	"eventbot/internal/postprocess"
	"eventbot/internal/prompt"
	"eventbot/internal/retriever"
)

// Stage is a step of the query pipeline, reported for progress display.
type Stage int

const (
	StageRetrieving Stage = iota
	StageGenerating
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageRetrieving:
		return "Retrieving relevant information..."
	case StageGenerating:
		return "Generating response..."
	default:
		return "Done"
	}
}

// Observer receives stage transitions. It runs on the pipeline goroutine.
type Observer func(Stage)

// QueryService answers questions against a read-only index. It holds no
// per-session state and is safe to share between sessions.
type QueryService struct {
	retriever *retriever.Retriever
	prompts   *prompt.Builder
	generator domain.Generator
	post      *postprocess.Processor
	log       *slog.Logger
}

func NewQueryService(r *retriever.Retriever, p *prompt.Builder, g domain.Generator, post *postprocess.Processor, log *slog.Logger) *QueryService {
	if log == nil {
		log = slog.Default()
	}
	return &QueryService{retriever: r, prompts: p, generator: g, post: post, log: log}
}

// Answer runs embed, search, prompt, generate and post-process in sequence.
func (s *QueryService) Answer(ctx context.Context, question string) domain.Answer {
	return s.AnswerObserved(ctx, question, nil)
}

// AnswerObserved is Answer with progress reporting. It never returns an
// error: failures become an ErrorAnswer carrying the timings measured so far.
func (s *QueryService) AnswerObserved(ctx context.Context, question string, observe Observer) domain.Answer {
	if observe == nil {
		observe = func(Stage) {}
	}
	defer observe(StageDone)

	var timings domain.Timings
	fail := func(err error) domain.Answer {
		s.log.Error("answering question failed", "err", err,
			"retrieval", timings.Retrieval, "generation", timings.Generation)
		return domain.Answer{Kind: domain.ErrorAnswer, Text: "An error occurred: " + err.Error(), Timings: timings}
	}

	observe(StageRetrieving)
	ret, err := s.retriever.Retrieve(ctx, question)
	timings.Retrieval = ret.Elapsed
	if err != nil {
		return fail(err)
	}
	if len(ret.Results) == 0 {
		s.log.Warn("no context retrieved", "question_len", len(question))
	}
	text, err := s.prompts.Build(ret.Context, question)
	if err != nil {
		return fail(err)
	}

	observe(StageGenerating)
	start := time.Now()
	raw, err := s.generator.Generate(ctx, text)
	timings.Generation = time.Since(start)
	if err != nil {
		return fail(fmt.Errorf("generating answer: %w", err))
	}

	answer := s.post.Apply(question, raw)
	s.log.Info("question answered", "chunks", len(ret.Results),
		"retrieval", timings.Retrieval, "generation", timings.Generation, "reformatted", answer != raw)
	return domain.Answer{Kind: domain.TimedAnswer, Text: answer, Timings: timings}
}
