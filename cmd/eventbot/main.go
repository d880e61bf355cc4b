package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"eventbot/internal/app"
	"eventbot/internal/domain"
	"eventbot/internal/logging"
	"eventbot/internal/session"
	"eventbot/internal/tui"
)

func main() {
	var cfgPath, question string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/eventbot/config.yaml)")
	flag.StringVar(&question, "q", "", "Answer a single question and exit instead of starting the chat")
	flag.Parse()

	os.Exit(run(cfgPath, question))
}

func run(cfgPath, question string) int {
	cfg, err := app.LoadConfig(cfgPath)
	if err != nil {
		return report(err)
	}

	// The chat owns the terminal, so logs go to a file unless one is configured.
	if question == "" && cfg.Log.File == "" {
		cfg.Log.File = "eventbot.log"
	}
	logger, closeLog, err := logging.Open(cfg.Log, os.Stderr)
	if err != nil {
		return report(err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q, err := app.NewQuery(ctx, cfg, logger)
	if err != nil {
		return report(err)
	}
	defer q.Close()

	if question != "" {
		ans := q.Service.Answer(ctx, question)
		fmt.Println(tui.Sanitize(ans.Text))
		fmt.Println(ans.TimingLine())
		if ans.Kind == domain.ErrorAnswer {
			return 1
		}
		return 0
	}

	sess := session.New(q.Service, cfg.Chat.Greeting)
	logger.Info("session started", "session", sess.ID)
	m := tui.New(ctx, sess, cfg.Chat.Title, q.Index.Meta().Digest)
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil && ctx.Err() == nil {
		return report(err)
	}
	return 0
}

func report(err error) int {
	if domain.IsConfig(err) {
		fmt.Fprintln(os.Stderr, err)
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return 1
}
