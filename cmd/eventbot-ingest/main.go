package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"eventbot/internal/app"
	"eventbot/internal/domain"
	"eventbot/internal/logging"
	"eventbot/internal/service"
	"eventbot/internal/watcher"
)

func main() {
	var (
		cfgPath, docsDir    string
		yes, backup, watchF bool
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/eventbot/config.yaml)")
	flag.StringVar(&docsDir, "docs", "", "Documents directory (overrides ingest.documents_dir)")
	flag.BoolVar(&yes, "yes", false, "Replace an existing index without asking")
	flag.BoolVar(&backup, "backup", false, "Keep the replaced index next to the new one")
	flag.BoolVar(&watchF, "watch", false, "Keep running and rebuild the index when documents change")
	flag.Parse()

	os.Exit(run(cfgPath, docsDir, yes, backup, watchF))
}

func run(cfgPath, docsDir string, yes, backup, watch bool) int {
	cfg, err := app.LoadConfig(cfgPath)
	if err != nil {
		return report(err)
	}
	if docsDir == "" {
		docsDir = cfg.Ingest.DocumentsDir
	}
	logger, closeLog, err := logging.Open(cfg.Log, os.Stderr)
	if err != nil {
		return report(err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, writer, err := app.NewIngest(cfg, backup, logger)
	if err != nil {
		return report(err)
	}
	exists, err := writer.Exists(ctx)
	if err != nil {
		return report(err)
	}
	if exists && !yes {
		ok, err := confirm(os.Stdin, os.Stdout, fmt.Sprintf("An index already exists (%s). Rebuild it from %s?", cfg.String(), docsDir))
		if err != nil {
			return report(err)
		}
		if !ok {
			fmt.Println("Aborted; the existing index was left unchanged.")
			return 0
		}
	}

	code := ingest(ctx, svc, docsDir)
	if !watch {
		return code
	}

	w, err := watcher.NewFSNotifyWatcher(cfg.Ingest.Extensions, time.Duration(cfg.Ingest.WatchDebounceMs)*time.Millisecond, logger)
	if err != nil {
		return report(err)
	}
	defer w.Close()
	events, err := w.Watch(ctx, docsDir)
	if err != nil {
		return report(err)
	}
	fmt.Printf("Watching %s for changes. Press Ctrl+C to stop.\n", docsDir)
	for ev := range events {
		logger.Info("documents changed, rebuilding index", "paths", len(ev.Paths))
		ingest(ctx, svc, docsDir)
	}
	return 0
}

func ingest(ctx context.Context, svc *service.IngestService, dir string) int {
	rep, err := svc.Run(ctx, dir)
	for _, s := range rep.Skipped {
		fmt.Printf("skipped %s: %s\n", s.Source, s.Reason)
	}
	if err != nil {
		if errors.Is(err, service.ErrNothingToIndex) {
			fmt.Fprintf(os.Stderr, "nothing to index in %s; the existing index was left unchanged\n", dir)
			return 1
		}
		return report(err)
	}
	fmt.Printf("Indexed %d documents into %d chunks in %.2fs\n", rep.Documents, rep.Chunks, rep.Elapsed.Seconds())
	if rep.Digest != "" {
		fmt.Printf("Digest: %s\n", rep.Digest)
	}
	return 0
}

// confirm asks a yes/no question on out and reads the reply from in.
// Anything other than y or yes declines.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func report(err error) int {
	if _, remote := domain.RemoteKindOf(err); remote || domain.IsConfig(err) {
		fmt.Fprintln(os.Stderr, err)
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return 1
}
