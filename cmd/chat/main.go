package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"book-companion/internal/client"
	"book-companion/internal/config"
	"book-companion/internal/logging"
)

func main() {
	cfg := config.Load()
	url := flag.String("url", cfg.RelayURL, "chat relay endpoint")
	logFile := flag.String("log-file", defaultLogFile(cfg.LogFile), "diagnostic log file")
	flag.Parse()

	logger, closer, err := logging.InitFile(*logFile, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging disabled: %v\n", err)
	}
	defer func() { _ = closer.Close() }()

	relay, err := client.NewHTTPRelay(*url)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := newPrinter(os.Stdout)
	conv, err := client.New(relay, client.WithLogger(logger), client.WithObserver(p.render))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	p.welcome()
	run(ctx, conv, os.Stdin)
}

// run reads one question per line until EOF or cancellation. On an empty
// conversation a bare number picks the matching example question.
func run(ctx context.Context, conv *client.Conversation, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			conv.SetDraft(expandExample(conv, line))
			conv.SubmitDraft(ctx)
		}
	}
}

func expandExample(conv *client.Conversation, line string) string {
	if len(conv.Turns()) > 0 {
		return line
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || n < 1 || n > len(client.ExampleQuestions) {
		return line
	}
	return client.ExampleQuestions[n-1]
}

func defaultLogFile(configured string) string {
	if strings.TrimSpace(configured) != "" {
		return configured
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".book-companion", "chat.log")
	}
	return filepath.Join(home, ".book-companion", "chat.log")
}
