package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"book-companion/handler"
	"book-companion/internal/config"
	"book-companion/internal/integrations/anthropic"
	"book-companion/internal/integrations/paramstore"
	"book-companion/internal/logging"
	"book-companion/internal/repository"
	"book-companion/internal/usecase"
)

func main() {
	reportUsage := flag.Bool("usage", false, "print the usage ledger totals for -day and exit")
	day := flag.String("day", "", "UTC day (YYYY-MM-DD) for -usage; defaults to today")
	flag.Parse()

	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg := config.Load()
	logger := logging.Init(cfg.LogLevel, cfg.LogFormat)

	loader := &awsLoader{}

	if *reportUsage {
		if err := printUsage(ctx, loader, cfg.UsageTable, *day); err != nil {
			logger.Error("usage report failed", "err", err)
			os.Exit(1)
		}
		return
	}

	// ---- Clients ----
	keys := paramstore.StaticKey(cfg.AnthropicAPIKey)
	if cfg.AnthropicAPIKey == "" && cfg.AnthropicAPIKeyParam != "" {
		awsCfg, err := loader.load(ctx)
		if err != nil {
			logger.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			logger.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		keys = paramstore.NewKeySource("", ssmClient, cfg.AnthropicAPIKeyParam)
	}

	var usage usecase.UsageRecorder = repository.Noop{}
	if cfg.UsageTable != "" {
		ledger, err := newLedger(ctx, loader, cfg.UsageTable)
		if err != nil {
			logger.Error("failed to create usage ledger", "err", err)
			os.Exit(1)
		}
		usage = ledger
	}

	llm := anthropic.NewClient(
		anthropic.WithBaseURL(cfg.AnthropicBaseURL),
		anthropic.WithTimeout(cfg.UpstreamTimeout),
		anthropic.WithRetries(cfg.UpstreamMaxRetries, 0),
	)

	// ---- Handler ----
	relay, err := usecase.NewRelayService(keys, llm, usage, logger, cfg.Model, cfg.MaxTokens)
	if err != nil {
		logger.Error("failed to create relay service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(relay, logger)
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		lambda.Start(h.Handle)
		return
	}

	if err := serve(logger, ":"+cfg.Port, h.Router()); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

// awsLoader loads the shared AWS config on first use so purely local runs
// never need credentials.
type awsLoader struct {
	cfg    aws.Config
	loaded bool
}

func (l *awsLoader) load(ctx context.Context) (aws.Config, error) {
	if l.loaded {
		return l.cfg, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, err
	}
	l.cfg, l.loaded = cfg, true
	return cfg, nil
}

func newLedger(ctx context.Context, loader *awsLoader, table string) (*repository.Client, error) {
	awsCfg, err := loader.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return repository.New(awsdynamodb.NewFromConfig(awsCfg), table)
}

func printUsage(ctx context.Context, loader *awsLoader, table, day string) error {
	if table == "" {
		return errors.New("USAGE_TABLE is not set")
	}
	when := time.Now().UTC()
	if day != "" {
		parsed, err := time.Parse("2006-01-02", day)
		if err != nil {
			return fmt.Errorf("parse -day: %w", err)
		}
		when = parsed
	}
	ledger, err := newLedger(ctx, loader, table)
	if err != nil {
		return err
	}
	usage, err := ledger.GetDailyUsage(ctx, when)
	if err != nil {
		return err
	}
	fmt.Printf("%s requests=%d input_tokens=%d output_tokens=%d\n", usage.Day, usage.Requests, usage.InputTokens, usage.OutputTokens)
	return nil
}

func serve(logger *slog.Logger, addr string, h http.Handler) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("chat relay listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
