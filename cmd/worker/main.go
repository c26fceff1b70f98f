package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/graphweave/graphrag/internal/app"
	"github.com/graphweave/graphrag/internal/queue"
	"github.com/graphweave/graphrag/internal/util"
	"github.com/graphweave/graphrag/pkg/ai"
	"github.com/graphweave/graphrag/pkg/index"
	"github.com/graphweave/graphrag/pkg/logger"
	"github.com/graphweave/graphrag/pkg/logger/console"
	"github.com/graphweave/graphrag/pkg/runlock"
)

func main() {
	once := flag.Bool("once", false, "run a single indexing pass and exit instead of consuming the index queue")
	flag.Parse()

	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	aiClient, err := app.NewAIClient()
	if err != nil {
		logger.Fatal("Could not create AI client", "err", err)
	}

	pool, graph, err := app.OpenStore(ctx, true)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pool.Close()

	indexer, err := app.NewIndexer(ctx, graph, app.NewLeaseGuard(pool), aiClient)
	if err != nil {
		logger.Fatal("Could not create indexer", "err", err)
	}

	if *once {
		if err := runIndex(ctx, indexer, aiClient); err != nil {
			logger.Fatal("Indexing run failed", "err", err)
		}
		return
	}

	conn, err := queue.Dial(ctx, queue.URLFromEnv(), 15)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.IndexQueue}); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}

	// One message at a time; a run already covers every pending document.
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	err = queue.Consume(ctx, ch, queue.IndexQueue, func(ctx context.Context, body []byte) error {
		req, err := queue.DecodeIndexRequest(body)
		if err != nil {
			return err
		}
		logger.Info("[Worker] Index request received", "request_id", req.RequestID, "reason", req.Reason)
		err = runIndex(ctx, indexer, aiClient)
		if errors.Is(err, runlock.ErrBusy) {
			// Another worker is indexing and will pick up the same documents.
			logger.Info("[Worker] Index run already in progress, dropping request", "request_id", req.RequestID)
			return nil
		}
		return err
	})
	if err != nil {
		logger.Fatal("Consumer stopped", "err", err)
	}
}

func runIndex(ctx context.Context, indexer *index.Indexer, client ai.GraphAIClient) error {
	client.ResetMetrics()
	report, err := indexer.Run(ctx)
	metrics := client.GetMetrics()
	logger.Info(
		"[Worker] AI usage",
		"requests", metrics.Requests,
		"input_tokens", metrics.InputTokens,
		"output_tokens", metrics.OutputTokens,
		"total_tokens", metrics.TotalTokens,
		"duration_ms", metrics.DurationMs,
	)
	if err != nil {
		return err
	}
	logger.Info(
		"[Worker] Index run finished",
		"run_id", report.RunID,
		"processed", report.Processed,
		"failed", report.Failed,
		"duration_ms", report.DurationMs,
	)
	return nil
}
