// Command query answers a single question against the indexed graph.
//
//	query global "What are the main themes?"
//	query local "What is Rome connected to?" Rome
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/graphweave/graphrag/internal/app"
	"github.com/graphweave/graphrag/internal/util"
	"github.com/graphweave/graphrag/pkg/logger"
	"github.com/graphweave/graphrag/pkg/logger/console"
	"github.com/graphweave/graphrag/pkg/query"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: query [-context] global <question>")
	fmt.Fprintln(os.Stderr, "       query [-context] local <question> <entity>")
	flag.PrintDefaults()
}

func main() {
	showContext := flag.Bool("context", false, "print the communities, entities and relationships the answer used")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 || (args[0] == "local" && len(args) < 3) || (args[0] != "global" && args[0] != "local") {
		usage()
		os.Exit(2)
	}

	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: util.GetEnvBool("DEBUG", false),
	}))

	aiClient, err := app.NewAIClient()
	if err != nil {
		logger.Fatal("Could not create AI client", "err", err)
	}

	pool, graph, err := app.OpenStore(ctx, false)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pool.Close()

	engine := app.NewQueryEngine(graph, aiClient)
	trace := query.NewQueryTrace()

	var answer string
	switch args[0] {
	case "global":
		answer = engine.GlobalQuery(ctx, args[1], query.WithTracer(trace))
	case "local":
		answer = engine.LocalQuery(ctx, args[1], args[2], query.WithTracer(trace))
	}

	fmt.Println(answer)
	if *showContext {
		out, err := json.MarshalIndent(trace.Snapshot(), "", "  ")
		if err != nil {
			logger.Fatal("Failed to encode context", "err", err)
		}
		fmt.Println(string(out))
	}
}
