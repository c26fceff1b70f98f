package main

import (
	"github.com/graphweave/graphrag/internal/server"
	"github.com/graphweave/graphrag/internal/util"
	"github.com/graphweave/graphrag/pkg/logger"
	"github.com/graphweave/graphrag/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
