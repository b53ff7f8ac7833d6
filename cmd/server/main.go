package main

import (
	"github.com/scilab-ai/scilab/backend/internal/config"
	"github.com/scilab-ai/scilab/backend/internal/server"
	"github.com/scilab-ai/scilab/backend/pkg/logger"
	"github.com/scilab-ai/scilab/backend/pkg/logger/console"
)

func main() {
	cfg := config.Load()

	consoleLogger := console.New(console.Options{
		Debug: cfg.Debug,
	})
	logger.Init(consoleLogger)

	server.Init(cfg)
}
