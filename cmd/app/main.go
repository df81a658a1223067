package main

import (
	"go.uber.org/fx"

	"github.com/Rogue-Bear-Innovations/art-archive/internal/config"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/db"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/logger"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/metrics"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/service"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/transport"
)

func main() {
	fx.New(
		config.Module,
		logger.Module,
		metrics.Module,
		db.Module,
		service.Module,
		transport.Module,
		fx.Invoke(func(*transport.HTTPServer) {}),
	).Run()
}
