package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/saideepsai/Collaborative-Canvas/internal/config"
	"github.com/saideepsai/Collaborative-Canvas/internal/http/http_server"
	"github.com/saideepsai/Collaborative-Canvas/internal/services/canvas"
	"github.com/saideepsai/Collaborative-Canvas/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Room/session state. All in-memory; nothing survives a restart.
	canvasService := canvas.NewCanvasService()

	// 4. WebSockets hub + session gateway
	hub := ws.NewHub()
	wsSrv := ws.NewWsServer(hub, canvasService, ws.Options{
		DefaultRoom:     cfg.DefaultRoom,
		MaxMessageBytes: cfg.WsMaxMessageBytes,
		ProgressRate:    cfg.WsProgressRate,
		ProgressBurst:   cfg.WsProgressBurst,
	})

	// 5. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, canvasService)

	go func() {
		<-ctx.Done()
		_ = httpServer.Dispose()
	}()

	if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
