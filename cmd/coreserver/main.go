// Command coreserver is the process entrypoint: it wires config, logging,
// the Repository, the LLMClient backend, the tool registry, every
// orchestration collaborator, the Orchestrator itself, and the API server,
// then starts listening -- following the teacher's cmd/side/main.go
// composition-root style (flat wiring in main, no DI framework).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"coreconvo/api"
	"coreconvo/config"
	"coreconvo/contentstore"
	"coreconvo/contextbuilder"
	"coreconvo/inputparser"
	"coreconvo/introspection"
	"coreconvo/llmclient"
	"coreconvo/logger"
	"coreconvo/notificationhub"
	"coreconvo/orchestrator"
	"coreconvo/repository"
	"coreconvo/responsemixer"
	"coreconvo/sessionmanager"
	"coreconvo/tools"
	"coreconvo/turnmanager"
)

func main() {
	cfg := config.Load()
	log := logger.Init(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := repository.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open repository")
	}

	registry := tools.NewRegistry()
	tools.RegisterDefaults(registry)
	invoker := tools.NewInvoker(registry, repo, cfg.ToolTimeout)

	parser := inputparser.New(repo)
	builder := contextbuilder.New(repo, parser, cfg.LLMModel)
	llm := llmclient.New(cfg)
	turns := turnmanager.New(repo, cfg.ResponseWindow)
	sessions := sessionmanager.New(repo, repo, cfg.SessionIdleThreshold)
	mixer := responsemixer.New()

	hub := notificationhub.New(cfg.WSClientQueueSize)
	if strings.HasPrefix(cfg.DBURL, "redis://") {
		bridge, err := notificationhub.NewRedisBridge(ctx, strings.TrimPrefix(cfg.DBURL, "redis://"), hub)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect notificationhub redis bridge, continuing single-process")
		} else {
			hub.SetRedisBridge(bridge)
			defer bridge.Close()
		}
	}

	orch := orchestrator.New(repo, parser, builder, llm, invoker, turns, sessions, mixer, hub, cfg)
	intro := introspection.New(repo, sessions, turns, invoker)

	go turns.Run(ctx)

	var store api.ContentStore
	if cfg.Debug {
		store = contentstore.NewBase64Store()
	} else {
		store = contentstore.NewFilesystemStore("./media")
	}

	ctrl := api.NewController(repo, hub, orch, intro, invoker, cfg, store)
	router := api.DefineRoutes(ctrl)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("coreserver listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
