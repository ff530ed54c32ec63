package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/local/rhymebinder/internal/allocator"
	"github.com/local/rhymebinder/internal/assets"
	"github.com/local/rhymebinder/internal/catalogue"
	cfgpkg "github.com/local/rhymebinder/internal/config"
	"github.com/local/rhymebinder/internal/limiter"
	logpkg "github.com/local/rhymebinder/internal/logger"
	"github.com/local/rhymebinder/internal/metrics"
	"github.com/local/rhymebinder/internal/renderer"
	"github.com/local/rhymebinder/internal/store"
	"github.com/local/rhymebinder/internal/web"
)

func main() {
	_ = godotenv.Load()
	cfg := cfgpkg.FromEnv()

	// Init logging
	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	metrics.Init()

	// Rhyme catalogue
	cat, err := catalogue.Load(cfg.CatalogueFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load rhyme catalogue")
	}
	log.Info().Int("rhymes", cat.Len()).Msg("catalogue loaded")

	// Selection store
	sels, err := store.NewRedisSelections(cfg.Store.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init redis selection store")
	}
	defer sels.Close()

	alloc := allocator.New(cat, sels)

	// Binder artwork source (optional; absence degrades to placeholders)
	src, err := assets.FromBase(context.Background(), cfg.Assets.Base, cfg.Assets.EncPassword)
	if err != nil {
		log.Warn().Err(err).Str("base", cfg.Assets.Base).Msg("asset source unavailable, using placeholders")
		src = nil
	}

	rend := renderer.New(renderer.Dependencies{
		Store:    sels,
		External: src,
		CacheDir: cfg.Assets.CacheDir,
	})

	mux := http.NewServeMux()
	srvDeps := web.Dependencies{
		Allocator: alloc,
		Renderer:  rend,
		Limiter:   limiter.New(cfg.Render.MaxConcurrent),
	}
	web.New(srvDeps).RegisterRoutes(mux)
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: mux}

	go func() {
		log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("shutdown complete")
}
