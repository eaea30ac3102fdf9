package main

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/chi-demo/middleware"
	"github.com/tendant/simple-asset/pkg/simpleasset/api"
	"github.com/tendant/simple-asset/pkg/simpleasset/config"
)

type EnvConfig struct {
	ApiKeySHA256 string `env:"API_KEY_SHA256" env-default:"1"`
	SignatureTTL int64  `env:"SIGNATURE_TTL" env-default:"3600"`
	CacheMaxAge  int    `env:"CACHE_MAX_AGE" env-default:"1440"`
}

func main() {
	var envCfg EnvConfig
	if err := cleanenv.ReadEnv(&envCfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	cfg, err := config.Load(config.WithEnv(""))
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	if cfg.DatabaseType == "postgres" {
		if err := config.PingPostgres(cfg.DatabaseURL, cfg.DBSchema); err != nil {
			slog.Error("Failed to connect to database", "err", err)
			os.Exit(1)
		}
	}

	svc, err := cfg.BuildService()
	if err != nil {
		slog.Error("Failed to build asset service", "err", err)
		os.Exit(1)
	}

	server := app.DefaultWithoutRoutes()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	assetHandler := api.NewAssetHandler(svc,
		api.WithSignatureTTL(envCfg.SignatureTTL),
		api.WithCacheMaxAge(envCfg.CacheMaxAge),
	)

	apiKeyMiddleware, err := middleware.ApiKeyMiddleware(middleware.ApiKeyConfig{
		APIKeys: map[string]string{
			"key1": envCfg.ApiKeySHA256,
		},
	})
	if err != nil {
		slog.Error("Failed initialize API Key middleware", "err", err)
		return
	}

	// Management API behind the API key; serving and status stay open,
	// access control on serving is per asset.
	server.R.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(apiKeyMiddleware)
			r.Mount("/assets", assetHandler.Routes())
		})
	})
	server.R.Mount("/assets", assetHandler.ServeRoutes())
	server.R.Get("/status", assetHandler.Stats)

	server.Run()
}
