// proposalmeshd serves the research-and-proposal pipeline over HTTP: run
// submission, status, results, cancellation and a WebSocket progress stream.
// Configuration comes from an optional YAML file plus environment variables
// (API keys are env-only by default; a .env file is honored for local use).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/hupe1980/proposalmesh"
	"github.com/hupe1980/proposalmesh/archive"
	"github.com/hupe1980/proposalmesh/config"
	"github.com/hupe1980/proposalmesh/core"
	"github.com/hupe1980/proposalmesh/gateway"
	"github.com/hupe1980/proposalmesh/provider/analysis"
	"github.com/hupe1980/proposalmesh/provider/codehost"
	"github.com/hupe1980/proposalmesh/provider/datasets"
	"github.com/hupe1980/proposalmesh/provider/marketdata"
	"github.com/hupe1980/proposalmesh/provider/websearch"
	"github.com/hupe1980/proposalmesh/runstore"
	"github.com/hupe1980/proposalmesh/server"
)

func main() {
	configPath := flag.String("config", "", "path to proposalmesh.yaml (empty runs on defaults)")
	flag.Parse()

	_ = godotenv.Load()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := cfg.BuildLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := buildProviders(ctx, cfg)
	if err != nil {
		return err
	}
	store, err := buildStore(cfg)
	if err != nil {
		return err
	}
	arch, err := buildArchive(cfg)
	if err != nil {
		return err
	}

	mesh, err := proposalmesh.New(func(o *proposalmesh.Options) {
		o.EngineConfig = cfg.ToEngine()
		o.Providers = providers
		o.RunStore = store
		o.Archive = arch
		o.Logger = logger
	})
	if err != nil {
		return err
	}

	api := server.New(mesh, func(o *server.Options) {
		o.Logger = logger
	})

	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h2c.NewHandler(api, &http2.Server{}),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	logger.Info("server.started", "addr", cfg.Server.Addr, "providers", len(providers))

	select {
	case err := <-errCh:
		_ = mesh.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil

	case <-ctx.Done():
		logger.Info("server.shutdown", "grace", cfg.Server.ShutdownTimeout.Std())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server.shutdown.forced", "error", err)
		}
		return mesh.Close()
	}
}

// buildProviders assembles the gateway providers enabled by configuration.
// Empty config values defer to each provider's own defaults, which read the
// original environment keys (TAVILY_API_KEY, KAGGLE_API_TOKEN, GITHUB_TOKEN).
func buildProviders(ctx context.Context, cfg *config.Config) ([]gateway.Provider, error) {
	var providers []gateway.Provider

	if pc := cfg.Providers.WebSearch; !pc.Disabled {
		providers = append(providers, websearch.New(func(o *websearch.Options) {
			if pc.BaseURL != "" {
				o.BaseURL = pc.BaseURL
			}
			if pc.APIKey != "" {
				o.APIKey = pc.APIKey
			}
			if pc.SearchDepth != "" {
				o.SearchDepth = pc.SearchDepth
			}
			if pc.MaxResults > 0 {
				o.MaxResults = pc.MaxResults
			}
		}))
	}

	if pc := cfg.Providers.MarketData; !pc.Disabled {
		providers = append(providers, marketdata.New(func(o *marketdata.Options) {
			if pc.BaseURL != "" {
				o.BaseURL = pc.BaseURL
			}
			if pc.APIKey != "" {
				o.APIKey = pc.APIKey
			}
			if pc.Days > 0 {
				o.Days = pc.Days
			}
			if pc.MaxResults > 0 {
				o.MaxResults = pc.MaxResults
			}
		}))
	}

	if pc := cfg.Providers.Kaggle; !pc.Disabled {
		providers = append(providers, datasets.NewKaggle(func(o *datasets.KaggleOptions) {
			if pc.BaseURL != "" {
				o.BaseURL = pc.BaseURL
			}
			if pc.APIToken != "" {
				o.APIToken = pc.APIToken
			}
			if pc.MaxResults > 0 {
				o.MaxResults = pc.MaxResults
			}
		}))
	}

	if pc := cfg.Providers.HuggingFace; !pc.Disabled {
		providers = append(providers, datasets.NewHuggingFace(func(o *datasets.HuggingFaceOptions) {
			if pc.BaseURL != "" {
				o.BaseURL = pc.BaseURL
			}
			if pc.MaxResults > 0 {
				o.MaxResults = pc.MaxResults
			}
		}))
	}

	if pc := cfg.Providers.CodeHost; !pc.Disabled {
		providers = append(providers, codehost.New(func(o *codehost.Options) {
			if pc.BaseURL != "" {
				o.BaseURL = pc.BaseURL
			}
			if pc.Token != "" {
				o.Token = pc.Token
			}
			if pc.MaxResults > 0 {
				o.MaxResults = pc.MaxResults
			}
		}))
	}

	if pc := cfg.Providers.Analysis; !pc.Disabled {
		backend, err := buildAnalysisBackend(ctx, pc)
		if err != nil {
			return nil, err
		}
		providers = append(providers, analysis.New(backend))
	}

	return providers, nil
}

func buildAnalysisBackend(ctx context.Context, cfg config.AnalysisConfig) (analysis.Backend, error) {
	switch cfg.Backend {
	case config.AnalysisBackendAnthropic:
		return analysis.NewAnthropicBackend(func(o *analysis.AnthropicOptions) {
			if cfg.Model != "" {
				o.Model = anthropic.Model(cfg.Model)
			}
		}), nil

	case config.AnalysisBackendGemini:
		return analysis.NewGeminiBackend(ctx, func(o *analysis.GeminiOptions) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		})

	default:
		return analysis.NewOpenAIBackend(func(o *analysis.OpenAIOptions) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		}), nil
	}
}

func buildStore(cfg *config.Config) (core.RunStore, error) {
	if cfg.Store.PostgresDSN == "" {
		return nil, nil
	}
	return runstore.NewPostgresStore(cfg.Store.PostgresDSN)
}

func buildArchive(cfg *config.Config) (core.DocumentArchive, error) {
	switch {
	case cfg.Archive.Dir != "":
		return archive.NewFSArchive(cfg.Archive.Dir)

	case cfg.Archive.S3.Enabled():
		s3 := cfg.Archive.S3
		return archive.NewS3Archive(s3.Endpoint, s3.AccessKey, s3.SecretKey, s3.Bucket, func(o *archive.S3Options) {
			if s3.Region != "" {
				o.Region = s3.Region
			}
			o.UseSSL = s3.UseSSL
		})

	default:
		return nil, nil
	}
}
