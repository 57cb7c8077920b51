package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/labhacker007/Joti-sub001/internal/catalog"
	"github.com/labhacker007/Joti-sub001/internal/config"
	"github.com/labhacker007/Joti-sub001/internal/guardrail"
	"github.com/labhacker007/Joti-sub001/internal/invoker"
	"github.com/labhacker007/Joti-sub001/internal/logger"
	"github.com/labhacker007/Joti-sub001/internal/store"
)

// app holds what every store-backed command needs.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	store   *store.SQLite
	catalog *catalog.Catalog
	manager *guardrail.Manager
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	st, err := store.OpenSQLite(cfg.DBPath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	cat := catalog.Default()
	return &app{
		cfg:     cfg,
		log:     log,
		store:   st,
		catalog: cat,
		manager: guardrail.NewManager(st, cat, log, cfg.Engine.ResolveCacheTTL),
	}, nil
}

func (a *app) close() {
	_ = a.store.Close()
	_ = a.log.Sync()
}

// seed installs the built-in guardrails and every enabled pack that is not
// already stored.
func (a *app) seed(ctx context.Context) (int, error) {
	defs := guardrail.DefaultDefinitions(a.catalog)
	packDefs, infos, err := guardrail.LoadPacks(a.cfg.PacksDir)
	if err != nil {
		return 0, fmt.Errorf("failed to load packs: %w", err)
	}
	for _, info := range infos {
		if info.Error != "" {
			a.log.Warn("skipping broken guardrail pack", zap.String("pack", info.Path), zap.String("error", info.Error))
		}
	}
	defs = append(defs, packDefs...)
	return a.manager.Seed(ctx, defs, "system")
}

// failover builds the model chain from the configured endpoints. It returns
// nil when none is configured.
func (a *app) failover() *invoker.Failover {
	var providers []invoker.Provider
	for _, m := range []config.ModelConfig{a.cfg.Models.Primary, a.cfg.Models.Secondary} {
		if !m.Configured() {
			continue
		}
		providers = append(providers, invoker.NewOpenAI(invoker.OpenAIConfig{
			Name:    m.Name,
			APIKey:  m.APIKey,
			APIBase: m.APIBase,
			Model:   m.Model,
			Logger:  a.log,
		}))
	}
	if len(providers) == 0 {
		return nil
	}
	return invoker.NewFailover(providers, a.cfg.Models.CallTimeout, a.log)
}
