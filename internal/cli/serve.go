package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/labhacker007/Joti-sub001/internal/api"
	"github.com/labhacker007/Joti-sub001/internal/duplicate"
	"github.com/labhacker007/Joti-sub001/internal/engine"
	"github.com/labhacker007/Joti-sub001/internal/guardrail"
	"github.com/labhacker007/Joti-sub001/internal/logger"
)

var (
	serveAddr   string
	serveNoSeed bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the guardrail HTTP service",
	Long: `Start the HTTP service: guardrail administration, function overrides,
duplicate detection, guarded GenAI execution and article intake.

Built-in guardrails and enabled packs from ~/.joti/packs are seeded on start
unless --no-seed is given. Existing guardrails are never overwritten.

  joti serve
  joti serve --addr :8088`,
	RunE: serveCommand,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, 127.0.0.1:8088)")
	serveCmd.Flags().BoolVar(&serveNoSeed, "no-seed", false, "Do not seed built-in guardrails and packs")
	rootCmd.AddCommand(serveCmd)
}

func serveCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !serveNoSeed {
		n, err := a.seed(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed guardrails: %w", err)
		}
		a.log.Info("guardrails seeded", zap.Int("created", n))
	}

	evaluator := guardrail.NewEvaluator(a.catalog, guardrail.NewExtensions())
	eng := engine.New(a.manager, evaluator, engine.Config{
		DefaultRetries: a.cfg.Engine.DefaultRetries,
		Logger:         a.log,
	})

	var invoke engine.InvokeFunc
	var semantic duplicate.SemanticChecker
	if fo := a.failover(); fo != nil {
		invoke = fo.InvokeFunc(a.cfg.Models.Temperature, a.cfg.Models.MaxTokens)
		semantic = duplicate.NewModelChecker(duplicate.InvokeFunc(fo.InvokeFunc(0, 256)))
		a.log.Info("model chain configured", zap.String("chain", fo.Name()))
	} else {
		a.log.Warn("no model provider configured; /genai/execute is disabled")
	}

	var source duplicate.ArticleSource = a.store
	var cache api.Invalidator
	if a.cfg.Redis.Address != "" {
		rs := duplicate.NewRedisStore(duplicate.RedisConfig{
			Address:  a.cfg.Redis.Address,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		defer rs.Close()
		cached := duplicate.NewCachedSource(a.store, rs, a.cfg.Redis.TTL, a.log)
		source, cache = cached, cached
		a.log.Info("duplicate candidate cache enabled", zap.String("redis", a.cfg.Redis.Address))
	}

	detector, err := duplicate.NewDetector(source, semantic, a.cfg.Duplicate, a.log)
	if err != nil {
		return fmt.Errorf("failed to create duplicate detector: %w", err)
	}

	execLog, err := logger.NewExecutionLog(a.cfg.ExecutionLog)
	if err != nil {
		return fmt.Errorf("failed to open execution log: %w", err)
	}
	defer execLog.Close()

	srv := api.New(api.Config{
		Guardrails:   a.manager,
		Engine:       eng,
		Invoke:       invoke,
		Detector:     detector,
		Articles:     a.store,
		Cache:        cache,
		ExecutionLog: execLog,
		Logger:       a.log,
	})

	addr := a.cfg.ListenAddr
	if serveAddr != "" {
		addr = serveAddr
	}
	return srv.ListenAndServe(ctx, addr)
}
