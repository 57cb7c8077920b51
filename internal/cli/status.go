package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/labhacker007/Joti-sub001/internal/guardrail"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show Joti status: config, database, guardrails, packs, model chain, execution log",
	Long: `Check how Joti is configured: which database and execution log are in
use, how many guardrails are stored and active, which packs are installed and
whether a model chain and candidate cache are configured.

  joti status`,
	RunE: statusCommand,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg

	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Println("  Joti Status")
	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Println()

	binPath, err := os.Executable()
	if err != nil {
		binPath = "unknown"
	}
	fmt.Printf("  Binary:    %s (%s)\n", binPath, Version)
	fmt.Printf("  Config:    %s\n", cfg.ConfigDir)
	fmt.Printf("  Listen:    %s\n", cfg.ListenAddr)
	fmt.Println()

	fmt.Println("─── Guardrails ────────────────────────────────────────")
	checkFile("Database", cfg.DBPath)
	defs, err := a.manager.List(cmd.Context())
	if err != nil {
		fmt.Printf("  \xe2\x9d\x8c Could not list guardrails: %v\n", err)
	} else {
		active := 0
		for _, d := range defs {
			if d.Status == guardrail.StatusActive {
				active++
			}
		}
		if len(defs) == 0 {
			fmt.Println("  ⚠  No guardrails stored (run 'joti guardrails seed')")
		} else {
			fmt.Printf("  ✅ Guardrails: %d stored, %d active\n", len(defs), active)
		}
	}

	_, infos, err := guardrail.LoadPacks(cfg.PacksDir)
	if err == nil && len(infos) > 0 {
		enabled := 0
		for _, info := range infos {
			if info.Enabled {
				enabled++
			}
		}
		fmt.Printf("  ✅ Guardrail packs: %d installed, %d enabled\n", len(infos), enabled)
	} else {
		fmt.Println("  ⬚  No guardrail packs installed")
	}
	fmt.Printf("  Retries:   %d per request (fix rounds)\n", cfg.Engine.DefaultRetries)
	fmt.Println()

	fmt.Println("─── Models ────────────────────────────────────────────")
	if fo := a.failover(); fo != nil {
		fmt.Printf("  ✅ Model chain: %s\n", fo.Name())
	} else {
		fmt.Println("  ⚠  No model provider configured (set JOTI_PRIMARY_API_BASE or JOTI_PRIMARY_API_KEY)")
	}
	fmt.Println()

	fmt.Println("─── Duplicate Detection ───────────────────────────────")
	fmt.Printf("  Threshold: %.2f over %d day(s), semantic check %s\n",
		cfg.Duplicate.SimilarityThreshold, cfg.Duplicate.LookbackDays, onOff(cfg.Duplicate.SemanticEnabled))
	if cfg.Redis.Address != "" {
		fmt.Printf("  ✅ Candidate cache: redis %s (ttl %s)\n", cfg.Redis.Address, cfg.Redis.TTL)
	} else {
		fmt.Println("  ⬚  Candidate cache: off")
	}
	fmt.Println()

	fmt.Println("─── Execution Log ─────────────────────────────────────")
	checkFile("Log", cfg.ExecutionLog)
	fmt.Println()

	return nil
}

func checkFile(name, path string) {
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("  ⬚  %s: %s (not yet created)\n", name, path)
		return
	}

	sizeKB := info.Size() / 1024
	if sizeKB == 0 {
		fmt.Printf("  ✅ %s: %s (<1 KB)\n", name, path)
	} else {
		fmt.Printf("  ✅ %s: %s (%d KB)\n", name, path, sizeKB)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
