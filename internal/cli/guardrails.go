package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/labhacker007/Joti-sub001/internal/guardrail"
)

var (
	guardrailsUser     string
	resolvePlatform    string
	guardrailsShowAll  bool
	guardrailsPacksDir string
)

var guardrailsCmd = &cobra.Command{
	Use:   "guardrails",
	Short: "Inspect and manage stored guardrails",
	Long: `Inspect and manage the guardrails stored in the Joti database.

Examples:
  joti guardrails list                        # List active guardrails
  joti guardrails list --all                  # Include disabled guardrails
  joti guardrails seed                        # Install built-ins and enabled packs
  joti guardrails disable builtin-jb-known-persona   # Disable a guardrail
  joti guardrails resolve article_summary     # Show the effective set for a function
  joti guardrails packs list                  # List guardrail packs`,
}

var guardrailsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List guardrails",
	RunE:  guardrailsList,
}

var guardrailsSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Install built-in guardrails and enabled packs that are not stored yet",
	RunE:  guardrailsSeed,
}

var guardrailsDisableCmd = &cobra.Command{
	Use:   "disable <guardrail-id>",
	Short: "Disable a guardrail",
	Args:  cobra.ExactArgs(1),
	RunE:  guardrailsSetStatus(false),
}

var guardrailsEnableCmd = &cobra.Command{
	Use:   "enable <guardrail-id>",
	Short: "Enable a disabled guardrail",
	Args:  cobra.ExactArgs(1),
	RunE:  guardrailsSetStatus(true),
}

var guardrailsResolveCmd = &cobra.Command{
	Use:   "resolve <function>",
	Short: "Show the effective guardrails for a GenAI function in execution order",
	Args:  cobra.ExactArgs(1),
	RunE:  guardrailsResolve,
}

var packsCmd = &cobra.Command{
	Use:   "packs",
	Short: "Manage guardrail packs",
	Long: `Guardrail packs are YAML files of guardrail definitions stored in
~/.joti/packs/. A pack whose file name starts with an underscore is disabled.
Enabled packs are seeded into the database by 'joti guardrails seed' and
'joti serve'.`,
}

var packsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed guardrail packs",
	RunE:  packsList,
}

var packsEnableCmd = &cobra.Command{
	Use:   "enable <pack-name>",
	Short: "Enable a disabled guardrail pack",
	Args:  cobra.ExactArgs(1),
	RunE:  packsEnable,
}

var packsDisableCmd = &cobra.Command{
	Use:   "disable <pack-name>",
	Short: "Disable a guardrail pack (prefix with underscore)",
	Args:  cobra.ExactArgs(1),
	RunE:  packsDisable,
}

func init() {
	guardrailsCmd.PersistentFlags().StringVar(&guardrailsUser, "user", "cli", "User recorded in the audit trail")
	guardrailsListCmd.Flags().BoolVar(&guardrailsShowAll, "all", false, "Include disabled guardrails")
	guardrailsResolveCmd.Flags().StringVar(&resolvePlatform, "platform", "", "Platform to resolve for")
	packsCmd.PersistentFlags().StringVar(&guardrailsPacksDir, "dir", "", "Packs directory (default: ~/.joti/packs)")

	packsCmd.AddCommand(packsListCmd, packsEnableCmd, packsDisableCmd)
	guardrailsCmd.AddCommand(guardrailsListCmd, guardrailsSeedCmd, guardrailsDisableCmd,
		guardrailsEnableCmd, guardrailsResolveCmd, packsCmd)
	rootCmd.AddCommand(guardrailsCmd)
}

func guardrailsList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	defs, err := a.manager.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list guardrails: %w", err)
	}
	if len(defs) == 0 {
		fmt.Println("No guardrails stored. Run 'joti guardrails seed' to install the built-ins.")
		return nil
	}

	fmt.Println(strings.Repeat("─", 78))
	for _, d := range guardrail.Order(defs) {
		if d.Status != guardrail.StatusActive && !guardrailsShowAll {
			continue
		}
		printDefinition(d)
	}
	fmt.Println(strings.Repeat("─", 78))
	return nil
}

func printDefinition(d guardrail.Definition) {
	icon := "\xe2\x9c\x85" // check mark
	if d.Status != guardrail.StatusActive {
		icon = "\xe2\x9d\x8c" // cross mark
	}
	fmt.Printf("  %s  %-32s %-9s %-7s %s\n", icon, d.ID, d.Severity, d.Action, d.Category)
	scope := string(d.Scope)
	if len(d.Functions) > 0 {
		scope += " [" + strings.Join(d.Functions, ", ") + "]"
	}
	if len(d.Platforms) > 0 {
		scope += " platforms=" + strings.Join(d.Platforms, ",")
	}
	fmt.Printf("       %s (%s, %s)\n", d.Name, guardrail.SpecOf(d.Validation).Type, scope)
}

func guardrailsSeed(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	n, err := a.seed(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to seed guardrails: %w", err)
	}
	fmt.Printf("\xe2\x9c\x85 Seeded %d new guardrail(s).\n", n)
	return nil
}

func guardrailsSetStatus(enable bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		set := a.manager.Disable
		verb := "disabled"
		if enable {
			set = a.manager.Enable
			verb = "enabled"
		}
		d, err := set(cmd.Context(), args[0], guardrailsUser)
		if err != nil {
			return fmt.Errorf("failed to update guardrail: %w", err)
		}
		fmt.Printf("Guardrail '%s' %s.\n", d.ID, verb)
		return nil
	}
}

func guardrailsResolve(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	defs, err := a.manager.ResolveEffective(cmd.Context(), args[0], resolvePlatform)
	if err != nil {
		return fmt.Errorf("failed to resolve guardrails: %w", err)
	}

	// Guardrails with no known direction run on input.
	input, output, unknown := guardrail.Partition(guardrail.Order(defs))
	input = append(input, unknown...)
	fmt.Printf("Effective guardrails for %s", args[0])
	if resolvePlatform != "" {
		fmt.Printf(" on %s", resolvePlatform)
	}
	fmt.Println()
	fmt.Println("─── Input ─────────────────────────────────────────────")
	for _, d := range input {
		printDefinition(d)
	}
	fmt.Println("─── Output ────────────────────────────────────────────")
	for _, d := range output {
		printDefinition(d)
	}
	return nil
}

func packsDir() (string, error) {
	dir := guardrailsPacksDir
	if dir == "" {
		cfg, err := loadConfig()
		if err != nil {
			return "", err
		}
		dir = cfg.PacksDir
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

func packsList(cmd *cobra.Command, args []string) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}

	_, infos, err := guardrail.LoadPacks(dir)
	if err != nil {
		return fmt.Errorf("failed to load packs: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No guardrail packs installed.")
		fmt.Printf("\nTo install packs, copy YAML files to: %s\n", dir)
		return nil
	}

	fmt.Println("Installed Guardrail Packs:")
	fmt.Println(strings.Repeat("─", 60))
	for _, info := range infos {
		status := "\xe2\x9c\x85" // check mark
		if !info.Enabled {
			status = "\xe2\x9d\x8c" // cross mark
		}
		fmt.Printf("  %s  %-25s %s\n", status, info.Name, info.Description)
		if info.Version != "" {
			fmt.Printf("       v%s by %s  (%d guardrails)\n", info.Version, info.Author, info.GuardrailCount)
		}
		if info.Error != "" {
			fmt.Printf("       \xe2\x9a\xa0  %s\n", info.Error)
		}
	}
	fmt.Println(strings.Repeat("─", 60))
	fmt.Printf("\nPacks directory: %s\n", dir)
	return nil
}

func packsEnable(cmd *cobra.Command, args []string) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}
	name := args[0]
	disabledPath := findPack(dir, "_"+name)
	enabledPath := findPack(dir, name)

	if disabledPath != "" {
		target := filepath.Join(dir, strings.TrimPrefix(filepath.Base(disabledPath), "_"))
		if err := os.Rename(disabledPath, target); err != nil {
			return fmt.Errorf("failed to enable pack: %w", err)
		}
		fmt.Printf("\xe2\x9c\x85 Pack '%s' enabled.\n", name)
		return nil
	}
	if enabledPath != "" {
		fmt.Printf("Pack '%s' is already enabled.\n", name)
		return nil
	}
	return fmt.Errorf("pack '%s' not found in %s", name, dir)
}

func packsDisable(cmd *cobra.Command, args []string) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}
	name := args[0]
	enabledPath := findPack(dir, name)
	disabledPath := findPack(dir, "_"+name)

	if enabledPath != "" {
		target := filepath.Join(dir, "_"+filepath.Base(enabledPath))
		if err := os.Rename(enabledPath, target); err != nil {
			return fmt.Errorf("failed to disable pack: %w", err)
		}
		fmt.Printf("\xe2\x9d\x8c Pack '%s' disabled.\n", name)
		return nil
	}
	if disabledPath != "" {
		fmt.Printf("Pack '%s' is already disabled.\n", name)
		return nil
	}
	return fmt.Errorf("pack '%s' not found in %s", name, dir)
}

// findPack returns the path of base.yaml or base.yml in dir, or "".
func findPack(dir, base string) string {
	for _, ext := range []string{".yaml", ".yml"} {
		p := filepath.Join(dir, base+ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
