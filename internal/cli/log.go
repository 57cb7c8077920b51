package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/labhacker007/Joti-sub001/internal/logger"
)

var (
	logFilterState    string
	logFilterFunction string
	logBlocked        bool
	logLast           int
	logSummary        bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View and filter the execution log",
	Long: `View the Joti execution log of guarded GenAI requests with filtering and
summary options. Prompts, outputs and messages are stored redacted.

Examples:
  joti log                              # Show all entries
  joti log --last 20                    # Show last 20 entries
  joti log --state OUTPUT_REJECTED      # Show only rejected outputs
  joti log --function article_summary   # Show one GenAI function
  joti log --blocked                    # Show everything that was not accepted
  joti log --summary                    # Show summary stats`,
	RunE: logCommand,
}

func init() {
	logCmd.Flags().StringVar(&logFilterState, "state", "", "Filter by terminal state (ACCEPTED, INPUT_REJECTED, OUTPUT_REJECTED, FAILED)")
	logCmd.Flags().StringVar(&logFilterFunction, "function", "", "Filter by GenAI function")
	logCmd.Flags().BoolVar(&logBlocked, "blocked", false, "Show only requests that were not accepted")
	logCmd.Flags().IntVar(&logLast, "last", 0, "Show last N entries")
	logCmd.Flags().BoolVar(&logSummary, "summary", false, "Show summary statistics")
	rootCmd.AddCommand(logCmd)
}

func logCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	records, err := logger.ReadExecutionLog(cfg.ExecutionLog)
	if err != nil {
		return fmt.Errorf("failed to read execution log: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No execution log entries found.")
		return nil
	}

	filtered := filterRecords(records)

	if logLast > 0 && logLast < len(filtered) {
		filtered = filtered[len(filtered)-logLast:]
	}

	if logSummary {
		printSummary(records)
		return nil
	}

	printRecords(filtered)
	return nil
}

func filterRecords(records []logger.ExecutionRecord) []logger.ExecutionRecord {
	if logFilterState == "" && logFilterFunction == "" && !logBlocked {
		return records
	}

	var filtered []logger.ExecutionRecord
	for _, r := range records {
		if logFilterState != "" && !strings.EqualFold(r.State, logFilterState) {
			continue
		}
		if logFilterFunction != "" && r.Function != logFilterFunction {
			continue
		}
		if logBlocked && !r.Blocked() {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

func printRecords(records []logger.ExecutionRecord) {
	for _, r := range records {
		ts := formatTimestamp(r.Timestamp)
		fmt.Printf("%s %s %-16s %s", stateIcon(r.State), ts, r.State, r.Function)
		if r.RetryCount > 0 {
			fmt.Printf(" (retries: %d)", r.RetryCount)
		}
		fmt.Println()

		for _, v := range r.Violations {
			fmt.Printf("     %s [%s/%s] %s\n", v.GuardrailID, v.Severity, v.Action, v.Message)
		}
		if r.ModelUsed != "" {
			fmt.Printf("     Model: %s (%d ms)\n", r.ModelUsed, r.DurationMs)
		}
		if r.Error != "" {
			fmt.Printf("     Error: %s\n", r.Error)
		}
		fmt.Printf("     Request: %s\n", r.RequestID)
		fmt.Println()
	}
}

func printSummary(all []logger.ExecutionRecord) {
	counts := map[string]int{}
	byGuardrail := map[string]int{}
	retried := 0

	for _, r := range all {
		counts[r.State]++
		if r.RetryCount > 0 {
			retried++
		}
		for _, v := range r.Violations {
			byGuardrail[v.GuardrailID]++
		}
	}

	fmt.Println("═══════════════════════════════════════════")
	fmt.Println("  Joti Execution Summary")
	fmt.Println("═══════════════════════════════════════════")
	fmt.Printf("  Total requests:   %d\n", len(all))
	fmt.Printf("  ACCEPTED:         %d\n", counts["ACCEPTED"])
	fmt.Printf("  INPUT_REJECTED:   %d\n", counts["INPUT_REJECTED"])
	fmt.Printf("  OUTPUT_REJECTED:  %d\n", counts["OUTPUT_REJECTED"])
	fmt.Printf("  FAILED:           %d\n", counts["FAILED"])
	fmt.Printf("  Fixed and retried: %d\n", retried)
	fmt.Println("═══════════════════════════════════════════")

	if len(all) > 0 {
		fmt.Printf("  First request:    %s\n", formatTimestamp(all[0].Timestamp))
		fmt.Printf("  Last request:     %s\n", formatTimestamp(all[len(all)-1].Timestamp))
	}

	if len(byGuardrail) > 0 {
		fmt.Println()
		fmt.Println("  Violations by guardrail:")
		for _, id := range sortedKeys(byGuardrail) {
			fmt.Printf("    %-32s %d\n", id, byGuardrail[id])
		}
	}

	fmt.Println()
}

func stateIcon(state string) string {
	switch state {
	case "INPUT_REJECTED", "OUTPUT_REJECTED":
		return "\xf0\x9f\x9b\x91" // stop sign
	case "FAILED":
		return "\xe2\x9a\xa0\xef\xb8\x8f" // warning
	case "ACCEPTED":
		return "\xe2\x9c\x85" // check mark
	default:
		return "\xe2\x9d\x93" // question mark
	}
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
