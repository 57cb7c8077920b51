package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"golang.org/x/term"

	"github.com/labhacker007/Joti-sub001/internal/duplicate"
)

var (
	dupTitle     string
	dupContent   string
	dupSummary   string
	dupURL       string
	dupPublished string
	dupSource    string
	dupInputFile string
	dupSemantic  bool
)

var dupcheckCmd = &cobra.Command{
	Use:   "dupcheck",
	Short: "Check whether an article duplicates one already ingested",
	Long: `Compare an article against recently ingested articles in the Joti database
and print the duplicate verdict as JSON.

Examples:
  joti dupcheck --title "Acme discloses breach" --url https://news.example.com/acme
  joti dupcheck --input article.json
  joti dupcheck --input article.json --semantic   # ask the model about near misses`,
	RunE: dupcheckCommand,
}

func init() {
	dupcheckCmd.Flags().StringVar(&dupTitle, "title", "", "Article title")
	dupcheckCmd.Flags().StringVar(&dupContent, "content", "", "Article content")
	dupcheckCmd.Flags().StringVar(&dupSummary, "summary", "", "Article summary")
	dupcheckCmd.Flags().StringVar(&dupURL, "url", "", "Article URL")
	dupcheckCmd.Flags().StringVar(&dupPublished, "published", "", "Publish time (RFC 3339)")
	dupcheckCmd.Flags().StringVar(&dupSource, "source", "", "Feed source id")
	dupcheckCmd.Flags().StringVar(&dupInputFile, "input", "", "JSON file with the article; flags override its fields")
	dupcheckCmd.Flags().BoolVar(&dupSemantic, "semantic", false, "Use the configured model for near misses")
	rootCmd.AddCommand(dupcheckCmd)
}

func dupcheckCommand(cmd *cobra.Command, args []string) error {
	in, err := dupcheckInput()
	if err != nil {
		return err
	}
	if in.Title == "" {
		return fmt.Errorf("a title is required (--title or --input)")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	cfg := a.cfg.Duplicate
	var semantic duplicate.SemanticChecker
	if dupSemantic {
		fo := a.failover()
		if fo == nil {
			return fmt.Errorf("--semantic needs a configured model provider")
		}
		semantic = duplicate.NewModelChecker(duplicate.InvokeFunc(fo.InvokeFunc(0, 256)))
		cfg.SemanticEnabled = true
	} else {
		cfg.SemanticEnabled = false
	}

	detector, err := duplicate.NewDetector(a.store, semantic, cfg, a.log)
	if err != nil {
		return fmt.Errorf("failed to create duplicate detector: %w", err)
	}

	res, err := detector.CheckDuplicate(cmd.Context(), in)
	if err != nil {
		return fmt.Errorf("failed to check duplicate: %w", err)
	}

	out, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	out = pretty.Pretty(out)
	if term.IsTerminal(int(os.Stdout.Fd())) {
		out = pretty.Color(out, nil)
	}
	os.Stdout.Write(out)
	return nil
}

func dupcheckInput() (duplicate.Input, error) {
	var in duplicate.Input
	if dupInputFile != "" {
		data, err := os.ReadFile(dupInputFile)
		if err != nil {
			return in, fmt.Errorf("failed to read input: %w", err)
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return in, fmt.Errorf("failed to parse input: %w", err)
		}
	}

	if dupTitle != "" {
		in.Title = dupTitle
	}
	if dupContent != "" {
		in.Content = dupContent
	}
	if dupSummary != "" {
		in.Summary = dupSummary
	}
	if dupURL != "" {
		in.URL = dupURL
	}
	if dupSource != "" {
		in.SourceID = dupSource
	}
	if dupPublished != "" {
		t, err := time.Parse(time.RFC3339, dupPublished)
		if err != nil {
			return in, fmt.Errorf("invalid --published time: %w", err)
		}
		in.PublishedAt = &t
	}
	return in, nil
}
