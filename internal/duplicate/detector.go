// Package duplicate flags incoming articles that repeat something already
// ingested, using a weighted text similarity score and an optional model
// opinion.
package duplicate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/labhacker007/Joti-sub001/internal/metrics"
)

const (
	DefaultSimilarityThreshold = 0.80
	DefaultLookbackDays        = 3
	DefaultSemanticFloor       = 0.50
)

// Input is an article that has not been stored yet.
type Input struct {
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Summary     string     `json:"summary,omitempty"`
	URL         string     `json:"url,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	SourceID    string     `json:"source_id,omitempty"`
}

func (in Input) body() string {
	if in.Content != "" {
		return in.Content
	}
	return in.Summary
}

// Result is produced fresh for every check.
type Result struct {
	IsDuplicate      bool    `json:"is_duplicate"`
	Confidence       float64 `json:"confidence"`
	MatchedArticleID *string `json:"matched_article_id"`
	Reasoning        string  `json:"reasoning"`
	SimilarityScore  float64 `json:"similarity_score"`
	// Semantic is set when the model opinion was consulted and answered.
	Semantic *Verdict `json:"semantic,omitempty"`
}

// Config is tunable at runtime.
type Config struct {
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"`
	LookbackDays        int     `json:"lookback_days" yaml:"lookback_days"`
	SemanticEnabled     bool    `json:"semantic_enabled" yaml:"semantic_enabled"`
	// SemanticFloor is the lowest heuristic score that still asks the model.
	SemanticFloor float64 `json:"semantic_floor" yaml:"semantic_floor"`
}

func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: DefaultSimilarityThreshold,
		LookbackDays:        DefaultLookbackDays,
		SemanticFloor:       DefaultSemanticFloor,
	}
}

// ErrInvalidConfig is wrapped by every Config.Validate failure.
var ErrInvalidConfig = errors.New("invalid duplicate detection config")

func (c Config) Validate() error {
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity_threshold must be in (0, 1]", ErrInvalidConfig)
	}
	if c.LookbackDays < 1 || c.LookbackDays > 365 {
		return fmt.Errorf("%w: lookback_days must be between 1 and 365", ErrInvalidConfig)
	}
	if c.SemanticFloor < 0 || c.SemanticFloor > c.SimilarityThreshold {
		return fmt.Errorf("%w: semantic_floor must be in [0, similarity_threshold]", ErrInvalidConfig)
	}
	return nil
}

// Detector checks articles against a recent window from an ArticleSource.
type Detector struct {
	source   ArticleSource
	semantic SemanticChecker
	log      *zap.Logger
	now      func() time.Time

	mu  sync.RWMutex
	cfg Config
}

// NewDetector returns a Detector. semantic may be nil.
func NewDetector(source ArticleSource, semantic SemanticChecker, cfg Config, log *zap.Logger) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Detector{
		source:   source,
		semantic: semantic,
		log:      log,
		now:      time.Now,
		cfg:      cfg,
	}, nil
}

func (d *Detector) GetConfig() Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

func (d *Detector) UpdateConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
	d.log.Info("duplicate detection config updated",
		zap.Float64("threshold", cfg.SimilarityThreshold),
		zap.Int("lookback_days", cfg.LookbackDays),
		zap.Bool("semantic", cfg.SemanticEnabled))
	return nil
}

// CheckDuplicate scores in against every candidate in the lookback window.
// Only a failure to load candidates is returned as an error.
func (d *Detector) CheckDuplicate(ctx context.Context, in Input) (Result, error) {
	cfg := d.GetConfig()
	since := d.now().Add(-time.Duration(cfg.LookbackDays) * 24 * time.Hour)

	candidates, err := d.source.RecentArticles(ctx, since)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load candidate articles: %w", err)
	}

	if len(candidates) == 0 {
		metrics.RecordDuplicateCheck(false)
		return Result{Reasoning: "no recent articles to compare against"}, nil
	}

	var (
		best      Breakdown
		bestMatch *Article
	)
	for i := range candidates {
		b := Score(in, candidates[i])
		if bestMatch == nil || b.Score > best.Score {
			best = b
			bestMatch = &candidates[i]
		}
	}

	res := Result{
		Confidence:      best.Score,
		SimilarityScore: best.Score,
		Reasoning:       best.Reasoning(),
	}
	if best.Score >= cfg.SimilarityThreshold {
		res.IsDuplicate = true
		res.MatchedArticleID = &bestMatch.ID
	} else if cfg.SemanticEnabled && d.semantic != nil && best.Score >= cfg.SemanticFloor {
		d.applySemantic(ctx, &res, in, *bestMatch, cfg)
	}

	metrics.RecordDuplicateCheck(res.IsDuplicate)
	d.log.Debug("duplicate check",
		zap.Bool("duplicate", res.IsDuplicate),
		zap.Float64("score", best.Score),
		zap.Int("candidates", len(candidates)))
	return res, nil
}

// applySemantic asks the model about the closest candidate. Errors leave the
// heuristic result untouched.
func (d *Detector) applySemantic(ctx context.Context, res *Result, in Input, candidate Article, cfg Config) {
	v, err := d.semantic.Compare(ctx, in, candidate)
	if err != nil {
		d.log.Warn("semantic duplicate check failed, using heuristic result",
			zap.String("candidate", candidate.ID), zap.Error(err))
		return
	}
	res.Semantic = &v
	if v.Duplicate && v.Confidence >= cfg.SimilarityThreshold {
		res.IsDuplicate = true
		res.Confidence = v.Confidence
		res.MatchedArticleID = &candidate.ID
		if v.Reasoning != "" {
			res.Reasoning = res.Reasoning + "; semantic: " + v.Reasoning
		} else {
			res.Reasoning = res.Reasoning + "; semantic match"
		}
	}
}
