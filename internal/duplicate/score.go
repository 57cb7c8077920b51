package duplicate

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/labhacker007/Joti-sub001/internal/normalize"
)

var (
	weightTitleHigh   = decimal.RequireFromString("0.5")
	weightTitleMedium = decimal.RequireFromString("0.4")
	weightTitleLow    = decimal.RequireFromString("0.2")
	weightContent     = decimal.RequireFromString("0.3")
	bonusDomain       = decimal.RequireFromString("0.1")
	bonusTime         = decimal.RequireFromString("0.1")
	maxScore          = decimal.NewFromInt(1)
)

const (
	titleHighRatio   = 0.90
	titleMediumRatio = 0.70
	contentRatio     = 0.80
	timeWindow       = 24 * time.Hour
)

// Breakdown is the composite score of one candidate and the signals behind it.
type Breakdown struct {
	TitleRatio    float64 `json:"title_ratio"`
	ContentRatio  float64 `json:"content_ratio"`
	SameDomain    bool    `json:"same_domain"`
	CloseInTime   bool    `json:"close_in_time"`
	Score         float64 `json:"score"`
	titleWeight   decimal.Decimal
	contentWeight decimal.Decimal
}

// Score computes the composite similarity of in against one candidate.
// The result is always within [0, 1].
func Score(in Input, candidate Article) Breakdown {
	var b Breakdown

	b.TitleRatio = TitleSimilarity(in.Title, candidate.Title)
	switch {
	case b.TitleRatio >= titleHighRatio:
		b.titleWeight = weightTitleHigh
	case b.TitleRatio >= titleMediumRatio:
		b.titleWeight = weightTitleMedium
	default:
		b.titleWeight = weightTitleLow.Mul(decimal.NewFromFloat(b.TitleRatio))
	}

	b.ContentRatio = ContentSimilarity(in.body(), candidate.body())
	if b.ContentRatio >= contentRatio {
		b.contentWeight = weightContent
	}

	b.SameDomain = sameOrigin(in, candidate)
	if in.PublishedAt != nil && !in.PublishedAt.IsZero() {
		b.CloseInTime = absDuration(in.PublishedAt.Sub(candidate.ReferenceTime())) < timeWindow
	}

	sum := b.titleWeight.Add(b.contentWeight)
	if b.SameDomain {
		sum = sum.Add(bonusDomain)
	}
	if b.CloseInTime {
		sum = sum.Add(bonusTime)
	}
	b.Score = decimal.Min(sum, maxScore).Round(4).InexactFloat64()
	return b
}

// Reasoning describes which signals fired.
func (b Breakdown) Reasoning() string {
	var parts []string
	switch {
	case b.TitleRatio >= titleHighRatio:
		parts = append(parts, fmt.Sprintf("near-identical title (%.2f)", b.TitleRatio))
	case b.TitleRatio >= titleMediumRatio:
		parts = append(parts, fmt.Sprintf("similar title (%.2f)", b.TitleRatio))
	}
	if !b.contentWeight.IsZero() {
		parts = append(parts, fmt.Sprintf("similar content (%.2f)", b.ContentRatio))
	}
	if b.SameDomain {
		parts = append(parts, "same source domain")
	}
	if b.CloseInTime {
		parts = append(parts, "published within 24h")
	}
	if len(parts) == 0 {
		return fmt.Sprintf("no strong signals (score %.2f)", b.Score)
	}
	return strings.Join(parts, ", ") + fmt.Sprintf(" (score %.2f)", b.Score)
}

// sameOrigin compares URL domains. Without an input URL, a shared source id
// stands in for the domain.
func sameOrigin(in Input, candidate Article) bool {
	if d := normalize.Domain(in.URL); d != "" {
		return d == normalize.Domain(candidate.URL)
	}
	return in.SourceID != "" && in.SourceID == candidate.SourceID
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
