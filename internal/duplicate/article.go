package duplicate

import (
	"context"
	"time"
)

// Article is an already ingested item that new input is compared against.
type Article struct {
	ID          string     `json:"id"`
	SourceID    string     `json:"source_id,omitempty"`
	Title       string     `json:"title"`
	Content     string     `json:"content,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	URL         string     `json:"url,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ReferenceTime is the publish time, or the ingest time when unknown.
func (a Article) ReferenceTime() time.Time {
	if a.PublishedAt != nil && !a.PublishedAt.IsZero() {
		return *a.PublishedAt
	}
	return a.CreatedAt
}

// ArticleSource returns candidate articles published or created at or after since.
type ArticleSource interface {
	RecentArticles(ctx context.Context, since time.Time) ([]Article, error)
}

// body is the text compared against input content: the content, or the
// summary when no content was stored.
func (a Article) body() string {
	if a.Content != "" {
		return a.Content
	}
	return a.Summary
}
