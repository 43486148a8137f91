package analyzer

import (
	"context"
	"strings"
	"time"

	"github.com/snapsight/client/internal/models"
)

// FixtureProvider returns a canned analysis without calling any model. It
// backs the dev server and tests.
type FixtureProvider struct {
	now func() time.Time
}

// NewFixtureProvider constructs a provider serving fixture responses.
func NewFixtureProvider() *FixtureProvider {
	return &FixtureProvider{now: time.Now}
}

// WithNowFunc allows tests to override the time source.
func (p *FixtureProvider) WithNowFunc(now func() time.Time) {
	p.now = now
}

// Analyze returns the fixture payload. Keys naming a missing object yield
// ErrImageUnavailable so failure paths stay exercisable without a real store.
func (p *FixtureProvider) Analyze(_ context.Context, imageURL string, req models.AnalyzeRequest) (models.AnalysisResult, error) {
	if strings.Contains(req.FileKey, "not-found") || strings.Contains(imageURL, "not-found") {
		return models.AnalysisResult{}, ErrImageUnavailable
	}

	language := req.Language
	if language == "" {
		language = "en"
	}

	result := models.AnalysisResult{
		Curation: models.Curation{
			IsAppropriate: true,
			Labels:        []string{"outdoor", "landscape", "nature"},
			Risk:          models.RiskLow,
			Notes:         "No sensitive content detected.",
		},
		Caption: models.Caption{
			Text:         "Sunset hues over the quiet coastline.",
			Alternatives: []string{"Golden hour by the sea.", "A calm evening embracing the shore."},
		},
		Songs: []models.Song{
			{Title: "Ocean Eyes", Artist: "Billie Eilish", Reason: "Calm coastal vibe"},
			{Title: "Sunset Lover", Artist: "Petit Biscuit", Reason: "Warm sunset mood"},
		},
		Topics: []models.Topic{
			{Topic: "Travel", Confidence: 0.94},
			{Topic: "Photography", Confidence: 0.89},
			{Topic: "Nature", Confidence: 0.87},
		},
		Engagement: models.Engagement{
			EstimatedScore: 0.78,
			Drivers:        []string{"color palette", "subject clarity"},
			Suggestions:    []string{"Add a human subject", "Include location tag"},
		},
		Meta: models.Meta{
			Language:    language,
			GeneratedAt: p.now().UTC(),
		},
	}

	return clamp(result, req), nil
}

var _ Provider = (*FixtureProvider)(nil)
