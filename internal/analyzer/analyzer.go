// Package analyzer produces social-media insights for an uploaded image:
// content curation, caption suggestions, song recommendations, topics, and
// an engagement estimate.
package analyzer

import (
	"context"
	"errors"

	"github.com/snapsight/client/internal/models"
)

// ErrImageUnavailable indicates the image behind the provided URL could not
// be fetched for analysis.
var ErrImageUnavailable = errors.New("image could not be fetched")

// Provider generates an analysis for the image readable at imageURL.
type Provider interface {
	Analyze(ctx context.Context, imageURL string, req models.AnalyzeRequest) (models.AnalysisResult, error)
}

// clamp trims the result's lists to the limits requested by the client and
// drops facets that were not asked for.
func clamp(result models.AnalysisResult, req models.AnalyzeRequest) models.AnalysisResult {
	if req.Limits.MaxSongs > 0 && len(result.Songs) > req.Limits.MaxSongs {
		result.Songs = result.Songs[:req.Limits.MaxSongs]
	}
	if req.Limits.MaxTopics > 0 && len(result.Topics) > req.Limits.MaxTopics {
		result.Topics = result.Topics[:req.Limits.MaxTopics]
	}

	if len(req.Tasks) == 0 {
		return result
	}

	requested := make(map[string]bool, len(req.Tasks))
	for _, task := range req.Tasks {
		requested[task] = true
	}

	if !requested[models.TaskCuration] {
		result.Curation = models.Curation{}
	}
	if !requested[models.TaskCaption] {
		result.Caption = models.Caption{}
	}
	if !requested[models.TaskSongs] {
		result.Songs = nil
	}
	if !requested[models.TaskTopics] {
		result.Topics = nil
	}
	if !requested[models.TaskEngagement] {
		result.Engagement = models.Engagement{}
	}

	return result
}
