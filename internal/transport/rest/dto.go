package rest

import (
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/proofdesk/internal/domain"
)

type projectResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
}

type versionResponse struct {
	ID           uuid.UUID `json:"id"`
	Number       int       `json:"number"`
	URL          string    `json:"url"`
	ThumbnailURL *string   `json:"thumbnail_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type feedbackResponse struct {
	ID        uuid.UUID       `json:"id"`
	VersionID *uuid.UUID      `json:"version_id,omitempty"`
	Text      string          `json:"text"`
	Markup    *domain.Locator `json:"markup,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type fileResponse struct {
	ID               uuid.UUID          `json:"id"`
	Name             string             `json:"name"`
	Format           domain.FileFormat  `json:"format"`
	Status           domain.FileStatus  `json:"status"`
	CurrentVersionID *uuid.UUID         `json:"current_version_id,omitempty"`
	Versions         []versionResponse  `json:"versions"`
	Feedback         []feedbackResponse `json:"feedback"`
}

func toProjectResponse(p domain.Project) projectResponse {
	return projectResponse{ID: p.ID, Name: p.Name, Description: p.Description}
}

func toFeedbackResponse(f domain.Feedback) feedbackResponse {
	return feedbackResponse{
		ID:        f.ID,
		VersionID: f.VersionID,
		Text:      f.Text,
		Markup:    f.Locator,
		CreatedAt: f.CreatedAt,
	}
}

func toFileResponse(b domain.FileBundle) fileResponse {
	out := fileResponse{
		ID:               b.File.ID,
		Name:             b.File.Name,
		Format:           b.File.Format,
		Status:           b.File.Status,
		CurrentVersionID: b.File.CurrentVersionID,
		Versions:         make([]versionResponse, len(b.Versions)),
		Feedback:         make([]feedbackResponse, len(b.Feedback)),
	}
	for i, v := range b.Versions {
		out.Versions[i] = versionResponse{
			ID:           v.ID,
			Number:       b.VersionNumber(v.ID),
			URL:          v.URL,
			ThumbnailURL: v.ThumbnailURL,
			CreatedAt:    v.CreatedAt,
		}
	}
	for i, f := range b.Feedback {
		out.Feedback[i] = toFeedbackResponse(f)
	}
	return out
}

func toFileResponses(bundles []domain.FileBundle) []fileResponse {
	out := make([]fileResponse, len(bundles))
	for i, b := range bundles {
		out[i] = toFileResponse(b)
	}
	return out
}
