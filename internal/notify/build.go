package notify

import (
	"context"

	"jobmate/workforce-service/internal/domain"
)

// UserLookup resolves user projections for contact details.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// lookup returns nil for unknown users; notices fall back to ids.
func lookup(ctx context.Context, users UserLookup, id string) *domain.User {
	u, err := users.GetUser(ctx, id)
	if err != nil {
		return nil
	}
	return u
}

// DecisionFor builds the notice sent to the student after app was decided.
func DecisionFor(ctx context.Context, users UserLookup, app *domain.Application, job *domain.Job) DecisionNotice {
	provider := lookup(ctx, users, job.ProviderID)
	return DecisionNotice{
		Student:       ContactOf(app.StudentID, lookup(ctx, users, app.StudentID)),
		ApplicationID: app.ID,
		JobID:         job.ID,
		JobTitle:      job.Title,
		Decision:      app.Status,
		ProviderName:  provider.DisplayName("Provider"),
	}
}

// NewApplicationFor builds the notice sent to the job's provider after app
// was submitted.
func NewApplicationFor(ctx context.Context, users UserLookup, app *domain.Application, job *domain.Job) NewApplicationNotice {
	return NewApplicationNotice{
		Provider:      ContactOf(job.ProviderID, lookup(ctx, users, job.ProviderID)),
		ApplicationID: app.ID,
		JobID:         job.ID,
		JobTitle:      job.Title,
		StudentName:   lookup(ctx, users, app.StudentID).DisplayName("Applicant"),
		Metadata:      app.Metadata,
	}
}
