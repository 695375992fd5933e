package schedule

import (
	"context"

	"github.com/slotbookhq/slotbook/services/booking-service/internal/interval"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/model"
)

// TemplateStore is the persistence surface for weekly availability templates.
// InTransaction must serialize concurrent writers for the same provider so
// the read-check-write sequence below stays atomic.
type TemplateStore interface {
	ListByOwner(ctx context.Context, providerID string, exclude []string) ([]model.Template, error)
	Get(ctx context.Context, providerID, id string) (model.Template, error)
	Delete(ctx context.Context, providerID, id string) error
	InTransaction(ctx context.Context, providerID string, fn func(tx TemplateTx) error) error
}

// TemplateTx is the transaction-scoped slice of TemplateStore.
type TemplateTx interface {
	ListByOwner(ctx context.Context, providerID string, exclude []string) ([]model.Template, error)
	Insert(ctx context.Context, t *model.Template) error
	Update(ctx context.Context, t *model.Template) error
}

// TemplateService owns the no-overlap invariant for recurring weekly
// availability templates.
type TemplateService struct {
	store TemplateStore
}

func NewTemplateService(store TemplateStore) *TemplateService {
	return &TemplateService{store: store}
}

func validateBounds(from, to int) error {
	if from < 0 || from > model.MinutesPerWeek {
		return validationf("from must be within [0, %d], got %d", model.MinutesPerWeek, from)
	}
	if to < 0 || to > model.MinutesPerWeek {
		return validationf("to must be within [0, %d], got %d", model.MinutesPerWeek, to)
	}
	if from >= to {
		return validationf("from must be less than to")
	}
	return nil
}

// findClash returns the first stored template overlapping [from, to), if any.
func findClash(from, to int, others []model.Template) (model.Template, bool) {
	subject := interval.MinuteSpan{From: from, To: to}
	for _, other := range others {
		if interval.ClashesMinutes(subject, other) {
			return other, true
		}
	}
	return model.Template{}, false
}

// Create validates bounds, checks for overlaps against the provider's
// existing templates and persists the new template. A clash yields an
// *OverlapError naming the conflicting row.
func (s *TemplateService) Create(ctx context.Context, providerID string, from, to int) (model.Template, error) {
	if err := validateBounds(from, to); err != nil {
		return model.Template{}, err
	}

	var created model.Template
	err := s.store.InTransaction(ctx, providerID, func(tx TemplateTx) error {
		existing, err := tx.ListByOwner(ctx, providerID, nil)
		if err != nil {
			return err
		}
		if conflict, clash := findClash(from, to, existing); clash {
			return &OverlapError{Conflicting: conflict}
		}
		created = model.Template{
			ProviderID: providerID,
			FromMinute: from,
			ToMinute:   to,
		}
		return tx.Insert(ctx, &created)
	})
	if err != nil {
		return model.Template{}, err
	}
	return created, nil
}

// UpdateResult carries the outcome of an Update. When Clashed is set,
// Template holds the unmodified stored row and Conflicting the row it
// would have overlapped; the caller decides how to surface that.
type UpdateResult struct {
	Template    model.Template
	Conflicting model.Template
	Clashed     bool
}

// Update revalidates bounds and re-runs the overlap check with the updated
// template excluded from the comparison set. A clash is reported as a typed
// outcome rather than an error so the transport layer can choose its shape.
func (s *TemplateService) Update(ctx context.Context, providerID, id string, from, to int) (UpdateResult, error) {
	if err := validateBounds(from, to); err != nil {
		return UpdateResult{}, err
	}

	var result UpdateResult
	err := s.store.InTransaction(ctx, providerID, func(tx TemplateTx) error {
		rest, err := tx.ListByOwner(ctx, providerID, []string{id})
		if err != nil {
			return err
		}

		current, err := s.store.Get(ctx, providerID, id)
		if err != nil {
			return err
		}

		if conflict, clash := findClash(from, to, rest); clash {
			result = UpdateResult{Template: current, Conflicting: conflict, Clashed: true}
			return nil
		}

		current.FromMinute = from
		current.ToMinute = to
		if err := tx.Update(ctx, &current); err != nil {
			return err
		}
		result = UpdateResult{Template: current}
		return nil
	})
	if err != nil {
		return UpdateResult{}, err
	}
	return result, nil
}

// ListByOwner returns the provider's templates ascending by FromMinute.
func (s *TemplateService) ListByOwner(ctx context.Context, providerID string) ([]model.Template, error) {
	return s.store.ListByOwner(ctx, providerID, nil)
}

// Delete removes a template unconditionally. There is no cascading
// invariant to maintain beyond dropping the row.
func (s *TemplateService) Delete(ctx context.Context, providerID, id string) error {
	return s.store.Delete(ctx, providerID, id)
}
