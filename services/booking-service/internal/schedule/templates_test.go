package schedule

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/slotbookhq/slotbook/services/booking-service/internal/interval"
	"github.com/slotbookhq/slotbook/services/booking-service/internal/model"
)

// memTemplateStore is an in-memory TemplateStore for engine tests.
type memTemplateStore struct {
	nextID    int
	templates map[string]model.Template
}

func newMemTemplateStore() *memTemplateStore {
	return &memTemplateStore{templates: map[string]model.Template{}}
}

func (s *memTemplateStore) ListByOwner(_ context.Context, providerID string, exclude []string) ([]model.Template, error) {
	excluded := map[string]bool{}
	for _, id := range exclude {
		excluded[id] = true
	}
	var out []model.Template
	for _, t := range s.templates {
		if t.ProviderID == providerID && !excluded[t.ID] {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FromMinute < out[j].FromMinute })
	return out, nil
}

func (s *memTemplateStore) Get(_ context.Context, providerID, id string) (model.Template, error) {
	t, ok := s.templates[id]
	if !ok || t.ProviderID != providerID {
		return model.Template{}, ErrNotFound
	}
	return t, nil
}

func (s *memTemplateStore) Delete(_ context.Context, providerID, id string) error {
	t, ok := s.templates[id]
	if !ok || t.ProviderID != providerID {
		return ErrNotFound
	}
	delete(s.templates, id)
	return nil
}

func (s *memTemplateStore) InTransaction(ctx context.Context, _ string, fn func(tx TemplateTx) error) error {
	return fn(s)
}

func (s *memTemplateStore) Insert(_ context.Context, t *model.Template) error {
	s.nextID++
	t.ID = fmt.Sprintf("tmpl-%d", s.nextID)
	s.templates[t.ID] = *t
	return nil
}

func (s *memTemplateStore) Update(_ context.Context, t *model.Template) error {
	if _, ok := s.templates[t.ID]; !ok {
		return ErrNotFound
	}
	s.templates[t.ID] = *t
	return nil
}

func TestTemplateCreateClash(t *testing.T) {
	svc := NewTemplateService(newMemTemplateStore())
	ctx := context.Background()

	if _, err := svc.Create(ctx, "prov-1", 800, 1000); err != nil {
		t.Fatalf("initial create failed: %v", err)
	}

	clashing := [][2]int{
		{900, 1200}, // starts inside
		{600, 900},  // ends inside
		{600, 1200}, // wraps
		{850, 900},  // nested
	}
	for _, c := range clashing {
		_, err := svc.Create(ctx, "prov-1", c[0], c[1])
		var overlap *OverlapError
		if !errors.As(err, &overlap) {
			t.Fatalf("create(%d, %d): expected OverlapError, got %v", c[0], c[1], err)
		}
		if overlap.Conflicting.FromMinute != 800 || overlap.Conflicting.ToMinute != 1000 {
			t.Fatalf("create(%d, %d): unexpected conflicting template %+v", c[0], c[1], overlap.Conflicting)
		}
	}

	// Touching windows do not clash.
	if _, err := svc.Create(ctx, "prov-1", 1000, 1100); err != nil {
		t.Fatalf("touching create failed: %v", err)
	}
	// A different provider's week is independent.
	if _, err := svc.Create(ctx, "prov-2", 850, 950); err != nil {
		t.Fatalf("other-provider create failed: %v", err)
	}
}

func TestTemplateCreateBounds(t *testing.T) {
	svc := NewTemplateService(newMemTemplateStore())
	ctx := context.Background()

	invalid := [][2]int{
		{-10, 1000},
		{0, 10081},
		{800, 700},
		{800, 800},
	}
	for _, c := range invalid {
		if _, err := svc.Create(ctx, "prov-1", c[0], c[1]); !errors.Is(err, ErrValidation) {
			t.Fatalf("create(%d, %d): expected validation error, got %v", c[0], c[1], err)
		}
	}

	// Full-week template is legal.
	if _, err := svc.Create(ctx, "prov-1", 0, 10080); err != nil {
		t.Fatalf("full-week create failed: %v", err)
	}
}

func TestTemplateUpdateExcludesSelf(t *testing.T) {
	svc := NewTemplateService(newMemTemplateStore())
	ctx := context.Background()

	created, err := svc.Create(ctx, "prov-1", 800, 1000)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Shifting a template within its own span must not clash with itself.
	res, err := svc.Update(ctx, "prov-1", created.ID, 850, 950)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if res.Clashed {
		t.Fatal("update clashed against the template being updated")
	}
	if res.Template.FromMinute != 850 || res.Template.ToMinute != 950 {
		t.Fatalf("update did not apply: %+v", res.Template)
	}
}

func TestTemplateUpdateClashReportsStaleRow(t *testing.T) {
	svc := NewTemplateService(newMemTemplateStore())
	ctx := context.Background()

	first, err := svc.Create(ctx, "prov-1", 800, 1000)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.Create(ctx, "prov-1", 1200, 1400); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	res, err := svc.Update(ctx, "prov-1", first.ID, 1300, 1500)
	if err != nil {
		t.Fatalf("update returned error instead of clash outcome: %v", err)
	}
	if !res.Clashed {
		t.Fatal("expected clash outcome")
	}
	// The stored row stays untouched and is what the result carries.
	if res.Template.FromMinute != 800 || res.Template.ToMinute != 1000 {
		t.Fatalf("expected unmodified template in clash result, got %+v", res.Template)
	}
	if res.Conflicting.FromMinute != 1200 {
		t.Fatalf("unexpected conflicting row: %+v", res.Conflicting)
	}

	stored, err := svc.ListByOwner(ctx, "prov-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if stored[0].FromMinute != 800 || stored[0].ToMinute != 1000 {
		t.Fatalf("clashing update must not persist, got %+v", stored[0])
	}
}

func TestTemplateStoreNeverOverlapsUnderRandomCreates(t *testing.T) {
	svc := NewTemplateService(newMemTemplateStore())
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		from := rng.Intn(model.MinutesPerWeek)
		to := from + 1 + rng.Intn(480)
		if to > model.MinutesPerWeek {
			to = model.MinutesPerWeek
		}
		if from >= to {
			continue
		}
		_, _ = svc.Create(ctx, "prov-1", from, to)
	}

	stored, err := svc.ListByOwner(ctx, "prov-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(stored) == 0 {
		t.Fatal("expected at least one accepted template")
	}
	for i := range stored {
		for j := range stored {
			if i == j {
				continue
			}
			if interval.ClashesMinutes(stored[i], stored[j]) {
				t.Fatalf("store holds overlapping templates %+v and %+v", stored[i], stored[j])
			}
		}
	}
}
