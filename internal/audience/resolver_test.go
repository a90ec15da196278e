package audience

import (
	"context"
	"testing"

	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/domain"
)

type staticDeals []domain.PipelineDeal

func (s staticDeals) ListDeals(_ context.Context) ([]domain.PipelineDeal, error) {
	return s, nil
}

func f64(v float64) *float64 { return &v }

var testDeals = []domain.PipelineDeal{
	{ID: 1, FullName: "Alice", StageID: 2, Value: 10000, Source: "referral"},
	{ID: 2, FullName: "Bob", StageID: 2, Value: 500, Source: "website"},
	{ID: 3, FullName: "Carol", StageID: 3, Value: 25000, Source: "website"},
	{ID: 4, FullName: "Dan", StageID: 5, Value: 7500, Source: "outbound"},
}

func TestResolveNoFiltersReturnsAll(t *testing.T) {
	r := NewResolver(staticDeals(testDeals))
	got, err := r.Resolve(context.Background(), nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != len(testDeals) {
		t.Fatalf("expected full deal set, got %d", len(got))
	}
}

func TestResolveStageFilterIsOrWithinList(t *testing.T) {
	r := NewResolver(staticDeals(testDeals))
	got, _ := r.Resolve(context.Background(), &domain.SegmentFilters{StageIDs: []int64{2, 5}})
	if len(got) != 3 {
		t.Fatalf("expected deals in stages 2 or 5, got %d", len(got))
	}
	for _, d := range got {
		if d.StageID != 2 && d.StageID != 5 {
			t.Fatalf("deal %d has stage %d", d.ID, d.StageID)
		}
	}
}

func TestResolveDimensionsAreAnd(t *testing.T) {
	r := NewResolver(staticDeals(testDeals))
	got, _ := r.Resolve(context.Background(), &domain.SegmentFilters{
		StageIDs:     []int64{2, 3},
		MinDealValue: f64(1000),
		Sources:      []string{"website"},
	})
	if len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("expected only deal 3, got %v", got)
	}
}

func TestResolveValueRange(t *testing.T) {
	r := NewResolver(staticDeals(testDeals))
	got, _ := r.Resolve(context.Background(), &domain.SegmentFilters{
		MinDealValue: f64(1000),
		MaxDealValue: f64(20000),
	})
	if len(got) != 2 {
		t.Fatalf("expected deals 1 and 4, got %v", got)
	}
}

func TestResolveZeroMatches(t *testing.T) {
	r := NewResolver(staticDeals(testDeals))
	got, _ := r.Resolve(context.Background(), &domain.SegmentFilters{StageIDs: []int64{99}})
	if len(got) != 0 {
		t.Fatalf("expected empty audience, got %d", len(got))
	}
}

func TestResolveStableOrder(t *testing.T) {
	r := NewResolver(staticDeals(testDeals))
	a, _ := r.Resolve(context.Background(), &domain.SegmentFilters{Sources: []string{"website"}})
	b, _ := r.Resolve(context.Background(), &domain.SegmentFilters{Sources: []string{"website"}})
	if len(a) != len(b) {
		t.Fatalf("result sizes differ")
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Fatalf("order not stable for fixed snapshot")
		}
	}
}
