// Package audience resolves campaign segment filters to the set of
// pipeline deals that should receive a send.
package audience

import (
	"context"
	"fmt"

	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/domain"
)

// DealStore is the read-side persistence contract the resolver needs.
type DealStore interface {
	ListDeals(ctx context.Context) ([]domain.PipelineDeal, error)
}

// Resolver filters the full deal set down to a campaign's audience.
// Filter dimensions combine with AND; values within a list filter
// combine with OR. Result order follows the store's order, which is
// stable for a fixed data snapshot; the resolver adds no randomization.
type Resolver struct {
	deals DealStore
}

func NewResolver(deals DealStore) *Resolver {
	return &Resolver{deals: deals}
}

// Resolve returns the deals matching every present filter dimension.
// A nil filter set matches the full deal set.
func (r *Resolver) Resolve(ctx context.Context, filters *domain.SegmentFilters) ([]domain.PipelineDeal, error) {
	deals, err := r.deals.ListDeals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	return Filter(deals, filters), nil
}

// Filter applies segment filters to an in-memory deal snapshot.
func Filter(deals []domain.PipelineDeal, filters *domain.SegmentFilters) []domain.PipelineDeal {
	if filters == nil {
		return deals
	}

	out := make([]domain.PipelineDeal, 0, len(deals))
	for _, d := range deals {
		if matches(&d, filters) {
			out = append(out, d)
		}
	}
	return out
}

func matches(d *domain.PipelineDeal, f *domain.SegmentFilters) bool {
	if len(f.StageIDs) > 0 && !containsInt64(f.StageIDs, d.StageID) {
		return false
	}
	if f.MinDealValue != nil && d.Value < *f.MinDealValue {
		return false
	}
	if f.MaxDealValue != nil && d.Value > *f.MaxDealValue {
		return false
	}
	if len(f.Sources) > 0 && !containsString(f.Sources, d.Source) {
		return false
	}
	return true
}

func containsInt64(xs []int64, x int64) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func containsString(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
