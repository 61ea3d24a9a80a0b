/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package forecast

import (
	"context"
	"sort"
	"time"

	"github.com/friendsincode/stallcast/internal/models"
)

// SlotLoad is the live state of one slot.
type SlotLoad struct {
	Slot         string          `json:"slot"`
	Label        string          `json:"label"`
	Level        CongestionLevel `json:"congestion"`
	CurrentCount int             `json:"current_orders"`
}

// Recommender ranks slots from least to most loaded.
type Recommender struct {
	classifier *Classifier
	catalog    *models.SlotCatalog
}

// NewRecommender creates a recommender over every slot in catalog.
func NewRecommender(classifier *Classifier, catalog *models.SlotCatalog) *Recommender {
	if catalog == nil {
		catalog = models.DefaultSlotCatalog()
	}
	return &Recommender{classifier: classifier, catalog: catalog}
}

// Loads classifies every slot of stallID on date, in catalog order.
func (r *Recommender) Loads(ctx context.Context, stallID string, date time.Time) []SlotLoad {
	slots := r.catalog.Slots()
	loads := make([]SlotLoad, 0, len(slots))
	for _, s := range slots {
		level, n := r.classifier.Classify(ctx, stallID, s.Key, date)
		loads = append(loads, SlotLoad{
			Slot:         s.Key,
			Label:        s.Label,
			Level:        level,
			CurrentCount: n,
		})
	}
	return loads
}

// Recommend returns every slot sorted by ascending live count. Ties keep
// catalog order.
func (r *Recommender) Recommend(ctx context.Context, stallID string, date time.Time) []SlotLoad {
	return RankLoads(r.Loads(ctx, stallID, date))
}

// RankLoads stably sorts loads by ascending count.
func RankLoads(loads []SlotLoad) []SlotLoad {
	out := make([]SlotLoad, len(loads))
	copy(out, loads)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CurrentCount < out[j].CurrentCount
	})
	return out
}
