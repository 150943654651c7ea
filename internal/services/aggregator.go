// Package services implements the spending analytics engine: the aggregator
// that turns receipt history into summary statistics, the budget tracker that
// owns the monthly budget lifecycle, and the reporting facade other
// components call.
package services

import (
	"math"
	"sort"
	"time"

	"scontrini/internal/core"
)

const trendMonths = 6

type (
	// TrendPoint is one month of the rolling spending trend.
	TrendPoint struct {
		Month  string  `json:"month"`
		Amount float64 `json:"amount"`
	}

	// SpendingSummary is the aggregate view over a user's whole receipt
	// history. All monetary fields are rounded to two decimals; TopCategory
	// and TopStore are nil when the user has no data.
	SpendingSummary struct {
		TotalSpent         float64            `json:"total_spent"`
		TransactionCount   int                `json:"transaction_count"`
		AverageTransaction float64            `json:"average_transaction"`
		TopCategory        *string            `json:"top_category"`
		TopStore           *string            `json:"top_store"`
		SpendingByCategory map[string]float64 `json:"spending_by_category"`
		SpendingByStore    map[string]float64 `json:"spending_by_store"`
		MonthlyTrend       []TrendPoint       `json:"monthly_trend"`
	}

	// ItemFact is one line item inside a category breakdown.
	ItemFact struct {
		Name     string  `json:"name"`
		Price    float64 `json:"price"`
		Quantity int64   `json:"quantity"`
	}

	// CategoryDetail is the per-category slice of a breakdown: running
	// total, item count, share of the grand total and the five largest
	// items by line total.
	CategoryDetail struct {
		Total      float64    `json:"total"`
		Count      int        `json:"count"`
		Percentage float64    `json:"percentage"`
		TopItems   []ItemFact `json:"top_items"`
	}
)

// Aggregator computes spending statistics from ledger data. It is stateless
// given its inputs; the clock is injectable for the trend window.
type Aggregator struct {
	now func() time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{now: time.Now}
}

// Summary aggregates a user's receipts and items into a SpendingSummary.
// A user with no receipts gets zeroed counts, empty maps and an empty trend;
// that is a valid answer, not an error.
func (a *Aggregator) Summary(receipts []core.Receipt, items []core.Item) SpendingSummary {
	if len(receipts) == 0 {
		return SpendingSummary{
			SpendingByCategory: map[string]float64{},
			SpendingByStore:    map[string]float64{},
			MonthlyTrend:       []TrendPoint{},
		}
	}

	var totalCents int64
	for _, r := range receipts {
		totalCents += r.Total.Cents
	}
	count := len(receipts)
	average := float64(totalCents) / float64(count) / 100.0

	byCategory := newOrderedSums()
	for _, it := range items {
		byCategory.add(it.CategoryLabel(), it.LineTotal().Cents)
	}

	byStore := newOrderedSums()
	for _, r := range receipts {
		byStore.add(r.StoreLabel(), r.Total.Cents)
	}

	return SpendingSummary{
		TotalSpent:         core.Money{Cents: totalCents}.Amount(),
		TransactionCount:   count,
		AverageTransaction: roundTo(average, 2),
		TopCategory:        byCategory.top(),
		TopStore:           byStore.top(),
		SpendingByCategory: byCategory.amounts(),
		SpendingByStore:    byStore.amounts(),
		MonthlyTrend:       a.monthlyTrend(receipts),
	}
}

// monthlyTrend buckets the last six months of receipts, oldest first. Target
// months are derived by stepping back 30*i days from now, not by calendar
// arithmetic; that drifts slightly over long spans but consumers depend on
// the exact bucketing. Receipts without a purchase date are excluded.
func (a *Aggregator) monthlyTrend(receipts []core.Receipt) []TrendPoint {
	now := a.now().UTC()
	windowStart := now.AddDate(0, 0, -30*trendMonths)

	monthly := make(map[string]int64)
	for _, r := range receipts {
		if !r.HasPurchaseDate() || r.PurchaseDate.Before(windowStart) {
			continue
		}
		monthly[r.PurchaseDate.Format("2006-01")] += r.Total.Cents
	}

	trend := make([]TrendPoint, 0, trendMonths)
	for i := trendMonths - 1; i >= 0; i-- {
		target := now.AddDate(0, 0, -30*i)
		trend = append(trend, TrendPoint{
			Month:  target.Format("Jan 2006"),
			Amount: core.Money{Cents: monthly[target.Format("2006-01")]}.Amount(),
		})
	}
	return trend
}

// CategoryBreakdown accumulates a user's items per category and computes
// each category's share of the grand total. Item lists are truncated to the
// top five by line total, descending.
func (a *Aggregator) CategoryBreakdown(items []core.Item) map[string]CategoryDetail {
	type bucket struct {
		cents int64
		items []core.Item
	}
	buckets := make(map[string]*bucket)
	for _, it := range items {
		label := it.CategoryLabel()
		b, ok := buckets[label]
		if !ok {
			b = &bucket{}
			buckets[label] = b
		}
		b.cents += it.LineTotal().Cents
		b.items = append(b.items, it)
	}

	var grandTotal int64
	for _, b := range buckets {
		grandTotal += b.cents
	}

	out := make(map[string]CategoryDetail, len(buckets))
	for label, b := range buckets {
		var pct float64
		if grandTotal > 0 {
			pct = roundTo(float64(b.cents)/float64(grandTotal)*100, 1)
		}

		sort.SliceStable(b.items, func(i, j int) bool {
			return b.items[i].LineTotal().Cents > b.items[j].LineTotal().Cents
		})
		top := b.items
		if len(top) > 5 {
			top = top[:5]
		}
		facts := make([]ItemFact, len(top))
		for i, it := range top {
			facts[i] = ItemFact{Name: it.Name, Price: it.Price.Amount(), Quantity: it.Quantity}
		}

		out[label] = CategoryDetail{
			Total:      core.Money{Cents: b.cents}.Amount(),
			Count:      len(b.items),
			Percentage: pct,
			TopItems:   facts,
		}
	}
	return out
}

// orderedSums accumulates cent sums per key while remembering first-seen
// order, so top() can break ties deterministically with a strict-greater
// scan (the first key seen wins).
type orderedSums struct {
	sums  map[string]int64
	order []string
}

func newOrderedSums() *orderedSums {
	return &orderedSums{sums: make(map[string]int64)}
}

func (o *orderedSums) add(key string, cents int64) {
	if _, seen := o.sums[key]; !seen {
		o.order = append(o.order, key)
	}
	o.sums[key] += cents
}

func (o *orderedSums) top() *string {
	if len(o.order) == 0 {
		return nil
	}
	best := o.order[0]
	for _, key := range o.order[1:] {
		if o.sums[key] > o.sums[best] {
			best = key
		}
	}
	return &best
}

func (o *orderedSums) amounts() map[string]float64 {
	out := make(map[string]float64, len(o.sums))
	for key, cents := range o.sums {
		out[key] = core.Money{Cents: cents}.Amount()
	}
	return out
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
