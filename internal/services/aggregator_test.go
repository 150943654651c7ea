package services

import (
	"math"
	"testing"
	"time"

	"scontrini/internal/core"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
}

func testAggregator() *Aggregator {
	a := NewAggregator()
	a.now = fixedNow
	return a
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSummaryEmpty(t *testing.T) {
	s := testAggregator().Summary(nil, nil)

	if s.TotalSpent != 0 || s.TransactionCount != 0 || s.AverageTransaction != 0 {
		t.Fatalf("empty summary should be zeroed: %+v", s)
	}
	if s.TopCategory != nil || s.TopStore != nil {
		t.Fatalf("empty summary should have nil tops: %+v", s)
	}
	if len(s.SpendingByCategory) != 0 || len(s.SpendingByStore) != 0 {
		t.Fatalf("empty summary should have empty maps: %+v", s)
	}
	if s.SpendingByCategory == nil || s.SpendingByStore == nil || s.MonthlyTrend == nil {
		t.Fatal("empty summary maps and trend must be non-nil")
	}
	if len(s.MonthlyTrend) != 0 {
		t.Fatalf("empty summary trend should be empty, got %d entries", len(s.MonthlyTrend))
	}
}

func TestSummaryTotals(t *testing.T) {
	receipts := []core.Receipt{
		{ID: 1, UserID: "u", StoreName: "Esselunga", Total: core.Money{Cents: 1000}},
		{ID: 2, UserID: "u", StoreName: "Coop", Total: core.Money{Cents: 500}},
		{ID: 3, UserID: "u"}, // no store, no total
	}
	items := []core.Item{
		{ReceiptID: 1, Name: "apples", Price: core.Money{Cents: 1000}, Quantity: 2, Category: "groceries"},
		{ReceiptID: 2, Name: "misc", Price: core.Money{Cents: 500}, Quantity: 1},
	}

	s := testAggregator().Summary(receipts, items)

	if s.TotalSpent != 15.00 {
		t.Errorf("TotalSpent = %v, want 15.00", s.TotalSpent)
	}
	if s.TransactionCount != 3 {
		t.Errorf("TransactionCount = %d, want 3", s.TransactionCount)
	}
	if s.AverageTransaction != 5.00 {
		t.Errorf("AverageTransaction = %v, want 5.00", s.AverageTransaction)
	}
	if got := s.SpendingByCategory["groceries"]; got != 20.00 {
		t.Errorf("groceries = %v, want 20.00", got)
	}
	if got := s.SpendingByCategory[core.DefaultCategory]; got != 5.00 {
		t.Errorf("Other = %v, want 5.00", got)
	}
	if s.TopCategory == nil || *s.TopCategory != "groceries" {
		t.Errorf("TopCategory = %v, want groceries", s.TopCategory)
	}
	if got := s.SpendingByStore[core.UnknownStore]; got != 0 {
		t.Errorf("Unknown store = %v, want 0", got)
	}
	if s.TopStore == nil || *s.TopStore != "Esselunga" {
		t.Errorf("TopStore = %v, want Esselunga", s.TopStore)
	}
}

func TestSummaryAverageRounding(t *testing.T) {
	receipts := []core.Receipt{
		{ID: 1, UserID: "u", Total: core.Money{Cents: 500}},
		{ID: 2, UserID: "u", Total: core.Money{Cents: 500}},
		{ID: 3, UserID: "u"},
	}
	s := testAggregator().Summary(receipts, nil)
	if s.AverageTransaction != 3.33 {
		t.Fatalf("AverageTransaction = %v, want 3.33", s.AverageTransaction)
	}
}

func TestSummaryTopTieFirstSeenWins(t *testing.T) {
	receipts := []core.Receipt{
		{ID: 1, UserID: "u", StoreName: "A", Total: core.Money{Cents: 1000}},
		{ID: 2, UserID: "u", StoreName: "B", Total: core.Money{Cents: 1000}},
	}
	s := testAggregator().Summary(receipts, nil)
	if s.TopStore == nil || *s.TopStore != "A" {
		t.Fatalf("TopStore = %v, want first-seen A on tie", s.TopStore)
	}
}

func TestMonthlyTrend(t *testing.T) {
	receipts := []core.Receipt{
		{ID: 1, UserID: "u", PurchaseDate: date(2025, 6, 1), Total: core.Money{Cents: 10000}},
		{ID: 2, UserID: "u", PurchaseDate: date(2025, 5, 20), Total: core.Money{Cents: 5000}},
		{ID: 3, UserID: "u", PurchaseDate: date(2025, 4, 10), Total: core.Money{Cents: 2550}},
		{ID: 4, UserID: "u", Total: core.Money{Cents: 9900}},                           // no date, excluded
		{ID: 5, UserID: "u", PurchaseDate: date(2024, 12, 1), Total: core.Money{Cents: 7700}}, // outside window
	}

	s := testAggregator().Summary(receipts, nil)

	want := []TrendPoint{
		{Month: "Jan 2025", Amount: 0},
		{Month: "Feb 2025", Amount: 0},
		{Month: "Mar 2025", Amount: 0},
		{Month: "Apr 2025", Amount: 25.50},
		{Month: "May 2025", Amount: 50.00},
		{Month: "Jun 2025", Amount: 100.00},
	}
	if len(s.MonthlyTrend) != len(want) {
		t.Fatalf("trend has %d entries, want %d", len(s.MonthlyTrend), len(want))
	}
	for i, w := range want {
		if s.MonthlyTrend[i] != w {
			t.Errorf("trend[%d] = %+v, want %+v", i, s.MonthlyTrend[i], w)
		}
	}
}

func TestCategoryBreakdown(t *testing.T) {
	items := []core.Item{
		{Name: "pasta", Price: core.Money{Cents: 300}, Quantity: 2, Category: "groceries"},
		{Name: "bread", Price: core.Money{Cents: 200}, Quantity: 1, Category: "groceries"},
		{Name: "soap", Price: core.Money{Cents: 400}, Quantity: 1, Category: "household"},
		{Name: "lighter", Price: core.Money{Cents: 200}, Quantity: 1},
	}

	breakdown := testAggregator().CategoryBreakdown(items)

	groceries, ok := breakdown["groceries"]
	if !ok {
		t.Fatal("missing groceries category")
	}
	if groceries.Total != 8.00 || groceries.Count != 2 {
		t.Errorf("groceries = %+v, want total 8.00 count 2", groceries)
	}
	// 800 of 1400 cents
	if groceries.Percentage != 57.1 {
		t.Errorf("groceries percentage = %v, want 57.1", groceries.Percentage)
	}
	if groceries.TopItems[0].Name != "pasta" {
		t.Errorf("top item = %q, want pasta (largest line total first)", groceries.TopItems[0].Name)
	}

	if _, ok := breakdown[core.DefaultCategory]; !ok {
		t.Errorf("uncategorized item should land in %q", core.DefaultCategory)
	}

	var pctSum float64
	for _, d := range breakdown {
		pctSum += d.Percentage
	}
	if math.Abs(pctSum-100) > 0.5 {
		t.Errorf("percentages sum to %v, want ~100", pctSum)
	}
}

func TestCategoryBreakdownTopFive(t *testing.T) {
	var items []core.Item
	for i := 1; i <= 7; i++ {
		items = append(items, core.Item{
			Name:     string(rune('a' + i - 1)),
			Price:    core.Money{Cents: int64(i * 100)},
			Quantity: 1,
			Category: "groceries",
		})
	}

	breakdown := testAggregator().CategoryBreakdown(items)
	groceries := breakdown["groceries"]

	if groceries.Count != 7 {
		t.Fatalf("Count = %d, want 7 (count covers all items, not just the top list)", groceries.Count)
	}
	if len(groceries.TopItems) != 5 {
		t.Fatalf("TopItems has %d entries, want 5", len(groceries.TopItems))
	}
	if groceries.TopItems[0].Name != "g" || groceries.TopItems[4].Name != "c" {
		t.Fatalf("TopItems misordered: %+v", groceries.TopItems)
	}
}

func TestCategoryBreakdownZeroTotal(t *testing.T) {
	items := []core.Item{
		{Name: "freebie", Price: core.Money{}, Quantity: 1, Category: "promo"},
	}
	breakdown := testAggregator().CategoryBreakdown(items)
	if got := breakdown["promo"].Percentage; got != 0 {
		t.Fatalf("Percentage with zero grand total = %v, want 0", got)
	}
}

func TestCategoryBreakdownEmpty(t *testing.T) {
	breakdown := testAggregator().CategoryBreakdown(nil)
	if len(breakdown) != 0 {
		t.Fatalf("breakdown of no items = %v, want empty", breakdown)
	}
}
