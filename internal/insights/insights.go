package insights

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"snapspend/internal/receipt"
)

// Lister is the slice of the record store the engine reads.
type Lister interface {
	ListReceipts() ([]*receipt.Record, error)
}

// CategorySpend is one category's share of all item spend.
type CategorySpend struct {
	Category        string  `json:"category"`
	CategorySpend   float64 `json:"categorySpend"`
	SpendPercentage float64 `json:"spendPercentage"`
}

// FrequentItem counts how often one item name was purchased.
type FrequentItem struct {
	Item      string `json:"item"`
	Frequency int    `json:"frequency"`
}

// CategoryAverage is the mean line-item price within one category.
type CategoryAverage struct {
	Category               string  `json:"category"`
	AverageSpendInCategory float64 `json:"averageSpendInCategory"`
}

// MonthlySpend sums receipt totals for one calendar month.
type MonthlySpend struct {
	Month        int     `json:"month"`
	Year         int     `json:"year"`
	MonthlySpend float64 `json:"monthlySpend"`
}

// Collective is the combined analytics payload over the whole record set.
type Collective struct {
	TotalSpend                float64           `json:"totalSpend"`
	AverageSpend              float64           `json:"averageSpend"`
	HighestSpend              float64           `json:"highestSpend"`
	LowestSpend               float64           `json:"lowestSpend"`
	CategorySpendDistribution []CategorySpend   `json:"categorySpendDistribution"`
	FrequentItems             []FrequentItem    `json:"frequentItems"`
	AvgSpendPerCategory       []CategoryAverage `json:"avgSpendPerCategory"`
	MonthlySpendTrend         []MonthlySpend    `json:"monthlySpendTrend"`
}

// Engine computes collective insights over the persisted record set.
type Engine struct {
	db Lister
}

func NewEngine(db Lister) *Engine {
	return &Engine{db: db}
}

// maxFrequentItems caps the item-frequency view.
const maxFrequentItems = 10

// Collect reads the record set once and computes the five summary views
// concurrently. The views are independent and each writes its own fields,
// so no locking is needed.
func (e *Engine) Collect(ctx context.Context) (*Collective, error) {
	records, err := e.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}

	var out Collective
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		out.TotalSpend, out.AverageSpend, out.HighestSpend, out.LowestSpend = overallSpend(records)
		return nil
	})
	g.Go(func() error {
		out.CategorySpendDistribution = categoryDistribution(records)
		return nil
	})
	g.Go(func() error {
		out.FrequentItems = frequentItems(records)
		return nil
	})
	g.Go(func() error {
		out.AvgSpendPerCategory = categoryAverages(records)
		return nil
	})
	g.Go(func() error {
		out.MonthlySpendTrend = monthlyTrend(records)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &out, nil
}

func overallSpend(records []*receipt.Record) (total, average, highest, lowest float64) {
	if len(records) == 0 {
		return 0, 0, 0, 0
	}
	highest = float64(records[0].Total)
	lowest = float64(records[0].Total)
	for _, r := range records {
		amount := float64(r.Total)
		total += amount
		if amount > highest {
			highest = amount
		}
		if amount < lowest {
			lowest = amount
		}
	}
	average = total / float64(len(records))
	return total, average, highest, lowest
}

func categoryDistribution(records []*receipt.Record) []CategorySpend {
	spend := make(map[string]float64)
	var grand float64
	for _, r := range records {
		for _, it := range r.Items {
			spend[it.Category] += float64(it.Price)
			grand += float64(it.Price)
		}
	}

	out := make([]CategorySpend, 0, len(spend))
	for cat, amount := range spend {
		pct := 0.0
		if grand != 0 {
			pct = amount / grand * 100
		}
		out = append(out, CategorySpend{Category: cat, CategorySpend: amount, SpendPercentage: pct})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CategorySpend != out[j].CategorySpend {
			return out[i].CategorySpend > out[j].CategorySpend
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func frequentItems(records []*receipt.Record) []FrequentItem {
	counts := make(map[string]int)
	for _, r := range records {
		for _, it := range r.Items {
			counts[it.Name]++
		}
	}

	out := make([]FrequentItem, 0, len(counts))
	for name, n := range counts {
		out = append(out, FrequentItem{Item: name, Frequency: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Item < out[j].Item
	})
	if len(out) > maxFrequentItems {
		out = out[:maxFrequentItems]
	}
	return out
}

func categoryAverages(records []*receipt.Record) []CategoryAverage {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range records {
		for _, it := range r.Items {
			sums[it.Category] += float64(it.Price)
			counts[it.Category]++
		}
	}

	out := make([]CategoryAverage, 0, len(sums))
	for cat, sum := range sums {
		out = append(out, CategoryAverage{Category: cat, AverageSpendInCategory: sum / float64(counts[cat])})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AverageSpendInCategory != out[j].AverageSpendInCategory {
			return out[i].AverageSpendInCategory > out[j].AverageSpendInCategory
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func monthlyTrend(records []*receipt.Record) []MonthlySpend {
	type monthKey struct {
		year  int
		month int
	}
	sums := make(map[monthKey]float64)
	for _, r := range records {
		key := monthKey{year: r.Date.Year(), month: int(r.Date.Month())}
		sums[key] += float64(r.Total)
	}

	out := make([]MonthlySpend, 0, len(sums))
	for key, sum := range sums {
		out = append(out, MonthlySpend{Month: key.month, Year: key.year, MonthlySpend: sum})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}
