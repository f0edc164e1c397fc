package core

import "github.com/shopspring/decimal"

// MonthlyReport summarizes one owner/period partition.
type MonthlyReport struct {
	Period        string
	Count         int
	Total         decimal.Decimal
	AverageTicket decimal.Decimal
	ByCategory    map[string]decimal.Decimal
}

// Aggregate folds records into a report. All sums stay exact; the average is
// zero for an empty partition.
func Aggregate(period string, records []TransactionRecord) MonthlyReport {
	report := MonthlyReport{
		Period:        period,
		Total:         decimal.Zero,
		AverageTicket: decimal.Zero,
		ByCategory:    make(map[string]decimal.Decimal),
	}

	for _, r := range records {
		report.Count++
		report.Total = report.Total.Add(r.Amount)
		cat := NormalizeCategory(r.Category)
		report.ByCategory[cat] = report.ByCategory[cat].Add(r.Amount)
	}

	if report.Count > 0 {
		report.AverageTicket = report.Total.Div(decimal.NewFromInt(int64(report.Count)))
	}
	return report
}
