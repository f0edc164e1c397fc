package api

import "finapi/internal/core"

// Amounts leave the process as JSON numbers. Conversion to float happens only
// here, after all arithmetic is done in decimal.

type recordJSON struct {
	PK       string  `json:"pk"`
	SK       string  `json:"sk"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
	Note     string  `json:"note"`
	IsoDate  string  `json:"isoDate"`
}

type reportJSON struct {
	Month      string             `json:"month"`
	Total      float64            `json:"total"`
	AvgTicket  float64            `json:"avg_ticket"`
	ByCategory map[string]float64 `json:"by_category"`
	Count      int                `json:"count"`
}

type savedJSON struct {
	OK    bool       `json:"ok"`
	Saved recordJSON `json:"saved"`
}

type itemsJSON struct {
	Items []recordJSON `json:"items"`
}

type errorJSON struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type notFoundJSON struct {
	Message string `json:"message"`
}

func toRecordJSON(r core.TransactionRecord) recordJSON {
	return recordJSON{
		PK:       r.PartitionKey,
		SK:       r.SortKey,
		Amount:   r.Amount.InexactFloat64(),
		Category: r.Category,
		Note:     r.Note,
		IsoDate:  r.IsoTimestamp,
	}
}

func toItemsJSON(records []core.TransactionRecord) itemsJSON {
	items := make([]recordJSON, 0, len(records))
	for _, r := range records {
		items = append(items, toRecordJSON(r))
	}
	return itemsJSON{Items: items}
}

func toReportJSON(rep core.MonthlyReport) reportJSON {
	by := make(map[string]float64, len(rep.ByCategory))
	for k, v := range rep.ByCategory {
		by[k] = v.InexactFloat64()
	}
	return reportJSON{
		Month:      rep.Period,
		Total:      rep.Total.InexactFloat64(),
		AvgTicket:  rep.AverageTicket.InexactFloat64(),
		ByCategory: by,
		Count:      rep.Count,
	}
}
