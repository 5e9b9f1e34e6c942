package receipt

import (
	"encoding/json"
	"fmt"
	"time"

	"snapspend/internal/fields"
)

// Amount is a currency amount. It marshals as a plain number; on the read
// side it also accepts the legacy string form ("£12.34") that older records
// persisted.
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*a = Amount(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("amount must be a number or currency string, got %s", b)
	}
	f, err := fields.ParseCurrency(s)
	if err != nil {
		return fmt.Errorf("parsing legacy amount: %w", err)
	}
	*a = Amount(f)
	return nil
}

// Item is one purchased line item on a receipt.
type Item struct {
	Name     string `json:"item"`
	Quantity string `json:"quantity"`
	Price    Amount `json:"price"`
	Category string `json:"category"`
}

// ItemList is stored as a structured array. Older records persisted the
// items as one serialized JSON string; that shape is accepted on read only.
type ItemList []Item

func (l *ItemList) UnmarshalJSON(b []byte) error {
	var items []Item
	if err := json.Unmarshal(b, &items); err == nil {
		*l = items
		return nil
	}
	var blob string
	if err := json.Unmarshal(b, &blob); err != nil {
		return fmt.Errorf("items must be an array or a serialized array, got %s", b)
	}
	if err := json.Unmarshal([]byte(blob), &items); err != nil {
		return fmt.Errorf("parsing serialized items: %w", err)
	}
	*l = items
	return nil
}

// Record is the persisted, normalized representation of one processed
// receipt. It is created exactly once per successful job and never updated.
type Record struct {
	ID          string          `json:"id"`
	FileName    string          `json:"fileName"`
	Date        time.Time       `json:"date"`
	Total       Amount          `json:"total"`
	Items       ItemList        `json:"items"`
	Insights    []string        `json:"insights"`
	RawAnalysis json.RawMessage `json:"rawTextractResponse,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// WithoutRaw returns a copy of the record without the raw analysis payload,
// for listing responses.
func (r *Record) WithoutRaw() *Record {
	c := *r
	c.RawAnalysis = nil
	return &c
}
