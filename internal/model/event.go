package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Event is a scheduled occurrence at a venue for which seats are sold.
type Event struct {
	ID       string    `json:"id"`        // events.id
	VenueID  string    `json:"venue_id"`  // events.venue_id
	Title    string    `json:"title"`     // events.title
	StartsAt time.Time `json:"starts_at"` // events.starts_at (UTC)
}

// EventCatalog bundles everything a reservation attempt needs to know about
// an event before touching the booking store: the venue layout and the raw
// ticket definitions published for the event.
type EventCatalog struct {
	Event       Event
	Venue       Venue
	Definitions []TicketDefinition
}

// FlexValue holds a loosely typed scalar from an upstream definition.  It
// accepts JSON strings and numbers alike and keeps the raw text so that
// normalization happens in a single place.
type FlexValue string

// UnmarshalJSON accepts "1,200", 1200, 1200.5 and null.
func (f *FlexValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexValue(strings.TrimSpace(s))
		return nil
	}
	*f = FlexValue(b)
	return nil
}

// String returns the raw text.
func (f FlexValue) String() string { return string(f) }

// TicketDefinition is an event's ticket definition as published by the
// event management collaborator.  Prices and bounds are untrusted text.
//
// Fields:
//
//	Name      - category name shown to attendees (e.g. "Gold").
//	BlockName - block the category sells seats in.
//	Price     - unit price, possibly formatted ("₹1,200").
//	PriceType - free-form pricing label (e.g. "per_seat").
//	StartSeat - first seat of the sellable range, optional.
//	EndSeat   - last seat of the sellable range, optional.
//	Quantity  - number of seats when explicit bounds are absent.
type TicketDefinition struct {
	Name      string    `json:"name" mapstructure:"name"`
	BlockName string    `json:"blockName" mapstructure:"blockName"`
	Price     FlexValue `json:"price" mapstructure:"price"`
	PriceType string    `json:"priceType" mapstructure:"priceType"`
	StartSeat FlexValue `json:"startSeat" mapstructure:"startSeat"`
	EndSeat   FlexValue `json:"endSeat" mapstructure:"endSeat"`
	Quantity  FlexValue `json:"quantity" mapstructure:"quantity"`
}

// TicketCategory is a purchasable, normalized category of an event: a
// price applied to an inclusive seat range within one block.
type TicketCategory struct {
	Name      string          `json:"name"`
	BlockName string          `json:"block_name"`
	PriceType string          `json:"price_type"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	StartSeat int             `json:"start_seat"`
	EndSeat   int             `json:"end_seat"`
}

// Contains reports whether [from, to] lies inside the category bounds.
func (c TicketCategory) Contains(from, to int) bool {
	return from >= c.StartSeat && to <= c.EndSeat
}
