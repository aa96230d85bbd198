package service

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/block-seat-reservation/internal/model"
)

// Selection is a user's proposed seat range under a ticket category.
type Selection struct {
	Category  string `json:"category"`
	BlockName string `json:"block_name"`
	FromSeat  int    `json:"from_seat"`
	ToSeat    int    `json:"to_seat"`
}

// ValidateSelection checks a selection against the event's categories and
// returns the normalized line item with quantity and line total computed
// here.  Checks run in order: category, block, range shape, bounds.
func ValidateSelection(categories *CategoryIndex, sel Selection) (model.BookingLineItem, error) {
	name := strings.TrimSpace(sel.Category)
	block := NormalizeBlockName(sel.BlockName)

	known, ranges := categories.lookup(name, block)
	if !known {
		return model.BookingLineItem{}, invalid(ReasonUnknownCategory, "unknown ticket category %q", sel.Category)
	}
	if len(ranges) == 0 {
		return model.BookingLineItem{}, invalid(ReasonUnknownBlock, "block %q is not sold under category %q", sel.BlockName, name)
	}
	if sel.FromSeat < 1 {
		return model.BookingLineItem{}, invalid(ReasonSeatOutOfRange, "seat numbers start at 1, got %d", sel.FromSeat)
	}
	if sel.FromSeat > sel.ToSeat {
		return model.BookingLineItem{}, invalid(ReasonRangeInverted, "from seat %d is after to seat %d", sel.FromSeat, sel.ToSeat)
	}

	for _, c := range ranges {
		if !c.Contains(sel.FromSeat, sel.ToSeat) {
			continue
		}
		qty := sel.ToSeat - sel.FromSeat + 1
		return model.BookingLineItem{
			Category:  c.Name,
			BlockName: c.BlockName,
			FromSeat:  sel.FromSeat,
			ToSeat:    sel.ToSeat,
			Quantity:  qty,
			UnitPrice: c.UnitPrice,
			LineTotal: c.UnitPrice.Mul(decimal.NewFromInt(int64(qty))),
		}, nil
	}
	return model.BookingLineItem{}, invalid(ReasonSeatOutOfRange, "%s is outside the seats sold as %q (%s)",
		model.SeatRange{BlockName: block, FromSeat: sel.FromSeat, ToSeat: sel.ToSeat}.Label(), name, describeBounds(ranges))
}

func describeBounds(ranges []model.TicketCategory) string {
	parts := make([]string, 0, len(ranges))
	for _, c := range ranges {
		parts = append(parts, model.SeatRange{BlockName: c.BlockName, FromSeat: c.StartSeat, ToSeat: c.EndSeat}.Label())
	}
	return strings.Join(parts, ", ")
}

// validateSelections validates every selection of one request and rejects
// requests that are empty or that overlap themselves.
func validateSelections(categories *CategoryIndex, sels []Selection) ([]model.BookingLineItem, error) {
	if len(sels) == 0 {
		return nil, invalid(ReasonEmptyBooking, "at least one seat range is required")
	}
	items := make([]model.BookingLineItem, 0, len(sels))
	for _, sel := range sels {
		li, err := ValidateSelection(categories, sel)
		if err != nil {
			return nil, err
		}
		for _, prev := range items {
			if prev.Overlaps(li) {
				return nil, invalid(ReasonOverlapping, "selection %s overlaps %s in the same booking",
					model.SeatRange{BlockName: li.BlockName, FromSeat: li.FromSeat, ToSeat: li.ToSeat}.Label(),
					model.SeatRange{BlockName: prev.BlockName, FromSeat: prev.FromSeat, ToSeat: prev.ToSeat}.Label())
			}
		}
		items = append(items, li)
	}
	return items, nil
}

// totals sums quantities and line totals.
func totals(items []model.BookingLineItem) (int, decimal.Decimal) {
	seats, price := 0, decimal.Zero
	for _, li := range items {
		seats += li.Quantity
		price = price.Add(li.LineTotal)
	}
	return seats, price
}

// blocksOf returns the distinct block names of items, sorted.  Lock
// acquisition follows this order.
func blocksOf(items []model.BookingLineItem) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, li := range items {
		if !seen[li.BlockName] {
			seen[li.BlockName] = true
			out = append(out, li.BlockName)
		}
	}
	sort.Strings(out)
	return out
}
