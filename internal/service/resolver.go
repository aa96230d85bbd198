package service

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/block-seat-reservation/internal/model"
)

// ResolveCategories turns an event's raw ticket definitions into
// purchasable categories.  It never fails: definitions that cannot be made
// usable are dropped, so malformed input yields an empty slice.
//
// Prices are normalized with ParsePrice.  StartSeat defaults to 1 and
// EndSeat to StartSeat+Quantity-1 when no explicit bound is given.
func ResolveCategories(defs []model.TicketDefinition) []model.TicketCategory {
	out := make([]model.TicketCategory, 0, len(defs))
	for _, d := range defs {
		if c, ok := resolveDefinition(d); ok {
			out = append(out, c)
		}
	}
	return out
}

func resolveDefinition(d model.TicketDefinition) (model.TicketCategory, bool) {
	name := strings.TrimSpace(d.Name)
	block := NormalizeBlockName(d.BlockName)
	if name == "" || block == "" {
		return model.TicketCategory{}, false
	}

	start, ok := parseSeat(d.StartSeat.String())
	if !ok || start <= 0 {
		start = 1
	}
	end, ok := parseSeat(d.EndSeat.String())
	if !ok || end <= 0 {
		qty, ok := parseSeat(d.Quantity.String())
		if !ok || qty <= 0 {
			return model.TicketCategory{}, false
		}
		end = maxSeatNumber
		if qty <= maxSeatNumber-start {
			end = start + qty - 1
		}
	}
	if end < start {
		return model.TicketCategory{}, false
	}

	return model.TicketCategory{
		Name:      name,
		BlockName: block,
		PriceType: strings.TrimSpace(d.PriceType),
		UnitPrice: ParsePrice(d.Price.String()),
		StartSeat: start,
		EndSeat:   end,
	}, true
}

// ParsePrice extracts a non-negative amount from display text such as
// "₹1,200", "Rs. 1,200.50" or "500".  Commas are thousands separators.
// Anything unparseable, and any negative amount, yields zero.
func ParsePrice(raw string) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	first := strings.IndexFunc(raw, isDigit)
	if first < 0 {
		return decimal.Zero
	}
	if strings.ContainsRune(raw[:first], '-') {
		return decimal.Zero
	}

	var b strings.Builder
scan:
	for _, r := range raw[first:] {
		switch {
		case isDigit(r), r == '.':
			b.WriteRune(r)
		case r == ',', r == '_', r == ' ', r == '\u00a0':
		default:
			// trailing suffixes like "/-" or "INR" end the number
			break scan
		}
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(b.String(), "."))
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// maxSeatNumber caps parsed seat numbers and quantities.  Larger values
// are clamped to the block later anyway.
const maxSeatNumber = math.MaxInt32

// parseSeat reads a seat number or quantity.  Integral decimals ("10.0")
// are accepted, fractional ones are not.  Negative input reads as 0.
func parseSeat(raw string) (int, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.Equal(d.Truncate(0)) {
		return 0, false
	}
	switch {
	case d.IsNegative():
		return 0, true
	case d.GreaterThan(decimal.NewFromInt(maxSeatNumber)):
		return maxSeatNumber, true
	}
	return int(d.IntPart()), true
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// CategoryIndex groups resolved categories by name and block so selections
// can be checked without scanning the whole list.
type CategoryIndex struct {
	byName map[string]map[string][]model.TicketCategory
	all    []model.TicketCategory
}

// NewCategoryIndex indexes categories against the venue layout.  Categories
// pointing at a block the venue does not have are dropped and end bounds
// are clamped to the block's seat count.  A nil venue skips those checks.
func NewCategoryIndex(categories []model.TicketCategory, venue *model.Venue) *CategoryIndex {
	idx := &CategoryIndex{byName: make(map[string]map[string][]model.TicketCategory)}
	for _, c := range categories {
		if venue != nil {
			b, ok := venue.Block(c.BlockName)
			if !ok || c.StartSeat > b.TotalSeats {
				continue
			}
			if c.EndSeat > b.TotalSeats {
				c.EndSeat = b.TotalSeats
			}
		}
		blocks, ok := idx.byName[c.Name]
		if !ok {
			blocks = make(map[string][]model.TicketCategory)
			idx.byName[c.Name] = blocks
		}
		blocks[c.BlockName] = append(blocks[c.BlockName], c)
		idx.all = append(idx.all, c)
	}
	return idx
}

// All returns the indexed categories in input order.
func (idx *CategoryIndex) All() []model.TicketCategory { return idx.all }

func (idx *CategoryIndex) lookup(name, block string) (known bool, ranges []model.TicketCategory) {
	blocks, ok := idx.byName[name]
	if !ok {
		return false, nil
	}
	return true, blocks[block]
}
