package model

import (
	"fmt"
	"strings"
)

// BlockCategory is the seating class of a block.  The set is closed;
// anything outside it is rejected when a venue is loaded.
type BlockCategory string

const (
	BlockVIP     BlockCategory = "VIP"
	BlockPremium BlockCategory = "PREMIUM"
	BlockNormal  BlockCategory = "NORMAL"
	BlockBalcony BlockCategory = "BALCONY"
)

// ParseBlockCategory maps a case-insensitive label onto a BlockCategory.
func ParseBlockCategory(s string) (BlockCategory, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "VIP":
		return BlockVIP, nil
	case "PREMIUM":
		return BlockPremium, nil
	case "NORMAL":
		return BlockNormal, nil
	case "BALCONY":
		return BlockBalcony, nil
	}
	return "", fmt.Errorf("unknown block category %q", s)
}

// Venue describes the static seating layout of a place where events run.
// Blocks keep the order in which they were published.
//
// Fields:
//
//	ID     - primary key identifier.
//	Name   - display name of the venue.
//	Blocks - ordered seating partitions.
type Venue struct {
	ID     string  `json:"id"`     // venues.id
	Name   string  `json:"name"`   // venues.name
	Blocks []Block `json:"blocks"` // venue_blocks rows ordered by position
}

// Block is a named partition of a venue.  Seats inside a block are
// numbered densely from 1 to TotalSeats.
type Block struct {
	Name       string        `json:"name"`        // venue_blocks.name (A, B, ..., AA)
	Category   BlockCategory `json:"category"`    // venue_blocks.category
	TotalSeats int           `json:"total_seats"` // venue_blocks.total_seats
}

// SeatLabel renders a seat as it is printed on a ticket, e.g. "A12".
func SeatLabel(block string, seat int) string {
	return fmt.Sprintf("%s%d", block, seat)
}

// Block looks up a block by name.
func (v Venue) Block(name string) (Block, bool) {
	for _, b := range v.Blocks {
		if b.Name == name {
			return b, true
		}
	}
	return Block{}, false
}
