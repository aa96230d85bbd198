package service

import (
	"fmt"
	"strings"

	"github.com/iliyamo/block-seat-reservation/internal/model"
)

// BlockName converts a zero-based block position into its label:
// 0 -> A, 25 -> Z, 26 -> AA, 27 -> AB, 701 -> ZZ, 702 -> AAA.
func BlockName(i int) string {
	if i < 0 {
		return ""
	}
	var res []byte
	for {
		res = append(res, byte('A'+i%26))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}

// BlockIndex is the inverse of BlockName.  It reports false for labels
// containing anything other than ASCII letters.
func BlockIndex(label string) (int, bool) {
	s := strings.ToUpper(strings.TrimSpace(label))
	if s == "" {
		return -1, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch < 'A' || ch > 'Z' {
			return -1, false
		}
		n = n*26 + int(ch-'A'+1)
	}
	return n - 1, true
}

// NormalizeBlockName keeps ASCII letters only and upper-cases them, so
// "a", " A " and "a-" all refer to block A.
func NormalizeBlockName(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 32)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// BlockLayout describes one block before it has been given a name.
type BlockLayout struct {
	Category   string `json:"category" mapstructure:"category"`
	TotalSeats int    `json:"totalSeats" mapstructure:"totalSeats"`
}

// BuildBlocks names blocks by position, cycling letters then letter pairs.
func BuildBlocks(layout []BlockLayout) ([]model.Block, error) {
	blocks := make([]model.Block, 0, len(layout))
	for i, l := range layout {
		cat, err := model.ParseBlockCategory(l.Category)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		if l.TotalSeats <= 0 {
			return nil, fmt.Errorf("block %d: total seats must be positive", i)
		}
		blocks = append(blocks, model.Block{Name: BlockName(i), Category: cat, TotalSeats: l.TotalSeats})
	}
	return blocks, nil
}

// ValidateVenue checks a venue published by venue management before it is
// persisted or served: at least one block, well-formed unique names, a known
// category and a positive seat count on every block.
func ValidateVenue(v model.Venue) error {
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("venue name is required")
	}
	if len(v.Blocks) == 0 {
		return fmt.Errorf("venue %q has no blocks", v.Name)
	}
	seen := make(map[string]bool, len(v.Blocks))
	for _, b := range v.Blocks {
		if _, ok := BlockIndex(b.Name); !ok || NormalizeBlockName(b.Name) != b.Name {
			return fmt.Errorf("invalid block name %q", b.Name)
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate block %q", b.Name)
		}
		seen[b.Name] = true
		if _, err := model.ParseBlockCategory(string(b.Category)); err != nil {
			return fmt.Errorf("block %s: %w", b.Name, err)
		}
		if b.TotalSeats <= 0 {
			return fmt.Errorf("block %s: total seats must be positive", b.Name)
		}
	}
	return nil
}
