package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/block-seat-reservation/internal/model"
)

func TestParsePrice(t *testing.T) {
	tests := map[string]string{
		"₹500":         "500",
		"₹1,200":       "1200",
		"Rs. 1,200.50": "1200.5",
		"1 200":        "1200",
		"INR 750/-":    "750",
		"99.":          "99",
		"":             "0",
		"free":         "0",
		"-100":         "0",
		"₹-5":          "0",
		"-₹500":        "0",
		"- 500":        "0",
		"₹ -500":       "0",
		"1.2.3":        "0",
		"1,50,000":     "150000",
		" 300 INR":     "300",
	}
	for in, want := range tests {
		got := ParsePrice(in)
		assert.True(t, decimal.RequireFromString(want).Equal(got), "ParsePrice(%q) = %s, want %s", in, got, want)
	}
}

func TestResolveCategories_Defaults(t *testing.T) {
	cats := ResolveCategories([]model.TicketDefinition{
		{Name: "Normal", BlockName: "a", Price: "₹500", StartSeat: "1", EndSeat: "100"},
		{Name: "Upper", BlockName: "B", Price: "250", StartSeat: "11", Quantity: "10"},
		{Name: "Quantity only", BlockName: "C", Price: "100", Quantity: "40"},
		{Name: "Decimal bounds", BlockName: "D", Price: "100", StartSeat: "1.0", EndSeat: "5"},
	})
	require.Len(t, cats, 4)

	assert.Equal(t, "A", cats[0].BlockName)
	assert.Equal(t, [2]int{1, 100}, [2]int{cats[0].StartSeat, cats[0].EndSeat})
	assert.True(t, decimal.NewFromInt(500).Equal(cats[0].UnitPrice))

	assert.Equal(t, [2]int{11, 20}, [2]int{cats[1].StartSeat, cats[1].EndSeat})
	assert.Equal(t, [2]int{1, 40}, [2]int{cats[2].StartSeat, cats[2].EndSeat})
	assert.Equal(t, [2]int{1, 5}, [2]int{cats[3].StartSeat, cats[3].EndSeat})
}

func TestResolveCategories_DropsUnusable(t *testing.T) {
	cats := ResolveCategories([]model.TicketDefinition{
		{Name: "", BlockName: "A", Price: "1", Quantity: "1"},
		{Name: "No block", BlockName: "", Price: "1", Quantity: "1"},
		{Name: "No bound", BlockName: "A", Price: "1"},
		{Name: "Inverted", BlockName: "A", Price: "1", StartSeat: "10", EndSeat: "5"},
		{Name: "Fractional", BlockName: "A", Price: "1", StartSeat: "1", EndSeat: "2.5"},
		{Name: "Garbage price", BlockName: "A", Price: "n/a", Quantity: "3"},
	})
	require.Len(t, cats, 1)
	assert.Equal(t, "Garbage price", cats[0].Name)
	assert.True(t, cats[0].UnitPrice.IsZero())

	assert.Empty(t, ResolveCategories(nil))
}

func TestResolveCategories_HugeBounds(t *testing.T) {
	cats := ResolveCategories([]model.TicketDefinition{
		{Name: "Huge quantity", BlockName: "A", Price: "10", Quantity: "9223372036854775807"},
		{Name: "Huge end", BlockName: "A", Price: "10", StartSeat: "5", EndSeat: "99999999999999999999"},
		{Name: "Negative start", BlockName: "A", Price: "10", StartSeat: "-3", Quantity: "2"},
	})
	require.Len(t, cats, 3)
	assert.Equal(t, [2]int{1, maxSeatNumber}, [2]int{cats[0].StartSeat, cats[0].EndSeat})
	assert.Equal(t, [2]int{5, maxSeatNumber}, [2]int{cats[1].StartSeat, cats[1].EndSeat})
	assert.Equal(t, [2]int{1, 2}, [2]int{cats[2].StartSeat, cats[2].EndSeat})

	venue := &model.Venue{Blocks: []model.Block{{Name: "A", Category: model.BlockNormal, TotalSeats: 50}}}
	all := NewCategoryIndex(cats[:1], venue).All()
	require.Len(t, all, 1)
	assert.Equal(t, 50, all[0].EndSeat)
}

func TestCategoryIndex_ClampsToVenue(t *testing.T) {
	venue := &model.Venue{Blocks: []model.Block{{Name: "A", Category: model.BlockNormal, TotalSeats: 50}}}
	idx := NewCategoryIndex([]model.TicketCategory{
		{Name: "Normal", BlockName: "A", StartSeat: 1, EndSeat: 80},
		{Name: "Ghost", BlockName: "Q", StartSeat: 1, EndSeat: 10},
		{Name: "Beyond", BlockName: "A", StartSeat: 60, EndSeat: 70},
	}, venue)

	all := idx.All()
	require.Len(t, all, 1)
	assert.Equal(t, 50, all[0].EndSeat)

	known, ranges := idx.lookup("Normal", "A")
	assert.True(t, known)
	assert.Len(t, ranges, 1)
	known, _ = idx.lookup("Ghost", "Q")
	assert.False(t, known)
}

func TestValidateSelection(t *testing.T) {
	idx := NewCategoryIndex([]model.TicketCategory{
		{Name: "Normal", BlockName: "A", UnitPrice: decimal.NewFromInt(500), StartSeat: 1, EndSeat: 50},
		{Name: "Normal", BlockName: "A", UnitPrice: decimal.NewFromInt(400), StartSeat: 51, EndSeat: 100},
	}, nil)

	li, err := ValidateSelection(idx, Selection{Category: " Normal ", BlockName: "a", FromSeat: 60, ToSeat: 62})
	require.NoError(t, err)
	assert.Equal(t, "A", li.BlockName)
	assert.Equal(t, 3, li.Quantity)
	assert.True(t, decimal.NewFromInt(1200).Equal(li.LineTotal))

	_, err = ValidateSelection(idx, Selection{Category: "Normal", BlockName: "A", FromSeat: 49, ToSeat: 52})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, ReasonSeatOutOfRange, ve.Reason)
	assert.Contains(t, ve.Message, "A49-A52")
}

func TestBlocksOfIsSortedAndUnique(t *testing.T) {
	items := []model.BookingLineItem{{BlockName: "C"}, {BlockName: "A"}, {BlockName: "C"}, {BlockName: "AA"}}
	assert.Equal(t, []string{"A", "AA", "C"}, blocksOf(items))
}
