// Package seed loads venue layouts and event ticket definitions from a YAML
// or JSON file and writes them to a catalog store.
//
// Example:
//
//	venues:
//	  - id: arena
//	    name: City Arena
//	    blocks:
//	      - {category: VIP, totalSeats: 50}
//	      - {category: NORMAL, totalSeats: 200}
//	events:
//	  - id: concert-1
//	    venueId: arena
//	    title: Opening Night
//	    startsAt: "2026-11-01T19:00:00Z"
//	    tickets:
//	      - {name: Gold, blockName: A, price: "₹500", startSeat: 1, endSeat: 50}
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/iliyamo/block-seat-reservation/internal/model"
	"github.com/iliyamo/block-seat-reservation/internal/service"
)

// File is the decoded seed document.
type File struct {
	Venues []Venue `mapstructure:"venues"`
	Events []Event `mapstructure:"events"`
}

// Venue lists blocks in order; they are named A, B, ... by position.
type Venue struct {
	ID     string                `mapstructure:"id"`
	Name   string                `mapstructure:"name"`
	Blocks []service.BlockLayout `mapstructure:"blocks"`
}

type Event struct {
	ID       string                   `mapstructure:"id"`
	VenueID  string                   `mapstructure:"venueId"`
	Title    string                   `mapstructure:"title"`
	StartsAt string                   `mapstructure:"startsAt"`
	Tickets  []model.TicketDefinition `mapstructure:"tickets"`
}

// Store receives the seeded catalog.  Both the MySQL repositories and the
// in-memory store satisfy it.
type Store interface {
	SaveVenue(ctx context.Context, v model.Venue) error
	SaveEvent(ctx context.Context, e model.Event, defs []model.TicketDefinition) error
}

// Summary counts what Apply wrote.
type Summary struct {
	Venues  int
	Blocks  int
	Events  int
	Tickets int
}

// Load reads path.  The format follows the file extension.
func Load(path string) (File, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return File{}, fmt.Errorf("read seed file: %w", err)
	}
	var f File
	if err := v.Unmarshal(&f); err != nil {
		return File{}, fmt.Errorf("decode seed file: %w", err)
	}
	return f, nil
}

// Apply validates f and saves venues before events.
func Apply(ctx context.Context, store Store, f File) (Summary, error) {
	var sum Summary
	for _, sv := range f.Venues {
		blocks, err := service.BuildBlocks(sv.Blocks)
		if err != nil {
			return sum, fmt.Errorf("venue %s: %w", sv.ID, err)
		}
		v := model.Venue{ID: sv.ID, Name: sv.Name, Blocks: blocks}
		if v.ID == "" {
			return sum, fmt.Errorf("venue %q: id is required", sv.Name)
		}
		if err := service.ValidateVenue(v); err != nil {
			return sum, fmt.Errorf("venue %s: %w", sv.ID, err)
		}
		if err := store.SaveVenue(ctx, v); err != nil {
			return sum, fmt.Errorf("save venue %s: %w", sv.ID, err)
		}
		sum.Venues++
		sum.Blocks += len(blocks)
	}
	for _, se := range f.Events {
		if se.ID == "" || se.VenueID == "" {
			return sum, fmt.Errorf("event %q: id and venueId are required", se.Title)
		}
		startsAt, err := time.Parse(time.RFC3339, se.StartsAt)
		if err != nil {
			return sum, fmt.Errorf("event %s: startsAt: %w", se.ID, err)
		}
		e := model.Event{ID: se.ID, VenueID: se.VenueID, Title: se.Title, StartsAt: startsAt.UTC()}
		if err := store.SaveEvent(ctx, e, se.Tickets); err != nil {
			return sum, fmt.Errorf("save event %s: %w", se.ID, err)
		}
		sum.Events++
		sum.Tickets += len(se.Tickets)
	}
	return sum, nil
}
