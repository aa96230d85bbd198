package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/block-seat-reservation/internal/model"
)

// BlockAvailability is a display snapshot of one block of one event.  It is
// never consulted by Reserve, which always reads the booking store.
type BlockAvailability struct {
	EventID     string              `json:"event_id"`
	BlockName   string              `json:"block_name"`
	Category    model.BlockCategory `json:"category"`
	TotalSeats  int                 `json:"total_seats"`
	BookedSeats int                 `json:"booked_seats"`
	FreeSeats   int                 `json:"free_seats"`
	Booked      []model.SeatRange   `json:"booked"`
	Free        []model.SeatRange   `json:"free"`
}

// MergeRanges sorts ranges by block and seat and folds overlapping or
// touching runs together.  The input is not modified.
func MergeRanges(in []model.SeatRange) []model.SeatRange {
	if len(in) == 0 {
		return nil
	}
	rs := append([]model.SeatRange(nil), in...)
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].BlockName != rs[j].BlockName {
			return rs[i].BlockName < rs[j].BlockName
		}
		return rs[i].FromSeat < rs[j].FromSeat
	})
	out := []model.SeatRange{rs[0]}
	for _, r := range rs[1:] {
		last := &out[len(out)-1]
		if r.BlockName == last.BlockName && r.FromSeat <= last.ToSeat+1 {
			last.ToSeat = max(last.ToSeat, r.ToSeat)
			continue
		}
		out = append(out, r)
	}
	return out
}

// buildAvailability derives the snapshot from the active line items of a
// block.
func buildAvailability(eventID string, block model.Block, active []model.BookingLineItem) BlockAvailability {
	booked := make([]model.SeatRange, 0, len(active))
	for _, li := range active {
		booked = append(booked, model.SeatRange{BlockName: block.Name, FromSeat: li.FromSeat, ToSeat: li.ToSeat})
	}
	booked = MergeRanges(booked)

	a := BlockAvailability{
		EventID:    eventID,
		BlockName:  block.Name,
		Category:   block.Category,
		TotalSeats: block.TotalSeats,
		Booked:     booked,
		Free:       []model.SeatRange{},
	}
	if a.Booked == nil {
		a.Booked = []model.SeatRange{}
	}
	next := 1
	for _, r := range booked {
		a.BookedSeats += r.Len()
		if r.FromSeat > next {
			a.Free = append(a.Free, model.SeatRange{BlockName: block.Name, FromSeat: next, ToSeat: r.FromSeat - 1})
		}
		next = r.ToSeat + 1
	}
	if next <= block.TotalSeats {
		a.Free = append(a.Free, model.SeatRange{BlockName: block.Name, FromSeat: next, ToSeat: block.TotalSeats})
	}
	a.FreeSeats = block.TotalSeats - a.BookedSeats
	return a
}

// AvailabilityCache keeps availability snapshots in Redis for listing
// screens.  Each (event, block) has a version counter that Invalidate bumps
// whenever a booking touching the block is committed or changes status.
// Snapshots carry the version read before the store was queried, and Get
// ignores a snapshot whose version is no longer current, so a read racing a
// write cannot re-publish what the write replaced.  The TTL bounds
// staleness if a bump is lost.
type AvailabilityCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

type cachedAvailability struct {
	Version      int64             `json:"version"`
	Availability BlockAvailability `json:"availability"`
}

// NewAvailabilityCache returns nil when rdb is nil so callers can pass the
// result through unconditionally; a nil cache is a no-op.
func NewAvailabilityCache(rdb *redis.Client, ttl time.Duration, prefix string) *AvailabilityCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if prefix == "" {
		prefix = "avail"
	}
	return &AvailabilityCache{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (c *AvailabilityCache) key(eventID, block string) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, eventID, block)
}

func (c *AvailabilityCache) versionKey(eventID, block string) string {
	return c.key(eventID, block) + ":v"
}

// versionTTL outlives any snapshot written under an older version.
func (c *AvailabilityCache) versionTTL() time.Duration {
	return max(10*c.ttl, time.Hour)
}

// Get returns the current snapshot, or nil on a miss, together with the
// block's version.  Pass that version to Set after loading from the store.
func (c *AvailabilityCache) Get(ctx context.Context, eventID, block string) (*BlockAvailability, int64, error) {
	if c == nil {
		return nil, 0, nil
	}
	vals, err := c.rdb.MGet(ctx, c.key(eventID, block), c.versionKey(eventID, block)).Result()
	if err != nil {
		return nil, 0, err
	}
	if len(vals) != 2 {
		return nil, 0, fmt.Errorf("availability cache: unexpected reply of %d values", len(vals))
	}
	var version int64
	if s, ok := vals[1].(string); ok {
		if version, err = strconv.ParseInt(s, 10, 64); err != nil {
			return nil, 0, fmt.Errorf("availability cache version: %w", err)
		}
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, version, nil
	}
	var entry cachedAvailability
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, version, err
	}
	if entry.Version != version {
		return nil, version, nil
	}
	return &entry.Availability, version, nil
}

// Set stores a snapshot built after Get reported version.
func (c *AvailabilityCache) Set(ctx context.Context, a BlockAvailability, version int64) error {
	if c == nil {
		return nil
	}
	bs, err := json.Marshal(cachedAvailability{Version: version, Availability: a})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(a.EventID, a.BlockName), bs, c.ttl).Err()
}

// Invalidate bumps the versions of the given blocks, which retires their
// snapshots, including any still being built by a concurrent read.
func (c *AvailabilityCache) Invalidate(ctx context.Context, eventID string, blocks ...string) error {
	if c == nil || len(blocks) == 0 {
		return nil
	}
	_, err := c.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, b := range blocks {
			vk := c.versionKey(eventID, b)
			p.Incr(ctx, vk)
			p.Expire(ctx, vk, c.versionTTL())
		}
		return nil
	})
	return err
}
