package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iliyamo/block-seat-reservation/internal/clock"
	"github.com/iliyamo/block-seat-reservation/internal/config"
	"github.com/iliyamo/block-seat-reservation/internal/database"
	"github.com/iliyamo/block-seat-reservation/internal/logger"
	"github.com/iliyamo/block-seat-reservation/internal/model"
	"github.com/iliyamo/block-seat-reservation/internal/queue"
	"github.com/iliyamo/block-seat-reservation/internal/repository"
	"github.com/iliyamo/block-seat-reservation/internal/seed"
	"github.com/iliyamo/block-seat-reservation/internal/service"
	"github.com/iliyamo/block-seat-reservation/internal/utils"
)

const cmdTimeout = 30 * time.Second

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "seatctl",
		Short:         "Block seat reservation admin CLI",
		Long:          `Migrate the schema, seed venues and events, and inspect availability and bookings.`,
		SilenceUsage:  true,
	}
	root.AddCommand(migrateCmd(), seedCmd(), availabilityCmd(), bookingsCmd(), tokenCmd())
	return root
}

// env is what every database-backed command needs.
type env struct {
	cfg config.Config
	db  *sql.DB
	log *logrus.Logger
}

func openEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Store != config.StoreMySQL {
		return nil, errors.New("seatctl requires STORE_DRIVER=mysql")
	}
	log := logger.Setup(cfg.Log, "seatctl")
	db, err := database.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return &env{cfg: cfg, db: db, log: log}, nil
}

func (e *env) manager() *service.Manager {
	return service.NewManager(repository.NewEventRepo(e.db), repository.NewBookingRepo(e.db),
		queue.NopPublisher{}, nil, clock.NewSystem(), e.log)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.db.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
			defer cancel()
			if err := database.Migrate(ctx, e.db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load venues and events from a YAML or JSON file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := seed.Load(file)
			if err != nil {
				return err
			}
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.db.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
			defer cancel()
			sum, err := seed.Apply(ctx, repository.NewEventRepo(e.db), f)
			if err != nil {
				return err
			}
			renderSummary(cmd.OutOrStdout(), sum)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "seed file (.yaml, .yml or .json)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func availabilityCmd() *cobra.Command {
	var eventID string
	var blocks []string
	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Show booked and free seat ranges per block",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.db.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
			defer cancel()

			m := e.manager()
			if len(blocks) == 0 {
				cat, err := repository.NewEventRepo(e.db).EventCatalog(ctx, eventID)
				if err != nil {
					return err
				}
				for _, b := range cat.Venue.Blocks {
					blocks = append(blocks, b.Name)
				}
			}
			rows := make([]service.BlockAvailability, 0, len(blocks))
			for _, b := range blocks {
				a, err := m.Availability(ctx, eventID, b)
				if err != nil {
					return fmt.Errorf("block %s: %w", b, err)
				}
				rows = append(rows, a)
			}
			renderAvailability(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&eventID, "event", "", "event id")
	cmd.Flags().StringSliceVar(&blocks, "block", nil, "block names (default: every block of the venue)")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func bookingsCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "List a user's bookings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.db.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
			defer cancel()
			bs, err := e.manager().ListBookings(ctx, userID)
			if err != nil {
				return err
			}
			renderBookings(cmd.OutOrStdout(), bs)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (phone number)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func tokenCmd() *cobra.Command {
	var userID, role string
	var ttl int
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.JWT.AccessTTLMin
			}
			tok, err := utils.NewAccessToken(cfg.JWT.Secret, userID, strings.ToUpper(role), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "subject (user id)")
	cmd.Flags().StringVar(&role, "role", "CUSTOMER", "CUSTOMER or STAFF")
	cmd.Flags().IntVar(&ttl, "ttl", 0, "lifetime in minutes (default ACCESS_TOKEN_TTL_MIN)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func renderSummary(w io.Writer, s seed.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Venues", "Blocks", "Events", "Ticket definitions"})
	t.AppendRow(table.Row{s.Venues, s.Blocks, s.Events, s.Tickets})
	t.Render()
}

func renderAvailability(w io.Writer, rows []service.BlockAvailability) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Block", "Category", "Seats", "Booked", "Free", "Booked ranges"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 6, WidthMax: 60}})
	for _, a := range rows {
		t.AppendRow(table.Row{a.BlockName, a.Category, a.TotalSeats, a.BookedSeats, a.FreeSeats, rangeLabels(a.Booked)})
	}
	t.Render()
}

func renderBookings(w io.Writer, bs []model.Booking) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Booking", "Event", "Status", "Seats", "Total", "Created"}, table.RowConfig{AutoMerge: true})
	t.Style().Options.SeparateRows = true
	for _, b := range bs {
		ranges := make([]model.SeatRange, 0, len(b.Items))
		for _, li := range b.Items {
			ranges = append(ranges, model.SeatRange{BlockName: li.BlockName, FromSeat: li.FromSeat, ToSeat: li.ToSeat})
		}
		t.AppendRow(table.Row{b.ID, b.EventID, b.Status, rangeLabels(ranges), b.TotalPrice.StringFixed(2), b.CreatedAt.Format(time.RFC3339)})
	}
	t.Render()
}

func rangeLabels(rs []model.SeatRange) string {
	labels := make([]string, 0, len(rs))
	for _, r := range rs {
		labels = append(labels, r.Label())
	}
	return strings.Join(labels, ", ")
}
