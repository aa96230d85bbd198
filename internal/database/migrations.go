package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order by Migrate.  Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS venues (
		id         VARCHAR(64)  NOT NULL PRIMARY KEY,
		name       VARCHAR(255) NOT NULL,
		created_at DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS venue_blocks (
		venue_id    VARCHAR(64) NOT NULL,
		position    INT         NOT NULL,
		name        VARCHAR(8)  NOT NULL,
		category    ENUM('VIP','PREMIUM','NORMAL','BALCONY') NOT NULL,
		total_seats INT UNSIGNED NOT NULL,
		PRIMARY KEY (venue_id, name),
		UNIQUE KEY uq_venue_blocks_position (venue_id, position),
		CONSTRAINT fk_venue_blocks_venue FOREIGN KEY (venue_id) REFERENCES venues(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS events (
		id        VARCHAR(64)  NOT NULL PRIMARY KEY,
		venue_id  VARCHAR(64)  NOT NULL,
		title     VARCHAR(255) NOT NULL,
		starts_at DATETIME     NOT NULL,
		CONSTRAINT fk_events_venue FOREIGN KEY (venue_id) REFERENCES venues(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	// Raw definition text is kept as published; the resolver normalizes it.
	`CREATE TABLE IF NOT EXISTS ticket_definitions (
		event_id   VARCHAR(64)  NOT NULL,
		position   INT          NOT NULL,
		name       VARCHAR(128) NOT NULL,
		block_name VARCHAR(8)   NOT NULL,
		price      VARCHAR(64)  NOT NULL DEFAULT '',
		price_type VARCHAR(64)  NOT NULL DEFAULT '',
		start_seat VARCHAR(16)  NOT NULL DEFAULT '',
		end_seat   VARCHAR(16)  NOT NULL DEFAULT '',
		quantity   VARCHAR(16)  NOT NULL DEFAULT '',
		PRIMARY KEY (event_id, position),
		CONSTRAINT fk_ticket_definitions_event FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id                CHAR(36)      NOT NULL PRIMARY KEY,
		user_id           VARCHAR(64)   NOT NULL,
		event_id          VARCHAR(64)   NOT NULL,
		status            ENUM('CONFIRMED','CANCELLED','ATTENDED') NOT NULL,
		total_seats       INT UNSIGNED  NOT NULL,
		total_price       DECIMAL(12,2) NOT NULL,
		payment_reference VARCHAR(128)  NULL,
		created_at        DATETIME(3)   NOT NULL,
		updated_at        DATETIME(3)   NOT NULL,
		UNIQUE KEY uq_bookings_payment_reference (event_id, payment_reference),
		KEY idx_bookings_user (user_id, created_at),
		CONSTRAINT fk_bookings_event FOREIGN KEY (event_id) REFERENCES events(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS booking_line_items (
		booking_id CHAR(36)      NOT NULL,
		position   INT           NOT NULL,
		event_id   VARCHAR(64)   NOT NULL,
		block_name VARCHAR(8)    NOT NULL,
		category   VARCHAR(128)  NOT NULL,
		from_seat  INT UNSIGNED  NOT NULL,
		to_seat    INT UNSIGNED  NOT NULL,
		quantity   INT UNSIGNED  NOT NULL,
		unit_price DECIMAL(12,2) NOT NULL,
		line_total DECIMAL(12,2) NOT NULL,
		PRIMARY KEY (booking_id, position),
		KEY idx_line_items_event_block (event_id, block_name, from_seat),
		CONSTRAINT fk_line_items_booking FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	// One row per (event, block) that has ever been reserved.  Reservation
	// transactions take these rows FOR UPDATE to serialize per block.
	`CREATE TABLE IF NOT EXISTS block_locks (
		event_id   VARCHAR(64) NOT NULL,
		block_name VARCHAR(8)  NOT NULL,
		PRIMARY KEY (event_id, block_name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
