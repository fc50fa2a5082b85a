package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/pmholt/eventscout/internal/event"
)

// Collection names a target table for persisted events.
type Collection string

const (
	// CollectionEvents holds standalone and part-of-a-compilation events
	// from the first persistence pass.
	CollectionEvents Collection = "events"
	// CollectionCompilations holds compilation events.
	CollectionCompilations Collection = "compilation_events"
	// CollectionCurated holds copy-enhanced events from the second pass.
	CollectionCurated Collection = "curated_events"
)

// CollectionFor routes an event type to its first-pass collection.
func CollectionFor(t event.Type) Collection {
	if t == event.TypeCompilation {
		return CollectionCompilations
	}
	return CollectionEvents
}

const pgUniqueViolation = "23505"

// IsDuplicateKey reports whether err is a Postgres unique constraint
// violation, the distinguishable error code duplicate inserts surface as.
func IsDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// Store is the Postgres-backed persistence layer.
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// Open connects a pool and pings it.
func Open(ctx context.Context, dsn string, log zerolog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  log.With().Str("component", "storage").Logger(),
	}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the three collections and their uniqueness
// constraints if they do not exist. Full migration tooling is out of scope.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, col := range []Collection{CollectionEvents, CollectionCompilations, CollectionCurated} {
		ddl := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id                UUID PRIMARY KEY,
				title             TEXT NOT NULL,
				description       TEXT NOT NULL DEFAULT '',
				starts_at         TIMESTAMPTZ,
				ends_at           TIMESTAMPTZ,
				venue             TEXT NOT NULL DEFAULT '',
				address           TEXT NOT NULL DEFAULT '',
				cost              TEXT NOT NULL DEFAULT '',
				currency          TEXT NOT NULL DEFAULT '',
				cost_details      TEXT NOT NULL DEFAULT '',
				image_url         TEXT NOT NULL DEFAULT '',
				detail_url        TEXT NOT NULL DEFAULT '',
				organizer         TEXT NOT NULL DEFAULT '',
				organizer_url     TEXT NOT NULL DEFAULT '',
				performers        TEXT[] NOT NULL DEFAULT '{}',
				categories        TEXT[] NOT NULL DEFAULT '{}',
				tags              TEXT[] NOT NULL DEFAULT '{}',
				social_links      JSONB NOT NULL DEFAULT '{}',
				contact_email     TEXT NOT NULL DEFAULT '',
				contact_phone     TEXT NOT NULL DEFAULT '',
				event_type        TEXT NOT NULL,
				latitude          DOUBLE PRECISION,
				longitude         DOUBLE PRECISION,
				emoji             TEXT NOT NULL DEFAULT '',
				rsvp_required     BOOLEAN NOT NULL DEFAULT FALSE,
				has_detailed_info BOOLEAN NOT NULL DEFAULT FALSE,
				sponsored         BOOLEAN NOT NULL DEFAULT FALSE,
				source            TEXT NOT NULL DEFAULT '',
				created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT %s_title_starts_at_key UNIQUE NULLS NOT DISTINCT (title, starts_at)
			)`, col, col)
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("creating table %s: %w", col, err)
		}
	}
	return nil
}

// InsertEvent writes one enriched event into a collection. A violation of
// the (title, starts_at) uniqueness constraint surfaces unchanged so the
// router can tally it as a duplicate; callers check IsDuplicateKey.
func (s *Store) InsertEvent(ctx context.Context, col Collection, ev event.Enriched) error {
	social, err := json.Marshal(orEmptyMap(ev.SocialLinks))
	if err != nil {
		return fmt.Errorf("marshaling social links: %w", err)
	}

	var lat, lon *float64
	if ev.Coords != nil {
		lat, lon = &ev.Coords.Latitude, &ev.Coords.Longitude
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, title, description, starts_at, ends_at, venue, address,
			cost, currency, cost_details, image_url, detail_url,
			organizer, organizer_url, performers, categories, tags,
			social_links, contact_email, contact_phone, event_type,
			latitude, longitude, emoji, rsvp_required, has_detailed_info,
			sponsored, source
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26,
			$27, $28
		)`, col)

	_, err = s.pool.Exec(ctx, query,
		uuid.New(), ev.Title, ev.Description, ev.StartsAt, ev.EndsAt,
		ev.Venue, ev.Address, ev.Cost, ev.Currency, ev.CostDetails,
		ev.ImageURL, ev.DetailURL, ev.Organizer, ev.OrganizerURL,
		orEmptySlice(ev.Performers), orEmptySlice(ev.Categories), orEmptySlice(ev.Tags),
		social, ev.ContactEmail, ev.ContactPhone, string(ev.Type),
		lat, lon, ev.Emoji, ev.RSVPRequired, ev.HasDetailedInfo,
		ev.Sponsored, string(ev.Source),
	)
	return err
}

// StoredEvent is the read model served by the API.
type StoredEvent struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	EventType    string     `json:"event_type"`
	StartsAt     *time.Time `json:"starts_at,omitempty"`
	Venue        string     `json:"venue,omitempty"`
	Address      string     `json:"address,omitempty"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
	Cost         string     `json:"cost,omitempty"`
	Emoji        string     `json:"emoji,omitempty"`
	RSVPRequired bool       `json:"rsvp_required"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ListEvents returns a collection's events, optionally filtered to one
// calendar date (YYYY-MM-DD), ordered by start time.
func (s *Store) ListEvents(ctx context.Context, col Collection, date string) ([]StoredEvent, error) {
	query := fmt.Sprintf(`
		SELECT id, title, description, event_type, starts_at, venue,
		       address, latitude, longitude, cost, emoji, rsvp_required,
		       created_at
		FROM %s`, col)
	args := []any{}
	if date != "" {
		query += ` WHERE starts_at::date = $1::date`
		args = append(args, date)
	}
	query += ` ORDER BY starts_at NULLS LAST, title`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", col, err)
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var e StoredEvent
		if err := rows.Scan(
			&e.ID, &e.Title, &e.Description, &e.EventType, &e.StartsAt,
			&e.Venue, &e.Address, &e.Latitude, &e.Longitude, &e.Cost,
			&e.Emoji, &e.RSVPRequired, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", col, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s rows: %w", col, err)
	}
	return events, nil
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
