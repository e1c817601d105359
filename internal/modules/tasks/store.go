// README: Task store backed by PostgreSQL.
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"calroute/internal/modules/planner"
	"calroute/internal/modules/travel"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// TasksForDay returns the user's pending tasks that start on day, plus
// the undated ones.
func (s *Store) TasksForDay(ctx context.Context, userID string, day time.Time) ([]planner.Task, error) {
	from, to := dayBounds(day)
	rows, err := s.db.Query(ctx, `
		SELECT t.task_id, t.user_id, t.title, t.source, t.place_type,
		       t.start_time, t.end_time, t.duration_minutes, t.priority,
		       l.location_id, l.name, l.address, l.latitude, l.longitude
		FROM raw_tasks t
		LEFT JOIN locations l ON l.location_id = t.location_id
		WHERE t.user_id = $1
		  AND t.status = 'pending'
		  AND (t.start_time IS NULL OR (t.start_time >= $2 AND t.start_time < $3))
		ORDER BY t.start_time NULLS LAST, t.task_id`,
		userID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("tasks: query day: %w", err)
	}
	defer rows.Close()

	var out []planner.Task
	for rows.Next() {
		var r RawTask
		var placeType sql.NullString
		var start, end sql.NullTime
		var duration sql.NullInt32
		var locID sql.NullInt64
		var locName, locAddr sql.NullString
		var lat, lng sql.NullFloat64

		if err := rows.Scan(
			&r.ID, &r.UserID, &r.Title, &r.Source, &placeType,
			&start, &end, &duration, &r.Priority,
			&locID, &locName, &locAddr, &lat, &lng,
		); err != nil {
			return nil, fmt.Errorf("tasks: scan: %w", err)
		}

		r.PlaceType = placeType.String
		r.DurationMinutes = int(duration.Int32)
		if start.Valid {
			t := start.Time.In(day.Location())
			r.Start = &t
		}
		if end.Valid {
			t := end.Time.In(day.Location())
			r.End = &t
		}
		if locID.Valid {
			r.Location = &Location{ID: locID.Int64, Name: locName.String, Address: locAddr.String}
			if lat.Valid && lng.Valid {
				r.Location.Lat, r.Location.Lng = &lat.Float64, &lng.Float64
			}
		}
		out = append(out, r.ToTask(from))
	}
	return out, rows.Err()
}

func (s *Store) Preferences(ctx context.Context, userID string) (*Preferences, error) {
	row := s.db.QueryRow(ctx, `
		SELECT p.user_id, p.transport_modes,
		       l.location_id, l.name, l.address, l.latitude, l.longitude
		FROM user_preferences p
		JOIN locations l ON l.location_id = p.home_location_id
		WHERE p.user_id = $1`, userID,
	)

	var p Preferences
	var modes []string
	var lat, lng sql.NullFloat64
	err := row.Scan(&p.UserID, &modes, &p.Home.ID, &p.Home.Name, &p.Home.Address, &lat, &lng)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		p.Home.Lat, p.Home.Lng = &lat.Float64, &lng.Float64
	}

	for _, m := range modes {
		mode, err := travel.ParseMode(m)
		if err != nil {
			continue
		}
		p.Modes = append(p.Modes, mode)
	}
	return &p, nil
}

// SaveSchedule replaces the user's pending scheduled tasks on day with the
// slots of res, in one transaction.
func (s *Store) SaveSchedule(ctx context.Context, userID string, day time.Time, res *planner.Result, titles map[string]string) (err error) {
	from, to := dayBounds(day)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `
		DELETE FROM scheduled_tasks
		WHERE user_id = $1 AND status = 'pending'
		  AND scheduled_start_time >= $2 AND scheduled_start_time < $3`,
		userID, from, to,
	); err != nil {
		return fmt.Errorf("tasks: clear day: %w", err)
	}

	for _, slot := range res.Slots {
		title := titles[slot.VisitID]
		if title == "" {
			title = slot.VisitID
		}
		if _, err = tx.Exec(ctx, `
			INSERT INTO scheduled_tasks (
				user_id, run_id, task_ref, title,
				scheduled_start_time, scheduled_end_time,
				priority, travel_mode, travel_minutes
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			userID, res.RunID, slot.VisitID, title,
			slot.Start, slot.End,
			int(slot.Priority), toStringPtr(string(slot.Mode)), slot.TravelMinutes,
		); err != nil {
			return fmt.Errorf("tasks: insert slot %s: %w", slot.VisitID, err)
		}
	}

	return tx.Commit(ctx)
}

func toStringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
