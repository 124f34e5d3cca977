package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/db"
)

// Event types appended by the domain services.
const (
	TypeSubmissionGraded = "SubmissionGraded"
	TypeChapterReset     = "ChapterReset"
	TypeExamCreated      = "ExamCreated"
	TypeExamSubmitted    = "ExamSubmitted"
	TypeExamDeleted      = "ExamDeleted"
)

type Event struct {
	Seq       int64           `json:"seq"`
	SiteID    string          `json:"site_id"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"created_at"`
}

// NewEvent marshals payload into an Event of the given type.
func NewEvent(typ, key string, payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("event %s: %w", typ, err)
	}
	return Event{Type: typ, Key: key, Data: b}, nil
}

type EventRepo struct {
	db     *sql.DB
	siteID string
}

func NewEventRepo(dbh *sql.DB, siteID string) *EventRepo {
	if siteID == "" {
		siteID = "local"
	}
	return &EventRepo{db: dbh, siteID: siteID}
}

// Append writes e through q, which is normally the transaction that made the
// change the event describes. The stored event is returned.
func (r *EventRepo) Append(ctx context.Context, q db.Querier, e Event) (Event, error) {
	e.SiteID = r.siteID
	e.CreatedAt = time.Now().Unix()
	if len(e.Data) == 0 {
		e.Data = json.RawMessage("{}")
	}
	err := q.QueryRowContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5) RETURNING seq`,
		e.SiteID, e.Type, e.Key, string(e.Data), e.CreatedAt).Scan(&e.Seq)
	if err != nil {
		return Event{}, fmt.Errorf("event log append: %w", err)
	}
	return e, nil
}

// Since lists events with seq greater than after, oldest first.
func (r *EventRepo) Since(ctx context.Context, after int64, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, site_id, typ, key, data, created_at
		   FROM event_log WHERE seq > $1 ORDER BY seq LIMIT $2`, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Event{}
	for rows.Next() {
		var e Event
		var data string
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &data, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Data = json.RawMessage(data)
		out = append(out, e)
	}
	return out, rows.Err()
}
