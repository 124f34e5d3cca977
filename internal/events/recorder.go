package events

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-quiz/internal/db"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

// Recorder appends events to the event log inside a transaction and, once
// that transaction has committed, hands them to a Publisher.
type Recorder struct {
	repo *syncx.EventRepo
	pub  Publisher
	log  logrus.FieldLogger
}

func NewRecorder(repo *syncx.EventRepo, pub Publisher, log logrus.FieldLogger) *Recorder {
	if pub == nil {
		pub = Nop{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Recorder{repo: repo, pub: pub, log: log}
}

// Append stores an event of type typ through q.
func (r *Recorder) Append(ctx context.Context, q db.Querier, typ, key string, payload any) (syncx.Event, error) {
	e, err := syncx.NewEvent(typ, key, payload)
	if err != nil {
		return syncx.Event{}, err
	}
	return r.repo.Append(ctx, q, e)
}

// Publish is best effort: failures are logged and swallowed.
func (r *Recorder) Publish(ctx context.Context, evs ...syncx.Event) {
	for _, e := range evs {
		if err := r.pub.Publish(ctx, e); err != nil {
			r.log.WithError(err).WithFields(logrus.Fields{
				"event": e.Type,
				"key":   e.Key,
				"seq":   e.Seq,
			}).Warn("event publish failed")
		}
	}
}
