// Package journal records spiral search sessions to a SQL database through
// gorm. SQLite (file or in-memory) and Postgres are supported.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rover-search/internal/geo"
	"rover-search/internal/logging"
	nav "rover-search/rover_nav"
)

// Session statuses.
const (
	StatusActive    = "active"
	StatusFound     = "found"
	StatusExhausted = "exhausted"
	StatusAbandoned = "abandoned"
)

// SearchSession is one spiral, from generation until it is exhausted,
// abandoned or leads to a sighting.
type SearchSession struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	MarkerID  int        `json:"markerId" gorm:"index:idx_session_marker"`
	Status    string     `json:"status" gorm:"size:16;index:idx_session_status"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt"`
	CenterX   float64    `json:"centerX"`
	CenterY   float64    `json:"centerY"`
	Points    int        `json:"points"`
	// Cursor is the next point index when the session was last updated.
	Cursor int `json:"cursor"`
	// Path is the spiral as a WKT line string.
	Path string `json:"path"`
	// Coordinates holds the spiral as [[x,y,z],...].
	Coordinates datatypes.JSON `json:"coordinates"`
	// Sighting is a WKT point, empty unless the marker was found.
	Sighting string `json:"sighting" gorm:"size:128"`
}

// SearchEventRecord is one search event tied to its session.
type SearchEventRecord struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_event_session"`
	Kind      string    `json:"kind" gorm:"size:32"`
	At        time.Time `json:"at"`
	Index     int       `json:"index"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
}

// Models lists the tables this package migrates.
var Models = []interface{}{
	&SearchSession{},
	&SearchEventRecord{},
}

// Open connects to the configured database. An empty sqlite DSN opens a
// private in-memory database.
func Open(cfg nav.JournalConfig) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}

	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		dsn := cfg.DSN
		memory := dsn == ""
		if memory {
			dsn = ":memory:"
		}
		db, err := gorm.Open(sqlite.Open(dsn), gcfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite journal: %w", err)
		}
		if memory {
			// every pooled connection would otherwise get its own empty database
			sqlDB, err := db.DB()
			if err != nil {
				return nil, fmt.Errorf("access sqlite pool: %w", err)
			}
			sqlDB.SetMaxOpenConns(1)
		}
		return db, nil
	case "postgres":
		db, err := gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.DSN,
			PreferSimpleProtocol: true,
		}), gcfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres journal: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported journal driver %q", cfg.Driver)
	}
}

// Recorder persists search events. It implements nav.SearchObserver; write
// failures are logged and never stop the control loop.
type Recorder struct {
	db  *gorm.DB
	log logging.Logger

	mu        sync.Mutex
	current   *nav.SearchTrajectory
	sessionID uint
}

// NewRecorder migrates the schema and returns a recorder writing to db.
// The recorder owns db from here on: it is closed by Close, or right away
// when the migration fails.
func NewRecorder(db *gorm.DB, log logging.Logger) (*Recorder, error) {
	if log == nil {
		log = logging.Noop()
	}
	if err := db.AutoMigrate(Models...); err != nil {
		_ = closeDB(db)
		return nil, fmt.Errorf("migrate journal schema: %w", err)
	}
	return &Recorder{db: db, log: log}, nil
}

// ObserveSearch implements nav.SearchObserver.
func (r *Recorder) ObserveSearch(ctx context.Context, ev nav.SearchEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.record(ctx, ev); err != nil {
		r.log.Warn(ctx, "journal write failed",
			logging.String("event", ev.Kind.String()),
			logging.Err(err),
		)
	}
}

func (r *Recorder) record(ctx context.Context, ev nav.SearchEvent) error {
	db := r.db.WithContext(ctx)

	if ev.Kind == nav.EventTrajectoryStarted {
		session, err := newSession(ev)
		if err != nil {
			return err
		}
		if err := db.Create(&session).Error; err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		r.current = ev.Trajectory
		r.sessionID = session.ID
	}
	if r.current == nil || r.current != ev.Trajectory {
		return fmt.Errorf("no session for %s event on marker %d", ev.Kind, ev.MarkerID)
	}

	rec := SearchEventRecord{
		SessionID: r.sessionID,
		Kind:      ev.Kind.String(),
		At:        ev.At,
		Index:     ev.Index,
		X:         ev.Point.X,
		Y:         ev.Point.Y,
		Z:         ev.Point.Z,
	}
	if err := db.Create(&rec).Error; err != nil {
		return fmt.Errorf("create event: %w", err)
	}

	updates := map[string]interface{}{"cursor": ev.Trajectory.Cursor()}
	switch ev.Kind {
	case nav.EventExhausted:
		updates["status"] = StatusExhausted
		updates["ended_at"] = ev.At
	case nav.EventTrajectoryAbandoned:
		updates["status"] = StatusAbandoned
		updates["ended_at"] = ev.At
	case nav.EventMarkerSighted:
		updates["status"] = StatusFound
		updates["ended_at"] = ev.At
		updates["sighting"] = geo.Point(ev.Point).AsText()
	}
	err := db.Model(&SearchSession{}).Where("id = ?", r.sessionID).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("update session %d: %w", r.sessionID, err)
	}

	if ev.Kind == nav.EventExhausted || ev.Kind == nav.EventTrajectoryAbandoned {
		r.current = nil
		r.sessionID = 0
	}
	return nil
}

func newSession(ev nav.SearchEvent) (SearchSession, error) {
	t := ev.Trajectory
	pts := t.Points()
	coords := make([][3]float64, len(pts))
	for i, p := range pts {
		coords[i] = [3]float64{p.X, p.Y, p.Z}
	}
	raw, err := json.Marshal(coords)
	if err != nil {
		return SearchSession{}, fmt.Errorf("encode coordinates: %w", err)
	}
	ls, err := geo.TrajectoryLineString(t)
	if err != nil {
		return SearchSession{}, err
	}
	c := t.Center()
	return SearchSession{
		MarkerID:    int(ev.MarkerID),
		Status:      StatusActive,
		StartedAt:   ev.At,
		CenterX:     c.X,
		CenterY:     c.Y,
		Points:      t.Len(),
		Cursor:      t.Cursor(),
		Path:        ls.AsText(),
		Coordinates: datatypes.JSON(raw),
	}, nil
}

// Sessions returns every recorded session in creation order.
func (r *Recorder) Sessions(ctx context.Context) ([]SearchSession, error) {
	var out []SearchSession
	if err := r.db.WithContext(ctx).Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

// Events returns the events of one session in insertion order.
func (r *Recorder) Events(ctx context.Context, sessionID uint) ([]SearchEventRecord, error) {
	var out []SearchEventRecord
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("id").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list events for session %d: %w", sessionID, err)
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (r *Recorder) Close() error {
	return closeDB(r.db)
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
