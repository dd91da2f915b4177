package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nm90/educational-mvc-sub001/internal/tracing"
)

// NewGorm opens gorm over db's connection pool, so ORM and hand-written
// queries share connections, and installs QueryRecorderPlugin.
func NewGorm(db *DB) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch db.Driver() {
	case DriverPostgres:
		dialector = postgres.New(postgres.Config{Conn: db.SQL()})
	default:
		dialector = &sqlite.Dialector{DriverName: DriverSQLite, Conn: db.SQL()}
	}

	g, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	if err := g.Use(QueryRecorderPlugin{}); err != nil {
		return nil, fmt.Errorf("register query recorder: %w", err)
	}
	return g, nil
}

const queryStartKey = "devpanel:query_start"

// QueryRecorderPlugin records every statement gorm executes in the trace
// of the request carried by the statement's context.
type QueryRecorderPlugin struct{}

func (QueryRecorderPlugin) Name() string {
	return "devpanel:query_recorder"
}

func (QueryRecorderPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("devpanel:before_create", startQuery),
		cb.Create().After("gorm:create").Register("devpanel:after_create", finishQuery),
		cb.Query().Before("gorm:query").Register("devpanel:before_query", startQuery),
		cb.Query().After("gorm:query").Register("devpanel:after_query", finishQuery),
		cb.Update().Before("gorm:update").Register("devpanel:before_update", startQuery),
		cb.Update().After("gorm:update").Register("devpanel:after_update", finishQuery),
		cb.Delete().Before("gorm:delete").Register("devpanel:before_delete", startQuery),
		cb.Delete().After("gorm:delete").Register("devpanel:after_delete", finishQuery),
		cb.Row().Before("gorm:row").Register("devpanel:before_row", startQuery),
		cb.Row().After("gorm:row").Register("devpanel:after_row", finishQuery),
		cb.Raw().Before("gorm:raw").Register("devpanel:before_raw", startQuery),
		cb.Raw().After("gorm:raw").Register("devpanel:after_raw", finishQuery),
	)
}

func startQuery(db *gorm.DB) {
	db.InstanceSet(queryStartKey, time.Now())
}

func finishQuery(db *gorm.DB) {
	if db.Statement == nil || db.Statement.Context == nil {
		return
	}

	start := time.Now()
	if v, ok := db.InstanceGet(queryStartKey); ok {
		if t, ok := v.(time.Time); ok {
			start = t
		}
	}

	err := db.Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = nil
	}

	tracing.ObserveQuery(db.Statement.Context, tracing.QueryObservation{
		Text:     db.Statement.SQL.String(),
		Args:     db.Statement.Vars,
		Start:    start,
		Duration: time.Since(start),
		Rows:     db.RowsAffected,
		Err:      err,
		Classify: ClassifyError,
	})
}
