package telemetry

import (
	"database/sql"
	"errors"
	"time"

	"github.com/XSAM/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// OpenDB opens an instrumented pool and reports its connection stats as
// metrics. Checkout and settlement transactions are short, so the pool is
// kept small and connections are recycled. The returned close func stops the
// stats callback before closing the pool.
func OpenDB(driverName, dsn string) (*sql.DB, func() error, error) {
	db, err := otelsql.Open(driverName, dsn,
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
		otelsql.WithSpanOptions(otelsql.SpanOptions{OmitConnResetSession: true}),
	)
	if err != nil {
		return nil, nil, err
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	reg, err := otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(semconv.DBSystemPostgreSQL))
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	closeDB := func() error {
		return errors.Join(reg.Unregister(), db.Close())
	}
	return db, closeDB, nil
}
