package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"
)

// Health status values reported per dependency.
const (
	StatusOK          = "ok"
	StatusUnavailable = "unavailable"
	StatusDisabled    = "disabled"
)

// healthTimeout bounds each individual ping.
const healthTimeout = 2 * time.Second

// Health pings MariaDB and Redis and reports each one's status. healthy is
// false when any configured dependency fails. A nil handle is reported as
// disabled and does not affect the result.
func Health(ctx context.Context, db *sql.DB, rdb redis.UniversalClient) (status map[string]string, healthy bool) {
	status = map[string]string{"database": StatusDisabled, "redis": StatusDisabled}
	healthy = true

	if db != nil {
		pctx, cancel := context.WithTimeout(ctx, healthTimeout)
		err := db.PingContext(pctx)
		cancel()
		status["database"] = StatusOK
		if err != nil {
			status["database"] = StatusUnavailable
			healthy = false
		}
	}

	if rdb != nil {
		pctx, cancel := context.WithTimeout(ctx, healthTimeout)
		err := rdb.Ping(pctx).Err()
		cancel()
		status["redis"] = StatusOK
		if err != nil {
			status["redis"] = StatusUnavailable
			healthy = false
		}
	}

	return status, healthy
}
