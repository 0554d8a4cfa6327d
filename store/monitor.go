package store

import (
	"context"
	"time"
)

// MonitorLog is one observability sample: (ts_utc, metric, value, meta_json).
type MonitorLog struct {
	TsUTC    time.Time
	Metric   string
	Value    float64
	MetaJSON string
}

// RecordMonitorLog appends a monitor_logs row.
func (db *DB) RecordMonitorLog(ctx context.Context, m *MonitorLog) error {
	meta := m.MetaJSON
	if meta == "" {
		meta = "{}"
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO monitor_logs (ts_utc, metric, value, meta_json) VALUES (?, ?, ?, ?)`,
		m.TsUTC, m.Metric, m.Value, meta)
	return err
}

// RecentMonitorLogs returns the most recent samples for a metric, newest
// first.
func (db *DB) RecentMonitorLogs(ctx context.Context, metric string, limit int) ([]MonitorLog, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT ts_utc, metric, value, meta_json FROM monitor_logs
		WHERE metric = ? ORDER BY ts_utc DESC LIMIT ?`, metric, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MonitorLog
	for rows.Next() {
		var m MonitorLog
		if err := rows.Scan(&m.TsUTC, &m.Metric, &m.Value, &m.MetaJSON); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountNewsSince counts articles ingested since the given time — used by
// the ALERT_NEWS_MIN_1H check.
func (db *DB) CountNewsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM news WHERE ingested_at >= ?`, since).Scan(&n)
	return n, err
}

// CountQueued counts publish_queue rows still in 'queued' status — used by
// the ALERT_QUEUE_MAX check.
func (db *DB) CountQueued(ctx context.Context) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM publish_queue WHERE status = 'queued'`).Scan(&n)
	return n, err
}
