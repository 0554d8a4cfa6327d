// Package metrics exposes Prometheus collectors for the pipeline and
// evaluates the alert thresholds configured for the monitor loop.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sportbot/chat"
	"sportbot/config"
	"sportbot/store"
)

var (
	NewsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sportbot_news_ingested_total",
		Help: "Total number of articles ingested.",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sportbot_publish_queue_depth",
		Help: "Current number of publish_queue rows in status='queued'.",
	})

	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sportbot_messages_sent_total",
		Help: "Total number of successfully sent chat messages.",
	})

	RateLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sportbot_rate_limit_hits_total",
		Help: "Total number of Telegram 429 responses encountered.",
	})

	ClusterRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sportbot_cluster_run_duration_seconds",
		Help:    "Duration of clusterer batch runs.",
		Buckets: prometheus.DefBuckets,
	})

	AlertsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sportbot_alerts_fired_total",
		Help: "Total number of alert threshold breaches, by alert name.",
	}, []string{"alert"})
)

// Handler returns the HTTP handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// AlertEvaluator runs the threshold checks of spec section 6/12 against
// the store and, when a breach fires, logs a monitor_logs row and
// optionally notifies ALERT_CHAT_ID.
type AlertEvaluator struct {
	db   *store.DB
	chat *chat.Client
	cfg  config.Config
}

// NewAlertEvaluator constructs an evaluator. chatClient may be nil if
// alerts should only be logged, never dispatched.
func NewAlertEvaluator(db *store.DB, chatClient *chat.Client, cfg config.Config) *AlertEvaluator {
	return &AlertEvaluator{db: db, chat: chatClient, cfg: cfg}
}

// Breach describes one fired alert.
type Breach struct {
	Name    string
	Message string
}

// EvaluateOnce checks all three threshold alerts and returns the breaches
// found. Each breach is logged as a monitor_logs row and, if a chat client
// and alert chat id are configured, sent to chat.
func (a *AlertEvaluator) EvaluateOnce(ctx context.Context, now time.Time) ([]Breach, error) {
	if !a.cfg.AlertEnabled {
		return nil, nil
	}

	var breaches []Breach

	newsCount, err := a.db.CountNewsSince(ctx, now.Add(-time.Hour))
	if err != nil {
		return nil, fmt.Errorf("metrics: count news: %w", err)
	}
	if newsCount < a.cfg.AlertNewsMin1h {
		breaches = append(breaches, Breach{
			Name:    "news_min_1h",
			Message: fmt.Sprintf("only %d articles ingested in the last hour (min %d)", newsCount, a.cfg.AlertNewsMin1h),
		})
	}

	queueDepth, err := a.db.CountQueued(ctx)
	if err != nil {
		return nil, fmt.Errorf("metrics: count queued: %w", err)
	}
	QueueDepth.Set(float64(queueDepth))
	if queueDepth > a.cfg.AlertQueueMax {
		breaches = append(breaches, Breach{
			Name:    "queue_max",
			Message: fmt.Sprintf("publish queue depth %d exceeds max %d", queueDepth, a.cfg.AlertQueueMax),
		})
	}

	sentCount, err := a.db.CountSentSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("metrics: count sent: %w", err)
	}
	if sentCount < a.cfg.AlertSentMin24h {
		breaches = append(breaches, Breach{
			Name:    "sent_min_24h",
			Message: fmt.Sprintf("only %d messages sent in the last 24h (min %d)", sentCount, a.cfg.AlertSentMin24h),
		})
	}

	for _, b := range breaches {
		AlertsFired.WithLabelValues(b.Name).Inc()
		if err := a.db.RecordMonitorLog(ctx, &store.MonitorLog{
			TsUTC: now, Metric: "alert:" + b.Name, Value: 1,
		}); err != nil {
			slog.Warn("metrics: failed to record alert monitor log", "alert", b.Name, "error", err)
		}
		slog.Warn("alert threshold breached", "alert", b.Name, "message", b.Message)

		if a.chat != nil && a.cfg.AlertChatID != 0 {
			if _, err := a.chat.SendText(ctx, a.cfg.AlertChatID, "⚠️ "+b.Message, "HTML", 0, true); err != nil {
				slog.Warn("metrics: failed to dispatch alert", "alert", b.Name, "error", err)
			}
		}
	}

	return breaches, nil
}
