package storage

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const (
	bufferSize    = 10_000
	flushInterval = 100 * time.Millisecond
	flushBatch    = 1000
	drainTimeout  = 2 * time.Second
	insertTimeout = 5 * time.Second
)

const insertEventsQuery = `
	INSERT INTO tool_router_events (
		event_id, event_type, timestamp, tool_id, invocation_id,
		input_digest, workspace, strategy, success, latency_ms,
		confidence, error, intent, suggested_tools,
		total_executions, success_rate, availability_score
	)
`

// ClickHouseWriter writes router events to ClickHouse asynchronously.
// Write() is non-blocking: events are buffered and batch-inserted in a background goroutine.
type ClickHouseWriter struct {
	conn    driver.Conn
	insert  func(events []*RouterEvent)
	buffer  chan *RouterEvent
	done    chan struct{}
	flushed chan struct{}
	logger  *zap.Logger
}

// NewClickHouseWriter creates a ClickHouseWriter and starts the background flush loop.
func NewClickHouseWriter(dsn string, logger *zap.Logger) (*ClickHouseWriter, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, err
	}

	w := newBufferedWriter(nil, bufferSize, logger)
	w.conn = conn
	w.insert = w.flush
	go w.flushLoop()
	return w, nil
}

// newBufferedWriter builds the buffering half of a writer. The caller sets
// insert and starts flushLoop.
func newBufferedWriter(insert func([]*RouterEvent), size int, logger *zap.Logger) *ClickHouseWriter {
	return &ClickHouseWriter{
		insert:  insert,
		buffer:  make(chan *RouterEvent, size),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
		logger:  logger,
	}
}

// Write queues an event for async insertion.
// Non-blocking: drops the event if the buffer is full.
func (w *ClickHouseWriter) Write(event *RouterEvent) {
	select {
	case w.buffer <- event:
	default:
		w.logger.Warn("clickhouse buffer full, dropping event",
			zap.String("event_id", event.EventID),
			zap.String("event_type", event.EventType),
		)
	}
}

// Close signals the flush loop to drain remaining events.
func (w *ClickHouseWriter) Close() {
	close(w.done)
	<-w.flushed
	if w.conn != nil {
		if err := w.conn.Close(); err != nil {
			w.logger.Warn("clickhouse close failed", zap.Error(err))
		}
	}
}

func (w *ClickHouseWriter) flushLoop() {
	defer close(w.flushed)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*RouterEvent, 0, flushBatch)

	for {
		select {
		case event := <-w.buffer:
			batch = append(batch, event)
			if len(batch) >= flushBatch {
				w.insert(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.insert(batch)
				batch = batch[:0]
			}
		case <-w.done:
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
		drainLoop:
			for {
				select {
				case event := <-w.buffer:
					batch = append(batch, event)
				case <-drainCtx.Done():
					break drainLoop
				default:
					break drainLoop
				}
			}
			if len(batch) > 0 {
				w.insert(batch)
			}
			return
		}
	}
}

func (w *ClickHouseWriter) flush(events []*RouterEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	batch, err := w.conn.PrepareBatch(ctx, insertEventsQuery)
	if err != nil {
		w.logger.Error("clickhouse prepare batch failed", zap.Error(err))
		return
	}

	for _, e := range events {
		if err := batch.Append(eventColumns(e)...); err != nil {
			w.logger.Error("clickhouse append event failed",
				zap.String("event_id", e.EventID),
				zap.Error(err),
			)
		}
	}

	if err := batch.Send(); err != nil {
		w.logger.Error("clickhouse batch send failed",
			zap.Int("batch_size", len(events)),
			zap.Error(err),
		)
	}
}

// eventColumns returns e's values in insertEventsQuery column order.
// success is stored as UInt8.
func eventColumns(e *RouterEvent) []any {
	var success uint8
	if e.Success {
		success = 1
	}
	suggested := e.SuggestedTools
	if suggested == nil {
		suggested = []string{}
	}
	return []any{
		e.EventID,
		e.EventType,
		e.Timestamp,
		e.ToolID,
		e.InvocationID,
		e.InputDigest,
		e.Workspace,
		e.Strategy,
		success,
		e.LatencyMs,
		e.Confidence,
		e.Error,
		e.Intent,
		suggested,
		e.TotalExecutions,
		e.SuccessRate,
		e.AvailabilityScore,
	}
}

// LogWriter is a fallback EventWriter for local development.
type LogWriter struct {
	logger *zap.Logger
}

// NewLogWriter creates a LogWriter that outputs events to the given logger.
func NewLogWriter(logger *zap.Logger) *LogWriter {
	return &LogWriter{logger: logger}
}

func (w *LogWriter) Write(event *RouterEvent) {
	w.logger.Info("tool_router_event",
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.String("tool_id", event.ToolID),
		zap.String("invocation_id", event.InvocationID),
		zap.String("strategy", event.Strategy),
		zap.Bool("success", event.Success),
		zap.Float32("latency_ms", event.LatencyMs),
		zap.String("intent", event.Intent),
		zap.Strings("suggested_tools", event.SuggestedTools),
	)
}

func (w *LogWriter) Close() {}
