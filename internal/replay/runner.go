package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"adaptivePool/internal/dex"
	"adaptivePool/internal/model"
	"adaptivePool/internal/storage"
)

// RunConfig controls a replay run.
type RunConfig struct {
	WindowSeconds uint64
	// BatchSize is the number of closed windows buffered before metrics and
	// the latest snapshot are written.
	BatchSize int
	// Strict stops the run at the first event the pool rejects.
	Strict bool
}

// Sinks are the run's outputs. Any of them may be nil.
type Sinks struct {
	Events    storage.EventSink
	Errors    storage.ErrorSink
	Metrics   []storage.MetricsSink
	Snapshots []storage.SnapshotStore
}

// Stats counts what a run did with its input lines.
type Stats struct {
	Lines     int
	Applied   int
	Skipped   int
	Foreign   int
	Failed    int
	Windows   int
	Snapshots int
}

// Runner streams JSONL input through a Replayer. Lines may be raw logs, which
// are decoded first, or already typed events.
type Runner struct {
	cfg      RunConfig
	session  *Session
	replayer *Replayer
	decoder  dex.Decoder
	sinks    Sinks
	logger   *zap.Logger

	seen       map[string]struct{}
	acc        *Accumulator
	pending    []model.PoolWindowMetrics
	checkpoint *model.PoolSnapshot
	stats      Stats
}

func NewRunner(cfg RunConfig, session *Session, replayer *Replayer, decoder dex.Decoder, sinks Sinks, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Runner{
		cfg:      cfg,
		session:  session,
		replayer: replayer,
		decoder:  decoder,
		sinks:    sinks,
		logger:   logger,
		seen:     make(map[string]struct{}),
	}
}

// Run consumes input until EOF, then flushes the open window and saves a
// final snapshot.
func (r *Runner) Run(ctx context.Context, input io.Reader) (Stats, error) {
	if r.cfg.WindowSeconds == 0 {
		return r.stats, fmt.Errorf("window seconds must be > 0")
	}

	scanner := bufio.NewScanner(input)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return r.stats, ctx.Err()
		default:
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		r.stats.Lines++
		if err := r.handleLine(ctx, line); err != nil {
			return r.stats, err
		}
	}
	if err := scanner.Err(); err != nil {
		return r.stats, fmt.Errorf("scan input: %w", err)
	}

	if r.acc != nil {
		r.pending = append(r.pending, r.acc.Metrics())
		r.stats.Windows++
		r.acc = nil
	}
	snap := r.session.Snapshot(r.replayer.Cursor())
	r.checkpoint = &snap
	if err := r.flush(ctx); err != nil {
		return r.stats, err
	}

	r.logger.Info("replay complete",
		zap.Int("lines", r.stats.Lines),
		zap.Int("applied", r.stats.Applied),
		zap.Int("skipped", r.stats.Skipped),
		zap.Int("foreign", r.stats.Foreign),
		zap.Int("failed", r.stats.Failed),
		zap.Int("windows", r.stats.Windows),
	)
	return r.stats, nil
}

func (r *Runner) handleLine(ctx context.Context, line []byte) error {
	rec, failure, err := r.parseLine(line)
	if err != nil {
		return err
	}
	if failure != nil {
		r.stats.Failed++
		return r.recordFailure(*failure)
	}
	if rec == nil {
		r.stats.Skipped++
		return nil
	}

	if !strings.EqualFold(rec.Address, r.session.Settings().Address.Hex()) {
		r.stats.Foreign++
		return nil
	}
	if r.isDuplicate(*rec) || r.replayer.Seen(rec.BlockNumber, rec.LogIndex) {
		r.stats.Skipped++
		return nil
	}

	if err := r.rollWindow(ctx, rec.Timestamp); err != nil {
		return err
	}

	out, err := r.replayer.Apply(ctx, *rec)
	if err != nil {
		if errors.Is(err, ErrOutOfOrder) || r.cfg.Strict {
			return fmt.Errorf("block %d log %d: %w", rec.BlockNumber, rec.LogIndex, err)
		}
		r.stats.Failed++
		r.logger.Debug("event rejected", zap.String("event", rec.EventName), zap.Uint64("block", rec.BlockNumber), zap.Error(err))
		return r.recordFailure(model.DecodeError{
			ChainID:     rec.ChainID,
			BlockNumber: rec.BlockNumber,
			TxHash:      rec.TxHash,
			LogIndex:    rec.LogIndex,
			Address:     rec.Address,
			EventName:   rec.EventName,
			Error:       err.Error(),
		})
	}
	if !out.Applied && !out.Initialized {
		r.stats.Skipped++
		return nil
	}
	r.stats.Applied++

	if r.acc == nil {
		start := windowStart(rec.Timestamp, r.cfg.WindowSeconds)
		r.acc = NewAccumulator(rec.ChainID, rec.Address, start, start+r.cfg.WindowSeconds)
	}
	vol, err := r.session.Pool.AverageVolatility()
	if err != nil {
		r.logger.Debug("average volatility unavailable", zap.Error(err))
	}
	r.acc.AddOutcome(out, vol)
	return nil
}

// parseLine sniffs the line kind. It returns (nil, nil, nil) for raw logs the
// decoder does not handle and a failure record for lines that cannot be used.
func (r *Runner) parseLine(line []byte) (*model.TypedEventRecord, *model.DecodeError, error) {
	if !gjson.ValidBytes(line) {
		return nil, &model.DecodeError{Error: "invalid json line"}, nil
	}

	if gjson.GetBytes(line, "event_name").Exists() {
		var rec model.TypedEventRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, &model.DecodeError{Error: fmt.Sprintf("typed event: %v", err)}, nil
		}
		return &rec, nil, nil
	}

	if !gjson.GetBytes(line, "topics").IsArray() {
		return nil, &model.DecodeError{Error: "line is neither a raw log nor a typed event"}, nil
	}
	if gjson.GetBytes(line, "removed").Bool() {
		return nil, nil, nil
	}
	var raw model.LogRecord
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, &model.DecodeError{Error: fmt.Sprintf("raw log: %v", err)}, nil
	}
	if r.decoder == nil || !r.decoder.CanDecode(raw.Topic0()) {
		return nil, nil, nil
	}
	ev, err := r.decoder.Decode(raw)
	if err != nil {
		return nil, &model.DecodeError{
			ChainID:     raw.ChainID,
			BlockNumber: raw.BlockNumber,
			TxHash:      raw.TxHash,
			LogIndex:    raw.LogIndex,
			Address:     raw.Address,
			Topic0:      raw.Topic0(),
			Error:       err.Error(),
		}, nil
	}
	if r.sinks.Events != nil {
		if err := r.sinks.Events.PutEventBatch([]model.TypedEvent{*ev}); err != nil {
			return nil, nil, fmt.Errorf("store typed event: %w", err)
		}
	}
	rec, err := ev.Record()
	if err != nil {
		return nil, nil, fmt.Errorf("encode typed event: %w", err)
	}
	return &rec, nil, nil
}

// rollWindow closes the open window when ts falls past its end. The snapshot
// taken here becomes the checkpoint written with the next flush.
func (r *Runner) rollWindow(ctx context.Context, ts uint64) error {
	if r.acc == nil || ts < r.acc.WindowEnd {
		return nil
	}
	r.pending = append(r.pending, r.acc.Metrics())
	r.stats.Windows++
	r.acc = nil

	snap := r.session.Snapshot(r.replayer.Cursor())
	r.checkpoint = &snap

	if len(r.pending) >= r.cfg.BatchSize {
		return r.flush(ctx)
	}
	return nil
}

func (r *Runner) flush(ctx context.Context) error {
	if len(r.pending) > 0 {
		for _, sink := range r.sinks.Metrics {
			if err := sink.UpsertWindowMetrics(ctx, r.pending); err != nil {
				return fmt.Errorf("store window metrics: %w", err)
			}
		}
		r.pending = r.pending[:0]
	}
	if r.checkpoint != nil {
		for _, store := range r.sinks.Snapshots {
			if err := store.SaveSnapshot(ctx, *r.checkpoint); err != nil {
				return fmt.Errorf("save snapshot: %w", err)
			}
		}
		r.stats.Snapshots++
		r.checkpoint = nil
	}
	return nil
}

func (r *Runner) recordFailure(failure model.DecodeError) error {
	if r.sinks.Errors == nil {
		return nil
	}
	return r.sinks.Errors.PutDecodeErrors([]model.DecodeError{failure})
}

func (r *Runner) isDuplicate(rec model.TypedEventRecord) bool {
	id := fmt.Sprintf("%d:%s:%d", rec.BlockNumber, strings.ToLower(rec.TxHash), rec.LogIndex)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
