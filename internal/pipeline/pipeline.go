// Package pipeline orchestrates the export run: extract every configured
// Salesforce object, merge the record sets into one table, persist it
// locally, mirror the file to Google Drive, and flush run statistics.
//
// Stages run strictly in sequence because each consumes the whole output
// of the previous one; only extraction fans out, bounded by the
// configured concurrency, and joins before the merge. Local persistence
// always precedes the remote sync so a sync failure never loses
// extracted data.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eleveniq/sfexport/pkg/config"
	"github.com/eleveniq/sfexport/pkg/dataset"
	"github.com/eleveniq/sfexport/pkg/drive"
	"github.com/eleveniq/sfexport/pkg/errors"
	"github.com/eleveniq/sfexport/pkg/extract"
	"github.com/eleveniq/sfexport/pkg/logger"
	"github.com/eleveniq/sfexport/pkg/models"
	"github.com/eleveniq/sfexport/pkg/observability"
	"github.com/eleveniq/sfexport/pkg/persist"
	"github.com/eleveniq/sfexport/pkg/stats"
)

// State is the pipeline's lifecycle state.
type State string

const (
	StateInit       State = "INIT"
	StateExtracting State = "EXTRACTING"
	StateMerging    State = "MERGING"
	StatePersisting State = "PERSISTING"
	StateSyncing    State = "SYNCING"
	StateReporting  State = "REPORTING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// Syncer pushes a local file to the remote folder.
type Syncer interface {
	Sync(ctx context.Context, localPath string) (*drive.Result, error)
}

// Pipeline runs one export end to end.
type Pipeline struct {
	cfg       *config.Config
	extractor *extract.Extractor
	syncer    Syncer
	collector *stats.Collector
	logger    *zap.Logger

	state       State
	failedStage State
	dryRun      bool
}

// Options tune one run.
type Options struct {
	// DryRun skips the Drive sync stage, leaving only the local file.
	DryRun bool
}

// New assembles a pipeline from its collaborators. The extractor holds
// the authenticated Salesforce session; the syncer holds the Drive
// handle.
func New(cfg *config.Config, extractor *extract.Extractor, syncer Syncer, collector *stats.Collector, logger *zap.Logger, opts Options) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		extractor: extractor,
		syncer:    syncer,
		collector: collector,
		logger:    logger,
		state:     StateInit,
		dryRun:    opts.DryRun,
	}
}

// State returns the pipeline's current state.
func (p *Pipeline) State() State {
	return p.state
}

// FailedStage returns the stage a failed run stopped in, or "" for a
// run that did not fail.
func (p *Pipeline) FailedStage() State {
	return p.failedStage
}

// Run drives the state machine to DONE or FAILED. The returned error is
// nil only for DONE; statistics are flushed in both cases. The run id
// from the context, or a generated one, tags every log line and is
// propagated to the stages through the context.
func (p *Pipeline) Run(ctx context.Context) error {
	if _, ok := ctx.Value(logger.RunIDKey).(string); !ok {
		ctx = context.WithValue(ctx, logger.RunIDKey,
			time.Now().UTC().Format("20060102T150405.000"))
	}
	p.logger = p.logger.With(logger.ContextFields(ctx)...)

	if err := p.initStage(ctx); err != nil {
		return p.fail(StateInit, err)
	}

	sets, err := p.extractStage(ctx)
	if err != nil {
		return p.fail(StateExtracting, err)
	}

	merged := p.mergeStage(ctx, sets)

	path, err := p.persistStage(ctx, merged)
	if err != nil {
		return p.fail(StatePersisting, err)
	}

	if err := p.syncStage(ctx, path); err != nil {
		// The local file written in PERSISTING survives a sync failure.
		return p.fail(StateSyncing, err)
	}

	p.reportStage(ctx, true)
	p.state = StateDone
	p.logger.Info("pipeline completed",
		zap.Int("records", p.collector.TotalRecords()),
		zap.Duration("duration", p.collector.RunDuration()))
	return nil
}

func (p *Pipeline) initStage(ctx context.Context) error {
	p.state = StateInit
	_, span := observability.StartStage(ctx, string(StateInit))

	var err error
	if p.dryRun {
		// No Drive access in a dry run, so its credentials may be absent.
		err = p.cfg.ValidateSettings()
	} else {
		err = p.cfg.Validate()
	}
	if err == nil {
		if mkErr := os.MkdirAll(p.cfg.Output.Dir, 0o755); mkErr != nil {
			err = errors.Wrap(mkErr, errors.ErrorTypeConfig, "failed to create output directory").
				WithDetail("path", p.cfg.Output.Dir)
		}
	}
	observability.EndStage(span, err)
	return err
}

// extractStage fans out over the configured objects, joined before the
// merge. Results land in per-object slots so output order follows
// configuration, not completion time.
func (p *Pipeline) extractStage(ctx context.Context) ([]*models.RecordSet, error) {
	p.state = StateExtracting
	ctx = context.WithValue(ctx, logger.StageKey, string(StateExtracting))
	stageCtx, span := observability.StartStage(ctx, string(StateExtracting))

	sets := make([]*models.RecordSet, len(p.cfg.Objects))

	g, gctx := errgroup.WithContext(stageCtx)
	g.SetLimit(p.cfg.Reliability.Concurrency)

	for i, object := range p.cfg.Objects {
		g.Go(func() error {
			start := time.Now()
			set, retries, err := p.extractor.Extract(gctx, object)
			elapsed := time.Since(start)

			if err != nil {
				p.collector.Record(stats.Entry{
					Object:   object,
					Stage:    string(StateExtracting),
					Retries:  retries,
					Duration: elapsed,
					Status:   stats.StatusFailed,
					Message:  err.Error(),
				})

				if p.fatalExtraction(err) {
					// Cancels in-flight sibling extractions via gctx.
					return err
				}
				p.logger.Warn("object skipped after exhausted retries",
					zap.String("object", object), zap.Error(err))
				return nil
			}

			sets[i] = set
			p.collector.Record(stats.Entry{
				Object:   object,
				Stage:    string(StateExtracting),
				Records:  set.Len(),
				Retries:  retries,
				Duration: elapsed,
				Status:   stats.StatusSuccess,
			})
			return nil
		})
	}

	err := g.Wait()
	if err == nil && !p.anyExtracted(sets) {
		err = errors.New(errors.ErrorTypeExtraction, "no object extracted successfully")
	}
	observability.EndStage(span, err)
	if err != nil {
		return nil, err
	}
	return sets, nil
}

// fatalExtraction decides whether one object's failure aborts the run.
// Authentication and permission failures always do; otherwise the
// configured failure policy applies and the run continues degraded.
func (p *Pipeline) fatalExtraction(err error) bool {
	if errors.HasType(err, errors.ErrorTypeAuthentication) ||
		errors.HasType(err, errors.ErrorTypePermission) {
		return true
	}
	return p.cfg.Reliability.FailFast
}

func (p *Pipeline) anyExtracted(sets []*models.RecordSet) bool {
	for _, s := range sets {
		if s != nil {
			return true
		}
	}
	return false
}

func (p *Pipeline) mergeStage(ctx context.Context, sets []*models.RecordSet) *models.MergedDataset {
	p.state = StateMerging
	_, span := observability.StartStage(ctx, string(StateMerging))
	merged := dataset.Merge(sets)
	observability.EndStage(span, nil)

	p.logger.Info("record sets merged",
		zap.Int("rows", merged.RowCount()),
		zap.Int("columns", merged.ColumnCount()))
	return merged
}

func (p *Pipeline) persistStage(ctx context.Context, merged *models.MergedDataset) (string, error) {
	p.state = StatePersisting
	_, span := observability.StartStage(ctx, string(StatePersisting))

	format := dataset.Select(merged.RowCount(), merged.ColumnCount(), dataset.Limits{
		MaxRows:    p.cfg.Output.RowLimit,
		MaxColumns: p.cfg.Output.ColumnLimit,
	})

	persister := persist.New(p.cfg.Output.Dir, p.cfg.Output.DataFileBase, p.logger)
	path, err := persister.Write(merged, format)
	observability.EndStage(span, err)
	return path, err
}

func (p *Pipeline) syncStage(ctx context.Context, path string) error {
	p.state = StateSyncing
	if p.dryRun {
		p.logger.Info("dry run, skipping drive sync", zap.String("path", path))
		return nil
	}

	ctx = context.WithValue(ctx, logger.StageKey, string(StateSyncing))
	stageCtx, span := observability.StartStage(ctx, string(StateSyncing))
	start := time.Now()
	result, err := p.syncer.Sync(stageCtx, path)
	elapsed := time.Since(start)
	observability.EndStage(span, err)

	entry := stats.Entry{
		Object:   filepath.Base(path),
		Stage:    string(StateSyncing),
		Duration: elapsed,
	}
	if err != nil {
		entry.Status = stats.StatusFailed
		entry.Message = err.Error()
		p.collector.Record(entry)
		return err
	}

	entry.Status = stats.StatusSuccess
	if result.Created {
		entry.Message = "created " + result.FileID
	} else {
		entry.Message = "updated " + result.FileID
	}
	p.collector.Record(entry)
	return nil
}

// reportStage flushes statistics. Reporting problems are logged, never
// escalated: they must not turn a finished run into a failed one.
func (p *Pipeline) reportStage(ctx context.Context, success bool) {
	p.state = StateReporting
	_, span := observability.StartStage(ctx, string(StateReporting))
	defer observability.EndStage(span, nil)

	logPath := filepath.Join(p.cfg.Output.Dir, p.cfg.Output.LogFileName)
	if err := p.collector.WriteLog(logPath); err != nil {
		p.logger.Warn("failed to write statistics log", zap.Error(err))
	}

	if gw := p.cfg.Observability.PushGateway; gw != "" {
		if err := p.collector.Push(gw, "sfexport", success); err != nil {
			p.logger.Warn("failed to push run metrics", zap.Error(err))
		}
	}
}

// fail records the failing stage, flushes statistics, and parks the
// pipeline in FAILED.
func (p *Pipeline) fail(stage State, err error) error {
	p.logger.Error("pipeline failed",
		zap.String("stage", string(stage)), zap.Error(err))

	p.collector.Record(stats.Entry{
		Stage:   string(stage),
		Status:  stats.StatusFailed,
		Message: err.Error(),
	})
	p.reportStage(context.Background(), false)

	p.failedStage = stage
	p.state = StateFailed
	return err
}
