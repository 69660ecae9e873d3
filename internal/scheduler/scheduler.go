// Package scheduler implements the multi-stage concurrent execution
// engine spec.md §4.4 calls "the hardest subsystem": per-segment
// producers, a combiner that fuses same-indexed blocks into a
// combined block with a monotonic block_no, one bounded worker-pool
// stage per plan step, a reorder buffer wherever order must be
// restored, premature-termination propagation, error collection, and
// in-order finalisation. Grounded on pkg/workerpool (itself grounded
// on the teacher's worker_pool.go) wired end to end the way the
// teacher's internal/dispatcher chains queue -> workers -> sinks.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/mdzesseis/fastqflow/internal/block"
	"github.com/mdzesseis/fastqflow/internal/metrics"
	"github.com/mdzesseis/fastqflow/internal/planner"
	"github.com/mdzesseis/fastqflow/internal/step"
	"github.com/mdzesseis/fastqflow/pkg/backpressure"
	"github.com/mdzesseis/fastqflow/pkg/errors"
	"github.com/mdzesseis/fastqflow/pkg/workerpool"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Config controls queue sizing and parallelism, spec.md §4.4's
// "bounded FIFO queues... fixed capacity (default 2-50)" and
// options.thread_count.
type Config struct {
	ThreadCount   int
	QueueCapacity int
}

func (c Config) withDefaults() Config {
	if c.ThreadCount <= 0 {
		c.ThreadCount = 1
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 16
	}
	return c
}

// FinalizeResult pairs a step's name with its Finalize return value,
// collected in plan order (spec.md §4.4 "Finalisation").
type FinalizeResult struct {
	StepName string
	Report   interface{}
}

// Result is the run's outcome: every step's finalize output plus
// per-step timing. A run-ending error is returned separately by Run.
type Result struct {
	Finalize []FinalizeResult
	Timing   map[string]StepTiming
}

// Run drives the whole pipeline to completion: producers, combiner,
// per-stage pools, and the sink. sources must have one entry per
// plan.SegmentNames. It returns once every stage has finished (success
// or failure) and every step has been finalized in plan order.
func Run(ctx context.Context, plan *planner.Plan, cfg Config, logger *logrus.Logger, sources map[string]Source, sink Sink) (*Result, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	for _, name := range plan.SegmentNames {
		if _, ok := sources[name]; !ok {
			return nil, errors.ConfigError("scheduler.Run", fmt.Sprintf("no source provided for segment %q", name))
		}
	}

	runStart := time.Now()
	defer func() { metrics.RunDuration.Observe(time.Since(runStart).Seconds()) }()
	metrics.PlanStepCount.Set(float64(len(plan.Steps)))

	inputCtx, cancelInput := context.WithCancel(ctx)
	defer cancelInput()

	group, gctx := errgroup.WithContext(ctx)

	segCh := make(map[string]chan block.Segment, len(plan.SegmentNames))
	for _, name := range plan.SegmentNames {
		segCh[name] = make(chan block.Segment, cfg.QueueCapacity)
	}
	for _, name := range plan.SegmentNames {
		name, src := name, sources[name]
		group.Go(func() error {
			return runProducer(inputCtx, src, segCh[name])
		})
	}

	combinerOut := make(chan *block.Combined, cfg.QueueCapacity)
	group.Go(func() error {
		return runCombiner(inputCtx, plan.SegmentNames, segCh, combinerOut)
	})

	input := step.InputSpec{SegmentNames: plan.SegmentNames}
	demux := step.DemultiplexInfo{Buckets: plan.Buckets}

	timers := make(map[string]*stepTimer, len(plan.Steps))

	prevOut := combinerOut
	orderedSoFar := true
	for _, st := range plan.Steps {
		inbox := prevOut
		if st.NeedsSerial() && !orderedSoFar {
			ordered := make(chan *block.Combined, cfg.QueueCapacity)
			in := prevOut
			group.Go(func() error {
				reorderRelay(gctx, in, ordered)
				return nil
			})
			inbox = ordered
			orderedSoFar = true
		}

		outbox := make(chan *block.Combined, cfg.QueueCapacity)
		workers := cfg.ThreadCount
		if st.NeedsSerial() {
			workers = 1
		}
		pool := workerpool.New(workerpool.Config{Workers: workers, QueueSize: cfg.QueueCapacity}, logger)
		bp := backpressure.NewManager(st.Name(), backpressure.DefaultConfig(), logger)
		timer := newStepTimer()
		timers[st.Name()] = timer

		var done atomic.Bool

		group.Go(func() error {
			defer close(pool.Inbox())
			for {
				select {
				case blk, ok := <-inbox:
					if !ok {
						return nil
					}
					level := bp.Observe(pool.Depth(), pool.Capacity())
					metrics.SetStageQueue(st.Name(), pool.Depth(), pool.Capacity())
					metrics.SetBackpressureLevel(st.Name(), int(level))
					task := workerpool.Task{
						ID: fmt.Sprintf("%s#%d", st.Name(), blk.BlockNo),
						Execute: func(taskCtx context.Context) error {
							start := time.Now()
							err := applyStep(taskCtx, st, blk, input, demux, outbox, cancelInput, &done)
							elapsed := time.Since(start)
							timer.record(elapsed)
							metrics.RecordStepApply(st.Name(), blk.Len(), elapsed)
							return err
						},
					}
					select {
					case pool.Inbox() <- task:
					case <-gctx.Done():
						return gctx.Err()
					}
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		})
		group.Go(func() error {
			err := pool.Run(gctx)
			close(outbox)
			return err
		})

		prevOut = outbox
		orderedSoFar = workers == 1
	}

	sinkInbox := prevOut
	if !orderedSoFar {
		ordered := make(chan *block.Combined, cfg.QueueCapacity)
		in := prevOut
		group.Go(func() error {
			reorderRelay(gctx, in, ordered)
			return nil
		})
		sinkInbox = ordered
	}
	group.Go(func() error {
		for blk := range sinkInbox {
			if err := sink.Write(blk); err != nil {
				cancelInput()
				return errors.OutputError("write", err.Error()).Wrap(err)
			}
		}
		return nil
	})

	runErr := group.Wait()

	if closeErr := sink.Close(); closeErr != nil && runErr == nil {
		runErr = errors.OutputError("close", closeErr.Error()).Wrap(closeErr)
	}

	result := &Result{
		Finalize: make([]FinalizeResult, 0, len(plan.Steps)),
		Timing:   make(map[string]StepTiming, len(timers)),
	}
	for name, timer := range timers {
		result.Timing[name] = timer.stats()
	}
	for _, st := range plan.Steps {
		report, err := st.Finalize(demux)
		if err != nil {
			if runErr == nil {
				runErr = errors.StepError("finalize", err.Error()).Wrap(err)
			}
			continue
		}
		if report != nil {
			result.Finalize = append(result.Finalize, FinalizeResult{StepName: st.Name(), Report: report})
		}
	}

	if runErr != nil {
		if ae, ok := errors.AsAppError(runErr); ok {
			metrics.RecordRunError(string(ae.Kind))
		} else {
			metrics.RecordRunError("unknown")
		}
	}

	return result, runErr
}

// runProducer drains one segment's Source into out, closing out once
// the final block has been sent or inputCtx is canceled by a
// downstream premature-termination request (spec.md §4.4: "this
// signal propagates upstream by closing producers' output queues").
func runProducer(ctx context.Context, src Source, out chan<- block.Segment) error {
	defer close(out)
	for {
		seg, err := src.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.InputDataError("produce", err.Error()).Wrap(err)
		}
		select {
		case out <- seg:
		case <-ctx.Done():
			return nil
		}
		if seg.IsFinal {
			return nil
		}
	}
}

// runCombiner consumes one block from every segment's channel per
// round, verifies their lengths match, assembles a combined block,
// and stamps the next block_no (spec.md §4.4 "Combiner").
func runCombiner(ctx context.Context, names []string, segCh map[string]chan block.Segment, out chan<- *block.Combined) error {
	defer close(out)
	blockNo := uint64(1)
	for {
		segs := make([]block.Segment, len(names))
		closedCount := 0
		for i, name := range names {
			select {
			case seg, ok := <-segCh[name]:
				if !ok {
					closedCount++
					continue
				}
				segs[i] = seg
			case <-ctx.Done():
				return nil
			}
		}
		if closedCount == len(names) {
			return nil
		}
		if closedCount != 0 {
			return errors.InputDataError("combine", "segments ended with unequal read counts")
		}

		n := segs[0].Len()
		for i, seg := range segs {
			if seg.Len() != n {
				return errors.InputDataError("combine",
					fmt.Sprintf("segment %d (%s) has %d reads, segment 0 has %d", i, seg.Name, seg.Len(), n))
			}
			if seg.IsFinal != segs[0].IsFinal {
				return errors.InputDataError("combine", "segments disagree on stream termination")
			}
		}

		combined := &block.Combined{
			Segments: segs,
			BlockNo:  blockNo,
			Tags:     block.NewTagTable(),
			IsFinal:  segs[0].IsFinal,
		}
		select {
		case out <- combined:
		case <-ctx.Done():
			return nil
		}
		blockNo++
		if combined.IsFinal {
			return nil
		}
	}
}

// applyStep runs one step's Apply on one block. Once a step has
// signalled cont=false, every later block reaching it is dropped
// without being applied again; whether that also cancels upstream
// production depends on the step's (possibly planner-forced)
// transmits_premature_termination value (spec.md §4.4).
func applyStep(ctx context.Context, st step.Step, blk *block.Combined, input step.InputSpec, demux step.DemultiplexInfo, outbox chan<- *block.Combined, cancelInput context.CancelFunc, done *atomic.Bool) error {
	if done.Load() {
		return nil
	}
	cont, err := st.Apply(blk, input, blk.BlockNo, demux)
	if err != nil {
		return errors.StepError("apply", err.Error()).Wrap(err).WithMetadata("step", st.Name())
	}
	if !cont {
		done.Store(true)
		if st.TransmitsPrematureTermination() {
			cancelInput()
		}
	}
	select {
	case outbox <- blk:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
