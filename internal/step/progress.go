package step

import (
	"sync/atomic"

	"github.com/mdzesseis/fastqflow/internal/block"
	"github.com/sirupsen/logrus"
)

// progressStep logs a running count of the reads reaching its own
// stage every interval blocks, and a final count at Finalize. The
// planner does not fan its configuration out to other steps, and the
// scheduler has no progress reporting of its own, so this tally is
// the only progress output.
type progressStep struct {
	Base
	interval int64
	logger   *logrus.Logger
	seen     int64
	label    string
}

func newProgressFactory(params map[string]interface{}) (Step, error) {
	interval := paramIntOr(params, "interval_blocks", 1000)
	if interval < 1 {
		interval = 1
	}
	return &progressStep{
		interval: int64(interval),
		logger:   logrus.StandardLogger(),
		label:    paramStringOr(params, "label", "progress"),
	}, nil
}

func (p *progressStep) Name() string { return "Progress" }

func (p *progressStep) ValidateSegments(InputSpec) error { return nil }

func (p *progressStep) Apply(blk *block.Combined, input InputSpec, blockNo uint64, demux DemultiplexInfo) (bool, error) {
	n := atomic.AddInt64(&p.seen, int64(blk.Len()))
	if blockNo%uint64(p.interval) == 0 {
		p.logger.WithFields(logrus.Fields{
			"label":     p.label,
			"block_no":  blockNo,
			"reads_seen": n,
		}).Info("progress")
	}
	return true, nil
}

func (p *progressStep) Finalize(DemultiplexInfo) (interface{}, error) {
	p.logger.WithField("label", p.label).WithField("reads_seen", atomic.LoadInt64(&p.seen)).Info("progress: run complete")
	return nil, nil
}
