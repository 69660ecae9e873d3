package step

import (
	"github.com/mdzesseis/fastqflow/internal/block"
)

// skipStep drops the first N reads across the whole run, the
// primitive complement to Head (spec.md §4.2). Grounded on the
// teacher's counting-filter shape in its rate limiter (one running
// counter consulted per item), generalized from "per second" to
// "per run".
type skipStep struct {
	Base
	n       int
	skipped int
}

func newSkipFactory(params map[string]interface{}) (Step, error) {
	n, err := paramInt(params, "n")
	if err != nil {
		return nil, err
	}
	if n < 0 {
		n = 0
	}
	return &skipStep{n: n}, nil
}

func (s *skipStep) Name() string { return "Skip" }

func (s *skipStep) ValidateSegments(InputSpec) error { return nil }

// NeedsSerial: the running skip counter must observe blocks in
// block_no order, or reads could be skipped from the wrong block.
func (s *skipStep) NeedsSerial() bool { return true }

func (s *skipStep) Apply(blk *block.Combined, input InputSpec, blockNo uint64, demux DemultiplexInfo) (bool, error) {
	n := blk.Len()
	if s.skipped >= s.n {
		return true, nil
	}
	remaining := s.n - s.skipped
	if remaining >= n {
		s.skipped += n
		blk.Truncate(0)
		return true, nil
	}
	mask := make([]bool, n)
	for i := remaining; i < n; i++ {
		mask[i] = true
	}
	s.skipped = s.n
	if err := blk.Filter(mask); err != nil {
		return false, err
	}
	return true, nil
}
