package step

import (
	"github.com/mdzesseis/fastqflow/internal/block"
)

// TransmitOverridable is implemented by terminator steps whose
// transmits_premature_termination() the planner may force to false
// (spec.md §4.4, §9 Open Question (b)): when a must-see-all step such
// as Report precedes a terminator, the terminator must keep consuming
// and discarding upstream blocks rather than closing its own upstream
// queue, so the earlier step still observes the full stream.
type TransmitOverridable interface {
	Step
	ForceTransmitPremature(v bool)
}

// headStep keeps the first N reads of the run and then asks the
// scheduler to stop feeding it further blocks (spec.md §4.4
// "premature termination"). Grounded on the teacher's sampling
// reservoir counter pattern (a monotonic counter gating further
// admission), generalized to "truncate once the ceiling is crossed".
type headStep struct {
	Base
	n        int
	kept     int
	transmit bool
}

func newHeadFactory(params map[string]interface{}) (Step, error) {
	n, err := paramInt(params, "n")
	if err != nil {
		return nil, err
	}
	if n < 0 {
		n = 0
	}
	return &headStep{n: n, transmit: true}, nil
}

func (h *headStep) Name() string { return "Head" }

func (h *headStep) ValidateSegments(InputSpec) error { return nil }

// NeedsSerial: the kept-so-far counter must advance in block_no order
// or the "first N" contract (Testable Property 5) breaks.
func (h *headStep) NeedsSerial() bool { return true }

func (h *headStep) TransmitsPrematureTermination() bool { return h.transmit }

// ForceTransmitPremature implements TransmitOverridable; the planner
// calls this with false when a must-see-all step precedes Head.
func (h *headStep) ForceTransmitPremature(v bool) { h.transmit = v }

func (h *headStep) Apply(blk *block.Combined, input InputSpec, blockNo uint64, demux DemultiplexInfo) (bool, error) {
	if h.kept >= h.n {
		blk.Truncate(0)
		return false, nil
	}
	remaining := h.n - h.kept
	n := blk.Len()
	if n <= remaining {
		h.kept += n
		return h.kept < h.n, nil
	}
	blk.Truncate(remaining)
	h.kept = h.n
	return false, nil
}
