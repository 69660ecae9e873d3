package step

// Sugar marks a step as convenience syntax the planner's plan-expansion
// pass (spec.md §4.3 pass 4) rewrites into one or more primitive steps
// before the scheduler ever sees it. A Sugar step is never itself
// scheduled; Expand must be called exactly once, in plan position.
type Sugar interface {
	Step
	Expand() []Step
}

// ReportHalf marks the Report step as one the planner splits into a
// parallel collector and a serial finaliser sharing one accumulator
// (spec.md §4.3 pass 4, §4.4 "Report half-pair coupling"). Split
// returns the two cooperating instances in plan order.
type ReportHalf interface {
	Step
	Split() (collector Step, finalizer Step)
}

// FullStreamObserver marks a step that requires must-see-all
// visibility into every block that reaches its plan position — a
// split Report's two halves are the only built-in example. The
// planner's forceNoTransmit pass (spec.md §9 Open Question (b)) walks
// the plan in order and, once it has seen such a step, forces every
// later TransmitOverridable terminator to stop propagating
// termination upstream, so the observer still sees the full stream.
type FullStreamObserver interface {
	Step
	ObservesFullStream() bool
}
