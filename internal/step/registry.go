package step

import "fmt"

// Factory builds a Step instance from its raw YAML params. Params keys
// not understood by a given step are ignored; required/invalid values
// should produce an error the planner surfaces as InvalidConfig.
type Factory func(params map[string]interface{}) (Step, error)

// Registry maps a config action name to the factory that builds it,
// the same "construct by config-type string" pattern the teacher uses
// for its pluggable sinks.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry pre-populated with every built-in
// step this engine ships.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("Skip", newSkipFactory)
	r.Register("Head", newHeadFactory)
	r.Register("Demultiplex", newDemultiplexFactory)
	r.Register("Report", newReportFactory)
	r.Register("ComputeLength", newComputeLengthFactory)
	r.Register("FilterByNumericTag", newFilterByNumericTagFactory)
	r.Register("FilterEmpty", newFilterEmptyFactory)
	r.Register("CalcBaseContent", newCalcBaseContentFactory)
	r.Register("CalcGCContent", newCalcGCContentFactory)
	r.Register("QualityEncodingValidator", newQualityEncodingValidatorFactory)
	r.Register("PairNameSpotCheck", newPairNameSpotCheckFactory)
	r.Register("Progress", newProgressFactory)
	r.Register("DedupByHash", newDedupByHashFactory)
	r.Register("ValidateSeq", newValidateSeqFactory)
	return r
}

// Register installs a factory under action, overwriting any existing
// registration — used by tests to inject fakes.
func (r *Registry) Register(action string, factory Factory) {
	r.factories[action] = factory
}

// Build constructs the step named by action with the given params.
func (r *Registry) Build(action string, params map[string]interface{}) (Step, error) {
	factory, ok := r.factories[action]
	if !ok {
		return nil, fmt.Errorf("step: unknown action %q", action)
	}
	return factory(params)
}

// Known reports whether action has a registered factory.
func (r *Registry) Known(action string) bool {
	_, ok := r.factories[action]
	return ok
}
