// Package planner implements the ordered validation passes and plan
// expansion rewrite spec.md §4.3 describes: segment resolution, tag
// flow analysis, cross-step validation, then a deterministic rewrite
// of the declared step list into the scheduler's executable plan.
// Grounded on internal/config's staged defaults -> overrides ->
// validate pipeline, generalized from "one config struct" to "ordered
// step list with cross-step dependencies".
package planner

import (
	"errors"
	"fmt"

	"github.com/mdzesseis/fastqflow/internal/config"
	"github.com/mdzesseis/fastqflow/internal/step"
	"github.com/mdzesseis/fastqflow/internal/tagvalue"
)

// Plan is the frozen, validated, executable result of Build (spec.md
// §4.3): the expanded step list plus the resolved segment names, tag
// metadata table, and demultiplex bucket descriptor (if any).
type Plan struct {
	Steps        []step.Step
	SegmentNames []string
	TagMeta      map[string]step.TagMeta
	Buckets      *step.DemultiplexBuckets
}

// Build runs the four ordered passes over cfg.Steps and returns the
// frozen plan, or a joined error if any pass fails.
func Build(cfg *config.Config, registry *step.Registry) (*Plan, error) {
	input := step.InputSpec{SegmentNames: cfg.Input.SegmentNames()}
	output := step.OutputSpec{Stdout: cfg.Output.Stdout, ChunkSize: cfg.Output.ChunkSize}

	declared, err := instantiate(cfg, registry)
	if err != nil {
		return nil, err
	}

	if err := resolveSegments(declared, input); err != nil {
		return nil, err
	}

	tagMeta, err := analyzeTagFlow(declared)
	if err != nil {
		return nil, err
	}

	if err := crossValidate(declared, input, output); err != nil {
		return nil, err
	}

	expanded, err := expand(declared, input, cfg)
	if err != nil {
		return nil, err
	}
	forceNoTransmit(expanded)

	buckets, err := initSteps(expanded, cfg, input)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Steps:        expanded,
		SegmentNames: input.SegmentNames,
		TagMeta:      tagMeta,
		Buckets:      buckets,
	}, nil
}

func instantiate(cfg *config.Config, registry *step.Registry) ([]step.Step, error) {
	steps := make([]step.Step, 0, len(cfg.Steps))
	var errs []error
	for i, sc := range cfg.Steps {
		s, err := registry.Build(sc.Action, sc.Params)
		if err != nil {
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i, sc.Action, err))
			continue
		}
		steps = append(steps, s)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return steps, nil
}

// resolveSegments is pass 1: each step resolves its segment/tag source
// strings against the input spec; errors are collected and reported
// together, aborting before any data flows (spec.md §4.3 pass 1).
func resolveSegments(steps []step.Step, input step.InputSpec) error {
	var errs []error
	for i, s := range steps {
		if err := s.ValidateSegments(input); err != nil {
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i, s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// analyzeTagFlow is pass 2: walk steps in order maintaining
// tag_name -> metadata, failing on a duplicate declaration, a missing
// or incompatibly-typed use, and marking a tag "requires location"
// when a downstream use accepts only Location (spec.md §4.3 pass 2).
func analyzeTagFlow(steps []step.Step) (map[string]step.TagMeta, error) {
	available := make(map[string]step.TagMeta)
	for i, s := range steps {
		if name, typ, ok := s.DeclaresTag(); ok {
			if _, exists := available[name]; exists {
				return nil, fmt.Errorf("step %d (%s): duplicate tag %q", i, s.Name(), name)
			}
			available[name] = step.TagMeta{ProducerIndex: i, Type: typ}
		}

		uses, err := s.UsesTags(available)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, s.Name(), err)
		}
		for _, u := range uses {
			if u.Accepted[tagvalue.TypeLocation] && len(u.Accepted) == 1 {
				meta := available[u.Name]
				meta.RequiresLocation = true
				available[u.Name] = meta
			}
		}

		if name, ok := s.RemovesTag(); ok {
			delete(available, name)
		}
		if s.RemovesAllTags() {
			available = make(map[string]step.TagMeta)
		}
	}
	return available, nil
}

// crossValidate is pass 3: each step's validate_others runs with full
// plan visibility (spec.md §4.3 pass 3). Config-level checks that need
// no step visibility (demultiplex uniqueness, report label
// uniqueness) already ran in internal/config.Validate.
func crossValidate(steps []step.Step, input step.InputSpec, output step.OutputSpec) error {
	var errs []error
	for i, s := range steps {
		if err := s.ValidateOthers(input, output, steps, i); err != nil {
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i, s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// expand is pass 4: deterministic rewrite of the declared step list
// into the scheduler's executable plan (spec.md §4.3 pass 4).
func expand(steps []step.Step, input step.InputSpec, cfg *config.Config) ([]step.Step, error) {
	steps = injectPairingSpotCheck(steps, input, cfg)

	out := make([]step.Step, 0, len(steps))
	var errs []error
	for i, s := range steps {
		switch half := s.(type) {
		case step.ReportHalf:
			collector, finalizer := half.Split()
			out = append(out, collector, finalizer)
		case step.Sugar:
			sugared, err := expandSugar(half, input)
			if err != nil {
				errs = append(errs, fmt.Errorf("step %d (%s): %w", i, s.Name(), err))
				continue
			}
			out = append(out, sugared...)
		default:
			out = append(out, s)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// expandSugar resolves a Sugar step's replacement steps against input
// before they are folded into the plan: pass 1 (resolveSegments) only
// ran over the originally declared steps, so each substitute step must
// run its own ValidateSegments here, recursively in case a substitute
// is itself sugar (spec.md §4.3 pass 4).
func expandSugar(s step.Sugar, input step.InputSpec) ([]step.Step, error) {
	var out []step.Step
	for _, inner := range s.Expand() {
		if err := inner.ValidateSegments(input); err != nil {
			return nil, err
		}
		if nested, ok := inner.(step.Sugar); ok {
			nestedOut, err := expandSugar(nested, input)
			if err != nil {
				return nil, err
			}
			out = append(out, nestedOut...)
			continue
		}
		out = append(out, inner)
	}
	return out, nil
}

// injectPairingSpotCheck adds a read-name pairing spot-check at the
// head of a multi-segment pipeline unless the user already added one
// or disabled the feature (spec.md §4.3 pass 4).
func injectPairingSpotCheck(steps []step.Step, input step.InputSpec, cfg *config.Config) []step.Step {
	if len(input.SegmentNames) < 2 {
		return steps
	}
	if cfg.Options.SpotCheckPairing != nil && !*cfg.Options.SpotCheckPairing {
		return steps
	}
	for _, s := range steps {
		if s.Name() == "PairNameSpotCheck" {
			return steps
		}
	}
	implicit, _ := step.NewRegistry().Build("PairNameSpotCheck", nil)
	return append([]step.Step{implicit}, steps...)
}

// forceNoTransmit implements spec.md §9 Open Question (b): once the
// plan has passed a step that requires must-see-all visibility (a
// split Report half), every later terminator stops propagating
// premature termination upstream, so the observer still sees the full
// stream (Scenario F).
func forceNoTransmit(steps []step.Step) {
	sawFullStreamObserver := false
	for _, s := range steps {
		if obs, ok := s.(step.FullStreamObserver); ok && obs.ObservesFullStream() {
			sawFullStreamObserver = true
		}
		if sawFullStreamObserver {
			if terminator, ok := s.(step.TransmitOverridable); ok {
				terminator.ForceTransmitPremature(false)
			}
		}
	}
}

// initSteps runs each step's one-shot Init, in plan order, resolving
// the frozen demultiplex bucket descriptor if any step produces one.
func initSteps(steps []step.Step, cfg *config.Config, input step.InputSpec) (*step.DemultiplexBuckets, error) {
	ctx := step.InitContext{Input: input, Barcodes: cfg.Barcodes}
	var buckets *step.DemultiplexBuckets
	var errs []error
	for i, s := range steps {
		b, err := s.Init(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i, s.Name(), err))
			continue
		}
		if b != nil {
			buckets = b
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return buckets, nil
}
