package stats

import (
	"fmt"
	"strings"
)

// Step is a state of the recompute pipeline.
type Step string

const (
	StepReset         Step = "RESET"
	StepRates         Step = "RATES"
	StepProgress      Step = "PROGRESS"
	StepPeriods       Step = "PERIODS"
	StepTopPerformers Step = "TOP_PERFORMERS"
	StepAggregation   Step = "AGGREGATION"
	StepSucceeded     Step = "SUCCEEDED"
	StepFailed        Step = "FAILED"
)

var pipeline = []Step{StepReset, StepRates, StepProgress, StepPeriods, StepTopPerformers, StepAggregation}

// Pipeline returns the working steps in execution order.
func Pipeline() []Step {
	out := make([]Step, len(pipeline))
	copy(out, pipeline)
	return out
}

// PipelineFrom returns the working steps starting at s.
func PipelineFrom(s Step) ([]Step, error) {
	for i, step := range pipeline {
		if step == s {
			out := make([]Step, len(pipeline)-i)
			copy(out, pipeline[i:])
			return out, nil
		}
	}
	return nil, fmt.Errorf("step %q is not resumable", s)
}

// Next returns the state following s on success.
func (s Step) Next() Step {
	for i, step := range pipeline {
		if step == s {
			if i == len(pipeline)-1 {
				return StepSucceeded
			}
			return pipeline[i+1]
		}
	}
	return s
}

// Terminal reports whether s ends a run.
func (s Step) Terminal() bool {
	return s == StepSucceeded || s == StepFailed
}

// ParseStep accepts a step name in any case.
func ParseStep(raw string) (Step, error) {
	candidate := Step(strings.ToUpper(strings.TrimSpace(raw)))
	switch candidate {
	case StepReset, StepRates, StepProgress, StepPeriods, StepTopPerformers, StepAggregation, StepSucceeded, StepFailed:
		return candidate, nil
	}
	return "", fmt.Errorf("unknown step %q", raw)
}
