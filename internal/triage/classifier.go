package triage

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrModelUnavailable signals that the classifier could not produce a
// usable output. The engine absorbs it into the fail-safe decision; it is
// never surfaced to API callers.
var ErrModelUnavailable = errors.New("model unavailable")

// probabilityTolerance bounds how far the probability mass may drift from 1.
const probabilityTolerance = 1e-6

// Classifier is the pluggable statistical model behind the decision engine.
// Implementations must be safe for concurrent use.
type Classifier interface {
	// Predict scores one encoded record. Implementations should honor ctx
	// cancellation and wrap transport or model failures in
	// ErrModelUnavailable.
	Predict(ctx context.Context, fv *FeatureVector) (*ModelOutput, error)

	// ModelID identifies the model and version for audit entries.
	ModelID() string
}

// ValidateModelOutput checks the classifier contract: a known label,
// non-negative probabilities summing to 1 within tolerance, and the label
// present in the probability map. A violation means the model output cannot
// be trusted and the caller must fail safe.
func ValidateModelOutput(out *ModelOutput) error {
	if out == nil {
		return fmt.Errorf("%w: nil output", ErrModelUnavailable)
	}
	if !out.Risk.Valid() {
		return fmt.Errorf("%w: unknown risk label %q", ErrModelUnavailable, out.Risk)
	}
	if len(out.Probabilities) == 0 {
		return fmt.Errorf("%w: no probabilities", ErrModelUnavailable)
	}
	var sum float64
	for label, p := range out.Probabilities {
		if !label.Valid() {
			return fmt.Errorf("%w: unknown probability label %q", ErrModelUnavailable, label)
		}
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: invalid probability %v for %q", ErrModelUnavailable, p, label)
		}
		sum += p
	}
	if math.Abs(sum-1) > probabilityTolerance {
		return fmt.Errorf("%w: probabilities sum to %v", ErrModelUnavailable, sum)
	}
	if _, ok := out.Probabilities[out.Risk]; !ok {
		return fmt.Errorf("%w: label %q missing from probabilities", ErrModelUnavailable, out.Risk)
	}
	return nil
}

// normalizeDepartments deduplicates the model's department list, preserving
// order, and falls back to the given default when the model names none.
func normalizeDepartments(depts []string, fallback string) []string {
	seen := make(map[string]bool, len(depts))
	out := make([]string, 0, len(depts))
	for _, d := range depts {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	if len(out) == 0 {
		out = append(out, fallback)
	}
	return out
}
