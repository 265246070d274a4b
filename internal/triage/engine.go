package triage

import (
	"context"
	"errors"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/acuity/internal/patient"
)

// FailSafeReason is the fixed reasoning attached to fail-safe decisions.
const FailSafeReason = "model unavailable: defaulting to highest caution"

// DecisionEvent summarizes one completed decision for metrics hooks.
type DecisionEvent struct {
	Path       DecisionPath
	Risk       RiskLevel
	Confidence float64
	Duration   float64
	Escalated  bool
	FailSafe   bool
}

// EngineHooks are optional callbacks for observing engine behavior. Nil
// fields are skipped.
type EngineHooks struct {
	OnRuleFired  func(rule string)
	OnModelCall  func(modelID string, duration float64, err error)
	OnEscalation func(from, to RiskLevel)
	OnDecision   func(e *DecisionEvent)
}

// EngineOptions tune decision behavior. Zero values select defaults.
type EngineOptions struct {
	// ConfidenceThreshold is the escalation cutoff. Defaults to
	// DefaultConfidenceThreshold.
	ConfidenceThreshold float64

	// ModelTimeout bounds each classifier call. Zero means the caller's
	// context governs alone.
	ModelTimeout time.Duration

	// FailSafeDepartment routes fail-safe decisions. Defaults to Emergency.
	FailSafeDepartment string

	// ClassifyOnOverride additionally runs the classifier on rule-override
	// decisions for advisory department refinement. The classifier result
	// is logged and never alters the override outcome.
	ClassifyOnOverride bool
}

// Engine is the pure decision pipeline: validate, encode, rule check,
// classify or force, escalate, explain. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	rules      *RuleSet
	classifier Classifier
	escalation EscalationPolicy
	logger     log.Logger
	hooks      EngineHooks
	opts       EngineOptions
	tracer     trace.Tracer
}

// NewEngine creates a decision engine over a validated rule set and a
// classifier.
func NewEngine(rules *RuleSet, classifier Classifier, logger log.Logger, hooks EngineHooks, opts EngineOptions) *Engine {
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if opts.FailSafeDepartment == "" {
		opts.FailSafeDepartment = DeptEmergency
	}
	return &Engine{
		rules:      rules,
		classifier: classifier,
		escalation: EscalationPolicy{Threshold: opts.ConfidenceThreshold},
		logger:     logger,
		hooks:      hooks,
		opts:       opts,
		tracer:     otel.Tracer("acuity.triage"),
	}
}

// Decide produces a complete prediction for one record. The only error it
// returns is a *patient.ValidationError; classifier failures are absorbed
// into the fail-safe decision so a caller always gets either a rejection or
// a whole, actionable result.
func (e *Engine) Decide(ctx context.Context, rec *patient.Record) (*Prediction, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "engine.decide")
	defer span.End()

	if err := rec.Validate(); err != nil {
		span.SetAttributes(attribute.Bool("triage.rejected", true))
		return nil, err
	}

	fv := Encode(rec)

	var pred *Prediction
	if rd := e.rules.Evaluate(rec); rd != nil {
		pred = e.decideOverride(ctx, rd, fv)
	} else {
		pred = e.decideModel(ctx, rec, fv)
	}

	pred.Features = fv
	pred.CreatedAt = time.Now()
	duration := time.Since(start).Seconds()
	pred.LatencyMS = duration * 1000

	span.SetAttributes(
		attribute.String("triage.path", string(pred.Path)),
		attribute.String("triage.risk", string(pred.Risk)),
		attribute.Float64("triage.confidence", pred.Confidence),
	)

	e.logger.Info(ctx, "decision",
		"path", pred.Path,
		"risk", pred.Risk,
		"department", pred.Department,
		"confidence", pred.Confidence,
		"override", pred.OverrideApplied,
		"escalated", pred.Escalated,
		"fail_safe", pred.FailSafe,
		"duration", duration,
	)
	if e.hooks.OnDecision != nil {
		e.hooks.OnDecision(&DecisionEvent{
			Path:       pred.Path,
			Risk:       pred.Risk,
			Confidence: pred.Confidence,
			Duration:   duration,
			Escalated:  pred.Escalated,
			FailSafe:   pred.FailSafe,
		})
	}
	return pred, nil
}

// decideOverride builds the forced decision from fired safety rules.
// Override confidence is always 1 and escalation never runs here.
func (e *Engine) decideOverride(ctx context.Context, rd *RuleDecision, fv *FeatureVector) *Prediction {
	names := make([]string, 0, len(rd.Fired))
	explanation := make([]string, 0, len(rd.Fired))
	for _, f := range rd.Fired {
		names = append(names, f.Rule)
		explanation = append(explanation, f.Reason)
		if e.hooks.OnRuleFired != nil {
			e.hooks.OnRuleFired(f.Rule)
		}
	}

	if e.opts.ClassifyOnOverride && e.classifier != nil {
		if out, err := e.callModel(ctx, fv); err == nil {
			e.logger.Info(ctx, "advisory model output on override path",
				"model_risk", out.Risk,
				"model_departments", out.Departments,
			)
		}
	}

	return &Prediction{
		Risk:            rd.Risk,
		Department:      rd.Departments[0],
		Departments:     rd.Departments,
		Confidence:      1.0,
		Explanation:     explanation,
		OverrideApplied: true,
		OverrideReason:  rd.Reason,
		FiredRules:      names,
		Path:            PathRule,
	}
}

// decideModel runs the classifier path, falling back to the fail-safe
// decision on any model failure, timeout, or contract violation.
func (e *Engine) decideModel(ctx context.Context, rec *patient.Record, fv *FeatureVector) *Prediction {
	out, err := e.callModel(ctx, fv)
	if err != nil {
		e.logger.Error(ctx, err, "classifier unavailable, failing safe")
		return &Prediction{
			Risk:        RiskHigh,
			Department:  e.opts.FailSafeDepartment,
			Departments: []string{e.opts.FailSafeDepartment},
			Confidence:  0,
			Explanation: []string{FailSafeReason},
			FailSafe:    true,
			Path:        PathFailSafe,
		}
	}

	confidence := out.Probabilities[out.Risk]
	risk, escalated := e.escalation.Apply(out.Risk, confidence)
	if escalated && e.hooks.OnEscalation != nil {
		e.hooks.OnEscalation(out.Risk, risk)
	}

	var factors []string
	if len(out.Contributions) > 0 {
		factors = ExplainContributions(out.Contributions, fv)
	} else {
		factors = HeuristicFactors(rec, fv)
	}

	fallback := DeptGeneral
	if risk == RiskHigh {
		fallback = DeptEmergency
	}
	depts := normalizeDepartments(out.Departments, fallback)

	pred := &Prediction{
		Risk:          risk,
		Department:    depts[0],
		Departments:   depts,
		Confidence:    confidence,
		Explanation:   factors,
		TopFactors:    factors,
		Probabilities: out.Probabilities,
		Escalated:     escalated,
		ModelID:       e.classifier.ModelID(),
		Path:          PathModel,
	}
	if escalated {
		pred.EscalatedFrom = out.Risk
	}
	return pred
}

// callModel invokes the classifier under the configured timeout and
// validates its output contract.
func (e *Engine) callModel(ctx context.Context, fv *FeatureVector) (*ModelOutput, error) {
	if e.classifier == nil {
		return nil, ErrModelUnavailable
	}
	if e.opts.ModelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.ModelTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := e.classifier.Predict(ctx, fv)
	elapsed := time.Since(start).Seconds()

	if err == nil {
		err = ValidateModelOutput(out)
	}
	if err != nil && !errors.Is(err, ErrModelUnavailable) {
		err = errors.Join(ErrModelUnavailable, err)
	}
	if e.hooks.OnModelCall != nil {
		e.hooks.OnModelCall(e.classifier.ModelID(), elapsed, err)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
