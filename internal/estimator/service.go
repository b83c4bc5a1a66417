package estimator

import (
	"context"
	"errors"
	"time"

	"github.com/gfearing/fearings-services/internal/estimate"
	"github.com/gfearing/fearings-services/internal/logger"
	"github.com/gfearing/fearings-services/internal/metrics"
	"github.com/gfearing/fearings-services/internal/model"
)

// Generator sends a prompt to the generative API and returns the reply text
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Service runs estimate cycles against a generator
type Service struct {
	builder   *estimate.Builder
	generator Generator
}

// NewService creates an estimator service
func NewService(builder *estimate.Builder, generator Generator) *Service {
	return &Service{
		builder:   builder,
		generator: generator,
	}
}

// Submit runs one estimate cycle for the session.
//
// It returns model.ErrEmptyDescription or model.ErrEstimateInFlight without
// calling the generator. Every other failure is logged and ends in the failed
// state; the returned snapshot then carries only the generic message and the
// returned error is nil.
func (s *Service) Submit(ctx context.Context, sess *Session, jobDescription string) (Snapshot, error) {
	log := logger.Get(ctx)
	m := metrics.Get()

	req, err := s.builder.Build(jobDescription)
	if err != nil {
		if errors.Is(err, model.ErrEmptyDescription) {
			sess.Begin(jobDescription) // records the validation message
			m.IncrementEstimateRejected(false)
			logger.AuditEstimate(ctx, logger.AuditActionEstimateRejected, 0, err, nil)
			return sess.Snapshot(), err
		}
		return sess.Snapshot(), err
	}

	if err := sess.Begin(jobDescription); err != nil {
		if errors.Is(err, model.ErrEstimateInFlight) {
			m.IncrementEstimateRejected(true)
			log.Warn().Msg("Estimate already in flight, submission ignored")
		}
		return sess.Snapshot(), err
	}

	m.IncrementEstimateRequested()
	logger.AuditEstimate(ctx, logger.AuditActionEstimateSubmit, 0, nil, map[string]interface{}{
		"description_length": len(jobDescription),
	})

	// The call is never cancelled by the caller going away: the session
	// must always leave the loading state.
	callCtx := context.WithoutCancel(ctx)

	start := time.Now()
	est, err := s.generate(callCtx, req)
	elapsed := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Dur("latency", elapsed).
			Str("failure_kind", failureKind(err)).
			Msg("Estimate generation failed")
		sess.Fail()
		m.IncrementEstimateFailed(failureKind(err), elapsed.Milliseconds())
		logger.AuditEstimate(ctx, logger.AuditActionEstimateFailed, elapsed, err, nil)
		return sess.Snapshot(), nil
	}

	sess.Succeed(est)
	m.IncrementEstimateSucceeded(est.IsDoable, elapsed.Milliseconds())
	log.Info().
		Bool("is_doable", est.IsDoable).
		Str("confidence", est.ConfidenceScore).
		Int("steps", len(est.Breakdown)).
		Dur("latency", elapsed).
		Msg("Estimate generated")
	logger.AuditEstimate(ctx, logger.AuditActionEstimateComplete, elapsed, nil, map[string]interface{}{
		"is_doable": est.IsDoable,
	})

	return sess.Snapshot(), nil
}

// generate calls the API once and parses the reply
func (s *Service) generate(ctx context.Context, req estimate.Request) (*model.Estimate, error) {
	text, err := s.generator.GenerateContent(ctx, req.Prompt())
	if err != nil {
		return nil, err
	}
	return model.ParseEstimate(text)
}

// failureKind names the error taxonomy bucket of err
func failureKind(err error) string {
	switch {
	case errors.Is(err, model.ErrMissingAPIKey):
		return "missing_api_key"
	case errors.Is(err, model.ErrEmptyResponse):
		return "empty_response"
	case errors.Is(err, model.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, model.ErrTimeout):
		return "timeout"
	default:
		return "transport"
	}
}
