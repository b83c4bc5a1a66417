package model

import "errors"

// User-facing messages. Every failure kind shows GenericFailureMessage.
const (
	ValidationMessage     = "Please describe the job first!"
	GenericFailureMessage = "Sorry, I couldn't generate an estimate right now. Please try again later."
	InFlightMessage       = "An estimate is already being prepared. Please wait for it to finish."
)

var (
	// ErrEmptyDescription indicates an empty or whitespace-only job description
	ErrEmptyDescription = errors.New("job description is empty")

	// ErrEstimateInFlight indicates a submission while the session is loading
	ErrEstimateInFlight = errors.New("an estimate request is already in flight")

	// ErrMissingAPIKey indicates the generative API key is not configured
	ErrMissingAPIKey = errors.New("generative API key not configured")

	// ErrTransport indicates a non-success status or network failure
	ErrTransport = errors.New("generative API request failed")

	// ErrUnauthorized indicates the API key was rejected
	ErrUnauthorized = errors.New("generative API key rejected")

	// ErrRateLimited indicates the API returned 429
	ErrRateLimited = errors.New("generative API rate limit exceeded")

	// ErrTimeout indicates the request context ended before a reply
	ErrTimeout = errors.New("generative API request timed out")

	// ErrEmptyResponse indicates no usable candidate in the reply
	ErrEmptyResponse = errors.New("No response from the estimator. Please try again.")

	// ErrMalformedResponse indicates candidate text that is not a conforming Estimate
	ErrMalformedResponse = errors.New("malformed estimate response")
)
