package download

import (
	"context"
	"errors"
	"time"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
	"github.com/Cornman92/Better11-sub004/internal/ports"
)

// RetryPolicy defines exponential backoff for transient download failures.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
}

// DefaultRetryPolicy retries twice after the first attempt, waiting 1s then 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: time.Second,
		Multiplier:      2,
		MaxInterval:     30 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.InitialInterval < 0 {
		p.InitialInterval = 0
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	return p
}

// permanentError marks a failure that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable reports whether err is a transient download failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var p *permanentError
	if errors.As(err, &p) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch app.CodeOf(err) {
	case app.ErrCodeHostNotVetted, app.ErrCodeUnsupportedScheme, app.ErrCodeCancelled, app.ErrCodeValidation:
		return false
	}
	return true
}

// retry runs action until it succeeds, returns a non-retryable error, or the
// attempts are exhausted. The last error is returned unwrapped.
func retry(ctx context.Context, policy RetryPolicy, observer ports.RetryObserver, action func(attempt int) error) error {
	policy = policy.normalized()
	interval := policy.InitialInterval

	var err error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err = action(attempt)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) || attempt == policy.MaxAttempts {
			break
		}

		if observer != nil {
			observer(attempt, interval, err)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return cancelled(ctx.Err())
		case <-timer.C:
		}

		interval = time.Duration(float64(interval) * policy.Multiplier)
		if policy.MaxInterval > 0 && interval > policy.MaxInterval {
			interval = policy.MaxInterval
		}
	}

	return unwrapPermanent(err)
}

func unwrapPermanent(err error) error {
	var p *permanentError
	if errors.As(err, &p) {
		return p.err
	}
	return err
}

func cancelled(cause error) error {
	return app.NewError(app.ErrCodeCancelled, "download cancelled", cause, nil)
}
