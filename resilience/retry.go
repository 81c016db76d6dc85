package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/kbukum/meshnode/validation"
)

// Policy bounds how often and how fast an operation is retried. The n-th
// wait is InitialBackoff * Multiplier^(n-1), capped at MaxBackoff and
// spread by ±Jitter.
type Policy struct {
	Attempts       int           `yaml:"attempts" mapstructure:"attempts" validate:"gte=1"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff" validate:"gt=0"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff" validate:"gtefield=InitialBackoff"`
	Multiplier     float64       `yaml:"multiplier" mapstructure:"multiplier" validate:"gte=1"`
	Jitter         float64       `yaml:"jitter" mapstructure:"jitter" validate:"gte=0,lte=1"`
}

// ApplyDefaults fills zero fields: 3 attempts, 100ms doubling to 2s, 10% jitter.
func (p *Policy) ApplyDefaults() {
	if p.Attempts == 0 {
		p.Attempts = 3
	}
	if p.InitialBackoff == 0 {
		p.InitialBackoff = 100 * time.Millisecond
	}
	if p.MaxBackoff == 0 {
		p.MaxBackoff = max(2*time.Second, p.InitialBackoff)
	}
	if p.Multiplier == 0 {
		p.Multiplier = 2
	}
}

func (p *Policy) Validate() error {
	return validation.Validate(p)
}

// Attempt is passed to the operation; Number starts at 1.
type Attempt struct {
	Number int
	Last   bool
}

type options struct {
	retryable func(error) bool
	notify    func(attempt int, err error, wait time.Duration)
}

// Option tunes a single Do call.
type Option func(*options)

// When limits retries to errors for which retryable returns true. Without
// it every error except the context's own is retried.
func When(retryable func(error) bool) Option {
	return func(o *options) { o.retryable = retryable }
}

// Notify is called before each wait with the attempt that just failed.
func Notify(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(o *options) { o.notify = fn }
}

// Do runs op until it succeeds, returns an error When rejects, the policy's
// attempts are spent or ctx ends. The error is op's last one, or ctx.Err()
// when ctx ended first.
func Do[T any](ctx context.Context, p Policy, op func(context.Context, Attempt) (T, error), opts ...Option) (T, error) {
	p.ApplyDefaults()
	o := options{retryable: func(error) bool { return true }}
	for _, opt := range opts {
		opt(&o)
	}

	n := 0
	run := func() (T, error) {
		n++
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, backoff.Permanent(err)
		}
		v, err := op(ctx, Attempt{Number: n, Last: n >= p.Attempts})
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !o.retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(p.Attempts)),
		backoff.WithMaxElapsedTime(0),
	}
	if o.notify != nil {
		retryOpts = append(retryOpts, backoff.WithNotify(func(err error, wait time.Duration) {
			o.notify(n, err, wait)
		}))
	}
	return backoff.Retry(ctx, run, retryOpts...)
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialBackoff,
		RandomizationFactor: p.Jitter,
		Multiplier:          p.Multiplier,
		MaxInterval:         p.MaxBackoff,
	}
	b.Reset()
	return b
}
