// Package resilience retries an operation under a bounded exponential
// backoff Policy.
//
//	body, err := resilience.Do(ctx, policy, func(ctx context.Context, a resilience.Attempt) ([]byte, error) {
//	    return call(ctx)
//	}, resilience.When(isTransient))
package resilience
