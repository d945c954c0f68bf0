package workerpool

import "context"

// Do submits fn to the pool and blocks until it completes or ctx is
// canceled, returning fn's result. Used by the master's login path to run
// argon2id verification off the event loop without losing the caller's
// request/response correlation.
func Do[T any](ctx context.Context, p *Pool, fn func() T) (T, error) {
	result := make(chan T, 1)
	p.Submit(func(context.Context) {
		result <- fn()
	})
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case v := <-result:
		return v, nil
	}
}
