// Package resilience provides the fault-handling primitives used when calling
// external speech-to-text backends.
//
//   - Retry: runs an operation up to a fixed number of attempts with optional
//     exponential backoff, reporting the attempt number to the operation.
//   - Timeout: bounds a single call and stops waiting when the deadline passes,
//     even if the callee ignores its context.
//   - Bulkhead: caps the number of concurrent operations.
//
// They compose naturally:
//
//	text, err := resilience.Retry(ctx, resilience.RetryConfig{MaxAttempts: 2},
//	    func(ctx context.Context, attempt int) (string, error) {
//	        return resilience.Timeout(ctx, 30*time.Second, call)
//	    })
package resilience
