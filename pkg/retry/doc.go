// Package retry provides exponential backoff and retry logic for handling
// transient failures, particularly flaky page navigations in the browser
// session.
//
// Features:
//   - Multiple backoff strategies (exponential, linear, constant)
//   - Jitter to avoid thundering herd problems
//   - Context support for cancellation
//   - Configurable retry predicates
//   - Integration with the scraper's tagged error kinds
//
// Basic usage:
//
//	// Simple retry with defaults
//	err := retry.Do(func() error {
//		return session.Navigate(profileURL)
//	}, nil)
//
//	// Custom configuration
//	cfg := &retry.Config{
//		MaxAttempts: 5,
//		Backoff: &retry.ExponentialBackoff{
//			BaseDelay:    2 * time.Second,
//			MaxDelay:     30 * time.Second,
//			Multiplier:   2.0,
//			JitterFactor: 0.1,
//		},
//		RetryIf: retry.DefaultRetryIf,
//		Logger:  logger.GetLogger(),
//	}
//	err := retry.Do(operation, cfg)
//
// Error Handling:
//
// The default retry predicate only retries transient errors. Checkpoint,
// login, and fatal errors surface immediately so the orchestrator can rotate
// to another account or abort the run.
package retry
