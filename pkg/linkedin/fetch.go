package linkedin

import (
	"context"
	"time"

	"liscraper/pkg/errors"
	"liscraper/pkg/logger"
	"liscraper/pkg/models"
	"liscraper/pkg/retry"
)

// FetchProfile navigates to a profile page and extracts its fields.
// Navigation is retried with backoff for transient failures; a checkpoint
// interstitial aborts immediately so the orchestrator can flag the account.
func (s *Session) FetchProfile(ctx context.Context, profileURL string) (*models.Profile, error) {
	op := func() error {
		if err := s.pace.Delay(ctx); err != nil {
			return err
		}
		if err := s.navigate(ctx, profileURL); err != nil {
			return err
		}
		if isCheckpointURL(s.currentURL()) {
			return errors.Checkpoint("profile page redirected to security checkpoint")
		}
		return nil
	}

	cfg := &retry.Config{
		MaxAttempts: s.cfg.NavigationMaxRetries,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay:    2 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.2,
		},
		RetryIf: retry.DefaultRetryIf,
		OnRetry: func(attempt int, err error, _ time.Duration) {
			logger.LogRetry("profile navigation", attempt, s.cfg.NavigationMaxRetries, err)
		},
		Context: ctx,
		Logger:  s.log,
	}

	if err := retry.Do(op, cfg); err != nil {
		if errors.IsCheckpoint(err) {
			return nil, err
		}
		return nil, errors.Transient("profile navigation retries exhausted", err)
	}

	// Let lazy-loaded sections settle before reading the DOM.
	if err := s.pace.DelayBetween(ctx, 2*time.Second, 5*time.Second); err != nil {
		return nil, err
	}
	if err := s.scrollThrough(ctx); err != nil {
		return nil, err
	}

	profile, err := s.extractProfile(ctx)
	if err != nil {
		return nil, err
	}

	s.log.WithField("profile_url", profileURL).Debug("Profile extracted")
	return profile, nil
}

// scrollThrough walks down the page in uneven steps so lazy sections render
// and the access pattern stays plausibly human.
func (s *Session) scrollThrough(ctx context.Context) error {
	for i := 0; i < 4; i++ {
		if _, err := s.page.Context(ctx).Eval(`() => window.scrollBy(0, window.innerHeight * 0.8)`); err != nil {
			return errors.Transient("scroll page", err)
		}
		if err := s.pace.DelayBetween(ctx, 500*time.Millisecond, 2*time.Second); err != nil {
			return err
		}
	}
	_, err := s.page.Context(ctx).Eval(`() => window.scrollTo(0, 0)`)
	if err != nil {
		return errors.Transient("scroll to top", err)
	}
	return nil
}
