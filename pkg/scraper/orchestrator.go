// Package scraper orchestrates profile scraping runs: it walks the queue or
// the staleness threshold, rotates accounts, and persists results.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"liscraper/internal/telemetry"
	"liscraper/pkg/account"
	"liscraper/pkg/config"
	errs "liscraper/pkg/errors"
	"liscraper/pkg/logger"
	"liscraper/pkg/models"
	"liscraper/pkg/pacing"
)

// RunOptions control a single scraping run.
type RunOptions struct {
	// MaxProfiles caps how many subjects the run processes. 0 means no cap.
	MaxProfiles int
	// ForceUpdate disables the staleness filter: every selected subject is
	// scraped regardless of when it was last seen.
	ForceUpdate bool
	// Cohort restricts threshold-based selection to one cohort.
	Cohort string
}

// Stats summarizes a completed run.
type Stats struct {
	Processed    int
	Successful   int
	Failed       int
	Skipped      int
	PDFsUploaded int
	Errors       []string
	StartedAt    time.Time
	CompletedAt  time.Time
}

// Orchestrator drives scraping runs. Subjects are processed strictly one at
// a time: parallel sessions multiply the ban risk per account.
type Orchestrator struct {
	cfg      *config.Config
	pool     *account.Manager
	store    Persistence
	pdfs     PDFStore
	ctrl     Controller
	sessions SessionFactory
	pace     pacing.Sampler
	log      logger.Logger

	// pausePoll is how often the control switch is re-read while paused.
	pausePoll time.Duration
}

// New builds an orchestrator. pdfs and ctrl may be nil to disable snapshots
// and remote control respectively.
func New(cfg *config.Config, pool *account.Manager, store Persistence, pdfs PDFStore, ctrl Controller, sessions SessionFactory, pace pacing.Sampler) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		pool:      pool,
		store:     store,
		pdfs:      pdfs,
		ctrl:      ctrl,
		sessions:  sessions,
		pace:      pace,
		log:       logger.GetLogger(),
		pausePoll: 10 * time.Second,
	}
}

// outcome classifies one subject's processing result.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeSkipped
	outcomeFailed
)

// RunQueueBased drains the scraping queue until it is empty, the cap is
// reached, or a stop is requested. Remaining items stay queued.
func (o *Orchestrator) RunQueueBased(ctx context.Context, opts RunOptions) (*Stats, error) {
	stats := &Stats{StartedAt: time.Now()}
	defer func() { stats.CompletedAt = time.Now() }()

	threshold := o.updateThreshold()

	for {
		if opts.MaxProfiles > 0 && stats.Processed >= opts.MaxProfiles {
			break
		}
		stop, err := o.waitWhilePaused(ctx)
		if err != nil {
			return stats, err
		}
		if stop {
			o.log.Info("Stop requested, halting queue run")
			break
		}

		item, err := o.store.DequeueNext(ctx)
		if err != nil {
			if isQueueEmpty(err) {
				break
			}
			return stats, fmt.Errorf("dequeue: %w", err)
		}

		subject, err := o.store.GetSubject(ctx, item.SubjectID)
		if err != nil {
			o.log.WithError(err).WithField("subject_id", item.SubjectID).
				Error("Queue item references missing subject")
			stats.Processed++
			stats.Failed++
			stats.Errors = append(stats.Errors, fmt.Sprintf("subject %d: %v", item.SubjectID, err))
			if err := o.store.MarkFailed(ctx, item.ID); err != nil {
				return stats, fmt.Errorf("mark failed: %w", err)
			}
			continue
		}

		// Fresh subjects pass through the queue without burning an account.
		if !opts.ForceUpdate && !NeedsUpdate(subject, threshold, time.Now()) {
			if err := o.store.MarkComplete(ctx, item.ID); err != nil {
				return stats, fmt.Errorf("mark complete: %w", err)
			}
			stats.Processed++
			stats.Skipped++
			telemetry.ProfilesSkipped.Inc()
			continue
		}

		if err := o.store.MarkInProgress(ctx, item.ID); err != nil {
			return stats, fmt.Errorf("mark in progress: %w", err)
		}

		result := o.processSubject(ctx, subject, stats)
		stats.Processed++
		var markErr error
		switch result {
		case outcomeSuccess:
			stats.Successful++
			markErr = o.store.MarkComplete(ctx, item.ID)
		case outcomeSkipped:
			stats.Skipped++
			markErr = o.store.MarkComplete(ctx, item.ID)
		case outcomeFailed:
			stats.Failed++
			markErr = o.store.MarkFailed(ctx, item.ID)
		}
		// An item left pending here would be dequeued again next iteration.
		if markErr != nil {
			return stats, fmt.Errorf("finish queue item %d: %w", item.ID, markErr)
		}
		if result != outcomeSkipped {
			if err := o.pace.Delay(ctx); err != nil {
				return stats, err
			}
		}
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
	}

	o.logRunSummary("queue", stats)
	return stats, nil
}

// RunThresholdBased scrapes every subject whose profile is stale, oldest
// first.
func (o *Orchestrator) RunThresholdBased(ctx context.Context, opts RunOptions) (*Stats, error) {
	stats := &Stats{StartedAt: time.Now()}
	defer func() { stats.CompletedAt = time.Now() }()

	threshold := o.updateThreshold()
	if opts.ForceUpdate {
		threshold = 0
	}

	subjects, err := o.store.GetSubjectsNeedingUpdate(ctx, threshold, opts.Cohort, opts.MaxProfiles)
	if err != nil {
		return stats, fmt.Errorf("select subjects: %w", err)
	}
	o.log.WithFields(map[string]interface{}{
		"subjects": len(subjects),
		"cohort":   opts.Cohort,
	}).Info("Starting threshold run")

	for _, subject := range subjects {
		if opts.MaxProfiles > 0 && stats.Processed >= opts.MaxProfiles {
			break
		}
		stop, err := o.waitWhilePaused(ctx)
		if err != nil {
			return stats, err
		}
		if stop {
			o.log.Info("Stop requested, halting threshold run")
			break
		}

		result := o.processSubject(ctx, subject, stats)
		stats.Processed++
		switch result {
		case outcomeSuccess:
			stats.Successful++
		case outcomeSkipped:
			stats.Skipped++
		case outcomeFailed:
			stats.Failed++
		}
		logger.LogQueueProgress(stats.Processed, len(subjects))
		if result != outcomeSkipped {
			if err := o.pace.Delay(ctx); err != nil {
				return stats, err
			}
		}
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
	}

	o.logRunSummary("threshold", stats)
	return stats, nil
}

// processSubject runs the account-attempt loop for one subject. At most one
// attempt per pool member: an account that cannot serve the subject is
// rotated past, and when the whole pool has been tried the subject fails.
func (o *Orchestrator) processSubject(ctx context.Context, subject *models.Subject, stats *Stats) outcome {
	profileURL := subject.ResolvedProfileURL()
	if profileURL == "" {
		// No log row here: the scrape log records attempted scrapes only.
		o.log.WithField("subject_id", subject.ID).Debug("Subject has no profile identifier, skipping")
		telemetry.ProfilesSkipped.Inc()
		return outcomeSkipped
	}

	start := time.Now()
	log := o.log.WithFields(map[string]interface{}{
		"subject_id":  subject.ID,
		"profile_url": profileURL,
	})

	var prevEmail, rotateReason string
	for attempt := 0; attempt < o.pool.Size(); attempt++ {
		if ctx.Err() != nil {
			return outcomeFailed
		}

		acc, err := o.pool.GetNextAccount()
		if err != nil {
			log.Error("All accounts exhausted")
			o.appendLog(ctx, subject, profileURL, "", models.ScrapeStatusFailed,
				errs.ErrAllAccountsExhausted.Error(), false, start)
			telemetry.ProfilesFailed.Inc()
			stats.Errors = append(stats.Errors, fmt.Sprintf("subject %d: %v", subject.ID, err))
			return outcomeFailed
		}
		if prevEmail != "" {
			logger.LogAccountRotation(prevEmail, acc.Email, rotateReason)
		}

		result, done, reason := o.attemptWithAccount(ctx, subject, profileURL, acc, stats, start, log)
		if done {
			return result
		}
		prevEmail, rotateReason = acc.Email, reason
	}

	// Every pool member was tried and none could serve the subject.
	log.Error("All accounts exhausted")
	o.appendLog(ctx, subject, profileURL, "", models.ScrapeStatusFailed,
		errs.ErrAllAccountsExhausted.Error(), false, start)
	telemetry.ProfilesFailed.Inc()
	return outcomeFailed
}

// attemptWithAccount tries one account against one subject. done=false
// means the account could not serve (checkpoint, login failure) and the
// caller should rotate; reason labels why.
func (o *Orchestrator) attemptWithAccount(ctx context.Context, subject *models.Subject, profileURL string, acc *account.Account, stats *Stats, start time.Time, log logger.Logger) (result outcome, done bool, reason string) {
	log = log.WithField("account", acc.Email)

	session, err := o.sessions(acc.Email, acc.Password)
	if err != nil {
		log.WithError(err).Warn("Could not open session, rotating account")
		o.pool.MarkExhausted(acc.Email)
		return outcomeFailed, false, "session open failed"
	}
	defer session.Close()

	if err := session.Login(ctx); err != nil {
		switch {
		case errs.IsCheckpoint(err):
			log.Warn("Checkpoint at login, flagging account")
			logger.LogCheckpoint(acc.Email, profileURL)
			o.flagAccount(ctx, acc.Email)
			return outcomeFailed, false, "checkpoint at login"
		case errs.IsLogin(err):
			log.WithError(err).Warn("Login failed, rotating account")
			return outcomeFailed, false, "login rejected"
		default:
			if ctx.Err() != nil {
				return outcomeFailed, true, ""
			}
			log.WithError(err).Warn("Session error at login, rotating account")
			return outcomeFailed, false, "session error"
		}
	}

	profile, err := session.FetchProfile(ctx, profileURL)
	if err != nil {
		if errs.IsCheckpoint(err) {
			log.Warn("Checkpoint mid-scrape, flagging account")
			logger.LogCheckpoint(acc.Email, profileURL)
			o.flagAccount(ctx, acc.Email)
			return outcomeFailed, false, "checkpoint mid-scrape"
		}
		// Transient exhaustion or a terminal session error: this subject
		// is done for this run, the account stays in rotation.
		logger.LogScrape(profileURL, acc.Email, false, time.Since(start), err)
		o.appendLog(ctx, subject, profileURL, acc.Email, models.ScrapeStatusFailed,
			err.Error(), false, start)
		telemetry.ProfilesFailed.Inc()
		stats.Errors = append(stats.Errors, fmt.Sprintf("subject %d: %v", subject.ID, err))
		return outcomeFailed, true, ""
	}

	if err := o.applyProfile(ctx, subject, profile); err != nil {
		log.WithError(err).Error("Could not persist scraped profile")
		o.appendLog(ctx, subject, profileURL, acc.Email, models.ScrapeStatusFailed,
			err.Error(), false, start)
		stats.Errors = append(stats.Errors, fmt.Sprintf("subject %d: %v", subject.ID, err))
		return outcomeFailed, true, ""
	}

	// Only a confirmed success consumes account budget.
	if err := o.pool.IncrementUsage(ctx, acc.Email); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("usage %s: %v", acc.Email, err))
	}

	pdfStored := o.snapshotPDF(ctx, session, subject, stats, log)

	o.appendLog(ctx, subject, profileURL, acc.Email, models.ScrapeStatusSuccess, "", pdfStored, start)
	telemetry.ProfilesScraped.Inc()
	logger.LogScrape(profileURL, acc.Email, true, time.Since(start), nil)
	return outcomeSuccess, true, ""
}

// applyProfile merges scraped fields into the subject row and replaces the
// history collections.
func (o *Orchestrator) applyProfile(ctx context.Context, subject *models.Subject, profile *models.Profile) error {
	now := time.Now().UTC()
	upd := models.SubjectUpdate{LastScrapedAt: &now}
	if profile.Name != "" {
		upd.Name = &profile.Name
	}
	if profile.Headline != "" {
		upd.Headline = &profile.Headline
	}
	if profile.Location != "" {
		upd.Location = &profile.Location
	}
	if profile.CurrentCompany != "" {
		upd.CurrentCompany = &profile.CurrentCompany
	}
	if profile.CurrentTitle != "" {
		upd.CurrentTitle = &profile.CurrentTitle
	}
	if profile.ContactEmail != "" {
		upd.ContactEmail = &profile.ContactEmail
	}

	if err := o.store.UpdateSubjectFields(ctx, subject.ID, upd); err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	if err := o.store.ReplaceJobHistory(ctx, subject.ID, profile.JobHistory); err != nil {
		return fmt.Errorf("replace job history: %w", err)
	}
	if err := o.store.ReplaceEducationHistory(ctx, subject.ID, profile.EducationHistory); err != nil {
		return fmt.Errorf("replace education history: %w", err)
	}
	return nil
}

// snapshotPDF renders and uploads a PDF snapshot. Best-effort: failures are
// logged and never undo the scrape.
func (o *Orchestrator) snapshotPDF(ctx context.Context, session Session, subject *models.Subject, stats *Stats, log logger.Logger) bool {
	if o.pdfs == nil {
		return false
	}

	pdf, err := session.SnapshotPDF(ctx)
	if err != nil {
		log.WithError(err).Warn("PDF snapshot failed")
		return false
	}

	result, err := o.pdfs.UploadPDF(ctx, subject.ExternalID, pdf, time.Now())
	if err != nil {
		log.WithError(err).Warn("PDF upload failed")
		return false
	}

	if err := o.store.UpdateSubjectFields(ctx, subject.ID, models.SubjectUpdate{PDFURL: &result.URL}); err != nil {
		log.WithError(err).Warn("Could not record PDF location")
	}

	logger.LogPDFUpload(subject.ExternalID, result.Key, result.SizeBytes, nil)
	telemetry.PDFsUploaded.Inc()
	stats.PDFsUploaded++
	return true
}

// flagAccount removes an account from rotation after a checkpoint.
func (o *Orchestrator) flagAccount(ctx context.Context, email string) {
	telemetry.CheckpointsHit.Inc()
	telemetry.AccountsFlagged.Inc()
	if err := o.pool.MarkFlagged(ctx, email); err != nil {
		o.log.WithError(err).WithField("account", email).Warn("Could not persist account flag")
	}
}

// appendLog writes the subject's scrape-log row. Log failures must not
// change the run's outcome, so they are only warned about.
func (o *Orchestrator) appendLog(ctx context.Context, subject *models.Subject, profileURL, accountEmail, status, errMsg string, pdfStored bool, start time.Time) {
	entry := &models.ScrapeLogEntry{
		SubjectID:       subject.ID,
		ProfileURL:      profileURL,
		AccountEmail:    accountEmail,
		Status:          status,
		ErrorMessage:    errMsg,
		PDFStored:       pdfStored,
		DurationSeconds: int(time.Since(start).Seconds()),
	}
	if err := o.store.AppendScrapeLog(ctx, entry); err != nil {
		o.log.WithError(err).WithField("subject_id", subject.ID).Warn("Could not append scrape log")
	}
}

// waitWhilePaused blocks while the control switch reads paused, polling
// until resumed, stopped, or the context ends. Control errors are logged
// and treated as "keep running": a flaky Redis must not kill a batch.
func (o *Orchestrator) waitWhilePaused(ctx context.Context) (stop bool, err error) {
	if o.ctrl == nil {
		return false, ctx.Err()
	}

	for {
		paused, stopped, err := o.ctrl.State(ctx)
		if err != nil {
			o.log.WithError(err).Warn("Control switch unreachable, continuing")
			return false, ctx.Err()
		}
		if stopped {
			return true, nil
		}
		if !paused {
			return false, ctx.Err()
		}

		o.log.Info("Run paused, waiting")
		timer := time.NewTimer(o.pausePoll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
	}
}

// updateThreshold converts the configured staleness window to a duration.
func (o *Orchestrator) updateThreshold() time.Duration {
	return time.Duration(o.cfg.Scraper.UpdateThresholdDays) * 24 * time.Hour
}

func (o *Orchestrator) logRunSummary(mode string, stats *Stats) {
	o.log.WithFields(map[string]interface{}{
		"mode":       mode,
		"processed":  stats.Processed,
		"successful": stats.Successful,
		"failed":     stats.Failed,
		"skipped":    stats.Skipped,
		"pdfs":       stats.PDFsUploaded,
		"duration":   time.Since(stats.StartedAt),
	}).Info("Run finished")
}

// NeedsUpdate reports whether a subject's profile is stale. Never-scraped
// subjects always need an update; a zero threshold means everyone does.
func NeedsUpdate(subject *models.Subject, threshold time.Duration, now time.Time) bool {
	if subject.LastScrapedAt == nil {
		return true
	}
	if threshold <= 0 {
		return true
	}
	return now.Sub(*subject.LastScrapedAt) > threshold
}

// isQueueEmpty matches the shared empty-queue sentinel, which every
// Persistence implementation returns from DequeueNext when nothing is
// pending.
func isQueueEmpty(err error) bool {
	return err != nil && errors.Is(err, errs.ErrQueueEmpty)
}
