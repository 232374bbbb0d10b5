package scraper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"liscraper/pkg/account"
	"liscraper/pkg/auth"
	"liscraper/pkg/config"
	errs "liscraper/pkg/errors"
	"liscraper/pkg/logger"
	"liscraper/pkg/models"
	"liscraper/pkg/pacing"
	"liscraper/pkg/storage"
)

// nopUsageStore satisfies account.UsageStore without a database.
type nopUsageStore struct{}

func (nopUsageStore) GetUsage(ctx context.Context, email string, day time.Time) (*models.UsageRecord, error) {
	return nil, nil
}

func (nopUsageStore) UpsertUsage(ctx context.Context, email string, day time.Time, incrementBy int, flagged *bool) error {
	return nil
}

// fakeSession scripts one account's behavior for a test.
type fakeSession struct {
	email    string
	loginErr error
	fetchErr error
	profile  *models.Profile
	pdf      []byte
	pdfErr   error
	closed   bool
}

func (s *fakeSession) Login(ctx context.Context) error { return s.loginErr }

func (s *fakeSession) FetchProfile(ctx context.Context, profileURL string) (*models.Profile, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	if s.profile != nil {
		return s.profile, nil
	}
	return &models.Profile{Name: "Scraped Name", Headline: "Engineer"}, nil
}

func (s *fakeSession) SnapshotPDF(ctx context.Context) ([]byte, error) {
	if s.pdfErr != nil {
		return nil, s.pdfErr
	}
	if s.pdf != nil {
		return s.pdf, nil
	}
	return []byte("%PDF-1.4"), nil
}

func (s *fakeSession) AccountEmail() string { return s.email }
func (s *fakeSession) Close() error         { s.closed = true; return nil }

// sessionScript builds sessions from per-account templates and records how
// many were opened for each account.
type sessionScript struct {
	mu       sync.Mutex
	behavior map[string]fakeSession
	opened   map[string]int
	sessions []*fakeSession
}

func newSessionScript() *sessionScript {
	return &sessionScript{
		behavior: make(map[string]fakeSession),
		opened:   make(map[string]int),
	}
}

func (sc *sessionScript) set(email string, tpl fakeSession) {
	sc.behavior[email] = tpl
}

func (sc *sessionScript) factory(email, password string) (Session, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.opened[email]++
	tpl := sc.behavior[email]
	tpl.email = email
	s := &tpl
	sc.sessions = append(sc.sessions, s)
	return s, nil
}

// fakePersistence is an in-memory Persistence mirroring the store contract.
type fakePersistence struct {
	mu       sync.Mutex
	subjects map[int64]*models.Subject
	queue    []*models.QueueItem
	logs     []*models.ScrapeLogEntry
	jobs     map[int64][]models.JobEntry
	edus     map[int64][]models.EducationEntry
	nextQID  int64
	dequeues int

	markCompleteErr error
	markFailedErr   error
}

func newFakePersistence() *fakePersistence {
	return &fakePersistence{
		subjects: make(map[int64]*models.Subject),
		jobs:     make(map[int64][]models.JobEntry),
		edus:     make(map[int64][]models.EducationEntry),
	}
}

func (p *fakePersistence) addSubject(s *models.Subject) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects[s.ID] = s
}

func (p *fakePersistence) enqueue(subjectID int64, priority int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextQID++
	p.queue = append(p.queue, &models.QueueItem{
		ID:        p.nextQID,
		SubjectID: subjectID,
		Priority:  priority,
		Status:    models.QueueStatusPending,
		CreatedAt: time.Now().Add(time.Duration(p.nextQID) * time.Millisecond),
	})
}

func (p *fakePersistence) GetSubject(ctx context.Context, id int64) (*models.Subject, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.subjects[id]
	if !ok {
		return nil, fmt.Errorf("subject %d not found", id)
	}
	cp := *s
	return &cp, nil
}

func (p *fakePersistence) GetSubjectsNeedingUpdate(ctx context.Context, threshold time.Duration, cohort string, limit int) ([]*models.Subject, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	var out []*models.Subject
	for _, s := range p.subjects {
		if cohort != "" && s.Cohort != cohort {
			continue
		}
		if !NeedsUpdate(s, threshold, now) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastScrapedAt, out[j].LastScrapedAt
		switch {
		case a == nil && b == nil:
			return out[i].ID < out[j].ID
		case a == nil:
			return true
		case b == nil:
			return false
		case !a.Equal(*b):
			return a.Before(*b)
		default:
			return out[i].ID < out[j].ID
		}
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (p *fakePersistence) UpdateSubjectFields(ctx context.Context, id int64, upd models.SubjectUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.subjects[id]
	if !ok {
		return fmt.Errorf("subject %d not found", id)
	}
	if upd.Name != nil {
		s.Name = *upd.Name
	}
	if upd.Headline != nil {
		s.Headline = *upd.Headline
	}
	if upd.Location != nil {
		s.Location = *upd.Location
	}
	if upd.CurrentCompany != nil {
		s.CurrentCompany = *upd.CurrentCompany
	}
	if upd.CurrentTitle != nil {
		s.CurrentTitle = *upd.CurrentTitle
	}
	if upd.ContactEmail != nil {
		s.ContactEmail = *upd.ContactEmail
	}
	if upd.PDFURL != nil {
		s.PDFURL = *upd.PDFURL
	}
	if upd.LastScrapedAt != nil {
		t := *upd.LastScrapedAt
		s.LastScrapedAt = &t
	}
	return nil
}

func (p *fakePersistence) ReplaceJobHistory(ctx context.Context, subjectID int64, entries []models.JobEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs[subjectID] = entries
	return nil
}

func (p *fakePersistence) ReplaceEducationHistory(ctx context.Context, subjectID int64, entries []models.EducationEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.edus[subjectID] = entries
	return nil
}

func (p *fakePersistence) AppendScrapeLog(ctx context.Context, entry *models.ScrapeLogEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *entry
	cp.CreatedAt = time.Now()
	p.logs = append(p.logs, &cp)
	return nil
}

func (p *fakePersistence) DequeueNext(ctx context.Context) (*models.QueueItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dequeues++
	var best *models.QueueItem
	for _, item := range p.queue {
		if item.Status != models.QueueStatusPending {
			continue
		}
		if best == nil || item.Priority > best.Priority ||
			(item.Priority == best.Priority && item.CreatedAt.Before(best.CreatedAt)) {
			best = item
		}
	}
	if best == nil {
		return nil, errs.ErrQueueEmpty
	}
	cp := *best
	return &cp, nil
}

func (p *fakePersistence) setQueueStatus(id int64, status string, bumpAttempts bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, item := range p.queue {
		if item.ID == id {
			item.Status = status
			if bumpAttempts {
				item.Attempts++
			}
			return nil
		}
	}
	return fmt.Errorf("queue item %d not found", id)
}

func (p *fakePersistence) MarkInProgress(ctx context.Context, id int64) error {
	return p.setQueueStatus(id, models.QueueStatusInProgress, true)
}

func (p *fakePersistence) MarkComplete(ctx context.Context, id int64) error {
	if p.markCompleteErr != nil {
		return p.markCompleteErr
	}
	return p.setQueueStatus(id, models.QueueStatusCompleted, false)
}

func (p *fakePersistence) MarkFailed(ctx context.Context, id int64) error {
	if p.markFailedErr != nil {
		return p.markFailedErr
	}
	return p.setQueueStatus(id, models.QueueStatusFailed, false)
}

func (p *fakePersistence) logsFor(subjectID int64) []*models.ScrapeLogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*models.ScrapeLogEntry
	for _, l := range p.logs {
		if l.SubjectID == subjectID {
			out = append(out, l)
		}
	}
	return out
}

func (p *fakePersistence) queueStatuses() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]int)
	for _, item := range p.queue {
		out[item.Status]++
	}
	return out
}

type fakePDFStore struct {
	mu      sync.Mutex
	uploads int
	err     error
}

func (f *fakePDFStore) UploadPDF(ctx context.Context, externalID string, pdf []byte, takenAt time.Time) (*storage.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.uploads++
	key := fmt.Sprintf("linkedin_profiles/%s_%s.pdf", externalID, takenAt.UTC().Format("20060102_150405"))
	return &storage.UploadResult{Key: key, URL: "s3://test/" + key, SizeBytes: int64(len(pdf))}, nil
}

// fakeController replays a fixed sequence of states, then repeats the last.
// A non-nil err is returned from every poll instead.
type fakeController struct {
	mu     sync.Mutex
	states []struct{ paused, stopped bool }
	calls  int
	err    error
}

func (c *fakeController) State(ctx context.Context) (bool, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return false, false, c.err
	}
	i := c.calls - 1
	if i >= len(c.states) {
		i = len(c.states) - 1
	}
	st := c.states[i]
	return st.paused, st.stopped, nil
}

func newTestPool(t *testing.T, limit int, emails ...string) *account.Manager {
	t.Helper()
	creds := make([]auth.Credential, 0, len(emails))
	for _, e := range emails {
		creds = append(creds, auth.Credential{Email: e, Password: "pw"})
	}
	pool, err := account.NewManager(creds, limit, nopUsageStore{})
	if err != nil {
		t.Fatal(err)
	}
	return pool
}

func newTestOrchestrator(t *testing.T, pool *account.Manager, store Persistence, pdfs PDFStore, ctrl Controller, factory SessionFactory) *Orchestrator {
	t.Helper()
	cfg := config.DefaultConfig()
	o := New(cfg, pool, store, pdfs, ctrl, factory, pacing.None())
	o.pausePoll = time.Millisecond
	return o
}

func subjectWithURL(id int64, externalID string) *models.Subject {
	return &models.Subject{
		ID:         id,
		ExternalID: externalID,
		ProfileURL: fmt.Sprintf("https://www.linkedin.com/in/subject-%d", id),
	}
}

func TestThresholdRunScrapesStaleSubjects(t *testing.T) {
	store := newFakePersistence()
	store.addSubject(subjectWithURL(1, "ext-1"))
	store.addSubject(subjectWithURL(2, "ext-2"))

	script := newSessionScript()
	pool := newTestPool(t, 10, "a1@example.com")
	o := newTestOrchestrator(t, pool, store, nil, nil, script.factory)

	stats, err := o.RunThresholdBased(context.Background(), RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Processed != 2 || stats.Successful != 2 {
		t.Errorf("processed=%d successful=%d, want 2/2", stats.Processed, stats.Successful)
	}

	for _, id := range []int64{1, 2} {
		s, _ := store.GetSubject(context.Background(), id)
		if s.LastScrapedAt == nil {
			t.Errorf("subject %d: last_scraped_at not stamped", id)
		}
		if s.Name != "Scraped Name" {
			t.Errorf("subject %d: scraped fields not merged, name=%q", id, s.Name)
		}
		logs := store.logsFor(id)
		if len(logs) != 1 || logs[0].Status != models.ScrapeStatusSuccess {
			t.Errorf("subject %d: want one success log, got %+v", id, logs)
		}
		if logs[0].AccountEmail != "a1@example.com" {
			t.Errorf("subject %d: log account = %q", id, logs[0].AccountEmail)
		}
	}
}

func TestThresholdRunSkipsFreshSubjectsUnlessForced(t *testing.T) {
	recent := time.Now().Add(-time.Hour)
	fresh := subjectWithURL(1, "ext-1")
	fresh.LastScrapedAt = &recent
	store := newFakePersistence()
	store.addSubject(fresh)

	script := newSessionScript()
	pool := newTestPool(t, 10, "a1@example.com")
	o := newTestOrchestrator(t, pool, store, nil, nil, script.factory)

	stats, err := o.RunThresholdBased(context.Background(), RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Processed != 0 {
		t.Errorf("fresh subject selected without force: processed=%d", stats.Processed)
	}

	stats, err = o.RunThresholdBased(context.Background(), RunOptions{ForceUpdate: true})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Successful != 1 {
		t.Errorf("forced run: successful=%d, want 1", stats.Successful)
	}
}

func TestQueueRunDrainsByPriorityThenAge(t *testing.T) {
	store := newFakePersistence()
	for id := int64(1); id <= 3; id++ {
		store.addSubject(subjectWithURL(id, fmt.Sprintf("ext-%d", id)))
	}
	store.enqueue(1, 0)
	store.enqueue(2, 5)
	store.enqueue(3, 0)

	var order []int64
	script := newSessionScript()
	pool := newTestPool(t, 10, "a1@example.com")
	o := newTestOrchestrator(t, pool, store, nil, nil, func(email, password string) (Session, error) {
		return script.factory(email, password)
	})

	// Record processing order through the log rows.
	stats, err := o.RunQueueBased(context.Background(), RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Successful != 3 {
		t.Fatalf("successful=%d, want 3", stats.Successful)
	}
	store.mu.Lock()
	for _, l := range store.logs {
		order = append(order, l.SubjectID)
	}
	store.mu.Unlock()
	want := []int64{2, 1, 3}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("processing order %v, want %v", order, want)
		}
	}
	if got := store.queueStatuses(); got[models.QueueStatusCompleted] != 3 {
		t.Errorf("queue statuses %v, want 3 completed", got)
	}
}

func TestQueueRunSkipsFreshSubjectWithoutBurningAccount(t *testing.T) {
	recent := time.Now().Add(-time.Hour)
	fresh := subjectWithURL(1, "ext-1")
	fresh.LastScrapedAt = &recent
	store := newFakePersistence()
	store.addSubject(fresh)
	store.enqueue(1, 0)

	script := newSessionScript()
	pool := newTestPool(t, 10, "a1@example.com")
	o := newTestOrchestrator(t, pool, store, nil, nil, script.factory)

	stats, err := o.RunQueueBased(context.Background(), RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Skipped != 1 || stats.Successful != 0 {
		t.Errorf("skipped=%d successful=%d, want 1/0", stats.Skipped, stats.Successful)
	}
	if script.opened["a1@example.com"] != 0 {
		t.Error("session opened for a skipped subject")
	}
	if got := store.queueStatuses(); got[models.QueueStatusCompleted] != 1 {
		t.Errorf("skipped item not marked completed: %v", got)
	}
	if logs := store.logsFor(1); len(logs) != 0 {
		t.Errorf("skip wrote %d log rows", len(logs))
	}
}

func TestSubjectWithoutIdentifierSkippedSilently(t *testing.T) {
	store := newFakePersistence()
	store.addSubject(&models.Subject{ID: 1, ExternalID: "ext-1"}) // no URL, no profile ID

	script := newSessionScript()
	pool := newTestPool(t, 10, "a1@example.com")
	o := newTestOrchestrator(t, pool, store, nil, nil, script.factory)

	stats, err := o.RunThresholdBased(context.Background(), RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Skipped != 1 {
		t.Errorf("skipped=%d, want 1", stats.Skipped)
	}
	if len(store.logsFor(1)) != 0 {
		t.Error("identifier-less subject produced a log row")
	}
	if script.opened["a1@example.com"] != 0 {
		t.Error("session opened for identifier-less subject")
	}
}

func TestCheckpointFlagsAccountAndRotates(t *testing.T) {
	store := newFakePersistence()
	store.addSubject(subjectWithURL(1, "ext-1"))

	script := newSessionScript()
	script.set("a1@example.com", fakeSession{loginErr: errs.Checkpoint("login redirected to security checkpoint")})
	pool := newTestPool(t, 10, "a1@example.com", "a2@example.com")
	o := newTestOrchestrator(t, pool, store, nil, nil, script.factory)

	stats, err := o.RunThresholdBased(context.Background(), RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Successful != 1 {
		t.Fatalf("successful=%d, want 1", stats.Successful)
	}

	var flagged bool
	for _, snap := range pool.UsageStats() {
		if snap.Email == "a1@example.com" {
			flagged = snap.Flagged
		}
	}
	if !flagged {
		t.Error("checkpointed account not flagged")
	}
	logs := store.logsFor(1)
	if len(logs) != 1 || logs[0].AccountEmail != "a2@example.com" {
		t.Errorf("want one success log from a2, got %+v", logs)
	}
}

func TestLoginFailureRotatesWithoutFlagging(t *testing.T) {
	store := newFakePersistence()
	store.addSubject(subjectWithURL(1, "ext-1"))

	script := newSessionScript()
	script.set("a1@example.com", fakeSession{loginErr: errs.Login("credentials rejected")})
	pool := newTestPool(t, 10, "a1@example.com", "a2@example.com")
	o := newTestOrchestrator(t, pool, store, nil, nil, script.factory)

	stats, err := o.RunThresholdBased(context.Background(), RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Successful != 1 {
		t.Fatalf("successful=%d, want 1", stats.Successful)
	}

	for _, snap := range pool.UsageStats() {
		if snap.Email == "a1@example.com" {
			if snap.Flagged {
				t.Error("login failure must not flag the account")
			}
			if snap.UsedToday != 0 {
				t.Errorf("login failure charged quota: used=%d", snap.UsedToday)
			}
		}
	}
}

func TestTransientFailureFailsSubjectButNotBatch(t *testing.T) {
	store := newFakePersistence()
	store.addSubject(subjectWithURL(1, "ext-1"))
	store.addSubject(subjectWithURL(2, "ext-2"))

	fetchErr := errs.Transient("profile navigation retries exhausted", errors.New("timeout"))
	script := newSessionScript()
	script.set("a1@example.com", fakeSession{fetchErr: fetchErr})
	pool := newTestPool(t, 10, "a1@example.com")
	o := newTestOrchestrator(t, pool, store, nil, nil, script.factory)

	stats, err := o.RunThresholdBased(context.Background(), RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Failed != 2 {
		t.Errorf("failed=%d, want 2 (every subject hits the same broken account)", stats.Failed)
	}
	if stats.Processed != 2 {
		t.Errorf("batch did not continue past the failed subject: processed=%d", stats.Processed)
	}

	logs := store.logsFor(1)
	if len(logs) != 1 || logs[0].Status != models.ScrapeStatusFailed {
		t.Fatalf("want one failed log, got %+v", logs)
	}
	if logs[0].AccountEmail != "a1@example.com" {
		t.Errorf("failed log missing account: %q", logs[0].AccountEmail)
	}

	for _, snap := range pool.UsageStats() {
		if snap.Flagged || snap.UsedToday != 0 {
			t.Errorf("transient failure must not flag or charge: %+v", snap)
		}
	}
}

func TestPoolExhaustionAcrossRun(t *testing.T) {
	// Three accounts with a daily limit of two give six scrapes of capacity;
	// the seventh subject must fail with the exhaustion log.
	store := newFakePersistence()
	for id := int64(1); id <= 7; id++ {
		store.addSubject(subjectWithURL(id, fmt.Sprintf("ext-%d", id)))
	}

	script := newSessionScript()
	pool := newTestPool(t, 2, "a1@example.com", "a2@example.com", "a3@example.com")
	o := newTestOrchestrator(t, pool, store, nil, nil, script.factory)

	stats, err := o.RunThresholdBased(context.Background(), RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Successful != 6 || stats.Failed != 1 {
		t.Fatalf("successful=%d failed=%d, want 6/1", stats.Successful, stats.Failed)
	}

	var exhausted int
	store.mu.Lock()
	for _, l := range store.logs {
		if l.Status == models.ScrapeStatusFailed {
			if !strings.Contains(l.ErrorMessage, "all accounts exhausted") {
				t.Errorf("failed log message = %q", l.ErrorMessage)
			}
			exhausted++
		}
	}
	store.mu.Unlock()
	if exhausted != 1 {
		t.Errorf("exhaustion logs = %d, want 1", exhausted)
	}

	// Usage spreads evenly across the pool.
	for _, snap := range pool.UsageStats() {
		if snap.UsedToday != 2 {
			t.Errorf("%s used %d, want 2", snap.Email, snap.UsedToday)
		}
	}
}

func TestPDFUploadIsBestEffort(t *testing.T) {
	store := newFakePersistence()
	store.addSubject(subjectWithURL(1, "ext-1"))
	pdfs := &fakePDFStore{err: errs.New(errs.KindStorage, "bucket unreachable")}

	script := newSessionScript()
	pool := newTestPool(t, 10, "a1@example.com")
	o := newTestOrchestrator(t, pool, store, pdfs, nil, script.factory)
	tl := logger.NewTestLogger()
	o.log = tl

	stats, err := o.RunThresholdBased(context.Background(), RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Successful != 1 {
		t.Fatalf("upload failure rolled back the scrape: successful=%d", stats.Successful)
	}
	if stats.PDFsUploaded != 0 {
		t.Errorf("pdfs uploaded = %d, want 0", stats.PDFsUploaded)
	}
	logs := store.logsFor(1)
	if len(logs) != 1 || logs[0].Status != models.ScrapeStatusSuccess {
		t.Fatalf("want success log, got %+v", logs)
	}
	if logs[0].PDFStored {
		t.Error("pdf_stored true despite failed upload")
	}

	// The failure surfaces as a warning, not an error.
	if !tl.HasMessage("PDF upload failed") {
		t.Errorf("upload failure not logged, got:\n%s", tl.String())
	}
	var warned bool
	for _, msg := range tl.GetMessagesByLevel("WARN") {
		if msg.Message == "PDF upload failed" {
			warned = true
		}
	}
	if !warned {
		t.Error("upload failure logged above warning level")
	}
}

func TestPDFUploadRecordsLocation(t *testing.T) {
	store := newFakePersistence()
	store.addSubject(subjectWithURL(1, "ext-1"))
	pdfs := &fakePDFStore{}

	script := newSessionScript()
	pool := newTestPool(t, 10, "a1@example.com")
	o := newTestOrchestrator(t, pool, store, pdfs, nil, script.factory)

	stats, err := o.RunThresholdBased(context.Background(), RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.PDFsUploaded != 1 || pdfs.uploads != 1 {
		t.Fatalf("pdfs uploaded stats=%d store=%d, want 1/1", stats.PDFsUploaded, pdfs.uploads)
	}

	s, _ := store.GetSubject(context.Background(), 1)
	if !strings.Contains(s.PDFURL, "linkedin_profiles/ext-1_") {
		t.Errorf("pdf url not recorded: %q", s.PDFURL)
	}
	logs := store.logsFor(1)
	if len(logs) != 1 || !logs[0].PDFStored {
		t.Errorf("success log should carry pdf_stored, got %+v", logs)
	}
}

func TestStopHaltsBetweenSubjectsLeavingWorkQueued(t *testing.T) {
	store := newFakePersistence()
	for id := int64(1); id <= 3; id++ {
		store.addSubject(subjectWithURL(id, fmt.Sprintf("ext-%d", id)))
		store.enqueue(id, 0)
	}

	ctrl := &fakeController{states: []struct{ paused, stopped bool }{
		{false, false},
		{false, true},
	}}
	script := newSessionScript()
	pool := newTestPool(t, 10, "a1@example.com")
	o := newTestOrchestrator(t, pool, store, nil, ctrl, script.factory)

	stats, err := o.RunQueueBased(context.Background(), RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Processed != 1 {
		t.Errorf("processed=%d, want 1 before the stop", stats.Processed)
	}
	got := store.queueStatuses()
	if got[models.QueueStatusPending] != 2 {
		t.Errorf("queue statuses %v, want 2 still pending", got)
	}
}

func TestPauseWaitsUntilResumed(t *testing.T) {
	store := newFakePersistence()
	store.addSubject(subjectWithURL(1, "ext-1"))
	store.enqueue(1, 0)

	ctrl := &fakeController{states: []struct{ paused, stopped bool }{
		{true, false},
		{true, false},
		{false, false},
	}}
	script := newSessionScript()
	pool := newTestPool(t, 10, "a1@example.com")
	o := newTestOrchestrator(t, pool, store, nil, ctrl, script.factory)

	stats, err := o.RunQueueBased(context.Background(), RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Successful != 1 {
		t.Errorf("successful=%d, want 1 after resume", stats.Successful)
	}
	if ctrl.calls < 3 {
		t.Errorf("control polled %d times, want at least 3", ctrl.calls)
	}
}

func TestMaxProfilesCapsQueueRun(t *testing.T) {
	store := newFakePersistence()
	for id := int64(1); id <= 5; id++ {
		store.addSubject(subjectWithURL(id, fmt.Sprintf("ext-%d", id)))
		store.enqueue(id, 0)
	}

	script := newSessionScript()
	pool := newTestPool(t, 10, "a1@example.com")
	o := newTestOrchestrator(t, pool, store, nil, nil, script.factory)

	stats, err := o.RunQueueBased(context.Background(), RunOptions{MaxProfiles: 2})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Processed != 2 {
		t.Errorf("processed=%d, want 2", stats.Processed)
	}
	if got := store.queueStatuses(); got[models.QueueStatusPending] != 3 {
		t.Errorf("queue statuses %v, want 3 pending", got)
	}
}

func TestQueueItemWithMissingSubjectFails(t *testing.T) {
	store := newFakePersistence()
	store.enqueue(99, 0)

	script := newSessionScript()
	pool := newTestPool(t, 10, "a1@example.com")
	o := newTestOrchestrator(t, pool, store, nil, nil, script.factory)

	stats, err := o.RunQueueBased(context.Background(), RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Failed != 1 {
		t.Errorf("failed=%d, want 1", stats.Failed)
	}
	if got := store.queueStatuses(); got[models.QueueStatusFailed] != 1 {
		t.Errorf("queue statuses %v, want 1 failed", got)
	}
}

func TestQueueRunAbortsWhenItemCannotBeFinished(t *testing.T) {
	store := newFakePersistence()
	store.addSubject(subjectWithURL(1, "ext-1"))
	store.enqueue(1, 0)
	store.markCompleteErr = errors.New("row vanished")

	script := newSessionScript()
	pool := newTestPool(t, 10, "a1@example.com")
	o := newTestOrchestrator(t, pool, store, nil, nil, script.factory)

	stats, err := o.RunQueueBased(context.Background(), RunOptions{})
	if err == nil {
		t.Fatal("expected error when the completed transition does not stick")
	}
	// The still-pending item must not be picked up again within the run.
	if store.dequeues != 1 {
		t.Errorf("item dequeued %d times, want 1", store.dequeues)
	}
	if stats.Processed != 1 || stats.Successful != 1 {
		t.Errorf("processed=%d successful=%d, want 1/1", stats.Processed, stats.Successful)
	}
}

func TestQueueRunAbortsWhenSkipCannotBeRecorded(t *testing.T) {
	recent := time.Now().Add(-time.Hour)
	fresh := subjectWithURL(1, "ext-1")
	fresh.LastScrapedAt = &recent
	store := newFakePersistence()
	store.addSubject(fresh)
	store.enqueue(1, 0)
	store.markCompleteErr = errors.New("row vanished")

	script := newSessionScript()
	pool := newTestPool(t, 10, "a1@example.com")
	o := newTestOrchestrator(t, pool, store, nil, nil, script.factory)

	stats, err := o.RunQueueBased(context.Background(), RunOptions{MaxProfiles: 5})
	if err == nil {
		t.Fatal("expected error when the skip transition does not stick")
	}
	if store.dequeues != 1 {
		t.Errorf("fresh item dequeued %d times, want 1", store.dequeues)
	}
	if stats.Processed != 0 || stats.Skipped != 0 {
		t.Errorf("aborted skip still counted: processed=%d skipped=%d", stats.Processed, stats.Skipped)
	}
	if script.opened["a1@example.com"] != 0 {
		t.Error("session opened for a fresh subject")
	}
}

func TestControlSwitchErrorsKeepRunGoing(t *testing.T) {
	store := newFakePersistence()
	store.addSubject(subjectWithURL(1, "ext-1"))
	store.enqueue(1, 0)

	ctrl := &fakeController{err: errors.New("connection refused")}
	script := newSessionScript()
	pool := newTestPool(t, 10, "a1@example.com")
	o := newTestOrchestrator(t, pool, store, nil, ctrl, script.factory)
	tl := logger.NewTestLogger()
	o.log = tl

	stats, err := o.RunQueueBased(context.Background(), RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Successful != 1 {
		t.Errorf("successful=%d, want 1 despite the unreachable control switch", stats.Successful)
	}
	var warned bool
	for _, msg := range tl.GetMessagesByLevel("WARN") {
		if msg.Message == "Control switch unreachable, continuing" {
			warned = true
		}
	}
	if !warned {
		t.Errorf("control failure not warned about, got:\n%s", tl.String())
	}
}

func TestSessionsClosedOnRotation(t *testing.T) {
	store := newFakePersistence()
	store.addSubject(subjectWithURL(1, "ext-1"))

	script := newSessionScript()
	script.set("a1@example.com", fakeSession{loginErr: errs.Login("credentials rejected")})
	pool := newTestPool(t, 10, "a1@example.com", "a2@example.com")
	o := newTestOrchestrator(t, pool, store, nil, nil, script.factory)

	if _, err := o.RunThresholdBased(context.Background(), RunOptions{}); err != nil {
		t.Fatal(err)
	}
	for _, s := range script.sessions {
		if !s.closed {
			t.Errorf("session for %s left open", s.email)
		}
	}
}

func TestNeedsUpdate(t *testing.T) {
	now := time.Now()
	old := now.Add(-200 * 24 * time.Hour)
	recent := now.Add(-time.Hour)
	threshold := 180 * 24 * time.Hour

	tests := []struct {
		name      string
		last      *time.Time
		threshold time.Duration
		want      bool
	}{
		{"never scraped", nil, threshold, true},
		{"stale", &old, threshold, true},
		{"fresh", &recent, threshold, false},
		{"zero threshold forces", &recent, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &models.Subject{LastScrapedAt: tt.last}
			if got := NeedsUpdate(s, tt.threshold, now); got != tt.want {
				t.Errorf("NeedsUpdate() = %v, want %v", got, tt.want)
			}
		})
	}
}
