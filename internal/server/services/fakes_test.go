package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"iter"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dmitrijs2005/filingapi/internal/common"
	"github.com/dmitrijs2005/filingapi/internal/dbx"
	"github.com/dmitrijs2005/filingapi/internal/logging"
	"github.com/dmitrijs2005/filingapi/internal/server/config"
	"github.com/dmitrijs2005/filingapi/internal/server/models"
	"github.com/dmitrijs2005/filingapi/internal/server/notify"
	"github.com/dmitrijs2005/filingapi/internal/server/repositories/filings"
	"github.com/dmitrijs2005/filingapi/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filingapi/internal/server/repositories/submissions"
	"github.com/dmitrijs2005/filingapi/internal/server/repositories/useractions"
	"github.com/dmitrijs2005/filingapi/internal/server/validation"
)

// -------- repositories --------

type fakeSubmissionsRepo struct {
	submissions.Repository

	mu        sync.Mutex
	rows      map[int64]*models.Submission
	updates   []models.Submission
	expired   []int64
	nextID    int64
	updateErr error
	expireErr error
}

func newFakeSubmissionsRepo() *fakeSubmissionsRepo {
	return &fakeSubmissionsRepo{rows: map[int64]*models.Submission{}}
}

func (f *fakeSubmissionsRepo) Create(ctx context.Context, filingID int64, filename string, submitterID int64) (*models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	var counter int64 = 1
	for _, s := range f.rows {
		if s.FilingID == filingID && s.Counter >= counter {
			counter = s.Counter + 1
		}
	}
	s := &models.Submission{
		ID:             f.nextID,
		Counter:        counter,
		FilingID:       filingID,
		State:          models.SubmissionUploaded,
		Filename:       filename,
		Submitter:      &models.UserAction{ID: submitterID},
		SubmissionTime: time.Now(),
	}
	f.rows[s.ID] = s
	cp := *s
	return &cp, nil
}

func (f *fakeSubmissionsRepo) put(s models.Submission) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[s.ID] = &s
	if s.ID > f.nextID {
		f.nextID = s.ID
	}
}

func (f *fakeSubmissionsRepo) Get(ctx context.Context, id int64) (*models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSubmissionsRepo) GetByCounter(ctx context.Context, filingID, counter int64) (*models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.rows {
		if s.FilingID == filingID && s.Counter == counter {
			cp := *s
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeSubmissionsRepo) GetLatest(ctx context.Context, filingID int64) (*models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.Submission
	for _, s := range f.rows {
		if s.FilingID == filingID && (latest == nil || s.Counter > latest.Counter) {
			latest = s
		}
	}
	if latest == nil {
		return nil, common.ErrorNotFound
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeSubmissionsRepo) List(ctx context.Context, filingID int64) ([]*models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Submission
	for _, s := range f.rows {
		if s.FilingID == filingID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeSubmissionsRepo) Update(ctx context.Context, s *models.Submission) (*models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if _, ok := f.rows[s.ID]; !ok {
		return nil, common.ErrorNotFound
	}
	cp := *s
	f.rows[s.ID] = &cp
	f.updates = append(f.updates, cp)
	return s, nil
}

func (f *fakeSubmissionsRepo) Expire(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expireErr != nil {
		return f.expireErr
	}
	f.expired = append(f.expired, id)
	if s, ok := f.rows[id]; ok {
		s.State = models.ValidationExpired
	}
	return nil
}

func (f *fakeSubmissionsRepo) state(id int64) models.SubmissionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id].State
}

func (f *fakeSubmissionsRepo) expiredIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.expired...)
}

func (f *fakeSubmissionsRepo) updatedStates() []models.SubmissionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.SubmissionState, 0, len(f.updates))
	for _, u := range f.updates {
		out = append(out, u.State)
	}
	return out
}

type fakeFilingsRepo struct {
	filings.Repository

	mu         sync.Mutex
	periods    []models.FilingPeriod
	filings    map[string]*models.Filing
	signatures []int64
	reopens    []int64
	tasks      []models.FilingTaskProgress
	createErr  error
}

func newFakeFilingsRepo() *fakeFilingsRepo {
	return &fakeFilingsRepo{filings: map[string]*models.Filing{}}
}

func filingKey(lei, period string) string { return lei + "/" + period }

func (f *fakeFilingsRepo) ListPeriods(ctx context.Context) ([]models.FilingPeriod, error) {
	return f.periods, nil
}

func (f *fakeFilingsRepo) GetPeriod(ctx context.Context, code string) (*models.FilingPeriod, error) {
	for _, p := range f.periods {
		if p.Code == code {
			cp := p
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeFilingsRepo) Get(ctx context.Context, lei, period string) (*models.Filing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fl, ok := f.filings[filingKey(lei, period)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *fl
	return &cp, nil
}

func (f *fakeFilingsRepo) byID(id int64) *models.Filing {
	for _, fl := range f.filings {
		if fl.ID == id {
			return fl
		}
	}
	return nil
}

func (f *fakeFilingsRepo) Create(ctx context.Context, lei, period string, creatorID int64) (*models.Filing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.filings[filingKey(lei, period)]; ok {
		return nil, common.ErrorAlreadyExists
	}
	fl := &models.Filing{
		ID:           int64(len(f.filings) + 1),
		LEI:          lei,
		FilingPeriod: period,
		State:        models.FilingOpen,
		Creator:      &models.UserAction{ID: creatorID},
	}
	f.filings[filingKey(lei, period)] = fl
	cp := *fl
	return &cp, nil
}

func (f *fakeFilingsRepo) UpdateState(ctx context.Context, filingID int64, state models.FilingState, confirmationID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fl := f.byID(filingID)
	if fl == nil {
		return common.ErrorNotFound
	}
	fl.State = state
	if confirmationID != nil {
		fl.ConfirmationID = confirmationID
	}
	return nil
}

func (f *fakeFilingsRepo) SetVoluntary(ctx context.Context, filingID int64, voluntary bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fl := f.byID(filingID); fl != nil {
		fl.IsVoluntary = &voluntary
		return nil
	}
	return common.ErrorNotFound
}

func (f *fakeFilingsRepo) SetInstitutionSnapshot(ctx context.Context, filingID int64, snapshotID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fl := f.byID(filingID); fl != nil {
		fl.InstitutionSnapshotID = &snapshotID
		return nil
	}
	return common.ErrorNotFound
}

func (f *fakeFilingsRepo) UpsertContactInfo(ctx context.Context, filingID int64, ci *models.ContactInfo) (*models.ContactInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fl := f.byID(filingID)
	if fl == nil {
		return nil, common.ErrorNotFound
	}
	cp := *ci
	cp.FilingID = filingID
	fl.ContactInfo = &cp
	return &cp, nil
}

func (f *fakeFilingsRepo) AddSignature(ctx context.Context, filingID, userActionID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signatures = append(f.signatures, userActionID)
	if fl := f.byID(filingID); fl != nil {
		fl.Signatures = append(fl.Signatures, models.UserAction{ID: userActionID, ActionType: models.ActionSign})
	}
	return nil
}

func (f *fakeFilingsRepo) AddReopen(ctx context.Context, filingID, userActionID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reopens = append(f.reopens, userActionID)
	return nil
}

func (f *fakeFilingsRepo) UpsertTask(ctx context.Context, filingID int64, task models.FilingTaskProgress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
	return nil
}

type fakeUserActionsRepo struct {
	useractions.Repository

	mu      sync.Mutex
	created []models.UserAction
	err     error
}

func (f *fakeUserActionsRepo) Create(ctx context.Context, a *models.UserAction) (*models.UserAction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	cp := *a
	cp.ID = int64(len(f.created) + 1)
	cp.Timestamp = time.Unix(1700000000, 0)
	f.created = append(f.created, cp)
	return &cp, nil
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	s *fakeSubmissionsRepo
	f *fakeFilingsRepo
	u *fakeUserActionsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		s: newFakeSubmissionsRepo(),
		f: newFakeFilingsRepo(),
		u: &fakeUserActionsRepo{},
	}
}

func (m *fakeRepoManager) Submissions(dbx.DBTX) submissions.Repository { return m.s }
func (m *fakeRepoManager) Filings(dbx.DBTX) filings.Repository         { return m.f }
func (m *fakeRepoManager) UserActions(dbx.DBTX) useractions.Repository { return m.u }

// -------- storage --------

type memStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (m *memStorage) Upload(ctx context.Context, path string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return m.uploadErr
	}
	m.objects[path] = append([]byte(nil), content...)
	return nil
}

func (m *memStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[path]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memStorage) get(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[path]
	return b, ok
}

// -------- engine --------

// fakeEngine yields canned batches. When release is set, it blocks before
// the first batch until release is closed.
type fakeEngine struct {
	batches []validation.Batch
	err     error
	release chan struct{}
	calls   atomic.Int32
}

func (e *fakeEngine) Version() string { return "test-rules/0.1" }

func (e *fakeEngine) ValidateBatches(ctx context.Context, r io.Reader, vctx validation.Context) iter.Seq2[validation.Batch, error] {
	return func(yield func(validation.Batch, error) bool) {
		e.calls.Add(1)
		if e.release != nil {
			<-e.release
		}
		for _, b := range e.batches {
			if !yield(b, nil) {
				return
			}
		}
		if e.err != nil {
			yield(validation.Batch{}, e.err)
		}
	}
}

// -------- db --------

type fakeSession struct {
	dbx.DBTX
	closed atomic.Int32
}

func (s *fakeSession) Close() error {
	s.closed.Add(1)
	return nil
}

func sessionsOf(s *fakeSession) dbx.SessionFactory {
	return func(context.Context) (dbx.Session, error) { return s, nil }
}

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// -------- misc --------

type fakeMailer struct {
	mu   sync.Mutex
	sent []notify.Confirmation
	err  error
}

func (m *fakeMailer) SendConfirmation(ctx context.Context, c notify.Confirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, c)
	return m.err
}

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []*models.Submission
}

func (d *recordingDispatcher) HandleSubmission(ctx context.Context, period, lei string, sub *models.Submission, content []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, sub)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.MaxJSONGroupSize = 10
	cfg.MaxValidationErrors = 100
	return cfg
}

func newTestProcessor(m *fakeRepoManager, st *memStorage, e validation.Engine) *Processor {
	return NewProcessor(m, st, e, testConfig(), logging.Nop{})
}

func errorFinding(id string, row int) validation.Finding {
	return validation.Finding{ValidationID: id, Name: id + " name", Severity: validation.SeverityError, Scope: validation.ScopeSingleField, Row: row, UID: "uid"}
}

func warningFinding(id string, row int) validation.Finding {
	return validation.Finding{ValidationID: id, Name: id + " name", Severity: validation.SeverityWarning, Scope: validation.ScopeMultiField, Row: row, UID: "uid"}
}
