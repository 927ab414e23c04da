package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/filingapi/internal/common"
	"github.com/dmitrijs2005/filingapi/internal/server/models"
	"github.com/dmitrijs2005/filingapi/internal/server/validation"
)

const (
	testLEI    = "123456789TESTBANK123"
	testPeriod = "2024"
)

func seedSubmission(m *fakeRepoManager) *models.Submission {
	sub := models.Submission{ID: 1, Counter: 1, FilingID: 1, State: models.SubmissionUploaded, Filename: "file.csv"}
	m.s.put(sub)
	return &sub
}

func TestValidateFileProcessable(t *testing.T) {
	p := newTestProcessor(newFakeRepoManager(), newMemStorage(), &fakeEngine{})

	cases := []struct {
		name   string
		fd     FileDescriptor
		status int
	}{
		{"ok", FileDescriptor{Filename: "sblar.csv", ContentType: "text/csv", Size: 10}, 0},
		{"upper case extension", FileDescriptor{Filename: "SBLAR.CSV", ContentType: "text/csv", Size: 10}, 0},
		{"wrong type", FileDescriptor{Filename: "sblar.csv", ContentType: "application/json", Size: 10}, http.StatusUnsupportedMediaType},
		{"wrong extension", FileDescriptor{Filename: "sblar.txt", ContentType: "text/csv", Size: 10}, http.StatusUnsupportedMediaType},
		{"too large", FileDescriptor{Filename: "sblar.csv", ContentType: "text/csv", Size: 3 << 30}, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := p.ValidateFileProcessable(tc.fd)
			if tc.status == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.status, common.AsRequestError(err).Status)
		})
	}
}

func TestUploadToStorage_Paths(t *testing.T) {
	st := newMemStorage()
	p := newTestProcessor(newFakeRepoManager(), st, &fakeEngine{})
	ctx := context.Background()

	require.NoError(t, p.UploadToStorage(ctx, testPeriod, testLEI, "3", []byte("a")))
	require.NoError(t, p.UploadToStorage(ctx, testPeriod, testLEI, "3_report", []byte("b"), "csv"))

	_, ok := st.get("upload/2024/123456789TESTBANK123/3.csv")
	assert.True(t, ok)

	rc, err := p.GetFromStorage(ctx, testPeriod, testLEI, "3_report")
	require.NoError(t, err)
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "b", string(b))
}

func TestUploadToStorage_Failure(t *testing.T) {
	st := newMemStorage()
	st.uploadErr = errors.New("bucket gone")
	p := newTestProcessor(newFakeRepoManager(), st, &fakeEngine{})

	err := p.UploadToStorage(context.Background(), testPeriod, testLEI, "1", []byte("x"))
	re := common.AsRequestError(err)
	assert.Equal(t, http.StatusInternalServerError, re.Status)
	assert.Equal(t, "Upload Failure", re.Name)
	assert.ErrorIs(t, err, st.uploadErr)

	_, err = p.GetFromStorage(context.Background(), testPeriod, testLEI, "missing")
	assert.Equal(t, "Download Failure", common.AsRequestError(err).Name)
}

func TestValidateAndUpdateSubmission_Outcomes(t *testing.T) {
	cases := []struct {
		name     string
		batches  []validation.Batch
		want     models.SubmissionState
		wantKeys []string
	}{
		{
			name:     "clean",
			batches:  []validation.Batch{{Phase: validation.PhaseSyntactical, Records: 2}, {Phase: validation.PhaseLogical, Records: 2}},
			want:     models.ValidationSuccessful,
			wantKeys: []string{"syntax_errors", "logic_errors", "logic_warnings"},
		},
		{
			name: "warnings only",
			batches: []validation.Batch{
				{Phase: validation.PhaseSyntactical, Records: 2},
				{Phase: validation.PhaseLogical, Records: 2, Findings: []validation.Finding{warningFinding("W0003", 1)}},
			},
			want:     models.ValidationWithWarnings,
			wantKeys: []string{"syntax_errors", "logic_errors", "logic_warnings"},
		},
		{
			name: "logic errors and warnings",
			batches: []validation.Batch{
				{Phase: validation.PhaseSyntactical, Records: 2},
				{Phase: validation.PhaseLogical, Records: 2, Findings: []validation.Finding{warningFinding("W0003", 1), errorFinding("E3000", 2)}},
			},
			want:     models.ValidationWithErrors,
			wantKeys: []string{"syntax_errors", "logic_errors", "logic_warnings"},
		},
		{
			name: "syntax errors",
			batches: []validation.Batch{
				{Phase: validation.PhaseSyntactical, Records: 2, Findings: []validation.Finding{errorFinding("E0001", 1)}},
			},
			want:     models.ValidationWithErrors,
			wantKeys: []string{"syntax_errors"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newFakeRepoManager()
			st := newMemStorage()
			p := newTestProcessor(m, st, &fakeEngine{batches: tc.batches})
			sub := seedSubmission(m)

			err := p.ValidateAndUpdateSubmission(context.Background(), nil, testPeriod, testLEI, sub, []byte("uid\nA\n"), NewCancelFlag())
			require.NoError(t, err)

			assert.Equal(t, []models.SubmissionState{models.ValidationInProgress, tc.want}, m.s.updatedStates())

			saved, err := m.s.Get(context.Background(), sub.ID)
			require.NoError(t, err)
			require.NotNil(t, saved.ValidationRulesetVersion)
			assert.Equal(t, "test-rules/0.1", *saved.ValidationRulesetVersion)
			require.NotNil(t, saved.TotalRecords)
			assert.Equal(t, 2, *saved.TotalRecords)

			var doc map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(saved.ValidationResults, &doc))
			keys := make([]string, 0, len(doc))
			for k := range doc {
				keys = append(keys, k)
			}
			assert.ElementsMatch(t, tc.wantKeys, keys)

			_, ok := st.get("upload/2024/123456789TESTBANK123/1_report.csv")
			assert.True(t, ok, "report stored")
		})
	}
}

func TestValidateAndUpdateSubmission_Deterministic(t *testing.T) {
	batches := []validation.Batch{
		{Phase: validation.PhaseSyntactical, Records: 3},
		{Phase: validation.PhaseLogical, Records: 3, Findings: []validation.Finding{errorFinding("E3000", 3), errorFinding("E3000", 1), warningFinding("W0003", 2)}},
	}
	run := func() (json.RawMessage, []byte) {
		m := newFakeRepoManager()
		st := newMemStorage()
		p := newTestProcessor(m, st, &fakeEngine{batches: batches})
		sub := seedSubmission(m)
		require.NoError(t, p.ValidateAndUpdateSubmission(context.Background(), nil, testPeriod, testLEI, sub, []byte("x"), nil))
		saved, _ := m.s.Get(context.Background(), sub.ID)
		report, _ := st.get("upload/2024/123456789TESTBANK123/1_report.csv")
		return saved.ValidationResults, report
	}

	r1, c1 := run()
	r2, c2 := run()
	assert.JSONEq(t, string(r1), string(r2))
	assert.Equal(t, c1, c2)
}

func TestValidateAndUpdateSubmission_Malformed(t *testing.T) {
	m := newFakeRepoManager()
	p := newTestProcessor(m, newMemStorage(), &fakeEngine{err: fmt.Errorf("row 1: %w", validation.ErrMalformed)})
	sub := seedSubmission(m)

	require.NoError(t, p.ValidateAndUpdateSubmission(context.Background(), nil, testPeriod, testLEI, sub, []byte("x"), NewCancelFlag()))
	assert.Equal(t, []models.SubmissionState{models.ValidationInProgress, models.SubmissionUploadMalformed}, m.s.updatedStates())
}

func TestValidateAndUpdateSubmission_UnexpectedError(t *testing.T) {
	m := newFakeRepoManager()
	p := newTestProcessor(m, newMemStorage(), &fakeEngine{err: errors.New("boom")})
	sub := seedSubmission(m)

	require.NoError(t, p.ValidateAndUpdateSubmission(context.Background(), nil, testPeriod, testLEI, sub, []byte("x"), NewCancelFlag()))
	assert.Equal(t, models.ValidationError, m.s.state(sub.ID))
}

func TestValidateAndUpdateSubmission_EnginePanicSetsError(t *testing.T) {
	m := newFakeRepoManager()
	p := newTestProcessor(m, newMemStorage(), panicEngine{})
	sub := seedSubmission(m)

	require.NoError(t, p.ValidateAndUpdateSubmission(context.Background(), nil, testPeriod, testLEI, sub, []byte("x"), NewCancelFlag()))
	assert.Equal(t, []models.SubmissionState{models.ValidationInProgress, models.ValidationError}, m.s.updatedStates())
}

func TestValidateAndUpdateSubmission_KeepsFinalPhaseFindings(t *testing.T) {
	m := newFakeRepoManager()
	st := newMemStorage()
	p := newTestProcessor(m, st, &fakeEngine{batches: []validation.Batch{
		{Phase: validation.PhaseSyntactical, Records: 2, Findings: []validation.Finding{warningFinding("W0001", 1)}},
		{Phase: validation.PhaseLogical, Records: 2, Findings: []validation.Finding{warningFinding("W0003", 2)}},
	}})
	sub := seedSubmission(m)

	require.NoError(t, p.ValidateAndUpdateSubmission(context.Background(), nil, testPeriod, testLEI, sub, []byte("x"), NewCancelFlag()))

	saved, err := m.s.Get(context.Background(), sub.ID)
	require.NoError(t, err)
	var doc Report
	require.NoError(t, json.Unmarshal(saved.ValidationResults, &doc))
	require.NotNil(t, doc.LogicWarnings)
	require.Len(t, doc.LogicWarnings.Details, 1)
	assert.Equal(t, "W0003", doc.LogicWarnings.Details[0].Validation.ID)

	report, ok := st.get("upload/2024/123456789TESTBANK123/1_report.csv")
	require.True(t, ok)
	assert.NotContains(t, string(report), "W0001")
}

func TestValidateAndUpdateSubmission_ReportUploadFailure(t *testing.T) {
	m := newFakeRepoManager()
	st := newMemStorage()
	st.uploadErr = errors.New("no space")
	p := newTestProcessor(m, st, &fakeEngine{batches: []validation.Batch{{Phase: validation.PhaseLogical}}})
	sub := seedSubmission(m)

	require.NoError(t, p.ValidateAndUpdateSubmission(context.Background(), nil, testPeriod, testLEI, sub, []byte("x"), NewCancelFlag()))
	assert.Equal(t, models.ValidationError, m.s.state(sub.ID))
}

func TestValidateAndUpdateSubmission_CancelledSkipsFinalWrite(t *testing.T) {
	m := newFakeRepoManager()
	st := newMemStorage()
	p := newTestProcessor(m, st, &fakeEngine{batches: []validation.Batch{{Phase: validation.PhaseLogical, Records: 1}}})
	sub := seedSubmission(m)

	flag := NewCancelFlag()
	flag.Cancel()
	require.NoError(t, p.ValidateAndUpdateSubmission(context.Background(), nil, testPeriod, testLEI, sub, []byte("x"), flag))

	assert.Equal(t, []models.SubmissionState{models.ValidationInProgress}, m.s.updatedStates())
	_, ok := st.get("upload/2024/123456789TESTBANK123/1_report.csv")
	assert.True(t, ok)
}

func TestValidateAndUpdateSubmission_CancelledStillRecordsMalformed(t *testing.T) {
	m := newFakeRepoManager()
	p := newTestProcessor(m, newMemStorage(), &fakeEngine{err: validation.ErrMalformed})
	sub := seedSubmission(m)

	flag := NewCancelFlag()
	flag.Cancel()
	require.NoError(t, p.ValidateAndUpdateSubmission(context.Background(), nil, testPeriod, testLEI, sub, []byte("x"), flag))
	assert.Equal(t, models.SubmissionUploadMalformed, m.s.state(sub.ID))
}

func TestValidateAndUpdateSubmission_ReadsStoredUpload(t *testing.T) {
	m := newFakeRepoManager()
	st := newMemStorage()
	engine := &fakeEngine{batches: []validation.Batch{{Phase: validation.PhaseLogical, Records: 1}}}
	p := newTestProcessor(m, st, engine)
	sub := seedSubmission(m)

	require.NoError(t, st.Upload(context.Background(), "upload/2024/123456789TESTBANK123/1.csv", []byte("uid\nA\n")))
	require.NoError(t, p.ValidateAndUpdateSubmission(context.Background(), nil, testPeriod, testLEI, sub, nil, nil))
	assert.Equal(t, models.ValidationSuccessful, m.s.state(sub.ID))

	// nothing stored for the second submission
	other := models.Submission{ID: 2, Counter: 2, FilingID: 1, State: models.SubmissionUploaded}
	m.s.put(other)
	require.NoError(t, p.ValidateAndUpdateSubmission(context.Background(), nil, testPeriod, testLEI, &other, nil, nil))
	assert.Equal(t, models.ValidationError, m.s.state(other.ID))
}

func TestValidateAndUpdateSubmission_PersistFailure(t *testing.T) {
	m := newFakeRepoManager()
	m.s.updateErr = errors.New("db down")
	p := newTestProcessor(m, newMemStorage(), &fakeEngine{})
	sub := seedSubmission(m)

	err := p.ValidateAndUpdateSubmission(context.Background(), nil, testPeriod, testLEI, sub, []byte("x"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, m.s.updateErr)
}

func TestValidateAndUpdateSubmission_RealEngine(t *testing.T) {
	m := newFakeRepoManager()
	engine := validation.NewCSVEngine(validation.DefaultRules(), 100, 1)
	p := newTestProcessor(m, newMemStorage(), engine)
	sub := seedSubmission(m)

	content := []byte("uid,amount\n" + testLEI + "0001,1\n" + testLEI + "0001,2\n")
	require.NoError(t, p.ValidateAndUpdateSubmission(context.Background(), nil, testPeriod, testLEI, sub, content, NewCancelFlag()))
	assert.Equal(t, models.ValidationWithErrors, m.s.state(sub.ID))

	malformed := models.Submission{ID: 2, Counter: 2, FilingID: 1}
	m.s.put(malformed)
	require.NoError(t, p.ValidateAndUpdateSubmission(context.Background(), nil, testPeriod, testLEI, &malformed, []byte("\xff\xfe"), NewCancelFlag()))
	assert.Equal(t, models.SubmissionUploadMalformed, m.s.state(malformed.ID))
}
