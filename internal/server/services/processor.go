// Package services contains server-side business logic: the submission
// processor, the background validation handler and the filing workflow.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/filingapi/internal/common"
	"github.com/dmitrijs2005/filingapi/internal/dbx"
	"github.com/dmitrijs2005/filingapi/internal/logging"
	"github.com/dmitrijs2005/filingapi/internal/server/config"
	"github.com/dmitrijs2005/filingapi/internal/server/metrics"
	"github.com/dmitrijs2005/filingapi/internal/server/models"
	"github.com/dmitrijs2005/filingapi/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filingapi/internal/server/storage"
	"github.com/dmitrijs2005/filingapi/internal/server/validation"
)

// ReportQualifier is appended to a submission counter to name its report.
const ReportQualifier = "_report"

const defaultExtension = "csv"

// FileDescriptor is what the caller declared about an upload.
type FileDescriptor struct {
	Filename    string
	ContentType string
	Size        int64
}

// Processor validates one uploaded file end to end and records the outcome.
type Processor struct {
	repomanager  repomanager.RepositoryManager
	storage      storage.Storage
	engine       validation.Engine
	log          logging.Logger
	fileType     string
	fileExt      string
	maxFileSize  int64
	maxGroupSize int
	maxErrors    int
}

func NewProcessor(m repomanager.RepositoryManager, st storage.Storage, engine validation.Engine, cfg *config.Config, log logging.Logger) *Processor {
	return &Processor{
		repomanager:  m,
		storage:      st,
		engine:       engine,
		log:          log.With("module", "processor"),
		fileType:     cfg.SubmissionFileType,
		fileExt:      cfg.SubmissionFileExtension,
		maxFileSize:  cfg.SubmissionFileSize,
		maxGroupSize: cfg.MaxJSONGroupSize,
		maxErrors:    cfg.MaxValidationErrors,
	}
}

// ValidateFileProcessable rejects uploads of the wrong type or size.
func (p *Processor) ValidateFileProcessable(fd FileDescriptor) error {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(fd.Filename), "."))
	if fd.ContentType != p.fileType || ext != p.fileExt {
		return common.NewRequestError(http.StatusUnsupportedMediaType, "Unsupported File Type",
			fmt.Sprintf("Only %s file type with extension %s is supported; submitted file is %q with %q extension",
				p.fileType, p.fileExt, fd.ContentType, ext), nil)
	}
	if fd.Size > p.maxFileSize {
		return common.NewRequestError(http.StatusRequestEntityTooLarge, "File Too Large",
			fmt.Sprintf("Uploaded file size of %d bytes exceeds the limit of %d bytes.", fd.Size, p.maxFileSize), nil)
	}
	return nil
}

func extension(ext []string) string {
	if len(ext) > 0 && ext[0] != "" {
		return ext[0]
	}
	return defaultExtension
}

// UploadToStorage stores content at upload/{period}/{lei}/{fileID}.{ext}.
func (p *Processor) UploadToStorage(ctx context.Context, period, lei, fileID string, content []byte, ext ...string) error {
	if err := p.storage.Upload(ctx, storage.UploadPath(period, lei, fileID, extension(ext)), content); err != nil {
		return common.NewRequestError(http.StatusInternalServerError, "Upload Failure", "Failed to upload file", err)
	}
	return nil
}

// GetFromStorage opens a stored file. The caller closes the reader.
func (p *Processor) GetFromStorage(ctx context.Context, period, lei, fileID string, ext ...string) (io.ReadCloser, error) {
	rc, err := p.storage.Download(ctx, storage.UploadPath(period, lei, fileID, extension(ext)))
	if err != nil {
		return nil, common.NewRequestError(http.StatusInternalServerError, "Download Failure", "Failed to read file.", err)
	}
	return rc, nil
}

// ValidateAndUpdateSubmission runs the rule engine over one submission and
// persists the outcome through db.
//
// The submission is first saved as VALIDATION_IN_PROGRESS with the engine
// version. On success the report is stored next to the upload and the
// final state is saved unless flag was cancelled in the meantime. Malformed
// content ends in SUBMISSION_UPLOAD_MALFORMED and any other failure in
// VALIDATION_ERROR; both are saved whatever the flag says. When content is
// empty the upload is read back from storage.
//
// The returned error only reports a failure to persist the outcome.
func (p *Processor) ValidateAndUpdateSubmission(ctx context.Context, db dbx.DBTX, period, lei string,
	sub *models.Submission, content []byte, flag *CancelFlag) error {

	start := time.Now()
	repo := p.repomanager.Submissions(db)
	log := p.log.With("submission", sub.ID, "lei", lei, "period", period)

	err := p.safeValidate(ctx, db, period, lei, sub, content, flag, log)
	if err == nil {
		metrics.ValidationDuration.Observe(time.Since(start).Seconds())
		return nil
	}
	if errors.Is(err, errSuperseded) {
		return nil
	}

	if errors.Is(err, validation.ErrMalformed) {
		log.Error(ctx, "The file is malformed.", "error", err)
		sub.State = models.SubmissionUploadMalformed
	} else {
		log.Error(ctx, fmt.Sprintf("Validation for submission %d did not complete due to an unexpected error.", sub.ID), "error", err)
		sub.State = models.ValidationError
	}
	metrics.SubmissionOutcomes.WithLabelValues(string(sub.State)).Inc()

	if _, uerr := repo.Update(ctx, sub); uerr != nil {
		return fmt.Errorf("persist %s for submission %d: %w", sub.State, sub.ID, uerr)
	}
	return nil
}

var errSuperseded = errors.New("submission superseded")

func (p *Processor) safeValidate(ctx context.Context, db dbx.DBTX, period, lei string,
	sub *models.Submission, content []byte, flag *CancelFlag, log logging.Logger) (err error) {

	defer func() {
		if r := recover(); r != nil {
			log.Error(ctx, "validation panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			err = fmt.Errorf("validation panicked: %v", r)
		}
	}()
	return p.validate(ctx, db, period, lei, sub, content, flag, log)
}

func (p *Processor) validate(ctx context.Context, db dbx.DBTX, period, lei string,
	sub *models.Submission, content []byte, flag *CancelFlag, log logging.Logger) error {

	repo := p.repomanager.Submissions(db)

	version := p.engine.Version()
	sub.ValidationRulesetVersion = &version
	sub.State = models.ValidationInProgress
	if _, err := repo.Update(ctx, sub); err != nil {
		return err
	}

	fileID := strconv.FormatInt(sub.Counter, 10)
	var r io.Reader
	if len(content) > 0 {
		r = bytes.NewReader(content)
	} else {
		rc, err := p.GetFromStorage(ctx, period, lei, fileID)
		if err != nil {
			return err
		}
		defer rc.Close()
		r = rc
	}

	var (
		findings []validation.Finding
		phase    = validation.PhaseSyntactical
		records  int
	)
	for batch, err := range p.engine.ValidateBatches(ctx, r, validation.Context{LEI: lei, MaxErrors: p.maxErrors}) {
		if err != nil {
			return err
		}
		if batch.Phase != phase {
			findings = nil
		}
		phase = batch.Phase
		records = batch.Records
		findings = append(findings, batch.Findings...)
	}
	sub.TotalRecords = &records

	results, err := json.Marshal(BuildValidationResults(findings, phase, p.maxGroupSize))
	if err != nil {
		return fmt.Errorf("encode validation results: %w", err)
	}
	sub.ValidationResults = results
	sub.State = terminalState(findings)

	report, err := RenderReportCSV(findings, p.maxErrors)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if err := p.UploadToStorage(ctx, period, lei, fileID+ReportQualifier, report); err != nil {
		return err
	}

	if !flag.Continue() {
		log.Warn(ctx, fmt.Sprintf("Submission %d is expired, will not be updating final state with results.", sub.ID))
		return errSuperseded
	}

	if _, err := repo.Update(ctx, sub); err != nil {
		return err
	}
	metrics.SubmissionOutcomes.WithLabelValues(string(sub.State)).Inc()
	log.Info(ctx, "validation finished", "state", sub.State, "findings", len(findings), "records", records)
	return nil
}

func terminalState(findings []validation.Finding) models.SubmissionState {
	if len(findings) == 0 {
		return models.ValidationSuccessful
	}
	for _, f := range findings {
		if f.Severity == validation.SeverityError {
			return models.ValidationWithErrors
		}
	}
	return models.ValidationWithWarnings
}
