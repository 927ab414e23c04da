package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/filingapi/internal/common"
	"github.com/dmitrijs2005/filingapi/internal/logging"
	"github.com/dmitrijs2005/filingapi/internal/server/actions"
	"github.com/dmitrijs2005/filingapi/internal/server/auth"
	"github.com/dmitrijs2005/filingapi/internal/server/models"
	"github.com/dmitrijs2005/filingapi/internal/server/services"
)

// multipartOverhead is allowed on top of the file size for form framing.
const multipartOverhead = 1 << 20

type handler struct {
	filings       Filings
	maxUploadSize int64
	health        func(ctx context.Context) error
	log           logging.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	re := common.AsRequestError(err)
	if re.Status >= http.StatusInternalServerError {
		h.log.Error(r.Context(), re.Name, "path", r.URL.Path, "error", err)
	}
	common.WriteError(w, err)
}

// writeOptional answers 204 when the resource does not exist yet.
func (h *handler) writeOptional(w http.ResponseWriter, r *http.Request, v any, err error) {
	if errors.Is(err, common.ErrorNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func params(r *http.Request) (lei, period string) {
	return chi.URLParam(r, actions.ParamLEI), chi.URLParam(r, actions.ParamPeriod)
}

func counterParam(r *http.Request) (int64, error) {
	c, err := strconv.ParseInt(chi.URLParam(r, "counter"), 10, 64)
	if err != nil || c < 1 {
		return 0, common.NewRequestError(http.StatusBadRequest, "Invalid Submission Counter",
			fmt.Sprintf("%q is not a submission counter", chi.URLParam(r, "counter")), common.ErrorIncorrectData)
	}
	return c, nil
}

func currentUser(r *http.Request) models.User {
	u, _ := auth.UserFromContext(r.Context())
	return u
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return common.NewRequestError(http.StatusUnprocessableEntity, "Invalid Request Body", err.Error(), common.ErrorIncorrectData)
	}
	return nil
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.filings.ListPeriods(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if periods == nil {
		periods = []models.FilingPeriod{}
	}
	writeJSON(w, http.StatusOK, periods)
}

func (h *handler) getFiling(w http.ResponseWriter, r *http.Request) {
	lei, period := params(r)
	f, err := h.filings.GetFiling(r.Context(), lei, period)
	h.writeOptional(w, r, f, err)
}

func (h *handler) createFiling(w http.ResponseWriter, r *http.Request) {
	lei, period := params(r)
	f, err := h.filings.CreateFiling(r.Context(), lei, period, currentUser(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *handler) uploadSubmission(w http.ResponseWriter, r *http.Request) {
	lei, period := params(r)

	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, common.NewRequestError(http.StatusRequestEntityTooLarge, "File Too Large",
				fmt.Sprintf("Uploaded file exceeds the limit of %d bytes.", h.maxUploadSize), err))
			return
		}
		h.fail(w, r, common.NewRequestError(http.StatusBadRequest, "Missing File", "a multipart field named \"file\" is required", err))
		return
	}
	defer file.Close()

	fd := services.FileDescriptor{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	}
	content, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, r, common.NewRequestError(http.StatusBadRequest, "Unreadable File", err.Error(), err))
		return
	}

	sub, err := h.filings.UploadSubmission(r.Context(), lei, period, currentUser(r), fd, content)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *handler) listSubmissions(w http.ResponseWriter, r *http.Request) {
	lei, period := params(r)
	subs, err := h.filings.ListSubmissions(r.Context(), lei, period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *handler) latestSubmission(w http.ResponseWriter, r *http.Request) {
	lei, period := params(r)
	sub, err := h.filings.GetLatestSubmission(r.Context(), lei, period)
	h.writeOptional(w, r, sub, err)
}

func (h *handler) getSubmission(w http.ResponseWriter, r *http.Request) {
	lei, period := params(r)
	counter, err := counterParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sub, err := h.filings.GetSubmission(r.Context(), lei, period, counter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *handler) submissionReport(w http.ResponseWriter, r *http.Request) {
	lei, period := params(r)
	counter, err := counterParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rc, err := h.filings.GetSubmissionReport(r.Context(), lei, period, counter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%d%s.csv"`, counter, services.ReportQualifier))
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Warn(r.Context(), "report download interrupted", "error", err)
	}
}

func (h *handler) acceptSubmission(w http.ResponseWriter, r *http.Request) {
	lei, period := params(r)
	counter, err := counterParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sub, err := h.filings.AcceptSubmission(r.Context(), lei, period, counter, currentUser(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *handler) signFiling(w http.ResponseWriter, r *http.Request) {
	lei, period := params(r)
	f, err := h.filings.SignFiling(r.Context(), lei, period, currentUser(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *handler) reopenFiling(w http.ResponseWriter, r *http.Request) {
	lei, period := params(r)
	f, err := h.filings.ReopenFiling(r.Context(), lei, period, currentUser(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *handler) getContactInfo(w http.ResponseWriter, r *http.Request) {
	lei, period := params(r)
	ci, err := h.filings.GetContactInfo(r.Context(), lei, period)
	h.writeOptional(w, r, ci, err)
}

func (h *handler) putContactInfo(w http.ResponseWriter, r *http.Request) {
	lei, period := params(r)
	var ci models.ContactInfo
	if err := decodeBody(r, &ci); err != nil {
		h.fail(w, r, err)
		return
	}
	f, err := h.filings.PutContactInfo(r.Context(), lei, period, &ci)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *handler) setVoluntary(w http.ResponseWriter, r *http.Request) {
	lei, period := params(r)
	var body struct {
		IsVoluntary *bool `json:"is_voluntary"`
	}
	if err := decodeBody(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	if body.IsVoluntary == nil {
		h.fail(w, r, common.NewRequestError(http.StatusUnprocessableEntity, "Invalid Request Body", "is_voluntary is required", common.ErrorIncorrectData))
		return
	}
	f, err := h.filings.SetVoluntary(r.Context(), lei, period, *body.IsVoluntary)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *handler) setInstitutionSnapshot(w http.ResponseWriter, r *http.Request) {
	lei, period := params(r)
	var body struct {
		SnapshotID string `json:"institution_snapshot_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	f, err := h.filings.SetInstitutionSnapshot(r.Context(), lei, period, body.SnapshotID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *handler) updateTask(w http.ResponseWriter, r *http.Request) {
	lei, period := params(r)
	var body struct {
		State models.FilingTaskState `json:"state"`
	}
	if err := decodeBody(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.filings.UpdateTaskState(r.Context(), lei, period, chi.URLParam(r, "task_name"), body.State, currentUser(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
