package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Mao1229/moemail/internal/domain"
	"github.com/Mao1229/moemail/internal/ports"
	"github.com/Mao1229/moemail/internal/usecase"
)

// BatchAPI serves the batch provisioning endpoints.
type BatchAPI struct {
	Driver    usecase.Driver
	Processor *usecase.Processor
	History   usecase.History
	Users     ports.UserContext
}

type createReq struct {
	Domain       string `json:"domain"`
	ExpiryPolicy string `json:"expiryPolicy"`
	TotalCount   int    `json:"totalCount"`
}

func (h *BatchAPI) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, err := h.Users.Resolve(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err))
		return
	}
	expiresIn, err := parseExpiryPolicy(req.ExpiryPolicy)
	if err != nil {
		writeError(w, err)
		return
	}

	t, err := h.Driver.CreateBatch(r.Context(), user, req.Domain, expiresIn, req.TotalCount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"taskId": t.ID,
		"status": t.Status,
	})
}

func (h *BatchAPI) handleProcess(w http.ResponseWriter, r *http.Request) {
	taskID := r.URL.Query().Get("taskId")
	if taskID == "" {
		writeError(w, fmt.Errorf("%w: taskId is required", domain.ErrInvalidArgument))
		return
	}

	snap, err := h.Processor.Advance(r.Context(), taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *BatchAPI) handleStatus(w http.ResponseWriter, r *http.Request) {
	user, err := h.Users.Resolve(r)
	if err != nil {
		writeError(w, err)
		return
	}

	t, err := h.History.Status(r.Context(), user.ID, chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, err)
		return
	}

	snap := t.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          t.Status,
		"totalCount":      t.TotalCount,
		"processedCount":  t.ProcessedCount,
		"createdCount":    t.CreatedCount,
		"progressPercent": snap.ProgressPercent,
		"error":           t.Error,
		"createdAt":       t.CreatedAt,
		"updatedAt":       t.UpdatedAt,
	})
}

func (h *BatchAPI) handleDownload(w http.ResponseWriter, r *http.Request) {
	user, err := h.Users.Resolve(r)
	if err != nil {
		writeError(w, err)
		return
	}

	taskID := chi.URLParam(r, "taskID")
	addrs, err := h.History.DownloadAddresses(r.Context(), user.ID, taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(addrs) == 0 {
		writeError(w, fmt.Errorf("%w: task has no addresses to download", domain.ErrInvalidArgument))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="addresses-%s.txt"`, taskID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(strings.Join(addrs, "\n")))
}

func (h *BatchAPI) handleHistory(w http.ResponseWriter, r *http.Request) {
	user, err := h.Users.Resolve(r)
	if err != nil {
		writeError(w, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	records, total, err := h.History.ListHistory(r.Context(), user.ID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []domain.TaskRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"history": records,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// parseExpiryPolicy accepts "never" or a positive Go duration string.
func parseExpiryPolicy(s string) (time.Duration, error) {
	if s == "" || s == "never" {
		return domain.ExpiryNever, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: expiryPolicy must be %q or a positive duration", domain.ErrInvalidArgument, "never")
	}
	return d, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain sentinels to HTTP statuses in one place.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrQuotaExceeded):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrTaskNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
