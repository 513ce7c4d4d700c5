// FilePath: api/resources/api.resource.spray.go
package resources

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/fabwatch/factoryhub/internal/accounting"
	"github.com/fabwatch/factoryhub/internal/errors"
	"github.com/fabwatch/factoryhub/internal/reports"
)

// historyQuery bounds how far back ledger reads may reach
type historyQuery struct {
	Days int `schema:"days"`
}

// SprayResource exposes the daily-accounting ledgers over HTTP
type SprayResource struct {
	accounting *accounting.Service
}

func NewSprayResource(acc *accounting.Service) *SprayResource {
	return &SprayResource{accounting: acc}
}

// GetLatest godoc
// @Summary Get the latest daily ledger
// @Description Returns the most recent ledger row for a spray machine without creating one
// @Tags spray
// @Produce json
// @Param id path string true "Machine ID"
// @Success 200 {object} models.DailyLedger
// @Failure 404 {object} errors.APIError
// @Router /spray/{id}/latest [get]
func (res *SprayResource) GetLatest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ledger, err := res.accounting.PeekLatestLedger(r.Context(), id)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, ledger)
}

// GetHistory godoc
// @Summary Get ledger history
// @Description Returns recent daily ledgers, newest first
// @Tags spray
// @Produce json
// @Param id path string true "Machine ID"
// @Param days query int false "Number of days (default 30, max 365)"
// @Success 200 {array} models.DailyLedger
// @Router /spray/{id}/history [get]
func (res *SprayResource) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var q historyQuery
	if err := queryDecoder.Decode(&q, r.URL.Query()); err != nil {
		respondWithError(w, errors.NewValidationError("invalid query parameters", err))
		return
	}

	history, err := res.accounting.History(r.Context(), id, q.Days)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, history)
}

// GetStatistics godoc
// @Summary Get aggregate ledger statistics
// @Description Totals and efficiency over the requested day range
// @Tags spray
// @Produce json
// @Param id path string true "Machine ID"
// @Param days query int false "Number of days (default 30, max 365)"
// @Success 200 {object} models.LedgerStatistics
// @Router /spray/{id}/statistics [get]
func (res *SprayResource) GetStatistics(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var q historyQuery
	if err := queryDecoder.Decode(&q, r.URL.Query()); err != nil {
		respondWithError(w, errors.NewValidationError("invalid query parameters", err))
		return
	}

	stats, err := res.accounting.Statistics(r.Context(), id, q.Days)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

// ExportReport godoc
// @Summary Export a daily report
// @Description Streams the ledger history as a CSV or XLSX download
// @Tags spray
// @Produce application/octet-stream
// @Param id path string true "Machine ID"
// @Param days query int false "Number of days (default 30, max 365)"
// @Param format query string false "csv or xlsx (default csv)"
// @Success 200
// @Router /spray/{id}/report [get]
func (res *SprayResource) ExportReport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var q historyQuery
	if err := queryDecoder.Decode(&q, r.URL.Query()); err != nil {
		respondWithError(w, errors.NewValidationError("invalid query parameters", err))
		return
	}

	history, err := res.accounting.History(r.Context(), id, q.Days)
	if err != nil {
		respondWithError(w, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	var buf bytes.Buffer
	var contentType, filename string

	switch format {
	case "csv":
		if err := reports.WriteCSV(&buf, id, history); err != nil {
			respondWithError(w, errors.NewInternalError("failed to build csv report", err))
			return
		}
		contentType = "text/csv"
		filename = fmt.Sprintf("daily_report_%s.csv", id)
	case "xlsx":
		if err := reports.WriteXLSX(&buf, id, history); err != nil {
			respondWithError(w, errors.NewInternalError("failed to build xlsx report", err))
			return
		}
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = fmt.Sprintf("daily_report_%s.xlsx", id)
	default:
		respondWithError(w, errors.NewValidationError("unsupported report format", nil))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// TriggerRollover godoc
// @Summary Trigger a day rollover
// @Description Opens the next accounting day for all spray machines, carrying energy baselines forward
// @Tags spray
// @Accept json
// @Produce json
// @Param offset query int false "Day offset for the target date (0 or 1, default 0)"
// @Success 200 {object} models.RolloverReport
// @Router /spray/rollover [post]
func (res *SprayResource) TriggerRollover(w http.ResponseWriter, r *http.Request) {
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 || parsed > 1 {
			respondWithError(w, errors.NewValidationError("offset must be 0 or 1", err))
			return
		}
		offset = parsed
	}

	report, err := res.accounting.RolloverAll(r.Context(), offset)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}
