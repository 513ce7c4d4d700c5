// FilePath: api/resources/resources.go
package resources

import (
	"encoding/json"
	"net/http"
	"strconv"

	nuts "github.com/vaudience/go-nuts"

	"github.com/fabwatch/factoryhub/internal/errors"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		nuts.L.Errorf("[API] Failed to marshal response: %v", err)
		respondWithError(w, errors.NewInternalError("failed to marshal response", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, err error) {
	requestID := nuts.NID("req", 12)

	apiErr, ok := err.(*errors.APIError)
	if !ok {
		apiErr = errors.NewInternalError("unexpected error", err)
	}

	nuts.L.Errorf("[API] (%s) %s: %v", requestID, apiErr.Type, apiErr)

	response := map[string]any{
		"error":      apiErr.Message,
		"type":       apiErr.Type,
		"request_id": requestID,
	}
	if apiErr.Details != nil {
		response["details"] = apiErr.Details
	}

	respondWithJSON(w, apiErr.Code, response)
}

func getPaginationParams(r *http.Request) (offset, limit int) {
	offset = 0
	limit = defaultPageSize

	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return offset, limit
}
