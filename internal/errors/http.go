package errors

import (
	"encoding/json"
	"net/http"
)

// HTTPErrorResponse wraps a VaultError for HTTP JSON responses.
type HTTPErrorResponse struct {
	Error VaultError `json:"error"`
}

// WriteHTTPError writes a VaultError as an HTTP JSON response.
func WriteHTTPError(w http.ResponseWriter, err *VaultError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(HTTPErrorResponse{Error: *err})
}
