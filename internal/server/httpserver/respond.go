package httpserver

import (
	"encoding/json"
	"net/http"
)

type errorEnvelope struct {
	Code    uint32 `json:"code"`
	Message string `json:"message"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type pubkeyResponse struct {
	Success bool   `json:"success"`
	Pubkey  string `json:"pubkey"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
