// Package rpc exposes the HTTP control surface: node/chain status, bounded
// block range queries, the pull-based task queue, and the connected peer
// list. Grounded on the teacher's rpc/server.go bootstrap (bearer auth,
// body-size limiting, graceful shutdown), with the JSON-RPC 2.0 dispatch
// table replaced by literal REST paths.
package rpc

import (
	"encoding/json"
	"log"
	"net/http"
)

// errorBody is the JSON body written on any non-2xx response.
type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[rpc] write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
