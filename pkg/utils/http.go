package utils

import (
	"encoding/json"
	"net/http"

	"chatd/pkg/chaterr"
)

// JSONError writes a JSON error response with the given status code and
// message.
func JSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// JSONWrite writes the provided value as JSON with the given status code.
func JSONWrite(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	return json.NewEncoder(w).Encode(v)
}

// WriteErr maps an operation error onto the wire: chat errors keep their
// machine-readable kind, anything else is an opaque internal error.
func WriteErr(w http.ResponseWriter, err error) {
	status := chaterr.HTTPStatus(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if kind := chaterr.KindOf(err); kind != "" {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
			"kind":  kind,
		})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
}
