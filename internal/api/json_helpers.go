package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

// envelope is the wire shape shared by every JSON endpoint. Failures carry
// data=null; successes put the payload (or null) in data.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func writeEnvelope(w http.ResponseWriter, status int, success bool, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: success, Message: message, Data: data})
}

// WriteSuccess replies with a success envelope carrying the payload.
func WriteSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	writeEnvelope(w, status, true, message, data)
}

// WriteFailure replies with a failure envelope. Data is always null.
func WriteFailure(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, false, message, nil)
}

func writeMethodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	w.Header().Set("Allow", allowed)
	WriteFailure(w, http.StatusMethodNotAllowed, "Method "+r.Method+" not allowed")
}

// decodeJSON decodes a request body. Unrecognized fields are ignored, matching
// the form semantics of the clients this API replaced.
func decodeJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}
