package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/faucetdb/api-maker/internal/apierr"
)

// errorEnvelope is the wire shape every failure is reported in.
type errorEnvelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err onto the error envelope, using the error's own status
// when it is an apierr.Error and 500 otherwise.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"
	if ae, ok := apierr.As(err); ok {
		status = ae.HTTPStatus()
		message = ae.Message
	}
	writeJSON(w, status, errorEnvelope{Status: status, Message: message})
}

// decodeJSONObject decodes the request body as a single JSON object. The
// body is closed after decoding regardless of success or failure.
func decodeJSONObject(r io.ReadCloser) (map[string]any, error) {
	defer r.Close()
	out := map[string]any{}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	// json.Number keeps integers intact through the generic map; convert to
	// the plain scalar forms the conversion layer expects.
	for k, v := range out {
		if n, ok := v.(json.Number); ok {
			out[k] = n.String()
		}
	}
	return out, nil
}
