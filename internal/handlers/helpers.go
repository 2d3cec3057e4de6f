package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/models"
)

// maxJSONBody bounds request bodies; camera frames arrive base64 encoded.
const maxJSONBody = 10 << 20

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: chimiddleware.GetReqID(r.Context()),
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	return json.NewDecoder(r.Body).Decode(dst)
}

var errEmptyImage = errors.New("image is empty")

// DecodeImage accepts raw base64 or a data URL ("data:image/jpeg;base64,...").
func DecodeImage(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, ","); strings.HasPrefix(raw, "data:") && i >= 0 {
		raw = raw[i+1:]
	}
	if raw == "" {
		return nil, errEmptyImage
	}

	img, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		img, err = base64.RawStdEncoding.DecodeString(raw)
	}
	if err != nil {
		return nil, err
	}
	if len(img) == 0 {
		return nil, errEmptyImage
	}
	return img, nil
}
