package utils

import (
	"encoding/json"
	"net/http"

	"github.com/OsGift/safawinet-api/internal/models"
)

// RespondWithError sends a JSON error response
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]interface{}{"error": true, "message": message})
}

// RespondWithFieldErrors sends a 400 listing the invalid fields
func RespondWithFieldErrors(w http.ResponseWriter, code int, message string, fields []models.FieldError) {
	RespondWithJSON(w, code, map[string]interface{}{"error": true, "message": message, "errors": fields})
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Error marshalling JSON response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// RespondWithFile sends a downloadable attachment
func RespondWithFile(w http.ResponseWriter, filename, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
