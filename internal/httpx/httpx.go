package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 64 << 10

// DecodeJSON decodes a single JSON object and rejects fields v does not declare.
func DecodeJSON(body io.Reader, v interface{}) error {
	return decode(body, v, true)
}

// DecodeJSONIgnoreUnknown decodes a single JSON object, dropping fields v does not declare.
func DecodeJSONIgnoreUnknown(body io.Reader, v interface{}) error {
	return decode(body, v, false)
}

func decode(body io.Reader, v interface{}, strict bool) error {
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must contain a single JSON object")
	}
	return nil
}

func ValidationDetails(errs validator.ValidationErrors) map[string]string {
	if len(errs) == 0 {
		return nil
	}
	details := make(map[string]string, len(errs))
	for _, err := range errs {
		details[err.Field()] = err.Tag()
	}
	return details
}

// AttachmentHeaders marks a response as a file download.
func AttachmentHeaders(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
}
