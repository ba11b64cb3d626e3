package models

import (
	"encoding/json"
	"errors"
)

// UploadResult is the payload the backend returned after assembling a file
type UploadResult struct {
	StatusCode int `json:"status_code"`
	// Json is set if the response body was valid JSON
	Json json.RawMessage `json:"json,omitempty"`
	// Text is set if the response body was not JSON
	Text string `json:"text,omitempty"`
}

// NewUploadResult stores body as Json if it can be parsed, otherwise as Text
func NewUploadResult(statusCode int, body []byte) UploadResult {
	result := UploadResult{StatusCode: statusCode}
	if len(body) > 0 && json.Valid(body) {
		result.Json = append(json.RawMessage(nil), body...)
		return result
	}
	result.Text = string(body)
	return result
}

// Decode unmarshals the JSON payload into v
func (r UploadResult) Decode(v any) error {
	if len(r.Json) == 0 {
		return errors.New("result does not contain a json payload")
	}
	return json.Unmarshal(r.Json, v)
}

// StoredFile describes a file that has been assembled by the backend
type StoredFile struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	Path        string `json:"path"`
}

// FileServiceResponse is the body the backend sends after the last chunk
type FileServiceResponse struct {
	Message string            `json:"message"`
	Status  string            `json:"status"`
	Files   []StoredFile      `json:"files"`
	Form    map[string]string `json:"form"`
}
