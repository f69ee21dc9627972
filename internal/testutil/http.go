package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"twin/internal/errors"
)

// NewJSONRequest creates a new HTTP request with JSON body
func NewJSONRequest(method, url string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// DecodeJSON decodes JSON from a reader
func DecodeJSON(r io.Reader, v interface{}) error {
	return json.NewDecoder(r).Decode(v)
}

// ReadString reads the entire response body as a string
func ReadString(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParseErrorResponse decodes an API error body
func ParseErrorResponse(r io.Reader) (*errors.HTTPErrorResponse, error) {
	var errResp errors.HTTPErrorResponse
	if err := DecodeJSON(r, &errResp); err != nil {
		return nil, err
	}
	return &errResp, nil
}
