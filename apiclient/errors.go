package apiclient

import (
	"encoding/json"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// errorBody is the error document returned by the service.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// statusError maps a non-2xx response to a go-errors value carrying the status code.
// Server errors are reported as external failures.
func statusError(method, path string, status int, body []byte) *goerrors.Error {
	category := goerrors.HTTPStatusToCategory(status)
	if status >= http.StatusInternalServerError {
		category = goerrors.CategoryExternal
	}

	message := http.StatusText(status)
	var doc errorBody
	if err := json.Unmarshal(body, &doc); err == nil {
		switch {
		case doc.Message != "":
			message = doc.Message
		case doc.Error != "":
			message = doc.Error
		}
	}
	if message == "" {
		message = "unexpected response"
	}

	return goerrors.New(message, category).
		WithCode(status).
		WithTextCode(goerrors.HTTPStatusToTextCode(status)).
		WithMetadata(map[string]any{
			"method": method,
			"path":   path,
		})
}
