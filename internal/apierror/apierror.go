// Package apierror holds the JSON envelopes used for every 4xx/5xx response
// of the server and the terminal local API.
package apierror

// APIError is the plain error envelope: {"detail": "..."}.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// ValidationError carries one message per invalid field.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Datos de entrada inválidos", Fields: fields}
}
