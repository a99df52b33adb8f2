package models

// APIResponse is the uniform envelope returned by the HTTP API.
type APIResponse struct {
	Status string `json:"status"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Success wraps a result in a success envelope.
func Success(result any) APIResponse {
	return APIResponse{Status: "ok", Result: result}
}

// Error wraps a message in an error envelope.
func Error(msg string) APIResponse {
	return APIResponse{Status: "error", Error: msg}
}
