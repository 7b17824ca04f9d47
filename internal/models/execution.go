package models

// ExecuteRequest is the body of POST /api/execute.
type ExecuteRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// ExecuteResponse is the uniform response shape for every execute
// outcome. Exactly one of Output or Error carries content; unset
// fields are empty strings, never null.
type ExecuteResponse struct {
	Output  string `json:"output"`
	Error   string `json:"error"`
	Success bool   `json:"success"`
}
