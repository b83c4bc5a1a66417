package model

// EstimateRequest is the payload accepted by POST /api/estimate
type EstimateRequest struct {
	JobDescription string `json:"job_description"`
}

// Response is the standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Errors  []string    `json:"errors,omitempty"`
}

// ErrorResponse is an error reply. Data carries the session snapshot when there is one.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
