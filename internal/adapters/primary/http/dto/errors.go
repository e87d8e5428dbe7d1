package dto

// ErrorResponse is the body of every non-2xx reply. Only the fields that
// apply to the failure are set.
type ErrorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
	Field    string `json:"field,omitempty"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
}
