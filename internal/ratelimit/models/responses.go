package models

// RateLimitedResponse is the 429 body. Error carries the same wire code as
// the shared error envelope; retry_after repeats the Retry-After header for
// clients that only read bodies.
type RateLimitedResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	RetryAfter       int    `json:"retry_after"`
}
