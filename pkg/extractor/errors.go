package extractor

import "fmt"

// APIError is returned when the extraction engine responds with a non-2xx
// status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("extractor: HTTP %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus exposes the status code for transient-error classification.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// NavigationError means the engine could not reach or load a target URL. It
// always names the URL that failed.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("extractor: navigate %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ExtractionError means the engine loaded the page but failed to produce the
// requested structured data.
type ExtractionError struct {
	Instruction string
	Err         error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extractor: extract %q: %v", e.Instruction, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
