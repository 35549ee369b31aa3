package hoopgate

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMiss is returned by ValidateStepTwo when the final shot missed
var ErrMiss = errors.New("shot missed")

// APIError is a non-2xx answer from the gate
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gate: %d %s", e.Status, e.Message)
}

// IsExpired reports whether err means the challenge is gone and a new one is needed
func IsExpired(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden && apiErr.Message == "Request expired"
}
