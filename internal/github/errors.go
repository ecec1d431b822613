package github

import (
	"errors"
	"fmt"
	"net/http"

	gh "github.com/google/go-github/v62/github"
)

var (
	// ErrAuth is returned when the forge rejects the credentials.
	ErrAuth = errors.New("authentication failed (check github.token or GITHUB_TOKEN)")
	// ErrProjectNotFound is returned when the repository doesn't exist or
	// isn't visible with the current credentials.
	ErrProjectNotFound = errors.New("the project doesn't exist")
	// ErrAssetNotFound is returned when a release asset is gone.
	ErrAssetNotFound = errors.New("the release asset doesn't exist")
)

// NetworkError wraps transport failures and unexpected forge responses.
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// classify maps a go-github error onto the package taxonomy. A 404 becomes
// notFound.
func classify(op string, err error, notFound error) error {
	var rate *gh.RateLimitError
	if errors.As(err, &rate) {
		return &NetworkError{Op: op, Status: http.StatusForbidden, Err: fmt.Errorf("rate limit exceeded, resets at %s", rate.Rate.Reset.Time.Format("15:04:05"))}
	}
	var abuse *gh.AbuseRateLimitError
	if errors.As(err, &abuse) {
		return &NetworkError{Op: op, Status: http.StatusForbidden, Err: errors.New("secondary rate limit exceeded")}
	}
	var resp *gh.ErrorResponse
	if errors.As(err, &resp) && resp.Response != nil {
		switch resp.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s: %w", op, ErrAuth)
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", op, notFound)
		}
		return &NetworkError{Op: op, Status: resp.Response.StatusCode, Err: errors.New(resp.Message)}
	}
	return &NetworkError{Op: op, Err: err}
}
