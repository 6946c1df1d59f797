package monitor

import "errors"

// Sentinel errors shared by store and checker implementations. Callers
// branch with errors.Is and map these to HTTP statuses at the API boundary.
var (
	ErrDuplicateEmail = errors.New("email already registered")
	ErrNotFound       = errors.New("not found")
	ErrInvalidPostURL = errors.New("invalid post URL")
	ErrUnauthorized   = errors.New("unauthorized")
)

// ToggleTrailingSlash returns the slash-toggled variant of a URL: the
// trailing slash is stripped when present and appended otherwise.
func ToggleTrailingSlash(url string) string {
	if url == "" {
		return url
	}
	if url[len(url)-1] == '/' {
		return url[:len(url)-1]
	}
	return url + "/"
}
