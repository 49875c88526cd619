package cli

import (
	"fmt"
	"net/url"
)

// validateHostURL checks that s is usable as an API base URL: an http or
// https URL with a host and no path.
func validateHostURL(s string) error {
	if s == "" {
		return fmt.Errorf("host URL is empty")
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid host URL %q: %v", s, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid host URL %q: scheme must be http or https", s)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid host URL %q: missing host", s)
	}
	if u.Path != "" && u.Path != "/" {
		return fmt.Errorf("invalid host URL %q: path segments are not allowed", s)
	}
	return nil
}
