package validation

import (
	"net/url"
	"slices"
	"strings"

	apperrors "go-plant-analyzer/internal/errors"
)

// URLValidator checks photo source URLs before anything is fetched.
type URLValidator struct {
	allowedSchemes []string
	// Entries starting with "." match any subdomain.
	allowedHosts []string
}

// NewURLValidator accepts http and https URLs on any host.
func NewURLValidator() *URLValidator {
	return &URLValidator{allowedSchemes: []string{"http", "https"}}
}

// NewURLValidatorWithOptions restricts schemes and, when hosts is non-empty,
// hosts.
func NewURLValidatorWithOptions(schemes []string, hosts []string) *URLValidator {
	lowered := make([]string, 0, len(hosts))
	for _, h := range hosts {
		lowered = append(lowered, strings.ToLower(h))
	}
	return &URLValidator{allowedSchemes: schemes, allowedHosts: lowered}
}

// ValidateImageURL returns a validation AppError describing the first problem.
func (v *URLValidator) ValidateImageURL(imageURL string) error {
	if strings.TrimSpace(imageURL) == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}
	if !slices.Contains(v.allowedSchemes, strings.ToLower(parsedURL.Scheme)) {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}
	if parsedURL.Hostname() == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}
	// Embedded credentials would end up in logs.
	if parsedURL.User != nil {
		return apperrors.NewValidationError("URL must not contain credentials", nil)
	}
	if !v.isHostAllowed(parsedURL.Hostname()) {
		return apperrors.NewValidationError("URL host not allowed", nil)
	}
	return nil
}

func (v *URLValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, allowed := range v.allowedHosts {
		if strings.HasPrefix(allowed, ".") {
			if strings.HasSuffix(host, allowed) {
				return true
			}
			continue
		}
		if host == allowed {
			return true
		}
	}
	return false
}
