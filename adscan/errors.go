// CLAUDE:SUMMARY Sentinel errors for pipeline input validation.
package adscan

import "errors"

var (
	// ErrMissingQuery is returned when a search request carries an empty query.
	ErrMissingQuery = errors.New("adscan: missing search query")

	// ErrInvalidInput is returned for empty brand/platform-ID lists and other
	// malformed tool inputs. Validation failures produce structured failure
	// responses with no side effects.
	ErrInvalidInput = errors.New("adscan: invalid input")

	// ErrNoMediaURL is returned when an analysis tool is invoked without a URL.
	ErrNoMediaURL = errors.New("adscan: no media URL provided")

	// ErrUnsupportedMedia is returned when a downloaded asset is outside the
	// accepted image content-type family.
	ErrUnsupportedMedia = errors.New("adscan: unsupported media type")
)
