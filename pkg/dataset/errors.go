package dataset

import (
	"errors"

	"github.com/glsp-mcp/forge/pkg/apperr"
)

// Sentinel errors for the Dataset Store, each wrapping the shared
// apperr taxonomy (spec.md §7) so callers can errors.Is against either
// the package-local sentinel or the platform-wide Kind.
var (
	ErrConnectionLost     = apperr.New(apperr.KindDatasetUnavailable, "connection lost")
	ErrSerializationError = apperr.New(apperr.KindSerializationError, "serialization error")
	ErrQueryFailed        = apperr.New(apperr.KindQueryFailed, "query failed")
	ErrFeatureNotSupported = apperr.New(apperr.KindFeatureNotSupported, "feature not supported by backend")
	ErrNotFound           = apperr.New(apperr.KindNotFound, "reading not found")
	ErrInvalidQuery       = apperr.New(apperr.KindInvalidArgument, "invalid query")
)

// IsNotFound reports whether err denotes a missing reading/metadata row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
