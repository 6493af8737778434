package diagram

import "github.com/glsp-mcp/forge/pkg/apperr"

var (
	ErrNotFound  = apperr.New(apperr.KindNotFound, "diagram not found")
	ErrInvalid   = apperr.New(apperr.KindInvalidArgument, "invalid diagram")
)
