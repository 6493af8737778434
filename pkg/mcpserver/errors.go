package mcpserver

import (
	"fmt"

	"github.com/glsp-mcp/forge/pkg/apperr"
)

func catalogNotFoundError(name string) error {
	return apperr.New(apperr.KindNotFound, fmt.Sprintf("component %q not found", name))
}
