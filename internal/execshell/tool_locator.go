package execshell

import (
	"fmt"
	"os/exec"
	"strings"
)

const missingToolTemplateConstant = "%s must be installed and available on PATH"

// MissingToolError reports an executable that could not be located.
type MissingToolError struct {
	Tool CommandName
}

// Error describes the missing executable.
func (missingError MissingToolError) Error() string {
	return fmt.Sprintf(missingToolTemplateConstant, missingError.Tool)
}

// ToolLocator verifies required executables are installed.
type ToolLocator struct {
	lookPath func(string) (string, error)
}

// NewToolLocator constructs a locator backed by exec.LookPath.
func NewToolLocator() ToolLocator {
	return ToolLocator{lookPath: exec.LookPath}
}

// Require returns MissingToolError for the first executable that cannot be found.
func (locator ToolLocator) Require(tools ...CommandName) error {
	lookPath := locator.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	for _, tool := range tools {
		trimmedTool := strings.TrimSpace(string(tool))
		if len(trimmedTool) == 0 {
			continue
		}
		if _, lookupError := lookPath(trimmedTool); lookupError != nil {
			return MissingToolError{Tool: CommandName(trimmedTool)}
		}
	}
	return nil
}
