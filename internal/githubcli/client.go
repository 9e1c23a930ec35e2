package githubcli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jarrodldavis/npm-version-scripts/internal/execshell"
)

const (
	repositoryFieldNameConstant             = "repository"
	requiredValueMessageConstant            = "value required"
	ownerAndNameRequiredMessageConstant     = "expected owner/name"
	executorNotConfiguredMessageConstant    = "github cli executor not configured"
	operationErrorMessageTemplateConstant   = "%s operation failed"
	operationErrorWithCauseTemplateConstant = "%s operation failed: %s"
	responseDecodingErrorTemplateConstant   = "%s response decoding failed: %s"
	invalidInputErrorTemplateConstant       = "%s: %s"
	repositorySeparatorConstant             = "/"
)

// OperationName describes a named GitHub CLI workflow supported by the client.
type OperationName string

// GitHubCommandExecutor is the minimal interface required from execshell.ShellExecutor.
type GitHubCommandExecutor interface {
	ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// ErrExecutorNotConfigured indicates the client was constructed without an executor.
var ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps execution issues for GitHub CLI operations.
type OperationError struct {
	Operation OperationName
	Cause     error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(operationErrorMessageTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(operationErrorWithCauseTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// ResponseDecodingError indicates output that could not be decoded into the expected shape.
type ResponseDecodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the decoding failure.
func (decodingError ResponseDecodingError) Error() string {
	return fmt.Sprintf(responseDecodingErrorTemplateConstant, decodingError.Operation, decodingError.Cause)
}

// Unwrap exposes the underlying cause.
func (decodingError ResponseDecodingError) Unwrap() error {
	return decodingError.Cause
}

// Client coordinates GitHub CLI invocations for a single repository.
type Client struct {
	executor   GitHubCommandExecutor
	owner      string
	name       string
	repository string
}

// NewClient constructs a client addressed at repository ("owner/name").
func NewClient(executor GitHubCommandExecutor, repository string) (*Client, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}

	trimmedRepository := strings.TrimSpace(repository)
	if len(trimmedRepository) == 0 {
		return nil, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	repositoryParts := strings.Split(trimmedRepository, repositorySeparatorConstant)
	if len(repositoryParts) != 2 || len(repositoryParts[0]) == 0 || len(repositoryParts[1]) == 0 {
		return nil, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: ownerAndNameRequiredMessageConstant}
	}

	return &Client{
		executor:   executor,
		owner:      repositoryParts[0],
		name:       repositoryParts[1],
		repository: trimmedRepository,
	}, nil
}

// Repository returns the "owner/name" coordinate the client addresses.
func (client *Client) Repository() string {
	return client.repository
}
