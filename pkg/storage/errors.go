package storage

import (
	"errors"
	"fmt"

	liberrors "github.com/openfga/listquery/internal/errors"
)

var (
	// Caller errors, raised before any remote call

	// ErrDescriptor if a query descriptor is malformed.
	ErrDescriptor = errors.New("invalid query descriptor")
	// ErrCompilation if a where clause or join cannot be expressed in the query dialect.
	ErrCompilation = errors.New("cannot compile query")
	// ErrFieldMapping if a column value cannot be mapped to a typed field value.
	ErrFieldMapping = errors.New("cannot map column value")

	// Read errors

	// ErrProjection if a requested column does not exist on the list schema.
	ErrProjection = errors.New("cannot project column")
	ErrInvalidContinuationToken = errors.New("invalid continuation token")

	// Shared errors

	// ErrRemoteExecution if the store rejected a request.
	ErrRemoteExecution = errors.New("remote execution failed")
	ErrNotFound        = errors.New("not found")
)

// DescriptorError returns an error describing a malformed descriptor.
func DescriptorError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDescriptor, fmt.Sprintf(format, args...))
}

// CompilationError returns an error describing a clause that cannot be compiled.
func CompilationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCompilation, fmt.Sprintf(format, args...))
}

// FieldMappingError returns an error describing a column value that cannot be mapped.
func FieldMappingError(column, format string, args ...any) error {
	return fmt.Errorf("%w: column '%s': %s", ErrFieldMapping, column, fmt.Sprintf(format, args...))
}

// ProjectionError returns an error naming the list and the column that does not exist on it.
func ProjectionError(list ListID, column string) error {
	return fmt.Errorf("%w: column '%s' does not exist on list '%s'", ErrProjection, column, list)
}

// RemoteExecutionError returns an error whose message is exactly the store's message and which
// matches ErrRemoteExecution.
func RemoteExecutionError(message string) error {
	return liberrors.With(errors.New(message), ErrRemoteExecution)
}

// RemoteNotFoundError is a RemoteExecutionError that also matches ErrNotFound.
func RemoteNotFoundError(message string) error {
	return liberrors.With(RemoteExecutionError(message), ErrNotFound)
}
