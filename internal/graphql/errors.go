package graphql

import (
	"errors"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"

	"github.com/rpattn/engcrm/internal/auth"
	"github.com/rpattn/engcrm/internal/repository"
	"github.com/rpattn/engcrm/internal/smartlist"
)

var errBadInput = errors.New("bad input")

// Error codes carried in the "code" extension.
const (
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodeStaleFilters      = "STALE_FILTERS"
	CodeValueTypeMismatch = "VALUE_TYPE_MISMATCH"
	CodeNotFound          = "NOT_FOUND"
	CodeForbidden         = "FORBIDDEN"
	CodeBadUserInput      = "BAD_USER_INPUT"
	CodeInternal          = "INTERNAL"
)

// presentError turns a resolver error into a GraphQL error. Store failures
// are logged and hidden behind a generic message.
func presentError(logger *zap.Logger, path ast.Path, pos *ast.Position, err error) *gqlerror.Error {
	var (
		listErrs   smartlist.ValidationErrors
		compileErr *smartlist.CompileError
	)

	out := &gqlerror.Error{Path: path, Extensions: map[string]any{}}
	if pos != nil {
		out.Locations = []gqlerror.Location{{Line: pos.Line, Column: pos.Column}}
	}

	switch {
	case errors.As(err, &listErrs):
		out.Message = "invalid filters"
		out.Extensions["code"] = CodeValidationFailed
		out.Extensions["details"] = listErrs
	case errors.As(err, &compileErr):
		out.Message = "saved filters are no longer valid"
		if errors.Is(err, smartlist.ErrSchemaDrift) {
			out.Message = "saved filters reference fields that no longer exist"
		}
		out.Extensions["code"] = CodeStaleFilters
		out.Extensions["details"] = compileErr.ValidationError
	case errors.Is(err, smartlist.ErrValueTypeMismatch):
		out.Message = err.Error()
		out.Extensions["code"] = CodeValueTypeMismatch
	case errors.Is(err, repository.ErrNotFound):
		out.Message = "not found"
		out.Extensions["code"] = CodeNotFound
	case errors.Is(err, auth.ErrMissingScope):
		out.Message = err.Error()
		out.Extensions["code"] = CodeForbidden
	case errors.Is(err, errBadInput):
		out.Message = err.Error()
		out.Extensions["code"] = CodeBadUserInput
	default:
		logger.Error("graphql resolver failed", zap.String("path", path.String()), zap.Error(err))
		out.Message = "internal error"
		out.Extensions["code"] = CodeInternal
	}
	return out
}
