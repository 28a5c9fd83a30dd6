package cli

import (
	"errors"
	"io/fs"

	"github.com/roach88/patternweave/internal/pattern"
)

// Command error codes (E0xx).
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeConfig      = "E008" // Configuration error
	ErrCodeStore       = "E009" // History database error
	ErrCodeUsage       = "E010" // Invalid flag combination
)

// Pattern error codes (E1xx), one per pattern.ErrorKind.
const (
	ErrCodeMalformed    = "E101"
	ErrCodeSchema       = "E102"
	ErrCodeVariableType = "E103"
	ErrCodeEmptyInput   = "E104"
	ErrCodeResource     = "E105"
)

var kindCodes = map[pattern.ErrorKind]string{
	pattern.ErrMalformedDocument:    ErrCodeMalformed,
	pattern.ErrSchemaViolation:      ErrCodeSchema,
	pattern.ErrVariableTypeConflict: ErrCodeVariableType,
	pattern.ErrEmptyInput:           ErrCodeEmptyInput,
	pattern.ErrResource:             ErrCodeResource,
}

// codeFor maps err to a CLI error code.
func codeFor(err error) string {
	if kind, ok := pattern.KindOf(err); ok {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrCodeNotFound
		}
		if code, ok := kindCodes[kind]; ok {
			return code
		}
	}
	return ErrCodeGeneric
}

// exitCodeFor returns ExitFailure for problems in the pattern documents
// themselves and ExitCommandError for everything else.
func exitCodeFor(err error) int {
	if pattern.IsInputError(err) {
		return ExitFailure
	}
	return ExitCommandError
}

// patternErrorDetails is the JSON detail block of a pattern error.
type patternErrorDetails struct {
	Kind    pattern.ErrorKind `json:"kind"`
	Element string            `json:"element,omitempty"`
	Source  string            `json:"source,omitempty"`
	Line    int               `json:"line,omitempty"`
}

func detailsFor(err error) any {
	var perr *pattern.Error
	if !errors.As(err, &perr) {
		return nil
	}
	return patternErrorDetails{
		Kind:    perr.Kind,
		Element: perr.Element,
		Source:  perr.Source,
		Line:    perr.Line,
	}
}
