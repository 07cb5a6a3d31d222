package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a failure category
type ErrorCode string

const (
	ErrMalformedMetadata       ErrorCode = "MALFORMED_METADATA"
	ErrUnknownKind             ErrorCode = "UNKNOWN_KIND"
	ErrDuplicateName           ErrorCode = "DUPLICATE_NAME"
	ErrInvalidName             ErrorCode = "INVALID_NAME"
	ErrInvalidBox              ErrorCode = "INVALID_BOX"
	ErrMissingTemplateImage    ErrorCode = "MISSING_TEMPLATE_IMAGE"
	ErrTemplateNotFound        ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrNotANumber              ErrorCode = "NOT_A_NUMBER"
	ErrDirectoryCreationFailed ErrorCode = "DIRECTORY_CREATION_FAILED"
	ErrOutOfBoundsBox          ErrorCode = "OUT_OF_BOUNDS_BOX"
	ErrCaptureFailed           ErrorCode = "CAPTURE_FAILED"
)

// MapperError is a structured error carrying a code and optional details
type MapperError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *MapperError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *MapperError) Unwrap() error {
	return e.Err
}

// NewMalformedMetadata reports an unparsable or ill-shaped metadata line.
func NewMalformedMetadata(line int, reason string) *MapperError {
	return &MapperError{
		Code:    ErrMalformedMetadata,
		Message: fmt.Sprintf("line %d: %s", line, reason),
		Details: map[string]any{"line": line},
	}
}

// NewUnknownKind reports an extraction kind outside the closed set.
func NewUnknownKind(kind string) *MapperError {
	return &MapperError{
		Code:    ErrUnknownKind,
		Message: fmt.Sprintf("unknown extraction kind %q", kind),
		Details: map[string]any{"kind": kind},
	}
}

// NewDuplicateName reports two rules sharing a name.
func NewDuplicateName(name string) *MapperError {
	return &MapperError{
		Code:    ErrDuplicateName,
		Message: fmt.Sprintf("rule %q already exists", name),
		Details: map[string]any{"name": name},
	}
}

// NewInvalidName reports a rule name that cannot name a generated operation.
func NewInvalidName(name, reason string) *MapperError {
	return &MapperError{
		Code:    ErrInvalidName,
		Message: fmt.Sprintf("invalid rule name %q: %s", name, reason),
		Details: map[string]any{"name": name},
	}
}

// NewInvalidBox reports a box with a non-positive dimension.
func NewInvalidBox(name string, width, height int) *MapperError {
	return &MapperError{
		Code:    ErrInvalidBox,
		Message: fmt.Sprintf("rule %q: box must have positive size, got %dx%d", name, width, height),
		Details: map[string]any{"name": name, "width": width, "height": height},
	}
}

// NewMissingTemplateImage reports a template-match rule without a usable image path.
func NewMissingTemplateImage(name, path string) *MapperError {
	msg := fmt.Sprintf("rule %q: template image is required", name)
	if path != "" {
		msg = fmt.Sprintf("rule %q: template image %q does not exist", name, path)
	}
	return &MapperError{
		Code:    ErrMissingTemplateImage,
		Message: msg,
		Details: map[string]any{"name": name, "path": path},
	}
}

// NewTemplateNotFound reports a template image that could not be loaded.
func NewTemplateNotFound(path string, err error) *MapperError {
	return &MapperError{
		Code:    ErrTemplateNotFound,
		Message: fmt.Sprintf("cannot load template %q", path),
		Details: map[string]any{"path": path},
		Err:     err,
	}
}

// NewNotANumber reports recognized text that does not parse as a number.
func NewNotANumber(text string) *MapperError {
	return &MapperError{
		Code:    ErrNotANumber,
		Message: fmt.Sprintf("recognized text %q is not a number", text),
		Details: map[string]any{"text": text},
	}
}

// NewDirectoryCreationFailed reports that a session folder could not be prepared.
func NewDirectoryCreationFailed(path string, err error) *MapperError {
	return &MapperError{
		Code:    ErrDirectoryCreationFailed,
		Message: fmt.Sprintf("cannot create %q", path),
		Details: map[string]any{"path": path},
		Err:     err,
	}
}

// NewOutOfBoundsBox reports a box that does not fit inside its container.
func NewOutOfBoundsBox(name string, box, bounds [4]int) *MapperError {
	return &MapperError{
		Code: ErrOutOfBoundsBox,
		Message: fmt.Sprintf("rule %q: box %v lies outside %dx%d area",
			name, box, bounds[2], bounds[3]),
		Details: map[string]any{"name": name, "box": box, "bounds": bounds},
	}
}

// NewCaptureFailed wraps an error returned by a frame source.
func NewCaptureFailed(err error) *MapperError {
	return &MapperError{
		Code:    ErrCaptureFailed,
		Message: "frame capture failed",
		Err:     err,
	}
}

// Is reports whether err, or anything it wraps, is a MapperError with the given code.
func Is(err error, code ErrorCode) bool {
	var mErr *MapperError
	if stderrors.As(err, &mErr) {
		return mErr.Code == code
	}
	return false
}

// CodeOf returns the code of the first MapperError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var mErr *MapperError
	if stderrors.As(err, &mErr) {
		return mErr.Code
	}
	return ""
}
