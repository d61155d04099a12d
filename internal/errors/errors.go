package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ErrorType groups error codes by the layer that raised them
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeAI         ErrorType = "ai"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Error codes shared by the CLI and the HTTP API
const (
	ErrCodeFileNotFound     = "FILE_NOT_FOUND"
	ErrCodeFileNotReadable  = "FILE_NOT_READABLE"
	ErrCodeInvalidFormat    = "INVALID_FORMAT"
	ErrCodeDuplicateID      = "DUPLICATE_CANDIDATE_ID"
	ErrCodeEmptyDataset     = "EMPTY_DATASET"
	ErrCodeInvalidQuery     = "INVALID_QUERY"
	ErrCodeInvalidPlan      = "INVALID_PLAN"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeInvalidConfig    = "INVALID_CONFIG"
	ErrCodeAIServiceFailed  = "AI_SERVICE_FAILED"
	ErrCodeAITimeout        = "AI_TIMEOUT"
	ErrCodeAIEmptyResponse  = "AI_EMPTY_RESPONSE"
	ErrCodeExportFailed     = "EXPORT_FAILED"
	ErrCodeWorkflowCanceled = "WORKFLOW_CANCELED"
)

// AppError carries a stable code and a message safe to show to callers.
// Cause keeps the underlying error for logs.
type AppError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"cause,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithContext attaches a key/value pair that LogError emits as an attribute
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func (e *AppError) attrs() []any {
	out := make([]any, 0, 6+2*len(e.Context))
	out = append(out, "error_type", e.Type, "error_code", e.Code, "error_message", e.Message)
	if e.Cause != nil {
		out = append(out, "cause", e.Cause.Error())
	}
	for key, value := range e.Context {
		out = append(out, key, value)
	}
	return out
}

func newAppError(typ ErrorType, code, message string, cause error) *AppError {
	return &AppError{Type: typ, Code: code, Message: message, Cause: cause}
}

func NewValidationError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeValidation, code, message, cause)
}

func NewIOError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeIO, code, message, cause)
}

func NewAIError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeAI, code, message, cause)
}

func NewConfigError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeConfig, code, message, cause)
}

func NewInternalError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, code, message, cause)
}

func asAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := stderrors.As(err, &appErr)
	return appErr, ok
}

// IsType reports whether err wraps an AppError of the given type.
func IsType(err error, typ ErrorType) bool {
	appErr, ok := asAppError(err)
	return ok && appErr.Type == typ
}

// IsCode reports whether err wraps an AppError with the given code.
func IsCode(err error, code string) bool {
	appErr, ok := asAppError(err)
	return ok && appErr.Code == code
}

// UserMessage returns the AppError message when err wraps one, else err.Error().
func UserMessage(err error) string {
	if appErr, ok := asAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}

// Logger is a JSON slog logger that knows how to unpack AppError
type Logger struct {
	logger *slog.Logger
}

// NewWithWriter creates a logger writing JSON records to w. Commands that
// print data pass stderr so stdout stays clean.
func NewWithWriter(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{logger: slog.New(handler)}
}

// ParseLevel maps a configured level name to its slog level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

// LogError logs err at error level. AppError fields and context become
// attributes; any other error is logged under "error".
func (l *Logger) LogError(err error, message string, args ...any) {
	var attrs []any
	if appErr, ok := asAppError(err); ok {
		attrs = appErr.attrs()
	} else {
		attrs = []any{"error", err.Error()}
	}
	l.logger.Error(message, append(attrs, args...)...)
}

func (l *Logger) Info(message string, args ...any)  { l.logger.Info(message, args...) }
func (l *Logger) Debug(message string, args ...any) { l.logger.Debug(message, args...) }
func (l *Logger) Warn(message string, args ...any)  { l.logger.Warn(message, args...) }

// With returns a logger that always includes the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}
