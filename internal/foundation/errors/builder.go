package errors

// ErrorBuilder provides a fluent API for creating ClassifiedError instances.
type ErrorBuilder struct {
	category ErrorCategory
	severity ErrorSeverity
	message  string
	cause    error
	context  ErrorContext
}

// NewError creates a new ErrorBuilder with the specified category and message.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{
		category: category,
		severity: SeverityError,
		message:  message,
		context:  make(ErrorContext),
	}
}

// WrapError creates a new ErrorBuilder that wraps an existing error.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{
		category: category,
		severity: SeverityError,
		message:  message,
		cause:    err,
		context:  make(ErrorContext),
	}
}

// WithSeverity sets the error severity.
func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.severity = severity
	return b
}

// WithContext adds a context key-value pair.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.context = b.context.Set(key, value)
	return b
}

// WithContextMap adds multiple context values.
func (b *ErrorBuilder) WithContextMap(ctx ErrorContext) *ErrorBuilder {
	b.context = b.context.Merge(ctx)
	return b
}

// WithCause sets the wrapped error.
func (b *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	b.cause = err
	return b
}

// Fatal sets the severity to fatal.
func (b *ErrorBuilder) Fatal() *ErrorBuilder {
	return b.WithSeverity(SeverityFatal)
}

// Warning sets the severity to warning.
func (b *ErrorBuilder) Warning() *ErrorBuilder {
	return b.WithSeverity(SeverityWarning)
}

// Build creates the final ClassifiedError.
func (b *ErrorBuilder) Build() *ClassifiedError {
	return &ClassifiedError{
		category: b.category,
		severity: b.severity,
		message:  b.message,
		cause:    b.cause,
		context:  b.context,
	}
}

// Convenience constructors for the common cases.

// ConfigError creates a fatal configuration error builder.
func ConfigError(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).Fatal()
}

// ValidationError creates a validation error builder.
func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message)
}

// ManifestError wraps a manifest load or parse failure.
func ManifestError(err error, path string) *ErrorBuilder {
	return WrapError(err, CategoryManifest, "manifest could not be used").
		Fatal().
		WithContext("path", path)
}

// RelocationError wraps a failure to stage files.
func RelocationError(err error) *ErrorBuilder {
	return WrapError(err, CategoryRelocation, "failed to stage book sources").Fatal()
}

// RestoreError wraps a failure to move staged files back.
func RestoreError(err error) *ErrorBuilder {
	return WrapError(err, CategoryRestore, "failed to restore book sources").Fatal()
}

// ProcessError wraps an external process failure for the given step.
func ProcessError(err error, step string) *ErrorBuilder {
	return WrapError(err, CategoryProcess, "external process failed").
		Fatal().
		WithContext("step", step)
}

// InternalError creates a fatal internal error builder.
func InternalError(err error, message string) *ErrorBuilder {
	return WrapError(err, CategoryInternal, message).Fatal()
}
