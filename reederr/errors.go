// Package reederr defines the error taxonomy shared across the core:
// infrastructure, data, template, validation, authorisation, configuration,
// and plugin failures, each carrying an HTTP status mapping and an optional
// recovery hint for callers.
package reederr

import "fmt"

// Kind classifies an Error into one of the taxonomy's top-level categories.
type Kind string

const (
	KindInfrastructure Kind = "infrastructure"
	KindData           Kind = "data"
	KindTemplate       Kind = "template"
	KindValidation     Kind = "validation"
	KindAuthorisation  Kind = "authorisation"
	KindConfiguration  Kind = "configuration"
	KindPlugin         Kind = "plugin"
)

// Code names a specific failure within a Kind.
type Code string

const (
	CodeDurableStoreError      Code = "durable-store-error"
	CodeHotStoreError          Code = "hot-store-error"
	CodeIOError                Code = "io-error"
	CodeRebuildInProgress      Code = "rebuild-in-progress"
	CodeEntityNotFound         Code = "entity-not-found"
	CodeSemanticNameTaken      Code = "semantic-name-taken"
	CodeWouldCycle             Code = "would-cycle"
	CodeHasIncomingContainment Code = "has-incoming-containment"
	CodeInvalidPath            Code = "invalid-path"
	CodeUCGIntegrity           Code = "ucg-integrity"
	CodeTemplateNotFound       Code = "template-not-found"
	CodeRenderError            Code = "render-error"
	CodeSchemaViolation        Code = "schema-violation"
	CodeContentFirewall        Code = "content-firewall"
	CodePermissionDenied       Code = "permission-denied"
	CodeAuthenticationRequired Code = "authentication-required"
	CodeMissingConfig          Code = "missing-config"
	CodeInvalidConfig          Code = "invalid-config"
	CodePluginNotFound         Code = "plugin-not-found"
	CodePluginTimeout          Code = "plugin-timeout"
	CodePluginResourceExceeded Code = "plugin-resource-exceeded"
	CodePluginAPIMismatch      Code = "plugin-api-mismatch"
)

// RecoveryCategory suggests what the caller should do next.
type RecoveryCategory string

const (
	RetryOperation     RecoveryCategory = "RetryOperation"
	CheckConfiguration RecoveryCategory = "CheckConfiguration"
	FixData            RecoveryCategory = "FixData"
	UpdatePermissions  RecoveryCategory = "UpdatePermissions"
	ContactSupport     RecoveryCategory = "ContactSupport"
)

// RecoveryHint accompanies errors that surface to a caller rather than being
// locally recovered.
type RecoveryHint struct {
	Category   RecoveryCategory `json:"category"`
	Steps      []string         `json:"steps,omitempty"`
	CanRetry   bool             `json:"can_retry"`
	RetryAfter string           `json:"retry_after,omitempty"`
}

// Error is the structured error type returned by every core operation.
// Field and Rule are set for content-firewall denials; Key is set for
// missing-config errors.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Field   string
	Rule    string
	Key     string
	Hint    *RecoveryHint
	cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus maps the error's Kind/Code to the HTTP status code from §7.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindData:
		return 404
	case KindValidation:
		return 400
	case KindAuthorisation:
		if e.Code == CodeAuthenticationRequired {
			return 401
		}
		return 403
	case KindInfrastructure:
		return 503
	default:
		return 500
	}
}

func newErr(kind Kind, code Code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a causing error for %w-style unwrapping without changing
// the taxonomy classification.
func (e *Error) Wrap(cause error) *Error {
	e2 := *e
	e2.cause = cause
	return &e2
}

// WithHint attaches a recovery hint.
func (e *Error) WithHint(h RecoveryHint) *Error {
	e2 := *e
	e2.Hint = &h
	return &e2
}

func DurableStoreError(format string, args ...any) *Error {
	return newErr(KindInfrastructure, CodeDurableStoreError, format, args...).
		WithHint(RecoveryHint{Category: RetryOperation, CanRetry: true})
}

func HotStoreError(format string, args ...any) *Error {
	return newErr(KindInfrastructure, CodeHotStoreError, format, args...).
		WithHint(RecoveryHint{Category: RetryOperation, CanRetry: true})
}

func IOError(format string, args ...any) *Error {
	return newErr(KindInfrastructure, CodeIOError, format, args...)
}

func RebuildInProgress() *Error {
	return newErr(KindInfrastructure, CodeRebuildInProgress, "a CSV rebuild is already in progress")
}

func EntityNotFound(id string) *Error {
	return newErr(KindData, CodeEntityNotFound, "entity %s not found", id)
}

func SemanticNameTaken(tag, name string) *Error {
	return newErr(KindData, CodeSemanticNameTaken, "semantic name %q already used for discriminator %q", name, tag)
}

func WouldCycle(parent, child string) *Error {
	return newErr(KindData, CodeWouldCycle, "attaching %s under %s would create a cycle", child, parent)
}

func HasIncomingContainment(id string) *Error {
	return newErr(KindData, CodeHasIncomingContainment, "entity %s has incoming containment associations", id)
}

func InvalidPath(path string) *Error {
	return newErr(KindData, CodeInvalidPath, "invalid path %q", path)
}

func UCGIntegrity(format string, args ...any) *Error {
	return newErr(KindData, CodeUCGIntegrity, format, args...)
}

func TemplateNotFound(kind, path string) *Error {
	return newErr(KindTemplate, CodeTemplateNotFound, "%s %q not found in theme chain", kind, path)
}

func RenderError(format string, args ...any) *Error {
	return newErr(KindTemplate, CodeRenderError, format, args...)
}

func SchemaViolation(format string, args ...any) *Error {
	return newErr(KindValidation, CodeSchemaViolation, format, args...)
}

func ContentFirewall(rule, field string) *Error {
	e := newErr(KindValidation, CodeContentFirewall, "content firewall rule %q denied field %q", rule, field)
	e.Rule = rule
	e.Field = field
	return e
}

func PermissionDenied(action string) *Error {
	return newErr(KindAuthorisation, CodePermissionDenied, "permission denied for action %q", action).
		WithHint(RecoveryHint{Category: UpdatePermissions})
}

func AuthenticationRequired() *Error {
	return newErr(KindAuthorisation, CodeAuthenticationRequired, "authentication required")
}

func MissingConfig(key string) *Error {
	e := newErr(KindConfiguration, CodeMissingConfig, "missing required configuration key %q", key)
	e.Key = key
	return e.WithHint(RecoveryHint{Category: CheckConfiguration})
}

func InvalidConfig(format string, args ...any) *Error {
	return newErr(KindConfiguration, CodeInvalidConfig, format, args...).
		WithHint(RecoveryHint{Category: CheckConfiguration})
}

func PluginNotFound(id string) *Error {
	return newErr(KindPlugin, CodePluginNotFound, "plugin %q not found", id)
}

func PluginTimeout(id string) *Error {
	return newErr(KindPlugin, CodePluginTimeout, "plugin %q timed out", id)
}

func PluginResourceExceeded(id, resource string) *Error {
	return newErr(KindPlugin, CodePluginResourceExceeded, "plugin %q exceeded %s cap", id, resource)
}

func PluginAPIMismatch(id string) *Error {
	return newErr(KindPlugin, CodePluginAPIMismatch, "plugin %q uses an incompatible API version", id)
}

// As extracts a *Error from err, if any, mirroring errors.As without
// requiring callers to import errors for this one common case.
func As(err error) (*Error, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
