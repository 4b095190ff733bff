package llms

import "fmt"

// ProviderNotConfiguredError fires when no provider record matches the
// request's selection criteria (§4.1 provider selection, §7).
type ProviderNotConfiguredError struct {
	Selector string // provider id, kind, or model name that failed to resolve
}

func (e *ProviderNotConfiguredError) Error() string {
	return fmt.Sprintf("no provider configured for selector %q", e.Selector)
}

// ModelNotSupportedError fires when the requested model is not in the
// selected provider's supported model list.
type ModelNotSupportedError struct {
	ProviderKind string
	Model        string
}

func (e *ModelNotSupportedError) Error() string {
	return fmt.Sprintf("model %q is not supported by provider %q", e.Model, e.ProviderKind)
}

// TransportError wraps network/DNS failures (§7); timeouts are reported as
// a ProviderError with Timeout set instead.
type TransportError struct {
	ProviderKind string
	Err          error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error calling %s: %v", e.ProviderKind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError wraps an HTTP non-2xx response or a response parse failure
// from an LLM provider (§7). StatusCode is 0 for parse failures and for the
// synthetic "timeout" case (§4.1: "a timeout is surfaced as
// ProviderError(timeout)").
type ProviderError struct {
	ProviderKind string
	StatusCode   int
	Message      string
	Timeout      bool
	Err          error
}

func (e *ProviderError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("provider %s: timeout: %s", e.ProviderKind, e.Message)
	}
	return fmt.Sprintf("provider %s: HTTP %d: %s", e.ProviderKind, e.StatusCode, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }
