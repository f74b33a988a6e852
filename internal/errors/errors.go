// Package errors defines typed decision-engine errors with educational messages.
// Every error includes a Hint for operator guidance and a DocsURL for reference.
package errors

import "fmt"

// VaultError is the base error type for all factsentry errors.
// It includes educational Hint and DocsURL fields for operator guidance.
type VaultError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
	DocsURL string `json:"docs_url,omitempty"`
}

// Error implements the error interface.
func (e *VaultError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("[%d] %s (hint: %s)", e.Code, e.Message, e.Hint)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Predefined errors — each includes an educational hint and documentation URL.
var (
	ErrRequestExpired   = &VaultError{Code: 410, Message: "Approval request expired or not found", Hint: "Approval challenges expire 15 minutes after creation and can be resolved at most once", DocsURL: "https://factsentry.dev/docs/approvals"}
	ErrInvalidRequest   = &VaultError{Code: 400, Message: "Invalid request format", Hint: "Context requests need purpose.category, purpose.action, and recipient.value", DocsURL: "https://factsentry.dev/docs/requests"}
	ErrVaultUnavailable = &VaultError{Code: 503, Message: "Vault unavailable", Hint: "Check that the vault file exists and is readable. Run 'factsentry validate'", DocsURL: "https://factsentry.dev/docs/vault"}
	ErrRateLimited      = &VaultError{Code: 429, Message: "Rate limit exceeded", Hint: "Wait before retrying. Configure security.rate_limit in factsentry.yaml", DocsURL: "https://factsentry.dev/docs/rate-limit"}
	ErrMethodNotAllowed = &VaultError{Code: 405, Message: "Method not allowed", Hint: "Decision endpoints accept POST; listing endpoints accept GET", DocsURL: "https://factsentry.dev/docs/api"}
	ErrNotFound         = &VaultError{Code: 404, Message: "Unknown endpoint", Hint: "See the API reference for available routes", DocsURL: "https://factsentry.dev/docs/api"}
)
