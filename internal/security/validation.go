package security

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	apperrors "mt5-bridge/internal/errors"
)

// MaxCommentLength is the longest order comment the terminal keeps.
const MaxCommentLength = 31

var (
	// Broker symbols carry suffixes and prefixes: EURUSD.m, #AAPL, US30-cash.
	symbolPattern = regexp.MustCompile(`^[A-Za-z0-9._#&+-]{1,32}$`)

	// Group patterns add wildcards, exclusions and list separators.
	groupPattern = regexp.MustCompile(`^[A-Za-z0-9._#&+*!?, -]{1,128}$`)

	keyValuePattern  = regexp.MustCompile(`(?i)(password|passwd|pwd|token|secret|api[_-]?key)[=:\s]+["']?([^\s"']{4,})["']?`)
	longTokenPattern = regexp.MustCompile(`[A-Za-z0-9]{32,}`)

	injectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(union\s+select|drop\s+table|insert\s+into|delete\s+from)`),
		regexp.MustCompile(`[;&|$\x60]`),
		regexp.MustCompile(`(?i)(rm\s+-rf|sh\s+-c|\beval\b|\bexec\b)`),
	}
)

// InputValidator checks raw tool parameters before they reach a service.
// Strict mode additionally rejects injection-looking free text.
type InputValidator struct {
	strictMode bool
}

// NewInputValidator creates a new input validator.
func NewInputValidator(strictMode bool) *InputValidator {
	return &InputValidator{strictMode: strictMode}
}

// ValidateSymbol validates a symbol name.
func (v *InputValidator) ValidateSymbol(symbol string) error {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return apperrors.NewValidationError("symbol", symbol, "symbol cannot be empty")
	}
	if !symbolPattern.MatchString(symbol) {
		return apperrors.NewValidationError("symbol", symbol, "invalid symbol format")
	}
	return nil
}

// ValidateGroup validates a symbol group pattern such as "*USD*,!*JPY*".
func (v *InputValidator) ValidateGroup(group string) error {
	group = strings.TrimSpace(group)
	if group == "" {
		return apperrors.NewValidationError("group", group, "group cannot be empty")
	}
	if !groupPattern.MatchString(group) {
		return apperrors.NewValidationError("group", group, "invalid group pattern")
	}
	return nil
}

// ValidateCurrency validates a three letter currency code.
func (v *InputValidator) ValidateCurrency(currency string) error {
	if len(currency) != 3 {
		return apperrors.NewValidationError("currency", currency, "currency must be a 3 letter code")
	}
	for _, r := range currency {
		if !unicode.IsLetter(r) {
			return apperrors.NewValidationError("currency", currency, "currency must be a 3 letter code")
		}
	}
	return nil
}

// ValidateTicket validates a position or order ticket.
func (v *InputValidator) ValidateTicket(ticket int64) error {
	if ticket <= 0 {
		return apperrors.NewValidationError("ticket", ticket, "ticket must be positive")
	}
	return nil
}

// ParseTicket converts a ticket given as text.
func (v *InputValidator) ParseTicket(raw string) (int64, error) {
	ticket, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, apperrors.NewValidationError("ticket", raw, "ticket must be an integer")
	}
	return ticket, v.ValidateTicket(ticket)
}

// ValidateComment validates an order comment.
func (v *InputValidator) ValidateComment(comment string) error {
	if len(comment) > MaxCommentLength {
		return apperrors.NewValidationError("comment", comment, fmt.Sprintf("comment too long (max %d characters)", MaxCommentLength))
	}
	if v.strictMode && v.containsInjection(comment) {
		reason := "potentially dangerous content detected"
		return apperrors.NewSecurityError("comment", reason, apperrors.NewValidationError("comment", MaskSensitive(comment), reason))
	}
	return nil
}

func (v *InputValidator) containsInjection(input string) bool {
	for _, pattern := range injectionPatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}

// SanitizeText removes control characters from free-form text.
func SanitizeText(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r >= 32 && r != 127 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MaskSensitive masks secrets embedded in free-form text.
func MaskSensitive(input string) string {
	result := keyValuePattern.ReplaceAllString(input, "${1}=****")
	return longTokenPattern.ReplaceAllStringFunc(result, MaskCredential)
}

// MaskCredential masks a credential value for logging.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// ContainsSensitiveData checks if a string contains secret-looking data.
func ContainsSensitiveData(input string) bool {
	return keyValuePattern.MatchString(input) || longTokenPattern.MatchString(input)
}
