package register

import "fmt"

// Logger is the minimal logging surface used across the package
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the process-wide registration options. Implementations are
// expected to be immutable after startup; the signing key and issuer are
// injected at construction, never read from globals.
type Config interface {
	GetVerificationMode() Mode
	GetSigningKey() string
	GetTokenIssuer() string
	GetTokenExpirationDays() int
}

// SimpleConfig is a plain struct Config implementation
type SimpleConfig struct {
	VerificationMode    Mode
	SigningKey          string
	TokenIssuer         string
	TokenExpirationDays int
}

func (c SimpleConfig) GetVerificationMode() Mode { return c.VerificationMode }

func (c SimpleConfig) GetSigningKey() string { return c.SigningKey }

func (c SimpleConfig) GetTokenIssuer() string { return c.TokenIssuer }

func (c SimpleConfig) GetTokenExpirationDays() int {
	if c.TokenExpirationDays <= 0 {
		return DefaultTokenExpirationDays
	}
	return c.TokenExpirationDays
}

// DefaultTokenExpirationDays is used when the configuration does not set one
const DefaultTokenExpirationDays = 3

var _ Config = SimpleConfig{}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] REGISTER "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] REGISTER "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] REGISTER "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] REGISTER "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
