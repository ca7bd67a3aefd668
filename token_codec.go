package register

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenCodec turns typed token values into opaque signed strings and back.
// Decode failures are data, not errors: every structural, signature, expiry,
// or wrong-variant problem collapses to a false second return, with the reason
// logged. Only Encode surfaces errors, since a structurally invalid encode
// input is a programmer mistake.
type TokenCodec interface {
	Encode(token Token) (string, error)
	Decode(kind TokenKind, raw string) (Token, bool)
	DecodeVerification(raw string) (*VerificationToken, bool)
	DecodeApprobation(raw string) (*ApprobationToken, bool)
	DecodeRecovery(raw string) (*RecoveryToken, bool)
	DecodeAny(raw string) (Token, bool)
	DecodeExpired(raw string) (Token, bool)
	IsValid(raw string) bool
	IsValidIgnoringExpiry(raw string) bool

	GenerateVerificationToken(user *User, process Mode) (*VerificationToken, error)
	GenerateApprobationToken(user, approver *User) (*ApprobationToken, error)
	GenerateRecoveryToken(user *User, useSecondary bool) (*RecoveryToken, error)
}

// tokenCodec implements TokenCodec. It is stateless beyond the read-only
// signing key and clock, and safe for unlimited concurrent use.
type tokenCodec struct {
	signingKey     []byte
	expirationDays int
	issuer         string
	now            func() time.Time
	logger         Logger
}

// CodecOption customizes codec construction
type CodecOption func(*tokenCodec)

// WithCodecClock injects a custom clock (useful for tests)
func WithCodecClock(clock func() time.Time) CodecOption {
	return func(c *tokenCodec) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewTokenCodec creates a new TokenCodec instance
func NewTokenCodec(signingKey []byte, expirationDays int, issuer string, logger Logger, opts ...CodecOption) TokenCodec {
	if logger == nil {
		logger = defLogger{}
	}
	if expirationDays <= 0 {
		expirationDays = DefaultTokenExpirationDays
	}

	codec := &tokenCodec{
		signingKey:     signingKey,
		expirationDays: expirationDays,
		issuer:         issuer,
		now:            time.Now,
		logger:         logger,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(codec)
		}
	}

	return codec
}

// Encode validates the token fields and produces a signed string
func (c *tokenCodec) Encode(token Token) (string, error) {
	if token == nil {
		return "", errors.New("token must not be nil", errors.CategoryValidation).
			WithTextCode(TextCodeInvalidToken)
	}

	if err := validateEncodeInput(token); err != nil {
		return "", err
	}

	claims := claimsFromToken(token, c.issuer)
	signed := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	raw, err := signed.SignedString(c.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign token")
	}

	return raw, nil
}

// Decode returns the typed token only when the signature verifies, every
// validation rule holds, and the decoded kind equals the expected one.
func (c *tokenCodec) Decode(kind TokenKind, raw string) (Token, bool) {
	claims, ok := c.parse(raw, true)
	if !ok {
		return nil, false
	}

	if claims.Kind != kind {
		c.logger.Debug("token codec decode kind mismatch", "want", kind, "got", claims.Kind)
		return nil, false
	}

	return tokenFromClaims(claims)
}

// DecodeVerification decodes the verification variant
func (c *tokenCodec) DecodeVerification(raw string) (*VerificationToken, bool) {
	token, ok := c.Decode(TokenKindVerification, raw)
	if !ok {
		return nil, false
	}
	verification, ok := token.(*VerificationToken)
	return verification, ok
}

// DecodeApprobation decodes the approbation variant
func (c *tokenCodec) DecodeApprobation(raw string) (*ApprobationToken, bool) {
	token, ok := c.Decode(TokenKindApprobation, raw)
	if !ok {
		return nil, false
	}
	approbation, ok := token.(*ApprobationToken)
	return approbation, ok
}

// DecodeRecovery decodes the recovery variant
func (c *tokenCodec) DecodeRecovery(raw string) (*RecoveryToken, bool) {
	token, ok := c.Decode(TokenKindRecovery, raw)
	if !ok {
		return nil, false
	}
	recovery, ok := token.(*RecoveryToken)
	return recovery, ok
}

// DecodeAny accepts any recognized variant
func (c *tokenCodec) DecodeAny(raw string) (Token, bool) {
	claims, ok := c.parse(raw, true)
	if !ok {
		return nil, false
	}
	return tokenFromClaims(claims)
}

// DecodeExpired applies every rule except expiry. The HTTP layer uses it to
// tell an invalid token apart from an expired one.
func (c *tokenCodec) DecodeExpired(raw string) (Token, bool) {
	claims, ok := c.parse(raw, false)
	if !ok {
		return nil, false
	}
	return tokenFromClaims(claims)
}

// IsValid reports whether the raw string passes every validation rule
func (c *tokenCodec) IsValid(raw string) bool {
	_, ok := c.parse(raw, true)
	return ok
}

// IsValidIgnoringExpiry is IsValid without the expiry rule
func (c *tokenCodec) IsValidIgnoringExpiry(raw string) bool {
	_, ok := c.parse(raw, false)
	return ok
}

// GenerateVerificationToken mints a verification token for the user. No token
// is needed when no verification is configured, so ModeNone yields nil.
func (c *tokenCodec) GenerateVerificationToken(user *User, process Mode) (*VerificationToken, error) {
	if process == ModeNone {
		return nil, nil
	}

	if !RequiresVerification(process) {
		return nil, errors.New("unknown verification process", errors.CategoryValidation).
			WithMetadata(map[string]any{"process": process})
	}

	if user == nil || user.ID == uuid.Nil {
		return nil, errors.New("user must have an id to mint a token", errors.CategoryValidation)
	}

	return &VerificationToken{
		TokenCommon: c.freshCommon(user),
		Process:     process,
	}, nil
}

// GenerateApprobationToken mints a supervisor sign-off token
func (c *tokenCodec) GenerateApprobationToken(user, approver *User) (*ApprobationToken, error) {
	if user == nil || user.ID == uuid.Nil {
		return nil, errors.New("user must have an id to mint a token", errors.CategoryValidation)
	}
	if approver == nil || approver.ID == uuid.Nil {
		return nil, errors.New("approver must have an id to mint a token", errors.CategoryValidation)
	}

	return &ApprobationToken{
		TokenCommon:      c.freshCommon(user),
		ApproverID:       approver.ID,
		ApproverUsername: approver.Username,
	}, nil
}

// GenerateRecoveryToken mints a password recovery token targeting the
// secondary channel type only when one exists, else the preferred channel.
func (c *tokenCodec) GenerateRecoveryToken(user *User, useSecondary bool) (*RecoveryToken, error) {
	if user == nil || user.ID == uuid.Nil {
		return nil, errors.New("user must have an id to mint a token", errors.CategoryValidation)
	}

	return &RecoveryToken{
		TokenCommon: c.freshCommon(user),
		Channel:     user.RecoveryChannel(useSecondary).Type,
	}, nil
}

func (c *tokenCodec) freshCommon(user *User) TokenCommon {
	now := c.now()
	return TokenCommon{
		ID:        uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Duration(c.expirationDays) * 24 * time.Hour),
		UserID:    user.ID,
		Username:  user.Username,
		Locale:    user.Locale,
	}
}

// parse verifies the signature and runs the validation rules. Claims
// validation is done by hand so the expired path can share every other rule.
func (c *tokenCodec) parse(raw string, checkExpiry bool) (*TokenClaims, bool) {
	token, err := jwt.ParseWithClaims(raw, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.signingKey, nil
	}, jwt.WithoutClaimsValidation())

	if err != nil {
		c.logger.Debug("token codec parse failed", "error", err)
		return nil, false
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok {
		c.logger.Debug("token codec could not map claims")
		return nil, false
	}

	if reason := c.validateClaims(claims, checkExpiry); reason != "" {
		c.logger.Debug("token codec validation failed", "reason", reason)
		return nil, false
	}

	return claims, true
}

func (c *tokenCodec) validateClaims(claims *TokenClaims, checkExpiry bool) string {
	now := c.now()

	if claims.RegisteredClaims.ID == "" {
		return "missing token id"
	}
	if claims.RegisteredClaims.Issuer != c.issuer {
		return "issuer mismatch"
	}
	if claims.RegisteredClaims.IssuedAt == nil {
		return "missing issued at"
	}
	if claims.RegisteredClaims.IssuedAt.After(now) {
		return "issued in the future"
	}
	if claims.RegisteredClaims.ExpiresAt == nil {
		return "missing expiry"
	}
	if !claims.RegisteredClaims.ExpiresAt.After(claims.RegisteredClaims.IssuedAt.Time) {
		return "expiry not after issue"
	}
	if checkExpiry && !claims.RegisteredClaims.ExpiresAt.After(now) {
		return "token expired"
	}
	if claims.RegisteredClaims.Subject == "" {
		return "missing subject username"
	}
	if _, err := uuid.Parse(claims.UID); err != nil {
		return "missing or invalid subject user id"
	}

	switch claims.Kind {
	case TokenKindVerification:
		if !RequiresVerification(claims.Process) {
			return "unknown verification process"
		}
	case TokenKindApprobation:
		if claims.ApproverUsername == "" {
			return "missing approver username"
		}
		if _, err := uuid.Parse(claims.ApproverID); err != nil {
			return "missing or invalid approver id"
		}
	case TokenKindRecovery:
		if !IsValidChannelType(claims.Channel) {
			return "unknown recovery channel type"
		}
	default:
		return "unknown token kind"
	}

	return ""
}

func validateEncodeInput(token Token) error {
	common := token.Common()

	switch {
	case common.ID == "":
		return newInvalidTokenError("id")
	case common.IssuedAt.IsZero():
		return newInvalidTokenError("issued_at")
	case common.ExpiresAt.IsZero():
		return newInvalidTokenError("expires_at")
	case !common.ExpiresAt.After(common.IssuedAt):
		return newInvalidTokenError("expires_at")
	case common.UserID == uuid.Nil:
		return newInvalidTokenError("user_id")
	case common.Username == "":
		return newInvalidTokenError("username")
	}

	switch t := token.(type) {
	case *VerificationToken:
		if !RequiresVerification(t.Process) {
			return newInvalidTokenError("process")
		}
	case *ApprobationToken:
		if t.ApproverID == uuid.Nil {
			return newInvalidTokenError("approver_id")
		}
		if t.ApproverUsername == "" {
			return newInvalidTokenError("approver_username")
		}
	case *RecoveryToken:
		if !IsValidChannelType(t.Channel) {
			return newInvalidTokenError("channel")
		}
	default:
		return errors.New("unknown token variant", errors.CategoryValidation).
			WithTextCode(TextCodeInvalidToken)
	}

	return nil
}
