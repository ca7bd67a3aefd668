package register

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind discriminates the token variants on the wire
type TokenKind = string

const (
	// TokenKindVerification proves receipt on the preferred channel
	TokenKindVerification TokenKind = "verification"
	// TokenKindApprobation carries a supervisor sign-off (two-step mode only)
	TokenKindApprobation TokenKind = "approbation"
	// TokenKindRecovery authorizes a password recovery
	TokenKindRecovery TokenKind = "recovery"
)

// IsValidTokenKind checks the kind is one of the known variants
func IsValidTokenKind(k TokenKind) bool {
	switch k {
	case TokenKindVerification, TokenKindApprobation, TokenKindRecovery:
		return true
	default:
		return false
	}
}

// TokenCommon holds the fields shared by every token variant
type TokenCommon struct {
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
	UserID    uuid.UUID
	Username  string
	Locale    string
}

// Token is the closed union over the three variants. Decoding matches on the
// kind claim explicitly; a token decoded as the wrong variant is absent.
type Token interface {
	Kind() TokenKind
	Common() TokenCommon
}

// VerificationToken confirms ownership of the preferred channel
type VerificationToken struct {
	TokenCommon
	Process Mode
}

// Kind returns the variant discriminator
func (t *VerificationToken) Kind() TokenKind { return TokenKindVerification }

// Common returns the shared fields
func (t *VerificationToken) Common() TokenCommon { return t.TokenCommon }

// ApprobationToken records which supervisor signs off a registration
type ApprobationToken struct {
	TokenCommon
	ApproverID       uuid.UUID
	ApproverUsername string
}

// Kind returns the variant discriminator
func (t *ApprobationToken) Kind() TokenKind { return TokenKindApprobation }

// Common returns the shared fields
func (t *ApprobationToken) Common() TokenCommon { return t.TokenCommon }

// RecoveryToken authorizes a password change over the channel it was sent to
type RecoveryToken struct {
	TokenCommon
	Channel ChannelType
}

// Kind returns the variant discriminator
func (t *RecoveryToken) Kind() TokenKind { return TokenKindRecovery }

// Common returns the shared fields
func (t *RecoveryToken) Common() TokenCommon { return t.TokenCommon }

var (
	_ Token = (*VerificationToken)(nil)
	_ Token = (*ApprobationToken)(nil)
	_ Token = (*RecoveryToken)(nil)
)

// TokenClaims is the wire shape of every token variant: standard registered
// claims (jti, iss, sub=username, iat, exp) plus the union payload.
type TokenClaims struct {
	jwt.RegisteredClaims
	UID              string `json:"uid,omitempty"`
	Locale           string `json:"locale,omitempty"`
	Kind             string `json:"kind,omitempty"`
	Process          string `json:"process,omitempty"`
	ApproverID       string `json:"approver_id,omitempty"`
	ApproverUsername string `json:"approver_username,omitempty"`
	Channel          string `json:"channel,omitempty"`
}

func claimsFromToken(token Token, issuer string) *TokenClaims {
	common := token.Common()

	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        common.ID,
			Issuer:    issuer,
			Subject:   common.Username,
			IssuedAt:  jwt.NewNumericDate(common.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(common.ExpiresAt),
		},
		UID:    common.UserID.String(),
		Locale: common.Locale,
		Kind:   token.Kind(),
	}

	switch t := token.(type) {
	case *VerificationToken:
		claims.Process = t.Process
	case *ApprobationToken:
		claims.ApproverID = t.ApproverID.String()
		claims.ApproverUsername = t.ApproverUsername
	case *RecoveryToken:
		claims.Channel = t.Channel
	}

	return claims
}

// tokenFromClaims rebuilds the typed union value. It assumes the claims have
// already passed structural validation.
func tokenFromClaims(claims *TokenClaims) (Token, bool) {
	userID, err := uuid.Parse(claims.UID)
	if err != nil {
		return nil, false
	}

	common := TokenCommon{
		ID:       claims.RegisteredClaims.ID,
		UserID:   userID,
		Username: claims.RegisteredClaims.Subject,
		Locale:   claims.Locale,
	}
	if claims.RegisteredClaims.IssuedAt != nil {
		common.IssuedAt = claims.RegisteredClaims.IssuedAt.Time
	}
	if claims.RegisteredClaims.ExpiresAt != nil {
		common.ExpiresAt = claims.RegisteredClaims.ExpiresAt.Time
	}

	switch claims.Kind {
	case TokenKindVerification:
		return &VerificationToken{TokenCommon: common, Process: claims.Process}, true
	case TokenKindApprobation:
		approverID, err := uuid.Parse(claims.ApproverID)
		if err != nil {
			return nil, false
		}
		return &ApprobationToken{
			TokenCommon:      common,
			ApproverID:       approverID,
			ApproverUsername: claims.ApproverUsername,
		}, true
	case TokenKindRecovery:
		return &RecoveryToken{TokenCommon: common, Channel: claims.Channel}, true
	default:
		return nil, false
	}
}
