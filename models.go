package register

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model. CreatedAt, VerifiedAt, and RegisteredAt are
// write-once lifecycle stamps: RegisteredAt is only ever set after VerifiedAt,
// and UpdateUser rejects any payload that changes them.
type User struct {
	bun.BaseModel    `bun:"table:users,alias:usr"`
	ID               uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username         string     `bun:"username,notnull,unique" json:"username,omitempty"`
	PreferredChannel Channel    `bun:"embed:preferred_channel_" json:"preferred_channel,omitempty"`
	SecondaryChannel *Channel   `bun:"embed:secondary_channel_" json:"secondary_channel,omitempty"`
	PasswordHash     string     `bun:"password_hash" json:"password_hash,omitempty"`
	Enabled          bool       `bun:"enabled" json:"enabled"`
	Locale           string     `bun:"locale" json:"locale,omitempty"`
	Roles            []UserRole `bun:"roles" json:"roles,omitempty"`
	CreatedAt        *time.Time `bun:"created_at,nullzero" json:"created_at,omitempty"`
	VerifiedAt       *time.Time `bun:"verified_at,nullzero" json:"verified_at,omitempty"`
	RegisteredAt     *time.Time `bun:"registered_at,nullzero" json:"registered_at,omitempty"`
	LockedAt         *time.Time `bun:"locked_at,nullzero" json:"locked_at,omitempty"`
	ExpiresAt        *time.Time `bun:"expires_at,nullzero" json:"expires_at,omitempty"`
	UpdatedAt        *time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// IsVerified reports whether the preferred channel owner proved receipt
func (u *User) IsVerified() bool {
	return u != nil && u.VerifiedAt != nil
}

// IsRegistered reports whether the account completed every confirmation step
func (u *User) IsRegistered() bool {
	return u != nil && u.RegisteredAt != nil
}

// IsLocked reports whether the account is administratively locked
func (u *User) IsLocked() bool {
	return u != nil && u.LockedAt != nil
}

// HasSecondaryChannel reports whether a usable secondary channel is set
func (u *User) HasSecondaryChannel() bool {
	return u != nil && u.SecondaryChannel != nil && !u.SecondaryChannel.IsZero()
}

// RecoveryChannel picks the channel a recovery token should target. The
// secondary channel is only used when it exists and the caller asked for it.
func (u *User) RecoveryChannel(useSecondary bool) Channel {
	if useSecondary && u.HasSecondaryChannel() {
		return *u.SecondaryChannel
	}
	return u.PreferredChannel
}

// HasRole reports whether the user carries the given role
func (u *User) HasRole(role UserRole) bool {
	if u == nil {
		return false
	}
	return HasRole(u.Roles, role)
}

// Clone returns a deep copy, used to compare update payloads against the
// persisted record without aliasing timestamps.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}

	clone := *u
	clone.Roles = append([]UserRole(nil), u.Roles...)
	if u.SecondaryChannel != nil {
		secondary := *u.SecondaryChannel
		clone.SecondaryChannel = &secondary
	}
	clone.CreatedAt = cloneTime(u.CreatedAt)
	clone.VerifiedAt = cloneTime(u.VerifiedAt)
	clone.RegisteredAt = cloneTime(u.RegisteredAt)
	clone.LockedAt = cloneTime(u.LockedAt)
	clone.ExpiresAt = cloneTime(u.ExpiresAt)
	clone.UpdatedAt = cloneTime(u.UpdatedAt)
	return &clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func equalTimes(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func equalChannelPtr(a, b *Channel) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equals(*b)
}
