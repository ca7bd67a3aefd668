package register

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Outcome is the tri-state result of token driven transitions. The HTTP layer
// relies on it to tell 404 (subject missing) apart from 200 with result=false
// (transition inapplicable), so token problems never surface as errors.
type Outcome int8

const (
	// OutcomeAbsent means the referenced user does not exist
	OutcomeAbsent Outcome = iota
	// OutcomeRejected means the token or the user state disallows the transition
	OutcomeRejected
	// OutcomeApplied means the transition was applied and persisted
	OutcomeApplied
)

// Applied reports whether the transition went through
func (o Outcome) Applied() bool { return o == OutcomeApplied }

func (o Outcome) String() string {
	switch o {
	case OutcomeAbsent:
		return "absent"
	case OutcomeApplied:
		return "applied"
	default:
		return "rejected"
	}
}

// RegisterUserPayload carries a new account request
type RegisterUserPayload struct {
	Username         string   `json:"username"`
	Channel          Channel  `json:"channel"`
	SecondaryChannel *Channel `json:"secondary_channel,omitempty"`
	Password         string   `json:"password"`
	Locale           string   `json:"locale,omitempty"`
	Roles            []string `json:"roles,omitempty"`
}

// Validate will run validation rules
func (p RegisterUserPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Username, validation.Required, validation.Length(3, 100)),
		validation.Field(&p.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&p.Channel, validation.Required, validation.By(func(any) error {
			return p.Channel.Validate()
		})),
		validation.Field(&p.SecondaryChannel, validation.By(func(any) error {
			if p.SecondaryChannel == nil {
				return nil
			}
			return p.SecondaryChannel.Validate()
		})),
	)
}

// Registration is the result of RegisterUser
type Registration struct {
	User *User
	Mode Mode
	// Token and RawToken are nil/empty when Mode is ModeNone
	Token    *VerificationToken
	RawToken string
}

// ApprovalRequest is the result of RequestApproval
type ApprovalRequest struct {
	Token      *ApprobationToken
	RawToken   string
	DispatchID string
}

// RecoveryRequest is the result of RequestRecovery
type RecoveryRequest struct {
	Token    *RecoveryToken
	RawToken string
	Channel  Channel
}

// Registrar orchestrates account creation and verification transitions. It is
// the only component that mutates user lifecycle fields; every mutating
// operation runs inside the repository transaction boundary so concurrent
// read-check-write sequences cannot both succeed.
type Registrar interface {
	RegisterUser(ctx context.Context, payload RegisterUserPayload) (*Registration, error)
	VerifyUser(ctx context.Context, raw string) (Outcome, error)
	ApproveUser(ctx context.Context, raw string) (Outcome, error)
	RequestApproval(ctx context.Context, user, approver *User) (*ApprovalRequest, error)
	RequestRecovery(ctx context.Context, username string, useSecondary bool) (*RecoveryRequest, error)
	RecoverPassword(ctx context.Context, raw, newPassword string) (Outcome, error)
	UpdateUser(ctx context.Context, user *User) (bool, error)
	GetUserByToken(ctx context.Context, raw string) (*User, bool)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	VerificationMode() Mode
}

type registrar struct {
	repo             RepositoryManager
	codec            TokenCodec
	dispatcher       ProcessDispatcher
	mode             Mode
	hooks            *HookRegistry
	sender           Contact
	now              func() time.Time
	logger           Logger
	deterministicIDs bool
}

// RegistrarOption customizes registrar construction
type RegistrarOption func(*registrar)

// WithRegistrarClock injects a custom clock (useful for tests)
func WithRegistrarClock(clock func() time.Time) RegistrarOption {
	return func(r *registrar) {
		if clock != nil {
			r.now = clock
		}
	}
}

// WithRegistrarLogger overrides the logger
func WithRegistrarLogger(logger Logger) RegistrarOption {
	return func(r *registrar) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDispatcher sets the process dispatcher used to deliver tokens
func WithDispatcher(d ProcessDispatcher) RegistrarOption {
	return func(r *registrar) {
		r.dispatcher = normalizeDispatcher(d)
	}
}

// WithHooks sets the registry consulted before create/update operations
func WithHooks(hooks *HookRegistry) RegistrarOption {
	return func(r *registrar) {
		if hooks != nil {
			r.hooks = hooks
		}
	}
}

// WithSender sets the contact stamped as sender on dispatched payloads
func WithSender(sender Contact) RegistrarOption {
	return func(r *registrar) {
		r.sender = sender
	}
}

// WithDeterministicUserIDs derives user ids from the username instead of
// random UUIDs, so repeated imports of the same directory stay stable.
func WithDeterministicUserIDs() RegistrarOption {
	return func(r *registrar) {
		r.deterministicIDs = true
	}
}

// NewRegistrar creates the verification state machine. The verification mode,
// signing key, and issuer come from cfg and are fixed for the process life.
func NewRegistrar(repo RepositoryManager, codec TokenCodec, cfg Config, opts ...RegistrarOption) Registrar {
	if repo == nil {
		panic("register: missing RepositoryManager in registrar")
	}
	if codec == nil {
		panic("register: missing TokenCodec in registrar")
	}

	mode := cfg.GetVerificationMode()
	if mode == "" {
		mode = ModeNone
	}
	if !IsValidMode(mode) {
		panic("register: unknown verification mode: " + mode)
	}

	r := &registrar{
		repo:       repo,
		codec:      codec,
		dispatcher: noopDispatcher{},
		mode:       mode,
		hooks:      NewHookRegistry(),
		now:        time.Now,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

func (r *registrar) VerificationMode() Mode {
	return r.mode
}

func (r *registrar) RegisterUser(ctx context.Context, payload RegisterUserPayload) (*Registration, error) {
	if err := payload.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload")
	}

	reg := &Registration{Mode: r.mode}

	err := r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		users := r.repo.Users()

		if taken, err := users.ExistsByUsernameTx(ctx, tx, payload.Username); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check username availability")
		} else if taken {
			return ErrDuplicateUser.WithMetadata(map[string]any{"username": payload.Username})
		}

		if taken, err := users.ExistsByPreferredChannelTx(ctx, tx, payload.Channel); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check channel availability")
		} else if taken {
			return ErrDuplicateUser.WithMetadata(map[string]any{
				"channel": payload.Channel.Type,
				"address": payload.Channel.Address,
			})
		}

		hash, err := HashPassword(payload.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
		}

		user := r.buildUser(payload, hash)

		if err := r.hooks.Run(ctx, HookContext{Phase: HookPhaseCreate, User: user}); err != nil {
			return err
		}

		created, err := users.RegisterTx(ctx, tx, user)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}
		reg.User = created

		if !RequiresVerification(r.mode) {
			return nil
		}

		token, err := r.codec.GenerateVerificationToken(created, r.mode)
		if err != nil {
			return err
		}

		raw, err := r.codec.Encode(token)
		if err != nil {
			return err
		}

		reg.Token = token
		reg.RawToken = raw
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	if reg.RawToken != "" {
		r.dispatchVerify(ctx, reg)
	}

	return reg, nil
}

func (r *registrar) buildUser(payload RegisterUserPayload, passwordHash string) *User {
	now := r.now()
	user := &User{
		Username:         payload.Username,
		PreferredChannel: payload.Channel,
		SecondaryChannel: payload.SecondaryChannel,
		PasswordHash:     passwordHash,
		Locale:           payload.Locale,
		Roles:            payload.Roles,
		CreatedAt:        &now,
	}

	if r.mode == ModeNone {
		verified := now
		registered := now
		user.VerifiedAt = &verified
		user.RegisteredAt = &registered
		user.Enabled = true
	}

	if r.deterministicIDs {
		if id, err := hashid.NewUUID(payload.Username); err == nil {
			user.ID = id
		}
	}

	return user
}

// dispatchVerify hands the payload to the dispatcher without blocking the
// registration result. Failures are logged, never propagated.
func (r *registrar) dispatchVerify(ctx context.Context, reg *Registration) {
	payload := ProcessPayload{
		Token: reg.RawToken,
		Title: "Verify your account",
		To: Contact{
			Name:    reg.User.Username,
			Address: reg.User.PreferredChannel.Address,
			Channel: reg.User.PreferredChannel.Type,
		},
		From: r.sender,
	}

	go func(ctx context.Context) {
		if _, err := r.dispatcher.StartVerifyProcess(ctx, payload); err != nil {
			r.logger.Warn("verify process dispatch error: %v", err)
		}
	}(context.WithoutCancel(ctx))
}

func (r *registrar) VerifyUser(ctx context.Context, raw string) (Outcome, error) {
	token, ok := r.codec.DecodeVerification(raw)
	if !ok {
		return OutcomeRejected, nil
	}

	if token.Process != r.mode {
		r.logger.Info("verification token process mismatch", "token", token.Process, "mode", r.mode)
		return OutcomeRejected, nil
	}

	outcome := OutcomeRejected

	err := r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := r.repo.Users().GetByIDTx(ctx, tx, token.UserID.String())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				outcome = OutcomeAbsent
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for verification")
		}

		if user.VerifiedAt != nil {
			return nil
		}

		now := r.now()
		user.VerifiedAt = &now
		if r.mode == ModeOneStep {
			user.RegisteredAt = &now
			user.Enabled = true
		}

		if _, err := r.repo.Users().UpdateTx(ctx, tx, user, repository.UpdateByID(user.ID.String())); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist verification")
		}

		outcome = OutcomeApplied
		return nil
	})

	if err != nil {
		return OutcomeRejected, r.richError(err, "user verification transaction failed")
	}

	return outcome, nil
}

func (r *registrar) ApproveUser(ctx context.Context, raw string) (Outcome, error) {
	token, ok := r.codec.DecodeApprobation(raw)
	if !ok {
		return OutcomeRejected, nil
	}

	if r.mode != ModeTwoStep {
		r.logger.Info("approbation token in non two-step mode", "mode", r.mode)
		return OutcomeRejected, nil
	}

	outcome := OutcomeRejected

	err := r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := r.repo.Users().GetByIDTx(ctx, tx, token.UserID.String())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				outcome = OutcomeAbsent
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for approbation")
		}

		if user.VerifiedAt == nil || user.RegisteredAt != nil {
			return nil
		}

		now := r.now()
		user.RegisteredAt = &now
		user.Enabled = true

		if _, err := r.repo.Users().UpdateTx(ctx, tx, user, repository.UpdateByID(user.ID.String())); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist approbation")
		}

		outcome = OutcomeApplied
		return nil
	})

	if err != nil {
		return OutcomeRejected, r.richError(err, "user approbation transaction failed")
	}

	return outcome, nil
}

// RequestApproval mints an approbation token on behalf of the approver and
// dispatches it. Only meaningful in two-step mode.
func (r *registrar) RequestApproval(ctx context.Context, user, approver *User) (*ApprovalRequest, error) {
	if r.mode != ModeTwoStep {
		return nil, goerrors.New("approval requests only apply to two-step mode", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"mode": r.mode})
	}

	token, err := r.codec.GenerateApprobationToken(user, approver)
	if err != nil {
		return nil, err
	}

	raw, err := r.codec.Encode(token)
	if err != nil {
		return nil, err
	}

	payload := ProcessPayload{
		Token: raw,
		Title: "Approve registration for " + user.Username,
		To: Contact{
			Name:    approver.Username,
			Address: approver.PreferredChannel.Address,
			Channel: approver.PreferredChannel.Type,
		},
		From: r.sender,
	}

	dispatchID, err := r.dispatcher.StartApproveProcess(ctx, payload)
	if err != nil {
		r.logger.Warn("approve process dispatch error: %v", err)
	}

	return &ApprovalRequest{Token: token, RawToken: raw, DispatchID: dispatchID}, nil
}

// RequestRecovery mints a password recovery token for the user's preferred
// channel, or the secondary one when asked for and available.
func (r *registrar) RequestRecovery(ctx context.Context, username string, useSecondary bool) (*RecoveryRequest, error) {
	user, err := r.repo.Users().GetByUsername(ctx, username)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound.WithMetadata(map[string]any{"username": username})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for recovery")
	}

	token, err := r.codec.GenerateRecoveryToken(user, useSecondary)
	if err != nil {
		return nil, err
	}

	raw, err := r.codec.Encode(token)
	if err != nil {
		return nil, err
	}

	return &RecoveryRequest{
		Token:    token,
		RawToken: raw,
		Channel:  user.RecoveryChannel(useSecondary),
	}, nil
}

func (r *registrar) RecoverPassword(ctx context.Context, raw, newPassword string) (Outcome, error) {
	token, ok := r.codec.DecodeRecovery(raw)
	if !ok {
		return OutcomeRejected, nil
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return OutcomeRejected, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	outcome := OutcomeRejected

	err = r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := r.repo.Users().GetByIDTx(ctx, tx, token.UserID.String())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				outcome = OutcomeAbsent
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for recovery")
		}

		if user.RegisteredAt == nil {
			return nil
		}

		user.PasswordHash = hash
		if _, err := r.repo.Users().UpdateTx(ctx, tx, user, repository.UpdateByID(user.ID.String())); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist new password")
		}

		outcome = OutcomeApplied
		return nil
	})

	if err != nil {
		return OutcomeRejected, r.richError(err, "password recovery transaction failed")
	}

	return outcome, nil
}

func (r *registrar) UpdateUser(ctx context.Context, user *User) (bool, error) {
	if user == nil || user.ID == uuid.Nil {
		return false, ErrUserNotFound
	}

	changed := false

	err := r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		users := r.repo.Users()

		existing, err := users.GetByIDTx(ctx, tx, user.ID.String())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUserNotFound.WithMetadata(map[string]any{"id": user.ID.String()})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for update")
		}

		if existing.RegisteredAt == nil {
			return ErrIllegalUserState.WithMetadata(map[string]any{"id": user.ID.String()})
		}

		if field, ok := readOnlyFieldChanged(existing, user); ok {
			return ErrReadOnlyField.WithMetadata(map[string]any{"field": field})
		}

		if conflict, err := users.HasConflictTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check update conflicts")
		} else if conflict {
			return ErrDuplicateUser.WithMetadata(map[string]any{"username": user.Username})
		}

		// an empty incoming hash keeps the current password
		if user.PasswordHash == "" {
			user.PasswordHash = existing.PasswordHash
		}

		if !userChanged(existing, user) {
			return nil
		}

		if err := r.hooks.Run(ctx, HookContext{Phase: HookPhaseUpdate, User: user, Existing: existing}); err != nil {
			return err
		}

		now := r.now()
		user.UpdatedAt = &now

		if _, err := users.UpdateTx(ctx, tx, user, repository.UpdateByID(user.ID.String())); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not update user")
		}

		changed = true
		return nil
	})

	if err != nil {
		return false, r.richError(err, "user update transaction failed")
	}

	return changed, nil
}

func (r *registrar) GetUserByToken(ctx context.Context, raw string) (*User, bool) {
	token, ok := r.codec.DecodeAny(raw)
	if !ok {
		return nil, false
	}

	user, err := r.repo.Users().GetByID(ctx, token.Common().UserID.String())
	if err != nil {
		if !repository.IsRecordNotFound(err) {
			r.logger.Error("failed to retrieve user by token", "error", err)
		}
		return nil, false
	}

	return user, true
}

func (r *registrar) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return r.repo.Users().GetByUsername(ctx, username)
}

func (r *registrar) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.repo.Users().GetByID(ctx, id.String())
}

func (r *registrar) richError(err error, msg string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}

// readOnlyFieldChanged names the first write-once timestamp the payload tries
// to change, comparing against the persisted record.
func readOnlyFieldChanged(existing, incoming *User) (string, bool) {
	switch {
	case !equalTimes(existing.CreatedAt, incoming.CreatedAt):
		return "created_at", true
	case !equalTimes(existing.VerifiedAt, incoming.VerifiedAt):
		return "verified_at", true
	case !equalTimes(existing.RegisteredAt, incoming.RegisteredAt):
		return "registered_at", true
	}
	return "", false
}

// userChanged reports whether the payload differs from the persisted record.
// Role lists compare order-insensitively.
func userChanged(existing, incoming *User) bool {
	if existing.Username != incoming.Username {
		return true
	}
	if !existing.PreferredChannel.Equals(incoming.PreferredChannel) {
		return true
	}
	if !equalChannelPtr(existing.SecondaryChannel, incoming.SecondaryChannel) {
		return true
	}
	if existing.PasswordHash != incoming.PasswordHash {
		return true
	}
	if existing.Enabled != incoming.Enabled {
		return true
	}
	if existing.Locale != incoming.Locale {
		return true
	}
	if !equalTimes(existing.LockedAt, incoming.LockedAt) {
		return true
	}
	if !equalTimes(existing.ExpiresAt, incoming.ExpiresAt) {
		return true
	}
	if !EqualRoles(existing.Roles, incoming.Roles) {
		return true
	}
	return false
}
