package register

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the user directory contract: a generic record repository plus the
// lookups the registrar needs for uniqueness checks.
type Users interface {
	repository.Repository[*User]

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error)

	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByUsernameTx(ctx context.Context, tx bun.IDB, username string) (bool, error)
	ExistsByPreferredChannel(ctx context.Context, channel Channel) (bool, error)
	ExistsByPreferredChannelTx(ctx context.Context, tx bun.IDB, channel Channel) (bool, error)
	ExistsBySecondaryChannel(ctx context.Context, channel Channel) (bool, error)
	ExistsBySecondaryChannelTx(ctx context.Context, tx bun.IDB, channel Channel) (bool, error)

	// HasConflictTx reports whether any other record collides with the given
	// user's username, preferred, or secondary channel.
	HasConflictTx(ctx context.Context, tx bun.IDB, user *User) (bool, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

// NewUsersRepository creates the bun backed user directory
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)
	return a.Repository.CreateTx(ctx, tx, user)
}

func (a *users) GetByUsername(ctx context.Context, username string) (*User, error) {
	return a.GetByUsernameTx(ctx, a.db, username)
}

func (a *users) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.username = ?", username).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"username": username})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return a.ExistsByUsernameTx(ctx, a.db, username)
}

func (a *users) ExistsByUsernameTx(ctx context.Context, tx bun.IDB, username string) (bool, error) {
	return tx.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.username = ?", username).
		Exists(ctx)
}

func (a *users) ExistsByPreferredChannel(ctx context.Context, channel Channel) (bool, error) {
	return a.ExistsByPreferredChannelTx(ctx, a.db, channel)
}

func (a *users) ExistsByPreferredChannelTx(ctx context.Context, tx bun.IDB, channel Channel) (bool, error) {
	return tx.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.preferred_channel_type = ?", channel.Type).
		Where("?TableAlias.preferred_channel_address = ?", channel.Address).
		Exists(ctx)
}

func (a *users) ExistsBySecondaryChannel(ctx context.Context, channel Channel) (bool, error) {
	return a.ExistsBySecondaryChannelTx(ctx, a.db, channel)
}

func (a *users) ExistsBySecondaryChannelTx(ctx context.Context, tx bun.IDB, channel Channel) (bool, error) {
	return tx.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.secondary_channel_type = ?", channel.Type).
		Where("?TableAlias.secondary_channel_address = ?", channel.Address).
		Exists(ctx)
}

func (a *users) HasConflictTx(ctx context.Context, tx bun.IDB, user *User) (bool, error) {
	q := tx.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.id != ?", user.ID).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.WhereOr("?TableAlias.username = ?", user.Username).
				WhereGroup(" OR ", func(q *bun.SelectQuery) *bun.SelectQuery {
					return q.
						Where("?TableAlias.preferred_channel_type = ?", user.PreferredChannel.Type).
						Where("?TableAlias.preferred_channel_address = ?", user.PreferredChannel.Address)
				})

			if user.HasSecondaryChannel() {
				q = q.WhereGroup(" OR ", func(q *bun.SelectQuery) *bun.SelectQuery {
					return q.
						Where("?TableAlias.preferred_channel_type = ?", user.SecondaryChannel.Type).
						Where("?TableAlias.preferred_channel_address = ?", user.SecondaryChannel.Address)
				})
			}
			return q
		})

	return q.Exists(ctx)
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if len(record.Roles) == 0 {
		record.Roles = DefaultRoles()
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
