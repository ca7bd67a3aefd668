package register_test

import (
	"database/sql"
	"testing"

	"github.com/goliatone/go-register"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const sqliteCreateUsers = `CREATE TABLE users (
	id TEXT NOT NULL PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	preferred_channel_type TEXT NOT NULL,
	preferred_channel_address TEXT NOT NULL,
	secondary_channel_type TEXT,
	secondary_channel_address TEXT,
	password_hash TEXT,
	enabled BOOLEAN NOT NULL DEFAULT FALSE,
	locale TEXT,
	roles TEXT,
	created_at TIMESTAMP,
	verified_at TIMESTAMP,
	registered_at TIMESTAMP,
	locked_at TIMESTAMP,
	expires_at TIMESTAMP,
	updated_at TIMESTAMP,
	UNIQUE (preferred_channel_type, preferred_channel_address)
);`

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = db.Exec(sqliteCreateUsers)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

type registrarEnv struct {
	DB        *bun.DB
	Registrar register.Registrar
	Repo      register.RepositoryManager
	Codec     register.TokenCodec
}

func setupRegistrar(t *testing.T, mode register.Mode, opts ...register.RegistrarOption) registrarEnv {
	t.Helper()

	db := setupTestDB(t)
	repo := register.NewRepositoryManager(db)
	codec := register.NewTokenCodec([]byte(testSigningKey), 3, testIssuer, nil)

	cfg := register.SimpleConfig{
		VerificationMode: mode,
		SigningKey:       testSigningKey,
		TokenIssuer:      testIssuer,
	}

	return registrarEnv{
		DB:        db,
		Registrar: register.NewRegistrar(repo, codec, cfg, opts...),
		Repo:      repo,
		Codec:     codec,
	}
}

func (e registrarEnv) deleteUser(t *testing.T, id uuid.UUID) {
	t.Helper()
	_, err := e.DB.Exec("DELETE FROM users WHERE id = ?", id)
	require.NoError(t, err)
}

func alicePayload() register.RegisterUserPayload {
	return register.RegisterUserPayload{
		Username: "alice",
		Channel: register.Channel{
			Type:    register.ChannelEmail,
			Address: "alice@example.com",
		},
		Password: "secret-password",
		Locale:   "en",
	}
}

func bobPayload() register.RegisterUserPayload {
	return register.RegisterUserPayload{
		Username: "bob",
		Channel: register.Channel{
			Type:    register.ChannelSMS,
			Address: "+12125551234",
		},
		Password: "another-secret",
	}
}
