package database

import (
	"path/filepath"
	"testing"

	"devlink/internal/config"
	"devlink/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialector(t *testing.T) {
	t.Parallel()

	d, err := Dialector(&config.Config{DBDriver: "postgres", DBHost: "db", DBPort: "5432"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = Dialector(&config.Config{DBDriver: "sqlite", DBPath: ":memory:"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	_, err = Dialector(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestConnect_SQLiteMigratesSchema(t *testing.T) {
	for _, env := range []string{"test", "development", "production"} {
		t.Run(env, func(t *testing.T) {
			cfg := &config.Config{
				DBDriver:       "sqlite",
				DBPath:         filepath.Join(t.TempDir(), "devlink.db"),
				Env:            env,
				DBMaxOpenConns: 4,
			}

			db, err := Connect(cfg)
			require.NoError(t, err)
			defer func() { _ = Close(db) }()

			for _, m := range models.All() {
				assert.True(t, db.Migrator().HasTable(m), "missing table for %T", m)
			}
			assert.True(t, db.Migrator().HasTable("chat_users"))

			var users int64
			require.NoError(t, db.Raw("SELECT count(*) FROM users").Scan(&users).Error)
			assert.Zero(t, users)

			sqlDB, err := db.DB()
			require.NoError(t, err)
			assert.Equal(t, 4, sqlDB.Stats().MaxOpenConnections)
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "devlink.db?_foreign_keys=on", SQLiteDSN("devlink.db"))
	assert.Equal(t, "file:x?mode=memory&_foreign_keys=on", SQLiteDSN("file:x?mode=memory"))
	assert.Equal(t, "file:x?_fk=1", SQLiteDSN("file:x?_fk=1"))
}
