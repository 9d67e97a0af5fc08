package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cybertrace-ops/internal/config"
)

func TestDialector(t *testing.T) {
	d, err := Dialector(config.DatabaseConfig{Driver: config.DriverMySQL, Host: "db", Port: 3306, Username: "u", Password: "p", Database: "ops", Charset: "utf8mb4"})
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.Name())

	d, err = Dialector(config.DatabaseConfig{Driver: config.DriverPostgres, Host: "db", Port: 5432, Username: "u", Password: "p", Database: "ops"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = Dialector(config.DatabaseConfig{})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	_, err = Dialector(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestOpenMemory(t *testing.T) {
	db, err := OpenMemory(t.Name())
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable("chats"))
	assert.True(t, db.Migrator().HasTable("messages"))
	assert.True(t, db.Migrator().HasTable("users"))
}
