package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDSN(t *testing.T) {
	cfg := Config{
		Host:     "db.internal",
		Port:     5433,
		User:     "etl",
		Password: "s3cret",
		Name:     "admissions",
	}

	dsn := cfg.DSN(cfg.Name)
	assert.Contains(t, dsn, "db.internal:5433")
	assert.Contains(t, dsn, "/admissions")
	assert.Contains(t, dsn, "sslmode=disable")
	assert.Contains(t, dsn, "etl:s3cret@")
}

func TestConfigDSNNoPassword(t *testing.T) {
	cfg := Config{Host: "localhost", Port: 5432, User: "postgres", Name: "admissions"}

	dsn := cfg.DSN("postgres")
	assert.True(t, strings.HasPrefix(dsn, "postgres://postgres@localhost:5432/postgres"), dsn)
	assert.NotContains(t, dsn, ":@")
}

func TestConfigMaintenanceDBDefault(t *testing.T) {
	cfg := Config{Name: "admissions"}
	assert.Equal(t, "postgres", cfg.maintenanceDB())

	cfg.MaintenanceDB = "template1"
	assert.Equal(t, "template1", cfg.maintenanceDB())
}

func TestManagerPoolNilBeforeEnsureReady(t *testing.T) {
	m := NewManager(Config{Name: "admissions"}, nil)
	assert.Nil(t, m.Pool())
}

func TestSchemaEmbedded(t *testing.T) {
	require.NotEmpty(t, schema)
	assert.Contains(t, schema, "admissions_results")
	assert.Contains(t, schema, "result_key")
}
