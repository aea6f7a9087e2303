package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/lumen?sslmode=disable", migrateURL("postgres://u:p@db:5432/lumen?sslmode=disable"))
	assert.Equal(t, "pgx5://db/lumen", migrateURL("postgresql://db/lumen"))
	assert.Equal(t, "pgx5://db/lumen", migrateURL("pgx5://db/lumen"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}

func TestInitMigrationEncodesApprovalInvariants(t *testing.T) {
	raw, err := fs.ReadFile(migrationsFS, "migrations/000001_init.up.sql")
	require.NoError(t, err)
	sql := string(raw)

	for _, constraint := range []string{"coo_implies_approved", "approved_implies_coo", "audit_implies_credit", "coo_implies_audit"} {
		assert.Contains(t, sql, constraint)
	}
	assert.Contains(t, sql, "user_id             UUID NOT NULL UNIQUE")
}

func TestOneOpenLoanApplicationIndex(t *testing.T) {
	raw, err := fs.ReadFile(migrationsFS, "migrations/000002_one_open_loan_application.up.sql")
	require.NoError(t, err)
	sql := string(raw)

	assert.Contains(t, sql, "CREATE UNIQUE INDEX loan_applications_one_open_per_user")
	assert.Contains(t, sql, "WHERE status IN ('pending', 'under_review', 'flagged')")
}
