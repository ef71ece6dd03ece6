package db

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"org_membership/internal/models"
)

func TestDialector(t *testing.T) {
	for _, driver := range []string{"mysql", "postgres"} {
		t.Run(driver, func(t *testing.T) {
			d, err := Dialector(driver, "dsn")
			require.NoError(t, err)
			require.Equal(t, driver, d.Name())
		})
	}

	_, err := Dialector("oracle", "dsn")
	require.Error(t, err)
}

func TestConnectAndMigrate(t *testing.T) {
	gdb, err := Connect(context.Background(), sqlite.Open("file::memory:?cache=shared"), gormlogger.Default.LogMode(gormlogger.Silent))
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(gdb) })

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, AutoMigrate(gdb))

	for _, m := range []any{&models.User{}, &models.Organisation{}, &models.Membership{}, &models.AuditLog{}} {
		require.True(t, gdb.Migrator().HasTable(m))
	}
	require.True(t, gdb.Migrator().HasTable("organisations"))
	require.True(t, gdb.Migrator().HasTable("memberships"))
}
