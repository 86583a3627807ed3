package config

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mmdatafocus/ledger_backend/appctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type guardedRow struct {
	ID        int
	CompanyId string
	Name      string
}

type globalRow struct {
	ID   int
	Name string
}

func guardedDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	db, err := gorm.Open(mysql.New(mysql.Config{Conn: conn, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Use(NewTenantGuardPlugin()))
	return db, mock
}

func withCompany(companyId string) context.Context {
	return context.WithValue(context.Background(), appctx.ContextKeyCompanyId, companyId)
}

func TestTenantGuardScopesQueries(t *testing.T) {
	db, mock := guardedDB(t)
	mock.ExpectQuery("SELECT \\* FROM `guarded_rows` WHERE `guarded_rows`.`company_id` = \\?").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "name"}))

	var rows []guardedRow
	require.NoError(t, db.WithContext(withCompany("c1")).Find(&rows).Error)

	mock.ExpectQuery("SELECT \\* FROM `guarded_rows` WHERE company_id = \\?").
		WithArgs("c2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "name"}))
	require.NoError(t, db.WithContext(withCompany("c1")).Where("company_id = ?", "c2").Find(&rows).Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantGuardRefusesUnscopedWrites(t *testing.T) {
	db, mock := guardedDB(t)

	err := db.WithContext(context.Background()).Model(&guardedRow{}).Where("id = ?", 1).
		Update("name", "x").Error
	assert.ErrorIs(t, err, ErrTenantScopeRequired)

	err = db.WithContext(context.Background()).Where("id = ?", 1).Delete(&guardedRow{}).Error
	assert.ErrorIs(t, err, ErrTenantScopeRequired)

	// unscoped reads stay allowed
	mock.ExpectQuery("SELECT \\* FROM `guarded_rows`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "name"}))
	var rows []guardedRow
	require.NoError(t, db.WithContext(context.Background()).Find(&rows).Error)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantGuardAllowsScopedAndBypassedWrites(t *testing.T) {
	db, mock := guardedDB(t)

	mock.ExpectExec("UPDATE `guarded_rows` SET `name`=\\? WHERE id = \\? AND `guarded_rows`.`company_id` = \\?").
		WithArgs("x", 1, "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, db.WithContext(withCompany("c1")).Model(&guardedRow{}).Where("id = ?", 1).
		Update("name", "x").Error)

	skip := context.WithValue(context.Background(), appctx.ContextKeySkipTenantScope, true)
	mock.ExpectExec("DELETE FROM `guarded_rows` WHERE id = \\?").
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, db.WithContext(skip).Where("id = ?", 1).Delete(&guardedRow{}).Error)

	// tables without company_id are not guarded
	mock.ExpectExec("UPDATE `global_rows` SET `name`=\\? WHERE id = \\?").
		WithArgs("x", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, db.WithContext(context.Background()).Model(&globalRow{}).Where("id = ?", 1).
		Update("name", "x").Error)

	assert.NoError(t, mock.ExpectationsWereMet())
}
