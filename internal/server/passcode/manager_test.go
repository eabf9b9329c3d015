package passcode_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"release-hub/internal/server/db"
	"release-hub/internal/server/passcode"

	"github.com/stretchr/testify/assert"
)

func setupDB(t *testing.T) *sql.DB {
	conn := db.InitDB(filepath.Join(t.TempDir(), "test.db"))
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestGenerateAndValidate(t *testing.T) {
	conn := setupDB(t)
	m := passcode.NewManager(conn, time.Hour)
	ctx := context.Background()

	code, err := m.Generate(ctx, "tester@example.com")
	assert.NoError(t, err)
	assert.Len(t, code, 8)
	// 字符集去掉了易混淆字符
	assert.NotContains(t, code, "0")
	assert.NotContains(t, code, "O")
	assert.NotContains(t, code, "1")
	assert.NotContains(t, code, "I")
	assert.NotContains(t, code, "L")

	email, err := m.Validate(ctx, code)
	assert.NoError(t, err)
	assert.Equal(t, "tester@example.com", email)

	// 有效期内可以重复使用
	_, err = m.Validate(ctx, code)
	assert.NoError(t, err)
}

func TestValidateUnknownCode(t *testing.T) {
	conn := setupDB(t)
	m := passcode.NewManager(conn, time.Hour)

	_, err := m.Validate(context.Background(), "NOPE1234")
	assert.ErrorIs(t, err, passcode.ErrInvalidCode)
}

func TestValidateExpiredCode(t *testing.T) {
	conn := setupDB(t)
	ctx := context.Background()

	// 直接插一条已过期的记录
	_, err := conn.ExecContext(ctx, `
		INSERT INTO download_codes (code, email, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`, "EXPIRED9", "old@example.com", time.Now().Add(-time.Minute).Unix(), time.Now().Add(-25*time.Hour).Unix())
	assert.NoError(t, err)

	m := passcode.NewManager(conn, time.Hour)
	_, err = m.Validate(ctx, "EXPIRED9")
	assert.ErrorIs(t, err, passcode.ErrInvalidCode)

	// 过期记录在校验时被顺手删除
	var n int
	conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM download_codes WHERE code = 'EXPIRED9'").Scan(&n)
	assert.Equal(t, 0, n)
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	conn := setupDB(t)
	ctx := context.Background()
	m := passcode.NewManager(conn, time.Hour)

	live, err := m.Generate(ctx, "live@example.com")
	assert.NoError(t, err)

	_, err = conn.ExecContext(ctx, `
		INSERT INTO download_codes (code, email, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`, "DEADCODE", "dead@example.com", time.Now().Add(-time.Hour).Unix(), time.Now().Add(-25*time.Hour).Unix())
	assert.NoError(t, err)

	n, err := m.Sweep(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = m.Validate(ctx, live)
	assert.NoError(t, err)
}
