// Package passcode 实现邮箱绑定的短时效下载口令
// 口令是一次性分发 .dmg 的轻量凭证，不是用户体系
package passcode

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"log"
	"math/big"
	"time"
)

// 去掉了易混淆字符 (0/O, 1/I/L)
const codeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 8

// ErrInvalidCode 口令不存在或已过期
var ErrInvalidCode = errors.New("passcode: invalid or expired code")

type Manager struct {
	db  *sql.DB
	ttl time.Duration
}

func NewManager(db *sql.DB, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{db: db, ttl: ttl}
}

// Generate 生成并落库一个新口令
func (m *Manager) Generate(ctx context.Context, email string) (string, error) {
	code, err := randomCode(codeLength)
	if err != nil {
		return "", err
	}

	now := time.Now()
	_, err = m.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO download_codes (code, email, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`, code, email, now.Add(m.ttl).Unix(), now.Unix())
	if err != nil {
		return "", err
	}
	return code, nil
}

// Validate 校验口令并返回绑定的邮箱
// 过期的记录顺手删掉
func (m *Manager) Validate(ctx context.Context, code string) (string, error) {
	var email string
	var expiresAt int64
	err := m.db.QueryRowContext(ctx,
		"SELECT email, expires_at FROM download_codes WHERE code = ?", code,
	).Scan(&email, &expiresAt)

	if err == sql.ErrNoRows {
		return "", ErrInvalidCode
	}
	if err != nil {
		return "", err
	}

	if time.Now().Unix() >= expiresAt {
		m.db.ExecContext(ctx, "DELETE FROM download_codes WHERE code = ?", code)
		return "", ErrInvalidCode
	}
	return email, nil
}

// Sweep 清理所有过期口令
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	res, err := m.db.ExecContext(ctx,
		"DELETE FROM download_codes WHERE expires_at < ?", time.Now().Unix())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// StartSweeper 启动后台定时清理
func (m *Manager) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			if n, err := m.Sweep(context.Background()); err != nil {
				log.Printf("[Passcode] sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("[Passcode] swept %d expired codes", n)
			}
		}
	}()
}

func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	max := big.NewInt(int64(len(codeCharset)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeCharset[n.Int64()]
	}
	return string(buf), nil
}
