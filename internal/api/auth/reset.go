package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// resetTokenBytes 重置令牌的熵长度（字节）。
const resetTokenBytes = 32

// newResetToken 生成一个随机重置令牌。
//
// 返回 (明文, 哈希)：明文只通过邮件交给用户一次，
// 服务端只保存 sha256 哈希——令牌熵足够高，不需要 bcrypt。
func newResetToken() (plain string, hash string, err error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate reset token: %w", err)
	}
	plain = hex.EncodeToString(buf)
	return plain, hashResetToken(plain), nil
}

// hashResetToken 计算明文令牌的 sha256 十六进制哈希。
func hashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
