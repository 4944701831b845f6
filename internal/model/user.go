package model

import "time"

// Role 是封闭的用户角色枚举。
type Role string

const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

// Valid 校验角色是否为已知枚举值。
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin:
		return true
	}
	return false
}

// User 表示系统用户（凭证记录）。
//
// Password 永远只存 bcrypt 哈希，明文不落库。
// ResetTokenHash / ResetTokenExpiresAt 成对出现、成对清除：
// 重置成功、邮件发送失败、或被更新的重置请求覆盖时一起清掉。
type User struct {
	ID                  uint       `gorm:"primaryKey"`                    // 用户 ID
	Name                string     `gorm:"type:varchar(64);not null"`     // 姓名
	Email               string     `gorm:"type:varchar(191);uniqueIndex"` // 邮箱（唯一）
	Password            string     `gorm:"not null"`                      // bcrypt 哈希
	Role                Role       `gorm:"type:varchar(16);default:user"` // 角色: user / guide / lead-guide / admin
	PasswordChangedAt   time.Time  // 最近一次密码修改时间
	ResetTokenHash      *string    `gorm:"type:varchar(64);index"` // 重置令牌的 sha256 哈希（十六进制）
	ResetTokenExpiresAt *time.Time // 重置令牌过期时间
	Active              bool       `gorm:"default:true"` // 软删除标记（deleteMe 置 false）
	CreatedAt           time.Time  // 创建时间

	Reviews []Review `gorm:"foreignKey:UserID"`
}
