package model

import (
	"time"
)

// Difficulty 表示旅行团的难度等级。
type Difficulty string

const (
	DifficultyEasy      Difficulty = "easy"
	DifficultyMedium    Difficulty = "medium"
	DifficultyDifficult Difficulty = "difficult"
)

// Valid 校验难度是否为已知枚举值。
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyDifficult:
		return true
	}
	return false
}

// Tour 表示一条旅行团产品。
//
// RatingsAverage / RatingsQuantity 由评论聚合维护。
// SecretTour 为 true 的团不出现在公开列表中。
type Tour struct {
	ID        uint      `gorm:"primaryKey"` // 旅行团唯一标识
	CreatedAt time.Time // 创建时间
	UpdatedAt time.Time // 更新时间

	Name         string     `gorm:"type:varchar(64);uniqueIndex;not null"` // 名称（唯一）
	Slug         string     `gorm:"type:varchar(80);index"`                // URL slug
	Duration     int        `gorm:"not null"`                              // 行程天数
	MaxGroupSize int        `gorm:"not null"`                              // 最大团员数
	Difficulty   Difficulty `gorm:"type:varchar(16);not null"`             // 难度: easy / medium / difficult

	RatingsAverage  float64 `gorm:"default:4.5"` // 平均评分 (1.0 - 5.0)
	RatingsQuantity int     `gorm:"default:0"`   // 评分数量

	Price         float64 `gorm:"not null"` // 价格
	PriceDiscount float64 // 折扣价（须低于原价，0 表示无折扣）

	Summary     string `gorm:"type:varchar(255);not null"` // 一句话简介
	Description string `gorm:"type:text"`                  // 详细描述
	ImageCover  string `gorm:"type:varchar(255)"`          // 封面图

	SecretTour bool `gorm:"default:false"` // 内部团，不对外展示

	Reviews []Review `gorm:"foreignKey:TourID"` // 关联的评论
}

// Review 表示用户对旅行团的评论。
type Review struct {
	ID        uint      `gorm:"primaryKey"` // 评论 ID
	CreatedAt time.Time // 创建时间

	TourID uint   `gorm:"not null;index"`    // 所属旅行团 ID
	UserID uint   `gorm:"not null;index"`    // 评论用户 ID
	User   User   `gorm:"foreignKey:UserID"` // 评论用户
	Rating int    `gorm:"not null"`          // 评分 (1 - 5)
	Review string `gorm:"type:text"`         // 评论内容
}
