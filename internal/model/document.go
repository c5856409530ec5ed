package model

import "time"

// Document 定义了 documents 表的 ORM 模型。
// 文档由默认助手的 createDocument/updateDocument 工具创建和修改。
type Document struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Kind      string    `gorm:"type:varchar(16);not null;default:'text'" json:"kind"`
	Content   string    `gorm:"type:longtext" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Document) TableName() string {
	return "documents"
}
