package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"zhitalk-go/internal/model"
)

// DocumentRepository 接口定义了文档的持久化操作。
type DocumentRepository interface {
	SaveDocument(ctx context.Context, doc *model.Document) error
	GetLatestDocument(ctx context.Context, id string) (*model.Document, error)
}

// documentRepository 是 DocumentRepository 接口的 GORM 实现。
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// SaveDocument 保存文档，已存在时覆盖内容。
func (r *documentRepository) SaveDocument(ctx context.Context, doc *model.Document) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "kind", "content", "updated_at"}),
	}).Create(doc).Error
}

// GetLatestDocument 根据ID查找文档。
func (r *documentRepository) GetLatestDocument(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
