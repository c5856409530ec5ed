package handler

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"zhitalk-go/internal/apperr"
	"zhitalk-go/internal/config"
	"zhitalk-go/internal/middleware"
	"zhitalk-go/pkg/log"
	"zhitalk-go/pkg/storage"
)

// 附件大小上限 5MB，与前端的上传限制保持一致。
const maxAttachmentSize = 5 << 20

// 允许上传的附件类型。
var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// AttachmentHandler 负责聊天附件的上传，文件存入 MinIO 对象存储。
type AttachmentHandler struct {
	bucketName string
}

// NewAttachmentHandler 创建一个新的 AttachmentHandler 实例。
func NewAttachmentHandler(cfg config.MinIOConfig) *AttachmentHandler {
	return &AttachmentHandler{bucketName: cfg.BucketName}
}

// Upload 处理附件上传，返回可直接放入消息 parts 的文件描述。
func (h *AttachmentHandler) Upload(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apperr.New(apperr.KindUnauthorized, ""))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, apperr.New(apperr.KindBadRequest, "缺少上传文件"))
		return
	}
	if fileHeader.Size > maxAttachmentSize {
		respondError(c, apperr.New(apperr.KindBadRequest, "文件大小不能超过5MB"))
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !allowedContentTypes[contentType] {
		respondError(c, apperr.New(apperr.KindBadRequest, "只支持 JPEG/PNG 图片"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	objectName := fmt.Sprintf("attachments/%d/%s%s", user.ID, uuid.NewString(), filepath.Ext(fileHeader.Filename))
	if err := storage.PutObject(c.Request.Context(), h.bucketName, objectName, file, fileHeader.Size, contentType); err != nil {
		log.Errorf("附件上传失败 user=%d: %v", user.ID, err)
		respondError(c, err)
		return
	}

	url, err := storage.GetPresignedURL(h.bucketName, objectName, 24*time.Hour)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, gin.H{
		"url":         url,
		"name":        fileHeader.Filename,
		"contentType": contentType,
	})
}
