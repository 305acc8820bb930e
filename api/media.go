package api

import (
	"encoding/base64"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"coreconvo/domain"
)

// UploadMediaHandler implements POST /api/media/upload: a multipart file
// upload resolved to a ref via the configured ContentStore.
func (ctrl *Controller) UploadMediaHandler(c *gin.Context) {
	category := c.DefaultPostForm("category", "uploads")
	contentType := domain.ContentType(c.DefaultPostForm("content_type", string(domain.ContentTypeImage)))

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reading upload"})
		return
	}

	ref, err := ctrl.store.Put(c.Request.Context(), category, data, contentType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ref": ref})
}

type uploadBase64Request struct {
	Category    string             `json:"category"`
	ContentType domain.ContentType `json:"content_type"`
	Data        string             `json:"data" binding:"required"`
}

// UploadMediaBase64Handler implements POST /api/media/upload/base64.
func (ctrl *Controller) UploadMediaBase64Handler(c *gin.Context) {
	var req uploadBase64Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid base64 payload"})
		return
	}
	category := req.Category
	if category == "" {
		category = "uploads"
	}
	ref, err := ctrl.store.Put(c.Request.Context(), category, data, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ref": ref})
}

// ServeMediaHandler implements GET /media/{category}/{filename}.
func (ctrl *Controller) ServeMediaHandler(c *gin.Context) {
	ref := c.Param("category") + "/" + c.Param("filename")
	data, err := ctrl.store.Get(c.Request.Context(), ref)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", data)
}
