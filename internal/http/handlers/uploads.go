package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lumenmfb/backend/internal/domain/document"
	"github.com/lumenmfb/backend/internal/domain/staff"
	"github.com/lumenmfb/backend/internal/http/middleware"
)

// multipartOverhead allows for form boundaries and the other fields around
// the file part.
const multipartOverhead = 16 << 10

type DocumentService interface {
	Upload(ctx context.Context, ownerID string, bucket document.Bucket, kind string, r io.Reader) (*document.Stored, error)
	Sign(ctx context.Context, actor staff.Actor, bucket document.Bucket, key string) (*document.SignedURL, error)
}

type UploadHandler struct {
	documents DocumentService
}

func NewUploadHandler(documents DocumentService) *UploadHandler {
	return &UploadHandler{documents: documents}
}

// Upload takes multipart fields bucket, kind and file. The stored path is
// returned for the client to put in its application payload. A credit
// officer submitting on a customer's behalf sets owner_id so the file lands
// in that customer's folder.
func (h *UploadHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, document.MaxUploadBytes+multipartOverhead)
	if err := c.Request.ParseMultipartForm(document.MaxUploadBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, document.ErrTooLarge)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_multipart"})
		return
	}

	bucket, err := document.ParseBucket(c.PostForm("bucket"))
	if err != nil {
		writeError(c, err)
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_file"})
		return
	}
	if file.Size > document.MaxUploadBytes {
		writeError(c, document.ErrTooLarge)
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_file"})
		return
	}
	defer src.Close()

	actor, _ := middleware.ActorFrom(c)
	owner := actor.UserID
	if id := strings.TrimSpace(c.PostForm("owner_id")); id != "" && id != actor.UserID {
		if actor.Role != staff.RoleCredit {
			writeError(c, document.ErrForbidden)
			return
		}
		owner = id
	}
	stored, err := h.documents.Upload(c.Request.Context(), owner, bucket, c.PostForm("kind"), src)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, stored)
}

func (h *UploadHandler) SignedURL(c *gin.Context) {
	bucket, err := document.ParseBucket(c.Query("bucket"))
	if err != nil {
		writeError(c, err)
		return
	}
	actor, _ := middleware.ActorFrom(c)
	signed, err := h.documents.Sign(c.Request.Context(), actor, bucket, strings.TrimSpace(c.Query("path")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, signed)
}
