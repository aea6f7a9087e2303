package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lumenmfb/backend/internal/domain/document"
)

// LocalObjectReader is implemented by the in-memory object store.
type LocalObjectReader interface {
	Get(bucket document.Bucket, key string) ([]byte, string, bool)
}

// LocalFilesHandler serves the URLs the in-memory store signs, so local
// runs without S3 can still open uploaded documents.
type LocalFilesHandler struct {
	objects LocalObjectReader
	now     func() time.Time
}

func NewLocalFilesHandler(objects LocalObjectReader) *LocalFilesHandler {
	return &LocalFilesHandler{objects: objects, now: time.Now}
}

func (h *LocalFilesHandler) Serve(c *gin.Context) {
	expires, err := strconv.ParseInt(c.Query("expires"), 10, 64)
	if err != nil || h.now().Unix() > expires {
		c.JSON(http.StatusForbidden, gin.H{"error": "url_expired"})
		return
	}
	bucket, err := document.ParseBucket(c.Param("bucket"))
	if err != nil {
		writeError(c, err)
		return
	}
	body, contentType, ok := h.objects.Get(bucket, strings.TrimPrefix(c.Param("key"), "/"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.Data(http.StatusOK, contentType, body)
}
