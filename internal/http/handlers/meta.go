package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Features tells the portal which optional integrations are switched on.
type Features struct {
	Assistant bool `json:"assistant"`
	PDF       bool `json:"pdf"`
	Realtime  bool `json:"realtime"`
}

type MetaHandler struct {
	env      string
	version  string
	features Features
}

func NewMetaHandler(env, version string, features Features) *MetaHandler {
	return &MetaHandler{env: env, version: version, features: features}
}

func (h *MetaHandler) GetMeta(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":     "Lumen MFB Backend",
		"version":  h.version,
		"env":      h.env,
		"features": h.features,
	})
}
