package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lumenmfb/backend/internal/domain/admin"
	"github.com/lumenmfb/backend/internal/domain/staff"
	"github.com/lumenmfb/backend/internal/http/middleware"
	"github.com/lumenmfb/backend/internal/jobs"
)

type StaffService interface {
	List(ctx context.Context) ([]staff.Assignment, error)
	Assign(ctx context.Context, adminUserID, email, rawRole, accessCode string) (*staff.Assignment, error)
	SetActive(ctx context.Context, userID string, active bool) error
	Unlock(ctx context.Context, userID string) error
}

type AdminService interface {
	ListActions(ctx context.Context, f admin.ActionFilter) ([]admin.Action, error)
	Settings(ctx context.Context) (admin.Settings, error)
	UpdateSettings(ctx context.Context, adminUserID string, patch admin.SettingsPatch) (admin.Settings, error)
	Log(ctx context.Context, adminUserID, action, targetType, targetID string, payload []byte)
}

type CleanupRunner interface {
	Run(ctx context.Context) (*jobs.CleanupReport, error)
}

type PurgeRunner interface {
	Run(ctx context.Context, confirm string) (*jobs.PurgeReport, error)
}

type AdminHandler struct {
	staff   StaffService
	admin   AdminService
	cleanup CleanupRunner
	purge   PurgeRunner
}

func NewAdminHandler(staffService StaffService, adminService AdminService, cleanup CleanupRunner, purge PurgeRunner) *AdminHandler {
	return &AdminHandler{staff: staffService, admin: adminService, cleanup: cleanup, purge: purge}
}

type assignRoleRequest struct {
	Email      string `json:"email" binding:"required"`
	Role       string `json:"role" binding:"required"`
	AccessCode string `json:"access_code" binding:"required"`
}

type purgeRequest struct {
	Confirm string `json:"confirm"`
}

func (h *AdminHandler) ListRoles(c *gin.Context) {
	items, err := h.staff.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *AdminHandler) AssignRole(c *gin.Context) {
	var req assignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	actor, _ := middleware.ActorFrom(c)
	assignment, err := h.staff.Assign(c.Request.Context(), actor.UserID, req.Email, req.Role, req.AccessCode)
	if err != nil {
		writeError(c, err)
		return
	}
	payload, _ := json.Marshal(gin.H{"role": assignment.Role})
	h.admin.Log(c.Request.Context(), actor.UserID, "role_assigned", "user", assignment.UserID, payload)
	c.JSON(http.StatusOK, assignment)
}

func (h *AdminHandler) DeactivateRole(c *gin.Context) { h.setActive(c, false) }
func (h *AdminHandler) ActivateRole(c *gin.Context)   { h.setActive(c, true) }

func (h *AdminHandler) setActive(c *gin.Context, active bool) {
	actor, _ := middleware.ActorFrom(c)
	userID := c.Param("userId")
	if userID == actor.UserID && !active {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot_deactivate_self"})
		return
	}
	if err := h.staff.SetActive(c.Request.Context(), userID, active); err != nil {
		writeError(c, err)
		return
	}
	action := "role_deactivated"
	if active {
		action = "role_activated"
	}
	h.admin.Log(c.Request.Context(), actor.UserID, action, "user", userID, nil)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *AdminHandler) UnlockRole(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	userID := c.Param("userId")
	if err := h.staff.Unlock(c.Request.Context(), userID); err != nil {
		writeError(c, err)
		return
	}
	h.admin.Log(c.Request.Context(), actor.UserID, "role_unlocked", "user", userID, nil)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *AdminHandler) ListActions(c *gin.Context) {
	limit, offset := pageParams(c)
	items, err := h.admin.ListActions(c.Request.Context(), admin.ActionFilter{
		ApplicationID: strings.TrimSpace(c.Query("application_id")),
		AdminUserID:   strings.TrimSpace(c.Query("admin_user_id")),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *AdminHandler) GetSettings(c *gin.Context) {
	s, err := h.admin.Settings(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var patch admin.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c)
		return
	}
	actor, _ := middleware.ActorFrom(c)
	s, err := h.admin.UpdateSettings(c.Request.Context(), actor.UserID, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *AdminHandler) RunCleanup(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	report, err := h.cleanup.Run(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	payload, _ := json.Marshal(report)
	h.admin.Log(c.Request.Context(), actor.UserID, "cleanup_triggered", "maintenance", "", payload)
	c.JSON(http.StatusOK, report)
}

func (h *AdminHandler) Purge(c *gin.Context) {
	var req purgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	actor, _ := middleware.ActorFrom(c)
	report, err := h.purge.Run(c.Request.Context(), req.Confirm)
	if err != nil {
		writeError(c, err)
		return
	}
	payload, _ := json.Marshal(report)
	h.admin.Log(c.Request.Context(), actor.UserID, "purge_executed", "maintenance", "", payload)
	c.JSON(http.StatusOK, report)
}
