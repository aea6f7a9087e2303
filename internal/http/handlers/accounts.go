package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lumenmfb/backend/internal/domain/account"
	"github.com/lumenmfb/backend/internal/domain/document"
	"github.com/lumenmfb/backend/internal/domain/staff"
	"github.com/lumenmfb/backend/internal/http/middleware"
)

type AccountService interface {
	Submit(ctx context.Context, userID string, in account.CreateInput) (*account.Entity, error)
	GetMine(ctx context.Context, userID string) (*account.Entity, error)
	List(ctx context.Context, f account.ListFilter) ([]account.Entity, error)
	Get(ctx context.Context, id string) (*account.Entity, error)
	Review(ctx context.Context, actor staff.Actor, id string, decision account.Status, notes string) (*account.Entity, error)
}

type AccountHandler struct {
	service AccountService
	signer  URLSigner
}

func NewAccountHandler(service AccountService, signer URLSigner) *AccountHandler {
	return &AccountHandler{service: service, signer: signer}
}

func (h *AccountHandler) Submit(c *gin.Context) {
	var req account.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	actor, _ := middleware.ActorFrom(c)
	created, err := h.service.Submit(c.Request.Context(), actor.UserID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *AccountHandler) Mine(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	app, err := h.service.GetMine(c.Request.Context(), actor.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application": app, "files": h.signedFiles(c, actor, app)})
}

func (h *AccountHandler) AdminList(c *gin.Context) {
	limit, offset := pageParams(c)
	status := strings.TrimSpace(c.Query("status"))
	switch account.Status(status) {
	case "", account.StatusPending, account.StatusApproved, account.StatusDeclined:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_filter"})
		return
	}
	items, err := h.service.List(c.Request.Context(), account.ListFilter{Status: status, Limit: limit, Offset: offset})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

func (h *AccountHandler) AdminGet(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	app, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application": app, "files": h.signedFiles(c, actor, app)})
}

func (h *AccountHandler) Approve(c *gin.Context) { h.review(c, account.StatusApproved) }
func (h *AccountHandler) Decline(c *gin.Context) { h.review(c, account.StatusDeclined) }

func (h *AccountHandler) review(c *gin.Context, decision account.Status) {
	var req decisionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c)
			return
		}
	}
	actor, _ := middleware.ActorFrom(c)
	updated, err := h.service.Review(c.Request.Context(), actor, c.Param("id"), decision, req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *AccountHandler) signedFiles(c *gin.Context, actor staff.Actor, app *account.Entity) map[string]*document.SignedURL {
	ctx := c.Request.Context()
	return map[string]*document.SignedURL{
		"passport_photo": h.signer.SignOptional(ctx, actor, document.BucketPassportPhotos, app.PassportPhotoPath),
		"signature":      h.signer.SignOptional(ctx, actor, document.BucketSignatures, app.SignaturePath),
		"id_document":    h.signer.SignOptional(ctx, actor, document.BucketDocuments, app.IDDocumentPath),
	}
}
