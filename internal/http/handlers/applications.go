package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lumenmfb/backend/internal/domain/application"
	"github.com/lumenmfb/backend/internal/domain/document"
	"github.com/lumenmfb/backend/internal/domain/staff"
	"github.com/lumenmfb/backend/internal/http/middleware"
	"github.com/lumenmfb/backend/internal/report"
)

type ApplicationService interface {
	Submit(ctx context.Context, actor staff.Actor, in application.SubmitInput) (*application.Entity, error)
	Eligibility(ctx context.Context, userID string) (application.Eligibility, error)
	ListMine(ctx context.Context, userID string, limit, offset int32) ([]application.Entity, error)
	GetForActor(ctx context.Context, actor staff.Actor, id string) (*application.Entity, error)
	List(ctx context.Context, f application.ListFilter) ([]application.Entity, error)
	Stats(ctx context.Context) (*application.Stats, error)
	Act(ctx context.Context, actor staff.Actor, id string, action application.Action, notes string) (*application.Entity, error)
	ExportCSV(ctx context.Context, f application.ListFilter, w io.Writer) error
}

type URLSigner interface {
	SignOptional(ctx context.Context, actor staff.Actor, bucket document.Bucket, key string) *document.SignedURL
}

type DocumentRenderer interface {
	NewView(app *application.Entity, photoURL, signatureURL string) report.View
	HTML(v report.View) (string, error)
	PDF(ctx context.Context, v report.View) ([]byte, error)
}

type RiskAnalyzer interface {
	Analyze(ctx context.Context, app *application.Entity) (string, error)
}

type ApplicationHandler struct {
	service  ApplicationService
	signer   URLSigner
	renderer DocumentRenderer
	risk     RiskAnalyzer
}

func NewApplicationHandler(service ApplicationService, signer URLSigner, renderer DocumentRenderer, risk RiskAnalyzer) *ApplicationHandler {
	return &ApplicationHandler{service: service, signer: signer, renderer: renderer, risk: risk}
}

type decisionRequest struct {
	Notes string `json:"notes"`
}

type riskResponse struct {
	ApplicationID string `json:"application_id"`
	Analysis      string `json:"analysis"`
}

func (h *ApplicationHandler) Eligibility(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	verdict, err := h.service.Eligibility(c.Request.Context(), actor.UserID)
	if err != nil {
		_ = c.Error(err)
	}
	c.JSON(http.StatusOK, verdict)
}

// Submit serves both the customer wizard and credit officers applying on a
// customer's behalf; the service tells them apart by role.
func (h *ApplicationHandler) Submit(c *gin.Context) {
	var req application.SubmitInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	actor, _ := middleware.ActorFrom(c)
	created, err := h.service.Submit(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *ApplicationHandler) ListMine(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	limit, offset := pageParams(c)
	items, err := h.service.ListMine(c.Request.Context(), actor.UserID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *ApplicationHandler) Get(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	app, err := h.service.GetForActor(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application": app, "files": h.signedFiles(c, actor, app)})
}

// signedFiles mints read URLs for every document the application references.
func (h *ApplicationHandler) signedFiles(c *gin.Context, actor staff.Actor, app *application.Entity) map[string]*document.SignedURL {
	ctx := c.Request.Context()
	files := map[string]*document.SignedURL{
		"passport_photo": h.signer.SignOptional(ctx, actor, document.BucketPassportPhotos, app.Documents.PassportPhotoPath),
		"id_document":    h.signer.SignOptional(ctx, actor, document.BucketLoanUploads, app.Documents.IDDocumentPath),
		"utility_bill":   h.signer.SignOptional(ctx, actor, document.BucketLoanUploads, app.Documents.UtilityBillPath),
		"bank_statement": h.signer.SignOptional(ctx, actor, document.BucketLoanUploads, app.Documents.BankStatementPath),
	}
	if app.Guarantor != nil {
		files["guarantor_signature"] = h.signer.SignOptional(ctx, actor, document.BucketSignatures, app.Guarantor.SignaturePath)
	}
	return files
}

func (h *ApplicationHandler) Document(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	ctx := c.Request.Context()
	app, err := h.service.GetForActor(ctx, actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	var photo, signature string
	if u := h.signer.SignOptional(ctx, actor, document.BucketPassportPhotos, app.Documents.PassportPhotoPath); u != nil {
		photo = u.URL
	}
	if app.Guarantor != nil {
		if u := h.signer.SignOptional(ctx, actor, document.BucketSignatures, app.Guarantor.SignaturePath); u != nil {
			signature = u.URL
		}
	}
	view := h.renderer.NewView(app, photo, signature)

	if strings.EqualFold(c.Query("format"), "pdf") {
		pdf, err := h.renderer.PDF(ctx, view)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Header("Content-Disposition", `inline; filename="loan-application-`+app.ID+`.pdf"`)
		c.Data(http.StatusOK, "application/pdf", pdf)
		return
	}

	html, err := h.renderer.HTML(view)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (h *ApplicationHandler) AdminList(c *gin.Context) {
	f, ok := adminFilter(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_filter"})
		return
	}
	items, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": f.Limit, "offset": f.Offset})
}

func (h *ApplicationHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *ApplicationHandler) Approve(c *gin.Context) { h.act(c, application.ActionApprove) }
func (h *ApplicationHandler) Decline(c *gin.Context) { h.act(c, application.ActionDecline) }
func (h *ApplicationHandler) Flag(c *gin.Context)    { h.act(c, application.ActionFlag) }

func (h *ApplicationHandler) act(c *gin.Context, action application.Action) {
	var req decisionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c)
			return
		}
	}
	actor, _ := middleware.ActorFrom(c)
	updated, err := h.service.Act(c.Request.Context(), actor, c.Param("id"), action, req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *ApplicationHandler) ExportCSV(c *gin.Context) {
	f, ok := adminFilter(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_filter"})
		return
	}
	name := "loan-applications-" + time.Now().UTC().Format("20060102") + ".csv"
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Status(http.StatusOK)
	if err := h.service.ExportCSV(c.Request.Context(), f, c.Writer); err != nil {
		// Headers are gone by now; the truncated body is all we can signal.
		_ = c.Error(err)
	}
}

func (h *ApplicationHandler) RiskAnalysis(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	app, err := h.service.GetForActor(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	analysis, err := h.risk.Analyze(c.Request.Context(), app)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, riskResponse{ApplicationID: app.ID, Analysis: analysis})
}

func adminFilter(c *gin.Context) (application.ListFilter, bool) {
	limit, offset := pageParams(c)
	f := application.ListFilter{
		Query:  strings.TrimSpace(c.Query("q")),
		Limit:  limit,
		Offset: offset,
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		s, ok := application.ParseStatus(raw)
		if !ok {
			return f, false
		}
		f.Status = string(s)
	}
	if raw := strings.TrimSpace(c.Query("stage")); raw != "" {
		switch r := staff.Role(raw); r {
		case staff.RoleCredit, staff.RoleAudit, staff.RoleCOO:
			f.Stage = r
		default:
			return f, false
		}
	}
	return f, true
}

func pageParams(c *gin.Context) (int32, int32) {
	limit, _ := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("limit", "50")), 10, 32)
	offset, _ := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("offset", "0")), 10, 32)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return int32(limit), int32(offset)
}
