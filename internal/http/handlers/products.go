package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lumenmfb/backend/internal/domain/application"
)

func ListProducts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"items":            application.Quotes(),
		"repayment_months": application.RepaymentTerms,
	})
}
