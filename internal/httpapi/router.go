// Package httpapi is the HTTP surface of the settlement daemon: the
// gateway return page, flow status reads and health/metrics endpoints.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crowdfund-settlement/internal/domain"
	"crowdfund-settlement/internal/flow"
	"crowdfund-settlement/internal/observability"
)

// RouterDeps carries the wired pipeline into the router.
type RouterDeps struct {
	Pipeline *flow.Pipeline
}

// BuildRouter constructs the gin engine with all routes registered.
func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.Default()

	h := &handler{pipeline: dep.Pipeline}

	r.GET("/healthz", h.healthz)
	r.GET("/metrics", gin.WrapH(observability.Handler()))
	r.GET("/payments/return", h.paymentReturn)
	r.GET("/flows/:id", h.flowStatus)

	return r
}

type handler struct {
	pipeline *flow.Pipeline
}

func (h *handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// paymentReturn is the gateway return page. The hosted payment redirect
// destroyed all in-memory flow state; resumption is a function of the
// tx_ref / transaction_id query parameters alone.
func (h *handler) paymentReturn(c *gin.Context) {
	txRef := c.Query("tx_ref")
	transactionID := c.Query("transaction_id")

	state, err := h.pipeline.Resume(c.Request.Context(), txRef, transactionID)
	if err != nil {
		status, body := renderError(err)
		if state != nil {
			body["flow"] = renderState(state)
		}
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{"flow": renderState(state)})
}

func (h *handler) flowStatus(c *gin.Context) {
	state, ok := h.pipeline.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown flow"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"flow": renderState(state)})
}

// renderState shapes a flow state for the wire.
func renderState(s *flow.State) gin.H {
	out := gin.H{
		"id":     s.ID,
		"status": string(s.Status),
	}
	if s.Reference != nil {
		out["reference"] = s.Reference.Reference
		out["channel"] = string(s.Reference.Channel)
	}
	if s.RedirectURL != "" {
		out["redirectUrl"] = s.RedirectURL
	}
	if s.Record != nil {
		out["investmentId"] = s.Record.InvestmentID
		out["certRef"] = s.Record.CertRef
	}
	if s.Caveat {
		out["caveat"] = "recorded externally; platform bookkeeping pending"
	}
	if s.LastError != "" {
		out["lastError"] = s.LastError
	}
	return out
}

// renderError maps the failure taxonomy onto HTTP statuses. Ambiguity is
// deliberately not an error status: the settlement may still confirm.
func renderError(err error) (int, gin.H) {
	switch domain.CategoryOf(err) {
	case domain.FailureUserRecoverable:
		return http.StatusBadRequest, gin.H{"error": err.Error()}
	case domain.FailureSubmission:
		return http.StatusBadGateway, gin.H{"error": err.Error()}
	case domain.FailureAmbiguous:
		return http.StatusAccepted, gin.H{
			"outcome": "unknown",
			"detail":  "confirmation not obtained yet; check transaction history",
		}
	}
	return http.StatusInternalServerError, gin.H{"error": err.Error()}
}
