package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "loanflow/internal/errors"
	"loanflow/internal/services"
)

// PaymentHandler handles appraisal fee payment endpoints.
type PaymentHandler struct {
	paymentService services.PaymentServicer
	auditService   services.AuditServicer
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService services.PaymentServicer, auditService services.AuditServicer) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, auditService: auditService}
}

// PaymentWebhookRequest is the gateway completion callback payload.
type PaymentWebhookRequest struct {
	IntentID string `json:"intent_id" binding:"required"`
}

// CreateAppraisalIntent opens a payment intent for the appraisal fee
// @Summary     Create an appraisal payment intent
// @Description Open a payment intent for the loan's appraisal fee
// @Tags        payments
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Loan request ID"
// @Success     201 {object} services.PaymentIntent "Payment intent"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     412 {object} ErrorResponse "Term sheet not signed or fee already paid"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/{id}/appraisal-payment [post]
func (h *PaymentHandler) CreateAppraisalIntent(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	loanID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	intent, err := h.paymentService.CreateAppraisalIntent(loanID, actor)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor.ID, "CREATE_PAYMENT_INTENT", "loan_request", loanID, c.ClientIP(),
		map[string]interface{}{"intent_id": intent.ID, "amount": intent.Amount})

	c.JSON(http.StatusCreated, gin.H{"intent": intent})
}

// Webhook processes a gateway payment completion callback
// @Summary     Payment completion webhook
// @Description Process a payment gateway completion callback for an appraisal fee
// @Tags        payments
// @Accept      json
// @Produce     json
// @Param       request body PaymentWebhookRequest true "Completed intent"
// @Success     200 {object} models.LoanRequest "Loan updated"
// @Failure     400 {object} ErrorResponse "Unknown intent"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /webhooks/payments [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var req PaymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	loan, err := h.paymentService.HandleCompletion(req.IntentID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"loan": loan})
}
