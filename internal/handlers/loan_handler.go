package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "loanflow/internal/errors"
	"loanflow/internal/models"
	"loanflow/internal/pagination"
	"loanflow/internal/services"
)

// LoanHandler handles loan request endpoints: CRUD, the borrower workflow
// actions, and the ops pipeline.
type LoanHandler struct {
	loanService   services.LoanServicer
	statusService services.StatusServicer
	auditService  services.AuditServicer
}

// NewLoanHandler creates a new LoanHandler.
func NewLoanHandler(loanService services.LoanServicer, statusService services.StatusServicer, auditService services.AuditServicer) *LoanHandler {
	return &LoanHandler{loanService: loanService, statusService: statusService, auditService: auditService}
}

// CreateLoanRequest represents the request payload for creating a loan request.
type CreateLoanRequest struct {
	PropertyType            string  `json:"property_type" binding:"required,property_type"`
	RequestType             string  `json:"request_type" binding:"required,request_type"`
	PropertyValue           float64 `json:"property_value" binding:"required,gt=0"`
	RequestedLTV            float64 `json:"requested_ltv" binding:"required,gt=0,lte=100"`
	DocumentationType       string  `json:"documentation_type" binding:"required,documentation_type"`
	CreditScore             *int    `json:"credit_score" binding:"omitempty,min=300,max=850"`
	AnnualRentalIncome      float64 `json:"annual_rental_income" binding:"gte=0"`
	AnnualOperatingExpenses float64 `json:"annual_operating_expenses" binding:"gte=0"`
	AnnualLoanPayments      float64 `json:"annual_loan_payments" binding:"gte=0"`
}

// UpdateLoanRequest represents the request payload for updating a loan's
// financial snapshot before submission.
type UpdateLoanRequest = CreateLoanRequest

// CreditAuthorizationRequest records the borrower's explicit consent to a
// credit pull.
type CreditAuthorizationRequest struct {
	Consent bool `json:"consent"`
}

// SetStatusRequest is the ops status override payload.
type SetStatusRequest struct {
	Status string `json:"status" binding:"required,loan_status"`
	Notes  string `json:"notes" binding:"max=500"`
}

// PipelineQuery holds the ops pipeline list filters.
type PipelineQuery struct {
	pagination.PageRequest
	Status string `form:"status" binding:"omitempty,loan_status"`
}

func (r CreateLoanRequest) toInput() services.CreateLoanInput {
	return services.CreateLoanInput{
		PropertyType:            r.PropertyType,
		RequestType:             r.RequestType,
		PropertyValue:           r.PropertyValue,
		RequestedLTV:            r.RequestedLTV,
		DocumentationType:       models.DocumentationType(r.DocumentationType),
		CreditScore:             r.CreditScore,
		AnnualRentalIncome:      r.AnnualRentalIncome,
		AnnualOperatingExpenses: r.AnnualOperatingExpenses,
		AnnualLoanPayments:      r.AnnualLoanPayments,
	}
}

// CreateLoan handles the creation of a new loan request
// @Summary     Create a loan request
// @Description Create a new loan request in new_request status
// @Tags        loans
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateLoanRequest true "Loan request details"
// @Success     201 {object} models.LoanRequest "Loan request created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans [post]
func (h *LoanHandler) CreateLoan(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	loan, err := h.loanService.CreateLoan(userID, req.toInput())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_LOAN", "loan_request", loan.ID, c.ClientIP(),
		map[string]interface{}{"reference_number": loan.ReferenceNumber})

	c.JSON(http.StatusCreated, gin.H{"loan": loan})
}

// GetLoans lists the authenticated borrower's loan requests
// @Summary     List my loan requests
// @Description List the authenticated borrower's loan requests, newest first
// @Tags        loans
// @Produce     json
// @Security    BearerAuth
// @Param       page query int false "Page number"
// @Param       page_size query int false "Page size"
// @Success     200 {object} pagination.PageResponse[models.LoanRequest] "Loan requests"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans [get]
func (h *LoanHandler) GetLoans(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.loanService.GetBorrowerLoans(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetLoan retrieves a single loan request
// @Summary     Get a loan request
// @Description Get a loan request by ID. Borrowers can only access their own loans.
// @Tags        loans
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Loan request ID"
// @Success     200 {object} models.LoanRequest "Loan request"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/{id} [get]
func (h *LoanHandler) GetLoan(c *gin.Context) {
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

	loan, err := h.loanService.GetLoan(loanID, actor)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"loan": loan})
}

// UpdateLoan updates a loan's financial snapshot
// @Summary     Update a loan request
// @Description Update the financial snapshot of an unsubmitted loan request
// @Tags        loans
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Loan request ID"
// @Param       request body UpdateLoanRequest true "Updated financials"
// @Success     200 {object} models.LoanRequest "Loan request updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     412 {object} ErrorResponse "Loan already submitted"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/{id} [put]
func (h *LoanHandler) UpdateLoan(c *gin.Context) {
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

	var req UpdateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	loan, err := h.loanService.UpdateFinancials(loanID, actor, req.toInput())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor.ID, "UPDATE_LOAN", "loan_request", loan.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"loan": loan})
}

// Submit submits a loan request for a quote
// @Summary     Submit a loan request
// @Description Run the eligibility pre-check and move the loan to quote_requested, or decline it
// @Tags        loans
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Loan request ID"
// @Success     200 {object} services.SubmitResult "Submission outcome"
// @Failure     400 {object} ErrorResponse "Eligibility pre-check failed"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/{id}/submit [post]
func (h *LoanHandler) Submit(c *gin.Context) {
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

	result, err := h.loanService.Submit(loanID, actor)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor.ID, "SUBMIT_LOAN", "loan_request", loanID, c.ClientIP(),
		map[string]interface{}{"declined": result.Declined})

	c.JSON(http.StatusOK, result)
}

// AuthorizeCredit records credit pull consent
// @Summary     Authorize a credit pull
// @Description Record the borrower's explicit consent to a credit pull
// @Tags        loans
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Loan request ID"
// @Param       request body CreditAuthorizationRequest true "Consent"
// @Success     200 {object} models.LoanRequest "Credit authorized"
// @Failure     400 {object} ErrorResponse "Consent not given"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     412 {object} ErrorResponse "Already authorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/{id}/credit-authorization [post]
func (h *LoanHandler) AuthorizeCredit(c *gin.Context) {
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

	var req CreditAuthorizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	loan, err := h.loanService.AuthorizeCredit(loanID, actor, req.Consent)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor.ID, "AUTHORIZE_CREDIT", "loan_request", loan.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"loan": loan})
}

// ApproveQuote runs the quote function for a loan
// @Summary     Approve or decline a quote
// @Description Run the quote function: issue a soft quote or decline the loan
// @Tags        ops
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Loan request ID"
// @Success     200 {object} services.QuoteOutcome "Quote outcome"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Staff only"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     412 {object} ErrorResponse "Credit not authorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ops/loans/{id}/quote [post]
func (h *LoanHandler) ApproveQuote(c *gin.Context) {
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

	outcome, err := h.loanService.ApproveQuote(loanID, actor)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor.ID, "APPROVE_QUOTE", "loan_request", loanID, c.ClientIP(),
		map[string]interface{}{"approved": outcome.Quote.Approved})

	c.JSON(http.StatusOK, outcome)
}

// SignTermSheet records the borrower's term sheet signature
// @Summary     Sign the term sheet
// @Description Record the signature and advance the loan to needs_list_sent
// @Tags        loans
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Loan request ID"
// @Success     200 {object} models.LoanRequest "Term sheet signed"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     412 {object} ErrorResponse "Quote not generated"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/{id}/term-sheet/sign [post]
func (h *LoanHandler) SignTermSheet(c *gin.Context) {
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

	loan, err := h.loanService.SignTermSheet(loanID, actor)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor.ID, "SIGN_TERM_SHEET", "loan_request", loan.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"loan": loan})
}

// RenderTermSheet renders the loan's term sheet document
// @Summary     Render the term sheet
// @Description Render the quote snapshot into a term sheet document and return its locator
// @Tags        loans
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Loan request ID"
// @Success     200 {object} map[string]string "Term sheet document key"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     412 {object} ErrorResponse "Quote not generated"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/{id}/term-sheet [get]
func (h *LoanHandler) RenderTermSheet(c *gin.Context) {
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

	key, err := h.loanService.RenderTermSheet(loanID, actor)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"term_sheet": key})
}

// CompleteNeedsList marks the needs list complete
// @Summary     Complete the needs list
// @Description Move the loan to needs_list_complete once every required folder has an upload
// @Tags        loans
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Loan request ID"
// @Success     200 {object} models.LoanRequest "Needs list complete"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     412 {object} ErrorResponse "Required documents missing"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/{id}/needs-list/complete [post]
func (h *LoanHandler) CompleteNeedsList(c *gin.Context) {
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

	loan, err := h.loanService.CompleteNeedsList(loanID, actor)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor.ID, "COMPLETE_NEEDS_LIST", "loan_request", loan.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"loan": loan})
}

// GetHistory returns the loan's status history
// @Summary     Get status history
// @Description List every status transition the loan has gone through, oldest first
// @Tags        loans
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Loan request ID"
// @Success     200 {object} map[string][]models.StatusHistoryEntry "History entries"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/{id}/history [get]
func (h *LoanHandler) GetHistory(c *gin.Context) {
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

	history, err := h.loanService.GetHistory(loanID, actor)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": history})
}

// GetPipeline lists all loans for the ops pipeline view
// @Summary     List the pipeline
// @Description List all loan requests, optionally filtered by status
// @Tags        ops
// @Produce     json
// @Security    BearerAuth
// @Param       page query int false "Page number"
// @Param       page_size query int false "Page size"
// @Param       status query string false "Filter by status"
// @Success     200 {object} pagination.PageResponse[models.LoanRequest] "Loan requests"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Staff only"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ops/pipeline [get]
func (h *LoanHandler) GetPipeline(c *gin.Context) {
	var query PipelineQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var status *models.LoanStatus
	if query.Status != "" {
		s := models.LoanStatus(query.Status)
		status = &s
	}

	result, err := h.loanService.GetPipeline(query.PageRequest, status)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SetStatus is the ops status override
// @Summary     Set a loan's status
// @Description Set any loan status directly, recording history and notifying the borrower
// @Tags        ops
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Loan request ID"
// @Param       request body SetStatusRequest true "Target status"
// @Success     200 {object} models.LoanRequest "Status updated"
// @Failure     400 {object} ErrorResponse "Unknown status"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Staff only"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ops/loans/{id}/status [put]
func (h *LoanHandler) SetStatus(c *gin.Context) {
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

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	loan, err := h.statusService.SetStatus(loanID, models.LoanStatus(req.Status), actor, req.Notes)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor.ID, "SET_STATUS", "loan_request", loan.ID, c.ClientIP(),
		map[string]interface{}{"status": req.Status, "notes": req.Notes})

	c.JSON(http.StatusOK, gin.H{"loan": loan})
}
