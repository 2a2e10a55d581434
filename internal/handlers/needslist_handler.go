package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "loanflow/internal/errors"
	"loanflow/internal/services"
)

// NeedsListHandler handles needs-list endpoints.
type NeedsListHandler struct {
	needsListService services.NeedsListServicer
	loanService      services.LoanServicer
	auditService     services.AuditServicer
}

// NewNeedsListHandler creates a new NeedsListHandler.
func NewNeedsListHandler(needsListService services.NeedsListServicer, loanService services.LoanServicer, auditService services.AuditServicer) *NeedsListHandler {
	return &NeedsListHandler{needsListService: needsListService, loanService: loanService, auditService: auditService}
}

// AddNeedsItemRequest is the ops payload for requesting an ad-hoc document.
type AddNeedsItemRequest struct {
	FolderName   string `json:"folder_name" binding:"required,min=1,max=100"`
	DocumentType string `json:"document_type" binding:"required,min=1,max=100"`
	Description  string `json:"description" binding:"max=500"`
	Required     *bool  `json:"required"`
}

// ReviewNeedsItemRequest is the ops review decision payload.
type ReviewNeedsItemRequest struct {
	Approve bool `json:"approve"`
}

// scopeLoan runs the loan lookup purely for its ownership check.
func (h *NeedsListHandler) scopeLoan(c *gin.Context) (uint, services.Actor, bool) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return 0, services.Actor{}, false
	}
	loanID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return 0, services.Actor{}, false
	}
	if _, err := h.loanService.GetLoan(loanID, actor); err != nil {
		respondWithError(c, err)
		return 0, services.Actor{}, false
	}
	return loanID, actor, true
}

// GetItems lists the loan's needs-list items
// @Summary     List needs-list items
// @Description List the required and requested document folders for a loan
// @Tags        needs-list
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Loan request ID"
// @Success     200 {object} map[string][]models.NeedsListItem "Needs-list items"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/{id}/needs-list [get]
func (h *NeedsListHandler) GetItems(c *gin.Context) {
	loanID, _, ok := h.scopeLoan(c)
	if !ok {
		return
	}

	items, err := h.needsListService.GetItems(loanID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GetFolders returns the derived per-folder upload status
// @Summary     Get folder statuses
// @Description Get each folder's document count, last upload time, and color indicator
// @Tags        needs-list
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Loan request ID"
// @Success     200 {object} map[string][]services.FolderStatus "Folder statuses"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/{id}/needs-list/folders [get]
func (h *NeedsListHandler) GetFolders(c *gin.Context) {
	loanID, _, ok := h.scopeLoan(c)
	if !ok {
		return
	}

	folders, err := h.needsListService.FolderStatuses(loanID, time.Now())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"folders": folders})
}

// AddItem requests an additional document from the borrower
// @Summary     Request an additional document
// @Description Add an ad-hoc document folder to the loan's needs list
// @Tags        ops
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Loan request ID"
// @Param       request body AddNeedsItemRequest true "Document to request"
// @Success     201 {object} models.NeedsListItem "Item created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Staff only"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     409 {object} ErrorResponse "Folder already requested"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ops/loans/{id}/needs-list [post]
func (h *NeedsListHandler) AddItem(c *gin.Context) {
	loanID, actor, ok := h.scopeLoan(c)
	if !ok {
		return
	}

	var req AddNeedsItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	required := true
	if req.Required != nil {
		required = *req.Required
	}

	item, err := h.needsListService.AddItem(loanID, actor, req.FolderName, req.DocumentType, req.Description, required)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor.ID, "ADD_NEEDS_ITEM", "needs_list_item", item.ID, c.ClientIP(),
		map[string]interface{}{"folder_name": req.FolderName})

	c.JSON(http.StatusCreated, gin.H{"item": item})
}

// ReviewItem records a review decision on a needs-list item
// @Summary     Review a needs-list item
// @Description Mark an uploaded item as reviewed or rejected
// @Tags        ops
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       itemId path int true "Needs-list item ID"
// @Param       request body ReviewNeedsItemRequest true "Review decision"
// @Success     200 {object} models.NeedsListItem "Item reviewed"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Staff only"
// @Failure     404 {object} ErrorResponse "Item not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ops/needs-list/{itemId}/review [post]
func (h *NeedsListHandler) ReviewItem(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	itemID, err := parsePathID(c, "itemId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ReviewNeedsItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	item, err := h.needsListService.ReviewItem(itemID, actor, req.Approve)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor.ID, "REVIEW_NEEDS_ITEM", "needs_list_item", item.ID, c.ClientIP(),
		map[string]interface{}{"approve": req.Approve})

	c.JSON(http.StatusOK, gin.H{"item": item})
}
