package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "loanflow/internal/errors"
	"loanflow/internal/services"
)

// maxUploadSize caps individual document uploads at 25 MiB.
const maxUploadSize = 25 << 20

// DocumentHandler handles document upload and retrieval endpoints.
type DocumentHandler struct {
	documentService services.DocumentServicer
	loanService     services.LoanServicer
	auditService    services.AuditServicer
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(documentService services.DocumentServicer, loanService services.LoanServicer, auditService services.AuditServicer) *DocumentHandler {
	return &DocumentHandler{documentService: documentService, loanService: loanService, auditService: auditService}
}

// Upload receives a document for a loan
// @Summary     Upload a document
// @Description Upload a document into a needs-list folder as multipart form data
// @Tags        documents
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Loan request ID"
// @Param       file formData file true "Document file"
// @Param       folder_name formData string true "Target folder name"
// @Param       item_id formData int false "Needs-list item ID to link"
// @Success     201 {object} models.Document "Document uploaded"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     413 {object} ErrorResponse "File too large"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/{id}/documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
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

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "a file is required"))
		return
	}
	if fileHeader.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": gin.H{"code": "FILE_TOO_LARGE", "message": "The file exceeds the upload size limit"},
		})
		return
	}

	folderName := c.PostForm("folder_name")
	if folderName == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "folder_name is required"))
		return
	}

	var itemID *uint
	if raw := c.PostForm("item_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid item_id"))
			return
		}
		parsed := uint(id)
		itemID = &parsed
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}
	defer file.Close()

	doc, err := h.documentService.Upload(loanID, actor, itemID, folderName, fileHeader.Filename, file)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor.ID, "UPLOAD_DOCUMENT", "document", doc.ID, c.ClientIP(),
		map[string]interface{}{"folder_name": folderName, "file_name": fileHeader.Filename})

	c.JSON(http.StatusCreated, gin.H{"document": doc})
}

// GetLoanDocuments lists documents for a loan
// @Summary     List documents
// @Description List the documents uploaded for a loan, newest first
// @Tags        documents
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Loan request ID"
// @Success     200 {object} map[string][]models.Document "Documents"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/{id}/documents [get]
func (h *DocumentHandler) GetLoanDocuments(c *gin.Context) {
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

	if _, err := h.loanService.GetLoan(loanID, actor); err != nil {
		respondWithError(c, err)
		return
	}

	docs, err := h.documentService.GetLoanDocuments(loanID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// Delete removes a document
// @Summary     Delete a document
// @Description Delete a document. Only the uploader or staff may delete.
// @Tags        documents
// @Produce     json
// @Security    BearerAuth
// @Param       documentId path int true "Document ID"
// @Success     204 "Document deleted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Document not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /documents/{documentId} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	documentID, err := parsePathID(c, "documentId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.documentService.Delete(documentID, actor); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor.ID, "DELETE_DOCUMENT", "document", documentID, c.ClientIP(), nil)

	c.Status(http.StatusNoContent)
}
