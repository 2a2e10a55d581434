package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "loanflow/internal/errors"
	"loanflow/internal/pagination"
	"loanflow/internal/services"
)

// NotificationHandler handles in-app notification endpoints.
type NotificationHandler struct {
	notificationService services.NotificationServicer
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notificationService services.NotificationServicer) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// NotificationQuery holds the notification list filters.
type NotificationQuery struct {
	pagination.PageRequest
	UnreadOnly bool `form:"unread_only"`
}

// GetNotifications lists the authenticated user's notifications
// @Summary     List notifications
// @Description List the authenticated user's notifications, newest first
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Param       page query int false "Page number"
// @Param       page_size query int false "Page size"
// @Param       unread_only query bool false "Only unread notifications"
// @Success     200 {object} pagination.PageResponse[models.Notification] "Notifications"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /notifications [get]
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var query NotificationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.notificationService.GetUserNotifications(userID, query.PageRequest, query.UnreadOnly)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// MarkRead marks a notification as read
// @Summary     Mark a notification read
// @Description Mark one of the authenticated user's notifications as read
// @Tags        notifications
// @Produce     json
// @Security    BearerAuth
// @Param       notificationId path int true "Notification ID"
// @Success     200 {object} models.Notification "Notification updated"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Notification not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /notifications/{notificationId}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	notificationID, err := parsePathID(c, "notificationId")
	if err != nil {
		respondWithError(c, err)
		return
	}

	notification, err := h.notificationService.MarkRead(userID, notificationID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notification": notification})
}
