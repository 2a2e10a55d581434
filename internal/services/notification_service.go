package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "loanflow/internal/errors"
	"loanflow/internal/logger"
	"loanflow/internal/models"
	"loanflow/internal/pagination"
)

// notificationService fans out user-facing notices on workflow transitions.
// Dispatch failures are logged and never propagate: a lost notification must
// not roll back the transition that triggered it.
type notificationService struct {
	db     *gorm.DB
	emails EmailQueue
}

// NewNotificationService creates a new NotificationServicer.
func NewNotificationService(db *gorm.DB, emails EmailQueue) NotificationServicer {
	return &notificationService{db: db, emails: emails}
}

// NotifyBorrower creates a single notification row for the loan's borrower.
func (s *notificationService) NotifyBorrower(loan *models.LoanRequest, typ models.NotificationType, title, message string) {
	if loan == nil {
		return
	}
	s.insert([]uint{loan.BorrowerID}, loan, typ, title, message)
}

// NotifyOps broadcasts one notification row per active ops/admin user.
// Recipients are recomputed from current role membership at dispatch time;
// role changes never rewrite past notifications.
func (s *notificationService) NotifyOps(loan *models.LoanRequest, typ models.NotificationType, title, message string) {
	var staff []models.User
	if err := s.db.Where("role IN ? AND is_active = ?", []models.Role{models.RoleOps, models.RoleAdmin}, true).
		Find(&staff).Error; err != nil {
		logger.Get().Errorw("failed to resolve ops recipients",
			"error", err,
			"type", typ,
		)
		return
	}

	recipients := make([]uint, 0, len(staff))
	for i := range staff {
		recipients = append(recipients, staff[i].ID)
	}
	s.insert(recipients, loan, typ, title, message)
}

// insert performs the broadcast insert and enqueues matching email
// payloads, all best-effort.
func (s *notificationService) insert(recipients []uint, loan *models.LoanRequest, typ models.NotificationType, title, message string) {
	if len(recipients) == 0 {
		return
	}

	var loanID *uint
	if loan != nil {
		id := loan.ID
		loanID = &id
	}

	rows := make([]models.Notification, 0, len(recipients))
	for _, recipient := range recipients {
		rows = append(rows, models.Notification{
			RecipientID:   recipient,
			LoanRequestID: loanID,
			Type:          typ,
			Title:         title,
			Message:       message,
		})
	}

	if err := s.db.Create(&rows).Error; err != nil {
		logger.Get().Errorw("failed to create notifications",
			"error", err,
			"type", typ,
			"recipients", len(recipients),
		)
		return
	}

	for _, recipient := range recipients {
		if err := s.emails.Enqueue(EmailPayload{
			RecipientID: recipient,
			Type:        typ,
			Subject:     title,
			Body:        message,
		}); err != nil {
			logger.Get().Errorw("failed to enqueue notification email",
				"error", err,
				"recipient_id", recipient,
				"type", typ,
			)
		}
	}
}

// GetUserNotifications returns a paginated list of the user's
// notifications, newest first.
func (s *notificationService) GetUserNotifications(userID uint, page pagination.PageRequest, unreadOnly bool) (*pagination.PageResponse[models.Notification], error) {
	page.Defaults()

	base := s.db.Model(&models.Notification{}).Where("recipient_id = ?", userID)
	if unreadOnly {
		base = base.Where("read = ?", false)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var notifications []models.Notification
	if err := base.Scopes(pagination.Paginate(page)).
		Order("created_at DESC").
		Find(&notifications).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(notifications, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// MarkRead marks a notification read. Only the recipient may mutate it.
func (s *notificationService) MarkRead(userID, notificationID uint) (*models.Notification, error) {
	var notification models.Notification
	if err := s.db.Where("id = ? AND recipient_id = ?", notificationID, userID).
		First(&notification).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotificationNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if !notification.Read {
		notification.Read = true
		if err := s.db.Model(&notification).Update("read", true).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return &notification, nil
}
