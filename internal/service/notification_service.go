package service

import (
	"context"
	"fmt"

	"campusconnect/internal/domain"
	"campusconnect/internal/models"
	"campusconnect/internal/repository"
	"campusconnect/internal/ws"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type NotificationService struct {
	repo *repository.NotificationRepository
	hub  *ws.Hub
	log  *zap.Logger
}

func NewNotificationService(repo *repository.NotificationRepository, hub *ws.Hub, log *zap.Logger) *NotificationService {
	return &NotificationService{repo: repo, hub: hub, log: log}
}

// Notify stores a notification for userID and pushes it to their open connections.
func (s *NotificationService) Notify(ctx context.Context, userID, notifType, title, message string, data map[string]interface{}) error {
	err := s.repo.Create(ctx, &models.Notification{
		UserID:   userID,
		Type:     notifType,
		Title:    title,
		Message:  message,
		Metadata: datatypes.JSONMap(data),
	})
	if err != nil {
		return err
	}
	s.Toast(userID, ws.Toast{Type: ws.ToastInfo, Title: title, Message: message})
	return nil
}

// Toast pushes a transient notification without storing it.
func (s *NotificationService) Toast(userID string, t ws.Toast) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(userID, t)
}

func (s *NotificationService) logFailure(err error, what string) {
	if err != nil {
		s.log.Warn("notification not stored", zap.String("kind", what), zap.Error(err))
	}
}

// NotifyGroupJoined tells the group creator someone joined.
func (s *NotificationService) NotifyGroupJoined(ctx context.Context, g *models.Group, joinerName string) {
	if g.CreatedBy == "" {
		return
	}
	err := s.Notify(ctx, g.CreatedBy, domain.NotificationGroupInvite, "New group member",
		fmt.Sprintf("%s joined %s", joinerName, g.Name), map[string]interface{}{"groupId": g.ID})
	s.logFailure(err, "group_joined")
}

func (s *NotificationService) NotifySessionJoined(ctx context.Context, sess *models.StudySession, joinerName string) {
	err := s.Notify(ctx, sess.CreatedBy, domain.NotificationSessionReminder, "New attendee",
		fmt.Sprintf("%s is attending %s", joinerName, sess.Title), map[string]interface{}{"sessionId": sess.ID})
	s.logFailure(err, "session_joined")
}

func (s *NotificationService) NotifyProjectJoined(ctx context.Context, p *models.Project, joinerName string) {
	err := s.Notify(ctx, p.CreatedBy, domain.NotificationProjectUpdate, "New collaborator",
		fmt.Sprintf("%s joined %s", joinerName, p.Title), map[string]interface{}{"projectId": p.ID})
	s.logFailure(err, "project_joined")
}

// NotifyResourceShared tells every other group member about a new resource.
func (s *NotificationService) NotifyResourceShared(ctx context.Context, g *models.Group, r *models.Resource) {
	for _, member := range g.Members {
		if member == r.UploadedBy {
			continue
		}
		err := s.Notify(ctx, member, domain.NotificationResourceShared, "New resource",
			fmt.Sprintf("%s was shared in %s", r.FileName, g.Name), map[string]interface{}{"resourceId": r.ID, "groupId": g.ID})
		s.logFailure(err, "resource_shared")
	}
}

// NotifyPaymentCompleted stores the receipt and shows the success toast.
func (s *NotificationService) NotifyPaymentCompleted(ctx context.Context, p *models.Payment) {
	hash := ""
	if p.TransactionHash != nil {
		hash = *p.TransactionHash
	}
	err := s.repo.Create(ctx, &models.Notification{
		UserID:   p.UserID,
		Type:     domain.NotificationPayment,
		Title:    "Payment successful!",
		Message:  fmt.Sprintf("Paid %s USDC for %s", p.Amount.StringFixed(2), p.Purpose),
		Metadata: datatypes.JSONMap{"paymentId": p.ID, "transactionHash": hash},
	})
	s.logFailure(err, "payment")
	s.Toast(p.UserID, ws.Toast{Type: ws.ToastSuccess, Title: "Payment successful!", Message: "Transaction: " + hash})
}

func (s *NotificationService) NotifyPaymentFailed(userID, message string) {
	s.Toast(userID, ws.Toast{Type: ws.ToastError, Title: "Payment failed", Message: message})
}

func (s *NotificationService) List(ctx context.Context, userID string, limit, offset int) ([]models.Notification, int64, error) {
	list, err := s.repo.ListByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return list, unread, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	return s.repo.MarkRead(ctx, id, userID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	return s.repo.MarkAllRead(ctx, userID)
}
