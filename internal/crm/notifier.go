// internal/crm/notifier.go
package crm

import (
	"context"
	"fmt"
	"strings"

	"intake-crm/internal/common/logger"
	"intake-crm/internal/models"
)

// EmailSender is satisfied by aws.SESClient.
type EmailSender interface {
	SendText(ctx context.Context, from string, to []string, subject, body string) (string, error)
}

// TopicPublisher is satisfied by aws.SNSClient.
type TopicPublisher interface {
	Publish(ctx context.Context, topicARN, subject, message string, attributes map[string]string) (string, error)
}

type NotifierConfig struct {
	FromEmail  string
	Recipients []string
	TopicARN   string
}

// Notifier announces newly created CRM records. Delivery failures never
// affect ingestion.
type Notifier struct {
	config    NotifierConfig
	email     EmailSender
	publisher TopicPublisher
	logger    logger.Logger
}

// NewNotifier builds a notifier; either channel may be nil.
func NewNotifier(cfg NotifierConfig, email EmailSender, publisher TopicPublisher, log logger.Logger) *Notifier {
	return &Notifier{
		config:    cfg,
		email:     email,
		publisher: publisher,
		logger:    log.WithFields(map[string]interface{}{"component": "crm-notifier"}),
	}
}

func (n *Notifier) NotifyCreated(ctx context.Context, rec *models.CRMRecord) {
	if n == nil {
		return
	}
	subject := fmt.Sprintf("New application: %s %s", rec.FirstName, rec.LastName)
	body := notificationBody(rec)

	if n.email != nil && len(n.config.Recipients) > 0 {
		msgID, err := n.email.SendText(ctx, n.config.FromEmail, n.config.Recipients, subject, body)
		if err != nil {
			n.logger.Warn("Email notification failed", map[string]interface{}{
				"applicationId": rec.ApplicationID,
				"error":         err.Error(),
			})
		} else {
			n.logger.Debug("Email notification sent", map[string]interface{}{
				"applicationId": rec.ApplicationID,
				"messageId":     msgID,
			})
		}
	}

	if n.publisher != nil && n.config.TopicARN != "" {
		attrs := map[string]string{
			"event":         "application.created",
			"applicationId": rec.ApplicationID,
		}
		msgID, err := n.publisher.Publish(ctx, n.config.TopicARN, subject, body, attrs)
		if err != nil {
			n.logger.Warn("Topic notification failed", map[string]interface{}{
				"applicationId": rec.ApplicationID,
				"error":         err.Error(),
			})
		} else {
			n.logger.Debug("Topic notification published", map[string]interface{}{
				"applicationId": rec.ApplicationID,
				"messageId":     msgID,
			})
		}
	}
}

func notificationBody(rec *models.CRMRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Applicant: %s %s\n", rec.FirstName, rec.LastName)
	fmt.Fprintf(&b, "Email: %s\n", rec.Email)
	fmt.Fprintf(&b, "Phone: %s\n", rec.Phone)
	fmt.Fprintf(&b, "Degree: %s, %s (%d)\n", rec.HighestDegree, rec.Institution, rec.GraduationYear)
	fmt.Fprintf(&b, "Experience: %d years\n", rec.YearsOfExperience)
	fmt.Fprintf(&b, "Application ID: %s\n", rec.ApplicationID)
	fmt.Fprintf(&b, "Submitted: %s\n", rec.SubmittedAt.UTC().Format("2006-01-02 15:04 MST"))
	return b.String()
}
