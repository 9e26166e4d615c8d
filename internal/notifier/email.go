package notifier

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"notifyme/internal/config"
	"notifyme/internal/models"
)

// EmailNotifier delivers notifications over SMTP.
type EmailNotifier struct {
	cfg    config.NotificationConfig
	logger zerolog.Logger
}

// NewEmailNotifier creates a new EmailNotifier. Missing SMTP credentials are
// tolerated at construction time so dry-run and local testing work without a
// mail account; Send fails if delivery is actually attempted.
func NewEmailNotifier(cfg config.NotificationConfig, logger zerolog.Logger) *EmailNotifier {
	componentLogger := logger.With().Str("component", "EmailNotifier").Logger()
	if cfg.SMTPUser == "" {
		componentLogger.Warn().Msg("SMTP user not configured - emails will not be sent")
	}
	if cfg.NotifyEmail == "" {
		componentLogger.Warn().Msg("Notify email not configured - emails will not be sent")
	}
	return &EmailNotifier{cfg: cfg, logger: componentLogger}
}

// Send emails a notification for a triggered monitor and returns the log
// record. With dryRun set the message is logged instead of delivered.
func (en *EmailNotifier) Send(ctx context.Context, monitor *models.Monitor, result *models.CheckResult, dryRun bool) (*models.NotificationLog, error) {
	subject := fmt.Sprintf("[notifyme] %s", monitor.Name)
	htmlBody := formatHTMLBody(monitor, result)
	textBody := formatTextBody(monitor, result)

	if dryRun {
		en.logger.Info().
			Str("to", en.cfg.NotifyEmail).
			Str("subject", subject).
			Msg("[DRY RUN] Would send email")
		en.logger.Info().Str("body", textBody).Msg("[DRY RUN] Email body")
	} else {
		if err := en.deliver(ctx, subject, htmlBody, textBody); err != nil {
			return nil, err
		}
		en.logger.Info().Str("to", en.cfg.NotifyEmail).Str("subject", subject).Msg("Notification email sent")
	}

	details := map[string]any{
		"subject": subject,
		"dry_run": dryRun,
	}
	for key, value := range result.Details {
		if key == "excerpt" {
			continue
		}
		details[key] = value
	}

	return models.NewNotificationLog(monitor.ID, result.Explanation, details), nil
}

func (en *EmailNotifier) deliver(ctx context.Context, subject, htmlBody, textBody string) error {
	if en.cfg.SMTPUser == "" || en.cfg.NotifyEmail == "" {
		return fmt.Errorf("SMTP delivery is not configured")
	}

	client, err := mail.NewClient(en.cfg.SMTPHost,
		mail.WithPort(en.cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(en.cfg.SMTPUser),
		mail.WithPassword(en.cfg.SMTPPassword),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}

	msg := mail.NewMsg()
	if err := msg.From(en.cfg.SMTPUser); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(en.cfg.NotifyEmail); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, textBody)
	msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
