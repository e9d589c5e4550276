package infrastructure

import (
	"fmt"
	"os/exec"

	"go.uber.org/zap"

	"github.com/yourusername/twitch-vod-go/internal/domain"
)

// NotificationService sends desktop notifications for job outcomes
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	return &NotificationService{config: config, logger: logger}
}

// Send sends a notification
func (n *NotificationService) Send(title, message string) error {
	if !n.config.Enabled {
		n.logger.Debug("Notifications disabled, skipping",
			zap.String("title", title),
			zap.String("message", message))
		return nil
	}

	switch n.config.Method {
	case "osascript":
		return n.run("osascript", "-e",
			fmt.Sprintf(`display notification %q with title %q`, message, title))
	case "notify-send":
		return n.run("notify-send", title, message)
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}
}

func (n *NotificationService) run(name string, args ...string) error {
	if err := exec.Command(name, args...).Run(); err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", name),
			zap.Error(err))
		return err
	}
	return nil
}

// NotifyDownloadComplete announces a finished download
func (n *NotificationService) NotifyDownloadComplete(vodID string, totalBytes int64, failedCount int) {
	message := fmt.Sprintf("VOD %s saved (%s)", vodID, FormatBytes(totalBytes))
	if failedCount > 0 {
		message = fmt.Sprintf("%s, %d segments missing", message, failedCount)
	}
	n.Send("Download complete", message)
}

// NotifyDownloadFailed announces a failed download
func (n *NotificationService) NotifyDownloadFailed(vodID string, err error) {
	n.Send("Download failed", fmt.Sprintf("VOD %s: %v", vodID, err))
}

// FormatBytes renders a byte count with a binary unit suffix
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGT"[exp])
}
