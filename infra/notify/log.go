package notify

import (
	"context"

	corenotify "github.com/CleanExpo/Disaster-Recovery-sub021/core/notify"
	"github.com/CleanExpo/Disaster-Recovery-sub021/infra/logger"
)

// LogNotifier writes invitations to the log instead of a transport. Useful
// for local runs without a broker.
type LogNotifier struct {
	log logger.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.New("log-notifier")}
}

// Send implements notify.Notifier.
func (n *LogNotifier) Send(_ context.Context, contractorID string, inv corenotify.Invitation) error {
	n.log.Infof("invitation for job %s (round %d) to contractor %s, expires %s",
		inv.JobID, inv.Round, contractorID, inv.ExpiresAt.Format("15:04:05"))
	return nil
}
