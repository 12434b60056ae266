package session

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultHistory is the number of notifications a Notifier keeps
const DefaultHistory = 20

// Notifier collects user-facing failures reported by the editor
type Notifier struct {
	mu      sync.Mutex
	log     logrus.FieldLogger
	limit   int
	history []string
}

// NewNotifier creates a Notifier keeping the last limit messages
func NewNotifier(log logrus.FieldLogger, limit int) *Notifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if limit <= 0 {
		limit = DefaultHistory
	}
	return &Notifier{log: log, limit: limit}
}

// ReportError logs and records a notification
func (n *Notifier) ReportError(message string) {
	n.log.WithField("notification", message).Warn("operation failed")

	n.mu.Lock()
	defer n.mu.Unlock()
	n.history = append(n.history, message)
	if over := len(n.history) - n.limit; over > 0 {
		n.history = append([]string(nil), n.history[over:]...)
	}
}

// History returns the recorded notifications, oldest first
func (n *Notifier) History() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.history...)
}

// Last returns the most recent notification, or "" if there is none
func (n *Notifier) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.history) == 0 {
		return ""
	}
	return n.history[len(n.history)-1]
}
