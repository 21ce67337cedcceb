package library

import "github.com/sirupsen/logrus"

// LogNotifier writes notifications to the log. The CLI has no desktop
// notification surface, so this is the default implementation.
type LogNotifier struct {
	log *logrus.Entry
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log *logrus.Entry) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(title, body string) {
	n.log.WithField("notification", title).Info(body)
}
