// Package notifier
package notifier

import "github.com/sirupsen/logrus"

// CommandHandler handles a zero-argument remote command and returns the
// reply text.
type CommandHandler func() string

// Notifier delivers human-readable alerts and dispatches remote commands.
// Notify must never propagate delivery failures to the caller.
type Notifier interface {
	Notify(text string)
	Handle(command string, handler CommandHandler)
}

// LogNotifier writes alerts to the log only, useful when no Telegram
// credentials are configured.
type LogNotifier struct {
	log *logrus.Entry
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logrus.WithField("component", "notifier")}
}

func (n *LogNotifier) Notify(text string) {
	n.log.Infof("alert: %s", text)
}

func (n *LogNotifier) Handle(command string, handler CommandHandler) {}
