package board

import "github.com/sirupsen/logrus"

type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a user-facing outcome of a board operation.
type Notice struct {
	Level       Level
	Title       string
	Description string
}

type Notifier interface {
	Notify(Notice)
}

// LogNotifier writes notices to a logrus entry.
type LogNotifier struct {
	Logger *logrus.Entry
}

func (n LogNotifier) Notify(notice Notice) {
	entry := n.Logger.WithField("title", notice.Title)
	switch notice.Level {
	case LevelError:
		entry.Error(notice.Description)
	case LevelWarning:
		entry.Warn(notice.Description)
	default:
		entry.Info(notice.Description)
	}
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }
