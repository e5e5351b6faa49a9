package renderer

import (
	"github.com/board3d/board3d/log"
)

// Message severity.
type Severity uint8

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return "info"
}

// Reporter receives status and warning messages.
type Reporter interface {
	Report(msg string, severity Severity)

	// Flush the collected messages to the user.
	Finalize()
}

// BusyIndicator is shown while a long operation (e.g. a scene rebuild) runs.
type BusyIndicator interface {
	SetStatus(msg string)
	Close()
}

// Create busy indicators.
type BusyIndicatorFactory func(title string) BusyIndicator

// A reporter that forwards messages to a named logger.
type LogReporter struct {
	logger log.Logger
}

// Create a new logging reporter.
func NewLogReporter(name string) *LogReporter {
	return &LogReporter{logger: log.New(name)}
}

func (r *LogReporter) Report(msg string, severity Severity) {
	switch severity {
	case SeverityError:
		r.logger.Error(msg)
	case SeverityWarning:
		r.logger.Warning(msg)
	default:
		r.logger.Info(msg)
	}
}

func (r *LogReporter) Finalize() {}

// A busy indicator that logs status changes.
type logBusyIndicator struct {
	logger log.Logger
	title  string
}

// Create busy indicators that log status changes.
func LogBusyIndicatorFactory(name string) BusyIndicatorFactory {
	logger := log.New(name)
	return func(title string) BusyIndicator {
		logger.Noticef("%s...", title)
		return &logBusyIndicator{logger: logger, title: title}
	}
}

func (b *logBusyIndicator) SetStatus(msg string) {
	b.logger.Infof("%s: %s", b.title, msg)
}

func (b *logBusyIndicator) Close() {
	b.logger.Debugf("%s: done", b.title)
}

type nopReporter struct{}

func (nopReporter) Report(string, Severity) {}
func (nopReporter) Finalize()               {}

// A reporter that discards all messages.
var NopReporter Reporter = nopReporter{}
