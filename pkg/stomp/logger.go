package stomp

import "github.com/yanun0323/logs"

// Logger is the observability collaborator injected into constructors.
type Logger interface {
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

type pkgLogger struct{}

func (pkgLogger) Infof(format string, args ...any)  { logs.Infof(format, args...) }
func (pkgLogger) Errorf(format string, args ...any) { logs.Errorf(format, args...) }

// DefaultLogger forwards to the logs package.
func DefaultLogger() Logger { return pkgLogger{} }
