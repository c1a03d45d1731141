package logger

type nopLogger struct{}

// NewNop returns a logger that discards everything, for tests.
func NewNop() Logger {
	return nopLogger{}
}

func (l nopLogger) With(args ...interface{}) Logger            { return l }
func (nopLogger) Debugf(template string, args ...interface{}) {}
func (nopLogger) Infof(template string, args ...interface{})  {}
func (nopLogger) Warnf(template string, args ...interface{})  {}
func (nopLogger) Errorf(template string, args ...interface{}) {}
func (nopLogger) Fatalf(template string, args ...interface{}) {}
func (nopLogger) Sync() error                                 { return nil }
