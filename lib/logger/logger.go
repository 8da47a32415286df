package logger

import "fmt"

type Logger interface {
	Debug(log ...any)
	Error(log ...any)
}

type PrefixedLogger struct {
	Prefix string
}

func (pl PrefixedLogger) Debug(log ...any) {
	fmt.Println("[Prefix: "+pl.Prefix+"] Debug:", log)
}

func (pl PrefixedLogger) Error(log ...any) {
	fmt.Println("[Prefix: "+pl.Prefix+"] Error: ", log)
}

var _ Logger = &PrefixedLogger{}

// NopLogger discards everything. Useful as a default where callers did
// not ask for logging.
type NopLogger struct{}

func (NopLogger) Debug(log ...any) {}

func (NopLogger) Error(log ...any) {}

var _ Logger = NopLogger{}
