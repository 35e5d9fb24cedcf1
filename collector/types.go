package collector

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
)

// Client fetches raw thread dumps from a single HTTP endpoint
type Client struct {
	url    string
	http   *http.Client
	logger zerolog.Logger
}

// Dump is the complete set of thread stacks returned by one request
type Dump struct {
	Threads []ThreadStack
}

// ThreadStack is the call stack of one thread at one sampling instant
type ThreadStack struct {
	Name   string       // Thread name as reported by the JVM
	State  string       // Thread state (RUNNABLE, WAITING, ...), empty if unknown
	Frames []StackFrame // Innermost (currently executing) frame first
}

// StackFrame represents a single frame in a JVM stack trace
type StackFrame struct {
	Method string // Fully-qualified method, e.g. com.example.Service.handle
	File   string // Source file name, empty if unknown
	Line   int    // Line number, <= 0 if unknown
}

// String returns the frame as it would appear in a stack trace line.
func (f StackFrame) String() string {
	switch {
	case f.File == "":
		return f.Method
	case f.Line > 0:
		return f.Method + "(" + f.File + ":" + strconv.Itoa(f.Line) + ")"
	default:
		return f.Method + "(" + f.File + ")"
	}
}
