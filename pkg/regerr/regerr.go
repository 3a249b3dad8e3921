// Package regerr implements the error taxonomy and reporting callback
// shared by regdevice and vdevice. Every failing operation returns a
// plain Go error (so callers can use errors.Is/As normally) and
// additionally routes an Error through a swappable sink, carrying the
// calling function, file, and line.
package regerr

import (
	"fmt"
	"runtime"
	"sync"
)

// Kind classifies an Error into one of four taxonomy buckets.
type Kind int

const (
	// Argument covers absent context/buffer/callback, null names, and
	// out-of-range register or field indices.
	Argument Kind = iota
	// Map covers zero/over-wide field widths, spans exceeding the
	// device, duplicate names, overlaps, partial coverage, and
	// mismatched lock callbacks.
	Map
	// Runtime covers transport failures, overflowed register reads,
	// lock acquire/release failures, and values that don't fit a field.
	Runtime
	// Virtual covers virtual-device-only failures: a name absent from
	// every map, a value that fits no map, a load callback failure, or
	// an empty map/field list.
	Virtual
)

func (k Kind) String() string {
	switch k {
	case Argument:
		return "argument"
	case Map:
		return "map"
	case Runtime:
		return "runtime"
	case Virtual:
		return "virtual"
	default:
		return "unknown"
	}
}

// Error is the structured error emitted alongside every failing
// operation's status return.
type Error struct {
	Kind    Kind
	Func    string
	File    string
	Line    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%s:%d, in %s)", e.Kind, e.Message, e.File, e.Line, e.Func)
}

var (
	mu      sync.Mutex
	sink    func(*Error)
	silent  bool
	history []*Error
)

const historyCap = 64

// SetSink replaces the process-wide error sink. A nil sink disables
// emission entirely (distinct from Silence, which keeps the sink but
// skips calling it).
func SetSink(fn func(*Error)) {
	mu.Lock()
	defer mu.Unlock()
	sink = fn
}

// Silence suppresses error emission without affecting the underlying
// failure return values of any operation. Used during negative tests.
func Silence(on bool) {
	mu.Lock()
	defer mu.Unlock()
	silent = on
}

// Recent returns up to n of the most recently reported errors, most
// recent first; n <= 0 returns the whole retained history. Ambient
// debugging aid; has no bearing on §7's
// propagation or silencing semantics.
func Recent(n int) []*Error {
	mu.Lock()
	defer mu.Unlock()
	if n > len(history) || n <= 0 {
		n = len(history)
	}
	out := make([]*Error, n)
	for i := 0; i < n; i++ {
		out[i] = history[len(history)-1-i]
	}
	return out
}

// Report builds an Error from the caller's location (skip frames above
// the reporting function) and routes it through the sink unless
// silenced. It always returns the constructed error so call sites can
// do `return regerr.Report(...)`.
func Report(kind Kind, skip int, format string, args ...any) *Error {
	pc, file, line, ok := runtime.Caller(skip + 1)
	fn := "unknown"
	if ok {
		if f := runtime.FuncForPC(pc); f != nil {
			fn = f.Name()
		}
	}
	e := &Error{
		Kind:    kind,
		Func:    fn,
		File:    file,
		Line:    line,
		Message: fmt.Sprintf(format, args...),
	}

	mu.Lock()
	history = append(history, e)
	if len(history) > historyCap {
		history = history[len(history)-historyCap:]
	}
	cur, quiet := sink, silent
	mu.Unlock()

	if cur != nil && !quiet {
		cur(e)
	}
	return e
}
