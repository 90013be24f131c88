// Package log is a leveled, key/value logger adapted from the teacher's
// own log/logger.go: same Lvl enum, Ctx/Lazy shape and go-stack call-site
// capture. It drops the teacher's glog backend — a global-flag-based init
// is a poor fit for an embeddable library — in favor of a small
// logfmt-writing Handler, closer to upstream log15's own StreamHandler.
package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-stack/stack"
)

// Lvl is a log severity level, ordered from most to least severe.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlTrace:
		return "trce"
	case LvlDebug:
		return "dbug"
	case LvlInfo:
		return "info"
	case LvlWarn:
		return "warn"
	case LvlError:
		return "eror"
	case LvlCrit:
		return "crit"
	default:
		return "unkn"
	}
}

// Ctx is a map of key/value pairs to pass as context to a log call.
type Ctx map[string]interface{}

func (c Ctx) toArray() []interface{} {
	arr := make([]interface{}, 0, len(c)*2)
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		arr = append(arr, k, c[k])
	}
	return arr
}

const skipLevel = 2

// Logger writes leveled, contextual key/value log lines.
type Logger interface {
	New(ctx ...interface{}) Logger
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
}

type logger struct {
	ctx []interface{}
	h   *handlerRef
}

type handlerRef struct {
	mu sync.RWMutex
	h  Handler
}

func (r *handlerRef) get() Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.h
}

func (r *handlerRef) set(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.h = h
}

// Handler processes one Record, e.g. by writing it out.
type Handler interface {
	Log(r *Record) error
}

// Record is one emitted log line, handed to a Handler.
type Record struct {
	Time time.Time
	Lvl  Lvl
	Msg  string
	Ctx  []interface{}
	Call stack.Call
}

var root = &logger{h: &handlerRef{h: StreamHandler(os.Stderr)}}

// SetHandler replaces the root logger's handler.
func SetHandler(h Handler) { root.h.set(h) }

// New creates a child logger with the given key/value context appended.
func New(ctx ...interface{}) Logger { return root.New(ctx...) }

func (l *logger) New(ctx ...interface{}) Logger {
	child := &logger{ctx: newContext(l.ctx, ctx), h: l.h}
	return child
}

func newContext(prefix, suffix []interface{}) []interface{} {
	suffix = normalize(suffix)
	out := make([]interface{}, 0, len(prefix)+len(suffix))
	out = append(out, prefix...)
	out = append(out, suffix...)
	return out
}

func normalize(ctx []interface{}) []interface{} {
	if len(ctx) == 1 {
		if m, ok := ctx[0].(Ctx); ok {
			return m.toArray()
		}
	}
	if len(ctx)%2 != 0 {
		ctx = append(ctx, nil, "log_error", "odd number of context args")
	}
	return ctx
}

func (l *logger) write(msg string, lvl Lvl, ctx []interface{}) {
	h := l.h.get()
	if h == nil {
		return
	}
	_ = h.Log(&Record{
		Time: time.Now(),
		Lvl:  lvl,
		Msg:  msg,
		Ctx:  newContext(l.ctx, ctx),
		Call: stack.Caller(skipLevel),
	})
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(msg, LvlTrace, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(msg, LvlDebug, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(msg, LvlInfo, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(msg, LvlWarn, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(msg, LvlError, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{})  { l.write(msg, LvlCrit, ctx); os.Exit(1) }

// Package-level convenience wrappers over the root logger.
func Trace(msg string, ctx ...interface{}) { root.write(msg, LvlTrace, ctx) }
func Debug(msg string, ctx ...interface{}) { root.write(msg, LvlDebug, ctx) }
func Info(msg string, ctx ...interface{})  { root.write(msg, LvlInfo, ctx) }
func Warn(msg string, ctx ...interface{})  { root.write(msg, LvlWarn, ctx) }
func Error(msg string, ctx ...interface{}) { root.write(msg, LvlError, ctx) }

// filterHandler drops records below the configured level before handing
// them to the wrapped Handler.
type filterHandler struct {
	min Lvl
	wrapped Handler
}

// LvlFilterHandler wraps h to discard any record less severe than min.
func LvlFilterHandler(min Lvl, h Handler) Handler {
	return &filterHandler{min: min, wrapped: h}
}

func (f *filterHandler) Log(r *Record) error {
	if r.Lvl > f.min {
		return nil
	}
	return f.wrapped.Log(r)
}

// streamHandler writes logfmt-formatted records to w, one per line,
// serializing concurrent writers.
type streamHandler struct {
	mu sync.Mutex
	w  io.Writer
}

// StreamHandler builds a Handler writing logfmt lines to w.
func StreamHandler(w io.Writer) Handler {
	return &streamHandler{w: w}
}

func (s *streamHandler) Log(r *Record) error {
	var buf bytes.Buffer
	buf.WriteString(r.Time.Format("2006-01-02T15:04:05.000"))
	buf.WriteByte(' ')
	buf.WriteString(r.Lvl.String())
	buf.WriteByte(' ')
	buf.WriteString(r.Msg)
	writeCtx(&buf, r.Ctx)
	buf.WriteByte(' ')
	buf.WriteString(fmt.Sprintf("%+v", r.Call))
	buf.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(buf.Bytes())
	return err
}

func writeCtx(buf *bytes.Buffer, ctx []interface{}) {
	for i := 0; i < len(ctx); i += 2 {
		buf.WriteByte(' ')
		fmt.Fprintf(buf, "%v", ctx[i])
		buf.WriteByte('=')
		writeValue(buf, ctx[i+1])
	}
}

func writeValue(buf *bytes.Buffer, v interface{}) {
	if lz, ok := v.(Lazy); ok {
		v = evaluateLazy(lz)
	}
	switch x := v.(type) {
	case string:
		buf.WriteString(strconv.Quote(x))
	case error:
		buf.WriteString(strconv.Quote(x.Error()))
	default:
		fmt.Fprintf(buf, "%v", x)
	}
}

// Lazy defers computing a logged value until it is certain the record
// will actually be written.
type Lazy struct {
	Fn func() interface{}
}

func evaluateLazy(l Lazy) interface{} {
	defer func() {
		if r := recover(); r != nil {
			_ = r
		}
	}()
	return l.Fn()
}
