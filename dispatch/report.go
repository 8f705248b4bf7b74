package dispatch

import (
	stderrors "errors"
	"fmt"
	"os"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	kunlog "github.com/yaoapp/kun/log"
	"github.com/yaoapp/signals/logger"
	"github.com/yaoapp/signals/types"
)

// maxFrames bounds the panic stack capture.
const maxFrames = 64

// poolFrames prefixes the function names of Pool methods. Panic traces end
// at the first such frame.
var poolFrames = reflect.TypeFor[Pool]().PkgPath() + ".(*Pool)."

// reporter routes failure records to the log, the hub Reporter and the
// failure subscribers, in that order. Each task is reported at most once.
type reporter struct {
	custom types.Reporter
	subs   *subManager
}

func (r *reporter) failure(f *types.Failure) {
	kunlog.With(kunlog.F{
		"type":     f.Kind,
		"message":  f.Message,
		"thread":   f.Worker,
		"signal":   f.Signal,
		"task_id":  f.TaskID,
		"priority": f.Priority.String(),
		"panic":    f.Panic,
		"frames":   len(f.Trace),
	}).Error("[signals:dispatch] slot failed: %s: %s", f.Kind, f.Message)

	if logger.IsDev() {
		if data, err := f.JSON(); err == nil {
			logger.Raw(string(data) + "\n")
		}
	}

	if r.custom != nil {
		guard("reporter", f, func() { r.custom.Report(f) })
	}
	if r.subs != nil {
		r.subs.notify(f)
	}
}

// guard runs a failure handler. A panicking handler is logged and dropped
// so the worker survives and the record is not reported again.
func guard(handler string, f *types.Failure, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			kunlog.With(kunlog.F{
				"handler": handler,
				"task_id": f.TaskID,
				"signal":  f.Signal,
			}).Error("[signals:dispatch] %s panicked on failure record: %v", handler, r)
		}
	}()
	fn()
}

func newFailure(worker string, task *types.Task) *types.Failure {
	return &types.Failure{
		Worker:   worker,
		Signal:   task.Source,
		TaskID:   task.ID,
		Priority: task.Priority,
		Time:     time.Now(),
		Trace:    []types.Frame{},
	}
}

// captureError builds the record of a slot that returned err. The trace is
// taken from the outermost github.com/pkg/errors stack in the chain.
func captureError(err error, worker string, task *types.Task) *types.Failure {
	f := newFailure(worker, task)
	f.Kind = fmt.Sprintf("%T", errors.Cause(err))
	f.Message = err.Error()
	f.Err = err
	f.Trace = errorTrace(err)
	return f
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func errorTrace(err error) []types.Frame {
	var st stackTracer
	if !stderrors.As(err, &st) {
		return []types.Frame{}
	}

	stack := st.StackTrace()
	frames := make([]types.Frame, 0, len(stack))
	for _, frame := range stack {
		pc := uintptr(frame) - 1
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		if strings.HasPrefix(fn.Name(), poolFrames) {
			break
		}
		file, line := fn.FileLine(pc)
		frames = append(frames, newFrame(file, fn.Name(), line))
	}
	return frames
}

// capturePanic builds the record of a slot that panicked with r. It must be
// called from the deferred recover of the panicking goroutine.
func capturePanic(r any, worker string, task *types.Task) *types.Failure {
	f := newFailure(worker, task)
	f.Kind = fmt.Sprintf("%T", r)
	f.Message = fmt.Sprint(r)
	f.Panic = true
	if err, ok := r.(error); ok {
		f.Err = err
	}
	f.Trace = panicTrace()
	return f
}

// panicTrace returns the frames between the panic site and the pool,
// innermost first.
func panicTrace() []types.Frame {
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(3, pcs)
	iter := runtime.CallersFrames(pcs[:n])

	var all []runtime.Frame
	panicked := -1
	for {
		fr, more := iter.Next()
		if fr.Function == "runtime.gopanic" {
			panicked = len(all)
		}
		all = append(all, fr)
		if !more {
			break
		}
	}

	frames := []types.Frame{}
	for _, fr := range all[panicked+1:] {
		if strings.HasPrefix(fr.Function, poolFrames) {
			break
		}
		if strings.HasPrefix(fr.Function, "runtime.") {
			continue
		}
		frames = append(frames, newFrame(fr.File, fr.Function, fr.Line))
	}
	return frames
}

func newFrame(file, function string, line int) types.Frame {
	return types.Frame{
		File:     file,
		Function: function,
		Line:     line,
		Source:   sourceLine(file, line),
	}
}

// sources caches source files by path; nil when unreadable.
var sources sync.Map

// sourceLine returns the trimmed text of line in file, or "" when the file
// is not available (stripped or remote builds).
func sourceLine(file string, line int) string {
	v, ok := sources.Load(file)
	if !ok {
		var lines []string
		if data, err := os.ReadFile(file); err == nil {
			lines = strings.Split(string(data), "\n")
		}
		v, _ = sources.LoadOrStore(file, lines)
	}
	lines := v.([]string)
	if line < 1 || line > len(lines) {
		return ""
	}
	return strings.TrimSpace(lines[line-1])
}
