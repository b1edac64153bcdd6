// Copyright 2025 Alshival
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package alshival

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

const maxStackFrames = 64

var stackPCPool = sync.Pool{
	New: func() any {
		buf := make([]uintptr, maxStackFrames)
		return &buf
	},
}

// stackTracer is implemented by errors that carry the program counters of
// the place they were created.
type stackTracer interface {
	StackTrace() []uintptr
}

// extractAndFormatOriginStack returns the stack carried by err or any error
// it wraps, or "" when there is none.
func extractAndFormatOriginStack(err error) (out string) {
	defer func() {
		if recover() != nil {
			out = ""
		}
	}()
	var st stackTracer
	if !errors.As(err, &st) {
		return ""
	}
	pcs := st.StackTrace()
	if len(pcs) > maxStackFrames {
		pcs = pcs[:maxStackFrames]
	}
	return formatPCsToStackString(pcs)
}

// formatException renders err as "<type>: <message>", followed by the origin
// stack when the error exposes one.
func formatException(err error) string {
	if err == nil {
		return ""
	}
	text := fmt.Sprintf("%T: %v", err, err)
	if stack := extractAndFormatOriginStack(err); stack != "" {
		text += "\n" + stack
	}
	return text
}

// formatPCsToStackString formats pcs in the layout of a Go panic trace,
// skipping runtime exit frames.
func formatPCsToStackString(pcs []uintptr) string {
	if len(pcs) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.Grow(len(pcs) * 64)
	sb.WriteString(currentGoroutineHeader())
	sb.WriteByte('\n')

	var intBuf [20]byte
	frames := runtime.CallersFrames(pcs)
	count := 0
	for {
		frame, more := frames.Next()
		if frame.PC == 0 {
			break
		}
		if frame.Function == "" || frame.Function == "runtime.goexit" {
			if !more {
				break
			}
			continue
		}

		sb.WriteString(frame.Function)
		sb.WriteString("\n\t")
		sb.WriteString(frame.File)
		sb.WriteByte(':')
		sb.Write(strconv.AppendInt(intBuf[:0], int64(frame.Line), 10))
		if frame.Entry != 0 && frame.PC > frame.Entry {
			sb.WriteString(" +0x")
			sb.Write(strconv.AppendUint(intBuf[:0], uint64(frame.PC-frame.Entry), 16))
		}
		sb.WriteByte('\n')

		count++
		if !more || count >= maxStackFrames {
			break
		}
	}
	return sb.String()
}

// trimStackPCs removes leading program counters whose frames all match
// skipFn. A program counter expands to several frames when calls were
// inlined, so it is kept if any of them survives.
func trimStackPCs(pcs []uintptr, skipFn func(string) bool) []uintptr {
	if skipFn == nil || len(pcs) == 0 {
		return pcs
	}
	for i := range pcs {
		frames := runtime.CallersFrames(pcs[i : i+1])
		for {
			frame, more := frames.Next()
			if !skipFn(frame.Function) {
				return pcs[i:]
			}
			if !more {
				break
			}
		}
	}
	return nil
}

// firstFrame returns the first frame of pcs that skipFn does not match.
func firstFrame(pcs []uintptr, skipFn func(string) bool) runtime.Frame {
	if len(pcs) == 0 {
		return runtime.Frame{}
	}
	frames := runtime.CallersFrames(pcs)
	for {
		frame, more := frames.Next()
		if frame.Function != "" && (skipFn == nil || !skipFn(frame.Function)) {
			return frame
		}
		if !more {
			return runtime.Frame{}
		}
	}
}

// SkipInternalStackFrame reports whether a frame belongs to this library or
// the runtime and should be hidden from captured stacks and call sites.
func SkipInternalStackFrame(funcName string) bool {
	if funcName == "" {
		return false
	}
	if strings.HasPrefix(funcName, "runtime.") {
		return true
	}
	if isTestFunc(funcName) {
		return false
	}
	return strings.HasPrefix(funcName, "github.com/alshival/alshival-go.") ||
		strings.HasPrefix(funcName, "github.com/alshival/alshival-go/alshival") ||
		strings.HasPrefix(funcName, "github.com/alshival/alshival-go/internal/")
}

// isTestFunc keeps the package's own tests visible as call sites.
func isTestFunc(funcName string) bool {
	return strings.Contains(funcName, ".Test") || strings.Contains(funcName, "_test.")
}

// captureStack returns the formatted stack of the caller together with the
// first frame outside this library.
func captureStack() (string, runtime.Frame) {
	bufPtr := stackPCPool.Get().(*[]uintptr)
	defer stackPCPool.Put(bufPtr)
	pcs := (*bufPtr)[:cap(*bufPtr)]

	n := runtime.Callers(1, pcs)
	if n == 0 {
		return "", runtime.Frame{}
	}
	trimmed := trimStackPCs(pcs[:n], SkipInternalStackFrame)
	if len(trimmed) == 0 {
		trimmed = pcs[:n]
	}
	return formatPCsToStackString(trimmed), firstFrame(trimmed, SkipInternalStackFrame)
}

// callerFrame returns the first frame outside this library without
// formatting a stack.
func callerFrame() runtime.Frame {
	var pcs [maxStackFrames]uintptr
	n := runtime.Callers(1, pcs[:])
	return firstFrame(pcs[:n], SkipInternalStackFrame)
}

// frameModule returns the file name of f without directory or extension.
func frameModule(f runtime.Frame) string {
	if f.File == "" {
		return ""
	}
	base := filepath.Base(f.File)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// frameFunction returns the unqualified function name of f.
func frameFunction(f runtime.Frame) string {
	name := f.Function
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// currentGoroutineHeader returns the goroutine header emitted by runtime.Stack.
func currentGoroutineHeader() string {
	const fallbackHeader = "goroutine 0 [running]:"

	var buf [128]byte
	n := runtime.Stack(buf[:], false)
	if n <= 0 {
		return fallbackHeader
	}
	header := string(buf[:n])
	if idx := strings.IndexByte(header, '\n'); idx >= 0 {
		header = header[:idx]
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return fallbackHeader
	}
	return header
}
