package ncompose

import (
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	debugLock     sync.Mutex
	debug         uint32
	debugOutput   string
	debugOutputMu sync.Mutex
)

var (
	debuglnHook func(...any)
	debugfHook  func(string, ...any)
)

func debugEnabled() bool {
	return atomic.LoadUint32(&debug) == 1
}

func debugln(stuff ...any) {
	if !debugEnabled() {
		return
	}

	debugOutputMu.Lock()
	if debuglnHook != nil {
		debuglnHook(stuff...)
	} else {
		debugOutput += fmt.Sprintln(stuff...)
	}
	debugOutputMu.Unlock()
}

func debugf(format string, stuff ...any) {
	if !debugEnabled() {
		return
	}

	debugOutputMu.Lock()
	if debugfHook != nil {
		debugfHook(format, stuff...)
	} else {
		debugOutput += fmt.Sprintf(format+"\n", stuff...)
	}
	debugOutputMu.Unlock()
}

// captureResolveDebugging runs f with tracing on and returns the trace.
func captureResolveDebugging(f func()) string {
	debugLock.Lock()
	defer debugLock.Unlock()
	if atomic.SwapUint32(&debug, 1) == 1 {
		return "already capturing"
	}
	defer atomic.StoreUint32(&debug, 0)

	debugOutputMu.Lock()
	debugOutput = ""
	debugOutputMu.Unlock()

	f()

	debugOutputMu.Lock()
	defer debugOutputMu.Unlock()
	return debugOutput
}

func dumpVertex(context string, v *Vertex) {
	if !debugEnabled() {
		return
	}
	out := fmt.Sprintf("%s: vertex %d %s %s", context, v.ID, v.Kind, v.Type)
	if !v.Tag.IsNone() {
		out += " tag " + v.Tag.String()
	}
	if v.Binding != nil {
		out += fmt.Sprintf("\n\tbinding %d lifetime %s", v.Binding.ID, v.Lifetime)
	}
	for _, e := range v.Edges {
		lazy := ""
		if e.Lazy {
			lazy = " (lazy)"
		}
		out += fmt.Sprintf("\n\t-> %d %s%s", e.To.ID, e.Injection, lazy)
	}
	debugln(out)
}
