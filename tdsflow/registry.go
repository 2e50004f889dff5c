package tdsflow

import (
	"fmt"
	"sync"
)

// SinkFactory builds a Sink from a free-form options map, e.g. a file
// path or a DSN. Adapted from the teacher's protocol.ListenerFactory
// pattern (pkg/protocol/protocol.go): a package registers its
// constructor by name at init time, and callers ask for a sink by name
// without importing the concrete implementation package directly,
// avoiding an import cycle between tdsflow and its output adapters.
type SinkFactory func(opts map[string]string) (Sink, error)

var (
	sinkFactoriesMu sync.Mutex
	sinkFactories   = make(map[string]SinkFactory)
)

// RegisterSinkFactory registers a named sink constructor. Calling it
// twice for the same name replaces the previous registration, matching
// the teacher's last-registration-wins factory variables.
func RegisterSinkFactory(name string, f SinkFactory) {
	sinkFactoriesMu.Lock()
	defer sinkFactoriesMu.Unlock()
	sinkFactories[name] = f
}

// NewSink builds a sink by registered name.
func NewSink(name string, opts map[string]string) (Sink, error) {
	sinkFactoriesMu.Lock()
	f, ok := sinkFactories[name]
	sinkFactoriesMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("tdsflow: sink %q not registered", name)
	}
	return f(opts)
}

// RegisteredSinks lists the names currently registered, for CLI --help
// output and diagnostics.
func RegisteredSinks() []string {
	sinkFactoriesMu.Lock()
	defer sinkFactoriesMu.Unlock()
	names := make([]string, 0, len(sinkFactories))
	for name := range sinkFactories {
		names = append(names, name)
	}
	return names
}
