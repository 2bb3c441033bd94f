package compiler

import (
	"fmt"
	"io"
	"strings"

	"github.com/wippyai/wasm-plugins/host"
	"github.com/wippyai/wasm-plugins/metrics"
)

// BusyPolicy decides what Compile does while another compile runs.
type BusyPolicy int

const (
	// BusyQueue waits for the running compile to finish.
	BusyQueue BusyPolicy = iota
	// BusyReject fails immediately with errors.ErrBusy.
	BusyReject
)

func (p BusyPolicy) String() string {
	if p == BusyReject {
		return "reject"
	}
	return "queue"
}

// ParseBusyPolicy accepts "queue" or "reject".
func ParseBusyPolicy(s string) (BusyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "queue":
		return BusyQueue, nil
	case "reject":
		return BusyReject, nil
	}
	return 0, fmt.Errorf("unknown busy policy %q", s)
}

// Options configure a Session.
type Options struct {
	// Hosts resolves imports of modules outside the batch. Nil means no
	// host modules.
	Hosts *host.Registry
	// Echo receives every diagnostic line as it is reported.
	Echo    io.Writer
	Metrics *metrics.Collector
	Busy    BusyPolicy
	// Verbose adds an info diagnostic per compiled module.
	Verbose bool
}
