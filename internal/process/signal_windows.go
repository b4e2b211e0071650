//go:build windows

package process

import "os"

// Windows has no deliverable graceful signal for arbitrary processes.
var terminateSignal = os.Kill
