//go:build windows

package process

import "os"

// Windows has no graceful signal for console-less children.
var terminateSignal os.Signal = os.Kill
