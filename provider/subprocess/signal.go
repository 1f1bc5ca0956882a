package subprocess

import "os"

// processInterruptSignal is sent to a spawned agent process on interrupt.
// os.Interrupt maps to SIGINT on Unix platforms, where these agent
// processes run.
var processInterruptSignal = os.Interrupt
