package seed

import "time"

// Worker configuration constants.
const (
	workerChannelMultiplier = 2
	defaultWorkers          = 4
	defaultDays             = 30
)

// Runner configuration constants.
const (
	progressInterval     = time.Second
	percentageMultiplier = 100
	directoryPermission  = 0750
)
