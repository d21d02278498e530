package docker

import (
	"time"
)

// Config holds the configuration for the containerised converter.
type Config struct {
	// Image is the Docker image providing the converter binary.
	Image string
	// Command is run inside the container; it reads SVG on stdin and writes
	// G-code to stdout.
	Command []string
	// MemoryLimit is the maximum amount of memory the container can use (in bytes).
	MemoryLimit int64
	// CPULimit is the number of CPUs the container can use.
	CPULimit float64
	// Timeout is the maximum amount of time a single conversion can take.
	Timeout time.Duration
	// PoolSize is the number of pre-warmed containers to maintain.
	PoolSize int
	// PullImage pulls Image on startup when true.
	PullImage bool
	// InputExitCodes are the exit statuses the converter uses to reject its
	// input (usage or parse errors). Any other non-zero status, such as 137
	// after an OOM kill, is an engine failure.
	InputExitCodes []int
}

// DefaultConfig provides sensible defaults for the converter sandbox.
func DefaultConfig() Config {
	return Config{
		Image:   "svg2gcode:latest",
		Command: []string{"svg2gcode", "-"},
		// 256 MB memory limit
		MemoryLimit: 256 * 1024 * 1024,
		CPULimit:    1,
		Timeout:     30 * time.Second,
		PoolSize:    2,
		// svg2gcode exits 1 on a document it cannot parse, 2 on bad usage
		InputExitCodes: []int{1, 2},
	}
}
