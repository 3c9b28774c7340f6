// Command shmctl inspects and serves the shared telemetry region.
package main

import (
	"github.com/tebeka/atexit"

	"github.com/srediag/telemetry-shm/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
