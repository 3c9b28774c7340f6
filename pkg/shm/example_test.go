package shm_test

import (
	"context"
	"fmt"
	"os"

	"github.com/srediag/telemetry-shm/pkg/layout"
	"github.com/srediag/telemetry-shm/pkg/shm"
)

func ExampleOpen() {
	ctx := context.Background()
	c, err := shm.Open(ctx, shm.OpenOptions{})
	if err != nil {
		fmt.Println("producer not running:", err)
		return
	}
	defer c.Close()

	snap, err := c.ReadSnapshot(ctx)
	if err != nil {
		fmt.Println("read:", err)
		return
	}
	if status := shm.Classify(snap); !status.Usable() {
		fmt.Println("status:", status)
		return
	}
	_ = shm.FormatSnapshot(os.Stdout, snap)
}

func ExampleClient_WriteSettings() {
	ctx := context.Background()
	c, err := shm.Open(ctx, shm.OpenOptions{})
	if err != nil {
		return
	}
	defer c.Close()

	s := layout.DefaultSettings()
	s.ESPEnabled = true
	s.GlowVisible = layout.Color{R: 0, G: 0.8, B: 0.2}
	if err := c.WriteSettings(ctx, s); err != nil {
		fmt.Println("write:", err)
	}
}
