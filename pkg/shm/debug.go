/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package shm

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/valyala/bytebufferpool"

	"github.com/srediag/telemetry-shm/pkg/layout"
)

// DebugRegionDetail prints the region status of the object at `path` without
// mapping it.
func DebugRegionDetail(path string, lay layout.Layout, w io.Writer) error {
	mem, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if lay.IsZero() {
		lay = layout.Default
	}
	snap, err := lay.Decode(mem)
	if err != nil {
		return fmt.Errorf("path:%s size:%d: %w", path, len(mem), err)
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	_, _ = fmt.Fprintf(buf, "path:%s size:%d\n", path, len(mem))
	writeSnapshot(buf, snap)
	_, err = w.Write(buf.B)
	return err
}

// FormatSnapshot writes a human readable dump of s to w. Telemetry fields
// are omitted unless the snapshot passes the validity gate.
func FormatSnapshot(w io.Writer, s *layout.Snapshot) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	writeSnapshot(buf, s)
	_, err := w.Write(buf.B)
	return err
}

func writeSnapshot(buf *bytebufferpool.ByteBuffer, s *layout.Snapshot) {
	status := Classify(s)
	h := s.Header
	_, _ = fmt.Fprintf(buf, "status:%s magic:%#x base:%#x\n", status, h.Magic, h.BaseAddress)
	writeSettings(buf, s.Settings)
	if !status.Usable() {
		return
	}
	_, _ = fmt.Fprintf(buf, "spectators:%d allied:%d players:%d spectator_list:%d\n",
		h.SpectatorCount, h.AlliedSpectatorCount, h.PlayerCount, h.SpectatorListCount)
	if !s.CountsInRange() {
		_, _ = buf.WriteString("warning: counters out of range, records clamped\n")
	}
	for i, p := range s.LivePlayers() {
		_, _ = fmt.Fprintf(buf, "  player[%d] team:%d hp:%d shield:%d dist:%.1f head:(%.1f,%.1f) visible:%t knocked:%t\n",
			i, p.Team, p.Health, p.Shield, p.Distance, p.HeadX, p.HeadY, p.Visible, p.Knocked)
	}
	for i, sp := range s.LiveSpectators() {
		_, _ = buf.WriteString("  spectator[" + strconv.Itoa(i) + "] " + strconv.Quote(sp.Name) + "\n")
	}
}

func writeSettings(buf *bytebufferpool.ByteBuffer, s layout.Settings) {
	_, _ = fmt.Fprintf(buf, "settings aim:%t esp:%t glow:%t no_recoil:%t aiming:%t shooting:%t firing_range:%t 1v1:%t\n",
		s.AimEnabled, s.ESPEnabled, s.PlayerGlowEnabled, s.AimNoRecoil, s.Aiming, s.Shooting, s.FiringRange, s.OneVOne)
	_, _ = fmt.Fprintf(buf, "  max_dist:%.1f smooth:%.1f max_fov:%.1f bone:%d\n", s.MaxDistance, s.Smooth, s.MaxFOV, s.Bone)
	for _, c := range []struct {
		name string
		c    layout.Color
	}{{"glow", s.GlowNotVisible}, {"glow_visible", s.GlowVisible}, {"glow_knocked", s.GlowKnocked}} {
		_, _ = fmt.Fprintf(buf, "  %s:(%.2f,%.2f,%.2f)\n", c.name, c.c.R, c.c.G, c.c.B)
	}
}

// RegionUsage reports usage of the filesystem holding the object at path,
// normally the /dev/shm tmpfs.
func RegionUsage(path string) (*disk.UsageStat, error) {
	return disk.Usage(filepath.Dir(path))
}
