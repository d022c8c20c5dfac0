// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkeygate.
//
// go-passkeygate is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package metrics

import (
	"context"
	"runtime"
	"time"
)

// CollectResources updates the process gauges every interval until ctx is
// cancelled. It samples once immediately.
func CollectResources(ctx context.Context, interval time.Duration) {
	started := time.Now()
	sample := func() {
		if !IsEnabled() {
			return
		}
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		Goroutines.Set(float64(runtime.NumGoroutine()))
		MemoryAllocBytes.Set(float64(ms.Alloc))
		ServerUptime.Set(time.Since(started).Seconds())
	}

	sample()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample()
		}
	}
}
