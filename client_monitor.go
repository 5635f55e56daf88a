package sdk

import (
	"context"
	"time"

	"github.com/golang/glog"
)

type ClientMonitorSettings struct {
	// zero disables the periodic stats log
	StatsLogInterval time.Duration
}

func defaultClientMonitorSettings() *ClientMonitorSettings {
	return &ClientMonitorSettings{
		StatsLogInterval: 60 * time.Second,
	}
}

type clientMonitor struct {
	ctx      context.Context
	cancel   context.CancelFunc
	settings *ClientMonitorSettings
	stats    *ClientStats
}

func newClientMonitor(ctx context.Context, settings *ClientMonitorSettings, stats *ClientStats) *clientMonitor {
	cancelCtx, cancel := context.WithCancel(ctx)
	clientMonitor := &clientMonitor{
		ctx:      cancelCtx,
		cancel:   cancel,
		settings: settings,
		stats:    stats,
	}
	if 0 < settings.StatsLogInterval {
		go clientMonitor.run()
	}
	return clientMonitor
}

func (self *clientMonitor) run() {
	defer self.cancel()

	for {
		select {
		case <-self.ctx.Done():
			return
		case <-time.After(self.settings.StatsLogInterval):
		}

		printClientStats(self.stats)
	}
}

func (self *clientMonitor) Close() {
	self.cancel()
}

func printClientStats(stats *ClientStats) {
	glog.Infof(
		"client stats: connects=%d net=%ds max=%ds",
		stats.GetConnectCount(),
		stats.GetNetConnectDurationSeconds(),
		stats.GetMaxConnectDurationSeconds(),
	)
	for _, operationCount := range stats.callCountList() {
		glog.Infof("call[%s] = %d (%d errors)", operationCount.operation, operationCount.count, operationCount.errorCount)
	}
	glog.Infof(
		"events delivered=%d dropped=%d",
		stats.GetDeliveredEventCount(),
		stats.GetDroppedEventCount(),
	)
	glog.Infof(
		"transfer bytes=%d retries=%d",
		stats.GetTransferByteCount(),
		stats.GetTransferRetryCount(),
	)
}
