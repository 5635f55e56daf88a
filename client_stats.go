package sdk

import (
	"slices"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/exp/maps"
)

type ClientStats struct {
	stateLock          sync.Mutex
	connected          bool
	connectStartTime   time.Time
	connectCount       int
	netConnectDuration time.Duration
	maxConnectDuration time.Duration

	// operation -> count
	callCounts      map[Operation]int
	callErrorCounts map[Operation]int

	droppedEventCount   *atomic.Int64
	deliveredEventCount *atomic.Int64
	transferByteCount   *atomic.Int64
	transferRetryCount  *atomic.Int64
}

func newClientStats() *ClientStats {
	return &ClientStats{
		connected:          false,
		connectStartTime:   time.Time{},
		connectCount:       0,
		netConnectDuration: time.Duration(0),
		maxConnectDuration: time.Duration(0),
		callCounts:         map[Operation]int{},
		callErrorCounts:    map[Operation]int{},

		droppedEventCount:   atomic.NewInt64(0),
		deliveredEventCount: atomic.NewInt64(0),
		transferByteCount:   atomic.NewInt64(0),
		transferRetryCount:  atomic.NewInt64(0),
	}
}

func (self *ClientStats) GetConnectCount() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	return self.connectCount
}

func (self *ClientStats) GetNetConnectDurationSeconds() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	netConnectDuration := self.netConnectDuration
	if self.connected {
		netConnectDuration += time.Now().Sub(self.connectStartTime)
	}
	return int(netConnectDuration / time.Second)
}

func (self *ClientStats) GetMaxConnectDurationSeconds() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	return int(self.maxConnectDuration / time.Second)
}

func (self *ClientStats) GetCallCount(operation Operation) int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	return self.callCounts[operation]
}

func (self *ClientStats) GetCallErrorCount(operation Operation) int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	return self.callErrorCounts[operation]
}

func (self *ClientStats) GetDroppedEventCount() int64 {
	return self.droppedEventCount.Load()
}

func (self *ClientStats) GetDeliveredEventCount() int64 {
	return self.deliveredEventCount.Load()
}

func (self *ClientStats) GetTransferByteCount() int64 {
	return self.transferByteCount.Load()
}

func (self *ClientStats) GetTransferRetryCount() int64 {
	return self.transferRetryCount.Load()
}

func (self *ClientStats) UpdateConnect(connected bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	now := time.Now()

	if self.connected {
		connectDuration := now.Sub(self.connectStartTime)
		if self.maxConnectDuration < connectDuration {
			self.maxConnectDuration = connectDuration
		}
		self.netConnectDuration += connectDuration
	}

	if connected {
		self.connectCount += 1
		self.connectStartTime = now
		self.connected = true
	} else {
		self.connected = false
	}
}

func (self *ClientStats) UpdateCall(operation Operation, err error) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	self.callCounts[operation] += 1
	if err != nil {
		self.callErrorCounts[operation] += 1
	}
}

func (self *ClientStats) UpdateEvent(delivered bool) {
	if delivered {
		self.deliveredEventCount.Inc()
	} else {
		self.droppedEventCount.Inc()
	}
}

func (self *ClientStats) UpdateTransfer(byteCount int64) {
	self.transferByteCount.Add(byteCount)
}

func (self *ClientStats) UpdateTransferRetry() {
	self.transferRetryCount.Inc()
}

type operationCount struct {
	operation  Operation
	count      int
	errorCount int
}

// call counts in operation order
func (self *ClientStats) callCountList() []*operationCount {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	operations := maps.Keys(self.callCounts)
	slices.Sort(operations)
	counts := make([]*operationCount, 0, len(operations))
	for _, operation := range operations {
		counts = append(counts, &operationCount{
			operation:  operation,
			count:      self.callCounts[operation],
			errorCount: self.callErrorCounts[operation],
		})
	}
	return counts
}
