package sdk

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/urnetwork/connect/v2025"
)

type ConnectionState int

const (
	ConnectionUnbound ConnectionState = iota
	ConnectionBinding
	ConnectionBound
	// transient. the service went away and the connection is being released
	ConnectionDisconnected
)

func (self ConnectionState) String() string {
	switch self {
	case ConnectionUnbound:
		return "unbound"
	case ConnectionBinding:
		return "binding"
	case ConnectionBound:
		return "bound"
	case ConnectionDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("connection_state(%d)", int(self))
	}
}

// state tied to one bound generation of the connection.
// `invalidate` drops everything created in `generation` or earlier without remote calls
type connectionInvalidator interface {
	invalidate(generation uint64)
}

// the `ServiceConnection` for one bind attempt.
// callbacks on a connection that is no longer current are ignored
type serviceConnection struct {
	connectionManager *ConnectionManager
}

func (self *serviceConnection) ServiceConnected(service Service) {
	self.connectionManager.serviceConnected(self, service)
}

func (self *serviceConnection) ServiceDisconnected() {
	self.connectionManager.serviceDisconnected(self)
}

// ConnectionManager owns the single connection to the remote service.
// Bind and unbind are serialized on the state lock. There is no automatic reconnect.
type ConnectionManager struct {
	binder Binder
	target *BindTarget
	stats  *ClientStats

	stateLock  sync.Mutex
	state      ConnectionState
	connection *serviceConnection
	service    Service
	// incremented each time the connection becomes bound
	generation uint64

	stateMonitor        *connect.Monitor
	connectionListeners *connect.CallbackList[ConnectionListener]

	invalidatorsLock sync.Mutex
	invalidators     []connectionInvalidator
}

func NewConnectionManager(binder Binder, target *BindTarget) *ConnectionManager {
	return newConnectionManager(binder, target, newClientStats())
}

func newConnectionManager(binder Binder, target *BindTarget, stats *ClientStats) *ConnectionManager {
	return &ConnectionManager{
		binder:              binder,
		target:              target,
		stats:               stats,
		state:               ConnectionUnbound,
		stateMonitor:        connect.NewMonitor(),
		connectionListeners: connect.NewCallbackList[ConnectionListener](),
	}
}

func (self *ConnectionManager) addInvalidator(invalidator connectionInvalidator) {
	self.invalidatorsLock.Lock()
	defer self.invalidatorsLock.Unlock()
	self.invalidators = append(self.invalidators, invalidator)
}

// Connect requests a bind and returns whether the request was accepted.
// Completion is reported to the connection listeners.
func (self *ConnectionManager) Connect() bool {
	connection := func() *serviceConnection {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		switch self.state {
		case ConnectionBinding, ConnectionBound:
			return nil
		}

		connection := &serviceConnection{
			connectionManager: self,
		}
		self.connection = connection
		self.setState(ConnectionBinding)
		return connection
	}()
	if connection == nil {
		// already binding or bound
		return true
	}

	glog.Infof("[cm]bind %s/%s", self.target.Package, self.target.Action)
	err := self.binder.Bind(self.target, connection)
	if err != nil {
		glog.Infof("[cm]bind err = %s", err)
		func() {
			self.stateLock.Lock()
			defer self.stateLock.Unlock()

			if self.connection == connection {
				self.connection = nil
				self.setState(ConnectionUnbound)
			}
		}()
		return false
	}
	return true
}

// Disconnect releases the bind. Everything tied to the connection is invalidated.
// The connection listeners are not notified.
func (self *ConnectionManager) Disconnect() {
	connection, generation := func() (*serviceConnection, uint64) {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		switch self.state {
		case ConnectionBinding, ConnectionBound:
		default:
			return nil, 0
		}

		connection := self.connection
		if self.state == ConnectionBound {
			self.stats.UpdateConnect(false)
		}
		self.connection = nil
		self.closeService()
		self.setState(ConnectionUnbound)
		return connection, self.generation
	}()
	if connection == nil {
		return
	}

	glog.Infof("[cm]unbind")
	self.invalidate(generation)
	self.binder.Unbind(connection)
}

func (self *ConnectionManager) serviceConnected(connection *serviceConnection, service Service) {
	connected := func() bool {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		if self.connection != connection || self.state != ConnectionBinding {
			return false
		}
		self.generation += 1
		self.service = service
		self.stats.UpdateConnect(true)
		self.setState(ConnectionBound)
		return true
	}()
	if !connected {
		glog.Infof("[cm]stale service connected")
		service.Close()
		return
	}

	self.connectionChanged(true)
}

func (self *ConnectionManager) serviceDisconnected(connection *serviceConnection) {
	generation, disconnected := func() (uint64, bool) {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		if self.connection != connection {
			return 0, false
		}
		switch self.state {
		case ConnectionBinding, ConnectionBound:
		default:
			return 0, false
		}
		if self.state == ConnectionBound {
			self.stats.UpdateConnect(false)
		}
		self.closeService()
		self.setState(ConnectionDisconnected)
		return self.generation, true
	}()
	if !disconnected {
		glog.Infof("[cm]stale service disconnected")
		return
	}

	glog.Infof("[cm]service disconnected")
	self.release(connection, generation)
}

// a call on the live service failed in transport.
// fast transition to disconnected rather than waiting for the service connection to report it
func (self *ConnectionManager) serviceFailed(generation uint64, err error) {
	connection, failed := func() (*serviceConnection, bool) {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		if self.state != ConnectionBound || self.generation != generation {
			return nil, false
		}
		self.stats.UpdateConnect(false)
		self.closeService()
		self.setState(ConnectionDisconnected)
		return self.connection, true
	}()
	if !failed {
		return
	}

	glog.Infof("[cm]service failed err = %s", err)
	self.release(connection, generation)
}

// settles a disconnected connection in unbound and notifies the listeners
func (self *ConnectionManager) release(connection *serviceConnection, generation uint64) {
	self.invalidate(generation)
	self.binder.Unbind(connection)

	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		if self.connection == connection {
			self.connection = nil
			self.setState(ConnectionUnbound)
		}
	}()

	self.connectionChanged(false)
}

func (self *ConnectionManager) invalidate(generation uint64) {
	invalidators := func() []connectionInvalidator {
		self.invalidatorsLock.Lock()
		defer self.invalidatorsLock.Unlock()
		return slices.Clone(self.invalidators)
	}()
	for _, invalidator := range invalidators {
		invalidator.invalidate(generation)
	}
}

// must be called with state lock
func (self *ConnectionManager) closeService() {
	if self.service != nil {
		self.service.Close()
		self.service = nil
	}
}

// must be called with state lock
func (self *ConnectionManager) setState(state ConnectionState) {
	if self.state == state {
		return
	}
	glog.V(1).Infof("[cm]state %s -> %s", self.state, state)
	self.state = state
	self.stateMonitor.NotifyAll()
}

func (self *ConnectionManager) boundService() (Service, uint64, error) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.state != ConnectionBound {
		return nil, 0, ErrNotConnected
	}
	return self.service, self.generation, nil
}

// whether `generation` is the current bound generation
func (self *ConnectionManager) isLive(generation uint64) bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	return self.state == ConnectionBound && self.generation == generation
}

func (self *ConnectionManager) GetConnectionState() ConnectionState {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	return self.state
}

func (self *ConnectionManager) GetRemoteConnected() bool {
	return self.GetConnectionState() == ConnectionBound
}

// waits for the connection to reach `state`. A negative timeout waits forever.
func (self *ConnectionManager) WaitForState(state ConnectionState, timeout time.Duration) bool {
	var timeoutChannel <-chan time.Time
	if 0 <= timeout {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutChannel = timer.C
	}
	for {
		currentState, notify := func() (ConnectionState, chan struct{}) {
			self.stateLock.Lock()
			defer self.stateLock.Unlock()
			return self.state, self.stateMonitor.NotifyChannel()
		}()
		if currentState == state {
			return true
		}
		select {
		case <-notify:
		case <-timeoutChannel:
			return false
		}
	}
}

func (self *ConnectionManager) AddConnectionListener(listener ConnectionListener) Sub {
	callbackId := self.connectionListeners.Add(listener)
	return newSub(func() {
		self.connectionListeners.Remove(callbackId)
	})
}

func (self *ConnectionManager) connectionChanged(connected bool) {
	for _, listener := range self.connectionListeners.Get() {
		connect.HandleError(func() {
			if connected {
				listener.Connected()
			} else {
				listener.Disconnected()
			}
		})
	}
}
