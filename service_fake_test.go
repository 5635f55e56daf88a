package sdk

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/urnetwork/connect/v2025"
)

// records bind attempts. Tests drive the connection callbacks directly
type testing_binder struct {
	stateLock   sync.Mutex
	bindErr     error
	bindCount   int
	unbindCount int
	targets     []*BindTarget
	connections []ServiceConnection
}

func (self *testing_binder) Bind(target *BindTarget, connection ServiceConnection) error {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	self.bindCount += 1
	if self.bindErr != nil {
		return self.bindErr
	}
	self.targets = append(self.targets, target)
	self.connections = append(self.connections, connection)
	return nil
}

func (self *testing_binder) Unbind(connection ServiceConnection) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	self.unbindCount += 1
}

func (self *testing_binder) connection(i int) ServiceConnection {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.connections[i]
}

func (self *testing_binder) lastConnection() ServiceConnection {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.connections[len(self.connections)-1]
}

func (self *testing_binder) getBindCount() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.bindCount
}

func (self *testing_binder) getUnbindCount() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.unbindCount
}

type testing_handleFunc func(request *Request) (any, error)

// an in memory `Service`. Each call is recorded and answered by `handle`
type testing_service struct {
	stateLock sync.Mutex
	handle    testing_handleFunc
	requests  []*Request
	receivers []*CallbackRpc
	endpoints []*CallbackEndpoint
	closed    bool
}

func newTestingService(handle testing_handleFunc) *testing_service {
	return &testing_service{
		handle: handle,
	}
}

func (self *testing_service) Call(request *Request, response *Response) error {
	handle := func() testing_handleFunc {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.requests = append(self.requests, request)
		return self.handle
	}()
	result, err := handle(request)
	if err != nil {
		return err
	}
	r, err := newResponse(result)
	if err != nil {
		return err
	}
	*response = *r
	return nil
}

func (self *testing_service) OpenCallbackEndpoint(receiver *CallbackRpc) (*CallbackEndpoint, error) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	endpoint := NewCallbackEndpoint(connect.NewId(), "memory", func() {})
	self.receivers = append(self.receivers, receiver)
	self.endpoints = append(self.endpoints, endpoint)
	return endpoint, nil
}

func (self *testing_service) Close() error {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.closed = true
	return nil
}

func (self *testing_service) setHandle(handle testing_handleFunc) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.handle = handle
}

func (self *testing_service) callCount(operation Operation) int {
	return len(self.operationRequests(operation))
}

func (self *testing_service) operationRequests(operation Operation) []*Request {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	requests := []*Request{}
	for _, request := range self.requests {
		if request.Operation == operation {
			requests = append(requests, request)
		}
	}
	return requests
}

func (self *testing_service) totalCallCount() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return len(self.requests)
}

func (self *testing_service) endpointCount() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return len(self.endpoints)
}

func (self *testing_service) lastReceiver() *CallbackRpc {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.receivers[len(self.receivers)-1]
}

func (self *testing_service) isClosed() bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.closed
}

// answers every operation with its zero success value
func testing_acceptAll(request *Request) (any, error) {
	spec, err := lookupOperation(request.Operation)
	if err != nil {
		return nil, err
	}
	switch spec.result {
	case resultBool:
		return true, nil
	case resultId:
		return 1, nil
	case resultCode:
		return 0, nil
	default:
		return &ListResult[any]{Success: true, Values: []any{}}, nil
	}
}

func testing_newClient(ctx context.Context) (*Client, *testing_binder) {
	settings := DefaultClientSettings()
	settings.StatsLogInterval = 0
	binder := &testing_binder{}
	client := NewClient(ctx, binder, NewBindTarget(DefaultTargetPackage), settings)
	return client, binder
}

// a client bound to a `testing_service` answering with `handle`
func testing_newBoundClient(t *testing.T, ctx context.Context, handle testing_handleFunc) (*Client, *testing_binder, *testing_service) {
	client, binder := testing_newClient(ctx)
	assert.Equal(t, true, client.Connect())
	service := newTestingService(handle)
	binder.lastConnection().ServiceConnected(service)
	assert.Equal(t, ConnectionBound, client.GetConnectionState())
	return client, binder, service
}

type testing_connectionListener struct {
	stateLock         sync.Mutex
	connectedCount    int
	disconnectedCount int
}

func (self *testing_connectionListener) Connected() {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.connectedCount += 1
}

func (self *testing_connectionListener) Disconnected() {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.disconnectedCount += 1
}

func (self *testing_connectionListener) counts() (int, int) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.connectedCount, self.disconnectedCount
}

// collects delivered events
type testing_eventCollector struct {
	stateLock sync.Mutex
	events    []Event
	monitor   *connect.Monitor
}

func newTestingEventCollector() *testing_eventCollector {
	return &testing_eventCollector{
		monitor: connect.NewMonitor(),
	}
}

func (self *testing_eventCollector) handle(event Event) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.events = append(self.events, event)
	self.monitor.NotifyAll()
}

func (self *testing_eventCollector) getEvents() []Event {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	events := make([]Event, len(self.events))
	copy(events, self.events)
	return events
}

// waits until at least `n` events were collected
func (self *testing_eventCollector) waitForCount(n int, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		count, notify := func() (int, chan struct{}) {
			self.stateLock.Lock()
			defer self.stateLock.Unlock()
			return len(self.events), self.monitor.NotifyChannel()
		}()
		if n <= count {
			return true
		}
		select {
		case <-notify:
		case <-timer.C:
			return false
		}
	}
}
