package sdk

import (
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestConnectionBind(t *testing.T) {
	binder := &testing_binder{}
	connectionManager := NewConnectionManager(binder, NewBindTarget(DefaultTargetPackage))

	listener := &testing_connectionListener{}
	sub := connectionManager.AddConnectionListener(listener)
	defer sub.Close()

	assert.Equal(t, ConnectionUnbound, connectionManager.GetConnectionState())
	assert.Equal(t, true, connectionManager.Connect())
	assert.Equal(t, ConnectionBinding, connectionManager.GetConnectionState())
	assert.Equal(t, 1, binder.getBindCount())
	assert.Equal(t, DefaultBindAction, binder.targets[0].Action)
	assert.Equal(t, DefaultTargetPackage, binder.targets[0].Package)

	// already binding
	assert.Equal(t, true, connectionManager.Connect())
	assert.Equal(t, 1, binder.getBindCount())

	service := newTestingService(testing_acceptAll)
	binder.lastConnection().ServiceConnected(service)
	assert.Equal(t, ConnectionBound, connectionManager.GetConnectionState())
	assert.Equal(t, true, connectionManager.GetRemoteConnected())

	connectedCount, disconnectedCount := listener.counts()
	assert.Equal(t, 1, connectedCount)
	assert.Equal(t, 0, disconnectedCount)

	// already bound
	assert.Equal(t, true, connectionManager.Connect())
	assert.Equal(t, 1, binder.getBindCount())
}

func TestConnectionBindRejected(t *testing.T) {
	binder := &testing_binder{
		bindErr: ErrBindTargetNotFound,
	}
	connectionManager := NewConnectionManager(binder, NewBindTarget("missing.package"))

	assert.Equal(t, false, connectionManager.Connect())
	assert.Equal(t, ConnectionUnbound, connectionManager.GetConnectionState())

	_, _, err := connectionManager.boundService()
	assert.Equal(t, ErrNotConnected, err)
}

func TestConnectionDisconnect(t *testing.T) {
	binder := &testing_binder{}
	connectionManager := NewConnectionManager(binder, NewBindTarget(DefaultTargetPackage))

	listener := &testing_connectionListener{}
	connectionManager.AddConnectionListener(listener)

	// no-op while unbound
	connectionManager.Disconnect()
	assert.Equal(t, 0, binder.getUnbindCount())

	connectionManager.Connect()
	service := newTestingService(testing_acceptAll)
	binder.lastConnection().ServiceConnected(service)

	connectionManager.Disconnect()
	assert.Equal(t, ConnectionUnbound, connectionManager.GetConnectionState())
	assert.Equal(t, 1, binder.getUnbindCount())
	assert.Equal(t, true, service.isClosed())

	// explicit disconnect is not reported
	connectedCount, disconnectedCount := listener.counts()
	assert.Equal(t, 1, connectedCount)
	assert.Equal(t, 0, disconnectedCount)

	connectionManager.Disconnect()
	assert.Equal(t, 1, binder.getUnbindCount())
}

func TestConnectionDisconnectWhileBinding(t *testing.T) {
	binder := &testing_binder{}
	connectionManager := NewConnectionManager(binder, NewBindTarget(DefaultTargetPackage))

	connectionManager.Connect()
	connectionManager.Disconnect()
	assert.Equal(t, ConnectionUnbound, connectionManager.GetConnectionState())
	assert.Equal(t, 1, binder.getUnbindCount())

	// the late callback of the released bind closes the service it brought
	service := newTestingService(testing_acceptAll)
	binder.lastConnection().ServiceConnected(service)
	assert.Equal(t, ConnectionUnbound, connectionManager.GetConnectionState())
	assert.Equal(t, true, service.isClosed())
}

func TestConnectionServiceDisconnected(t *testing.T) {
	binder := &testing_binder{}
	connectionManager := NewConnectionManager(binder, NewBindTarget(DefaultTargetPackage))

	listener := &testing_connectionListener{}
	connectionManager.AddConnectionListener(listener)

	connectionManager.Connect()
	service := newTestingService(testing_acceptAll)
	binder.lastConnection().ServiceConnected(service)

	binder.lastConnection().ServiceDisconnected()
	assert.Equal(t, ConnectionUnbound, connectionManager.GetConnectionState())
	assert.Equal(t, true, service.isClosed())
	assert.Equal(t, 1, binder.getUnbindCount())

	connectedCount, disconnectedCount := listener.counts()
	assert.Equal(t, 1, connectedCount)
	assert.Equal(t, 1, disconnectedCount)

	// no automatic reconnect
	assert.Equal(t, 1, binder.getBindCount())

	// a repeated report is ignored
	binder.lastConnection().ServiceDisconnected()
	_, disconnectedCount = listener.counts()
	assert.Equal(t, 1, disconnectedCount)

	// a new connect is allowed
	assert.Equal(t, true, connectionManager.Connect())
	assert.Equal(t, 2, binder.getBindCount())
}

func TestConnectionBindFailed(t *testing.T) {
	binder := &testing_binder{}
	connectionManager := NewConnectionManager(binder, NewBindTarget(DefaultTargetPackage))

	listener := &testing_connectionListener{}
	connectionManager.AddConnectionListener(listener)

	connectionManager.Connect()
	binder.lastConnection().ServiceDisconnected()
	assert.Equal(t, ConnectionUnbound, connectionManager.GetConnectionState())

	connectedCount, disconnectedCount := listener.counts()
	assert.Equal(t, 0, connectedCount)
	assert.Equal(t, 1, disconnectedCount)
}

func TestConnectionStaleCallbacks(t *testing.T) {
	binder := &testing_binder{}
	connectionManager := NewConnectionManager(binder, NewBindTarget(DefaultTargetPackage))

	connectionManager.Connect()
	connectionManager.Disconnect()
	connectionManager.Connect()
	assert.Equal(t, 2, binder.getBindCount())

	staleConnection := binder.connection(0)
	currentConnection := binder.connection(1)

	staleService := newTestingService(testing_acceptAll)
	staleConnection.ServiceConnected(staleService)
	assert.Equal(t, ConnectionBinding, connectionManager.GetConnectionState())
	assert.Equal(t, true, staleService.isClosed())

	service := newTestingService(testing_acceptAll)
	currentConnection.ServiceConnected(service)
	assert.Equal(t, ConnectionBound, connectionManager.GetConnectionState())

	staleConnection.ServiceDisconnected()
	assert.Equal(t, ConnectionBound, connectionManager.GetConnectionState())
	assert.Equal(t, false, service.isClosed())
}

func TestConnectionGenerations(t *testing.T) {
	binder := &testing_binder{}
	connectionManager := NewConnectionManager(binder, NewBindTarget(DefaultTargetPackage))

	connectionManager.Connect()
	binder.lastConnection().ServiceConnected(newTestingService(testing_acceptAll))
	_, generation1, err := connectionManager.boundService()
	assert.Equal(t, nil, err)
	assert.Equal(t, true, connectionManager.isLive(generation1))

	connectionManager.Disconnect()
	assert.Equal(t, false, connectionManager.isLive(generation1))

	connectionManager.Connect()
	binder.lastConnection().ServiceConnected(newTestingService(testing_acceptAll))
	_, generation2, err := connectionManager.boundService()
	assert.Equal(t, nil, err)
	assert.Equal(t, true, generation1 < generation2)
	assert.Equal(t, false, connectionManager.isLive(generation1))
	assert.Equal(t, true, connectionManager.isLive(generation2))
}

func TestConnectionWaitForState(t *testing.T) {
	binder := &testing_binder{}
	connectionManager := NewConnectionManager(binder, NewBindTarget(DefaultTargetPackage))

	assert.Equal(t, false, connectionManager.WaitForState(ConnectionBound, 10*time.Millisecond))

	connectionManager.Connect()
	go func() {
		select {
		case <-time.After(50 * time.Millisecond):
		}
		binder.lastConnection().ServiceConnected(newTestingService(testing_acceptAll))
	}()
	assert.Equal(t, true, connectionManager.WaitForState(ConnectionBound, 5*time.Second))
}

func TestConnectionListenerSub(t *testing.T) {
	binder := &testing_binder{}
	connectionManager := NewConnectionManager(binder, NewBindTarget(DefaultTargetPackage))

	listener := &testing_connectionListener{}
	sub := connectionManager.AddConnectionListener(listener)
	sub.Close()
	// closing twice is allowed
	sub.Close()

	connectionManager.Connect()
	binder.lastConnection().ServiceConnected(newTestingService(testing_acceptAll))

	connectedCount, _ := listener.counts()
	assert.Equal(t, 0, connectedCount)
}
