package sdk

import (
	"sync"

	"github.com/urnetwork/connect/v2025"
)

// the intent action the map service exports its interface under
const DefaultBindAction = "net.osmand.aidl.OsmandAidlServiceV2"

const DefaultTargetPackage = "net.osmand.plus"

// identifies the remote service to bind to
type BindTarget struct {
	Action  string
	Package string
	// optional jwt that identifies the caller to the service.
	// see `parseCallerIdentity`
	CallerToken string
}

func NewBindTarget(packageName string) *BindTarget {
	return &BindTarget{
		Action:  DefaultBindAction,
		Package: packageName,
	}
}

// Binder resolves a `BindTarget` to a live `Service`.
// A returned error is a synchronous rejection and no connection callback will follow.
// Otherwise the connection gets `ServiceConnected` or `ServiceDisconnected` later,
// unless `Unbind` is called first.
// Callbacks must not be made from inside `Bind`.
type Binder interface {
	Bind(target *BindTarget, connection ServiceConnection) error
	Unbind(connection ServiceConnection)
}

type ServiceConnection interface {
	ServiceConnected(service Service)
	// the bind attempt failed or the service went away
	ServiceDisconnected()
}

// Service is the live handle to the remote service.
// `Call` may be used concurrently. An `rpc.ServerError` from `Call` is a remote rejection,
// any other error means the handle is no longer usable.
type Service interface {
	Call(request *Request, response *Response) error
	// opens the endpoint the service pushes events to. At most one is open per service.
	OpenCallbackEndpoint(receiver *CallbackRpc) (*CallbackEndpoint, error)
	Close() error
}

// the address of a callback receiver, sent along with requests that produce events
type CallbackEndpoint struct {
	EndpointId connect.Id
	// host:port of the reverse rpc server, empty for in process endpoints
	Address string

	closeOnce sync.Once
	close     func()
}

func NewCallbackEndpoint(endpointId connect.Id, address string, close func()) *CallbackEndpoint {
	return &CallbackEndpoint{
		EndpointId: endpointId,
		Address:    address,
		close:      close,
	}
}

func (self *CallbackEndpoint) Close() {
	self.closeOnce.Do(func() {
		if self.close != nil {
			self.close()
		}
	})
}

type ConnectionListener interface {
	Connected()
	Disconnected()
}
