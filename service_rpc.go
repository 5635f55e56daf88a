package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/rpc"
	"slices"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/urnetwork/connect/v2025"
)

// the service side of the rpc transport. A host application implements
// `ServiceHandler` and exports it with `NewServiceRpcServer`

type ServiceBindRequest struct {
	Action      string
	Package     string
	CallerToken string
}

type ServiceBindResponse struct {
	Version string
}

// sends events to the callback endpoint a request was made with
type CallbackSink interface {
	Send(event Event) error
}

type ServiceRequest struct {
	Operation Operation
	Params    []byte
	// nil when the caller did not present a token
	Caller *CallerIdentity
	// nil unless the operation delivers events
	Callback CallbackSink
}

func (self *ServiceRequest) DecodeParams(v any) error {
	if len(self.Params) == 0 {
		return nil
	}
	return json.Unmarshal(self.Params, v)
}

type ServiceHandler interface {
	// returns the operation result. An error is reported to the caller as a rejection
	Handle(request *ServiceRequest) (any, error)
}

type ServiceRpcSettings struct {
	ListenAddress   *RpcAddress
	AcceptedActions []string
	// when set, callers must present a token signed with this key
	CallerTokenKey []byte
	// when set, only these caller packages may bind
	AllowedPackages []string

	CallbackConnectTimeout time.Duration
	CallbackCallTimeout    time.Duration
	KeepAliveTimeout       time.Duration
	KeepAliveRetryCount    int
}

func DefaultServiceRpcSettings() *ServiceRpcSettings {
	return &ServiceRpcSettings{
		ListenAddress:          requireRpcAddress("127.0.0.1:12025"),
		AcceptedActions:        []string{DefaultBindAction},
		CallbackConnectTimeout: 1 * time.Second,
		CallbackCallTimeout:    5 * time.Second,
		KeepAliveTimeout:       1 * time.Second,
		KeepAliveRetryCount:    2,
	}
}

type ServiceRpcServer struct {
	ctx    context.Context
	cancel context.CancelFunc

	handler  ServiceHandler
	settings *ServiceRpcSettings

	listener net.Listener
}

func NewServiceRpcServerWithDefaults(ctx context.Context, handler ServiceHandler) (*ServiceRpcServer, error) {
	return NewServiceRpcServer(ctx, handler, DefaultServiceRpcSettings())
}

// listens on `settings.ListenAddress` before returning. Port 0 picks a free port
func NewServiceRpcServer(ctx context.Context, handler ServiceHandler, settings *ServiceRpcSettings) (*ServiceRpcServer, error) {
	cancelCtx, cancel := context.WithCancel(ctx)

	listenConfig := &net.ListenConfig{
		KeepAliveConfig: net.KeepAliveConfig{
			Enable:   true,
			Idle:     settings.KeepAliveTimeout / time.Duration(2*settings.KeepAliveRetryCount),
			Interval: settings.KeepAliveTimeout / time.Duration(2*settings.KeepAliveRetryCount),
			Count:    settings.KeepAliveRetryCount,
		},
	}
	listener, err := listenConfig.Listen(cancelCtx, "tcp", settings.ListenAddress.HostPort())
	if err != nil {
		cancel()
		return nil, err
	}

	server := &ServiceRpcServer{
		ctx:      cancelCtx,
		cancel:   cancel,
		handler:  handler,
		settings: settings,
		listener: listener,
	}
	go server.run()
	return server, nil
}

func (self *ServiceRpcServer) run() {
	defer self.cancel()

	go func() {
		defer self.listener.Close()
		select {
		case <-self.ctx.Done():
		}
	}()

	for {
		conn, err := self.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				glog.Infof("[srpc]accept err = %s", err)
			}
			return
		}
		glog.Infof("[srpc]accepted %s", conn.RemoteAddr())
		go self.serve(conn)
	}
}

func (self *ServiceRpcServer) serve(conn net.Conn) {
	serviceRpc := newServiceRpc(self.ctx, self)
	defer serviceRpc.Close()

	go func() {
		defer conn.Close()
		select {
		case <-serviceRpc.ctx.Done():
		}
	}()

	server := rpc.NewServer()
	if err := server.RegisterName("ServiceRpc", serviceRpc); err != nil {
		glog.Infof("[srpc]register err = %s", err)
		return
	}
	server.ServeConn(conn)
	glog.Infof("[srpc]closed %s", conn.RemoteAddr())
}

func (self *ServiceRpcServer) Addr() *RpcAddress {
	addrPort, err := netip.ParseAddrPort(self.listener.Addr().String())
	if err != nil {
		return nil
	}
	return &RpcAddress{
		Ip:   addrPort.Addr(),
		Port: int(addrPort.Port()),
	}
}

func (self *ServiceRpcServer) Close() {
	self.cancel()
}

// one per client connection
type ServiceRpc struct {
	ctx    context.Context
	cancel context.CancelFunc

	server *ServiceRpcServer

	stateLock       sync.Mutex
	bound           bool
	caller          *CallerIdentity
	callbackClients map[connect.Id]*callbackClient
}

func newServiceRpc(ctx context.Context, server *ServiceRpcServer) *ServiceRpc {
	cancelCtx, cancel := context.WithCancel(ctx)
	return &ServiceRpc{
		ctx:             cancelCtx,
		cancel:          cancel,
		server:          server,
		callbackClients: map[connect.Id]*callbackClient{},
	}
}

func (self *ServiceRpc) Bind(request *ServiceBindRequest, response *ServiceBindResponse) error {
	settings := self.server.settings
	if !slices.Contains(settings.AcceptedActions, request.Action) {
		return fmt.Errorf("action not accepted: %s", request.Action)
	}

	var caller *CallerIdentity
	if request.CallerToken != "" {
		var err error
		if settings.CallerTokenKey != nil {
			caller, err = verifyCallerIdentity(request.CallerToken, settings.CallerTokenKey)
		} else {
			caller, err = parseCallerIdentity(request.CallerToken)
		}
		if err != nil {
			return fmt.Errorf("invalid caller token: %s", err)
		}
	} else if settings.CallerTokenKey != nil {
		return fmt.Errorf("missing caller token")
	}
	if 0 < len(settings.AllowedPackages) {
		if caller == nil || !slices.Contains(settings.AllowedPackages, caller.Package) {
			return fmt.Errorf("caller not allowed")
		}
	}

	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.bound = true
	self.caller = caller

	response.Version = Version
	if caller != nil {
		glog.Infof("[srpc]bind %s %s", caller.Package, caller.ClientId)
	} else {
		glog.Infof("[srpc]bind")
	}
	return nil
}

func (self *ServiceRpc) Ping(_ RpcNoArg, _ RpcVoid) error {
	return nil
}

func (self *ServiceRpc) Call(request *Request, response *Response) error {
	bound, caller := func() (bool, *CallerIdentity) {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		return self.bound, self.caller
	}()
	if !bound {
		return fmt.Errorf("not bound")
	}
	if _, err := lookupOperation(request.Operation); err != nil {
		return err
	}

	serviceRequest := &ServiceRequest{
		Operation: request.Operation,
		Params:    request.Params,
		Caller:    caller,
	}
	if request.Callback != nil {
		serviceRequest.Callback = self.callbackClient(request.Callback)
	}

	glog.V(1).Infof("[srpc]%s", request.Operation)
	result, err := traceWithReturnError(func() (any, error) {
		return self.server.handler.Handle(serviceRequest)
	})
	if err != nil {
		glog.Infof("[srpc]%s err = %s", request.Operation, err)
		return err
	}
	r, err := newResponse(result)
	if err != nil {
		return err
	}
	*response = *r
	return nil
}

func (self *ServiceRpc) callbackClient(endpoint *CallbackEndpoint) *callbackClient {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if client, ok := self.callbackClients[endpoint.EndpointId]; ok {
		return client
	}
	client := newCallbackClient(self.ctx, endpoint.Address, self.server.settings)
	self.callbackClients[endpoint.EndpointId] = client
	return client
}

func (self *ServiceRpc) Close() {
	self.cancel()

	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	for _, client := range self.callbackClients {
		client.Close()
	}
	clear(self.callbackClients)
}

var callbackMethodNames = map[EventKind]string{
	EventSearchComplete:     "CallbackRpc.SearchComplete",
	EventUpdatePing:         "CallbackRpc.UpdatePing",
	EventAppInitialized:     "CallbackRpc.AppInitialized",
	EventGpxBitmapCreated:   "CallbackRpc.GpxBitmapCreated",
	EventNavigationInfo:     "CallbackRpc.NavigationInfo",
	EventContextButtonClick: "CallbackRpc.ContextButtonClick",
	EventVoiceRouterNotify:  "CallbackRpc.VoiceRouterNotify",
	EventLogcatMessage:      "CallbackRpc.LogcatMessage",
}

// dials the client callback endpoint lazily and redials after a failure
type callbackClient struct {
	ctx      context.Context
	address  string
	settings *ServiceRpcSettings

	sendLock sync.Mutex
	client   *rpcClientWithTimeout
}

func newCallbackClient(ctx context.Context, address string, settings *ServiceRpcSettings) *callbackClient {
	return &callbackClient{
		ctx:      ctx,
		address:  address,
		settings: settings,
	}
}

// `CallbackSink`
func (self *callbackClient) Send(event Event) error {
	name, ok := callbackMethodNames[event.EventKind()]
	if !ok {
		return fmt.Errorf("%w: unknown event kind %s", ErrProtocolViolation, event.EventKind())
	}

	self.sendLock.Lock()
	defer self.sendLock.Unlock()

	if self.client == nil {
		dialer := net.Dialer{
			Timeout: self.settings.CallbackConnectTimeout,
			KeepAliveConfig: net.KeepAliveConfig{
				Enable: true,
			},
		}
		conn, err := dialer.DialContext(self.ctx, "tcp", self.address)
		if err != nil {
			return err
		}
		self.client = &rpcClientWithTimeout{
			ctx:         self.ctx,
			timeout:     self.settings.CallbackCallTimeout,
			closeClient: conn.Close,
			client:      rpc.NewClient(conn),
		}
	}

	client := self.client
	return rpcCallVoid(client, name, event, func() {
		client.Close()
		self.client = nil
	})
}

func (self *callbackClient) Close() {
	self.sendLock.Lock()
	defer self.sendLock.Unlock()
	if self.client != nil {
		self.client.Close()
		self.client = nil
	}
}
