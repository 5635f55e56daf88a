package sdk

import (
	"context"
	"errors"
	"fmt"
	mathrand "math/rand"
	"net"
	"net/netip"
	"net/rpc"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/urnetwork/connect/v2025"
)

type RpcAddress struct {
	Ip   netip.Addr
	Port int
}

func ParseRpcAddress(hostPort string) (*RpcAddress, error) {
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return nil, err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	return &RpcAddress{
		Ip:   ip,
		Port: port,
	}, nil
}

func requireRpcAddress(hostPort string) *RpcAddress {
	address, err := ParseRpcAddress(hostPort)
	if err != nil {
		panic(err)
	}
	return address
}

func (self *RpcAddress) HostPort() string {
	return net.JoinHostPort(self.Ip.String(), strconv.Itoa(self.Port))
}

type RpcSettings struct {
	// zero disables the timeout. A call the service never answers then blocks until the service goes away
	RpcCallTimeout    time.Duration
	RpcConnectTimeout time.Duration
	// the service is pinged at this interval while bound
	KeepAliveInterval time.Duration
	KeepAliveTimeout  time.Duration
	// max number of keep alive pings after first. Must be at least 1
	KeepAliveRetryCount int
	// package -> service address. A package without an address is not installed
	ServiceAddresses map[string]*RpcAddress
	AcceptedActions  []string
	// the callback endpoint listens on a random port from `ResponsePorts`
	ResponseHost           string
	ResponsePorts          []int
	ResponsePortProbeCount int
}

func DefaultRpcSettings() *RpcSettings {
	responsePorts := []int{}
	for port := 12125; port < 12225; port += 1 {
		responsePorts = append(responsePorts, port)
	}
	return &RpcSettings{
		RpcCallTimeout:      0,
		RpcConnectTimeout:   1 * time.Second,
		KeepAliveInterval:   5 * time.Second,
		KeepAliveTimeout:    1 * time.Second,
		KeepAliveRetryCount: 2,
		ServiceAddresses: map[string]*RpcAddress{
			DefaultTargetPackage: requireRpcAddress("127.0.0.1:12025"),
		},
		AcceptedActions:        []string{DefaultBindAction},
		ResponseHost:           "127.0.0.1",
		ResponsePorts:          responsePorts,
		ResponsePortProbeCount: 10,
	}
}

func (self *RpcSettings) RandResponseAddress() (*RpcAddress, error) {
	ip, err := netip.ParseAddr(self.ResponseHost)
	if err != nil {
		return nil, err
	}
	if len(self.ResponsePorts) == 0 {
		return &RpcAddress{
			Ip:   ip,
			Port: 0,
		}, nil
	}
	port := self.ResponsePorts[mathrand.Intn(len(self.ResponsePorts))]
	return &RpcAddress{
		Ip:   ip,
		Port: port,
	}, nil
}

func (self *RpcSettings) listenConfig() *net.ListenConfig {
	return &net.ListenConfig{
		KeepAliveConfig: net.KeepAliveConfig{
			Enable:   true,
			Idle:     self.KeepAliveTimeout / time.Duration(2*self.KeepAliveRetryCount),
			Interval: self.KeepAliveTimeout / time.Duration(2*self.KeepAliveRetryCount),
			Count:    self.KeepAliveRetryCount,
		},
	}
}

// RpcBinder binds to services that export `ServiceRpc` over tcp.
type RpcBinder struct {
	ctx    context.Context
	cancel context.CancelFunc

	settings *RpcSettings

	stateLock sync.Mutex
	attempts  map[ServiceConnection]context.CancelFunc
}

func NewRpcBinderWithDefaults(ctx context.Context) *RpcBinder {
	return NewRpcBinder(ctx, DefaultRpcSettings())
}

func NewRpcBinder(ctx context.Context, settings *RpcSettings) *RpcBinder {
	cancelCtx, cancel := context.WithCancel(ctx)
	return &RpcBinder{
		ctx:      cancelCtx,
		cancel:   cancel,
		settings: settings,
		attempts: map[ServiceConnection]context.CancelFunc{},
	}
}

// `Binder`
func (self *RpcBinder) Bind(target *BindTarget, connection ServiceConnection) error {
	if !slices.Contains(self.settings.AcceptedActions, target.Action) {
		return fmt.Errorf("%w: action %s", ErrBindPermissionDenied, target.Action)
	}
	address, ok := self.settings.ServiceAddresses[target.Package]
	if !ok {
		return fmt.Errorf("%w: %s", ErrBindTargetNotFound, target.Package)
	}
	if target.CallerToken != "" {
		if _, err := parseCallerIdentity(target.CallerToken); err != nil {
			return fmt.Errorf("%w: %s", ErrBindPermissionDenied, err)
		}
	}

	select {
	case <-self.ctx.Done():
		return fmt.Errorf("%w: binder closed", ErrBindTargetNotFound)
	default:
	}

	attemptCtx, attemptCancel := context.WithCancel(self.ctx)
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		if cancel, ok := self.attempts[connection]; ok {
			cancel()
		}
		self.attempts[connection] = attemptCancel
	}()

	go self.run(attemptCtx, attemptCancel, target, address, connection)
	return nil
}

// `Binder`
func (self *RpcBinder) Unbind(connection ServiceConnection) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if cancel, ok := self.attempts[connection]; ok {
		delete(self.attempts, connection)
		cancel()
	}
}

func (self *RpcBinder) run(
	ctx context.Context,
	cancel context.CancelFunc,
	target *BindTarget,
	address *RpcAddress,
	connection ServiceConnection,
) {
	defer cancel()

	// the connection is told about a failure only while the attempt is current
	disconnected := func() {
		if ctx.Err() == nil {
			connection.ServiceDisconnected()
		}
	}

	dialer := net.Dialer{
		Timeout: self.settings.RpcConnectTimeout,
		KeepAliveConfig: net.KeepAliveConfig{
			Enable: true,
		},
	}
	conn, err := dialer.DialContext(ctx, "tcp", address.HostPort())
	if err != nil {
		glog.Infof("[rpc]bind connect err = %s", err)
		disconnected()
		return
	}

	service := newRpcService(ctx, conn, self.settings)

	bindRequest := &ServiceBindRequest{
		Action:      target.Action,
		Package:     target.Package,
		CallerToken: target.CallerToken,
	}
	bindResponse, err := rpcCall[*ServiceBindResponse](service.client, "ServiceRpc.Bind", bindRequest, func() {
		service.Close()
	})
	if err != nil {
		disconnected()
		return
	}
	glog.Infof("[rpc]bound %s version=%s", target.Package, bindResponse.Version)

	select {
	case <-ctx.Done():
		service.Close()
		return
	default:
	}
	connection.ServiceConnected(service)

	for {
		select {
		case <-ctx.Done():
			// unbound. the owner of the service closes it
			return
		case <-service.ctx.Done():
			glog.Infof("[rpc]service closed")
			disconnected()
			return
		case <-time.After(self.settings.KeepAliveInterval):
		}

		err := service.ping(self.settings.KeepAliveTimeout)
		if err != nil {
			glog.Infof("[rpc]keep alive err = %s", err)
			service.Close()
			disconnected()
			return
		}
	}
}

func (self *RpcBinder) Close() {
	self.cancel()
}

// the live rpc connection to one service
type rpcService struct {
	ctx    context.Context
	cancel context.CancelFunc

	settings *RpcSettings
	client   *rpcClientWithTimeout

	stateLock sync.Mutex
	endpoint  *CallbackEndpoint
}

func newRpcService(ctx context.Context, conn net.Conn, settings *RpcSettings) *rpcService {
	cancelCtx, cancel := context.WithCancel(ctx)
	service := &rpcService{
		ctx:      cancelCtx,
		cancel:   cancel,
		settings: settings,
		client: &rpcClientWithTimeout{
			ctx:         cancelCtx,
			timeout:     settings.RpcCallTimeout,
			closeClient: conn.Close,
			client:      rpc.NewClient(conn),
		},
	}
	go func() {
		defer conn.Close()
		select {
		case <-cancelCtx.Done():
		}
	}()
	return service
}

// `Service`
func (self *rpcService) Call(request *Request, response *Response) error {
	select {
	case <-self.ctx.Done():
		return net.ErrClosed
	default:
	}
	return self.client.Call("ServiceRpc.Call", request, response)
}

func (self *rpcService) ping(timeout time.Duration) error {
	var noarg RpcNoArg
	var void RpcVoid
	return self.client.CallWithTimeout("ServiceRpc.Ping", noarg, &void, timeout)
}

// `Service`
func (self *rpcService) OpenCallbackEndpoint(receiver *CallbackRpc) (*CallbackEndpoint, error) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.endpoint != nil {
		self.endpoint.Close()
		self.endpoint = nil
	}

	listenConfig := self.settings.listenConfig()
	var responseAddress *RpcAddress
	var listener net.Listener
	var err error
	for range max(1, self.settings.ResponsePortProbeCount) {
		responseAddress, err = self.settings.RandResponseAddress()
		if err != nil {
			return nil, err
		}
		listener, err = listenConfig.Listen(self.ctx, "tcp", responseAddress.HostPort())
		if err == nil {
			break
		}
	}
	if err != nil {
		glog.Infof("[rpc]callback listen err = %s", err)
		return nil, err
	}

	server := rpc.NewServer()
	if err := server.RegisterName("CallbackRpc", receiver); err != nil {
		listener.Close()
		return nil, err
	}

	endpointCtx, endpointCancel := context.WithCancel(self.ctx)
	go func() {
		defer endpointCancel()
		for {
			conn, err := listener.Accept()
			if err != nil {
				if !errors.Is(err, net.ErrClosed) {
					glog.Infof("[rpc]callback accept err = %s", err)
				}
				return
			}
			go func() {
				defer conn.Close()
				go func() {
					defer conn.Close()
					select {
					case <-endpointCtx.Done():
					}
				}()
				server.ServeConn(conn)
			}()
		}
	}()
	go func() {
		select {
		case <-endpointCtx.Done():
		}
		listener.Close()
	}()

	endpoint := NewCallbackEndpoint(
		connect.NewId(),
		listener.Addr().String(),
		endpointCancel,
	)
	self.endpoint = endpoint
	return endpoint, nil
}

// `Service`
func (self *rpcService) Close() error {
	self.cancel()
	return self.client.Close()
}

// rpc wrappers

type rpcClientWithTimeout struct {
	ctx         context.Context
	timeout     time.Duration
	closeClient func() error
	client      *rpc.Client
}

func (self *rpcClientWithTimeout) Call(serviceMethod string, args any, reply any) error {
	return self.CallWithTimeout(serviceMethod, args, reply, self.timeout)
}

// a non positive timeout waits for the reply. On timeout the client is closed
func (self *rpcClientWithTimeout) CallWithTimeout(serviceMethod string, args any, reply any, timeout time.Duration) error {
	if timeout <= 0 {
		return self.client.Call(serviceMethod, args, reply)
	}
	ctx, cancel := context.WithCancel(self.ctx)
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(timeout):
			self.closeClient()
		}
	}()
	return self.client.Call(serviceMethod, args, reply)
}

func (self *rpcClientWithTimeout) Close() error {
	return self.client.Close()
}

func rpcCallVoid(client *rpcClientWithTimeout, name string, arg any, cleanup func()) error {
	if arg == nil {
		panic("rpc cannot have nil args")
	}
	var void RpcVoid
	glog.V(1).Infof("[rpc]%s", name)
	err := client.Call(name, arg, &void)
	if err != nil {
		glog.Infof("[rpc]%s err = %s", name, err)
		cleanup()
	}
	return err
}

func rpcCall[T any](client *rpcClientWithTimeout, name string, arg any, cleanup func()) (T, error) {
	if arg == nil {
		panic("rpc cannot have nil args")
	}
	var r T
	glog.Infof("[rpc]%s", name)
	err := client.Call(name, arg, &r)
	if err != nil {
		glog.Infof("[rpc]%s err = %s", name, err)
		cleanup()
	}
	return r, err
}
