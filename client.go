package sdk

import (
	"context"
	"io"
	"time"

	"github.com/golang/glog"
)

type ClientSettings struct {
	CallbackRouterSettings
	ClientMonitorSettings
}

func DefaultClientSettings() *ClientSettings {
	return &ClientSettings{
		CallbackRouterSettings: *defaultCallbackRouterSettings(),
		ClientMonitorSettings:  *defaultClientMonitorSettings(),
	}
}

// Client is the entry point for talking to the map service.
// The embedding application owns the instance. All methods are safe to call
// from any goroutine, and none block on the connection lifecycle.
type Client struct {
	ctx    context.Context
	cancel context.CancelFunc

	settings *ClientSettings
	stats    *ClientStats

	connectionManager *ConnectionManager
	callbackRouter    *CallbackRouter
	gateway           *UnaryCallGateway
	subscriptions     *SubscriptionRegistry
	transfers         *TransferManager

	monitor *clientMonitor
}

func NewClientWithDefaults(ctx context.Context, binder Binder, packageName string) *Client {
	return NewClient(ctx, binder, NewBindTarget(packageName), DefaultClientSettings())
}

func NewClient(ctx context.Context, binder Binder, target *BindTarget, settings *ClientSettings) *Client {
	cancelCtx, cancel := context.WithCancel(ctx)

	stats := newClientStats()
	connectionManager := newConnectionManager(binder, target, stats)
	callbackRouter := newCallbackRouter(cancelCtx, connectionManager, &settings.CallbackRouterSettings, stats)
	gateway := newUnaryCallGateway(connectionManager, callbackRouter, stats)
	subscriptions := newSubscriptionRegistry(connectionManager, gateway)
	callbackRouter.setSubscriptions(subscriptions)
	transfers := newTransferManager(connectionManager, gateway, stats)

	return &Client{
		ctx:               cancelCtx,
		cancel:            cancel,
		settings:          settings,
		stats:             stats,
		connectionManager: connectionManager,
		callbackRouter:    callbackRouter,
		gateway:           gateway,
		subscriptions:     subscriptions,
		transfers:         transfers,
		monitor:           newClientMonitor(cancelCtx, &settings.ClientMonitorSettings, stats),
	}
}

// connection

func (self *Client) Connect() bool {
	return self.connectionManager.Connect()
}

func (self *Client) Disconnect() {
	self.connectionManager.Disconnect()
}

func (self *Client) GetConnectionState() ConnectionState {
	return self.connectionManager.GetConnectionState()
}

func (self *Client) GetRemoteConnected() bool {
	return self.connectionManager.GetRemoteConnected()
}

// a negative timeout waits until connected
func (self *Client) WaitForConnected(timeout time.Duration) bool {
	return self.connectionManager.WaitForState(ConnectionBound, timeout)
}

func (self *Client) WaitForState(state ConnectionState, timeout time.Duration) bool {
	return self.connectionManager.WaitForState(state, timeout)
}

func (self *Client) AddConnectionListener(listener ConnectionListener) Sub {
	return self.connectionManager.AddConnectionListener(listener)
}

// Call invokes any operation. `reply` may be nil when the result is not needed.
func (self *Client) Call(operation Operation, params any, reply any) error {
	return self.gateway.Call(operation, params, reply)
}

// subscriptions

func (self *Client) Subscribe(kind SubscriptionKind, params SubscribeParams) SubscriptionId {
	return self.subscriptions.Subscribe(kind, params)
}

func (self *Client) Unsubscribe(kind SubscriptionKind, id SubscriptionId) bool {
	return self.subscriptions.Unsubscribe(kind, id)
}

func (self *Client) GetSubscriptionId(kind SubscriptionKind) SubscriptionId {
	return self.subscriptions.GetSubscriptionId(kind)
}

// UpdatePing events arrive every `updateInterval`, at least `MinUpdateInterval`
func (self *Client) RegisterForUpdates(updateInterval time.Duration) SubscriptionId {
	return self.subscriptions.Subscribe(SubscriptionUpdates, SubscribeParams{
		UpdateInterval: updateInterval,
	})
}

func (self *Client) UnregisterFromUpdates(id SubscriptionId) bool {
	return self.subscriptions.Unsubscribe(SubscriptionUpdates, id)
}

// with `subscribe` false the subscription `id` is dropped and `id` is returned on success
func (self *Client) RegisterForNavigationUpdates(subscribe bool, id SubscriptionId) SubscriptionId {
	return self.registerFor(SubscriptionNavigation, subscribe, id, SubscribeParams{})
}

func (self *Client) RegisterForVoiceRouterMessages(subscribe bool, id SubscriptionId) SubscriptionId {
	return self.registerFor(SubscriptionVoiceRouter, subscribe, id, SubscribeParams{})
}

func (self *Client) RegisterForLogcatMessages(subscribe bool, id SubscriptionId, filterLevel LogcatFilterLevel) SubscriptionId {
	return self.registerFor(SubscriptionLogcat, subscribe, id, SubscribeParams{
		FilterLevel: filterLevel,
	})
}

func (self *Client) registerFor(kind SubscriptionKind, subscribe bool, id SubscriptionId, params SubscribeParams) SubscriptionId {
	if subscribe {
		return self.subscriptions.Subscribe(kind, params)
	}
	if self.subscriptions.Unsubscribe(kind, id) {
		return id
	}
	return InvalidSubscriptionId
}

// listeners. each setter replaces the previous listener of its kind, nil clears it

func (self *Client) SetHandler(kind EventKind, handler EventHandler) {
	self.callbackRouter.SetHandler(kind, handler)
}

func (self *Client) SetSearchCompleteListener(listener SearchCompleteListener) {
	self.callbackRouter.SetSearchCompleteListener(listener)
}

func (self *Client) SetUpdateListener(listener UpdateListener) {
	self.callbackRouter.SetUpdateListener(listener)
}

func (self *Client) SetAppInitializedListener(listener AppInitializedListener) {
	self.callbackRouter.SetAppInitializedListener(listener)
}

func (self *Client) SetGpxBitmapCreatedListener(listener GpxBitmapCreatedListener) {
	self.callbackRouter.SetGpxBitmapCreatedListener(listener)
}

func (self *Client) SetNavigationInfoListener(listener NavigationInfoListener) {
	self.callbackRouter.SetNavigationInfoListener(listener)
}

func (self *Client) SetContextButtonClickListener(listener ContextButtonClickListener) {
	self.callbackRouter.SetContextButtonClickListener(listener)
}

func (self *Client) SetVoiceRouterNotifyListener(listener VoiceRouterNotifyListener) {
	self.callbackRouter.SetVoiceRouterNotifyListener(listener)
}

func (self *Client) SetLogcatMessageListener(listener LogcatMessageListener) {
	self.callbackRouter.SetLogcatMessageListener(listener)
}

// routes navigation info and voice router events into `directionTracker`
func (self *Client) SetDirectionTracker(directionTracker *DirectionTracker) {
	if directionTracker == nil {
		self.callbackRouter.SetNavigationInfoListener(nil)
		self.callbackRouter.SetVoiceRouterNotifyListener(nil)
		return
	}
	self.callbackRouter.SetNavigationInfoListener(directionTracker)
	self.callbackRouter.SetVoiceRouterNotifyListener(directionTracker)
}

// transfers

func (self *Client) StartCopyFile(destinationDir string, fileName string) (*CopyFileSession, error) {
	return self.transfers.StartCopyFile(destinationDir, fileName)
}

func (self *Client) CopyFile(ctx context.Context, r io.Reader, destinationDir string, fileName string) (*CopyFileSession, error) {
	return CopyFile(ctx, self.transfers, r, destinationDir, fileName)
}

func (self *Client) GetStats() *ClientStats {
	return self.stats
}

// Close disconnects and stops event delivery. The client cannot be reused.
func (self *Client) Close() {
	glog.Infof("[c]close")
	self.connectionManager.Disconnect()
	self.callbackRouter.Close()
	self.monitor.Close()
	self.cancel()
}
