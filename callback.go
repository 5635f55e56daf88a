package sdk

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/urnetwork/connect/v2025"
)

type CallbackRouterSettings struct {
	// events queued per kind before new events of that kind are dropped
	EventQueueSize int
}

func defaultCallbackRouterSettings() *CallbackRouterSettings {
	return &CallbackRouterSettings{
		EventQueueSize: 32,
	}
}

type subscriptionLookup interface {
	activeSubscription(kind SubscriptionKind) (SubscriptionId, bool)
}

type routedEvent struct {
	generation uint64
	event      Event
}

// CallbackRouter owns the one callback endpoint of the connection and fans
// incoming events out to at most one handler per kind.
// Events of one kind are delivered in arrival order on that kind's own goroutine,
// so a slow handler only delays its own kind.
type CallbackRouter struct {
	ctx    context.Context
	cancel context.CancelFunc

	connectionManager *ConnectionManager
	settings          *CallbackRouterSettings
	stats             *ClientStats

	stateLock          sync.Mutex
	subscriptions      subscriptionLookup
	endpoint           *CallbackEndpoint
	endpointGeneration uint64
	handlers           map[EventKind]EventHandler

	queues map[EventKind]chan *routedEvent
}

func newCallbackRouter(
	ctx context.Context,
	connectionManager *ConnectionManager,
	settings *CallbackRouterSettings,
	stats *ClientStats,
) *CallbackRouter {
	cancelCtx, cancel := context.WithCancel(ctx)

	queues := map[EventKind]chan *routedEvent{}
	for _, kind := range eventKinds {
		queues[kind] = make(chan *routedEvent, settings.EventQueueSize)
	}

	callbackRouter := &CallbackRouter{
		ctx:               cancelCtx,
		cancel:            cancel,
		connectionManager: connectionManager,
		settings:          settings,
		stats:             stats,
		handlers:          map[EventKind]EventHandler{},
		queues:            queues,
	}
	for _, kind := range eventKinds {
		go callbackRouter.run(kind)
	}
	connectionManager.addInvalidator(callbackRouter)
	return callbackRouter
}

func (self *CallbackRouter) setSubscriptions(subscriptions subscriptionLookup) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.subscriptions = subscriptions
}

// SetHandler sets the single handler for `kind`, replacing any previous one.
// A nil handler clears the slot and later events of the kind are dropped.
func (self *CallbackRouter) SetHandler(kind EventKind, handler EventHandler) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if handler == nil {
		delete(self.handlers, kind)
	} else {
		self.handlers[kind] = handler
	}
}

func (self *CallbackRouter) SetSearchCompleteListener(listener SearchCompleteListener) {
	if listener == nil {
		self.SetHandler(EventSearchComplete, nil)
		return
	}
	self.SetHandler(EventSearchComplete, func(event Event) {
		listener.SearchComplete(event.(*SearchCompleteEvent).Results)
	})
}

func (self *CallbackRouter) SetUpdateListener(listener UpdateListener) {
	if listener == nil {
		self.SetHandler(EventUpdatePing, nil)
		return
	}
	self.SetHandler(EventUpdatePing, func(event Event) {
		listener.UpdatePing()
	})
}

func (self *CallbackRouter) SetAppInitializedListener(listener AppInitializedListener) {
	if listener == nil {
		self.SetHandler(EventAppInitialized, nil)
		return
	}
	self.SetHandler(EventAppInitialized, func(event Event) {
		listener.AppInitialized()
	})
}

func (self *CallbackRouter) SetGpxBitmapCreatedListener(listener GpxBitmapCreatedListener) {
	if listener == nil {
		self.SetHandler(EventGpxBitmapCreated, nil)
		return
	}
	self.SetHandler(EventGpxBitmapCreated, func(event Event) {
		listener.GpxBitmapCreated(event.(*GpxBitmapCreatedEvent).Bitmap)
	})
}

func (self *CallbackRouter) SetNavigationInfoListener(listener NavigationInfoListener) {
	if listener == nil {
		self.SetHandler(EventNavigationInfo, nil)
		return
	}
	self.SetHandler(EventNavigationInfo, func(event Event) {
		listener.NavigationInfoUpdated(event.(*NavigationInfoEvent).DirectionInfo)
	})
}

func (self *CallbackRouter) SetContextButtonClickListener(listener ContextButtonClickListener) {
	if listener == nil {
		self.SetHandler(EventContextButtonClick, nil)
		return
	}
	self.SetHandler(EventContextButtonClick, func(event Event) {
		listener.ContextButtonClicked(event.(*ContextButtonClickEvent).Click)
	})
}

func (self *CallbackRouter) SetVoiceRouterNotifyListener(listener VoiceRouterNotifyListener) {
	if listener == nil {
		self.SetHandler(EventVoiceRouterNotify, nil)
		return
	}
	self.SetHandler(EventVoiceRouterNotify, func(event Event) {
		listener.VoiceRouterNotified(event.(*VoiceRouterNotifyEvent).Notify)
	})
}

func (self *CallbackRouter) SetLogcatMessageListener(listener LogcatMessageListener) {
	if listener == nil {
		self.SetHandler(EventLogcatMessage, nil)
		return
	}
	self.SetHandler(EventLogcatMessage, func(event Event) {
		listener.LogcatMessageReceived(event.(*LogcatMessageEvent).Message)
	})
}

// `callbackEndpointProvider`
// opens the endpoint for the current bound generation on first use
func (self *CallbackRouter) requireEndpoint() (*CallbackEndpoint, error) {
	service, generation, err := self.connectionManager.boundService()
	if err != nil {
		return nil, err
	}

	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.endpoint != nil {
		if self.endpointGeneration == generation {
			return self.endpoint, nil
		}
		self.endpoint.Close()
		self.endpoint = nil
	}

	receiver := &CallbackRpc{
		callbackRouter: self,
		generation:     generation,
	}
	endpoint, err := service.OpenCallbackEndpoint(receiver)
	if err != nil {
		return nil, fmt.Errorf("open callback endpoint: %w", err)
	}
	glog.Infof("[cr]endpoint open %s", endpoint.EndpointId)
	self.endpoint = endpoint
	self.endpointGeneration = generation
	return endpoint, nil
}

// `connectionInvalidator`
func (self *CallbackRouter) invalidate(generation uint64) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.endpoint != nil && self.endpointGeneration <= generation {
		glog.Infof("[cr]endpoint close %s", self.endpoint.EndpointId)
		self.endpoint.Close()
		self.endpoint = nil
	}
}

// classifies and queues an incoming event. never blocks the caller
func (self *CallbackRouter) receive(generation uint64, event Event) {
	if event == nil {
		return
	}
	kind := event.EventKind()
	queue, ok := self.queues[kind]
	if !ok {
		glog.Infof("[cr]unknown event kind %s", kind)
		self.stats.UpdateEvent(false)
		return
	}
	if !self.deliverable(generation, event) {
		self.stats.UpdateEvent(false)
		return
	}

	select {
	case queue <- &routedEvent{generation: generation, event: event}:
	default:
		glog.Infof("[cr]%s queue full, drop", kind)
		self.stats.UpdateEvent(false)
	}
}

// whether the event came from the live endpoint, has a handler,
// and if it belongs to a subscription, that the subscription is active
func (self *CallbackRouter) deliverable(generation uint64, event Event) bool {
	kind := event.EventKind()

	subscriptions, live, hasHandler := func() (subscriptionLookup, bool, bool) {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		live := self.endpoint != nil && self.endpointGeneration == generation
		_, hasHandler := self.handlers[kind]
		return self.subscriptions, live, hasHandler
	}()
	if !live {
		glog.V(1).Infof("[cr]%s stale endpoint, drop", kind)
		return false
	}
	if !hasHandler {
		return false
	}

	if subscriptionKind, ok := kind.subscriptionKind(); ok {
		if subscriptions == nil {
			return false
		}
		activeId, active := subscriptions.activeSubscription(subscriptionKind)
		if !active {
			glog.V(1).Infof("[cr]%s no subscription, drop", kind)
			return false
		}
		if subscriptionEvent, ok := event.(subscriptionEvent); ok {
			if id := subscriptionEvent.subscriptionId(); 0 < id && id != activeId {
				glog.V(1).Infof("[cr]%s subscription %d is not active, drop", kind, id)
				return false
			}
		}
	}
	return true
}

func (self *CallbackRouter) run(kind EventKind) {
	queue := self.queues[kind]
	for {
		select {
		case <-self.ctx.Done():
			return
		case routed := <-queue:
			self.deliver(routed)
		}
	}
}

func (self *CallbackRouter) deliver(routed *routedEvent) {
	// state may have changed while queued
	if !self.deliverable(routed.generation, routed.event) {
		self.stats.UpdateEvent(false)
		return
	}

	handler := func() EventHandler {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		return self.handlers[routed.event.EventKind()]
	}()
	if handler == nil {
		self.stats.UpdateEvent(false)
		return
	}

	connect.HandleError(func() {
		handler(routed.event)
	})
	self.stats.UpdateEvent(true)
}

func (self *CallbackRouter) Close() {
	self.cancel()

	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.endpoint != nil {
		self.endpoint.Close()
		self.endpoint = nil
	}
}

// CallbackRpc receives events for one endpoint. The methods are rpc shaped so
// the receiver can be registered with an `rpc.Server` as is.
type CallbackRpc struct {
	callbackRouter *CallbackRouter
	generation     uint64
}

func (self *CallbackRpc) SearchComplete(event *SearchCompleteEvent, _ RpcVoid) error {
	glog.V(1).Infof("[cbrpc]SearchComplete results=%d", len(event.Results))
	self.callbackRouter.receive(self.generation, event)
	return nil
}

func (self *CallbackRpc) UpdatePing(event *UpdatePingEvent, _ RpcVoid) error {
	glog.V(1).Infof("[cbrpc]UpdatePing id=%d", event.SubscriptionId)
	self.callbackRouter.receive(self.generation, event)
	return nil
}

func (self *CallbackRpc) AppInitialized(event *AppInitializedEvent, _ RpcVoid) error {
	glog.V(1).Infof("[cbrpc]AppInitialized")
	self.callbackRouter.receive(self.generation, event)
	return nil
}

func (self *CallbackRpc) GpxBitmapCreated(event *GpxBitmapCreatedEvent, _ RpcVoid) error {
	glog.V(1).Infof("[cbrpc]GpxBitmapCreated")
	self.callbackRouter.receive(self.generation, event)
	return nil
}

func (self *CallbackRpc) NavigationInfo(event *NavigationInfoEvent, _ RpcVoid) error {
	glog.V(1).Infof("[cbrpc]NavigationInfo id=%d", event.SubscriptionId)
	self.callbackRouter.receive(self.generation, event)
	return nil
}

func (self *CallbackRpc) ContextButtonClick(event *ContextButtonClickEvent, _ RpcVoid) error {
	glog.V(1).Infof("[cbrpc]ContextButtonClick")
	self.callbackRouter.receive(self.generation, event)
	return nil
}

func (self *CallbackRpc) VoiceRouterNotify(event *VoiceRouterNotifyEvent, _ RpcVoid) error {
	glog.V(1).Infof("[cbrpc]VoiceRouterNotify id=%d", event.SubscriptionId)
	self.callbackRouter.receive(self.generation, event)
	return nil
}

func (self *CallbackRpc) LogcatMessage(event *LogcatMessageEvent, _ RpcVoid) error {
	glog.V(1).Infof("[cbrpc]LogcatMessage id=%d", event.SubscriptionId)
	self.callbackRouter.receive(self.generation, event)
	return nil
}

type RpcVoid = *any
type RpcNoArg = int
