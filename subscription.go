package sdk

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
)

type SubscriptionId int64

const InvalidSubscriptionId SubscriptionId = -1

// the remote does not send updates faster than this
const MinUpdateInterval = 1 * time.Second

type SubscriptionKind int

const (
	SubscriptionUpdates SubscriptionKind = iota
	SubscriptionNavigation
	SubscriptionVoiceRouter
	SubscriptionLogcat
)

func (self SubscriptionKind) String() string {
	switch self {
	case SubscriptionUpdates:
		return "updates"
	case SubscriptionNavigation:
		return "navigation"
	case SubscriptionVoiceRouter:
		return "voice_router"
	case SubscriptionLogcat:
		return "logcat"
	default:
		return fmt.Sprintf("subscription_kind(%d)", int(self))
	}
}

type LogcatFilterLevel string

const (
	LogcatFilterDebug LogcatFilterLevel = "D"
	LogcatFilterInfo  LogcatFilterLevel = "I"
	LogcatFilterWarn  LogcatFilterLevel = "W"
	LogcatFilterError LogcatFilterLevel = "E"
)

type SubscribeParams struct {
	// updates only
	UpdateInterval time.Duration
	// logcat only
	FilterLevel LogcatFilterLevel
}

type subscription struct {
	kind       SubscriptionKind
	id         SubscriptionId
	generation uint64
}

// SubscriptionRegistry tracks the active push subscriptions, at most one per kind.
// Subscriptions are dropped without remote calls when the connection goes away.
type SubscriptionRegistry struct {
	connectionManager *ConnectionManager
	gateway           *UnaryCallGateway

	// serializes subscribe and unsubscribe so a replace is not interleaved
	changeLock sync.Mutex

	stateLock     sync.Mutex
	subscriptions map[SubscriptionKind]*subscription
}

func newSubscriptionRegistry(connectionManager *ConnectionManager, gateway *UnaryCallGateway) *SubscriptionRegistry {
	subscriptionRegistry := &SubscriptionRegistry{
		connectionManager: connectionManager,
		gateway:           gateway,
		subscriptions:     map[SubscriptionKind]*subscription{},
	}
	connectionManager.addInvalidator(subscriptionRegistry)
	return subscriptionRegistry
}

// Subscribe registers for `kind` and returns the remote id, or `InvalidSubscriptionId` on failure.
// An active subscription of the same kind is unregistered first.
func (self *SubscriptionRegistry) Subscribe(kind SubscriptionKind, params SubscribeParams) SubscriptionId {
	self.changeLock.Lock()
	defer self.changeLock.Unlock()

	_, generation, err := self.connectionManager.boundService()
	if err != nil {
		glog.Infof("[sr]subscribe %s err = %s", kind, err)
		return InvalidSubscriptionId
	}

	if kind == SubscriptionUpdates && params.UpdateInterval < MinUpdateInterval {
		glog.Infof("[sr]subscribe %s interval %s is less than %s", kind, params.UpdateInterval, MinUpdateInterval)
		return InvalidSubscriptionId
	}

	if previous := self.take(kind); previous != nil {
		self.unregister(previous)
	}

	id, err := self.register(kind, params)
	if err != nil {
		glog.Infof("[sr]subscribe %s err = %s", kind, err)
		return InvalidSubscriptionId
	}
	if id < 0 {
		glog.Infof("[sr]subscribe %s rejected", kind)
		return InvalidSubscriptionId
	}

	stored := func() bool {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		// the connection may have moved on during the call
		if !self.connectionManager.isLive(generation) {
			return false
		}
		self.subscriptions[kind] = &subscription{
			kind:       kind,
			id:         id,
			generation: generation,
		}
		return true
	}()
	if !stored {
		glog.Infof("[sr]subscribe %s connection changed", kind)
		return InvalidSubscriptionId
	}
	glog.Infof("[sr]subscribed %s id = %d", kind, id)
	return id
}

// Unsubscribe unregisters the subscription `id` of `kind`.
// An unknown or stale id is a successful no-op and makes no remote call.
func (self *SubscriptionRegistry) Unsubscribe(kind SubscriptionKind, id SubscriptionId) bool {
	self.changeLock.Lock()
	defer self.changeLock.Unlock()

	sub := func() *subscription {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		sub, ok := self.subscriptions[kind]
		if !ok || sub.id != id {
			return nil
		}
		delete(self.subscriptions, kind)
		return sub
	}()
	if sub == nil {
		glog.V(1).Infof("[sr]unsubscribe %s unknown id = %d", kind, id)
		return true
	}

	return self.unregister(sub)
}

func (self *SubscriptionRegistry) take(kind SubscriptionKind) *subscription {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	sub, ok := self.subscriptions[kind]
	if !ok {
		return nil
	}
	delete(self.subscriptions, kind)
	return sub
}

func (self *SubscriptionRegistry) register(kind SubscriptionKind, params SubscribeParams) (SubscriptionId, error) {
	var id int64
	var err error
	switch kind {
	case SubscriptionUpdates:
		id, err = callId(self.gateway, OpRegisterForUpdates, Params{
			"update_time_ms": params.UpdateInterval.Milliseconds(),
		})
	case SubscriptionNavigation:
		id, err = callId(self.gateway, OpRegisterForNavigationUpdates, Params{
			"subscribe_to_updates": true,
			"callback_id":          int64(InvalidSubscriptionId),
		})
	case SubscriptionVoiceRouter:
		id, err = callId(self.gateway, OpRegisterForVoiceRouterMessages, Params{
			"subscribe_to_updates": true,
			"callback_id":          int64(InvalidSubscriptionId),
		})
	case SubscriptionLogcat:
		filterLevel := params.FilterLevel
		if filterLevel == "" {
			filterLevel = LogcatFilterInfo
		}
		id, err = callId(self.gateway, OpRegisterForLogcatMessages, Params{
			"subscribe_to_updates": true,
			"callback_id":          int64(InvalidSubscriptionId),
			"filter_level":         string(filterLevel),
		})
	default:
		return InvalidSubscriptionId, fmt.Errorf("%w: unknown subscription kind %s", ErrProtocolViolation, kind)
	}
	if err != nil {
		return InvalidSubscriptionId, err
	}
	return SubscriptionId(id), nil
}

// ids from a dead connection are dropped without a remote call
func (self *SubscriptionRegistry) unregister(sub *subscription) bool {
	if !self.connectionManager.isLive(sub.generation) {
		glog.V(1).Infof("[sr]unsubscribe %s stale id = %d", sub.kind, sub.id)
		return true
	}

	var err error
	switch sub.kind {
	case SubscriptionUpdates:
		err = self.gateway.Call(OpUnregisterFromUpdates, Params{
			"callback_id": int64(sub.id),
		}, nil)
	case SubscriptionNavigation:
		_, err = callId(self.gateway, OpRegisterForNavigationUpdates, Params{
			"subscribe_to_updates": false,
			"callback_id":          int64(sub.id),
		})
	case SubscriptionVoiceRouter:
		_, err = callId(self.gateway, OpRegisterForVoiceRouterMessages, Params{
			"subscribe_to_updates": false,
			"callback_id":          int64(sub.id),
		})
	case SubscriptionLogcat:
		_, err = callId(self.gateway, OpRegisterForLogcatMessages, Params{
			"subscribe_to_updates": false,
			"callback_id":          int64(sub.id),
		})
	}
	if err != nil && !errors.Is(err, ErrRemoteRejected) {
		glog.Infof("[sr]unsubscribe %s id = %d err = %s", sub.kind, sub.id, err)
		return false
	}
	// the remote not knowing the id is a no-op
	glog.Infof("[sr]unsubscribed %s id = %d", sub.kind, sub.id)
	return true
}

// the active subscription id of `kind`
func (self *SubscriptionRegistry) activeSubscription(kind SubscriptionKind) (SubscriptionId, bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	sub, ok := self.subscriptions[kind]
	if !ok {
		return InvalidSubscriptionId, false
	}
	return sub.id, true
}

func (self *SubscriptionRegistry) GetSubscriptionId(kind SubscriptionKind) SubscriptionId {
	id, _ := self.activeSubscription(kind)
	return id
}

// `connectionInvalidator`
func (self *SubscriptionRegistry) invalidate(generation uint64) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	for kind, sub := range self.subscriptions {
		if sub.generation <= generation {
			glog.V(1).Infof("[sr]invalidate %s id = %d", kind, sub.id)
			delete(self.subscriptions, kind)
		}
	}
}
