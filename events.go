package sdk

import (
	"fmt"
)

type EventKind int

const (
	EventSearchComplete EventKind = iota
	EventUpdatePing
	EventAppInitialized
	EventGpxBitmapCreated
	EventNavigationInfo
	EventContextButtonClick
	EventVoiceRouterNotify
	EventLogcatMessage
)

var eventKinds = []EventKind{
	EventSearchComplete,
	EventUpdatePing,
	EventAppInitialized,
	EventGpxBitmapCreated,
	EventNavigationInfo,
	EventContextButtonClick,
	EventVoiceRouterNotify,
	EventLogcatMessage,
}

func (self EventKind) String() string {
	switch self {
	case EventSearchComplete:
		return "search_complete"
	case EventUpdatePing:
		return "update_ping"
	case EventAppInitialized:
		return "app_initialized"
	case EventGpxBitmapCreated:
		return "gpx_bitmap_created"
	case EventNavigationInfo:
		return "navigation_info"
	case EventContextButtonClick:
		return "context_button_click"
	case EventVoiceRouterNotify:
		return "voice_router_notify"
	case EventLogcatMessage:
		return "logcat_message"
	default:
		return fmt.Sprintf("event_kind(%d)", int(self))
	}
}

// the subscription an event kind is delivered under, if any
func (self EventKind) subscriptionKind() (SubscriptionKind, bool) {
	switch self {
	case EventUpdatePing:
		return SubscriptionUpdates, true
	case EventNavigationInfo:
		return SubscriptionNavigation, true
	case EventVoiceRouterNotify:
		return SubscriptionVoiceRouter, true
	case EventLogcatMessage:
		return SubscriptionLogcat, true
	default:
		return 0, false
	}
}

type Event interface {
	EventKind() EventKind
}

// events delivered under a subscription carry the id the remote issued.
// a non positive id means the remote did not tag the event
type subscriptionEvent interface {
	Event
	subscriptionId() SubscriptionId
}

type SearchResult struct {
	LocalName      string
	LocalTypeName  string
	Latitude       float64
	Longitude      float64
	AlternateNames []string
	ResultIndex    int
}

type SearchCompleteEvent struct {
	Results []*SearchResult
}

func (self *SearchCompleteEvent) EventKind() EventKind {
	return EventSearchComplete
}

type UpdatePingEvent struct {
	SubscriptionId SubscriptionId
}

func (self *UpdatePingEvent) EventKind() EventKind {
	return EventUpdatePing
}

func (self *UpdatePingEvent) subscriptionId() SubscriptionId {
	return self.SubscriptionId
}

type AppInitializedEvent struct {
}

func (self *AppInitializedEvent) EventKind() EventKind {
	return EventAppInitialized
}

type GpxBitmap struct {
	// encoded png
	Data   []byte
	Width  int
	Height int
}

type GpxBitmapCreatedEvent struct {
	Bitmap *GpxBitmap
}

func (self *GpxBitmapCreatedEvent) EventKind() EventKind {
	return EventGpxBitmapCreated
}

type DirectionInfo struct {
	// distance to the next turn in meters
	DistanceTo int
	TurnType   int
	LeftSide   bool
}

type NavigationInfoEvent struct {
	SubscriptionId SubscriptionId
	DirectionInfo  *DirectionInfo
}

func (self *NavigationInfoEvent) EventKind() EventKind {
	return EventNavigationInfo
}

func (self *NavigationInfoEvent) subscriptionId() SubscriptionId {
	return self.SubscriptionId
}

type ContextButtonClick struct {
	ButtonId int
	PointId  string
	LayerId  string
}

type ContextButtonClickEvent struct {
	Click *ContextButtonClick
}

func (self *ContextButtonClickEvent) EventKind() EventKind {
	return EventContextButtonClick
}

type VoiceRouterNotify struct {
	// voice command tokens, e.g. ["turn", "left", "150"]
	Commands []string
	Played   []string
}

type VoiceRouterNotifyEvent struct {
	SubscriptionId SubscriptionId
	Notify         *VoiceRouterNotify
}

func (self *VoiceRouterNotifyEvent) EventKind() EventKind {
	return EventVoiceRouterNotify
}

func (self *VoiceRouterNotifyEvent) subscriptionId() SubscriptionId {
	return self.SubscriptionId
}

type LogcatMessage struct {
	FilterLevel LogcatFilterLevel
	Logs        []string
}

type LogcatMessageEvent struct {
	SubscriptionId SubscriptionId
	Message        *LogcatMessage
}

func (self *LogcatMessageEvent) EventKind() EventKind {
	return EventLogcatMessage
}

func (self *LogcatMessageEvent) subscriptionId() SubscriptionId {
	return self.SubscriptionId
}

type EventHandler func(event Event)

type SearchCompleteListener interface {
	SearchComplete(results []*SearchResult)
}

type UpdateListener interface {
	UpdatePing()
}

type AppInitializedListener interface {
	AppInitialized()
}

type GpxBitmapCreatedListener interface {
	GpxBitmapCreated(bitmap *GpxBitmap)
}

type NavigationInfoListener interface {
	NavigationInfoUpdated(directionInfo *DirectionInfo)
}

type ContextButtonClickListener interface {
	ContextButtonClicked(click *ContextButtonClick)
}

type VoiceRouterNotifyListener interface {
	VoiceRouterNotified(notify *VoiceRouterNotify)
}

type LogcatMessageListener interface {
	LogcatMessageReceived(message *LogcatMessage)
}
