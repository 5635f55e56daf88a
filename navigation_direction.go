package sdk

import (
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/golang/glog"

	"github.com/urnetwork/connect/v2025"
)

// turn types as reported in `DirectionInfo.TurnType`
const (
	TurnTypeStraight    = 1
	TurnTypeLeft        = 2
	TurnTypeLeftSlight  = 3
	TurnTypeLeftSharp   = 4
	TurnTypeRight       = 5
	TurnTypeRightSlight = 6
	TurnTypeRightSharp  = 7
)

// voice directions closer than this mute the regular navigation updates
const voiceDirectionMuteDistance = 200

type NavigationDirection struct {
	TurnType  int
	DistanceM int
}

func newNavigationDirection(directionInfo *DirectionInfo) *NavigationDirection {
	return &NavigationDirection{
		TurnType:  directionInfo.TurnType,
		DistanceM: directionInfo.DistanceTo,
	}
}

func (self *NavigationDirection) String() string {
	return fmt.Sprintf("turn=%d distance=%dm", self.TurnType, self.DistanceM)
}

// the distance as it is shown: 10m steps under 1km, 100m steps above
func (self *NavigationDirection) displayDistance() int {
	if self.DistanceM < 1000 {
		return int(math.Round(float64(self.DistanceM)/10)) * 10
	}
	return int(math.Round(float64(self.DistanceM)/100)) * 100
}

// whether the two directions look the same when shown
func (self *NavigationDirection) IsShownLike(other *NavigationDirection) bool {
	if other == nil {
		return false
	}
	return self.TurnType == other.TurnType && self.displayDistance() == other.displayDistance()
}

var voiceTurnTypes = map[string]int{
	"left":     TurnTypeLeft,
	"left_sl":  TurnTypeLeftSlight,
	"left_sh":  TurnTypeLeftSharp,
	"right":    TurnTypeRight,
	"right_sl": TurnTypeRightSlight,
	"right_sh": TurnTypeRightSharp,
}

// ParseVoiceDirection reads a turn from voice router commands,
// e.g. ["prepare_turn", "left_sl", "350.4"]. Returns nil for anything else.
func ParseVoiceDirection(commands []string) *NavigationDirection {
	if len(commands) < 3 {
		return nil
	}
	switch commands[0] {
	case "turn", "prepare_turn":
	default:
		return nil
	}
	turnType, ok := voiceTurnTypes[commands[1]]
	if !ok {
		return nil
	}
	distance, err := strconv.ParseFloat(commands[2], 64)
	if err != nil {
		return nil
	}
	return &NavigationDirection{
		TurnType:  turnType,
		DistanceM: max(0, int(math.Round(distance))),
	}
}

type DirectionListener interface {
	DirectionChanged(direction *NavigationDirection)
}

// DirectionTracker merges navigation info and voice router events into one
// stream of directions. Regular navigation updates are muted while a voice
// direction close to the turn is pending, and directions shown like the
// previous one are skipped.
type DirectionTracker struct {
	stateLock     sync.Mutex
	muted         bool
	lastDirection *NavigationDirection

	directionListeners *connect.CallbackList[DirectionListener]
}

func NewDirectionTracker() *DirectionTracker {
	return &DirectionTracker{
		directionListeners: connect.NewCallbackList[DirectionListener](),
	}
}

func (self *DirectionTracker) AddDirectionListener(listener DirectionListener) Sub {
	callbackId := self.directionListeners.Add(listener)
	return newSub(func() {
		self.directionListeners.Remove(callbackId)
	})
}

// `NavigationInfoListener`
func (self *DirectionTracker) NavigationInfoUpdated(directionInfo *DirectionInfo) {
	if directionInfo == nil {
		return
	}
	direction := newNavigationDirection(directionInfo)
	changed := func() bool {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		glog.V(1).Infof("[nd]navigation info %s mute=%t", direction, self.muted)
		if self.muted {
			return false
		}
		return self.update(direction)
	}()
	if changed {
		self.directionChanged(direction)
	}
}

// `VoiceRouterNotifyListener`
func (self *DirectionTracker) VoiceRouterNotified(notify *VoiceRouterNotify) {
	if notify == nil {
		return
	}
	direction := ParseVoiceDirection(notify.Commands)
	if direction == nil {
		return
	}
	changed := func() bool {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		if direction.DistanceM == 0 {
			self.muted = false
		} else if direction.DistanceM < voiceDirectionMuteDistance {
			self.muted = true
		}
		glog.V(1).Infof("[nd]voice %s mute=%t", direction, self.muted)
		return self.update(direction)
	}()
	if changed {
		self.directionChanged(direction)
	}
}

func (self *DirectionTracker) GetMuted() bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.muted
}

// must be called with state lock
func (self *DirectionTracker) update(direction *NavigationDirection) bool {
	if self.lastDirection != nil && self.lastDirection.IsShownLike(direction) {
		return false
	}
	self.lastDirection = direction
	return true
}

func (self *DirectionTracker) directionChanged(direction *NavigationDirection) {
	for _, listener := range self.directionListeners.Get() {
		connect.HandleError(func() {
			listener.DirectionChanged(direction)
		})
	}
}
