package sdk

import (
	"encoding/json"
	"fmt"
)

type Operation string

const (
	OpRefreshMap Operation = "refresh_map"

	OpAddFavoriteGroup    Operation = "add_favorite_group"
	OpUpdateFavoriteGroup Operation = "update_favorite_group"
	OpRemoveFavoriteGroup Operation = "remove_favorite_group"
	OpAddFavorite         Operation = "add_favorite"
	OpUpdateFavorite      Operation = "update_favorite"
	OpRemoveFavorite      Operation = "remove_favorite"

	OpAddMapMarker              Operation = "add_map_marker"
	OpUpdateMapMarker           Operation = "update_map_marker"
	OpRemoveMapMarker           Operation = "remove_map_marker"
	OpRemoveAllActiveMapMarkers Operation = "remove_all_active_map_markers"

	OpAddMapLayer    Operation = "add_map_layer"
	OpRemoveMapLayer Operation = "remove_map_layer"
	OpAddMapPoint    Operation = "add_map_point"
	OpRemoveMapPoint Operation = "remove_map_point"

	OpImportGpx         Operation = "import_gpx"
	OpShowGpx           Operation = "show_gpx"
	OpHideGpx           Operation = "hide_gpx"
	OpRemoveGpx         Operation = "remove_gpx"
	OpGetActiveGpx      Operation = "get_active_gpx"
	OpGetImportedGpx    Operation = "get_imported_gpx"
	OpGetBitmapForGpx   Operation = "get_bitmap_for_gpx"
	OpStartGpxRecording Operation = "start_gpx_recording"
	OpStopGpxRecording  Operation = "stop_gpx_recording"

	OpSetMapLocation Operation = "set_map_location"

	OpNavigate         Operation = "navigate"
	OpNavigateSearch   Operation = "navigate_search"
	OpNavigateGpx      Operation = "navigate_gpx"
	OpPauseNavigation  Operation = "pause_navigation"
	OpResumeNavigation Operation = "resume_navigation"
	OpStopNavigation   Operation = "stop_navigation"
	OpMuteNavigation   Operation = "mute_navigation"
	OpUnmuteNavigation Operation = "unmute_navigation"

	OpSearch Operation = "search"

	OpGetBlockedRoads Operation = "get_blocked_roads"
	OpAddRoadBlock    Operation = "add_road_block"
	OpRemoveRoadBlock Operation = "remove_road_block"

	OpAddContextMenuButtons    Operation = "add_context_menu_buttons"
	OpRemoveContextMenuButtons Operation = "remove_context_menu_buttons"

	OpGetText            Operation = "get_text"
	OpGetPreferenceValue Operation = "get_preference_value"
	OpSetPreferenceValue Operation = "set_preference_value"
	OpExitApp            Operation = "exit_app"

	OpRegisterForUpdates             Operation = "register_for_updates"
	OpUnregisterFromUpdates          Operation = "unregister_from_updates"
	OpRegisterForNavigationUpdates   Operation = "register_for_navigation_updates"
	OpRegisterForVoiceRouterMessages Operation = "register_for_voice_router_messages"
	OpRegisterForLogcatMessages      Operation = "register_for_logcat_messages"
	OpRegisterForAppInitialized      Operation = "register_for_app_initialized"

	OpCopyFile Operation = "copy_file"
)

type resultKind int

const (
	resultBool resultKind = iota
	// an int64 id, negative on failure
	resultId
	// an int outcome code
	resultCode
	// a string or structured value
	resultValue
)

type operationSpec struct {
	result resultKind
	// the request carries the callback endpoint. events for the call arrive there
	callback bool
}

var operationSpecs = map[Operation]*operationSpec{
	OpRefreshMap: {result: resultBool},

	OpAddFavoriteGroup:    {result: resultBool},
	OpUpdateFavoriteGroup: {result: resultBool},
	OpRemoveFavoriteGroup: {result: resultBool},
	OpAddFavorite:         {result: resultBool},
	OpUpdateFavorite:      {result: resultBool},
	OpRemoveFavorite:      {result: resultBool},

	OpAddMapMarker:              {result: resultBool},
	OpUpdateMapMarker:           {result: resultBool},
	OpRemoveMapMarker:           {result: resultBool},
	OpRemoveAllActiveMapMarkers: {result: resultBool},

	OpAddMapLayer:    {result: resultBool},
	OpRemoveMapLayer: {result: resultBool},
	OpAddMapPoint:    {result: resultBool},
	OpRemoveMapPoint: {result: resultBool},

	OpImportGpx:         {result: resultBool},
	OpShowGpx:           {result: resultBool},
	OpHideGpx:           {result: resultBool},
	OpRemoveGpx:         {result: resultBool},
	OpGetActiveGpx:      {result: resultValue},
	OpGetImportedGpx:    {result: resultValue},
	OpGetBitmapForGpx:   {result: resultBool, callback: true},
	OpStartGpxRecording: {result: resultBool},
	OpStopGpxRecording:  {result: resultBool},

	OpSetMapLocation: {result: resultBool},

	OpNavigate:         {result: resultBool},
	OpNavigateSearch:   {result: resultBool},
	OpNavigateGpx:      {result: resultBool},
	OpPauseNavigation:  {result: resultBool},
	OpResumeNavigation: {result: resultBool},
	OpStopNavigation:   {result: resultBool},
	OpMuteNavigation:   {result: resultBool},
	OpUnmuteNavigation: {result: resultBool},

	OpSearch: {result: resultBool, callback: true},

	OpGetBlockedRoads: {result: resultValue},
	OpAddRoadBlock:    {result: resultBool},
	OpRemoveRoadBlock: {result: resultBool},

	OpAddContextMenuButtons:    {result: resultId, callback: true},
	OpRemoveContextMenuButtons: {result: resultBool},

	OpGetText:            {result: resultValue},
	OpGetPreferenceValue: {result: resultValue},
	OpSetPreferenceValue: {result: resultBool},
	OpExitApp:            {result: resultBool},

	OpRegisterForUpdates:             {result: resultId, callback: true},
	OpUnregisterFromUpdates:          {result: resultBool},
	OpRegisterForNavigationUpdates:   {result: resultId, callback: true},
	OpRegisterForVoiceRouterMessages: {result: resultId, callback: true},
	OpRegisterForLogcatMessages:      {result: resultId, callback: true},
	OpRegisterForAppInitialized:      {result: resultBool, callback: true},

	OpCopyFile: {result: resultCode},
}

func lookupOperation(operation Operation) (*operationSpec, error) {
	spec, ok := operationSpecs[operation]
	if !ok {
		return nil, fmt.Errorf("%w: unknown operation %q", ErrProtocolViolation, string(operation))
	}
	return spec, nil
}

func (self Operation) requireResult(result resultKind) error {
	spec, err := lookupOperation(self)
	if err != nil {
		return err
	}
	if spec.result != result {
		return fmt.Errorf("%w: operation %s has a different result kind", ErrProtocolViolation, string(self))
	}
	return nil
}

// generic parameters for an operation. keys follow the remote field names
type Params map[string]any

type Request struct {
	Operation Operation
	// json encoded `Params`
	Params    []byte
	Callback  *CallbackEndpoint
}

func newRequest(operation Operation, params any) (*Request, error) {
	request := &Request{
		Operation: operation,
	}
	if params != nil {
		paramsBytes, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("%w: %s params: %s", ErrProtocolViolation, string(operation), err)
		}
		request.Params = paramsBytes
	}
	return request, nil
}

// decodes the request params into `params`. Missing params leave `params` untouched
func (self *Request) DecodeParams(params any) error {
	if len(self.Params) == 0 {
		return nil
	}
	return json.Unmarshal(self.Params, params)
}

type Response struct {
	// json encoded result
	Result []byte
}

func newResponse(result any) (*Response, error) {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Response{
		Result: resultBytes,
	}, nil
}

func (self *Response) decode(operation Operation, reply any) error {
	if reply == nil {
		return nil
	}
	if len(self.Result) == 0 {
		return fmt.Errorf("%w: %s returned no result", ErrProtocolViolation, string(operation))
	}
	if err := json.Unmarshal(self.Result, reply); err != nil {
		return fmt.Errorf("%w: %s result: %s", ErrProtocolViolation, string(operation), err)
	}
	return nil
}
