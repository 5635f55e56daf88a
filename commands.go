package sdk

import (
	"github.com/golang/glog"
)

// typed wrappers around `Client.Call`. Failures are reported as false or an
// invalid value and logged; use `Call` when the error is needed

type FavoriteGroup struct {
	Name    string `json:"name"`
	Color   string `json:"color"`
	Visible bool   `json:"visible"`
}

type Favorite struct {
	Latitude    float64 `json:"lat"`
	Longitude   float64 `json:"lon"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Color       string  `json:"color"`
	Visible     bool    `json:"visible"`
}

type MapMarker struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Name      string  `json:"name"`
}

type MapPoint struct {
	Id        string            `json:"id"`
	ShortName string            `json:"short_name"`
	FullName  string            `json:"full_name"`
	TypeName  string            `json:"type_name"`
	Color     int               `json:"color"`
	Latitude  float64           `json:"lat"`
	Longitude float64           `json:"lon"`
	Details   []string          `json:"details,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
}

type MapLayer struct {
	Id     string      `json:"id"`
	Name   string      `json:"name"`
	ZOrder float64     `json:"z_order"`
	Points []*MapPoint `json:"points"`
}

type GpxFile struct {
	FileName     string `json:"file_name"`
	ModifiedTime int64  `json:"modified_time"`
	FileSize     int64  `json:"file_size"`
	Active       bool   `json:"active"`
}

type SelectedGpxFile struct {
	FileName     string `json:"file_name"`
	ModifiedTime int64  `json:"modified_time"`
	FileSize     int64  `json:"file_size"`
	Color        string `json:"color"`
}

type BlockedRoad struct {
	RoadId     int64   `json:"road_id"`
	Latitude   float64 `json:"lat"`
	Longitude  float64 `json:"lon"`
	Direction  float64 `json:"direction"`
	Name       string  `json:"name"`
	AppModeKey string  `json:"app_mode_key"`
}

type ContextMenuButtons struct {
	LeftTextCaption  string   `json:"left_text_caption"`
	RightTextCaption string   `json:"right_text_caption"`
	LeftIconName     string   `json:"left_icon_name"`
	RightIconName    string   `json:"right_icon_name"`
	NeedColorizeIcon bool     `json:"need_colorize_icon"`
	Enabled          bool     `json:"enabled"`
	LayerId          string   `json:"layer_id"`
	PointIds         []string `json:"point_ids"`
}

type SearchParams struct {
	Text        string  `json:"search_query"`
	SearchType  int     `json:"search_type"`
	Latitude    float64 `json:"lat"`
	Longitude   float64 `json:"lon"`
	RadiusLevel int     `json:"radius_level"`
	TotalLimit  int     `json:"total_limit"`
}

type NavigateParams struct {
	StartName      string   `json:"start_name,omitempty"`
	StartLatitude  *float64 `json:"start_lat,omitempty"`
	StartLongitude *float64 `json:"start_lon,omitempty"`
	DestName       string   `json:"dest_name"`
	DestLatitude   float64  `json:"dest_lat"`
	DestLongitude  float64  `json:"dest_lon"`
	Profile        string   `json:"profile"`
	Force          bool     `json:"force"`
}

func (self *Client) RefreshMap() bool {
	return callBool(self.gateway, OpRefreshMap, nil)
}

// favorites

func (self *Client) AddFavoriteGroup(group *FavoriteGroup) bool {
	return callBool(self.gateway, OpAddFavoriteGroup, group)
}

func (self *Client) UpdateFavoriteGroup(previous *FavoriteGroup, group *FavoriteGroup) bool {
	return callBool(self.gateway, OpUpdateFavoriteGroup, Params{
		"previous": previous,
		"group":    group,
	})
}

func (self *Client) RemoveFavoriteGroup(name string) bool {
	return callBool(self.gateway, OpRemoveFavoriteGroup, Params{
		"name": name,
	})
}

func (self *Client) AddFavorite(favorite *Favorite) bool {
	return callBool(self.gateway, OpAddFavorite, favorite)
}

func (self *Client) UpdateFavorite(previous *Favorite, favorite *Favorite) bool {
	return callBool(self.gateway, OpUpdateFavorite, Params{
		"previous": previous,
		"favorite": favorite,
	})
}

func (self *Client) RemoveFavorite(favorite *Favorite) bool {
	return callBool(self.gateway, OpRemoveFavorite, favorite)
}

// map markers

func (self *Client) AddMapMarker(marker *MapMarker) bool {
	return callBool(self.gateway, OpAddMapMarker, marker)
}

func (self *Client) UpdateMapMarker(previous *MapMarker, marker *MapMarker) bool {
	return callBool(self.gateway, OpUpdateMapMarker, Params{
		"previous": previous,
		"marker":   marker,
	})
}

func (self *Client) RemoveMapMarker(marker *MapMarker) bool {
	return callBool(self.gateway, OpRemoveMapMarker, marker)
}

func (self *Client) RemoveAllActiveMapMarkers() bool {
	return callBool(self.gateway, OpRemoveAllActiveMapMarkers, nil)
}

// map layers and points

func (self *Client) AddMapLayer(layer *MapLayer) bool {
	return callBool(self.gateway, OpAddMapLayer, layer)
}

func (self *Client) RemoveMapLayer(layerId string) bool {
	return callBool(self.gateway, OpRemoveMapLayer, Params{
		"id": layerId,
	})
}

func (self *Client) AddMapPoint(layerId string, point *MapPoint) bool {
	return callBool(self.gateway, OpAddMapPoint, Params{
		"layer_id": layerId,
		"point":    point,
	})
}

func (self *Client) RemoveMapPoint(layerId string, pointId string) bool {
	return callBool(self.gateway, OpRemoveMapPoint, Params{
		"layer_id": layerId,
		"point_id": pointId,
	})
}

func (self *Client) SetMapLocation(latitude float64, longitude float64, zoom int, animated bool) bool {
	return callBool(self.gateway, OpSetMapLocation, Params{
		"lat":      latitude,
		"lon":      longitude,
		"zoom":     zoom,
		"animated": animated,
	})
}

// gpx

// imports gpx `data` as `fileName`. An empty `color` keeps the default track color
func (self *Client) ImportGpxFromData(data string, fileName string, color string, show bool) bool {
	return callBool(self.gateway, OpImportGpx, Params{
		"data":          data,
		"dest_path":     fileName,
		"color":         color,
		"show":          show,
		"source_format": "data",
	})
}

func (self *Client) ShowGpx(fileName string) bool {
	return callBool(self.gateway, OpShowGpx, Params{
		"file_name": fileName,
	})
}

func (self *Client) HideGpx(fileName string) bool {
	return callBool(self.gateway, OpHideGpx, Params{
		"file_name": fileName,
	})
}

func (self *Client) RemoveGpx(fileName string) bool {
	return callBool(self.gateway, OpRemoveGpx, Params{
		"file_name": fileName,
	})
}

// fills `files` with the gpx files currently shown.
// on false the contents of `files` are undefined
func (self *Client) GetActiveGpx(files *[]*SelectedGpxFile) bool {
	return callList(self.gateway, OpGetActiveGpx, nil, files)
}

// fills `files` with all imported gpx files.
// on false the contents of `files` are undefined
func (self *Client) GetImportedGpx(files *[]*GpxFile) bool {
	return callList(self.gateway, OpGetImportedGpx, nil, files)
}

// the bitmap arrives as a `GpxBitmapCreated` event
func (self *Client) GetBitmapForGpx(fileName string, density float64, widthPixels int, heightPixels int, color int) bool {
	return callBool(self.gateway, OpGetBitmapForGpx, Params{
		"file_name":     fileName,
		"density":       density,
		"width_pixels":  widthPixels,
		"height_pixels": heightPixels,
		"color":         color,
	})
}

func (self *Client) StartGpxRecording() bool {
	return callBool(self.gateway, OpStartGpxRecording, nil)
}

func (self *Client) StopGpxRecording() bool {
	return callBool(self.gateway, OpStopGpxRecording, nil)
}

// navigation

func (self *Client) Navigate(navigateParams *NavigateParams) bool {
	return callBool(self.gateway, OpNavigate, navigateParams)
}

func (self *Client) NavigateSearch(searchQuery string, latitude float64, longitude float64, profile string, force bool) bool {
	return callBool(self.gateway, OpNavigateSearch, Params{
		"search_query": searchQuery,
		"search_lat":   latitude,
		"search_lon":   longitude,
		"profile":      profile,
		"force":        force,
	})
}

func (self *Client) NavigateGpxFromData(data string, force bool) bool {
	return callBool(self.gateway, OpNavigateGpx, Params{
		"data":  data,
		"force": force,
	})
}

func (self *Client) PauseNavigation() bool {
	return callBool(self.gateway, OpPauseNavigation, nil)
}

func (self *Client) ResumeNavigation() bool {
	return callBool(self.gateway, OpResumeNavigation, nil)
}

func (self *Client) StopNavigation() bool {
	return callBool(self.gateway, OpStopNavigation, nil)
}

func (self *Client) MuteNavigation() bool {
	return callBool(self.gateway, OpMuteNavigation, nil)
}

func (self *Client) UnmuteNavigation() bool {
	return callBool(self.gateway, OpUnmuteNavigation, nil)
}

// the results arrive as a `SearchComplete` event
func (self *Client) Search(searchParams *SearchParams) bool {
	return callBool(self.gateway, OpSearch, searchParams)
}

// road blocks

// fills `roads` with the blocked roads.
// on false the contents of `roads` are undefined
func (self *Client) GetBlockedRoads(roads *[]*BlockedRoad) bool {
	return callList(self.gateway, OpGetBlockedRoads, nil, roads)
}

func (self *Client) AddRoadBlock(road *BlockedRoad) bool {
	return callBool(self.gateway, OpAddRoadBlock, road)
}

func (self *Client) RemoveRoadBlock(roadId int64) bool {
	return callBool(self.gateway, OpRemoveRoadBlock, Params{
		"road_id": roadId,
	})
}

// context menu

// returns the id of the added buttons, or -1. clicks arrive as `ContextButtonClick` events
func (self *Client) AddContextMenuButtons(buttons *ContextMenuButtons) int64 {
	id, err := callId(self.gateway, OpAddContextMenuButtons, buttons)
	if err != nil {
		glog.Infof("[c]add context menu buttons err = %s", err)
		return -1
	}
	return id
}

func (self *Client) RemoveContextMenuButtons(buttonsId int64) bool {
	return callBool(self.gateway, OpRemoveContextMenuButtons, Params{
		"buttons_id": buttonsId,
	})
}

// app

// returns the localized text for `key`, or "" and false
func (self *Client) GetText(key string) (string, bool) {
	text, err := callValue[string](self.gateway, OpGetText, Params{
		"key": key,
	})
	if err != nil {
		return "", false
	}
	return text, true
}

func (self *Client) GetPreferenceValue(key string) (string, bool) {
	value, err := callValue[string](self.gateway, OpGetPreferenceValue, Params{
		"key": key,
	})
	if err != nil {
		return "", false
	}
	return value, true
}

func (self *Client) SetPreferenceValue(key string, value string) bool {
	return callBool(self.gateway, OpSetPreferenceValue, Params{
		"key":   key,
		"value": value,
	})
}

// the service notifies `AppInitialized` once it finished starting
func (self *Client) RegisterForAppInitialized() bool {
	return callBool(self.gateway, OpRegisterForAppInitialized, nil)
}

func (self *Client) ExitApp(disableService bool) bool {
	return callBool(self.gateway, OpExitApp, Params{
		"disable_service": disableService,
	})
}
