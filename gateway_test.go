package sdk

import (
	"context"
	"errors"
	"io"
	"net/rpc"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestGatewayNotConnected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, _ := testing_newClient(ctx)
	defer client.Close()

	err := client.Call(OpRefreshMap, nil, nil)
	assert.Equal(t, true, errors.Is(err, ErrNotConnected))
	assert.Equal(t, false, client.RefreshMap())

	// binding is not bound
	client.Connect()
	err = client.Call(OpRefreshMap, nil, nil)
	assert.Equal(t, true, errors.Is(err, ErrNotConnected))
}

func TestGatewayNoCallAfterDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, _, service := testing_newBoundClient(t, ctx, testing_acceptAll)
	defer client.Close()

	assert.Equal(t, true, client.RefreshMap())
	assert.Equal(t, 1, service.totalCallCount())

	client.Disconnect()
	assert.Equal(t, false, client.RefreshMap())
	var files []*GpxFile
	assert.Equal(t, false, client.GetImportedGpx(&files))
	assert.Equal(t, 1, service.totalCallCount())
}

func TestGatewayUnknownOperation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, _, service := testing_newBoundClient(t, ctx, testing_acceptAll)
	defer client.Close()

	err := client.Call(Operation("launch_rocket"), nil, nil)
	assert.Equal(t, true, errors.Is(err, ErrProtocolViolation))
	assert.Equal(t, 0, service.totalCallCount())
	assert.Equal(t, ConnectionBound, client.GetConnectionState())
}

func TestGatewayRemoteRejected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, _, _ := testing_newBoundClient(t, ctx, func(request *Request) (any, error) {
		return nil, rpc.ServerError("layer not found")
	})
	defer client.Close()

	err := client.Call(OpRemoveMapLayer, Params{"id": "a"}, nil)
	assert.Equal(t, true, errors.Is(err, ErrRemoteRejected))
	// a rejection keeps the connection
	assert.Equal(t, ConnectionBound, client.GetConnectionState())
	assert.Equal(t, false, client.RemoveMapLayer("a"))
}

func TestGatewayFalseResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, _, _ := testing_newBoundClient(t, ctx, func(request *Request) (any, error) {
		return false, nil
	})
	defer client.Close()

	assert.Equal(t, false, client.ShowGpx("track.gpx"))

	var success bool
	err := client.Call(OpShowGpx, Params{"file_name": "track.gpx"}, &success)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, success)
}

func TestGatewayTransportError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, binder, service := testing_newBoundClient(t, ctx, func(request *Request) (any, error) {
		return nil, io.ErrUnexpectedEOF
	})
	defer client.Close()

	listener := &testing_connectionListener{}
	client.AddConnectionListener(listener)

	err := client.Call(OpRefreshMap, nil, nil)
	assert.Equal(t, true, errors.Is(err, ErrTransport))

	// fast transition without waiting for the binder
	assert.Equal(t, ConnectionUnbound, client.GetConnectionState())
	assert.Equal(t, true, service.isClosed())
	assert.Equal(t, 1, binder.getUnbindCount())
	_, disconnectedCount := listener.counts()
	assert.Equal(t, 1, disconnectedCount)

	// the binder reporting the same failure later is ignored
	binder.lastConnection().ServiceDisconnected()
	_, disconnectedCount = listener.counts()
	assert.Equal(t, 1, disconnectedCount)
}

func TestGatewayParams(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, _, service := testing_newBoundClient(t, ctx, testing_acceptAll)
	defer client.Close()

	assert.Equal(t, true, client.SetMapLocation(50.45, 30.52, 14, true))

	requests := service.operationRequests(OpSetMapLocation)
	assert.Equal(t, 1, len(requests))
	var params struct {
		Latitude  float64 `json:"lat"`
		Longitude float64 `json:"lon"`
		Zoom      int     `json:"zoom"`
		Animated  bool    `json:"animated"`
	}
	assert.Equal(t, nil, requests[0].DecodeParams(&params))
	assert.Equal(t, 50.45, params.Latitude)
	assert.Equal(t, 30.52, params.Longitude)
	assert.Equal(t, 14, params.Zoom)
	assert.Equal(t, true, params.Animated)
	assert.Equal(t, true, requests[0].Callback == nil)
}

func TestGatewayCallbackEndpoint(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, binder, service := testing_newBoundClient(t, ctx, testing_acceptAll)
	defer client.Close()

	assert.Equal(t, true, client.Search(&SearchParams{Text: "cafe"}))
	assert.Equal(t, true, client.GetBitmapForGpx("track.gpx", 1, 100, 100, 0))
	assert.Equal(t, true, client.RefreshMap())

	searchRequests := service.operationRequests(OpSearch)
	bitmapRequests := service.operationRequests(OpGetBitmapForGpx)
	assert.Equal(t, false, searchRequests[0].Callback == nil)
	// one endpoint shared by all calls of the connection
	assert.Equal(t, searchRequests[0].Callback.EndpointId, bitmapRequests[0].Callback.EndpointId)
	assert.Equal(t, 1, service.endpointCount())

	// a new connection gets a new endpoint
	client.Disconnect()
	client.Connect()
	service2 := newTestingService(testing_acceptAll)
	binder.lastConnection().ServiceConnected(service2)

	assert.Equal(t, true, client.Search(&SearchParams{Text: "cafe"}))
	assert.Equal(t, 1, service2.endpointCount())
	searchRequests2 := service2.operationRequests(OpSearch)
	assert.NotEqual(t, searchRequests[0].Callback.EndpointId, searchRequests2[0].Callback.EndpointId)
}

func TestGatewayList(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, _, service := testing_newBoundClient(t, ctx, func(request *Request) (any, error) {
		return &ListResult[*GpxFile]{
			Success: true,
			Values: []*GpxFile{
				{FileName: "a.gpx", FileSize: 10},
				{FileName: "b.gpx", FileSize: 20, Active: true},
			},
		}, nil
	})
	defer client.Close()

	var files []*GpxFile
	assert.Equal(t, true, client.GetImportedGpx(&files))
	assert.Equal(t, 2, len(files))
	assert.Equal(t, "a.gpx", files[0].FileName)
	assert.Equal(t, true, files[1].Active)

	// a failed fill leaves the output alone
	service.setHandle(func(request *Request) (any, error) {
		return &ListResult[*GpxFile]{Success: false}, nil
	})
	previous := files
	assert.Equal(t, false, client.GetImportedGpx(&files))
	assert.Equal(t, previous, files)

	// an empty list is a success with no values
	service.setHandle(func(request *Request) (any, error) {
		return &ListResult[*BlockedRoad]{Success: true}, nil
	})
	var roads []*BlockedRoad
	assert.Equal(t, true, client.GetBlockedRoads(&roads))
	assert.Equal(t, 0, len(roads))
	assert.Equal(t, false, roads == nil)
}

func TestGatewayMalformedResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, _, _ := testing_newBoundClient(t, ctx, func(request *Request) (any, error) {
		return "not a bool", nil
	})
	defer client.Close()

	var success bool
	err := client.Call(OpRefreshMap, nil, &success)
	assert.Equal(t, true, errors.Is(err, ErrProtocolViolation))
	assert.Equal(t, ConnectionBound, client.GetConnectionState())
}

func TestGatewayValues(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, _, _ := testing_newBoundClient(t, ctx, func(request *Request) (any, error) {
		switch request.Operation {
		case OpGetText:
			return "Hello", nil
		case OpAddContextMenuButtons:
			return 42, nil
		default:
			return testing_acceptAll(request)
		}
	})
	defer client.Close()

	text, ok := client.GetText("hello")
	assert.Equal(t, true, ok)
	assert.Equal(t, "Hello", text)

	id := client.AddContextMenuButtons(&ContextMenuButtons{LeftTextCaption: "Go"})
	assert.Equal(t, int64(42), id)

	stats := client.GetStats()
	assert.Equal(t, 1, stats.GetCallCount(OpGetText))
	assert.Equal(t, 0, stats.GetCallErrorCount(OpGetText))
}

func TestGatewayConcurrentCalls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := make(chan struct{})
	client, _, _ := testing_newBoundClient(t, ctx, func(request *Request) (any, error) {
		if request.Operation == OpStopNavigation {
			select {
			case <-release:
			}
		}
		return true, nil
	})
	defer client.Close()

	blocked := make(chan bool)
	go func() {
		blocked <- client.StopNavigation()
	}()

	// a slow call does not hold back others
	done := make(chan bool)
	go func() {
		done <- client.RefreshMap()
	}()
	select {
	case success := <-done:
		assert.Equal(t, true, success)
	case <-time.After(5 * time.Second):
		t.Fatal("call blocked by another call")
	}

	close(release)
	assert.Equal(t, true, <-blocked)
}
