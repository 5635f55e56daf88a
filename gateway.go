package sdk

import (
	"fmt"

	"github.com/golang/glog"
)

type callbackEndpointProvider interface {
	requireEndpoint() (*CallbackEndpoint, error)
}

// UnaryCallGateway forwards one shot calls to the bound service.
// Calls are not serialized with each other. A transport failure during a call
// moves the connection to disconnected.
type UnaryCallGateway struct {
	connectionManager *ConnectionManager
	endpoints         callbackEndpointProvider
	stats             *ClientStats
}

func newUnaryCallGateway(
	connectionManager *ConnectionManager,
	endpoints callbackEndpointProvider,
	stats *ClientStats,
) *UnaryCallGateway {
	return &UnaryCallGateway{
		connectionManager: connectionManager,
		endpoints:         endpoints,
		stats:             stats,
	}
}

// Call invokes `operation` with `params` and decodes the result into `reply` when not nil.
// Errors wrap one of `ErrNotConnected`, `ErrTransport`, `ErrRemoteRejected`, `ErrProtocolViolation`.
func (self *UnaryCallGateway) Call(operation Operation, params any, reply any) error {
	spec, err := lookupOperation(operation)
	if err != nil {
		glog.Infof("[gw]%s", err)
		return err
	}

	service, generation, err := self.connectionManager.boundService()
	if err != nil {
		return fmt.Errorf("%s: %w", string(operation), err)
	}

	request, err := newRequest(operation, params)
	if err != nil {
		return err
	}
	if spec.callback {
		endpoint, err := self.endpoints.requireEndpoint()
		if err != nil {
			glog.Infof("[gw]%s callback endpoint err = %s", string(operation), err)
			return err
		}
		request.Callback = endpoint
	}

	glog.Infof("[rpc]%s", string(operation))
	var response Response
	err = service.Call(request, &response)
	self.stats.UpdateCall(operation, err)
	if err != nil {
		err = classifyCallError(operation, err)
		glog.Infof("[rpc]%s err = %s", string(operation), err)
		if isTransportError(err) {
			self.connectionManager.serviceFailed(generation, err)
		}
		return err
	}
	return response.decode(operation, reply)
}

// a false result is a remote rejection
func callBool(gateway *UnaryCallGateway, operation Operation, params any) bool {
	if err := operation.requireResult(resultBool); err != nil {
		glog.Infof("[gw]%s", err)
		return false
	}
	var success bool
	if err := gateway.Call(operation, params, &success); err != nil {
		return false
	}
	return success
}

func callId(gateway *UnaryCallGateway, operation Operation, params any) (int64, error) {
	if err := operation.requireResult(resultId); err != nil {
		return 0, err
	}
	var id int64
	if err := gateway.Call(operation, params, &id); err != nil {
		return 0, err
	}
	return id, nil
}

func callCode(gateway *UnaryCallGateway, operation Operation, params any) (int, error) {
	if err := operation.requireResult(resultCode); err != nil {
		return 0, err
	}
	var code int
	if err := gateway.Call(operation, params, &code); err != nil {
		return 0, err
	}
	return code, nil
}

func callValue[T any](gateway *UnaryCallGateway, operation Operation, params any) (T, error) {
	var value T
	if err := operation.requireResult(resultValue); err != nil {
		return value, err
	}
	if err := gateway.Call(operation, params, &value); err != nil {
		return value, err
	}
	return value, nil
}

// the wire form of a list filled by the remote
type ListResult[T any] struct {
	Success bool `json:"success"`
	Values  []T  `json:"values"`
}

// fills `out` with the remote list.
// on false the contents of `out` are undefined. `out` is only assigned on success
func callList[T any](gateway *UnaryCallGateway, operation Operation, params any, out *[]T) bool {
	result, err := callValue[*ListResult[T]](gateway, operation, params)
	if err != nil || result == nil || !result.Success {
		return false
	}
	values := result.Values
	if values == nil {
		values = []T{}
	}
	*out = values
	return true
}
