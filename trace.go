package sdk

import (
	"fmt"
)

func trace(callback func()) (returnErr error) {
	defer func() {
		if r := recover(); r != nil {
			returnErr = recoveredError(r)
		}
	}()
	callback()
	return
}

func traceWithReturnError[R any](callback func() (R, error)) (result R, returnErr error) {
	defer func() {
		if r := recover(); r != nil {
			returnErr = recoveredError(r)
		}
	}()
	result, returnErr = callback()
	return
}

func recoveredError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
