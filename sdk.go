package sdk

import (
	"flag"
	"os"
	"strconv"
	"sync"

	"github.com/golang/glog"
)

// note: the client is embedded by a host application that owns the instance.
// there is no process global connection; every component is reached through a `Client`

const Version = "0.1.0"

func init() {
	initGlog()
}

func initGlog() {
	flag.Set("logtostderr", "true")
	flag.Set("stderrthreshold", "INFO")
	flag.Set("v", "0")
	// the android/ios standard is for diagnostics to go to stdout
	os.Stderr = os.Stdout
}

// a handle that releases a registration
type Sub interface {
	Close()
}

type simpleSub struct {
	closeOnce sync.Once
	close     func()
}

func newSub(close func()) Sub {
	return &simpleSub{
		close: close,
	}
}

func (self *simpleSub) Close() {
	self.closeOnce.Do(self.close)
}

func SetLogVerbosity(v int) {
	switch {
	case v < 0:
		v = 0
	case 4 < v:
		v = 4
	}
	flag.Set("v", strconv.Itoa(v))
	glog.Infof("[sdk]log verbosity = %d", v)
}
