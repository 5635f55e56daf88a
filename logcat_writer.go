package sdk

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang/glog"
	"go.uber.org/atomic"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogcatWriterSettings struct {
	Dir        string
	FileName   string
	MaxSizeMb  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func defaultLogcatWriterSettings() *LogcatWriterSettings {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = os.TempDir()
	}
	return &LogcatWriterSettings{
		Dir:        defaultLogDir(home),
		FileName:   "logcat.log",
		MaxSizeMb:  5,
		MaxBackups: 3,
		MaxAgeDays: 7,
		Compress:   false,
	}
}

// LogcatWriter appends the service log messages to a rotating file.
type LogcatWriter struct {
	stateLock sync.Mutex
	logger    *lumberjack.Logger

	lineCount *atomic.Int64
}

func NewLogcatWriterWithDefaults() *LogcatWriter {
	return NewLogcatWriter(defaultLogcatWriterSettings())
}

func NewLogcatWriter(settings *LogcatWriterSettings) *LogcatWriter {
	return &LogcatWriter{
		logger: &lumberjack.Logger{
			Filename:   filepath.Join(settings.Dir, settings.FileName),
			MaxSize:    settings.MaxSizeMb,
			MaxBackups: settings.MaxBackups,
			MaxAge:     settings.MaxAgeDays,
			Compress:   settings.Compress,
		},
		lineCount: atomic.NewInt64(0),
	}
}

// `LogcatMessageListener`
func (self *LogcatWriter) LogcatMessageReceived(message *LogcatMessage) {
	if message == nil {
		return
	}

	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	for _, line := range message.Logs {
		if _, err := fmt.Fprintf(self.logger, "%s %s\n", message.FilterLevel, line); err != nil {
			glog.Infof("[lw]write err = %s", err)
			return
		}
		self.lineCount.Inc()
	}
}

func (self *LogcatWriter) GetLineCount() int64 {
	return self.lineCount.Load()
}

func (self *LogcatWriter) GetFilename() string {
	return self.logger.Filename
}

func (self *LogcatWriter) Rotate() error {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.logger.Rotate()
}

func (self *LogcatWriter) Close() error {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.logger.Close()
}
