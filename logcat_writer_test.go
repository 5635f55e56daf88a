package sdk

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestLogcatWriter(t *testing.T) {
	settings := defaultLogcatWriterSettings()
	settings.Dir = t.TempDir()
	logcatWriter := NewLogcatWriter(settings)
	defer logcatWriter.Close()

	assert.Equal(t, filepath.Join(settings.Dir, "logcat.log"), logcatWriter.GetFilename())

	logcatWriter.LogcatMessageReceived(&LogcatMessage{
		FilterLevel: LogcatFilterWarn,
		Logs:        []string{"low memory", "gc"},
	})
	logcatWriter.LogcatMessageReceived(&LogcatMessage{
		FilterLevel: LogcatFilterError,
		Logs:        []string{"crash"},
	})
	logcatWriter.LogcatMessageReceived(nil)
	assert.Equal(t, int64(3), logcatWriter.GetLineCount())

	b, err := os.ReadFile(logcatWriter.GetFilename())
	assert.Equal(t, nil, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	assert.Equal(t, []string{"W low memory", "W gc", "E crash"}, lines)
}

func TestLogcatWriterRotate(t *testing.T) {
	settings := defaultLogcatWriterSettings()
	settings.Dir = t.TempDir()
	logcatWriter := NewLogcatWriter(settings)
	defer logcatWriter.Close()

	logcatWriter.LogcatMessageReceived(&LogcatMessage{
		FilterLevel: LogcatFilterInfo,
		Logs:        []string{"before"},
	})
	assert.Equal(t, nil, logcatWriter.Rotate())
	logcatWriter.LogcatMessageReceived(&LogcatMessage{
		FilterLevel: LogcatFilterInfo,
		Logs:        []string{"after"},
	})

	entries, err := os.ReadDir(settings.Dir)
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(entries))

	b, err := os.ReadFile(logcatWriter.GetFilename())
	assert.Equal(t, nil, err)
	assert.Equal(t, "I after\n", string(b))
}

func TestLogcatWriterAsListener(t *testing.T) {
	var _ LogcatMessageListener = (*LogcatWriter)(nil)
	var _ NavigationInfoListener = (*DirectionTracker)(nil)
	var _ VoiceRouterNotifyListener = (*DirectionTracker)(nil)
}
