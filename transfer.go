package sdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/golang/glog"
	"go.uber.org/atomic"
)

// the largest part the remote accepts in one copy call
const PartSizeLimit = 256 * 1024

// consecutive io error outcomes on one part before the transfer fails
const MaxRetryCount = 10

// copy file outcomes. a non negative outcome is the index of the last part received
const (
	CopyFileParamsError              = -1001
	CopyFilePartSizeLimitError       = -1002
	CopyFileWriteLockError           = -1003
	CopyFileIoError                  = -1004
	CopyFileUnsupportedFileTypeError = -1005
)

type TransferState int32

const (
	TransferIdle TransferState = iota
	TransferSending
	TransferCompleted
	TransferFailed
)

func (self TransferState) String() string {
	switch self {
	case TransferIdle:
		return "idle"
	case TransferSending:
		return "sending"
	case TransferCompleted:
		return "completed"
	case TransferFailed:
		return "failed"
	default:
		return fmt.Sprintf("transfer_state(%d)", int32(self))
	}
}

// TransferManager allows one active copy session per destination path.
type TransferManager struct {
	connectionManager *ConnectionManager
	gateway           *UnaryCallGateway
	stats             *ClientStats

	stateLock sync.Mutex
	// destination path -> session
	sessions map[string]*CopyFileSession
}

func newTransferManager(
	connectionManager *ConnectionManager,
	gateway *UnaryCallGateway,
	stats *ClientStats,
) *TransferManager {
	transferManager := &TransferManager{
		connectionManager: connectionManager,
		gateway:           gateway,
		stats:             stats,
		sessions:          map[string]*CopyFileSession{},
	}
	connectionManager.addInvalidator(transferManager)
	return transferManager
}

// StartCopyFile creates an idle session for `fileName` in `destinationDir`.
// Fails with `ErrTransferInProgress` while another session for the same path is active.
func (self *TransferManager) StartCopyFile(destinationDir string, fileName string) (*CopyFileSession, error) {
	if fileName == "" {
		return nil, fmt.Errorf("%w: empty file name", ErrProtocolViolation)
	}
	destinationPath := path.Join(destinationDir, fileName)

	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if _, ok := self.sessions[destinationPath]; ok {
		return nil, fmt.Errorf("%w: %s", ErrTransferInProgress, destinationPath)
	}
	session := &CopyFileSession{
		transferManager: self,
		destinationDir:  destinationDir,
		fileName:        fileName,
		destinationPath: destinationPath,
		state:           atomic.NewInt32(int32(TransferIdle)),
		sentByteCount:   atomic.NewInt64(0),
		partCount:       atomic.NewInt64(0),
		lastOutcome:     atomic.NewInt32(0),
	}
	self.sessions[destinationPath] = session
	return session, nil
}

func (self *TransferManager) release(session *CopyFileSession) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.sessions[session.destinationPath] == session {
		delete(self.sessions, session.destinationPath)
	}
}

func (self *TransferManager) activeSessions() []*CopyFileSession {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	sessions := make([]*CopyFileSession, 0, len(self.sessions))
	for _, session := range self.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

// `connectionInvalidator`
// sending sessions of the dropped connection fail. there is no resume across connections
func (self *TransferManager) invalidate(generation uint64) {
	for _, session := range self.activeSessions() {
		session.abort(generation)
	}
}

// CopyFileSession moves one file into remote storage as an ordered sequence of parts.
// Parts are sent one at a time and each is confirmed before the next.
type CopyFileSession struct {
	transferManager *TransferManager
	destinationDir  string
	fileName        string
	destinationPath string

	// serializes parts
	sendLock   sync.Mutex
	retryCount int

	state         *atomic.Int32
	sentByteCount *atomic.Int64
	partCount     *atomic.Int64
	lastOutcome   *atomic.Int32

	errLock    sync.Mutex
	startTime  time.Time
	generation uint64
	err        error
}

// SendPart sends the next part. `isDone` marks the last part.
// An oversize part fails before any remote call and leaves the session unchanged.
func (self *CopyFileSession) SendPart(part []byte, isDone bool) error {
	if PartSizeLimit < len(part) {
		return fmt.Errorf("%w: part size %d exceeds %d", ErrProtocolViolation, len(part), PartSizeLimit)
	}

	self.sendLock.Lock()
	defer self.sendLock.Unlock()

	switch TransferState(self.state.Load()) {
	case TransferCompleted:
		return fmt.Errorf("%w: %s is already completed", ErrProtocolViolation, self.destinationPath)
	case TransferFailed:
		return self.GetError()
	}

	_, generation, err := self.transferManager.connectionManager.boundService()
	if err != nil {
		err = fmt.Errorf("copy %s: %w", self.destinationPath, err)
		if TransferState(self.state.Load()) == TransferSending {
			self.fail(err)
		}
		return err
	}

	if TransferState(self.state.Load()) == TransferIdle {
		func() {
			self.errLock.Lock()
			defer self.errLock.Unlock()
			self.startTime = time.Now()
			self.generation = generation
		}()
		if !self.state.CAS(int32(TransferIdle), int32(TransferSending)) {
			return self.GetError()
		}
		glog.Infof("[ts]start %s", self.destinationPath)
	} else if self.getGeneration() != generation {
		err := fmt.Errorf("copy %s: %w", self.destinationPath, ErrNotConnected)
		self.fail(err)
		return err
	}

	params := Params{
		"destination_dir": self.destinationDir,
		"file_name":       self.fileName,
		"part":            part,
		"start_time":      self.GetStartTime().UnixMilli(),
		"done":            isDone,
	}
	for {
		if TransferState(self.state.Load()) != TransferSending {
			return self.GetError()
		}

		outcome, err := callCode(self.transferManager.gateway, OpCopyFile, params)
		if err != nil {
			err = fmt.Errorf("copy %s: %w", self.destinationPath, err)
			self.fail(err)
			return err
		}
		if TransferState(self.state.Load()) != TransferSending {
			// aborted during the call
			return self.GetError()
		}
		self.lastOutcome.Store(int32(outcome))

		switch {
		case 0 <= outcome:
			self.retryCount = 0
			self.sentByteCount.Add(int64(len(part)))
			self.partCount.Inc()
			self.transferManager.stats.UpdateTransfer(int64(len(part)))
			if isDone {
				if self.state.CAS(int32(TransferSending), int32(TransferCompleted)) {
					glog.Infof("[ts]completed %s bytes=%d parts=%d", self.destinationPath, self.sentByteCount.Load(), self.partCount.Load())
					self.transferManager.release(self)
				}
			}
			return nil
		case outcome == CopyFileIoError:
			self.retryCount += 1
			self.transferManager.stats.UpdateTransferRetry()
			glog.Infof("[ts]%s part %d io error (%d/%d)", self.destinationPath, self.partCount.Load(), self.retryCount, MaxRetryCount)
			if MaxRetryCount <= self.retryCount {
				err := fmt.Errorf("copy %s: %w: part %d failed %d times", self.destinationPath, ErrTransferIo, self.partCount.Load(), self.retryCount)
				self.fail(err)
				return err
			}
			// resend the same part
		default:
			err := fmt.Errorf("copy %s: %w: outcome %d", self.destinationPath, ErrRemoteRejected, outcome)
			self.fail(err)
			return err
		}
	}
}

// fails a sending session of `generation` or earlier
func (self *CopyFileSession) abort(generation uint64) {
	if TransferState(self.state.Load()) != TransferSending {
		return
	}
	if generation < self.getGeneration() {
		return
	}
	self.fail(fmt.Errorf("copy %s: %w", self.destinationPath, ErrTransferAborted))
}

func (self *CopyFileSession) getGeneration() uint64 {
	self.errLock.Lock()
	defer self.errLock.Unlock()
	return self.generation
}

func (self *CopyFileSession) fail(err error) {
	failed := func() bool {
		self.errLock.Lock()
		defer self.errLock.Unlock()

		if !self.state.CAS(int32(TransferSending), int32(TransferFailed)) {
			return false
		}
		self.err = err
		return true
	}()
	if failed {
		glog.Infof("[ts]failed %s err = %s", self.destinationPath, err)
		self.transferManager.release(self)
	}
}

// Cancel releases an idle session. A sending session fails.
func (self *CopyFileSession) Cancel() {
	canceled := func() bool {
		self.errLock.Lock()
		defer self.errLock.Unlock()

		if !self.state.CAS(int32(TransferIdle), int32(TransferFailed)) {
			return false
		}
		self.err = fmt.Errorf("copy %s: %w", self.destinationPath, ErrTransferAborted)
		return true
	}()
	if canceled {
		self.transferManager.release(self)
		return
	}
	self.fail(fmt.Errorf("copy %s: %w", self.destinationPath, ErrTransferAborted))
}

func (self *CopyFileSession) GetState() TransferState {
	return TransferState(self.state.Load())
}

func (self *CopyFileSession) GetError() error {
	self.errLock.Lock()
	defer self.errLock.Unlock()
	return self.err
}

func (self *CopyFileSession) GetSentByteCount() int64 {
	return self.sentByteCount.Load()
}

func (self *CopyFileSession) GetPartCount() int64 {
	return self.partCount.Load()
}

// the outcome of the last copy call
func (self *CopyFileSession) GetLastOutcome() int {
	return int(self.lastOutcome.Load())
}

func (self *CopyFileSession) GetStartTime() time.Time {
	self.errLock.Lock()
	defer self.errLock.Unlock()
	return self.startTime
}

func (self *CopyFileSession) GetDestinationPath() string {
	return self.destinationPath
}

// CopyFile sends the contents of `r` as a new session.
// `isDone` is set exactly on the last part. An empty reader sends one empty done part.
func CopyFile(
	ctx context.Context,
	transferManager *TransferManager,
	r io.Reader,
	destinationDir string,
	fileName string,
) (*CopyFileSession, error) {
	session, err := transferManager.StartCopyFile(destinationDir, fileName)
	if err != nil {
		return nil, err
	}

	segmenter := newPartSegmenter(r, PartSizeLimit)
	for {
		select {
		case <-ctx.Done():
			session.Cancel()
			return session, ctx.Err()
		default:
		}

		part, isDone, err := segmenter.next()
		if err != nil {
			session.Cancel()
			return session, err
		}
		if err := session.SendPart(part, isDone); err != nil {
			if session.GetState() == TransferIdle {
				session.Cancel()
			}
			return session, err
		}
		if isDone {
			return session, nil
		}
	}
}

// reads parts of at most `partSize` with one part of lookahead,
// so the last part is known when it is returned
type partSegmenter struct {
	r io.Reader

	part       []byte
	lookahead  []byte
	lookaheadN int
	started    bool
	eof        bool
}

func newPartSegmenter(r io.Reader, partSize int) *partSegmenter {
	return &partSegmenter{
		r:         r,
		part:      make([]byte, partSize),
		lookahead: make([]byte, partSize),
	}
}

func (self *partSegmenter) fill(buffer []byte) (int, error) {
	n, err := io.ReadFull(self.r, buffer)
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		self.eof = true
		return n, nil
	}
	return n, err
}

// returns the next part and whether it is the last.
// the returned part is valid until the following call
func (self *partSegmenter) next() ([]byte, bool, error) {
	if !self.started {
		self.started = true
		n, err := self.fill(self.lookahead)
		if err != nil {
			return nil, false, err
		}
		self.lookaheadN = n
	}

	self.part, self.lookahead = self.lookahead, self.part
	partN := self.lookaheadN
	self.lookaheadN = 0
	if self.eof {
		return self.part[:partN], true, nil
	}

	n, err := self.fill(self.lookahead)
	if err != nil {
		return nil, false, err
	}
	self.lookaheadN = n
	// the reader ended exactly on a part boundary
	if n == 0 {
		return self.part[:partN], true, nil
	}
	return self.part[:partN], false, nil
}
