// Package session implements the thermit session state machine, the
// chunked transfer engine it drives in RUNNING, and the step driver
// that is this package's single public entry point.
package session

import (
	"fmt"
	"log"

	"github.com/djtremolo/thermit/internal/adapt"
	"github.com/djtremolo/thermit/internal/framer"
	"github.com/djtremolo/thermit/internal/packet"
	"github.com/djtremolo/thermit/internal/progress"
)

// Role distinguishes the two peers of a thermit link.
type Role int

const (
	RoleMaster Role = iota
	RoleSlave
)

func (r Role) String() string {
	if r == RoleMaster {
		return "master"
	}
	return "slave"
}

// State names a position in the session state machine (spec.md §4.3).
type State int

const (
	StateWaitCbConfig State = iota
	StateSyncFirst
	StateSyncSecond
	StateRunning
	StateOutOfSync
)

func (s State) String() string {
	switch s {
	case StateWaitCbConfig:
		return "WAIT_CB_CONFIG"
	case StateSyncFirst:
		return "SYNC_FIRST"
	case StateSyncSecond:
		return "SYNC_SECOND"
	case StateRunning:
		return "RUNNING"
	case StateOutOfSync:
		return "OUT_OF_SYNC"
	default:
		return "UNKNOWN"
	}
}

// FileIdMax is the modulus outgoing file ids wrap at.
const FileIdMax = 250

// FileIdInactive marks "no transfer" in a frame's file-id field.
const FileIdInactive = 0xFF

// Diagnostics mirrors thermitDiagnostics_t from the original source
// (thermit.c), carried forward per SPEC_FULL.md §4.
type Diagnostics struct {
	ReceivedFiles  uint32
	ReceivedBytes  uint32
	SentFiles      uint32
	SentBytes      uint32
	CRCErrors      uint32
	Retransmits    uint32
	Reconnections  uint32
}

// Reporter is the optional diagnostics/state sink a Session publishes
// to. redisqueue.Reporter satisfies this; a nil Reporter is a no-op.
type Reporter interface {
	ReportState(state string)
	ReportCounter(name string, value uint32)
}

type direction struct {
	running bool
	fileSize uint16
	fileName string
	fileId   byte
	chunkNo  byte
	handle   adapt.FileHandle
	tracker  progress.Tracker

	// tx-only: latched from the peer's most recent recFeedback.
	firstDirtyLatched bool
	firstDirtyChunk   byte
}

// Session is a single thermit protocol instance bound to one device and
// one peer. It is single-owner: Step must not be called re-entrantly or
// concurrently.
type Session struct {
	linkName string
	role     Role
	ifc      adapt.Interface
	reporter Reporter

	state  State
	params packet.Parameters

	// sync negotiation scratch state
	proposalReceived bool
	ackReceived      bool
	peerProposal     packet.Parameters
	compromise       packet.Parameters

	rx direction
	tx direction

	nextOutgoingFileId byte
	sendWTF            bool

	fr      *framer.Framer
	readBuf [256]byte

	// keepalive bookkeeping (spec.md §3 keepAliveMs, §5 idle timeout):
	// lastFrameAtMs is the Clock reading as of the most recently
	// transmitted frame, haveSentFrame guards the "nothing sent yet"
	// case so the very first idle frame isn't held back.
	lastFrameAtMs uint64
	haveSentFrame bool

	diag Diagnostics
}

// New validates ifc and constructs a Session bound to linkName, ready to
// begin SYNC_FIRST negotiation with localParams as this peer's capability.
// reporter may be nil.
func New(linkName string, role Role, ifc adapt.Interface, localParams packet.Parameters, reporter Reporter) (*Session, error) {
	if err := ifc.Validate(); err != nil {
		return nil, fmt.Errorf("session: invalid adaptation interface: %w", err)
	}

	s := &Session{
		linkName: linkName,
		role:     role,
		ifc:      ifc,
		reporter: reporter,
		state:    StateSyncFirst,
		params:   localParams,
		fr:       framer.New(func(b []byte) uint16 { return ifc.CRC16(b) }),
	}
	s.rx.fileId = FileIdInactive
	s.tx.fileId = FileIdInactive

	s.report()
	return s, nil
}

// State returns the session's current state.
func (s *Session) State() State {
	return s.state
}

// Diagnostics returns a snapshot of the session's counters.
func (s *Session) Diagnostics() Diagnostics {
	d := s.diag
	d.CRCErrors = s.fr.CRCErrors()
	return d
}

// Close tears down the session: closes any open transfer files. Closing
// the device itself is the caller's responsibility, since the caller
// also opened it (thermit_delete's device-close half).
func (s *Session) Close() {
	if s.rx.handle != nil {
		_ = s.rx.handle.Close()
	}
	if s.tx.handle != nil {
		_ = s.tx.handle.Close()
	}
}

// Step executes exactly one RX poll followed by one TX emission. It does
// not block beyond whatever the adaptation interface's Device.Read does,
// and it never calls itself re-entrantly.
func (s *Session) Step() State {
	prevState := s.state

	s.pollRX()
	s.emitTX()

	if s.state != prevState {
		s.logf("state %s -> %s", prevState, s.state)
		s.report()
	}

	return s.state
}

func (s *Session) pollRX() {
	if s.state == StateWaitCbConfig {
		return
	}

	n, err := s.ifc.Device.Read(s.readBuf[:])
	if err != nil {
		// Device read failure: treated as "no bytes available" for this
		// step, no state change (spec.md §4.7).
		return
	}

	for i := 0; i < n; i++ {
		s.fr.Follow(s.readBuf[i])
		if s.fr.IsReady() {
			s.dispatchFrame()
		}
	}
}

func (s *Session) dispatchFrame() {
	body := s.fr.Body()
	crcVal := s.fr.ReceivedCRC()

	frame, err := packet.Parse(body, crcVal, s.ifc.CRC16)
	if err != nil {
		s.logf("dropping frame: %v", err)
		return
	}

	s.handleRX(frame)
}

func (s *Session) emitTX() {
	frame, ok := s.buildTX()
	if !ok {
		return
	}

	body, err := packet.Build(frame, s.ifc.CRC16)
	if err != nil {
		s.logf("failed to build outgoing frame: %v", err)
		return
	}

	if err := s.ifc.Device.Write(framer.Wrap(body)); err != nil {
		s.logf("device write failed: %v", err)
		return
	}

	if s.ifc.Clock != nil {
		s.lastFrameAtMs = s.ifc.Clock.NowMs()
	}
	s.haveSentFrame = true
}

// keepAliveElapsed reports whether at least KeepAliveMs have passed since
// the last frame this session transmitted (of any kind — any traffic
// resets the idle timer, spec.md §5/§7's timeout model). With no Clock
// wired, keepalive timing is not tracked and the idle path is always
// considered due, matching adapt.Interface's documented no-op default.
func (s *Session) keepAliveElapsed() bool {
	if s.ifc.Clock == nil || !s.haveSentFrame {
		return true
	}
	elapsed := s.ifc.Clock.NowMs() - s.lastFrameAtMs
	return elapsed >= uint64(s.params.KeepAliveMs)
}

func (s *Session) logf(format string, args ...interface{}) {
	if s.ifc.Logger != nil {
		s.ifc.Logger.Printf("[thermit:%s] "+format, append([]interface{}{s.linkName}, args...)...)
		return
	}
	log.Printf("[thermit:%s] "+format, append([]interface{}{s.linkName}, args...)...)
}

func (s *Session) report() {
	if s.reporter == nil {
		return
	}
	s.reporter.ReportState(s.state.String())
	d := s.Diagnostics()
	s.reporter.ReportCounter("receivedFiles", d.ReceivedFiles)
	s.reporter.ReportCounter("sentFiles", d.SentFiles)
	s.reporter.ReportCounter("crcErrors", d.CRCErrors)
	s.reporter.ReportCounter("retransmits", d.Retransmits)
}

// feedbackByte computes recFeedback per spec.md §4.4's getFeedback.
func (s *Session) feedbackByte() byte {
	if s.rx.running {
		if found, idx := s.rx.tracker.GetFirstDirty(); found {
			return byte(idx)
		}
	}
	return packet.FeedbackFileReady
}

// recFileId reports the id of the most recent incoming file. It keeps
// reporting that id after the file completes, so the sender can match the
// final FeedbackFileReady to the file it is sending; it is FileIdInactive
// until the first NEW_FILE_START has been accepted.
func (s *Session) recFileId() byte {
	return s.rx.fileId
}

func (s *Session) txFileId() byte {
	if s.tx.running {
		return s.tx.fileId
	}
	return FileIdInactive
}
