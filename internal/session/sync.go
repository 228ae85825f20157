package session

import "github.com/djtremolo/thermit/internal/packet"

// handleRX dispatches a parsed frame by (role, state, fCode), spec.md §4.3/§4.4.
func (s *Session) handleRX(f *packet.Frame) {
	switch s.state {
	case StateSyncFirst:
		s.handleRXSyncFirst(f)
	case StateSyncSecond:
		s.handleRXSyncSecond(f)
	case StateRunning:
		s.handleRXRunning(f)
	case StateOutOfSync, StateWaitCbConfig:
		// No RX table entry for these states; frames are dropped until
		// the next TX phase re-initializes to SYNC_FIRST.
	}
}

func (s *Session) handleRXSyncFirst(f *packet.Frame) {
	if s.role == RoleSlave {
		if f.FCode != packet.FCodeSyncProposal {
			s.logf("unexpected fCode 0x%02x in SYNC_FIRST (slave)", f.FCode)
			s.state = StateOutOfSync
			return
		}

		proposal, err := packet.DeserializeParameters(f.Payload)
		if err != nil {
			s.logf("bad SYNC_PROPOSAL payload: %v", err)
			s.state = StateOutOfSync
			return
		}

		s.peerProposal = proposal
		s.compromise = packet.BestCommon(proposal, s.params)
		s.proposalReceived = true
		return
	}

	// master
	if f.FCode != packet.FCodeSyncResponse {
		s.logf("unexpected fCode 0x%02x in SYNC_FIRST (master)", f.FCode)
		s.state = StateOutOfSync
		return
	}

	response, err := packet.DeserializeParameters(f.Payload)
	if err != nil {
		s.logf("bad SYNC_RESPONSE payload: %v", err)
		s.state = StateOutOfSync
		return
	}

	recomputed := packet.BestCommon(response, s.params)
	if recomputed != response {
		s.logf("negotiation failed: slave's compromise was not minimal")
		s.state = StateOutOfSync
		return
	}

	s.params = response
	s.state = StateSyncSecond
}

func (s *Session) handleRXSyncSecond(f *packet.Frame) {
	if f.FCode != packet.FCodeSyncAck {
		s.logf("unexpected fCode 0x%02x in SYNC_SECOND", f.FCode)
		s.state = StateOutOfSync
		return
	}

	if s.role == RoleMaster {
		s.state = StateRunning
		return
	}

	// slave: the master's ACK confirms the compromise, so adopt it; latch,
	// transitions to RUNNING once it has sent its own ACK.
	s.params = s.compromise
	s.ackReceived = true
}

func (s *Session) handleRXRunning(f *packet.Frame) {
	switch f.FCode {
	case packet.FCodeDataTransfer:
		s.handleDataTransfer(f)
	case packet.FCodeNewFileStart:
		s.handleNewFileStart(f)
	case packet.FCodeOutOfSync:
		s.resync()
	default:
		s.logf("unexpected fCode 0x%02x in RUNNING", f.FCode)
		s.state = StateOutOfSync
	}
}

func (s *Session) resync() {
	s.state = StateSyncFirst
	s.resetSyncLatches()
}

func (s *Session) resetSyncLatches() {
	s.proposalReceived = false
	s.ackReceived = false
	s.peerProposal = packet.Parameters{}
	s.compromise = packet.Parameters{}
}

// buildTX builds this step's outbound frame per (role, state), spec.md §4.3 TX table.
func (s *Session) buildTX() (*packet.Frame, bool) {
	switch s.state {
	case StateWaitCbConfig:
		return nil, false

	case StateSyncFirst:
		if s.role == RoleMaster {
			return s.frameParams(packet.FCodeSyncProposal, s.params), true
		}
		if s.proposalReceived {
			frame := s.frameParams(packet.FCodeSyncResponse, s.compromise)
			s.state = StateSyncSecond
			return frame, true
		}
		return nil, false

	case StateSyncSecond:
		if s.role == RoleMaster {
			return s.frameEmpty(packet.FCodeSyncAck), true
		}
		if s.ackReceived {
			frame := s.frameEmpty(packet.FCodeSyncAck)
			s.state = StateRunning
			return frame, true
		}
		return nil, false

	case StateRunning:
		return s.buildRunningFrame()

	case StateOutOfSync:
		if s.role == RoleSlave {
			frame := s.frameEmpty(packet.FCodeOutOfSync)
			s.state = StateSyncFirst
			s.resetSyncLatches()
			return frame, true
		}
		s.state = StateSyncFirst
		s.resetSyncLatches()
		return nil, false
	}

	return nil, false
}

func (s *Session) frameParams(fCode byte, params packet.Parameters) *packet.Frame {
	return &packet.Frame{
		FCode:       fCode,
		RecFileId:   s.recFileId(),
		RecFeedback: s.feedbackByte(),
		SndFileId:   FileIdInactive,
		SndChunkNo:  0,
		Payload:     params.Serialize(),
	}
}

func (s *Session) frameEmpty(fCode byte) *packet.Frame {
	return &packet.Frame{
		FCode:       fCode,
		RecFileId:   s.recFileId(),
		RecFeedback: s.feedbackByte(),
		SndFileId:   FileIdInactive,
		SndChunkNo:  0,
	}
}
