package session

import "github.com/djtremolo/thermit/internal/packet"

// handleDataTransfer applies an incoming DATA_TRANSFER frame to both
// directions independently (spec.md §4.4 "RX side when receiving
// DATA_TRANSFER"): the frame may carry feedback about what we are
// sending and/or a chunk of what we are receiving, at the same time.
func (s *Session) handleDataTransfer(f *packet.Frame) {
	if s.rx.running && f.SndFileId == s.rx.fileId && len(f.Payload) > 0 {
		offset := uint16(int(f.SndChunkNo) * int(s.params.ChunkSize))
		if err := s.rx.handle.WriteAt(offset, f.Payload); err != nil {
			s.logf("failed to write chunk %d: %v", f.SndChunkNo, err)
		} else {
			s.rx.tracker.SetChunkStatus(int(f.SndChunkNo), true)
			s.diag.ReceivedBytes += uint32(len(f.Payload))

			if s.rx.tracker.Complete() {
				_ = s.rx.handle.Close()
				s.rx.handle = nil
				s.rx.running = false
				s.diag.ReceivedFiles++
			}
		}
	}

	if s.tx.running && f.RecFileId == s.tx.fileId {
		if f.RecFeedback == packet.FeedbackFileReady {
			_ = s.tx.handle.Close()
			s.tx.handle = nil
			s.tx.running = false
			s.diag.SentFiles++
		} else {
			s.tx.firstDirtyChunk = f.RecFeedback
			s.tx.firstDirtyLatched = true
		}
	}
}

// handleNewFileStart applies an incoming NEW_FILE_START frame
// (spec.md §4.4 "RX side when receiving NEW_FILE_START").
func (s *Session) handleNewFileStart(f *packet.Frame) {
	if s.rx.running {
		s.sendWTF = true
		return
	}

	info, err := packet.DeserializeFileInfo(f.Payload)
	if err != nil {
		s.logf("bad NEW_FILE_START payload: %v", err)
		s.sendWTF = true
		return
	}

	if info.Size > s.params.MaxFileSize {
		s.logf("NEW_FILE_START for %q: %d bytes exceeds maxFileSize %d", info.Name, info.Size, s.params.MaxFileSize)
		s.sendWTF = true
		return
	}

	handle, err := s.ifc.Files.OpenWrite(info.Name, info.Size)
	if err != nil {
		s.logf("failed to open %q for write: %v", info.Name, err)
		s.sendWTF = true
		return
	}

	s.rx.running = true
	s.rx.fileSize = info.Size
	s.rx.fileName = info.Name
	s.rx.fileId = f.SndFileId
	s.rx.handle = handle
	s.rx.tracker.Init(info.Size, s.params.ChunkSize)

	if s.rx.tracker.Complete() {
		// Zero-length file: nothing to chunk, already done.
		_ = s.rx.handle.Close()
		s.rx.handle = nil
		s.rx.running = false
		s.diag.ReceivedFiles++
	}
}

// buildRunningFrame implements the TX decision priority of spec.md
// §4.4: a deferred fault, an in-flight chunk, a newly discovered
// outbound file, or an idle heartbeat — in that order. Only the final,
// idle-heartbeat branch is subject to the keepAliveMs timeout of §3/§5:
// everything else is real traffic and is sent immediately. ok is false
// when there is nothing to send and the keepalive interval has not yet
// elapsed, in which case the step emits no frame at all.
func (s *Session) buildRunningFrame() (*packet.Frame, bool) {
	base := func() *packet.Frame {
		return &packet.Frame{
			RecFileId:   s.recFileId(),
			RecFeedback: s.feedbackByte(),
			SndFileId:   s.txFileId(),
		}
	}

	if s.sendWTF {
		s.sendWTF = false
		frame := base()
		frame.FCode = packet.FCodeWriteTerminatedForcefully
		return frame, true
	}

	if s.tx.running {
		return s.buildChunkFrame(base()), true
	}

	if s.probeOutboundFile() {
		frame := base()
		frame.FCode = packet.FCodeNewFileStart
		frame.SndFileId = s.tx.fileId
		info := packetFileInfo(s.tx.fileName, s.tx.fileSize)
		payload, err := info.Serialize()
		if err != nil {
			s.logf("failed to serialize file-info for %q: %v", s.tx.fileName, err)
			s.abortOutbound()
			frame.FCode = packet.FCodeDataTransfer
			frame.SndFileId = s.txFileId()
			return frame, true
		}
		frame.Payload = payload
		return frame, true
	}

	if !s.keepAliveElapsed() {
		return nil, false
	}

	frame := base()
	frame.FCode = packet.FCodeDataTransfer
	return frame, true
}

func packetFileInfo(name string, size uint16) packet.FileInfo {
	return packet.FileInfo{Name: name, Size: size}
}

func (s *Session) abortOutbound() {
	if s.tx.handle != nil {
		_ = s.tx.handle.Close()
	}
	s.tx = direction{fileId: FileIdInactive}
}

// probeOutboundFile polls the adaptation interface for a new file to
// send. On success it opens the file and initializes tx progress,
// leaving the actual NEW_FILE_START frame construction to the caller.
func (s *Session) probeOutboundFile() bool {
	if s.ifc.Outbound == nil {
		return false
	}

	name, size, ok := s.ifc.Outbound.Next()
	if !ok {
		return false
	}

	if size > s.params.MaxFileSize {
		s.logf("outbound %q: %d bytes exceeds maxFileSize %d", name, size, s.params.MaxFileSize)
		return false
	}

	handle, _, err := s.ifc.Files.OpenRead(name)
	if err != nil {
		s.logf("failed to open %q for read: %v", name, err)
		return false
	}

	s.tx.running = true
	s.tx.fileSize = size
	s.tx.fileName = name
	s.tx.fileId = s.nextOutgoingFileId
	s.nextOutgoingFileId = (s.nextOutgoingFileId + 1) % FileIdMax
	s.tx.handle = handle
	s.tx.chunkNo = 0
	s.tx.firstDirtyLatched = false
	s.tx.tracker.Init(size, s.params.ChunkSize)

	return true
}

// buildChunkFrame fills in a DATA_TRANSFER frame carrying the chunk at
// tx.chunkNo and advances the cursor per spec.md §4.4's chunking math
// and cursor-advance rule.
func (s *Session) buildChunkFrame(frame *packet.Frame) *packet.Frame {
	frame.FCode = packet.FCodeDataTransfer
	frame.SndChunkNo = s.tx.chunkNo

	chunkNo := int(s.tx.chunkNo)
	chunkSize := int(s.params.ChunkSize)
	n := s.tx.tracker.NumberOfChunksNeeded()

	length := chunkSize
	if chunkNo == n-1 {
		if rem := int(s.tx.fileSize) % chunkSize; rem != 0 {
			length = rem
		}
	}

	offset := uint16(chunkNo * chunkSize)
	buf := make([]byte, length)
	if _, err := s.tx.handle.ReadAt(offset, buf); err != nil {
		s.logf("failed to read chunk %d of %q: %v", chunkNo, s.tx.fileName, err)
		buf = buf[:0]
	} else {
		s.diag.SentBytes += uint32(length)
	}
	frame.Payload = buf

	s.advanceChunkCursor(chunkNo, n)
	return frame
}

// advanceChunkCursor implements spec.md §4.4's "Chunk cursor advance".
func (s *Session) advanceChunkCursor(chunkNo, n int) {
	const chunkCountMax = 250

	next := (chunkNo + 1) % chunkCountMax
	if next < n {
		s.tx.chunkNo = byte(next)
		return
	}

	// First pass finished; retransmit from the lowest known-dirty chunk
	// if the peer has told us about one, otherwise start the file over
	// until feedback arrives.
	if s.tx.firstDirtyLatched && int(s.tx.firstDirtyChunk) < n {
		s.tx.chunkNo = s.tx.firstDirtyChunk
		s.diag.Retransmits++
		return
	}
	s.tx.chunkNo = 0
}
