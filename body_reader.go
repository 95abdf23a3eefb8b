// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package h1proto

// bodyReader streams Data/EndOfMessage events out of a recvBuffer according
// to a previously selected Framing. It holds exactly the
// cross-call state body framing needs: a byte counter for
// content_length, and a small phase machine for chunked. The request-line,
// status-line and header-block parsers above it are one-shot because
// recvBuffer only hands them a complete line/block; a body can span an
// arbitrary number of receive_data calls, so this layer is the one place
// that genuinely carries state across them.
type bodyReader struct {
	framing Framing

	clRemaining int64 // FramingContentLength only

	phase          chunkPhase
	chunkRemaining int64 // bytes left in the chunk currently being read
	atChunkStart   bool  // next Data for this chunk must set ChunkStart
}

type chunkPhase uint8

const (
	chunkPhaseSize chunkPhase = iota
	chunkPhaseData
	chunkPhaseDataCRLF
	chunkPhaseTrailer
)

// newBodyReader builds a bodyReader for one message body. length is only
// meaningful when framing is FramingContentLength.
func newBodyReader(framing Framing, length int64) *bodyReader {
	br := &bodyReader{framing: framing}
	if framing == FramingContentLength {
		br.clRemaining = length
	}
	if framing == FramingChunked {
		br.phase = chunkPhaseSize
		br.atChunkStart = true
	}
	return br
}

// next returns the next Data or EndOfMessage event obtainable from buf
// without blocking. ErrMoreBytes means buf does not yet hold enough to make
// progress; the caller should ReceiveData more and retry. Once next returns
// an EndOfMessage it must not be called again for this bodyReader.
func (br *bodyReader) next(buf *recvBuffer) (Event, ParseError) {
	switch br.framing {
	case FramingNoBody:
		return EndOfMessage{}, errOk
	case FramingContentLength:
		return br.nextContentLength(buf)
	case FramingChunked:
		evt, perr := br.nextChunked(buf)
		if perr == ErrMoreBytes && buf.eof {
			return nil, ErrTruncatedBody
		}
		return evt, perr
	case FramingReadUntilClose:
		return br.nextReadUntilClose(buf)
	default:
		return nil, ErrBadChar
	}
}

func (br *bodyReader) nextContentLength(buf *recvBuffer) (Event, ParseError) {
	if br.clRemaining == 0 {
		return EndOfMessage{}, errOk
	}
	avail := int64(buf.len())
	if avail == 0 {
		if buf.eof {
			return nil, ErrTruncatedBody
		}
		return nil, ErrMoreBytes
	}
	n := avail
	if n > br.clRemaining {
		n = br.clRemaining
	}
	data := append([]byte(nil), buf.bytes()[:n]...)
	buf.discard(int(n))
	br.clRemaining -= n
	return Data{Data: data}, errOk
}

func (br *bodyReader) nextReadUntilClose(buf *recvBuffer) (Event, ParseError) {
	if buf.len() > 0 {
		n := buf.len()
		data := append([]byte(nil), buf.bytes()[:n]...)
		buf.discard(n)
		return Data{Data: data}, errOk
	}
	if buf.eof {
		return EndOfMessage{}, errOk
	}
	return nil, ErrMoreBytes
}

// nextChunked advances the chunk phase machine as far as it can go without
// more bytes, emitting at most one Data or EndOfMessage event per call (a
// bare chunk-size line or chunk-trailing CRLF produces no event of its own,
// so the loop below falls through to the next phase instead of returning).
func (br *bodyReader) nextChunked(buf *recvBuffer) (Event, ParseError) {
	for {
		switch br.phase {
		case chunkPhaseSize:
			end, perr := buf.findLine()
			if perr != errOk {
				if perr == ErrLineTooLong {
					return nil, ErrBadChar
				}
				return nil, perr
			}
			line := buf.bytes()[:end]
			size, perr := parseChunkSizeLine(line)
			if perr != errOk {
				return nil, perr
			}
			if size > 1<<63-1 {
				return nil, ErrNumTooBig
			}
			buf.discard(end)
			if size == 0 {
				br.phase = chunkPhaseTrailer
				continue
			}
			br.chunkRemaining = int64(size)
			br.phase = chunkPhaseData
			br.atChunkStart = true
			continue

		case chunkPhaseData:
			if br.chunkRemaining == 0 {
				br.phase = chunkPhaseDataCRLF
				continue
			}
			avail := int64(buf.len())
			if avail == 0 {
				if buf.eof {
					return nil, ErrTruncatedBody
				}
				return nil, ErrMoreBytes
			}
			n := avail
			if n > br.chunkRemaining {
				n = br.chunkRemaining
			}
			data := append([]byte(nil), buf.bytes()[:n]...)
			buf.discard(int(n))
			br.chunkRemaining -= n
			start := br.atChunkStart
			br.atChunkStart = false
			return Data{Data: data, ChunkStart: start, ChunkEnd: br.chunkRemaining == 0}, errOk

		case chunkPhaseDataCRLF:
			end, perr := buf.findLine()
			if perr != errOk {
				if perr == ErrLineTooLong {
					return nil, ErrBadChar
				}
				return nil, perr
			}
			if len(stripLineTerm(buf.bytes()[:end])) != 0 {
				return nil, ErrBadChar
			}
			buf.discard(end)
			br.phase = chunkPhaseSize
			continue

		case chunkPhaseTrailer:
			end, perr := buf.findHeadersEnd()
			if perr != errOk {
				if perr == ErrHeadersTooLong {
					return nil, perr
				}
				return nil, perr
			}
			trailers, perr := parseHeaderBlock(buf.bytes()[:end])
			if perr != errOk {
				return nil, perr
			}
			buf.discard(end)
			return EndOfMessage{Headers: trailers}, errOk

		default:
			return nil, ErrBadChar
		}
	}
}
