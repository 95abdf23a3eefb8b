// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package h1proto

import "strconv"

// Payload is an opaque body chunk with a known length —
// typically backing memory the caller intends to hand off to something like
// sendfile instead of copying through this package. The engine never inspects its bytes, only its length, so
// Connection.SendWithDataPassthrough can bracket it with whatever framing
// bytes are needed (a chunk-size line, say) without ever touching the
// payload itself.
type Payload interface {
	Len() int
}

// SendChunk is one piece of a serialized send: either framing bytes this
// package generated, or a caller-supplied Payload being passed through
// unchanged.
type SendChunk struct {
	Bytes   []byte
	Payload Payload
}

// BytesChunk wraps framing bytes this package produced.
func BytesChunk(b []byte) SendChunk { return SendChunk{Bytes: b} }

// PayloadChunk wraps a caller-supplied Payload for zero-copy passthrough.
func PayloadChunk(p Payload) SendChunk { return SendChunk{Payload: p} }

// bodyWriter mirrors bodyReader on the send side: it enforces that the
// cumulative length of every Data event sent matches the framing chosen for
// the message, and produces the wire bytes chunked
// framing requires around each Data and the final EndOfMessage.
type bodyWriter struct {
	framing     Framing
	clRemaining int64 // FramingContentLength only; must reach exactly 0
	clTotal     int64
}

func newBodyWriter(framing Framing, length int64) *bodyWriter {
	return &bodyWriter{framing: framing, clRemaining: length, clTotal: length}
}

// writeData encodes one Data event's payload for framing that copies bytes
// onto the wire (as opposed to passthrough).
func (bw *bodyWriter) writeData(payload []byte) ([]byte, error) {
	if err := bw.accountData(len(payload)); err != nil {
		return nil, err
	}
	if bw.framing == FramingChunked {
		if len(payload) == 0 {
			// spec design note 9: an empty Data under chunked framing emits
			// no chunk at all (a zero-length chunk would be indistinguishable
			// from the terminating chunk).
			return nil, nil
		}
		return chunkFrame(payload), nil
	}
	return payload, nil
}

// writeDataChunks is the passthrough variant of writeData: the payload
// itself is never copied, only bracketed with whatever framing bytes the
// chosen Framing requires.
func (bw *bodyWriter) writeDataChunks(p Payload) ([]SendChunk, error) {
	if err := bw.accountData(p.Len()); err != nil {
		return nil, err
	}
	if bw.framing == FramingChunked {
		if p.Len() == 0 {
			return nil, nil
		}
		return []SendChunk{
			BytesChunk(chunkSizeLine(p.Len())),
			PayloadChunk(p),
			BytesChunk(crlf),
		}, nil
	}
	return []SendChunk{PayloadChunk(p)}, nil
}

func (bw *bodyWriter) accountData(n int) error {
	if bw.framing == FramingNoBody {
		return newLocalProtocolError("Data sent on a message with no body")
	}
	if bw.framing == FramingContentLength {
		if int64(n) > bw.clRemaining {
			return newLocalProtocolError("Data overshoots Content-Length: %d declared, already sent %d, got %d more",
				bw.clTotal, bw.clTotal-bw.clRemaining, n)
		}
		bw.clRemaining -= int64(n)
	}
	return nil
}

// writeEndOfMessage encodes the bytes, if any, that close out the body for
// the chosen framing: the terminating "0\r\n" chunk plus optional trailers
// for chunked, nothing for the others. Trailers are only legal under
// chunked framing; non-chunked framings never carry trailers.
func (bw *bodyWriter) writeEndOfMessage(trailers Headers) ([]byte, error) {
	if len(trailers) > 0 && bw.framing != FramingChunked {
		return nil, newLocalProtocolError("trailers are only valid with chunked transfer encoding")
	}
	switch bw.framing {
	case FramingContentLength:
		if bw.clRemaining != 0 {
			return nil, newLocalProtocolError("Content-Length body under-sent: %d bytes missing", bw.clRemaining)
		}
		return nil, nil
	case FramingChunked:
		var out []byte
		out = append(out, '0')
		out = append(out, crlf...)
		for _, h := range trailers {
			name := h.Raw
			if len(name) == 0 {
				name = []byte(titlecase(h.Name))
			}
			out = append(out, name...)
			out = append(out, ':', ' ')
			out = append(out, h.Value...)
			out = append(out, crlf...)
		}
		out = append(out, crlf...)
		return out, nil
	default:
		return nil, nil
	}
}

const crlf = "\r\n"

func chunkSizeLine(n int) []byte {
	out := make([]byte, 0, 18)
	out = append(out, strconv.FormatInt(int64(n), 16)...)
	out = append(out, crlf...)
	return out
}

func chunkFrame(payload []byte) []byte {
	out := chunkSizeLine(len(payload))
	out = append(out, payload...)
	out = append(out, crlf...)
	return out
}
