// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package h1proto

// writer.go serializes outgoing events to wire bytes.
// It never decides framing itself — Connection.Send resolves that via
// selectOutgoingFraming first and hands the (possibly header-augmented)
// event here only to turn it into bytes.

// writeRequestLine renders "METHOD SP target SP HTTP/1.1\r\n". The engine
// always emits 1.1 on the wire regardless of what Version an embedder set
// on the Request.
func writeRequestLine(r Request) []byte {
	out := make([]byte, 0, len(r.Method)+len(r.Target)+16)
	out = append(out, r.Method...)
	out = append(out, ' ')
	out = append(out, r.Target...)
	out = append(out, ' ')
	out = append(out, Version11.String()...)
	out = append(out, crlf...)
	return out
}

// writeStatusLine renders "HTTP/1.1 SP status SP reason\r\n".
func writeStatusLine(status int, reason []byte) []byte {
	out := make([]byte, 0, len(reason)+24)
	out = append(out, Version11.String()...)
	out = append(out, ' ')
	out = append(out, byte('0'+(status/100)%10), byte('0'+(status/10)%10), byte('0'+status%10))
	out = append(out, ' ')
	out = append(out, reason...)
	out = append(out, crlf...)
	return out
}

// appendHeaderBlock appends each header as "Name: value\r\n" followed by
// the blank line that terminates a header block. A header's original
// casing (Raw) is kept when the caller supplied one; headers the engine
// injected itself (e.g. an auto Transfer-Encoding) carry a conventional
// Title-Case spelling instead.
func appendHeaderBlock(out []byte, h Headers) []byte {
	for _, hdr := range h {
		name := hdr.Raw
		if len(name) == 0 {
			name = []byte(titlecase(hdr.Name))
		}
		out = append(out, name...)
		out = append(out, ':', ' ')
		out = append(out, hdr.Value...)
		out = append(out, crlf...)
	}
	out = append(out, crlf...)
	return out
}

// writeRequest serializes a complete request start-line and header block.
func writeRequest(r Request) []byte {
	return appendHeaderBlock(writeRequestLine(r), r.Headers)
}

// writeInformationalResponse serializes a 1xx interim response.
func writeInformationalResponse(r InformationalResponse) []byte {
	return appendHeaderBlock(writeStatusLine(r.StatusCode, r.Reason), r.Headers)
}

// writeResponse serializes a final response start-line and header block.
func writeResponse(r Response) []byte {
	return appendHeaderBlock(writeStatusLine(r.StatusCode, r.Reason), r.Headers)
}

// injectedHeader builds a header this package adds on the embedder's
// behalf (auto Transfer-Encoding/Connection), which always gets the
// conventional Title-Case spelling rather than a Raw casing.
func injectedHeader(name string, value string) Header {
	return Header{Name: name, Value: []byte(value)}
}
