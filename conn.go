// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package h1proto

// Connection is the sans-I/O HTTP/1.1 engine facade: it
// turns bytes fed in through ReceiveData into events handed back by
// NextEvent, and turns events handed to Send/SendWithDataPassthrough into
// bytes the caller is responsible for actually writing to a socket. It
// never touches a network itself.
type Connection struct {
	role  Role
	opts  Options
	recv  *recvBuffer
	state *connState

	inPhase         incomingPhase
	inBody          *bodyReader
	pendingStartLine []byte

	// the method of the most recent request on this connection, needed by
	// both roles to pick response framing (HEAD/CONNECT get special-cased
	// rows in the framing table via Method.ForcesResponseNoBody).
	lastReqMethodNo Method

	outBody *bodyWriter

	theirVersion HTTPVersion

	stats Statistics
}

// Options configures resource bounds a Connection enforces while parsing;
// the zero value uses DefaultMaxLineLength and DefaultMaxHeadersSize.
type Options struct {
	MaxLineLength  int
	MaxHeadersSize int
}

// Statistics are simple byte/message counters an embedder can poll for
// logging or metrics; the engine itself never logs.
type Statistics struct {
	BytesReceived    uint64
	BytesSent        uint64
	RequestsSent     uint64
	RequestsReceived uint64
}

type incomingPhase uint8

const (
	inStartLine incomingPhase = iota
	inHeaders
	inBody
	inDone
)

// NewConnection builds a Connection for the given role.
func NewConnection(role Role, opts Options) *Connection {
	return &Connection{
		role:         role,
		opts:         opts,
		recv:         newRecvBuffer(opts.MaxLineLength, opts.MaxHeadersSize),
		state:        newConnState(),
		theirVersion: Version11,
	}
}

func (c *Connection) peerRole() Role {
	if c.role == Client {
		return Server
	}
	return Client
}

// OurRole returns this Connection's own role.
func (c *Connection) OurRole() Role { return c.role }

// TheirRole returns the peer's role.
func (c *Connection) TheirRole() Role { return c.peerRole() }

// OurState returns this side's current state.
func (c *Connection) OurState() State { return c.state.stateFor(c.role) }

// TheirState returns the peer's current state, as tracked from the bytes
// seen so far.
func (c *Connection) TheirState() State { return c.state.stateFor(c.peerRole()) }

// TheirHTTPVersion returns the version the peer last advertised on a
// request-line or status-line.
func (c *Connection) TheirHTTPVersion() HTTPVersion { return c.theirVersion }

// ClientIsWaitingFor100Continue reports whether the client sent a request
// with "Expect: 100-continue" and has not yet seen a response nor sent the
// request body.
func (c *Connection) ClientIsWaitingFor100Continue() bool { return c.state.clientWaiting100 }

// TheyAreWaitingFor100Continue reports whether the peer (from the
// server's perspective: "they" is the client) is believed to be holding
// its request body back pending a 100 Continue.
func (c *Connection) TheyAreWaitingFor100Continue() bool { return c.state.serverWaiting100 }

// Statistics returns a snapshot of this connection's byte/message counters.
func (c *Connection) Statistics() Statistics { return c.stats }

// ReceiveData feeds newly read bytes into the connection. An empty slice
// signals that the peer will send no more data (a half-close) — after
// this, findLine/findHeadersEnd bound checks still apply, but an
// in-progress content_length or chunked body that isn't yet complete is
// reported as ErrTruncatedBody instead of blocking forever on NeedData.
func (c *Connection) ReceiveData(data []byte) {
	if len(data) == 0 {
		c.recv.eof = true
		return
	}
	c.recv.append(data)
	c.stats.BytesReceived += uint64(len(data))
}

// TrailingData returns any bytes already buffered but not yet consumed as
// HTTP once this side (or the peer) has reached SwitchedProtocol — the
// bytes belong to whatever protocol was switched to, not to this engine.
func (c *Connection) TrailingData() []byte {
	if c.OurState() != SwitchedProtocol && c.TheirState() != SwitchedProtocol {
		return nil
	}
	return append([]byte(nil), c.recv.bytes()...)
}

// isPaused reports whether NextEvent should hold off interpreting any
// buffered bytes: once a protocol switch has completed, while a switch
// proposal is pending the server's decision, or while the peer has finished
// its message and further bytes are buffered ahead of StartNextCycle.
func (c *Connection) isPaused() bool {
	if c.OurState() == SwitchedProtocol || c.TheirState() == SwitchedProtocol {
		return true
	}
	if c.role == Server && c.TheirState() == MightSwitchProtocol {
		return true
	}
	if c.TheirState() == Done && c.recv.len() > 0 {
		return true
	}
	return false
}

// NextEvent returns the next event obtainable from the bytes buffered so
// far without blocking. NeedData means the caller should ReceiveData more
// and call again; Paused means incoming bytes are suspended (see
// isPaused) until the caller resolves a pending switch decision or takes
// TrailingData.
func (c *Connection) NextEvent() (Event, error) {
	if c.state.errored {
		return nil, newRemoteProtocolError("connection already in ERROR state")
	}
	if c.isPaused() {
		return Paused{}, nil
	}
	if c.inPhase == inStartLine && c.recv.len() == 0 && c.recv.eof {
		evt := ConnectionClosed{}
		if err := c.state.observe(c.peerRole(), evt); err != nil {
			c.state.errorOut(c.peerRole())
			return nil, wrapRemoteProtocolError(err, "connection closed unexpectedly")
		}
		return evt, nil
	}

	switch c.inPhase {
	case inStartLine:
		return c.nextStartLine()
	case inHeaders:
		return c.nextHeaders()
	case inBody:
		return c.nextBody()
	default: // inDone
		return NeedData{}, nil
	}
}

func (c *Connection) remoteErr(perr ParseError, context string) error {
	c.state.errorOut(c.peerRole())
	return wrapRemoteProtocolError(perr, context)
}

func (c *Connection) nextStartLine() (Event, error) {
	end, perr := c.recv.findLine()
	if perr == ErrMoreBytes {
		return NeedData{}, nil
	}
	if perr != errOk {
		return nil, c.remoteErr(perr, "reading start-line")
	}
	line := append([]byte(nil), c.recv.bytes()[:end]...)
	c.recv.discard(end)
	c.inPhase = inHeaders
	c.pendingStartLine = line
	return c.nextHeaders()
}

func (c *Connection) nextHeaders() (Event, error) {
	end, perr := c.recv.findHeadersEnd()
	if perr == ErrMoreBytes {
		return NeedData{}, nil
	}
	if perr != errOk {
		return nil, c.remoteErr(perr, "reading header block")
	}
	block := c.recv.bytes()[:end]
	headers, perr := parseHeaderBlock(block)
	c.recv.discard(end)
	if perr != errOk {
		return nil, c.remoteErr(perr, "parsing header block")
	}

	if c.role == Server {
		return c.finishRequest(headers)
	}
	return c.finishStatusLine(headers)
}

func (c *Connection) finishRequest(headers Headers) (Event, error) {
	rl, perr := parseRequestLine(c.pendingStartLine)
	if perr != errOk {
		return nil, c.remoteErr(perr, "parsing request-line")
	}
	if rl.Version.AtLeast11() {
		if len(headers.GetSpecial(hdrHost)) != 1 {
			return nil, c.remoteErr(ErrMissingHost, "validating Host header")
		}
	}
	c.theirVersion = rl.Version
	evt := Request{
		MethodNo: rl.MethodNo,
		Method:   append([]byte(nil), rl.Method...),
		Target:   append([]byte(nil), rl.Target...),
		Headers:  headers,
		Version:  rl.Version,
	}
	if err := c.state.observe(Client, evt); err != nil {
		return nil, wrapRemoteProtocolError(err, "request violates connection state")
	}
	c.lastReqMethodNo = evt.MethodNo
	c.stats.RequestsReceived++

	framing, length, perr := requestBodyFraming(headers)
	if perr != errOk {
		return nil, c.remoteErr(perr, "selecting request body framing")
	}
	c.inBody = newBodyReader(framing, length)
	c.inPhase = inBody
	return evt, nil
}

func (c *Connection) finishStatusLine(headers Headers) (Event, error) {
	sl, perr := parseStatusLine(c.pendingStartLine)
	if perr != errOk {
		return nil, c.remoteErr(perr, "parsing status-line")
	}
	c.theirVersion = sl.Version

	if sl.Status >= 100 && sl.Status <= 199 {
		evt := InformationalResponse{
			StatusCode: sl.Status,
			Reason:     append([]byte(nil), sl.Reason...),
			Headers:    headers,
			Version:    sl.Version,
		}
		if err := c.state.observe(Server, evt); err != nil {
			return nil, wrapRemoteProtocolError(err, "informational response violates connection state")
		}
		c.inPhase = inStartLine
		return evt, nil
	}

	evt := Response{
		StatusCode: sl.Status,
		Reason:     append([]byte(nil), sl.Reason...),
		Headers:    headers,
		Version:    sl.Version,
	}
	if err := c.state.observe(Server, evt); err != nil {
		return nil, wrapRemoteProtocolError(err, "response violates connection state")
	}

	if c.OurState() == SwitchedProtocol || c.TheirState() == SwitchedProtocol {
		c.inPhase = inDone
		return evt, nil
	}

	framing, length, perr := responseBodyFraming(sl.Status, c.lastReqMethodNo, headers)
	if perr != errOk {
		return nil, c.remoteErr(perr, "selecting response body framing")
	}
	c.inBody = newBodyReader(framing, length)
	c.inPhase = inBody
	return evt, nil
}

func (c *Connection) nextBody() (Event, error) {
	evt, perr := c.inBody.next(c.recv)
	if perr == ErrMoreBytes {
		return NeedData{}, nil
	}
	if perr != errOk {
		return nil, c.remoteErr(perr, "reading message body")
	}
	if err := c.state.observe(c.peerRole(), evt); err != nil {
		return nil, wrapRemoteProtocolError(err, "message body violates connection state")
	}
	if _, ok := evt.(EndOfMessage); ok {
		c.inBody = nil
		c.inPhase = inStartLine
	}
	return evt, nil
}

// StartNextCycle resets both roles to the start of a new request/response
// exchange. It fails unless both sides have reached Done.
func (c *Connection) StartNextCycle() error {
	if err := c.state.startNextCycle(); err != nil {
		return err
	}
	c.inPhase = inStartLine
	c.inBody = nil
	c.outBody = nil
	return nil
}

// SendFailed tells the Connection that bytes previously returned by Send
// were not actually delivered (e.g. the socket write failed). There is no
// way to partially unsend, so both sides are marked broken.
func (c *Connection) SendFailed() {
	c.state.errorOut(Client)
	c.state.errorOut(Server)
}

// Send serializes evt to wire bytes, enforcing that evt is legal for this
// side's current state and for the framing already in use.
func (c *Connection) Send(evt Event) (out []byte, err error) {
	defer func() {
		if err != nil {
			c.state.errorOut(c.role)
		}
	}()
	switch e := evt.(type) {
	case Request:
		if c.role != Client {
			return nil, newLocalProtocolError("only a client connection sends Request")
		}
		if e.Version != Version11 {
			return nil, newLocalProtocolError("cannot send Request with Version %s: this engine only speaks HTTP/1.1 on the wire", e.Version)
		}
		framing, length, perr := requestBodyFraming(e.Headers)
		if perr != errOk {
			return nil, wrapLocalProtocolError(perr, "selecting outgoing request framing")
		}
		if err := c.state.observe(Client, e); err != nil {
			return nil, newLocalProtocolError("%s", err)
		}
		c.lastReqMethodNo = e.MethodNo
		c.outBody = newBodyWriter(framing, length)
		c.stats.RequestsSent++
		out := writeRequest(e)
		c.stats.BytesSent += uint64(len(out))
		return out, nil

	case InformationalResponse:
		if c.role != Server {
			return nil, newLocalProtocolError("only a server connection sends InformationalResponse")
		}
		if err := c.state.observe(Server, e); err != nil {
			return nil, newLocalProtocolError("%s", err)
		}
		out := writeInformationalResponse(e)
		c.stats.BytesSent += uint64(len(out))
		return out, nil

	case Response:
		if c.role != Server {
			return nil, newLocalProtocolError("only a server connection sends Response")
		}
		if e.Version != Version11 {
			return nil, newLocalProtocolError("cannot send Response with Version %s: this engine only speaks HTTP/1.1 on the wire", e.Version)
		}
		forceNoBody := c.lastReqMethodNo.ForcesResponseNoBody(e.StatusCode) ||
			(e.StatusCode >= 100 && e.StatusCode <= 199) || e.StatusCode == 204 || e.StatusCode == 304
		framing, length, headers, err := selectOutgoingFraming(true, forceNoBody, c.theirVersion, e.Headers)
		if err != nil {
			return nil, err
		}
		e.Headers = headers
		if err := c.state.observe(Server, e); err != nil {
			return nil, newLocalProtocolError("%s", err)
		}
		c.outBody = newBodyWriter(framing, length)
		out := writeResponse(e)
		c.stats.BytesSent += uint64(len(out))
		return out, nil

	case Data:
		if c.outBody == nil {
			return nil, newLocalProtocolError("Data sent with no message in progress")
		}
		out, err := c.outBody.writeData(e.Data)
		if err != nil {
			return nil, err
		}
		if err := c.state.observe(c.role, e); err != nil {
			return nil, newLocalProtocolError("%s", err)
		}
		c.stats.BytesSent += uint64(len(out))
		return out, nil

	case EndOfMessage:
		if c.outBody == nil {
			return nil, newLocalProtocolError("EndOfMessage sent with no message in progress")
		}
		out, err := c.outBody.writeEndOfMessage(e.Headers)
		if err != nil {
			return nil, err
		}
		if err := c.state.observe(c.role, e); err != nil {
			return nil, newLocalProtocolError("%s", err)
		}
		c.outBody = nil
		c.stats.BytesSent += uint64(len(out))
		return out, nil

	case ConnectionClosed:
		if err := c.state.observe(c.role, e); err != nil {
			return nil, newLocalProtocolError("%s", err)
		}
		return nil, nil

	default:
		return nil, newLocalProtocolError("%T cannot be sent", evt)
	}
}

// SendWithDataPassthrough is the zero-copy counterpart of Send for a Data
// event: instead of copying payload onto the wire, it returns a list of
// SendChunks where the payload itself passes through untouched, bracketed
// by whatever framing bytes the current body's Framing requires.
func (c *Connection) SendWithDataPassthrough(payload Payload) (chunks []SendChunk, err error) {
	defer func() {
		if err != nil {
			c.state.errorOut(c.role)
		}
	}()
	if c.outBody == nil {
		return nil, newLocalProtocolError("Data sent with no message in progress")
	}
	chunks, err = c.outBody.writeDataChunks(payload)
	if err != nil {
		return nil, err
	}
	if err := c.state.observe(c.role, Data{}); err != nil {
		return nil, newLocalProtocolError("%s", err)
	}
	for _, ch := range chunks {
		if ch.Bytes != nil {
			c.stats.BytesSent += uint64(len(ch.Bytes))
		} else if ch.Payload != nil {
			c.stats.BytesSent += uint64(ch.Payload.Len())
		}
	}
	return chunks, nil
}
