package h1proto

import (
	"bytes"
	"testing"
)

func mustSend(t *testing.T, c *Connection, evt Event) []byte {
	t.Helper()
	out, err := c.Send(evt)
	if err != nil {
		t.Fatalf("Send(%#v) failed: %v", evt, err)
	}
	return out
}

func drainEvents(t *testing.T, c *Connection, max int) []Event {
	t.Helper()
	var evts []Event
	for i := 0; i < max; i++ {
		evt, err := c.NextEvent()
		if err != nil {
			t.Fatalf("NextEvent failed: %v", err)
		}
		if _, ok := evt.(NeedData); ok {
			break
		}
		if _, ok := evt.(Paused); ok {
			break
		}
		evts = append(evts, evt)
		if _, ok := evt.(EndOfMessage); ok {
			break
		}
	}
	return evts
}

// scenario 1: minimal GET round trip.
func TestScenarioMinimalGETRoundTrip(t *testing.T) {
	client := NewConnection(Client, Options{})
	server := NewConnection(Server, Options{})

	req := Request{MethodNo: MGet, Method: []byte("GET"), Target: []byte("/"), Version: Version11,
		Headers: Headers{hdr("host", "example.com")}}
	wire := mustSend(t, client, req)
	wire = append(wire, mustSend(t, client, EndOfMessage{})...)

	wantWire := "GET / HTTP/1.1\r\nHost: example.com\r\n\r\n"
	if string(wire) != wantWire {
		t.Fatalf("got wire %q want %q", wire, wantWire)
	}

	server.ReceiveData(wire)
	evts := drainEvents(t, server, 10)
	if len(evts) != 2 {
		t.Fatalf("expected Request+EndOfMessage, got %#v", evts)
	}
	if _, ok := evts[0].(Request); !ok {
		t.Fatalf("expected Request first, got %#v", evts[0])
	}
	if _, ok := evts[1].(EndOfMessage); !ok {
		t.Fatalf("expected EndOfMessage second, got %#v", evts[1])
	}

	resp := Response{StatusCode: 200, Version: Version11, Headers: Headers{hdr("content-length", "5")}}
	respWire := mustSend(t, server, resp)
	respWire = append(respWire, mustSend(t, server, Data{Data: []byte("hello")})...)
	respWire = append(respWire, mustSend(t, server, EndOfMessage{})...)

	client.ReceiveData(respWire)
	evts = drainEvents(t, client, 10)
	if len(evts) != 3 {
		t.Fatalf("expected Response+Data+EndOfMessage, got %#v", evts)
	}
	d, ok := evts[1].(Data)
	if !ok || !bytes.Equal(d.Data, []byte("hello")) {
		t.Fatalf("expected Data(hello), got %#v", evts[1])
	}

	if client.OurState() != Done || server.OurState() != Done {
		t.Fatalf("expected both DONE, got client=%s server=%s", client.OurState(), server.OurState())
	}
	if err := client.StartNextCycle(); err != nil {
		t.Fatalf("StartNextCycle failed: %v", err)
	}
	if err := server.StartNextCycle(); err != nil {
		t.Fatalf("StartNextCycle failed: %v", err)
	}
}

// scenario 2: chunked POST with trailer.
func TestScenarioChunkedPOSTWithTrailer(t *testing.T) {
	client := NewConnection(Client, Options{})
	server := NewConnection(Server, Options{})

	req := Request{MethodNo: MPost, Method: []byte("POST"), Target: []byte("/"), Version: Version11,
		Headers: Headers{hdr("host", "example.com"), hdr("transfer-encoding", "chunked")}}
	wire := mustSend(t, client, req)
	wire = append(wire, mustSend(t, client, Data{Data: []byte("ab")})...)
	wire = append(wire, mustSend(t, client, Data{Data: []byte("cde")})...)
	wire = append(wire, mustSend(t, client, EndOfMessage{Headers: Headers{hdr("x-trailer", "t")}})...)

	server.ReceiveData(wire)
	evts := drainEvents(t, server, 10)
	if len(evts) != 4 {
		t.Fatalf("expected Request+Data+Data+EndOfMessage, got %#v", evts)
	}
	d1 := evts[1].(Data)
	d2 := evts[2].(Data)
	if !d1.ChunkStart || !d1.ChunkEnd || !bytes.Equal(d1.Data, []byte("ab")) {
		t.Fatalf("unexpected first chunk %#v", d1)
	}
	if !d2.ChunkStart || !d2.ChunkEnd || !bytes.Equal(d2.Data, []byte("cde")) {
		t.Fatalf("unexpected second chunk %#v", d2)
	}
	eom := evts[3].(EndOfMessage)
	if vals := eom.Headers.GetAll("x-trailer"); len(vals) != 1 || string(vals[0]) != "t" {
		t.Fatalf("expected trailer x-trailer=t, got %#v", eom.Headers)
	}
}

// scenario 3: HEAD response framing.
func TestScenarioHeadResponseFraming(t *testing.T) {
	client := NewConnection(Client, Options{})
	server := NewConnection(Server, Options{})

	req := Request{MethodNo: MHead, Method: []byte("HEAD"), Target: []byte("/"), Version: Version11,
		Headers: Headers{hdr("host", "example.com")}}
	wire := mustSend(t, client, req)
	wire = append(wire, mustSend(t, client, EndOfMessage{})...)
	server.ReceiveData(wire)
	drainEvents(t, server, 10)

	resp := Response{StatusCode: 200, Version: Version11, Headers: Headers{hdr("content-length", "10")}}
	respWire := mustSend(t, server, resp)
	respWire = append(respWire, mustSend(t, server, EndOfMessage{})...)

	client.ReceiveData(respWire)
	evts := drainEvents(t, client, 10)
	if len(evts) != 2 {
		t.Fatalf("expected Response+EndOfMessage only (no Data), got %#v", evts)
	}
	if _, ok := evts[1].(EndOfMessage); !ok {
		t.Fatalf("expected EndOfMessage, got %#v", evts[1])
	}
}

// scenario 4: Content-Length mismatch at EOF.
func TestScenarioContentLengthMismatch(t *testing.T) {
	client := NewConnection(Client, Options{})
	wire := "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nabc"
	client.ReceiveData([]byte(wire))
	drainEvents(t, client, 10) // Response event
	client.ReceiveData(nil)    // half-close: EOF with body short

	_, err := client.NextEvent()
	if err == nil {
		t.Fatalf("expected remote protocol error on truncated content-length body")
	}
	if _, ok := err.(*RemoteProtocolError); !ok {
		t.Fatalf("expected *RemoteProtocolError, got %T: %v", err, err)
	}
	if client.TheirState() != Error {
		t.Fatalf("expected their_state ERROR, got %s", client.TheirState())
	}
}

// scenario 5: 100-continue.
func TestScenario100Continue(t *testing.T) {
	client := NewConnection(Client, Options{})
	server := NewConnection(Server, Options{})

	req := Request{MethodNo: MPost, Method: []byte("POST"), Target: []byte("/"), Version: Version11,
		Headers: Headers{hdr("host", "example.com"), hdr("expect", "100-continue"), hdr("content-length", "2")}}
	wire := mustSend(t, client, req)
	if !client.ClientIsWaitingFor100Continue() {
		t.Fatalf("expected client waiting for 100-continue after sending the request")
	}

	server.ReceiveData(wire)
	evts := drainEvents(t, server, 10)
	if len(evts) != 1 {
		t.Fatalf("expected only Request (no body bytes sent yet), got %#v", evts)
	}
	if !server.TheyAreWaitingFor100Continue() {
		t.Fatalf("expected server to see the client waiting for 100-continue")
	}

	infoWire := mustSend(t, server, InformationalResponse{StatusCode: 100})
	client.ReceiveData(infoWire)
	drainEvents(t, client, 10)
	if client.ClientIsWaitingFor100Continue() {
		t.Fatalf("expected latch cleared once 100 Continue was observed")
	}

	bodyWire := mustSend(t, client, Data{Data: []byte("ok")})
	bodyWire = append(bodyWire, mustSend(t, client, EndOfMessage{})...)
	server.ReceiveData(bodyWire)
	evts = drainEvents(t, server, 10)
	if len(evts) != 2 {
		t.Fatalf("expected Data+EndOfMessage, got %#v", evts)
	}
}

// a client that stops waiting on its own: it sends Expect: 100-continue,
// then decides to send its request body before any response has arrived.
func TestScenarioClientSendsBodyBeforeHundredContinueArrives(t *testing.T) {
	client := NewConnection(Client, Options{})

	req := Request{MethodNo: MPost, Method: []byte("POST"), Target: []byte("/"), Version: Version11,
		Headers: Headers{hdr("host", "example.com"), hdr("expect", "100-continue"), hdr("content-length", "2")}}
	mustSend(t, client, req)
	if !client.ClientIsWaitingFor100Continue() {
		t.Fatalf("expected client waiting for 100-continue after sending the request")
	}

	mustSend(t, client, Data{Data: []byte("ok")})
	if client.ClientIsWaitingFor100Continue() {
		t.Fatalf("expected latch cleared once the client sent its first request body byte, before any response arrived")
	}
}

func TestSendRejectsNonHTTP11Version(t *testing.T) {
	client := NewConnection(Client, Options{})
	req := Request{MethodNo: MGet, Method: []byte("GET"), Target: []byte("/"), Version: Version10,
		Headers: Headers{hdr("host", "example.com")}}
	if _, err := client.Send(req); err == nil {
		t.Fatalf("expected error sending a Request with Version10")
	} else if _, ok := err.(*LocalProtocolError); !ok {
		t.Fatalf("expected *LocalProtocolError, got %T: %v", err, err)
	}

	server := NewConnection(Server, Options{})
	server.ReceiveData([]byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	drainEvents(t, server, 10)
	resp := Response{StatusCode: 200, Version: Version10, Headers: Headers{hdr("content-length", "0")}}
	if _, err := server.Send(resp); err == nil {
		t.Fatalf("expected error sending a Response with Version10")
	} else if _, ok := err.(*LocalProtocolError); !ok {
		t.Fatalf("expected *LocalProtocolError, got %T: %v", err, err)
	}
}

// scenario 6: Upgrade to another protocol.
func TestScenarioProtocolSwitch(t *testing.T) {
	client := NewConnection(Client, Options{})
	server := NewConnection(Server, Options{})

	req := Request{MethodNo: MGet, Method: []byte("GET"), Target: []byte("/"), Version: Version11,
		Headers: Headers{hdr("host", "example.com"), hdr("upgrade", "websocket"), hdr("connection", "upgrade")}}
	wire := mustSend(t, client, req)
	wire = append(wire, mustSend(t, client, EndOfMessage{})...)

	server.ReceiveData(wire)
	drainEvents(t, server, 10)
	if server.OurState() != SendResponse {
		t.Fatalf("server should still be able to answer, got %s", server.OurState())
	}

	respWire := mustSend(t, server, Response{StatusCode: 101, Version: Version11,
		Headers: Headers{hdr("upgrade", "websocket"), hdr("connection", "upgrade")}})

	client.ReceiveData(respWire)
	evts := drainEvents(t, client, 10)
	if len(evts) != 1 {
		t.Fatalf("expected only the 101 response event, got %#v", evts)
	}
	if client.OurState() != SwitchedProtocol || server.OurState() != SwitchedProtocol {
		t.Fatalf("expected both SWITCHED_PROTOCOL, got client=%s server=%s", client.OurState(), server.OurState())
	}

	client.ReceiveData([]byte("raw websocket frame bytes"))
	evt, err := client.NextEvent()
	if err != nil {
		t.Fatalf("unexpected err %v", err)
	}
	if _, ok := evt.(Paused); !ok {
		t.Fatalf("expected Paused once switched, got %#v", evt)
	}
	if !bytes.Equal(client.TrailingData(), []byte("raw websocket frame bytes")) {
		t.Fatalf("expected trailing bytes handed back verbatim, got %q", client.TrailingData())
	}

	// repeated calls keep returning Paused.
	evt, err = client.NextEvent()
	if err != nil {
		t.Fatalf("unexpected err %v", err)
	}
	if _, ok := evt.(Paused); !ok {
		t.Fatalf("expected Paused to persist, got %#v", evt)
	}
}
