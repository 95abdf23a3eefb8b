package h1proto

import "testing"

func TestStateMachineDeterminism(t *testing.T) {
	// from the same (state, event) pair, the successor must always be the
	// same regardless of how many times it's asked.
	for cur := Idle; cur <= Error; cur++ {
		for kind := evtRequest; kind <= evtConnectionClosed; kind++ {
			next1, ok1 := nextState(Client, cur, kind)
			next2, ok2 := nextState(Client, cur, kind)
			if ok1 != ok2 || next1 != next2 {
				t.Fatalf("nondeterministic client transition from %s on %d", cur, kind)
			}
			next1, ok1 = nextState(Server, cur, kind)
			next2, ok2 = nextState(Server, cur, kind)
			if ok1 != ok2 || next1 != next2 {
				t.Fatalf("nondeterministic server transition from %s on %d", cur, kind)
			}
		}
	}
}

func TestKeepAliveLatch(t *testing.T) {
	cs := newConnState()
	req := Request{MethodNo: MGet, Method: []byte("GET"), Target: []byte("/"), Version: Version11,
		Headers: Headers{hdr("host", "x"), hdr("connection", "close")}}
	if err := cs.observe(Client, req); err != nil {
		t.Fatalf("unexpected err %v", err)
	}
	if cs.keepAlive {
		t.Fatalf("expected keep-alive cleared by Connection: close")
	}
	if err := cs.observe(Client, EndOfMessage{}); err != nil {
		t.Fatalf("unexpected err %v", err)
	}
	if cs.clientState != MustClose {
		t.Fatalf("expected MUST_CLOSE once DONE with keep-alive cleared, got %s", cs.clientState)
	}
}

func TestHundredContinueLatch(t *testing.T) {
	cs := newConnState()
	req := Request{MethodNo: MPost, Method: []byte("POST"), Target: []byte("/"), Version: Version11,
		Headers: Headers{hdr("host", "x"), hdr("expect", "100-continue")}}
	if err := cs.observe(Client, req); err != nil {
		t.Fatalf("unexpected err %v", err)
	}
	if !cs.clientWaiting100 || !cs.serverWaiting100 {
		t.Fatalf("expected both 100-continue latches set")
	}
	if err := cs.observe(Server, InformationalResponse{StatusCode: 100}); err != nil {
		t.Fatalf("unexpected err %v", err)
	}
	if cs.serverWaiting100 {
		t.Fatalf("expected serverWaiting100 cleared by 100 Continue")
	}
}

func TestProtocolSwitchAccepted(t *testing.T) {
	cs := newConnState()
	req := Request{MethodNo: MGet, Method: []byte("GET"), Target: []byte("/"), Version: Version11,
		Headers: Headers{hdr("host", "x"), hdr("upgrade", "websocket"), hdr("connection", "upgrade")}}
	if err := cs.observe(Client, req); err != nil {
		t.Fatalf("unexpected err %v", err)
	}
	if !cs.switchProposed {
		t.Fatalf("expected switchProposed set")
	}
	if err := cs.observe(Client, EndOfMessage{}); err != nil {
		t.Fatalf("unexpected err %v", err)
	}
	if cs.clientState != MightSwitchProtocol {
		t.Fatalf("expected client MIGHT_SWITCH_PROTOCOL, got %s", cs.clientState)
	}
	if err := cs.observe(Server, Response{StatusCode: 101, Version: Version11}); err != nil {
		t.Fatalf("unexpected err %v", err)
	}
	if cs.clientState != SwitchedProtocol || cs.serverState != SwitchedProtocol {
		t.Fatalf("expected both sides SWITCHED_PROTOCOL, got client=%s server=%s", cs.clientState, cs.serverState)
	}
}

func TestProtocolSwitchDenied(t *testing.T) {
	cs := newConnState()
	req := Request{MethodNo: MGet, Method: []byte("GET"), Target: []byte("/"), Version: Version11,
		Headers: Headers{hdr("host", "x"), hdr("upgrade", "websocket"), hdr("connection", "upgrade")}}
	if err := cs.observe(Client, req); err != nil {
		t.Fatalf("unexpected err %v", err)
	}
	if err := cs.observe(Client, EndOfMessage{}); err != nil {
		t.Fatalf("unexpected err %v", err)
	}
	if err := cs.observe(Server, Response{StatusCode: 200, Version: Version11, Headers: Headers{hdr("content-length", "0")}}); err != nil {
		t.Fatalf("unexpected err %v", err)
	}
	if !cs.switchDenied {
		t.Fatalf("expected switchDenied")
	}
	if cs.clientState != Done {
		t.Fatalf("expected client DONE once switch denied and keep-alive intact, got %s", cs.clientState)
	}
}

func TestIllegalEventEntersError(t *testing.T) {
	cs := newConnState()
	// client in Idle cannot send Data before Request.
	if err := cs.observe(Client, Data{}); err == nil {
		t.Fatalf("expected error for Data before Request")
	}
	if !cs.errored {
		t.Fatalf("expected errored latch set")
	}
	if err := cs.observe(Client, Request{MethodNo: MGet, Method: []byte("GET"), Target: []byte("/"), Version: Version11}); err == nil {
		t.Fatalf("expected connection to stay in ERROR state")
	}
}

func TestHundredContinueClearedByFirstRequestData(t *testing.T) {
	cs := newConnState()
	req := Request{MethodNo: MPost, Method: []byte("POST"), Target: []byte("/"), Version: Version11,
		Headers: Headers{hdr("host", "x"), hdr("expect", "100-continue")}}
	if err := cs.observe(Client, req); err != nil {
		t.Fatalf("unexpected err %v", err)
	}
	if !cs.clientWaiting100 {
		t.Fatalf("expected clientWaiting100 set")
	}
	if err := cs.observe(Client, Data{Data: []byte("body")}); err != nil {
		t.Fatalf("unexpected err %v", err)
	}
	if cs.clientWaiting100 {
		t.Fatalf("expected clientWaiting100 cleared by the first request body byte, before any response arrived")
	}
}

func TestClosedDoneCouplingForcesMustClose(t *testing.T) {
	cs := newConnState()
	cs.clientState = Done
	if err := cs.observe(Server, ConnectionClosed{}); err != nil {
		t.Fatalf("unexpected err %v", err)
	}
	if cs.serverState != Closed {
		t.Fatalf("expected server CLOSED, got %s", cs.serverState)
	}
	if cs.clientState != MustClose {
		t.Fatalf("expected client forced to MUST_CLOSE once the peer closed while it was DONE, got %s", cs.clientState)
	}
}

func TestDoneClosedCouplingForcesMustCloseMirror(t *testing.T) {
	cs := newConnState()
	cs.serverState = Done
	if err := cs.observe(Client, ConnectionClosed{}); err != nil {
		t.Fatalf("unexpected err %v", err)
	}
	if cs.clientState != Closed {
		t.Fatalf("expected client CLOSED, got %s", cs.clientState)
	}
	if cs.serverState != MustClose {
		t.Fatalf("expected server forced to MUST_CLOSE once the peer closed while it was DONE, got %s", cs.serverState)
	}
}

func TestErrorDoneMirrorForcesServerMustClose(t *testing.T) {
	cs := newConnState()
	cs.serverState = Done
	cs.errorOut(Client)
	if cs.clientState != Error {
		t.Fatalf("expected client ERROR, got %s", cs.clientState)
	}
	if cs.serverState != MustClose {
		t.Fatalf("expected server forced to MUST_CLOSE once the client errored out while server was DONE, got %s", cs.serverState)
	}
}

func TestStartNextCycleRequiresBothDone(t *testing.T) {
	cs := newConnState()
	if err := cs.startNextCycle(); err == nil {
		t.Fatalf("expected error starting next cycle before either side is DONE")
	}
	cs.clientState = Done
	cs.serverState = Done
	if err := cs.startNextCycle(); err != nil {
		t.Fatalf("unexpected err %v", err)
	}
	if cs.clientState != Idle || cs.serverState != SendResponse {
		t.Fatalf("expected reset to Idle/SendResponse, got client=%s server=%s", cs.clientState, cs.serverState)
	}
}
