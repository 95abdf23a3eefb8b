// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package h1proto

import "github.com/pkg/errors"

// Role identifies which side of an HTTP/1.1 exchange a state belongs to.
// Every Connection tracks one State per Role: its own and its peer's.
type Role uint8

const (
	Client Role = iota
	Server
)

func (r Role) String() string {
	if r == Server {
		return "server"
	}
	return "client"
}

// State is one node of a role's per-connection state machine. Client and
// server each have their own transition table over the
// same State values; a Connection tracks a State for both roles (its own
// and its peer's) and keeps the two coupled through the fixups applied in
// connState.observe.
type State uint8

const (
	// Idle is the client's state before it has sent a request, and after a
	// prior cycle completed and start_next_cycle ran.
	Idle State = iota
	// SendResponse is the server's equivalent of Idle: before it has sent a
	// final response (it may emit any number of InformationalResponse
	// events first).
	SendResponse
	// SendBody is entered once a role has sent its start-line/headers and
	// may now send Data/EndOfMessage.
	SendBody
	Done
	// MustClose means this role reached Done but keep-alive was not
	// negotiated; the connection must be closed rather than reused.
	MustClose
	Closed
	// MightSwitchProtocol is the client's state after finishing a request
	// that proposed a protocol switch (Upgrade, or CONNECT), while the
	// server's decision is still pending.
	MightSwitchProtocol
	SwitchedProtocol
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case SendResponse:
		return "SEND_RESPONSE"
	case SendBody:
		return "SEND_BODY"
	case Done:
		return "DONE"
	case MustClose:
		return "MUST_CLOSE"
	case Closed:
		return "CLOSED"
	case MightSwitchProtocol:
		return "MIGHT_SWITCH_PROTOCOL"
	case SwitchedProtocol:
		return "SWITCHED_PROTOCOL"
	case Error:
		return "ERROR"
	default:
		return "INVALID"
	}
}

// eventKind is the discriminant the transition tables key on; it exists
// because Go's Event interface doesn't itself carry an enum tag.
type eventKind uint8

const (
	evtRequest eventKind = iota
	evtInformationalResponse
	evtResponse
	evtData
	evtEndOfMessage
	evtConnectionClosed
)

func eventKindOf(e Event) eventKind {
	switch e.(type) {
	case Request:
		return evtRequest
	case InformationalResponse:
		return evtInformationalResponse
	case Response:
		return evtResponse
	case Data:
		return evtData
	case EndOfMessage:
		return evtEndOfMessage
	case ConnectionClosed:
		return evtConnectionClosed
	default:
		panic("h1proto: not a wire event")
	}
}

var clientTransitions = map[State]map[eventKind]State{
	Idle: {
		evtRequest:          SendBody,
		evtConnectionClosed: Closed,
	},
	SendBody: {
		evtData:         SendBody,
		evtEndOfMessage: Done,
	},
	Done:                {evtConnectionClosed: Closed},
	MustClose:           {evtConnectionClosed: Closed},
	MightSwitchProtocol: {evtConnectionClosed: Closed},
	SwitchedProtocol:    {evtConnectionClosed: Closed},
	Closed:              {evtConnectionClosed: Closed},
}

var serverTransitions = map[State]map[eventKind]State{
	SendResponse: {
		evtInformationalResponse: SendResponse,
		evtResponse:              SendBody,
		evtConnectionClosed:      Closed,
	},
	SendBody: {
		evtData:         SendBody,
		evtEndOfMessage: Done,
	},
	Done:             {evtConnectionClosed: Closed},
	MustClose:        {evtConnectionClosed: Closed},
	SwitchedProtocol: {evtConnectionClosed: Closed},
	Closed:           {evtConnectionClosed: Closed},
}

func nextState(role Role, cur State, kind eventKind) (State, bool) {
	tbl := clientTransitions
	if role == Server {
		tbl = serverTransitions
	}
	m, ok := tbl[cur]
	if !ok {
		return 0, false
	}
	next, ok := m[kind]
	return next, ok
}

// connState is the coupled pair of per-role state machines a Connection
// carries, plus the handful of cross-cutting latches the plain transition
// tables can't express on their own: keep-alive, 100-continue, and protocol
// switching.
type connState struct {
	clientState State
	serverState State

	keepAlive bool

	switchProposed bool
	switchAccepted bool
	switchDenied   bool

	clientWaiting100 bool
	serverWaiting100 bool

	errored bool
}

func newConnState() *connState {
	return &connState{
		clientState: Idle,
		serverState: SendResponse,
		keepAlive:   true,
	}
}

func (cs *connState) stateFor(role Role) State {
	if role == Server {
		return cs.serverState
	}
	return cs.clientState
}

func (cs *connState) setStateFor(role Role, s State) {
	if role == Server {
		cs.serverState = s
	} else {
		cs.clientState = s
	}
}

// errorOut latches the connection-wide errored flag and drives role's own
// State to Error, so OurState/TheirState reflect the failure instead of
// leaving the caller to infer it only from a returned error value.
func (cs *connState) errorOut(role Role) {
	cs.errored = true
	cs.setStateFor(role, Error)
	cs.applyCouplingRules()
}

// observe applies one event, attributed to role, to the coupled state
// machine: the plain per-role transition plus the latch/switch fixups the
// table alone can't express. role identifies which role emitted the event
// (Request/Data/EndOfMessage from the client role, or
// InformationalResponse/Response/Data/EndOfMessage from the server role),
// not which local Connection observed it — both the embedder's own events
// and the peer's parsed events pass through the same function.
func (cs *connState) observe(role Role, evt Event) error {
	if cs.errored {
		return errors.New("connection is in ERROR state")
	}
	kind := eventKindOf(evt)
	cur := cs.stateFor(role)
	next, ok := nextState(role, cur, kind)
	if !ok {
		cs.errorOut(role)
		return errors.Errorf("%T is not allowed for %s in state %s", evt, role, cur)
	}

	switch e := evt.(type) {
	case Request:
		if !e.Version.AtLeast11() || hasConnectionToken(e.Headers, "close") {
			cs.keepAlive = false
		}
		if e.MethodNo.ProposesProtocolSwitch(e.Headers) {
			cs.switchProposed = true
		}
		if expect := e.Headers.GetSpecial(hdrExpect); len(expect) > 0 && has100ContinueExpectation(expect[0]) {
			cs.clientWaiting100 = true
			cs.serverWaiting100 = true
		}
	case InformationalResponse:
		cs.clientWaiting100 = false
		cs.serverWaiting100 = false
		if e.StatusCode == 101 && cs.switchProposed {
			cs.switchAccepted = true
			cs.clientState = SwitchedProtocol
			cs.serverState = SwitchedProtocol
			return nil
		}
	case Response:
		cs.clientWaiting100 = false
		cs.serverWaiting100 = false
		if hasConnectionToken(e.Headers, "close") || !e.Version.AtLeast11() {
			cs.keepAlive = false
		}
		if cs.switchProposed {
			if e.StatusCode == 101 || (e.StatusCode >= 200 && e.StatusCode < 300) {
				cs.switchAccepted = true
				cs.clientState = SwitchedProtocol
				cs.serverState = SwitchedProtocol
				return nil
			}
			cs.switchDenied = true
			if cs.clientState == MightSwitchProtocol {
				if cs.keepAlive {
					cs.clientState = Done
				} else {
					cs.clientState = MustClose
				}
			}
		}
	case Data:
		if role == Client {
			cs.clientWaiting100 = false
			cs.serverWaiting100 = false
		}
	}

	if kind == evtEndOfMessage && role == Client && cs.switchProposed && !cs.switchDenied && !cs.switchAccepted {
		next = MightSwitchProtocol
	}
	cs.setStateFor(role, next)
	cs.applyCouplingRules()
	return nil
}

// applyCouplingRules re-derives MUST_CLOSE wherever a side has reached DONE
// but the connection cannot actually be reused, iterating to a fixed point
// since satisfying one rule can expose another (e.g. latching keep-alive
// off and then discovering the peer already closed). It runs after every
// transition, covering what the plain per-role transition tables can't
// express on their own:
//   - a DONE side whose peer has already gone CLOSED must also CLOSE,
//     since there's no peer left to exchange another cycle with;
//   - a DONE side transitions to MUST_CLOSE once keep-alive is off;
//   - a DONE server whose client peer ended in ERROR must also CLOSE,
//     mirroring the CLOSED/DONE rule for the case where the peer never
//     reached a clean terminal state at all.
func (cs *connState) applyCouplingRules() {
	for {
		changed := false
		if cs.clientState == Closed && cs.serverState == Done {
			cs.serverState = MustClose
			changed = true
		}
		if cs.serverState == Closed && cs.clientState == Done {
			cs.clientState = MustClose
			changed = true
		}
		if !cs.keepAlive {
			if cs.clientState == Done {
				cs.clientState = MustClose
				changed = true
			}
			if cs.serverState == Done {
				cs.serverState = MustClose
				changed = true
			}
		}
		if cs.clientState == Error && cs.serverState == Done {
			cs.serverState = MustClose
			changed = true
		}
		if !changed {
			return
		}
	}
}

// readyForNextCycle reports whether both roles have finished their current
// request/response exchange and a new one can begin.
func (cs *connState) readyForNextCycle() bool {
	return cs.clientState == Done && cs.serverState == Done
}

// startNextCycle resets both roles to the start of a new request/response
// exchange. It is a protocol error to call this before
// both roles reach Done — in particular it never applies from MustClose,
// since that state means the connection isn't going to be reused.
func (cs *connState) startNextCycle() error {
	if !cs.readyForNextCycle() {
		return newLocalProtocolError("cannot start next cycle: client=%s server=%s", cs.clientState, cs.serverState)
	}
	cs.clientState = Idle
	cs.serverState = SendResponse
	cs.switchProposed = false
	cs.switchAccepted = false
	cs.switchDenied = false
	cs.clientWaiting100 = false
	cs.serverWaiting100 = false
	return nil
}
