package h1proto

import "testing"

func TestGetMethodNoRoundTrip(t *testing.T) {
	for m := MGet; m < MOther; m++ {
		if got := GetMethodNo(method2Name[m]); got != m {
			t.Fatalf("GetMethodNo(%q) = %v, want %v", method2Name[m], got, m)
		}
	}
}

func TestGetMethodNoUnknownAndCaseSensitive(t *testing.T) {
	if got := GetMethodNo([]byte("PROPFIND")); got != MOther {
		t.Fatalf("expected MOther for unrecognized token, got %v", got)
	}
	if got := GetMethodNo([]byte("get")); got != MOther {
		t.Fatalf("expected lowercase \"get\" to miss the well-known set (method tokens are case-sensitive), got %v", got)
	}
	if got := GetMethodNo(nil); got != MOther {
		t.Fatalf("expected MOther for empty token, got %v", got)
	}
}

func TestProposesProtocolSwitch(t *testing.T) {
	if !MConnect.ProposesProtocolSwitch(nil) {
		t.Fatalf("expected CONNECT to always propose a switch")
	}
	if MGet.ProposesProtocolSwitch(nil) {
		t.Fatalf("expected plain GET with no headers to not propose a switch")
	}
	up := Headers{hdr("upgrade", "websocket"), hdr("connection", "upgrade")}
	if !MGet.ProposesProtocolSwitch(up) {
		t.Fatalf("expected GET with Upgrade+Connection:upgrade to propose a switch")
	}
	noToken := Headers{hdr("upgrade", "websocket")}
	if MGet.ProposesProtocolSwitch(noToken) {
		t.Fatalf("expected Upgrade header without the Connection token to not propose a switch")
	}
}

func TestForcesResponseNoBody(t *testing.T) {
	if !MHead.ForcesResponseNoBody(200) {
		t.Fatalf("expected HEAD to force no body regardless of status")
	}
	if !MHead.ForcesResponseNoBody(404) {
		t.Fatalf("expected HEAD to force no body on a 404 too")
	}
	if !MConnect.ForcesResponseNoBody(200) {
		t.Fatalf("expected a successful CONNECT response to force no body")
	}
	if MConnect.ForcesResponseNoBody(404) {
		t.Fatalf("expected a failed CONNECT response to carry a body like any other response")
	}
	if MGet.ForcesResponseNoBody(200) {
		t.Fatalf("expected GET to never force no body")
	}
}
