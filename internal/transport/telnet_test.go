package transport

import (
	"bytes"
	"testing"
)

func TestFeedStripsIACAndSplitsText(t *testing.T) {
	var tn Telnet
	data := []byte{'h', 'i', tnIAC, tnIAC, '!', '\n'}
	text, reply := tn.Feed(data)
	want := []byte{'h', 'i', tnIAC, '!', '\n'} // escaped IAC IAC decodes to one literal 0xff byte
	if !bytes.Equal(text, want) {
		t.Fatalf("text = %v, want %v", text, want)
	}
	if len(reply) != 0 {
		t.Fatalf("unexpected reply for plain text: %v", reply)
	}
}

func TestWillTTypeTriggersDoAndSendRequest(t *testing.T) {
	var tn Telnet
	_, reply := tn.Feed([]byte{tnIAC, tnWILL, OptTTYPE})
	want := append(iacCmd(tnDO, OptTTYPE), tnIAC, tnSB, OptTTYPE, ttypeSend, tnIAC, tnSE)
	if !bytes.Equal(reply, want) {
		t.Fatalf("reply = %v, want %v", reply, want)
	}
	if !tn.TTYPE {
		t.Fatalf("TTYPE should be negotiated true after WILL")
	}
}

func TestDoEchoAndSgaFromClient(t *testing.T) {
	var tn Telnet
	_, reply := tn.Feed([]byte{tnIAC, tnDO, OptECHO})
	if !bytes.Equal(reply, iacCmd(tnWILL, OptECHO)) {
		t.Fatalf("reply = %v, want WILL ECHO", reply)
	}
	if !tn.Echo {
		t.Fatalf("Echo should be true")
	}

	_, reply = tn.Feed([]byte{tnIAC, tnDO, OptSGA})
	if !bytes.Equal(reply, iacCmd(tnWILL, OptSGA)) {
		t.Fatalf("reply = %v, want WILL SGA", reply)
	}
}

func TestUnknownOptionIsRefused(t *testing.T) {
	var tn Telnet
	const unknownOpt = 99
	_, reply := tn.Feed([]byte{tnIAC, tnDO, unknownOpt})
	if !bytes.Equal(reply, iacCmd(tnWONT, unknownOpt)) {
		t.Fatalf("reply = %v, want WONT for unsupported option", reply)
	}
}

func TestNAWSSubnegotiationSetsSize(t *testing.T) {
	var tn Telnet
	sub := []byte{tnIAC, tnSB, OptNAWS, 0, 80, 0, 24, tnIAC, tnSE}
	tn.Feed(sub)
	if tn.Width != 80 || tn.Height != 24 {
		t.Fatalf("Width/Height = %d/%d, want 80/24", tn.Width, tn.Height)
	}
}

func TestTTypeCycleExtractsMTTSAndStops(t *testing.T) {
	var tn Telnet
	send := func(name string) []byte {
		return append([]byte{tnIAC, tnSB, OptTTYPE, ttypeIS}, append([]byte(name), tnIAC, tnSE)...)
	}
	_, reply := tn.Feed(send("xterm"))
	if tn.TermType != "xterm" {
		t.Fatalf("TermType = %q, want xterm", tn.TermType)
	}
	if len(reply) == 0 {
		t.Fatalf("expected a follow-up TTYPE request after the first answer")
	}

	tn.Feed(send("MTTS 137"))
	if tn.MTTS != 137 {
		t.Fatalf("MTTS = %d, want 137", tn.MTTS)
	}

	_, reply = tn.Feed(send("xterm"))
	if len(reply) != 0 {
		t.Fatalf("expected no further request once the client repeats its first name, got %v", reply)
	}
}

func TestBuildMSSP(t *testing.T) {
	vars := []MSSPVar{{Name: "NAME", Value: "TestMUD"}, {Name: "PLAYERS", Value: "0"}}
	got := BuildMSSP(vars)
	want := []byte{tnIAC, tnSB, OptMSSP}
	want = append(want, msspVar)
	want = append(want, "NAME"...)
	want = append(want, msspVal)
	want = append(want, "TestMUD"...)
	want = append(want, msspVar)
	want = append(want, "PLAYERS"...)
	want = append(want, msspVal)
	want = append(want, "0"...)
	want = append(want, tnIAC, tnSE)
	if !bytes.Equal(got, want) {
		t.Fatalf("BuildMSSP = %v, want %v", got, want)
	}
}

func TestQueryTerminalReflectsNegotiatedState(t *testing.T) {
	var tn Telnet
	tn.Feed([]byte{tnIAC, tnWILL, OptTTYPE})
	tn.Feed(append([]byte{tnIAC, tnSB, OptTTYPE, ttypeIS}, append([]byte("mudlet"), tnIAC, tnSE)...))
	info := tn.QueryTerminal()
	if info.TermType != "mudlet" || info.TermClient != "mudlet" {
		t.Fatalf("QueryTerminal = %+v, want TermType/TermClient = mudlet", info)
	}
	if !info.TTYPE {
		t.Fatalf("QueryTerminal.TTYPE should be true")
	}
}
