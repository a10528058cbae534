package protocol

import (
	"reflect"
	"strings"
	"testing"
)

func TestDecodeWellFormed(t *testing.T) {
	t.Parallel()

	raw := "TACTICS: Authority, Fear\n---\nYour account has been locked."
	msg := Decode(raw)

	if want := []string{"Authority", "Fear"}; !reflect.DeepEqual(msg.Tactics, want) {
		t.Fatalf("unexpected tactics: %v", msg.Tactics)
	}
	if msg.Body != "Your account has been locked." {
		t.Fatalf("unexpected body: %q", msg.Body)
	}
}

func TestDecodeHeaderWhitespaceAndEmptyEntries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"padded labels", "TACTICS:  Fear ,  False Urgency \n---\nx", []string{"Fear", "False Urgency"}},
		{"trailing comma", "TACTICS: Fear,\n---\nx", []string{"Fear"}},
		{"double comma", "TACTICS: Fear,,Authority\n---\nx", []string{"Fear", "Authority"}},
		{"empty header", "TACTICS:\n---\nx", nil},
		{"no tab before labels", "TACTICS:\tScarcity\n---\nx", []string{"Scarcity"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := DecodeTactics(tc.raw); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("DecodeTactics(%q) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

// Every prefix of a well-formed message must decode without panicking to
// either an empty result or a correct partial result.
func TestDecodePrefixesAreTotal(t *testing.T) {
	t.Parallel()

	full := "TACTICS: Suspicious Link, Impersonation\n---\nClick here to verify your account."
	wantTactics := []string{"Suspicious Link", "Impersonation"}

	for i := 0; i <= len(full); i++ {
		prefix := full[:i]
		msg := Decode(prefix)

		if msg.Tactics != nil && !reflect.DeepEqual(msg.Tactics, wantTactics) {
			t.Fatalf("prefix %q decoded wrong tactics: %v", prefix, msg.Tactics)
		}
		// The raw header must never leak into the display body.
		if strings.Contains(msg.Body, "TACTICS:") || strings.Contains(msg.Body, "---") {
			t.Fatalf("prefix %q leaked protocol text into body: %q", prefix, msg.Body)
		}
	}

	// Once the whole message has arrived the decode is exact.
	msg := Decode(full)
	if !reflect.DeepEqual(msg.Tactics, wantTactics) {
		t.Fatalf("full decode tactics: %v", msg.Tactics)
	}
	if msg.Body != "Click here to verify your account." {
		t.Fatalf("full decode body: %q", msg.Body)
	}
}

func TestDecodeHeaderOnlyHidesBody(t *testing.T) {
	t.Parallel()

	// Header fully received, separator still in flight.
	if body := DecodeBody("TACTICS: Fear\n--"); body != "" {
		t.Fatalf("expected empty body while separator pending, got %q", body)
	}
	// Header itself still in flight.
	if body := DecodeBody("TACTICS: Fe"); body != "" {
		t.Fatalf("expected empty body while header pending, got %q", body)
	}
	if got := DecodeTactics("TACTICS: Fear"); got != nil {
		t.Fatalf("header without newline is not fully received, got %v", got)
	}
}

func TestDecodePlainTextFallsBackToBody(t *testing.T) {
	t.Parallel()

	msg := Decode("  Hello, this is Agent Mike calling.  ")
	if msg.Tactics != nil {
		t.Fatalf("plain text should carry no tactics: %v", msg.Tactics)
	}
	if msg.Body != "Hello, this is Agent Mike calling." {
		t.Fatalf("plain text should be the trimmed body: %q", msg.Body)
	}
}

func TestDecodeEmptyInput(t *testing.T) {
	t.Parallel()

	msg := Decode("")
	if msg.Tactics != nil || msg.Body != "" {
		t.Fatalf("empty input must decode to empty result: %+v", msg)
	}
}

func TestDecodeUsesFirstSeparator(t *testing.T) {
	t.Parallel()

	raw := "TACTICS: Fear\n---\nline one\n---\nline two"
	if body := DecodeBody(raw); body != "line one\n---\nline two" {
		t.Fatalf("body must start at the first separator: %q", body)
	}
}

func TestDecodeHeaderNotAtStartIsBody(t *testing.T) {
	t.Parallel()

	raw := "Hi there.\nTACTICS: Fear\n---\nnope"
	if got := DecodeTactics(raw); got != nil {
		t.Fatalf("header must be anchored at the start, got %v", got)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	labels := []string{"Scarcity", "Reward Bait"}
	body := "Only 3 customers received this priority alert today."
	msg := Decode(Encode(labels, body))

	if !reflect.DeepEqual(msg.Tactics, labels) {
		t.Fatalf("round trip tactics: %v", msg.Tactics)
	}
	if msg.Body != body {
		t.Fatalf("round trip body: %q", msg.Body)
	}
}
