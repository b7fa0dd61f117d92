package mutf7

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		utf8 string
		wire string
	}{
		{"INBOX", "INBOX"},
		{"INBOX/Sent", "INBOX/Sent"},
		{"Entwürfe", "Entw&APw-rfe"},
		{"A&B", "A&-B"},
		{"受信箱", "&U9dP4Xux-"},
	}
	for _, c := range cases {
		got := Encode(c.utf8)
		if got != c.wire {
			t.Errorf("Encode(%q) = %q, want %q", c.utf8, got, c.wire)
		}
		back, err := Decode(c.wire)
		if err != nil {
			t.Fatalf("Decode(%q): %v", c.wire, err)
		}
		if back != c.utf8 {
			t.Errorf("Decode(%q) = %q, want %q", c.wire, back, c.utf8)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode("&!!!-"); err == nil {
		t.Fatal("expected error decoding malformed run")
	}
}
