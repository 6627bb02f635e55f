package enums

import "testing"

func TestParseQrAuthStatus(t *testing.T) {
	got, err := ParseQrAuthStatus("VERIFIED")
	if err != nil || got != QrAuthStatusVerified {
		t.Fatalf("expected VERIFIED, got %q err=%v", got, err)
	}
	if _, err := ParseQrAuthStatus("verified"); err == nil {
		t.Fatal("expected lowercase status to be rejected")
	}
}

func TestQrAuthStatusTerminal(t *testing.T) {
	if QrAuthStatusPending.IsTerminal() {
		t.Fatal("pending must not be terminal")
	}
	for _, s := range []QrAuthStatus{QrAuthStatusVerified, QrAuthStatusExpired, QrAuthStatusCancelled} {
		if !s.IsTerminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	if QrAuthStatus("bogus").IsTerminal() {
		t.Fatal("unknown status must not be terminal")
	}
}

func TestParseInventoryMode(t *testing.T) {
	if m, err := ParseInventoryMode("replace"); err != nil || m != InventoryModeReplace {
		t.Fatalf("expected replace, got %q err=%v", m, err)
	}
	if _, err := ParseInventoryMode("full"); err == nil {
		t.Fatal("expected unknown mode to be rejected")
	}
}
