package hal

import "testing"

func TestClaimOutputExclusive(t *testing.T) {
	p := NewMemPortPool(2)
	if !p.ClaimOutput(0, "Fan 0") {
		t.Fatal("first claim rejected")
	}
	if p.ClaimOutput(0, "Fan 1") {
		t.Error("second claim of same port accepted")
	}
	if p.Label(0) != "Fan 0" {
		t.Errorf("label = %q, want %q", p.Label(0), "Fan 0")
	}
}

func TestClaimOutputBounds(t *testing.T) {
	p := NewMemPortPool(2)
	if p.ClaimOutput(2, "x") {
		t.Error("out-of-range claim accepted")
	}
	if p.ClaimOutput(PortNone, "x") {
		t.Error("claim of PortNone accepted")
	}
}

func TestDigitalOutRequiresClaim(t *testing.T) {
	p := NewMemPortPool(2)
	p.DigitalOut(1, true)
	if p.Level(1) {
		t.Error("write to unclaimed port took effect")
	}
	p.ClaimOutput(1, "Fan 1")
	p.DigitalOut(1, true)
	if !p.Level(1) {
		t.Error("write to claimed port did not take effect")
	}
	p.DigitalOut(1, false)
	if p.Level(1) {
		t.Error("port did not clear")
	}
}

func TestPortNoneInvalid(t *testing.T) {
	if PortNone.Valid() {
		t.Error("PortNone reported valid")
	}
	if !Port(0).Valid() {
		t.Error("port 0 reported invalid")
	}
}
