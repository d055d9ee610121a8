package notify

import "testing"

func TestChannel(t *testing.T) {
	if Channel != "sieve_schema_changed" {
		t.Errorf("expected channel 'sieve_schema_changed', got %s", Channel)
	}
}

func TestHandler_InvokedWithExtra(t *testing.T) {
	var received string
	var h Handler = func(extra string) {
		received = extra
	}

	h("field added: status")

	if received != "field added: status" {
		t.Errorf("expected handler to receive payload, got %s", received)
	}
}
