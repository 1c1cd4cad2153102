package models

import (
	"testing"
	"time"
)

func TestInvitationTokenIsExpired(t *testing.T) {
	t.Parallel()

	live := InvitationToken{ExpiresAt: time.Now().Add(time.Hour)}
	if live.IsExpired() {
		t.Error("token expiring in an hour reported expired")
	}

	expired := InvitationToken{ExpiresAt: time.Now().Add(-time.Minute)}
	if !expired.IsExpired() {
		t.Error("token past its expiry reported live")
	}
}
