package harvest

import "testing"

func TestDomainBlocklist(t *testing.T) {
	t.Run("exact entry blocks host and subdomains", func(t *testing.T) {
		bl := NewDomainBlocklist([]string{"google.com"})
		if !bl.IsBlocked("google.com") {
			t.Fatalf("expected google.com to be blocked")
		}
		if !bl.IsBlocked("www.google.com") {
			t.Fatalf("expected www.google.com to be blocked")
		}
		if bl.IsBlocked("notgoogle.com") {
			t.Fatalf("did not expect notgoogle.com to match")
		}
	})

	t.Run("wildcard suffix", func(t *testing.T) {
		bl := NewDomainBlocklist([]string{"*.reddit.com"})
		cases := []struct {
			host    string
			blocked bool
		}{
			{"old.reddit.com", true},
			{"reddit.com", true},
			{"reddit.com.evil.example", false},
			{"example.com", false},
		}
		for _, tc := range cases {
			if got := bl.IsBlocked(tc.host); got != tc.blocked {
				t.Fatalf("host %q blocked=%v, want %v", tc.host, got, tc.blocked)
			}
		}
	})

	t.Run("case and whitespace insensitive", func(t *testing.T) {
		bl := NewDomainBlocklist([]string{" Facebook.COM "})
		if !bl.IsBlocked("FACEBOOK.com") {
			t.Fatalf("expected case-insensitive match")
		}
	})

	t.Run("nil blocklist never blocks", func(t *testing.T) {
		var bl *DomainBlocklist
		if bl.IsBlocked("anything") {
			t.Fatalf("nil blocklist should never block")
		}
	})
}
