package websocket

import (
	"strings"
	"testing"
	"time"

	"cryptofolio/internal/models"
	"cryptofolio/pkg/utils"
)

func TestNewHub(t *testing.T) {
	hub := NewHub(utils.NewNopLogger())

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestOriginChecker_Check(t *testing.T) {
	checker := &OriginChecker{
		allowedOrigins: map[string]struct{}{
			"http://localhost:3000": {},
			"https://example.com":   {},
		},
		allowAll: false,
	}

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},                       // non-browser clients allowed
		{"http://localhost:3000", true},  // allowed
		{"https://example.com", true},    // allowed
		{"http://evil.com", false},       // not allowed
		{"http://localhost:8080", false}, // not in list
	}

	for _, tt := range tests {
		got := checker.Check(tt.origin)
		if got != tt.want {
			t.Errorf("Check(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestOriginChecker_AllowAll(t *testing.T) {
	checker := &OriginChecker{allowAll: true}

	for _, origin := range []string{"http://localhost:3000", "https://evil.com"} {
		if !checker.Check(origin) {
			t.Errorf("allowAll=true but Check(%q) = false", origin)
		}
	}
}

func TestHub_BroadcastNonBlocking(t *testing.T) {
	hub := NewHub(utils.NewNopLogger())
	// Run не запущен: канал заполнится, Broadcast должен дропать,
	// а не блокировать вызывающего

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.NotifySyncResult("user-1", &models.SyncResult{CredentialID: "cred-1"})
		}
		close(done)
	}()

	select {
	case <-done:
		// OK
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a full channel")
	}
}

func TestHub_RunStopsOnDone(t *testing.T) {
	hub := NewHub(utils.NewNopLogger())

	stop := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		hub.Run(stop)
		close(exited)
	}()

	time.Sleep(10 * time.Millisecond)
	close(stop)

	select {
	case <-exited:
		// OK - Run() exited
	case <-time.After(1 * time.Second):
		t.Error("Hub.Run() did not exit after done")
	}
}

func TestHub_NotifierMessages(t *testing.T) {
	hub := NewHub(utils.NewNopLogger())

	hub.NotifyPortfolio("user-1", &models.ExchangePortfolio{
		CredentialID:  "cred-1",
		ExchangeID:    "binance",
		TotalUsdValue: 40100,
	})

	select {
	case raw := <-hub.broadcast:
		payload := string(raw)
		for _, want := range []string{`"type":"portfolioUpdate"`, `"user_id":"user-1"`, `"exchange_id":"binance"`} {
			if !strings.Contains(payload, want) {
				t.Errorf("message missing %s: %s", want, payload)
			}
		}
	default:
		t.Fatal("no message queued")
	}
}
