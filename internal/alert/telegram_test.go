package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"plannerrun/internal/models"
	"plannerrun/pkg/logger"
)

// fakeBotAPI answers getMe and records sendMessage calls.
type fakeBotAPI struct {
	mu   sync.Mutex
	sent []map[string]string
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":     true,
			"result": map[string]interface{}{"id": 1, "is_bot": true, "first_name": "PlannerRun", "username": "plannerrun_bot"},
		})
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		_ = r.ParseForm()
		f.mu.Lock()
		f.sent = append(f.sent, map[string]string{
			"chat_id": r.PostForm.Get("chat_id"),
			"text":    r.PostForm.Get("text"),
		})
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"ok": true,
			"result": map[string]interface{}{
				"message_id": 99,
				"date":       1700000000,
				"chat":       map[string]interface{}{"id": -100, "type": "group"},
			},
		})
	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "error_code": 404, "description": "Not Found"})
	}
}

func (f *fakeBotAPI) messages() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.sent...)
}

func paidCustomer() *models.Customer {
	return &models.Customer{
		ID: 42,
		Intake: models.Intake{
			Altura: 180, Peso: 75.5, Idade: 30, Objetivo: "5km abaixo de 25min",
			Dias: 3, Meses: 3, Nivel: "Iniciante", Email: "a@b.com",
		},
		Status: models.StatusPending,
	}
}

func TestCustomerPaid(t *testing.T) {
	t.Parallel()

	fake := &fakeBotAPI{}
	ts := httptest.NewServer(fake)
	defer ts.Close()

	alerter, err := NewTelegramAlerterWithEndpoint("123:abc", ts.URL+"/bot%s/%s", -100, logger.NewNop())
	if err != nil {
		t.Fatalf("NewTelegramAlerterWithEndpoint failed: %v", err)
	}

	if err := alerter.CustomerPaid(context.Background(), paidCustomer()); err != nil {
		t.Fatalf("CustomerPaid failed: %v", err)
	}

	sent := fake.messages()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(sent))
	}
	if sent[0]["chat_id"] != "-100" {
		t.Errorf("Expected chat -100, got %q", sent[0]["chat_id"])
	}
	if !strings.Contains(sent[0]["text"], "a@b.com") {
		t.Errorf("Expected customer email in alert, got %q", sent[0]["text"])
	}
}

func TestCustomerPaidCanceledContext(t *testing.T) {
	t.Parallel()

	fake := &fakeBotAPI{}
	ts := httptest.NewServer(fake)
	defer ts.Close()

	alerter, err := NewTelegramAlerterWithEndpoint("123:abc", ts.URL+"/bot%s/%s", -100, logger.NewNop())
	if err != nil {
		t.Fatalf("NewTelegramAlerterWithEndpoint failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := alerter.CustomerPaid(ctx, paidCustomer()); err == nil {
		t.Error("Expected error for canceled context")
	}
	if n := len(fake.messages()); n != 0 {
		t.Errorf("Expected no messages, got %d", n)
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	s := Summary(paidCustomer())
	for _, want := range []string{"ID: 42", "Email: a@b.com", "Plano: 3 meses", "Altura: 180 cm", "Peso: 75.5 kg", "Objetivo: 5km abaixo de 25min"} {
		if !strings.Contains(s, want) {
			t.Errorf("Expected %q in summary:\n%s", want, s)
		}
	}
}
