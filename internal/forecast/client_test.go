package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

func TestRetrainNetProfit(t *testing.T) {
	var got []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/predict/net-profit" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"trained","next":[1,2]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second, nil)
	series := []ledger.NetProfitPoint{
		{Month: "2025-01", NetProfit: core.Money{Cents: 12050}},
		{Month: "2025-02", NetProfit: core.Money{Cents: -300}},
	}
	resp, err := c.RetrainNetProfit(context.Background(), series)
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != `{"status":"trained","next":[1,2]}` {
		t.Errorf("response = %s", resp)
	}
	if len(got) != 2 || got[0]["month"] != "2025-01" || got[0]["net_profit"] != 120.5 || got[1]["net_profit"] != -3.0 {
		t.Errorf("posted body = %v", got)
	}
}

func TestRetrainNetProfitErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"upstream failure", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		}},
		{"invalid json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second, nil).RetrainNetProfit(context.Background(), nil)
			if !errors.Is(err, core.ErrInternal) {
				t.Fatalf("expected internal error, got %v", err)
			}
		})
	}

	if _, err := NewClient("", 0, nil).RetrainNetProfit(context.Background(), nil); !errors.Is(err, core.ErrInternal) {
		t.Fatalf("unconfigured client: %v", err)
	}
}
