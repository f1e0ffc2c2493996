package authority_client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGetContext(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get(ParamAction); got != ActionContextGet {
			t.Errorf("action: got %q, want %q", got, ActionContextGet)
		}
		io.WriteString(w, `{"ok":true,"ctx":{"game_id":"G1","drive_id":"D2","play_id":"P3","ts":1724800000000}}`)
	}))
	defer srv.Close()

	client := NewAuthorityClient(srv.URL)
	got, err := client.GetContext(context.Background())
	if err != nil {
		t.Fatalf("GetContext: %v", err)
	}
	want := &ContextPayload{GameID: "G1", DriveID: "D2", PlayID: "P3", TS: 1724800000000}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestGetContextTransportAndParseFailures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-2xx",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "non-JSON body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, "<html>maintenance</html>")
			},
		},
		{
			name: "ok false",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"ok":false}`)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			client := NewAuthorityClient(srv.URL)
			if _, err := client.GetContext(context.Background()); err == nil {
				t.Error("GetContext: expected error, got nil")
			}
		})
	}
}

func TestSetContextSendsPlainTextJSON(t *testing.T) {
	t.Parallel()
	var gotBody contextSetRequest
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &gotBody); err != nil {
			t.Errorf("body did not parse: %v", err)
		}
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	client := NewAuthorityClient(srv.URL)
	if err := client.SetContext(context.Background(), "G1", "D2", "P3"); err != nil {
		t.Fatalf("SetContext: %v", err)
	}

	if gotContentType != PlainTextContentType {
		t.Errorf("content type: got %q, want %q", gotContentType, PlainTextContentType)
	}
	want := contextSetRequest{Action: ActionContextSet, GameID: "G1", DriveID: "D2", PlayID: "P3"}
	if diff := cmp.Diff(want, gotBody); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestGetTryoutPeriodsNormalizesColumnNames(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get(ParamTryoutID); got != "T1" {
			t.Errorf("tryout_id: got %q, want T1", got)
		}
		io.WriteString(w, `{"ok":true,"periods":[
			{"period_code":"P1","label":"Warmups","start_time":"9:00","end_time":"9:30"},
			{"code":"P2","period_label":"Drills","start":"9:30 am","end":"10:15 am"},
			{"label":"no code","start":"10:15"},
			{"code":"P4","label":"no start"}
		]}`)
	}))
	defer srv.Close()

	client := NewAuthorityClient(srv.URL)
	got, err := client.GetTryoutPeriods(context.Background(), "T1")
	if err != nil {
		t.Fatalf("GetTryoutPeriods: %v", err)
	}

	want := []TryoutPeriod{
		{Code: "P1", Label: "Warmups", Start: "9:00", End: "9:30"},
		{Code: "P2", Label: "Drills", Start: "9:30 am", End: "10:15 am"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("periods mismatch (-want +got):\n%s", diff)
	}
}

func TestGetTryoutPeriodsFallsBackToRows(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok":true,"rows":[{"code":"P1","start":"8:00"}]}`)
	}))
	defer srv.Close()

	client := NewAuthorityClient(srv.URL)
	got, err := client.GetTryoutPeriods(context.Background(), "")
	if err != nil {
		t.Fatalf("GetTryoutPeriods: %v", err)
	}
	if len(got) != 1 || got[0].Code != "P1" {
		t.Errorf("periods: got %v, want one row P1", got)
	}
}
