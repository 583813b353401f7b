package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/linnemanlabs/careops/internal/assign"
	"github.com/linnemanlabs/careops/internal/queue"
)

func TestSendPostsJSON(t *testing.T) {
	t.Parallel()

	var got assign.Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s, want application/json", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("unmarshal body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL)
	err := n.Send(context.Background(), &assign.Notification{
		PersonID:  "person-1",
		Contact:   "+15550100",
		SubjectID: "subject-1",
		ItemID:    "item-1",
		Severity:  queue.SeverityUrgent,
		Message:   "unassigned urgent alert",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.PersonID != "person-1" || got.ItemID != "item-1" {
		t.Errorf("delivered notification = %+v", got)
	}
	if got.Severity != queue.SeverityUrgent {
		t.Errorf("severity = %s, want urgent", got.Severity)
	}
}

func TestSendNon2xxIsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "over quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	n := New(srv.URL)
	err := n.Send(context.Background(), &assign.Notification{ItemID: "item-1"})
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
}

func TestSendNoURLFails(t *testing.T) {
	t.Parallel()

	n := New("")
	if err := n.Send(context.Background(), &assign.Notification{ItemID: "item-1"}); err == nil {
		t.Fatal("expected error for missing URL")
	}
}
