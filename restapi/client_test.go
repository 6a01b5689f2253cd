package restapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"pkt.systems/fleetwatch/schema"
)

func TestGetMachine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/machines/7" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"id":7,"address":"10.0.0.1","hostname":"kea-1"}`)
	}))
	defer server.Close()

	client := New(server.URL, nil, nil)
	machine, err := client.GetMachine(context.Background(), 7)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if machine.ID != 7 || machine.Hostname != "kea-1" {
		t.Fatalf("unexpected machine: %+v", machine)
	}
}

func TestGetMachineNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, nil, nil)
	_, err := client.GetMachine(context.Background(), 404)
	if !errors.Is(err, schema.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
}

func TestListMachines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.RawQuery; got != "start=10&limit=5&text=kea" {
			t.Errorf("unexpected query: %s", got)
		}
		fmt.Fprint(w, `{"items":[{"id":1,"address":"a"},{"id":2,"address":"b"}],"total":42}`)
	}))
	defer server.Close()

	client := New(server.URL, nil, nil)
	items, total, err := client.ListMachines(context.Background(), 10, 5, "kea")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 2 || total != 42 {
		t.Fatalf("unexpected page: %d items, total %d", len(items), total)
	}
}

func TestDeleteTransactions(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method: %s", r.Method)
		}
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := New(server.URL, nil, nil)
	if err := client.DeleteCreateTransaction(context.Background(), "machines", 55); err != nil {
		t.Fatalf("delete create failed: %v", err)
	}
	if err := client.DeleteUpdateTransaction(context.Background(), "machines", 7, 56); err != nil {
		t.Fatalf("delete update failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 2 || paths[0] != "/machines/new/transaction/55" || paths[1] != "/machines/7/transaction/56" {
		t.Fatalf("unexpected paths: %v", paths)
	}
}

func TestDeleteTransactionTolerates404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, nil, nil)
	if err := client.DeleteCreateTransaction(context.Background(), "machines", 55); err != nil {
		t.Fatalf("expected 404 to be tolerated, got %v", err)
	}
}

func TestMachinesTableReloadAndQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[{"id":7,"address":"10.0.0.1"},{"id":9,"address":"10.0.0.2"}],"total":2}`)
	}))
	defer server.Close()

	table := NewMachinesTable(New(server.URL, nil, nil))
	table.ApplyQuery(map[string][]string{"limit": {"25"}, "text": {"10."}})
	if err := table.Reload(context.Background()); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if table.Len() != 2 || table.Total() != 2 {
		t.Fatalf("unexpected table state: len %d total %d", table.Len(), table.Total())
	}
	if idx := table.FindIndex(9); idx != 1 {
		t.Fatalf("expected index 1, got %d", idx)
	}
	table.RemoveAt(0)
	if table.Len() != 1 || table.Total() != 1 {
		t.Fatalf("unexpected state after remove: len %d total %d", table.Len(), table.Total())
	}
}
