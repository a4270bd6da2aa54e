package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newTestMonitorServer pins the port so tests never read details_port.
func newTestMonitorServer(port int) *MonitorServer {
	s := NewMonitorServer()
	s.port = func() int { return port }
	return s
}

func TestNewMonitorServer(t *testing.T) {
	server := NewMonitorServer()

	if server == nil {
		t.Fatal("NewMonitorServer should return non-nil server")
	}
	if server.running == nil {
		t.Error("NewMonitorServer should initialize running mutex")
	}
	if server.srv == nil || server.mux == nil {
		t.Error("NewMonitorServer should initialize server and mux")
	}
}

func TestMonitorServer_AddHandler(t *testing.T) {
	server := NewMonitorServer()
	server.AddHandler("/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("test response")) //nolint:errcheck // test helper
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if body := w.Body.String(); body != "test response" {
		t.Errorf("Expected 'test response', got '%s'", body)
	}
}

func TestMonitorServer_AddRawHandler(t *testing.T) {
	server := NewMonitorServer()
	server.AddRawHandler("/raw", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/raw", nil))
	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}
}

func TestMonitorServer_HandlersAreIsolated(t *testing.T) {
	a := NewMonitorServer()
	b := NewMonitorServer()
	a.AddHandler("/only-a", func(w http.ResponseWriter, r *http.Request) {})

	w := httptest.NewRecorder()
	b.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/only-a", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 from second server, got %d", w.Code)
	}
}

func TestMonitorServer_StartAndRestart(t *testing.T) {
	server := newTestMonitorServer(0)

	if err := server.Start(); err != nil {
		t.Errorf("Start() should not return error, got: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := server.Start(); err == nil {
		t.Error("Start() should return error when already running")
	}

	server.Restart()
	time.Sleep(200 * time.Millisecond)
	_ = server.Shutdown(context.Background()) //nolint:errcheck // test cleanup
}

func TestMonitorServer_Integration(t *testing.T) {
	testPort := 8899
	server := newTestMonitorServer(testPort)
	server.AddHandler("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy")) //nolint:errcheck // test helper
	})

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer func() { _ = server.Shutdown(context.Background()) }() //nolint:errcheck // test cleanup
	time.Sleep(200 * time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/health", testPort))
	if err != nil {
		t.Logf("server not reachable yet: %v", err)
		return
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // test cleanup
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "healthy" {
		t.Errorf("got %d %q", resp.StatusCode, body)
	}

	server.Restart()
	time.Sleep(200 * time.Millisecond)

	resp2, err := http.Get(fmt.Sprintf("http://localhost:%d/health", testPort))
	if err != nil {
		t.Logf("server not reachable after restart: %v", err)
		return
	}
	defer func() { _ = resp2.Body.Close() }() //nolint:errcheck // test cleanup
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 after restart, got %d", resp2.StatusCode)
	}
}

func TestMonitorServer_ConcurrentAccess(t *testing.T) {
	server := newTestMonitorServer(8904)

	results := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func(id int) {
			if id > 0 {
				time.Sleep(time.Duration(id) * 10 * time.Millisecond)
			}
			results <- server.Start()
		}(i)
	}

	var successCount, errorCount int
	for i := 0; i < 3; i++ {
		if err := <-results; err != nil {
			errorCount++
		} else {
			successCount++
		}
	}

	if successCount != 1 {
		t.Errorf("Expected exactly 1 successful start, got %d", successCount)
	}
	if errorCount != 2 {
		t.Errorf("Expected exactly 2 'already running' errors, got %d", errorCount)
	}
	time.Sleep(100 * time.Millisecond)
	_ = server.Shutdown(context.Background()) //nolint:errcheck // test cleanup
}

func TestMonitorServer_Shutdown(t *testing.T) {
	server := newTestMonitorServer(8903)

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if server.running.TryLock() {
		server.running.Unlock()
		t.Error("Server should be running (mutex should be locked)")
	}

	if err := server.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if !server.running.TryLock() {
		t.Error("Server should have stopped")
	} else {
		server.running.Unlock()
	}
}
