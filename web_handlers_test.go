package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elijahnyp/roomsense/presence"
	"github.com/elijahnyp/roomsense/state"
	. "github.com/elijahnyp/roomsense/util"
	"github.com/gorilla/websocket"
)

func TestAPISystemStatus(t *testing.T) {
	store := state.NewStore()
	store.UpdateZone("Bedroom", func(z *state.ZoneStatus) { z.State = "present"; z.LastRSSI = -61 })
	store.UpdateZone("Kitchen", func(z *state.ZoneStatus) { z.State = "absent" })
	store.UpdateWheelchair(func(w *state.WheelchairStatus) { w.Alerts = 1 })

	w := httptest.NewRecorder()
	APISystemStatus(store)(w, httptest.NewRequest("GET", "/api/status", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s", ct)
	}
	var got SystemStatus
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.TotalZones != 2 || got.OccupiedZones != 1 {
		t.Errorf("zones total=%d occupied=%d", got.TotalZones, got.OccupiedZones)
	}
	if len(got.Zones) != 2 || got.Zones[0].Room != "Bedroom" || got.Zones[0].LastRSSI != -61 {
		t.Errorf("unexpected zones %+v", got.Zones)
	}
	if got.Wheelchair.Alerts != 1 {
		t.Errorf("wheelchair alerts = %d", got.Wheelchair.Alerts)
	}
}

func TestAPIZoneDetail(t *testing.T) {
	store := state.NewStore()
	store.UpdateZone("Bedroom", func(z *state.ZoneStatus) { z.State = "present" })
	m := &Model{Zones: []presence.Zone{
		{Room: "Bedroom", Target: "band"},
		{Room: "Kitchen", Target: "M5"},
	}}
	handler := APIZoneDetail(store, func() *Model { return m })

	tests := []struct {
		name       string
		method     string
		url        string
		expectCode int
		expectBody string
	}{
		{"known zone", "GET", "/api/zone?room=Bedroom", http.StatusOK, `"state":"present"`},
		{"configured but not yet seen", "GET", "/api/zone?room=Kitchen", http.StatusOK, `"state":"unknown"`},
		{"unknown zone", "GET", "/api/zone?room=Attic", http.StatusNotFound, "Room not found"},
		{"missing room", "GET", "/api/zone", http.StatusBadRequest, "Room name required"},
		{"bad method", "POST", "/api/zone?room=Bedroom", http.StatusBadRequest, "Bad Request Method"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler(w, httptest.NewRequest(tt.method, tt.url, nil))
			if w.Code != tt.expectCode {
				t.Errorf("status = %d, expected %d", w.Code, tt.expectCode)
			}
			if !strings.Contains(w.Body.String(), tt.expectBody) {
				t.Errorf("body %q missing %q", w.Body.String(), tt.expectBody)
			}
		})
	}
}

func TestAPIZoneDetail_FollowsReload(t *testing.T) {
	Config.Set("topics", map[string]interface{}{"devices": "ton/server/devices"})
	Config.Set("presence.zones", []map[string]interface{}{{"room": "Bedroom", "target": "band"}})
	defer func() {
		Config.Set("topics", nil)
		Config.Set("presence.zones", nil)
		model.Store(nil)
	}()
	if err := reloadModel(); err != nil {
		t.Fatalf("reloadModel() error: %v", err)
	}
	handler := APIZoneDetail(state.NewStore(), model.Load)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if err := reloadModel(); err != nil {
				t.Errorf("reloadModel() error: %v", err)
				return
			}
		}
	}()
	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", "/api/zone?room=Bedroom", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d during reload", w.Code)
		}
	}
	wg.Wait()

	previous := model.Load()
	if err := reloadModel(); err != nil {
		t.Fatal(err)
	}
	if model.Load() == previous {
		t.Error("reload should swap in a new model")
	}
}

func TestWSHub_Broadcast(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	server := httptest.NewServer(ServeWebSocket(hub))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// registration happens on the hub goroutine
	time.Sleep(50 * time.Millisecond)
	hub.BroadcastUpdate("occupancy", occupancyMessage{Room: "Bedroom", Status: "in"})

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	var msg struct {
		Type string           `json:"type"`
		Data occupancyMessage `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "occupancy" || msg.Data.Room != "Bedroom" || msg.Data.Status != "in" {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestWSHub_NilIsSafe(t *testing.T) {
	var hub *WSHub
	hub.BroadcastUpdate("occupancy", nil)
}
