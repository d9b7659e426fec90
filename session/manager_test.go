package session

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestManager_CreateSession(t *testing.T) {
	manager := NewManager()

	t.Run("returns public projection", func(t *testing.T) {
		info, err := manager.CreateSession("quick-draw", GameTypeDual, "host-1", "10.0.0.1")
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if info.SessionID == "" {
			t.Error("Expected session ID")
		}
		if len(info.SessionCode) != CodeLength {
			t.Errorf("Expected %d-character code, got %q", CodeLength, info.SessionCode)
		}
		if info.GameType != GameTypeDual {
			t.Errorf("Expected gameType dual, got %s", info.GameType)
		}
		if info.MaxSensors != 2 {
			t.Errorf("Expected maxSensors 2, got %d", info.MaxSensors)
		}
	})

	t.Run("rejects unknown game type", func(t *testing.T) {
		_, err := manager.CreateSession("quick-draw", GameType("quad"), "host-2", "10.0.0.2")
		if err != ErrInvalidGameType {
			t.Errorf("Expected ErrInvalidGameType, got %v", err)
		}
	})
}

func TestManager_ConnectSensor_Capacity(t *testing.T) {
	cases := []struct {
		gameType   GameType
		maxSensors int
	}{
		{GameTypeSolo, 1},
		{GameTypeDual, 2},
		{GameTypeMulti, 8},
	}

	for _, tc := range cases {
		t.Run(string(tc.gameType), func(t *testing.T) {
			manager := NewManager()
			info, err := manager.CreateSession("quick-draw", tc.gameType, "host", "addr")
			if err != nil {
				t.Fatalf("Failed to create session: %v", err)
			}
			if info.MaxSensors != tc.maxSensors {
				t.Fatalf("Expected maxSensors %d, got %d", tc.maxSensors, info.MaxSensors)
			}

			for i := 0; i < tc.maxSensors; i++ {
				result, err := manager.ConnectSensor(info.SessionCode, fmt.Sprintf("conn-%d", i), "addr", DeviceInfo{})
				if err != nil {
					t.Fatalf("Failed to connect sensor %d: %v", i+1, err)
				}
				if result.ConnectedSensors != i+1 {
					t.Errorf("Expected %d connected sensors, got %d", i+1, result.ConnectedSensors)
				}
				wantReady := i+1 == tc.maxSensors
				if result.IsReady != wantReady {
					t.Errorf("Sensor %d: expected isReady=%v, got %v", i+1, wantReady, result.IsReady)
				}
			}

			// One past capacity must fail.
			_, err = manager.ConnectSensor(info.SessionCode, "conn-extra", "addr", DeviceInfo{})
			if err != ErrSessionFull {
				t.Errorf("Expected ErrSessionFull, got %v", err)
			}
		})
	}
}

func TestManager_ConnectSensor_SequentialIDs(t *testing.T) {
	manager := NewManager()
	info, _ := manager.CreateSession("quick-draw", GameTypeMulti, "host", "addr")

	for i := 1; i <= 3; i++ {
		result, err := manager.ConnectSensor(info.SessionCode, fmt.Sprintf("conn-%d", i), "addr", DeviceInfo{})
		if err != nil {
			t.Fatalf("Failed to connect sensor: %v", err)
		}
		want := fmt.Sprintf("sensor%d", i)
		if result.SensorID != want {
			t.Errorf("Expected sensor ID %s, got %s", want, result.SensorID)
		}
	}
}

func TestManager_ConnectSensor_IDsNotReusedAfterDisconnect(t *testing.T) {
	manager := NewManager()
	info, _ := manager.CreateSession("quick-draw", GameTypeDual, "host", "addr")

	first, _ := manager.ConnectSensor(info.SessionCode, "conn-1", "addr", DeviceInfo{})
	if first.SensorID != "sensor1" {
		t.Fatalf("Expected sensor1, got %s", first.SensorID)
	}

	if _, err := manager.Disconnect("conn-1"); err != nil {
		t.Fatalf("Failed to disconnect sensor: %v", err)
	}

	rejoined, err := manager.ConnectSensor(info.SessionCode, "conn-1b", "addr", DeviceInfo{})
	if err != nil {
		t.Fatalf("Expected rejoin to succeed: %v", err)
	}
	if rejoined.SensorID == "sensor1" {
		t.Error("Expected a fresh sensor ID after disconnect, got reuse of sensor1")
	}
	if rejoined.ConnectedSensors != 1 {
		t.Errorf("Expected connectedSensors 1 after rejoin, got %d", rejoined.ConnectedSensors)
	}
}

func TestManager_ConnectSensor_UnknownCode(t *testing.T) {
	manager := NewManager()

	_, err := manager.ConnectSensor("ZZZZ", "conn-1", "addr", DeviceInfo{})
	if err != ErrSessionNotFound {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_ConnectSensor_RaceForLastSlot(t *testing.T) {
	manager := NewManager()
	info, _ := manager.CreateSession("quick-draw", GameTypeDual, "host", "addr")

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	rejected := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := manager.ConnectSensor(info.SessionCode, fmt.Sprintf("conn-%d", i), "addr", DeviceInfo{})
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				admitted++
			case ErrSessionFull:
				rejected++
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if admitted != 2 {
		t.Errorf("Expected exactly 2 sensors admitted, got %d", admitted)
	}
	if rejected != 18 {
		t.Errorf("Expected 18 rejections, got %d", rejected)
	}
}

func TestManager_StateTransitions(t *testing.T) {
	manager := NewManager()
	info, _ := manager.CreateSession("quick-draw", GameTypeDual, "host", "addr")

	sess, _ := manager.registry.FindByID(info.SessionID)
	if sess.State != StateCreated {
		t.Fatalf("Expected created, got %s", sess.State)
	}

	manager.ConnectSensor(info.SessionCode, "conn-1", "addr", DeviceInfo{})
	if sess.State != StateAwaitingSensors {
		t.Errorf("Expected awaiting_sensors after first sensor, got %s", sess.State)
	}

	manager.ConnectSensor(info.SessionCode, "conn-2", "addr", DeviceInfo{})
	if sess.State != StateReady {
		t.Errorf("Expected ready at capacity, got %s", sess.State)
	}

	if _, err := manager.StartGame(info.SessionID); err != nil {
		t.Fatalf("Failed to start game: %v", err)
	}
	if sess.State != StatePlaying {
		t.Errorf("Expected playing after start, got %s", sess.State)
	}

	// A sensor drop and rejoin during play must not demote the state.
	manager.Disconnect("conn-2")
	if sess.State != StatePlaying {
		t.Errorf("Expected playing after sensor drop, got %s", sess.State)
	}
	manager.ConnectSensor(info.SessionCode, "conn-2b", "addr", DeviceInfo{})
	if sess.State != StatePlaying {
		t.Errorf("Expected playing after rejoin, got %s", sess.State)
	}
}

func TestManager_UpdateSensorData(t *testing.T) {
	manager := NewManager()
	info, _ := manager.CreateSession("quick-draw", GameTypeSolo, "host-conn", "addr")
	conn, _ := manager.ConnectSensor(info.SessionCode, "sensor-conn", "addr", DeviceInfo{})

	t.Run("relays to host with sequence numbers", func(t *testing.T) {
		for want := uint64(1); want <= 5; want++ {
			relay, err := manager.UpdateSensorData(info.SessionCode, conn.SensorID, &Telemetry{
				Orientation: &Orientation{Alpha: 1, Beta: 2, Gamma: 3},
				Timestamp:   time.Now().UnixMilli(),
			})
			if err != nil {
				t.Fatalf("Failed to update sensor data: %v", err)
			}
			if relay.HostConnID != "host-conn" {
				t.Errorf("Expected relay target host-conn, got %s", relay.HostConnID)
			}
			if relay.Payload.Seq != want {
				t.Errorf("Expected seq %d, got %d", want, relay.Payload.Seq)
			}
			if relay.Payload.SensorID != conn.SensorID {
				t.Errorf("Expected payload stamped with %s, got %s", conn.SensorID, relay.Payload.SensorID)
			}
		}
	})

	t.Run("flows before the game starts", func(t *testing.T) {
		// The session above was never started; data must still relay so the
		// host can show live pre-game feedback.
		sess, _ := manager.registry.FindByID(info.SessionID)
		if sess.State == StatePlaying {
			t.Fatal("Test setup: session should not be playing")
		}
		if _, err := manager.UpdateSensorData(info.SessionCode, conn.SensorID, &Telemetry{}); err != nil {
			t.Errorf("Expected pre-game data to relay, got %v", err)
		}
	})

	t.Run("unknown sensor", func(t *testing.T) {
		_, err := manager.UpdateSensorData(info.SessionCode, "sensor99", &Telemetry{})
		if err != ErrSensorNotFound {
			t.Errorf("Expected ErrSensorNotFound, got %v", err)
		}
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := manager.UpdateSensorData("ZZZZ", conn.SensorID, &Telemetry{})
		if err != ErrSessionNotFound {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestManager_SequencesArePerSensor(t *testing.T) {
	manager := NewManager()
	info, _ := manager.CreateSession("quick-draw", GameTypeDual, "host", "addr")
	a, _ := manager.ConnectSensor(info.SessionCode, "conn-a", "addr", DeviceInfo{})
	b, _ := manager.ConnectSensor(info.SessionCode, "conn-b", "addr", DeviceInfo{})

	relayA1, _ := manager.UpdateSensorData(info.SessionCode, a.SensorID, &Telemetry{})
	relayA2, _ := manager.UpdateSensorData(info.SessionCode, a.SensorID, &Telemetry{})
	relayB1, _ := manager.UpdateSensorData(info.SessionCode, b.SensorID, &Telemetry{})

	if relayA1.Payload.Seq != 1 || relayA2.Payload.Seq != 2 {
		t.Errorf("Expected sensor A seqs 1,2, got %d,%d", relayA1.Payload.Seq, relayA2.Payload.Seq)
	}
	if relayB1.Payload.Seq != 1 {
		t.Errorf("Expected sensor B to start at 1, got %d", relayB1.Payload.Seq)
	}
}

func TestManager_StartGame(t *testing.T) {
	t.Run("requires at least one sensor", func(t *testing.T) {
		manager := NewManager()
		info, _ := manager.CreateSession("quick-draw", GameTypeDual, "host", "addr")

		_, err := manager.StartGame(info.SessionID)
		if err != ErrNoSensors {
			t.Errorf("Expected ErrNoSensors, got %v", err)
		}
	})

	t.Run("partial roster starts under default policy", func(t *testing.T) {
		manager := NewManager()
		info, _ := manager.CreateSession("quick-draw", GameTypeMulti, "host", "addr")
		manager.ConnectSensor(info.SessionCode, "conn-1", "addr", DeviceInfo{})

		result, err := manager.StartGame(info.SessionID)
		if err != nil {
			t.Fatalf("Expected partial roster start, got %v", err)
		}
		if result.GameType != GameTypeMulti {
			t.Errorf("Expected gameType multi, got %s", result.GameType)
		}
		if len(result.SensorIDs) != 1 || result.SensorIDs[0] != "sensor1" {
			t.Errorf("Expected roster [sensor1], got %v", result.SensorIDs)
		}
	})

	t.Run("full roster policy", func(t *testing.T) {
		manager := NewManagerWithPolicy(StartWithFullRoster)
		info, _ := manager.CreateSession("quick-draw", GameTypeDual, "host", "addr")
		manager.ConnectSensor(info.SessionCode, "conn-1", "addr", DeviceInfo{})

		if _, err := manager.StartGame(info.SessionID); err != ErrRosterIncomplete {
			t.Errorf("Expected ErrRosterIncomplete, got %v", err)
		}

		manager.ConnectSensor(info.SessionCode, "conn-2", "addr", DeviceInfo{})
		if _, err := manager.StartGame(info.SessionID); err != nil {
			t.Errorf("Expected full roster start, got %v", err)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		manager := NewManager()
		if _, err := manager.StartGame("nope"); err != ErrSessionNotFound {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestManager_HostDisconnect(t *testing.T) {
	manager := NewManager()
	info, _ := manager.CreateSession("quick-draw", GameTypeDual, "host-conn", "addr")
	a, _ := manager.ConnectSensor(info.SessionCode, "conn-a", "addr", DeviceInfo{})
	manager.ConnectSensor(info.SessionCode, "conn-b", "addr", DeviceInfo{})

	event, err := manager.Disconnect("host-conn")
	if err != nil {
		t.Fatalf("Failed to disconnect host: %v", err)
	}
	if event == nil || event.Type != HostDisconnected {
		t.Fatalf("Expected host_disconnected event, got %+v", event)
	}
	if event.SessionID != info.SessionID {
		t.Errorf("Expected session %s, got %s", info.SessionID, event.SessionID)
	}
	if len(event.AffectedSensorConnIDs) != 2 {
		t.Errorf("Expected 2 affected sensors, got %d", len(event.AffectedSensorConnIDs))
	}

	// The session must be unreachable afterwards.
	if _, err := manager.UpdateSensorData(info.SessionCode, a.SensorID, &Telemetry{}); err != ErrSessionNotFound {
		t.Errorf("Expected ErrSessionNotFound after host disconnect, got %v", err)
	}
	if _, err := manager.ConnectSensor(info.SessionCode, "conn-c", "addr", DeviceInfo{}); err != ErrSessionNotFound {
		t.Errorf("Expected ErrSessionNotFound after host disconnect, got %v", err)
	}

	// Replayed disconnect notifications must be a no-op.
	event, err = manager.Disconnect("host-conn")
	if err != nil || event != nil {
		t.Errorf("Expected replayed disconnect to be a no-op, got (%+v, %v)", event, err)
	}
}

func TestManager_SensorDisconnect(t *testing.T) {
	manager := NewManager()
	info, _ := manager.CreateSession("quick-draw", GameTypeDual, "host-conn", "addr")
	a, _ := manager.ConnectSensor(info.SessionCode, "conn-a", "addr", DeviceInfo{})

	event, err := manager.Disconnect("conn-a")
	if err != nil {
		t.Fatalf("Failed to disconnect sensor: %v", err)
	}
	if event == nil || event.Type != SensorDisconnected {
		t.Fatalf("Expected sensor_disconnected event, got %+v", event)
	}
	if event.HostConnID != "host-conn" {
		t.Errorf("Expected host-conn to be notified, got %s", event.HostConnID)
	}
	if event.SensorID != a.SensorID {
		t.Errorf("Expected sensor %s, got %s", a.SensorID, event.SensorID)
	}
	if event.RemainingSensors != 0 {
		t.Errorf("Expected 0 remaining sensors, got %d", event.RemainingSensors)
	}

	// Session stays reachable; the slot is free again.
	rejoined, err := manager.ConnectSensor(info.SessionCode, "conn-a2", "addr", DeviceInfo{})
	if err != nil {
		t.Fatalf("Expected rejoin to succeed: %v", err)
	}
	if rejoined.ConnectedSensors != 1 {
		t.Errorf("Expected connectedSensors back to 1, got %d", rejoined.ConnectedSensors)
	}
}

func TestManager_Disconnect_UnknownConnection(t *testing.T) {
	manager := NewManager()

	event, err := manager.Disconnect("never-seen")
	if err != nil {
		t.Errorf("Expected no error for unknown connection, got %v", err)
	}
	if event != nil {
		t.Errorf("Expected nil event for unknown connection, got %+v", event)
	}
}

func TestManager_Close(t *testing.T) {
	manager := NewManager()
	info, _ := manager.CreateSession("quick-draw", GameTypeDual, "host-conn", "addr")
	manager.ConnectSensor(info.SessionCode, "conn-a", "addr", DeviceInfo{})

	ended, err := manager.Close(info.SessionID)
	if err != nil {
		t.Fatalf("Failed to close session: %v", err)
	}
	if ended.HostConnID != "host-conn" {
		t.Errorf("Expected host conn in teardown, got %s", ended.HostConnID)
	}
	if len(ended.SensorConnIDs) != 1 {
		t.Errorf("Expected 1 sensor conn in teardown, got %d", len(ended.SensorConnIDs))
	}

	if _, err := manager.Close(info.SessionID); err != ErrSessionNotFound {
		t.Errorf("Expected ErrSessionNotFound on second close, got %v", err)
	}
}

func TestManager_Sweep(t *testing.T) {
	manager := NewManager()
	ttl := 30 * time.Minute
	now := time.Now()

	stale, _ := manager.CreateSession("quick-draw", GameTypeSolo, "host-stale", "addr")
	fresh, _ := manager.CreateSession("quick-draw", GameTypeSolo, "host-fresh", "addr")
	manager.ConnectSensor(stale.SessionCode, "conn-stale", "addr", DeviceInfo{})

	staleSess, _ := manager.registry.FindByID(stale.SessionID)
	freshSess, _ := manager.registry.FindByID(fresh.SessionID)
	staleSess.LastActivityAt = now.Add(-ttl - time.Second)
	freshSess.LastActivityAt = now.Add(-ttl + time.Second)

	ended := manager.Sweep(now, ttl)

	if len(ended) != 1 {
		t.Fatalf("Expected 1 session swept, got %d", len(ended))
	}
	if ended[0].SessionID != stale.SessionID {
		t.Errorf("Expected stale session swept, got %s", ended[0].SessionID)
	}
	if len(ended[0].SensorConnIDs) != 1 || ended[0].SensorConnIDs[0] != "conn-stale" {
		t.Errorf("Expected conn-stale in teardown, got %v", ended[0].SensorConnIDs)
	}

	if _, err := manager.registry.FindByID(stale.SessionID); err != ErrSessionNotFound {
		t.Error("Expected stale session to be removed")
	}
	if _, err := manager.registry.FindByID(fresh.SessionID); err != nil {
		t.Error("Expected fresh session to be left untouched")
	}
}

func TestManager_Stats(t *testing.T) {
	manager := NewManager()

	solo, _ := manager.CreateSession("quick-draw", GameTypeSolo, "host-1", "addr")
	dual, _ := manager.CreateSession("quick-draw", GameTypeDual, "host-2", "addr")
	manager.CreateSession("maze", GameTypeMulti, "host-3", "addr")

	manager.ConnectSensor(solo.SessionCode, "conn-1", "addr", DeviceInfo{})
	manager.ConnectSensor(dual.SessionCode, "conn-2", "addr", DeviceInfo{})
	manager.ConnectSensor(dual.SessionCode, "conn-3", "addr", DeviceInfo{})
	manager.Disconnect("conn-3")

	stats := manager.Stats()

	if stats.TotalSessions != 3 {
		t.Errorf("Expected 3 sessions, got %d", stats.TotalSessions)
	}
	if stats.TotalSensorsConnected != 2 {
		t.Errorf("Expected 2 sensors connected, got %d", stats.TotalSensorsConnected)
	}
	if stats.ByGameType[GameTypeSolo] != 1 || stats.ByGameType[GameTypeDual] != 1 || stats.ByGameType[GameTypeMulti] != 1 {
		t.Errorf("Unexpected byGameType breakdown: %v", stats.ByGameType)
	}
	if stats.ByState[StateCreated] != 1 {
		t.Errorf("Expected 1 created session, got %d", stats.ByState[StateCreated])
	}

	// Ending a session removes it and its sensors from the aggregate.
	manager.Disconnect("host-1")
	stats = manager.Stats()
	if stats.TotalSessions != 2 {
		t.Errorf("Expected 2 sessions after host disconnect, got %d", stats.TotalSessions)
	}
	if stats.TotalSensorsConnected != 1 {
		t.Errorf("Expected 1 sensor connected after host disconnect, got %d", stats.TotalSensorsConnected)
	}
}

func TestManager_ListSessions(t *testing.T) {
	manager := NewManager()
	info, _ := manager.CreateSession("quick-draw", GameTypeDual, "host-1", "addr")
	manager.ConnectSensor(info.SessionCode, "conn-1", "addr", DeviceInfo{})

	summaries := manager.ListSessions()
	if len(summaries) != 1 {
		t.Fatalf("Expected 1 summary, got %d", len(summaries))
	}
	s := summaries[0]
	if s.SessionID != info.SessionID || s.SessionCode != info.SessionCode {
		t.Errorf("Summary identity mismatch: %+v", s)
	}
	if s.ConnectedSensors != 1 || s.MaxSensors != 2 {
		t.Errorf("Expected 1/2 sensors, got %d/%d", s.ConnectedSensors, s.MaxSensors)
	}
	if s.State != StateAwaitingSensors {
		t.Errorf("Expected awaiting_sensors, got %s", s.State)
	}

	got, err := manager.GetSession(info.SessionID)
	if err != nil {
		t.Fatalf("Failed to get session summary: %v", err)
	}
	if got.SessionID != info.SessionID {
		t.Errorf("Expected session %s, got %s", info.SessionID, got.SessionID)
	}
}

func TestManager_ConcurrentDataAndStart(t *testing.T) {
	manager := NewManager()
	info, _ := manager.CreateSession("quick-draw", GameTypeDual, "host", "addr")
	conn, _ := manager.ConnectSensor(info.SessionCode, "conn-1", "addr", DeviceInfo{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			manager.UpdateSensorData(info.SessionCode, conn.SensorID, &Telemetry{})
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		manager.StartGame(info.SessionID)
	}()
	wg.Wait()

	// After the dust settles, the next reading carries the next sequence.
	relay, err := manager.UpdateSensorData(info.SessionCode, conn.SensorID, &Telemetry{})
	if err != nil {
		t.Fatalf("Failed to update sensor data: %v", err)
	}
	if relay.Payload.Seq != 51 {
		t.Errorf("Expected seq 51 after 50 concurrent updates, got %d", relay.Payload.Seq)
	}
}
