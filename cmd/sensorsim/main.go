// Command sensorsim drives a running hub with synthetic traffic. It opens a
// host connection, creates a session, attaches the requested number of
// simulated sensors, starts the game, and streams telemetry at a fixed rate
// while counting the updates relayed back to the host. Useful for smoke
// testing a deployment and for eyeballing relay throughput.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	gwebsocket "github.com/gorilla/websocket"
	"github.com/wricardo/sensor-game-hub/session"
	"github.com/wricardo/sensor-game-hub/transport/websocket"
)

var (
	hubURL   = flag.String("url", "ws://localhost:3000/ws", "WebSocket URL of the hub")
	gameType = flag.String("game-type", "dual", "Game type for the session (solo, dual, multi)")
	sensors  = flag.Int("sensors", 2, "Number of simulated sensors to attach")
	rate     = flag.Int("rate", 20, "Telemetry readings per second per sensor")
	duration = flag.Duration("duration", 5*time.Second, "How long to stream telemetry")
)

func main() {
	flag.Parse()

	gt := session.GameType(*gameType)
	if !gt.Valid() {
		log.Fatalf("Invalid game type %q (use solo, dual, or multi)", *gameType)
	}
	if *sensors < 1 || *sensors > gt.MaxSensors() {
		log.Fatalf("Sensor count %d out of range for %s (max %d)", *sensors, gt, gt.MaxSensors())
	}

	host := dial(*hubURL)
	defer host.Close()

	// Open the session
	sendEvent(host, websocket.EventCreateSession, websocket.CreateSessionRequest{
		GameID:   "sensorsim",
		GameType: gt,
	})

	var created websocket.SessionCreatedPayload
	waitFor(host, websocket.EventSessionCreated, &created)
	if !created.Success {
		log.Fatalf("Session creation refused: %s", created.Error)
	}
	info := created.Session
	fmt.Printf("Session %s created (code %s, type %s, %d sensor slots)\n",
		info.SessionID, info.SessionCode, info.GameType, info.MaxSensors)

	// Attach sensors
	conns := make([]*gwebsocket.Conn, *sensors)
	ids := make([]string, *sensors)
	for i := range conns {
		conns[i] = dial(*hubURL)
		defer conns[i].Close()

		sendEvent(conns[i], websocket.EventConnectSensor, websocket.ConnectSensorRequest{
			SessionCode: info.SessionCode,
			DeviceInfo:  session.DeviceInfo{UserAgent: "sensorsim", Platform: "cli"},
		})

		var connected websocket.ConnectedPayload
		waitFor(conns[i], websocket.EventConnected, &connected)
		if !connected.Success {
			log.Fatalf("Sensor %d refused: %s", i+1, connected.Error)
		}
		ids[i] = connected.Connection.SensorID
		fmt.Printf("Sensor %s attached (%d/%d)\n",
			ids[i], connected.Connection.ConnectedSensors, connected.Connection.MaxSensors)
	}

	// Drain the join notices, then start the game
	for i := 0; i < *sensors; i++ {
		var notice websocket.SensorConnectedNotice
		waitFor(host, websocket.EventSensorConnected, &notice)
	}
	if *sensors == info.MaxSensors {
		var ready websocket.GameReadyNotice
		waitFor(host, websocket.EventGameReady, &ready)
		fmt.Println("All sensor slots filled, session ready")
	}

	sendEvent(host, websocket.EventStartGame, websocket.StartGameRequest{SessionID: info.SessionID})

	var started websocket.GameStartedPayload
	waitFor(host, websocket.EventGameStarted, &started)
	if !started.Success {
		log.Fatalf("Start refused: %s", started.Error)
	}
	fmt.Printf("Game started with sensors %v\n", started.Game.SensorIDs)

	// Count relayed updates on the host side
	var received int64
	go func() {
		for {
			var env websocket.Envelope
			if err := host.ReadJSON(&env); err != nil {
				return
			}
			if env.Event == websocket.EventSensorUpdate {
				atomic.AddInt64(&received, 1)
			}
		}
	}()

	// Stream telemetry from every sensor
	var sent int64
	var wg sync.WaitGroup
	interval := time.Second / time.Duration(*rate)
	deadline := time.Now().Add(*duration)

	for i := range conns {
		wg.Add(1)
		go func(conn *gwebsocket.Conn, sensorID string, phase int) {
			defer wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for now := range ticker.C {
				if now.After(deadline) {
					return
				}
				sendEvent(conn, websocket.EventSensorData, websocket.SensorDataRequest{
					SessionCode: info.SessionCode,
					SensorID:    sensorID,
					SensorData:  nextReading(phase, now),
				})
				atomic.AddInt64(&sent, 1)
			}
		}(conns[i], ids[i], i)
	}

	wg.Wait()
	// Let the last relays land before counting
	time.Sleep(200 * time.Millisecond)

	got := atomic.LoadInt64(&received)
	want := atomic.LoadInt64(&sent)
	fmt.Printf("\nSent %d readings, host received %d updates (%.1f%%) over %s\n",
		want, got, 100*float64(got)/float64(want), *duration)
	if got < want {
		fmt.Printf("Note: %d updates not observed (dropped or still in flight)\n", want-got)
		os.Exit(1)
	}
}

// dial opens a WebSocket connection or exits.
func dial(url string) *gwebsocket.Conn {
	conn, _, err := gwebsocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("Failed to dial %s: %v", url, err)
	}
	return conn
}

// sendEvent writes one enveloped event to the connection.
func sendEvent(conn *gwebsocket.Conn, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("Failed to marshal %s payload: %v", event, err)
	}
	if err := conn.WriteJSON(websocket.Envelope{Event: event, Data: data}); err != nil {
		log.Fatalf("Failed to send %s: %v", event, err)
	}
}

// waitFor reads envelopes until the named event arrives, decoding its
// payload into out. Unrelated events are skipped.
func waitFor(conn *gwebsocket.Conn, event string, out interface{}) {
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer conn.SetReadDeadline(time.Time{})

	for {
		var env websocket.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			log.Fatalf("Failed waiting for %s: %v", event, err)
		}
		if env.Event != event {
			continue
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			log.Fatalf("Failed to decode %s payload: %v", event, err)
		}
		return
	}
}

// nextReading fabricates a plausible motion reading. Each sensor gets a
// phase offset so concurrent streams are distinguishable in logs.
func nextReading(phase int, now time.Time) *session.Telemetry {
	t := float64(now.UnixMilli())/1000 + float64(phase)
	return &session.Telemetry{
		Orientation: &session.Orientation{
			Alpha: math.Mod(t*40, 360),
			Beta:  30 * math.Sin(t),
			Gamma: 30 * math.Cos(t),
		},
		Acceleration: &session.Vector3{
			X: math.Sin(t * 2),
			Y: math.Cos(t * 2),
			Z: 9.81,
		},
		RotationRate: &session.Orientation{
			Alpha: 5 * math.Sin(t),
			Beta:  5 * math.Cos(t),
			Gamma: 0,
		},
		Timestamp: now.UnixMilli(),
	}
}
