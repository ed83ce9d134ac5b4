// Package automation provides the device automation manager for
// Helios Core.
//
// The manager converts a stream of inverter power readings into device
// activate/deactivate decisions. Each reading is one tick: compute the
// surplus (solar production minus load), apply a hysteresis band to
// avoid oscillation, then either greedily activate off devices into a
// positive surplus or shed active devices against a deficit.
//
// Architecture:
//
//	┌─────────────────────────────────────────────────────────┐
//	│                 Manager (manager.go)                     │
//	│  One serialised tick per power reading                   │
//	│  ┌──────────────┐    ┌────────────────────┐             │
//	│  │   Registry   │    │  EventRepository   │             │
//	│  │  (devices)   │    │  (append-only log) │             │
//	│  └──────────────┘    └────────────────────┘             │
//	│        │                                                 │
//	│        ▼                                                 │
//	│  ┌──────────────────────────────────────────────┐       │
//	│  │  Decision Pipeline                            │       │
//	│  │  1. surplus = solar - load                    │       │
//	│  │  2. |surplus| < threshold: no-op              │       │
//	│  │  3. Sort candidates by priority               │       │
//	│  │  4. Category rules gate activation            │       │
//	│  │  5. Toggle, persist, append event             │       │
//	│  │  6. Fan out: MQTT, WebSocket, InfluxDB        │       │
//	│  └──────────────────────────────────────────────┘       │
//	└─────────────────────────────────────────────────────────┘
//
// # Decision Rules
//
// Activation walks off devices by priority descending, cheapest first
// within a priority. Category rules gate each candidate: appliances
// only during the peak solar window (10:00-16:00), pool pumps during
// daytime (08:00-18:00), EV charging only while more than 2000 W of
// surplus remains. A candidate activates when its draw fits the
// remaining surplus.
//
// Shedding walks active devices by priority ascending. Low priority is
// always shed, medium only against a deficit above 1000 W, and during
// the evening peak (18:00-22:00) everything below high priority sheds.
// Essential devices are never shed.
//
// Devices under manual override are invisible to both algorithms until
// overrides are cleared.
//
// # Thread Safety
//
// All Manager methods are safe for concurrent use. Ticks, manual
// control, and configuration changes are serialised behind one mutex,
// so a tick's read phase never observes another tick's partial writes.
//
// # Usage
//
//	events := automation.NewSQLiteEventRepository(db)
//	manager := automation.NewManager(registry, events, mqttClient, hub, metrics, cfg, log)
//
//	if err := manager.Restore(ctx); err != nil {
//	    return err
//	}
//	manager.Update(ctx, reading) // once per poll
package automation
