// Package mqtt is the broker transport for Helios Core. The controller
// publishes device commands and state on helios/command/{id} and
// helios/state/{id}, emits automation events on helios/event/automation,
// and can receive inverter readings on helios/reading/power.
//
// Connect blocks until the first connection; after that paho's
// auto-reconnect takes over and the client replays tracked
// subscriptions on every reconnect. A retained status message on
// helios/system/status says whether the controller is online, with the
// broker's last will covering unclean exits.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.Subscribe(mqtt.Topics{}.AllDeviceStates(), 1, onState)
//	client.Publish(mqtt.Topics{}.DeviceCommand("water-heater"),
//	    []byte(`{"action":"turn_on"}`), 1, false)
//
// Enable cfg.Broker.TLS outside of local development; payloads are
// plaintext beyond the transport.
package mqtt
