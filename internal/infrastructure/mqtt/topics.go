package mqtt

import "fmt"

// Topic prefixes for the Helios MQTT hierarchy.
//
// All topics use the flat scheme: helios/{category}/{id}
const (
	// TopicPrefix is the base for all Helios topics.
	TopicPrefix = "helios"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "helios/system"
)

// Topics provides builders for Helios MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	cmdTopic := topics.DeviceCommand("water-heater")
//	// Returns: "helios/command/water-heater"
type Topics struct{}

// DeviceCommand returns the topic for on/off commands to a device.
//
// Example: helios/command/water-heater
func (Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, deviceID)
}

// DeviceState returns the topic for state reports from a device.
//
// Example: helios/state/water-heater
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, deviceID)
}

// AutomationEvent returns the topic automation events are published to.
//
// Example: helios/event/automation
func (Topics) AutomationEvent() string {
	return fmt.Sprintf("%s/event/automation", TopicPrefix)
}

// PowerReading returns the topic inverter power readings arrive on.
//
// Example: helios/reading/power
func (Topics) PowerReading() string {
	return fmt.Sprintf("%s/reading/power", TopicPrefix)
}

// SystemStatus returns the system status topic. Used for the LWT so
// subscribers see "offline" if the controller drops off the broker.
//
// Example: helios/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDeviceStates returns a pattern matching all device state reports.
//
// Pattern: helios/state/+
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/state/+", TopicPrefix)
}

// AllTopics returns a pattern matching all Helios topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: helios/#
func (Topics) AllTopics() string {
	return "helios/#"
}
