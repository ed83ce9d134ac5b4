package mqtt

import "errors"

// Sentinel errors for broker operations. Callers branch with
// errors.Is; the wrapped form carries the underlying paho error.
var (
	ErrConnectionFailed  = errors.New("mqtt: connection failed")
	ErrNotConnected      = errors.New("mqtt: client not connected")
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")
	ErrInvalidTopic      = errors.New("mqtt: topic cannot be empty")
	ErrInvalidQoS        = errors.New("mqtt: qos must be 0, 1 or 2")
)
