// Package command publishes control commands to devices over a
// device-addressed topic. Dispatch is one-way and fire-and-forget: callers
// log failures and move on.
package command

import (
	"context"
	"time"
)

// Command is a control instruction understood by the device firmware.
type Command string

// Commands accepted by devices.
const (
	StartHeating Command = "START_HEATING"
	StopHeating  Command = "STOP_HEATING"
	OpenValve    Command = "OPEN_VALVE"
	CloseValve   Command = "CLOSE_VALVE"
)

// Valid reports whether c is a known command.
func (c Command) Valid() bool {
	switch c {
	case StartHeating, StopHeating, OpenValve, CloseValve:
		return true
	}
	return false
}

// Publisher sends a command to a single device.
type Publisher interface {
	Publish(ctx context.Context, deviceID string, cmd Command) error
}

// payload is the JSON body published to the device topic.
type payload struct {
	Command   Command `json:"command"`
	Timestamp string  `json:"timestamp"`
}

func newPayload(cmd Command, now time.Time) payload {
	return payload{Command: cmd, Timestamp: now.UTC().Format(time.RFC3339)}
}
