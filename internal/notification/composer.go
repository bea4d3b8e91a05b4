// Package notification composes and delivers unit-aware user notifications.
// Delivery is strictly fire-and-forget: every failure is logged and
// swallowed so it can never fail the operation that triggered it.
package notification

import (
	"context"
	"fmt"
	"log"

	"ecoshower-backend/internal/model"
	"ecoshower-backend/internal/store"
)

// Type identifies a notification kind for preference gating.
type Type string

// TypeWaterReady signals that the water reached the target temperature.
const TypeWaterReady Type = "WATER_READY"

// Message is a notification before rendering. Format is a constant template
// whose %s verbs are filled from the typed fields in order: device name,
// then temperature. Field values are passed as arguments, never spliced into
// the template, so a "%" in a device name renders literally.
type Message struct {
	Title       string
	Format      string
	DeviceName  string
	Temperature *model.Temperature
}

// WaterReady builds the message announcing that a device's water reached
// the target temperature.
func WaterReady(deviceName string, target model.Temperature) Message {
	return Message{
		Title:       "Water Ready!",
		Format:      "The water in %s has reached %s. You can start your shower.",
		DeviceName:  deviceName,
		Temperature: &target,
	}
}

// Composer builds and sends notifications using the recipient's preferences.
type Composer struct {
	users   store.UserStore
	channel Channel
}

// NewComposer creates a Composer.
func NewComposer(users store.UserStore, channel Channel) *Composer {
	return &Composer{users: users, channel: channel}
}

// Notify renders the message for the user and publishes it to their channel.
// Missing user, missing channel ref, disabled preference and publish errors
// are all logged no-ops.
func (c *Composer) Notify(ctx context.Context, userID string, msg Message, typ Type, deviceID string) {
	user, err := c.users.Get(ctx, userID)
	if err != nil {
		log.Printf("notification: user %s lookup failed: %v", userID, err)
		return
	}

	if user.NotificationChannel == "" {
		log.Printf("notification: no channel for user %s, skipping", userID)
		return
	}

	if !c.enabled(user, typ) {
		log.Printf("notification: user %s has %s alerts disabled, skipping", userID, typ)
		return
	}

	body := c.render(user, msg)
	payload := Payload{
		Message: body,
		Push: PushPayload{
			Title:    msg.Title,
			Body:     body,
			Type:     string(typ),
			DeviceID: deviceID,
			UserID:   userID,
		},
		UserID: userID,
	}

	if err := c.channel.Publish(ctx, user.NotificationChannel, payload); err != nil {
		log.Printf("notification: publish to user %s failed: %v", userID, err)
		return
	}
	log.Printf("notification: sent %s to user %s", typ, userID)
}

// enabled checks the per-type preference flag, defaulting to true when the
// preference was never set.
func (c *Composer) enabled(user *model.User, typ Type) bool {
	switch typ {
	case TypeWaterReady:
		return user.Notifications.WaterReadyEnabled()
	}
	return true
}

// render formats the message body from its typed fields, converting the
// temperature to the user's preferred unit first.
func (c *Composer) render(user *model.User, msg Message) string {
	var args []any
	if msg.DeviceName != "" {
		args = append(args, msg.DeviceName)
	}
	if msg.Temperature != nil {
		temp := *msg.Temperature
		if user.System.TemperatureUnit == model.UnitFahrenheit {
			temp = temp.In(model.UnitFahrenheit)
		}
		args = append(args, temp)
	}
	if len(args) == 0 {
		return msg.Format
	}
	return fmt.Sprintf(msg.Format, args...)
}
