// Package callbacks decodes inline button callback data.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ParseCallbackData splits telebot's "\f<unique>|<payload>" encoding.
func ParseCallbackData(data string) (unique, payload string) {
	data = strings.TrimPrefix(data, "\f")
	unique, payload, _ = strings.Cut(data, "|")
	return strings.TrimSpace(unique), payload
}

// CallbackKey returns the unique key of the update's callback.
func CallbackKey(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		return cb.Unique
	}
	k, _ := ParseCallbackData(cb.Data)
	return k
}

// CallbackPayload returns the payload after the unique key.
func CallbackPayload(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		return cb.Data
	}
	_, payload := ParseCallbackData(cb.Data)
	return payload
}
