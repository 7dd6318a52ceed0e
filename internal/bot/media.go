package bot

import (
	"bytes"
	"encoding/base64"

	tele "gopkg.in/telebot.v3"
)

// qrisPhoto turns the QRIS API's base64 PNG into a sendable photo.
// Returns nil when the payload does not decode.
func qrisPhoto(b64, caption string) *tele.Photo {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil || len(raw) == 0 {
		return nil
	}
	return &tele.Photo{
		File:    tele.FromReader(bytes.NewReader(raw)),
		Caption: caption,
	}
}
