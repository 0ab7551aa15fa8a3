package web

import (
	"encoding/gob"

	"github.com/gorilla/sessions"
)

const flashSession = "storefront-flash"

func init() {
	gob.Register(FlashMessage{})
}

type FlashMessage struct {
	Type    string
	Message string
}

func GetFlash(session *sessions.Session) []FlashMessage {
	var messages []FlashMessage
	for _, f := range session.Flashes() {
		if fm, ok := f.(FlashMessage); ok {
			messages = append(messages, fm)
		}
	}
	return messages
}

func success(msg string) FlashMessage { return FlashMessage{Type: "success", Message: msg} }

func failure(msg string) FlashMessage { return FlashMessage{Type: "error", Message: msg} }
