package server

import (
	"encoding/xml"
	"log/slog"
	"net/http"
)

// TwiML response types for the telephony webhooks. Field order matters:
// encoding/xml emits children in struct order and the provider executes
// verbs top to bottom.

type twiml struct {
	XMLName  xml.Name      `xml:"Response"`
	Gather   *twimlGather  `xml:"Gather,omitempty"`
	Say      []twimlSay    `xml:"Say,omitempty"`
	Redirect string        `xml:"Redirect,omitempty"`
	Connect  *twimlConnect `xml:"Connect,omitempty"`
}

type twimlSay struct {
	Voice    string `xml:"voice,attr,omitempty"`
	Language string `xml:"language,attr,omitempty"`
	Text     string `xml:",chardata"`
}

type twimlGather struct {
	NumDigits int        `xml:"numDigits,attr"`
	Action    string     `xml:"action,attr"`
	Method    string     `xml:"method,attr"`
	Timeout   int        `xml:"timeout,attr"`
	Say       []twimlSay `xml:"Say,omitempty"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL string `xml:"url,attr"`
}

// writeTwiML serialises the response document with the XML declaration the
// telephony provider expects.
func writeTwiML(w http.ResponseWriter, resp twiml) {
	w.Header().Set("Content-Type", "application/xml")
	body, err := xml.Marshal(resp)
	if err != nil {
		slog.Error("encode twiml", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(body)
}
