package comfy

import (
	"net/url"
	"strings"
)

// File identifies a file the backend produced.
type File struct {
	Filename  string
	Subfolder string
	Type      string
}

// ViewURL builds the /view URL of a produced file. preview and channel are
// optional. It fails when base is not a valid absolute URL.
func ViewURL(base string, f File, preview, channel string) (string, bool) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" || f.Filename == "" {
		return "", false
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/view"
	u.RawPath = ""

	q := url.Values{}
	q.Set("filename", f.Filename)
	if f.Subfolder != "" {
		q.Set("subfolder", f.Subfolder)
	}
	if f.Type != "" {
		q.Set("type", f.Type)
	}
	if preview != "" {
		q.Set("preview", preview)
	}
	if channel != "" {
		q.Set("channel", channel)
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String(), true
}

// WebSocketURL builds the event stream URL for a client id. https maps to
// wss and anything else to ws; the path is always /ws.
func WebSocketURL(base, clientID string) (string, bool) {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawPath = ""
	q := url.Values{}
	q.Set("clientId", clientID)
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String(), true
}
