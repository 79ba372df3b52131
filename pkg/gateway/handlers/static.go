package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gorilla/websocket"
)

// StaticHandler serves the browser client from Dir. WebSocket upgrades on
// the root path go to Relay, so clients may connect to "/" directly.
type StaticHandler struct {
	Dir      string
	Relay    http.Handler
	NotFound http.Handler
}

func (h StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" && h.Relay != nil && websocket.IsWebSocketUpgrade(r) {
		h.Relay.ServeHTTP(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		h.notFound(w, r)
		return
	}
	if strings.TrimSpace(h.Dir) == "" {
		h.notFound(w, r)
		return
	}

	name := path.Clean("/" + r.URL.Path)
	if name == "/" {
		name = "/index.html"
	}
	root := os.DirFS(h.Dir)
	rel := strings.TrimPrefix(name, "/")
	info, err := fs.Stat(root, rel)
	if err != nil || info.IsDir() {
		if err != nil && !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fs.ErrInvalid) {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		h.notFound(w, r)
		return
	}
	http.ServeFileFS(w, r, root, rel)
}

func (h StaticHandler) notFound(w http.ResponseWriter, r *http.Request) {
	if h.NotFound != nil {
		h.NotFound.ServeHTTP(w, r)
		return
	}
	http.NotFound(w, r)
}
