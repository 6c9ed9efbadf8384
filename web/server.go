package web

import (
	"fmt"
	"log"
	"net/http"
)

// Server bundles the broadcast hub with the HTTP mux serving it.
type Server struct {
	Hub *Hub
}

func NewServer() *Server {
	return &Server{Hub: NewHub()}
}

// Handler builds the mux: the websocket endpoint plus, when distDir is
// non-empty, the static dashboard files.
func (s *Server) Handler(distDir string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWs(s.Hub, w, r)
	})
	if distDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(distDir)))
	}
	return mux
}

// Start runs the hub and blocks serving HTTP on the given port.
func (s *Server) Start(port int, distDir string) error {
	go s.Hub.Run()

	addr := fmt.Sprintf(":%d", port)
	log.Printf("dashboard listening on %s", addr)
	return http.ListenAndServe(addr, s.Handler(distDir))
}
