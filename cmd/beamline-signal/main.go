package main

import (
	"log"
	"net/http"
	"os"

	"github.com/beamline/beamline/internal/server"
	"github.com/beamline/beamline/internal/signaling"
)

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("beamline signaling server is healthy."))
}

func main() {
	hub := signaling.NewHub()
	go hub.Run()

	http.HandleFunc("/", healthCheckHandler)
	http.HandleFunc("/ws", server.ServeWs(hub))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	addr := ":" + port

	log.Printf("beamline-signal: listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}
