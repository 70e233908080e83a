// The data service: loads the faction library from YAML files and serves
// it as JSON for the game server, the simulator and any deck-building UI.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"
	"go.uber.org/zap"

	"github.com/pefman/w40k-tabletop/internal/library"
)

type config struct {
	Addr       string `env:"API_ADDR,default=:8080"`
	LibraryDir string `env:"LIBRARY_DIR,default=data"`
	DevLog     bool   `env:"DEV_LOG,default=false"`
}

type server struct {
	lib *library.Library
	log *zap.Logger
}

func main() {
	var cfg config
	if err := envdecode.Decode(&cfg); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := newLogger(cfg.DevLog)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	lib, err := library.Load(cfg.LibraryDir, logger)
	if err != nil {
		logger.Fatal("load library", zap.String("dir", cfg.LibraryDir), zap.Error(err))
	}
	s := &server{lib: lib, log: logger}

	r := mux.NewRouter()
	r.HandleFunc("/api/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/factions", s.handleFactions).Methods(http.MethodGet)
	r.HandleFunc("/api/factions/{faction}/datasheets", s.handleDatasheets).Methods(http.MethodGet)
	r.HandleFunc("/api/factions/{faction}/datasheets/{sheet}", s.handleDatasheet).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Info("data service listening", zap.String("addr", cfg.Addr))
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("serve", zap.Error(err))
	}
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *server) handleFactions(w http.ResponseWriter, r *http.Request) {
	type info struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Datasheets int    `json:"datasheets"`
	}
	out := []info{}
	for _, id := range s.lib.FactionIDs() {
		f, _ := s.lib.Faction(id)
		out = append(out, info{ID: f.ID, Name: f.Name, Datasheets: len(f.Datasheets)})
	}
	writeJSON(w, out)
}

func (s *server) handleDatasheets(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lib.Faction(mux.Vars(r)["faction"])
	if !ok {
		writeError(w, http.StatusNotFound, "unknown faction")
		return
	}
	writeJSON(w, f.Datasheets)
}

func (s *server) handleDatasheet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	d, ok := s.lib.Datasheet(vars["faction"], vars["sheet"])
	if !ok {
		writeError(w, http.StatusNotFound, "unknown datasheet")
		return
	}
	writeJSON(w, d)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
