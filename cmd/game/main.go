// The game server: hosts one rules-engine controller per room and speaks
// the websocket protocol in internal/models. Armies come from the data
// service; every mutation reaches clients as the diff list the engine
// produced, so a client replaying the stream stays in sync.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/joeshaw/envdecode"
	uuid "github.com/satori/go.uuid"
	"go.uber.org/zap"

	"github.com/pefman/w40k-tabletop/internal/api"
	"github.com/pefman/w40k-tabletop/internal/collab"
	"github.com/pefman/w40k-tabletop/internal/engine"
	"github.com/pefman/w40k-tabletop/internal/game"
	"github.com/pefman/w40k-tabletop/internal/models"
	"github.com/pefman/w40k-tabletop/internal/phases"
	"github.com/pefman/w40k-tabletop/internal/state"
	"github.com/pefman/w40k-tabletop/internal/stats"
)

type config struct {
	Addr        string  `env:"GAME_ADDR,default=:8081"`
	DataAPIBase string  `env:"DATA_API_BASE,default=http://localhost:8080"`
	BoardWidth  float64 `env:"BOARD_WIDTH,default=60"`
	BoardHeight float64 `env:"BOARD_HEIGHT,default=44"`
	DevLog      bool    `env:"DEV_LOG,default=false"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// room is one running match. The mutex is the single-writer rule: one
// action is processed to completion before the next is read.
type room struct {
	id      string
	created int64

	mu      sync.Mutex
	ctrl    *phases.Controller
	dice    *engine.Dice
	rolls   int
	conns   map[int]*websocket.Conn
	started bool
}

type server struct {
	cfg  config
	data *api.Client
	log  *zap.Logger

	mu    sync.Mutex
	rooms map[string]*room
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

	s := &server{
		cfg:   cfg,
		data:  api.NewClient(cfg.DataAPIBase),
		log:   logger,
		rooms: map[string]*room{},
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/rooms", s.handleCreateRoom).Methods(http.MethodPost)
	r.HandleFunc("/api/rooms", s.handleListRooms).Methods(http.MethodGet)
	r.HandleFunc("/api/rooms/{room}/state", s.handleRoomState).Methods(http.MethodGet)
	r.HandleFunc("/api/rooms/{room}/stats", s.handleRoomStats).Methods(http.MethodGet)
	r.HandleFunc("/api/stats/max-attack", s.handleMaxAttack).Methods(http.MethodGet)
	r.HandleFunc("/ws/{room}", s.handleSocket)

	// No read/write timeouts: websocket connections are long-lived.
	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	logger.Info("game server listening",
		zap.String("addr", cfg.Addr),
		zap.String("data_api", cfg.DataAPIBase))
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

// createRoomRequest picks two armies from the data service.
type createRoomRequest struct {
	Seed   int64          `json:"seed"`
	Armies [2]armyRequest `json:"armies"`
}

type armyRequest struct {
	Name  string `json:"name"`
	Units []struct {
		ID        string `json:"id"`
		Faction   string `json:"faction"`
		Datasheet string `json:"datasheet"`
		Count     int    `json:"count"`
	} `json:"units"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}
	g := newBoard(s.cfg.BoardWidth, s.cfg.BoardHeight)
	for player := 1; player <= 2; player++ {
		army := req.Armies[player-1]
		if len(army.Units) == 0 {
			writeError(w, http.StatusBadRequest, "both armies need units")
			return
		}
		g.Players[player].Name = army.Name
		prefix := "p1-"
		if player == 2 {
			prefix = "p2-"
		}
		for _, u := range army.Units {
			sheet, err := s.data.Datasheet(r.Context(), u.Faction, u.Datasheet)
			if err != nil {
				s.log.Warn("datasheet fetch failed",
					zap.String("faction", u.Faction),
					zap.String("sheet", u.Datasheet),
					zap.Error(err))
				writeError(w, http.StatusBadGateway, "datasheet lookup failed")
				return
			}
			count := u.Count
			if count == 0 {
				count = sheet.DefaultCount
			}
			g.AddUnit(prefix+u.ID, player, count, sheet.BaseMM, sheet.Profile)
		}
	}

	dice := engine.NewDice(req.Seed).WithLogger(s.log)
	rm := &room{
		id:      uuid.NewV4().String(),
		created: time.Now().Unix(),
		ctrl:    phases.NewController(g, dice, collab.Defaults(), s.log),
		dice:    dice,
		conns:   map[int]*websocket.Conn{},
	}
	s.mu.Lock()
	s.rooms[rm.id] = rm
	s.mu.Unlock()
	s.log.Info("room created", zap.String("room", rm.id), zap.Int64("seed", req.Seed))
	writeJSON(w, map[string]string{"room": rm.id})
}

// newBoard builds an empty match with the standard deployment zones: a
// 12-inch strip along each long board edge.
func newBoard(width, height float64) *state.Game {
	g := state.NewGame(width, height)
	g.Board.Zones[1] = state.Zone{MinX: 0, MinY: 0, MaxX: width, MaxY: 12}
	g.Board.Zones[2] = state.Zone{MinX: 0, MinY: height - 12, MaxX: width, MaxY: height}
	return g
}

func (s *server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rooms := make([]*room, 0, len(s.rooms))
	for _, rm := range s.rooms {
		rooms = append(rooms, rm)
	}
	s.mu.Unlock()

	out := []models.RoomSummary{}
	for _, rm := range rooms {
		rm.mu.Lock()
		g := rm.ctrl.Game()
		out = append(out, models.RoomSummary{
			ID:      rm.id,
			Players: len(rm.conns),
			Phase:   g.Meta.Phase,
			Round:   g.Meta.Round,
			Actor:   rm.ctrl.CurrentActor(),
			Ended:   g.Meta.BattleEnded,
			Created: rm.created,
		})
		rm.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created > out[j].Created })
	writeJSON(w, out)
}

func (s *server) room(id string) *room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[id]
}

func (s *server) handleRoomState(w http.ResponseWriter, r *http.Request) {
	rm := s.room(mux.Vars(r)["room"])
	if rm == nil {
		writeError(w, http.StatusNotFound, "unknown room")
		return
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	writeJSON(w, models.Envelope{
		Type:    models.MsgSnapshot,
		Game:    rm.ctrl.Game(),
		Actions: rm.ctrl.AvailableActions(),
	})
}

func (s *server) handleRoomStats(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["room"]
	if s.room(id) == nil {
		writeError(w, http.StatusNotFound, "unknown room")
		return
	}
	writeJSON(w, stats.Match(id))
}

func (s *server) handleMaxAttack(w http.ResponseWriter, r *http.Request) {
	best, ok := stats.MaxAttackToday()
	if !ok {
		writeJSON(w, map[string]any{})
		return
	}
	writeJSON(w, best)
}

func (s *server) handleSocket(w http.ResponseWriter, r *http.Request) {
	rm := s.room(mux.Vars(r)["room"])
	if rm == nil {
		writeError(w, http.StatusNotFound, "unknown room")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	seat := rm.takeSeat(conn)
	if seat == 0 {
		_ = conn.WriteJSON(models.Envelope{Type: models.MsgError, Error: "room is full"})
		return
	}
	defer rm.leaveSeat(seat)
	s.log.Info("player joined", zap.String("room", rm.id), zap.Int("seat", seat))

	rm.mu.Lock()
	_ = conn.WriteJSON(models.Envelope{Type: models.MsgJoined, Player: seat, Room: rm.id})
	if !rm.started && len(rm.conns) == 2 {
		rm.started = true
		events := rm.ctrl.Start()
		rm.broadcastLocked(models.Envelope{Type: models.MsgSnapshot,
			Game: rm.ctrl.Game(), Actions: rm.ctrl.AvailableActions()})
		for i := range events {
			rm.broadcastLocked(models.Envelope{Type: models.MsgEvent, Event: &events[i]})
		}
	}
	rm.mu.Unlock()

	for {
		var env models.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			s.log.Info("player left", zap.String("room", rm.id), zap.Int("seat", seat))
			return
		}
		s.dispatch(rm, seat, conn, env)
	}
}

func (s *server) dispatch(rm *room, seat int, conn *websocket.Conn, env models.Envelope) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	switch env.Type {
	case models.MsgJoin:
		if env.Name != "" {
			rm.ctrl.Game().Players[seat].Name = env.Name
		}
		_ = conn.WriteJSON(models.Envelope{Type: models.MsgJoined, Player: seat, Room: rm.id})
	case models.MsgState:
		_ = conn.WriteJSON(models.Envelope{Type: models.MsgSnapshot,
			Game: rm.ctrl.Game(), Actions: rm.ctrl.AvailableActions()})
	case models.MsgLegal:
		_ = conn.WriteJSON(models.Envelope{Type: models.MsgActions,
			Actions: rm.ctrl.AvailableActions()})
	case models.MsgAction:
		if env.Action == nil {
			_ = conn.WriteJSON(models.Envelope{Type: models.MsgError, Error: "action frame without an action"})
			return
		}
		if env.Action.Player != seat {
			_ = conn.WriteJSON(models.Envelope{Type: models.MsgError, Error: "action player does not match your seat"})
			return
		}
		res := rm.ctrl.SubmitAction(*env.Action)
		stats.RecordAction(rm.id, res.Success, len(res.Diffs))
		if n := len(rm.dice.Log()); n > rm.rolls {
			stats.RecordRolls(rm.id, n-rm.rolls)
			rm.rolls = n
		}
		if mr, ok := res.Extra["melee"].(game.MeleeResult); ok && mr.DamageTotal > 0 {
			stats.ReportAttack(stats.MaxAttack{
				Room: rm.id, Unit: env.Action.Unit, Weapon: env.Action.Weapon,
				Unsaved: mr.Unsaved, Damage: mr.DamageTotal,
			})
		}
		if !res.Success {
			// Rejections go only to the submitter; nothing changed.
			_ = conn.WriteJSON(models.Envelope{Type: models.MsgResult, Result: &res})
			return
		}
		rm.broadcastLocked(models.Envelope{Type: models.MsgResult, Result: &res})
	default:
		_ = conn.WriteJSON(models.Envelope{Type: models.MsgError, Error: "unknown message type " + env.Type})
	}
}

func (rm *room) takeSeat(conn *websocket.Conn) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for seat := 1; seat <= 2; seat++ {
		if rm.conns[seat] == nil {
			rm.conns[seat] = conn
			return seat
		}
	}
	return 0
}

func (rm *room) leaveSeat(seat int) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.conns, seat)
}

// broadcastLocked writes to every seat; the caller holds rm.mu.
func (rm *room) broadcastLocked(env models.Envelope) {
	for _, c := range rm.conns {
		_ = c.WriteJSON(env)
	}
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
