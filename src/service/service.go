package service

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/gamegineer/tablenet/src/net"
	"github.com/gamegineer/tablenet/src/node"
	"github.com/gamegineer/tablenet/src/table"
)

// TableView is the read side of a table.
type TableView interface {
	ID() string
	Root() *table.Component
	Component(path *table.ComponentPath) (*table.Component, error)
}

// Player is the JSON form of a net.Player.
type Player struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// Table is the JSON form of a table.
type Table struct {
	ID         string           `json:"id"`
	Components int              `json:"components"`
	Root       *table.Component `json:"root"`
}

// Service exposes the state of a local node and its table over HTTP. It is
// read-only.
type Service struct {
	sync.Mutex

	bindAddress string
	node        node.LocalNode
	table       TableView
	mux         *http.ServeMux
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, n node.LocalNode, t TableView, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		table:       t,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering table API handlers")
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/players", s.makeHandler(s.GetPlayers))
	s.mux.HandleFunc("/table", s.makeHandler(s.GetTable))
	s.mux.HandleFunc("/component/", s.makeHandler(s.GetComponent))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the handler serving the API.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving table API")

	err := http.ListenAndServe(s.bindAddress, s.mux)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.node.GetStats()

	writeJSON(w, stats)
}

// GetPlayers ...
func (s *Service) GetPlayers(w http.ResponseWriter, r *http.Request) {
	players := s.node.Players()

	res := make([]Player, len(players))
	for i, p := range players {
		res[i] = newPlayer(p)
	}

	writeJSON(w, res)
}

// GetTable ...
func (s *Service) GetTable(w http.ResponseWriter, r *http.Request) {
	root := s.table.Root()

	writeJSON(w, Table{
		ID:         s.table.ID(),
		Components: root.Count() - 1,
		Root:       root,
	})
}

// GetComponent returns the component at the path given as slash-separated
// child indices, as in /component/1/0.
func (s *Service) GetComponent(w http.ResponseWriter, r *http.Request) {
	param := strings.Trim(r.URL.Path[len("/component/"):], "/")

	var indices []int
	if param != "" {
		for _, field := range strings.Split(param, "/") {
			index, err := strconv.Atoi(field)
			if err != nil {
				s.logger.WithError(err).Errorf("Parsing component path %s", param)

				http.Error(w, err.Error(), http.StatusBadRequest)

				return
			}
			indices = append(indices, index)
		}
	}

	path, err := table.ComponentPathFromIndices(indices)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	component, err := s.table.Component(path)
	if err != nil {
		s.logger.WithError(err).Debugf("Retrieving component %s", path)

		http.Error(w, err.Error(), http.StatusNotFound)

		return
	}

	writeJSON(w, component)
}

func newPlayer(p net.Player) Player {
	res := Player{
		Name:  p.Name,
		Roles: []string{},
	}
	if p.Roles != 0 {
		res.Roles = strings.Split(p.Roles.String(), "|")
	}
	return res
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(v)
}
