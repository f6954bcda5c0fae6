package beltforge

import (
	"context"
	"errors"

	"beltforge/internal/anneal"
	"beltforge/internal/grid"
	"beltforge/internal/layoutio"
	"beltforge/internal/model"
	"beltforge/internal/optimizer"
	"beltforge/internal/routing"
	"beltforge/internal/scoring"
	"beltforge/internal/storage"

	"github.com/google/uuid"
)

const defaultDBPath = "beltforge.db"

// Options configures a Client. StoreKind is "memory" (default) or
// "sqlite"; DBPath is only consulted for the sqlite backend.
type Options struct {
	StoreKind string
	DBPath    string
}

// Client is the public facade over the grid/routing/optimizer core.
type Client struct {
	store storage.Store
}

// New builds a Client and its persistence backend, but does not call
// Init — callers control when the backend actually opens a connection.
func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}
	return &Client{store: store}, nil
}

// Init prepares the persistence backend for use.
func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Close releases the persistence backend, if the backend supports it.
func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// CreateGrid builds a fresh, empty grid.
func (c *Client) CreateGrid(width, height int) *grid.GridState {
	return grid.New(width, height)
}

// PlaceMachineRequest describes a machine to place. ID is generated with
// a UUID when left blank, mirroring the teacher's default-ID convention
// for entities a caller doesn't need to name itself.
type PlaceMachineRequest struct {
	Grid        *grid.GridState
	ID          string
	Type        model.MachineType
	X, Y        int
	Orientation model.Direction
}

// PlaceMachine places a machine on the grid, returning the placed
// machine (with its resolved id) and whether the placement succeeded.
func (c *Client) PlaceMachine(req PlaceMachineRequest) (model.Machine, bool) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	m := model.Machine{ID: id, Type: req.Type, X: req.X, Y: req.Y, Orientation: req.Orientation}
	return m, req.Grid.Place(m)
}

// RemoveMachine removes a placed machine and its cells from the grid.
func (c *Client) RemoveMachine(g *grid.GridState, machineID string) {
	g.RemoveMachine(machineID)
}

// MachinePorts returns a placed machine's input and output ports.
func (c *Client) MachinePorts(g *grid.GridState, machineID string) (inputs, outputs []model.Port) {
	return g.Ports(machineID)
}

// ConnectRequest describes a connection to wire. ID is generated with a
// UUID when left blank.
type ConnectRequest struct {
	Grid          *grid.GridState
	ID            string
	SourceMachine string
	SourcePort    int
	TargetMachine string
	TargetPort    int
}

// Connect wires a directed connection between two ports, rejecting a
// duplicate port assignment or a machine wired to itself.
func (c *Client) Connect(req ConnectRequest) (model.Connection, error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	conn := model.Connection{
		ID:            id,
		SourceMachine: req.SourceMachine,
		SourcePort:    req.SourcePort,
		TargetMachine: req.TargetMachine,
		TargetPort:    req.TargetPort,
	}
	if err := req.Grid.AddConnection(conn); err != nil {
		return model.Connection{}, err
	}
	return conn, nil
}

// FindBeltPath runs the A* router between two ports for the given
// connection id, returning the discovered path (if any).
func (c *Client) FindBeltPath(g *grid.GridState, src, tgt model.Port, connID string) (grid.BeltPath, bool) {
	return routing.FindPath(g, src, tgt, connID)
}

// ApplyBeltPath commits a discovered path's tiles onto the grid.
func (c *Client) ApplyBeltPath(g *grid.GridState, path grid.BeltPath) {
	routing.Apply(g, path)
}

// RemoveBeltPath removes a connection's belt path from the grid, if any.
func (c *Client) RemoveBeltPath(g *grid.GridState, connID string) {
	routing.Remove(g, connID)
}

// EvaluateGrid computes the fully routed score breakdown for a grid.
func (c *Client) EvaluateGrid(g *grid.GridState) scoring.Score {
	return scoring.Routed(g)
}

// RunOptimizerRequest bundles the starting layout, its connections, and
// the optimizer configuration for a single run_optimizer invocation.
type RunOptimizerRequest struct {
	Grid        *grid.GridState
	Connections []model.Connection
	Config      optimizer.Config
	OnProgress  optimizer.ProgressFunc
	ShouldStop  func() bool
}

// RunOptimizer runs the five-phase optimizer once (normal mode) or for a
// single deep-mode chunk, returning the best layout found.
func (c *Client) RunOptimizer(req RunOptimizerRequest) optimizer.Result {
	return optimizer.Run(req.Grid, req.Connections, req.Config, req.OnProgress, req.ShouldStop)
}

// NewDeepSession starts a deep-search continuous-loop session that a
// caller advances one time-boxed chunk at a time via Session.Advance.
func (c *Client) NewDeepSession(cfg optimizer.Config) *optimizer.Session {
	return optimizer.NewSession(cfg)
}

// ExportLayout encodes a grid and its connections into the version=1
// layout exchange format.
func (c *Client) ExportLayout(g *grid.GridState, conns []model.Connection) ([]byte, error) {
	return layoutio.Export(g, conns)
}

// ImportLayout decodes machines and connections from the exchange
// format. It does not place them on a grid — construction-time failures
// (overlap, self-connection) are the caller's to handle via
// PlaceMachine/Connect, per spec §7's construction-vs-runtime split.
func (c *Client) ImportLayout(data []byte) ([]model.Machine, []model.Connection, layoutio.ImportReport, error) {
	return layoutio.Import(data)
}

// SaveLayoutRequest names a layout snapshot for later retrieval.
type SaveLayoutRequest struct {
	Name        string
	Grid        *grid.GridState
	Connections []model.Connection
	Score       scoring.Score
	Routed      bool
}

// SaveLayout persists a named layout snapshot.
func (c *Client) SaveLayout(ctx context.Context, req SaveLayoutRequest) error {
	if req.Name == "" {
		return errors.New("beltforge: layout name is required")
	}
	machines := make([]model.Machine, 0, len(req.Grid.Machines))
	for _, m := range req.Grid.Machines {
		machines = append(machines, m)
	}
	return c.store.SaveLayout(ctx, storage.LayoutSnapshot{
		Name:        req.Name,
		GridWidth:   req.Grid.Width,
		GridHeight:  req.Grid.Height,
		Machines:    machines,
		Connections: req.Connections,
		Score:       req.Score,
		Routed:      req.Routed,
	})
}

// GetLayout retrieves a previously saved layout snapshot by name.
func (c *Client) GetLayout(ctx context.Context, name string) (storage.LayoutSnapshot, bool, error) {
	return c.store.GetLayout(ctx, name)
}

// ListLayouts lists every saved layout snapshot's name.
func (c *Client) ListLayouts(ctx context.Context) ([]string, error) {
	return c.store.ListLayouts(ctx)
}

// SaveEliteArchive persists an optimizer run's elite archive under a run
// id, so it can be fed back as Config.IncomingArchive on a later call.
func (c *Client) SaveEliteArchive(ctx context.Context, runID string, archive *anneal.Archive) error {
	if archive == nil {
		return errors.New("beltforge: archive is nil")
	}
	return c.store.SaveEliteArchive(ctx, runID, archive.Entries())
}

// LoadEliteArchive retrieves a previously persisted elite archive's
// entries, ready to assign to Config.IncomingArchive.
func (c *Client) LoadEliteArchive(ctx context.Context, runID string) ([]anneal.EliteEntry, bool, error) {
	return c.store.GetEliteArchive(ctx, runID)
}
