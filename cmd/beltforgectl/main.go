package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"beltforge/internal/grid"
	"beltforge/internal/model"
	"beltforge/internal/optimizer"
	"beltforge/pkg/beltforge"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// layout bundles a grid with the connections the CLI's --in/--out files
// round-trip alongside it; layoutio.Export doesn't read g.Connections
// directly (see internal/layoutio), so callers carry their own slice.
type layout struct {
	grid        *grid.GridState
	connections []model.Connection
}

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "new":
		return runNew(args[1:])
	case "place":
		return runPlace(args[1:])
	case "remove":
		return runRemove(args[1:])
	case "connect":
		return runConnect(args[1:])
	case "route":
		return runRoute(args[1:])
	case "evaluate":
		return runEvaluate(args[1:])
	case "optimize":
		return runOptimize(args[1:])
	case "save":
		return runSave(ctx, args[1:])
	case "load":
		return runLoad(ctx, args[1:])
	case "list":
		return runList(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: beltforgectl <new|place|remove|connect|route|evaluate|optimize|save|load|list> [flags]", msg)
}

func usagef(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// readLayoutFile decodes a layout file and replays it through Place/
// Connect so the same overlap/self-connection checks a live session
// would hit are exercised on every CLI invocation, not skipped just
// because the layout came from disk.
func readLayoutFile(client *beltforge.Client, path string) (*layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	machines, conns, report, err := client.ImportLayout(data)
	if err != nil {
		return nil, err
	}
	var doc struct {
		GridWidth  int `json:"grid_width"`
		GridHeight int `json:"grid_height"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	g := client.CreateGrid(doc.GridWidth, doc.GridHeight)
	for _, m := range machines {
		if ok := g.Place(m); !ok {
			return nil, usagef("machine %s could not be placed at (%d,%d)", m.ID, m.X, m.Y)
		}
	}
	for _, c := range conns {
		if err := g.AddConnection(c); err != nil {
			return nil, fmt.Errorf("connection %s: %w", c.ID, err)
		}
	}
	for _, alias := range report.MigratedAliases {
		fmt.Fprintf(os.Stderr, "migrated legacy machine type alias: %s\n", alias)
	}
	return &layout{grid: g, connections: conns}, nil
}

func writeLayoutFile(client *beltforge.Client, path string, l *layout) error {
	data, err := client.ExportLayout(l.grid, l.connections)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	if isInteractive() {
		fmt.Printf("wrote %s (%s)\n", path, humanize.Bytes(uint64(len(data))))
	}
	return nil
}

func runNew(args []string) error {
	fs := flag.NewFlagSet("new", flag.ContinueOnError)
	width := fs.Int("width", 20, "grid width")
	height := fs.Int("height", 20, "grid height")
	out := fs.String("out", "", "layout file to write")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return errors.New("new requires --out")
	}

	client, err := beltforge.New(beltforge.Options{})
	if err != nil {
		return err
	}
	g := client.CreateGrid(*width, *height)
	return writeLayoutFile(client, *out, &layout{grid: g})
}

func runPlace(args []string) error {
	fs := flag.NewFlagSet("place", flag.ContinueOnError)
	in := fs.String("in", "", "layout file to read")
	out := fs.String("out", "", "layout file to write")
	id := fs.String("id", "", "machine id (generated if omitted)")
	machineType := fs.String("type", "3x3", "machine type: 3x3|5x5|6x4|anchor3x1")
	x := fs.Int("x", 0, "top-left x")
	y := fs.Int("y", 0, "top-left y")
	orientation := fs.String("orientation", "north", "orientation: north|east|south|west")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return errors.New("place requires --in and --out")
	}

	client, err := beltforge.New(beltforge.Options{})
	if err != nil {
		return err
	}
	l, err := readLayoutFile(client, *in)
	if err != nil {
		return err
	}
	dir, ok := parseDirection(*orientation)
	if !ok {
		return fmt.Errorf("unknown orientation: %s", *orientation)
	}
	m, placed := client.PlaceMachine(beltforge.PlaceMachineRequest{
		Grid:        l.grid,
		ID:          *id,
		Type:        model.MachineType(*machineType),
		X:           *x,
		Y:           *y,
		Orientation: dir,
	})
	if !placed {
		return fmt.Errorf("machine %s could not be placed at (%d,%d)", m.ID, *x, *y)
	}
	fmt.Printf("placed machine id=%s type=%s x=%d y=%d orientation=%s\n", m.ID, m.Type, m.X, m.Y, dir)
	return writeLayoutFile(client, *out, l)
}

func runRemove(args []string) error {
	fs := flag.NewFlagSet("remove", flag.ContinueOnError)
	in := fs.String("in", "", "layout file to read")
	out := fs.String("out", "", "layout file to write")
	id := fs.String("id", "", "machine id to remove")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" || *id == "" {
		return errors.New("remove requires --in, --out and --id")
	}

	client, err := beltforge.New(beltforge.Options{})
	if err != nil {
		return err
	}
	l, err := readLayoutFile(client, *in)
	if err != nil {
		return err
	}
	client.RemoveMachine(l.grid, *id)
	filtered := l.connections[:0]
	for _, c := range l.connections {
		if c.SourceMachine == *id || c.TargetMachine == *id {
			continue
		}
		filtered = append(filtered, c)
	}
	l.connections = filtered
	fmt.Printf("removed machine id=%s\n", *id)
	return writeLayoutFile(client, *out, l)
}

func runConnect(args []string) error {
	fs := flag.NewFlagSet("connect", flag.ContinueOnError)
	in := fs.String("in", "", "layout file to read")
	out := fs.String("out", "", "layout file to write")
	id := fs.String("id", "", "connection id (generated if omitted)")
	from := fs.String("from", "", "source machine id")
	fromPort := fs.Int("from-port", 0, "source output port index")
	to := fs.String("to", "", "target machine id")
	toPort := fs.Int("to-port", 0, "target input port index")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" || *from == "" || *to == "" {
		return errors.New("connect requires --in, --out, --from and --to")
	}

	client, err := beltforge.New(beltforge.Options{})
	if err != nil {
		return err
	}
	l, err := readLayoutFile(client, *in)
	if err != nil {
		return err
	}
	conn, err := client.Connect(beltforge.ConnectRequest{
		Grid:          l.grid,
		ID:            *id,
		SourceMachine: *from,
		SourcePort:    *fromPort,
		TargetMachine: *to,
		TargetPort:    *toPort,
	})
	if err != nil {
		return err
	}
	l.connections = append(l.connections, conn)
	fmt.Printf("connected id=%s %s:%d -> %s:%d\n", conn.ID, conn.SourceMachine, conn.SourcePort, conn.TargetMachine, conn.TargetPort)
	return writeLayoutFile(client, *out, l)
}

func runRoute(args []string) error {
	fs := flag.NewFlagSet("route", flag.ContinueOnError)
	in := fs.String("in", "", "layout file to read")
	out := fs.String("out", "", "layout file to write")
	connID := fs.String("conn", "", "connection id to route")
	remove := fs.Bool("remove", false, "remove the connection's belt path instead of finding one")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" || *connID == "" {
		return errors.New("route requires --in, --out and --conn")
	}

	client, err := beltforge.New(beltforge.Options{})
	if err != nil {
		return err
	}
	l, err := readLayoutFile(client, *in)
	if err != nil {
		return err
	}

	if *remove {
		client.RemoveBeltPath(l.grid, *connID)
		fmt.Printf("removed belt path for connection %s\n", *connID)
		return writeLayoutFile(client, *out, l)
	}

	conn, ok := l.grid.Connections[*connID]
	if !ok {
		return fmt.Errorf("unknown connection: %s", *connID)
	}
	_, outputs := client.MachinePorts(l.grid, conn.SourceMachine)
	inputs, _ := client.MachinePorts(l.grid, conn.TargetMachine)
	if conn.SourcePort >= len(outputs) || conn.TargetPort >= len(inputs) {
		return fmt.Errorf("connection %s references an out-of-range port", *connID)
	}
	path, found := client.FindBeltPath(l.grid, outputs[conn.SourcePort], inputs[conn.TargetPort], *connID)
	if !found {
		fmt.Printf("no path found for connection %s\n", *connID)
		return nil
	}
	client.ApplyBeltPath(l.grid, path)
	fmt.Printf("routed connection %s in %d segments\n", *connID, len(path.Segments))
	return writeLayoutFile(client, *out, l)
}

func runEvaluate(args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	in := fs.String("in", "", "layout file to read")
	jsonOut := fs.Bool("json", false, "emit the score as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("evaluate requires --in")
	}

	client, err := beltforge.New(beltforge.Options{})
	if err != nil {
		return err
	}
	l, err := readLayoutFile(client, *in)
	if err != nil {
		return err
	}
	score := client.EvaluateGrid(l.grid)
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(score)
	}
	fmt.Printf("belts=%.2f area=%.2f corners=%.2f total=%.2f\n", score.Belts, score.Area, score.Corners, score.Total())
	return nil
}

func runOptimize(args []string) error {
	fs := flag.NewFlagSet("optimize", flag.ContinueOnError)
	in := fs.String("in", "", "layout file to read")
	out := fs.String("out", "", "layout file to write the optimized result")
	mode := fs.String("mode", "normal", "optimizer mode: normal|deep")
	timeBudgetMs := fs.Int("time-budget-ms", 0, "deep-mode wall-clock budget (0 uses the default)")
	phase1Restarts := fs.Int("phase1-restarts", 0, "Phase 1 restart count (0 uses the default)")
	phase2Attempts := fs.Int("phase2-attempts", 0, "Phase 2 attempt count (0 uses the default)")
	seed := fs.Uint("seed", 0, "deterministic RNG seed (0 uses the system PRNG)")
	verbose := fs.Bool("verbose", false, "print a line per progress event")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return errors.New("optimize requires --in and --out")
	}

	client, err := beltforge.New(beltforge.Options{})
	if err != nil {
		return err
	}
	l, err := readLayoutFile(client, *in)
	if err != nil {
		return err
	}

	var cfg optimizer.Config
	if *mode == "deep" {
		cfg = optimizer.DefaultDeepConfig()
	} else {
		cfg = optimizer.DefaultNormalConfig()
	}
	if *timeBudgetMs > 0 {
		cfg.TimeBudgetMs = *timeBudgetMs
	}
	if *phase1Restarts > 0 {
		cfg.Phase1Restarts = *phase1Restarts
	}
	if *phase2Attempts > 0 {
		cfg.Phase2Attempts = *phase2Attempts
	}
	cfg.Seed = uint32(*seed)
	cfg.Normalize()

	var progress optimizer.ProgressFunc
	if *verbose {
		progress = func(ev optimizer.ProgressEvent) {
			fmt.Printf("phase=%s best_belts=%.2f best_area=%.2f best_corners=%.2f iterations=%d\n",
				ev.Phase, ev.Best.Belts, ev.Best.Area, ev.Best.Corners, ev.Iterations)
		}
	}

	result := client.RunOptimizer(beltforge.RunOptimizerRequest{
		Grid:        l.grid,
		Connections: l.connections,
		Config:      cfg,
		OnProgress:  progress,
	})
	fmt.Printf("optimized routed=%t belts=%.2f area=%.2f corners=%.2f iterations=%d\n",
		result.Routed, result.Score.Belts, result.Score.Area, result.Score.Corners, result.Iterations)
	return writeLayoutFile(client, *out, &layout{grid: result.Grid, connections: result.Connections})
}

func runSave(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("save", flag.ContinueOnError)
	in := fs.String("in", "", "layout file to read")
	name := fs.String("name", "", "name to save the layout under")
	storeKind := fs.String("store", "memory", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "beltforge.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *name == "" {
		return errors.New("save requires --in and --name")
	}

	client, err := beltforge.New(beltforge.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}
	l, err := readLayoutFile(client, *in)
	if err != nil {
		return err
	}
	score := client.EvaluateGrid(l.grid)
	if err := client.SaveLayout(ctx, beltforge.SaveLayoutRequest{
		Name:        *name,
		Grid:        l.grid,
		Connections: l.connections,
		Score:       score,
		Routed:      score.Belts < 1000,
	}); err != nil {
		return err
	}
	fmt.Printf("saved layout name=%s store=%s\n", *name, *storeKind)
	return nil
}

func runLoad(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	name := fs.String("name", "", "name of the saved layout")
	out := fs.String("out", "", "layout file to write")
	storeKind := fs.String("store", "memory", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "beltforge.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *out == "" {
		return errors.New("load requires --name and --out")
	}

	client, err := beltforge.New(beltforge.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}
	snapshot, ok, err := client.GetLayout(ctx, *name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no saved layout named %s", *name)
	}

	g := client.CreateGrid(snapshot.GridWidth, snapshot.GridHeight)
	for _, m := range snapshot.Machines {
		if ok := g.Place(m); !ok {
			return fmt.Errorf("machine %s could not be placed at (%d,%d)", m.ID, m.X, m.Y)
		}
	}
	for _, c := range snapshot.Connections {
		if err := g.AddConnection(c); err != nil {
			return fmt.Errorf("connection %s: %w", c.ID, err)
		}
	}
	return writeLayoutFile(client, *out, &layout{grid: g, connections: snapshot.Connections})
}

func runList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	storeKind := fs.String("store", "memory", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "beltforge.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := beltforge.New(beltforge.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}
	names, err := client.ListLayouts(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("no saved layouts")
		return nil
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func parseDirection(tag string) (model.Direction, bool) {
	switch tag {
	case "north":
		return model.North, true
	case "east":
		return model.East, true
	case "south":
		return model.South, true
	case "west":
		return model.West, true
	default:
		return 0, false
	}
}

// isInteractive reports whether stdout is a terminal; writeLayoutFile uses
// it to print the "wrote <path> (<size>)" line only on a terminal.
func isInteractive() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}
