// Package beltforge is the public facade over the grid/routing/optimizer
// core: create_grid, place_machine, remove_machine, get_machine_ports,
// find_belt_path, apply_belt_path/remove_belt_path, evaluate_grid, and
// run_optimizer from spec §6, plus storage-backed layout/archive
// persistence. Everything below this package (grid, routing, scoring,
// optimizer, storage, layoutio) has no notion of "a client" — this is
// where those pieces are wired together for a host application.
// Grounded on the teacher's pkg/protogonos/api.go: the same
// Options/Client/*Request/*Summary shape, generalized from an
// evolution-run facade to a placement-and-routing one.
package beltforge
