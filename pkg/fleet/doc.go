// Package fleet implements the server lifecycle core: the controller that
// provisions and retires instances through a compute provider, the periodic
// sweeper that reconciles stored records against provider truth, and the
// read-path projector that merges live provider state into record snapshots.
package fleet
