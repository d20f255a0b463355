package world

import "errors"

var (
	ErrInvalidMapParameters = errors.New("invalid map parameters")
	ErrInvalidCoordinates   = errors.New("invalid coordinates")
	ErrInvalidTile          = errors.New("invalid tile type")
	ErrEntityNotFound       = errors.New("entity not found")
	ErrEntityOnMap          = errors.New("entity already on a map")
	ErrNoMap                = errors.New("world has no maps")
)
