// Package stock implements unit conversion between boxes and loose pieces
// and the pure allocation planner used by sales and restocking. All state
// lives on the product row; the planner only computes mutations.
package stock

import (
	"errors"
	"fmt"
)

// Unit is the unit a caller expresses a quantity in.
type Unit string

const (
	// UnitBox sells whole boxes (wholesale).
	UnitBox Unit = "box"
	// UnitPiece sells loose pieces (retail).
	UnitPiece Unit = "piece"
)

// Valid reports whether the unit is one of the supported values.
func (u Unit) Valid() bool {
	return u == UnitBox || u == UnitPiece
}

// ErrInvalidQuantity indicates a zero or negative quantity.
var ErrInvalidQuantity = errors.New("stock: quantity must be a positive integer")

// ErrInvalidPiecesPerBox indicates pieces per box below one.
var ErrInvalidPiecesPerBox = errors.New("stock: pieces per box must be >= 1")

// ErrInvalidUnit indicates an unsupported unit value.
var ErrInvalidUnit = errors.New("stock: unit must be box or piece")

// ErrRetailNotAllowed is returned when a piece-level sale is requested on a
// product that only sells whole boxes.
var ErrRetailNotAllowed = errors.New("stock: retail sales not allowed for this product")

// InsufficientStockError rejects a deduction that would take stock negative.
// Available is reported in the unit the caller asked in so a box-mode sale
// sees available boxes and a piece-mode sale sees available pieces.
type InsufficientStockError struct {
	Requested int64
	Unit      Unit
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock: insufficient stock: requested %d %s, available %d %s", e.Requested, e.Unit, e.Available, e.Unit)
}

// Level is the stock snapshot the planner works against.
type Level struct {
	Quantity     int64
	PiecesPerBox int64
	AllowRetail  bool
}

// Mutation describes a complete stock change. PiecesDelta is negative for
// deductions. The cached box/piece split is recomputed from the new canonical
// quantity, never carried as running state.
type Mutation struct {
	PiecesDelta   int64
	NewQuantity   int64
	NewBoxes      int64
	NewOpenPieces int64
}

// NoOp reports whether the mutation leaves stock unchanged.
func (m Mutation) NoOp() bool {
	return m.PiecesDelta == 0
}
