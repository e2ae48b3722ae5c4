package stock

// apply builds the mutation for a piece delta against the level. The caller
// guarantees the delta cannot take quantity negative.
func apply(level Level, piecesDelta int64) (Mutation, error) {
	newQty := level.Quantity + piecesDelta
	boxes, open, err := SplitPieceEquivalent(newQty, level.PiecesPerBox)
	if err != nil {
		return Mutation{}, err
	}
	return Mutation{
		PiecesDelta:   piecesDelta,
		NewQuantity:   newQty,
		NewBoxes:      boxes,
		NewOpenPieces: open,
	}, nil
}

// PlanSale validates a requested sale and returns the deduction mutation.
func PlanSale(level Level, qty int64, unit Unit) (Mutation, error) {
	if unit == UnitPiece && !level.AllowRetail {
		return Mutation{}, ErrRetailNotAllowed
	}
	pieces, err := ToPieceEquivalent(qty, unit, level.PiecesPerBox)
	if err != nil {
		return Mutation{}, err
	}
	if pieces > level.Quantity {
		return Mutation{}, &InsufficientStockError{
			Requested: qty,
			Unit:      unit,
			Available: AvailableIn(level, unit),
		}
	}
	return apply(level, -pieces)
}

// PlanEdit computes the stock delta when a line item changes from the
// original quantity/unit to new ones. A positive delta is guarded like a
// fresh sale against the delta alone; a negative delta is a restoration.
func PlanEdit(level Level, origQty int64, origUnit Unit, newQty int64, newUnit Unit) (Mutation, error) {
	origPieces, err := ToPieceEquivalent(origQty, origUnit, level.PiecesPerBox)
	if err != nil {
		return Mutation{}, err
	}
	newPieces, err := ToPieceEquivalent(newQty, newUnit, level.PiecesPerBox)
	if err != nil {
		return Mutation{}, err
	}
	delta := newPieces - origPieces
	switch {
	case delta == 0:
		return apply(level, 0)
	case delta > 0:
		if newUnit == UnitPiece && !level.AllowRetail {
			return Mutation{}, ErrRetailNotAllowed
		}
		if delta > level.Quantity {
			return Mutation{}, &InsufficientStockError{
				Requested: newQty,
				Unit:      newUnit,
				Available: AvailableIn(level, newUnit),
			}
		}
		return apply(level, -delta)
	default:
		// delta < 0: restore the difference.
		return apply(level, -delta)
	}
}

// PlanRestore returns the mutation that puts a previously deducted sale back
// into stock. Quantity and unit come from the recorded line item, never from
// the current stock state.
func PlanRestore(level Level, soldQty int64, unit Unit) (Mutation, error) {
	pieces, err := ToPieceEquivalent(soldQty, unit, level.PiecesPerBox)
	if err != nil {
		return Mutation{}, err
	}
	return apply(level, pieces)
}

// PlanRestock returns the mutation for adding stock. Restocks arrive in
// boxes from the UI but any unit is accepted.
func PlanRestock(level Level, qty int64, unit Unit) (Mutation, error) {
	pieces, err := ToPieceEquivalent(qty, unit, level.PiecesPerBox)
	if err != nil {
		return Mutation{}, err
	}
	return apply(level, pieces)
}
