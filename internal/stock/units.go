package stock

// ToPieceEquivalent converts a quantity expressed in the given unit into
// canonical piece-equivalents.
func ToPieceEquivalent(qty int64, unit Unit, piecesPerBox int64) (int64, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	if piecesPerBox < 1 {
		return 0, ErrInvalidPiecesPerBox
	}
	switch unit {
	case UnitBox:
		return qty * piecesPerBox, nil
	case UnitPiece:
		return qty, nil
	default:
		return 0, ErrInvalidUnit
	}
}

// SplitPieceEquivalent splits a canonical total into full boxes and open-box
// pieces. For piece-only products (piecesPerBox == 1) the open count is
// always zero.
func SplitPieceEquivalent(total, piecesPerBox int64) (boxes, openPieces int64, err error) {
	if total < 0 {
		return 0, 0, ErrInvalidQuantity
	}
	if piecesPerBox < 1 {
		return 0, 0, ErrInvalidPiecesPerBox
	}
	return total / piecesPerBox, total % piecesPerBox, nil
}

// AvailableIn expresses the current stock in the caller's unit for error
// reporting.
func AvailableIn(level Level, unit Unit) int64 {
	if unit == UnitBox {
		return level.Quantity / level.PiecesPerBox
	}
	return level.Quantity
}
