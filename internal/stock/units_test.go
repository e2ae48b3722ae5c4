package stock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToPieceEquivalent(t *testing.T) {
	pieces, err := ToPieceEquivalent(3, UnitBox, 12)
	require.NoError(t, err)
	require.Equal(t, int64(36), pieces)

	pieces, err = ToPieceEquivalent(8, UnitPiece, 12)
	require.NoError(t, err)
	require.Equal(t, int64(8), pieces)

	_, err = ToPieceEquivalent(0, UnitPiece, 12)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = ToPieceEquivalent(-2, UnitBox, 12)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = ToPieceEquivalent(2, UnitBox, 0)
	require.ErrorIs(t, err, ErrInvalidPiecesPerBox)

	_, err = ToPieceEquivalent(2, Unit("crate"), 12)
	require.ErrorIs(t, err, ErrInvalidUnit)
}

func TestSplitPieceEquivalent(t *testing.T) {
	boxes, open, err := SplitPieceEquivalent(30, 12)
	require.NoError(t, err)
	require.Equal(t, int64(2), boxes)
	require.Equal(t, int64(6), open)

	boxes, open, err = SplitPieceEquivalent(24, 12)
	require.NoError(t, err)
	require.Equal(t, int64(2), boxes)
	require.Equal(t, int64(0), open)

	// Piece-only products never show open pieces.
	boxes, open, err = SplitPieceEquivalent(17, 1)
	require.NoError(t, err)
	require.Equal(t, int64(17), boxes)
	require.Equal(t, int64(0), open)

	boxes, open, err = SplitPieceEquivalent(0, 12)
	require.NoError(t, err)
	require.Equal(t, int64(0), boxes)
	require.Equal(t, int64(0), open)

	_, _, err = SplitPieceEquivalent(-1, 12)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, _, err = SplitPieceEquivalent(10, 0)
	require.ErrorIs(t, err, ErrInvalidPiecesPerBox)
}
