package catalog

import (
	"fmt"
	"strings"
)

func validateCreate(input CreateProductInput) error {
	if input.ShopID == 0 {
		return fmt.Errorf("%w: shop required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.Code) == "" {
		return fmt.Errorf("%w: product code is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: product name is required", ErrInvalidInput)
	}
	if input.PiecesPerBox < 1 {
		return fmt.Errorf("%w: pieces per box must be >= 1", ErrInvalidInput)
	}
	if input.InitialBoxes < 0 {
		return fmt.Errorf("%w: initial boxes must be >= 0", ErrInvalidInput)
	}
	if input.MinStockLevel < 0 {
		return fmt.Errorf("%w: min stock level must be >= 0", ErrInvalidInput)
	}
	if input.BuyPriceBox.IsNegative() || input.BuyPricePiece.IsNegative() ||
		input.SellPriceBox.IsNegative() || input.SellPricePiece.IsNegative() {
		return fmt.Errorf("%w: prices must be >= 0", ErrInvalidInput)
	}
	return nil
}
