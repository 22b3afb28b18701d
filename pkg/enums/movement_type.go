package enums

import "fmt"

// MovementType classifies a stock ledger entry.
type MovementType string

const (
	MovementTypeInitialStock  MovementType = "INITIAL_STOCK"
	MovementTypeSale          MovementType = "SALE"
	MovementTypePurchaseEntry MovementType = "PURCHASE_ENTRY"
	MovementTypeAdjustment    MovementType = "ADJUSTMENT"
	MovementTypeLoss          MovementType = "LOSS"
	MovementTypeReturn        MovementType = "RETURN"
	MovementTypeExpiration    MovementType = "EXPIRATION"
)

var validMovementTypes = []MovementType{
	MovementTypeInitialStock,
	MovementTypeSale,
	MovementTypePurchaseEntry,
	MovementTypeAdjustment,
	MovementTypeLoss,
	MovementTypeReturn,
	MovementTypeExpiration,
}

// String implements fmt.Stringer.
func (m MovementType) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MovementType.
func (m MovementType) IsValid() bool {
	for _, candidate := range validMovementTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMovementType converts raw input into a MovementType.
func ParseMovementType(value string) (MovementType, error) {
	for _, candidate := range validMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement type %q", value)
}
