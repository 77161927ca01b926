package types

type Side string

type PositionSide string

type OrderType string

const (
	SideTypeBuy  Side = "BUY"
	SideTypeSell Side = "SELL"

	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"

	TypeMarket OrderType = "MARKET"
	TypeLimit  OrderType = "LIMIT"
)

func (s Side) Valid() bool {
	return s == SideTypeBuy || s == SideTypeSell
}

// Valid reports whether the order type is understood by the broker. Every
// accepted type executes at the bar close; LIMIT prices are informational.
func (t OrderType) Valid() bool {
	return t == TypeMarket || t == TypeLimit
}
