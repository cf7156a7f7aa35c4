package datum

import "fmt"

type Unit uint8

const (
	Unitless Unit = iota
	PoweredOn
	DegreesC
	Percent
)

var unitSymbols = []string{"", "⏼", "°C", "%"}

func (u Unit) String() string {
	if int(u) < len(unitSymbols) {
		return unitSymbols[u]
	}
	return fmt.Sprintf("unit(%d)", uint8(u))
}

func ParseUnit(s string) (Unit, error) {
	for i, symbol := range unitSymbols {
		if s == symbol {
			return Unit(i), nil
		}
	}
	return Unitless, &ParseError{Input: s, Type: "unit"}
}
