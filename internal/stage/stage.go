// Package stage defines the closed set of pomegranate growth stages a
// detection can be classified as, with their display colors and Arabic labels.
package stage

// Kind is a growth-stage classification. The zero value is Unknown.
type Kind int

const (
	Unknown Kind = iota
	Bud
	Flower
	EarlyGrowth
	MidGrowth
	Maturity
	Dry
	NotPomegranate
)

// Wire identifiers as emitted by the YOLO model labels.
const (
	wireBud            = "Bud"
	wireFlower         = "Flower"
	wireEarlyGrowth    = "Early-growth"
	wireMidGrowth      = "Mid-Growth"
	wireMaturity       = "Maturity"
	wireDry            = "Dry"
	wireNotPomegranate = "not-pomegranate"
)

// FallbackColor is used for stages without a dedicated display color.
const FallbackColor = "#6b7280"

// All returns every known stage in display order.
func All() []Kind {
	return []Kind{Bud, Flower, EarlyGrowth, MidGrowth, Maturity, Dry, NotPomegranate}
}

// Parse maps a wire identifier to its Kind. Unrecognized identifiers map to
// Unknown rather than failing; display helpers fall back accordingly.
func Parse(s string) Kind {
	switch s {
	case wireBud:
		return Bud
	case wireFlower:
		return Flower
	case wireEarlyGrowth:
		return EarlyGrowth
	case wireMidGrowth:
		return MidGrowth
	case wireMaturity:
		return Maturity
	case wireDry:
		return Dry
	case wireNotPomegranate:
		return NotPomegranate
	default:
		return Unknown
	}
}

// String returns the wire identifier for the stage.
func (k Kind) String() string {
	switch k {
	case Bud:
		return wireBud
	case Flower:
		return wireFlower
	case EarlyGrowth:
		return wireEarlyGrowth
	case MidGrowth:
		return wireMidGrowth
	case Maturity:
		return wireMaturity
	case Dry:
		return wireDry
	case NotPomegranate:
		return wireNotPomegranate
	default:
		return "unknown"
	}
}

// Color returns the hex display color for the stage.
func (k Kind) Color() string {
	switch k {
	case Bud:
		return "#22c55e"
	case Flower:
		return "#ec4899"
	case EarlyGrowth:
		return "#eab308"
	case MidGrowth:
		return "#f97316"
	case Maturity:
		return "#dc2626"
	case Dry:
		return FallbackColor
	case NotPomegranate:
		return "#3b82f6"
	default:
		return FallbackColor
	}
}

// LabelAr returns the Arabic display label for the stage. Unknown stages
// fall back to the wire identifier.
func (k Kind) LabelAr() string {
	switch k {
	case Bud:
		return "برعم"
	case Flower:
		return "زهرة"
	case EarlyGrowth:
		return "نمو مبكر"
	case MidGrowth:
		return "نمو متوسط"
	case Maturity:
		return "ناضج"
	case Dry:
		return "جاف"
	case NotPomegranate:
		return "ليس رمان"
	default:
		return k.String()
	}
}

// DisplayLabel resolves the label shown for a raw wire identifier: the
// Arabic label for known stages, the identifier itself otherwise.
func DisplayLabel(wire string) string {
	if k := Parse(wire); k != Unknown {
		return k.LabelAr()
	}
	return wire
}

// MarshalText implements encoding.TextMarshaler using the wire identifier.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler; unknown identifiers
// become Unknown without error.
func (k *Kind) UnmarshalText(text []byte) error {
	*k = Parse(string(text))
	return nil
}
