package types

import "time"

// MarkerShape is the glyph drawn on the chart surface for a marker.
type MarkerShape string

const (
	MarkerShapeArrowUp   MarkerShape = "arrow_up"
	MarkerShapeArrowDown MarkerShape = "arrow_down"
	MarkerShapeCircle    MarkerShape = "circle"
)

// MarkerColor is the color of a chart marker.
type MarkerColor string

const (
	MarkerColorGreen MarkerColor = "green"
	MarkerColorRed   MarkerColor = "red"
	MarkerColorGray  MarkerColor = "gray"
)

// MarkerPosition anchors the marker relative to its bar.
type MarkerPosition string

const (
	MarkerPositionBelow MarkerPosition = "below_bar"
	MarkerPositionAbove MarkerPosition = "above_bar"
	MarkerPositionIn    MarkerPosition = "in_bar"
)

// MarkerStyle is the side-dependent appearance of a marker.
type MarkerStyle struct {
	Shape    MarkerShape    `json:"shape"`
	Color    MarkerColor    `json:"color"`
	Position MarkerPosition `json:"position"`
}

// StyleForSide computes the display style for a trade side. Buys point up
// from below, sells point down from above, anything else (hold/skip) is a
// neutral dot.
func StyleForSide(side TradeSide) MarkerStyle {
	switch side {
	case TradeSideBuy:
		return MarkerStyle{Shape: MarkerShapeArrowUp, Color: MarkerColorGreen, Position: MarkerPositionBelow}
	case TradeSideSell:
		return MarkerStyle{Shape: MarkerShapeArrowDown, Color: MarkerColorRed, Position: MarkerPositionAbove}
	default:
		return MarkerStyle{Shape: MarkerShapeCircle, Color: MarkerColorGray, Position: MarkerPositionIn}
	}
}

// Marker is one chart annotation bound to a point in time. ID is a stable
// identity that never changes; Time is user-editable.
type Marker struct {
	ID    string      `json:"id"`
	Time  time.Time   `json:"time"`
	Side  TradeSide   `json:"side"`
	Qty   int         `json:"qty"`
	Price float64     `json:"price"`
	Label string      `json:"label"`
	Style MarkerStyle `json:"style"`
}
