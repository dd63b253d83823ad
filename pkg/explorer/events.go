package explorer

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/vanderheijden86/treescope/pkg/hierarchy"
	"github.com/vanderheijden86/treescope/pkg/layout"
	"github.com/vanderheijden86/treescope/pkg/search"
)

// Event is a user intent delivered to Session.Dispatch.
type Event interface {
	eventName() string
}

// NodeClicked toggles the expansion of a node and selects it.
type NodeClicked struct {
	ID hierarchy.ID
}

// SpacingChanged replaces the layout spacing.
type SpacingChanged struct {
	Spacing layout.Spacing
}

// QueryChanged re-filters the tree.
type QueryChanged struct {
	Query search.Query
}

// ZoomRequested scales the view by Factor around Center, or around the
// middle of the surface when Center is the zero vector.
type ZoomRequested struct {
	Factor float64
	Center r2.Vec
}

// Panned moves the view by Delta screen units.
type Panned struct {
	Delta r2.Vec
}

// Reset expands everything, clears the query and the pan/zoom.
type Reset struct{}

// ExpandAll expands every node.
type ExpandAll struct{}

// CollapseAll collapses every node below the root.
type CollapseAll struct{}

func (NodeClicked) eventName() string    { return "click" }
func (SpacingChanged) eventName() string { return "spacing" }
func (QueryChanged) eventName() string   { return "query" }
func (ZoomRequested) eventName() string  { return "zoom" }
func (Panned) eventName() string         { return "pan" }
func (Reset) eventName() string          { return "reset" }
func (ExpandAll) eventName() string      { return "expand_all" }
func (CollapseAll) eventName() string    { return "collapse_all" }

// ErrBadEvent is returned by DecodeEvent for unknown or malformed events.
var ErrBadEvent = errors.New("bad event")

// wireEvent is the JSON shape posted by the browser page.
type wireEvent struct {
	Type       string   `json:"type"`
	ID         int      `json:"id"`
	Horizontal float64  `json:"horizontal"`
	Vertical   float64  `json:"vertical"`
	Text       string   `json:"text"`
	Field      string   `json:"field"`
	Key        string   `json:"attribute_key"`
	Factor     float64  `json:"factor"`
	Direction  string   `json:"direction"` // "in" or "out", alternative to factor
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	DX         float64  `json:"dx"`
	DY         float64  `json:"dy"`
}

// DecodeEvent parses one JSON event, e.g. {"type":"click","id":3} or
// {"type":"query","text":"csv","field":"file_analysis"}.
func DecodeEvent(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEvent, err)
	}
	switch w.Type {
	case "click":
		return NodeClicked{ID: hierarchy.ID(w.ID)}, nil
	case "spacing":
		return SpacingChanged{Spacing: layout.Spacing{Horizontal: w.Horizontal, Vertical: w.Vertical}}, nil
	case "query":
		field, err := search.ParseField(w.Field)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadEvent, err)
		}
		return QueryChanged{Query: search.Query{Text: w.Text, Field: field, AttributeKey: w.Key}}, nil
	case "zoom":
		ev := ZoomRequested{Factor: w.Factor}
		switch w.Direction {
		case "in":
			ev.Factor = ZoomInFactor
		case "out":
			ev.Factor = ZoomOutFactor
		}
		if ev.Factor <= 0 {
			return nil, fmt.Errorf("%w: zoom needs a positive factor or a direction", ErrBadEvent)
		}
		if w.X != nil && w.Y != nil {
			ev.Center = r2.Vec{X: *w.X, Y: *w.Y}
		}
		return ev, nil
	case "pan":
		return Panned{Delta: r2.Vec{X: w.DX, Y: w.DY}}, nil
	case "reset":
		return Reset{}, nil
	case "expand_all":
		return ExpandAll{}, nil
	case "collapse_all":
		return CollapseAll{}, nil
	}
	return nil, fmt.Errorf("%w: unknown type %q", ErrBadEvent, w.Type)
}
