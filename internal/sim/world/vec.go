package world

import (
	"math"

	"orefleet.ai/internal/sim/logic"
)

type Vec2 struct{ X, Y float64 }

func Dist(a, b Vec2) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func v2FromLogic(v logic.Vec2) Vec2 { return Vec2{X: v.X, Y: v.Y} }
func v2ToLogic(v Vec2) logic.Vec2   { return logic.Vec2{X: v.X, Y: v.Y} }
