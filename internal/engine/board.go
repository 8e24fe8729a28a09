package engine

import "math"

const (
	BoardWidth  = 600.0
	BoardHeight = 675.0

	Gravity    = 0.4
	Bounce     = 0.6
	Friction   = 0.98
	PegRadius  = 5.0
	BallRadius = 8.0

	// Boosts are only accepted while a ball is between these two lines.
	BoostLineUpper = 150.0
	BoostLine      = 350.0
	BoostForce     = 8.0

	floorY     = BoardHeight - 50
	floorDrag  = 0.8
	restSpeed  = 0.5
	pegRows    = 12
	pegStartY  = 100.0
	pegSpacing = 45.0
	spawnY     = 20.0
	spawnGap   = 20.0
)

type Peg struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

var pegs = layoutPegs()

// layoutPegs builds a centered triangle: row r holds r+3 pegs.
func layoutPegs() []Peg {
	var out []Peg
	for row := 0; row < pegRows; row++ {
		n := row + 3
		y := pegStartY + float64(row)*pegSpacing
		startX := (BoardWidth - float64(n-1)*pegSpacing) / 2
		for i := 0; i < n; i++ {
			out = append(out, Peg{X: startX + float64(i)*pegSpacing, Y: y})
		}
	}
	return out
}

func Pegs() []Peg {
	return append([]Peg(nil), pegs...)
}

type Ball struct {
	ID      string  `json:"id"`
	Team    Team    `json:"team"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	VX      float64 `json:"vx"`
	VY      float64 `json:"vy"`
	Active  bool    `json:"active"`
	Boosted bool    `json:"boosted"`
}

func (b *Ball) inBoostBand() bool {
	return b.Y >= BoostLineUpper && b.Y <= BoostLine
}

// step advances the ball by one fixed frame and reports whether it came to
// rest on the floor.
func (b *Ball) step() bool {
	b.VY += Gravity
	b.VX *= Friction
	b.VY *= Friction
	b.X += b.VX
	b.Y += b.VY

	minDist := BallRadius + PegRadius
	for _, p := range pegs {
		dx := b.X - p.X
		dy := b.Y - p.Y
		if math.Hypot(dx, dy) >= minDist {
			continue
		}
		angle := math.Atan2(dy, dx)
		b.X = p.X + math.Cos(angle)*minDist
		b.Y = p.Y + math.Sin(angle)*minDist

		speed := math.Hypot(b.VX, b.VY)
		b.VX = math.Cos(angle) * speed * Bounce
		b.VY = math.Sin(angle) * speed * Bounce
	}

	if b.X-BallRadius < 0 {
		b.X = BallRadius
		b.VX *= -Bounce
	} else if b.X+BallRadius > BoardWidth {
		b.X = BoardWidth - BallRadius
		b.VX *= -Bounce
	}

	if b.Y+BallRadius > floorY {
		b.Y = floorY - BallRadius
		b.VY = 0
		b.VX *= floorDrag
		return math.Abs(b.VX) < restSpeed
	}
	return false
}
