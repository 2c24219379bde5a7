package layout

import "math"

// Config holds the viewport size and the force constants of the
// simulation. Zero values are replaced by DefaultConfig's.
type Config struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`

	CollideRadius   float64 `yaml:"collide_radius"`
	CollideStrength float64 `yaml:"collide_strength"`
	// RepelStrength pushes every pair of nodes apart.
	RepelStrength float64 `yaml:"repel_strength"`
	LinkDistance  float64 `yaml:"link_distance"`
	LinkStrength  float64 `yaml:"link_strength"`

	AlphaMin      float64 `yaml:"alpha_min"`
	AlphaDecay    float64 `yaml:"alpha_decay"`
	VelocityDecay float64 `yaml:"velocity_decay"`
}

// ProspectiveLinkNum is the curvature rank of the previewed link, flatter
// than any committed link.
const ProspectiveLinkNum = 0.125

// ProspectiveLinkID identifies the previewed link in frames.
const ProspectiveLinkID = "temp"

// DefaultConfig returns the tuning used for small hand-edited diagrams:
// a 600x400 viewport cooling over roughly 300 ticks.
func DefaultConfig() Config {
	return Config{
		Width:           600,
		Height:          400,
		CollideRadius:   30,
		CollideStrength: 0.1,
		RepelStrength:   5,
		LinkDistance:    60,
		LinkStrength:    0.1,
		AlphaMin:        0.001,
		AlphaDecay:      1 - math.Pow(0.001, 1.0/300),
		VelocityDecay:   0.4,
	}
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	set := func(v *float64, def float64) {
		if *v == 0 {
			*v = def
		}
	}
	set(&c.Width, d.Width)
	set(&c.Height, d.Height)
	set(&c.CollideRadius, d.CollideRadius)
	set(&c.CollideStrength, d.CollideStrength)
	set(&c.RepelStrength, d.RepelStrength)
	set(&c.LinkDistance, d.LinkDistance)
	set(&c.LinkStrength, d.LinkStrength)
	set(&c.AlphaMin, d.AlphaMin)
	set(&c.AlphaDecay, d.AlphaDecay)
	set(&c.VelocityDecay, d.VelocityDecay)
	return c
}
