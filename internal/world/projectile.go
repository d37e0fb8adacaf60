package world

import "time"

// Projectile is created by a validated spell cast and advanced each tick
// until it expires or collides.
type Projectile struct {
	ID            uint64
	SpellID       string
	CasterAccount string

	X, Y, Z          float64
	DirX, DirY, DirZ float64
	Speed            float64

	TTL time.Duration
}

// Advance moves the projectile along its direction and burns TTL. It returns
// false once the projectile has expired.
func (p *Projectile) Advance(dt time.Duration) bool {
	step := p.Speed * dt.Seconds()
	p.X += p.DirX * step
	p.Y += p.DirY * step
	p.Z += p.DirZ * step
	p.TTL -= dt
	return p.TTL > 0
}
