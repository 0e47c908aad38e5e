// Package epoch mapea instantes de reloj al timestamp compacto de OWID:
// minutos desde el epoch base, como uint32 little-endian en el wire.
//
// El epoch base se fija en 2020-01-01 00:00:00 UTC. La fuente original lo
// construía con campos de calendario locales (dependiente del TZ del host);
// acá se fija una única interpretación portable (ver DESIGN.md).
package epoch

import "time"

var base = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// Base devuelve el instante del epoch base (2020-01-01T00:00:00Z).
func Base() time.Time {
	return base
}

// ToMinutes convierte un instante a minutos desde el epoch base (floor).
// Instantes anteriores al base se truncan a 0.
func ToMinutes(t time.Time) uint32 {
	secs := t.Unix() - base.Unix()
	if secs < 0 {
		return 0
	}
	return uint32(secs / 60)
}

// FromMinutes es la inversa de ToMinutes.
func FromMinutes(m uint32) time.Time {
	return time.Unix(base.Unix()+int64(m)*60, 0).UTC()
}

// NowInMinutes devuelve el instante actual en minutos desde el epoch base.
func NowInMinutes() uint32 {
	return ToMinutes(time.Now().UTC())
}
