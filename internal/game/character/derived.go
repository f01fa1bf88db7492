package character

import "fmt"

// DamageBonus returns the damage bonus formula and build for the combined
// STR+SIZ, following the rulebook table. Every 80 points above 444 adds
// another 1D6 and one point of build.
//
// Postcondition: formula is a valid dice formula ("-2", "-1", "0", "+1D4", "+2D6", ...).
func DamageBonus(str, siz int) (formula string, build int) {
	total := str + siz
	switch {
	case total <= 64:
		return "-2", -2
	case total <= 84:
		return "-1", -1
	case total <= 124:
		return "0", 0
	case total <= 164:
		return "+1D4", 1
	case total <= 204:
		return "+1D6", 2
	}
	// 205–284 is +2D6, then +1D6 per additional 80 points.
	extra := (total - 205) / 80
	return fmt.Sprintf("+%dD6", 2+extra), 3 + extra
}

// MaxHitPoints returns (CON+SIZ)/10.
func MaxHitPoints(con, siz int) int {
	return (con + siz) / 10
}

// MaxMagicPoints returns POW/5.
func MaxMagicPoints(pow int) int {
	return pow / 5
}

// MoveRate returns the movement rate from STR, DEX and SIZ, reduced by one
// per decade of age from the forties on.
//
// Postcondition: Returns >= 1.
func MoveRate(str, dex, siz, age int) int {
	mov := 8
	switch {
	case str > siz && dex > siz:
		mov = 9
	case str < siz && dex < siz:
		mov = 7
	}
	if age >= 40 {
		mov -= (age-30)/10
	}
	if mov < 1 {
		mov = 1
	}
	return mov
}
