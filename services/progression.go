// services/progression.go
package services

// XPToLevel converts lifetime XP into a dragon level (40 XP per level).
func XPToLevel(xp int64) int64 {
	return xp / 40
}

// DragonPowerScore ranks a profile for battle matchmaking.
func DragonPowerScore(xp, coins int64) int64 {
	return XPToLevel(xp)*100 + coins
}
