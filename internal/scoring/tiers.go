package scoring

// Weapon and armor tiers are fixed 0-6 rankings of equipment strength used
// only by the scoring heuristics. Unknown identifiers rank 0 (unarmed).

var weaponTiers = map[string]int{
	"stick":           1,
	"wooden_sword":    1,
	"wooden_axe":      1,
	"stone_sword":     2,
	"stone_axe":       2,
	"golden_sword":    2,
	"golden_axe":      2,
	"iron_sword":      3,
	"iron_axe":        3,
	"diamond_sword":   5,
	"diamond_axe":     5,
	"netherite_sword": 6,
	"netherite_axe":   6,
}

var armorTiers = map[string]int{
	"leather_helmet":       1,
	"leather_chestplate":   1,
	"leather_leggings":     1,
	"leather_boots":        1,
	"carved_pumpkin":       1,
	"pumpkin":              1,
	"chainmail_helmet":     2,
	"chainmail_chestplate": 2,
	"chainmail_leggings":   2,
	"chainmail_boots":      2,
	"iron_helmet":          3,
	"iron_chestplate":      3,
	"iron_leggings":        3,
	"iron_boots":           3,
	"golden_helmet":        3,
	"golden_chestplate":    3,
	"golden_leggings":      3,
	"golden_boots":         3,
	"turtle_helmet":        4,
	"diamond_helmet":       5,
	"diamond_chestplate":   5,
	"diamond_leggings":     5,
	"diamond_boots":        5,
	"netherite_helmet":     6,
	"netherite_chestplate": 6,
	"netherite_leggings":   6,
	"netherite_boots":      6,
}

func WeaponTier(weapon string) int {
	return weaponTiers[weapon]
}

func ArmorTier(piece string) int {
	return armorTiers[piece]
}

// AverageArmorTier computes the victim's armor tier at event time from the
// worn pieces. Empty slots are ignored; no armor ranks 0. Exposed so the
// hit/kill collaborator can pre-compute the tier before building a record.
func AverageArmorTier(pieces []string) int {
	total, count := 0, 0
	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		total += ArmorTier(piece)
		count++
	}
	if count == 0 {
		return 0
	}
	return total / count
}
