package laundry

import (
	"math/rand/v2"

	"github.com/lavanderia-bot/laundrybot/internal/content"
)

// ShuffleAttempts bounds how many random picks a shuffle makes.
const ShuffleAttempts = 100

// PickedGarment is a catalog item with the number of times it was drawn.
type PickedGarment struct {
	Name  string
	Count int
}

// Load is a randomly drawn set of garments.
type Load struct {
	Items []PickedGarment
	Grams int
}

func (l Load) Kilograms() float64 {
	return float64(l.Grams) / 1000
}

// ShuffleLoad draws garments uniformly from catalog, keeping each draw only
// if the running weight stays within capGrams. It is a greedy sample, not a
// best fit: drawing stops after attempts picks or as soon as not even the
// lightest garment fits.
func ShuffleLoad(rng *rand.Rand, catalog []content.Garment, capGrams, attempts int) Load {
	var load Load
	if len(catalog) == 0 || capGrams <= 0 {
		return load
	}

	lightest := catalog[0].Grams
	for _, g := range catalog[1:] {
		if g.Grams < lightest {
			lightest = g.Grams
		}
	}

	index := make(map[string]int)
	for i := 0; i < attempts; i++ {
		if capGrams-load.Grams < lightest {
			break
		}
		g := catalog[rng.IntN(len(catalog))]
		if load.Grams+g.Grams > capGrams {
			continue
		}
		load.Grams += g.Grams
		if j, ok := index[g.Name]; ok {
			load.Items[j].Count++
			continue
		}
		index[g.Name] = len(load.Items)
		load.Items = append(load.Items, PickedGarment{Name: g.Name, Count: 1})
	}
	return load
}
