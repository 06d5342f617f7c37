// Package sample generates a realistic demo transaction history: randomized
// daily spending over 90 days plus six monthly subscription charges.
package sample

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"fincoach/internal/core"
)

type categorySpec struct {
	name      string
	merchants []string
	minAmount float64
	spread    float64
}

var categories = []categorySpec{
	{"Coffee & Cafes", []string{"Starbucks", "Blue Bottle", "Peets Coffee", "Local Cafe"}, 3, 8},
	{"Groceries", []string{"Whole Foods", "Trader Joes", "Safeway", "Target"}, 20, 80},
	{"Dining", []string{"Chipotle", "Panera", "Local Restaurant", "Pizza Place"}, 15, 40},
	{"Transportation", []string{"Uber", "Lyft", "Gas Station", "Parking"}, 10, 30},
	{"Entertainment", []string{"Movie Theater", "Concert Venue", "Sports Event"}, 20, 50},
	{"Utilities", []string{"PG&E", "Water Company", "Internet"}, 50, 100},
}

type subscriptionSpec struct {
	merchant string
	amount   float64
	category string
}

var subscriptions = []subscriptionSpec{
	{"Netflix", 15.99, "Entertainment"},
	{"Spotify", 10.99, "Entertainment"},
	{"Amazon Prime", 14.99, "Shopping"},
	{"Planet Fitness", 24.99, "Health"},
	{"Adobe Creative Cloud", 54.99, "Software"},
	{"NYT Digital", 17.00, "News"},
}

const historyDays = 90

// Transactions builds the sample history ending at now: one to four random
// purchases per day for 90 days, plus each subscription charged on the 15th
// of the current month and the two before it. Newest first.
func Transactions(rng *rand.Rand, now time.Time) []core.Transaction {
	var txs []core.Transaction

	for day := 0; day < historyDays; day++ {
		date := now.AddDate(0, 0, -day)
		perDay := rng.Intn(4) + 1

		for j := 0; j < perDay; j++ {
			cat := categories[rng.Intn(len(categories))]
			amount := cat.minAmount + rng.Float64()*cat.spread

			txs = append(txs, core.Transaction{
				ID:       fmt.Sprintf("tx_%d_%d", day, j),
				Date:     date,
				Merchant: cat.merchants[rng.Intn(len(cat.merchants))],
				Category: cat.name,
				Amount:   roundCents(amount),
			})
		}
	}

	for idx, sub := range subscriptions {
		for month := 0; month < 3; month++ {
			charge := now.AddDate(0, -month, 0)
			charge = time.Date(charge.Year(), charge.Month(), 15,
				charge.Hour(), charge.Minute(), charge.Second(), 0, charge.Location())

			txs = append(txs, core.Transaction{
				ID:        fmt.Sprintf("sub_%d_%d", idx, month),
				Date:      charge,
				Merchant:  sub.merchant,
				Category:  sub.category,
				Amount:    sub.amount,
				Recurring: true,
			})
		}
	}

	sort.Slice(txs, func(i, j int) bool { return txs[i].Date.After(txs[j].Date) })
	return txs
}

func roundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
