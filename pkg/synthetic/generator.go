package synthetic

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	ferrors "github.com/therealutkarshpriyadarshi/ccfraud/pkg/errors"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/model"
)

// maxTimestampDraws bounds the resampling of a colliding (cc_num, timestamp) pair
const maxTimestampDraws = 100

// CategoryCashWithdrawal is the category reserved for the cash subset of cards
const CategoryCashWithdrawal = "Cash Withdrawal"

// Category is an expense category with its relative frequency and amount range
type Category struct {
	Name      string
	Weight    float64
	MinAmount float64
	MaxAmount float64
}

// Categories are the non-cash expense categories
var Categories = []Category{
	{"Grocery", 0.5, 0.01, 100},
	{"Restaurant/Cafeteria", 0.2, 1, 100},
	{"Health/Beauty", 0.1, 10, 500},
	{"Domestic Transport", 0.1, 10, 100},
	{"Clothing", 0.05, 10, 2000},
	{"Electronics", 0.02, 100, 10000},
	{"Sports/Outdoors", 0.015, 10, 100},
	{"Holliday/Travel", 0.014, 10, 100},
	{"Jewelery", 0.001, 10, 100},
}

var cashCategory = Category{CategoryCashWithdrawal, 0, 20, 1000}

// Config holds the generator parameters. It is passed by value and never mutated.
type Config struct {
	Cards               int
	Transactions        int
	CashWithdrawalCards int
	CashWithdrawals     int
	FraudRatio          float64
	Start               time.Time
	End                 time.Time
	// Seed of the random source; 0 seeds from the clock
	Seed int64
}

// Validate checks the generator parameters
func (c Config) Validate() error {
	switch {
	case c.Cards <= 0:
		return ferrors.NewConfigurationError("cards", "must be positive, got %d", c.Cards)
	case c.Transactions <= 0:
		return ferrors.NewConfigurationError("transactions", "must be positive, got %d", c.Transactions)
	case c.CashWithdrawalCards < 0 || c.CashWithdrawalCards > c.Cards:
		return ferrors.NewConfigurationError("cash_withdrawal_cards",
			"must be between 0 and %d, got %d", c.Cards, c.CashWithdrawalCards)
	case c.CashWithdrawals < 0 || c.CashWithdrawals > c.Transactions:
		return ferrors.NewConfigurationError("cash_withdrawals",
			"must be between 0 and %d, got %d", c.Transactions, c.CashWithdrawals)
	case c.CashWithdrawals > 0 && c.CashWithdrawalCards == 0:
		return ferrors.NewConfigurationError("cash_withdrawals",
			"%d withdrawals requested but no card may withdraw cash", c.CashWithdrawals)
	case !(c.FraudRatio >= 0 && c.FraudRatio <= 1):
		return ferrors.NewConfigurationError("fraud_ratio", "must be in [0, 1], got %g", c.FraudRatio)
	case c.Start.IsZero() || c.End.IsZero():
		return ferrors.NewConfigurationError("start", "start and end must be set")
	case !c.Start.Before(c.End):
		return ferrors.NewConfigurationError("end", "start %s must be before end %s",
			c.Start.Format(time.RFC3339), c.End.Format(time.RFC3339))
	}
	return nil
}

// Generator produces a synthetic dataset of cards, profiles and labeled transactions
type Generator struct {
	cfg   Config
	rng   *rand.Rand
	faker *gofakeit.Faker
	homes []City
}

// New creates a generator for a validated configuration
func New(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	homes := make([]City, 0, len(Cities))
	for _, c := range Cities {
		if c.Country == "US" {
			homes = append(homes, c)
		}
	}

	return &Generator{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(seed)),
		faker: gofakeit.New(seed),
		homes: homes,
	}, nil
}

// Generate creates the dataset. Transactions are sorted by datetime.
func (g *Generator) Generate() (*model.Dataset, error) {
	cards := g.generateCards()
	profiles := g.generateProfiles(cards)
	txs, err := g.generateTransactions(cards, profiles)
	if err != nil {
		return nil, err
	}
	return &model.Dataset{
		Cards:        cards,
		Profiles:     profiles,
		Transactions: txs,
	}, nil
}

func (g *Generator) generateCards() []model.CreditCard {
	seen := make(map[string]struct{}, g.cfg.Cards)
	cards := make([]model.CreditCard, 0, g.cfg.Cards)
	month := time.Date(g.cfg.Start.Year(), g.cfg.Start.Month(), 1, 0, 0, 0, 0, time.UTC)

	for len(cards) < g.cfg.Cards {
		provider := "visa"
		if g.rng.Intn(2) == 1 {
			provider = "mastercard"
		}
		num := g.faker.CreditCardNumber(&gofakeit.CreditCardOptions{Types: []string{provider}})
		if _, dup := seen[num]; dup {
			continue
		}
		seen[num] = struct{}{}

		// a small share of cards is already expired at the start of the range
		expires := month.AddDate(0, g.rng.Intn(72)-6, 0)
		cards = append(cards, model.CreditCard{
			CCNum:    num,
			Provider: provider,
			Expires:  expires.Format(model.ExpiryLayout),
		})
	}
	return cards
}

func (g *Generator) generateProfiles(cards []model.CreditCard) []model.Profile {
	profiles := make([]model.Profile, len(cards))
	oldest := g.cfg.Start.AddDate(-90, 0, 0)
	youngest := g.cfg.Start.AddDate(-18, 0, 0)

	for i, card := range cards {
		home := g.homes[g.rng.Intn(len(g.homes))]
		born := g.faker.DateRange(oldest, youngest).UTC()
		profiles[i] = model.Profile{
			CCNum:     card.CCNum,
			Name:      g.faker.Name(),
			Sex:       g.faker.Gender(),
			Mail:      g.faker.Email(),
			Birthdate: time.Date(born.Year(), born.Month(), born.Day(), 0, 0, 0, 0, time.UTC),
			City:      home.Name,
			Country:   home.Country,
		}
	}
	return profiles
}

type eventKey struct {
	ccNum string
	sec   int64
}

func (g *Generator) generateTransactions(cards []model.CreditCard, profiles []model.Profile) ([]model.Transaction, error) {
	homeOf := make(map[string]City, len(profiles))
	for _, p := range profiles {
		homeOf[p.CCNum] = g.cityByName(p.City)
	}

	cashCards := make([]model.CreditCard, g.cfg.CashWithdrawalCards)
	for i, j := range g.rng.Perm(len(cards))[:g.cfg.CashWithdrawalCards] {
		cashCards[i] = cards[j]
	}

	span := int64(g.cfg.End.Sub(g.cfg.Start) / time.Second)
	if span < 1 {
		span = 1
	}

	used := make(map[eventKey]struct{}, g.cfg.Transactions)
	txs := make([]model.Transaction, 0, g.cfg.Transactions)

	for i := 0; i < g.cfg.Transactions; i++ {
		cash := i < g.cfg.CashWithdrawals
		var card model.CreditCard
		if cash {
			card = cashCards[g.rng.Intn(len(cashCards))]
		} else {
			card = cards[g.rng.Intn(len(cards))]
		}

		sec, err := g.drawSecond(card.CCNum, span, used)
		if err != nil {
			return nil, err
		}

		category := cashCategory
		if !cash {
			category = g.pickCategory()
		}
		home := homeOf[card.CCNum]
		fraud := g.rng.Float64() < g.cfg.FraudRatio

		loc := g.near(home)
		amount := g.amount(category.MinAmount, category.MaxAmount)
		if fraud {
			if g.rng.Intn(2) == 0 {
				// card testing: tiny amounts at the usual place
				amount = g.amount(0.01, 1.01)
			} else {
				// geographic attack: a large amount far from home
				loc = g.near(g.farFrom(home))
				amount = g.amount(1000, 10000)
			}
		}

		tid, err := uuid.NewRandomFromReader(g.rng)
		if err != nil {
			return nil, fmt.Errorf("failed to generate transaction id: %w", err)
		}

		txs = append(txs, model.Transaction{
			TID:        tid.String(),
			Datetime:   g.cfg.Start.Add(time.Duration(sec) * time.Second).UTC(),
			CCNum:      card.CCNum,
			Category:   category.Name,
			Amount:     amount,
			Latitude:   loc.Latitude,
			Longitude:  loc.Longitude,
			City:       loc.Name,
			Country:    loc.Country,
			FraudLabel: fraud,
		})
	}

	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].Datetime.Equal(txs[j].Datetime) {
			return txs[i].TID < txs[j].TID
		}
		return txs[i].Datetime.Before(txs[j].Datetime)
	})
	return txs, nil
}

func (g *Generator) drawSecond(ccNum string, span int64, used map[eventKey]struct{}) (int64, error) {
	for draw := 0; draw < maxTimestampDraws; draw++ {
		key := eventKey{ccNum: ccNum, sec: g.rng.Int63n(span)}
		if _, taken := used[key]; !taken {
			used[key] = struct{}{}
			return key.sec, nil
		}
	}
	return 0, ferrors.NewConfigurationError("end",
		"no free timestamp for card %s after %d draws; time range too narrow for %d transactions",
		ccNum, maxTimestampDraws, g.cfg.Transactions)
}

func (g *Generator) pickCategory() Category {
	var total float64
	for _, c := range Categories {
		total += c.Weight
	}
	r := g.rng.Float64() * total
	for _, c := range Categories {
		if r < c.Weight {
			return c
		}
		r -= c.Weight
	}
	return Categories[0]
}

// amount draws uniformly from [min, max) rounded to cents
func (g *Generator) amount(min, max float64) float64 {
	v := min + g.rng.Float64()*(max-min)
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// near jitters a city location by up to ~5km
func (g *Generator) near(c City) City {
	c.Latitude += (g.rng.Float64()*2 - 1) * 0.05
	c.Longitude += (g.rng.Float64()*2 - 1) * 0.05
	return c
}

func (g *Generator) farFrom(home City) City {
	for {
		c := Cities[g.rng.Intn(len(Cities))]
		if c.Country != home.Country {
			return c
		}
	}
}

func (g *Generator) cityByName(name string) City {
	for _, c := range g.homes {
		if c.Name == name {
			return c
		}
	}
	return g.homes[0]
}
