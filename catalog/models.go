package catalog

import "time"

type Beer struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Style       string  `json:"style"`
	Brewery     string  `json:"brewery"`
	ABV         float64 `json:"abv"`
	IBU         int     `json:"ibu,omitempty"`
	Description string  `json:"description,omitempty"`
	OnTap       bool    `json:"on_tap"`
}

type CheckIn struct {
	ID        string    `json:"id"`
	BeerID    string    `json:"beer_id"`
	BeerName  string    `json:"beer_name"`
	Rating    int       `json:"rating"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Reward struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Points      int    `json:"points"`
	Redeemable  bool   `json:"redeemable"`
}

// Rewards is the member's point balance and the rewards on offer.
type Rewards struct {
	Balance int      `json:"balance"`
	Rewards []Reward `json:"rewards"`
}

// Redemption is the result of spending points on a reward.
type Redemption struct {
	RewardID string `json:"reward_id"`
	Balance  int    `json:"balance"`
	Message  string `json:"message"`
}

// BeerFilter narrows the beer list. Zero values mean no filter.
type BeerFilter struct {
	Style     string
	OnTapOnly bool
}

// Overview is everything the home screen shows.
type Overview struct {
	Beers    []Beer
	CheckIns []CheckIn
	Rewards  Rewards
}
