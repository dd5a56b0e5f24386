package twin

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jrsteele09/taproom-client/catalog"
)

// Seeded identities.
const (
	DemoMemberID  = "42"
	DemoUsername  = "hoplover"
	DemoPassword  = "s3cret"
	DemoStoreID   = "7"
	DemoStoreName = "Main Street Taproom"

	checkInPoints = 10
)

type state struct {
	mu sync.RWMutex

	storeID   string
	storeName string

	members    map[string]*Member // by id
	byUsername map[string]string  // username -> id
	beers      []catalog.Beer
	rewards    []catalog.Reward
	checkIns   map[string][]catalog.CheckIn // member id -> newest first
	nextID     int
}

func newState() *state {
	return &state{
		storeID:    DemoStoreID,
		storeName:  DemoStoreName,
		members:    make(map[string]*Member),
		byUsername: make(map[string]string),
		checkIns:   make(map[string][]catalog.CheckIn),
		beers: []catalog.Beer{
			{ID: "1", Name: "Harbour Haze", Style: "IPA", Brewery: "Main Street", ABV: 6.5, IBU: 55, OnTap: true},
			{ID: "2", Name: "Night Shift", Style: "Stout", Brewery: "Main Street", ABV: 7.2, IBU: 40, OnTap: true},
			{ID: "3", Name: "Orchard Row", Style: "Sour", Brewery: "Guest", ABV: 4.8, OnTap: false},
			{ID: "4", Name: "Dockside Lager", Style: "Lager", Brewery: "Main Street", ABV: 4.5, IBU: 18, OnTap: true},
		},
		rewards: []catalog.Reward{
			{ID: "pint", Name: "Free pint", Points: 100},
			{ID: "glass", Name: "Branded glass", Points: 250},
			{ID: "tour", Name: "Brewery tour", Points: 500},
		},
	}
}

func (s *state) addMember(m *Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
	s.byUsername[m.Username] = m.ID
}

// member returns a copy of the member.
func (s *state) member(id string) (Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	if !ok {
		return Member{}, false
	}
	return *m, true
}

func (s *state) memberByUsername(username string) (Member, bool) {
	s.mu.RLock()
	id, ok := s.byUsername[username]
	s.mu.RUnlock()
	if !ok {
		return Member{}, false
	}
	return s.member(id)
}

func (s *state) touchLogin(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.members[id]; ok {
		m.LastLogin = at
	}
}

func (s *state) listBeers(style string, onTapOnly bool) []catalog.Beer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	beers := make([]catalog.Beer, 0, len(s.beers))
	for _, b := range s.beers {
		if style != "" && b.Style != style {
			continue
		}
		if onTapOnly && !b.OnTap {
			continue
		}
		beers = append(beers, b)
	}
	return beers
}

func (s *state) beer(id string) (catalog.Beer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.beers {
		if b.ID == id {
			return b, true
		}
	}
	return catalog.Beer{}, false
}

func (s *state) addCheckIn(memberID string, beer catalog.Beer, rating int, note string, at time.Time) catalog.CheckIn {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	checkIn := catalog.CheckIn{
		ID:        strconv.Itoa(s.nextID),
		BeerID:    beer.ID,
		BeerName:  beer.Name,
		Rating:    rating,
		Note:      note,
		CreatedAt: at.UTC(),
	}
	s.checkIns[memberID] = append([]catalog.CheckIn{checkIn}, s.checkIns[memberID]...)
	if m, ok := s.members[memberID]; ok {
		m.Points += checkInPoints
	}
	return checkIn
}

func (s *state) listCheckIns(memberID string) []catalog.CheckIn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]catalog.CheckIn{}, s.checkIns[memberID]...)
}

func (s *state) rewardsFor(memberID string) catalog.Rewards {
	s.mu.RLock()
	defer s.mu.RUnlock()
	balance := 0
	if m, ok := s.members[memberID]; ok {
		balance = m.Points
	}
	rewards := make([]catalog.Reward, 0, len(s.rewards))
	for _, r := range s.rewards {
		r.Redeemable = r.Points <= balance
		rewards = append(rewards, r)
	}
	sort.Slice(rewards, func(i, j int) bool { return rewards[i].Points < rewards[j].Points })
	return catalog.Rewards{Balance: balance, Rewards: rewards}
}

// redeem spends points; ok is false when the reward is unknown.
func (s *state) redeem(memberID, rewardID string) (balance int, ok bool, enough bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, found := s.members[memberID]
	if !found {
		return 0, false, false
	}
	for _, r := range s.rewards {
		if r.ID != rewardID {
			continue
		}
		if m.Points < r.Points {
			return m.Points, true, false
		}
		m.Points -= r.Points
		return m.Points, true, true
	}
	return m.Points, false, false
}
