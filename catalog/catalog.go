// Package catalog is the typed surface over the brewery's beer list, check-ins
// and rewards. Every call goes through the session-authenticated access client.
package catalog

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/jrsteele09/taproom-client/access"
	"github.com/jrsteele09/taproom-client/apierror"
	"github.com/jrsteele09/taproom-client/internal/config"
)

const (
	minRating = 1
	maxRating = 5
)

// Client is the authenticated request surface. *access.Client implements it.
type Client interface {
	Get(ctx context.Context, path string, query url.Values) (*access.Response, error)
	Post(ctx context.Context, path string, form access.Form) (*access.Response, error)
}

type Service struct {
	client    Client
	endpoints config.EndpointConfig
	logger    zerolog.Logger
}

type ServiceOption func(*Service)

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(client Client, endpoints config.EndpointConfig, options ...ServiceOption) (*Service, error) {
	if client == nil {
		return nil, errors.New("[catalog.NewService] client is required")
	}
	if endpoints == nil {
		return nil, errors.New("[catalog.NewService] endpoint config is required")
	}
	s := &Service{client: client, endpoints: endpoints, logger: log.Logger}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Beers lists the store's beers.
func (s *Service) Beers(ctx context.Context, filter BeerFilter) ([]Beer, error) {
	query := url.Values{}
	if filter.Style != "" {
		query.Set("style", filter.Style)
	}
	if filter.OnTapOnly {
		query.Set("on_tap", "1")
	}
	var body struct {
		Beers []Beer `json:"beers"`
	}
	if err := s.get(ctx, s.endpoints.GetEndpoint(config.EndpointBeers), query, &body); err != nil {
		return nil, err
	}
	return body.Beers, nil
}

// Beer fetches one beer by id.
func (s *Service) Beer(ctx context.Context, id string) (*Beer, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apierror.Validation("beer id is required", http.StatusBadRequest)
	}
	var body struct {
		Beer *Beer `json:"beer"`
	}
	if err := s.get(ctx, s.path(config.EndpointBeer, id), nil, &body); err != nil {
		return nil, err
	}
	if body.Beer == nil {
		return nil, apierror.FromStatus(http.StatusNotFound, "beer not found")
	}
	return body.Beer, nil
}

// CheckIn records that the member drank a beer. note may be nil.
func (s *Service) CheckIn(ctx context.Context, beerID string, rating int, note *string) (*CheckIn, error) {
	if strings.TrimSpace(beerID) == "" {
		return nil, apierror.Validation("beer id is required", http.StatusBadRequest)
	}
	if rating < minRating || rating > maxRating {
		return nil, apierror.Validation("rating must be between 1 and 5", http.StatusBadRequest)
	}
	ratingValue := strconv.Itoa(rating)
	form := access.Form{
		"beer_id": &beerID,
		"rating":  &ratingValue,
		"note":    note,
	}
	var body struct {
		CheckIn *CheckIn `json:"checkin"`
	}
	if err := s.post(ctx, s.endpoints.GetEndpoint(config.EndpointCheckIns), form, &body); err != nil {
		return nil, err
	}
	if body.CheckIn == nil {
		return nil, apierror.Parse(http.StatusOK, "missing checkin")
	}
	s.logger.Debug().Str("beer_id", beerID).Int("rating", rating).Msg("checked in")
	return body.CheckIn, nil
}

// CheckIns lists the member's check-ins, newest first.
func (s *Service) CheckIns(ctx context.Context) ([]CheckIn, error) {
	var body struct {
		CheckIns []CheckIn `json:"checkins"`
	}
	if err := s.get(ctx, s.endpoints.GetEndpoint(config.EndpointCheckIns), nil, &body); err != nil {
		return nil, err
	}
	return body.CheckIns, nil
}

func (s *Service) Rewards(ctx context.Context) (*Rewards, error) {
	var body Rewards
	if err := s.get(ctx, s.endpoints.GetEndpoint(config.EndpointRewards), nil, &body); err != nil {
		return nil, err
	}
	return &body, nil
}

// Redeem spends points on a reward.
func (s *Service) Redeem(ctx context.Context, rewardID string) (*Redemption, error) {
	if strings.TrimSpace(rewardID) == "" {
		return nil, apierror.Validation("reward id is required", http.StatusBadRequest)
	}
	var body Redemption
	form := access.Form{"reward_id": &rewardID}
	if err := s.post(ctx, s.endpoints.GetEndpoint(config.EndpointRedeem), form, &body); err != nil {
		return nil, err
	}
	if body.RewardID == "" {
		body.RewardID = rewardID
	}
	return &body, nil
}

// Overview loads beers, check-ins and rewards concurrently. The three requests
// share one session acquisition; the first failure cancels the others.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	var overview Overview
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		beers, err := s.Beers(ctx, BeerFilter{OnTapOnly: true})
		overview.Beers = beers
		return err
	})
	g.Go(func() error {
		checkIns, err := s.CheckIns(ctx)
		overview.CheckIns = checkIns
		return err
	})
	g.Go(func() error {
		rewards, err := s.Rewards(ctx)
		if rewards != nil {
			overview.Rewards = *rewards
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apierror.Wrap(err)
	}
	return &overview, nil
}

func (s *Service) path(endpoint, id string) string {
	return strings.ReplaceAll(s.endpoints.GetEndpoint(endpoint), "{id}", url.PathEscape(id))
}

func (s *Service) get(ctx context.Context, path string, query url.Values, v any) error {
	resp, err := s.client.Get(ctx, path, query)
	if err != nil {
		return apierror.Wrap(err)
	}
	if err := resp.Decode(v); err != nil {
		return apierror.Wrap(err)
	}
	return nil
}

func (s *Service) post(ctx context.Context, path string, form access.Form, v any) error {
	resp, err := s.client.Post(ctx, path, form)
	if err != nil {
		return apierror.Wrap(err)
	}
	if err := resp.Decode(v); err != nil {
		return apierror.Wrap(err)
	}
	return nil
}
