package config

import (
	"sort"
	"strings"
)

type BackendConfig interface {
	GetBaseURL() string
	GetReferer(path string) string
	GetDeviceID() string
}

type EndpointConfig interface {
	GetEndpoint(name string) string
}

// Endpoint names used across the client.
const (
	EndpointLogin    = "login"
	EndpointLogout   = "logout"
	EndpointBeers    = "beers"
	EndpointBeer     = "beer"
	EndpointCheckIns = "checkins"
	EndpointRewards  = "rewards"
	EndpointRedeem   = "redeem"
)

func defaultEndpoints() map[string]string {
	return map[string]string{
		EndpointLogin:    "/api/login",
		EndpointLogout:   "/api/logout",
		EndpointBeers:    "/api/beers",
		EndpointBeer:     "/api/beers/{id}",
		EndpointCheckIns: "/api/checkins",
		EndpointRewards:  "/api/rewards",
		EndpointRedeem:   "/api/rewards/redeem",
	}
}

func defaultReferers() map[string]string {
	return map[string]string{
		"/api/login":    "/login.php",
		"/api/beers":    "/beers.php",
		"/api/checkins": "/checkins.php",
		"/api/rewards":  "/rewards.php",
	}
}

func (s *Settings) GetBaseURL() string {
	return strings.TrimRight(s.BaseURL, "/")
}

func (s *Settings) GetDeviceID() string {
	return s.DeviceID
}

// GetEndpoint returns the path template for name, or "" when unknown.
func (s *Settings) GetEndpoint(name string) string {
	return s.Endpoints[name]
}

// GetReferer returns the absolute referer for a request path: the longest
// matching prefix in the referer table, else the default referer.
func (s *Settings) GetReferer(path string) string {
	prefixes := make([]string, 0, len(s.Referers))
	for prefix := range s.Referers {
		if strings.HasPrefix(path, prefix) {
			prefixes = append(prefixes, prefix)
		}
	}
	page := s.DefaultReferer
	if len(prefixes) > 0 {
		sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })
		page = s.Referers[prefixes[0]]
	}
	if page == "" {
		return s.GetBaseURL() + "/"
	}
	if strings.HasPrefix(page, "http://") || strings.HasPrefix(page, "https://") {
		return page
	}
	return s.GetBaseURL() + "/" + strings.TrimLeft(page, "/")
}
