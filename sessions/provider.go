package sessions

import (
	"context"

	"github.com/jrsteele09/taproom-client/apierror"
)

// Provider answers "is there a usable session right now". It is the only read
// path other packages use into the session store.
type Provider struct {
	repo Repo
}

func NewProvider(repo Repo) *Provider {
	return &Provider{repo: repo}
}

// Current returns the usable stored session or nil. A broken session layer is
// reported as a 401 so callers can send the user back through login.
func (p *Provider) Current(ctx context.Context) (*Record, error) {
	record, err := p.repo.Load(ctx)
	if err != nil {
		return nil, apierror.Unauthenticated("session storage unavailable: " + err.Error())
	}
	return Validate(record), nil
}
