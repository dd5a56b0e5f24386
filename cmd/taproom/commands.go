package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/taproom-client/access"
	"github.com/jrsteele09/taproom-client/auth"
	"github.com/jrsteele09/taproom-client/catalog"
	"github.com/jrsteele09/taproom-client/internal/logging"
	"github.com/jrsteele09/taproom-client/internal/utils"
)

type command struct {
	summary string
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"login":        {"log in with username and password", runLogin},
	"cookie-login": {"log in from a captured Cookie header", runCookieLogin},
	"autologin":    {"renew the session from the remember-me cookie", runAutoLogin},
	"whoami":       {"show the stored session", runWhoAmI},
	"logout":       {"end the session", runLogout},
	"get":          {"send an authenticated GET: get <path> [key=value ...]", runGet},
	"post":         {"send an authenticated POST: post <path> [key=value ...]", runPost},
	"probe":        {"check that the backend is reachable", runProbe},
	"beers":        {"list beers", runBeers},
	"checkin":      {"check in a beer", runCheckIn},
	"rewards":      {"show points and rewards", runRewards},
	"redeem":       {"redeem a reward: redeem <reward-id>", runRedeem},
	"overview":     {"beers on tap, check-ins and rewards in one go", runOverview},
	"twin":         {"serve an in-memory backend for local testing", runTwin},
}

func newFlags(name string) *flag.FlagSet {
	return flag.NewFlagSet("taproom "+name, flag.ContinueOnError)
}

func runLogin(ctx context.Context, e *env, args []string) error {
	fs := newFlags("login")
	username := fs.String("username", "", "member username")
	password := fs.String("password", "", "member password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := e.open(ctx)
	if err != nil {
		return err
	}
	outcome, err := a.auth.Login(ctx, *username, *password)
	if err != nil {
		return err
	}
	return printOutcome(e, outcome)
}

func runCookieLogin(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errors.Wrap(errUsage, "cookie-login takes the cookie string as one argument")
	}
	a, err := e.open(ctx)
	if err != nil {
		return err
	}
	outcome, err := a.auth.HandleCookieLogin(ctx, args[0])
	if err != nil {
		return err
	}
	return printOutcome(e, outcome)
}

func runAutoLogin(ctx context.Context, e *env, _ []string) error {
	a, err := e.open(ctx)
	if err != nil {
		return err
	}
	outcome, err := a.auth.AutoLogin(ctx)
	if err != nil {
		return err
	}
	return printOutcome(e, outcome)
}

func printOutcome(e *env, outcome *auth.Outcome) error {
	if outcome.Message != "" {
		fmt.Fprintln(e.out, outcome.Message)
	}
	fmt.Fprintf(e.out, "Logged in as %s at %s\n", outcome.Session.DisplayName(), outcome.Session.StoreName)
	return nil
}

func runWhoAmI(ctx context.Context, e *env, _ []string) error {
	a, err := e.open(ctx)
	if err != nil {
		return err
	}
	record, err := a.provider.Current(ctx)
	if err != nil {
		return err
	}
	if record == nil {
		fmt.Fprintln(e.out, "Not logged in")
		return nil
	}
	shown := *record
	shown.SessionID = logging.Redact(shown.SessionID)
	return e.printJSON(shown)
}

func runLogout(ctx context.Context, e *env, args []string) error {
	fs := newFlags("logout")
	bestEffort := fs.Bool("best-effort", false, "clear the local session even when the server call fails")
	if err := fs.Parse(args); err != nil {
		return err
	}
	policy := auth.LogoutStrict
	if *bestEffort {
		policy = auth.LogoutBestEffort
	}
	a, err := e.open(ctx, auth.WithLogoutPolicy(policy))
	if err != nil {
		return err
	}
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "Logged out")
	return nil
}

// parsePairs turns key=value arguments into url.Values.
func parsePairs(args []string) (url.Values, error) {
	values := url.Values{}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, errors.Wrapf(errUsage, "expected key=value, got %q", arg)
		}
		values.Add(key, value)
	}
	return values, nil
}

func runGet(ctx context.Context, e *env, args []string) error {
	if len(args) == 0 {
		return errors.Wrap(errUsage, "get needs a path")
	}
	query, err := parsePairs(args[1:])
	if err != nil {
		return err
	}
	a, err := e.open(ctx)
	if err != nil {
		return err
	}
	resp, err := a.client.Get(ctx, args[0], query)
	if err != nil {
		return err
	}
	return e.printJSON(resp.Payload)
}

func runPost(ctx context.Context, e *env, args []string) error {
	if len(args) == 0 {
		return errors.Wrap(errUsage, "post needs a path")
	}
	pairs, err := parsePairs(args[1:])
	if err != nil {
		return err
	}
	form := access.Form{}
	for key := range pairs {
		form[key] = utils.Ptr(pairs.Get(key))
	}
	a, err := e.open(ctx)
	if err != nil {
		return err
	}
	resp, err := a.client.Post(ctx, args[0], form)
	if err != nil {
		return err
	}
	return e.printJSON(resp.Payload)
}

func runProbe(ctx context.Context, e *env, _ []string) error {
	a, err := e.open(ctx)
	if err != nil {
		return err
	}
	result := a.client.Probe(ctx)
	if !result.Reachable {
		fmt.Fprintf(e.out, "%s is unreachable\n", e.cfg.GetBaseURL())
		if result.Err != nil {
			return result.Err
		}
		return errors.New("backend unreachable")
	}
	fmt.Fprintf(e.out, "%s is reachable (status %d, %s)\n", e.cfg.GetBaseURL(), result.Status, result.Latency.Round(time.Millisecond))
	return nil
}

func runBeers(ctx context.Context, e *env, args []string) error {
	fs := newFlags("beers")
	style := fs.String("style", "", "only this style")
	onTap := fs.Bool("on-tap", false, "only beers currently on tap")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := e.open(ctx)
	if err != nil {
		return err
	}
	beers, err := a.catalog.Beers(ctx, catalog.BeerFilter{Style: *style, OnTapOnly: *onTap})
	if err != nil {
		return err
	}
	for _, b := range beers {
		tap := ""
		if b.OnTap {
			tap = " (on tap)"
		}
		fmt.Fprintf(e.out, "%-4s %-20s %-8s %4.1f%%%s\n", b.ID, b.Name, b.Style, b.ABV, tap)
	}
	return nil
}

func runCheckIn(ctx context.Context, e *env, args []string) error {
	fs := newFlags("checkin")
	beerID := fs.String("beer", "", "beer id")
	rating := fs.Int("rating", 0, "rating from 1 to 5")
	note := fs.String("note", "", "tasting note")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var notePtr *string
	if *note != "" {
		notePtr = utils.Ptr(*note)
	}
	a, err := e.open(ctx)
	if err != nil {
		return err
	}
	checkIn, err := a.catalog.CheckIn(ctx, *beerID, *rating, notePtr)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Checked in %s (%d/5)\n", checkIn.BeerName, checkIn.Rating)
	return nil
}

func runRewards(ctx context.Context, e *env, _ []string) error {
	a, err := e.open(ctx)
	if err != nil {
		return err
	}
	rewards, err := a.catalog.Rewards(ctx)
	if err != nil {
		return err
	}
	return e.printJSON(rewards)
}

func runRedeem(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errors.Wrap(errUsage, "redeem takes a reward id")
	}
	a, err := e.open(ctx)
	if err != nil {
		return err
	}
	redemption, err := a.catalog.Redeem(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s Balance: %d\n", redemption.Message, redemption.Balance)
	return nil
}

func runOverview(ctx context.Context, e *env, _ []string) error {
	a, err := e.open(ctx)
	if err != nil {
		return err
	}
	overview, err := a.catalog.Overview(ctx)
	if err != nil {
		return err
	}
	return e.printJSON(overview)
}
