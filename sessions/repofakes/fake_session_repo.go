package fakesessionrepo

import (
	"context"
	"sync"

	"github.com/jrsteele09/taproom-client/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

type FakeSessionRepo struct {
	record *sessions.Record
	lock   sync.RWMutex

	loadErr  error
	saveErr  error
	clearErr error

	saves  int
	clears int
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{}
}

// Seed stores a record without counting it as a save.
func (sr *FakeSessionRepo) Seed(record *sessions.Record) {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	sr.record = copyRecord(record)
}

func (sr *FakeSessionRepo) FailLoad(err error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	sr.loadErr = err
}

func (sr *FakeSessionRepo) FailSave(err error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	sr.saveErr = err
}

func (sr *FakeSessionRepo) FailClear(err error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	sr.clearErr = err
}

func (sr *FakeSessionRepo) Saves() int {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	return sr.saves
}

func (sr *FakeSessionRepo) Clears() int {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	return sr.clears
}

// Stored returns the raw stored record, usable or not.
func (sr *FakeSessionRepo) Stored() *sessions.Record {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	return copyRecord(sr.record)
}

func (sr *FakeSessionRepo) Save(_ context.Context, record *sessions.Record) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	if sr.saveErr != nil {
		return sr.saveErr
	}
	sr.record = copyRecord(record)
	sr.saves++
	return nil
}

func (sr *FakeSessionRepo) Load(_ context.Context) (*sessions.Record, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	if sr.loadErr != nil {
		return nil, sr.loadErr
	}
	return sessions.Validate(copyRecord(sr.record)), nil
}

func (sr *FakeSessionRepo) Clear(_ context.Context) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	if sr.clearErr != nil {
		return sr.clearErr
	}
	sr.record = nil
	sr.clears++
	return nil
}

func copyRecord(record *sessions.Record) *sessions.Record {
	if record == nil {
		return nil
	}
	c := *record
	return &c
}
