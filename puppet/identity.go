// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package puppet

import "fmt"

// selfIDKey is where session memory keeps the last logged-in id.
const selfIDKey = "puppet.self-id"

// SelfID returns the logged-in contact id, or "" when logged out.
func (p *Puppet) SelfID() string {
	p.identityMu.Lock()
	defer p.identityMu.Unlock()
	return p.selfID
}

// LoggedIn reports whether a contact is logged in.
func (p *Puppet) LoggedIn() bool { return p.SelfID() != "" }

// SetSelfID records a login and emits login. It returns
// ErrAlreadyLoggedIn when a login is already recorded.
func (p *Puppet) SetSelfID(id string) error {
	payload, err := p.login(id)
	if err != nil {
		return err
	}
	p.emit(EventLogin, payload)
	return nil
}

// ClearSelfID records a logout, drops every cached payload and emits
// logout. It returns ErrNotLoggedIn when nobody is logged in.
func (p *Puppet) ClearSelfID() error {
	payload, err := p.logout("")
	if err != nil {
		return err
	}
	p.emit(EventLogout, payload)
	return nil
}

// RememberedSelfID returns the id of the last login saved in session
// memory, which outlives logouts and restarts.
func (p *Puppet) RememberedSelfID() string {
	return p.memory.Card().GetString(selfIDKey)
}

func (p *Puppet) login(id string) (EventLoginPayload, error) {
	if id == "" {
		return EventLoginPayload{}, fmt.Errorf("puppet: login with an empty contact id")
	}

	p.identityMu.Lock()
	current := p.selfID
	if current == "" {
		p.selfID = id
	}
	p.identityMu.Unlock()

	if current != "" {
		return EventLoginPayload{}, fmt.Errorf("%w (logged in as %s)", ErrAlreadyLoggedIn, current)
	}
	if err := p.memory.Card().Set(selfIDKey, id); err != nil {
		p.logger.Warn("recording self id in session memory failed", "error", err)
	}
	p.logger.Info("logged in", "contact_id", id)
	return EventLoginPayload{ContactID: id}, nil
}

func (p *Puppet) logout(data string) (EventLogoutPayload, error) {
	p.identityMu.Lock()
	current := p.selfID
	p.selfID = ""
	p.identityMu.Unlock()

	if current == "" {
		return EventLogoutPayload{}, ErrNotLoggedIn
	}
	// Snapshots belong to the account that fetched them.
	p.caches.purge()
	p.logger.Info("logged out", "contact_id", current, "reason", data)
	return EventLogoutPayload{ContactID: current, Data: data}, nil
}
