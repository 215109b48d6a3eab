// Package subscription owns the persisted bot state: per-channel daily menu
// subscriptions and per-user settings.
package subscription

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"biteboard/internal/storage"
	"biteboard/pkg/logx"
)

const RoleAdmin = "admin"

// Service serializes all reads and writes of the persisted state.
//
// Every mutation is applied to a copy, saved in full, and only then made
// visible. When the save fails the in-memory state stays as it was.
type Service struct {
	mu    sync.Mutex
	store storage.Store
	data  *storage.Data
	log   logx.Logger
}

// Open loads the state and writes it back once so a fresh install gets a
// data file right away. Any error here is fatal for the caller.
func Open(ctx context.Context, st storage.Store, log logx.Logger) (*Service, error) {
	d, err := st.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Save(ctx, d); err != nil {
		return nil, err
	}
	s := &Service{store: st, data: d, log: log.With(logx.String("comp", "subscriptions"))}
	s.log.Info("state loaded", logx.Int("users", len(d.Users)), logx.Int("channels", len(d.Channels)))
	return s, nil
}

// mutate runs fn on a copy of the state and commits it after a successful save.
func (s *Service) mutate(ctx context.Context, fn func(d *storage.Data) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.data.Clone()
	if !fn(next) {
		return nil
	}
	if err := s.store.Save(ctx, next); err != nil {
		s.log.Error("persist failed", logx.Err(err))
		return err
	}
	s.data = next
	return nil
}

// Channels returns a snapshot of all subscriptions keyed by channel id.
func (s *Service) Channels() map[string]storage.ChannelSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]storage.ChannelSubscription, len(s.data.Channels))
	for id, c := range s.data.Channels {
		out[id] = c
	}
	return out
}

func (s *Service) Channel(channelID string) (storage.ChannelSubscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data.Channels[channelID]
	return c, ok
}

// SetChannel creates or replaces the subscription of channelID.
// The time must already be validated with ValidateTime.
func (s *Service) SetChannel(ctx context.Context, channelID string, sub storage.ChannelSubscription) error {
	if channelID == "" {
		return fmt.Errorf("channel id is empty")
	}
	return s.mutate(ctx, func(d *storage.Data) bool {
		d.Channels[channelID] = sub
		return true
	})
}

// RemoveChannel deletes the subscription of channelID and reports whether one existed.
func (s *Service) RemoveChannel(ctx context.Context, channelID string) (bool, error) {
	removed := false
	err := s.mutate(ctx, func(d *storage.Data) bool {
		if _, ok := d.Channels[channelID]; !ok {
			return false
		}
		delete(d.Channels, channelID)
		removed = true
		return true
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// FindOrCreateUser returns the user's record, creating and persisting an
// empty one on first use.
func (s *Service) FindOrCreateUser(ctx context.Context, userID string) (storage.User, error) {
	var out storage.User
	err := s.mutate(ctx, func(d *storage.Data) bool {
		if u, ok := d.Users[userID]; ok {
			out = u
			return false
		}
		out = storage.User{Roles: []string{}}
		d.Users[userID] = out
		return true
	})
	if err != nil {
		return storage.User{}, err
	}
	out.Roles = slices.Clone(out.Roles)
	return out, nil
}

func (s *Service) SetUserPreferredProvider(ctx context.Context, userID, provider string) error {
	return s.mutate(ctx, func(d *storage.Data) bool {
		u, ok := d.Users[userID]
		if !ok {
			u = storage.User{Roles: []string{}}
		}
		u.PreferredMenuProvider = provider
		d.Users[userID] = u
		return true
	})
}

// GrantRole adds role to the user unless present.
func (s *Service) GrantRole(ctx context.Context, userID, role string) error {
	return s.mutate(ctx, func(d *storage.Data) bool {
		u, ok := d.Users[userID]
		if !ok {
			u = storage.User{Roles: []string{}}
		}
		if slices.Contains(u.Roles, role) {
			return false
		}
		u.Roles = append(u.Roles, role)
		d.Users[userID] = u
		return true
	})
}

// HasRole never creates the user.
func (s *Service) HasRole(userID, role string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.data.Users[userID]
	return ok && slices.Contains(u.Roles, role)
}
