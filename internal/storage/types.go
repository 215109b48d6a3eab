package storage

import (
	"fmt"
	"time"
)

// Config configures storage.
//
// Driver values:
//   - "file": JSON document at Path
//   - "sqlite": SQLite database file at Path
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Data is everything the bot persists. The JSON shape is the on-disk format
// of the file driver.
type Data struct {
	Users    map[string]User                `json:"users"`
	Channels map[string]ChannelSubscription `json:"sendDailyMenuInto"`
}

type User struct {
	Roles                 []string `json:"roles"`
	PreferredMenuProvider string   `json:"preferredMenuProvider"`
}

// ChannelSubscription asks for a daily menu post in one channel.
// Time is HH:MM:SS in UTC; AddTime shifts the menu day by that many minutes.
type ChannelSubscription struct {
	Time     string `json:"time"`
	Provider string `json:"provider"`
	AddTime  int    `json:"addTime"`
}

func NewData() *Data {
	return &Data{Users: map[string]User{}, Channels: map[string]ChannelSubscription{}}
}

// Clone returns a deep copy.
func (d *Data) Clone() *Data {
	out := NewData()
	if d == nil {
		return out
	}
	for id, u := range d.Users {
		u.Roles = append([]string{}, u.Roles...)
		out.Users[id] = u
	}
	for id, c := range d.Channels {
		out.Channels[id] = c
	}
	return out
}

func (d *Data) normalize() {
	if d.Users == nil {
		d.Users = map[string]User{}
	}
	if d.Channels == nil {
		d.Channels = map[string]ChannelSubscription{}
	}
	for id, u := range d.Users {
		if u.Roles == nil {
			u.Roles = []string{}
			d.Users[id] = u
		}
	}
}

// PersistError reports a failed load or save. It is fatal at startup.
type PersistError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
