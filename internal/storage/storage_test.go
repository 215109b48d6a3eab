package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"biteboard/pkg/logx"
)

func sampleData() *Data {
	d := NewData()
	d.Users["alice"] = User{Roles: []string{"admin", "tester"}, PreferredMenuProvider: "Hochschule Mannheim"}
	d.Users["bob"] = User{Roles: []string{}}
	d.Channels["-100123:7"] = ChannelSubscription{Time: "09:30:00", Provider: "Hochschule Mannheim", AddTime: 1440}
	return d
}

func TestStoresRoundTrip(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"file", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "nested", "bot-data."+driver)
			st, err := Open(Config{Driver: driver, Path: path}, logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer st.Close()
			ctx := context.Background()

			empty, err := st.Load(ctx)
			if err != nil {
				t.Fatalf("Load empty: %v", err)
			}
			if len(empty.Users) != 0 || len(empty.Channels) != 0 {
				t.Fatalf("fresh store not empty: %+v", empty)
			}

			want := sampleData()
			if err := st.Save(ctx, want); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := st.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("Load = %+v, want %+v", got, want)
			}

			// Saves replace, they do not merge.
			delete(want.Channels, "-100123:7")
			if err := st.Save(ctx, want); err != nil {
				t.Fatalf("second Save: %v", err)
			}
			got, _ = st.Load(ctx)
			if len(got.Channels) != 0 {
				t.Fatalf("channels after replace = %+v", got.Channels)
			}
		})
	}
}

func TestFileStoreFormat(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bot-data.json")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.Save(context.Background(), sampleData()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var raw map[string]map[string]map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	sub := raw["sendDailyMenuInto"]["-100123:7"]
	if sub["time"] != "09:30:00" || sub["provider"] != "Hochschule Mannheim" || sub["addTime"] != float64(1440) {
		t.Fatalf("subscription on disk = %v", sub)
	}
	if raw["users"]["alice"]["preferredMenuProvider"] != "Hochschule Mannheim" {
		t.Fatalf("user on disk = %v", raw["users"]["alice"])
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestFileStoreLoadEdgeCases(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "blank file", content: "  \n"},
		{name: "missing sections", content: `{"users":{"u":{"preferredMenuProvider":"x"}}}`},
		{name: "corrupt", content: `{"users":`, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "data.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			st, _ := Open(Config{Path: path}, logx.Nop())
			d, err := st.Load(context.Background())
			if tt.wantErr {
				var pe *PersistError
				if !errors.As(err, &pe) {
					t.Fatalf("err = %v, want *PersistError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if d.Users == nil || d.Channels == nil {
				t.Fatalf("maps not initialized: %+v", d)
			}
			for id, u := range d.Users {
				if u.Roles == nil {
					t.Fatalf("user %s has nil roles", id)
				}
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()
	d := sampleData()
	c := d.Clone()
	c.Users["alice"].Roles[0] = "changed"
	if d.Users["alice"].Roles[0] != "admin" {
		t.Fatal("Clone shares role slices")
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "redis", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error")
	}
}
