package scheduler

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"biteboard/internal/delivery"
	"biteboard/internal/menu"
	"biteboard/internal/provider"
	"biteboard/internal/storage"
	kit "biteboard/internal/transport"
	"biteboard/pkg/logx"
)

func hms(h, m, s int) time.Duration {
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
}

func utc(day, h, m, s int) time.Time {
	return time.Date(2026, time.October, day, h, m, s, 0, time.UTC)
}

func TestDue(t *testing.T) {
	t.Parallel()
	tick := 10 * time.Second
	tests := []struct {
		now  time.Time
		at   time.Duration
		want bool
	}{
		{utc(18, 12, 0, 5), hms(12, 0, 3), true},
		{utc(18, 12, 0, 3), hms(12, 0, 3), true},
		{utc(18, 12, 0, 12), hms(12, 0, 3), true},
		{utc(18, 12, 0, 13), hms(12, 0, 3), false},
		{utc(18, 12, 0, 2), hms(12, 0, 3), false},
		{utc(19, 0, 0, 3), hms(23, 59, 55), true},
		{utc(19, 0, 0, 5), hms(0, 0, 0), true},
		{time.Date(2026, time.October, 18, 14, 0, 5, 0, time.FixedZone("CEST", 2*3600)), hms(12, 0, 3), true},
	}
	for _, tt := range tests {
		if got := Due(tt.now, tt.at, tick); got != tt.want {
			t.Fatalf("Due(%s, %s) = %v, want %v", tt.now, tt.at, got, tt.want)
		}
	}
}

type subs map[string]storage.ChannelSubscription

func (s subs) Channels() map[string]storage.ChannelSubscription {
	out := make(map[string]storage.ChannelSubscription, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

type fakeProvider struct {
	name  string
	items map[menu.Date][]menu.Item
	err   error
}

func (p *fakeProvider) Name() string      { return p.name }
func (p *fakeProvider) Link() string      { return "" }
func (p *fakeProvider) Thumbnail() string { return "" }
func (p *fakeProvider) Fetch(_ context.Context, d menu.Date) ([]menu.Item, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.items[d], nil
}

type providers map[string]provider.Provider

func (p providers) Get(name string) (provider.Provider, bool) {
	v, ok := p[name]
	return v, ok
}

type sent struct {
	to     kit.ChatTarget
	date   menu.Date
	noMenu bool
	items  int
}

type recorder struct {
	mu   sync.Mutex
	sent []sent
}

func (r *recorder) Menu(_ context.Context, to kit.ChatTarget, m delivery.Menu) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{to: to, date: m.Date, items: len(m.Items)})
	return nil
}

func (r *recorder) NoMenu(_ context.Context, to kit.ChatTarget, _ provider.Provider, d menu.Date) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{to: to, date: d, noMenu: true})
	return nil
}

func (r *recorder) take() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sent
	r.sent = nil
	return out
}

func wait(t *testing.T, s *Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestTickDeliversTomorrowsMenu(t *testing.T) {
	t.Parallel()
	tomorrow := menu.Date{Year: 2026, Month: time.October, Day: 19}
	p := &fakeProvider{name: "P", items: map[menu.Date][]menu.Item{
		tomorrow: {menu.NewItem(tomorrow), menu.NewItem(tomorrow)},
	}}
	rec := &recorder{}
	s := New(Config{Enabled: true}, subs{
		"-100:7": {Time: "12:00:03", Provider: "P", AddTime: 1440},
		"-200":   {Time: "18:00:00", Provider: "P"},
	}, providers{"P": p}, rec, logx.Nop())
	ctx := context.Background()

	if got := s.Tick(ctx, utc(18, 12, 0, 5)); !reflect.DeepEqual(got, []string{"-100:7"}) {
		t.Fatalf("fired = %v", got)
	}
	wait(t, s)
	got := rec.take()
	want := []sent{{to: kit.ChatTarget{ChatID: -100, ThreadID: 7}, date: tomorrow, items: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("sent = %+v, want %+v", got, want)
	}

	if fired := s.Tick(ctx, utc(18, 12, 0, 13)); len(fired) != 0 {
		t.Fatalf("fired again at 12:00:13: %v", fired)
	}
}

func TestTickFailuresAreContained(t *testing.T) {
	t.Parallel()
	today := menu.Date{Year: 2026, Month: time.October, Day: 18}
	rec := &recorder{}
	s := New(Config{Enabled: true}, subs{
		"1": {Time: "08:00:00", Provider: "gone"},
		"2": {Time: "08:00:00", Provider: "empty"},
		"3": {Time: "08:00:00", Provider: "down"},
		"4": {Time: "8 o'clock", Provider: "empty"},
	}, providers{
		"empty": &fakeProvider{name: "empty"},
		"down":  &fakeProvider{name: "down", err: &provider.FetchError{Provider: "down", Err: context.DeadlineExceeded}},
	}, rec, logx.Nop())

	fired := s.Tick(context.Background(), utc(18, 8, 0, 1))
	if !reflect.DeepEqual(fired, []string{"1", "2", "3"}) {
		t.Fatalf("fired = %v", fired)
	}
	wait(t, s)
	got := rec.take()
	want := []sent{{to: kit.ChatTarget{ChatID: 2}, date: today, noMenu: true}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("sent = %+v, want %+v", got, want)
	}
}

func TestCatchUp(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	channels := subs{"5": {Time: "12:00:00", Provider: "P"}}
	s := New(Config{Enabled: true, CatchUp: true}, channels, providers{"P": &fakeProvider{name: "P"}}, rec, logx.Nop())
	ctx := context.Background()

	// First seen after today's occurrence: nothing is owed.
	if fired := s.Tick(ctx, utc(18, 12, 30, 0)); len(fired) != 0 {
		t.Fatalf("fired on first sight: %v", fired)
	}
	// Tomorrow's window is missed; the next tick catches up exactly once.
	if fired := s.Tick(ctx, utc(19, 12, 0, 20)); !reflect.DeepEqual(fired, []string{"5"}) {
		t.Fatalf("catch-up fired = %v", fired)
	}
	if fired := s.Tick(ctx, utc(19, 12, 0, 30)); len(fired) != 0 {
		t.Fatalf("fired twice: %v", fired)
	}
	// A regular in-window tick fires once as well.
	if fired := s.Tick(ctx, utc(20, 12, 0, 1)); !reflect.DeepEqual(fired, []string{"5"}) {
		t.Fatalf("in-window fired = %v", fired)
	}
	if fired := s.Tick(ctx, utc(20, 12, 0, 5)); len(fired) != 0 {
		t.Fatalf("in-window fired twice: %v", fired)
	}
	wait(t, s)
	if n := len(rec.take()); n != 2 {
		t.Fatalf("deliveries = %d, want 2", n)
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Tick: time.Second}, subs{}, providers{}, &recorder{}, logx.Nop())
	s.Start(context.Background())
	s.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("Stop: %v", err)
	}
}

func TestRunTickIgnoresJitter(t *testing.T) {
	t.Parallel()
	channels := subs{}
	for i := 0; i <= 30; i++ {
		channels[fmt.Sprint(i+1)] = storage.ChannelSubscription{Time: fmt.Sprintf("12:00:%02d", i), Provider: "gone"}
	}
	s := New(Config{Enabled: true, Tick: 10 * time.Second}, channels, providers{}, &recorder{}, logx.Nop())

	readings := []time.Time{
		utc(18, 12, 0, 0).Add(950 * time.Millisecond),
		utc(18, 12, 0, 10).Add(20 * time.Millisecond),
		utc(18, 12, 0, 20).Add(980 * time.Millisecond),
		utc(18, 12, 0, 30).Add(time.Millisecond),
	}
	wantPerTick := []int{1, 10, 10, 10}
	seen := map[string]int{}
	for i, r := range readings {
		s.now = func() time.Time { return r }
		fired := s.runTick()
		if len(fired) != wantPerTick[i] {
			t.Fatalf("tick at %s fired %d channels, want %d: %v", r.Format("15:04:05.000"), len(fired), wantPerTick[i], fired)
		}
		for _, id := range fired {
			seen[id]++
		}
	}
	wait(t, s)
	if len(seen) != len(channels) {
		t.Fatalf("fired %d distinct channels, want %d", len(seen), len(channels))
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("channel %s fired %d times", id, n)
		}
	}
}

func TestStartReplacesIdleSupervisor(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Tick: time.Second}, subs{}, providers{}, &recorder{}, logx.Nop())
	s.Tick(context.Background(), utc(18, 9, 0, 0))
	before := s.supervisor().Context()

	s.Start(context.Background())
	select {
	case <-before.Done():
	default:
		t.Fatal("supervisor created before Start was not cancelled")
	}
	if err := s.supervisor().Context().Err(); err != nil {
		t.Fatalf("running supervisor context: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("Stop: %v", err)
	}
}
