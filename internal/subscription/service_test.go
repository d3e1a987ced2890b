package subscription

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"stockbot/internal/inventory"
	logx "stockbot/pkg/logx"
)

type memStore struct {
	data  map[string][]string
	saves int
	err   error
}

func (m *memStore) LoadSubscriptions(context.Context) (map[string][]string, error) {
	return m.data, nil
}

func (m *memStore) SaveSubscriptions(_ context.Context, subs map[string][]string) error {
	m.saves++
	if m.err != nil {
		return m.err
	}
	m.data = subs
	return nil
}

func known(names ...string) inventory.KnownSet {
	ks := inventory.KnownSet{}
	for _, n := range names {
		ks[n] = struct{}{}
	}
	return ks
}

func TestSubscribeResolvesAndIsIdempotent(t *testing.T) {
	t.Parallel()
	st := &memStore{}
	svc := New(st, DefaultCutoff, logx.Nop())
	ks := known("Carrot Seed", "Tomato Seed")

	res := svc.Subscribe(context.Background(), "42", SplitList("carot seed, xyz123, ,"), ks)
	if len(res.Added) != 2 {
		t.Fatalf("added = %+v", res.Added)
	}
	if res.Added[0].Name != "Carrot Seed" || res.Added[0].AsTyped {
		t.Fatalf("first added = %+v", res.Added[0])
	}
	if res.Added[1].Name != "xyz123" || !res.Added[1].AsTyped {
		t.Fatalf("second added = %+v", res.Added[1])
	}
	if st.saves != 1 {
		t.Fatalf("saves = %d, want 1", st.saves)
	}

	again := svc.Subscribe(context.Background(), "42", []string{"CARROT SEED"}, ks)
	if len(again.Added) != 0 || !reflect.DeepEqual(again.Already, []string{"Carrot Seed"}) {
		t.Fatalf("second subscribe = %+v", again)
	}
	if st.saves != 1 {
		t.Fatalf("no-op subscribe persisted; saves = %d", st.saves)
	}
	if got := svc.List("42"); !reflect.DeepEqual(got, []string{"Carrot Seed", "xyz123"}) {
		t.Fatalf("list = %v", got)
	}
	if !reflect.DeepEqual(st.data["42"], []string{"Carrot Seed", "xyz123"}) {
		t.Fatalf("persisted = %v", st.data)
	}
}

func TestSubscribeBeforeFirstPoll(t *testing.T) {
	t.Parallel()
	svc := New(nil, DefaultCutoff, logx.Nop())
	res := svc.Subscribe(context.Background(), "1", []string{"carot seed"}, nil)
	if !res.Unverified {
		t.Fatal("expected unverified result with empty known set")
	}
	if len(res.Added) != 1 || res.Added[0].Name != "carot seed" || res.Added[0].AsTyped {
		t.Fatalf("added = %+v", res.Added)
	}
}

func TestUnsubscribe(t *testing.T) {
	t.Parallel()
	st := &memStore{data: map[string][]string{"7": {"Carrot Seed", "Common Egg"}}}
	svc := New(st, DefaultCutoff, logx.Nop())
	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	res := svc.Unsubscribe(context.Background(), "7", []string{"carrot seed", "Beanstalk"})
	if !reflect.DeepEqual(res.Removed, []string{"Carrot Seed"}) || !reflect.DeepEqual(res.NotFound, []string{"Beanstalk"}) {
		t.Fatalf("result = %+v", res)
	}
	if got := svc.List("7"); !reflect.DeepEqual(got, []string{"Common Egg"}) {
		t.Fatalf("list = %v", got)
	}

	svc.Unsubscribe(context.Background(), "7", []string{"common egg"})
	if svc.Users() != 0 {
		t.Fatalf("users = %d, want empty table", svc.Users())
	}
	if _, ok := st.data["7"]; ok {
		t.Fatalf("persisted table still has user: %v", st.data)
	}
}

func TestSubscribeReportsSaveError(t *testing.T) {
	t.Parallel()
	boom := errors.New("disk full")
	svc := New(&memStore{err: boom}, DefaultCutoff, logx.Nop())
	res := svc.Subscribe(context.Background(), "1", []string{"Carrot Seed"}, known("Carrot Seed"))
	if !errors.Is(res.SaveErr, boom) {
		t.Fatalf("SaveErr = %v", res.SaveErr)
	}
	if got := svc.List("1"); len(got) != 1 {
		t.Fatalf("in-memory table not updated: %v", got)
	}
}
