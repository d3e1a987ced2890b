package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalJSON = `{
  "telegram": {"token": "file-token", "owner_user_ids": [1]},
  "source": {"url": "https://example.test/stock"},
  "stock": {"chats": [{"chat_id": -100}]}
}`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDecodeFormats(t *testing.T) {
	t.Parallel()

	yamlBody := `
telegram:
  token: file-token
  owner_user_ids: [1]
source:
  url: https://example.test/stock
poll:
  enabled: false
  retry_attempts: 5
stock:
  chats:
    - chat_id: -100
      thread_id: 7
  always_notify: []
`
	cfg, err := Decode("config.yaml", []byte(yamlBody))
	if err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if cfg.Poll.EnabledOrDefault() {
		t.Fatalf("poll.enabled: want false")
	}
	if cfg.Poll.RetryAttempts != 5 {
		t.Fatalf("retry_attempts=%d", cfg.Poll.RetryAttempts)
	}
	if len(cfg.Stock.Chats) != 1 || cfg.Stock.Chats[0].ThreadID != 7 {
		t.Fatalf("chats=%+v", cfg.Stock.Chats)
	}
	if cfg.Stock.AlwaysNotify == nil || len(cfg.Stock.AlwaysNotify) != 0 {
		t.Fatalf("explicit empty always_notify must decode to empty, got %#v", cfg.Stock.AlwaysNotify)
	}

	cfg, err = Decode("config.json", []byte(minimalJSON))
	if err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if !cfg.Poll.EnabledOrDefault() {
		t.Fatalf("poll.enabled defaults to true")
	}
	if cfg.Stock.AlwaysNotify != nil {
		t.Fatalf("omitted always_notify must stay nil")
	}
}

func TestDecodeStrict(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name, path, body string
	}{
		{"unknown json key", "c.json", `{"telegram": {"token": "x"}, "plugins": {}}`},
		{"unknown nested key", "c.json", `{"poll": {"every": "5m"}}`},
		{"trailing data", "c.json", `{} {}`},
		{"unknown yaml key", "c.yml", "source:\n  url: x\n  proxy: y\n"},
		{"bad yaml", "c.yaml", "telegram: [\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.path, []byte(tc.body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := Decode("c.json", []byte(minimalJSON))
	if err != nil {
		t.Fatal(err)
	}
	env := MapEnv(map[string]string{
		EnvToken:        " env-token ",
		EnvOwnerID:      "42",
		EnvAdminIDs:     "7, 8,,9",
		EnvAdminRoleIDs: "100",
	})
	if err := env.Apply(cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("token=%q", cfg.Telegram.Token)
	}
	if cfg.Stock.OwnerUserID != 42 {
		t.Fatalf("owner=%d", cfg.Stock.OwnerUserID)
	}
	if got := cfg.Telegram.OwnerUserIDs; len(got) != 2 || got[1] != 42 {
		t.Fatalf("owners=%v", got)
	}
	if got := cfg.Telegram.AdminUserIDs; len(got) != 3 || got[0] != 7 || got[2] != 9 {
		t.Fatalf("admins=%v", got)
	}

	// applying twice must not duplicate ids
	if err := env.Apply(cfg); err != nil {
		t.Fatal(err)
	}
	if len(cfg.Telegram.OwnerUserIDs) != 2 || len(cfg.Telegram.AdminUserIDs) != 3 {
		t.Fatalf("ids duplicated: %v %v", cfg.Telegram.OwnerUserIDs, cfg.Telegram.AdminUserIDs)
	}

	legacy := &Config{}
	if err := MapEnv(map[string]string{EnvAdminRoleIDs: "5"}).Apply(legacy); err != nil {
		t.Fatal(err)
	}
	if len(legacy.Telegram.AdminUserIDs) != 1 || legacy.Telegram.AdminUserIDs[0] != 5 {
		t.Fatalf("legacy admins=%v", legacy.Telegram.AdminUserIDs)
	}

	if err := MapEnv(map[string]string{EnvOwnerID: "abc"}).Apply(&Config{}); err == nil {
		t.Fatalf("expected error for bad OWNER_ID")
	}
	if err := MapEnv(map[string]string{EnvAdminIDs: "1,x"}).Apply(&Config{}); err == nil {
		t.Fatalf("expected error for bad ADMIN_IDS")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		cfg, err := Decode("c.json", []byte(minimalJSON))
		if err != nil {
			t.Fatal(err)
		}
		return cfg
	}
	if err := Validate(base()); err != nil {
		t.Fatalf("minimal config: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = "" }, "telegram.token"},
		{"missing url", func(c *Config) { c.Source.URL = " " }, "source.url"},
		{"bad interval", func(c *Config) { c.Poll.Interval = "5 minutes" }, "poll.interval"},
		{"negative delay", func(c *Config) { c.Poll.RetryDelay = "-1s" }, "poll.retry_delay"},
		{"bad timezone", func(c *Config) { c.Poll.Timezone = "Mars/Olympus" }, "poll.timezone"},
		{"threshold", func(c *Config) { c.Stock.MatchThreshold = 1.5 }, "match_threshold"},
		{"chat id", func(c *Config) { c.Stock.Chats = []ChatRef{{}} }, "stock.chats[0]"},
		{"group log", func(c *Config) { c.Telegram.GroupLog = "@logs" }, "group_log"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"storage driver", func(c *Config) { c.Storage = &StorageConfig{Driver: "redis"} }, "storage.driver"},
		{"storage path", func(c *Config) { c.Storage = &StorageConfig{Driver: "sqlite"} }, "storage.path"},
		{"notifier", func(c *Config) { c.Notifier = &NotifierConfig{Workers: -1} }, "notifier"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestManagerReload(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.json", minimalJSON)
	m := NewManager(path, MapEnv(nil))
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	ctx := context.Background()
	published, err := m.Reload(ctx)
	if err != nil || published {
		t.Fatalf("unchanged reload: published=%v err=%v", published, err)
	}

	updated := strings.Replace(minimalJSON, `"owner_user_ids": [1]`, `"owner_user_ids": [1, 2]`, 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}
	m.SetValidator(func(context.Context, *Config) error { return context.Canceled })
	if published, err := m.Reload(ctx); err == nil || published {
		t.Fatalf("rejected reload: published=%v err=%v", published, err)
	}
	if got := len(m.Get().Telegram.OwnerUserIDs); got != 1 {
		t.Fatalf("rejected config was committed: owners=%d", got)
	}

	m.SetValidator(nil)
	published, err = m.Reload(ctx)
	if err != nil || !published {
		t.Fatalf("changed reload: published=%v err=%v", published, err)
	}
	select {
	case cfg := <-sub:
		if len(cfg.Telegram.OwnerUserIDs) != 2 {
			t.Fatalf("published owners=%v", cfg.Telegram.OwnerUserIDs)
		}
	default:
		t.Fatalf("subscriber got nothing")
	}
}

func TestPublishKeepsNewest(t *testing.T) {
	t.Parallel()

	m := NewManager("unused.json", Env{})
	sub := m.Subscribe(1)
	first := &Config{Source: SourceConfig{URL: "a"}}
	second := &Config{Source: SourceConfig{URL: "b"}}
	m.publish(first)
	m.publish(second)
	if got := <-sub; got != second {
		t.Fatalf("got %q, want newest", got.Source.URL)
	}
	m.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatalf("channel should be closed after Unsubscribe")
	}
}

func TestWatchPicksUpChange(t *testing.T) {
	path := writeFile(t, "config.json", minimalJSON)
	m := NewManager(path, MapEnv(nil))
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	sub := m.Subscribe(4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	updated := strings.Replace(minimalJSON, "file-token", "new-token", 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-sub:
		if cfg.Telegram.Token != "new-token" {
			t.Fatalf("token=%q", cfg.Telegram.Token)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no reload published")
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()

	oldCfg, _ := Decode("c.json", []byte(minimalJSON))
	newCfg, _ := Decode("c.json", []byte(minimalJSON))
	if sections, _ := SummarizeChange(oldCfg, newCfg); len(sections) != 0 {
		t.Fatalf("identical configs: %v", sections)
	}

	newCfg.Telegram.Token = "rotated"
	newCfg.Poll.Interval = "10m"
	newCfg.Notifier = &NotifierConfig{Enabled: false}
	sections, attrs := SummarizeChange(oldCfg, newCfg)
	want := []string{"notifier", "poll", "telegram"}
	if strings.Join(sections, ",") != strings.Join(want, ",") {
		t.Fatalf("sections=%v want %v", sections, want)
	}
	if len(attrs) == 0 {
		t.Fatalf("expected attrs")
	}

	// an omitted section equals its defaults
	def := DefaultNotifier()
	a, _ := Decode("c.json", []byte(minimalJSON))
	b, _ := Decode("c.json", []byte(minimalJSON))
	b.Notifier = &def
	if sections, _ := SummarizeChange(a, b); len(sections) != 0 {
		t.Fatalf("default notifier reported as change: %v", sections)
	}
}

func TestLoadDotenv(t *testing.T) {
	const key = "STOCKBOT_DOTENV_TEST"
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	if err := LoadDotenv(filepath.Join(t.TempDir(), "missing.env"), false); err != nil {
		t.Fatalf("optional missing file: %v", err)
	}
	if err := LoadDotenv(filepath.Join(t.TempDir(), "missing.env"), true); err == nil {
		t.Fatalf("required missing file must fail")
	}

	p := writeFile(t, ".env", key+"=from-file\n")
	if err := LoadDotenv(p, true); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv(key); got != "from-file" {
		t.Fatalf("%s=%q", key, got)
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 4 * time.Second, false},
		{"0s", 4 * time.Second, false},
		{" 250ms ", 250 * time.Millisecond, false},
		{"-1s", 0, true},
		{"soon", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseDurationOrDefault("x", tc.raw, 4*time.Second)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Fatalf("%q: got %v, %v", tc.raw, got, err)
		}
	}
}
