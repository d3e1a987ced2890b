package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override the file.
const (
	EnvToken    = "TOKEN"
	EnvOwnerID  = "OWNER_ID"
	EnvAdminIDs = "ADMIN_IDS"
	// EnvAdminRoleIDs is the older name of ADMIN_IDS.
	EnvAdminRoleIDs = "ADMIN_ROLE_IDS"
)

// LoadDotenv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error unless required is true.
func LoadDotenv(path string, required bool) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Env applies environment overrides to a parsed config.
type Env struct {
	Lookup func(key string) (string, bool)
}

// OSEnv reads overrides from the process environment.
func OSEnv() Env { return Env{Lookup: os.LookupEnv} }

// MapEnv reads overrides from a fixed map.
func MapEnv(m map[string]string) Env {
	return Env{Lookup: func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}}
}

func (e Env) get(key string) string {
	if e.Lookup == nil {
		return ""
	}
	v, _ := e.Lookup(key)
	return strings.TrimSpace(v)
}

// Apply overrides:
//   - TOKEN replaces telegram.token
//   - OWNER_ID sets stock.owner_user_id and is added to telegram.owner_user_ids
//   - ADMIN_IDS (comma separated) is added to telegram.admin_user_ids
func (e Env) Apply(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	if tok := e.get(EnvToken); tok != "" {
		cfg.Telegram.Token = tok
	}
	if raw := e.get(EnvOwnerID); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid user id %q", EnvOwnerID, raw)
		}
		cfg.Stock.OwnerUserID = id
		if !slices.Contains(cfg.Telegram.OwnerUserIDs, id) {
			cfg.Telegram.OwnerUserIDs = append(cfg.Telegram.OwnerUserIDs, id)
		}
	}
	key := EnvAdminIDs
	raw := e.get(key)
	if raw == "" {
		key = EnvAdminRoleIDs
		raw = e.get(key)
	}
	ids, err := ParseIDList(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	for _, id := range ids {
		if !slices.Contains(cfg.Telegram.AdminUserIDs, id) {
			cfg.Telegram.AdminUserIDs = append(cfg.Telegram.AdminUserIDs, id)
		}
	}
	return nil
}

// ParseIDList parses "1, 2,3". Empty entries are skipped.
func ParseIDList(raw string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}
