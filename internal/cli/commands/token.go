package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	fsrepo "SensorHub/internal/cli/repo/fs"
	"SensorHub/internal/config"
	"SensorHub/internal/middleware"
)

const defaultTokenTTL = 24 * time.Hour

type tokenCmd struct{}

func (tokenCmd) Name() string        { return "token" }
func (tokenCmd) Description() string { return "Mint and store an observer token" }
func (tokenCmd) Usage() string       { return "token <name> [ttl]" }

func (tokenCmd) Run(_ context.Context, cfg *config.Config, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return ErrUsage
	}
	ttl := defaultTokenTTL
	if len(args) == 2 {
		d, err := time.ParseDuration(args[1])
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: bad ttl %q", ErrUsage, args[1])
		}
		ttl = d
	}
	if cfg.ObserverSecret == "" {
		return errors.New("OBSERVER_SECRET is not set")
	}
	token, err := middleware.IssueObserverToken(cfg.ObserverSecret, args[0], ttl)
	if err != nil {
		return err
	}
	if err := (fsrepo.TokenFSStore{}).Save(token); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	fmt.Fprintln(Out, token)
	return nil
}

// observerToken читает сохранённый токен; без токена работаем анонимно.
func observerToken() string {
	token, err := (fsrepo.TokenFSStore{}).Load()
	if err != nil {
		return ""
	}
	return token
}

func init() { RegisterCmd(tokenCmd{}) }
