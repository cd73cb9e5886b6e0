package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dhamidi/wikidump/dump"
	"github.com/dhamidi/wikidump/format"
	"github.com/gocql/gocql"
)

// ScyllaConfig holds the connection settings of a Scylla store.
type ScyllaConfig struct {
	Hosts       []string
	Keyspace    string
	Timeout     time.Duration
	Replication int
	Retries     int
}

// ScyllaConfigFromEnv reads SCYLLA_HOSTS (comma separated), SCYLLA_KEYSPACE
// and SCYLLA_TIMEOUT (seconds, default 5).
func ScyllaConfigFromEnv() (ScyllaConfig, error) {
	cfg := ScyllaConfig{
		Keyspace:    os.Getenv("SCYLLA_KEYSPACE"),
		Timeout:     5 * time.Second,
		Replication: 1,
		Retries:     3,
	}
	if hosts := os.Getenv("SCYLLA_HOSTS"); hosts != "" {
		cfg.Hosts = strings.Split(hosts, ",")
	}
	if len(cfg.Hosts) == 0 || cfg.Keyspace == "" {
		return cfg, errors.New("missing value for SCYLLA_HOSTS or SCYLLA_KEYSPACE")
	}
	if v := os.Getenv("SCYLLA_TIMEOUT"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			log.Warningf("invalid SCYLLA_TIMEOUT %q, using %s", v, cfg.Timeout)
		} else {
			cfg.Timeout = time.Duration(secs) * time.Second
		}
	}
	return cfg, nil
}

// Scylla stores pages in a Scylla (or Cassandra) table keyed by normalized
// title, with the binary page encoding as the value.
type Scylla struct {
	Session *gocql.Session
}

// NewScylla connects to the cluster, creating the keyspace and the pages
// table when they do not exist.
func NewScylla(ctx context.Context, cfg ScyllaConfig) (*Scylla, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = cfg.Timeout

	var (
		session *gocql.Session
		err     error
	)
	retries := max(cfg.Retries, 1)
	for i := 0; i < retries; i++ {
		session, err = cluster.CreateSession()
		if err == nil {
			break
		}
		log.Infof("waiting for scylla at %s (attempt %d/%d): %v", strings.Join(cfg.Hosts, ","), i+1, retries, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to scylla: %w", err)
	}

	stmt := fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}",
		cfg.Keyspace, max(cfg.Replication, 1),
	)
	err = session.Query(stmt).WithContext(ctx).Exec()
	session.Close()
	if err != nil {
		return nil, fmt.Errorf("create keyspace: %w", err)
	}

	cluster.Keyspace = cfg.Keyspace
	session, err = cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to keyspace %s: %w", cfg.Keyspace, err)
	}
	s := &Scylla{Session: session}
	if err := s.migrate(ctx); err != nil {
		session.Close()
		return nil, fmt.Errorf("migrate scylla: %w", err)
	}
	return s, nil
}

func (s *Scylla) migrate(ctx context.Context) error {
	queries := []string{
		"CREATE TABLE IF NOT EXISTS pages (title text PRIMARY KEY, id bigint, redirect boolean, data blob)",
	}
	for _, q := range queries {
		if err := s.Session.Query(q).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("query [%s]: %w", q, err)
		}
	}
	return nil
}

// Put stores p, replacing any page with the same normalized title.
func (s *Scylla) Put(ctx context.Context, p *dump.Page) error {
	data, err := format.MarshalPage(p)
	if err != nil {
		return err
	}
	err = s.Session.Query(`INSERT INTO pages (title, id, redirect, data) VALUES (?, ?, ?, ?)`,
		p.NormalizedTitle(), p.ID, p.Redirect, data).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("insert page %q: %w", p.Title, err)
	}
	return nil
}

func (s *Scylla) Get(ctx context.Context, title string) (*dump.Page, error) {
	var data []byte
	err := s.Session.Query(`SELECT data FROM pages WHERE title = ?`, dump.NormalizeTitle(title)).
		WithContext(ctx).Scan(&data)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, fmt.Errorf("get %q: %w", title, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select page %q: %w", title, err)
	}
	p, err := format.UnmarshalPage(data)
	if err != nil {
		return nil, fmt.Errorf("decode page %q: %w", title, err)
	}
	return p, nil
}

func (s *Scylla) Close() error {
	if s.Session != nil {
		s.Session.Close()
	}
	return nil
}
