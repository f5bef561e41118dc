package collector

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

type PgStorage struct {
	postgres *pgxpool.Pool
}

//go:embed migrations/*.sql
var fs embed.FS

func MigrateDb(postgresURI string) error {
	log := logrus.WithField("prefix", "MigrateDb")
	d, err := iofs.New(fs, "migrations")
	if err != nil {
		log.Info("iofs err: ", err)
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", d, postgresURI)
	if err != nil {
		log.Info("source instance err: ", err)
		return err
	}
	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("DB is up to date")
		return nil
	} else if err != nil {
		return err
	}
	log.Info("DB updated successfully")
	return nil
}

// configurePoolSettings creates a new pgxpool.Config with settings from environment variables
// See https://pkg.go.dev/github.com/jackc/pgx/v4/pgxpool#ParseConfig
func configurePoolSettings(postgresURI string) (*pgxpool.Config, error) {
	log := logrus.WithField("prefix", "configurePoolSettings")

	poolConfig, err := pgxpool.ParseConfig(postgresURI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres URI: %w", err)
	}

	poolConfig.MaxConns = Config.PostgresMaxConns
	poolConfig.MinConns = Config.PostgresMinConns

	if maxLifetime, err := time.ParseDuration(Config.PostgresMaxConnLifetime); err == nil {
		poolConfig.MaxConnLifetime = maxLifetime
	} else {
		log.Warnf("Invalid PostgresMaxConnLifetime '%s', using default", Config.PostgresMaxConnLifetime)
	}

	if maxLifetimeJitter, err := time.ParseDuration(Config.PostgresMaxConnLifetimeJitter); err == nil {
		poolConfig.MaxConnLifetimeJitter = maxLifetimeJitter
	} else {
		log.Warnf("Invalid PostgresMaxConnLifetimeJitter '%s', using default", Config.PostgresMaxConnLifetimeJitter)
	}

	if maxIdleTime, err := time.ParseDuration(Config.PostgresMaxConnIdleTime); err == nil {
		poolConfig.MaxConnIdleTime = maxIdleTime
	} else {
		log.Warnf("Invalid PostgresMaxConnIdleTime '%s', using default", Config.PostgresMaxConnIdleTime)
	}

	if healthCheckPeriod, err := time.ParseDuration(Config.PostgresHealthCheckPeriod); err == nil {
		poolConfig.HealthCheckPeriod = healthCheckPeriod
	} else {
		log.Warnf("Invalid PostgresHealthCheckPeriod '%s', using default", Config.PostgresHealthCheckPeriod)
	}

	poolConfig.LazyConnect = Config.PostgresLazyConnect

	return poolConfig, nil
}

func NewPgStorage(postgresURI string) (*PgStorage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()
	log := logrus.WithField("prefix", "NewPgStorage")

	poolConfig, err := configurePoolSettings(postgresURI)
	if err != nil {
		return nil, err
	}

	c, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	// The database may still be starting up alongside the collector.
	backoff := retry.WithMaxRetries(5, retry.NewFibonacci(time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.Ping(ctx); err != nil {
			log.Infof("postgres not ready yet: %v", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	err = MigrateDb(postgresURI)
	if err != nil {
		log.Info("migrate err: ", err)
		c.Close()
		return nil, err
	}
	return &PgStorage{postgres: c}, nil
}

func (s *PgStorage) SaveEvents(ctx context.Context, events []StoredEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		fields, err := sonic.Marshal(ev.Fields)
		if err != nil {
			return fmt.Errorf("marshal event fields: %w", err)
		}
		batch.Queue(`INSERT INTO viewtrace.view_events
			(view_id, viewer_id, env_key, event_type, viewer_time, received_at, fields)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			ev.ViewID, ev.ViewerID, ev.EnvKey, ev.Type, ev.ViewerTime, ev.ReceivedAt, fields)
	}
	res := s.postgres.SendBatch(ctx, batch)
	defer res.Close()
	for range events {
		if _, err := res.Exec(); err != nil {
			return fmt.Errorf("insert view event: %w", err)
		}
	}
	return nil
}

func (s *PgStorage) ViewEvents(ctx context.Context, viewID string) ([]StoredEvent, error) {
	rows, err := s.postgres.Query(ctx,
		`SELECT view_id, viewer_id, env_key, event_type, viewer_time, received_at, fields
		 FROM viewtrace.view_events
		 WHERE view_id = $1
		 ORDER BY id`, viewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var ev StoredEvent
		var fields []byte
		if err := rows.Scan(&ev.ViewID, &ev.ViewerID, &ev.EnvKey, &ev.Type, &ev.ViewerTime, &ev.ReceivedAt, &fields); err != nil {
			return nil, err
		}
		if err := sonic.Unmarshal(fields, &ev.Fields); err != nil {
			return nil, fmt.Errorf("unmarshal event fields: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *PgStorage) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	return s.postgres.Ping(ctx)
}
