package cmd

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"portal-backend/auth"
	"portal-backend/config"
	"portal-backend/database"
	"portal-backend/database/memory"
	"portal-backend/database/mongodb"
	"portal-backend/logging"
	"portal-backend/portal"
)

// app is everything a command needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	log    *logrus.Logger
	stores portal.Stores
	gormDB *gorm.DB
	mongo  *mongo.Database
	closer []func()
}

func loadApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: logging.New(cfg.LogLevel, cfg.LogFormat)}

	switch cfg.Store {
	case config.StorePostgres:
		db, err := database.Connect(cfg.Postgres, a.log)
		if err != nil {
			return nil, err
		}
		a.gormDB = db
		a.stores = database.Stores(db)
		a.closer = append(a.closer, func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		})
	case config.StoreMongo:
		client, db, err := mongodb.Connect(ctx, cfg.Mongo, a.log)
		if err != nil {
			return nil, err
		}
		a.mongo = db
		a.stores = mongodb.Stores(db)
		a.closer = append(a.closer, func() { _ = client.Disconnect(context.Background()) })
	case config.StoreMemory:
		a.log.Warn("using the in-memory store; data is lost on restart")
		a.stores = memory.Stores()
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
	return a, nil
}

// migrate creates the schema or indexes of the configured store.
func (a *app) migrate(ctx context.Context) error {
	switch {
	case a.gormDB != nil:
		return database.Migrate(a.gormDB)
	case a.mongo != nil:
		return mongodb.EnsureIndexes(ctx, a.mongo)
	}
	return nil
}

func (a *app) tokens() *auth.TokenIssuer {
	return auth.NewTokenIssuer(a.cfg.JWTSecret, a.cfg.TokenTTL)
}

func (a *app) service() *portal.Service {
	creds := auth.Credentials{Tokens: a.tokens()}
	opts := []portal.Option{portal.WithLogger(a.log)}
	if a.cfg.FirebaseProjectID != "" {
		opts = append(opts, portal.WithIdentityVerifier(auth.NewFirebaseVerifier(a.cfg.FirebaseProjectID)))
	}
	return portal.New(a.stores, creds, opts...)
}

// revoker uses Redis when configured and reachable, otherwise a
// process-local list.
func (a *app) revoker(ctx context.Context) auth.Revoker {
	if a.cfg.Redis.Addr == "" {
		return auth.NewMemoryRevoker()
	}
	rc := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := rc.Ping(ctx).Err(); err != nil {
		a.log.WithError(err).Warn("redis ping failed, token revocation is local to this process")
		_ = rc.Close()
		return auth.NewMemoryRevoker()
	}
	a.closer = append(a.closer, func() { _ = rc.Close() })
	return auth.NewRedisRevoker(rc)
}

func (a *app) close() {
	for i := len(a.closer) - 1; i >= 0; i-- {
		a.closer[i]()
	}
}
