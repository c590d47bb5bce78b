package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/bruss-it/overtime-manager/backend/internal/config"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

type Repository struct {
	cfg    *config.Config
	dbpool *sql.DB
}

func NewRepository(cfg *config.Config, dbpool *sql.DB) *Repository {
	return &Repository{
		cfg:    cfg,
		dbpool: dbpool,
	}
}

// Migrate 将 migrations 目录下的表结构变更应用到数据库
func Migrate(dbpool *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("无法设置数据库方言: %w", err)
	}

	if err := goose.Up(dbpool, "migrations"); err != nil {
		return fmt.Errorf("无法执行数据库迁移: %w", err)
	}

	return nil
}

// 所有查询都使用独立于请求的上下文，客户端断开连接不会中断已经发出的写操作
func (r *Repository) queryContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
}
