package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/bruss-it/overtime-manager/backend/internal/config"
	"github.com/bruss-it/overtime-manager/backend/internal/domain"
	"github.com/bruss-it/overtime-manager/backend/internal/quota"
	"github.com/bruss-it/overtime-manager/backend/internal/repository"
	"github.com/bruss-it/overtime-manager/backend/internal/seed"
	"github.com/bruss-it/overtime-manager/backend/internal/utils"
	"github.com/bruss-it/overtime-manager/backend/internal/workflow"
	"golang.org/x/crypto/bcrypt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var file string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机用户, 2: 插入随机加班申请, 3: 从 CSV 导入员工)")
	flag.IntVar(&n, "n", 5, "要插入的记录数量")
	flag.StringVar(&file, "file", "./internal/seed/data/employees.csv", "员工 CSV 文件路径")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	if err := repository.Migrate(dbpool); err != nil {
		logger.Error("数据库迁移失败", "error", err)
		return
	}

	// 创建 repository
	repo := repository.NewRepository(cfg, dbpool)

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if n <= 0 {
			slog.Error("请输入合法的用户数量")
			return
		}

		cnt := 0
		for i := 0; i < n; i++ {
			user, err := utils.GenerateRandomUser(cfg.Seed.User.Password, cfg.Email.UserDomain)
			if err != nil {
				slog.Error("无法生成随机用户", slog.String("error", err.Error()))
				continue
			}

			if err := repo.CreateUser(user); err != nil {
				slog.Error("无法插入用户", slog.String("error", err.Error()))
				continue
			}

			cnt++
		}

		slog.Info("插入用户成功", slog.Int("count", cnt))
	case 2:
		if n <= 0 {
			slog.Error("请输入合法的加班申请数量")
			return
		}

		users, err := repo.GetAllUsers("", "")
		if err != nil {
			slog.Error("无法获取所有用户", slog.String("error", err.Error()))
			return
		}

		var requesters, supervisors []*domain.User
		for _, u := range users {
			if !u.IsActive {
				continue
			}
			if utils.ValidateSupervisor(u) == nil {
				supervisors = append(supervisors, u)
			} else {
				requesters = append(requesters, u)
			}
		}
		if len(requesters) == 0 || len(supervisors) == 0 {
			slog.Error("没有可用的员工或主管，请先插入用户")
			return
		}

		location, err := time.LoadLocation(cfg.Quota.Timezone)
		if err != nil {
			slog.Error("无法加载时区", "error", err)
			return
		}

		// 走完整的创建流程，保证编号与校验和线上一致
		service := workflow.NewService(
			repo,
			seed.Passthrough{Store: repo},
			quota.NewAccountant(repo, cfg.Quota.MonthlyLimit, location),
			seed.Silent{},
			workflow.Options{AppURL: cfg.Email.AppURL, Location: location, Logger: logger},
		)

		cnt := 0
		for i := 0; i < n; i++ {
			requester := requesters[rand.Intn(len(requesters))]
			supervisor := supervisors[rand.Intn(len(supervisors))]

			if _, err := service.Create(requester, seed.RandomOvertime(supervisor.ID, time.Now())); err != nil {
				slog.Error("无法插入加班申请", slog.String("error", err.Error()))
				continue
			}

			cnt++
		}

		slog.Info("插入加班申请成功", slog.Int("count", cnt))
	case 3:
		f, err := os.Open(file)
		if err != nil {
			slog.Error("打开文件失败", "error", err)
			return
		}
		defer f.Close()

		passwordHash, err := bcrypt.GenerateFromPassword([]byte(cfg.Seed.User.Password), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("无法生成密码哈希", "error", err)
			return
		}

		cnt, err := seed.ImportUsers(repo, f, string(passwordHash))
		if err != nil {
			slog.Error("导入员工失败", "error", err, "count", cnt)
			return
		}

		slog.Info("导入员工成功", slog.Int("count", cnt))
	default:
		slog.Error("指定的操作非法")
	}
}
