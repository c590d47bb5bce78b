package handler

import (
	"time"

	"github.com/bruss-it/overtime-manager/backend/internal/config"
	"github.com/bruss-it/overtime-manager/backend/internal/domain"
	"github.com/bruss-it/overtime-manager/backend/internal/workflow"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/google/uuid"
)

type UserStore interface {
	GetUserByID(id int64) (*domain.User, error)
	GetUserByUsername(username string) (*domain.User, error)
	GetAllUsers(search, department string) ([]*domain.User, error)
	CreateUser(user *domain.User) error
	UpdateUser(user *domain.User) error
}

// OvertimeService 由 *workflow.Service 实现
type OvertimeService interface {
	Create(actor *domain.User, in workflow.CreateInput) (*domain.OvertimeRequest, error)
	Get(actor *domain.User, id uuid.UUID) (*domain.OvertimeRequest, error)
	List(actor *domain.User, filter domain.OvertimeFilter) ([]*domain.OvertimeRequest, error)
	Submit(actor *domain.User, id uuid.UUID) (*domain.OvertimeRequest, error)
	Approve(actor *domain.User, id uuid.UUID) (*domain.OvertimeRequest, error)
	Reject(actor *domain.User, id uuid.UUID, reason string) (*domain.OvertimeRequest, error)
	Cancel(actor *domain.User, id uuid.UUID, reason string) (*domain.OvertimeRequest, error)
	Correct(actor *domain.User, id uuid.UUID, patch domain.OvertimePatch) (*domain.OvertimeRequest, error)
	Account(actor *domain.User, id uuid.UUID) (*domain.OvertimeRequest, error)
	Quota(actor *domain.User) (domain.QuotaUsage, error)
}

// Mailer 由 *notification.Dispatcher 实现
type Mailer interface {
	Publish(message domain.MailMessage) error
}

type Handler struct {
	validate   *validator.Validate
	config     *config.Config
	users      UserStore
	overtime   OvertimeService
	mailer     Mailer
	translator ut.Translator
	location   *time.Location

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, users UserStore, overtime OvertimeService, mailer Mailer, loc *time.Location) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	en := en.New()
	uni := ut.New(en, en)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	if loc == nil {
		loc = time.UTC
	}

	return &Handler{
		validate:   validate,
		config:     cfg,
		users:      users,
		overtime:   overtime,
		mailer:     mailer,
		translator: trans,
		location:   loc,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Use(h.myInfo)

		r.Route("/my-info", func(r chi.Router) {
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
			r.Get("/quota", h.GetMyQuota)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(h.RequiredCapability(domain.CapManageUsers)).Post("/", h.CreateUser)
			r.Get("/", h.GetAllUserInfo) // 员工目录对所有登录用户可见
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.userInfo)
				r.Get("/", h.GetUserInfo)
				r.With(h.preventOperateInitialAdmin).With(h.RequiredCapability(domain.CapManageUsers)).Patch("/", h.UpdateUser)
				r.With(h.RequiredCapability(domain.CapManageUsers)).Patch("/password", h.UpdateUserPassword)
			})
		})

		r.Route("/overtime", func(r chi.Router) {
			r.Get("/", h.ListOvertimeRequests)
			r.With(h.RequiredCapability(domain.CapCreateRequest)).Post("/", h.CreateOvertimeRequest)
			r.With(h.RequiredCapability(domain.CapExport)).Get("/export.csv", h.ExportOvertimeCSV)
			r.With(h.RequiredCapability(domain.CapExport)).Get("/export.xlsx", h.ExportOvertimeXLSX)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.overtimeID)
				r.Get("/", h.GetOvertimeRequest)
				r.Patch("/", h.CorrectOvertimeRequest)
				r.Post("/submit", h.SubmitOvertimeRequest)
				r.Post("/approve", h.ApproveOvertimeRequest)
				r.Post("/reject", h.RejectOvertimeRequest)
				r.Post("/cancel", h.CancelOvertimeRequest)
				r.Post("/account", h.AccountOvertimeRequest)
			})
		})
	})
}
