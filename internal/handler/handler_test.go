package handler

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bruss-it/overtime-manager/backend/internal/apperror"
	"github.com/bruss-it/overtime-manager/backend/internal/config"
	"github.com/bruss-it/overtime-manager/backend/internal/domain"
	"github.com/bruss-it/overtime-manager/backend/internal/export"
	"github.com/bruss-it/overtime-manager/backend/internal/workflow"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeUsers struct {
	byID map[int64]*domain.User
}

func (f *fakeUsers) GetUserByID(id int64) (*domain.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (f *fakeUsers) GetUserByUsername(username string) (*domain.User, error) {
	for _, u := range f.byID {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUsers) GetAllUsers(search, department string) ([]*domain.User, error) {
	users := make([]*domain.User, 0, len(f.byID))
	for _, u := range f.byID {
		users = append(users, u)
	}
	return users, nil
}

func (f *fakeUsers) CreateUser(user *domain.User) error { return nil }
func (f *fakeUsers) UpdateUser(user *domain.User) error { return nil }

// fakeOvertime 只实现测试需要的方法，其余返回上游故障
type fakeOvertime struct {
	createFn  func(actor *domain.User, in workflow.CreateInput) (*domain.OvertimeRequest, error)
	listFn    func(actor *domain.User, filter domain.OvertimeFilter) ([]*domain.OvertimeRequest, error)
	approveFn func(actor *domain.User, id uuid.UUID) (*domain.OvertimeRequest, error)
	rejectFn  func(actor *domain.User, id uuid.UUID, reason string) (*domain.OvertimeRequest, error)
}

var errNotStubbed = errors.New("not stubbed")

func (f *fakeOvertime) Create(actor *domain.User, in workflow.CreateInput) (*domain.OvertimeRequest, error) {
	if f.createFn == nil {
		return nil, apperror.Upstream(errNotStubbed)
	}
	return f.createFn(actor, in)
}

func (f *fakeOvertime) Get(actor *domain.User, id uuid.UUID) (*domain.OvertimeRequest, error) {
	return nil, apperror.ErrRequestNotFound
}

func (f *fakeOvertime) List(actor *domain.User, filter domain.OvertimeFilter) ([]*domain.OvertimeRequest, error) {
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(actor, filter)
}

func (f *fakeOvertime) Submit(actor *domain.User, id uuid.UUID) (*domain.OvertimeRequest, error) {
	return nil, apperror.Upstream(errNotStubbed)
}

func (f *fakeOvertime) Approve(actor *domain.User, id uuid.UUID) (*domain.OvertimeRequest, error) {
	if f.approveFn == nil {
		return nil, apperror.Upstream(errNotStubbed)
	}
	return f.approveFn(actor, id)
}

func (f *fakeOvertime) Reject(actor *domain.User, id uuid.UUID, reason string) (*domain.OvertimeRequest, error) {
	if f.rejectFn == nil {
		return nil, apperror.Upstream(errNotStubbed)
	}
	return f.rejectFn(actor, id, reason)
}

func (f *fakeOvertime) Cancel(actor *domain.User, id uuid.UUID, reason string) (*domain.OvertimeRequest, error) {
	return nil, apperror.Upstream(errNotStubbed)
}

func (f *fakeOvertime) Correct(actor *domain.User, id uuid.UUID, patch domain.OvertimePatch) (*domain.OvertimeRequest, error) {
	return nil, apperror.Upstream(errNotStubbed)
}

func (f *fakeOvertime) Account(actor *domain.User, id uuid.UUID) (*domain.OvertimeRequest, error) {
	return nil, apperror.Upstream(errNotStubbed)
}

func (f *fakeOvertime) Quota(actor *domain.User) (domain.QuotaUsage, error) {
	return domain.QuotaUsage{QuotaBound: true, Limit: 40, Used: 35, Remaining: 5}, nil
}

type fakeMailer struct {
	sent []domain.MailMessage
	err  error
}

func (f *fakeMailer) Publish(message domain.MailMessage) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, message)
	return nil
}

const testSecret = "test-secret"

var (
	employee = &domain.User{ID: 1, Username: "jan.kowalski", FullName: "Jan Kowalski", Email: "jan@bruss.local", Roles: []domain.Role{domain.RoleEmployee}, IsActive: true}
	leader   = &domain.User{ID: 2, Username: "anna.nowak", FullName: "Anna Nowak", Email: "anna@bruss.local", Roles: []domain.Role{domain.RoleGroupLeader}, IsActive: true}
	hr       = &domain.User{ID: 3, Username: "ewa.zielinska", FullName: "Ewa Zielińska", Email: "ewa@bruss.local", Roles: []domain.Role{domain.RoleHR}, IsActive: true}
	inactive = &domain.User{ID: 4, Username: "piotr.wisniewski", FullName: "Piotr Wiśniewski", Email: "piotr@bruss.local", Roles: []domain.Role{domain.RoleEmployee}, IsActive: false}
)

func newTestHandler(t *testing.T, overtime *fakeOvertime) (*Handler, *fakeUsers) {
	t.Helper()

	cfg := &config.Config{}
	cfg.JWT.Secret = testSecret
	cfg.JWT.Expiration = 1
	cfg.InitialAdmin.Username = "admin"
	cfg.NewUser.PasswordLength = 12

	users := &fakeUsers{byID: map[int64]*domain.User{
		employee.ID: employee,
		leader.ID:   leader,
		hr.ID:       hr,
		inactive.ID: inactive,
	}}

	h, err := NewHandler(cfg, users, overtime, &fakeMailer{}, time.UTC)
	require.NoError(t, err)
	h.RegisterRoutes()

	return h, users
}

func tokenFor(t *testing.T, u *domain.User) *http.Cookie {
	t.Helper()

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   strconv.FormatInt(u.ID, 10),
		},
	})
	ss, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	return &http.Cookie{Name: TokenCookieName, Value: ss}
}

func do(t *testing.T, h *Handler, method, target, body string, as *domain.User) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if as != nil {
		req.AddCookie(tokenFor(t, as))
	}
	rec := httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAuthRequired(t *testing.T) {
	h, _ := newTestHandler(t, &fakeOvertime{})

	rec := do(t, h, http.MethodGet, "/overtime", "", nil)
	resp := decode(t, rec)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "not_authenticated", resp.Code)

	req := httptest.NewRequest(http.MethodGet, "/overtime", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "garbage"})
	rec = httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, req)
	assert.Equal(t, "invalid_token", decode(t, rec).Code)

	rec = do(t, h, http.MethodGet, "/my-info", "", inactive)
	assert.Equal(t, "not_authenticated", decode(t, rec).Code)
}

func TestLogin(t *testing.T) {
	h, users := newTestHandler(t, &fakeOvertime{})

	hash, err := bcrypt.GenerateFromPassword([]byte("haslo1234"), bcrypt.MinCost)
	require.NoError(t, err)
	users.byID[employee.ID] = &domain.User{ID: 1, Username: "jan.kowalski", PasswordHash: string(hash), Roles: []domain.Role{domain.RoleEmployee}, IsActive: true}

	rec := do(t, h, http.MethodPost, "/auth/login", `{"username":"jan.kowalski","password":"haslo1234"}`, nil)
	resp := decode(t, rec)
	require.True(t, resp.Success, resp.Message)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, TokenCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	rec = do(t, h, http.MethodPost, "/auth/login", `{"username":"jan.kowalski","password":"wrong"}`, nil)
	assert.Equal(t, "invalid_credentials", decode(t, rec).Code)
}

func TestMyInfo(t *testing.T) {
	h, _ := newTestHandler(t, &fakeOvertime{})

	rec := do(t, h, http.MethodGet, "/my-info", "", leader)
	resp := decode(t, rec)
	require.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.Equal(t, "en", data["language"])
	assert.ElementsMatch(t, []any{"approve_within_quota", "create_request"}, data["capabilities"])

	rec = do(t, h, http.MethodGet, "/my-info", "", employee)
	assert.Equal(t, "pl", decode(t, rec).Data.(map[string]any)["language"])

	rec = do(t, h, http.MethodGet, "/my-info/quota", "", leader)
	quota := decode(t, rec).Data.(map[string]any)
	assert.Equal(t, 5.0, quota["remaining"])
}

func TestApproveErrors(t *testing.T) {
	id := uuid.New()

	t.Run("quota exceeded is a business error", func(t *testing.T) {
		h, _ := newTestHandler(t, &fakeOvertime{
			approveFn: func(actor *domain.User, got uuid.UUID) (*domain.OvertimeRequest, error) {
				assert.Equal(t, leader.ID, actor.ID)
				assert.Equal(t, id, got)
				return nil, apperror.ErrQuotaExceeded
			},
		})

		rec := do(t, h, http.MethodPost, "/overtime/"+id.String()+"/approve", "", leader)
		resp := decode(t, rec)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, resp.Success)
		assert.Equal(t, "quota_exceeded", resp.Code)
	})

	t.Run("upstream failure maps to 503", func(t *testing.T) {
		h, _ := newTestHandler(t, &fakeOvertime{
			approveFn: func(actor *domain.User, got uuid.UUID) (*domain.OvertimeRequest, error) {
				return nil, apperror.Upstream(errors.New("connection refused"))
			},
		})

		rec := do(t, h, http.MethodPost, "/overtime/"+id.String()+"/approve", "", leader)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "service_unavailable", decode(t, rec).Code)
	})

	t.Run("malformed id is not found", func(t *testing.T) {
		h, _ := newTestHandler(t, &fakeOvertime{})

		rec := do(t, h, http.MethodPost, "/overtime/not-a-uuid/approve", "", leader)
		assert.Equal(t, "request_not_found", decode(t, rec).Code)
	})
}

func TestRejectReason(t *testing.T) {
	id := uuid.New()
	var gotReason string
	h, _ := newTestHandler(t, &fakeOvertime{
		rejectFn: func(actor *domain.User, got uuid.UUID, reason string) (*domain.OvertimeRequest, error) {
			gotReason = reason
			return &domain.OvertimeRequest{ID: got, Status: domain.StatusRejected}, nil
		},
	})

	rec := do(t, h, http.MethodPost, "/overtime/"+id.String()+"/reject", `{"reason":"brak budżetu"}`, leader)
	require.True(t, decode(t, rec).Success)
	assert.Equal(t, "brak budżetu", gotReason)

	// 理由可以省略
	rec = do(t, h, http.MethodPost, "/overtime/"+id.String()+"/reject", "", leader)
	require.True(t, decode(t, rec).Success)
	assert.Empty(t, gotReason)
}

func TestCreateUser(t *testing.T) {
	admin := &domain.User{ID: 9, Username: "admin", FullName: "Administrator", Email: "admin@bruss.local", Roles: []domain.Role{domain.RoleAdmin}, IsActive: true}
	body := `{"username":"marta.nowak","fullName":"Marta Nowak","email":"marta@bruss.local","roles":["employee"]}`

	t.Run("account mail queued", func(t *testing.T) {
		h, users := newTestHandler(t, &fakeOvertime{})
		users.byID[admin.ID] = admin
		mailer := &fakeMailer{}
		h.mailer = mailer

		resp := decode(t, do(t, h, http.MethodPost, "/users", body, admin))
		assert.True(t, resp.Success)
		assert.Equal(t, "user created", resp.Message)
		require.Len(t, mailer.sent, 1)
		assert.Equal(t, "marta@bruss.local", mailer.sent[0].To)
	})

	t.Run("mail failure still reports the created user", func(t *testing.T) {
		h, users := newTestHandler(t, &fakeOvertime{})
		users.byID[admin.ID] = admin
		h.mailer = &fakeMailer{err: errors.New("amqp closed")}

		rec := do(t, h, http.MethodPost, "/users", body, admin)
		resp := decode(t, rec)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, resp.Success)
		assert.Contains(t, resp.Message, "could not be sent")
	})

	t.Run("requires user management", func(t *testing.T) {
		h, _ := newTestHandler(t, &fakeOvertime{})

		resp := decode(t, do(t, h, http.MethodPost, "/users", body, hr))
		assert.False(t, resp.Success)
	})
}

func TestCreateOvertimeRequest(t *testing.T) {
	var got workflow.CreateInput
	h, _ := newTestHandler(t, &fakeOvertime{
		createFn: func(actor *domain.User, in workflow.CreateInput) (*domain.OvertimeRequest, error) {
			got = in
			return &domain.OvertimeRequest{InternalID: "1/26", Status: domain.StatusPending}, nil
		},
	})

	rec := do(t, h, http.MethodPost, "/overtime", `{"kind":"order","hours":4,"payment":true,"supervisorId":2,"workDate":"2026-10-20"}`, employee)
	resp := decode(t, rec)
	require.True(t, resp.Success, resp.Message)
	assert.Equal(t, domain.KindOrder, got.Kind)
	assert.Equal(t, 4.0, got.Hours)
	assert.Equal(t, int64(2), got.SupervisorID)
	assert.Equal(t, time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC), got.WorkDate)
	assert.Nil(t, got.ScheduledDayOff)

	for name, body := range map[string]string{
		"zero hours":   `{"kind":"order","hours":0,"payment":true,"supervisorId":2,"workDate":"2026-10-20"}`,
		"unknown kind": `{"kind":"bonus","hours":4,"payment":true,"supervisorId":2,"workDate":"2026-10-20"}`,
		"bad date":     `{"kind":"order","hours":4,"payment":true,"supervisorId":2,"workDate":"20.10.2026"}`,
		"not json":     `{`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/overtime", body, employee)
			assert.Equal(t, "invalid_input", decode(t, rec).Code)
		})
	}
}

func TestParseOvertimeFilter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/overtime?status=pending,approved&kind=submission&from=2026-10-01&supervisor=7&department=Lakiernia", nil)

	filter, err := parseOvertimeFilter(req)
	require.NoError(t, err)
	assert.Equal(t, []domain.Status{domain.StatusPending, domain.StatusApproved}, filter.Statuses)
	assert.Equal(t, domain.KindSubmission, filter.Kind)
	require.NotNil(t, filter.From)
	assert.Equal(t, "2026-10-01", filter.From.Format(time.DateOnly))
	assert.Nil(t, filter.To)
	require.NotNil(t, filter.SupervisorID)
	assert.Equal(t, int64(7), *filter.SupervisorID)
	assert.Nil(t, filter.RequestedBy)
	assert.Equal(t, "Lakiernia", filter.Department)

	for _, query := range []string{"status=done", "kind=bonus", "from=yesterday", "requestedBy=abc"} {
		_, err := parseOvertimeFilter(httptest.NewRequest(http.MethodGet, "/overtime?"+query, nil))
		assert.Error(t, err, query)
	}
}

func TestExport(t *testing.T) {
	h, _ := newTestHandler(t, &fakeOvertime{
		listFn: func(actor *domain.User, filter domain.OvertimeFilter) ([]*domain.OvertimeRequest, error) {
			return []*domain.OvertimeRequest{{
				ID:          uuid.New(),
				InternalID:  "3/26",
				Kind:        domain.KindOrder,
				Status:      domain.StatusApproved,
				Hours:       2.5,
				Payment:     true,
				WorkDate:    time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC),
				SubmittedAt: time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC),
			}}, nil
		},
	})

	rec := do(t, h, http.MethodGet, "/overtime/export.csv", "", employee)
	assert.Equal(t, "forbidden", decode(t, rec).Code)

	rec = do(t, h, http.MethodGet, "/overtime/export.csv", "", hr)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")

	records, err := csv.NewReader(bytes.NewReader(rec.Body.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, export.Header, records[0])
	assert.Contains(t, records[1], "3/26")

	rec = do(t, h, http.MethodGet, "/overtime/export.xlsx", "", hr)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotZero(t, rec.Body.Len())
}
