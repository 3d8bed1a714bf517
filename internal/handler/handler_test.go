package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"campusconnect/config"
	"campusconnect/internal/auth"
	"campusconnect/internal/database"
	"campusconnect/internal/domain"
	"campusconnect/internal/metrics"
	"campusconnect/internal/middleware"
	"campusconnect/internal/models"
	"campusconnect/internal/repository"
	"campusconnect/internal/service"
	"campusconnect/internal/ws"
	"campusconnect/pkg/custody"
	"campusconnect/pkg/evm"
	"campusconnect/pkg/pinata"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() { gin.SetMode(gin.TestMode) }

var dbSeq atomic.Int64

type fakePinner struct {
	mu    sync.Mutex
	files map[string][]byte
	meta  pinata.FileMetadata
	err   error
}

func (f *fakePinner) PinFile(_ context.Context, fileName string, content io.Reader, meta pinata.FileMetadata) (*pinata.PinResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.files == nil {
		f.files = map[string][]byte{}
	}
	f.files[fileName] = data
	f.meta = meta
	return &pinata.PinResponse{IpfsHash: "bafy" + fileName, PinSize: int64(len(data))}, nil
}

func (f *fakePinner) FileURL(cid string) string {
	return "https://gateway.test/ipfs/" + cid
}

type fakeCloud struct {
	uploaded []string
	deleted  []string
}

func (f *fakeCloud) UploadAvatar(_ context.Context, _ io.Reader, userID string) (string, string, error) {
	url := fmt.Sprintf("https://res.cloudinary.com/demo/image/upload/v%d/campusconnect/avatars/%s.jpg", len(f.uploaded)+1, userID)
	f.uploaded = append(f.uploaded, url)
	return url, url + "?thumb", nil
}

func (f *fakeCloud) DeleteAvatar(_ context.Context, url string) error {
	f.deleted = append(f.deleted, url)
	return nil
}

// testAPI wires the handlers the way the router does, on SQLite.
type testAPI struct {
	engine  *gin.Engine
	db      *gorm.DB
	jwt     *config.JWTConfig
	users   *repository.UserRepository
	groups  *repository.GroupRepository
	res     *repository.ResourceRepository
	pinner  *fakePinner
	cloud   *fakeCloud
	hub     *ws.Hub
	payment *service.PaymentService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	dsn := fmt.Sprintf("file:handlerdb_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	log := zap.NewNop()
	jwtCfg := &config.JWTConfig{AccessSecret: "test-secret", AccessExpiry: time.Hour, Issuer: "campusconnect"}
	api := &testAPI{
		db:     db,
		jwt:    jwtCfg,
		users:  repository.NewUserRepository(db),
		groups: repository.NewGroupRepository(db),
		res:    repository.NewResourceRepository(db),
		pinner: &fakePinner{},
		cloud:  &fakeCloud{},
		hub:    ws.NewHub(),
	}
	m := metrics.New(prometheus.NewRegistry())
	notif := service.NewNotificationService(repository.NewNotificationRepository(db), api.hub, log)
	api.payment = service.NewPaymentService(service.PaymentStores{
		Payments:  repository.NewPaymentRepository(db),
		Users:     api.users,
		Groups:    api.groups,
		Resources: api.res,
	}, service.PaymentChain{
		Token:    evm.NewToken(nil, common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"), domain.USDCDecimals),
		Signer:   custody.NewStubSigner(),
		ChainID:  big.NewInt(8453),
		Treasury: common.HexToAddress("0x00000000000000000000000000000000000000aa"),
	}, notif, m, log)

	authH := NewAuthHandler(service.NewAuthService(jwtCfg, api.users, auth.NewMemoryNonceStore(time.Minute)), log)
	meH := NewMeHandler(api.users, api.payment, api.cloud, log)
	notifH := NewNotificationHandler(notif, log)
	groupH := NewGroupHandler(api.groups, notif, log)
	sessionH := NewSessionHandler(repository.NewStudySessionRepository(db), api.groups, notif, log)
	resourceH := NewResourceHandler(api.res, api.groups, api.pinner, notif, m, log)
	projectH := NewProjectHandler(repository.NewProjectRepository(db), notif, log)
	paymentH := NewPaymentHandler(api.payment, api.groups, api.res, log)

	r := gin.New()
	v1 := r.Group("/api/v1")
	v1.POST("/auth/nonce", authH.Nonce)
	v1.POST("/auth/wallet", authH.Wallet)
	me := v1.Group("/me", middleware.AuthRequired(jwtCfg))
	me.GET("/profile", meH.GetProfile)
	me.POST("/profile", meH.CreateProfile)
	me.PATCH("/profile", meH.UpdateProfile)
	me.POST("/avatar", meH.UploadAvatar)
	me.POST("/wallet", meH.CreateWallet)
	me.GET("/payments", meH.Payments)
	me.GET("/notifications", notifH.List)
	me.PUT("/notifications/:id/read", notifH.MarkRead)
	c := v1.Group("", middleware.AuthRequired(jwtCfg), middleware.ProfileRequired(api.users))
	c.GET("/groups", groupH.List)
	c.POST("/groups", groupH.Create)
	c.GET("/groups/:id", groupH.Get)
	c.POST("/groups/:id/join", groupH.Join)
	c.GET("/sessions", sessionH.List)
	c.POST("/sessions", sessionH.Create)
	c.POST("/sessions/:id/join", sessionH.Join)
	c.GET("/resources", resourceH.List)
	c.POST("/resources", resourceH.Upload)
	c.POST("/resources/:id/download", resourceH.Download)
	c.GET("/projects", projectH.List)
	c.POST("/projects", projectH.Create)
	c.POST("/projects/:id/join", projectH.Join)
	c.PATCH("/projects/:id/status", projectH.UpdateStatus)
	c.GET("/payments/:id", paymentH.Get)
	c.POST("/payments/feature", paymentH.Feature)
	c.POST("/payments/bump", paymentH.Bump)
	c.POST("/payments/advanced-filters", paymentH.AdvancedFilters)
	c.POST("/payments/premium-group", paymentH.PremiumGroup)
	v1.GET("/payments/prices", paymentH.Prices)
	r.GET("/healthz", NewHealthHandler(db).Healthz)
	api.engine = r
	return api
}

// newUser creates a user with a profile and returns it with a bearer token.
func (a *testAPI) newUser(t *testing.T, name string) (*models.User, string) {
	t.Helper()
	u := &models.User{DisplayName: name}
	require.NoError(t, a.users.Create(context.Background(), u))
	token, err := auth.GenerateAccessToken(a.jwt, u.ID, "")
	require.NoError(t, err)
	return u, token
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *testAPI) send(t *testing.T, req *http.Request, token string) *httptest.ResponseRecorder {
	t.Helper()
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
