package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/akeren/go-waitlist/assets"
	"github.com/akeren/go-waitlist/config"
	"github.com/akeren/go-waitlist/config/router"
	"github.com/akeren/go-waitlist/domain"
	"github.com/akeren/go-waitlist/internal/log"
	"github.com/akeren/go-waitlist/internal/mailer"
	"github.com/akeren/go-waitlist/internal/models"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var tokenPattern = regexp.MustCompile(`token=([0-9a-f]{64})`)

// outbox is a mail transport that keeps every message.
type outbox struct {
	mu       sync.Mutex
	messages []mailer.Message
}

func (o *outbox) Send(_ context.Context, msg mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
	return nil
}

func (o *outbox) Sent() []mailer.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]mailer.Message(nil), o.messages...)
}

func (o *outbox) reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = nil
}

type WaitlistAPITestSuite struct {
	suite.Suite
	db        *gorm.DB
	server    *httptest.Server
	baseURL   string
	logger    *log.Logger
	sender    *outbox
	appConfig *config.ApplicationConfig
}

func (suite *WaitlistAPITestSuite) SetupSuite() {
	var err error
	suite.db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	suite.Require().NoError(err)

	// Every pooled connection would otherwise get its own in-memory database.
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	err = suite.db.AutoMigrate(models.ModelRegistry...)
	suite.Require().NoError(err)

	suite.logger = log.NewLoggerWithJSONOutput()
	suite.sender = &outbox{}

	appCfg := config.NewAppConfig()
	appCfg.PublicURL = "http://localhost:3000"
	appCfg.PreRegisterRateLimit = 100
	appCfg.PreRegisterRateWindow = time.Minute

	suite.appConfig = &config.ApplicationConfig{
		DB:     suite.db,
		Logger: suite.logger,
		Config: appCfg,
		Mailer: mailer.New(assets.EmailFS, suite.sender, mailer.Options{}),
	}

	suite.appConfig.RouterService = router.CreateRouterService(suite.logger, nil, &router.RouterConfig{
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    30 * time.Second,
	})

	domain.SetupCoreDomain(suite.appConfig)

	suite.server = httptest.NewServer(suite.appConfig.RouterService.GetEngine())
	suite.baseURL = suite.server.URL
}

func (suite *WaitlistAPITestSuite) TearDownSuite() {
	if suite.server != nil {
		suite.server.Close()
	}
	if suite.db != nil {
		sqlDB, _ := suite.db.DB()
		sqlDB.Close()
	}
}

func (suite *WaitlistAPITestSuite) SetupTest() {
	suite.db.Exec("DELETE FROM waitlist")
	suite.sender.reset()
}

func (suite *WaitlistAPITestSuite) preRegister(email string) *http.Response {
	body, _ := json.Marshal(map[string]string{"email": email})
	resp, err := http.Post(suite.baseURL+"/api/pre-register", "application/json", bytes.NewBuffer(body))
	suite.Require().NoError(err)
	return resp
}

func (suite *WaitlistAPITestSuite) lastMailedToken() string {
	sent := suite.sender.Sent()
	suite.Require().NotEmpty(sent)

	match := tokenPattern.FindStringSubmatch(sent[len(sent)-1].Text)
	suite.Require().Len(match, 2, "confirmation email carries no token")
	return match[1]
}

func (suite *WaitlistAPITestSuite) TestHealthCheck() {
	resp, err := http.Get(suite.baseURL + "/health")
	suite.Require().NoError(err)
	defer resp.Body.Close()

	suite.Equal(http.StatusOK, resp.StatusCode)

	var response map[string]interface{}
	err = json.NewDecoder(resp.Body).Decode(&response)
	suite.Require().NoError(err)

	data, ok := response["data"].(map[string]interface{})
	suite.Require().True(ok)
	suite.Equal(float64(1), data["database"])
	suite.Equal(float64(0), data["cache"])
	suite.Equal(float64(1), data["mail"])
	suite.Contains(data, "uptime")
}

func (suite *WaitlistAPITestSuite) TestPreRegister() {
	resp := suite.preRegister("  Alice@Example.COM ")
	defer resp.Body.Close()

	suite.Equal(http.StatusOK, resp.StatusCode)

	var response map[string]interface{}
	err := json.NewDecoder(resp.Body).Decode(&response)
	suite.Require().NoError(err)
	suite.Equal(map[string]interface{}{"ok": true}, response)

	sent := suite.sender.Sent()
	suite.Require().Len(sent, 1)
	suite.Equal("alice@example.com", sent[0].To)
	suite.Contains(sent[0].Text, "http://localhost:3000/confirm?token=")
	suite.Contains(sent[0].Text, "email="+url.QueryEscape("alice@example.com"))

	var count int64
	suite.db.Model(&models.WaitlistEntry{}).Count(&count)
	suite.Equal(int64(1), count)
}

func (suite *WaitlistAPITestSuite) TestPreRegister_InvalidEmail() {
	for _, body := range []string{`{"email":"not-an-email"}`, `{}`, `{"email":`} {
		resp, err := http.Post(suite.baseURL+"/api/pre-register", "application/json", bytes.NewBufferString(body))
		suite.Require().NoError(err)

		var response map[string]interface{}
		suite.Require().NoError(json.NewDecoder(resp.Body).Decode(&response))
		resp.Body.Close()

		suite.Equal(http.StatusBadRequest, resp.StatusCode, body)
		suite.Equal("invalid email", response["error"], body)
	}

	suite.Empty(suite.sender.Sent())
}

func (suite *WaitlistAPITestSuite) TestConfirmFlow() {
	resp := suite.preRegister("bob@example.com")
	resp.Body.Close()
	suite.Require().Equal(http.StatusOK, resp.StatusCode)

	token := suite.lastMailedToken()
	confirmURL := suite.baseURL + "/confirm?token=" + token + "&email=" + url.QueryEscape("bob@example.com")

	for i := 0; i < 2; i++ {
		resp, err := http.Get(confirmURL)
		suite.Require().NoError(err)
		page, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		suite.Equal(http.StatusOK, resp.StatusCode)
		suite.Contains(resp.Header.Get("Content-Type"), "text/html")
		suite.Contains(string(page), "bob@example.com")
	}

	var entry models.WaitlistEntry
	suite.Require().NoError(suite.db.Where("email = ?", "bob@example.com").First(&entry).Error)
	suite.True(entry.Confirmed)

	// Confirmed addresses are acknowledged without another email.
	resp = suite.preRegister("bob@example.com")
	resp.Body.Close()
	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.Len(suite.sender.Sent(), 1)
}

func (suite *WaitlistAPITestSuite) TestConfirm_RotatedTokenRejected() {
	resp := suite.preRegister("carol@example.com")
	resp.Body.Close()
	first := suite.lastMailedToken()

	resp = suite.preRegister("carol@example.com")
	resp.Body.Close()
	second := suite.lastMailedToken()
	suite.Require().NotEqual(first, second)

	resp, err := http.Get(suite.baseURL + "/confirm?token=" + first)
	suite.Require().NoError(err)
	resp.Body.Close()
	suite.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(suite.baseURL + "/confirm?token=" + second)
	suite.Require().NoError(err)
	resp.Body.Close()
	suite.Equal(http.StatusOK, resp.StatusCode)
}

func (suite *WaitlistAPITestSuite) TestConfirm_InvalidToken() {
	for _, query := range []string{"", "?token=abc", "?token=" + string(bytes.Repeat([]byte("0"), 64))} {
		resp, err := http.Get(suite.baseURL + "/confirm" + query)
		suite.Require().NoError(err)
		page, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		suite.Equal(http.StatusBadRequest, resp.StatusCode, query)
		suite.Contains(resp.Header.Get("Content-Type"), "text/html", query)
		suite.Contains(string(page), "tidak valid", query)
	}
}

func (suite *WaitlistAPITestSuite) TestAdminList() {
	for _, email := range []string{"first@example.com", "second@example.com"} {
		resp := suite.preRegister(email)
		resp.Body.Close()
		suite.Require().Equal(http.StatusOK, resp.StatusCode)
	}

	resp, err := http.Get(suite.baseURL + "/api/admin/waitlist")
	suite.Require().NoError(err)
	defer resp.Body.Close()

	suite.Equal(http.StatusOK, resp.StatusCode)

	var entries []map[string]interface{}
	err = json.NewDecoder(resp.Body).Decode(&entries)
	suite.Require().NoError(err)
	suite.Require().Len(entries, 2)

	suite.Equal("second@example.com", entries[0]["email"])
	suite.Equal("first@example.com", entries[1]["email"])
	for _, e := range entries {
		suite.Contains(e, "id")
		suite.Contains(e, "createdAt")
		suite.Equal(false, e["confirmed"])
		suite.NotContains(e, "token")
	}
}

func TestWaitlistAPISuite(t *testing.T) {
	// Skip integration tests unless explicitly requested
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration tests. Set RUN_INTEGRATION_TESTS=true to run them")
	}
	suite.Run(t, new(WaitlistAPITestSuite))
}
