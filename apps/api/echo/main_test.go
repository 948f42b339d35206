package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/theoremz/black/core"
	authsvc "github.com/theoremz/black/services/auth"
	emailsvc "github.com/theoremz/black/services/email"
	logsvc "github.com/theoremz/black/services/logger"
	"github.com/theoremz/black/testutil"
)

var (
	logger     core.Logger
	validate   *validator.Validate
	translator ut.Translator

	errUnauthorizedBody = httpErr{Error: "unauthorized"}
)

func TestMain(m *testing.M) {
	logger = logsvc.NewNopLogger()
	validate, translator = testutil.NewValidator()
	core.ParseEmailTemplates(testutil.NewConfig(), logger)

	os.Exit(m.Run())
}

// fakeVerifier accepts tokens of the form "token-<uid>".
type fakeVerifier struct{}

func (fakeVerifier) Verify(_ context.Context, token string) (authsvc.Identity, error) {
	uid, ok := strings.CutPrefix(token, "token-")
	if !ok || uid == "" {
		return authsvc.Identity{}, authsvc.ErrInvalidToken
	}
	return authsvc.Identity{UID: uid, Email: uid + "@theoremz.test", EmailVerified: true}, nil
}

func tokenFor(uid string) string { return "token-" + uid }

type testEnv struct {
	conf  *core.Config
	stack *testutil.Stack
	app   Server
}

func newTestEnv(t *testing.T, confOpts ...func(*core.Config)) *testEnv {
	t.Helper()

	conf := testutil.NewConfig()
	for _, opt := range confOpts {
		opt(conf)
	}
	stack := testutil.NewStack(conf, logger)
	app := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Verifier:       fakeVerifier{},
		ExamSvc:        stack.ExamSvc,
		ReadinessSvc:   stack.ReadinessSvc,
		MailSvc:        emailsvc.NewConsoleServiceMock(conf, logger),
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	t.Cleanup(func() { _ = app.Close() })
	return &testEnv{conf: conf, stack: stack, app: app}
}

type httpErr struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	header   http.Header
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func (env *testEnv) do(tt httpTest) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	for key, values := range tt.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	env.app.ServeHTTP(rec, req)
	return rec
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return assert.ObjectsAreEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, "code")
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if assert.NoError(t, err, "jsonBytesEqual()") {
		assert.True(t, ok, "data = %s; wantData %s", rec.Body.String(), string(tt.wantData))
	}
}

func runHttpTests(t *testing.T, env *testEnv, method string, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.method == "" {
				tt.method = method
			}
			if tt.wantCode == 0 {
				tt.wantCode = http.StatusOK
			}
			checkCodeAndData(t, tt, env.do(tt))
		})
	}
}

func Test_server_home(t *testing.T) {
	env := newTestEnv(t)
	req, rec := newAuthRequest(http.MethodGet, "/", "")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Theoremz Black API", rec.Body.String())
}

func Test_server_notFound(t *testing.T) {
	env := newTestEnv(t)
	runHttpTests(t, env, http.MethodGet, []httpTest{
		{name: "Unknown route", path: "/api/nope", wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "not_found"})},
		{
			name: "Wrong method", method: http.MethodPut, path: "/api/me/exams", token: tokenFor("u1"),
			wantCode: http.StatusMethodNotAllowed, wantData: marshalObj(t, httpErr{Error: "method_not_allowed"}),
		},
		{
			name: "Wrong method on cron", method: http.MethodDelete, path: "/api/cron/readiness",
			wantCode: http.StatusMethodNotAllowed, wantData: marshalObj(t, httpErr{Error: "method_not_allowed"}),
		},
	})
}
