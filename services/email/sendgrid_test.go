package emailsvc

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremz/black/core"
	logsvc "github.com/theoremz/black/services/logger"
)

type fakeSendgrid struct {
	responses []*rest.Response
	errs      []error
	bodies    [][]byte
	slept     []time.Duration
}

func (f *fakeSendgrid) api(req rest.Request) (*rest.Response, error) {
	i := len(f.bodies)
	f.bodies = append(f.bodies, req.Body)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return nil, err
	}
	return f.responses[i], nil
}

func newTestSendgrid(env string, f *fakeSendgrid) *sendgridService {
	conf := &core.Config{Env: env, AppName: "Theoremz Black"}
	conf.Email.SendgridApiKey = "SG.test"
	conf.Email.DefaultFromEmail = "Theoremz <noreply@theoremz.com>"

	svc := NewSendgridService(conf, logsvc.NewNopLogger())
	svc.api = f.api
	svc.sleep = func(d time.Duration) { f.slept = append(f.slept, d) }
	return svc
}

func reportMessage() core.EmailMessage {
	return core.EmailMessage{
		To:          []mail.Address{{Name: "Ops", Address: "ops@theoremz.test"}},
		Subject:     "Readiness decay completed",
		Categories:  []string{"readiness_report", "readiness_decay"},
		TextContent: "processed=4 updated=3",
	}
}

func TestSendgridService_prepare(t *testing.T) {
	svc := newTestSendgrid("PROD", new(fakeSendgrid))

	var payload struct {
		Personalizations []struct {
			Subject string `json:"subject"`
		} `json:"personalizations"`
		Categories []string          `json:"categories"`
		CustomArgs map[string]string `json:"custom_args"`
		Content    []struct {
			Type string `json:"type"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(sgmailBody(svc, reportMessage()), &payload))

	require.Len(t, payload.Personalizations, 1)
	assert.Equal(t, "[Theoremz Black] Readiness decay completed", payload.Personalizations[0].Subject)
	assert.Equal(t, []string{"readiness_report", "readiness_decay"}, payload.Categories)
	assert.Equal(t, map[string]string{"env": "prod"}, payload.CustomArgs)
	require.Len(t, payload.Content, 1)
	assert.Equal(t, "text/plain", payload.Content[0].Type)

	qa := newTestSendgrid("QA", new(fakeSendgrid))
	assert.Equal(t, "[Theoremz Black QA] ", qa.subjPrefix)
}

func TestSendgridService_send(t *testing.T) {
	ok := &rest.Response{StatusCode: http.StatusAccepted}

	tests := []struct {
		name      string
		fake      *fakeSendgrid
		wantSent  bool
		wantCalls int
		wantSlept []time.Duration
	}{
		{
			name:      "Accepted",
			fake:      &fakeSendgrid{responses: []*rest.Response{ok}},
			wantSent:  true,
			wantCalls: 1,
		},
		{
			name: "Throttled then accepted",
			fake: &fakeSendgrid{responses: []*rest.Response{
				{StatusCode: http.StatusTooManyRequests}, {StatusCode: http.StatusServiceUnavailable}, ok,
			}},
			wantSent:  true,
			wantCalls: 3,
			wantSlept: []time.Duration{2 * time.Second, 4 * time.Second},
		},
		{
			name:      "Network error then accepted",
			fake:      &fakeSendgrid{errs: []error{errors.New("connection reset")}, responses: []*rest.Response{nil, ok}},
			wantSent:  true,
			wantCalls: 2,
			wantSlept: []time.Duration{2 * time.Second},
		},
		{
			name:      "Rejected",
			fake:      &fakeSendgrid{responses: []*rest.Response{{StatusCode: http.StatusBadRequest, Body: `{"errors":[]}`}}},
			wantCalls: 1,
		},
		{
			name: "Gives up",
			fake: &fakeSendgrid{responses: []*rest.Response{
				{StatusCode: http.StatusBadGateway}, {StatusCode: http.StatusBadGateway}, {StatusCode: http.StatusBadGateway},
			}},
			wantCalls: sendAttempts,
			wantSlept: []time.Duration{2 * time.Second, 4 * time.Second},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestSendgrid("PROD", tc.fake)
			assert.Equal(t, tc.wantSent, svc.send(reportMessage()))
			assert.Len(t, tc.fake.bodies, tc.wantCalls)
			assert.Equal(t, tc.wantSlept, tc.fake.slept)
		})
	}
}

func sgmailBody(svc *sendgridService, msg core.EmailMessage) []byte {
	f := &fakeSendgrid{responses: []*rest.Response{{StatusCode: http.StatusAccepted}}}
	svc.api = f.api
	svc.send(msg)
	return f.bodies[0]
}
