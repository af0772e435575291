package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mw "github.com/fatflowers/iftar/internal/app/api/middleware"
	"github.com/fatflowers/iftar/internal/app/repository/repotest"
	"github.com/fatflowers/iftar/internal/app/service/auth"
	"github.com/fatflowers/iftar/internal/app/service/checkin"
	"github.com/fatflowers/iftar/internal/app/service/export"
	"github.com/fatflowers/iftar/internal/app/service/manualpayment"
	"github.com/fatflowers/iftar/internal/app/service/participant"
	"github.com/fatflowers/iftar/internal/app/service/payment"
	"github.com/fatflowers/iftar/internal/app/service/reconcile"
	"github.com/fatflowers/iftar/internal/app/service/statistics"
	"github.com/fatflowers/iftar/internal/models"
	"github.com/fatflowers/iftar/internal/platform/gateway"
	cfgpkg "github.com/fatflowers/iftar/pkg/config"
	"github.com/fatflowers/iftar/pkg/response"
)

const (
	testSiteID   = "105890"
	testPassword = "s3cret-pass"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type stubGateway struct{}

func (stubGateway) InitPayment(_ context.Context, req gateway.InitRequest) (*gateway.InitResponse, error) {
	return &gateway.InitResponse{PaymentURL: "https://checkout.example/" + req.TransactionID, APIResponseID: "API-" + req.TransactionID}, nil
}

type memStore struct{ keys []string }

func (s *memStore) Upload(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	s.keys = append(s.keys, key)
	return "https://cdn.example/" + key, nil
}

func (s *memStore) Delete(context.Context, string) error { return nil }

type testServer struct {
	router *gin.Engine
	repo   *repotest.Memory
	store  *memStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop().Sugar()

	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)
	cfg := &cfgpkg.Config{
		Server:  cfgpkg.ServerConfig{PublicURL: "https://iftar.example"},
		Event:   cfgpkg.EventConfig{Name: "Iftar", Currency: "XOF", RegularPrice: 5000, MemberPrice: 3000, QRCodePrefix: "IFTAR-"},
		Gateway: cfgpkg.GatewayConfig{SiteID: testSiteID},
		Admin:   cfgpkg.AdminConfig{Username: "admin", PasswordHash: hash, JWTSecret: "test-secret"},
		CORS:    cfgpkg.CORSConfig{AllowedOrigins: "*"},
	}

	ts := &testServer{repo: repotest.New(), store: &memStore{}}
	participants := participant.New(ts.repo, nil, cfg, log)
	rec := reconcile.New(reconcile.Params{Repo: ts.repo, Config: cfg, Log: log})
	pay := payment.New(payment.Params{Repo: ts.repo, Participants: participants, Gateway: stubGateway{}, Config: cfg, Log: log})
	manual := manualpayment.New(manualpayment.Params{
		Repo: ts.repo, Participants: participants, Store: ts.store, Fulfiller: rec, Log: log,
	})
	checkins := checkin.New(checkin.Params{Repo: ts.repo, Participants: participants, Log: log})
	authSvc := auth.New(cfg, log)
	stats := statistics.New(statistics.Params{Repo: ts.repo})
	exp := export.New(export.Params{Repo: ts.repo, Log: log})

	r := gin.New()
	r.Use(mw.TraceMiddleware(), mw.CORS(cfg.CORS.AllowedOrigins, payment.WebhookPath))
	api := r.Group("/api/v1")
	api.Use(mw.RequestLoggerMiddleware(log))
	RegisterWebhookRoutes(api, rec, log)
	RegisterParticipantRoutes(api, participants)
	RegisterPaymentRoutes(api, pay)
	RegisterManualPaymentRoutes(api, manual)
	RegisterCheckInRoutes(api, participants, checkins)
	admin := api.Group("/admin")
	RegisterAdminLoginRoutes(admin, authSvc)
	RegisterAdminRoutes(admin.Group("", mw.AdminAuth(authSvc, log)), participants, rec, manual, checkins, stats, exp)

	ts.router = r
	return ts
}

type envelope struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    json.RawMessage          `json:"data"`
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) call(t *testing.T, method, path, token string, body any) envelope {
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
	w := ts.do(t, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func (ts *testServer) login(t *testing.T) string {
	t.Helper()
	env := ts.call(t, http.MethodPost, "/api/v1/admin/login", "", LoginRequest{Username: "admin", Password: testPassword})
	require.Equal(t, response.APIResponseCodeOK, env.Code, env.Message)
	var tok auth.Token
	require.NoError(t, json.Unmarshal(env.Data, &tok))
	require.NotEmpty(t, tok.AccessToken)
	return tok.AccessToken
}

func (ts *testServer) register(t *testing.T) (id, shortCode string) {
	t.Helper()
	env := ts.call(t, http.MethodPost, "/api/v1/participants", "", participant.RegisterRequest{
		FirstName: "Awa", LastName: "Sigui", Email: "awa@example.com", Phone: "07 01 23 45 67",
		Guests: []participant.GuestInput{{FirstName: "Moussa", LastName: "Sigui"}},
	})
	require.Equal(t, response.APIResponseCodeOK, env.Code, env.Message)
	var p struct {
		ID        string `json:"id"`
		ShortCode string `json:"short_code"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &p))
	require.Regexp(t, `^SIG-\d{4,5}$`, p.ShortCode)
	return p.ID, p.ShortCode
}

func multipartProof(t *testing.T, fields map[string]string, fileName string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mwr := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mwr.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mwr.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mwr.Close())
	return &buf, mwr.FormDataContentType()
}

func TestManualPaymentFlow_EndToEnd(t *testing.T) {
	ts := newTestServer(t)
	id, code := ts.register(t)

	proof := append(append([]byte{}, pngHeader...), make([]byte, 2048)...)
	body, ctype := multipartProof(t, map[string]string{
		"participant_id": id,
		"method":         "orange_money",
		"phone_number":   "0701234567",
		"comment":        "sent at 18h",
	}, "capture.png", proof)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/manual-payments", body)
	req.Header.Set("Content-Type", ctype)
	w := ts.do(t, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(t, response.APIResponseCodeOK, env.Code, env.Message)
	var mp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &mp))
	assert.Equal(t, "pending", mp.Status)
	require.Len(t, ts.store.keys, 1)

	// not paid yet
	env = ts.call(t, http.MethodGet, "/api/v1/checkin/code/"+strings.ToLower(code), "", nil)
	require.Equal(t, response.APIResponseCodeOK, env.Code)
	var view LookupView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.False(t, view.Paid)
	assert.Equal(t, "pending", string(view.PaymentStatus))

	token := ts.login(t)
	env = ts.call(t, http.MethodPost, "/api/v1/admin/manual-payments/"+mp.ID+"/validate", token,
		manualpayment.ValidateRequest{Status: "completed", AdminComment: "ok"})
	require.Equal(t, response.APIResponseCodeOK, env.Code, env.Message)

	env = ts.call(t, http.MethodGet, "/api/v1/checkin/code/"+code, "", nil)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.True(t, view.Paid)
	assert.Equal(t, "completed", string(view.PaymentStatus))

	p, err := ts.repo.GetParticipant(context.Background(), id)
	require.NoError(t, err)
	require.True(t, p.HasQRCode())
	assert.True(t, strings.HasPrefix(*p.QRCode, "IFTAR-"+id))

	// door scan, then a second scan is refused
	env = ts.call(t, http.MethodPost, "/api/v1/admin/checkin/qr", token, qrCheckInRequest{QRCode: *p.QRCode})
	require.Equal(t, response.APIResponseCodeOK, env.Code, env.Message)
	env = ts.call(t, http.MethodPost, "/api/v1/admin/checkin/code", token, codeCheckInRequest{Code: code})
	assert.Equal(t, response.APIResponseCodeConflict, env.Code)
}

func TestManualPayment_Rejections(t *testing.T) {
	ts := newTestServer(t)
	id, _ := ts.register(t)

	cases := []struct {
		name     string
		fields   map[string]string
		file     string
		data     []byte
		wantCode response.APIResponseCode
	}{
		{"missing phone", map[string]string{"participant_id": id}, "a.png", pngHeader, response.APIResponseCodeBadRequest},
		{"missing file", map[string]string{"participant_id": id, "phone_number": "0701234567"}, "", nil, response.APIResponseCodeBadRequest},
		{"text file", map[string]string{"participant_id": id, "phone_number": "0701234567"}, "a.png", []byte("just some text"), response.APIResponseCodeBadRequest},
		{"unknown participant", map[string]string{"participant_id": "nope", "phone_number": "0701234567"}, "a.png", pngHeader, response.APIResponseCodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, ctype := multipartProof(t, tc.fields, tc.file, tc.data)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/manual-payments", body)
			req.Header.Set("Content-Type", ctype)
			w := ts.do(t, req)
			var env envelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
			assert.Equal(t, tc.wantCode, env.Code, env.Message)
		})
	}
	assert.Empty(t, ts.store.keys)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func TestManualPayment_OversizedBodyIsCutShort(t *testing.T) {
	ts := newTestServer(t)
	id, _ := ts.register(t)

	proof := append(append([]byte{}, pngHeader...), make([]byte, 12<<20)...)
	fields := map[string]string{"participant_id": id, "phone_number": "0701234567"}

	for _, tc := range []struct {
		name          string
		contentLength func(size int) int64
	}{
		{"declared length", func(size int) int64 { return int64(size) }},
		{"unknown length", func(int) int64 { return -1 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			body, ctype := multipartProof(t, fields, "big.png", proof)
			size := body.Len()
			counter := &countingReader{r: body}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/manual-payments", counter)
			req.Header.Set("Content-Type", ctype)
			req.ContentLength = tc.contentLength(size)

			w := ts.do(t, req)
			var env envelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
			assert.Equal(t, response.APIResponseCodeBadRequest, env.Code)
			assert.LessOrEqual(t, counter.n, int64(maxManualPaymentBody+1))
			assert.Less(t, counter.n, int64(size))
		})
	}
	assert.Empty(t, ts.store.keys)
}

func (ts *testServer) initiate(t *testing.T, participantID string) payment.InitiateResponse {
	t.Helper()
	env := ts.call(t, http.MethodPost, "/api/v1/payments", "", payment.InitiateRequest{ParticipantID: participantID})
	require.Equal(t, response.APIResponseCodeOK, env.Code, env.Message)
	var res payment.InitiateResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	return res
}

func webhookRequest(method, body, ctype string) *http.Request {
	req := httptest.NewRequest(method, payment.WebhookPath, strings.NewReader(body))
	if ctype != "" {
		req.Header.Set("Content-Type", ctype)
	}
	return req
}

func TestWebhook_AcceptedCompletesPayment(t *testing.T) {
	ts := newTestServer(t)
	id, _ := ts.register(t)
	started := ts.initiate(t, id)
	assert.Equal(t, int64(10000), started.Amount)

	body := `{"cpm_trans_id":"` + started.TransactionID + `","cpm_site_id":"` + testSiteID + `","status":"ACCEPTED","operator_id":"OM-1"}`
	w := ts.do(t, webhookRequest(http.MethodPost, body, "application/json"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	var res WebhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, started.PaymentID, res.PaymentID)
	assert.Equal(t, "completed", string(res.NewStatus))

	env := ts.call(t, http.MethodGet, "/api/v1/payments/status/"+id, "", nil)
	var st payment.StatusResponse
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.True(t, st.Paid)
	require.NotNil(t, st.QRCode)

	// re-delivery is idempotent, form bodies are accepted too
	form := "cpm_trans_id=" + started.TransactionID + "&cpm_site_id=" + testSiteID + "&status=ACCEPTED"
	w = ts.do(t, webhookRequest(http.MethodPost, form, "application/x-www-form-urlencoded"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	p, err := ts.repo.GetParticipant(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, *st.QRCode, *p.QRCode)
}

func TestWebhook_StatusCodes(t *testing.T) {
	ts := newTestServer(t)
	id, _ := ts.register(t)
	started := ts.initiate(t, id)

	cases := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"preflight", http.MethodOptions, "", http.StatusNoContent},
		{"get", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"missing site", http.MethodPost, `{"cpm_trans_id":"` + started.TransactionID + `"}`, http.StatusBadRequest},
		{"site mismatch", http.MethodPost, `{"cpm_trans_id":"` + started.TransactionID + `","cpm_site_id":"999","status":"ACCEPTED"}`, http.StatusBadRequest},
		{"unknown transaction", http.MethodPost, `{"cpm_trans_id":"ZZZ","cpm_site_id":"` + testSiteID + `","status":"ACCEPTED"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := ts.do(t, webhookRequest(tc.method, tc.body, "application/json"))
			assert.Equal(t, tc.want, w.Code, w.Body.String())
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		})
	}

	pay, err := ts.repo.GetPayment(context.Background(), started.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, "pending", string(pay.Status))
}

type brokenRefsRepo struct {
	*repotest.Memory
	panics bool
}

func (r *brokenRefsRepo) PaymentRefsByExactID(context.Context, string) ([]models.PaymentRef, error) {
	if r.panics {
		panic("lookup exploded")
	}
	return nil, errors.New("connection reset by peer")
}

func TestWebhook_InternalFailuresAnswer500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := zap.NewNop().Sugar()
	cfg := &cfgpkg.Config{Gateway: cfgpkg.GatewayConfig{SiteID: testSiteID}}

	for _, tc := range []struct {
		name   string
		panics bool
	}{
		{"repository error", false},
		{"panic", true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := reconcile.New(reconcile.Params{Repo: &brokenRefsRepo{Memory: repotest.New(), panics: tc.panics}, Config: cfg, Log: log})
			r := gin.New()
			RegisterWebhookRoutes(r.Group("/api/v1"), rec, log)

			body := `{"cpm_trans_id":"IFT0001","cpm_site_id":"` + testSiteID + `","status":"ACCEPTED"}`
			w := httptest.NewRecorder()
			r.ServeHTTP(w, webhookRequest(http.MethodPost, body, "application/json"))

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
			var res WebhookResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
			assert.False(t, res.Success)
			assert.Equal(t, "internal error", res.Error)
			assert.NotContains(t, w.Body.String(), "connection reset")
		})
	}
}

func TestErrorEnvelopeCodes(t *testing.T) {
	ts := newTestServer(t)

	env := ts.call(t, http.MethodGet, "/api/v1/participants/unknown", "", nil)
	assert.Equal(t, response.APIResponseCodeNotFound, env.Code)

	env = ts.call(t, http.MethodPost, "/api/v1/participants", "", participant.RegisterRequest{FirstName: "A"})
	assert.Equal(t, response.APIResponseCodeBadRequest, env.Code)

	env = ts.call(t, http.MethodGet, "/api/v1/admin/stats", "", nil)
	assert.Equal(t, response.APIResponseCodeUnauthorized, env.Code)

	env = ts.call(t, http.MethodPost, "/api/v1/admin/login", "", LoginRequest{Username: "admin", Password: "wrong"})
	assert.Equal(t, response.APIResponseCodeUnauthorized, env.Code)
}

func TestAdmin_StatsExportAndWipe(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t)
	token := ts.login(t)

	env := ts.call(t, http.MethodGet, "/api/v1/admin/stats", token, nil)
	require.Equal(t, response.APIResponseCodeOK, env.Code, env.Message)
	assert.Contains(t, string(env.Data), `"participants":1`)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/export.csv", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := ts.do(t, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	assert.Len(t, lines, 2)

	env = ts.call(t, http.MethodPost, "/api/v1/admin/export/sheets", token, nil)
	assert.Equal(t, response.APIResponseCodeBadRequest, env.Code)

	env = ts.call(t, http.MethodDelete, "/api/v1/admin/participants", token, nil)
	assert.Equal(t, response.APIResponseCodeBadRequest, env.Code)
	env = ts.call(t, http.MethodDelete, "/api/v1/admin/participants?confirm=yes", token, nil)
	require.Equal(t, response.APIResponseCodeOK, env.Code)

	all, err := ts.repo.AllParticipants(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}
