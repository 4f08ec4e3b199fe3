package eligibility

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"serialfic-monetization/pkg/authz"
	"serialfic-monetization/pkg/config"
	"serialfic-monetization/pkg/errutil"
	"serialfic-monetization/pkg/middleware"
	"serialfic-monetization/services/catalog"
	"serialfic-monetization/services/subscription"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func request(t *testing.T, r http.Handler, path, subject string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if subject != "" {
		signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: []byte(testSecret)}, (&jose.SignerOptions{}).WithType("JWT"))
		require.NoError(t, err)
		raw, err := jwt.Signed(signer).Claims(jwt.Claims{
			Subject: subject,
			Expiry:  jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).Serialize()
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+raw)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func (f *fixture) router(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Auth.JWTSecret = testSecret
	az, err := authz.New()
	require.NoError(t, err)

	r := gin.New()
	r.Use(middleware.Error())
	NewHandler(f.svc, f.reader, az).Register(r, middleware.NewAuthenticator(cfg))
	return r
}

func TestEligibilityHandler(t *testing.T) {
	f := newFixture(t)
	r := f.router(t)

	f.expectNovel(catalog.PricingPaid, subscription.Status{}, map[int]int64{1: 1200, 2: 1000, 3: 400})
	// the handler loads the novel once for authorization
	f.reader.EXPECT().Novel(gomock.Any(), "n1").
		Return(&catalog.Novel{ID: "n1", AuthorID: "w1", PricingModel: catalog.PricingPaid}, nil)

	w := request(t, r, "/writer-earning/eligibility/n1", "w1")
	require.Equal(t, http.StatusOK, w.Code)

	var report Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.False(t, report.IsMonetized)
	require.Equal(t, 30, report.PlatformFeePercentage)
	require.Equal(t, []int{4, 5}, report.MissingChapters)
	require.Len(t, report.FreeChapterViews, 3)
	require.False(t, report.FreeChapterViews[2].MeetsRequirement)
	require.Equal(t, 40.0, report.EcpmRate)
	require.Equal(t, int64(3), report.EstimatedAdEarningPerUnlock)
}

func TestEligibilityHandlerEcpmOverride(t *testing.T) {
	f := newFixture(t)
	r := f.router(t)

	f.expectNovel(catalog.PricingPaid, subscription.Status{}, map[int]int64{})
	f.reader.EXPECT().Novel(gomock.Any(), "n1").
		Return(&catalog.Novel{ID: "n1", AuthorID: "w1", PricingModel: catalog.PricingPaid}, nil)

	w := request(t, r, "/writer-earning/eligibility/n1?ecpmRate=100", "w1")
	require.Equal(t, http.StatusOK, w.Code)

	var report Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.Equal(t, 100.0, report.EcpmRate)
	require.Equal(t, int64(7), report.EstimatedAdEarningPerUnlock)

	for _, bad := range []string{"abc", "-1"} {
		w = request(t, r, "/writer-earning/eligibility/n1?ecpmRate="+bad, "w1")
		require.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

func TestEligibilityHandlerOtherWriter(t *testing.T) {
	f := newFixture(t)
	r := f.router(t)

	f.reader.EXPECT().Novel(gomock.Any(), "n1").
		Return(&catalog.Novel{ID: "n1", AuthorID: "w1", PricingModel: catalog.PricingPaid}, nil)

	w := request(t, r, "/writer-earning/eligibility/n1", "w2")
	require.Equal(t, http.StatusForbidden, w.Code)

	var body struct {
		Error struct {
			Reason string `json:"reason"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, errutil.ReasonNotAuthor, body.Error.Reason)
}

func TestEligibilityHandlerUnknownNovel(t *testing.T) {
	f := newFixture(t)
	r := f.router(t)

	f.reader.EXPECT().Novel(gomock.Any(), "missing").Return(nil, errutil.NotFound("novel not found", nil))

	require.Equal(t, http.StatusNotFound, request(t, r, "/writer-earning/eligibility/missing", "w1").Code)
	require.Equal(t, http.StatusUnauthorized, request(t, r, "/writer-earning/eligibility/missing", "").Code)
}
