package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"org_membership/internal/auth"
	"org_membership/internal/identity"
	"org_membership/internal/metrics"
	"org_membership/internal/organisation"
	"org_membership/internal/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	store  *repository.MemoryStore
}

type envelope struct {
	Status     string              `json:"status"`
	Message    string              `json:"message"`
	StatusCode int                 `json:"statusCode"`
	Errors     map[string][]string `json:"errors"`
	Data       json.RawMessage     `json:"data"`
}

type userJSON struct {
	UserID    string `json:"userId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type orgJSON struct {
	OrgID       string `json:"orgId"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func newTestServer(t *testing.T, ratePerMinute float64) *testServer {
	t.Helper()
	store := repository.NewMemory()
	issuer := auth.NewIssuer("router-test-secret", time.Hour)
	m := metrics.New()
	log := zerolog.Nop()

	router := NewRouter(Deps{
		Identity:          identity.New(store, auth.NewHasher(bcrypt.MinCost), issuer, m, log),
		Organisations:     organisation.New(store, m, log),
		Tokens:            issuer,
		Users:             store.Users(),
		Metrics:           m,
		Log:               log,
		CORSOrigins:       []string{"*"},
		AuthRatePerMinute: ratePerMinute,
		AuthRateBurst:     2,
	})
	return &testServer{router: router, store: store}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

// register signs up firstName and returns the token and user.
func (s *testServer) register(t *testing.T, firstName string) (string, userJSON) {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/auth/register/", "", map[string]string{
		"email":     strings.ToLower(firstName) + "@example.com",
		"password":  "p",
		"firstName": firstName,
		"lastName":  "Tester",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var data struct {
		AccessToken string   `json:"accessToken"`
		User        userJSON `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.AccessToken)
	return data.AccessToken, data.User
}

func (s *testServer) organisations(t *testing.T, token string) []orgJSON {
	t.Helper()
	w, env := s.do(t, http.MethodGet, "/api/organisations/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Organisations []orgJSON `json:"organisations"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.Organisations
}

func TestHome(t *testing.T) {
	s := newTestServer(t, 0)
	w, env := s.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "success", env.Status)
}

func TestRegisterCreatesDefaultOrganisation(t *testing.T) {
	s := newTestServer(t, 0)

	w, env := s.do(t, http.MethodPost, "/auth/register/", "", map[string]string{
		"email":     "a@x.com",
		"password":  "p",
		"firstName": "Ann",
		"lastName":  "Lee",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "success", env.Status)
	require.Equal(t, "Registration successful", env.Message)
	require.NotContains(t, w.Body.String(), "password")
	require.NotContains(t, w.Body.String(), "organisation")

	var data struct {
		AccessToken string   `json:"accessToken"`
		User        userJSON `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, "a@x.com", data.User.Email)
	require.Equal(t, "Ann", data.User.FirstName)

	orgs := s.organisations(t, data.AccessToken)
	require.Len(t, orgs, 1)
	require.Equal(t, "Ann's Organisation", orgs[0].Name)

	members, err := s.store.Organisations().IsMember(context.Background(), orgs[0].OrgID, data.User.UserID)
	require.NoError(t, err)
	require.True(t, members)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t, 0)
	s.register(t, "Ann")

	tests := []struct {
		name       string
		body       any
		wantFields []string
	}{
		{"missing fields", map[string]string{}, []string{"email", "password", "firstName", "lastName"}},
		{"bad email", map[string]string{"email": "nope", "password": "p", "firstName": "A", "lastName": "B"}, []string{"email"}},
		{"duplicate email", map[string]string{"email": "ANN@example.com", "password": "p", "firstName": "A", "lastName": "B"}, []string{"email"}},
		{"blank name", map[string]string{"email": "z@x.com", "password": "p", "firstName": "  ", "lastName": "B"}, []string{"firstName"}},
		{"empty body", nil, []string{"email", "password", "firstName", "lastName"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := s.do(t, http.MethodPost, "/auth/register/", "", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			require.Equal(t, "Bad request", env.Status)
			require.Equal(t, "Registration unsuccessful", env.Message)
			for _, f := range tt.wantFields {
				require.Contains(t, env.Errors, f)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, 0)
	_, ann := s.register(t, "Ann")

	w, env := s.do(t, http.MethodPost, "/auth/login/", "", map[string]string{
		"email":    "ann@example.com",
		"password": "p",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Login successful", env.Message)

	var data struct {
		AccessToken string   `json:"accessToken"`
		User        userJSON `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, ann.UserID, data.User.UserID)
	require.Len(t, s.organisations(t, data.AccessToken), 1)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	s := newTestServer(t, 0)
	s.register(t, "Ann")

	wrongPassword, envWrong := s.do(t, http.MethodPost, "/auth/login/", "", map[string]string{
		"email": "ann@example.com", "password": "wrong",
	})
	unknownEmail, envUnknown := s.do(t, http.MethodPost, "/auth/login/", "", map[string]string{
		"email": "nobody@example.com", "password": "p",
	})

	require.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	require.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	require.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
	require.Equal(t, "Authentication failed", envWrong.Message)
	require.Empty(t, envWrong.Errors)
	require.Empty(t, envUnknown.Errors)
}

func TestLoginMissingFields(t *testing.T) {
	s := newTestServer(t, 0)
	w, env := s.do(t, http.MethodPost, "/auth/login/", "", map[string]string{"email": "ann@example.com"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, env.Errors, "password")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, 0)
	for _, path := range []string{"/api/organisations/", "/api/users/x/", "/api/organisations/x/", "/api/organisations/x/audit/"} {
		w, _ := s.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code, path)

		w, _ = s.do(t, http.MethodGet, path, "garbage", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestGetUserVisibility(t *testing.T) {
	s := newTestServer(t, 0)
	annToken, ann := s.register(t, "Ann")
	bobToken, bob := s.register(t, "Bob")

	// own profile
	w, env := s.do(t, http.MethodGet, "/api/users/"+ann.UserID+"/", annToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "User details retrieved successfully", env.Message)
	var got userJSON
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Equal(t, ann, got)

	// no shared organisation
	w, env = s.do(t, http.MethodGet, "/api/users/"+bob.UserID+"/", annToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "You don't have permission to view this user", env.Message)

	// share Ann's organisation with Bob
	annOrg := s.organisations(t, annToken)[0]
	w, _ = s.do(t, http.MethodPost, "/api/organisations/"+annOrg.OrgID+"/add_user/", annToken, map[string]string{"userId": bob.UserID})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/users/"+bob.UserID+"/", annToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodGet, "/api/users/"+ann.UserID+"/", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// unknown and malformed ids
	w, env = s.do(t, http.MethodGet, "/api/users/00000000-0000-0000-0000-000000000000/", annToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "User not found", env.Message)
	w, _ = s.do(t, http.MethodGet, "/api/users/not-a-uuid/", annToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateOrganisation(t *testing.T) {
	s := newTestServer(t, 0)
	token, _ := s.register(t, "Ann")

	w, env := s.do(t, http.MethodPost, "/api/organisations/", token, map[string]string{
		"name":        "Acme",
		"description": "Widgets",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "Organisation created successfully", env.Message)

	var org orgJSON
	require.NoError(t, json.Unmarshal(env.Data, &org))
	require.Equal(t, "Acme", org.Name)
	require.Equal(t, "Widgets", org.Description)

	// creator can read it immediately
	w, env = s.do(t, http.MethodGet, "/api/organisations/"+org.OrgID+"/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Organisation details retrieved successfully", env.Message)

	orgs := s.organisations(t, token)
	require.Len(t, orgs, 2)
	require.Equal(t, "Ann's Organisation", orgs[0].Name)
	require.Equal(t, "Acme", orgs[1].Name)
}

func TestCreateOrganisationRequiresName(t *testing.T) {
	s := newTestServer(t, 0)
	token, _ := s.register(t, "Ann")

	w, env := s.do(t, http.MethodPost, "/api/organisations/", token, map[string]string{"description": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Client error", env.Message)
	require.Contains(t, env.Errors, "name")
	require.Len(t, s.organisations(t, token), 1)
}

func TestGetOrganisationVisibility(t *testing.T) {
	s := newTestServer(t, 0)
	annToken, _ := s.register(t, "Ann")
	bobToken, _ := s.register(t, "Bob")
	annOrg := s.organisations(t, annToken)[0]

	w, env := s.do(t, http.MethodGet, "/api/organisations/"+annOrg.OrgID+"/", bobToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "You don't have permission to view this organisation", env.Message)

	w, env = s.do(t, http.MethodGet, "/api/organisations/00000000-0000-0000-0000-000000000000/", bobToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "Organisation not found", env.Message)
}

func TestAddUserToOrganisation(t *testing.T) {
	s := newTestServer(t, 0)
	annToken, _ := s.register(t, "Ann")
	bobToken, bob := s.register(t, "Bob")
	_, cat := s.register(t, "Cat")
	annOrg := s.organisations(t, annToken)[0]
	addPath := "/api/organisations/" + annOrg.OrgID + "/add_user/"

	t.Run("non-member is forbidden even for an existing target", func(t *testing.T) {
		w, env := s.do(t, http.MethodPost, addPath, bobToken, map[string]string{"userId": cat.UserID})
		require.Equal(t, http.StatusForbidden, w.Code)
		require.Equal(t, "You don't have permission to add users to this organisation", env.Message)
	})

	t.Run("non-member is forbidden for an unknown target", func(t *testing.T) {
		w, _ := s.do(t, http.MethodPost, addPath, bobToken, map[string]string{"userId": "00000000-0000-0000-0000-000000000000"})
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unknown organisation", func(t *testing.T) {
		w, _ := s.do(t, http.MethodPost, "/api/organisations/00000000-0000-0000-0000-000000000000/add_user/", annToken, map[string]string{"userId": bob.UserID})
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("member adding unknown target", func(t *testing.T) {
		w, env := s.do(t, http.MethodPost, addPath, annToken, map[string]string{"userId": "00000000-0000-0000-0000-000000000000"})
		require.Equal(t, http.StatusNotFound, w.Code)
		require.Equal(t, "User not found", env.Message)
	})

	t.Run("missing userId", func(t *testing.T) {
		w, env := s.do(t, http.MethodPost, addPath, annToken, map[string]string{})
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Contains(t, env.Errors, "userId")
	})

	t.Run("member adds user idempotently", func(t *testing.T) {
		for range 2 {
			w, env := s.do(t, http.MethodPost, addPath, annToken, map[string]string{"userId": bob.UserID})
			require.Equal(t, http.StatusOK, w.Code)
			require.Equal(t, "User added to organisation successfully", env.Message)
		}

		orgs := s.organisations(t, bobToken)
		require.Len(t, orgs, 2)
		ids := []string{orgs[0].OrgID, orgs[1].OrgID}
		require.Contains(t, ids, annOrg.OrgID)

		// the new member can now read the organisation
		w, _ := s.do(t, http.MethodGet, "/api/organisations/"+annOrg.OrgID+"/", bobToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
	})
}

func TestOrganisationAudit(t *testing.T) {
	s := newTestServer(t, 0)
	annToken, _ := s.register(t, "Ann")
	bobToken, bob := s.register(t, "Bob")
	annOrg := s.organisations(t, annToken)[0]
	auditPath := "/api/organisations/" + annOrg.OrgID + "/audit/"

	w, _ := s.do(t, http.MethodGet, auditPath, bobToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/organisations/"+annOrg.OrgID+"/add_user/", annToken, map[string]string{"userId": bob.UserID})
	require.Equal(t, http.StatusOK, w.Code)

	w, env := s.do(t, http.MethodGet, auditPath+"?limit=1", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		Logs []struct {
			ID     int64  `json:"id"`
			Action string `json:"action"`
		} `json:"logs"`
		NextCursor *int64 `json:"nextCursor"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Logs, 1)
	require.Equal(t, "organisations.add_user", page.Logs[0].Action)
	require.NotNil(t, page.NextCursor)

	next := auditPath + "?after_id=" + jsonNumber(*page.NextCursor)
	w, env = s.do(t, http.MethodGet, next, bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Logs, 1)
	require.Equal(t, "organisations.create", page.Logs[0].Action)
	require.Nil(t, page.NextCursor)
}

func TestAuthRateLimit(t *testing.T) {
	s := newTestServer(t, 1)
	body := map[string]string{"email": "ann@example.com", "password": "p"}

	for range 2 {
		w, _ := s.do(t, http.MethodPost, "/auth/login/", "", body)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w, env := s.do(t, http.MethodPost, "/auth/login/", "", body)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "Too many requests", env.Status)

	// the API group is not limited
	w, _ = s.do(t, http.MethodGet, "/api/organisations/", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, 0)
	s.register(t, "Ann")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "http_requests_total")
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestRegisterPasswordLength(t *testing.T) {
	tests := []struct {
		name       string
		password   string
		wantStatus int
	}{
		{"72 bytes", strings.Repeat("a", 72), http.StatusCreated},
		{"73 bytes", strings.Repeat("a", 73), http.StatusBadRequest},
		{"37 two-byte runes", strings.Repeat("é", 37), http.StatusBadRequest},
		{"100 characters", strings.Repeat("a", 100), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, 0)
			w, env := s.do(t, http.MethodPost, "/auth/register/", "", map[string]string{
				"email":     "ann@example.com",
				"password":  tt.password,
				"firstName": "Ann",
				"lastName":  "Lee",
			})
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus == http.StatusBadRequest {
				require.Equal(t, "Registration unsuccessful", env.Message)
				require.Contains(t, env.Errors, "password")
				return
			}

			w, _ = s.do(t, http.MethodPost, "/auth/login/", "", map[string]string{
				"email":    "ann@example.com",
				"password": tt.password,
			})
			require.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestLoginWithOverlongPassword(t *testing.T) {
	s := newTestServer(t, 0)
	s.register(t, "Ann")

	w, env := s.do(t, http.MethodPost, "/auth/login/", "", map[string]string{
		"email":    "ann@example.com",
		"password": strings.Repeat("a", 100),
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Authentication failed", env.Message)
}
