package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/somo/apps/api/echo"
	"github.com/trezcool/somo/core"
	"github.com/trezcool/somo/core/course"
	"github.com/trezcool/somo/core/quiz"
	"github.com/trezcool/somo/storage/database/inmem"
	"github.com/trezcool/somo/tests"
)

var testConf = &core.Config{
	AppName:   "Somo",
	TestMode:  true,
	SecretKey: "test-secret",
}

type fixture struct {
	app    Server
	store  course.Store
	quiz   quiz.Store
	events *testutil.Publisher
	logger *testutil.Logger
}

func setup(t *testing.T) fixture {
	t.Helper()

	// set up DB & repos
	db := inmemdb.Open()
	courseStore := inmemdb.NewCourseStore(db)
	quizStore := inmemdb.NewQuizStore(db)

	// set up services
	events := new(testutil.Publisher)
	logger := new(testutil.Logger)
	validate, translator := testutil.NewValidator()

	// set up server
	app := NewServer(nil, &Deps{
		Conf:      testConf,
		Logger:    logger,
		CourseSvc: course.NewService(courseStore, events, logger, validate, translator),
		QuizSvc:   quiz.NewService(quizStore, nil, events, logger, validate, translator),
	})
	return fixture{app: app, store: courseStore, quiz: quizStore, events: events, logger: logger}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
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

func getToken(t *testing.T, lrn core.Learner) string {
	t.Helper()
	token, err := GenerateToken(NewClaims(testConf, lrn, time.Hour), testConf.SecretKey)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

// do serves the request then decodes the JSON response into out, when given.
func do(t *testing.T, app Server, method, path, token string, body interface{}, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var data []byte
	if body != nil {
		data = marshallObj(t, body)
	}
	req, rec := newAuthRequest(method, path, token, data)
	app.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec
}

func runHTTPTests(t *testing.T, app Server, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantData != nil {
				assert.JSONEq(t, string(tt.wantData), rec.Body.String())
			}
		})
	}
}
