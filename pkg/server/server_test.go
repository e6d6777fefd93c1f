package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ivikasavnish/go-flowrec/pkg/command"
	"github.com/ivikasavnish/go-flowrec/pkg/controller"
	"github.com/ivikasavnish/go-flowrec/pkg/debugger"
	"github.com/ivikasavnish/go-flowrec/pkg/flowstore"
	"github.com/ivikasavnish/go-flowrec/pkg/page"
	"github.com/ivikasavnish/go-flowrec/pkg/page/pagetest"
	"github.com/ivikasavnish/go-flowrec/pkg/recorder"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))
}

type fakeNav struct {
	urls []string
	err  error
}

func (n *fakeNav) Navigate(ctx context.Context, url string) error {
	n.urls = append(n.urls, url)
	return n.err
}

type reply struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func setup(t *testing.T) (*Server, *pagetest.Page, *fakeNav) {
	t.Helper()
	p := pagetest.New("https://shop.example.test/")
	ctrl := controller.New(p,
		controller.WithStore(flowstore.NewMemoryStore()),
		controller.WithRecorderOptions(recorder.WithIdleFlush(time.Hour)),
		controller.WithExecutorOptions(debugger.WithSleep(func(context.Context, time.Duration) error { return nil })),
	)
	t.Cleanup(func() { _ = ctrl.Close() })
	nav := &fakeNav{}
	return New(ctrl, WithNavigator(nav)), p, nav
}

func do(t *testing.T, s *Server, method, path string, body interface{}) (int, reply) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var r reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r), rec.Body.String())
	return rec.Code, r
}

func TestRecordingOverREST(t *testing.T) {
	s, p, _ := setup(t)

	code, r := do(t, s, "POST", "/api/recording/start", nil)
	require.Equal(t, http.StatusOK, code, r.Error)
	assert.True(t, r.Success)

	code, r = do(t, s, "POST", "/api/recording/start", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, controller.ErrRecording.Error(), r.Error)

	p.Emit(page.DOMEvent{Type: "click", Target: pagetest.El("BUTTON", pagetest.WithID("buy"))})

	code, r = do(t, s, "POST", "/api/recording/stop", nil)
	require.Equal(t, http.StatusOK, code, r.Error)
	var info controller.SessionInfo
	require.NoError(t, json.Unmarshal(r.Data, &info))
	assert.Equal(t, recorder.StateStopped, info.State)
	assert.Equal(t, command.List{command.Click{Selector: "#buy"}}, info.Commands)

	code, r = do(t, s, "POST", "/api/generate", controller.Message{Target: "declarative"})
	require.Equal(t, http.StatusOK, code, r.Error)
	var gen controller.Code
	require.NoError(t, json.Unmarshal(r.Data, &gen))
	assert.Equal(t, "CLICK #buy\n", gen.Code)

	code, _ = do(t, s, "POST", "/api/recording/pause", nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestMessagesEndpoint(t *testing.T) {
	s, _, _ := setup(t)

	code, r := do(t, s, "POST", "/api/messages", controller.Message{Action: "dance"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, r.Success)

	code, r = do(t, s, "POST", "/api/messages", controller.Message{
		Action:   controller.ActionGenerateCode,
		Target:   "cobol",
		Commands: command.List{command.Click{Selector: "#a"}},
	})
	assert.Equal(t, http.StatusBadRequest, code, r.Error)

	req := httptest.NewRequest("POST", "/api/messages", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDebugVerbs(t *testing.T) {
	s, p, _ := setup(t)
	p.Add("#a", &pagetest.Node{})

	code, _ := do(t, s, "POST", "/api/debug/step", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, r := do(t, s, "POST", "/api/debug/open", controller.Message{
		Commands: command.List{command.Click{Selector: "#a"}, command.Click{Selector: "#gone"}},
	})
	require.Equal(t, http.StatusOK, code, r.Error)

	code, r = do(t, s, "POST", "/api/debug/run", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	var info controller.DebugInfo
	require.NoError(t, json.Unmarshal(r.Data, &info))
	assert.Equal(t, 1, info.Failed)

	code, _ = do(t, s, "POST", "/api/debug/delete", controller.Message{Index: new(int)})
	assert.Equal(t, http.StatusOK, code)

	code, r = do(t, s, "GET", "/api/debug", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(r.Data, &info))
	assert.Len(t, info.Commands, 1)

	code, _ = do(t, s, "DELETE", "/api/debug", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestFlowRoutes(t *testing.T) {
	s, _, _ := setup(t)

	code, r := do(t, s, "POST", "/api/flows", controller.Message{
		Name:     "login",
		Commands: command.List{command.Click{Selector: "#login"}},
	})
	require.Equal(t, http.StatusOK, code, r.Error)
	var saved map[string]string
	require.NoError(t, json.Unmarshal(r.Data, &saved))

	code, r = do(t, s, "GET", "/api/flows?domain=shop.example.test", nil)
	require.Equal(t, http.StatusOK, code)
	var flows []flowstore.Flow
	require.NoError(t, json.Unmarshal(r.Data, &flows))
	require.Len(t, flows, 1)
	assert.Equal(t, "login", flows[0].Name)

	code, _ = do(t, s, "GET", "/api/flows/"+saved["id"], nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, s, "DELETE", "/api/flows/"+saved["id"], nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, s, "GET", "/api/flows/"+saved["id"], nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestNavigate(t *testing.T) {
	s, _, nav := setup(t)

	code, _ := do(t, s, "POST", "/api/navigate", NavigateRequest{URL: "https://example.test/a"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"https://example.test/a"}, nav.urls)

	code, _ = do(t, s, "POST", "/api/navigate", NavigateRequest{})
	assert.Equal(t, http.StatusBadRequest, code)

	nav.err = errors.New("net::ERR_NAME_NOT_RESOLVED")
	code, r := do(t, s, "POST", "/api/navigate", NavigateRequest{URL: "https://nowhere.test"})
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Contains(t, r.Error, "ERR_NAME_NOT_RESOLVED")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{flowstore.ErrFlowNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", debugger.ErrBusy), http.StatusConflict},
		{&recorder.TransitionError{From: recorder.StateStopped, To: recorder.StatePaused}, http.StatusConflict},
		{&debugger.TimeoutError{Selector: "#a", Elapsed: time.Second}, http.StatusUnprocessableEntity},
		{fmt.Errorf("command 0: %w", command.ErrBadAmount), http.StatusBadRequest},
		{controller.ErrNoStore, http.StatusNotImplemented},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestHealth(t *testing.T) {
	s, _, _ := setup(t)
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListenAndServeStopsWithContext(t *testing.T) {
	s, _, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
