package groupstate

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jpalmerr/groupstate/internal/api"
	"github.com/jpalmerr/groupstate/meta"
	"github.com/jpalmerr/groupstate/modules/invitations"
	"github.com/jpalmerr/groupstate/modules/router"
	"github.com/jpalmerr/groupstate/modules/toasts"
)

// fakePlatform serves the subset of the platform API the app uses.
type fakePlatform struct {
	mu          sync.Mutex
	acceptFails bool
	requests    []string
}

func (p *fakePlatform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.requests = append(p.requests, r.Method+" "+r.URL.Path)
	acceptFails := p.acceptFails
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/api/auth/user/":
		_, _ = w.Write([]byte(`{"id": 1, "display_name": "Ada", "email": "ada@example.com", "current_group": 5}`))
	case r.URL.Path == "/api/groups/5/":
		_, _ = w.Write([]byte(`{"id": 5, "name": "Foodsavers", "members": [1, 2]}`))
	case r.URL.Path == "/api/users/":
		_, _ = w.Write([]byte(`[{"id": 1, "display_name": "Ada"}, {"id": 2, "display_name": "Bob"}]`))
	case r.URL.Path == "/api/invitations/" && r.Method == http.MethodGet:
		if r.URL.Query().Get("group") != "5" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[
			{"id": 10, "email": "old@example.com", "group": 5, "invited_by": 2, "created_at": "2024-01-01T00:00:00Z"},
			{"id": 11, "email": "new@example.com", "group": 5, "invited_by": 1, "created_at": "2024-02-01T00:00:00Z"}
		]`))
	case strings.HasSuffix(r.URL.Path, "/accept/"):
		if acceptFails {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Not found."}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func newTestApp(t *testing.T, platform *fakePlatform, mutate func(*AppConfig)) *App {
	t.Helper()
	server := httptest.NewServer(platform)
	t.Cleanup(server.Close)

	cfg := AppConfig{
		APIBaseURL:      server.URL,
		APIToken:        "token",
		Dev:             true,
		RefreshInterval: -1,
		Logger:          testLogger(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	app, err := NewApp(cfg)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	t.Cleanup(app.Close)
	return app
}

func TestNewApp_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  AppConfig
	}{
		{"missing base url", AppConfig{}},
		{"bad base url", AppConfig{APIBaseURL: "karrot.world"}},
		{"bad inspector port", AppConfig{APIBaseURL: "https://karrot.world", Inspector: InspectorConfig{Enabled: true, Port: 70000}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewApp(tt.cfg); err == nil {
				t.Error("NewApp() error = nil, want error")
			}
		})
	}
}

func TestNewApp_RegistersModules(t *testing.T) {
	app := newTestApp(t, &fakePlatform{}, nil)

	want := []string{"auth", "currentGroup", "users", "invitations", "toasts", "router"}
	got := app.Store().Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if string(got[i]) != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestApp_Bootstrap(t *testing.T) {
	app := newTestApp(t, &fakePlatform{}, nil)

	if err := app.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	if u, ok := app.Auth().User(); !ok || u.DisplayName != "Ada" {
		t.Errorf("Auth().User() = %+v, %v", u, ok)
	}
	if id, _ := app.CurrentGroup().ID(); id != 5 {
		t.Errorf("CurrentGroup().ID() = %d, want 5", id)
	}
	if g, ok := app.CurrentGroup().Group(); !ok || g.Name != "Foodsavers" {
		t.Errorf("CurrentGroup().Group() = %+v, %v", g, ok)
	}
	if got := len(app.Users().List()); got != 2 {
		t.Errorf("len(Users().List()) = %d, want 2", got)
	}

	list := app.Invitations().List()
	if len(list) != 2 || list[0].ID != 11 || list[1].ID != 10 {
		t.Fatalf("Invitations().List() = %+v, want [11 10]", list)
	}
	if list[1].Inviter == nil || list[1].Inviter.DisplayName != "Bob" {
		t.Errorf("List()[1].Inviter = %+v, want Bob", list[1].Inviter)
	}
}

func TestApp_AcceptFailure(t *testing.T) {
	platform := &fakePlatform{acceptFails: true}
	app := newTestApp(t, platform, nil)

	err := app.Store().Dispatch(context.Background(), invitations.Accept{Token: "expired"})

	if !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("Dispatch(Accept) error = %v, want api.ErrNotFound", err)
	}
	if got := app.Invitations().Status(invitations.ActionAccept).Status; got != meta.StatusError {
		t.Errorf("accept status = %v, want error", got)
	}
	shown := app.Toasts().List()
	if len(shown) != 1 || shown[0].Config.Type != toasts.TypeNegative || shown[0].Message != invitations.MessageAcceptError {
		t.Errorf("toasts = %+v, want one negative accept error", shown)
	}
	cur, _ := app.Router().Current()
	if cur.Name != router.RouteGroupsGallery || cur.Path != "/groupPreview" {
		t.Errorf("Router().Current() = %+v, want groupsGallery", cur)
	}
}

func TestApp_AcceptSuccess(t *testing.T) {
	app := newTestApp(t, &fakePlatform{}, nil)

	if err := app.Invitations().Accept(context.Background(), "tok"); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	if !app.Auth().IsLoggedIn() {
		t.Error("auth not refreshed after accept")
	}
	cur, _ := app.Router().Current()
	if cur.Path != "/" {
		t.Errorf("Router().Current().Path = %q, want /", cur.Path)
	}
}

func TestApp_ChangesPublished(t *testing.T) {
	var mu sync.Mutex
	var modules []string
	server := httptest.NewServer(&fakePlatform{})
	defer server.Close()

	app, err := NewApp(AppConfig{APIBaseURL: server.URL, RefreshInterval: -1, Logger: testLogger()},
		WithChangeCallback(func(c Change) {
			mu.Lock()
			modules = append(modules, c.Module)
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	defer app.Close()

	if err := app.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, want := range []string{"auth", "currentGroup", "users", "invitations"} {
		found := false
		for _, m := range modules {
			if m == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("no change published for %s", want)
		}
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

func TestApp_StartServesInspector(t *testing.T) {
	port := freePort(t)
	app := newTestApp(t, &fakePlatform{}, func(cfg *AppConfig) {
		cfg.Inspector = InspectorConfig{Enabled: true, Port: port}
		cfg.RefreshInterval = time.Hour
	})
	_ = app.Bootstrap(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Start(ctx) }()

	url := "http://127.0.0.1:" + strconv.Itoa(port) + "/api/state/invitations"
	var resp *http.Response
	var err error
	for range 50 {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		cancel()
		t.Fatalf("GET %s: %v", url, err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start() did not return after cancellation")
	}
}

func TestApp_StartTwice(t *testing.T) {
	app := newTestApp(t, &fakePlatform{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := app.Start(ctx); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	if err := app.Start(ctx); err == nil {
		t.Error("second Start() error = nil, want error")
	}
}

func TestApp_StartReturnsImmediatelyIfContextCancelled(t *testing.T) {
	app := newTestApp(t, &fakePlatform{}, func(cfg *AppConfig) { cfg.RefreshInterval = time.Hour })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- app.Start(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start() blocked with a cancelled context")
	}
}

func TestApp_RefreshTargets(t *testing.T) {
	app := newTestApp(t, &fakePlatform{}, nil)

	targets := app.refreshTargets()

	names := map[string]time.Duration{}
	for _, tg := range targets {
		names[string(tg.Name)] = tg.Interval
	}
	for _, want := range []string{"auth", "currentGroup", "users", "invitations", "toasts"} {
		if _, ok := names[want]; !ok {
			t.Errorf("refresh targets missing %s", want)
		}
	}
	if _, ok := names["router"]; ok {
		t.Error("router should not be a refresh target")
	}
	if names["toasts"] != toastPruneInterval {
		t.Errorf("toasts interval = %v, want %v", names["toasts"], toastPruneInterval)
	}
}
