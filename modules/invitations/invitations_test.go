package invitations

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/jpalmerr/groupstate/meta"
	"github.com/jpalmerr/groupstate/module"
	"github.com/jpalmerr/groupstate/modules/router"
	"github.com/jpalmerr/groupstate/modules/toasts"
	"github.com/jpalmerr/groupstate/modules/users"
)

var errNetwork = errors.New("NetworkError")

// fakeAPI implements API with canned responses.
type fakeAPI struct {
	mu        sync.Mutex
	list      map[int64][]Invitation
	listErr   error
	created   Invitation
	createErr error
	acceptErr error

	createdWith []CreateInput
	accepted    []string
	// block, when set, is waited on inside ListByGroupID
	block map[int64]chan struct{}
	// started receives the group id of each blocked request before it waits
	started chan int64
}

func (f *fakeAPI) ListByGroupID(ctx context.Context, groupID int64) ([]Invitation, error) {
	f.mu.Lock()
	ch := f.block[groupID]
	f.mu.Unlock()
	if ch != nil {
		if f.started != nil {
			f.started <- groupID
		}
		<-ch
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	return slices.Clone(f.list[groupID]), nil
}

func (f *fakeAPI) Create(ctx context.Context, in CreateInput) (Invitation, error) {
	f.mu.Lock()
	f.createdWith = append(f.createdWith, in)
	f.mu.Unlock()
	if f.createErr != nil {
		return Invitation{}, f.createErr
	}
	inv := f.created
	inv.Email = in.Email
	inv.Group = in.Group
	return inv, nil
}

func (f *fakeAPI) Accept(ctx context.Context, token string) error {
	f.accepted = append(f.accepted, token)
	return f.acceptErr
}

type fakeGroup struct{ id int64 }

func (g fakeGroup) ID() (int64, bool) { return g.id, g.id != 0 }

type fakeUsers map[int64]users.User

func (u fakeUsers) Get(id int64) (users.User, bool) {
	user, ok := u[id]
	return user, ok
}

type fakeAuth struct {
	calls int
	err   error
}

func (a *fakeAuth) Refresh(context.Context) error {
	a.calls++
	return a.err
}

type fakeToasts struct{ shown []toasts.Toast }

func (f *fakeToasts) Show(t toasts.Toast) { f.shown = append(f.shown, t) }

type fakeRouter struct{ pushed []router.Route }

func (f *fakeRouter) Push(r router.Route) { f.pushed = append(f.pushed, r) }

type fixture struct {
	api    *fakeAPI
	auth   *fakeAuth
	toasts *fakeToasts
	router *fakeRouter
	m      *Module
}

func newFixture(t *testing.T, currentGroup int64) *fixture {
	t.Helper()
	f := &fixture{
		api:    &fakeAPI{list: map[int64][]Invitation{}},
		auth:   &fakeAuth{},
		toasts: &fakeToasts{},
		router: &fakeRouter{},
	}
	m, err := New(Deps{
		API:          f.api,
		CurrentGroup: fakeGroup{id: currentGroup},
		Users: fakeUsers{
			7: {ID: 7, DisplayName: "Ada"},
		},
		Auth:   f.auth,
		Toasts: f.toasts,
		Router: f.router,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.m = m
	return f
}

func at(sec int64) time.Time { return time.Unix(sec, 0) }

func viewIDs(views []View) []int64 {
	ids := make([]int64, len(views))
	for i, v := range views {
		ids[i] = v.ID
	}
	return ids
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New(Deps{}) error = nil, want error")
	}
}

func TestFetch_ListsNewestFirst(t *testing.T) {
	f := newFixture(t, 1)
	f.api.list[1] = []Invitation{
		{ID: 1, CreatedAt: at(10)},
		{ID: 2, CreatedAt: at(20)},
	}

	if err := f.m.Fetch(context.Background(), 1); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if got, want := viewIDs(f.m.List()), []int64{2, 1}; !slices.Equal(got, want) {
		t.Errorf("List() ids = %v, want %v", got, want)
	}
	// underlying order is fetch order
	if got, want := f.m.IDs(), []int64{1, 2}; !slices.Equal(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}
	if got := f.m.Status(ActionFetch).Status; got != meta.StatusSuccess {
		t.Errorf("Status(fetch) = %v, want success", got)
	}
}

func TestList_TiesKeepFetchOrder(t *testing.T) {
	f := newFixture(t, 1)
	f.api.list[1] = []Invitation{
		{ID: 3, CreatedAt: at(10)},
		{ID: 1, CreatedAt: at(10)},
		{ID: 2, CreatedAt: at(10)},
	}
	_ = f.m.Fetch(context.Background(), 1)

	if got, want := viewIDs(f.m.List()), []int64{3, 1, 2}; !slices.Equal(got, want) {
		t.Errorf("List() ids = %v, want %v", got, want)
	}
}

func TestFetch_ErrorIsTrackedAndReturned(t *testing.T) {
	f := newFixture(t, 1)
	f.api.listErr = errNetwork

	err := f.m.Fetch(context.Background(), 1)

	if !errors.Is(err, errNetwork) {
		t.Fatalf("Fetch() error = %v, want %v", err, errNetwork)
	}
	st := f.m.Status(ActionFetch)
	if st.Status != meta.StatusError || !errors.Is(st.Err, errNetwork) {
		t.Errorf("Status(fetch) = %+v, want error wrapping %v", st, errNetwork)
	}
}

// TestFetch_OverlappingLastResponseWins characterises the absence of request
// de-duplication: a slow response for an older request overwrites newer data.
func TestFetch_OverlappingLastResponseWins(t *testing.T) {
	f := newFixture(t, 1)
	f.api.list[1] = []Invitation{{ID: 1}}
	f.api.list[2] = []Invitation{{ID: 2}}
	release := make(chan struct{})
	f.api.block = map[int64]chan struct{}{1: release}
	f.api.started = make(chan int64, 1)

	done := make(chan error, 1)
	go func() { done <- f.m.Fetch(context.Background(), 1) }()
	<-f.api.started

	if got := f.m.Status(ActionFetch).Status; got != meta.StatusPending {
		t.Fatalf("Status(fetch) while Fetch(1) in flight = %v, want pending", got)
	}

	if err := f.m.Fetch(context.Background(), 2); err != nil {
		t.Fatalf("Fetch(2) error = %v", err)
	}
	if got := f.m.IDs(); !slices.Equal(got, []int64{2}) {
		t.Fatalf("IDs() after Fetch(2) = %v, want [2]", got)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Fetch(1) error = %v", err)
	}

	if got := f.m.IDs(); !slices.Equal(got, []int64{1}) {
		t.Errorf("IDs() after late Fetch(1) = %v, want [1]", got)
	}
}

func TestSend_AppendsForCurrentGroup(t *testing.T) {
	f := newFixture(t, 5)
	f.api.created = Invitation{ID: 9, InvitedBy: 7, CreatedAt: at(30)}

	if err := f.m.Send(context.Background(), "new@example.com"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if len(f.api.createdWith) != 1 {
		t.Fatalf("Create called %d times, want 1", len(f.api.createdWith))
	}
	if in := f.api.createdWith[0]; in.Email != "new@example.com" || in.Group != 5 {
		t.Errorf("Create input = %+v, want email new@example.com group 5", in)
	}
	v, ok := f.m.Get(9)
	if !ok {
		t.Fatal("Get(9) not found after Send()")
	}
	if v.Email != "new@example.com" {
		t.Errorf("Get(9).Email = %q, want %q", v.Email, "new@example.com")
	}
	if got := f.m.Status(ActionSend).Status; got != meta.StatusSuccess {
		t.Errorf("Status(send) = %v, want success", got)
	}
}

func TestSend_NoCurrentGroup(t *testing.T) {
	f := newFixture(t, 0)

	err := f.m.Send(context.Background(), "x@example.com")

	if !errors.Is(err, ErrNoCurrentGroup) {
		t.Errorf("Send() error = %v, want ErrNoCurrentGroup", err)
	}
	if len(f.api.createdWith) != 0 {
		t.Error("Send() called the API without a current group")
	}
	if got := f.m.Status(ActionSend).Status; got != meta.StatusError {
		t.Errorf("Status(send) = %v, want error", got)
	}
}

func TestAccept_Success(t *testing.T) {
	f := newFixture(t, 1)

	if err := f.m.Accept(context.Background(), "tok"); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	if !slices.Equal(f.api.accepted, []string{"tok"}) {
		t.Errorf("accepted tokens = %v, want [tok]", f.api.accepted)
	}
	if f.auth.calls != 1 {
		t.Errorf("auth refresh calls = %d, want 1", f.auth.calls)
	}
	if len(f.toasts.shown) != 1 || f.toasts.shown[0].Message != MessageAcceptSuccess {
		t.Errorf("toasts = %+v, want one %s", f.toasts.shown, MessageAcceptSuccess)
	}
	if len(f.router.pushed) != 1 || f.router.pushed[0].Path != "/" {
		t.Errorf("navigation = %+v, want push to /", f.router.pushed)
	}
	if got := f.m.Status(ActionAccept).Status; got != meta.StatusSuccess {
		t.Errorf("Status(accept) = %v, want success", got)
	}
}

func TestAccept_NetworkError(t *testing.T) {
	f := newFixture(t, 1)
	f.api.acceptErr = errNetwork

	err := f.m.Accept(context.Background(), "tok")

	if !errors.Is(err, errNetwork) {
		t.Fatalf("Accept() error = %v, want %v re-raised", err, errNetwork)
	}
	st := f.m.Status(ActionAccept)
	if st.Status != meta.StatusError || !errors.Is(st.Err, errNetwork) {
		t.Errorf("Status(accept) = %+v, want error", st)
	}
	if len(f.toasts.shown) != 1 {
		t.Fatalf("toasts shown = %d, want 1", len(f.toasts.shown))
	}
	if got := f.toasts.shown[0]; got.Message != MessageAcceptError || got.Config.Type != toasts.TypeNegative {
		t.Errorf("toast = %+v, want negative %s", got, MessageAcceptError)
	}
	if len(f.router.pushed) != 1 || f.router.pushed[0].Name != router.RouteGroupsGallery {
		t.Errorf("navigation = %+v, want groupsGallery", f.router.pushed)
	}
	if f.auth.calls != 0 {
		t.Errorf("auth refresh calls = %d, want 0", f.auth.calls)
	}
}

func TestAccept_RefreshFailureIsAcceptFailure(t *testing.T) {
	f := newFixture(t, 1)
	refreshErr := errors.New("status unavailable")
	f.auth.err = refreshErr

	err := f.m.Accept(context.Background(), "tok")

	if !errors.Is(err, refreshErr) {
		t.Fatalf("Accept() error = %v, want %v", err, refreshErr)
	}
	if len(f.toasts.shown) != 1 || f.toasts.shown[0].Config.Type != toasts.TypeNegative {
		t.Errorf("toasts = %+v, want one negative toast", f.toasts.shown)
	}
	if len(f.router.pushed) != 1 || f.router.pushed[0].Name != router.RouteGroupsGallery {
		t.Errorf("navigation = %+v, want groupsGallery", f.router.pushed)
	}
}

func TestAdd_IsIdempotent(t *testing.T) {
	f := newFixture(t, 1)
	f.m.Add(Invitation{ID: 1, Email: "a@example.com"})

	var mutations int
	f.m.OnMutation(func(module.Mutation) { mutations++ })

	f.m.Add(Invitation{ID: 1, Email: "changed@example.com"})

	if got := len(f.m.IDs()); got != 1 {
		t.Errorf("len(IDs()) = %d, want 1", got)
	}
	v, _ := f.m.Get(1)
	if v.Email != "a@example.com" {
		t.Errorf("Get(1).Email = %q, want original", v.Email)
	}
	if mutations != 0 {
		t.Errorf("mutations = %d, want 0 for a duplicate Add", mutations)
	}
}

func TestDelete_LocalOnly(t *testing.T) {
	f := newFixture(t, 1)
	f.m.Add(Invitation{ID: 1})
	f.m.Add(Invitation{ID: 2})

	f.m.Delete(1)
	f.m.Delete(1)

	if got := f.m.IDs(); !slices.Equal(got, []int64{2}) {
		t.Errorf("IDs() = %v, want [2]", got)
	}
	if err := f.m.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestClear_ResetsEverything(t *testing.T) {
	f := newFixture(t, 1)
	f.api.list[1] = []Invitation{{ID: 1}}
	_ = f.m.Fetch(context.Background(), 1)
	f.api.acceptErr = errNetwork
	_ = f.m.Accept(context.Background(), "tok")

	f.m.Clear()

	if got := f.m.IDs(); len(got) != 0 {
		t.Errorf("IDs() = %v, want empty", got)
	}
	if got := f.m.List(); len(got) != 0 {
		t.Errorf("List() = %v, want empty", got)
	}
	for _, a := range []Action{ActionFetch, ActionSend, ActionAccept} {
		st := f.m.Status(a)
		if st.Status != meta.StatusIdle || st.Err != nil {
			t.Errorf("Status(%s) = %+v, want idle", a, st)
		}
	}
}

func TestRefresh(t *testing.T) {
	t.Run("with current group", func(t *testing.T) {
		f := newFixture(t, 3)
		f.api.list[3] = []Invitation{{ID: 4}}

		if err := f.m.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
		if got := f.m.IDs(); !slices.Equal(got, []int64{4}) {
			t.Errorf("IDs() = %v, want [4]", got)
		}
	})

	t.Run("without current group", func(t *testing.T) {
		f := newFixture(t, 0)

		if err := f.m.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
		if got := f.m.Status(ActionFetch).Status; got != meta.StatusIdle {
			t.Errorf("Status(fetch) = %v, want idle", got)
		}
	})
}

func TestGet_EnrichesInviterAtReadTime(t *testing.T) {
	f := newFixture(t, 1)
	f.m.Add(Invitation{ID: 1, InvitedBy: 7})
	f.m.Add(Invitation{ID: 2, InvitedBy: 99})

	v, ok := f.m.Get(1)
	if !ok {
		t.Fatal("Get(1) not found")
	}
	if v.Inviter == nil || v.Inviter.DisplayName != "Ada" {
		t.Errorf("Get(1).Inviter = %+v, want Ada", v.Inviter)
	}

	unknown, _ := f.m.Get(2)
	if unknown.Inviter != nil {
		t.Errorf("Get(2).Inviter = %+v, want nil for unknown user", unknown.Inviter)
	}

	if _, ok := f.m.Get(42); ok {
		t.Error("Get(42) ok = true, want false")
	}
}

func TestHandle_DispatchesCommands(t *testing.T) {
	f := newFixture(t, 1)
	f.api.list[1] = []Invitation{{ID: 1}, {ID: 2}}
	ctx := context.Background()

	steps := []struct {
		cmd  module.Command
		want []int64
	}{
		{Fetch{GroupID: 1}, []int64{1, 2}},
		{Add{Invitation: Invitation{ID: 3}}, []int64{1, 2, 3}},
		{Delete{ID: 1}, []int64{2, 3}},
		{Clear{}, []int64{}},
		{Refresh{}, []int64{1, 2}},
	}
	for _, step := range steps {
		if err := f.m.Handle(ctx, step.cmd); err != nil {
			t.Fatalf("Handle(%T) error = %v", step.cmd, err)
		}
		if got := f.m.IDs(); !slices.Equal(got, step.want) {
			t.Errorf("after %T IDs() = %v, want %v", step.cmd, got, step.want)
		}
	}
}

type foreignCommand struct{}

func (foreignCommand) Target() module.Name { return "elsewhere" }

func TestHandle_UnknownCommand(t *testing.T) {
	f := newFixture(t, 1)
	err := f.m.Handle(context.Background(), foreignCommand{})
	if !errors.Is(err, module.ErrUnknownCommand) {
		t.Errorf("Handle() error = %v, want ErrUnknownCommand", err)
	}
}

func TestMutationsArePublished(t *testing.T) {
	f := newFixture(t, 1)
	f.api.list[1] = []Invitation{{ID: 1}}

	var types []string
	f.m.OnMutation(func(m module.Mutation) { types = append(types, m.Type) })

	_ = f.m.Fetch(context.Background(), 1)
	f.m.Add(Invitation{ID: 2})
	f.m.Delete(2)
	f.m.Clear()

	if want := []string{"set", "append", "delete", "clear"}; !slices.Equal(types, want) {
		t.Errorf("mutations = %v, want %v", types, want)
	}
}

func TestSnapshot_IDsMatchEntriesUnderConcurrentMutation(t *testing.T) {
	f := newFixture(t, 1)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	t.Cleanup(func() {
		close(stop)
		wg.Wait()
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for id := int64(1); ; id++ {
			select {
			case <-stop:
				return
			default:
			}
			f.m.Add(Invitation{ID: id, InvitedBy: 7, CreatedAt: at(id)})
			if id%3 == 0 {
				f.m.Delete(id - 1)
			}
		}
	}()

	for range 200 {
		data, err := json.Marshal(f.m.Snapshot())
		if err != nil {
			t.Fatalf("Marshal(Snapshot()) error = %v", err)
		}
		var snap struct {
			IDList  []int64 `json:"id_list"`
			Entries []struct {
				ID int64 `json:"id"`
			} `json:"entries"`
		}
		if err := json.Unmarshal(data, &snap); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}

		entryIDs := make([]int64, len(snap.Entries))
		for i, e := range snap.Entries {
			entryIDs[i] = e.ID
		}
		ids := slices.Clone(snap.IDList)
		slices.Sort(ids)
		slices.Sort(entryIDs)
		if !slices.Equal(ids, entryIDs) {
			t.Fatalf("id_list %v and entries %v disagree", snap.IDList, entryIDs)
		}
	}
}
