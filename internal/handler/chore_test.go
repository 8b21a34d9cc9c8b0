package handler

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/dukerupert/dutyroster/internal/model"
)

type assignResponse struct {
	Assigned     []model.Task `json:"assigned"`
	Requested    int          `json:"requested"`
	Insufficient bool         `json:"insufficient"`
	Reset        bool         `json:"reset"`
	Reason       string       `json:"reason"`
}

func assignRequestFor(kind, body string) *http.Request {
	req := jsonRequest("POST", "/api/chores/"+kind+"/assign", body)
	req.SetPathValue("kind", kind)
	return req
}

func taskRequest(action string, id int64) *http.Request {
	idStr := strconv.FormatInt(id, 10)
	req := jsonRequest("POST", "/api/tasks/"+idStr+"/"+action, "")
	req.SetPathValue("id", idStr)
	return req
}

func TestAssignApproveComplete(t *testing.T) {
	env := newTestEnv(t)
	h := NewChoreHandler(env.chores, env.settings, 5*time.Minute, discard)
	admin := env.createMember(t, "Boss", "boss@example.com", model.RoleAdmin)
	env.members.SetPresence(1, admin.ID, false)
	ali := env.createMember(t, "Ali", "ali@example.com", "")
	bo := env.createMember(t, "Bo", "bo@example.com", "")
	env.places.Create(1, model.KindCleaning, "Kitchen")

	rr := httptest.NewRecorder()
	h.Assign(rr, as(assignRequestFor("cleaning", `{"count":1}`), admin))
	if rr.Code != http.StatusOK {
		t.Fatalf("assign status = %d, body %s", rr.Code, rr.Body)
	}
	res := decode[assignResponse](t, rr)
	if len(res.Assigned) != 1 || res.Requested != 1 {
		t.Fatalf("assigned = %+v", res)
	}
	task := res.Assigned[0]
	if task.Status != model.TaskPending || task.Place != "Kitchen" {
		t.Errorf("task = %+v", task)
	}

	other := ali
	if task.MemberID == ali.ID {
		other = bo
	}
	assignee, _ := env.members.GetByID(task.MemberID)

	rr = httptest.NewRecorder()
	h.Complete(rr, as(taskRequest("complete", task.ID), assignee))
	if rr.Code != http.StatusConflict {
		t.Errorf("complete pending status = %d, want 409", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Approve(rr, as(taskRequest("approve", task.ID), admin))
	if rr.Code != http.StatusOK {
		t.Fatalf("approve status = %d, body %s", rr.Code, rr.Body)
	}

	rr = httptest.NewRecorder()
	h.Approve(rr, as(taskRequest("approve", task.ID), admin))
	if rr.Code != http.StatusConflict {
		t.Errorf("second approve status = %d, want 409", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Complete(rr, as(taskRequest("complete", task.ID), other))
	if rr.Code != http.StatusForbidden {
		t.Errorf("complete by other member status = %d, want 403", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Complete(rr, as(taskRequest("complete", task.ID), assignee))
	if rr.Code != http.StatusOK {
		t.Fatalf("complete status = %d, body %s", rr.Code, rr.Body)
	}
	done := decode[model.Task](t, rr)
	if done.Status != model.TaskCompleted {
		t.Errorf("status = %q, want completed", done.Status)
	}
}

func TestAssignDefaultsAndNoEligible(t *testing.T) {
	env := newTestEnv(t)
	h := NewChoreHandler(env.chores, env.settings, 5*time.Minute, discard)
	admin := env.createMember(t, "Boss", "boss@example.com", model.RoleAdmin)
	env.members.SetPresence(1, admin.ID, false)

	rr := httptest.NewRecorder()
	h.Assign(rr, as(assignRequestFor("meal", ""), admin))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	res := decode[assignResponse](t, rr)
	if res.Reason != "no_eligible_members" || len(res.Assigned) != 0 {
		t.Errorf("response = %+v", res)
	}

	env.createMember(t, "Ali", "ali@example.com", "")
	rr = httptest.NewRecorder()
	h.Assign(rr, as(assignRequestFor("meal", ""), admin))
	res = decode[assignResponse](t, rr)
	if res.Requested != 2 {
		t.Errorf("requested = %d, want company default 2", res.Requested)
	}
	if len(res.Assigned) != 1 || !res.Insufficient {
		t.Errorf("response = %+v, want one pick flagged insufficient", res)
	}
}

func TestAssignRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	h := NewChoreHandler(env.chores, env.settings, 5*time.Minute, discard)
	admin := env.createMember(t, "Boss", "boss@example.com", model.RoleAdmin)

	rr := httptest.NewRecorder()
	h.Assign(rr, as(assignRequestFor("laundry", ""), admin))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown kind status = %d, want 400", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Assign(rr, as(assignRequestFor("cleaning", `{"count":0}`), admin))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("zero count status = %d, want 400", rr.Code)
	}
}

func TestApproveOtherCompanyTask(t *testing.T) {
	env := newTestEnv(t)
	h := NewChoreHandler(env.chores, env.settings, 5*time.Minute, discard)
	admin := env.createMember(t, "Boss", "boss@example.com", model.RoleAdmin)
	env.members.SetPresence(1, admin.ID, false)
	env.createMember(t, "Ali", "ali@example.com", "")

	rr := httptest.NewRecorder()
	h.Assign(rr, as(assignRequestFor("cleaning", `{"count":1}`), admin))
	task := decode[assignResponse](t, rr).Assigned[0]

	outsider := *admin
	outsider.CompanyID = 2
	rr = httptest.NewRecorder()
	h.Approve(rr, as(taskRequest("approve", task.ID), &outsider))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestBoardListsRound(t *testing.T) {
	env := newTestEnv(t)
	h := NewChoreHandler(env.chores, env.settings, 5*time.Minute, discard)
	admin := env.createMember(t, "Boss", "boss@example.com", model.RoleAdmin)
	env.members.SetPresence(1, admin.ID, false)
	env.createMember(t, "Ali", "ali@example.com", "")
	env.createMember(t, "Bo", "bo@example.com", "")

	rr := httptest.NewRecorder()
	h.Assign(rr, as(assignRequestFor("cleaning", `{"count":2}`), admin))
	if rr.Code != http.StatusOK {
		t.Fatalf("assign status = %d", rr.Code)
	}

	req := jsonRequest("GET", "/api/chores/cleaning/board", "")
	req.SetPathValue("kind", "cleaning")
	rr = httptest.NewRecorder()
	h.Board(rr, as(req, admin))
	if rr.Code != http.StatusOK {
		t.Fatalf("board status = %d", rr.Code)
	}
	tasks := decode[[]model.Task](t, rr)
	if len(tasks) != 2 {
		t.Errorf("board len = %d, want 2", len(tasks))
	}
}
