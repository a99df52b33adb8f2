package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ecohearing/EcoHearing/internal/estimate"
	"github.com/ecohearing/EcoHearing/internal/flow"
	"github.com/ecohearing/EcoHearing/internal/models"
	"github.com/ecohearing/EcoHearing/internal/store"
)

type envelope struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func newTestServer() (*Server, *store.InMemoryStore) {
	st := store.NewInMemoryStore()
	s := NewServer(st, estimate.New(), WithPacing(time.Millisecond), WithRevealDelay(0))
	return s, st
}

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response failed: %v (body %q)", err, rec.Body.String())
	}
	return rec, env
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec, env := do(t, h, http.MethodPost, "/sessions", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status %d, body %s", rec.Code, rec.Body.String())
	}
	var result struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(env.Result, &result); err != nil || result.SessionID == "" {
		t.Fatalf("create session: bad result %s", env.Result)
	}
	return result.SessionID
}

func getSession(t *testing.T, h http.Handler, id string) sessionBody {
	t.Helper()
	rec, env := do(t, h, http.MethodGet, "/sessions/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get session: status %d, body %s", rec.Code, rec.Body.String())
	}
	var body sessionBody
	if err := json.Unmarshal(env.Result, &body); err != nil {
		t.Fatalf("get session: bad result %s", env.Result)
	}
	return body
}

// waitForStep polls until the paced presentation of the wanted step lands.
func waitForStep(t *testing.T, h http.Handler, id string, stepID int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		body := getSession(t, h, id)
		if body.Phase == flow.PhaseAwaitingResponse && body.CurrentStep != nil && body.CurrentStep.ID == stepID {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("step %d never presented; phase %s, step %+v", stepID, body.Phase, body.CurrentStep)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestUnknownSessionReturns404(t *testing.T) {
	s, _ := newTestServer()
	h := s.Handler()
	rec, _ := do(t, h, http.MethodGet, "/sessions/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	rec, _ = do(t, h, http.MethodPost, "/sessions/nope/text", textRequest{StepID: 1, Text: "x"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestResultBeforeCompletionConflicts(t *testing.T) {
	s, _ := newTestServer()
	h := s.Handler()
	id := createSession(t, h)
	waitForStep(t, h, id, flow.StepBillTier)
	rec, _ := do(t, h, http.MethodGet, "/sessions/"+id+"/result", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 before completion, got %d", rec.Code)
	}
}

func TestValidationFailureReturns422(t *testing.T) {
	s, _ := newTestServer()
	h := s.Handler()
	id := createSession(t, h)
	waitForStep(t, h, id, flow.StepBillTier)
	do(t, h, http.MethodPost, "/sessions/"+id+"/select", selectRequest{StepID: flow.StepBillTier, Option: "20,000円以上"})
	waitForStep(t, h, id, flow.StepHousingType)
	do(t, h, http.MethodPost, "/sessions/"+id+"/select", selectRequest{StepID: flow.StepHousingType, Option: "平屋"})
	waitForStep(t, h, id, flow.StepPostalCode)

	before := len(getSession(t, h, id).Log)
	rec, env := do(t, h, http.MethodPost, "/sessions/"+id+"/text", textRequest{StepID: flow.StepPostalCode, Text: "12-34567"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if env.Error != flow.PostalCodeHint {
		t.Errorf("expected postal hint, got %q", env.Error)
	}
	body := getSession(t, h, id)
	if len(body.Log) != before {
		t.Error("rejected input appended to log")
	}
	if body.LastHint != flow.PostalCodeHint {
		t.Errorf("hint not surfaced: %q", body.LastHint)
	}
}

func TestHearingEndToEnd(t *testing.T) {
	s, st := newTestServer()
	h := s.Handler()
	id := createSession(t, h)

	type submit struct {
		path string
		body any
		next int
	}
	script := []submit{
		{"/select", selectRequest{flow.StepBillTier, "20,000円以上"}, flow.StepHousingType},
		{"/select", selectRequest{flow.StepHousingType, "平屋"}, flow.StepPostalCode},
		{"/text", textRequest{flow.StepPostalCode, "100-0001"}, flow.StepAddress},
		{"/text", textRequest{flow.StepAddress, "1-1"}, flow.StepBillUpload},
		{"/file", fileRequest{flow.StepBillUpload, "meisai.pdf"}, flow.StepInstallation},
		{"/select", selectRequest{flow.StepInstallation, "どちらも導入していない"}, flow.StepName},
		{"/text", textRequest{flow.StepName, "山田太郎"}, flow.StepPhone},
		{"/text", textRequest{flow.StepPhone, "09012345678"}, flow.StepSubmit},
	}
	waitForStep(t, h, id, flow.StepBillTier)
	for _, step := range script {
		rec, _ := do(t, h, http.MethodPost, "/sessions/"+id+step.path, step.body)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s failed: status %d, body %s", step.path, rec.Code, rec.Body.String())
		}
		waitForStep(t, h, id, step.next)
	}
	rec, _ := do(t, h, http.MethodPost, "/sessions/"+id+"/select", selectRequest{flow.StepSubmit, "診断結果を見る"})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit failed: status %d", rec.Code)
	}
	if body := getSession(t, h, id); body.Phase != flow.PhaseCompleted {
		t.Fatalf("expected COMPLETED, got %s", body.Phase)
	}

	rec, env := do(t, h, http.MethodGet, "/sessions/"+id+"/result", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("result failed: status %d, body %s", rec.Code, rec.Body.String())
	}
	var result resultBody
	if err := json.Unmarshal(env.Result, &result); err != nil {
		t.Fatalf("bad result body: %s", env.Result)
	}
	wantPayload := models.Payload{
		PostalCode:          "100-0001",
		Address:             "東京都千代田区1-1",
		ElectricityBillTier: "20,000円以上",
		HousingType:         "平屋",
		Name:                "山田太郎",
		Phone:               "09012345678",
	}
	if result.Payload != wantPayload {
		t.Errorf("payload mismatch:\n got %+v\nwant %+v", result.Payload, wantPayload)
	}
	if result.MonthlySavings < 10000 || result.MonthlySavings > 19999 {
		t.Errorf("monthly savings out of tier bounds: %d", result.MonthlySavings)
	}
	if result.AnnualSavings != result.MonthlySavings*12 {
		t.Errorf("annual %d is not 12x monthly %d", result.AnnualSavings, result.MonthlySavings)
	}

	// the result is computed once and held stable across re-reads
	_, env2 := do(t, h, http.MethodGet, "/sessions/"+id+"/result", nil)
	var again resultBody
	if err := json.Unmarshal(env2.Result, &again); err != nil {
		t.Fatalf("bad result body: %s", env2.Result)
	}
	if again.MonthlySavings != result.MonthlySavings {
		t.Errorf("result changed across reads: %d then %d", result.MonthlySavings, again.MonthlySavings)
	}

	// the snapshot store saw the completed session
	snapshot, err := st.GetSession(id)
	if err != nil || snapshot == nil {
		t.Fatalf("snapshot missing: %v", err)
	}
	if snapshot.Phase != string(flow.PhaseCompleted) || snapshot.Payload == nil {
		t.Errorf("snapshot not completed: %+v", snapshot)
	}
}

func TestResetRestartsHearing(t *testing.T) {
	s, st := newTestServer()
	h := s.Handler()
	id := createSession(t, h)
	waitForStep(t, h, id, flow.StepBillTier)
	do(t, h, http.MethodPost, "/sessions/"+id+"/select", selectRequest{flow.StepBillTier, "20,000円以上"})
	waitForStep(t, h, id, flow.StepHousingType)

	rec, _ := do(t, h, http.MethodPost, "/sessions/"+id+"/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset failed: status %d", rec.Code)
	}

	// back on the first step with a fresh log
	waitForStep(t, h, id, flow.StepBillTier)
	body := getSession(t, h, id)
	if len(body.Log) != 1 {
		t.Errorf("expected fresh log after reset, got %d entries", len(body.Log))
	}

	snapshot, err := st.GetSession(id)
	if err != nil {
		t.Fatalf("snapshot read failed: %v", err)
	}
	if snapshot != nil && len(snapshot.Answers) != 0 {
		t.Errorf("answers survived reset in snapshot: %+v", snapshot.Answers)
	}
}
