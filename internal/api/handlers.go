package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ecohearing/EcoHearing/internal/estimate"
	"github.com/ecohearing/EcoHearing/internal/flow"
	"github.com/ecohearing/EcoHearing/internal/models"
	"github.com/ecohearing/EcoHearing/internal/store"
)

// stepView is the wire representation of the step a session is on.
type stepView struct {
	ID            int              `json:"id"`
	Prompt        string           `json:"prompt"`
	Mode          models.InputMode `json:"mode"`
	Options       []string         `json:"options,omitempty"`
	Annotation    string           `json:"annotation,omitempty"`
	Supplement    string           `json:"supplement,omitempty"`
	Extra         string           `json:"extra,omitempty"`
	EmphasisColor string           `json:"emphasis_color,omitempty"`
	AcceptTypes   []string         `json:"accept_types,omitempty"`
}

func viewOf(step models.Step) stepView {
	v := stepView{ID: step.ID(), Prompt: step.Prompt(), Mode: step.Mode()}
	switch s := step.(type) {
	case models.ChoiceStep:
		v.Options = s.Options
		v.Annotation = s.Annotation
		v.EmphasisColor = s.EmphasisColor
	case models.TextStep:
		v.Supplement = s.Supplement
		v.Extra = s.Extra
	case models.FileStep:
		v.AcceptTypes = s.AcceptTypes
	}
	return v
}

// sessionBody is the wire representation of a session's observable state.
type sessionBody struct {
	SessionID   string                 `json:"session_id"`
	Phase       flow.Phase             `json:"phase"`
	CurrentStep *stepView              `json:"current_step,omitempty"`
	Log         []models.ExchangeEntry `json:"log"`
	LastHint    string                 `json:"last_hint,omitempty"`
}

// resultBody carries the normalized payload and the savings figures.
type resultBody struct {
	Payload        models.Payload `json:"payload"`
	MonthlySavings int            `json:"monthly_savings"`
	AnnualSavings  int            `json:"annual_savings"`
}

type selectRequest struct {
	StepID int    `json:"step_id"`
	Option string `json:"option"`
}

type textRequest struct {
	StepID int    `json:"step_id"`
	Text   string `json:"text"`
}

type fileRequest struct {
	StepID   int    `json:"step_id"`
	FileName string `json:"file_name"`
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	sess := &session{id: id, createdAt: time.Now()}
	sess.controller = flow.NewController(flow.Definition(),
		flow.WithPacing(s.pacing),
		flow.WithOnComplete(func(models.Payload) { s.persist(sess) }),
	)

	if err := sess.controller.Start(); err != nil {
		slog.Error("Server.createSessionHandler: start failed", "error", err, "session", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to start session"))
		return
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	s.persist(sess)

	slog.Info("Server created hearing session", "session", id)
	writeJSONResponse(w, http.StatusCreated, models.Success(map[string]string{"session_id": id}))
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(r.PathValue("id"))
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error(models.ErrSessionNotFound.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(bodyOf(sess)))
}

func (s *Server) selectHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(r.PathValue("id"))
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error(models.ErrSessionNotFound.Error()))
		return
	}
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid request body"))
		return
	}
	s.respond(w, sess, sess.controller.SelectOption(req.StepID, req.Option))
}

func (s *Server) textHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(r.PathValue("id"))
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error(models.ErrSessionNotFound.Error()))
		return
	}
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid request body"))
		return
	}
	s.respond(w, sess, sess.controller.SubmitText(req.StepID, req.Text))
}

func (s *Server) fileHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(r.PathValue("id"))
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error(models.ErrSessionNotFound.Error()))
		return
	}
	var req fileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid request body"))
		return
	}
	s.respond(w, sess, sess.controller.SubmitFile(req.StepID, models.FileHandle{Name: req.FileName}))
}

func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(r.PathValue("id"))
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error(models.ErrSessionNotFound.Error()))
		return
	}
	sess.controller.Reset()
	sess.mu.Lock()
	sess.result = nil
	sess.mu.Unlock()
	if err := s.store.DeleteSession(sess.id); err != nil {
		slog.Error("Server.resetHandler: snapshot delete failed", "error", err, "session", sess.id)
	}

	if err := sess.controller.Start(); err != nil {
		slog.Error("Server.resetHandler: restart failed", "error", err, "session", sess.id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to restart session"))
		return
	}
	s.persist(sess)
	slog.Info("Server reset hearing session", "session", sess.id)
	writeJSONResponse(w, http.StatusOK, models.Success(bodyOf(sess)))
}

func (s *Server) resultHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(r.PathValue("id"))
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error(models.ErrSessionNotFound.Error()))
		return
	}
	payload, err := sess.controller.Payload()
	if err != nil {
		writeJSONResponse(w, http.StatusConflict, models.Error(models.ErrNotCompleted.Error()))
		return
	}

	// simulated computation time; a client disconnect cancels the wait
	if s.revealDelay > 0 {
		select {
		case <-time.After(s.revealDelay):
		case <-r.Context().Done():
			slog.Debug("Server.resultHandler: client left before reveal", "session", sess.id)
			return
		}
	}

	sess.mu.Lock()
	if sess.result == nil {
		normalized := payload.Normalized()
		monthly := s.engine.Monthly(normalized.ElectricityBillTier)
		sess.result = &resultBody{
			Payload:        normalized,
			MonthlySavings: monthly,
			AnnualSavings:  estimate.Annual(monthly),
		}
	}
	result := *sess.result
	sess.mu.Unlock()

	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// respond maps a controller outcome to an HTTP response and persists the
// snapshot on success.
func (s *Server) respond(w http.ResponseWriter, sess *session, err error) {
	switch {
	case err == nil:
		s.persist(sess)
		writeJSONResponse(w, http.StatusOK, models.Success(bodyOf(sess)))
	case isValidationError(err):
		writeJSONResponse(w, http.StatusUnprocessableEntity, models.Error(validationHint(err)))
	case errors.Is(err, models.ErrNoFileSelected):
		writeJSONResponse(w, http.StatusUnprocessableEntity, models.Error(err.Error()))
	default:
		writeJSONResponse(w, http.StatusConflict, models.Error(err.Error()))
	}
}

func isValidationError(err error) bool {
	var verr *models.ValidationError
	return errors.As(err, &verr)
}

func validationHint(err error) string {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return verr.Hint
	}
	return err.Error()
}

func bodyOf(sess *session) sessionBody {
	body := sessionBody{
		SessionID: sess.id,
		Phase:     sess.controller.Phase(),
		Log:       sess.controller.Log(),
		LastHint:  sess.controller.LastHint(),
	}
	if step, ok := sess.controller.CurrentStep(); ok {
		v := viewOf(step)
		body.CurrentStep = &v
	}
	return body
}

// persist saves a snapshot of the session's observable state.
func (s *Server) persist(sess *session) {
	snapshot := store.Session{
		ID:        sess.id,
		Phase:     string(sess.controller.Phase()),
		Answers:   sess.controller.Answers(),
		Log:       sess.controller.Log(),
		CreatedAt: sess.createdAt,
		UpdatedAt: time.Now(),
	}
	if step, ok := sess.controller.CurrentStep(); ok {
		snapshot.CurrentStepID = step.ID()
	}
	if payload, err := sess.controller.Payload(); err == nil {
		snapshot.Payload = &payload
	}
	if err := s.store.SaveSession(snapshot); err != nil {
		slog.Error("Server.persist: snapshot save failed", "error", err, "session", sess.id)
	}
}
