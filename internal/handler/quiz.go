package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pavelanni/mcqgen/internal/export"
	"github.com/pavelanni/mcqgen/internal/feedback"
	appI18n "github.com/pavelanni/mcqgen/internal/i18n"
	"github.com/pavelanni/mcqgen/internal/model"
	"github.com/pavelanni/mcqgen/internal/scoring"
	"github.com/pavelanni/mcqgen/internal/store"
)

type startQuizRequest struct {
	FileID string `json:"file_id"`
	Name   string `json:"name"`
}

type answerRequest struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

type submitResponse struct {
	SessionID int64                     `json:"session_id"`
	Report    model.ScoreReport         `json:"report"`
	Feedback  string                    `json:"feedback"`
	Responses []model.EvaluatedResponse `json:"responses"`
}

type sessionResponse struct {
	Session   model.QuizSession      `json:"session"`
	Questions []model.QuestionExport `json:"questions"`
	Result    *submitResponse        `json:"result,omitempty"`
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.ListSessions()
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []model.QuizSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *Handler) handleStartQuiz(w http.ResponseWriter, r *http.Request) {
	var req startQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FileID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if _, err := h.store.GetFile(req.FileID); err != nil {
		writeStoreError(w, r, err)
		return
	}

	id, err := h.store.CreateSession(req.FileID, strings.TrimSpace(req.Name))
	if errors.Is(err, store.ErrNoQuestions) {
		writeError(w, r, http.StatusBadRequest, "ErrNoQuestions")
		return
	}
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	sess, err := h.store.GetSession(id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	slog.Info("quiz started", "session_id", id, "file_id", req.FileID, "questions", sess.TotalQuestions)
	writeJSON(w, http.StatusCreated, sess)
}

// handleGetSession returns the session with its questions. Answers are
// revealed only once the session is completed.
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(r)
	if !ok {
		http.Error(w, "invalid session ID", http.StatusBadRequest)
		return
	}
	sess, err := h.store.GetSession(sessionID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	items, err := h.store.ListAnsweredQuestions(sessionID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	resp := sessionResponse{Session: sess}
	typ := model.ExportQuestionsOnly
	var res *export.Results
	if sess.Status == model.StatusCompleted {
		result := h.score(r, sessionID, items, false)
		resp.Result = &result
		typ = model.ExportResults
		res = result.results()
	}
	resp.Questions = export.Build(sess, "", typ, items, res).Questions
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(r)
	if !ok {
		http.Error(w, "invalid session ID", http.StatusBadRequest)
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuestionID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	answer := model.Letter(strings.ToUpper(strings.TrimSpace(req.Answer)))
	if !answer.Valid() {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidAnswer")
		return
	}

	sess, err := h.store.GetSession(sessionID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if sess.Status != model.StatusInProgress {
		writeError(w, r, http.StatusConflict, "ErrSessionCompleted")
		return
	}

	q, err := h.store.GetQuestion(req.QuestionID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	pinned, err := h.store.SessionHasQuestion(sessionID, q.ID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if !pinned {
		writeError(w, r, http.StatusNotFound, "ErrNotFound")
		return
	}

	ev := scoring.Evaluate(answer, q.CorrectAnswer, q)
	if _, err := h.store.RecordResponse(model.QuizResponse{
		SessionID:  sessionID,
		QuestionID: q.ID,
		UserAnswer: answer,
		IsCorrect:  ev.IsCorrect,
	}); err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// handleSubmit completes the session and scores every question of it,
// treating unanswered ones as incorrect. Observers see each session once.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(r)
	if !ok {
		http.Error(w, "invalid session ID", http.StatusBadRequest)
		return
	}
	sess, err := h.store.GetSession(sessionID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if sess.Status != model.StatusInProgress {
		writeError(w, r, http.StatusConflict, "ErrSessionCompleted")
		return
	}

	if err := h.store.CompleteSession(sessionID); err != nil {
		if errors.Is(err, store.ErrSessionClosed) {
			writeError(w, r, http.StatusConflict, "ErrSessionCompleted")
			return
		}
		writeStoreError(w, r, err)
		return
	}
	items, err := h.store.ListAnsweredQuestions(sessionID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	result := h.score(r, sessionID, items, true)
	slog.Info("quiz submitted", "session_id", sessionID, "grade", result.Report.Grade, "pct", result.Report.Percentage)
	writeJSON(w, http.StatusOK, result)
}

// score evaluates items and composes feedback in the request's language.
// Only a submission notifies the aggregator's observers; re-scoring a
// completed session for display or export does not.
func (h *Handler) score(r *http.Request, sessionID int64, items []model.AnsweredQuestion, submission bool) submitResponse {
	evs := make([]model.EvaluatedResponse, 0, len(items))
	for _, it := range items {
		evs = append(evs, scoring.Evaluate(it.UserAnswer, it.Question.CorrectAnswer, it.Question))
	}
	var report model.ScoreReport
	if submission {
		report = h.aggregator.Aggregate(evs)
	} else {
		report = scoring.Aggregate(evs)
	}
	composer := feedback.NewComposerWithLocalizer(appI18n.LocalizerFromCtx(r.Context()))
	return submitResponse{
		SessionID: sessionID,
		Report:    report,
		Feedback:  composer.Compose(report),
		Responses: evs,
	}
}

func (s submitResponse) results() *export.Results {
	return &export.Results{Responses: s.Responses, Report: s.Report, Feedback: s.Feedback}
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(r)
	if !ok {
		http.Error(w, "invalid session ID", http.StatusBadRequest)
		return
	}
	typ, err := export.ParseType(r.URL.Query().Get("type"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, export.ErrUnsupportedFormat) {
			status = http.StatusNotImplemented
		}
		http.Error(w, err.Error(), status)
		return
	}

	sess, err := h.store.GetSession(sessionID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	file, err := h.store.GetFile(sess.FileID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	items, err := h.store.ListAnsweredQuestions(sessionID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	var res *export.Results
	if typ == model.ExportResults {
		res = h.score(r, sessionID, items, false).results()
	}
	doc := export.Build(sess, file.Name, typ, items, res)

	var buf bytes.Buffer
	switch format {
	case export.FormatPDF:
		err = export.PDF(&buf, doc, appI18n.LocalizerFromCtx(r.Context()))
	default:
		err = export.JSON(&buf, doc)
	}
	if err != nil {
		slog.Error("export failed", "session_id", sessionID, "format", format, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if _, err := h.store.RecordExport(model.ExportRecord{SessionID: sessionID, Type: typ, Format: string(format)}); err != nil {
		writeStoreError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(doc, format)+`"`)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("write export", "session_id", sessionID, "error", err)
	}
}
