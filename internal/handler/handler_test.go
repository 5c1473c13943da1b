package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/pavelanni/mcqgen/internal/i18n"
	"github.com/pavelanni/mcqgen/internal/model"
	"github.com/pavelanni/mcqgen/internal/scoring"
	"github.com/pavelanni/mcqgen/internal/store"
)

const testPassword = "secret"

const testText = "Go is a statically typed language. Goroutines are cheap to start. " +
	"Channels pass values between goroutines. A select statement waits on channels. " +
	"The sync package offers mutexes. Contexts carry deadlines across calls."

type fakeGen struct {
	err   error
	calls int
}

func (g *fakeGen) GenerateQuestions(_ context.Context, c model.Chunk, n int) ([]model.GeneratedQuestion, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	opts := map[model.Letter]string{"A": "alpha", "B": "beta", "C": "gamma", "D": "delta"}
	out := make([]model.GeneratedQuestion, 0, n)
	for i := range n {
		q := model.GeneratedQuestion{
			Question:      fmt.Sprintf("Question %d-%d?", c.Index, i),
			Options:       opts,
			CorrectAnswer: model.LetterA,
			Explanation:   "alpha is first",
			Difficulty:    model.DifficultyEasy,
			Taxonomy:      "Remember",
		}
		if i%2 == 1 {
			q.CorrectAnswer = model.LetterB
			q.Difficulty = model.DifficultyHard
		}
		out = append(out, q)
	}
	return out, nil
}

type testEnv struct {
	router http.Handler
	store  *store.Store
	gen    *fakeGen
	scored atomic.Int64
}

func newTestEnv(t *testing.T, withAdmin bool) *testEnv {
	t.Helper()
	return newTestEnvAt(t, ":memory:", withAdmin)
}

func newTestEnvAt(t *testing.T, dbPath string, withAdmin bool) *testEnv {
	t.Helper()
	s, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cfg := model.ServerConfig{
		Chunk:             model.ChunkConfig{MaxSize: 80, Overlap: 2},
		QuestionsPerChunk: 2,
		Lang:              "en",
	}
	if withAdmin {
		cfg.AdminPasswordHash, err = bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash password: %v", err)
		}
	}

	env := &testEnv{store: s, gen: &fakeGen{}}
	agg := scoring.NewAggregator(scoring.WithObserver(scoring.ObserverFunc(func(model.ScoreReport) {
		env.scored.Add(1)
	})))
	h, err := New(s, env.gen, cfg, agg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r := chi.NewRouter()
	r.Use(appI18n.Middleware("en"))
	h.Routes(r)
	env.router = r
	return env
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, name, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/files", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetBasicAuth(AdminUser, testPassword)
	return req
}

func jsonRequest(method, path string, v any) *http.Request {
	var body bytes.Buffer
	if v != nil {
		json.NewEncoder(&body).Encode(v)
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

// uploadFile uploads testText and returns the file ID.
func (e *testEnv) uploadFile(t *testing.T) string {
	t.Helper()
	rec := e.do(t, uploadRequest(t, "notes.txt", testText))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: status %d: %s", rec.Code, rec.Body.String())
	}
	return decode[uploadResponse](t, rec).File.ID
}

func (e *testEnv) generate(t *testing.T, fileID string) generateResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/files/"+fileID+"/generate", nil)
	req.SetBasicAuth(AdminUser, testPassword)
	rec := e.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("generate: status %d: %s", rec.Code, rec.Body.String())
	}
	return decode[generateResponse](t, rec)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestAdminAuth(t *testing.T) {
	t.Run("disabled without password", func(t *testing.T) {
		env := newTestEnv(t, false)
		rec := env.do(t, uploadRequest(t, "notes.txt", testText))
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	env := newTestEnv(t, true)
	tests := []struct {
		name     string
		user     string
		password string
		setAuth  bool
		want     int
	}{
		{"no credentials", "", "", false, http.StatusUnauthorized},
		{"wrong password", AdminUser, "nope", true, http.StatusUnauthorized},
		{"wrong user", "root", testPassword, true, http.StatusUnauthorized},
		{"valid", AdminUser, testPassword, true, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := uploadRequest(t, tt.name+".txt", testText+" "+tt.name+".")
			req.Header.Del("Authorization")
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.password)
			}
			rec := env.do(t, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
			if tt.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header")
			}
		})
	}
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(t, uploadRequest(t, "notes.txt", testText))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	first := decode[uploadResponse](t, rec)
	if first.ChunkCount < 2 {
		t.Errorf("expected several chunks, got %d", first.ChunkCount)
	}
	if first.File.Status != model.FileCompleted {
		t.Errorf("expected status completed, got %q", first.File.Status)
	}
	if first.Duplicate {
		t.Error("first upload should not be a duplicate")
	}

	// Same content again is recognised by hash.
	rec = env.do(t, uploadRequest(t, "copy.txt", testText))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for duplicate, got %d", rec.Code)
	}
	dup := decode[uploadResponse](t, rec)
	if !dup.Duplicate || dup.File.ID != first.File.ID {
		t.Errorf("expected duplicate of %s, got %+v", first.File.ID, dup)
	}

	rec = env.do(t, uploadRequest(t, "paper.pdf", "%PDF-1.4"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for unreadable pdf, got %d", rec.Code)
	}
	rec = env.do(t, uploadRequest(t, "slides.pptx", "PK"))
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415 for pptx, got %d", rec.Code)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/files", nil))
	if files := decode[[]model.UploadedFile](t, rec); len(files) != 1 {
		t.Errorf("expected 1 file, got %d", len(files))
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/files/"+first.File.ID+"/chunks", nil))
	chunks := decode[[]model.Chunk](t, rec)
	if len(chunks) != first.ChunkCount {
		t.Errorf("expected %d chunks, got %d", first.ChunkCount, len(chunks))
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/files/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGenerate(t *testing.T) {
	env := newTestEnv(t, true)
	fileID := env.uploadFile(t)

	resp := env.generate(t, fileID)
	if env.gen.calls < 2 {
		t.Fatalf("expected one call per chunk, got %d", env.gen.calls)
	}
	if resp.Generated != 2*env.gen.calls {
		t.Errorf("expected %d questions, got %d", 2*env.gen.calls, resp.Generated)
	}

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/files/"+fileID+"/questions", nil))
	if qs := decode[[]model.QuestionRecord](t, rec); len(qs) != resp.Generated {
		t.Errorf("expected %d stored questions, got %d", resp.Generated, len(qs))
	}
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/files/"+fileID, nil))
	if f := decode[fileResponse](t, rec); f.ID != fileID || f.QuestionCount != resp.Generated {
		t.Errorf("expected file %s with %d questions, got %s with %d", fileID, resp.Generated, f.ID, f.QuestionCount)
	}

	req := httptest.NewRequest(http.MethodPost, "/files/"+fileID+"/generate?per_chunk=0", nil)
	req.SetBasicAuth(AdminUser, testPassword)
	if rec := env.do(t, req); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for per_chunk=0, got %d", rec.Code)
	}
}

func TestGenerateAllChunksFail(t *testing.T) {
	env := newTestEnv(t, true)
	fileID := env.uploadFile(t)
	env.gen.err = errors.New("model unavailable")

	req := httptest.NewRequest(http.MethodPost, "/files/"+fileID+"/generate", nil)
	req.SetBasicAuth(AdminUser, testPassword)
	rec := env.do(t, req)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	f, err := env.store.GetFile(fileID)
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if f.Status != model.FileFailed {
		t.Errorf("expected status failed, got %q", f.Status)
	}
}

func TestStartQuizWithoutQuestions(t *testing.T) {
	env := newTestEnv(t, true)
	fileID := env.uploadFile(t)

	rec := env.do(t, jsonRequest(http.MethodPost, "/quiz", startQuizRequest{FileID: fileID}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := decode[map[string]string](t, rec)["error"]; msg != "No questions have been generated for this file." {
		t.Errorf("unexpected error message %q", msg)
	}

	rec = env.do(t, jsonRequest(http.MethodPost, "/quiz", startQuizRequest{FileID: "missing"}))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown file, got %d", rec.Code)
	}
}

func TestQuizFlow(t *testing.T) {
	env := newTestEnv(t, true)
	fileID := env.uploadFile(t)
	gen := env.generate(t, fileID)

	rec := env.do(t, jsonRequest(http.MethodPost, "/quiz", startQuizRequest{FileID: fileID, Name: "Practice"}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("start quiz: status %d: %s", rec.Code, rec.Body.String())
	}
	sess := decode[model.QuizSession](t, rec)
	if sess.TotalQuestions != gen.Generated {
		t.Errorf("expected %d questions in session, got %d", gen.Generated, sess.TotalQuestions)
	}
	base := fmt.Sprintf("/quiz/%d", sess.ID)

	first := gen.Questions[0]
	rec = env.do(t, jsonRequest(http.MethodPost, base+"/answers", answerRequest{QuestionID: first.ID, Answer: " a "}))
	if rec.Code != http.StatusOK {
		t.Fatalf("answer: status %d: %s", rec.Code, rec.Body.String())
	}
	if ev := decode[model.EvaluatedResponse](t, rec); !ev.IsCorrect {
		t.Errorf("expected correct answer, got %+v", ev)
	}

	rec = env.do(t, jsonRequest(http.MethodPost, base+"/answers", answerRequest{QuestionID: first.ID, Answer: "E"}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid letter, got %d", rec.Code)
	}

	// Questions are hidden until the session is completed.
	rec = env.do(t, httptest.NewRequest(http.MethodGet, base, nil))
	view := decode[sessionResponse](t, rec)
	if view.Result != nil || view.Questions[0].CorrectAnswer != "" {
		t.Error("in-progress session should not reveal answers")
	}

	rec = env.do(t, jsonRequest(http.MethodPost, base+"/submit", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: status %d: %s", rec.Code, rec.Body.String())
	}
	result := decode[submitResponse](t, rec)
	if result.Report.Total != gen.Generated || result.Report.Correct != 1 {
		t.Errorf("expected 1/%d correct, got %d/%d", gen.Generated, result.Report.Correct, result.Report.Total)
	}
	if result.Report.Grade != scoring.AssignGrade(result.Report.RawPercentage) {
		t.Errorf("grade %q does not match raw percentage %v", result.Report.Grade, result.Report.RawPercentage)
	}
	if !strings.HasPrefix(result.Feedback, "You scored ") {
		t.Errorf("unexpected feedback %q", result.Feedback)
	}
	if !strings.Contains(result.Feedback, "You struggled with hard questions") {
		t.Errorf("expected hard-question nudge, got %q", result.Feedback)
	}
	if env.scored.Load() != 1 {
		t.Errorf("expected one observed report, got %d", env.scored.Load())
	}

	rec = env.do(t, jsonRequest(http.MethodPost, base+"/submit", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 on second submit, got %d", rec.Code)
	}
	rec = env.do(t, jsonRequest(http.MethodPost, base+"/answers", answerRequest{QuestionID: first.ID, Answer: "B"}))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 answering a completed session, got %d", rec.Code)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, base, nil))
	view = decode[sessionResponse](t, rec)
	if view.Result == nil || view.Result.Report.Correct != 1 {
		t.Errorf("completed session should carry its result, got %+v", view.Result)
	}
	if env.scored.Load() != 1 {
		t.Errorf("viewing a session must not observe a report, got %d", env.scored.Load())
	}
}

func TestAnswerForeignQuestion(t *testing.T) {
	env := newTestEnv(t, true)
	fileID := env.uploadFile(t)
	env.generate(t, fileID)

	rec := env.do(t, uploadRequest(t, "other.txt", "A different document. It has other sentences."))
	otherID := decode[uploadResponse](t, rec).File.ID
	other := env.generate(t, otherID)

	rec = env.do(t, jsonRequest(http.MethodPost, "/quiz", startQuizRequest{FileID: fileID}))
	sess := decode[model.QuizSession](t, rec)

	rec = env.do(t, jsonRequest(http.MethodPost, fmt.Sprintf("/quiz/%d/answers", sess.ID),
		answerRequest{QuestionID: other.Questions[0].ID, Answer: "A"}))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a question from another file, got %d", rec.Code)
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, true)
	fileID := env.uploadFile(t)
	env.generate(t, fileID)
	rec := env.do(t, jsonRequest(http.MethodPost, "/quiz", startQuizRequest{FileID: fileID, Name: "Practice"}))
	sess := decode[model.QuizSession](t, rec)
	base := fmt.Sprintf("/quiz/%d/export", sess.ID)

	t.Run("questions only json", func(t *testing.T) {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, base, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		doc := decode[model.ResultsExport](t, rec)
		if doc.FileName != "notes.txt" || doc.Report != nil {
			t.Errorf("unexpected export %+v", doc)
		}
	})

	t.Run("results json", func(t *testing.T) {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, base+"?type=results_with_answers&format=json", nil))
		doc := decode[model.ResultsExport](t, rec)
		if doc.Report == nil || doc.Report.Correct != 0 || doc.Feedback == "" {
			t.Errorf("expected zero-score report with feedback, got %+v", doc.Report)
		}
	})

	t.Run("results pdf", func(t *testing.T) {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, base+"?type=results_with_answers&format=pdf", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
		}
		if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
			t.Error("expected a PDF body")
		}
		if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, ".pdf") {
			t.Errorf("unexpected Content-Disposition %q", cd)
		}
	})

	t.Run("docx unsupported", func(t *testing.T) {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, base+"?format=docx", nil))
		if rec.Code != http.StatusNotImplemented {
			t.Errorf("expected 501, got %d", rec.Code)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, base+"?type=all", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	records, err := env.store.ListExports(sess.ID)
	if err != nil {
		t.Fatalf("ListExports: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("expected 3 recorded exports, got %d", len(records))
	}
	if env.scored.Load() != 0 {
		t.Errorf("exports must not observe reports, got %d", env.scored.Load())
	}
}

func TestLocalizedErrors(t *testing.T) {
	env := newTestEnv(t, true)
	req := httptest.NewRequest(http.MethodGet, "/files/missing", nil)
	req.Header.Set("Accept-Language", "ru")
	rec := env.do(t, req)
	if msg := decode[map[string]string](t, rec)["error"]; msg != "Не найдено." {
		t.Errorf("expected Russian error, got %q", msg)
	}
}

func TestCompletedReportIsStable(t *testing.T) {
	env := newTestEnv(t, true)
	fileID := env.uploadFile(t)
	gen := env.generate(t, fileID)

	rec := env.do(t, jsonRequest(http.MethodPost, "/quiz", startQuizRequest{FileID: fileID}))
	sess := decode[model.QuizSession](t, rec)
	base := fmt.Sprintf("/quiz/%d", sess.ID)

	rec = env.do(t, jsonRequest(http.MethodPost, base+"/answers", answerRequest{QuestionID: gen.Questions[0].ID, Answer: "A"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("answer: status %d", rec.Code)
	}

	// Questions generated mid-quiz are not part of the session.
	more := env.generate(t, fileID)
	rec = env.do(t, jsonRequest(http.MethodPost, base+"/answers", answerRequest{QuestionID: more.Questions[0].ID, Answer: "A"}))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 answering a question generated after start, got %d", rec.Code)
	}

	rec = env.do(t, jsonRequest(http.MethodPost, base+"/submit", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: status %d: %s", rec.Code, rec.Body.String())
	}
	submitted := decode[submitResponse](t, rec).Report
	if submitted.Total != sess.TotalQuestions || submitted.Total != gen.Generated {
		t.Fatalf("expected %d questions scored, got %d", gen.Generated, submitted.Total)
	}

	env.generate(t, fileID)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, base, nil))
	view := decode[sessionResponse](t, rec)
	if view.Result == nil {
		t.Fatal("completed session should carry its result")
	}
	if got := view.Result.Report; got.Total != submitted.Total || got.Grade != submitted.Grade || got.Percentage != submitted.Percentage {
		t.Errorf("report changed after regeneration: %+v, want %+v", got, submitted)
	}
	if len(view.Questions) != submitted.Total {
		t.Errorf("expected %d questions in view, got %d", submitted.Total, len(view.Questions))
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, base+"/export?type=results_with_answers", nil))
	doc := decode[model.ResultsExport](t, rec)
	if doc.Report == nil || doc.Report.Total != submitted.Total || len(doc.Questions) != submitted.Total {
		t.Errorf("export does not match the submitted report: %+v", doc.Report)
	}
}

func TestConcurrentSubmit(t *testing.T) {
	env := newTestEnvAt(t, filepath.Join(t.TempDir(), "mcqgen.db"), true)
	fileID := env.uploadFile(t)
	env.generate(t, fileID)

	rec := env.do(t, jsonRequest(http.MethodPost, "/quiz", startQuizRequest{FileID: fileID}))
	sess := decode[model.QuizSession](t, rec)
	path := fmt.Sprintf("/quiz/%d/submit", sess.ID)

	const submits = 8
	codes := make([]int, submits)
	var wg sync.WaitGroup
	for i := range submits {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, jsonRequest(http.MethodPost, path, nil))
			codes[i] = rec.Code
		}()
	}
	wg.Wait()

	var ok, conflict int
	for _, c := range codes {
		switch c {
		case http.StatusOK:
			ok++
		case http.StatusConflict:
			conflict++
		}
	}
	if ok != 1 || conflict != submits-1 {
		t.Errorf("expected 1 success and %d conflicts, got codes %v", submits-1, codes)
	}
	if n := env.scored.Load(); n != 1 {
		t.Errorf("expected one observed report, got %d", n)
	}
}
