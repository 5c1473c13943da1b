package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/pavelanni/mcqgen/internal/i18n"
	"github.com/pavelanni/mcqgen/internal/ingest"
	"github.com/pavelanni/mcqgen/internal/model"
)

// MaxUploadSize caps the size of an uploaded document.
const MaxUploadSize = 16 << 20

type uploadResponse struct {
	File       model.UploadedFile `json:"file"`
	ChunkCount int                `json:"chunk_count"`
	Duplicate  bool               `json:"duplicate"`
	Message    string             `json:"message"`
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "ErrFileTooLarge")
			return
		}
		writeError(w, r, http.StatusBadRequest, "ErrNoFile")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusRequestEntityTooLarge, "ErrFileTooLarge")
		return
	}

	text, err := ingest.ExtractText(header.Filename, data)
	if err != nil {
		if errors.Is(err, ingest.ErrUnsupportedType) {
			writeError(w, r, http.StatusUnsupportedMediaType, "ErrUnsupportedType")
			return
		}
		slog.Warn("text extraction failed", "name", header.Filename, "error", err)
		writeError(w, r, http.StatusUnprocessableEntity, "ErrUnreadableFile")
		return
	}

	hash := sha256sum(data)
	existing, err := h.store.FindFileByHash(hash)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if existing != nil {
		chunks, err := h.store.ListChunks(existing.ID)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		slog.Info("file unchanged, reusing", "name", header.Filename, "file_id", existing.ID)
		writeJSON(w, http.StatusOK, uploadResponse{
			File:       *existing,
			ChunkCount: len(chunks),
			Duplicate:  true,
			Message:    appI18n.Tp(r.Context(), "ChunksCreated", len(chunks)),
		})
		return
	}

	f := model.UploadedFile{
		Name:          header.Filename,
		Type:          ingest.FileType(header.Filename),
		Size:          int64(len(data)),
		ExtractedText: text,
		Status:        model.FileProcessing,
	}
	f.ID, err = h.store.CreateFile(f, hash)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	chunks := h.chunker.Split(text)
	if err := h.store.SaveChunks(f.ID, chunks); err != nil {
		_ = h.store.UpdateFileStatus(f.ID, model.FileFailed)
		writeStoreError(w, r, err)
		return
	}
	if err := h.store.UpdateFileStatus(f.ID, model.FileCompleted); err != nil {
		writeStoreError(w, r, err)
		return
	}

	stored, err := h.store.GetFile(f.ID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	slog.Info("file ingested", "name", f.Name, "file_id", f.ID, "bytes", f.Size, "chunks", len(chunks))
	writeJSON(w, http.StatusCreated, uploadResponse{
		File:       stored,
		ChunkCount: len(chunks),
		Message:    appI18n.Tp(r.Context(), "ChunksCreated", len(chunks)),
	})
}

func (h *Handler) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.store.ListFiles()
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if files == nil {
		files = []model.UploadedFile{}
	}
	writeJSON(w, http.StatusOK, files)
}

type fileResponse struct {
	model.UploadedFile
	QuestionCount int `json:"question_count"`
}

func (h *Handler) handleGetFile(w http.ResponseWriter, r *http.Request) {
	f, err := h.store.GetFile(chi.URLParam(r, "fileID"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	count, err := h.store.QuestionCount(f.ID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fileResponse{UploadedFile: f, QuestionCount: count})
}

func (h *Handler) handleListChunks(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	if _, err := h.store.GetFile(fileID); err != nil {
		writeStoreError(w, r, err)
		return
	}
	chunks, err := h.store.ListChunks(fileID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if chunks == nil {
		chunks = []model.Chunk{}
	}
	writeJSON(w, http.StatusOK, chunks)
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	if _, err := h.store.GetFile(fileID); err != nil {
		writeStoreError(w, r, err)
		return
	}
	questions, err := h.store.ListQuestionsByFile(fileID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if questions == nil {
		questions = []model.QuestionRecord{}
	}
	writeJSON(w, http.StatusOK, questions)
}

type generateResponse struct {
	FileID    string                 `json:"file_id"`
	Generated int                    `json:"generated"`
	Failed    int                    `json:"failed_chunks"`
	Message   string                 `json:"message"`
	Questions []model.QuestionRecord `json:"questions"`
}

// handleGenerate runs question generation over every chunk of a file. A chunk
// whose generation fails is logged and skipped.
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	if _, err := h.store.GetFile(fileID); err != nil {
		writeStoreError(w, r, err)
		return
	}

	perChunk := h.config.QuestionsPerChunk
	if s := r.URL.Query().Get("per_chunk"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			http.Error(w, "invalid per_chunk", http.StatusBadRequest)
			return
		}
		perChunk = n
	}

	chunks, err := h.store.ListChunks(fileID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if len(chunks) == 0 {
		writeError(w, r, http.StatusBadRequest, "ErrNoChunks")
		return
	}

	if err := h.store.UpdateFileStatus(fileID, model.FileProcessing); err != nil {
		writeStoreError(w, r, err)
		return
	}

	resp := generateResponse{FileID: fileID, Questions: []model.QuestionRecord{}}
	for _, c := range chunks {
		generated, err := h.gen.GenerateQuestions(r.Context(), c, perChunk)
		if err != nil {
			slog.Warn("question generation failed", "file_id", fileID, "chunk", c.Index, "error", err)
			resp.Failed++
			continue
		}
		for _, g := range generated {
			q := model.QuestionRecord{
				FileID:        fileID,
				Text:          g.Question,
				Options:       g.Options,
				CorrectAnswer: g.CorrectAnswer,
				Explanation:   g.Explanation,
				Difficulty:    g.Difficulty,
				Taxonomy:      g.Taxonomy,
				Topic:         g.Topic,
			}
			q.ID, err = h.store.InsertQuestion(q)
			if err != nil {
				_ = h.store.UpdateFileStatus(fileID, model.FileFailed)
				writeStoreError(w, r, err)
				return
			}
			resp.Questions = append(resp.Questions, q)
		}
	}
	resp.Generated = len(resp.Questions)

	status := model.FileCompleted
	code := http.StatusOK
	if resp.Generated == 0 {
		status = model.FileFailed
		code = http.StatusBadGateway
	}
	if err := h.store.UpdateFileStatus(fileID, status); err != nil {
		writeStoreError(w, r, err)
		return
	}

	resp.Message = appI18n.Tp(r.Context(), "QuestionsGenerated", resp.Generated)
	slog.Info("questions generated", "file_id", fileID, "chunks", len(chunks), "generated", resp.Generated, "failed_chunks", resp.Failed)
	writeJSON(w, code, resp)
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
