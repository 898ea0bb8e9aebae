package handler

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"lawassist/internal/app"
	"lawassist/internal/pkg/pdfextract"
	"lawassist/internal/transport/http/response"
)

const maxPDFSize = 10 << 20 // 10 MB

type UploadHandler struct {
	uploads *app.UploadService
}

func NewUploadHandler(uploads *app.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// UploadPDF accepts a multipart form with "file" (PDF) and "conversation_id",
// extracts the text, and registers the document for document-grounded
// questions in that conversation. Colliding filenames are disambiguated.
func (h *UploadHandler) UploadPDF(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	conversationID := parseUintForm(c, "conversation_id")
	if conversationID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid conversation_id")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if file.Size > maxPDFSize {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file too large (max 10MB)")
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".pdf" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "only PDF files are allowed")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	text, err := pdfextract.ExtractText(f)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "failed to extract text from PDF: "+err.Error())
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "PDF contains no extractable text")
		return
	}

	storedName := h.uploads.Add(userID, conversationID, filepath.Base(file.Filename), text)

	response.OK(c, gin.H{
		"filename":        storedName,
		"conversation_id": conversationID,
		"characters":      len(text),
	})
}

func (h *UploadHandler) ListUploads(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	conversationID := uint(0)
	if s := c.Query("conversation_id"); s != "" {
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			conversationID = uint(u)
		}
	}
	if conversationID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid conversation_id")
		return
	}

	response.OK(c, gin.H{"filenames": h.uploads.Names(userID, conversationID)})
}

func parseUintForm(c *gin.Context, key string) uint {
	s := c.PostForm(key)
	if s == "" {
		return 0
	}
	u, _ := strconv.ParseUint(s, 10, 64)
	return uint(u)
}
