package app

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

type uploadKey struct {
	userID         uint
	conversationID uint
}

// UploadService holds extracted PDF text for the lifetime of the process,
// keyed per user and conversation. Uploads are deliberately not persisted;
// they back document-grounded questions within one conversation only.
type UploadService struct {
	mu        sync.RWMutex
	documents map[uploadKey]map[string]string
}

func NewUploadService() *UploadService {
	return &UploadService{
		documents: make(map[uploadKey]map[string]string),
	}
}

// Add stores a document's text and returns the name it was stored under. A
// filename that collides with an existing upload is disambiguated with a
// numeric suffix: contract.pdf, contract_1.pdf, contract_2.pdf.
func (s *UploadService) Add(userID, conversationID uint, filename, text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := uploadKey{userID: userID, conversationID: conversationID}
	docs, ok := s.documents[key]
	if !ok {
		docs = make(map[string]string)
		s.documents[key] = docs
	}

	stored := filename
	if _, exists := docs[stored]; exists {
		ext := filepath.Ext(filename)
		base := strings.TrimSuffix(filename, ext)
		for i := 1; ; i++ {
			stored = fmt.Sprintf("%s_%d%s", base, i, ext)
			if _, exists := docs[stored]; !exists {
				break
			}
		}
	}

	docs[stored] = text
	return stored
}

// List returns a copy of the conversation's uploads.
func (s *UploadService) List(userID, conversationID uint) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.documents[uploadKey{userID: userID, conversationID: conversationID}]
	if len(docs) == 0 {
		return nil
	}
	out := make(map[string]string, len(docs))
	for name, text := range docs {
		out[name] = text
	}
	return out
}

// Names returns the stored filenames for the conversation.
func (s *UploadService) Names(userID, conversationID uint) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.documents[uploadKey{userID: userID, conversationID: conversationID}]
	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	return names
}

// Clear drops all uploads for the conversation.
func (s *UploadService) Clear(userID, conversationID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, uploadKey{userID: userID, conversationID: conversationID})
}
