package rag

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"

	"lawassist/internal/ai"
)

// Fixed user-facing replies. Failures inside the pipeline never surface as
// errors; they degrade to one of these.
const (
	ApologyReply = "I am sorry, something went wrong while preparing your answer. Please try again in a moment."
	SafetyReply  = "I am sorry, I am not able to help with that request."
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Searcher interface {
	Search(ctx context.Context, vector []float32, k int) ([]Passage, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type PipelineOptions struct {
	TopK              int
	DocumentCharLimit int
	RewriteQuery      bool
}

// Pipeline answers one user question: either grounded in uploaded document
// text, or by rewrite -> embed -> vector search -> grounded generation.
type Pipeline struct {
	embedder  Embedder
	searcher  Searcher
	generator Generator
	opts      PipelineOptions
}

func NewPipeline(embedder Embedder, searcher Searcher, generator Generator, opts PipelineOptions) *Pipeline {
	if opts.TopK <= 0 {
		opts.TopK = 20
	}
	if opts.DocumentCharLimit <= 0 {
		opts.DocumentCharLimit = 4000
	}
	return &Pipeline{
		embedder:  embedder,
		searcher:  searcher,
		generator: generator,
		opts:      opts,
	}
}

// Answer returns the reply text verbatim from the model, or a fixed apology
// when any external call fails or is safety-blocked. It never returns an
// error to the caller.
func (p *Pipeline) Answer(ctx context.Context, query string, uploads map[string]string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return ApologyReply
	}

	var reply string
	var err error
	if _, grounded := MentionedUpload(query, uploads); grounded {
		reply, err = p.answerFromDocuments(ctx, query, uploads)
	} else {
		reply, err = p.answerFromCorpus(ctx, query)
	}
	if err != nil {
		if errors.Is(err, ai.ErrBlocked) {
			return SafetyReply
		}
		log.Printf("rag pipeline failed: %v", err)
		return ApologyReply
	}
	if strings.TrimSpace(reply) == "" {
		return ApologyReply
	}
	return reply
}

// MentionedUpload reports whether the query names one of the uploaded files,
// matching the stored filename with or without its extension. Names must
// appear as whole words; "contract" in "contractual" is not a mention.
func MentionedUpload(query string, uploads map[string]string) (string, bool) {
	if len(uploads) == 0 {
		return "", false
	}

	words := make(map[string]bool)
	for _, field := range strings.Fields(strings.ToLower(query)) {
		words[strings.Trim(field, `.,;:!?'"()[]`)] = true
	}

	names := make([]string, 0, len(uploads))
	for name := range uploads {
		names = append(names, name)
	}
	// Deterministic pick when several filenames appear in the query.
	sort.Strings(names)
	for _, name := range names {
		base := strings.TrimSuffix(name, filepath.Ext(name))
		if base == "" {
			base = name
		}
		if words[strings.ToLower(name)] || words[strings.ToLower(base)] {
			return name, true
		}
	}
	return "", false
}

func (p *Pipeline) answerFromDocuments(ctx context.Context, query string, uploads map[string]string) (string, error) {
	names := make([]string, 0, len(uploads))
	for name := range uploads {
		names = append(names, name)
	}
	sort.Strings(names)

	var excerpts strings.Builder
	for _, name := range names {
		text := uploads[name]
		// The budget counts characters; slicing bytes could split a
		// multi-byte rune and put invalid UTF-8 in the prompt.
		if runes := []rune(text); len(runes) > p.opts.DocumentCharLimit {
			text = string(runes[:p.opts.DocumentCharLimit])
		}
		fmt.Fprintf(&excerpts, "--- Document: %s ---\n%s\n", name, text)
	}

	prompt := fmt.Sprintf(
		"You are a helpful lawyer reviewing documents for a client. "+
			"The client uploaded the following documents:\n%s\n"+
			"The client asked: %s\n"+
			"Answer the question using the document text above. Explain the relevant "+
			"clauses plainly and point out anything the client should watch out for. "+
			"If the question has nothing to do with the documents, just reply like a "+
			"friendly lawyer having a normal conversation.",
		excerpts.String(), query,
	)
	return p.generator.Generate(ctx, prompt)
}

func (p *Pipeline) answerFromCorpus(ctx context.Context, query string) (string, error) {
	searchQuery := query
	if p.opts.RewriteQuery {
		rewritten, err := p.generator.Generate(ctx, rewritePrompt(query))
		if err != nil {
			return "", err
		}
		rewritten = strings.TrimSpace(rewritten)
		if rewritten != "" {
			searchQuery = rewritten
		}
	}

	vector, err := p.embedder.Embed(ctx, searchQuery)
	if err != nil {
		return "", err
	}

	passages, err := p.searcher.Search(ctx, vector, p.opts.TopK)
	if err != nil {
		return "", err
	}

	return p.generator.Generate(ctx, answerPrompt(query, searchQuery, passages))
}

func rewritePrompt(query string) string {
	return fmt.Sprintf(
		"I need you to turn this question into a precise query that I can use to "+
			"search a vector database of legal documents and constitutional articles. "+
			"The question is: %s. Answer only with the query, and no headings. "+
			"For example, if the question is 'What are my rights?', your response "+
			"would be 'rights'. Another example: if the question is 'I was framed "+
			"for murder, help me', your response would be 'frame, murder, rights of "+
			"the accused, accusation, defense'.",
		query,
	)
}

func answerPrompt(query, searchQuery string, passages []Passage) string {
	var retrieved strings.Builder
	for i, passage := range passages {
		fmt.Fprintf(&retrieved, "[%d] %s\n", i+1, passage.Text)
	}

	return fmt.Sprintf(
		"You are a helpful lawyer who is adept in helping your clients get out of "+
			"tricky situations. The client said: %s. I queried my legal database for "+
			"%q and these are the articles I got:\n%s\n"+
			"Frame this into an answer in natural language and prepare the client "+
			"robustly to fight their own case. Meticulously lay down the steps and "+
			"articles that a lawyer would invoke, and explain each article properly "+
			"so the client is fully prepared. Do not include the raw passages in the "+
			"answer. If the question <%s> is unrelated to anything about the law, "+
			"disregard the database results and reply like a friendly lawyer having "+
			"a normal conversation.",
		query, searchQuery, retrieved.String(), query,
	)
}
