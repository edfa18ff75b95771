package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/inkwellhq/inkwell-backend/internal/logger"
	"github.com/inkwellhq/inkwell-backend/internal/types"
)

// SectionSpec carries everything the generator needs to draft one section.
type SectionSpec struct {
	SectionType      string
	Title            string
	Instructions     string
	Outline          []string
	ResearchQuestion string
	TargetWordCount  int
}

// DocumentGenerator drafts a section document tree citing sources by
// bracketed citation key. Implementations must provide a deterministic
// fallback when the model is unreachable.
type DocumentGenerator interface {
	GenerateSection(ctx context.Context, spec SectionSpec, entries []*types.LedgerEntry, voice string) (types.DocumentNode, error)
}

// SuggestionDraft is the generator's proposal for a section addition.
type SuggestionDraft struct {
	Summary    string
	Paragraphs []string
}

// SuggestionGenerator drafts a reviewable addition constrained to the given
// verified citation keys. Same fallback contract as DocumentGenerator.
type SuggestionGenerator interface {
	GenerateSuggestion(ctx context.Context, excerpt, heading string, verifiedKeys []string, voice string) (*SuggestionDraft, error)
}

type aiGenerator struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
}

// NewAIGenerator builds the OpenAI-backed generator. Without an API key the
// generator still works: every call takes the deterministic fallback path.
func NewAIGenerator(log *logger.Logger) (DocumentGenerator, SuggestionGenerator) {
	apiKey := os.Getenv("OPENAI_API_KEY")

	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	timeoutSec := 120
	if v := os.Getenv("OPENAI_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}
	maxRetries := 3
	if v := os.Getenv("OPENAI_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	g := &aiGenerator{
		log:        log.With("service", "AIGenerator"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}
	return g, g
}

type generatorHTTPError struct {
	StatusCode int
	Body       string
}

func (e *generatorHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func isRetryableHTTP(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

func isRetryableErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var httpErr *generatorHTTPError
	if errors.As(err, &httpErr) {
		return isRetryableHTTP(httpErr.StatusCode)
	}
	return false
}

func jitterSleep(base time.Duration) time.Duration {
	// +/- 20%
	if base <= 0 {
		return 0
	}
	j := 0.2
	delta := base.Seconds() * j
	low := base.Seconds() - delta
	high := base.Seconds() + delta
	if low < 0 {
		low = 0
	}
	v := low + rand.Float64()*(high-low)
	return time.Duration(v * float64(time.Second))
}

func (g *aiGenerator) doOnce(ctx context.Context, path string, body any) ([]byte, *http.Response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, resp, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return raw, resp, &generatorHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, resp, nil
}

func (g *aiGenerator) completeJSON(ctx context.Context, system, user, schemaName string, schema map[string]any, out any) error {
	body := map[string]any{
		"model": g.model,
		"messages": []map[string]any{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   schemaName,
				"schema": schema,
				"strict": true,
			},
		},
	}

	backoff := 1 * time.Second
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		raw, resp, err := g.doOnce(ctx, "/v1/chat/completions", body)
		if err == nil {
			var envelope struct {
				Choices []struct {
					Message struct {
						Content string `json:"content"`
					} `json:"message"`
				} `json:"choices"`
			}
			if uErr := json.Unmarshal(raw, &envelope); uErr != nil {
				return fmt.Errorf("openai decode error: %w", uErr)
			}
			if len(envelope.Choices) == 0 {
				return fmt.Errorf("openai returned no choices")
			}
			return json.Unmarshal([]byte(envelope.Choices[0].Message.Content), out)
		}
		lastErr = err
		if !isRetryableErr(err) || attempt == g.maxRetries {
			return err
		}
		sleepFor := backoff
		if resp != nil {
			if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
				if secs, parseErr := strconv.Atoi(ra); parseErr == nil && secs > 0 {
					sleepFor = time.Duration(secs) * time.Second
				}
			}
		}
		if sleepFor > 10*time.Second {
			sleepFor = 10 * time.Second
		}
		g.log.Warn("OpenAI request retrying", "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jitterSleep(sleepFor)):
		}
		backoff *= 2
	}
	return lastErr
}

func (g *aiGenerator) GenerateSection(ctx context.Context, spec SectionSpec, entries []*types.LedgerEntry, voice string) (types.DocumentNode, error) {
	if g.apiKey == "" {
		g.log.Debug("No API key configured, using fallback section", "section_type", spec.SectionType)
		return fallbackSection(spec, entries), nil
	}

	var result struct {
		Document types.DocumentNode `json:"document"`
	}
	err := g.completeJSON(ctx,
		sectionSystemPrompt(voice),
		sectionUserPrompt(spec, entries),
		"manuscript_section",
		documentSchema(),
		&result,
	)
	if err != nil {
		if isRetryableErr(err) {
			return types.DocumentNode{}, err
		}
		g.log.Warn("Generation failed non-retryably, using fallback section", "section_type", spec.SectionType, "error", err)
		return fallbackSection(spec, entries), nil
	}
	raw, encErr := result.Document.Encode()
	if encErr != nil {
		return fallbackSection(spec, entries), nil
	}
	if _, parseErr := types.ParseDocument(raw); parseErr != nil {
		g.log.Warn("Generated document failed strict parse, using fallback", "error", parseErr)
		return fallbackSection(spec, entries), nil
	}
	return result.Document, nil
}

func (g *aiGenerator) GenerateSuggestion(ctx context.Context, excerpt, heading string, verifiedKeys []string, voice string) (*SuggestionDraft, error) {
	if g.apiKey == "" {
		g.log.Debug("No API key configured, using fallback suggestion")
		return fallbackSuggestion(excerpt, heading, verifiedKeys), nil
	}

	var result struct {
		Summary    string   `json:"summary"`
		Paragraphs []string `json:"paragraphs"`
	}
	err := g.completeJSON(ctx,
		suggestionSystemPrompt(voice, verifiedKeys),
		suggestionUserPrompt(excerpt, heading),
		"draft_suggestion",
		suggestionSchema(),
		&result,
	)
	if err != nil {
		if isRetryableErr(err) {
			return nil, err
		}
		return fallbackSuggestion(excerpt, heading, verifiedKeys), nil
	}
	if strings.TrimSpace(result.Summary) == "" || len(result.Paragraphs) == 0 {
		return fallbackSuggestion(excerpt, heading, verifiedKeys), nil
	}
	return &SuggestionDraft{Summary: result.Summary, Paragraphs: result.Paragraphs}, nil
}

func sectionSystemPrompt(voice string) string {
	if strings.TrimSpace(voice) == "" {
		voice = "neutral academic"
	}
	return "You draft literature-review manuscript sections in a " + voice + " voice. " +
		"Cite sources only with bracketed citation keys from the provided evidence, e.g. [smith2021]. " +
		"Never cite a key that is not provided."
}

func sectionUserPrompt(spec SectionSpec, entries []*types.LedgerEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Section type: %s\n", spec.SectionType)
	if spec.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n", spec.Title)
	}
	if spec.ResearchQuestion != "" {
		fmt.Fprintf(&sb, "Research question: %s\n", spec.ResearchQuestion)
	}
	if spec.Instructions != "" {
		fmt.Fprintf(&sb, "Instructions: %s\n", spec.Instructions)
	}
	if len(spec.Outline) > 0 {
		fmt.Fprintf(&sb, "Outline: %s\n", strings.Join(spec.Outline, "; "))
	}
	if spec.TargetWordCount > 0 {
		fmt.Fprintf(&sb, "Target length: ~%d words\n", spec.TargetWordCount)
	}
	sb.WriteString("Evidence:\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "- [%s] %s\n", e.CitationKey, e.Title)
		if locs, err := e.DecodedLocators(); err == nil {
			for _, loc := range locs {
				if q := strings.TrimSpace(loc.Quote); q != "" {
					fmt.Fprintf(&sb, "  quote: %q\n", q)
				}
				if n := strings.TrimSpace(loc.Note); n != "" {
					fmt.Fprintf(&sb, "  note: %s\n", n)
				}
			}
		}
	}
	return sb.String()
}

func suggestionSystemPrompt(voice string, verifiedKeys []string) string {
	if strings.TrimSpace(voice) == "" {
		voice = "neutral academic"
	}
	keys := "none"
	if len(verifiedKeys) > 0 {
		keys = strings.Join(verifiedKeys, ", ")
	}
	return "You propose a single additional paragraph for a manuscript section in a " + voice +
		" voice. You may cite only these verified keys: " + keys + ". " +
		"If no keys are available, cite nothing."
}

func suggestionUserPrompt(excerpt, heading string) string {
	var sb strings.Builder
	if heading != "" {
		fmt.Fprintf(&sb, "Section heading: %s\n", heading)
	}
	if excerpt != "" {
		fmt.Fprintf(&sb, "Opening excerpt: %s\n", excerpt)
	}
	sb.WriteString("Propose one paragraph that strengthens this section, plus a one-line summary of the change.")
	return sb.String()
}

func documentSchema() map[string]any {
	node := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"type": map[string]any{"type": "string"},
			"text": map[string]any{"type": "string"},
			"children": map[string]any{
				"type":  "array",
				"items": map[string]any{"$ref": "#/$defs/node"},
			},
		},
		"required": []string{"type"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"document": map[string]any{"$ref": "#/$defs/node"},
		},
		"required": []string{"document"},
		"$defs":    map[string]any{"node": node},
	}
}

func suggestionSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
			"paragraphs": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []string{"summary", "paragraphs"},
	}
}

// fallbackSection builds a deterministic evidence-summary tree so composition
// still commits something reviewable when the model is unavailable.
func fallbackSection(spec SectionSpec, entries []*types.LedgerEntry) types.DocumentNode {
	title := spec.Title
	if title == "" {
		title = strings.Title(strings.ReplaceAll(spec.SectionType, "_", " "))
	}
	children := []types.DocumentNode{
		{Type: types.NodeHeading, Children: []types.DocumentNode{types.TextNode(title)}},
	}
	for _, e := range entries {
		leaves := []types.DocumentNode{}
		note := ""
		if locs, err := e.DecodedLocators(); err == nil {
			for _, loc := range locs {
				if strings.TrimSpace(loc.Quote) != "" {
					note = strings.TrimSpace(loc.Quote)
					break
				}
				if strings.TrimSpace(loc.Note) != "" {
					note = strings.TrimSpace(loc.Note)
				}
			}
		}
		if note == "" {
			note = "Evidence recorded for " + e.Title
		}
		leaves = append(leaves, types.TextNode(note+" "))
		leaves = append(leaves, types.DocumentNode{Type: types.NodeCitation, Text: e.CitationKey})
		children = append(children, types.ParagraphNode(leaves...))
	}
	if len(entries) == 0 {
		children = append(children, types.ParagraphNode(types.TextNode("No evidence available for this section yet.")))
	}
	return types.DocumentNode{Type: types.NodeDoc, Children: children}
}

func fallbackSuggestion(excerpt, heading string, verifiedKeys []string) *SuggestionDraft {
	subject := heading
	if subject == "" {
		subject = "this section"
	}
	text := "Consider expanding " + subject + " with a closing synthesis of the cited evidence."
	if len(verifiedKeys) > 0 {
		text += " Verified sources available: " + strings.Join(verifiedKeys, ", ") + "."
	}
	return &SuggestionDraft{
		Summary:    "Add a closing synthesis paragraph",
		Paragraphs: []string{text},
	}
}
