// Package screening scores candidates with a language model: resumes against
// a job description, and interview transcripts against the role they were
// recorded for.
//
// Both operations validate their input locally and return a
// [*ValidationError] before any model is called. Model answers are decoded
// from JSON and their scores clamped to 0-100.
package screening

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/synergy/internal/observe"
	"github.com/MrWong99/synergy/internal/session"
	"github.com/MrWong99/synergy/internal/tools"
	"github.com/MrWong99/synergy/pkg/provider/llm"
)

// DefaultMaxDocumentSize caps decoded resume documents.
const DefaultMaxDocumentSize = 10 << 20

// SupportedDocumentTypes are the resume MIME types accepted by
// [Service.ScreenResume]: PDF, Word (.doc, .docx) and plain text.
var SupportedDocumentTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"text/plain",
}

// ErrMalformedResult is returned when the model's answer is not the JSON
// object that was asked for.
var ErrMalformedResult = errors.New("screening: malformed model result")

// ValidationError reports a request rejected before reaching the model.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("screening: invalid %s: %s", e.Field, e.Message)
}

// Document is an uploaded file.
type Document struct {
	MIMEType string `json:"mimeType"`
	// Data is the standard base64 encoding of the file.
	Data string `json:"data"`
}

// ResumeRequest asks for one resume to be scored.
type ResumeRequest struct {
	JobDescription string   `json:"jobDescription"`
	Document       Document `json:"document"`
}

// ResumeResult is the model's evaluation of a resume.
type ResumeResult struct {
	CandidateName string   `json:"candidateName" jsonschema_description:"The candidate's full name from the resume."`
	OverallScore  int      `json:"overallScore" jsonschema:"minimum=0,maximum=100" jsonschema_description:"A score from 0-100 based on the resume's match to the job description."`
	Summary       string   `json:"summary" jsonschema_description:"A brief summary of the candidate's profile and fit for the role."`
	Strengths     []string `json:"strengths" jsonschema_description:"A list of key strengths and matching qualifications."`
	Weaknesses    []string `json:"weaknesses" jsonschema_description:"A list of potential weaknesses or areas lacking experience."`
	IsQualified   bool     `json:"isQualified" jsonschema_description:"A boolean indicating if the candidate is qualified for an interview."`
}

// InterviewRequest asks for one interview transcript to be analysed.
type InterviewRequest struct {
	JobRole    string         `json:"jobRole"`
	Transcript []session.Turn `json:"transcript"`
}

// InterviewResult is the model's evaluation of an interview.
type InterviewResult struct {
	IsQualified    bool     `json:"isQualified" jsonschema_description:"A boolean indicating if the candidate seems qualified based on the interview."`
	OverallScore   int      `json:"overallScore" jsonschema:"minimum=0,maximum=100" jsonschema_description:"A score from 0-100 based on the candidate's performance."`
	Summary        string   `json:"summary" jsonschema_description:"A brief summary of the candidate's interview performance and fit for the role."`
	Strengths      []string `json:"strengths" jsonschema_description:"A list of the candidate's key strengths observed during the interview."`
	Weaknesses     []string `json:"weaknesses" jsonschema_description:"A list of potential weaknesses or areas for improvement."`
	Recommendation string   `json:"recommendation" jsonschema_description:"A final recommendation, e.g., 'Proceed to next round', 'Hold for future consideration', 'Reject'."`
}

// Option is a functional option for [New].
type Option func(*Service)

// WithLogger sets the logger. The default is [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithMetrics records analysis latency and provider outcomes into m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithProviderName labels metrics and logs with the backend name.
func WithProviderName(name string) Option {
	return func(s *Service) { s.provider = name }
}

// WithMaxDocumentSize overrides [DefaultMaxDocumentSize].
func WithMaxDocumentSize(n int) Option {
	return func(s *Service) { s.maxDocument = n }
}

// WithTemperature sets the sampling temperature passed to the model.
func WithTemperature(t float64) Option {
	return func(s *Service) { s.temperature = t }
}

// Service runs screening requests against an [llm.Generator]. It is safe for
// concurrent use.
type Service struct {
	gen         llm.Generator
	log         *slog.Logger
	metrics     *observe.Metrics
	provider    string
	maxDocument int
	temperature float64

	resumeSchema    map[string]any
	interviewSchema map[string]any
}

// New creates a Service backed by gen.
func New(gen llm.Generator, opts ...Option) (*Service, error) {
	if gen == nil {
		return nil, errors.New("screening: generator must not be nil")
	}
	s := &Service{
		gen:         gen,
		log:         slog.Default(),
		provider:    "llm",
		maxDocument: DefaultMaxDocumentSize,
	}
	for _, o := range opts {
		o(s)
	}

	var err error
	if s.resumeSchema, err = tools.SchemaFor[ResumeResult](); err != nil {
		return nil, fmt.Errorf("screening: resume schema: %w", err)
	}
	if s.interviewSchema, err = tools.SchemaFor[InterviewResult](); err != nil {
		return nil, fmt.Errorf("screening: interview schema: %w", err)
	}
	return s, nil
}

// ScreenResume scores the attached resume against the job description.
func (s *Service) ScreenResume(ctx context.Context, req ResumeRequest) (ResumeResult, error) {
	doc, err := s.validateResume(req)
	if err != nil {
		return ResumeResult{}, err
	}

	var res ResumeResult
	err = s.generate(ctx, "resume", llm.Request{
		System:      recruiterSystem,
		Prompt:      resumePrompt(req.JobDescription),
		Document:    doc,
		Schema:      s.resumeSchema,
		Temperature: s.temperature,
	}, &res)
	if err != nil {
		return ResumeResult{}, fmt.Errorf("screening: screen resume: %w", err)
	}

	res.OverallScore = clampScore(res.OverallScore)
	res.Strengths = orEmpty(res.Strengths)
	res.Weaknesses = orEmpty(res.Weaknesses)
	return res, nil
}

// AnalyzeInterview evaluates a finished interview transcript.
func (s *Service) AnalyzeInterview(ctx context.Context, req InterviewRequest) (InterviewResult, error) {
	if strings.TrimSpace(req.JobRole) == "" {
		return InterviewResult{}, &ValidationError{Field: "jobRole", Message: "job role is required"}
	}
	history := FormatTranscript(req.Transcript)
	if history == "" {
		return InterviewResult{}, &ValidationError{Field: "transcript", Message: "transcript is empty"}
	}

	var res InterviewResult
	err := s.generate(ctx, "interview", llm.Request{
		System:      hrManagerSystem,
		Prompt:      interviewPrompt(req.JobRole, history),
		Schema:      s.interviewSchema,
		Temperature: s.temperature,
	}, &res)
	if err != nil {
		return InterviewResult{}, fmt.Errorf("screening: analyze interview: %w", err)
	}

	res.OverallScore = clampScore(res.OverallScore)
	res.Strengths = orEmpty(res.Strengths)
	res.Weaknesses = orEmpty(res.Weaknesses)
	return res, nil
}

func (s *Service) validateResume(req ResumeRequest) (*llm.Document, error) {
	if strings.TrimSpace(req.JobDescription) == "" {
		return nil, &ValidationError{Field: "jobDescription", Message: "job description is required"}
	}
	if req.Document.Data == "" {
		return nil, &ValidationError{Field: "document", Message: "resume document is required"}
	}
	if strings.TrimSpace(req.Document.MIMEType) == "" {
		return nil, &ValidationError{Field: "document.mimeType", Message: "document type is required"}
	}
	mime := strings.ToLower(strings.TrimSpace(strings.SplitN(req.Document.MIMEType, ";", 2)[0]))
	if !slices.Contains(SupportedDocumentTypes, mime) {
		return nil, fmt.Errorf("screening: %w: %s", llm.ErrUnsupportedDocument, req.Document.MIMEType)
	}
	data, err := base64.StdEncoding.DecodeString(req.Document.Data)
	if err != nil {
		return nil, &ValidationError{Field: "document.data", Message: "document is not valid base64"}
	}
	if s.maxDocument > 0 && len(data) > s.maxDocument {
		return nil, &ValidationError{Field: "document.data", Message: fmt.Sprintf("document exceeds %d bytes", s.maxDocument)}
	}
	return &llm.Document{MIMEType: mime, Data: data}, nil
}

// generate calls the model and decodes its answer into out.
func (s *Service) generate(ctx context.Context, kind string, req llm.Request, out any) error {
	start := time.Now()
	text, err := s.gen.GenerateJSON(ctx, req)
	if err == nil {
		if uerr := json.Unmarshal([]byte(text), out); uerr != nil {
			err = fmt.Errorf("%w: %v", ErrMalformedResult, uerr)
		}
	}
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		observe.Logger(ctx).Warn("analysis failed", "kind", kind, "provider", s.provider, "duration", elapsed, "err", err)
	} else {
		s.log.Debug("analysis complete", "kind", kind, "provider", s.provider, "duration", elapsed)
	}
	if s.metrics != nil {
		s.metrics.RecordProviderRequest(ctx, s.provider, kind, status)
		s.metrics.AnalysisDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(observe.Attr("kind", kind)))
		if err != nil {
			s.metrics.RecordProviderError(ctx, s.provider, kind)
		}
	}
	return err
}

// FormatTranscript renders turns as "Candidate: ..." and "Interviewer: ..."
// lines, skipping empty turns.
func FormatTranscript(turns []session.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		if t.Speaker == session.SpeakerUser {
			b.WriteString("Candidate: ")
		} else {
			b.WriteString("Interviewer: ")
		}
		b.WriteString(text)
	}
	return b.String()
}

func clampScore(v int) int {
	return min(max(v, 0), 100)
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
