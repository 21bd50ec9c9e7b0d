package screening_test

import (
	"context"
	"encoding/base64"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/synergy/internal/screening"
	"github.com/MrWong99/synergy/internal/session"
	"github.com/MrWong99/synergy/pkg/provider/llm"
	"github.com/MrWong99/synergy/pkg/provider/llm/mock"
)

func newService(t *testing.T, g *mock.Generator) *screening.Service {
	t.Helper()
	s, err := screening.New(g)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func resumeRequest(data []byte) screening.ResumeRequest {
	return screening.ResumeRequest{
		JobDescription: "Senior Go engineer with distributed systems experience.",
		Document: screening.Document{
			MIMEType: "application/pdf",
			Data:     base64.StdEncoding.EncodeToString(data),
		},
	}
}

func TestNew_NilGenerator(t *testing.T) {
	t.Parallel()
	if _, err := screening.New(nil); err == nil {
		t.Fatal("expected error for nil generator")
	}
}

func TestScreenResume_Success(t *testing.T) {
	t.Parallel()
	g := &mock.Generator{Response: `{
		"candidateName": "Jane Roe",
		"overallScore": 82,
		"summary": "Strong backend profile.",
		"strengths": ["Go", "Kubernetes"],
		"weaknesses": ["Little frontend work"],
		"isQualified": true
	}`}
	s := newService(t, g)

	res, err := s.ScreenResume(context.Background(), resumeRequest([]byte("%PDF-1.4 resume")))
	if err != nil {
		t.Fatalf("ScreenResume: %v", err)
	}
	if res.CandidateName != "Jane Roe" || res.OverallScore != 82 || !res.IsQualified {
		t.Errorf("unexpected result: %+v", res)
	}
	if !slices.Equal(res.Strengths, []string{"Go", "Kubernetes"}) {
		t.Errorf("Strengths = %v", res.Strengths)
	}

	req := g.LastRequest()
	if req.Document == nil {
		t.Fatal("request carries no document")
	}
	if req.Document.MIMEType != "application/pdf" || string(req.Document.Data) != "%PDF-1.4 resume" {
		t.Errorf("document = %q %q", req.Document.MIMEType, req.Document.Data)
	}
	if !strings.Contains(req.Prompt, "**Job Description:**\nSenior Go engineer") {
		t.Errorf("prompt missing job description: %q", req.Prompt)
	}
	if !strings.Contains(req.System, "HR Recruiter") {
		t.Errorf("system = %q", req.System)
	}

	props, _ := req.Schema["properties"].(map[string]any)
	for _, name := range []string{"candidateName", "overallScore", "summary", "strengths", "weaknesses", "isQualified"} {
		if _, ok := props[name]; !ok {
			t.Errorf("schema missing property %q", name)
		}
	}
	required, _ := req.Schema["required"].([]any)
	if len(required) != 6 {
		t.Errorf("required = %v, want all 6 fields", required)
	}
	score, _ := props["overallScore"].(map[string]any)
	if score["type"] != "integer" {
		t.Errorf("overallScore type = %v", score["type"])
	}
}

func TestScreenResume_Validation(t *testing.T) {
	t.Parallel()
	valid := resumeRequest([]byte("resume"))

	tests := []struct {
		name  string
		mod   func(*screening.ResumeRequest)
		field string
	}{
		{"empty job description", func(r *screening.ResumeRequest) { r.JobDescription = "  \n" }, "jobDescription"},
		{"missing document", func(r *screening.ResumeRequest) { r.Document.Data = "" }, "document"},
		{"missing mime type", func(r *screening.ResumeRequest) { r.Document.MIMEType = "" }, "document.mimeType"},
		{"bad base64", func(r *screening.ResumeRequest) { r.Document.Data = "!!not base64!!" }, "document.data"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			g := &mock.Generator{Response: `{}`}
			s := newService(t, g)
			req := valid
			tc.mod(&req)

			_, err := s.ScreenResume(context.Background(), req)
			var verr *screening.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if verr.Field != tc.field {
				t.Errorf("Field = %q, want %q", verr.Field, tc.field)
			}
			if g.CallCount() != 0 {
				t.Errorf("generator called %d times, want 0", g.CallCount())
			}
		})
	}
}

func TestScreenResume_DocumentTooLarge(t *testing.T) {
	t.Parallel()
	g := &mock.Generator{Response: `{}`}
	s, err := screening.New(g, screening.WithMaxDocumentSize(4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = s.ScreenResume(context.Background(), resumeRequest([]byte("12345")))
	var verr *screening.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if g.CallCount() != 0 {
		t.Errorf("generator called %d times, want 0", g.CallCount())
	}
}

func TestScreenResume_ClampsScore(t *testing.T) {
	t.Parallel()
	tests := []struct {
		resp string
		want int
	}{
		{`{"overallScore": 140}`, 100},
		{`{"overallScore": -3}`, 0},
		{`{"overallScore": 55}`, 55},
	}
	for _, tc := range tests {
		s := newService(t, &mock.Generator{Response: tc.resp})
		res, err := s.ScreenResume(context.Background(), resumeRequest([]byte("cv")))
		if err != nil {
			t.Fatalf("ScreenResume(%s): %v", tc.resp, err)
		}
		if res.OverallScore != tc.want {
			t.Errorf("ScreenResume(%s).OverallScore = %d, want %d", tc.resp, res.OverallScore, tc.want)
		}
		if res.Strengths == nil || res.Weaknesses == nil {
			t.Errorf("nil lists in %+v", res)
		}
	}
}

func TestScreenResume_BackendError(t *testing.T) {
	t.Parallel()
	boom := errors.New("quota exceeded")
	s := newService(t, &mock.Generator{Err: boom})

	_, err := s.ScreenResume(context.Background(), resumeRequest([]byte("cv")))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
	var verr *screening.ValidationError
	if errors.As(err, &verr) {
		t.Error("backend failure reported as validation error")
	}
}

func TestScreenResume_MalformedResult(t *testing.T) {
	t.Parallel()
	s := newService(t, &mock.Generator{Response: `not json`})

	_, err := s.ScreenResume(context.Background(), resumeRequest([]byte("cv")))
	if !errors.Is(err, screening.ErrMalformedResult) {
		t.Fatalf("err = %v, want ErrMalformedResult", err)
	}
}

func TestAnalyzeInterview_Success(t *testing.T) {
	t.Parallel()
	g := &mock.Generator{Response: `{
		"isQualified": true,
		"overallScore": 77,
		"summary": "Clear communicator.",
		"strengths": ["Communication"],
		"weaknesses": [],
		"recommendation": "Proceed to next round"
	}`}
	s := newService(t, g)

	res, err := s.AnalyzeInterview(context.Background(), screening.InterviewRequest{
		JobRole: "Product Manager",
		Transcript: []session.Turn{
			{Speaker: session.SpeakerModel, Text: "Tell me about yourself."},
			{Speaker: session.SpeakerUser, Text: "I have led three product launches."},
		},
	})
	if err != nil {
		t.Fatalf("AnalyzeInterview: %v", err)
	}
	if res.OverallScore != 77 || res.Recommendation != "Proceed to next round" || !res.IsQualified {
		t.Errorf("unexpected result: %+v", res)
	}

	req := g.LastRequest()
	if req.Document != nil {
		t.Error("interview analysis must not attach a document")
	}
	if !strings.Contains(req.Prompt, "role of: **Product Manager**") {
		t.Errorf("prompt missing role: %q", req.Prompt)
	}
	want := "Interviewer: Tell me about yourself.\nCandidate: I have led three product launches."
	if !strings.Contains(req.Prompt, want) {
		t.Errorf("prompt missing history %q:\n%s", want, req.Prompt)
	}
	props, _ := req.Schema["properties"].(map[string]any)
	if _, ok := props["recommendation"]; !ok {
		t.Error("schema missing recommendation")
	}
}

func TestAnalyzeInterview_Validation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		req   screening.InterviewRequest
		field string
	}{
		{"empty role", screening.InterviewRequest{Transcript: []session.Turn{{Speaker: session.SpeakerUser, Text: "hi"}}}, "jobRole"},
		{"nil transcript", screening.InterviewRequest{JobRole: "Designer"}, "transcript"},
		{"blank turns", screening.InterviewRequest{JobRole: "Designer", Transcript: []session.Turn{{Speaker: session.SpeakerUser, Text: "  "}}}, "transcript"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			g := &mock.Generator{Response: `{}`}
			s := newService(t, g)
			_, err := s.AnalyzeInterview(context.Background(), tc.req)
			var verr *screening.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if verr.Field != tc.field {
				t.Errorf("Field = %q, want %q", verr.Field, tc.field)
			}
			if g.CallCount() != 0 {
				t.Errorf("generator called %d times, want 0", g.CallCount())
			}
		})
	}
}

func TestFormatTranscript(t *testing.T) {
	t.Parallel()
	got := screening.FormatTranscript([]session.Turn{
		{Speaker: session.SpeakerModel, Text: " Hello. "},
		{Speaker: session.SpeakerUser, Text: ""},
		{Speaker: session.SpeakerUser, Text: "Hi there"},
	})
	want := "Interviewer: Hello.\nCandidate: Hi there"
	if got != want {
		t.Errorf("FormatTranscript = %q, want %q", got, want)
	}
}

func TestScreenResume_UnsupportedDocument(t *testing.T) {
	t.Parallel()
	g := &mock.Generator{Response: `{}`}
	s := newService(t, g)
	req := resumeRequest([]byte("GIF89a"))
	req.Document.MIMEType = "image/gif"

	_, err := s.ScreenResume(context.Background(), req)
	if !errors.Is(err, llm.ErrUnsupportedDocument) {
		t.Fatalf("err = %v, want ErrUnsupportedDocument", err)
	}
	if g.CallCount() != 0 {
		t.Errorf("generator called %d times, want 0", g.CallCount())
	}
}

func TestScreenResume_NormalisesMIMEType(t *testing.T) {
	t.Parallel()
	g := &mock.Generator{Response: `{"overallScore": 10}`}
	s := newService(t, g)
	req := resumeRequest([]byte("plain resume"))
	req.Document.MIMEType = "Text/Plain; charset=utf-8"

	if _, err := s.ScreenResume(context.Background(), req); err != nil {
		t.Fatalf("ScreenResume: %v", err)
	}
	if got := g.LastRequest().Document.MIMEType; got != "text/plain" {
		t.Errorf("MIMEType = %q, want text/plain", got)
	}
}
