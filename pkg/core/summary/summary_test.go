package summary

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vango-go/vai-wingman/pkg/core"
	"github.com/vango-go/vai-wingman/pkg/core/providers/gemini"
)

type fakeGenerator struct {
	reply string
	err   error
	req   gemini.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req gemini.Request) (string, error) {
	f.req = req
	return f.reply, f.err
}

const validJSON = `{"overview":"Discussed migration.","key_points":["Scope is two services"],"action_items":[],
"key_moments":[{"timestamp":"00:02:10","speaker":"Speaker 1","description":"Asked about pricing"}]}`

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		keyMoments bool
		wantErr    bool
	}{
		{"valid", validJSON, true, false},
		{"fenced", "```json\n" + validJSON + "\n```", true, false},
		{"key moments optional when off", `{"overview":"x","key_points":[],"action_items":[]}`, false, false},
		{"key moments required when on", `{"overview":"x","key_points":[],"action_items":[]}`, true, true},
		{"missing overview", `{"key_points":[],"action_items":[]}`, false, true},
		{"missing action items", `{"overview":"x","key_points":[]}`, false, true},
		{"blank key point", `{"overview":"x","key_points":[" "],"action_items":[]}`, false, true},
		{"not json", "The meeting went well.", false, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Parse(tc.raw, tc.keyMoments)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidSummary) {
					t.Fatalf("err=%v, want ErrInvalidSummary", err)
				}
				if core.TypeOf(err) != core.ErrSummaryInvalid {
					t.Fatalf("type=%q, want summary_invalid", core.TypeOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if s.Overview == "" {
				t.Fatal("overview not decoded")
			}
		})
	}
}

func TestParse_DropsKeyMomentsWhenOff(t *testing.T) {
	s, err := Parse(validJSON, false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.KeyMoments != nil {
		t.Fatalf("key moments=%v, want dropped", s.KeyMoments)
	}
}

func TestSummarizer_RequestsJSONAndValidates(t *testing.T) {
	gen := &fakeGenerator{reply: validJSON}
	s := NewSummarizer(gen, "gemini-2.5-flash")
	got, err := s.Summarize(context.Background(), Request{
		Transcript: []Line{{Timestamp: "00:00:01", Speaker: "Speaker 1", Text: "Hello there."}},
		KeyMoments: true,
	})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(got.KeyMoments) != 1 {
		t.Fatalf("key moments=%d, want 1", len(got.KeyMoments))
	}
	if !gen.req.JSON || gen.req.Model != "gemini-2.5-flash" {
		t.Fatalf("request=%+v, want JSON mode with model", gen.req)
	}
	if !strings.Contains(gen.req.Prompt, "key_moments") || !strings.Contains(gen.req.Prompt, "Speaker 1: Hello there.") {
		t.Fatalf("prompt missing schema or transcript:\n%s", gen.req.Prompt)
	}
}

func TestSummarizer_ProviderFailure(t *testing.T) {
	gen := &fakeGenerator{err: core.NewAuthenticationError("bad key")}
	_, err := NewSummarizer(gen, "").Summarize(context.Background(), Request{Transcript: []Line{{Text: "hi"}}})
	if core.TypeOf(err) != core.ErrAuthentication {
		t.Fatalf("err=%v, want authentication error", err)
	}
}

func TestBuildPrompt_OmitsKeyMomentsWhenOff(t *testing.T) {
	p := BuildPrompt(Request{Transcript: []Line{{Text: "hi"}}})
	if strings.Contains(p, "key_moments") {
		t.Fatal("prompt should not ask for key moments")
	}
}
