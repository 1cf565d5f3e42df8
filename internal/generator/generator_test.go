package generator

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	laberrors "github.com/DanaKeydar-LabOS/lab-ai/internal/errors"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/llm"
	"github.com/DanaKeydar-LabOS/lab-ai/internal/logging"
)

type fakeService struct {
	completion string
	err        error
	prompts    []string
}

func (f *fakeService) Complete(_ context.Context, prompt string, _ llm.Options) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.completion, f.err
}

func testLogger() *logging.Logger {
	return logging.NewTestLogger(&bytes.Buffer{}, "error")
}

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name       string
		completion string
		want       string
		wantErr    bool
	}{
		{
			name:       "fenced sql block",
			completion: "Here is the query:\n```sql\nSELECT * FROM ao\nWHERE aodate >= 20250818\n```\nHope that helps!",
			want:       "SELECT * FROM ao WHERE aodate >= 20250818",
		},
		{
			name:       "fenced block without language tag",
			completion: "```\nSELECT aoordno FROM ao\n```",
			want:       "SELECT aoordno FROM ao",
		},
		{
			name:       "labeled output",
			completion: "SQL_QUERY: SELECT count(*) FROM rr",
			want:       "SELECT count(*) FROM rr",
		},
		{
			name:       "bare select with prose prefix",
			completion: "The statement you need is SELECT o.ordno FROM o WHERE o.cid = 5; let me know if you need more.",
			want:       "SELECT o.ordno FROM o WHERE o.cid = 5",
		},
		{
			name:       "trailing semicolon stripped",
			completion: "```sql\nSELECT 1;\n```",
			want:       "SELECT 1",
		},
		{
			name:       "no answer sentinel",
			completion: "NO_ANSWER",
			wantErr:    true,
		},
		{
			name:       "empty completion",
			completion: "   \n ",
			wantErr:    true,
		},
		{
			name:       "no sql at all",
			completion: "I am sorry, I cannot help with that.",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractSQL(tt.completion)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, laberrors.IsType(err, laberrors.ErrTypeGenerationParse))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerate(t *testing.T) {
	service := &fakeService{completion: "```sql\nSELECT * FROM ao\n```"}
	gen := New(service, Config{MaxTokens: 512, Temperature: 0}, testLogger())

	sql, err := gen.Generate(context.Background(), "the prompt")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM ao", sql)
	assert.Equal(t, []string{"the prompt"}, service.prompts)
}

func TestGenerateServiceFailure(t *testing.T) {
	service := &fakeService{err: errors.New("model unreachable")}
	gen := New(service, Config{}, testLogger())

	_, err := gen.Generate(context.Background(), "the prompt")
	require.Error(t, err)
	assert.True(t, laberrors.IsType(err, laberrors.ErrTypeGeneration))
}

func TestGenerateUnparsableCompletion(t *testing.T) {
	service := &fakeService{completion: "no sql here"}
	gen := New(service, Config{}, testLogger())

	_, err := gen.Generate(context.Background(), "the prompt")
	require.Error(t, err)
	assert.True(t, laberrors.IsType(err, laberrors.ErrTypeGenerationParse))
}
