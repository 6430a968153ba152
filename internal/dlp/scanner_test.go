package dlp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleScannerRules(t *testing.T) {
	s := NewRuleScanner().WithSignatures("EICAR-STANDARD")

	tests := []struct {
		name     string
		file     File
		wantRule string
	}{
		{"pdf ok", File{Name: "jane.pdf", Size: 5, Data: []byte("%PDF-")}, ""},
		{"docx upper ok", File{Name: "JANE.DOCX", Size: 2, Data: []byte("PK")}, ""},
		{"blocked exe", File{Name: "resume.exe", Size: 2, Data: []byte("MZ")}, "blocked_extension"},
		{"unsupported png", File{Name: "photo.png", Size: 3, Data: []byte("png")}, "unsupported_extension"},
		{"empty", File{Name: "blank.txt"}, "empty_file"},
		{"too big", File{Name: "big.pdf", Size: 11 << 20, Data: []byte("x")}, "max_file_size"},
		{"signature", File{Name: "cv.txt", Size: 20, Data: []byte("hello EICAR-STANDARD")}, "av_signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ScanFile(context.Background(), tt.file)
			if tt.wantRule == "" {
				require.NoError(t, err)
				return
			}
			var v *Violation
			require.True(t, errors.As(err, &v), "expected violation, got %v", err)
			assert.Equal(t, tt.wantRule, v.Rule)
		})
	}
}

func TestNewRuleScannerFromEnv(t *testing.T) {
	t.Setenv("DLP_DISABLED", "true")
	assert.Nil(t, NewRuleScannerFromEnv())

	t.Setenv("DLP_DISABLED", "")
	t.Setenv("DLP_MODE", "monitor")
	t.Setenv("DLP_ALLOWED_EXTENSIONS", "pdf, md")
	t.Setenv("DLP_MAX_FILE_SIZE", "4")
	s := NewRuleScannerFromEnv()
	require.NotNil(t, s)
	assert.False(t, s.Enforced())

	assert.NoError(t, s.ScanFile(context.Background(), File{Name: "notes.md", Size: 3, Data: []byte("abc")}))
	assert.Error(t, s.ScanFile(context.Background(), File{Name: "cv.docx", Size: 3, Data: []byte("abc")}))
	assert.Error(t, s.ScanFile(context.Background(), File{Name: "cv.pdf", Size: 5, Data: []byte("abcde")}))
}
