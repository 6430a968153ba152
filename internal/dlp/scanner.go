package dlp

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Violation describes an upload policy failure.
type Violation struct {
	Rule   string
	Detail string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("upload policy violation (%s): %s", v.Rule, v.Detail)
}

// File is the subset of an uploaded resume the scanner inspects.
type File struct {
	Name string
	Size int64
	Data []byte
}

// Scanner executes policy checks on uploaded resumes before they reach storage.
type Scanner interface {
	ScanFile(ctx context.Context, file File) error
	Enforced() bool
}

// RuleScanner performs extension, size and signature checks.
type RuleScanner struct {
	allowedExt        map[string]struct{}
	blockedExt        map[string]struct{}
	maxFileSize       int64
	avSignatures      [][]byte
	enforceViolations bool
}

// DefaultAllowedExtensions are the resume formats the screening workflow parses.
var DefaultAllowedExtensions = []string{".pdf", ".doc", ".docx", ".txt", ".rtf", ".odt"}

// NewRuleScanner builds an enforcing scanner with the default resume policy.
func NewRuleScanner() *RuleScanner {
	s := &RuleScanner{
		allowedExt: extSet(DefaultAllowedExtensions),
		blockedExt: extSet([]string{".exe", ".bat", ".ps1", ".js"}),
		// 10 MiB, the largest resume the workflow accepts.
		maxFileSize:       10 << 20,
		enforceViolations: true,
	}
	return s
}

// NewRuleScannerFromEnv builds a scanner from environment variables.
// It can be disabled entirely via DLP_DISABLED=true.
func NewRuleScannerFromEnv() Scanner {
	if strings.EqualFold(os.Getenv("DLP_DISABLED"), "true") {
		return nil
	}

	s := NewRuleScanner()
	s.enforceViolations = !strings.EqualFold(os.Getenv("DLP_MODE"), "monitor")

	if raw := os.Getenv("DLP_ALLOWED_EXTENSIONS"); raw != "" {
		s.allowedExt = extSet(strings.Split(raw, ","))
	}
	if raw := os.Getenv("DLP_BLOCKED_EXTENSIONS"); raw != "" {
		s.blockedExt = extSet(strings.Split(raw, ","))
	}
	if raw := os.Getenv("DLP_MAX_FILE_SIZE"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			s.maxFileSize = v
		}
	}
	if raw := os.Getenv("DLP_AV_PATTERNS"); raw != "" {
		for _, pat := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(pat); trimmed != "" {
				s.avSignatures = append(s.avSignatures, []byte(trimmed))
			}
		}
	}
	return s
}

// WithSignatures adds byte signatures that reject a file when present.
func (s *RuleScanner) WithSignatures(sigs ...string) *RuleScanner {
	for _, sig := range sigs {
		if sig != "" {
			s.avSignatures = append(s.avSignatures, []byte(sig))
		}
	}
	return s
}

func (s *RuleScanner) Enforced() bool {
	return s.enforceViolations
}

func (s *RuleScanner) ScanFile(_ context.Context, file File) error {
	ext := strings.ToLower(filepath.Ext(file.Name))
	if _, blocked := s.blockedExt[ext]; blocked {
		return &Violation{
			Rule:   "blocked_extension",
			Detail: fmt.Sprintf("extension %q not allowed", ext),
		}
	}
	if len(s.allowedExt) > 0 {
		if _, ok := s.allowedExt[ext]; !ok {
			return &Violation{
				Rule:   "unsupported_extension",
				Detail: fmt.Sprintf("extension %q is not a supported resume format", ext),
			}
		}
	}
	if file.Size == 0 && len(file.Data) == 0 {
		return &Violation{Rule: "empty_file", Detail: fmt.Sprintf("%s is empty", file.Name)}
	}
	if s.maxFileSize > 0 && file.Size > s.maxFileSize {
		return &Violation{
			Rule:   "max_file_size",
			Detail: fmt.Sprintf("file size %d exceeds limit %d", file.Size, s.maxFileSize),
		}
	}
	for _, sig := range s.avSignatures {
		if len(sig) > 0 && bytes.Contains(file.Data, sig) {
			return &Violation{
				Rule:   "av_signature",
				Detail: fmt.Sprintf("%s matched AV signature", file.Name),
			}
		}
	}
	return nil
}

func extSet(exts []string) map[string]struct{} {
	out := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out[ext] = struct{}{}
	}
	return out
}
