package statuslog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	contractx "github.com/techflowhq/support-agent/agent/contract"
)

// FileSink appends status actions to a tab-separated log file. It is the only
// mutable resource shared across concurrent conversations, so appends are
// serialized; partial lines never interleave.
type FileSink struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func NewFileSink(path string) *FileSink {
	return &FileSink{
		path: path,
		now:  time.Now,
	}
}

// Append writes one record, creating the target location if absent. Errors
// are reported to the caller; the tool layer converts them into a failure the
// agent relays conversationally.
func (s *FileSink) Append(_ context.Context, entry contractx.StatusEntry) error {
	customerID := strings.TrimSpace(entry.CustomerID)
	action := strings.TrimSpace(entry.Action)
	if customerID == "" || action == "" {
		return fmt.Errorf("status entry requires customer_id and action")
	}

	at := entry.At
	if at.IsZero() {
		at = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create status log dir: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open status log: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s\t%s\t%s\n", at.UTC().Format(time.RFC3339), customerID, action)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write status log: %w", err)
	}
	return nil
}
