// Package logger builds the zap application logger and writes the redacted
// execution log of guardrailed GenAI requests.
package logger

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/labhacker007/Joti-sub001/internal/guardrail"
	"github.com/labhacker007/Joti-sub001/internal/redact"
)

// defaultMaxLogBytes is the size at which the log is rotated to path.1 on open.
const defaultMaxLogBytes = 10 << 20

// ExecutionRecord is one terminal engine outcome. Prompts, output and
// messages are redacted before they reach disk.
type ExecutionRecord struct {
	Timestamp   string             `json:"timestamp"`
	RequestID   string             `json:"request_id"`
	Function    string             `json:"function"`
	Platform    string             `json:"platform,omitempty"`
	User        string             `json:"user,omitempty"`
	State       string             `json:"state"`
	FinalAction string             `json:"final_action,omitempty"`
	ModelUsed   string             `json:"model_used,omitempty"`
	RetryCount  int                `json:"retry_count"`
	Violations  []guardrail.Result `json:"violations,omitempty"`
	UserPrompt  string             `json:"user_prompt,omitempty"`
	Output      string             `json:"output,omitempty"`
	Error       string             `json:"error,omitempty"`
	DurationMs  int64              `json:"duration_ms"`
}

// Blocked reports whether the request did not produce usable output.
func (r ExecutionRecord) Blocked() bool {
	return r.State != "ACCEPTED"
}

type ExecutionLog struct {
	file *os.File
	mu   sync.Mutex
}

func NewExecutionLog(path string) (*ExecutionLog, error) {
	if err := rotate(path, defaultMaxLogBytes); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	return &ExecutionLog{file: file}, nil
}

func rotate(path string, limit int64) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() < limit {
		return nil
	}
	return os.Rename(path, path+".1")
}

func (l *ExecutionLog) Log(rec ExecutionRecord) error {
	rec.UserPrompt = redact.Redact(rec.UserPrompt)
	rec.Output = redact.Redact(rec.Output)
	if rec.Error != "" {
		rec.Error = redact.Redact(rec.Error)
	}
	if len(rec.Violations) > 0 {
		vs := make([]guardrail.Result, len(rec.Violations))
		for i, v := range rec.Violations {
			v.Message = redact.Redact(v.Message)
			vs[i] = v
		}
		rec.Violations = vs
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.file.Write(data)
	return err
}

func (l *ExecutionLog) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// ReadExecutionLog returns every well-formed record in path. A missing file
// yields no records.
func ReadExecutionLog(path string) ([]ExecutionRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var records []ExecutionRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		var rec ExecutionRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue // skip malformed lines
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}
