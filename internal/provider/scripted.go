package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNoReply is returned by Scripted when an action has no queued reply.
var ErrNoReply = errors.New("no scripted reply")

// Reply is one canned response. If Fail is set the call fails with a
// provider error of that kind instead of returning Text.
type Reply struct {
	Text         string        `yaml:"text"`
	InputTokens  int64         `yaml:"input_tokens"`
	OutputTokens int64         `yaml:"output_tokens"`
	Fail         ErrorKind     `yaml:"fail"`
	Delay        time.Duration `yaml:"delay"`
}

// Scripted is a Client that replays queued replies per action, in order.
// The last reply of an action is sticky: once the queue is down to one
// entry it is returned for every further call.
type Scripted struct {
	mu      sync.Mutex
	replies map[string][]Reply
	calls   []Request
}

// NewScripted creates an empty scripted client.
func NewScripted() *Scripted {
	return &Scripted{replies: make(map[string][]Reply)}
}

// LoadScript reads a YAML file mapping action names to reply lists:
//
//	add-faq:
//	  - text: '{"fragment": "## FAQ"}'
//	    input_tokens: 120
//	    output_tokens: 40
func LoadScript(path string) (*Scripted, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("provider: reading script: %w", err)
	}
	var script map[string][]Reply
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("provider: parsing script %s: %w", path, err)
	}
	s := NewScripted()
	for action, replies := range script {
		s.Push(action, replies...)
	}
	return s, nil
}

// Push queues replies for action.
func (s *Scripted) Push(action string, replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[action] = append(s.replies[action], replies...)
}

// Calls returns every request received so far.
func (s *Scripted) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.calls...)
}

// Generate returns the next reply for req.Action.
func (s *Scripted) Generate(ctx context.Context, req Request) (Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	queue := s.replies[req.Action]
	if len(queue) == 0 {
		s.mu.Unlock()
		return Response{}, fmt.Errorf("%w for action %s", ErrNoReply, req.Action)
	}
	reply := queue[0]
	if len(queue) > 1 {
		s.replies[req.Action] = queue[1:]
	}
	s.mu.Unlock()

	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-ctx.Done():
			return Response{}, &Error{Kind: KindTimeout, Err: ctx.Err()}
		}
	}

	if reply.Fail != "" {
		return Response{}, &Error{Kind: reply.Fail, Err: fmt.Errorf("scripted %s failure", reply.Fail)}
	}

	resp := Response{Text: reply.Text}
	if reply.InputTokens > 0 || reply.OutputTokens > 0 {
		resp.Usage = &Usage{InputTokens: reply.InputTokens, OutputTokens: reply.OutputTokens}
	}
	return resp, nil
}
