package synth

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
)

// helperProc wraps a long-lived synthesis helper subprocess speaking
// line-delimited JSON over stdin/stdout. The helper loads its model once at
// startup, which is why the process is kept alive across synthesize calls.
type helperProc struct {
	args       []string
	sampleRate int

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

type helperRequest struct {
	Text       string `json:"text"`
	Voice      string `json:"voice"`
	Language   string `json:"language"`
	SampleRate int    `json:"sample_rate"`
}

type helperResponse struct {
	PCMBase64  string `json:"pcm_base64"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Error      string `json:"error,omitempty"`
}

func newHelperProc(command string, sampleRate int) (*helperProc, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse helper command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("helper command empty")
	}
	return &helperProc{args: args, sampleRate: sampleRate}, nil
}

func (h *helperProc) start() error {
	cmd := exec.Command(h.args[0], h.args[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start helper %s: %w", h.args[0], err)
	}
	h.cmd = cmd
	h.stdin = stdin
	h.stdout = bufio.NewReader(stdout)
	return nil
}

// synthesize sends one request and reads one response. Calls are serialized:
// the helper holds a single model instance and answers in order.
func (h *helperProc) synthesize(ctx context.Context, engine string, req helperRequest) (*Segment, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cmd == nil {
		if err := h.start(); err != nil {
			return nil, &SynthesisError{Engine: engine, Err: err}
		}
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, &SynthesisError{Engine: engine, Err: err}
	}
	data = append(data, '\n')

	type result struct {
		seg *Segment
		err error
	}
	done := make(chan result, 1)
	go func() {
		if _, err := h.stdin.Write(data); err != nil {
			done <- result{err: fmt.Errorf("write request: %w", err)}
			return
		}
		line, err := h.stdout.ReadBytes('\n')
		if err != nil {
			done <- result{err: fmt.Errorf("read response: %w", err)}
			return
		}
		var resp helperResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			done <- result{err: fmt.Errorf("decode response: %w", err)}
			return
		}
		if resp.Error != "" {
			done <- result{err: fmt.Errorf("helper: %s", resp.Error)}
			return
		}
		pcmBytes, err := base64.StdEncoding.DecodeString(resp.PCMBase64)
		if err != nil {
			done <- result{err: fmt.Errorf("decode pcm: %w", err)}
			return
		}
		rate := resp.SampleRate
		if rate == 0 {
			rate = h.sampleRate
		}
		channels := resp.Channels
		if channels == 0 {
			channels = 1
		}
		done <- result{seg: &Segment{
			SampleRate: rate,
			Channels:   channels,
			PCM:        bytesToPCM(pcmBytes),
		}}
	}()

	select {
	case <-ctx.Done():
		h.kill()
		return nil, &SynthesisError{Engine: engine, Err: ctx.Err()}
	case res := <-done:
		if res.err != nil {
			return nil, &SynthesisError{Engine: engine, Err: res.err}
		}
		return res.seg, nil
	}
}

func (h *helperProc) kill() {
	if h.cmd != nil && h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
		_ = h.cmd.Wait()
	}
	h.cmd = nil
	h.stdin = nil
	h.stdout = nil
}

func (h *helperProc) close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cmd == nil {
		return nil
	}
	_ = h.stdin.Close()
	err := h.cmd.Wait()
	h.cmd = nil
	h.stdin = nil
	h.stdout = nil
	return err
}

// bytesToPCM converts little-endian 16-bit sample bytes to ints. A trailing
// odd byte is dropped.
func bytesToPCM(b []byte) []int {
	pcm := make([]int, len(b)/2)
	for i := range pcm {
		pcm[i] = int(int16(binary.LittleEndian.Uint16(b[i*2:])))
	}
	return pcm
}

// pcmToBytes is the inverse of bytesToPCM.
func pcmToBytes(pcm []int) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(int16(s)))
	}
	return b
}
