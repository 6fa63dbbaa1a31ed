package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/3-lines-studio/toast/internal/core"
)

const EnvRenderSocket = "TOAST_RENDER_SOCKET"

type Options struct {
	Node         string
	SiteDir      string
	StartTimeout time.Duration
	Stdout       io.Writer
	Stderr       io.Writer
}

// Renderer is a long running node process that server renders compiled
// component modules over a unix socket.
type Renderer struct {
	cmd    *exec.Cmd
	socket string
	client *http.Client
}

// RenderRequest asks the node process to render one module.
type RenderRequest struct {
	Path     string         `json:"path"`
	Props    map[string]any `json:"props"`
	Children string         `json:"children"`
}

func NewRenderer(opts Options) (*Renderer, error) {
	if opts.Node == "" {
		opts.Node = "node"
	}
	if opts.StartTimeout == 0 {
		opts.StartTimeout = 5 * time.Second
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	script, err := ExtractRenderer(filepath.Join(opts.SiteDir, TmpDir))
	if err != nil {
		return nil, err
	}

	socket := filepath.Join(os.TempDir(), fmt.Sprintf("toast-render-%s.sock", uuid.NewString()))

	cmd := exec.Command(opts.Node, script)
	cmd.Dir = opts.SiteDir
	cmd.Env = append(os.Environ(), EnvRenderSocket+"="+socket)
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start node: %w", err)
	}

	if err := waitForSocket(socket, opts.StartTimeout); err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		},
	}

	return &Renderer{
		cmd:    cmd,
		socket: socket,
		client: &http.Client{Transport: transport},
	}, nil
}

func (r *Renderer) Stop() error {
	err := r.cmd.Process.Kill()
	_ = r.cmd.Wait()
	_ = os.Remove(r.socket)
	return err
}

func (r *Renderer) Render(ctx context.Context, req RenderRequest) (core.Fragment, error) {
	var result struct {
		HTML string `json:"html"`
		Head *struct {
			Title string   `json:"title"`
			Tags  []string `json:"tags"`
		} `json:"head"`
		Error *struct {
			Message string `json:"message"`
			Stack   string `json:"stack"`
		} `json:"error"`
	}

	if err := r.postJSON(ctx, "/render", req, &result); err != nil {
		return core.Fragment{}, err
	}

	if result.Error != nil {
		var sb strings.Builder
		sb.WriteString(result.Error.Message)
		if result.Error.Stack != "" {
			fmt.Fprintf(&sb, "\n\nStack:\n%s", result.Error.Stack)
		}
		return core.Fragment{}, fmt.Errorf("%s", sb.String())
	}

	frag := core.Fragment{HTML: result.HTML}
	if result.Head != nil {
		frag.Head = core.Head{Title: result.Head.Title, Tags: result.Head.Tags}
	}
	return frag, nil
}

func (r *Renderer) postJSON(ctx context.Context, endpoint string, body any, result any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://localhost"+endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("renderer returned %s", resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

func waitForSocket(path string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for node socket at %s", path)
}

// LookNode resolves the node binary on PATH.
func LookNode(node string) (string, error) {
	if node == "" {
		node = "node"
	}
	return exec.LookPath(node)
}
