package browser

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
)

// command is one request to the helper process
type command struct {
	ID       string   `json:"id"`
	Op       string   `json:"op"`
	URL      string   `json:"url,omitempty"`
	Selector string   `json:"selector,omitempty"`
	Value    string   `json:"value,omitempty"`
	Script   string   `json:"script,omitempty"`
	Pattern  string   `json:"pattern,omitempty"`
	Kind     string   `json:"kind,omitempty"`
	Cookies  []Cookie `json:"cookies,omitempty"`
}

// reply is one response from the helper process
type reply struct {
	ID      string   `json:"id"`
	OK      bool     `json:"ok"`
	Value   string   `json:"value,omitempty"`
	Exists  bool     `json:"exists,omitempty"`
	Cookies []Cookie `json:"cookies,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// ExecDriver drives the external automation helper over line-delimited JSON
// on stdin/stdout. One driver owns one helper process and one page context.
type ExecDriver struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	cancel context.CancelFunc

	mu      sync.Mutex
	nextID  int
	pending map[string]chan reply
	readErr error
	done    chan struct{}
}

// NewExecDriver launches the helper binary and returns a driver bound to it.
// The helper receives the proxy and headless settings as flags; everything
// about evasion is its business, not ours.
func NewExecDriver(ctx context.Context, helper string, extraArgs []string, opts Options) (*ExecDriver, error) {
	ctx, cancel := context.WithCancel(ctx)

	args := append([]string{}, extraArgs...)
	if opts.Headless {
		args = append(args, "--headless")
	}
	if opts.Proxy != nil {
		args = append(args, "--proxy", opts.Proxy.String())
	}
	if opts.Locale != "" {
		args = append(args, "--locale", opts.Locale)
	}

	cmd := exec.CommandContext(ctx, helper, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("starting browser helper %s: %w", helper, err)
	}

	d := &ExecDriver{
		cmd:     cmd,
		stdin:   stdin,
		cancel:  cancel,
		pending: make(map[string]chan reply),
		done:    make(chan struct{}),
	}
	go d.readReplies(stdout)

	return d, nil
}

// readReplies pumps helper output into the pending reply channels
func (d *ExecDriver) readReplies(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		var rep reply
		if err := json.Unmarshal(scanner.Bytes(), &rep); err != nil {
			continue // helper chatter, not a reply
		}

		d.mu.Lock()
		ch, ok := d.pending[rep.ID]
		if ok {
			delete(d.pending, rep.ID)
		}
		d.mu.Unlock()

		if ok {
			ch <- rep
		}
	}

	d.mu.Lock()
	d.readErr = scanner.Err()
	if d.readErr == nil {
		d.readErr = io.EOF
	}
	for id, ch := range d.pending {
		delete(d.pending, id)
		close(ch)
	}
	d.mu.Unlock()
	close(d.done)
}

// send issues one command and waits for its reply or context cancellation
func (d *ExecDriver) send(ctx context.Context, cmd command) (reply, error) {
	d.mu.Lock()
	if d.readErr != nil {
		err := d.readErr
		d.mu.Unlock()
		return reply{}, fmt.Errorf("browser helper gone: %w", err)
	}
	d.nextID++
	cmd.ID = strconv.Itoa(d.nextID)
	ch := make(chan reply, 1)
	d.pending[cmd.ID] = ch
	d.mu.Unlock()

	payload, err := json.Marshal(cmd)
	if err != nil {
		return reply{}, err
	}
	if _, err := d.stdin.Write(append(payload, '\n')); err != nil {
		return reply{}, fmt.Errorf("writing to browser helper: %w", err)
	}

	select {
	case rep, ok := <-ch:
		if !ok {
			return reply{}, fmt.Errorf("browser helper exited")
		}
		if !rep.OK {
			return reply{}, fmt.Errorf("browser %s: %s", cmd.Op, rep.Error)
		}
		return rep, nil
	case <-ctx.Done():
		d.mu.Lock()
		delete(d.pending, cmd.ID)
		d.mu.Unlock()
		return reply{}, ctx.Err()
	}
}

// Navigate opens the URL and returns the final URL after redirects
func (d *ExecDriver) Navigate(ctx context.Context, url string) (string, error) {
	rep, err := d.send(ctx, command{Op: "navigate", URL: url})
	return rep.Value, err
}

// Fill types a value into the matched element
func (d *ExecDriver) Fill(ctx context.Context, selector, value string) error {
	_, err := d.send(ctx, command{Op: "fill", Selector: selector, Value: value})
	return err
}

// Click clicks the matched element
func (d *ExecDriver) Click(ctx context.Context, selector string) error {
	_, err := d.send(ctx, command{Op: "click", Selector: selector})
	return err
}

// Exists reports whether the selector matches an element
func (d *ExecDriver) Exists(ctx context.Context, selector string) (bool, error) {
	rep, err := d.send(ctx, command{Op: "exists", Selector: selector})
	return rep.Exists, err
}

// Text returns the text content of the matched element
func (d *ExecDriver) Text(ctx context.Context, selector string) (string, error) {
	rep, err := d.send(ctx, command{Op: "text", Selector: selector})
	return rep.Value, err
}

// Evaluate runs a script in the page
func (d *ExecDriver) Evaluate(ctx context.Context, script string) (string, error) {
	rep, err := d.send(ctx, command{Op: "evaluate", Script: script})
	return rep.Value, err
}

// WaitForURL blocks until the page URL matches the glob pattern
func (d *ExecDriver) WaitForURL(ctx context.Context, pattern string) (string, error) {
	rep, err := d.send(ctx, command{Op: "wait_for_url", Pattern: pattern})
	return rep.Value, err
}

// CurrentURL returns the page's current URL
func (d *ExecDriver) CurrentURL(ctx context.Context) (string, error) {
	rep, err := d.send(ctx, command{Op: "current_url"})
	return rep.Value, err
}

// Cookies returns all cookies in the browsing context
func (d *ExecDriver) Cookies(ctx context.Context) ([]Cookie, error) {
	rep, err := d.send(ctx, command{Op: "cookies"})
	return rep.Cookies, err
}

// SetCookies installs cookies into the browsing context
func (d *ExecDriver) SetCookies(ctx context.Context, cookies []Cookie) error {
	_, err := d.send(ctx, command{Op: "set_cookies", Cookies: cookies})
	return err
}

// SolveChallenge asks the engine to pass the named anti-bot challenge
func (d *ExecDriver) SolveChallenge(ctx context.Context, kind string) error {
	_, err := d.send(ctx, command{Op: "solve_challenge", Kind: kind})
	return err
}

// Close tears down the helper process
func (d *ExecDriver) Close() error {
	d.stdin.Close()
	d.cancel()
	<-d.done
	err := d.cmd.Wait()
	if err != nil && err.Error() == "signal: killed" {
		return nil
	}
	return err
}

// ExecFactory returns a Factory that launches the given helper binary
func ExecFactory(helper string, extraArgs []string) Factory {
	return func(ctx context.Context, opts Options) (Browser, error) {
		return NewExecDriver(ctx, helper, extraArgs, opts)
	}
}
