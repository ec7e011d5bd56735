package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Evaluator runs a JavaScript function in the live page and returns its string result.
type Evaluator interface {
	EvalString(ctx context.Context, js string, args ...any) (string, error)
}

// Page shows the modal inside the browser page, next to the portal the operator is
// already looking at, and polls it for the answer.
type Page struct {
	Eval     Evaluator
	Interval time.Duration
	Submit   string
	Cancel   string
}

const showModalJS = `(label, submit, cancel) => {
	const old = document.getElementById('__rh_prompt');
	if (old) old.remove();
	window.__rhPrompt = null;

	const overlay = document.createElement('div');
	overlay.id = '__rh_prompt';
	overlay.style.cssText = 'position:fixed;inset:0;background:rgba(0,0,0,.45);z-index:2147483647;display:flex;align-items:center;justify-content:center;font-family:sans-serif';

	const box = document.createElement('div');
	box.style.cssText = 'background:#fff;padding:20px;border-radius:8px;min-width:360px;box-shadow:0 4px 24px rgba(0,0,0,.3)';

	const title = document.createElement('div');
	title.textContent = label;
	title.style.cssText = 'font-weight:bold;margin-bottom:10px';

	const input = document.createElement('textarea');
	input.rows = 6;
	input.style.cssText = 'width:100%;box-sizing:border-box';

	const finish = (cancelled) => {
		const value = input.value.trim();
		if (!cancelled && value === '') { input.focus(); return; }
		window.__rhPrompt = { done: true, cancelled: cancelled, value: value };
		overlay.remove();
	};

	const ok = document.createElement('button');
	ok.textContent = submit;
	ok.onclick = () => finish(false);
	const no = document.createElement('button');
	no.textContent = cancel;
	no.style.marginInlineStart = '8px';
	no.onclick = () => finish(true);

	const buttons = document.createElement('div');
	buttons.style.marginTop = '10px';
	buttons.append(ok, no);
	box.append(title, input, buttons);
	overlay.append(box);
	document.body.append(overlay);
	input.focus();
	return 'shown';
}`

// The modal disappears without an answer when the page navigates away.
const pollModalJS = `() => {
	if (window.__rhPrompt) return JSON.stringify(window.__rhPrompt);
	return document.getElementById('__rh_prompt') ? '' : JSON.stringify({ done: true, cancelled: true });
}`

type pageAnswer struct {
	Done      bool   `json:"done"`
	Cancelled bool   `json:"cancelled"`
	Value     string `json:"value"`
}

func (p *Page) RequestText(ctx context.Context, label string) (string, error) {
	submit, cancel := p.Submit, p.Cancel
	if submit == "" {
		submit = "OK"
	}
	if cancel == "" {
		cancel = "Cancel"
	}
	interval := p.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	if _, err := p.Eval.EvalString(ctx, showModalJS, label, submit, cancel); err != nil {
		return "", fmt.Errorf("prompt: show page modal: %w", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		raw, err := p.Eval.EvalString(ctx, pollModalJS)
		if err != nil {
			return "", fmt.Errorf("prompt: read page modal: %w", err)
		}
		if raw == "" {
			continue
		}
		var ans pageAnswer
		if err := json.Unmarshal([]byte(raw), &ans); err != nil {
			return "", fmt.Errorf("prompt: decode page modal: %w", err)
		}
		if !ans.Done {
			continue
		}
		if ans.Cancelled {
			return "", ErrUserCancelled
		}
		return ans.Value, nil
	}
}
