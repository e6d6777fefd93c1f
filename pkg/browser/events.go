package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/ivikasavnish/go-flowrec/pkg/page"
)

//go:embed capture.js
var captureJS string

const (
	bindingName = "__flowrec_event"
	uninstallJS = `() => { if (window.__flowrecUninstall) window.__flowrecUninstall() }`
)

// Subscribe installs the capture script in the current and every future
// document of the tab and forwards its events to fn. Events arrive on a
// single goroutine. Unsubscribing removes the listeners from the current
// document as well.
func (p *Page) Subscribe(ctx context.Context, fn func(page.DOMEvent)) (func() error, error) {
	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(p.rp); err != nil {
		return nil, fmt.Errorf("browser: add binding: %w", err)
	}
	removeScript, err := p.rp.EvalOnNewDocument(captureJS)
	if err != nil {
		_ = proto.RuntimeRemoveBinding{Name: bindingName}.Call(p.rp)
		return nil, fmt.Errorf("browser: install capture script: %w", err)
	}
	if _, err := p.rp.Context(ctx).Eval(`() => {` + captureJS + `}`); err != nil {
		p.logger.Warn("capture script not applied to current document", zap.Error(err))
	}

	listenCtx, cancel := context.WithCancel(ctx)
	wait := p.rp.Context(listenCtx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		var ev page.DOMEvent
		if err := json.Unmarshal([]byte(e.Payload), &ev); err != nil {
			p.logger.Warn("bad capture payload", zap.Error(err))
			return
		}
		fn(ev)
	})
	done := make(chan struct{})
	go func() {
		defer close(done)
		wait()
	}()

	var (
		once   sync.Once
		result error
	)
	unsubscribe := func() error {
		once.Do(func() {
			if _, err := p.rp.Eval(uninstallJS); err != nil {
				result = fmt.Errorf("browser: remove capture listeners: %w", err)
			}
			cancel()
			<-done
			if err := removeScript(); err != nil && result == nil {
				result = fmt.Errorf("browser: remove capture script: %w", err)
			}
			if err := (proto.RuntimeRemoveBinding{Name: bindingName}).Call(p.rp); err != nil && result == nil {
				result = fmt.Errorf("browser: remove binding: %w", err)
			}
		})
		return result
	}
	return unsubscribe, nil
}
