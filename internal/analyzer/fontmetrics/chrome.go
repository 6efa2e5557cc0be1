package fontmetrics

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/serplens/engine/internal/common/configtypes"
)

const (
	defaultStartupTimeout = 30 * time.Second
	defaultMeasureTimeout = 5 * time.Second
)

// ChromeMeasurer measures text through a headless Chrome canvas 2D context,
// matching real browser shaping (ligatures, kerning, system font fallback).
// A single browser serves all measurements; evaluations serialize on its tab.
type ChromeMeasurer struct {
	logger *zap.Logger

	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
	ctx             context.Context
	cancel          context.CancelFunc

	measureTimeout time.Duration

	mu sync.Mutex
}

func NewChromeMeasurer(cfg *configtypes.ChromeConfig, logger *zap.Logger) (*ChromeMeasurer, error) {
	if cfg == nil {
		cfg = &configtypes.ChromeConfig{}
	}

	startupTimeout := cfg.StartupTimeout.ToDuration()
	if startupTimeout == 0 {
		startupTimeout = defaultStartupTimeout
	}
	measureTimeout := cfg.MeasureTimeout.ToDuration()
	if measureTimeout == 0 {
		measureTimeout = defaultMeasureTimeout
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
	}
	if cfg.NoSandbox {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-setuid-sandbox", true))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocatorOpts := append(chromedp.DefaultExecAllocatorOptions[:], opts...)

	m := &ChromeMeasurer{
		logger:         logger,
		measureTimeout: measureTimeout,
	}
	m.allocatorCtx, m.allocatorCancel = chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	m.ctx, m.cancel = chromedp.NewContext(m.allocatorCtx)

	startCtx, cancel := context.WithTimeout(m.ctx, startupTimeout)
	defer cancel()

	if err := chromedp.Run(startCtx, chromedp.Navigate("about:blank")); err != nil {
		m.Close()
		return nil, fmt.Errorf("failed to start Chrome: %w", err)
	}

	var product string
	if err := chromedp.Run(startCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		_, product, _, _, _, err = browser.GetVersion().Do(ctx)
		return err
	})); err != nil {
		m.logger.Warn("Failed to capture browser version", zap.Error(err))
	} else {
		m.logger.Info("Chrome measurer started", zap.String("browser", product))
	}

	return m, nil
}

func (m *ChromeMeasurer) Backend() string {
	return "chrome"
}

func (m *ChromeMeasurer) MeasureWidth(text, fontFamily string, fontSizePx float64) (float64, error) {
	if fontSizePx <= 0 {
		return 0, fmt.Errorf("font size must be positive, got %v", fontSizePx)
	}
	if text == "" {
		return 0, nil
	}

	expr, err := measureExpr(text, fontFamily, fontSizePx)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(m.ctx, m.measureTimeout)
	defer cancel()

	var width float64
	if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &width)); err != nil {
		return 0, fmt.Errorf("chrome measurement failed: %w", err)
	}
	if width < 0 {
		return 0, fmt.Errorf("chrome returned negative width: %v", width)
	}

	return width, nil
}

// measureExpr builds the measureText expression. Text and font spec pass
// through json.Marshal so arbitrary input stays a valid JS string literal.
func measureExpr(text, fontFamily string, fontSizePx float64) (string, error) {
	fontSpec, err := json.Marshal(fmt.Sprintf("%vpx %q", fontSizePx, fontFamily))
	if err != nil {
		return "", fmt.Errorf("failed to encode font spec: %w", err)
	}
	textLit, err := json.Marshal(text)
	if err != nil {
		return "", fmt.Errorf("failed to encode text: %w", err)
	}

	return fmt.Sprintf(`(() => {
	const ctx = document.createElement('canvas').getContext('2d');
	ctx.font = %s;
	return ctx.measureText(%s).width;
})()`, fontSpec, textLit), nil
}

// Alive reports whether the browser still answers DevTools commands.
func (m *ChromeMeasurer) Alive() bool {
	ctx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
	defer cancel()

	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, _, _, _, err := browser.GetVersion().Do(ctx)
		return err
	}))
	return err == nil
}

func (m *ChromeMeasurer) Close() error {
	if m.cancel != nil {
		m.cancel()
	}
	if m.allocatorCancel != nil {
		m.allocatorCancel()
	}
	return nil
}
