package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
)

// serpScrapeJS walks Google's result containers and returns up to four
// organic entries as {url,title,snippet} objects.
const serpScrapeJS = `
(() => {
  const out = [];
  const nodes = document.querySelectorAll('div.g, div[data-sokoban-container]');
  for (const n of nodes) {
    const a = n.querySelector('a[href^="http"]');
    const h = n.querySelector('h3');
    const snip = n.querySelector('div[data-sncf], div.VwiC3b, span.aCOpRe');
    if (!a || !h) continue;
    out.push({ url: a.href, title: h.innerText, snippet: snip ? snip.innerText : '' });
    if (out.length >= 4) break;
  }
  return out;
})()
`

const bodyTextJS = `document.body.innerText || document.documentElement.innerText`

// ChromedpView is the production browser.View adapter, backed by a real
// headless Chrome tab via chromedp.
type ChromedpView struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewChromedpView allocates a fresh chromedp browser context (tab) rooted
// at parent.
func NewChromedpView(parent context.Context) *ChromedpView {
	ctx, cancel := chromedp.NewContext(parent)
	return &ChromedpView{ctx: ctx, cancel: cancel}
}

func (c *ChromedpView) LoadURL(ctx context.Context, url string) error {
	return chromedp.Run(c.ctx, chromedp.Navigate(url))
}

func (c *ChromedpView) EvalJS(ctx context.Context, script string) (any, error) {
	switch script {
	case ScriptScrapeSERP:
		var raw []map[string]string
		if err := chromedp.Run(c.ctx, chromedp.Evaluate(serpScrapeJS, &raw)); err != nil {
			return nil, fmt.Errorf("chromedp scrape_serp: %w", err)
		}
		items := make([]SerpItem, 0, len(raw))
		for _, m := range raw {
			items = append(items, SerpItem{URL: m["url"], Title: m["title"], Snippet: m["snippet"]})
		}
		return items, nil
	case ScriptBodyText:
		var text string
		if err := chromedp.Run(c.ctx, chromedp.Evaluate(bodyTextJS, &text)); err != nil {
			return nil, fmt.Errorf("chromedp body_text: %w", err)
		}
		return text, nil
	default:
		var res any
		if err := chromedp.Run(c.ctx, chromedp.Evaluate(script, &res)); err != nil {
			return nil, fmt.Errorf("chromedp eval: %w", err)
		}
		return res, nil
	}
}

func (c *ChromedpView) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := chromedp.Run(c.ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("chromedp screenshot: %w", err)
	}
	return buf, nil
}

func (c *ChromedpView) Close() error {
	c.cancel()
	return nil
}
