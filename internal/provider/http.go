package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"biteboard/internal/menu"
	"biteboard/pkg/logx"
)

// Spec describes a provider backed by an HTML page.
//
// For GET, every "{date}" in URL is replaced with the requested YYYY-MM-DD.
// For POST, the date is sent as form field FormField (default "day").
type Spec struct {
	Name      string
	Link      string
	Thumbnail string
	Method    string
	URL       string
	FormField string
	Layout    menu.Layout
}

// HTTPProvider binds a request strategy to a page parser.
type HTTPProvider struct {
	spec   Spec
	fetch  *Fetcher
	parser menu.Parser
	log    logx.Logger
}

// New builds a provider from spec, picking the parser for spec.Layout.
func New(spec Spec, fetch *Fetcher, log logx.Logger) (*HTTPProvider, error) {
	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Name == "" {
		return nil, fmt.Errorf("provider name is empty")
	}
	if spec.URL == "" {
		return nil, fmt.Errorf("provider %q: url is empty", spec.Name)
	}
	spec.Method = strings.ToUpper(strings.TrimSpace(spec.Method))
	switch spec.Method {
	case "":
		spec.Method = http.MethodGet
	case http.MethodGet, http.MethodPost:
	default:
		return nil, fmt.Errorf("provider %q: unsupported method %q", spec.Name, spec.Method)
	}
	if spec.Method == http.MethodPost && spec.FormField == "" {
		spec.FormField = "day"
	}
	if spec.Link == "" {
		spec.Link = spec.URL
	}

	log = log.With(logx.String("provider", spec.Name))
	var parser menu.Parser
	switch spec.Layout {
	case menu.LayoutDay:
		parser = menu.NewDayView(log)
	case menu.LayoutWeek:
		parser = menu.NewWeekView(log)
	default:
		return nil, fmt.Errorf("provider %q: unknown layout %q", spec.Name, spec.Layout)
	}
	return NewWithParser(spec, fetch, parser, log), nil
}

// NewWithParser builds a provider with a custom parser.
func NewWithParser(spec Spec, fetch *Fetcher, parser menu.Parser, log logx.Logger) *HTTPProvider {
	return &HTTPProvider{spec: spec, fetch: fetch, parser: parser, log: log}
}

func (p *HTTPProvider) Name() string      { return p.spec.Name }
func (p *HTTPProvider) Link() string      { return p.spec.Link }
func (p *HTTPProvider) Thumbnail() string { return p.spec.Thumbnail }

func (p *HTTPProvider) Fetch(ctx context.Context, date menu.Date) ([]menu.Item, error) {
	doc, err := p.fetch.Document(ctx, p.request(date))
	if err != nil {
		return nil, err
	}
	all := p.parser.Parse(doc, date)
	items := menu.FilterDate(all, date)
	p.log.Info("menu fetched",
		logx.String("date", date.String()),
		logx.Int("items", len(items)),
		logx.Int("parsed", len(all)),
	)
	return items, nil
}

func (p *HTTPProvider) request(date menu.Date) Request {
	d := date.String()
	req := Request{Provider: p.spec.Name, Method: p.spec.Method, URL: p.spec.URL}
	if p.spec.Method == http.MethodPost {
		req.Form = url.Values{p.spec.FormField: {d}}
		return req
	}
	req.URL = strings.ReplaceAll(p.spec.URL, "{date}", url.PathEscape(d))
	return req
}
