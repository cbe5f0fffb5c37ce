// Package composer implements the Message Composer (C7): renders the
// closed set of user-facing intents from localized templates (spec
// §4.7). No business logic lives here — every decision about what to
// say was already made by the Orchestrator.
package composer

import (
	"bytes"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/weldcfg/configurator/internal/core"
)

// Composer implements core.Composer over a set of localized Bundles,
// each pre-parsed into text/template once at load time the way the
// teacher's notification template engine pre-parses and caches
// receiver templates, only here the template set is closed and small
// enough to compile up front instead of lazily per request.
type Composer struct {
	bundles   map[string]*Bundle
	templates map[string]*compiledBundle
	defaultLang string
	logger    *slog.Logger
	mu        sync.RWMutex
}

type compiledBundle struct {
	presentOptionsMany *template.Template
	presentOptionsOne  *template.Template
	presentOptionsNone *template.Template
	confirm            *template.Template
	notApplicable      *template.Template
	finalizationLine   *template.Template
	thresholdNotMet    *template.Template
}

// New builds a Composer from the bundles in localesDir (see LoadBundles).
// defaultLang is used whenever a session's language_tag has no bundle.
func New(localesDir, defaultLang string, logger *slog.Logger) (*Composer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultLang == "" {
		defaultLang = "en"
	}

	bundles, err := LoadBundles(localesDir)
	if err != nil {
		return nil, fmt.Errorf("composer: %w", err)
	}

	c := &Composer{
		bundles:     bundles,
		templates:   make(map[string]*compiledBundle, len(bundles)),
		defaultLang: defaultLang,
		logger:      logger,
	}
	for tag, b := range bundles {
		cb, err := compile(b)
		if err != nil {
			return nil, fmt.Errorf("composer: compile bundle %q: %w", tag, err)
		}
		c.templates[tag] = cb
	}
	if _, ok := c.templates[defaultLang]; !ok {
		return nil, fmt.Errorf("composer: default language %q has no bundle", defaultLang)
	}
	return c, nil
}

func compile(b *Bundle) (*compiledBundle, error) {
	parse := func(name, text string) (*template.Template, error) {
		return template.New(name).Parse(text)
	}
	var (
		cb  compiledBundle
		err error
	)
	if cb.presentOptionsMany, err = parse("present_options_many", b.PresentOptionsMany); err != nil {
		return nil, err
	}
	if cb.presentOptionsOne, err = parse("present_options_one", b.PresentOptionsOne); err != nil {
		return nil, err
	}
	if cb.presentOptionsNone, err = parse("present_options_none", b.PresentOptionsNone); err != nil {
		return nil, err
	}
	if cb.confirm, err = parse("confirm", b.Confirm); err != nil {
		return nil, err
	}
	if cb.notApplicable, err = parse("not_applicable_notice", b.NotApplicableNotice); err != nil {
		return nil, err
	}
	if cb.finalizationLine, err = parse("finalization_line", b.FinalizationLine); err != nil {
		return nil, err
	}
	if cb.thresholdNotMet, err = parse("threshold_not_met", b.ThresholdNotMet); err != nil {
		return nil, err
	}
	return &cb, nil
}

// bundle returns the bundle+compiled templates for lang, falling back
// to the Composer's default language bundle.
func (c *Composer) bundle(lang string) (*Bundle, *compiledBundle) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	b, ok := c.bundles[lang]
	cb, okc := c.templates[lang]
	if !ok || !okc {
		c.logger.Debug("no bundle for language, falling back", "lang", lang, "fallback", c.defaultLang)
		return c.bundles[c.defaultLang], c.templates[c.defaultLang]
	}
	return b, cb
}

func render(tmpl *template.Template, data interface{}) string {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return ""
	}
	return buf.String()
}

func (c *Composer) kindLabel(b *Bundle, k core.ComponentKind) string {
	if label, ok := b.KindLabels[string(k)]; ok {
		return label
	}
	return string(k)
}

// PromptFor renders the attribute-gathering question for kind.
func (c *Composer) PromptFor(kind core.ComponentKind, lang string) string {
	b, _ := c.bundle(lang)
	if p, ok := b.PromptFor[string(kind)]; ok {
		return p
	}
	return fmt.Sprintf("What would you like for the %s?", c.kindLabel(b, kind))
}

type optionRow struct {
	Rank        int
	Name        string
	Description string
}

type presentOptionsData struct {
	Count    int
	KindLabel string
	Options  []optionRow
	// Name and Description carry the single product for the one-result
	// template.
	Name        string
	Description string
}

// PresentOptions renders a numbered list (≥2 results), a single
// confirmation question (exactly 1), or a no-match prompt (0), per
// spec §4.7. fallback prefixes the result when C3's find_all_compatible
// fallback produced it (spec §4.3).
func (c *Composer) PresentOptions(kind core.ComponentKind, products []core.Product, fallback bool, lang string) string {
	b, cb := c.bundle(lang)
	label := c.kindLabel(b, kind)

	switch len(products) {
	case 0:
		return render(cb.presentOptionsNone, presentOptionsData{KindLabel: label})
	case 1:
		text := render(cb.presentOptionsOne, presentOptionsData{
			KindLabel:   label,
			Options:     []optionRow{{Rank: 1, Name: products[0].Name, Description: products[0].Description}},
			Name:        products[0].Name,
			Description: products[0].Description,
		})
		if fallback {
			return b.PresentOptionsFallbackPrefix + text
		}
		return text
	default:
		rows := make([]optionRow, len(products))
		for i, p := range products {
			rows[i] = optionRow{Rank: i + 1, Name: p.Name, Description: p.Description}
		}
		text := render(cb.presentOptionsMany, presentOptionsData{
			Count: len(rows), KindLabel: label, Options: rows,
		})
		if fallback {
			return b.PresentOptionsFallbackPrefix + text
		}
		return text
	}
}

type confirmData struct {
	Name      string
	KindLabel string
}

// Confirm renders the acknowledgement after a selection commits.
func (c *Composer) Confirm(kind core.ComponentKind, product core.Product, lang string) string {
	b, cb := c.bundle(lang)
	return render(cb.confirm, confirmData{Name: product.Name, KindLabel: c.kindLabel(b, kind)})
}

// RejectSkipOfPowerSource renders the mandatory-S1 rejection (spec §3
// invariant 1).
func (c *Composer) RejectSkipOfPowerSource(lang string) string {
	b, _ := c.bundle(lang)
	return b.RejectSkipPowerSource
}

type notApplicableData struct {
	KindsList string
}

// NotApplicableNotice renders the summary of kinds auto-marked
// NotApplicable after an S1 commit (spec §4.1, §4.8 step 10).
func (c *Composer) NotApplicableNotice(kinds []core.ComponentKind, lang string) string {
	b, cb := c.bundle(lang)
	if len(kinds) == 0 {
		return ""
	}
	labels := make([]string, len(kinds))
	for i, k := range kinds {
		labels[i] = c.kindLabel(b, k)
	}
	sort.Strings(labels)
	return render(cb.notApplicable, notApplicableData{KindsList: strings.Join(labels, ", ")})
}

type finalizationLineData struct {
	Name        string
	Description string
	Kind        string
}

// FinalizationSummary renders the structured finalization view (spec
// §4.7 "containing only identifier, name, description per entry;
// accessories listed in order").
func (c *Composer) FinalizationSummary(cart core.Cart, lang string) core.FinalizationView {
	b, cb := c.bundle(lang)

	var entries []core.FinalizationEntry
	for _, k := range core.AllComponentKinds {
		if k.IsMultiValued() {
			continue
		}
		e := cart.Get(k)
		if e.Status == core.StatusSelected && e.Product != nil {
			entries = append(entries, core.FinalizationEntry{
				GIN: e.Product.GIN, Name: e.Product.Name, Description: e.Product.Description, Kind: k,
			})
		}
	}
	for _, e := range cart.Accessories {
		if e.Status == core.StatusSelected && e.Product != nil {
			entries = append(entries, core.FinalizationEntry{
				GIN: e.Product.GIN, Name: e.Product.Name, Description: e.Product.Description, Kind: core.KindAccessory,
			})
		}
	}

	var out strings.Builder
	out.WriteString(b.FinalizationHeader)
	out.WriteString("\n")
	for _, entry := range entries {
		out.WriteString(render(cb.finalizationLine, finalizationLineData{
			Name: entry.Name, Description: entry.Description, Kind: c.kindLabel(b, entry.Kind),
		}))
		out.WriteString("\n")
	}

	return core.FinalizationView{Entries: entries, Text: out.String()}
}

type thresholdData struct {
	Current  int
	Required int
}

// ThresholdNotMet renders the finalization-blocked prompt (spec §9 Open
// Question 1).
func (c *Composer) ThresholdNotMet(currentCount, required int, lang string) string {
	_, cb := c.bundle(lang)
	return render(cb.thresholdNotMet, thresholdData{Current: currentCount, Required: required})
}

// ExtractionFallback renders the "please restate" prompt issued when C2
// fails or returns an unusable result (spec §4.8 step 5, §7).
func (c *Composer) ExtractionFallback(lang string) string {
	b, _ := c.bundle(lang)
	return b.ExtractionFallback
}

var _ core.Composer = (*Composer)(nil)
