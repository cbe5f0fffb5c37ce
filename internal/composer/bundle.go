package composer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Bundle holds every localized string the Composer renders, one per
// language tag (spec §4.7 "localization, 12 tags acceptable; English is
// the fallback"). Fields with template placeholders use Go text/template
// syntax against the data types in composer.go.
type Bundle struct {
	PromptFor map[string]string `yaml:"prompt_for"`

	PresentOptionsMany           string `yaml:"present_options_many"`
	PresentOptionsOne            string `yaml:"present_options_one"`
	PresentOptionsNone           string `yaml:"present_options_none"`
	PresentOptionsFallbackPrefix string `yaml:"present_options_fallback_prefix"`

	Confirm               string `yaml:"confirm"`
	RejectSkipPowerSource string `yaml:"reject_skip_power_source"`
	NotApplicableNotice   string `yaml:"not_applicable_notice"`

	FinalizationHeader string `yaml:"finalization_header"`
	FinalizationLine   string `yaml:"finalization_line"`

	ThresholdNotMet    string `yaml:"threshold_not_met"`
	ExtractionFallback string `yaml:"extraction_fallback"`

	KindLabels      map[string]string `yaml:"kind_labels"`
	AttributeLabels map[string]string `yaml:"attribute_labels"`
}

// LoadBundles reads one Bundle per <tag>.yaml file in dir. A missing or
// empty dir is not an error: the built-in English bundle still serves
// every request.
func LoadBundles(dir string) (map[string]*Bundle, error) {
	bundles := map[string]*Bundle{"en": defaultEnglishBundle()}

	if dir == "" {
		return bundles, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return bundles, nil
		}
		return nil, fmt.Errorf("composer: read locales dir %q: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		tag := strings.TrimSuffix(entry.Name(), ".yaml")

		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("composer: read bundle %q: %w", entry.Name(), err)
		}
		var b Bundle
		if err := yaml.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("composer: decode bundle %q: %w", entry.Name(), err)
		}
		bundles[tag] = mergeWithEnglish(&b)
	}
	return bundles, nil
}

// mergeWithEnglish fills every empty field of b from the English bundle,
// so a partial translation still renders complete sentences.
func mergeWithEnglish(b *Bundle) *Bundle {
	en := defaultEnglishBundle()

	if b.PromptFor == nil {
		b.PromptFor = map[string]string{}
	}
	for k, v := range en.PromptFor {
		if _, ok := b.PromptFor[k]; !ok {
			b.PromptFor[k] = v
		}
	}
	if b.KindLabels == nil {
		b.KindLabels = map[string]string{}
	}
	for k, v := range en.KindLabels {
		if _, ok := b.KindLabels[k]; !ok {
			b.KindLabels[k] = v
		}
	}
	if b.AttributeLabels == nil {
		b.AttributeLabels = map[string]string{}
	}
	for k, v := range en.AttributeLabels {
		if _, ok := b.AttributeLabels[k]; !ok {
			b.AttributeLabels[k] = v
		}
	}

	strFields := []struct {
		dst *string
		src string
	}{
		{&b.PresentOptionsMany, en.PresentOptionsMany},
		{&b.PresentOptionsOne, en.PresentOptionsOne},
		{&b.PresentOptionsNone, en.PresentOptionsNone},
		{&b.PresentOptionsFallbackPrefix, en.PresentOptionsFallbackPrefix},
		{&b.Confirm, en.Confirm},
		{&b.RejectSkipPowerSource, en.RejectSkipPowerSource},
		{&b.NotApplicableNotice, en.NotApplicableNotice},
		{&b.FinalizationHeader, en.FinalizationHeader},
		{&b.FinalizationLine, en.FinalizationLine},
		{&b.ThresholdNotMet, en.ThresholdNotMet},
		{&b.ExtractionFallback, en.ExtractionFallback},
	}
	for _, f := range strFields {
		if *f.dst == "" {
			*f.dst = f.src
		}
	}
	return b
}

// defaultEnglishBundle is the hardcoded fallback (spec §4.7 "English is
// the fallback"): the Composer always renders, even with no locales
// directory configured.
func defaultEnglishBundle() *Bundle {
	return &Bundle{
		PromptFor: map[string]string{
			"PowerSource":    "What welding process, amperage, voltage, and phase do you need, and does it need to be portable?",
			"Feeder":         "What process and wire size does your feeder need to handle, and should it be portable?",
			"Cooler":         "Do you need air or water cooling?",
			"Interconnector": "How long a cable do you need between the power source and the feeder?",
			"Torch":          "What process and cooling type does your torch need, and any material preference?",
			"Accessory":      "Any accessories you'd like to add — material or portability preference?",
		},
		PresentOptionsMany:           "Here are {{.Count}} options for your {{.KindLabel}}:\n{{range .Options}}{{.Rank}}. {{.Name}} — {{.Description}}\n{{end}}Which one would you like?",
		PresentOptionsOne:            "I found one match for your {{.KindLabel}}: {{.Name}} — {{.Description}}. Shall I add it?",
		PresentOptionsNone:           "I couldn't find a {{.KindLabel}} matching those requirements. Could you adjust or relax them?",
		PresentOptionsFallbackPrefix: "Nothing matched those exact requirements, so here are compatible options instead:\n",
		Confirm:                      "Added {{.Name}} as your {{.KindLabel}}.",
		RejectSkipPowerSource:        "The power source is the one thing I can't skip — let's pick that first.",
		NotApplicableNotice:          "Based on your power source, these aren't needed for this build: {{.KindsList}}.",
		FinalizationHeader:           "Here's your finished configuration:",
		FinalizationLine:             "- {{.Name}} ({{.Kind}}): {{.Description}}",
		ThresholdNotMet:              "You've selected {{.Current}} of the {{.Required}} components needed before I can finalize. Let's pick a few more.",
		ExtractionFallback:           "Sorry, I didn't quite catch that — could you rephrase?",
		KindLabels: map[string]string{
			"PowerSource":    "power source",
			"Feeder":         "wire feeder",
			"Cooler":         "cooler",
			"Interconnector": "interconnect cable",
			"Torch":          "torch",
			"Accessory":      "accessory",
		},
		AttributeLabels: map[string]string{
			"process":      "process",
			"current":      "amperage",
			"voltage":      "voltage",
			"phase":        "phase",
			"portability":  "portability",
			"wire_size":    "wire size",
			"cooling_type": "cooling type",
			"cable_length": "cable length",
			"material":     "material",
		},
	}
}
