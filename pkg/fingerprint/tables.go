package fingerprint

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/scottpeterman/netdisco/pkg/models"
)

//go:embed tables.yaml
var defaultTablesYAML []byte

// YAMLTables is the on-disk layout of the lookup tables.
type YAMLTables struct {
	Version        string            `yaml:"version"`
	OUI            map[string]string `yaml:"oui"`
	OIDPrefixes    []YAMLOIDPrefix   `yaml:"oid_prefixes"`
	VendorPatterns []YAMLVendor      `yaml:"vendor_patterns"`
	Models         map[string]string `yaml:"models"`
	GenericModel   string            `yaml:"generic_model"`
	CategoryOIDs   []YAMLCategoryOID `yaml:"category_oids"`
	Keywords       []YAMLKeywords    `yaml:"category_keywords"`
}

type YAMLOIDPrefix struct {
	Prefix       string `yaml:"prefix"`
	Manufacturer string `yaml:"manufacturer"`
}

type YAMLVendor struct {
	Manufacturer string   `yaml:"manufacturer"`
	Patterns     []string `yaml:"patterns"`
}

type YAMLCategoryOID struct {
	Prefix   string `yaml:"prefix"`
	Category string `yaml:"category"`
}

type YAMLKeywords struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

type oidRule struct {
	prefix string
	value  string
}

type vendorRule struct {
	manufacturer string
	re           *regexp.Regexp
}

type keywordRule struct {
	category models.DeviceCategory
	re       *regexp.Regexp
}

// Tables holds the compiled classification data. It is never modified
// after construction and is safe for concurrent use.
type Tables struct {
	oui          map[string]string
	oidPrefixes  []oidRule
	vendors      []vendorRule
	models       map[string]*regexp.Regexp
	genericModel *regexp.Regexp
	categoryOIDs []oidRule
	keywords     []keywordRule
}

var (
	defaultOnce   sync.Once
	defaultTables *Tables
	defaultErr    error
)

// DefaultTables returns the built-in tables, compiled on first use.
func DefaultTables() (*Tables, error) {
	defaultOnce.Do(func() {
		defaultTables, defaultErr = ParseTables(defaultTablesYAML)
	})
	return defaultTables, defaultErr
}

// LoadTables reads tables from path, or returns DefaultTables when path is empty.
func LoadTables(path string) (*Tables, error) {
	if path == "" {
		return DefaultTables()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tables file: %w", err)
	}
	return ParseTables(data)
}

// ParseTables compiles YAML table data. OUI keys must be 3 to 5 bytes of
// hex and no key may be a prefix of another.
func ParseTables(data []byte) (*Tables, error) {
	var y YAMLTables
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, fmt.Errorf("failed to parse tables: %w", err)
	}

	t := &Tables{
		oui:    make(map[string]string, len(y.OUI)),
		models: make(map[string]*regexp.Regexp, len(y.Models)),
	}

	for k, v := range y.OUI {
		key := models.CompactMAC(k)
		if n := len(key); n != 6 && n != 8 && n != 10 {
			return nil, fmt.Errorf("oui %q: must be 3, 4 or 5 bytes of hex", k)
		}
		t.oui[key] = v
	}
	if err := checkOUIOverlap(t.oui); err != nil {
		return nil, err
	}

	for _, p := range y.OIDPrefixes {
		t.oidPrefixes = append(t.oidPrefixes, oidRule{prefix: p.Prefix, value: p.Manufacturer})
	}

	for _, v := range y.VendorPatterns {
		re, err := wordPrefixRegexp(v.Patterns)
		if err != nil {
			return nil, fmt.Errorf("vendor %s: %w", v.Manufacturer, err)
		}
		t.vendors = append(t.vendors, vendorRule{manufacturer: v.Manufacturer, re: re})
	}

	for manufacturer, pattern := range y.Models {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("model pattern for %s: %w", manufacturer, err)
		}
		t.models[manufacturer] = re
	}
	if y.GenericModel != "" {
		re, err := regexp.Compile(y.GenericModel)
		if err != nil {
			return nil, fmt.Errorf("generic model pattern: %w", err)
		}
		t.genericModel = re
	}

	for _, c := range y.CategoryOIDs {
		cat, ok := models.ParseCategory(c.Category)
		if !ok {
			return nil, fmt.Errorf("category oid %s: unknown category %q", c.Prefix, c.Category)
		}
		t.categoryOIDs = append(t.categoryOIDs, oidRule{prefix: c.Prefix, value: string(cat)})
	}

	for _, k := range y.Keywords {
		cat, ok := models.ParseCategory(k.Category)
		if !ok {
			return nil, fmt.Errorf("keywords: unknown category %q", k.Category)
		}
		re, err := keywordRegexp(k.Keywords)
		if err != nil {
			return nil, fmt.Errorf("keywords for %s: %w", k.Category, err)
		}
		t.keywords = append(t.keywords, keywordRule{category: cat, re: re})
	}

	return t, nil
}

func checkOUIOverlap(oui map[string]string) error {
	keys := make([]string, 0, len(oui))
	for k := range oui {
		keys = append(keys, k)
	}
	// a key and any longer key it prefixes sort next to each other
	sort.Strings(keys)
	for i := 1; i < len(keys); i++ {
		if strings.HasPrefix(keys[i], keys[i-1]) {
			return fmt.Errorf("oui %s overlaps %s", keys[i-1], keys[i])
		}
	}
	return nil
}

// wordPrefixRegexp matches any of words at the start of a word, ignoring case.
func wordPrefixRegexp(words []string) (*regexp.Regexp, error) {
	if len(words) == 0 {
		return nil, fmt.Errorf("no patterns")
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(strings.ToLower(w))
	}
	return regexp.Compile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)`)
}

// shortKeyword is the longest keyword still matched only at the start
// of a word. Acronyms such as "asa" or "isr" occur inside unrelated words.
const shortKeyword = 3

// keywordRegexp matches any of words anywhere in the text, ignoring case,
// so compound names such as "EdgeSwitch" match "switch". Short keywords
// must start a word.
func keywordRegexp(words []string) (*regexp.Regexp, error) {
	if len(words) == 0 {
		return nil, fmt.Errorf("no patterns")
	}
	alts := make([]string, len(words))
	for i, w := range words {
		alts[i] = regexp.QuoteMeta(strings.ToLower(w))
		if len(w) <= shortKeyword {
			alts[i] = `\b` + alts[i]
		}
	}
	return regexp.Compile(`(?i)(?:` + strings.Join(alts, "|") + `)`)
}

func hasOIDPrefix(oid, prefix string) bool {
	oid = strings.TrimPrefix(oid, ".")
	prefix = strings.TrimSuffix(strings.TrimPrefix(prefix, "."), ".")
	return oid == prefix || strings.HasPrefix(oid, prefix+".")
}

// LookupOUI returns the manufacturer for mac by trying its 3, 4 and 5
// byte prefixes in that order.
func (t *Tables) LookupOUI(mac string) string {
	hex := models.CompactMAC(mac)
	for _, n := range []int{6, 8, 10} {
		if len(hex) < n {
			break
		}
		if m, ok := t.oui[hex[:n]]; ok {
			return m
		}
	}
	return ""
}

// ManufacturerForOID matches sysObjectID against the enterprise prefixes.
func (t *Tables) ManufacturerForOID(sysObjectID string) string {
	if sysObjectID == "" {
		return ""
	}
	for _, r := range t.oidPrefixes {
		if hasOIDPrefix(sysObjectID, r.prefix) {
			return r.value
		}
	}
	return ""
}

// ManufacturerFromText matches free text against the vendor patterns.
func (t *Tables) ManufacturerFromText(text string) string {
	if text == "" {
		return ""
	}
	for _, v := range t.vendors {
		if v.re.MatchString(text) {
			return v.manufacturer
		}
	}
	return ""
}

// ExtractModel pulls a model token out of sysDescr with the
// manufacturer's pattern, then the generic one.
func (t *Tables) ExtractModel(manufacturer, sysDescr string) string {
	if sysDescr == "" {
		return ""
	}
	if re, ok := t.models[manufacturer]; ok {
		if m := re.FindString(sysDescr); m != "" {
			return m
		}
	}
	if t.genericModel != nil {
		return t.genericModel.FindString(sysDescr)
	}
	return ""
}

// CategoryForOID returns the category pinned to sysObjectID, if any.
func (t *Tables) CategoryForOID(sysObjectID string) (models.DeviceCategory, bool) {
	if sysObjectID == "" {
		return models.CategoryOther, false
	}
	for _, r := range t.categoryOIDs {
		if hasOIDPrefix(sysObjectID, r.prefix) {
			return models.DeviceCategory(r.value), true
		}
	}
	return models.CategoryOther, false
}

// CategoryFromText applies the keyword rules to text.
func (t *Tables) CategoryFromText(text string) (models.DeviceCategory, bool) {
	if text == "" {
		return models.CategoryOther, false
	}
	for _, k := range t.keywords {
		if k.re.MatchString(text) {
			return k.category, true
		}
	}
	return models.CategoryOther, false
}

// Category checks sysObjectID first and falls back to sysDescr keywords.
func (t *Tables) Category(sysObjectID, sysDescr string) models.DeviceCategory {
	if c, ok := t.CategoryForOID(sysObjectID); ok {
		return c
	}
	c, _ := t.CategoryFromText(sysDescr)
	return c
}

// Identify derives manufacturer, model and category from system MIB
// values alone.
func (t *Tables) Identify(sysDescr, sysObjectID string) (manufacturer, model, category string) {
	manufacturer = t.ManufacturerForOID(sysObjectID)
	if manufacturer == "" {
		manufacturer = t.ManufacturerFromText(sysDescr)
	}
	model = t.ExtractModel(manufacturer, sysDescr)
	category = string(t.Category(sysObjectID, sysDescr))
	return manufacturer, model, category
}
