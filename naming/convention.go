// Package naming derives the names planter uses for tables, plurals and
// generated classes.
package naming

import (
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultDefinitionSuffix is the table-name suffix marking a definition
// variant of a base entity, e.g. "widget_def" for "widget".
const DefaultDefinitionSuffix = "_def"

// acronyms are kept upper-case in class names.
var acronyms = map[string]struct{}{
	"ACL": {}, "API": {}, "ASCII": {}, "CPU": {}, "CSS": {}, "DNS": {},
	"EOF": {}, "GUID": {}, "HTML": {}, "HTTP": {}, "HTTPS": {}, "ID": {},
	"IP": {}, "JSON": {}, "LHS": {}, "QPS": {}, "RAM": {}, "RHS": {},
	"RPC": {}, "SLA": {}, "SMTP": {}, "SQL": {}, "SSH": {}, "TCP": {},
	"TLS": {}, "TTL": {}, "UDP": {}, "UI": {}, "UID": {}, "URI": {},
	"URL": {}, "UTF8": {}, "UUID": {}, "VM": {}, "XML": {}, "XMPP": {},
	"XSRF": {}, "XSS": {},
}

// Convention holds the naming rules. The zero value is not usable; use New.
// A Convention is safe for concurrent use once constructed.
type Convention struct {
	rules    *inflect.Ruleset
	suffix   string
	acronyms map[string]struct{}
	lang     language.Tag
}

// Option configures a Convention.
type Option func(*Convention)

// WithIrregular registers an irregular singular/plural pair.
func WithIrregular(singular, plural string) Option {
	return func(c *Convention) {
		c.rules.AddIrregular(singular, plural)
	}
}

// WithUncountable registers a word whose plural equals its singular.
func WithUncountable(words ...string) Option {
	return func(c *Convention) {
		for _, w := range words {
			c.rules.AddUncountable(w)
		}
	}
}

// WithDefinitionSuffix replaces DefaultDefinitionSuffix. An empty suffix
// disables definition-variant detection.
func WithDefinitionSuffix(suffix string) Option {
	return func(c *Convention) {
		c.suffix = suffix
	}
}

// WithAcronym adds words kept upper-case by ClassName.
func WithAcronym(words ...string) Option {
	return func(c *Convention) {
		for _, w := range words {
			c.acronyms[strings.ToUpper(w)] = struct{}{}
		}
	}
}

// New returns a Convention with the default English rules.
func New(opts ...Option) *Convention {
	c := &Convention{
		rules:    inflect.NewDefaultRuleset(),
		suffix:   DefaultDefinitionSuffix,
		acronyms: make(map[string]struct{}, len(acronyms)),
		lang:     language.English,
	}
	for w := range acronyms {
		c.acronyms[w] = struct{}{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefinitionSuffix returns the configured suffix.
func (c *Convention) DefinitionSuffix() string { return c.suffix }

// Plural returns the plural form of a singular table name. Only the last
// underscore-separated word is inflected: "order_item" → "order_items".
func (c *Convention) Plural(singular string) string {
	return c.inflectLast(singular, c.rules.Pluralize)
}

// Singular returns the singular form of a plural table name.
func (c *Convention) Singular(plural string) string {
	return c.inflectLast(plural, c.rules.Singularize)
}

func (c *Convention) inflectLast(s string, fn func(string) string) string {
	if s == "" {
		return s
	}
	i := strings.LastIndexByte(s, '_')
	if i < 0 || i == len(s)-1 {
		return fn(s)
	}
	return s[:i+1] + fn(s[i+1:])
}

// NormalizeDefinitionSuffix strips the definition suffix. It returns the
// table unchanged and false if the suffix is absent, or if stripping it
// would leave nothing.
func (c *Convention) NormalizeDefinitionSuffix(table string) (string, bool) {
	if c.suffix == "" || len(table) <= len(c.suffix) || !strings.HasSuffix(table, c.suffix) {
		return table, false
	}
	return strings.TrimSuffix(table, c.suffix), true
}

// BaseTable is NormalizeDefinitionSuffix without the flag.
func (c *Convention) BaseTable(table string) string {
	base, _ := c.NormalizeDefinitionSuffix(table)
	return base
}

// ClassName derives a class identifier from a table name and a prefix:
// ("order_item", "shop") → "ShopOrderItem". It is a naming hint for
// generated code and never a registry key.
func (c *Convention) ClassName(table, prefix string) string {
	return c.Pascal(prefix) + c.Pascal(table)
}

// Pascal converts a separated name to PascalCase, keeping acronyms.
func (c *Convention) Pascal(s string) string {
	var b strings.Builder
	title := cases.Title(c.lang) // Casers are stateful; one per call.
	for _, w := range words(s) {
		if u := strings.ToUpper(w); c.isAcronym(u) {
			b.WriteString(u)
			continue
		}
		b.WriteString(title.String(w))
	}
	return b.String()
}

func (c *Convention) isAcronym(w string) bool {
	_, ok := c.acronyms[w]
	return ok
}

// words splits s on separators and lower/upper case boundaries.
func words(s string) []string {
	var (
		out []string
		cur []rune
	)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}
	rs := []rune(s)
	for i, r := range rs {
		switch {
		case isSeparator(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(rs[i-1]):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return out
}

func isSeparator(r rune) bool {
	return r == '_' || r == '-' || r == '.' || r == ':' || unicode.IsSpace(r)
}
