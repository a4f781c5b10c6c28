package classifier

import (
	"strings"

	"github.com/ZACZ1NH0/Phishing-spam-mail/internal/config"
	"github.com/ZACZ1NH0/Phishing-spam-mail/pkg/types"
)

// Field selects the part of a message a rule looks at
type Field int

const (
	// FieldContent matches against the subject and the body
	FieldContent Field = iota
	// FieldSender matches against the sender address
	FieldSender
)

func (f Field) String() string {
	switch f {
	case FieldContent:
		return "content"
	case FieldSender:
		return "sender"
	default:
		return "unknown"
	}
}

// Rule assigns Label when any of its keywords occurs in Field.
// Keywords must be lower-case.
type Rule struct {
	Label    types.Label
	Field    Field
	Keywords []string
}

// RuleSet is evaluated in order; the first matching rule wins
type RuleSet []Rule

// Match is the outcome of evaluating a RuleSet
type Match struct {
	Label   types.Label
	Rule    int // index of the matching rule, -1 when nothing matched
	Keyword string
}

// NewRuleSet builds the fallback table: phishing keywords, then spam
// keywords, then suspicious sender domains
func NewRuleSet(cfg config.ClassifierConfig) RuleSet {
	return RuleSet{
		{Label: types.LabelPhishing, Field: FieldContent, Keywords: normalize(cfg.PhishingKeywords)},
		{Label: types.LabelSpam, Field: FieldContent, Keywords: normalize(cfg.SpamKeywords)},
		{Label: types.LabelSpam, Field: FieldSender, Keywords: normalize(cfg.SuspiciousDomains)},
	}
}

func normalize(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Match evaluates the rules against email. A message no rule matches is Normal.
func (rs RuleSet) Match(email *types.Email) Match {
	subject := strings.ToLower(email.Subject)
	body := strings.ToLower(email.Body)
	sender := email.SenderAddress()

	for i, rule := range rs {
		for _, kw := range rule.Keywords {
			var hit bool
			switch rule.Field {
			case FieldContent:
				hit = strings.Contains(subject, kw) || strings.Contains(body, kw)
			case FieldSender:
				hit = strings.Contains(sender, kw)
			}
			if hit {
				return Match{Label: rule.Label, Rule: i, Keyword: kw}
			}
		}
	}
	return Match{Label: types.LabelNormal, Rule: -1}
}
