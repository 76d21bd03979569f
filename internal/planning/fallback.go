package planning

import (
	"regexp"
	"strings"

	"github.com/rahul/stepwright/internal/schema"
)

// Rule is one row of the fallback classification table. Match receives the
// lowercased request; Build returns raw parameters for Tool.
type Rule struct {
	Name  string
	Tool  string
	Match func(lower string) bool
	Build func(request string, entry *schema.Entry) map[string]any
}

var (
	urlPattern  = regexp.MustCompile(`https?://[^\s<>"'()]+`)
	pathPattern = regexp.MustCompile(`(?:^|\s)((?:\.{1,2}/|/)?[\w\-.]+(?:/[\w\-.]+)*\.[A-Za-z][A-Za-z0-9]{0,7}|(?:\.{1,2}/|/)?[\w\-.]+(?:/[\w\-.]+)+/?)(?:$|[\s,;:!?)])`)
)

// DefaultRules is the built-in classification order. The first rule whose
// tool is registered and whose Match succeeds wins.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:  "url",
			Tool:  "fetch",
			Match: func(lower string) bool { return urlPattern.MatchString(lower) },
			Build: func(request string, _ *schema.Entry) map[string]any {
				u := urlPattern.FindString(request)
				return map[string]any{"url": strings.TrimRight(u, ".,;:!?")}
			},
		},
		{
			Name:  "version-control",
			Tool:  "git",
			Match: func(lower string) bool {
				return hasAnyWord(lower, "git", "commit", "commits", "branch", "branches", "diff",
					"log", "history", "stash", "merge", "staged", "unstaged", "uncommitted") ||
					hasPhrase(lower, "version control")
			},
			Build: func(request string, _ *schema.Entry) map[string]any {
				return map[string]any{"action": gitAction(strings.ToLower(request))}
			},
		},
		{
			Name:  "search",
			Tool:  "search",
			Match: func(lower string) bool {
				if webIntent(lower) {
					return false
				}
				return hasAnyWord(lower, "find", "search", "grep", "locate", "occurrences", "usages") ||
					hasPhrase(lower, "look for", "where is", "where are")
			},
			Build: func(request string, entry *schema.Entry) map[string]any {
				return map[string]any{primaryParam(entry, "query"): request}
			},
		},
		{
			Name:  "file",
			Tool:  "file",
			Match: func(lower string) bool {
				return hasAnyWord(lower, "file", "files", "read", "open", "cat", "list", "directory",
					"folder", "contents") || pathPattern.MatchString(lower)
			},
			Build: func(request string, _ *schema.Entry) map[string]any {
				if p := firstPath(request); p != "" && !strings.HasSuffix(p, "/") {
					return map[string]any{"action": "read", "path": p}
				} else if p != "" {
					return map[string]any{"action": "list", "path": p}
				}
				return map[string]any{"action": "list", "path": "."}
			},
		},
		{
			Name:  "web",
			Tool:  "web_search",
			Match: webIntent,
			Build: func(request string, entry *schema.Entry) map[string]any {
				return map[string]any{primaryParam(entry, "query"): request}
			},
		},
	}
}

func webIntent(lower string) bool {
	return hasAnyWord(lower, "online", "internet", "web", "google") ||
		hasPhrase(lower, "latest news", "look up")
}

func gitAction(lower string) string {
	switch {
	case hasAnyWord(lower, "log", "history", "commits"):
		return "log"
	case hasAnyWord(lower, "diff", "changes", "changed", "unstaged", "uncommitted"):
		return "diff"
	case hasAnyWord(lower, "branch", "branches"):
		return "branch"
	}
	return "status"
}

// Synthesizer builds single-step plans from request text alone.
type Synthesizer struct {
	Rules       []Rule
	DefaultTool string
}

func NewSynthesizer(rules []Rule, defaultTool string) *Synthesizer {
	return &Synthesizer{Rules: rules, DefaultTool: defaultTool}
}

// Classify returns the first matching rule whose tool is registered in snap.
func (s *Synthesizer) Classify(text string, snap *schema.Snapshot) (Rule, *schema.Entry, bool) {
	lower := strings.ToLower(text)
	for _, r := range s.Rules {
		entry, ok := snap.Lookup(r.Tool)
		if !ok || r.Match == nil || !r.Match(lower) {
			continue
		}
		return r, entry, true
	}
	return Rule{}, nil, false
}

// Synthesize returns exactly one step with no dependencies. Rule output is
// checked against the schema; a rule whose parameters do not conform is
// passed over, and the default tool receives the request verbatim.
func (s *Synthesizer) Synthesize(request string, snap *schema.Snapshot) CorrectedStep {
	return s.infer(request, request, "step_1", snap)
}

// infer classifies text and builds parameters from content.
func (s *Synthesizer) infer(text, content, id string, snap *schema.Snapshot) CorrectedStep {
	lower := strings.ToLower(text)
	for _, r := range s.Rules {
		if r.Match == nil || !r.Match(lower) {
			continue
		}
		entry, ok := snap.Lookup(r.Tool)
		if !ok {
			continue
		}
		var raw map[string]any
		if r.Build != nil {
			raw = r.Build(content, entry)
		}
		step := s.conform(id, content, entry, raw, "matched rule "+r.Name)
		if step.Resolved() {
			return step
		}
	}
	return s.fallbackStep(id, content, snap)
}

func (s *Synthesizer) fallbackStep(id, content string, snap *schema.Snapshot) CorrectedStep {
	entry, ok := snap.Lookup(s.DefaultTool)
	if !ok {
		return Correct(ProposedStep{ID: id, Description: content, Tool: s.DefaultTool}, nil)
	}
	raw := map[string]any{primaryParam(entry, ""): primaryContent(content)}
	return s.conform(id, content, entry, raw, "no rule matched")
}

func (s *Synthesizer) conform(id, content string, entry *schema.Entry, raw map[string]any, why string) CorrectedStep {
	step := Correct(ProposedStep{
		ID:            id,
		Description:   content,
		Tool:          entry.Tool,
		RawParameters: raw,
	}, entry)
	step.Provenance = append([]Fix{{Kind: FixInferred, To: entry.Tool, Detail: why}}, step.Provenance...)
	return step
}

// primaryParam names the parameter that receives free text: the entry's
// Primary, then want if declared, then the first required parameter.
func primaryParam(entry *schema.Entry, want string) string {
	if entry.Primary != "" {
		return entry.Primary
	}
	if want != "" {
		if _, ok := entry.Param(want); ok {
			return want
		}
	}
	if req := entry.Required(); len(req) > 0 {
		return req[0]
	}
	if len(entry.Params) > 0 {
		return entry.Params[0].Name
	}
	return want
}

func primaryContent(s string) string {
	if strings.TrimSpace(s) == "" {
		return "help"
	}
	return s
}

func firstPath(request string) string {
	m := pathPattern.FindStringSubmatch(request)
	if m == nil {
		return ""
	}
	return m[1]
}

// hasAnyWord matches whole words only, so "log" does not fire on "login".
func hasAnyWord(lower string, words ...string) bool {
	for _, w := range wordsOf(lower) {
		for _, want := range words {
			if w == want {
				return true
			}
		}
	}
	return false
}

func hasPhrase(lower string, phrases ...string) bool {
	padded := " " + strings.Join(wordsOf(lower), " ") + " "
	for _, p := range phrases {
		if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}

func wordsOf(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	})
}
