package jiratest

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/adamwoolhether/jira/issues"
)

// jql is a parsed query in the small JQL subset the fake server
// understands: clauses joined by AND, then an optional ORDER BY.
//
//	project = TEST AND status != Done AND labels in (a, b) ORDER BY key DESC
type jql struct {
	clauses []clause
	orderBy string
	desc    bool
}

type clause struct {
	field  string
	op     string // "=", "!=", "~" or "in"
	values []string
}

const currentUserFunc = "currentuser()"

// parseJQL parses s. An empty query matches every issue.
func parseJQL(s string) (jql, error) {
	toks, err := tokenize(s)
	if err != nil {
		return jql{}, err
	}

	p := &parser{toks: toks}

	var q jql
	for p.more() && !p.peekWord("order") {
		if len(q.clauses) > 0 {
			if !p.peekWord("and") {
				return jql{}, fmt.Errorf("expecting 'AND' or 'ORDER BY' but got %q", p.peek())
			}
			p.next()
		}

		c, err := p.clause()
		if err != nil {
			return jql{}, err
		}
		q.clauses = append(q.clauses, c)
	}

	if p.more() {
		p.next()
		if !p.peekWord("by") {
			return jql{}, fmt.Errorf("expecting 'BY' after 'ORDER' but got %q", p.peek())
		}
		p.next()

		if !p.more() {
			return jql{}, fmt.Errorf("expecting a field after 'ORDER BY'")
		}
		q.orderBy = strings.ToLower(p.next())
		if err := checkField(q.orderBy); err != nil {
			return jql{}, err
		}

		switch {
		case p.peekWord("desc"):
			q.desc = true
			p.next()
		case p.peekWord("asc"):
			p.next()
		}

		if p.more() {
			return jql{}, fmt.Errorf("unexpected %q at the end of the query", p.peek())
		}
	}

	return q, nil
}

// match reports whether is satisfies every clause. user is the
// authenticated username that currentUser() resolves to.
func (q jql) match(is issues.Issue, user string) bool {
	for _, c := range q.clauses {
		if !c.match(is, user) {
			return false
		}
	}

	return true
}

// sort orders list in place. Without ORDER BY the store order is kept.
func (q jql) sort(list []issues.Issue) {
	if q.orderBy == "" {
		return
	}

	slices.SortStableFunc(list, func(a, b issues.Issue) int {
		var n int
		switch q.orderBy {
		case "key", "issuekey":
			n = compareKeys(a, b)
		default:
			av, bv := fieldValues(a, q.orderBy, ""), fieldValues(b, q.orderBy, "")
			n = strings.Compare(strings.Join(av, ","), strings.Join(bv, ","))
		}

		if q.desc {
			return -n
		}
		return n
	})
}

func (c clause) match(is issues.Issue, user string) bool {
	got := fieldValues(is, c.field, user)

	if c.op == "~" {
		needle := strings.ToLower(c.values[0])
		for _, v := range got {
			if strings.Contains(strings.ToLower(v), needle) {
				return true
			}
		}
		return false
	}

	var hit bool
	for _, want := range c.values {
		want = resolve(want, user)
		if want == "" && len(got) == 0 {
			hit = true
		}
		for _, v := range got {
			if strings.EqualFold(v, want) {
				hit = true
			}
		}
	}

	if c.op == "!=" {
		return !hit
	}

	return hit
}

// resolve maps the functions and keywords a value may use.
func resolve(value, user string) string {
	switch strings.ToLower(value) {
	case currentUserFunc:
		return user
	case "empty", "null":
		return ""
	default:
		return value
	}
}

// fieldValues lists the values of field on is that a clause compares
// against. A user field yields its account id, email and display name.
func fieldValues(is issues.Issue, field, user string) []string {
	f := is.Fields

	switch field {
	case "project":
		if f.Project == nil {
			return nil
		}
		return nonEmpty(f.Project.Key, f.Project.Name, f.Project.ID)
	case "key", "issuekey":
		return []string{is.Key, is.ID}
	case "status":
		if f.Status == nil {
			return nil
		}
		return nonEmpty(f.Status.Name)
	case "assignee":
		return userValues(f.Assignee)
	case "reporter":
		return userValues(f.Reporter)
	case "issuetype", "type":
		if f.IssueType == nil {
			return nil
		}
		return nonEmpty(f.IssueType.Name)
	case "priority":
		if f.Priority == nil {
			return nil
		}
		return nonEmpty(f.Priority.Name)
	case "labels":
		return f.Labels
	case "summary":
		return nonEmpty(f.Summary)
	case "text":
		return nonEmpty(f.Summary, documentText(f.Description))
	case "created":
		return nonEmpty(f.Created)
	case "updated":
		return nonEmpty(f.Updated)
	}

	return nil
}

var knownFields = []string{
	"project", "key", "issuekey", "status", "assignee", "reporter",
	"issuetype", "type", "priority", "labels", "summary", "text",
	"created", "updated",
}

func checkField(field string) error {
	if !slices.Contains(knownFields, field) {
		return fmt.Errorf("field '%s' does not exist or you do not have permission to view it", field)
	}

	return nil
}

func userValues(u *issues.User) []string {
	if u == nil {
		return nil
	}

	return nonEmpty(u.AccountID, u.EmailAddress, u.DisplayName)
}

func nonEmpty(vals ...string) []string {
	return slices.DeleteFunc(vals, func(v string) bool { return v == "" })
}

// documentText concatenates the text nodes of an Atlassian Document
// Format value, or returns a plain string description as is.
func documentText(doc any) string {
	switch v := doc.(type) {
	case string:
		return v
	case map[string]any:
		if t, ok := v["text"].(string); ok {
			return t
		}
		return documentText(v["content"])
	case []any:
		parts := make([]string, 0, len(v))
		for _, n := range v {
			if t := documentText(n); t != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, " ")
	}

	return ""
}

// /////////////////////////////////////////////////////////////////////////////////////////////

type parser struct {
	toks []string
	pos  int
}

func (p *parser) more() bool { return p.pos < len(p.toks) }

func (p *parser) peek() string {
	if !p.more() {
		return ""
	}
	return p.toks[p.pos]
}

func (p *parser) peekWord(w string) bool {
	return strings.EqualFold(p.peek(), w)
}

func (p *parser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) clause() (clause, error) {
	field := strings.ToLower(p.next())
	if err := checkField(field); err != nil {
		return clause{}, err
	}

	op := strings.ToLower(p.next())
	switch op {
	case "=", "!=", "~":
		if !p.more() {
			return clause{}, fmt.Errorf("expecting a value after '%s %s'", field, op)
		}
		return clause{field: field, op: op, values: []string{unquote(p.next())}}, nil

	case "in":
		if p.next() != "(" {
			return clause{}, fmt.Errorf("expecting '(' after '%s in'", field)
		}

		var vals []string
		for {
			if !p.more() {
				return clause{}, fmt.Errorf("unterminated list for field '%s'", field)
			}
			vals = append(vals, unquote(p.next()))

			switch p.next() {
			case ",":
				continue
			case ")":
				return clause{field: field, op: "in", values: vals}, nil
			default:
				return clause{}, fmt.Errorf("expecting ',' or ')' in the list for field '%s'", field)
			}
		}

	default:
		return clause{}, fmt.Errorf("unsupported operator %q for field '%s'", op, field)
	}
}

// tokenize splits s into words, quoted strings and the operator
// characters = != ~ ( ) and ",". Quoted strings keep their quotes.
func tokenize(s string) ([]string, error) {
	var toks []string

	rs := []rune(s)
	for i := 0; i < len(rs); {
		r := rs[i]

		switch {
		case unicode.IsSpace(r):
			i++

		case r == '"' || r == '\'':
			j := i + 1
			for j < len(rs) && rs[j] != r {
				j++
			}
			if j == len(rs) {
				return nil, fmt.Errorf("unterminated quoted value at position %d", i)
			}
			toks = append(toks, string(rs[i:j+1]))
			i = j + 1

		case r == '!' && i+1 < len(rs) && rs[i+1] == '=':
			toks = append(toks, "!=")
			i += 2

		case strings.ContainsRune("=~(),", r):
			toks = append(toks, string(r))
			i++

		default:
			j := i
			for j < len(rs) && !unicode.IsSpace(rs[j]) && !strings.ContainsRune("=~,\"'", rs[j]) && !(rs[j] == '!' && j+1 < len(rs) && rs[j+1] == '=') {
				// A call such as currentUser() keeps its parentheses.
				if rs[j] == '(' {
					if j+1 < len(rs) && rs[j+1] == ')' && j > i {
						j += 2
					}
					break
				}
				if rs[j] == ')' {
					break
				}
				j++
			}
			toks = append(toks, string(rs[i:j]))
			i = j
		}
	}

	return toks, nil
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}

	return s
}
