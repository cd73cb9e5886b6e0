package parser

import (
	"fmt"
	"strconv"

	"github.com/dhamidi/wikidump/dump"
)

type phase int

const (
	awaitingPage phase = iota
	inPageHeader
	inRevision
	inContributor
	inText
)

func (p phase) String() string {
	switch p {
	case awaitingPage:
		return "awaiting-page"
	case inPageHeader:
		return "page-header"
	case inRevision:
		return "revision"
	case inContributor:
		return "contributor"
	case inText:
		return "text"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// state is the position of the parser within the record grammar together
// with the records under construction. step returns the state for the next
// line; a state value is never shared between readers.
type state struct {
	phase   phase
	page    *dump.Page
	rev     *dump.Revision
	contrib *dump.Contributor
	text    *textBlock

	// keep appends finished revisions to their page.
	keep bool
}

// event carries the records completed by one step. revPage is the page a
// completed revision belongs to.
type event struct {
	rev     *dump.Revision
	revPage *dump.Page
	page    *dump.Page
}

func (e event) empty() bool {
	return e.rev == nil && e.page == nil
}

func newState(keep bool) state {
	return state{phase: awaitingPage, keep: keep}
}

// step feeds one line to the machine. At most one matcher accepts a line;
// matchers whose field was already seen in the current record are skipped.
func step(s state, line string) (state, event) {
	switch s.phase {
	case awaitingPage:
		if isPageStart(line) {
			return s.openPage(), event{}
		}
		return s, event{}
	case inPageHeader:
		return stepPageHeader(s, line)
	case inRevision:
		return stepRevision(s, line)
	case inContributor:
		return stepContributor(s, line)
	case inText:
		s.addText(line)
		return s, event{}
	}
	panic("parser: unknown phase " + s.phase.String())
}

func (s state) openPage() state {
	s.phase = inPageHeader
	s.page = dump.NewPage()
	s.rev, s.contrib, s.text = nil, nil, nil
	return s
}

// fieldRule fills one field of the record under construction from the
// value its matcher captured. set may reject the value, in which case the
// line goes on to the next rule.
type fieldRule struct {
	kind  Kind
	field dump.Fields
	set   func(s *state, value string) bool
}

// Rule tables are in priority order; the first rule whose field is unset
// and whose matcher accepts the line consumes it.
var (
	pageRules = []fieldRule{
		{KindTitle, dump.FieldTitle, func(s *state, v string) bool {
			s.page.Title = v
			return true
		}},
		{KindID, dump.FieldID, func(s *state, v string) bool {
			return parseID(v, &s.page.ID)
		}},
		{KindRedirect, dump.FieldRedirect, func(s *state, _ string) bool {
			s.page.Redirect = true
			return true
		}},
	}

	revisionRules = []fieldRule{
		{KindID, dump.FieldID, func(s *state, v string) bool {
			return parseID(v, &s.rev.ID)
		}},
		{KindTimestamp, dump.FieldTimestamp, func(s *state, v string) bool {
			t, err := ParseTimestamp(v)
			if err != nil {
				s.rev.Errs = append(s.rev.Errs, &FieldError{Field: "timestamp", Value: v, Err: err})
				return true
			}
			s.rev.Timestamp = t
			return true
		}},
		{KindContributorStart, dump.FieldContributor, func(s *state, _ string) bool {
			s.phase = inContributor
			s.contrib = dump.NewContributor()
			return true
		}},
		{KindComment, dump.FieldComment, func(s *state, v string) bool {
			s.rev.Comment = v
			return true
		}},
		{KindMinor, dump.FieldMinor, func(s *state, _ string) bool {
			s.rev.Minor = true
			return true
		}},
		{KindTextStart, dump.FieldText, func(s *state, rest string) bool {
			s.text = &textBlock{}
			s.phase = inText
			s.addText(rest)
			return true
		}},
		{KindTextEmpty, dump.FieldText, func(s *state, attrs string) bool {
			if !isDeleted(attrs) {
				s.rev.Text = dump.Text("")
			}
			return true
		}},
	}

	contributorRules = []fieldRule{
		{KindUsername, dump.FieldUsername, func(s *state, v string) bool {
			s.contrib.Username = v
			return true
		}},
		{KindID, dump.FieldID, func(s *state, v string) bool {
			return parseID(v, &s.contrib.ID)
		}},
	}
)

// applyRules offers line to rules and reports whether one consumed it.
func applyRules(s *state, seen *dump.Fields, rules []fieldRule, line string) bool {
	for _, r := range rules {
		if seen.Has(r.field) {
			continue
		}
		v, ok := Match(r.kind, line)
		if !ok || !r.set(s, v) {
			continue
		}
		*seen |= r.field
		return true
	}
	return false
}

func parseID(s string, id *int64) bool {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// more digits than an int64 holds
		return false
	}
	*id = n
	return true
}

// addText feeds one line to the open text block and closes it at the end
// tag.
func (s *state) addText(line string) {
	if s.text.add(line) {
		s.rev.Text = dump.Text(s.text.String())
		s.text = nil
		s.phase = inRevision
	}
}

func stepPageHeader(s state, line string) (state, event) {
	p := s.page

	if isPageStart(line) {
		// the previous page never closed
		s, ev := finish(s)
		return s.openPage(), ev
	}
	if applyRules(&s, &p.Seen, pageRules, line) {
		return s, event{}
	}
	if _, ok := Match(KindRevisionStart, line); ok {
		s.phase = inRevision
		s.rev = dump.NewRevision()
		s.rev.PageID = p.ID
		return s, event{}
	}
	if _, ok := Match(KindPageEnd, line); ok {
		p.Seen |= dump.FieldEnd
		s.phase = awaitingPage
		s.page = nil
		return s, event{page: p}
	}
	return s, event{}
}

func stepRevision(s state, line string) (state, event) {
	r := s.rev

	if applyRules(&s, &r.Seen, revisionRules, line) {
		return s, event{}
	}
	if _, ok := Match(KindRevisionEnd, line); ok {
		r.Seen |= dump.FieldEnd
		return s.closeRevision()
	}
	if _, ok := Match(KindPageEnd, line); ok {
		// revision left open; the page end closes both
		s, ev := s.closeRevision()
		s.page.Seen |= dump.FieldEnd
		ev.page = s.page
		s.phase = awaitingPage
		s.page = nil
		return s, ev
	}
	if isPageStart(line) {
		s, ev := finish(s)
		return s.openPage(), ev
	}
	return s, event{}
}

func stepContributor(s state, line string) (state, event) {
	c := s.contrib

	if applyRules(&s, &c.Seen, contributorRules, line) {
		return s, event{}
	}
	if _, ok := Match(KindContributorEnd, line); ok {
		c.Seen |= dump.FieldEnd
		return s.closeContributor(), event{}
	}
	// A boundary of the enclosing records ends the contributor as well; the
	// line is then handled by the revision.
	if isPageStart(line) {
		return stepRevision(s.closeContributor(), line)
	}
	for _, kind := range []Kind{KindRevisionEnd, KindPageEnd} {
		if _, ok := Match(kind, line); ok {
			return stepRevision(s.closeContributor(), line)
		}
	}
	return s, event{}
}

func (s state) closeContributor() state {
	s.rev.Contributor = s.contrib
	s.contrib = nil
	s.phase = inRevision
	return s
}

func (s state) closeRevision() (state, event) {
	r := s.rev
	if s.keep {
		s.page.Revisions = append(s.page.Revisions, r)
	}
	s.rev = nil
	s.phase = inPageHeader
	return s, event{rev: r, revPage: s.page}
}

// finish completes whatever is under construction when the input ends or a
// new page starts early. Partial records are returned as they are.
func finish(s state) (state, event) {
	var ev event
	switch s.phase {
	case awaitingPage:
		return s, ev
	case inText:
		s.rev.Text = dump.Text(s.text.String())
		s.text = nil
		s.phase = inRevision
		return finish(s)
	case inContributor:
		return finish(s.closeContributor())
	case inRevision:
		s, ev = s.closeRevision()
	}
	ev.page = s.page
	s.phase = awaitingPage
	s.page = nil
	return s, ev
}
