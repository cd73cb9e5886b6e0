package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dhamidi/wikidump/dump"
)

// Kind identifies one line pattern of the dump format.
type Kind int

const (
	KindPageStart Kind = iota
	KindTitle
	KindID
	KindRedirect
	KindRevisionStart
	KindRevisionEnd
	KindTimestamp
	KindContributorStart
	KindContributorEnd
	KindUsername
	KindComment
	KindMinor
	KindTextStart
	KindTextEmpty
	KindTextEnd
	KindPageEnd
)

var kindNames = map[Kind]string{
	KindPageStart:        "page",
	KindTitle:            "title",
	KindID:               "id",
	KindRedirect:         "redirect",
	KindRevisionStart:    "revision",
	KindRevisionEnd:      "/revision",
	KindTimestamp:        "timestamp",
	KindContributorStart: "contributor",
	KindContributorEnd:   "/contributor",
	KindUsername:         "username",
	KindComment:          "comment",
	KindMinor:            "minor",
	KindTextStart:        "text",
	KindTextEmpty:        "text/",
	KindTextEnd:          "/text",
	KindPageEnd:          "/page",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

const pageStartToken = "<page>"

// matcher recognizes one Kind. hint is a substring every matching line
// contains; it is checked before the pattern runs. Patterns with a capture
// group yield its text, the others only report a match.
type matcher struct {
	kind    Kind
	hint    string
	pattern *regexp.Regexp
}

var matchers = map[Kind]matcher{
	KindTitle:            {KindTitle, "<title>", regexp.MustCompile(`^.*<title>(.+)</title>.*$`)},
	KindID:               {KindID, "<id>", regexp.MustCompile(`^.*<id>([0-9]+)</id>.*$`)},
	KindRedirect:         {KindRedirect, "<redirect", regexp.MustCompile(`^.*<redirect.*/>.*$`)},
	KindRevisionStart:    {KindRevisionStart, "<revision>", regexp.MustCompile(`^.*<revision>.*$`)},
	KindRevisionEnd:      {KindRevisionEnd, "</revision>", regexp.MustCompile(`^.*</revision>.*$`)},
	KindTimestamp:        {KindTimestamp, "<timestamp>", regexp.MustCompile(`^.*<timestamp>(.+)</timestamp>\s*$`)},
	KindContributorStart: {KindContributorStart, "<contributor>", regexp.MustCompile(`^.*<contributor>.*$`)},
	KindContributorEnd:   {KindContributorEnd, "</contributor>", regexp.MustCompile(`^.*</contributor>.*$`)},
	KindUsername:         {KindUsername, "<username>", regexp.MustCompile(`^.*<username>(.+)</username>.*$`)},
	KindComment:          {KindComment, "<comment>", regexp.MustCompile(`^.*<comment>(.+)</comment>.*$`)},
	KindMinor:            {KindMinor, "<minor", regexp.MustCompile(`^.*<minor\s*/>.*$`)},
	KindTextStart:        {KindTextStart, "<text", regexp.MustCompile(`^.*<text(\s[^>]*)?>(.*)$`)},
	KindTextEmpty:        {KindTextEmpty, "<text", regexp.MustCompile(`^.*<text(\s[^>]*)?/>.*$`)},
	KindTextEnd:          {KindTextEnd, "</text>", regexp.MustCompile(`^(.*)</text>.*$`)},
	KindPageEnd:          {KindPageEnd, "</page>", regexp.MustCompile(`^.*</page>.*$`)},
}

func (m matcher) find(line string) (string, bool) {
	if !strings.Contains(line, m.hint) {
		return "", false
	}
	sub := m.pattern.FindStringSubmatch(line)
	if sub == nil {
		return "", false
	}
	if len(sub) > 1 {
		return sub[1], true
	}
	return "", true
}

// Match reports whether line matches kind and returns the captured text for
// kinds that carry a value. It holds no state and may be called on any line.
func Match(kind Kind, line string) (string, bool) {
	if kind == KindPageStart {
		return "", isPageStart(line)
	}
	if kind == KindTextStart {
		return matchTextStart(line)
	}
	m, ok := matchers[kind]
	if !ok {
		return "", false
	}
	return m.find(line)
}

func isPageStart(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), pageStartToken)
}

// MatchID extracts the digits of an <id> element.
func MatchID(line string) (int64, bool) {
	s, ok := Match(KindID, line)
	if !ok {
		return dump.NoID, false
	}
	id := dump.NoID
	if !parseID(s, &id) {
		return dump.NoID, false
	}
	return id, true
}

// MatchTimestamp extracts and parses a <timestamp> element. ok reports
// whether the line held the element at all; err is set when its content is
// not a valid date-time.
func MatchTimestamp(line string) (t time.Time, raw string, ok bool, err error) {
	raw, ok = Match(KindTimestamp, line)
	if !ok {
		return time.Time{}, "", false, nil
	}
	t, err = ParseTimestamp(raw)
	return t, raw, true, err
}

// ParseTimestamp parses the ISO-8601 date-time used by dumps and truncates
// it to millisecond precision in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return t.Truncate(time.Millisecond).UTC(), nil
}

// matchTextStart returns what follows an opening text tag. A self-closing
// tag is not an opening tag.
func matchTextStart(line string) (string, bool) {
	m := matchers[KindTextStart]
	if !strings.Contains(line, m.hint) {
		return "", false
	}
	sub := m.pattern.FindStringSubmatch(line)
	if sub == nil || strings.HasSuffix(sub[1], "/") {
		return "", false
	}
	return sub[2], true
}

// matchTextEmpty reports a self-closing text element and whether it marks a
// deleted body.
func matchTextEmpty(line string) (deleted bool, ok bool) {
	attrs, ok := Match(KindTextEmpty, line)
	if !ok {
		return false, false
	}
	return isDeleted(attrs), true
}

// isDeleted reports whether the attributes of a text element mark the body
// as omitted.
func isDeleted(attrs string) bool {
	return strings.Contains(attrs, "deleted=")
}
