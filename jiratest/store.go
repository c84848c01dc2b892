package jiratest

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adamwoolhether/jira/issues"
)

// TimeLayout is the layout Jira uses for the created and updated fields.
const TimeLayout = "2006-01-02T15:04:05.000-0700"

const firstIssueID = 10000

var errIssueNotFound = errors.New("Issue does not exist or you do not have permission to see it.")

// store is an in-memory issue table, keyed by issue key.
type store struct {
	mu     sync.RWMutex
	issues map[string]issues.Issue
	ids    map[string]string // id -> key
	seq    map[string]int    // project key -> highest issue number
	nextID int
	now    func() time.Time
}

func newStore(now func() time.Time) *store {
	return &store{
		issues: make(map[string]issues.Issue),
		ids:    make(map[string]string),
		seq:    make(map[string]int),
		nextID: firstIssueID,
		now:    now,
	}
}

// put stores is as given, assigning an id and a project when missing.
func (s *store) put(is issues.Issue) (issues.Issue, error) {
	is.Key = strings.ToUpper(is.Key)

	project, num, err := splitKey(is.Key)
	if err != nil {
		return issues.Issue{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if is.ID == "" {
		is.ID = strconv.Itoa(s.nextID)
	}
	if id, err := strconv.Atoi(is.ID); err == nil && id >= s.nextID {
		s.nextID = id + 1
	}
	if is.Fields.Project == nil {
		is.Fields.Project = &issues.Project{Key: project}
	}

	s.seq[project] = max(s.seq[project], num)
	s.issues[is.Key] = is
	s.ids[is.ID] = is.Key

	return is, nil
}

// create allocates the next key in project and stores the issue.
func (s *store) create(project string, fields issues.Fields) issues.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq[project]++
	now := s.now().Format(TimeLayout)

	is := issues.Issue{
		ID:     strconv.Itoa(s.nextID),
		Key:    fmt.Sprintf("%s-%d", project, s.seq[project]),
		Fields: fields,
	}
	s.nextID++

	is.Fields.Project = &issues.Project{Key: project}
	if is.Fields.Status == nil {
		is.Fields.Status = &issues.Status{Name: "To Do", StatusCategory: &issues.StatusCategory{Key: "new", Name: "To Do"}}
	}
	is.Fields.Created = now
	is.Fields.Updated = now

	s.issues[is.Key] = is
	s.ids[is.ID] = is.Key

	return is
}

// get looks an issue up by key or numeric id.
func (s *store) get(keyOrID string) (issues.Issue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lookup(keyOrID)
}

func (s *store) lookup(keyOrID string) (issues.Issue, bool) {
	if key, ok := s.ids[keyOrID]; ok {
		keyOrID = key
	}

	is, ok := s.issues[strings.ToUpper(keyOrID)]
	return is, ok
}

// update applies fn to a copy of the issue and stores the result.
func (s *store) update(keyOrID string, fn func(*issues.Issue) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	is, ok := s.lookup(keyOrID)
	if !ok {
		return errIssueNotFound
	}

	if err := fn(&is); err != nil {
		return err
	}
	is.Fields.Updated = s.now().Format(TimeLayout)

	s.issues[is.Key] = is

	return nil
}

func (s *store) delete(keyOrID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	is, ok := s.lookup(keyOrID)
	if !ok {
		return false
	}

	delete(s.issues, is.Key)
	delete(s.ids, is.ID)

	return true
}

// list returns every issue matching keep, ordered by project then number.
func (s *store) list(keep func(issues.Issue) bool) []issues.Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []issues.Issue
	for _, is := range s.issues {
		if keep(is) {
			out = append(out, is)
		}
	}

	slices.SortFunc(out, compareKeys)

	return out
}

func (s *store) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.issues)
}

// splitKey splits an issue key such as TEST-12 into TEST and 12.
func splitKey(key string) (string, int, error) {
	i := strings.LastIndexByte(key, '-')
	if i <= 0 {
		return "", 0, fmt.Errorf("invalid issue key %q", key)
	}

	num, err := strconv.Atoi(key[i+1:])
	if err != nil || num <= 0 {
		return "", 0, fmt.Errorf("invalid issue key %q", key)
	}

	return key[:i], num, nil
}

func compareKeys(a, b issues.Issue) int {
	pa, na, _ := splitKey(a.Key)
	pb, nb, _ := splitKey(b.Key)

	return cmp.Or(strings.Compare(pa, pb), cmp.Compare(na, nb))
}
