package session

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/healthchat/internal/domain"
)

func TestRecordAppendsUserThenAssistant(t *testing.T) {
	t.Parallel()
	s := NewStore()
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	s.Record("whatsapp:+1", "hello", "hi there")

	turns := s.Read("whatsapp:+1", 5)
	if len(turns) != 2 {
		t.Fatalf("Expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != domain.RoleUser || turns[0].Content != "hello" {
		t.Errorf("Unexpected user turn: %+v", turns[0])
	}
	if turns[1].Role != domain.RoleAssistant || turns[1].Content != "hi there" {
		t.Errorf("Unexpected assistant turn: %+v", turns[1])
	}
	if !turns[0].Timestamp.Equal(fixed) {
		t.Errorf("Expected timestamp %v, got %v", fixed, turns[0].Timestamp)
	}
}

func TestRecordEvictsOldestFirst(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 5, 10, 11, 25} {
		t.Run(fmt.Sprintf("records=%d", n), func(t *testing.T) {
			s := NewStore()
			for i := 0; i < n; i++ {
				s.Record("k", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
			}

			want := 2 * min(n, 10)
			if got := s.Len("k"); got != want {
				t.Fatalf("Expected %d turns, got %d", want, got)
			}

			turns := s.Read("k", 100)
			if len(turns) != want {
				t.Fatalf("Expected Read to return %d turns, got %d", want, len(turns))
			}
			first := n - want/2
			for i := 0; i < want/2; i++ {
				if got := turns[2*i].Content; got != fmt.Sprintf("q%d", first+i) {
					t.Errorf("turn %d: expected q%d, got %s", 2*i, first+i, got)
				}
				if got := turns[2*i+1].Content; got != fmt.Sprintf("a%d", first+i) {
					t.Errorf("turn %d: expected a%d, got %s", 2*i+1, first+i, got)
				}
			}
		})
	}
}

func TestReadLimitsExchanges(t *testing.T) {
	t.Parallel()
	s := NewStore()
	for i := 0; i < 8; i++ {
		s.Record("k", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	turns := s.Read("k", 2)
	if len(turns) != 4 {
		t.Fatalf("Expected 4 turns, got %d", len(turns))
	}
	if turns[0].Content != "q6" || turns[3].Content != "a7" {
		t.Errorf("Expected last two exchanges, got %+v", turns)
	}

	if got := s.Read("k", 0); len(got) != 0 {
		t.Errorf("Expected no turns for zero limit, got %d", len(got))
	}
	if got := s.Read("missing", 5); got == nil || len(got) != 0 {
		t.Errorf("Expected empty non-nil slice for absent session, got %v", got)
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	s := NewStore()

	if got := s.Summarize("k"); got != "" {
		t.Errorf("Expected empty summary, got %q", got)
	}

	long := strings.Repeat("x", 80)
	for i := 0; i < 4; i++ {
		s.Record("k", fmt.Sprintf("question %d", i), long)
	}

	lines := strings.Split(s.Summarize("k"), "\n")
	if len(lines) != 6 {
		t.Fatalf("Expected 6 summary lines, got %d", len(lines))
	}
	if lines[0] != "User asked about: question 1..." {
		t.Errorf("Unexpected first line: %q", lines[0])
	}
	if want := "Bot provided information about: " + strings.Repeat("x", 50) + "..."; lines[1] != want {
		t.Errorf("Expected truncated assistant line, got %q", lines[1])
	}
}

func TestClear(t *testing.T) {
	t.Parallel()
	s := NewStore()

	s.Clear("missing")

	s.Record("k", "q", "a")
	s.Record("other", "q", "a")
	s.Clear("k")
	s.Clear("k")

	if got := s.Read("k", 5); len(got) != 0 {
		t.Errorf("Expected empty session after clear, got %d turns", len(got))
	}
	if s.Len("other") != 2 {
		t.Error("Clear affected another session")
	}
	if s.Count() != 1 {
		t.Errorf("Expected 1 active session, got %d", s.Count())
	}

	s.Record("k", "again", "reply")
	if s.Len("k") != 2 {
		t.Errorf("Expected fresh session after clear, got %d turns", s.Len("k"))
	}
}

func TestConcurrentRecordKeepsPairs(t *testing.T) {
	t.Parallel()
	s := NewStore()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", w%2)
			for i := 0; i < 50; i++ {
				s.Record(key, "q", "a")
				if i%10 == 0 {
					s.Clear(key)
				}
			}
		}(w)
	}
	wg.Wait()

	for _, key := range []string{"k0", "k1"} {
		turns := s.Read(key, MaxTurns)
		if len(turns)%2 != 0 || len(turns) > MaxTurns {
			t.Fatalf("%s: invalid turn count %d", key, len(turns))
		}
		for i := 0; i < len(turns); i += 2 {
			if turns[i].Role != domain.RoleUser || turns[i+1].Role != domain.RoleAssistant {
				t.Fatalf("%s: turn pair %d out of order", key, i/2)
			}
		}
	}
}
