package vocab_test

import (
	"testing"

	"github.com/voxnote/voxnote/internal/vocab"
)

func TestMatcher_PhoneticMatch(t *testing.T) {
	t.Parallel()

	m := vocab.New([]string{"Grafana", "Terraform", "Jira board"})

	// "gruffana" shares its Double Metaphone code with "Grafana".
	corrected, conf, matched := m.Match("gruffana")
	if !matched {
		t.Fatalf("Match(%q): matched=false, want true", "gruffana")
	}
	if corrected != "Grafana" {
		t.Errorf("Match(%q): corrected=%q, want %q", "gruffana", corrected, "Grafana")
	}
	if conf < 0.7 {
		t.Errorf("Match(%q): confidence=%f, want >= 0.7", "gruffana", conf)
	}
}

func TestMatcher_MultiWordTerm(t *testing.T) {
	t.Parallel()

	m := vocab.New([]string{"Jira board", "Grafana"})

	corrected, conf, matched := m.Match("jeera board")
	if !matched {
		t.Fatalf("Match(%q): matched=false, want true", "jeera board")
	}
	if corrected != "Jira board" {
		t.Errorf("Match(%q): corrected=%q, want %q", "jeera board", corrected, "Jira board")
	}
	if conf < 0.7 {
		t.Errorf("Match(%q): confidence=%f, want >= 0.7", "jeera board", conf)
	}
}

func TestMatcher_NoMatch(t *testing.T) {
	t.Parallel()

	m := vocab.New([]string{"Grafana", "Terraform"})

	corrected, conf, matched := m.Match("hello")
	if matched {
		t.Fatalf("Match(%q): matched=true, want false", "hello")
	}
	if corrected != "hello" {
		t.Errorf("Match(%q): corrected=%q, want original word", "hello", corrected)
	}
	if conf != 0 {
		t.Errorf("Match(%q): confidence=%f, want 0", "hello", conf)
	}
}

func TestMatcher_CanonicalCasing(t *testing.T) {
	t.Parallel()

	m := vocab.New([]string{"Kubernetes"})

	corrected, conf, matched := m.Match("KUBERNETES")
	if !matched {
		t.Fatalf("Match(%q): matched=false, want true", "KUBERNETES")
	}
	if corrected != "Kubernetes" {
		t.Errorf("Match(%q): corrected=%q, want canonical casing", "KUBERNETES", corrected)
	}
	if conf != 1 {
		t.Errorf("Match(%q): confidence=%f, want 1", "KUBERNETES", conf)
	}
}

func TestMatcher_IdenticalWindowNeedsNoCorrection(t *testing.T) {
	t.Parallel()

	m := vocab.New([]string{"Kubernetes"})

	if _, _, matched := m.Match("Kubernetes"); matched {
		t.Fatal("Match on the exact canonical spelling should report no match")
	}
}

func TestMatcher_SharedTokenDoesNotClaimMultiWordTerm(t *testing.T) {
	t.Parallel()

	m := vocab.New([]string{"Jira board"})

	// "the jeera" shares a phonetic code with "jira" but is not the term; a
	// match here would eat the article and duplicate "board" in the output.
	if _, _, matched := m.Match("the jeera"); matched {
		t.Fatal("Match should reject windows that only share one token with a term")
	}
	if _, _, matched := m.Match("board"); matched {
		t.Fatal("Match should reject a bare token of a multi-word term")
	}
}

func TestMatcher_ThresholdFiltering(t *testing.T) {
	t.Parallel()

	m := vocab.New(
		[]string{"Grafana"},
		vocab.WithPhoneticThreshold(0.99),
		vocab.WithFuzzyThreshold(0.99),
	)

	if _, _, matched := m.Match("gruffana"); matched {
		t.Fatal("Match with threshold=0.99 should reject near-matches")
	}
}

func TestMatcher_EmptyVocabulary(t *testing.T) {
	t.Parallel()

	m := vocab.New(nil)

	corrected, conf, matched := m.Match("grafana")
	if matched {
		t.Fatal("Match with empty vocabulary should report no match")
	}
	if corrected != "grafana" || conf != 0 {
		t.Errorf("Match: got (%q, %f), want original word and 0", corrected, conf)
	}
}

func TestCorrector_ReplacesMisheardWord(t *testing.T) {
	t.Parallel()

	c := vocab.NewCorrector([]string{"Grafana"})

	got, corrections := c.Apply("The dashboard lives in gruffana.")
	want := "The dashboard lives in Grafana."
	if got != want {
		t.Errorf("Apply: got %q, want %q", got, want)
	}
	if len(corrections) != 1 {
		t.Fatalf("Apply: %d corrections, want 1", len(corrections))
	}
	if corrections[0].Original != "gruffana" || corrections[0].Corrected != "Grafana" {
		t.Errorf("correction = %+v, want gruffana -> Grafana", corrections[0])
	}
}

func TestCorrector_MultiWordWindowKeepsPunctuation(t *testing.T) {
	t.Parallel()

	c := vocab.NewCorrector([]string{"Jira board"})

	got, corrections := c.Apply("We groomed the jeera board, then stopped.")
	want := "We groomed the Jira board, then stopped."
	if got != want {
		t.Errorf("Apply: got %q, want %q", got, want)
	}
	if len(corrections) != 1 {
		t.Fatalf("Apply: %d corrections, want 1", len(corrections))
	}
	if corrections[0].Original != "jeera board" {
		t.Errorf("correction original = %q, want %q", corrections[0].Original, "jeera board")
	}
}

func TestCorrector_KeepsSentenceCapital(t *testing.T) {
	t.Parallel()

	c := vocab.NewCorrector([]string{"kubernetes"})

	got, _ := c.Apply("Cubernetes is acting up again.")
	want := "Kubernetes is acting up again."
	if got != want {
		t.Errorf("Apply: got %q, want %q", got, want)
	}
}

func TestCorrector_NoChangeForCorrectText(t *testing.T) {
	t.Parallel()

	c := vocab.NewCorrector([]string{"webhook"})

	in := "Webhook fired twice."
	got, corrections := c.Apply(in)
	if got != in {
		t.Errorf("Apply: got %q, want input unchanged", got)
	}
	if len(corrections) != 0 {
		t.Errorf("Apply: %d corrections, want 0", len(corrections))
	}
}

func TestCorrector_EmptyVocabulary(t *testing.T) {
	t.Parallel()

	c := vocab.NewCorrector(nil)

	in := "Nothing to correct here."
	got, corrections := c.Apply(in)
	if got != in || corrections != nil {
		t.Errorf("Apply: got (%q, %v), want input unchanged and nil", got, corrections)
	}
}
