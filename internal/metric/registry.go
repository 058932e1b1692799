package metric

import (
	"fmt"

	"github.com/citadel-ai/langcheckchat/internal/config"
	"github.com/citadel-ai/langcheckchat/internal/llm"
	"github.com/citadel-ai/langcheckchat/internal/models"
	"github.com/citadel-ai/langcheckchat/internal/scoring"
)

// Suite selects which definitions a runner pass computes.
type Suite int

const (
	// SuiteStandard runs after every chat turn.
	SuiteStandard Suite = iota
	// SuiteReference runs once a reference answer is attached.
	SuiteReference
)

func (s Suite) String() string {
	if s == SuiteReference {
		return "reference"
	}
	return "standard"
}

// Field names a chat log column passed positionally to a scorer.
type Field string

const (
	FieldRequest   Field = "request"
	FieldResponse  Field = "response"
	FieldSource    Field = "source"
	FieldReference Field = "reference"
)

// Definition is a metric independent of any entry. It is bound to an entry's
// field values by Registry.Bind.
type Definition struct {
	Name    string
	Inputs  []Field
	Scorers map[string]Scorers
	Local   bool
	Remote  bool
}

// Backends are the scoring collaborators the registry draws on. Sidecar is
// required when local models are enabled, Judge when remote metrics are.
type Backends struct {
	Sidecar  *scoring.SidecarClient
	Judge    llm.Completer
	Embedder llm.Embedder
}

// Registry holds the definitions of both suites, built once at startup.
type Registry struct {
	standard     []Definition
	reference    []Definition
	inline       map[string]scoring.Scorer
	inlineName   string
	remoteSuffix string
	store        Store
}

var languages = []string{models.LanguageEnglish, models.LanguageJapanese}

// NewRegistry builds every definition the configuration enables.
func NewRegistry(cfg *config.Config, b Backends, store Store) (*Registry, error) {
	if cfg.Local.Enabled && b.Sidecar == nil {
		return nil, fmt.Errorf("%w: local models enabled without a scoring service", ErrConfiguration)
	}
	if cfg.Remote.Enabled && b.Judge == nil {
		return nil, fmt.Errorf("%w: remote metrics enabled without a judge", ErrConfiguration)
	}
	if !cfg.Local.Enabled && !cfg.Remote.Enabled {
		return nil, fmt.Errorf("%w: neither local nor remote scoring is enabled", ErrConfiguration)
	}

	r := &Registry{remoteSuffix: cfg.Remote.Suffix(), store: store}

	sidecar := func(metric string) map[string]scoring.Scorer {
		if !cfg.Local.Enabled {
			return nil
		}
		out := make(map[string]scoring.Scorer, len(languages))
		for _, lang := range languages {
			out[lang] = b.Sidecar.Scorer(metric, lang)
		}
		return out
	}
	judge := func(metric string) (map[string]scoring.Scorer, error) {
		if !cfg.Remote.Enabled {
			return nil, nil
		}
		out := make(map[string]scoring.Scorer, len(languages))
		for _, lang := range languages {
			s, err := scoring.NewJudgeScorer(b.Judge, metric, lang)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
			}
			out[lang] = s
		}
		return out, nil
	}
	add := func(suite Suite, name string, inputs []Field, local, remote map[string]scoring.Scorer) {
		if cfg.Excluded(name) || len(local) == 0 && len(remote) == 0 {
			return
		}
		def := Definition{
			Name:    name,
			Inputs:  inputs,
			Scorers: make(map[string]Scorers, len(languages)),
			Local:   len(local) > 0,
			Remote:  len(remote) > 0,
		}
		for _, lang := range languages {
			s := Scorers{Local: local[lang], Remote: remote[lang]}
			if s.Local != nil || s.Remote != nil {
				def.Scorers[lang] = s
			}
		}
		if suite == SuiteReference {
			r.reference = append(r.reference, def)
		} else {
			r.standard = append(r.standard, def)
		}
	}

	// reference-free metrics on both sides of the exchange
	for _, field := range []Field{FieldRequest, FieldResponse} {
		prefix := string(field) + "_"
		for _, m := range []string{scoring.JudgeToxicity, scoring.JudgeSentiment, scoring.JudgeFluency} {
			remote, err := judge(m)
			if err != nil {
				return nil, err
			}
			add(SuiteStandard, prefix+m, []Field{field}, sidecar(m), remote)
		}
		add(SuiteStandard, prefix+"readability", []Field{field}, map[string]scoring.Scorer{
			models.LanguageEnglish:  scoring.FleschReadingEase,
			models.LanguageJapanese: scoring.TateishiOnoYamadaReadingEase,
		}, nil)
	}

	if cfg.Local.Enabled {
		// The scoring service only ships an English disclaimer model; Japanese
		// responses are scored with it too.
		disclaimer := b.Sidecar.Scorer(scoring.SidecarAIDisclaimerSimilarity, models.LanguageEnglish)
		add(SuiteStandard, "ai_disclaimer_similarity", []Field{FieldResponse}, map[string]scoring.Scorer{
			models.LanguageEnglish:  disclaimer,
			models.LanguageJapanese: disclaimer,
		}, nil)
	}

	if cfg.Metrics.SourceBased && cfg.Remote.Enabled {
		if cfg.Local.Enabled {
			// Without local models the remote variant is already the inline score.
			remote, err := judge(scoring.JudgeFactualConsistency)
			if err != nil {
				return nil, err
			}
			add(SuiteStandard, "factual_consistency", []Field{FieldResponse, FieldSource}, nil, remote)
		}
		contextRel, err := judge(scoring.JudgeContextRelevance)
		if err != nil {
			return nil, err
		}
		add(SuiteStandard, "context_relevance", []Field{FieldRequest, FieldSource}, nil, contextRel)
		answerRel, err := judge(scoring.JudgeAnswerRelevance)
		if err != nil {
			return nil, err
		}
		add(SuiteStandard, "answer_relevance", []Field{FieldRequest, FieldResponse}, nil, answerRel)
	}

	refInputs := []Field{FieldResponse, FieldReference, FieldRequest}
	for _, variant := range []string{scoring.Rouge1, scoring.Rouge2, scoring.RougeL} {
		s := scoring.RougeScorer(variant)
		add(SuiteReference, variant, refInputs, map[string]scoring.Scorer{
			models.LanguageEnglish:  s,
			models.LanguageJapanese: s,
		}, nil)
	}
	semantic := sidecar(scoring.SidecarSemanticSimilarity)
	if semantic == nil {
		if b.Embedder == nil {
			return nil, fmt.Errorf("%w: semantic similarity needs local models or an embedder", ErrConfiguration)
		}
		s := scoring.EmbeddingSimilarity(b.Embedder)
		semantic = map[string]scoring.Scorer{
			models.LanguageEnglish:  s,
			models.LanguageJapanese: s,
		}
	}
	add(SuiteReference, "semantic_similarity", refInputs, semantic, nil)

	// inline factual consistency, computed before the chat turn returns
	if cfg.Local.Enabled {
		r.inlineName = "factual_consistency"
		r.inline = sidecar(scoring.SidecarFactualConsistency)
	} else {
		r.inlineName = "factual_consistency_" + r.remoteSuffix
		remote, err := judge(scoring.JudgeFactualConsistency)
		if err != nil {
			return nil, err
		}
		r.inline = remote
	}

	return r, nil
}

// Definitions returns the definitions of a suite.
func (r *Registry) Definitions(suite Suite) []Definition {
	if suite == SuiteReference {
		return r.reference
	}
	return r.standard
}

// Inline returns the factual consistency scorer run synchronously on each chat
// turn with inputs (response, source), and the metric name it is stored under.
func (r *Registry) Inline(lang string) (string, scoring.Scorer, bool) {
	s, ok := r.inline[lang]
	return r.inlineName, s, ok
}

// Bind turns the suite's definitions into descriptors over entry's field values.
func (r *Registry) Bind(entry *models.ChatLog, suite Suite) ([]*Descriptor, error) {
	if suite == SuiteReference && entry.Reference == nil {
		return nil, fmt.Errorf("entry %d has no reference answer", entry.ID)
	}

	defs := r.Definitions(suite)
	descs := make([]*Descriptor, 0, len(defs))
	for _, def := range defs {
		inputs := make([]string, len(def.Inputs))
		for i, f := range def.Inputs {
			inputs[i] = fieldValue(entry, f)
		}
		d, err := NewDescriptor(def.Name, def.Scorers, inputs, def.Local, def.Remote, r.remoteSuffix, r.store)
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
	}
	return descs, nil
}

func fieldValue(entry *models.ChatLog, f Field) string {
	switch f {
	case FieldRequest:
		return entry.Request
	case FieldResponse:
		return entry.Response
	case FieldSource:
		return entry.Source
	case FieldReference:
		if entry.Reference != nil {
			return *entry.Reference
		}
	}
	return ""
}
