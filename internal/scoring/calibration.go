// Package scoring implements the psychometric scoring engine: item bank and
// calibration handling, response normalization, Graded Response Model trait
// estimation, MBTI projection, cognitive functions, cluster membership,
// Jungian depth metrics and report assembly.
//
// Scoring is pure and synchronous. A Calibration is immutable once prepared
// and is shared by every concurrent scoring call.
package scoring

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/psychometric-engine/internal/domain"
)

// Estimation methods.
const (
	MethodMAP = "map"
	MethodMLE = "mle"
)

// DefaultAssessmentType is used when a request names no tier.
const DefaultAssessmentType = "core"

// Calibration bundles the item bank with every constant the engine needs.
// It must be prepared with Prepare before use and never mutated afterwards.
type Calibration struct {
	Name          string                `yaml:"name"`
	Items         []domain.Item         `yaml:"items"`
	Tiers         map[string]Tier       `yaml:"tiers"`
	Estimator     EstimatorSettings     `yaml:"estimator"`
	Scale         Scale                 `yaml:"scale"`
	Norms         map[domain.Trait]Norm `yaml:"norms"`
	MBTI          MBTISettings          `yaml:"mbti"`
	TypeTable     map[string][]string   `yaml:"type_table"`
	Development   DevelopmentSettings   `yaml:"development"`
	Clusters      ClusterSettings       `yaml:"clusters"`
	Archetypes    []string              `yaml:"archetypes"`
	Individuation IndividuationSettings `yaml:"individuation"`
	Templates     Templates             `yaml:"templates"`

	version  string
	index    map[string]int
	facets   map[domain.Trait][]string
	prepared bool
}

// Tier is an assessment variant: the items it administers and the minimum
// number of primary-layer responses required to score it. An empty item
// list administers the whole bank.
type Tier struct {
	Items      []string `yaml:"items,omitempty"`
	MinPrimary int      `yaml:"min_primary"`
}

// EstimatorSettings controls the IRT trait estimator.
type EstimatorSettings struct {
	Method                  string  `yaml:"method"`
	PriorSD                 float64 `yaml:"prior_sd"`
	ForcedChoicePriorWeight float64 `yaml:"forced_choice_prior_weight"`
	MaxStandardError        float64 `yaml:"max_standard_error"`
	ConfidenceLevel         float64 `yaml:"confidence_level"`
	MinFacetItems           int     `yaml:"min_facet_items"`
	Tolerance               float64 `yaml:"tolerance"`
	MaxIterations           int     `yaml:"max_iterations"`
}

// Scale maps theta onto the 0-100 display scale. It is the single place the
// display transform is defined; scores, intervals and centroids all use it.
type Scale struct {
	Slope float64 `yaml:"slope"`
}

// Norm is the population distribution of theta for one trait.
type Norm struct {
	Mean float64 `yaml:"mean"`
	SD   float64 `yaml:"sd"`
}

// MBTISettings maps Big Five evidence onto the four axes.
// TraitWeights[axis][trait] multiplies theta; positive favours the first pole.
type MBTISettings struct {
	EvidenceScale   float64                                 `yaml:"evidence_scale"`
	SecondaryMargin float64                                 `yaml:"secondary_margin"`
	TraitWeights    map[domain.Axis]map[domain.Trait]float64 `yaml:"trait_weights"`
}

// DevelopmentSettings shapes cognitive function development levels.
type DevelopmentSettings struct {
	PositionWeights []float64 `yaml:"position_weights"`
	Floor           float64   `yaml:"floor"`
}

// ClusterSettings holds the prototype centroids on the 0-100 display scale.
type ClusterSettings struct {
	Temperature float64    `yaml:"temperature"`
	Centroids   []Centroid `yaml:"centroids"`
}

type Centroid struct {
	Label       string                   `yaml:"label"`
	Description string                   `yaml:"description"`
	Scores      map[domain.Trait]float64 `yaml:"scores"`
}

// IndividuationSettings bands shadow integration into stages.
// len(Labels) == len(Thresholds)+1.
type IndividuationSettings struct {
	Thresholds []float64 `yaml:"thresholds"`
	Labels     []string  `yaml:"labels"`
}

// Templates are report text fragments with {type}, {trait}, {function},
// {stage} and {cluster} placeholders.
type Templates struct {
	Interpretation      map[string]string `yaml:"interpretation"`
	Temperament         map[string]string `yaml:"temperament"`
	TraitSuggestions    map[string]string `yaml:"trait_suggestions"`
	FunctionSuggestions map[string]string `yaml:"function_suggestions"`
	StageSuggestions    map[string]string `yaml:"stage_suggestions"`
	Fallback            string            `yaml:"fallback"`
}

// Overrides adjusts estimator knobs from process configuration before a
// calibration is prepared. Zero values leave the calibration untouched.
type Overrides struct {
	Method          string
	ConfidenceLevel float64
	SecondaryMargin float64
}

// Apply returns c with the overrides applied. c itself is not modified.
func (o Overrides) Apply(c *Calibration) *Calibration {
	cp := c.shallowCopy()
	if o.Method != "" {
		cp.Estimator.Method = strings.ToLower(o.Method)
	}
	if o.ConfidenceLevel > 0 {
		cp.Estimator.ConfidenceLevel = o.ConfidenceLevel
	}
	if o.SecondaryMargin > 0 {
		cp.MBTI.SecondaryMargin = o.SecondaryMargin
	}
	return cp
}

func (c *Calibration) shallowCopy() *Calibration {
	cp := *c
	cp.version = ""
	cp.index = nil
	cp.facets = nil
	cp.prepared = false
	return &cp
}

// ParseCalibration decodes a YAML calibration document and prepares it.
func ParseCalibration(b []byte) (*Calibration, error) {
	var c Calibration
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, &domain.CalibrationLoadError{Problems: []string{fmt.Sprintf("decode: %v", err)}}
	}
	if err := c.Prepare(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadCalibrationFile reads and prepares a calibration from disk.
func LoadCalibrationFile(path string) (*Calibration, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.CalibrationLoadError{Problems: []string{fmt.Sprintf("read %s: %v", path, err)}}
	}
	return ParseCalibration(b)
}

// Marshal encodes the calibration as YAML.
func (c *Calibration) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Prepare validates the calibration, builds lookup indexes and computes the
// version fingerprint. It returns *domain.CalibrationLoadError listing every
// problem found.
func (c *Calibration) Prepare() error {
	if problems := c.validate(); len(problems) > 0 {
		return &domain.CalibrationLoadError{Problems: problems}
	}
	c.index = make(map[string]int, len(c.Items))
	c.facets = make(map[domain.Trait][]string)
	seenFacet := make(map[string]bool)
	for i := range c.Items {
		it := &c.Items[i]
		c.index[it.ID] = i
		if it.Layer == domain.LayerPrimary && it.Facet != "" {
			k := string(it.Dimension) + "/" + it.Facet
			if !seenFacet[k] {
				seenFacet[k] = true
				c.facets[it.Dimension] = append(c.facets[it.Dimension], it.Facet)
			}
		}
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return &domain.CalibrationLoadError{Problems: []string{fmt.Sprintf("fingerprint: %v", err)}}
	}
	c.version = fmt.Sprintf("%016x", xxhash.Sum64(b))
	c.prepared = true
	return nil
}

// Version is the content fingerprint of the prepared calibration.
func (c *Calibration) Version() string { return c.version }

// Item looks up an item by id.
func (c *Calibration) Item(id string) (*domain.Item, bool) {
	i, ok := c.index[id]
	if !ok {
		return nil, false
	}
	return &c.Items[i], true
}

// Facets returns the facets defined for a trait in bank order.
func (c *Calibration) Facets(t domain.Trait) []string { return c.facets[t] }

// TierItems resolves a tier to its items in bank order.
func (c *Calibration) TierItems(name string) ([]*domain.Item, Tier, error) {
	if name == "" {
		name = DefaultAssessmentType
	}
	tier, ok := c.Tiers[name]
	if !ok {
		return nil, Tier{}, fmt.Errorf("%w: unknown assessment type %q", domain.ErrInvalidArgument, name)
	}
	if len(tier.Items) == 0 {
		out := make([]*domain.Item, len(c.Items))
		for i := range c.Items {
			out[i] = &c.Items[i]
		}
		return out, tier, nil
	}
	idx := make([]int, 0, len(tier.Items))
	for _, id := range tier.Items {
		idx = append(idx, c.index[id])
	}
	sort.Ints(idx)
	out := make([]*domain.Item, len(idx))
	for i, j := range idx {
		out[i] = &c.Items[j]
	}
	return out, tier, nil
}

func (c *Calibration) validate() []string {
	var problems []string
	add := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	if len(c.Items) == 0 {
		add("item bank is empty")
	}
	ids := make(map[string]bool, len(c.Items))
	primaryIDs := make(map[string]bool, len(c.Items))
	totalPrimary := 0
	for i := range c.Items {
		it := &c.Items[i]
		if it.ID == "" {
			add("item #%d has no id", i)
			continue
		}
		if ids[it.ID] {
			add("duplicate item id %s", it.ID)
		}
		ids[it.ID] = true
		if it.Layer == domain.LayerPrimary {
			primaryIDs[it.ID] = true
			totalPrimary++
		}
		problems = append(problems, validateItem(it, c.Archetypes)...)
	}

	if len(c.Tiers) == 0 {
		add("no assessment tiers defined")
	}
	for name, tier := range c.Tiers {
		if tier.MinPrimary < 0 {
			add("tier %s: negative min_primary", name)
		}
		primary := 0
		if len(tier.Items) == 0 {
			primary = totalPrimary
		}
		seen := make(map[string]bool, len(tier.Items))
		for _, id := range tier.Items {
			if !ids[id] {
				add("tier %s references unknown item %s", name, id)
				continue
			}
			if seen[id] {
				add("tier %s lists item %s twice", name, id)
				continue
			}
			seen[id] = true
			if primaryIDs[id] {
				primary++
			}
		}
		if tier.MinPrimary > primary {
			add("tier %s: min_primary %d exceeds its %d primary items", name, tier.MinPrimary, primary)
		}
	}

	est := c.Estimator
	switch est.Method {
	case MethodMAP, MethodMLE:
	default:
		add("estimator.method must be %q or %q, got %q", MethodMAP, MethodMLE, est.Method)
	}
	if est.Method == MethodMAP && !(est.PriorSD > 0) {
		add("estimator.prior_sd must be > 0")
	}
	if !(est.MaxStandardError > 0) {
		add("estimator.max_standard_error must be > 0")
	}
	if !(est.ConfidenceLevel > 0 && est.ConfidenceLevel < 1) {
		add("estimator.confidence_level must be in (0,1)")
	}
	if !(est.Tolerance > 0) || est.MaxIterations <= 0 {
		add("estimator.tolerance and estimator.max_iterations must be > 0")
	}
	if !(c.Scale.Slope > 0) {
		add("scale.slope must be > 0")
	}
	for _, t := range domain.Traits {
		n, ok := c.Norms[t]
		if !ok {
			add("norms missing trait %s", t)
			continue
		}
		if !(n.SD > 0) {
			add("norms.%s.sd must be > 0", t)
		}
	}

	if !(c.MBTI.EvidenceScale > 0) {
		add("mbti.evidence_scale must be > 0")
	}
	if c.MBTI.SecondaryMargin < 0 || c.MBTI.SecondaryMargin > 0.5 {
		add("mbti.secondary_margin must be in [0,0.5]")
	}
	for axis, weights := range c.MBTI.TraitWeights {
		if !axis.Valid() {
			add("mbti.trait_weights: unknown axis %s", axis)
		}
		for t := range weights {
			if !t.Valid() {
				add("mbti.trait_weights.%s: unknown trait %s", axis, t)
			}
		}
	}

	problems = append(problems, validateTypeTable(c.TypeTable)...)

	if len(c.Development.PositionWeights) != 4 {
		add("development.position_weights must have 4 entries")
	} else {
		for i, w := range c.Development.PositionWeights {
			if w < 0 || w > 1 {
				add("development.position_weights[%d] must be in [0,1]", i)
			}
			if i > 0 && w > c.Development.PositionWeights[i-1] {
				add("development.position_weights must be non-increasing")
			}
		}
	}
	if c.Development.Floor < 0 || c.Development.Floor > 1 {
		add("development.floor must be in [0,1]")
	}

	if !(c.Clusters.Temperature > 0) {
		add("clusters.temperature must be > 0")
	}
	if len(c.Clusters.Centroids) == 0 {
		add("clusters.centroids must not be empty")
	}
	for i, ct := range c.Clusters.Centroids {
		if ct.Label == "" {
			add("clusters.centroids[%d] has no label", i)
		}
		if len(ct.Scores) != len(domain.Traits) {
			add("clusters.centroids[%d] must have %d trait scores", i, len(domain.Traits))
		}
		for t, v := range ct.Scores {
			if !t.Valid() {
				add("clusters.centroids[%d]: unknown trait %s", i, t)
			}
			if v < 0 || v > 100 || math.IsNaN(v) {
				add("clusters.centroids[%d].%s must be in [0,100]", i, t)
			}
		}
	}

	if len(c.Individuation.Labels) != len(c.Individuation.Thresholds)+1 {
		add("individuation.labels must have one more entry than individuation.thresholds")
	}
	for i, th := range c.Individuation.Thresholds {
		if th <= 0 || th >= 1 {
			add("individuation.thresholds[%d] must be in (0,1)", i)
		}
		if i > 0 && th <= c.Individuation.Thresholds[i-1] {
			add("individuation.thresholds must be strictly increasing")
		}
	}
	seenArch := make(map[string]bool, len(c.Archetypes))
	for _, a := range c.Archetypes {
		if seenArch[a] {
			add("duplicate archetype %s", a)
		}
		seenArch[a] = true
	}
	return problems
}

func validateItem(it *domain.Item, archetypes []string) []string {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf("item %s: ", it.ID)+fmt.Sprintf(format, args...))
	}
	switch it.Layer {
	case domain.LayerPrimary, domain.LayerSecondary, domain.LayerTertiary:
	default:
		add("unknown assessment layer %q", it.Layer)
	}
	k := it.ResponseType.Categories()
	if k == 0 {
		add("unknown response type %q", it.ResponseType)
		return problems
	}
	if it.ResponseType.IsLikert() {
		if it.Layer == domain.LayerPrimary && !it.Dimension.Valid() {
			add("primary likert item needs a Big Five dimension, got %q", it.Dimension)
		}
		if it.Dimension != "" && !it.Dimension.Valid() {
			add("unknown dimension %q", it.Dimension)
		}
		if !(it.Discrimination > 0) {
			add("discrimination must be > 0")
		}
		if len(it.Thresholds) != k-1 {
			add("expected %d thresholds, got %d", k-1, len(it.Thresholds))
		}
		for j := 1; j < len(it.Thresholds); j++ {
			if !(it.Thresholds[j] > it.Thresholds[j-1]) {
				add("thresholds must be strictly increasing")
				break
			}
		}
		if it.OptionA != nil || it.OptionB != nil {
			add("likert item must not define forced-choice options")
		}
	} else {
		if it.Layer == domain.LayerPrimary {
			add("forced-choice items cannot be primary-layer")
		}
		if !it.Axis.Valid() {
			add("forced-choice item needs an MBTI axis, got %q", it.Axis)
		}
		if it.OptionA == nil || it.OptionB == nil {
			add("forced-choice item needs option_a and option_b")
		} else {
			for _, opt := range []*domain.ChoiceOption{it.OptionA, it.OptionB} {
				for key := range opt.Scores {
					if !domain.Trait(key).Valid() {
						if _, ok := domain.AxisForPole(key); !ok {
							add("option score key %q is neither a trait nor an MBTI pole", key)
						}
					}
				}
			}
			first, second := it.Axis.Poles()
			if it.OptionA.Scores[first] == it.OptionB.Scores[first] && it.OptionA.Scores[second] == it.OptionB.Scores[second] {
				add("options do not discriminate axis %s", it.Axis)
			}
		}
	}
	if len(it.ArchetypeWeights) > 0 {
		known := make(map[string]bool, len(archetypes))
		for _, a := range archetypes {
			known[a] = true
		}
		for a, w := range it.ArchetypeWeights {
			if !known[a] {
				add("unknown archetype %q", a)
			}
			if w < 0 {
				add("archetype weight for %s must be >= 0", a)
			}
		}
	}
	if it.ShadowWeight < 0 {
		add("shadow_weight must be >= 0")
	}
	if (it.ShadowWeight > 0 || len(it.ArchetypeWeights) > 0) && !it.ResponseType.IsLikert() {
		add("shadow and archetype weights require a likert item")
	}
	return problems
}

var functionUniverse = []string{"Ni", "Ne", "Si", "Se", "Ti", "Te", "Fi", "Fe"}

// AllTypes lists the sixteen MBTI types in canonical order.
func AllTypes() []string {
	out := make([]string, 0, 16)
	for _, ei := range []string{"E", "I"} {
		for _, sn := range []string{"S", "N"} {
			for _, tf := range []string{"T", "F"} {
				for _, jp := range []string{"J", "P"} {
					out = append(out, ei+sn+tf+jp)
				}
			}
		}
	}
	return out
}

func validateTypeTable(table map[string][]string) []string {
	var problems []string
	valid := make(map[string]bool, len(functionUniverse))
	for _, f := range functionUniverse {
		valid[f] = true
	}
	for _, typ := range AllTypes() {
		stack, ok := table[typ]
		if !ok {
			problems = append(problems, fmt.Sprintf("type_table missing %s", typ))
			continue
		}
		if len(stack) != 4 {
			problems = append(problems, fmt.Sprintf("type_table.%s must list 4 functions", typ))
			continue
		}
		letters := make(map[byte]bool, 4)
		for _, f := range stack {
			if !valid[f] {
				problems = append(problems, fmt.Sprintf("type_table.%s: unknown function %q", typ, f))
				continue
			}
			letters[f[0]] = true
		}
		if len(letters) != 4 {
			problems = append(problems, fmt.Sprintf("type_table.%s must use each of N, S, T, F once", typ))
		}
	}
	for typ := range table {
		if len(typ) != 4 || !contains(AllTypes(), typ) {
			problems = append(problems, fmt.Sprintf("type_table has unknown type %q", typ))
		}
	}
	sort.Strings(problems)
	return problems
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
