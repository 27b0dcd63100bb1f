package service

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/parkvision/visionserve/common/config"
	"github.com/parkvision/visionserve/common/models"
)

// categoryKeywords is the fixed taxonomy §4.5 step 1 maps curated keywords
// to categories. Starter keywords come from spec §4.5; supplemented with
// the broader lists from original_source/services/natural_element_analyzer.py
// (tree/grass/… for vegetation, lake/river/… for water, etc.) per the
// process's "silence is an invitation" rule for dropped-but-present detail.
var categoryKeywords = map[string][]string{
	"vegetation": {
		"tree", "plant", "grass", "leaf", "flower", "shrub", "forest", "foliage",
		"garden", "bush", "fern", "moss", "vine", "branch", "trunk", "greenery",
		"flora", "botanical", "herb", "bamboo",
	},
	"sky": {
		"sky", "cloud", "atmosphere", "sunset", "sunrise", "horizon",
		"weather", "overcast", "cumulus", "cirrus",
	},
	"water": {
		"water", "lake", "river", "pond", "stream", "fountain", "sea",
		"pool", "waterfall", "creek", "brook", "canal", "reservoir", "wetland",
	},
	"terrain": {
		"ground", "soil", "rock", "path", "trail", "sand",
		"stone", "dirt", "gravel", "earth", "mud", "cliff", "hill",
	},
	"built": {
		"building", "bench", "fence", "structure", "pavement", "road",
		"sidewalk", "bridge", "wall", "gate", "playground", "statue", "monument",
	},
}

var categoryOrder = []string{"vegetation", "sky", "water", "terrain", "built"}

// healthyLabelKeywords is §4.5 step 3's fixed list for label_score.
var healthyLabelKeywords = []string{"lush", "verdant", "healthy", "green", "thriving"}

// seasonalKeywords is §4.5 step 4's fixed keyword sets.
var seasonalKeywords = map[string][]string{
	"spring": {"blossom", "bloom", "sprout"},
	"summer": {"lush", "verdant", "sunflower"},
	"autumn": {"foliage", "red leaf", "orange", "pumpkin"},
	"winter": {"snow", "frost", "bare branch"},
}

// namedColorPalette is the SUPPLEMENTED fixed palette §4.5 step 5 maps
// dominant colors to, grounded on original_source's channel-dominance
// naming (_get_color_name) but expressed as nearest-neighbor over a fixed
// RGB table rather than a dominant-channel heuristic, since spec §4.5
// explicitly calls for "nearest named color from a fixed palette".
var namedColorPalette = []struct {
	name    string
	r, g, b uint8
}{
	{"black", 0, 0, 0}, {"white", 255, 255, 255}, {"gray", 128, 128, 128},
	{"red", 220, 20, 20}, {"dark red", 120, 20, 20},
	{"green", 34, 139, 34}, {"dark green", 20, 80, 20}, {"bright green", 120, 220, 80},
	{"blue", 30, 80, 200}, {"dark blue", 15, 40, 100}, {"sky blue", 135, 206, 235},
	{"brown", 139, 90, 43}, {"tan", 210, 180, 140},
	{"yellow", 220, 200, 40}, {"orange", 230, 126, 34},
}

// NatureAnalyzer implements C5: label categorization, coverage estimation,
// vegetation health, seasonal inference, and color analysis over a
// PrimitiveBundle. Grounded on original_source's NaturalElementAnalyzer for
// the taxonomy shape and recommendation structure; formulas follow spec
// §4.5 exactly, including the Resolved Open Question 4 decision that
// ambiguous multi-category labels split their confidence equally across
// every matched category rather than assigning to the first match (the
// source's `break` after first match).
type NatureAnalyzer struct {
	cfg config.AnalyzerConfig
}

// NewNatureAnalyzer constructs a NatureAnalyzer.
func NewNatureAnalyzer(cfg config.AnalyzerConfig) *NatureAnalyzer {
	return &NatureAnalyzer{cfg: cfg}
}

type categorizedLabel struct {
	label      string
	confidence float64
}

// Analyze transforms a PrimitiveBundle's labels (and, when present, image
// properties) into a NatureArtifact.
func (a *NatureAnalyzer) Analyze(bundle *PrimitiveBundle, includeHealth, includeSeasonal, includeColor bool) *models.NatureArtifact {
	filtered := a.filterLabels(bundle.Labels)
	byCategory := a.categorizeLabels(filtered)

	coverage := a.coverage(byCategory)

	artifact := &models.NatureArtifact{
		Coverage:    coverage,
		TotalLabels: len(filtered),
	}

	if includeHealth && len(byCategory["vegetation"]) > 0 {
		var colors []models.DominantColor
		if bundle.ImageProperties != nil {
			colors = bundle.ImageProperties.DominantColors
		}
		artifact.VegetationHealth = a.vegetationHealth(coverage.Vegetation, colors, filtered)
	}

	if includeSeasonal {
		artifact.Seasonal = a.seasonal(filtered)
	}

	if includeColor && bundle.ImageProperties != nil {
		dominant, diversity := a.colorAnalysis(bundle.ImageProperties.DominantColors)
		artifact.DominantColors = dominant
		artifact.ColorDiversity = diversity
	}

	artifact.OverallAssessment = a.overallAssessment(coverage, artifact.VegetationHealth)
	artifact.Recommendations = a.recommendations(coverage, artifact.VegetationHealth, artifact.Seasonal)
	return artifact
}

// filterLabels drops labels below confidence_threshold (§4.5 step 1).
func (a *NatureAnalyzer) filterLabels(labels []Label) []Label {
	threshold := a.cfg.ConfidenceThreshold
	out := make([]Label, 0, len(labels))
	for _, l := range labels {
		if l.Confidence >= threshold {
			out = append(out, l)
		}
	}
	return out
}

// categorizeLabels matches each label's normalized text against the fixed
// taxonomy. A label matching N categories contributes confidence/N to each
// (Resolved Open Question 4: proportional attribution, weighted equally
// per match).
func (a *NatureAnalyzer) categorizeLabels(labels []Label) map[string][]categorizedLabel {
	out := make(map[string][]categorizedLabel, len(categoryOrder))
	for _, cat := range categoryOrder {
		out[cat] = nil
	}

	for _, l := range labels {
		normalized := strings.ToLower(strings.TrimSpace(l.Description))
		var matched []string
		for _, cat := range categoryOrder {
			for _, kw := range categoryKeywords[cat] {
				if strings.Contains(normalized, kw) {
					matched = append(matched, cat)
					break
				}
			}
		}
		if len(matched) == 0 {
			continue
		}
		share := l.Confidence / float64(len(matched))
		for _, cat := range matched {
			out[cat] = append(out[cat], categorizedLabel{label: normalized, confidence: share})
		}
	}
	return out
}

// coverage implements §4.5 step 2's damped, normalized coverage estimate.
func (a *NatureAnalyzer) coverage(byCategory map[string][]categorizedLabel) models.CoverageByCategory {
	weighted := make(map[string]float64, len(categoryOrder))
	var rawTotal float64
	for _, cat := range categoryOrder {
		var raw float64
		for _, cl := range byCategory[cat] {
			raw += cl.confidence
		}
		rawTotal += raw
		weighted[cat] = raw * a.alphaFor(cat)
	}

	result := models.CoverageByCategory{}
	if rawTotal > 0 {
		result.Vegetation = clampPct(weighted["vegetation"] / rawTotal * 100)
		result.Sky = clampPct(weighted["sky"] / rawTotal * 100)
		result.Water = clampPct(weighted["water"] / rawTotal * 100)
		result.Terrain = clampPct(weighted["terrain"] / rawTotal * 100)
		result.Built = clampPct(weighted["built"] / rawTotal * 100)
	}

	if sum := result.Vegetation + result.Sky + result.Water + result.Terrain + result.Built; sum > 100 {
		scale := 100 / sum
		result.Vegetation *= scale
		result.Sky *= scale
		result.Water *= scale
		result.Terrain *= scale
		result.Built *= scale
	}
	return result
}

func (a *NatureAnalyzer) alphaFor(category string) float64 {
	if v, ok := a.cfg.CoverageDamping[category]; ok {
		return v
	}
	return 1.0
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// vegetationHealth implements §4.5 step 3.
func (a *NatureAnalyzer) vegetationHealth(vegetationCoveragePct float64, colors []models.DominantColor, labels []Label) *models.VegetationHealth {
	colorScore := a.colorScore(colors)
	coverageScore := 100 * math.Min(1, vegetationCoveragePct/30)
	labelScore := 100 * a.healthyLabelMaxConfidence(labels)

	weights := a.cfg.VegetationWeights
	overall := weights.Color*colorScore + weights.Coverage*coverageScore + weights.Label*labelScore

	h := &models.VegetationHealth{
		Overall:       overall,
		ColorScore:    colorScore,
		CoverageScore: coverageScore,
		LabelScore:    labelScore,
		Status:        healthStatus(overall),
	}
	h.Recommendations = healthRecommendations(overall, coverageScore, colorScore, labelScore)
	return h
}

func healthStatus(overall float64) string {
	switch {
	case overall >= 70:
		return "healthy"
	case overall >= 40:
		return "moderate"
	case overall >= 15:
		return "poor"
	default:
		return "unknown"
	}
}

// healthRecommendations is the fixed table §4.5 step 3 calls for, grounded
// on original_source's _generate_health_recommendations.
func healthRecommendations(overall, coverageScore, colorScore, labelScore float64) []string {
	var out []string
	if overall < 50 {
		out = append(out, "Vegetation health appears to need attention")
	}
	if coverageScore < 40 {
		out = append(out, "Low vegetation coverage detected - consider increasing plant density")
	}
	if colorScore < 40 {
		out = append(out, "Color analysis suggests vegetation may be stressed - check watering and nutrients")
	}
	if labelScore < 40 {
		out = append(out, "Labels indicate potential vegetation health issues")
	}
	if overall >= 75 {
		out = append(out, "Vegetation appears healthy and thriving")
	}
	return out
}

// colorScore is §4.5 step 3's green-ratio to [0,100] mapping.
func (a *NatureAnalyzer) colorScore(colors []models.DominantColor) float64 {
	if len(colors) == 0 {
		return 0
	}
	var greenCount int
	for _, c := range colors {
		if int(c.G) > int(c.R) && int(c.G) > int(c.B) && c.G >= 80 {
			greenCount++
		}
	}
	greenRatio := float64(greenCount) / float64(len(colors))
	return 100 * math.Min(1, greenRatio/0.4)
}

func (a *NatureAnalyzer) healthyLabelMaxConfidence(labels []Label) float64 {
	var max float64
	for _, l := range labels {
		normalized := strings.ToLower(l.Description)
		for _, kw := range healthyLabelKeywords {
			if strings.Contains(normalized, kw) && l.Confidence > max {
				max = l.Confidence
			}
		}
	}
	return max
}

// seasonal implements §4.5 step 4.
func (a *NatureAnalyzer) seasonal(labels []Label) *models.SeasonalAnalysis {
	scores := make(map[string]float64, 4)
	counts := make(map[string]int, 4)
	var features []string

	seasons := []string{"spring", "summer", "autumn", "winter"}
	for _, season := range seasons {
		for _, l := range labels {
			normalized := strings.ToLower(l.Description)
			for _, kw := range seasonalKeywords[season] {
				if strings.Contains(normalized, kw) {
					scores[season] += l.Confidence
					counts[season]++
					features = append(features, kw)
					break
				}
			}
		}
	}

	const primaryThreshold = 0.4
	primary := "unknown"
	bestScore := -1.0
	sort.Strings(seasons) // alphabetical order breaks remaining ties
	for _, season := range seasons {
		s := scores[season]
		if s < primaryThreshold {
			continue
		}
		switch {
		case primary == "unknown":
			bestScore, primary = s, season
		case s > bestScore:
			bestScore, primary = s, season
		case s == bestScore && counts[season] > counts[primary]:
			bestScore, primary = s, season
		}
	}

	return &models.SeasonalAnalysis{
		Primary:             primary,
		ConfidencesBySeason: scores,
		Features:            features,
	}
}

// colorAnalysis implements §4.5 step 5.
func (a *NatureAnalyzer) colorAnalysis(colors []models.DominantColor) ([]models.DominantColor, float64) {
	if len(colors) == 0 {
		return nil, 0
	}
	out := make([]models.DominantColor, len(colors))
	pcts := make([]float64, len(colors))
	for i, c := range colors {
		c.Hex = fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
		c.Name = nearestNamedColor(c.R, c.G, c.B)
		out[i] = c
		pcts[i] = c.Pct
	}

	total := 0.0
	for _, p := range pcts {
		total += p
	}
	if total <= 0 {
		return out, 0
	}
	normalized := make([]float64, len(pcts))
	for i, p := range pcts {
		normalized[i] = p / total
	}

	entropyNats := stat.Entropy(normalized)
	entropyBits := entropyNats / math.Ln2
	k := float64(len(colors))
	if k <= 1 {
		return out, 0
	}
	diversity := 100 * entropyBits / math.Log2(k)
	return out, clampPct(diversity)
}

func nearestNamedColor(r, g, b uint8) string {
	best := ""
	bestDist := math.MaxFloat64
	for _, c := range namedColorPalette {
		dr := float64(r) - float64(c.r)
		dg := float64(g) - float64(c.g)
		db := float64(b) - float64(c.b)
		dist := dr*dr + dg*dg + db*db
		if dist < bestDist {
			bestDist = dist
			best = c.name
		}
	}
	return best
}

// overallAssessment is grounded on original_source's _generate_overall_assessment.
func (a *NatureAnalyzer) overallAssessment(coverage models.CoverageByCategory, health *models.VegetationHealth) string {
	switch {
	case coverage.Vegetation > 60:
		if health != nil && health.Overall > 75 {
			return "thriving_natural_environment"
		}
		return "nature_dominant"
	case coverage.Vegetation > 30:
		if coverage.Water > 20 {
			return "balanced_environment_with_water"
		}
		return "balanced_environment"
	case coverage.Built > 50:
		return "urban_environment"
	case coverage.Water > 40:
		return "water_dominant_environment"
	default:
		return "mixed_landscape"
	}
}

// recommendations is grounded on original_source's _generate_recommendations.
func (a *NatureAnalyzer) recommendations(coverage models.CoverageByCategory, health *models.VegetationHealth, seasonal *models.SeasonalAnalysis) []string {
	var out []string

	switch {
	case coverage.Vegetation < 20:
		out = append(out, "Consider increasing vegetation coverage for better environmental balance")
	case coverage.Vegetation > 80:
		out = append(out, "Excellent vegetation coverage - maintain current green space management")
	}

	if health != nil {
		switch {
		case health.Overall < 50:
			out = append(out, "Vegetation health needs attention - consider soil and water management")
		case health.Overall > 80:
			out = append(out, "Vegetation appears very healthy - continue current maintenance practices")
		}
	}

	if coverage.Water > 30 {
		out = append(out, "Significant water features detected - monitor water quality and ecosystem health")
	}

	if seasonal != nil {
		switch seasonal.Primary {
		case "winter":
			out = append(out, "Winter conditions detected - consider seasonal maintenance needs")
		case "spring":
			out = append(out, "Spring growth period - optimal time for planting and maintenance")
		case "summer":
			out = append(out, "Summer conditions - ensure adequate watering and shade")
		case "autumn":
			out = append(out, "Autumn season - prepare for seasonal changes and leaf management")
		}
	}

	if coverage.Built > 60 {
		out = append(out, "High built environment coverage - consider adding more green spaces")
	}

	return out
}
