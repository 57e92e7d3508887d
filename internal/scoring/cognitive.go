package scoring

import (
	"fmt"

	"github.com/fairyhunter13/psychometric-engine/internal/domain"
)

// FunctionUniverse lists the eight cognitive functions.
func FunctionUniverse() []string {
	return append([]string(nil), functionUniverse...)
}

// flipAttitude turns Ni into Ne, Te into Ti and so on.
func flipAttitude(f string) string {
	if len(f) != 2 {
		return f
	}
	switch f[1] {
	case 'i':
		return f[:1] + "e"
	case 'e':
		return f[:1] + "i"
	}
	return f
}

// ShadowStack returns the shadow functions of a stack in canonical order:
// opposing, critical parent, trickster, demon. It is the attitude-flipped
// stack and therefore the set complement within the eight functions.
func ShadowStack(stack []string) []string {
	out := make([]string, len(stack))
	for i, f := range stack {
		out[i] = flipAttitude(f)
	}
	return out
}

// ResolveCognitive looks up the stack for the projected type and derives
// development levels from stack position and type confidence.
func ResolveCognitive(cal *Calibration, mbti MBTIProfile) (domain.CognitiveResult, error) {
	stack, ok := cal.TypeTable[mbti.Result.PrimaryType]
	if !ok || len(stack) != len(cal.Development.PositionWeights) {
		return domain.CognitiveResult{}, fmt.Errorf("%w: no function stack for type %q", domain.ErrInternal, mbti.Result.PrimaryType)
	}
	conf := mbti.TypeConfidence()
	floor := cal.Development.Floor
	factor := floor + (1-floor)*conf

	levels := make(map[string]float64, len(stack))
	for i, f := range stack {
		levels[f] = clamp(cal.Development.PositionWeights[i]*factor, 0, 1)
	}
	return domain.CognitiveResult{
		PrimaryStack:      append([]string(nil), stack...),
		DevelopmentLevels: levels,
		ShadowFunctions:   ShadowStack(stack),
	}, nil
}
