package extract

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/profiled/internal/logging"
	"github.com/fyrsmithlabs/profiled/internal/profile"
)

// skipRe matches utterances declining to answer the current slot.
var skipRe = regexp.MustCompile(`(?i)^(?:skip(?: this| that)?(?: one)?|pass|no comment|next(?: question)?|(?:i'?d |i would )?(?:prefer|rather) not(?: to)?(?: say| answer)?)[.!]?$`)

type compiledPattern struct {
	name       string
	re         *regexp.Regexp
	confidence float64
}

// Extractor runs the strategy chain for each extraction attempt.
type Extractor struct {
	registry      *profile.Registry
	resolver      Resolver
	model         string
	minConfidence float64
	patterns      map[string][]compiledPattern
	logger        *logging.Logger
}

// New builds an extractor over the slot registry. resolver may be nil,
// disabling the service strategy. Pattern regexes are compiled once
// here; a malformed one is a construction error, not a turn error.
func New(registry *profile.Registry, resolver Resolver, cfg Config, logger *logging.Logger) (*Extractor, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	minConf := cfg.MinConfidence
	if minConf == 0 {
		minConf = defaultMinConfidence
	}

	patterns := make(map[string][]compiledPattern)
	for _, name := range registry.Names() {
		def, _ := registry.Lookup(name)
		for _, p := range def.Patterns {
			re, err := regexp.Compile(p.Regex)
			if err != nil {
				return nil, fmt.Errorf("slot %s pattern %s: %w", name, p.Name, err)
			}
			patterns[name] = append(patterns[name], compiledPattern{
				name:       p.Name,
				re:         re,
				confidence: p.Confidence,
			})
		}
	}

	return &Extractor{
		registry:      registry,
		resolver:      resolver,
		model:         cfg.Service.Model,
		minConfidence: minConf,
		patterns:      patterns,
		logger:        logger,
	}, nil
}

// Extract runs the strategy chain for one slot against one utterance.
// Exactly one of the returns is non-nil. A Failure is a normal outcome
// the caller re-prompts on; nothing escapes this boundary as an error.
func (e *Extractor) Extract(ctx context.Context, slot, utterance string, entities []RecognizedEntity) (*Result, *Failure) {
	def, ok := e.registry.Lookup(slot)
	if !ok {
		return nil, &Failure{Slot: slot, Reason: fmt.Sprintf("unknown slot %q", slot)}
	}

	if skipRe.MatchString(utterance) {
		return &Result{
			Slot:       slot,
			Value:      profile.SkippedValue(),
			Strategy:   StrategyPattern,
			Confidence: skipConfidence,
			Source:     utterance,
		}, nil
	}

	if res := e.fromEntities(ctx, def, entities); res != nil {
		return res, nil
	}
	if res := e.fromPatterns(ctx, def, utterance); res != nil {
		return res, nil
	}
	return e.fromService(ctx, def, utterance)
}

// fromEntities normalizes a recognizer-tagged entity matching the
// slot's expected type. Confidence is the recognizer's reported score.
func (e *Extractor) fromEntities(ctx context.Context, def *profile.Definition, entities []RecognizedEntity) *Result {
	for _, ent := range entities {
		if ent.Entity != def.Entity {
			continue
		}
		if ent.Confidence < e.minConfidence {
			e.logger.Debug(ctx, "entity below confidence floor",
				zap.String("slot", def.Name),
				zap.Float64("confidence", ent.Confidence))
			continue
		}
		v, err := def.Normalize(ent.Value)
		if err != nil {
			e.logger.Debug(ctx, "entity value unnormalizable",
				zap.String("slot", def.Name),
				zap.String("value", ent.Value),
				zap.Error(err))
			continue
		}
		return &Result{
			Slot:       def.Name,
			Value:      v,
			Strategy:   StrategyEntity,
			Confidence: ent.Confidence,
			Source:     ent.Value,
		}
	}
	return nil
}

// fromPatterns tries the slot's patterns in registration order. A
// pattern with a capture group hands group 1 to the normalizer; a
// group-less pattern hands over the whole match.
func (e *Extractor) fromPatterns(ctx context.Context, def *profile.Definition, utterance string) *Result {
	for _, p := range e.patterns[def.Name] {
		m := p.re.FindStringSubmatch(utterance)
		if m == nil {
			continue
		}
		fragment := m[0]
		if len(m) > 1 && m[1] != "" {
			fragment = m[1]
		}
		if p.confidence < e.minConfidence {
			continue
		}
		v, err := def.Normalize(fragment)
		if err != nil {
			e.logger.Debug(ctx, "pattern fragment unnormalizable",
				zap.String("slot", def.Name),
				zap.String("pattern", p.name),
				zap.String("fragment", fragment),
				zap.Error(err))
			continue
		}
		return &Result{
			Slot:       def.Name,
			Value:      v,
			Strategy:   StrategyPattern,
			Confidence: p.confidence,
			Source:     fragment,
		}
	}
	return nil
}

// fromService is the last resort: ship the utterance and the slot's
// description to the external service. Unreachable or timed-out calls
// fail the attempt locally with a warning; the turn carries on.
func (e *Extractor) fromService(ctx context.Context, def *profile.Definition, utterance string) (*Result, *Failure) {
	if e.resolver == nil {
		return nil, &Failure{Slot: def.Name, Reason: "no strategy matched and no service configured"}
	}

	reply, err := e.resolver.Resolve(ctx, ResolveRequest{
		Utterance:       utterance,
		Slot:            def.Name,
		SlotDescription: def.Description,
		Model:           e.model,
	})
	if err != nil {
		e.logger.Warn(ctx, "extraction service unavailable",
			zap.String("slot", def.Name),
			zap.Error(err))
		return nil, &Failure{
			Slot:               def.Name,
			Reason:             fmt.Sprintf("service unavailable: %v", err),
			ServiceUnavailable: true,
		}
	}
	if reply.Unparseable {
		return nil, &Failure{Slot: def.Name, Reason: "service reported the utterance unparseable"}
	}

	// The service is the end of the chain, so its answer is accepted at
	// whatever confidence it reports; the floor gates only the local
	// strategies, which have the service to fall back to.
	confidence := reply.Confidence
	if confidence == 0 {
		confidence = defaultServiceConfidence
	}

	v, err := def.Normalize(reply.Value)
	if err != nil {
		return nil, &Failure{
			Slot:   def.Name,
			Reason: fmt.Sprintf("service value %q unnormalizable", reply.Value),
		}
	}
	return &Result{
		Slot:       def.Name,
		Value:      v,
		Strategy:   StrategyService,
		Confidence: confidence,
		Source:     reply.Value,
	}, nil
}
