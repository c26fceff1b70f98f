package community

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/graphweave/graphrag/pkg/ai"
	"github.com/graphweave/graphrag/pkg/common"
)

// ErrEmptySummary is returned when the completer produces no text.
var ErrEmptySummary = errors.New("empty community summary")

// Summarizer writes a text summary of a community and embeds it.
type Summarizer struct {
	completer ai.Completer
	embedder  ai.Embedder
	opts      []ai.GenerateOption
}

type SummarizerParams struct {
	Completer ai.Completer
	Embedder  ai.Embedder
	Options   []ai.GenerateOption
}

func NewSummarizer(params SummarizerParams) *Summarizer {
	return &Summarizer{
		completer: params.Completer,
		embedder:  params.Embedder,
		opts:      params.Options,
	}
}

// Summarize describes the community made of members, using only edges of
// g whose endpoints are both members. It has no side effects.
func (s *Summarizer) Summarize(ctx context.Context, members []string, g *common.Snapshot) (string, []float32, error) {
	prompt := SummaryPrompt(members, g)

	text, err := s.completer.GenerateCompletion(ctx, prompt, s.opts...)
	if err != nil {
		return "", nil, fmt.Errorf("generate summary: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil, ErrEmptySummary
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, []byte(text))
	if err != nil {
		return "", nil, fmt.Errorf("embed summary: %w", err)
	}
	return text, embedding, nil
}

// SummaryPrompt formats the entities and intra-community relationships of
// members into the community summary prompt.
func SummaryPrompt(members []string, g *common.Snapshot) string {
	memberSet := make(map[string]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}

	names := make(map[int64]string, len(members))
	types := make(map[string]string, len(members))
	for _, n := range g.Nodes {
		if memberSet[n.Name] {
			names[n.ID] = n.Name
			types[n.Name] = n.Type
		}
	}

	sorted := slices.Clone(members)
	slices.Sort(sorted)
	var entities strings.Builder
	for _, m := range sorted {
		if t := types[m]; t != "" {
			fmt.Fprintf(&entities, "- %s (%s)\n", m, t)
		} else {
			fmt.Fprintf(&entities, "- %s\n", m)
		}
	}

	type seenKey struct {
		a, b  string
		label string
	}
	seen := map[seenKey]bool{}
	var rels strings.Builder
	for _, e := range g.Edges {
		src, okS := names[e.SourceID]
		tgt, okT := names[e.TargetID]
		if !okS || !okT {
			continue
		}
		k := seenKey{a: min(src, tgt), b: max(src, tgt), label: e.Label}
		if seen[k] {
			continue
		}
		seen[k] = true
		fmt.Fprintf(&rels, "- %s\n", common.FormatRelationship(src, e.Label, tgt, e.Weight))
	}
	if rels.Len() == 0 {
		rels.WriteString("- none\n")
	}

	return fmt.Sprintf(ai.CommunitySummaryPrompt, strings.TrimRight(entities.String(), "\n"), strings.TrimRight(rels.String(), "\n"))
}
