package evidence

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/specwright/specwright/internal/framework"
)

// StepSearcher looks up recorded interaction steps for a keyword, typically
// backed by a vector index over refined recorder sessions.
type StepSearcher interface {
	SearchSteps(ctx context.Context, keyword string, topK int) ([]Step, error)
}

// Aggregator gathers evidence for a scenario keyword from every available
// source: the vector index, the refined-flow store, and the repository itself.
type Aggregator struct {
	Searcher StepSearcher
	Flows    FlowStore
	Logger   *log.Logger

	// TopK bounds vector results and repository asset matches. Zero means 5.
	TopK int
}

func (a Aggregator) topK() int {
	if a.TopK > 0 {
		return a.TopK
	}
	return 5
}

func (a Aggregator) logf(format string, args ...any) {
	if a.Logger != nil {
		a.Logger.Printf(format, args...)
	}
}

// Gather collects all evidence for the keyword. Collaborator failures do not
// abort the gather; each failed source is recorded in Context.Degraded so the
// caller can tell "no evidence" apart from "sources were down".
func (a Aggregator) Gather(ctx context.Context, keyword string) Context {
	normalized := NormalizeKeyword(keyword)
	out := Context{}

	if a.Searcher != nil {
		steps, err := a.Searcher.SearchSteps(ctx, keyword, a.topK())
		if err != nil {
			a.logf("step search failed for %q: %v", keyword, err)
			out.Degraded = append(out.Degraded, fmt.Sprintf("vector search: %v", err))
		} else {
			out.VectorSteps = FilterSteps(steps, normalized, false)
		}
	}

	if flow, ok := a.Flows.FindByKeyword(keyword, false); ok {
		out.FlowAvailable = true
		out.SessionID = flow.SessionID
		out.EnrichedSteps = FormatRefinedSteps(flow.Steps, 6)
	}
	if len(out.VectorSteps) > 0 {
		out.FlowAvailable = true
	}
	return out
}

// GatherAssets scans the target repository for spec files and page objects
// matching the keyword.
func (a Aggregator) GatherAssets(fw framework.Profile, keyword string) []ExistingAsset {
	return FindExistingAssets(fw, keyword, a.topK())
}

// SummarizeAssets renders matched repository assets for a chat reply.
func SummarizeAssets(assets []ExistingAsset) string {
	if len(assets) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Found existing assets that match this scenario:\n")
	for _, asset := range assets {
		kind := "support file"
		if asset.IsTest {
			kind = "test"
		}
		fmt.Fprintf(&b, "- %s (%s)\n", asset.Path, kind)
		if asset.Snippet != "" {
			fmt.Fprintf(&b, "  %s\n", strings.ReplaceAll(asset.Snippet, "\n", "\n  "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
